package resampler

import (
	"encoding/binary"
	"fmt"
	"math"

	"github.com/xaionaro-go/speechfilter/pkg/audio/types"
)

func getFloat64(f types.PCMFormat, p []byte) float64 {
	switch f {
	case types.PCMFormatU8:
		return (float64(p[0]) - 128) / 128
	case types.PCMFormatS16LE:
		return float64(int16(binary.LittleEndian.Uint16(p))) / 32768
	case types.PCMFormatS16BE:
		return float64(int16(binary.BigEndian.Uint16(p))) / 32768
	case types.PCMFormatS24LE:
		val := int32(uint32(p[0]) | uint32(p[1])<<8 | uint32(p[2])<<16)
		if val&0x800000 != 0 {
			val |= -16777216
		}
		return float64(val) / 8388608
	case types.PCMFormatS24BE:
		val := int32(uint32(p[2]) | uint32(p[1])<<8 | uint32(p[0])<<16)
		if val&0x800000 != 0 {
			val |= -16777216
		}
		return float64(val) / 8388608
	case types.PCMFormatS32LE:
		return float64(int32(binary.LittleEndian.Uint32(p))) / 2147483648
	case types.PCMFormatS32BE:
		return float64(int32(binary.BigEndian.Uint32(p))) / 2147483648
	case types.PCMFormatS64LE:
		return float64(int64(binary.LittleEndian.Uint64(p))) / 9223372036854775808
	case types.PCMFormatS64BE:
		return float64(int64(binary.BigEndian.Uint64(p))) / 9223372036854775808
	case types.PCMFormatFloat32LE:
		return float64(math.Float32frombits(binary.LittleEndian.Uint32(p)))
	case types.PCMFormatFloat32BE:
		return float64(math.Float32frombits(binary.BigEndian.Uint32(p)))
	case types.PCMFormatFloat64LE:
		return math.Float64frombits(binary.LittleEndian.Uint64(p))
	case types.PCMFormatFloat64BE:
		return math.Float64frombits(binary.BigEndian.Uint64(p))
	default:
		panic(fmt.Sprintf("unknown format: %v", f))
	}
}

// the largest float64 that still fits into int64
const maxInt64Float = 9223372036854774784

func clampInt(v float64, lo, hi float64) float64 {
	v = math.Round(v)
	if v > hi {
		return hi
	}
	if v < lo {
		return lo
	}
	return v
}

func setFloat64(f types.PCMFormat, p []byte, v float64) {
	switch f {
	case types.PCMFormatU8:
		p[0] = byte(clampInt(v*128+128, 0, 255))
	case types.PCMFormatS16LE:
		binary.LittleEndian.PutUint16(p, uint16(int16(clampInt(v*32768, math.MinInt16, math.MaxInt16))))
	case types.PCMFormatS16BE:
		binary.BigEndian.PutUint16(p, uint16(int16(clampInt(v*32768, math.MinInt16, math.MaxInt16))))
	case types.PCMFormatS24LE:
		val := int32(clampInt(v*8388608, -8388608, 8388607))
		p[0] = byte(val)
		p[1] = byte(val >> 8)
		p[2] = byte(val >> 16)
	case types.PCMFormatS24BE:
		val := int32(clampInt(v*8388608, -8388608, 8388607))
		p[0] = byte(val >> 16)
		p[1] = byte(val >> 8)
		p[2] = byte(val)
	case types.PCMFormatS32LE:
		binary.LittleEndian.PutUint32(p, uint32(int32(clampInt(v*2147483648, math.MinInt32, math.MaxInt32))))
	case types.PCMFormatS32BE:
		binary.BigEndian.PutUint32(p, uint32(int32(clampInt(v*2147483648, math.MinInt32, math.MaxInt32))))
	case types.PCMFormatS64LE:
		binary.LittleEndian.PutUint64(p, uint64(int64(clampInt(v*9223372036854775808, math.MinInt64, maxInt64Float))))
	case types.PCMFormatS64BE:
		binary.BigEndian.PutUint64(p, uint64(int64(clampInt(v*9223372036854775808, math.MinInt64, maxInt64Float))))
	case types.PCMFormatFloat32LE:
		binary.LittleEndian.PutUint32(p, math.Float32bits(float32(v)))
	case types.PCMFormatFloat32BE:
		binary.BigEndian.PutUint32(p, math.Float32bits(float32(v)))
	case types.PCMFormatFloat64LE:
		binary.LittleEndian.PutUint64(p, math.Float64bits(v))
	case types.PCMFormatFloat64BE:
		binary.BigEndian.PutUint64(p, math.Float64bits(v))
	default:
		panic(fmt.Sprintf("unknown format: %v", f))
	}
}

// DecodePCM converts raw PCM bytes of the given format into normalized
// float64 samples, keeping the sample order (and thus the interleaving).
func DecodePCM(format types.PCMFormat, data []byte) ([]float64, error) {
	if !format.IsValid() {
		return nil, fmt.Errorf("invalid PCM format: %v", format)
	}
	sampleSize := int(format.Size())
	if len(data)%sampleSize != 0 {
		return nil, fmt.Errorf("the size of the input is not a multiple of the sample size: %d %% %d != 0", len(data), sampleSize)
	}

	samples := make([]float64, len(data)/sampleSize)
	for idx := range samples {
		samples[idx] = getFloat64(format, data[idx*sampleSize:])
	}
	return samples, nil
}

// EncodePCM is the reverse of DecodePCM. Integer formats are saturated
// instead of wrapped around.
func EncodePCM(format types.PCMFormat, samples []float64) ([]byte, error) {
	if !format.IsValid() {
		return nil, fmt.Errorf("invalid PCM format: %v", format)
	}
	sampleSize := int(format.Size())

	data := make([]byte, len(samples)*sampleSize)
	for idx, v := range samples {
		setFloat64(format, data[idx*sampleSize:], v)
	}
	return data, nil
}
