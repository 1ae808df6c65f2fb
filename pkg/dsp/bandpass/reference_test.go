package bandpass

import (
	"math"
	"testing"

	"github.com/davecgh/go-spew/spew"
	"github.com/stretchr/testify/require"
)

// Reference values of the direct-form design and filtfilt, computed with
// the scipy.signal algorithm:
//
//	b, a = butter(4, [800/22050, 6000/22050], btype='band')
//	y = filtfilt(b, a, x)
var (
	referenceB = []float64{
		0.0084081014106559, 0.0, -0.0336324056426236,
		0.0, 0.050448608463935396, 0.0,
		-0.0336324056426236, 0.0, 0.0084081014106559,
	}
	referenceA = []float64{
		1.0, -5.77369773091114, 14.818935901866606,
		-22.19918846252915, 21.307288167000657, -13.435881312312189,
		5.431730820850642, -1.2858233198217737, 0.13667488397508493,
	}
	referenceFiltered = []float64{
		-0.12800124578499078, 0.09024347164872094, 0.280907843071334,
		0.41156320573533867, 0.454662882125277, 0.40343884738461455,
		0.28175786131154973, 0.13517919625795916, 0.004845441386757472,
		-0.09841838233383199, -0.19893412029071186, -0.33361785330676225,
		-0.5186135930225111, -0.7317214693064652, -0.9227750608624208,
		-1.0395065673391175, -1.0476012455734793, -0.936604289946822,
		-0.7181523359807749, -0.4225853695383754, -0.09189715508569149,
		0.23292824483641966, 0.5245548482821267, 0.773221714732726,
		0.9789590830902773, 1.137873228551945, 1.2331728963720732,
		1.238790825948688, 1.1344389369619332, 0.9219729081939867,
		0.6308031674866074, 0.3073628859946337, -0.004644461356589029,
		-0.2797927879808739, -0.5122154912852287, -0.7030238387131275,
		-0.8445267222374052, -0.9146555607552136, -0.887310588699952,
		-0.751604158616801, -0.5254418557599896, -0.25232803037901574,
		0.018165235480319408, 0.2537275566484865, 0.4496278296214229,
		0.6177996649118767, 0.7622682532932041, 0.8588101378993198,
		0.8561090775770646, 0.7050827517501391, 0.40256213155917114,
		0.015667758453051604, -0.34183747836583545, -0.5736076051177394,
		-0.6603881267600636, -0.6694779959980094, -0.705479935915225,
		-0.8367989259464336, -1.0469591145448203, -1.239151916536518,
		-1.2870792484187106, -1.101053383901356, -0.6757261005293349,
		-0.09860690123803277,
	}
)

func referenceInput() []float64 {
	x := make([]float64, 64)
	for n := range x {
		v := math.Sin(0.3*float64(n)) + 0.5*math.Cos(0.05*float64(n*n))
		if n%7 == 0 {
			v += 0.25
		} else {
			v -= 0.1
		}
		x[n] = v
	}
	return x
}

func polyMul(p, q []float64) []float64 {
	result := make([]float64, len(p)+len(q)-1)
	for i, a := range p {
		for j, b := range q {
			result[i+j] += a * b
		}
	}
	return result
}

func TestDesignMatchesReference(t *testing.T) {
	f, err := Design(4, 800.0/22050, 6000.0/22050)
	require.NoError(t, err)
	require.Len(t, f.Sections, 4)

	// zeros are paired with poles differently than in scipy's SOS output,
	// so the cascade is compared as a whole
	b, a := []float64{1}, []float64{1}
	for _, s := range f.Sections {
		b = polyMul(b, s.B[:])
		a = polyMul(a, s.A[:])
	}
	require.InDeltaSlice(t, referenceB, b, 1e-12, spew.Sdump(f.Sections))
	require.InDeltaSlice(t, referenceA, a, 1e-10, spew.Sdump(f.Sections))
}

func TestFilterZeroPhaseMatchesReference(t *testing.T) {
	f, err := Design(4, 800.0/22050, 6000.0/22050)
	require.NoError(t, err)

	y := f.FilterZeroPhase(referenceInput())
	require.InDeltaSlice(t, referenceFiltered, y, 1e-9)
}
