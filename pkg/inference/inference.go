package inference

import (
	"context"
	"errors"
	"fmt"
	"io"
)

var (
	ErrModelUnavailable = errors.New("the inference runtime is not available")
	ErrModelLoad        = errors.New("unable to load the model")
	ErrInference        = errors.New("inference failed")
)

// TensorInfo describes a declared input or output of a graph. Dimensions
// that are not fixed by the model are negative.
type TensorInfo struct {
	Name  string
	Shape []int64
}

func (info TensorInfo) String() string {
	return fmt.Sprintf("%s%v", info.Name, info.Shape)
}

// IsStatic returns true if every dimension is known and positive.
func (info TensorInfo) IsStatic() bool {
	for _, dim := range info.Shape {
		if dim <= 0 {
			return false
		}
	}
	return true
}

type Tensor struct {
	Shape []int64
	Data  []float32
}

// NewTensor returns a zeroed tensor of the given static shape.
func NewTensor(shape []int64) *Tensor {
	return &Tensor{
		Shape: append([]int64(nil), shape...),
		Data:  make([]float32, ElementCount(shape)),
	}
}

func ElementCount(shape []int64) int64 {
	count := int64(1)
	for _, dim := range shape {
		count *= dim
	}
	return count
}

func (t *Tensor) Clone() *Tensor {
	if t == nil {
		return nil
	}
	return &Tensor{
		Shape: append([]int64(nil), t.Shape...),
		Data:  append([]float32(nil), t.Data...),
	}
}

// Graph is a loaded inference model.
type Graph interface {
	io.Closer

	Inputs() []TensorInfo
	Outputs() []TensorInfo

	// Run evaluates the graph. Inputs are ordered as Inputs() and the
	// returned tensors are ordered as Outputs().
	Run(ctx context.Context, inputs []*Tensor) ([]*Tensor, error)
}
