//go:build !cgo
// +build !cgo

package onnx

import (
	"context"
	"fmt"

	"github.com/xaionaro-go/speechfilter/pkg/inference"
)

type Graph = inference.Dummy

func IsAvailable(string) bool {
	return false
}

func Load(context.Context, string, Options) (*Graph, error) {
	return nil, fmt.Errorf("%w: built without cgo", inference.ErrModelUnavailable)
}
