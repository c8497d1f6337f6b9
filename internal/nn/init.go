package nn

import (
	"math"
	"math/rand"

	"github.com/born-ml/pretrained/internal/tensor"
)

// Xavier (Glorot) initialization for weights.
//
// Values are drawn from U(-sqrt(6/(fan_in + fan_out)), sqrt(6/(fan_in + fan_out))).
func Xavier(fanIn, fanOut int, shape tensor.Shape, device tensor.Device) *tensor.RawTensor {
	bound := math.Sqrt(6.0 / float64(fanIn+fanOut))

	t := mustRaw(shape, device)
	data := t.AsFloat32()
	for i := range data {
		//nolint:gosec // Using math/rand for weight initialization (not security-critical)
		data[i] = float32((rand.Float64()*2.0 - 1.0) * bound)
	}
	return t
}

// Normal fills a new float32 tensor from N(0, 1).
func Normal(shape tensor.Shape, device tensor.Device) *tensor.RawTensor {
	t := mustRaw(shape, device)
	data := t.AsFloat32()
	for i := range data {
		//nolint:gosec // math/rand is appropriate for ML weight initialization
		data[i] = float32(rand.NormFloat64())
	}
	return t
}

// Zeros creates a float32 tensor filled with zeros.
func Zeros(shape tensor.Shape, device tensor.Device) *tensor.RawTensor {
	return mustRaw(shape, device)
}

// Ones creates a float32 tensor filled with ones.
func Ones(shape tensor.Shape, device tensor.Device) *tensor.RawTensor {
	t := mustRaw(shape, device)
	data := t.AsFloat32()
	for i := range data {
		data[i] = 1
	}
	return t
}

func mustRaw(shape tensor.Shape, device tensor.Device) *tensor.RawTensor {
	t, err := tensor.NewRaw(shape, tensor.Float32, device)
	if err != nil {
		panic(err) // layer constructors validate their dimensions
	}
	return t
}
