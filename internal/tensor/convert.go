package tensor

import (
	"fmt"
	"math"

	"github.com/x448/float16"

	"github.com/born-ml/pretrained/internal/parallel"
)

// convertConfig splits large conversions across CPUs.
var convertConfig = parallel.DefaultConfig()

// Convert returns a copy of r with elements cast to dtype.
//
// Only conversions between floating point types are supported; converting to
// the tensor's own dtype returns a deep copy. Narrowing to Float16 or BFloat16
// rounds to nearest even.
func Convert(r *RawTensor, dtype DataType) (*RawTensor, error) {
	if r.dtype == dtype {
		return r.Copy(), nil
	}
	if !r.dtype.IsFloat() || !dtype.IsFloat() {
		return nil, fmt.Errorf("cannot convert %s to %s", r.dtype, dtype)
	}

	out, err := NewRaw(r.shape, dtype, r.device)
	if err != nil {
		return nil, err
	}

	parallel.ForRange(r.NumElements(), func(start, end int) {
		for i := start; i < end; i++ {
			out.setFloat(i, r.float(i))
		}
	}, convertConfig)
	return out, nil
}

// float reads element i as float64. The dtype must be a float type.
func (r *RawTensor) float(i int) float64 {
	switch r.dtype {
	case Float32:
		return float64(r.AsFloat32()[i])
	case Float64:
		return r.AsFloat64()[i]
	case Float16:
		return float64(float16.Frombits(r.AsUint16()[i]).Float32())
	case BFloat16:
		return float64(bfloat16ToFloat32(r.AsUint16()[i]))
	default:
		panic(fmt.Sprintf("tensor dtype %s is not a float type", r.dtype))
	}
}

func (r *RawTensor) setFloat(i int, v float64) {
	switch r.dtype {
	case Float32:
		r.AsFloat32()[i] = float32(v)
	case Float64:
		r.AsFloat64()[i] = v
	case Float16:
		r.AsUint16()[i] = float16.Fromfloat32(float32(v)).Bits()
	case BFloat16:
		r.AsUint16()[i] = float32ToBFloat16(float32(v))
	default:
		panic(fmt.Sprintf("tensor dtype %s is not a float type", r.dtype))
	}
}

func bfloat16ToFloat32(b uint16) float32 {
	return math.Float32frombits(uint32(b) << 16)
}

func float32ToBFloat16(f float32) uint16 {
	bits := math.Float32bits(f)
	if f != f { // NaN: keep it quiet and non-zero in the upper half
		return uint16(bits>>16) | 0x40
	}
	rounding := uint32(0x7FFF) + ((bits >> 16) & 1)
	return uint16((bits + rounding) >> 16)
}
