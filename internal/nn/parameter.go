package nn

import (
	"fmt"

	"github.com/born-ml/pretrained/internal/tensor"
)

// Parameter represents a named tensor owned by a module.
//
// Example:
//
//	raw, _ := tensor.FromSlice([]float32{1, 2, 3}, tensor.Shape{3}, tensor.CPU)
//	bias := nn.NewParameter("bias", raw)
//	err := bias.Assign(pretrainedBias)
type Parameter struct {
	name   string
	tensor *tensor.RawTensor
}

// NewParameter creates a new parameter backed by t.
func NewParameter(name string, t *tensor.RawTensor) *Parameter {
	return &Parameter{
		name:   name,
		tensor: t,
	}
}

// Name returns the parameter name.
func (p *Parameter) Name() string {
	return p.name
}

// Tensor returns the parameter tensor.
func (p *Parameter) Tensor() *tensor.RawTensor {
	return p.tensor
}

// Check reports whether src can be assigned to p.
func (p *Parameter) Check(src *tensor.RawTensor) error {
	return checkCompatible(p.name, p.tensor, src)
}

// Assign copies src into the parameter's buffer in place.
//
// src must have the parameter's shape. A floating point src of another dtype
// is converted to the parameter's dtype.
func (p *Parameter) Assign(src *tensor.RawTensor) error {
	if err := p.Check(src); err != nil {
		return err
	}
	if src == p.tensor {
		return nil
	}

	if src.DType() != p.tensor.DType() {
		converted, err := tensor.Convert(src, p.tensor.DType())
		if err != nil {
			return fmt.Errorf("%s: %w", p.name, err)
		}
		src = converted
	}

	copy(p.tensor.Data(), src.Data())
	return nil
}

// checkCompatible validates that src can overwrite dst.
func checkCompatible(name string, dst, src *tensor.RawTensor) error {
	if src == nil {
		return fmt.Errorf("%w: %s is nil", ErrMissingParameter, name)
	}
	if !src.Shape().Equal(dst.Shape()) {
		return fmt.Errorf("%w: %s: expected %v, got %v", ErrShapeMismatch, name, dst.Shape(), src.Shape())
	}
	if src.DType() != dst.DType() && (!src.DType().IsFloat() || !dst.DType().IsFloat()) {
		return fmt.Errorf("%w: %s: expected %s, got %s", ErrDTypeMismatch, name, dst.DType(), src.DType())
	}
	return nil
}
