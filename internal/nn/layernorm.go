package nn

import (
	"github.com/born-ml/pretrained/internal/tensor"
)

// LayerNorm holds the affine parameters of layer normalization.
//
// State dict keys follow the PyTorch naming used by most checkpoints:
// "weight" (gamma, initialized to ones) and "bias" (beta, zeros), both
// [normalized_shape].
type LayerNorm struct {
	Gamma   *Parameter
	Beta    *Parameter
	Epsilon float32
}

// NewLayerNorm creates a new LayerNorm layer.
func NewLayerNorm(normalizedShape int, epsilon float32, device tensor.Device) *LayerNorm {
	return &LayerNorm{
		Gamma:   NewParameter("weight", Ones(tensor.Shape{normalizedShape}, device)),
		Beta:    NewParameter("bias", Zeros(tensor.Shape{normalizedShape}, device)),
		Epsilon: epsilon,
	}
}

// Parameters returns [gamma, beta].
func (l *LayerNorm) Parameters() []*Parameter {
	return []*Parameter{l.Gamma, l.Beta}
}

// StateDict returns a map of parameter names to raw tensors.
func (l *LayerNorm) StateDict() map[string]*tensor.RawTensor {
	return parameterStateDict(l.Parameters())
}

// LoadStateDict loads parameters from a state dictionary.
func (l *LayerNorm) LoadStateDict(stateDict map[string]*tensor.RawTensor) error {
	return loadParameters(l, l.Parameters(), stateDict)
}
