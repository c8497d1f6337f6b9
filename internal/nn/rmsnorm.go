package nn

import (
	"github.com/born-ml/pretrained/internal/tensor"
)

// RMSNorm holds the scale of Root Mean Square Normalization:
//
//	Y = X / sqrt(mean(X^2) + eps) * weight
//
// Unlike LayerNorm it has no bias. Used by LLaMA, Mistral and Gemma style
// models.
type RMSNorm struct {
	Gamma   *Parameter // learnable scale [d_model], keyed "weight"
	Epsilon float32    // numerical stability constant
}

// NewRMSNorm creates a new RMSNorm layer with the scale initialized to ones.
func NewRMSNorm(dModel int, epsilon float32, device tensor.Device) *RMSNorm {
	return &RMSNorm{
		Gamma:   NewParameter("weight", Ones(tensor.Shape{dModel}, device)),
		Epsilon: epsilon,
	}
}

// Parameters returns [gamma].
func (r *RMSNorm) Parameters() []*Parameter {
	return []*Parameter{r.Gamma}
}

// StateDict returns {"weight"}.
func (r *RMSNorm) StateDict() map[string]*tensor.RawTensor {
	return parameterStateDict(r.Parameters())
}

// LoadStateDict loads the scale.
func (r *RMSNorm) LoadStateDict(stateDict map[string]*tensor.RawTensor) error {
	return loadParameters(r, r.Parameters(), stateDict)
}
