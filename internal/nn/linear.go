package nn

import (
	"fmt"

	"github.com/born-ml/pretrained/internal/tensor"
)

// Linear holds the parameters of a fully connected layer y = x @ W.T + b.
//
// State dict keys: "weight" [out_features, in_features] and, unless the layer
// was built without bias, "bias" [out_features].
//
// Example:
//
//	layer := nn.NewLinear(784, 128, tensor.CPU)
//	sd := layer.StateDict() // {"weight": [128 784], "bias": [128]}
type Linear struct {
	inFeatures  int
	outFeatures int
	weight      *Parameter
	bias        *Parameter
}

// NewLinear creates a new Linear layer.
//
// Weights are initialized using Xavier/Glorot uniform distribution.
// Biases are initialized to zeros.
func NewLinear(inFeatures, outFeatures int, device tensor.Device) *Linear {
	l := NewLinearNoBias(inFeatures, outFeatures, device)
	l.bias = NewParameter("bias", Zeros(tensor.Shape{outFeatures}, device))
	return l
}

// NewLinearNoBias creates a Linear layer without a bias parameter.
func NewLinearNoBias(inFeatures, outFeatures int, device tensor.Device) *Linear {
	if inFeatures <= 0 || outFeatures <= 0 {
		panic(fmt.Sprintf("nn.NewLinear: invalid features in=%d out=%d", inFeatures, outFeatures))
	}
	weight := Xavier(inFeatures, outFeatures, tensor.Shape{outFeatures, inFeatures}, device)
	return &Linear{
		inFeatures:  inFeatures,
		outFeatures: outFeatures,
		weight:      NewParameter("weight", weight),
	}
}

// Parameters returns [weight, bias] if bias is present, otherwise [weight].
func (l *Linear) Parameters() []*Parameter {
	if l.bias != nil {
		return []*Parameter{l.weight, l.bias}
	}
	return []*Parameter{l.weight}
}

// Weight returns the weight parameter.
func (l *Linear) Weight() *Parameter {
	return l.weight
}

// Bias returns the bias parameter, or nil.
func (l *Linear) Bias() *Parameter {
	return l.bias
}

// InFeatures returns the number of input features.
func (l *Linear) InFeatures() int {
	return l.inFeatures
}

// OutFeatures returns the number of output features.
func (l *Linear) OutFeatures() int {
	return l.outFeatures
}

// StateDict returns a map of parameter names to raw tensors.
func (l *Linear) StateDict() map[string]*tensor.RawTensor {
	return parameterStateDict(l.Parameters())
}

// LoadStateDict loads parameters from a state dictionary.
func (l *Linear) LoadStateDict(stateDict map[string]*tensor.RawTensor) error {
	return loadParameters(l, l.Parameters(), stateDict)
}
