package nn

import (
	"github.com/born-ml/pretrained/internal/tensor"
)

// FFN holds the two projections of a transformer feed-forward block:
//
//	FFN(x) = Linear2(act(Linear1(x)))
//
// Where:
//   - Linear1: [embed_dim → ffn_dim] (expansion), child "w_1"
//   - Linear2: [ffn_dim → embed_dim] (projection back), child "w_2"
//
// Typically ffn_dim = 4 * embed_dim.
type FFN struct {
	Linear1 *Linear // [embed_dim → ffn_dim]
	Linear2 *Linear // [ffn_dim → embed_dim]

	children children
}

// NewFFN creates a new feed-forward block.
//
// Example:
//
//	ffn := nn.NewFFN(256, 2048, tensor.CPU)
func NewFFN(embedDim, ffnDim int, device tensor.Device) *FFN {
	f := &FFN{
		Linear1: NewLinear(embedDim, ffnDim, device),
		Linear2: NewLinear(ffnDim, embedDim, device),
	}
	f.children.add("w_1", f.Linear1)
	f.children.add("w_2", f.Linear2)
	return f
}

// Submodule returns "w_1" or "w_2".
func (f *FFN) Submodule(name string) (Module, bool) {
	return f.children.get(name)
}

// Children returns ["w_1", "w_2"].
func (f *FFN) Children() []string {
	return f.children.list()
}

// Parameters returns the parameters of both projections.
func (f *FFN) Parameters() []*Parameter {
	return f.children.parameters()
}

// StateDict returns "w_1.*" and "w_2.*".
func (f *FFN) StateDict() map[string]*tensor.RawTensor {
	stateDict := make(map[string]*tensor.RawTensor)
	f.children.collect(stateDict)
	return stateDict
}

// LoadStateDict loads both projections.
func (f *FFN) LoadStateDict(stateDict map[string]*tensor.RawTensor) error {
	if err := CheckStateDict(f, stateDict); err != nil {
		return err
	}
	return f.children.load(stateDict)
}
