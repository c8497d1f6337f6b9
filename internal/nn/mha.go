package nn

import (
	"fmt"

	"github.com/born-ml/pretrained/internal/tensor"
)

// MultiHeadAttention holds the four projections of multi-head attention:
//
//	MHA(Q, K, V) = Concat(head_1, ..., head_h) * W_O
//	head_i = SDPA(Q*W_Q_i, K*W_K_i, V*W_V_i)
//
// The projections are children "q", "k", "v" and "o", so state dict keys
// read "q.weight", "o.bias" and the dotted path "attn.q" selects one.
type MultiHeadAttention struct {
	WQ       *Linear // Query projection [embed_dim, embed_dim]
	WK       *Linear // Key projection [embed_dim, embed_dim]
	WV       *Linear // Value projection [embed_dim, embed_dim]
	WO       *Linear // Output projection [embed_dim, embed_dim]
	NumHeads int
	HeadDim  int
	EmbedDim int

	children children
}

// NewMultiHeadAttention creates a new multi-head attention module.
//
// The head dimension is computed as embedDim / numHeads.
//
// Example:
//
//	mha := nn.NewMultiHeadAttention(768, 12, tensor.CPU)
//	// embedDim=768, numHeads=12 -> headDim=64
func NewMultiHeadAttention(embedDim, numHeads int, device tensor.Device) *MultiHeadAttention {
	if numHeads <= 0 || embedDim%numHeads != 0 {
		panic(fmt.Sprintf("MultiHeadAttention: embed_dim (%d) must be divisible by num_heads (%d)", embedDim, numHeads))
	}

	m := &MultiHeadAttention{
		WQ:       NewLinear(embedDim, embedDim, device),
		WK:       NewLinear(embedDim, embedDim, device),
		WV:       NewLinear(embedDim, embedDim, device),
		WO:       NewLinear(embedDim, embedDim, device),
		NumHeads: numHeads,
		HeadDim:  embedDim / numHeads,
		EmbedDim: embedDim,
	}
	m.children.add("q", m.WQ)
	m.children.add("k", m.WK)
	m.children.add("v", m.WV)
	m.children.add("o", m.WO)
	return m
}

// Submodule returns one of the projections "q", "k", "v", "o".
func (m *MultiHeadAttention) Submodule(name string) (Module, bool) {
	return m.children.get(name)
}

// Children returns the projection names.
func (m *MultiHeadAttention) Children() []string {
	return m.children.list()
}

// Parameters returns the parameters of all projections.
func (m *MultiHeadAttention) Parameters() []*Parameter {
	return m.children.parameters()
}

// StateDict returns the projection parameters under their names.
func (m *MultiHeadAttention) StateDict() map[string]*tensor.RawTensor {
	stateDict := make(map[string]*tensor.RawTensor)
	m.children.collect(stateDict)
	return stateDict
}

// LoadStateDict loads all four projections.
func (m *MultiHeadAttention) LoadStateDict(stateDict map[string]*tensor.RawTensor) error {
	if err := CheckStateDict(m, stateDict); err != nil {
		return err
	}
	return m.children.load(stateDict)
}
