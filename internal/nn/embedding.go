package nn

import (
	"fmt"

	"github.com/born-ml/pretrained/internal/tensor"
)

// Embedding is a lookup table that maps discrete indices to dense vectors.
//
// State dict key: "weight" [NumEmbed, EmbedDim].
type Embedding struct {
	Weight   *Parameter
	NumEmbed int
	EmbedDim int
}

// NewEmbedding creates a new Embedding layer with weights drawn from N(0, 1).
func NewEmbedding(numEmbeddings, embeddingDim int, device tensor.Device) *Embedding {
	return &Embedding{
		Weight:   NewParameter("weight", Normal(tensor.Shape{numEmbeddings, embeddingDim}, device)),
		NumEmbed: numEmbeddings,
		EmbedDim: embeddingDim,
	}
}

// NewEmbeddingWithWeight creates an Embedding layer around an existing
// [numEmbeddings, embeddingDim] weight tensor.
func NewEmbeddingWithWeight(weight *tensor.RawTensor) *Embedding {
	shape := weight.Shape()
	if len(shape) != 2 {
		panic(fmt.Sprintf("embedding weight must be 2D, got shape %v", shape))
	}
	return &Embedding{
		Weight:   NewParameter("weight", weight),
		NumEmbed: shape[0],
		EmbedDim: shape[1],
	}
}

// Parameters returns [weight].
func (e *Embedding) Parameters() []*Parameter {
	return []*Parameter{e.Weight}
}

// StateDict returns a map of parameter names to raw tensors.
func (e *Embedding) StateDict() map[string]*tensor.RawTensor {
	return parameterStateDict(e.Parameters())
}

// LoadStateDict loads parameters from a state dictionary.
func (e *Embedding) LoadStateDict(stateDict map[string]*tensor.RawTensor) error {
	return loadParameters(e, e.Parameters(), stateDict)
}
