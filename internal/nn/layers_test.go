package nn

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/born-ml/pretrained/internal/tensor"
)

func TestEmbeddingParameters(t *testing.T) {
	embed := NewEmbedding(100, 50, tensor.CPU)

	params := embed.Parameters()
	require.Len(t, params, 1)
	assert.Same(t, embed.Weight, params[0])
	assert.Equal(t, tensor.Shape{100, 50}, embed.Weight.Tensor().Shape())
	assert.Equal(t, []string{"weight"}, StateDictKeys(embed.StateDict()))
}

func TestNewEmbeddingWithWeight(t *testing.T) {
	weightData := []float32{
		0.1, 0.2, 0.3,
		0.4, 0.5, 0.6,
	}
	weight, err := tensor.FromSlice(weightData, tensor.Shape{2, 3}, tensor.CPU)
	require.NoError(t, err)

	embed := NewEmbeddingWithWeight(weight)
	assert.Equal(t, 2, embed.NumEmbed)
	assert.Equal(t, 3, embed.EmbedDim)
	assert.Equal(t, weightData, embed.StateDict()["weight"].AsFloat32())
}

func TestNewEmbeddingWithWeightInvalidShape(t *testing.T) {
	weight, err := tensor.FromSlice([]float32{1, 2, 3}, tensor.Shape{3}, tensor.CPU)
	require.NoError(t, err)

	assert.Panics(t, func() { NewEmbeddingWithWeight(weight) })
}

func TestEmbeddingLoadStateDict(t *testing.T) {
	embed := NewEmbedding(4, 2, tensor.CPU)

	err := embed.LoadStateDict(map[string]*tensor.RawTensor{
		"weight": filled(t, tensor.Shape{4, 2}, 0.25),
	})
	require.NoError(t, err)
	for _, v := range embed.Weight.Tensor().AsFloat32() {
		assert.Equal(t, float32(0.25), v)
	}

	err = embed.LoadStateDict(map[string]*tensor.RawTensor{
		"weight": filled(t, tensor.Shape{5, 2}, 0.25),
	})
	assert.ErrorIs(t, err, ErrShapeMismatch)
}

func TestLayerNormParameters(t *testing.T) {
	ln := NewLayerNorm(10, 1e-5, tensor.CPU)

	params := ln.Parameters()
	require.Len(t, params, 2)
	assert.Equal(t, "weight", params[0].Name())
	assert.Equal(t, "bias", params[1].Name())
	assert.Equal(t, tensor.Shape{10}, params[0].Tensor().Shape())
	assert.Equal(t, tensor.Shape{10}, params[1].Tensor().Shape())
	assert.InDelta(t, 1e-5, ln.Epsilon, 1e-12)

	// Identity affine transform until weights are loaded.
	sd := ln.StateDict()
	for i := 0; i < 10; i++ {
		assert.Equal(t, float32(1), sd["weight"].AsFloat32()[i])
		assert.Equal(t, float32(0), sd["bias"].AsFloat32()[i])
	}
}

func TestLayerNormLoadStateDict(t *testing.T) {
	ln := NewLayerNorm(3, 1e-5, tensor.CPU)

	err := ln.LoadStateDict(map[string]*tensor.RawTensor{
		"weight": filled(t, tensor.Shape{3}, 2),
		"bias":   filled(t, tensor.Shape{3}, -1),
	})
	require.NoError(t, err)
	assert.Equal(t, []float32{2, 2, 2}, ln.Gamma.Tensor().AsFloat32())
	assert.Equal(t, []float32{-1, -1, -1}, ln.Beta.Tensor().AsFloat32())

	err = ln.LoadStateDict(map[string]*tensor.RawTensor{
		"weight": filled(t, tensor.Shape{3}, 2),
	})
	assert.ErrorIs(t, err, ErrMissingParameter)
}

func TestRMSNormStateDict(t *testing.T) {
	norm := NewRMSNorm(8, 1e-6, tensor.CPU)
	assert.Equal(t, []string{"weight"}, StateDictKeys(norm.StateDict()))

	require.NoError(t, norm.LoadStateDict(map[string]*tensor.RawTensor{
		"weight": filled(t, tensor.Shape{8}, 0.5),
	}))
	assert.Equal(t, float32(0.5), norm.Gamma.Tensor().AsFloat32()[7])
}

func TestConv2DStateDict(t *testing.T) {
	conv := NewConv2D(1, 4, 3, 3, 2, 0, true, tensor.CPU)
	sd := conv.StateDict()
	assert.Equal(t, []string{"bias", "weight"}, StateDictKeys(sd))
	assert.Equal(t, tensor.Shape{4, 1, 3, 3}, sd["weight"].Shape())
	assert.Equal(t, [2]int{3, 3}, conv.KernelSize())
	assert.Equal(t, 2, conv.Stride())

	noBias := NewConv2D(2, 4, 1, 1, 1, 0, false, tensor.CPU)
	assert.Nil(t, noBias.Bias())
	assert.Len(t, noBias.Parameters(), 1)

	assert.Panics(t, func() { NewConv2D(0, 4, 3, 3, 1, 0, true, tensor.CPU) })
	assert.Panics(t, func() { NewConv2D(1, 4, 3, 3, 0, 0, true, tensor.CPU) })
}

func TestMultiHeadAttentionContainer(t *testing.T) {
	mha := NewMultiHeadAttention(8, 2, tensor.CPU)
	assert.Equal(t, 4, mha.HeadDim)
	assert.Equal(t, []string{"q", "k", "v", "o"}, mha.Children())
	assert.Equal(t, []string{
		"k.bias", "k.weight", "o.bias", "o.weight",
		"q.bias", "q.weight", "v.bias", "v.weight",
	}, StateDictKeys(mha.StateDict()))

	q, ok := mha.Submodule("q")
	require.True(t, ok)
	assert.Same(t, mha.WQ, q)

	sd := CloneStateDict(mha.StateDict())
	for _, raw := range sd {
		data := raw.AsFloat32()
		for i := range data {
			data[i] = 3
		}
	}
	require.NoError(t, mha.LoadStateDict(sd))
	assert.Equal(t, float32(3), mha.WO.Bias().Tensor().AsFloat32()[0])

	assert.Panics(t, func() { NewMultiHeadAttention(10, 3, tensor.CPU) })
}

func TestFFNContainer(t *testing.T) {
	ffn := NewFFN(4, 16, tensor.CPU)
	assert.Equal(t, []string{"w_1", "w_2"}, ffn.Children())

	sd := ffn.StateDict()
	assert.Equal(t, tensor.Shape{16, 4}, sd["w_1.weight"].Shape())
	assert.Equal(t, tensor.Shape{4, 16}, sd["w_2.weight"].Shape())

	delete(sd, "w_2.bias")
	assert.ErrorIs(t, ffn.LoadStateDict(sd), ErrMissingParameter)
}
