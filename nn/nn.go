// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package nn provides parameter containers that pretrained weights load into.
//
// Leaf modules (Linear, LayerNorm, Embedding) own parameters; containers
// (Sequential, Dict) own named children and prefix their keys:
//
//	model := nn.NewDict().
//	    Add("encoder", nn.NewSequential(
//	        nn.NewLinear(80, 256, tensor.CPU),
//	        nn.NewLayerNorm(256, 1e-5, tensor.CPU),
//	    )).
//	    Add("decoder", nn.NewLinear(256, 32, tensor.CPU))
//
//	// encoder.0.weight, encoder.0.bias, encoder.1.weight, ...
//	keys := nn.StateDictKeys(model.StateDict())
package nn

import (
	"github.com/born-ml/pretrained/internal/nn"
	"github.com/born-ml/pretrained/internal/tensor"
)

// Module is anything with a state dict.
type Module = nn.Module

// Container is a Module with named sub-modules.
type Container = nn.Container

// Parameter is a named tensor owned by a module.
type Parameter = nn.Parameter

// NewParameter creates a parameter.
func NewParameter(name string, t *tensor.RawTensor) *Parameter {
	return nn.NewParameter(name, t)
}

// Errors returned by LoadStateDict.
var (
	ErrMissingParameter = nn.ErrMissingParameter
	ErrUnexpectedKey    = nn.ErrUnexpectedKey
	ErrShapeMismatch    = nn.ErrShapeMismatch
	ErrDTypeMismatch    = nn.ErrDTypeMismatch
)

// Layers

// Linear is a fully connected layer with weight [out, in] and optional bias.
type Linear = nn.Linear

// NewLinear creates a linear layer with Xavier initialization and zero bias.
func NewLinear(inFeatures, outFeatures int, device tensor.Device) *Linear {
	return nn.NewLinear(inFeatures, outFeatures, device)
}

// NewLinearNoBias creates a linear layer without bias.
func NewLinearNoBias(inFeatures, outFeatures int, device tensor.Device) *Linear {
	return nn.NewLinearNoBias(inFeatures, outFeatures, device)
}

// Conv2D holds the kernel and bias of a 2D convolution.
type Conv2D = nn.Conv2D

// NewConv2D creates a 2D convolution with Xavier initialization.
func NewConv2D(inChannels, outChannels, kernelH, kernelW, stride, padding int, useBias bool, device tensor.Device) *Conv2D {
	return nn.NewConv2D(inChannels, outChannels, kernelH, kernelW, stride, padding, useBias, device)
}

// RMSNorm holds the scale of root mean square normalization.
type RMSNorm = nn.RMSNorm

// NewRMSNorm creates an RMSNorm with weight 1.
func NewRMSNorm(dModel int, epsilon float32, device tensor.Device) *RMSNorm {
	return nn.NewRMSNorm(dModel, epsilon, device)
}

// LayerNorm holds the affine parameters of layer normalization.
type LayerNorm = nn.LayerNorm

// NewLayerNorm creates a layer norm with weight 1 and bias 0.
func NewLayerNorm(normalizedShape int, epsilon float32, device tensor.Device) *LayerNorm {
	return nn.NewLayerNorm(normalizedShape, epsilon, device)
}

// Embedding is a lookup table of shape [vocab, dim].
type Embedding = nn.Embedding

// NewEmbedding creates an embedding with normal initialization.
func NewEmbedding(numEmbeddings, embeddingDim int, device tensor.Device) *Embedding {
	return nn.NewEmbedding(numEmbeddings, embeddingDim, device)
}

// Containers

// MultiHeadAttention holds the q, k, v and o projections of attention.
type MultiHeadAttention = nn.MultiHeadAttention

// NewMultiHeadAttention creates attention projections for embedDim split
// into numHeads heads.
func NewMultiHeadAttention(embedDim, numHeads int, device tensor.Device) *MultiHeadAttention {
	return nn.NewMultiHeadAttention(embedDim, numHeads, device)
}

// FFN holds the w_1 and w_2 projections of a feed-forward block.
type FFN = nn.FFN

// NewFFN creates a feed-forward block.
func NewFFN(embedDim, ffnDim int, device tensor.Device) *FFN {
	return nn.NewFFN(embedDim, ffnDim, device)
}

// Sequential is an ordered container whose children are named "0", "1", ...
type Sequential = nn.Sequential

// NewSequential creates a Sequential from modules.
func NewSequential(modules ...Module) *Sequential {
	return nn.NewSequential(modules...)
}

// Dict is a container of named children and direct parameters.
type Dict = nn.Dict

// NewDict creates an empty Dict.
func NewDict() *Dict {
	return nn.NewDict()
}

// FromStateDict builds a Dict tree mirroring the keys of stateDict.
func FromStateDict(stateDict map[string]*tensor.RawTensor) (*Dict, error) {
	return nn.FromStateDict(stateDict)
}

// State dict helpers

// CheckStateDict validates stateDict against m without writing.
func CheckStateDict(m Module, stateDict map[string]*tensor.RawTensor) error {
	return nn.CheckStateDict(m, stateDict)
}

// StateDictKeys returns the keys of stateDict sorted.
func StateDictKeys(stateDict map[string]*tensor.RawTensor) []string {
	return nn.StateDictKeys(stateDict)
}

// CloneStateDict deep-copies every tensor of stateDict.
func CloneStateDict(stateDict map[string]*tensor.RawTensor) map[string]*tensor.RawTensor {
	return nn.CloneStateDict(stateDict)
}

// WithPrefix prefixes every key of stateDict.
func WithPrefix(stateDict map[string]*tensor.RawTensor, prefix string) map[string]*tensor.RawTensor {
	return nn.WithPrefix(stateDict, prefix)
}

// StripPrefix keeps the keys under prefix, with the prefix removed.
func StripPrefix(stateDict map[string]*tensor.RawTensor, prefix string) map[string]*tensor.RawTensor {
	return nn.StripPrefix(stateDict, prefix)
}
