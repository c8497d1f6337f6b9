// Package nn implements the parameter containers that pretrained weights are
// loaded into.
//
// This package provides:
//   - Module: anything exposing a state dict (name -> tensor)
//   - Container: a Module with named child modules, addressable by dotted path
//   - Parameter: a named tensor owned by a module
//   - Linear, Conv2D, LayerNorm, RMSNorm, Embedding: leaf modules with fixed
//     parameter sets
//   - MultiHeadAttention, FFN: fixed containers of Linear projections
//   - Sequential, Dict: containers whose children are reached by index or name
//
// Design inspired by PyTorch's nn.Module state dict contract.
package nn

import (
	"github.com/born-ml/pretrained/internal/tensor"
)

// Module is the base interface for all parameter containers.
//
// StateDict keys are relative to the module: a Linear reports "weight" and
// "bias", a container reports "<child>.<key>" for every child key.
type Module interface {
	// Parameters returns every parameter of this module, including those of
	// nested modules.
	Parameters() []*Parameter

	// StateDict returns a map of parameter names to the live parameter
	// tensors. Writing into the returned tensors mutates the module.
	StateDict() map[string]*tensor.RawTensor

	// LoadStateDict copies values from stateDict into the module's
	// parameters.
	//
	// The state dict must hold exactly the module's keys with matching
	// shapes. Floating point tensors of another float dtype are converted.
	// All entries are validated before any parameter is written, so a
	// failed load leaves the module unchanged.
	LoadStateDict(stateDict map[string]*tensor.RawTensor) error
}

// Container is a Module with named child modules.
type Container interface {
	Module

	// Submodule returns the direct child registered under name.
	Submodule(name string) (Module, bool)

	// Children returns the names of the direct children in registration order.
	Children() []string
}
