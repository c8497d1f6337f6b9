package nn

import (
	"strconv"

	"github.com/born-ml/pretrained/internal/tensor"
)

// Sequential is a container of modules addressed by position.
//
// Children are named "0", "1", ... so state dict keys look like "0.weight",
// "2.bias", and the dotted path "1" selects the second module.
//
// Example:
//
//	model := nn.NewSequential(
//	    nn.NewLinear(784, 128, tensor.CPU),
//	    nn.NewLinear(128, 10, tensor.CPU),
//	)
type Sequential struct {
	children children
}

// NewSequential creates a new Sequential container.
func NewSequential(modules ...Module) *Sequential {
	s := &Sequential{}
	for _, m := range modules {
		s.Add(m)
	}
	return s
}

// Add appends a module to the sequence.
func (s *Sequential) Add(module Module) {
	s.children.add(strconv.Itoa(len(s.children.names)), module)
}

// Len returns the number of modules in the sequence.
func (s *Sequential) Len() int {
	return len(s.children.names)
}

// Module returns the module at the given index.
//
// Panics if index is out of bounds.
func (s *Sequential) Module(index int) Module {
	if index < 0 || index >= s.Len() {
		panic("Sequential.Module: index out of bounds")
	}
	return s.children.modules[strconv.Itoa(index)]
}

// Submodule returns the child at the position named by name.
func (s *Sequential) Submodule(name string) (Module, bool) {
	return s.children.get(name)
}

// Children returns "0" .. "n-1".
func (s *Sequential) Children() []string {
	return s.children.list()
}

// Parameters returns all parameters from all modules in order.
func (s *Sequential) Parameters() []*Parameter {
	return s.children.parameters()
}

// StateDict returns child parameters prefixed with their index.
func (s *Sequential) StateDict() map[string]*tensor.RawTensor {
	stateDict := make(map[string]*tensor.RawTensor)
	s.children.collect(stateDict)
	return stateDict
}

// LoadStateDict loads index-prefixed parameters into each module.
func (s *Sequential) LoadStateDict(stateDict map[string]*tensor.RawTensor) error {
	if err := CheckStateDict(s, stateDict); err != nil {
		return err
	}
	return s.children.load(stateDict)
}
