package nn

import (
	"fmt"
	"strings"

	"github.com/born-ml/pretrained/internal/tensor"
)

// Dict is a container of named child modules that may also own parameters
// directly. It models composite networks such as an ASR model with
// "encoder", "decoder" and "ctc" parts:
//
//	model := nn.NewDict().
//	    Add("encoder", encoder).
//	    Add("decoder", decoder)
//
// Keys of child state dicts are prefixed with "<name>.", direct parameters
// appear under their own name.
type Dict struct {
	params   []*Parameter
	children children
}

// NewDict creates an empty Dict.
func NewDict() *Dict {
	return &Dict{}
}

// Add registers module under name and returns d for chaining.
//
// Panics if name is empty, contains ".", or is already taken.
func (d *Dict) Add(name string, module Module) *Dict {
	if d.hasParameter(name) {
		panic(fmt.Sprintf("nn: %q is already a parameter", name))
	}
	d.children.add(name, module)
	return d
}

// AddParameter registers a parameter owned directly by the Dict.
func (d *Dict) AddParameter(name string, t *tensor.RawTensor) *Dict {
	if name == "" || strings.Contains(name, ".") {
		panic(fmt.Sprintf("nn: invalid parameter name %q", name))
	}
	if _, isChild := d.children.get(name); isChild || d.hasParameter(name) {
		panic(fmt.Sprintf("nn: duplicate name %q", name))
	}
	d.params = append(d.params, NewParameter(name, t))
	return d
}

func (d *Dict) hasParameter(name string) bool {
	for _, p := range d.params {
		if p.Name() == name {
			return true
		}
	}
	return false
}

// Submodule returns the child registered under name.
func (d *Dict) Submodule(name string) (Module, bool) {
	return d.children.get(name)
}

// Children returns the child names in registration order.
func (d *Dict) Children() []string {
	return d.children.list()
}

// Parameters returns direct parameters followed by those of every child.
func (d *Dict) Parameters() []*Parameter {
	params := append([]*Parameter(nil), d.params...)
	return append(params, d.children.parameters()...)
}

// StateDict returns direct parameters and prefixed child parameters.
func (d *Dict) StateDict() map[string]*tensor.RawTensor {
	stateDict := parameterStateDict(d.params)
	d.children.collect(stateDict)
	return stateDict
}

// LoadStateDict validates the whole tree, then loads direct parameters and
// every child.
func (d *Dict) LoadStateDict(stateDict map[string]*tensor.RawTensor) error {
	if err := CheckStateDict(d, stateDict); err != nil {
		return err
	}
	for _, p := range d.params {
		if err := p.Assign(stateDict[p.Name()]); err != nil {
			return err
		}
	}
	return d.children.load(stateDict)
}

// FromStateDict builds a Dict tree mirroring the dotted keys of stateDict.
//
// "encoder.0.weight" becomes Dict{encoder: Dict{0: Dict{weight}}}. The tensors
// are deep-copied, so the result owns its parameters. It is useful when a
// model is only known through a checkpoint of it.
func FromStateDict(stateDict map[string]*tensor.RawTensor) (*Dict, error) {
	d := NewDict()
	groups := make(map[string]map[string]*tensor.RawTensor)
	var order []string

	for _, key := range StateDictKeys(stateDict) {
		head, rest, nested := strings.Cut(key, ".")
		if head == "" || (nested && rest == "") {
			return nil, fmt.Errorf("invalid state dict key %q", key)
		}
		if !nested {
			if _, clash := groups[head]; clash {
				return nil, fmt.Errorf("key %q is both a parameter and a module", key)
			}
			d.AddParameter(head, stateDict[key].Copy())
			continue
		}
		if d.hasParameter(head) {
			return nil, fmt.Errorf("key %q is both a parameter and a module", key)
		}
		if groups[head] == nil {
			groups[head] = make(map[string]*tensor.RawTensor)
			order = append(order, head)
		}
		groups[head][rest] = stateDict[key]
	}

	for _, name := range order {
		child, err := FromStateDict(groups[name])
		if err != nil {
			return nil, fmt.Errorf("%s: %w", name, err)
		}
		d.Add(name, child)
	}
	return d, nil
}
