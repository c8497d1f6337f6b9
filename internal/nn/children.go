package nn

import (
	"fmt"
	"strings"

	"github.com/born-ml/pretrained/internal/tensor"
)

// children is the ordered child registry shared by Sequential and Dict.
type children struct {
	names   []string
	modules map[string]Module
}

func (c *children) add(name string, m Module) {
	if name == "" || strings.Contains(name, ".") {
		panic(fmt.Sprintf("nn: invalid child name %q", name))
	}
	if m == nil {
		panic(fmt.Sprintf("nn: nil module for child %q", name))
	}
	if c.modules == nil {
		c.modules = make(map[string]Module)
	}
	if _, dup := c.modules[name]; dup {
		panic(fmt.Sprintf("nn: duplicate child %q", name))
	}
	c.names = append(c.names, name)
	c.modules[name] = m
}

func (c *children) get(name string) (Module, bool) {
	m, ok := c.modules[name]
	return m, ok
}

func (c *children) list() []string {
	return append([]string(nil), c.names...)
}

func (c *children) parameters() []*Parameter {
	var params []*Parameter
	for _, name := range c.names {
		params = append(params, c.modules[name].Parameters()...)
	}
	return params
}

// collect adds every child key to stateDict as "<child>.<key>".
func (c *children) collect(stateDict map[string]*tensor.RawTensor) {
	for _, name := range c.names {
		for key, raw := range c.modules[name].StateDict() {
			stateDict[name+"."+key] = raw
		}
	}
}

// load routes "<child>.<key>" entries to each child. The caller has already
// validated the whole state dict.
func (c *children) load(stateDict map[string]*tensor.RawTensor) error {
	for _, name := range c.names {
		sub := StripPrefix(stateDict, name+".")
		if len(sub) == 0 {
			continue
		}
		if err := c.modules[name].LoadStateDict(sub); err != nil {
			return fmt.Errorf("failed to load module %s: %w", name, err)
		}
	}
	return nil
}
