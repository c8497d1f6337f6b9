package loader

import (
	"fmt"
	"strings"
)

// KeyMapper renames checkpoint keys as they are read.
//
// An empty result drops the tensor.
type KeyMapper interface {
	MapName(name string) (string, error)
}

// KeyMapperFunc adapts a function to KeyMapper.
type KeyMapperFunc func(name string) (string, error)

// MapName calls f(name).
func (f KeyMapperFunc) MapName(name string) (string, error) {
	return f(name)
}

// RenameRule replaces the key prefix From with To.
type RenameRule struct {
	From string
	To   string
}

// ParseRenameRule parses the "from=to" form used on the command line.
// An empty "to" strips the prefix.
func ParseRenameRule(s string) (RenameRule, error) {
	from, to, ok := strings.Cut(s, "=")
	if !ok || from == "" {
		return RenameRule{}, fmt.Errorf("invalid rename rule %q (expected from=to)", s)
	}
	return RenameRule{From: from, To: to}, nil
}

// PrefixMapper applies the first matching RenameRule to each key. Keys that
// match no rule pass through unchanged.
//
// Checkpoints exported by other toolkits often nest the model one level
// deeper ("model.encoder.0.weight") or use different container names; a
// PrefixMapper lines them up with the target model:
//
//	mapper := loader.NewPrefixMapper(
//	    loader.RenameRule{From: "model.", To: ""},
//	    loader.RenameRule{From: "enc.", To: "encoder."},
//	)
type PrefixMapper struct {
	rules []RenameRule
}

// NewPrefixMapper creates a mapper from rules, tried in order.
func NewPrefixMapper(rules ...RenameRule) *PrefixMapper {
	return &PrefixMapper{rules: rules}
}

// MapName returns name with the first matching prefix replaced.
func (m *PrefixMapper) MapName(name string) (string, error) {
	for _, rule := range m.rules {
		if rest, ok := strings.CutPrefix(name, rule.From); ok {
			return rule.To + rest, nil
		}
	}
	return name, nil
}

// Rules returns the rename rules in order.
func (m *PrefixMapper) Rules() []RenameRule {
	return m.rules
}
