package pretrained

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/born-ml/pretrained/internal/loader"
	"github.com/born-ml/pretrained/internal/nn"
)

// Plan is an ordered list of loads, usually read from YAML:
//
//	device: cpu
//	entries:
//	  - path: asr.born
//	    key: encoder
//	  - path: lm.safetensors
//	    key: decoder
//	    ignore_missing: false
//	    rename: ["model.="]
type Plan struct {
	Device  string      `yaml:"device,omitempty"`
	Entries []PlanEntry `yaml:"entries"`
}

// PlanEntry is one load of a Plan.
type PlanEntry struct {
	Path          string   `yaml:"path"`
	Key           string   `yaml:"key,omitempty"`
	IgnoreMissing *bool    `yaml:"ignore_missing,omitempty"` // nil inherits the caller's setting
	Rename        []string `yaml:"rename,omitempty"`         // "from=to" prefix rules
}

// LoadPlan reads a YAML plan from path. Relative checkpoint paths are
// resolved against the plan's directory.
func LoadPlan(path string) (*Plan, error) {
	//nolint:gosec // G304: File path comes from user input, which is expected for plan loading
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read plan: %w", err)
	}
	plan, err := ParsePlan(data)
	if err != nil {
		return nil, fmt.Errorf("parse plan %s: %w", path, err)
	}

	dir := filepath.Dir(path)
	for i := range plan.Entries {
		if !filepath.IsAbs(plan.Entries[i].Path) {
			plan.Entries[i].Path = filepath.Join(dir, plan.Entries[i].Path)
		}
	}
	return plan, nil
}

// ParsePlan decodes and validates a YAML plan.
func ParsePlan(data []byte) (*Plan, error) {
	var plan Plan
	if err := yaml.Unmarshal(data, &plan); err != nil {
		return nil, err
	}
	if err := plan.Validate(); err != nil {
		return nil, err
	}
	return &plan, nil
}

// Validate checks that every entry names a checkpoint and has well-formed
// rename rules.
func (p *Plan) Validate() error {
	if len(p.Entries) == 0 {
		return errors.New("plan has no entries")
	}
	for i, entry := range p.Entries {
		if strings.TrimSpace(entry.Path) == "" {
			return fmt.Errorf("entry %d: path is required", i)
		}
		if _, err := entry.mapper(); err != nil {
			return fmt.Errorf("entry %d: %w", i, err)
		}
	}
	return nil
}

// mapper builds the entry's key mapper, or nil when it has no rename rules.
func (e PlanEntry) mapper() (loader.KeyMapper, error) {
	if len(e.Rename) == 0 {
		return nil, nil
	}
	rules := make([]loader.RenameRule, len(e.Rename))
	for i, s := range e.Rename {
		rule, err := loader.ParseRenameRule(s)
		if err != nil {
			return nil, err
		}
		rules[i] = rule
	}
	return loader.NewPrefixMapper(rules...), nil
}

// ParseInitParam parses the compact "path:key" form of a plan entry. The key
// is optional; "model.born" loads into the whole model.
//
// A colon followed by a path separator belongs to the path, so Windows drive
// letters ("C:\ckpt\asr.born") are kept intact.
func ParseInitParam(s string) (PlanEntry, error) {
	s = strings.TrimSpace(s)
	path, key := s, ""
	if i := strings.LastIndex(s, ":"); i >= 0 && !strings.ContainsAny(s[i+1:], `/\`) {
		path, key = s[:i], s[i+1:]
	}
	if path == "" {
		return PlanEntry{}, fmt.Errorf("invalid init param %q: path is required", s)
	}
	return PlanEntry{Path: path, Key: key}, nil
}

// ApplyPlan runs Load for every entry of plan in order. opts apply to every
// entry before the entry's own settings.
//
// The first failure aborts the plan. Entries applied before it stay applied.
func ApplyPlan(model nn.Module, plan *Plan, opts ...Option) ([]*Report, error) {
	if err := plan.Validate(); err != nil {
		return nil, err
	}

	base := opts
	if plan.Device != "" {
		base = append(base[:len(base):len(base)], WithLocation(plan.Device))
	}

	reports := make([]*Report, 0, len(plan.Entries))
	for i, entry := range plan.Entries {
		entryOpts := append(base[:len(base):len(base)], WithKey(entry.Key))
		if entry.IgnoreMissing != nil {
			entryOpts = append(entryOpts, WithIgnoreMissing(*entry.IgnoreMissing))
		}
		mapper, _ := entry.mapper() // checked by Validate
		if mapper != nil {
			entryOpts = append(entryOpts, WithMapper(mapper))
		}

		report, err := Load(entry.Path, model, entryOpts...)
		if err != nil {
			return reports, fmt.Errorf("plan entry %d (%s): %w", i, entry.Path, err)
		}
		reports = append(reports, report)
	}
	return reports, nil
}
