package pretrained

import (
	"fmt"
	"sort"
	"strings"

	"github.com/born-ml/pretrained/internal/loader"
	"github.com/born-ml/pretrained/internal/nn"
	"github.com/born-ml/pretrained/internal/tensor"
)

// Load reads the checkpoint at path and merges it into model.
//
// The target sub-module is resolved before the file is opened; an unknown
// path fails with an *AttributeError and leaves model untouched. For each key
// of the target's state dict the checkpoint entry prefix+key replaces the
// current value. Missing entries keep their values, or fail with a
// *MissingKeyError when WithIgnoreMissing(false) is given.
//
// Load validates the merged state dict in full before writing, so any error
// leaves model unchanged.
func Load(path string, model nn.Module, opts ...Option) (*Report, error) {
	o := newOptions(opts)
	if o.err != nil {
		return nil, o.err
	}

	target, prefix, err := Resolve(model, o.key)
	if err != nil {
		return nil, err
	}

	checkpoint, err := loader.ReadCheckpoint(path, o.device, o.read)
	if err != nil {
		return nil, fmt.Errorf("failed to read checkpoint %s: %w", path, err)
	}

	report, err := merge(target, prefix, checkpoint, o.ignoreMissing)
	if err != nil {
		return nil, fmt.Errorf("failed to load %s: %w", path, err)
	}
	report.Path = path
	return report, nil
}

// LoadStateDict merges an in-memory checkpoint into model the way Load does.
// Reader options are ignored.
func LoadStateDict(checkpoint map[string]*tensor.RawTensor, model nn.Module, opts ...Option) (*Report, error) {
	o := newOptions(opts)
	if o.err != nil {
		return nil, o.err
	}

	target, prefix, err := Resolve(model, o.key)
	if err != nil {
		return nil, err
	}
	return merge(target, prefix, checkpoint, o.ignoreMissing)
}

// merge overlays the checkpoint entries under prefix on the target's state
// dict and applies the result.
func merge(target nn.Module, prefix string, checkpoint map[string]*tensor.RawTensor, ignoreMissing bool) (*Report, error) {
	current := target.StateDict()
	report := &Report{Prefix: prefix}

	merged := make(map[string]*tensor.RawTensor, len(current))
	for _, key := range nn.StateDictKeys(current) {
		if src, ok := checkpoint[prefix+key]; ok {
			merged[key] = src
			report.Loaded = append(report.Loaded, key)
			continue
		}
		merged[key] = current[key]
		report.Missing = append(report.Missing, key)
	}

	if !ignoreMissing && len(report.Missing) > 0 {
		keys := make([]string, len(report.Missing))
		for i, key := range report.Missing {
			keys[i] = prefix + key
		}
		return nil, &MissingKeyError{Prefix: prefix, Keys: keys}
	}

	for name := range checkpoint {
		rest, ok := strings.CutPrefix(name, prefix)
		if !ok {
			continue
		}
		if _, used := current[rest]; !used {
			report.Unused = append(report.Unused, rest)
		}
	}
	sort.Strings(report.Unused)

	if err := nn.CheckStateDict(target, merged); err != nil {
		return nil, err
	}
	if err := target.LoadStateDict(merged); err != nil {
		return nil, err
	}
	return report, nil
}
