package nn

import (
	"fmt"
	"sort"
	"strings"

	"github.com/born-ml/pretrained/internal/tensor"
)

// CheckStateDict validates stateDict against the module's current state dict
// without writing anything.
//
// Every key of the module must be present with a compatible tensor and no
// other keys may appear.
func CheckStateDict(m Module, stateDict map[string]*tensor.RawTensor) error {
	current := m.StateDict()

	for _, key := range StateDictKeys(current) {
		src, ok := stateDict[key]
		if !ok {
			return fmt.Errorf("%w: %s", ErrMissingParameter, key)
		}
		if err := checkCompatible(key, current[key], src); err != nil {
			return err
		}
	}

	for _, key := range StateDictKeys(stateDict) {
		if _, ok := current[key]; !ok {
			return fmt.Errorf("%w: %s", ErrUnexpectedKey, key)
		}
	}

	return nil
}

// StateDictKeys returns the keys of stateDict in sorted order.
func StateDictKeys(stateDict map[string]*tensor.RawTensor) []string {
	keys := make([]string, 0, len(stateDict))
	for k := range stateDict {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// CloneStateDict returns deep copies of every tensor in stateDict.
func CloneStateDict(stateDict map[string]*tensor.RawTensor) map[string]*tensor.RawTensor {
	out := make(map[string]*tensor.RawTensor, len(stateDict))
	for k, raw := range stateDict {
		out[k] = raw.Copy()
	}
	return out
}

// WithPrefix returns a state dict whose keys are prefixed with prefix.
func WithPrefix(stateDict map[string]*tensor.RawTensor, prefix string) map[string]*tensor.RawTensor {
	out := make(map[string]*tensor.RawTensor, len(stateDict))
	for k, raw := range stateDict {
		out[prefix+k] = raw
	}
	return out
}

// StripPrefix returns the entries of stateDict whose keys start with prefix,
// with the prefix removed. An empty prefix returns a shallow copy.
func StripPrefix(stateDict map[string]*tensor.RawTensor, prefix string) map[string]*tensor.RawTensor {
	out := make(map[string]*tensor.RawTensor)
	for k, raw := range stateDict {
		if rest, ok := strings.CutPrefix(k, prefix); ok && rest != "" {
			out[rest] = raw
		}
	}
	return out
}

// loadParameters implements LoadStateDict for leaf modules.
func loadParameters(m Module, params []*Parameter, stateDict map[string]*tensor.RawTensor) error {
	if err := CheckStateDict(m, stateDict); err != nil {
		return err
	}
	for _, p := range params {
		if err := p.Assign(stateDict[p.Name()]); err != nil {
			return err
		}
	}
	return nil
}

// parameterStateDict implements StateDict for leaf modules.
func parameterStateDict(params []*Parameter) map[string]*tensor.RawTensor {
	stateDict := make(map[string]*tensor.RawTensor, len(params))
	for _, p := range params {
		stateDict[p.Name()] = p.Tensor()
	}
	return stateDict
}
