package pretrained

import (
	"strings"

	"github.com/born-ml/pretrained/internal/nn"
)

// Resolve walks the dotted path key from model and returns the sub-module it
// names together with its checkpoint key prefix.
//
// A blank key resolves to model itself with an empty prefix. Otherwise the
// prefix is the path followed by a dot, e.g. "encoder.layers.0.".
func Resolve(model nn.Module, key string) (nn.Module, string, error) {
	key = strings.TrimSpace(key)
	if key == "" {
		return model, "", nil
	}

	target := model
	segments := strings.Split(key, ".")
	for i, segment := range segments {
		container, ok := target.(nn.Container)
		if !ok {
			return nil, "", &AttributeError{Path: key, Segment: segment, Parent: strings.Join(segments[:i], ".")}
		}
		child, ok := container.Submodule(segment)
		if !ok {
			return nil, "", &AttributeError{Path: key, Segment: segment, Parent: strings.Join(segments[:i], ".")}
		}
		target = child
	}
	return target, key + ".", nil
}
