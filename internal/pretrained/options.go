package pretrained

import (
	"github.com/born-ml/pretrained/internal/loader"
	"github.com/born-ml/pretrained/internal/serialization"
	"github.com/born-ml/pretrained/internal/tensor"
)

// Option configures Load.
type Option func(*options)

type options struct {
	key           string
	device        tensor.Device
	ignoreMissing bool
	read          loader.ReadOptions
	err           error
}

func newOptions(opts []Option) *options {
	o := &options{
		device:        tensor.CPU,
		ignoreMissing: true,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// WithKey scopes the load to the sub-module at the dotted path key.
// A blank key targets the whole model.
func WithKey(key string) Option {
	return func(o *options) {
		o.key = key
	}
}

// WithDevice places loaded checkpoint tensors on device. Defaults to CPU.
func WithDevice(device tensor.Device) Option {
	return func(o *options) {
		o.device = device
	}
}

// WithLocation is WithDevice for a location string such as "cpu" or
// "cuda:1". An invalid location makes Load fail before reading anything.
func WithLocation(location string) Option {
	return func(o *options) {
		device, err := tensor.ParseDevice(location)
		if err != nil {
			o.err = err
			return
		}
		o.device = device
	}
}

// WithIgnoreMissing controls whether target keys absent from the checkpoint
// are tolerated (the default) or fail the load.
func WithIgnoreMissing(ignore bool) Option {
	return func(o *options) {
		o.ignoreMissing = ignore
	}
}

// WithReaderOptions sets validation and checksum behavior for .born files.
func WithReaderOptions(opts serialization.ReaderOptions) Option {
	return func(o *options) {
		o.read.Born = opts
	}
}

// WithMapper renames checkpoint keys before they are matched.
func WithMapper(mapper loader.KeyMapper) Option {
	return func(o *options) {
		o.read.Mapper = mapper
	}
}
