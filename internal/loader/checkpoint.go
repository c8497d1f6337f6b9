package loader

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/born-ml/pretrained/internal/serialization"
	"github.com/born-ml/pretrained/internal/tensor"
)

// Format represents the checkpoint file format.
type Format int

// Supported checkpoint formats.
const (
	FormatUnknown Format = iota
	FormatBorn
	FormatSafeTensors
)

// String returns the format name.
func (f Format) String() string {
	switch f {
	case FormatBorn:
		return "born"
	case FormatSafeTensors:
		return "safetensors"
	default:
		return "unknown"
	}
}

// TensorInfo describes a tensor stored in a checkpoint.
type TensorInfo struct {
	Name  string
	DType tensor.DataType // dtype on disk
	Shape tensor.Shape
	Size  int64 // bytes on disk
}

// CheckpointReader provides a unified interface over checkpoint formats.
type CheckpointReader interface {
	// Format returns the checkpoint format.
	Format() Format

	// Metadata returns the string metadata stored with the checkpoint.
	Metadata() map[string]string

	// TensorNames returns all tensor names in the checkpoint.
	TensorNames() []string

	// TensorInfo describes a tensor without reading its data.
	TensorInfo(name string) (TensorInfo, error)

	// LoadTensor reads a tensor and places it on device.
	LoadTensor(name string, device tensor.Device) (*tensor.RawTensor, error)

	// Close closes the underlying file.
	Close() error
}

// ReadOptions configures checkpoint reading.
type ReadOptions struct {
	Born               serialization.ReaderOptions // .born validation and checksum
	Mapper             KeyMapper                   // optional key renaming, applied after filtering
	KeepOptimizerState bool                        // keep "optimizer." keys of training checkpoints
}

// DetectFormat identifies the format of the file at path from its leading
// bytes, falling back to the file extension.
func DetectFormat(path string) (Format, error) {
	//nolint:gosec // G304: File path comes from user input, which is expected for model loading
	file, err := os.Open(path)
	if err != nil {
		return FormatUnknown, fmt.Errorf("failed to open file: %w", err)
	}
	defer func() { _ = file.Close() }()

	head := make([]byte, 16)
	n, err := io.ReadFull(file, head)
	if err != nil && err != io.ErrUnexpectedEOF && err != io.EOF {
		return FormatUnknown, fmt.Errorf("failed to read file: %w", err)
	}
	if f := sniff(head[:n]); f != FormatUnknown {
		return f, nil
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".born":
		return FormatBorn, nil
	case ".safetensors":
		return FormatSafeTensors, nil
	}
	return FormatUnknown, fmt.Errorf("unrecognized checkpoint format: %s", path)
}

// sniff recognizes the .born magic and the opening of a SafeTensors JSON
// header after its 8-byte length.
func sniff(head []byte) Format {
	if bytes.HasPrefix(head, []byte(serialization.MagicBytes)) {
		return FormatBorn
	}
	if len(head) > 8 {
		rest := bytes.TrimLeft(head[8:], " \t\r\n")
		if len(rest) > 0 && rest[0] == '{' {
			return FormatSafeTensors
		}
	}
	return FormatUnknown
}

// OpenCheckpoint opens a checkpoint and auto-detects its format.
//
// Example:
//
//	ckpt, err := loader.OpenCheckpoint("encoder.safetensors", serialization.ReaderOptions{})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer ckpt.Close()
//
//	for _, name := range ckpt.TensorNames() {
//	    info, _ := ckpt.TensorInfo(name)
//	    fmt.Println(name, info.DType, info.Shape)
//	}
func OpenCheckpoint(path string, opts serialization.ReaderOptions) (CheckpointReader, error) {
	format, err := DetectFormat(path)
	if err != nil {
		return nil, err
	}

	switch format {
	case FormatBorn:
		r, err := serialization.NewBornReaderWithOptions(path, opts)
		if err != nil {
			return nil, err
		}
		return &bornCheckpoint{reader: r}, nil
	case FormatSafeTensors:
		return NewSafeTensorsReader(path)
	default:
		return nil, fmt.Errorf("unsupported checkpoint format: %s", format)
	}
}

// ReadCheckpoint reads every tensor of the checkpoint at path onto device.
func ReadCheckpoint(path string, device tensor.Device, opts ReadOptions) (map[string]*tensor.RawTensor, error) {
	ckpt, err := OpenCheckpoint(path, opts.Born)
	if err != nil {
		return nil, err
	}
	defer func() { _ = ckpt.Close() }()

	dropOptimizer := false
	if b, ok := ckpt.(*bornCheckpoint); ok {
		h := b.reader.Header()
		dropOptimizer = h.IsCheckpoint() && !opts.KeepOptimizerState
	}

	stateDict := make(map[string]*tensor.RawTensor)
	for _, name := range ckpt.TensorNames() {
		if dropOptimizer && strings.HasPrefix(name, serialization.OptimizerPrefix) {
			continue
		}
		key := name
		if opts.Mapper != nil {
			if key, err = opts.Mapper.MapName(name); err != nil {
				return nil, fmt.Errorf("failed to map tensor %s: %w", name, err)
			}
			if key == "" {
				continue
			}
			if _, dup := stateDict[key]; dup {
				return nil, fmt.Errorf("tensors map to the same key %q", key)
			}
		}
		raw, err := ckpt.LoadTensor(name, device)
		if err != nil {
			return nil, fmt.Errorf("failed to load tensor %s: %w", name, err)
		}
		stateDict[key] = raw
	}
	return stateDict, nil
}

// bornCheckpoint adapts a BornReader to CheckpointReader.
type bornCheckpoint struct {
	reader *serialization.BornReader
}

func (b *bornCheckpoint) Format() Format {
	return FormatBorn
}

func (b *bornCheckpoint) Metadata() map[string]string {
	return b.reader.Metadata()
}

func (b *bornCheckpoint) TensorNames() []string {
	return b.reader.TensorNames()
}

func (b *bornCheckpoint) TensorInfo(name string) (TensorInfo, error) {
	meta, err := b.reader.TensorInfo(name)
	if err != nil {
		return TensorInfo{}, err
	}
	dtype, err := tensor.ParseDataType(meta.DType)
	if err != nil {
		return TensorInfo{}, fmt.Errorf("tensor %s: %w", name, err)
	}
	return TensorInfo{
		Name:  name,
		DType: dtype,
		Shape: tensor.Shape(meta.Shape).Clone(),
		Size:  meta.Size,
	}, nil
}

func (b *bornCheckpoint) LoadTensor(name string, device tensor.Device) (*tensor.RawTensor, error) {
	return b.reader.LoadTensor(name, device)
}

func (b *bornCheckpoint) Close() error {
	return b.reader.Close()
}
