package loader

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"os"
	"sort"

	"github.com/born-ml/pretrained/internal/serialization"
	"github.com/born-ml/pretrained/internal/tensor"
)

// SafeTensors format:
// [8 bytes: header_size (uint64 LE)]
// [header_size bytes: JSON header]
// [tensor data: raw bytes]

// SafeTensorsHeader is the JSON header in SafeTensors format.
type SafeTensorsHeader struct {
	Metadata map[string]string
	Tensors  map[string]serialization.SafeTensorHeader
}

// UnmarshalJSON splits the reserved metadata entry from the tensor entries.
func (h *SafeTensorsHeader) UnmarshalJSON(data []byte) error {
	var rawMap map[string]json.RawMessage
	if err := json.Unmarshal(data, &rawMap); err != nil {
		return err
	}

	if metadataRaw, ok := rawMap[serialization.SafeTensorsMetadataKey]; ok {
		if err := json.Unmarshal(metadataRaw, &h.Metadata); err != nil {
			return fmt.Errorf("failed to unmarshal metadata: %w", err)
		}
	}

	h.Tensors = make(map[string]serialization.SafeTensorHeader, len(rawMap))
	for key, value := range rawMap {
		if key == serialization.SafeTensorsMetadataKey {
			continue
		}
		var info serialization.SafeTensorHeader
		if err := json.Unmarshal(value, &info); err != nil {
			return fmt.Errorf("failed to unmarshal tensor %s: %w", key, err)
		}
		h.Tensors[key] = info
	}
	return nil
}

// SafeTensorsReader reads SafeTensors format files.
type SafeTensorsReader struct {
	file       *os.File
	header     SafeTensorsHeader
	dataOffset int64 // Offset where tensor data starts
	dataSize   int64
}

// NewSafeTensorsReader opens a SafeTensors file and validates its header.
func NewSafeTensorsReader(path string) (*SafeTensorsReader, error) {
	//nolint:gosec // G304: File path comes from user input, which is expected for model loading
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open file: %w", err)
	}

	r, err := newSafeTensorsReader(file)
	if err != nil {
		_ = file.Close() // Best effort close on error
		return nil, err
	}
	return r, nil
}

func newSafeTensorsReader(file *os.File) (*SafeTensorsReader, error) {
	var headerSize uint64
	if err := binary.Read(file, binary.LittleEndian, &headerSize); err != nil {
		return nil, fmt.Errorf("failed to read header size: %w", err)
	}
	if headerSize > serialization.MaxHeaderSize {
		return nil, fmt.Errorf("%w: %d bytes", serialization.ErrHeaderTooLarge, headerSize)
	}

	headerBytes := make([]byte, headerSize)
	if _, err := io.ReadFull(file, headerBytes); err != nil {
		return nil, fmt.Errorf("failed to read header: %w", err)
	}

	var header SafeTensorsHeader
	if err := json.Unmarshal(headerBytes, &header); err != nil {
		return nil, fmt.Errorf("failed to parse header JSON: %w", err)
	}

	info, err := file.Stat()
	if err != nil {
		return nil, fmt.Errorf("failed to stat file: %w", err)
	}

	r := &SafeTensorsReader{
		file:       file,
		header:     header,
		dataOffset: int64(8 + headerSize), //nolint:gosec // G115: bounded by MaxHeaderSize
	}
	r.dataSize = info.Size() - r.dataOffset

	for name, t := range header.Tensors {
		if err := r.validate(name, t); err != nil {
			return nil, fmt.Errorf("validation failed: %w", err)
		}
	}
	return r, nil
}

// validate checks the dtype, shape and data range of one header entry.
func (r *SafeTensorsReader) validate(name string, t serialization.SafeTensorHeader) error {
	if err := serialization.ValidateTensorName(name); err != nil {
		return err
	}
	dtype, err := serialization.ParseSafeTensorsDType(t.DType)
	if err != nil {
		return &serialization.ValidationError{Type: "invalid_dtype", Tensor: name, Details: err.Error()}
	}
	shape, err := toShape(t.Shape)
	if err != nil {
		return &serialization.ValidationError{Type: "invalid_shape", Tensor: name, Details: err.Error()}
	}
	start, end := t.DataOffsets[0], t.DataOffsets[1]
	if start < 0 || end < start || end > r.dataSize {
		return &serialization.ValidationError{
			Type:    "invalid_offset",
			Tensor:  name,
			Details: fmt.Sprintf("range [%d, %d) outside data section of %d bytes", start, end, r.dataSize),
		}
	}
	size, err := shape.ByteSize(dtype)
	if err != nil {
		return &serialization.ValidationError{Type: "invalid_shape", Tensor: name, Details: err.Error()}
	}
	if want := int64(size); want != end-start {
		return &serialization.ValidationError{
			Type:    "size_mismatch",
			Tensor:  name,
			Details: fmt.Sprintf("%s%v needs %d bytes, header says %d", dtype, shape, want, end-start),
		}
	}
	return nil
}

func toShape(dims []int64) (tensor.Shape, error) {
	shape := make(tensor.Shape, len(dims))
	for i, d := range dims {
		if d > math.MaxInt {
			return nil, fmt.Errorf("dimension %d at index %d exceeds int", d, i)
		}
		shape[i] = int(d)
	}
	if err := shape.Validate(); err != nil {
		return nil, err
	}
	return shape, nil
}

// Close closes the SafeTensors file.
func (r *SafeTensorsReader) Close() error {
	if r.file == nil {
		return nil
	}
	err := r.file.Close()
	r.file = nil
	return err
}

// Format returns FormatSafeTensors.
func (r *SafeTensorsReader) Format() Format {
	return FormatSafeTensors
}

// Metadata returns the metadata map from the header.
func (r *SafeTensorsReader) Metadata() map[string]string {
	return r.header.Metadata
}

// TensorNames returns the tensor names in alphabetical order.
func (r *SafeTensorsReader) TensorNames() []string {
	names := make([]string, 0, len(r.header.Tensors))
	for name := range r.header.Tensors {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// TensorInfo describes a stored tensor. DType is the dtype on disk.
func (r *SafeTensorsReader) TensorInfo(name string) (TensorInfo, error) {
	t, ok := r.header.Tensors[name]
	if !ok {
		return TensorInfo{}, fmt.Errorf("%w: %s", serialization.ErrTensorNotFound, name)
	}
	dtype, _ := serialization.ParseSafeTensorsDType(t.DType) // validated on open
	shape, _ := toShape(t.Shape)
	return TensorInfo{
		Name:  name,
		DType: dtype,
		Shape: shape,
		Size:  t.DataOffsets[1] - t.DataOffsets[0],
	}, nil
}

// ReadTensorData reads raw tensor bytes for a given tensor name.
func (r *SafeTensorsReader) ReadTensorData(name string) ([]byte, error) {
	if r.file == nil {
		return nil, serialization.ErrClosed
	}
	t, ok := r.header.Tensors[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", serialization.ErrTensorNotFound, name)
	}

	data := make([]byte, t.DataOffsets[1]-t.DataOffsets[0])
	if _, err := r.file.ReadAt(data, r.dataOffset+t.DataOffsets[0]); err != nil {
		return nil, fmt.Errorf("failed to read tensor data: %w", err)
	}
	return data, nil
}

// LoadTensor loads a tensor placed on device. Float16 and BFloat16 tensors
// are upcast to Float32.
func (r *SafeTensorsReader) LoadTensor(name string, device tensor.Device) (*tensor.RawTensor, error) {
	info, err := r.TensorInfo(name)
	if err != nil {
		return nil, err
	}
	data, err := r.ReadTensorData(name)
	if err != nil {
		return nil, err
	}

	raw, err := tensor.FromBytes(data, info.Shape, info.DType, device)
	if err != nil {
		return nil, fmt.Errorf("tensor %s: %w", name, err)
	}
	if info.DType != tensor.Float16 && info.DType != tensor.BFloat16 {
		return raw, nil
	}

	wide, err := tensor.Convert(raw, tensor.Float32)
	raw.Release()
	if err != nil {
		return nil, fmt.Errorf("tensor %s: %w", name, err)
	}
	return wide, nil
}
