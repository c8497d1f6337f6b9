package serialization

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sort"

	"github.com/born-ml/pretrained/internal/tensor"
)

// SafeTensorsMetadataKey is the reserved header entry for string metadata.
const SafeTensorsMetadataKey = "__metadata__"

// SafeTensorHeader represents a tensor in the SafeTensors header.
type SafeTensorHeader struct {
	DType       string   `json:"dtype"`
	Shape       []int64  `json:"shape"`
	DataOffsets [2]int64 `json:"data_offsets"`
}

var safeTensorsDTypes = map[tensor.DataType]string{
	tensor.Float32:  "F32",
	tensor.Float64:  "F64",
	tensor.Int32:    "I32",
	tensor.Int64:    "I64",
	tensor.Uint8:    "U8",
	tensor.Bool:     "BOOL",
	tensor.Float16:  "F16",
	tensor.BFloat16: "BF16",
}

// SafeTensorsDType returns the SafeTensors dtype string for dt.
func SafeTensorsDType(dt tensor.DataType) (string, error) {
	s, ok := safeTensorsDTypes[dt]
	if !ok {
		return "", fmt.Errorf("dtype %s has no SafeTensors equivalent", dt)
	}
	return s, nil
}

// ParseSafeTensorsDType is the inverse of SafeTensorsDType.
func ParseSafeTensorsDType(s string) (tensor.DataType, error) {
	for dt, name := range safeTensorsDTypes {
		if name == s {
			return dt, nil
		}
	}
	return 0, fmt.Errorf("unsupported SafeTensors dtype: %s", s)
}

// WriteSafeTensors writes tensors to a SafeTensors file.
func WriteSafeTensors(path string, stateDict map[string]*tensor.RawTensor, metadata map[string]string) (err error) {
	//nolint:gosec // G304: File path comes from user input, which is expected for model saving
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create file: %w", err)
	}
	defer func() {
		if closeErr := file.Close(); closeErr != nil && err == nil {
			err = closeErr
		}
	}()
	return WriteSafeTensorsTo(file, stateDict, metadata)
}

// WriteSafeTensorsTo writes tensors in SafeTensors format to w.
//
// Tensors are written in alphabetical order by name.
func WriteSafeTensorsTo(w io.Writer, stateDict map[string]*tensor.RawTensor, metadata map[string]string) error {
	names := make([]string, 0, len(stateDict))
	for name := range stateDict {
		if name == SafeTensorsMetadataKey {
			return fmt.Errorf("tensor name %q is reserved", name)
		}
		names = append(names, name)
	}
	sort.Strings(names)

	header := make(map[string]any, len(names)+1)
	if len(metadata) > 0 {
		header[SafeTensorsMetadataKey] = metadata
	}

	var offset int64
	for _, name := range names {
		raw := stateDict[name]
		dtype, err := SafeTensorsDType(raw.DType())
		if err != nil {
			return fmt.Errorf("tensor %s: %w", name, err)
		}
		shape := make([]int64, len(raw.Shape()))
		for i, dim := range raw.Shape() {
			shape[i] = int64(dim)
		}
		size := int64(raw.ByteSize())
		header[name] = SafeTensorHeader{
			DType:       dtype,
			Shape:       shape,
			DataOffsets: [2]int64{offset, offset + size},
		}
		offset += size
	}

	headerJSON, err := json.Marshal(header)
	if err != nil {
		return fmt.Errorf("failed to marshal header: %w", err)
	}

	if err := binary.Write(w, binary.LittleEndian, uint64(len(headerJSON))); err != nil {
		return fmt.Errorf("failed to write header size: %w", err)
	}
	if _, err := w.Write(headerJSON); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}
	for _, name := range names {
		raw := stateDict[name]
		if _, err := w.Write(raw.Data()[:raw.ByteSize()]); err != nil {
			return fmt.Errorf("failed to write tensor %s: %w", name, err)
		}
	}
	return nil
}
