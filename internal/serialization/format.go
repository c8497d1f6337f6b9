package serialization

import (
	"fmt"
	"time"

	"github.com/born-ml/pretrained/internal/tensor"
)

// Format constants.
const (
	MagicBytes        = "BORN"
	FormatVersion     = 1    // v1: variable header, no checksum
	FormatVersionV2   = 2    // v2: fixed 64-byte header with SHA-256 checksum
	HeaderAlignment   = 64   // tensor data starts on a 64-byte boundary
	FixedHeaderSizeV1 = 20   // magic + version + flags + header size
	FixedHeaderSizeV2 = 64   // v2 fixed header size (0x40 bytes)
	ChecksumSize      = 32   // SHA-256 checksum size (32 bytes)
	ChecksumOffsetV2  = 0x20 // Checksum offset in v2 fixed header
)

// Flags for the .born format.
const (
	FlagCompressed   uint32 = 1 << 0 // reserved, never set by this package
	FlagHasOptimizer uint32 = 1 << 1
	FlagHasMetadata  uint32 = 1 << 2
)

// OptimizerPrefix is the key namespace a training checkpoint uses for
// optimizer state, next to the model parameters.
const OptimizerPrefix = "optimizer."

// Header represents the JSON header in a .born file.
type Header struct {
	FormatVersion  int               `json:"format_version"`
	BornVersion    string            `json:"born_version"`
	ModelType      string            `json:"model_type"`
	CreatedAt      time.Time         `json:"created_at"`
	Tensors        []TensorMeta      `json:"tensors"`
	Metadata       map[string]string `json:"metadata"`
	CheckpointMeta *CheckpointMeta   `json:"checkpoint,omitempty"`
}

// IsCheckpoint reports whether the file is a training checkpoint.
func (h *Header) IsCheckpoint() bool {
	return h.CheckpointMeta != nil && h.CheckpointMeta.IsCheckpoint
}

// CheckpointMeta contains training state information for checkpoints.
type CheckpointMeta struct {
	IsCheckpoint    bool           `json:"is_checkpoint"`
	Epoch           int            `json:"epoch"`
	Step            int64          `json:"step"`
	Loss            float64        `json:"loss"`
	OptimizerType   string         `json:"optimizer_type"`
	OptimizerConfig map[string]any `json:"optimizer_config"`
	TrainingMeta    map[string]any `json:"training_meta"`
}

// TensorMeta describes a tensor in the .born file.
type TensorMeta struct {
	Name   string `json:"name"`  // e.g. "encoder.0.weight"
	DType  string `json:"dtype"` // tensor.DataType.String()
	Shape  []int  `json:"shape"`
	Offset int64  `json:"offset"` // bytes from the start of the data section
	Size   int64  `json:"size"`   // bytes
}

// decode converts the raw bytes of t into a RawTensor placed on device.
func (m *TensorMeta) decode(data []byte, device tensor.Device) (*tensor.RawTensor, error) {
	dtype, err := tensor.ParseDataType(m.DType)
	if err != nil {
		return nil, fmt.Errorf("tensor %s: %w", m.Name, err)
	}
	raw, err := tensor.FromBytes(data, tensor.Shape(m.Shape), dtype, device)
	if err != nil {
		return nil, fmt.Errorf("tensor %s: %w", m.Name, err)
	}
	return raw, nil
}

// alignedDataOffset returns the start of the data section for a JSON header
// ending at headerEnd.
func alignedDataOffset(headerEnd int64) int64 {
	padding := (HeaderAlignment - (headerEnd % HeaderAlignment)) % HeaderAlignment
	return headerEnd + padding
}
