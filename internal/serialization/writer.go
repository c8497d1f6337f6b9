package serialization

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sort"
	"time"

	"github.com/born-ml/pretrained/internal/tensor"
)

// producerVersion is recorded in the born_version header field.
const producerVersion = "pretrained-0.1.0"

// WriteOptions configures how a state dict is written to the .born format.
type WriteOptions struct {
	Version    int               // FormatVersion or FormatVersionV2; zero means v2
	ModelType  string            // free-form model type, e.g. "Encoder"
	Metadata   map[string]string // custom metadata
	Checkpoint *CheckpointMeta   // training state, optional
}

// BornWriter writes state dicts to a .born file.
type BornWriter struct {
	file   *os.File
	closed bool
}

// NewBornWriter creates a new .born file writer.
func NewBornWriter(path string) (*BornWriter, error) {
	//nolint:gosec // G304: File path comes from user input, which is expected for model saving
	file, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("failed to create file: %w", err)
	}
	return &BornWriter{file: file}, nil
}

// WriteStateDict writes stateDict to the file.
func (w *BornWriter) WriteStateDict(stateDict map[string]*tensor.RawTensor, opts WriteOptions) error {
	if w.closed {
		return ErrClosed
	}
	return WriteTo(w.file, stateDict, opts)
}

// Close closes the writer and the underlying file.
func (w *BornWriter) Close() error {
	if w.closed {
		return nil
	}
	w.closed = true
	return w.file.Close()
}

// WriteFile writes stateDict to path in .born format.
func WriteFile(path string, stateDict map[string]*tensor.RawTensor, opts WriteOptions) (err error) {
	writer, err := NewBornWriter(path)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := writer.Close(); closeErr != nil && err == nil {
			err = closeErr
		}
	}()
	return writer.WriteStateDict(stateDict, opts)
}

// WriteTo writes stateDict in .born format to an io.Writer.
//
// Tensors are laid out in name order so identical state dicts produce
// identical data sections (and checksums).
func WriteTo(w io.Writer, stateDict map[string]*tensor.RawTensor, opts WriteOptions) error {
	version := opts.Version
	if version == 0 {
		version = FormatVersionV2
	}
	if version != FormatVersion && version != FormatVersionV2 {
		return fmt.Errorf("%w: %d", ErrUnsupportedVersion, version)
	}

	header, data := layout(stateDict, opts)
	header.FormatVersion = version

	headerJSON, err := json.Marshal(header)
	if err != nil {
		return fmt.Errorf("failed to marshal header: %w", err)
	}
	headerSize := uint64(len(headerJSON))

	flags := uint32(0)
	if len(header.Metadata) > 0 {
		flags |= FlagHasMetadata
	}
	if header.IsCheckpoint() {
		flags |= FlagHasOptimizer
	}

	var fixed []byte
	if version == FormatVersionV2 {
		fixed = make([]byte, FixedHeaderSizeV2)
		copy(fixed[0:4], MagicBytes)
		binary.LittleEndian.PutUint32(fixed[4:8], FormatVersionV2)
		binary.LittleEndian.PutUint32(fixed[8:12], flags)
		// 0x0C-0x0F reserved
		binary.LittleEndian.PutUint64(fixed[16:24], headerSize)
		binary.LittleEndian.PutUint64(fixed[24:32], uint64(len(data)))
		checksum := ComputeChecksum(data)
		copy(fixed[ChecksumOffsetV2:ChecksumOffsetV2+ChecksumSize], checksum[:])
	} else {
		fixed = make([]byte, FixedHeaderSizeV1)
		copy(fixed[0:4], MagicBytes)
		binary.LittleEndian.PutUint32(fixed[4:8], FormatVersion)
		binary.LittleEndian.PutUint32(fixed[8:12], flags)
		binary.LittleEndian.PutUint64(fixed[12:20], headerSize)
	}

	//nolint:gosec // G115: headerSize is bounded by MaxHeaderSize on read, small on write
	headerEnd := int64(len(fixed)) + int64(headerSize)
	padding := make([]byte, alignedDataOffset(headerEnd)-headerEnd)

	for _, chunk := range [][]byte{fixed, headerJSON, padding, data} {
		if _, err := w.Write(chunk); err != nil {
			return fmt.Errorf("failed to write: %w", err)
		}
	}
	return nil
}

// layout builds the header tensor table and the concatenated data section.
func layout(stateDict map[string]*tensor.RawTensor, opts WriteOptions) (Header, []byte) {
	names := make([]string, 0, len(stateDict))
	total := 0
	for name, raw := range stateDict {
		names = append(names, name)
		total += raw.ByteSize()
	}
	sort.Strings(names)

	header := Header{
		BornVersion:    producerVersion,
		ModelType:      opts.ModelType,
		CreatedAt:      time.Now().UTC(),
		Tensors:        make([]TensorMeta, 0, len(names)),
		Metadata:       opts.Metadata,
		CheckpointMeta: opts.Checkpoint,
	}
	if header.Metadata == nil {
		header.Metadata = make(map[string]string)
	}

	data := make([]byte, 0, total)
	for _, name := range names {
		raw := stateDict[name]
		size := raw.ByteSize()
		header.Tensors = append(header.Tensors, TensorMeta{
			Name:   name,
			DType:  raw.DType().String(),
			Shape:  []int(raw.Shape().Clone()),
			Offset: int64(len(data)),
			Size:   int64(size),
		})
		data = append(data, raw.Data()[:size]...)
	}
	return header, data
}
