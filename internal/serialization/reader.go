package serialization

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/born-ml/pretrained/internal/tensor"
)

// ReaderOptions configures the behavior of BornReader.
type ReaderOptions struct {
	SkipChecksumValidation bool            // Skip v2 checksum validation (faster but less safe)
	ValidationLevel        ValidationLevel // Validation strictness level
	MaxDataSize            int64           // ReadFrom data section limit; 0 means DefaultMaxStreamDataSize
}

// DefaultMaxStreamDataSize bounds the data section ReadFrom accepts when
// ReaderOptions.MaxDataSize is unset.
const DefaultMaxStreamDataSize = 4 << 30 // 4GB

// prelude is the fixed-size part of a .born file before the JSON header.
type prelude struct {
	version    uint32
	flags      uint32
	headerSize uint64
	dataSize   uint64 // v2 only
	checksum   Checksum
	size       int64 // bytes consumed
}

// readPrelude reads the fixed header of a v1 or v2 file.
func readPrelude(r io.Reader) (prelude, error) {
	var p prelude

	head := make([]byte, 8)
	if _, err := io.ReadFull(r, head); err != nil {
		return p, fmt.Errorf("failed to read magic bytes: %w", err)
	}
	if string(head[0:4]) != MagicBytes {
		return p, ErrInvalidMagic
	}
	p.version = binary.LittleEndian.Uint32(head[4:8])

	switch p.version {
	case FormatVersion:
		rest := make([]byte, FixedHeaderSizeV1-8)
		if _, err := io.ReadFull(r, rest); err != nil {
			return p, fmt.Errorf("failed to read v1 header: %w", err)
		}
		p.flags = binary.LittleEndian.Uint32(rest[0:4])
		p.headerSize = binary.LittleEndian.Uint64(rest[4:12])
		p.size = FixedHeaderSizeV1
	case FormatVersionV2:
		rest := make([]byte, FixedHeaderSizeV2-8)
		if _, err := io.ReadFull(r, rest); err != nil {
			return p, fmt.Errorf("failed to read v2 header: %w", err)
		}
		// rest is offset by 8 from the fixed header layout.
		p.flags = binary.LittleEndian.Uint32(rest[0:4])
		p.headerSize = binary.LittleEndian.Uint64(rest[8:16])
		p.dataSize = binary.LittleEndian.Uint64(rest[16:24])
		copy(p.checksum[:], rest[ChecksumOffsetV2-8:ChecksumOffsetV2-8+ChecksumSize])
		p.size = FixedHeaderSizeV2
	default:
		return p, fmt.Errorf("%w: got %d, expected %d or %d", ErrUnsupportedVersion, p.version, FormatVersion, FormatVersionV2)
	}

	if p.headerSize > MaxHeaderSize {
		return p, ErrHeaderTooLarge
	}
	if p.dataSize > 1<<62 {
		return p, fmt.Errorf("data size too large: %d", p.dataSize)
	}
	return p, nil
}

// readHeader reads and decodes the JSON header following the prelude.
func readHeader(r io.Reader, p prelude) (Header, error) {
	var header Header
	headerBytes := make([]byte, p.headerSize)
	if _, err := io.ReadFull(r, headerBytes); err != nil {
		return header, fmt.Errorf("failed to read header: %w", err)
	}
	if err := json.Unmarshal(headerBytes, &header); err != nil {
		return header, fmt.Errorf("failed to parse header JSON: %w", err)
	}
	return header, nil
}

// dataOffset returns where the data section starts.
func (p prelude) dataOffset() int64 {
	//nolint:gosec // G115: headerSize bounded by MaxHeaderSize
	return alignedDataOffset(p.size + int64(p.headerSize))
}

// BornReader reads state dicts from .born files.
type BornReader struct {
	file       *os.File
	header     Header
	prelude    prelude
	index      map[string]int
	dataOffset int64
	dataSize   int64
	closed     bool
}

// NewBornReader opens a .born file with strict validation and checksum
// verification.
func NewBornReader(path string) (*BornReader, error) {
	return NewBornReaderWithOptions(path, ReaderOptions{ValidationLevel: ValidationStrict})
}

// NewBornReaderWithOptions opens a .born file with custom options.
func NewBornReaderWithOptions(path string, opts ReaderOptions) (*BornReader, error) {
	//nolint:gosec // G304: File path comes from user input, which is expected for model loading
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open file: %w", err)
	}

	r, err := newBornReader(file, opts)
	if err != nil {
		_ = file.Close() // Best effort close on error
		return nil, err
	}
	return r, nil
}

func newBornReader(file *os.File, opts ReaderOptions) (*BornReader, error) {
	p, err := readPrelude(file)
	if err != nil {
		return nil, fmt.Errorf("failed to parse header: %w", err)
	}
	header, err := readHeader(file, p)
	if err != nil {
		return nil, fmt.Errorf("failed to parse header: %w", err)
	}

	info, err := file.Stat()
	if err != nil {
		return nil, fmt.Errorf("failed to stat file: %w", err)
	}

	r := &BornReader{
		file:       file,
		header:     header,
		prelude:    p,
		dataOffset: p.dataOffset(),
		index:      make(map[string]int, len(header.Tensors)),
	}

	available := info.Size() - r.dataOffset
	if available < 0 {
		available = 0
	}
	r.dataSize = available
	if p.version == FormatVersionV2 {
		//nolint:gosec // G115: bounded by readPrelude
		if int64(p.dataSize) > available {
			return nil, fmt.Errorf("truncated file: data section needs %d bytes, %d available", p.dataSize, available)
		}
		r.dataSize = int64(p.dataSize) //nolint:gosec // G115: checked above
	}

	if err := ValidateHeader(&r.header, r.dataSize, opts.ValidationLevel); err != nil {
		return nil, fmt.Errorf("validation failed: %w", err)
	}

	if p.version == FormatVersionV2 && !opts.SkipChecksumValidation {
		computed, err := ComputeChecksumReader(io.NewSectionReader(file, r.dataOffset, r.dataSize))
		if err != nil {
			return nil, fmt.Errorf("failed to read tensor data for checksum: %w", err)
		}
		if err := ValidateChecksum(computed, p.checksum); err != nil {
			return nil, err
		}
	}

	for i, meta := range r.header.Tensors {
		r.index[meta.Name] = i
	}
	return r, nil
}

// Header returns the file header.
func (r *BornReader) Header() Header {
	return r.header
}

// Version returns the format version of the file.
func (r *BornReader) Version() uint32 {
	return r.prelude.version
}

// Flags returns the format flags of the file.
func (r *BornReader) Flags() uint32 {
	return r.prelude.flags
}

// Metadata returns the metadata map from the header.
func (r *BornReader) Metadata() map[string]string {
	return r.header.Metadata
}

// TensorNames returns the tensor names in file order.
func (r *BornReader) TensorNames() []string {
	names := make([]string, len(r.header.Tensors))
	for i, meta := range r.header.Tensors {
		names[i] = meta.Name
	}
	return names
}

// TensorInfo returns information about a specific tensor.
func (r *BornReader) TensorInfo(name string) (*TensorMeta, error) {
	i, ok := r.index[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrTensorNotFound, name)
	}
	meta := r.header.Tensors[i]
	return &meta, nil
}

// ReadTensorData reads raw tensor data for a given tensor name.
func (r *BornReader) ReadTensorData(name string) ([]byte, error) {
	if r.closed {
		return nil, ErrClosed
	}
	meta, err := r.TensorInfo(name)
	if err != nil {
		return nil, err
	}

	data := make([]byte, meta.Size)
	if _, err := r.file.ReadAt(data, r.dataOffset+meta.Offset); err != nil {
		return nil, fmt.Errorf("failed to read tensor data: %w", err)
	}
	return data, nil
}

// LoadTensor loads a single tensor placed on device.
func (r *BornReader) LoadTensor(name string, device tensor.Device) (*tensor.RawTensor, error) {
	data, err := r.ReadTensorData(name)
	if err != nil {
		return nil, err
	}
	meta, _ := r.TensorInfo(name)
	return meta.decode(data, device)
}

// ReadStateDict reads all tensors into a state dictionary.
func (r *BornReader) ReadStateDict(device tensor.Device) (map[string]*tensor.RawTensor, error) {
	if r.closed {
		return nil, ErrClosed
	}

	stateDict := make(map[string]*tensor.RawTensor, len(r.header.Tensors))
	for _, meta := range r.header.Tensors {
		raw, err := r.LoadTensor(meta.Name, device)
		if err != nil {
			return nil, fmt.Errorf("failed to load tensor %s: %w", meta.Name, err)
		}
		stateDict[meta.Name] = raw
	}
	return stateDict, nil
}

// Close closes the reader and the underlying file.
func (r *BornReader) Close() error {
	if r.closed {
		return nil
	}
	r.closed = true
	return r.file.Close()
}

// ReadFrom reads a v1 or v2 state dictionary from a stream.
func ReadFrom(reader io.Reader, device tensor.Device, opts ReaderOptions) (map[string]*tensor.RawTensor, Header, error) {
	p, err := readPrelude(reader)
	if err != nil {
		return nil, Header{}, err
	}
	header, err := readHeader(reader, p)
	if err != nil {
		return nil, Header{}, err
	}

	//nolint:gosec // G115: headerSize bounded by MaxHeaderSize
	headerEnd := p.size + int64(p.headerSize)
	if _, err := io.CopyN(io.Discard, reader, alignedDataOffset(headerEnd)-headerEnd); err != nil {
		return nil, Header{}, fmt.Errorf("failed to read padding: %w", err)
	}

	limit := opts.MaxDataSize
	if limit <= 0 {
		limit = DefaultMaxStreamDataSize
	}

	// v1 does not record the data size; it ends with the last tensor.
	dataSize := int64(p.dataSize) //nolint:gosec // G115: bounded by readPrelude
	if p.version == FormatVersion {
		for _, meta := range header.Tensors {
			if meta.Offset < 0 || meta.Size < 0 || meta.Offset > limit || meta.Size > limit-meta.Offset {
				return nil, Header{}, fmt.Errorf("%w: tensor %s at offset %d size %d exceeds %d bytes",
					ErrDataTooLarge, meta.Name, meta.Offset, meta.Size, limit)
			}
			dataSize = max(dataSize, meta.Offset+meta.Size)
		}
	}
	if dataSize > limit {
		return nil, Header{}, fmt.Errorf("%w: %d bytes, limit %d", ErrDataTooLarge, dataSize, limit)
	}
	if err := ValidateHeader(&header, dataSize, opts.ValidationLevel); err != nil {
		return nil, Header{}, fmt.Errorf("validation failed: %w", err)
	}

	// Grow with the bytes actually present rather than the declared size.
	data, err := io.ReadAll(io.LimitReader(reader, dataSize))
	if err != nil {
		return nil, Header{}, fmt.Errorf("failed to read tensor data: %w", err)
	}
	if int64(len(data)) != dataSize {
		return nil, Header{}, fmt.Errorf("failed to read tensor data: %w", io.ErrUnexpectedEOF)
	}
	if p.version == FormatVersionV2 && !opts.SkipChecksumValidation {
		if err := ValidateChecksum(ComputeChecksum(data), p.checksum); err != nil {
			return nil, Header{}, err
		}
	}

	stateDict := make(map[string]*tensor.RawTensor, len(header.Tensors))
	for _, meta := range header.Tensors {
		if meta.Offset < 0 || meta.Size < 0 || meta.Offset > dataSize || meta.Size > dataSize-meta.Offset {
			return nil, Header{}, fmt.Errorf("tensor %s lies outside the data section", meta.Name)
		}
		raw, err := meta.decode(data[meta.Offset:meta.Offset+meta.Size], device)
		if err != nil {
			return nil, Header{}, err
		}
		stateDict[meta.Name] = raw
	}
	return stateDict, header, nil
}
