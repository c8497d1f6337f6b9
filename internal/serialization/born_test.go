package serialization

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/born-ml/pretrained/internal/tensor"
)

func testStateDict(t *testing.T) map[string]*tensor.RawTensor {
	t.Helper()
	weight, err := tensor.FromSlice([]float32{1, 2, 3, 4, 5, 6}, tensor.Shape{2, 3}, tensor.CPU)
	if err != nil {
		t.Fatal(err)
	}
	steps, err := tensor.FromSlice([]int64{42}, tensor.Shape{1}, tensor.CPU)
	if err != nil {
		t.Fatal(err)
	}
	return map[string]*tensor.RawTensor{
		"encoder.weight": weight,
		"encoder.steps":  steps,
	}
}

func checkStateDict(t *testing.T, got map[string]*tensor.RawTensor) {
	t.Helper()
	if len(got) != 2 {
		t.Fatalf("expected 2 tensors, got %d", len(got))
	}
	w := got["encoder.weight"]
	if w == nil || !w.Shape().Equal(tensor.Shape{2, 3}) {
		t.Fatalf("encoder.weight missing or wrong shape: %v", w)
	}
	for i, v := range w.AsFloat32() {
		if v != float32(i+1) {
			t.Errorf("weight[%d] = %v, want %v", i, v, i+1)
		}
	}
	if s := got["encoder.steps"]; s == nil || s.AsInt64()[0] != 42 {
		t.Errorf("encoder.steps not restored: %v", s)
	}
}

func TestBornRoundTrip(t *testing.T) {
	for _, version := range []int{FormatVersion, FormatVersionV2} {
		t.Run(map[int]string{FormatVersion: "v1", FormatVersionV2: "v2"}[version], func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "model.born")
			opts := WriteOptions{Version: version, ModelType: "Encoder", Metadata: map[string]string{"source": "test"}}
			if err := WriteFile(path, testStateDict(t), opts); err != nil {
				t.Fatalf("WriteFile failed: %v", err)
			}

			reader, err := NewBornReader(path)
			if err != nil {
				t.Fatalf("NewBornReader failed: %v", err)
			}
			defer reader.Close()

			if reader.Version() != uint32(version) {
				t.Errorf("Version() = %d, want %d", reader.Version(), version)
			}
			if reader.Flags()&FlagHasMetadata == 0 {
				t.Error("metadata flag not set")
			}
			if got := reader.Header().ModelType; got != "Encoder" {
				t.Errorf("ModelType = %q", got)
			}
			if got := reader.Metadata()["source"]; got != "test" {
				t.Errorf("metadata source = %q", got)
			}
			if names := reader.TensorNames(); len(names) != 2 || names[0] != "encoder.steps" {
				t.Errorf("TensorNames() = %v, want sorted names", names)
			}

			stateDict, err := reader.ReadStateDict(tensor.Metal)
			if err != nil {
				t.Fatalf("ReadStateDict failed: %v", err)
			}
			checkStateDict(t, stateDict)
			if stateDict["encoder.weight"].Device() != tensor.Metal {
				t.Error("tensors should be placed on the requested device")
			}
		})
	}
}

func TestBornTensorNotFound(t *testing.T) {
	path := filepath.Join(t.TempDir(), "model.born")
	if err := WriteFile(path, testStateDict(t), WriteOptions{}); err != nil {
		t.Fatal(err)
	}
	reader, err := NewBornReader(path)
	if err != nil {
		t.Fatal(err)
	}
	defer reader.Close()

	if _, err := reader.LoadTensor("decoder.weight", tensor.CPU); !errors.Is(err, ErrTensorNotFound) {
		t.Errorf("expected ErrTensorNotFound, got %v", err)
	}

	if err := reader.Close(); err != nil {
		t.Fatal(err)
	}
	if _, err := reader.ReadStateDict(tensor.CPU); !errors.Is(err, ErrClosed) {
		t.Errorf("expected ErrClosed after Close, got %v", err)
	}
}

func TestBornV2DetectsCorruption(t *testing.T) {
	path := filepath.Join(t.TempDir(), "model.born")
	if err := WriteFile(path, testStateDict(t), WriteOptions{}); err != nil {
		t.Fatal(err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	data[len(data)-1] ^= 0xFF
	if err := os.WriteFile(path, data, 0o600); err != nil {
		t.Fatal(err)
	}

	if _, err := NewBornReader(path); !errors.Is(err, ErrChecksumMismatch) {
		t.Fatalf("expected ErrChecksumMismatch, got %v", err)
	}

	reader, err := NewBornReaderWithOptions(path, ReaderOptions{SkipChecksumValidation: true})
	if err != nil {
		t.Fatalf("skipping checksum should allow opening: %v", err)
	}
	_ = reader.Close()
}

func TestBornInvalidMagic(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.born")
	if err := os.WriteFile(path, []byte("NOPE0000000000000000000000"), 0o600); err != nil {
		t.Fatal(err)
	}
	if _, err := NewBornReader(path); !errors.Is(err, ErrInvalidMagic) {
		t.Fatalf("expected ErrInvalidMagic, got %v", err)
	}
}

func TestBornUnsupportedVersion(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteTo(&buf, testStateDict(t), WriteOptions{Version: 3}); !errors.Is(err, ErrUnsupportedVersion) {
		t.Fatalf("expected ErrUnsupportedVersion, got %v", err)
	}
}

func TestReadFromStream(t *testing.T) {
	for _, version := range []int{FormatVersion, FormatVersionV2} {
		var buf bytes.Buffer
		if err := WriteTo(&buf, testStateDict(t), WriteOptions{Version: version}); err != nil {
			t.Fatalf("WriteTo v%d failed: %v", version, err)
		}

		stateDict, header, err := ReadFrom(&buf, tensor.CPU, ReaderOptions{})
		if err != nil {
			t.Fatalf("ReadFrom v%d failed: %v", version, err)
		}
		if header.FormatVersion != version {
			t.Errorf("FormatVersion = %d, want %d", header.FormatVersion, version)
		}
		checkStateDict(t, stateDict)
	}
}

// v1Stream assembles a v1 stream around a hand-written JSON header.
func v1Stream(header string, data []byte) []byte {
	var buf bytes.Buffer
	buf.WriteString(MagicBytes)
	_ = binary.Write(&buf, binary.LittleEndian, uint32(FormatVersion))
	_ = binary.Write(&buf, binary.LittleEndian, uint32(0))
	_ = binary.Write(&buf, binary.LittleEndian, uint64(len(header)))
	buf.WriteString(header)
	end := int64(buf.Len())
	buf.Write(make([]byte, alignedDataOffset(end)-end))
	buf.Write(data)
	return buf.Bytes()
}

func TestReadFromRejectsOversizedData(t *testing.T) {
	const header = `{"format_version":1,"tensors":[{"name":"w","dtype":"float32","shape":[1],"offset":%d,"size":4}]}`
	data := []byte{0, 0, 128, 63}

	tests := []struct {
		name   string
		offset int64
		limit  int64
		want   error
	}{
		{"offset near int64 max", 1 << 62, 0, ErrDataTooLarge},
		{"offset past default limit", 1 << 36, 0, ErrDataTooLarge},
		{"offset past caller limit", 1 << 10, 512, ErrDataTooLarge},
		{"declared data longer than stream", 1 << 36, 1 << 40, io.ErrUnexpectedEOF},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			stream := v1Stream(fmt.Sprintf(header, tt.offset), data)
			_, _, err := ReadFrom(bytes.NewReader(stream), tensor.CPU, ReaderOptions{MaxDataSize: tt.limit})
			if !errors.Is(err, tt.want) {
				t.Fatalf("expected %v, got %v", tt.want, err)
			}
		})
	}

	stream := v1Stream(fmt.Sprintf(header, 0), data)
	sd, _, err := ReadFrom(bytes.NewReader(stream), tensor.CPU, ReaderOptions{})
	if err != nil {
		t.Fatalf("ReadFrom of a well-formed stream failed: %v", err)
	}
	if got := sd["w"].AsFloat32()[0]; got != 1 {
		t.Errorf("w = %v, want 1", got)
	}
}

func TestReadFromRejectsOversizedV2DataSize(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteTo(&buf, testStateDict(t), WriteOptions{Version: FormatVersionV2}); err != nil {
		t.Fatal(err)
	}
	stream := buf.Bytes()
	binary.LittleEndian.PutUint64(stream[24:32], 1<<40)

	_, _, err := ReadFrom(bytes.NewReader(stream), tensor.CPU, ReaderOptions{})
	if !errors.Is(err, ErrDataTooLarge) {
		t.Fatalf("expected ErrDataTooLarge, got %v", err)
	}
}

func TestCheckpointHeaderFlag(t *testing.T) {
	var buf bytes.Buffer
	opts := WriteOptions{Checkpoint: &CheckpointMeta{IsCheckpoint: true, Epoch: 3, Step: 900}}
	if err := WriteTo(&buf, testStateDict(t), opts); err != nil {
		t.Fatal(err)
	}

	_, header, err := ReadFrom(&buf, tensor.CPU, ReaderOptions{})
	if err != nil {
		t.Fatal(err)
	}
	if !header.IsCheckpoint() || header.CheckpointMeta.Epoch != 3 {
		t.Errorf("checkpoint metadata not preserved: %+v", header.CheckpointMeta)
	}
}

func TestWriteIsDeterministic(t *testing.T) {
	sd := testStateDict(t)
	var a, b bytes.Buffer
	if err := WriteTo(&a, sd, WriteOptions{}); err != nil {
		t.Fatal(err)
	}
	if err := WriteTo(&b, sd, WriteOptions{}); err != nil {
		t.Fatal(err)
	}
	// Data size and checksum must match; the JSON header carries a timestamp.
	if !bytes.Equal(a.Bytes()[24:FixedHeaderSizeV2], b.Bytes()[24:FixedHeaderSizeV2]) {
		t.Error("identical state dicts should produce identical data checksums")
	}
}
