package serialization

import (
	"bytes"
	"encoding/binary"
	"encoding/json"
	"testing"

	"github.com/born-ml/pretrained/internal/tensor"
)

func TestWriteSafeTensorsLayout(t *testing.T) {
	weight, err := tensor.FromSlice([]float32{1, 2, 3, 4, 5, 6}, tensor.Shape{2, 3}, tensor.CPU)
	if err != nil {
		t.Fatal(err)
	}
	bias, err := tensor.FromSlice([]float32{0.1, 0.2}, tensor.Shape{2}, tensor.CPU)
	if err != nil {
		t.Fatal(err)
	}

	var buf bytes.Buffer
	err = WriteSafeTensorsTo(&buf, map[string]*tensor.RawTensor{"weight": weight, "bias": bias},
		map[string]string{"format": "pt"})
	if err != nil {
		t.Fatalf("WriteSafeTensorsTo failed: %v", err)
	}

	data := buf.Bytes()
	headerSize := binary.LittleEndian.Uint64(data[:8])

	var header map[string]json.RawMessage
	if err := json.Unmarshal(data[8:8+headerSize], &header); err != nil {
		t.Fatalf("header is not JSON: %v", err)
	}
	if _, ok := header[SafeTensorsMetadataKey]; !ok {
		t.Error("metadata missing from header")
	}

	var biasInfo SafeTensorHeader
	if err := json.Unmarshal(header["bias"], &biasInfo); err != nil {
		t.Fatal(err)
	}
	// Alphabetical order: bias is written first.
	if biasInfo.DType != "F32" || biasInfo.DataOffsets != [2]int64{0, 8} {
		t.Errorf("bias header = %+v", biasInfo)
	}

	var weightInfo SafeTensorHeader
	if err := json.Unmarshal(header["weight"], &weightInfo); err != nil {
		t.Fatal(err)
	}
	if weightInfo.DataOffsets != [2]int64{8, 32} {
		t.Errorf("weight offsets = %v", weightInfo.DataOffsets)
	}

	if got := uint64(len(data)) - 8 - headerSize; got != 32 {
		t.Errorf("data section = %d bytes, want 32", got)
	}
}

func TestWriteSafeTensorsReservedName(t *testing.T) {
	raw, err := tensor.NewRaw(tensor.Shape{1}, tensor.Float32, tensor.CPU)
	if err != nil {
		t.Fatal(err)
	}
	var buf bytes.Buffer
	if err := WriteSafeTensorsTo(&buf, map[string]*tensor.RawTensor{SafeTensorsMetadataKey: raw}, nil); err == nil {
		t.Error("expected error for reserved tensor name")
	}
}

func TestSafeTensorsDTypeMapping(t *testing.T) {
	for dt := tensor.Float32; dt <= tensor.BFloat16; dt++ {
		s, err := SafeTensorsDType(dt)
		if err != nil {
			t.Fatalf("SafeTensorsDType(%s): %v", dt, err)
		}
		back, err := ParseSafeTensorsDType(s)
		if err != nil || back != dt {
			t.Errorf("ParseSafeTensorsDType(%q) = %v, %v; want %v", s, back, err, dt)
		}
	}
	if _, err := ParseSafeTensorsDType("F8_E4M3"); err == nil {
		t.Error("expected error for unsupported dtype")
	}
}
