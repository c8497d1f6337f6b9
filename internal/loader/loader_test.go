package loader

import (
	"encoding/binary"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/born-ml/pretrained/internal/serialization"
	"github.com/born-ml/pretrained/internal/tensor"
)

func mustTensor(t *testing.T, data []float32, shape tensor.Shape) *tensor.RawTensor {
	t.Helper()
	raw, err := tensor.FromSlice(data, shape, tensor.CPU)
	if err != nil {
		t.Fatal(err)
	}
	return raw
}

func writeSafeTensors(t *testing.T, name string, sd map[string]*tensor.RawTensor) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := serialization.WriteSafeTensors(path, sd, map[string]string{"format": "pt"}); err != nil {
		t.Fatalf("WriteSafeTensors failed: %v", err)
	}
	return path
}

func writeBorn(t *testing.T, name string, sd map[string]*tensor.RawTensor, opts serialization.WriteOptions) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := serialization.WriteFile(path, sd, opts); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}
	return path
}

func assertFloats(t *testing.T, raw *tensor.RawTensor, want []float32) {
	t.Helper()
	if raw.DType() != tensor.Float32 {
		t.Fatalf("dtype = %s, want float32", raw.DType())
	}
	got := raw.AsFloat32()
	if len(got) != len(want) {
		t.Fatalf("len = %d, want %d", len(got), len(want))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("[%d] = %v, want %v", i, got[i], want[i])
		}
	}
}

func TestReadCheckpointSafeTensors(t *testing.T) {
	path := writeSafeTensors(t, "model.safetensors", map[string]*tensor.RawTensor{
		"encoder.weight": mustTensor(t, []float32{1, 2, 3, 4, 5, 6}, tensor.Shape{2, 3}),
		"encoder.bias":   mustTensor(t, []float32{0.5, -0.5}, tensor.Shape{2}),
	})

	sd, err := ReadCheckpoint(path, tensor.Metal, ReadOptions{})
	if err != nil {
		t.Fatalf("ReadCheckpoint failed: %v", err)
	}
	if len(sd) != 2 {
		t.Fatalf("expected 2 tensors, got %d", len(sd))
	}
	assertFloats(t, sd["encoder.weight"], []float32{1, 2, 3, 4, 5, 6})
	assertFloats(t, sd["encoder.bias"], []float32{0.5, -0.5})
	if !sd["encoder.weight"].Shape().Equal(tensor.Shape{2, 3}) {
		t.Errorf("shape = %v", sd["encoder.weight"].Shape())
	}
	if sd["encoder.bias"].Device() != tensor.Metal {
		t.Errorf("device = %s, want metal", sd["encoder.bias"].Device())
	}
}

func TestSafeTensorsHalfPrecisionUpcast(t *testing.T) {
	values := []float32{1, -2, 0.25, 1.5}
	for _, dt := range []tensor.DataType{tensor.Float16, tensor.BFloat16} {
		t.Run(dt.String(), func(t *testing.T) {
			half, err := tensor.Convert(mustTensor(t, values, tensor.Shape{4}), dt)
			if err != nil {
				t.Fatal(err)
			}
			path := writeSafeTensors(t, "half.safetensors", map[string]*tensor.RawTensor{"w": half})

			r, err := NewSafeTensorsReader(path)
			if err != nil {
				t.Fatal(err)
			}
			defer r.Close()

			info, err := r.TensorInfo("w")
			if err != nil {
				t.Fatal(err)
			}
			if info.DType != dt || info.Size != 8 {
				t.Errorf("info = %+v, want dtype %s size 8", info, dt)
			}

			raw, err := r.LoadTensor("w", tensor.CPU)
			if err != nil {
				t.Fatalf("LoadTensor failed: %v", err)
			}
			assertFloats(t, raw, values)
		})
	}
}

func TestSafeTensorsReaderRejectsBadOffsets(t *testing.T) {
	header := []byte(`{"w":{"dtype":"F32","shape":[4],"data_offsets":[0,16]}}`)
	path := filepath.Join(t.TempDir(), "bad.safetensors")
	buf := binary.LittleEndian.AppendUint64(nil, uint64(len(header)))
	buf = append(buf, header...)
	buf = append(buf, make([]byte, 8)...) // only 8 of 16 bytes
	if err := os.WriteFile(path, buf, 0o600); err != nil {
		t.Fatal(err)
	}

	_, err := NewSafeTensorsReader(path)
	var verr *serialization.ValidationError
	if !errors.As(err, &verr) || verr.Type != "invalid_offset" {
		t.Fatalf("expected invalid_offset ValidationError, got %v", err)
	}
}

func TestSafeTensorsReaderRejectsSizeMismatch(t *testing.T) {
	header := []byte(`{"w":{"dtype":"F32","shape":[3],"data_offsets":[0,16]}}`)
	path := filepath.Join(t.TempDir(), "bad.safetensors")
	buf := binary.LittleEndian.AppendUint64(nil, uint64(len(header)))
	buf = append(buf, header...)
	buf = append(buf, make([]byte, 16)...)
	if err := os.WriteFile(path, buf, 0o600); err != nil {
		t.Fatal(err)
	}

	_, err := NewSafeTensorsReader(path)
	var verr *serialization.ValidationError
	if !errors.As(err, &verr) || verr.Type != "size_mismatch" {
		t.Fatalf("expected size_mismatch ValidationError, got %v", err)
	}
}

func TestSafeTensorsReaderRejectsOverflowingShape(t *testing.T) {
	// 4611686018427387905*4 elements wrap to 4, which would match 16 bytes.
	header := []byte(`{"w":{"dtype":"F32","shape":[4611686018427387905,4],"data_offsets":[0,16]}}`)
	path := filepath.Join(t.TempDir(), "huge.safetensors")
	buf := binary.LittleEndian.AppendUint64(nil, uint64(len(header)))
	buf = append(buf, header...)
	buf = append(buf, make([]byte, 16)...)
	if err := os.WriteFile(path, buf, 0o600); err != nil {
		t.Fatal(err)
	}

	_, err := NewSafeTensorsReader(path)
	var verr *serialization.ValidationError
	if !errors.As(err, &verr) || verr.Type != "invalid_shape" {
		t.Fatalf("expected invalid_shape ValidationError, got %v", err)
	}

	if sd, err := ReadCheckpoint(path, tensor.CPU, ReadOptions{}); err == nil {
		t.Fatalf("ReadCheckpoint accepted shape %v", sd["w"].Shape())
	}
}

func TestSafeTensorsReaderClosed(t *testing.T) {
	path := writeSafeTensors(t, "m.safetensors", map[string]*tensor.RawTensor{
		"w": mustTensor(t, []float32{1}, tensor.Shape{1}),
	})
	r, err := NewSafeTensorsReader(path)
	if err != nil {
		t.Fatal(err)
	}
	if err := r.Close(); err != nil {
		t.Fatal(err)
	}
	if _, err := r.LoadTensor("w", tensor.CPU); !errors.Is(err, serialization.ErrClosed) {
		t.Errorf("expected ErrClosed, got %v", err)
	}
	if _, err := r.TensorInfo("missing"); !errors.Is(err, serialization.ErrTensorNotFound) {
		t.Errorf("expected ErrTensorNotFound, got %v", err)
	}
}

func TestDetectFormat(t *testing.T) {
	sd := map[string]*tensor.RawTensor{"w": mustTensor(t, []float32{1, 2}, tensor.Shape{2})}
	dir := t.TempDir()

	// Magic bytes win over a misleading extension.
	bornPath := filepath.Join(dir, "weights.bin")
	if err := serialization.WriteFile(bornPath, sd, serialization.WriteOptions{}); err != nil {
		t.Fatal(err)
	}
	stPath := filepath.Join(dir, "weights.born")
	if err := serialization.WriteSafeTensors(stPath, sd, nil); err != nil {
		t.Fatal(err)
	}
	emptyST := filepath.Join(dir, "empty.safetensors")
	garbage := filepath.Join(dir, "garbage.bin")
	if err := os.WriteFile(emptyST, nil, 0o600); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(garbage, []byte("not a checkpoint at all"), 0o600); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		path    string
		want    Format
		wantErr bool
	}{
		{bornPath, FormatBorn, false},
		{stPath, FormatSafeTensors, false},
		{emptyST, FormatSafeTensors, false},
		{garbage, FormatUnknown, true},
		{filepath.Join(dir, "missing.born"), FormatUnknown, true},
	}
	for _, tt := range tests {
		t.Run(filepath.Base(tt.path), func(t *testing.T) {
			got, err := DetectFormat(tt.path)
			if (err != nil) != tt.wantErr {
				t.Fatalf("DetectFormat() error = %v, wantErr %v", err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("DetectFormat() = %s, want %s", got, tt.want)
			}
		})
	}
}

func TestReadCheckpointBornDropsOptimizerState(t *testing.T) {
	sd := map[string]*tensor.RawTensor{
		"encoder.weight":             mustTensor(t, []float32{1, 2}, tensor.Shape{2}),
		"optimizer.encoder.weight.m": mustTensor(t, []float32{0, 0}, tensor.Shape{2}),
		"optimizer.encoder.weight.v": mustTensor(t, []float32{0, 0}, tensor.Shape{2}),
	}
	path := writeBorn(t, "ckpt.born", sd, serialization.WriteOptions{
		Checkpoint: &serialization.CheckpointMeta{IsCheckpoint: true, Epoch: 3, OptimizerType: "Adam"},
	})

	got, err := ReadCheckpoint(path, tensor.CPU, ReadOptions{})
	if err != nil {
		t.Fatalf("ReadCheckpoint failed: %v", err)
	}
	if len(got) != 1 || got["encoder.weight"] == nil {
		t.Fatalf("expected only encoder.weight, got %v", keys(got))
	}

	got, err = ReadCheckpoint(path, tensor.CPU, ReadOptions{KeepOptimizerState: true})
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 3 {
		t.Errorf("expected 3 tensors with optimizer state kept, got %v", keys(got))
	}
}

func TestReadCheckpointBornKeepsOptimizerNamespaceInPlainFiles(t *testing.T) {
	// Without the checkpoint flag "optimizer." is an ordinary module name.
	sd := map[string]*tensor.RawTensor{
		"optimizer.weight": mustTensor(t, []float32{1}, tensor.Shape{1}),
	}
	path := writeBorn(t, "plain.born", sd, serialization.WriteOptions{Version: serialization.FormatVersion})

	got, err := ReadCheckpoint(path, tensor.CPU, ReadOptions{})
	if err != nil {
		t.Fatal(err)
	}
	if got["optimizer.weight"] == nil {
		t.Errorf("optimizer.weight dropped from a plain state dict")
	}
}

func TestReadCheckpointMapper(t *testing.T) {
	path := writeSafeTensors(t, "m.safetensors", map[string]*tensor.RawTensor{
		"model.enc.weight": mustTensor(t, []float32{1}, tensor.Shape{1}),
		"model.dec.weight": mustTensor(t, []float32{2}, tensor.Shape{1}),
		"head.weight":      mustTensor(t, []float32{3}, tensor.Shape{1}),
	})

	mapper := NewPrefixMapper(
		RenameRule{From: "model.enc.", To: "encoder."},
		RenameRule{From: "model.", To: ""},
		RenameRule{From: "head.weight", To: ""},
	)
	got, err := ReadCheckpoint(path, tensor.CPU, ReadOptions{Mapper: mapper})
	if err != nil {
		t.Fatalf("ReadCheckpoint failed: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 tensors, got %v", keys(got))
	}
	assertFloats(t, got["encoder.weight"], []float32{1})
	assertFloats(t, got["dec.weight"], []float32{2})
}

func TestReadCheckpointMapperCollision(t *testing.T) {
	path := writeSafeTensors(t, "m.safetensors", map[string]*tensor.RawTensor{
		"a.weight": mustTensor(t, []float32{1}, tensor.Shape{1}),
		"b.weight": mustTensor(t, []float32{2}, tensor.Shape{1}),
	})
	collapse := KeyMapperFunc(func(string) (string, error) { return "weight", nil })
	if _, err := ReadCheckpoint(path, tensor.CPU, ReadOptions{Mapper: collapse}); err == nil {
		t.Error("expected error when two tensors map to the same key")
	}
}

func TestParseRenameRule(t *testing.T) {
	tests := []struct {
		in      string
		want    RenameRule
		wantErr bool
	}{
		{"model.=", RenameRule{From: "model."}, false},
		{"enc.=encoder.", RenameRule{From: "enc.", To: "encoder."}, false},
		{"noequals", RenameRule{}, true},
		{"=x", RenameRule{}, true},
	}
	for _, tt := range tests {
		got, err := ParseRenameRule(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseRenameRule(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			continue
		}
		if got != tt.want {
			t.Errorf("ParseRenameRule(%q) = %+v, want %+v", tt.in, got, tt.want)
		}
	}
}

func TestOpenCheckpointBornInfo(t *testing.T) {
	sd := map[string]*tensor.RawTensor{
		"w": mustTensor(t, []float32{1, 2, 3, 4}, tensor.Shape{2, 2}),
	}
	path := writeBorn(t, "m.born", sd, serialization.WriteOptions{Metadata: map[string]string{"task": "asr"}})

	ckpt, err := OpenCheckpoint(path, serialization.ReaderOptions{})
	if err != nil {
		t.Fatal(err)
	}
	defer ckpt.Close()

	if ckpt.Format() != FormatBorn {
		t.Errorf("Format() = %s", ckpt.Format())
	}
	if ckpt.Metadata()["task"] != "asr" {
		t.Errorf("metadata = %v", ckpt.Metadata())
	}
	info, err := ckpt.TensorInfo("w")
	if err != nil {
		t.Fatal(err)
	}
	if info.DType != tensor.Float32 || !info.Shape.Equal(tensor.Shape{2, 2}) || info.Size != 16 {
		t.Errorf("info = %+v", info)
	}
}

func keys(sd map[string]*tensor.RawTensor) []string {
	out := make([]string, 0, len(sd))
	for k := range sd {
		out = append(out, k)
	}
	return out
}
