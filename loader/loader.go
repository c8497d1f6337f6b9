// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package loader reads .born and SafeTensors checkpoints.
//
// Example usage:
//
//	ckpt, err := loader.OpenCheckpoint("model.safetensors", loader.ReaderOptions{})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer ckpt.Close()
//
//	fmt.Printf("Format: %s\n", ckpt.Format())
//	for _, name := range ckpt.TensorNames() {
//	    info, _ := ckpt.TensorInfo(name)
//	    fmt.Println(name, info.DType, info.Shape)
//	}
package loader

import (
	"github.com/born-ml/pretrained/internal/loader"
	"github.com/born-ml/pretrained/internal/serialization"
	"github.com/born-ml/pretrained/internal/tensor"
)

// Format represents the checkpoint file format.
type Format = loader.Format

// Supported checkpoint formats.
const (
	FormatUnknown     = loader.FormatUnknown
	FormatBorn        = loader.FormatBorn
	FormatSafeTensors = loader.FormatSafeTensors
)

// CheckpointReader provides access to the tensors of a checkpoint.
type CheckpointReader = loader.CheckpointReader

// TensorInfo describes a stored tensor.
type TensorInfo = loader.TensorInfo

// ReadOptions configures ReadCheckpoint.
type ReadOptions = loader.ReadOptions

// ReaderOptions configures .born validation and checksum verification.
type ReaderOptions = serialization.ReaderOptions

// Validation levels for ReaderOptions.
const (
	ValidationStrict = serialization.ValidationStrict
	ValidationNormal = serialization.ValidationNormal
	ValidationNone   = serialization.ValidationNone
)

// KeyMapper renames checkpoint keys as they are read.
type KeyMapper = loader.KeyMapper

// KeyMapperFunc adapts a function to KeyMapper.
type KeyMapperFunc = loader.KeyMapperFunc

// RenameRule replaces a key prefix.
type RenameRule = loader.RenameRule

// PrefixMapper applies the first matching RenameRule to each key.
type PrefixMapper = loader.PrefixMapper

// NewPrefixMapper creates a PrefixMapper.
func NewPrefixMapper(rules ...RenameRule) *PrefixMapper {
	return loader.NewPrefixMapper(rules...)
}

// ParseRenameRule parses "from=to".
func ParseRenameRule(s string) (RenameRule, error) {
	return loader.ParseRenameRule(s)
}

// DetectFormat identifies the format of the checkpoint at path.
func DetectFormat(path string) (Format, error) {
	return loader.DetectFormat(path)
}

// OpenCheckpoint opens a checkpoint and auto-detects its format.
func OpenCheckpoint(path string, opts ReaderOptions) (CheckpointReader, error) {
	return loader.OpenCheckpoint(path, opts)
}

// ReadCheckpoint reads every tensor of the checkpoint at path onto device.
func ReadCheckpoint(path string, device tensor.Device, opts ReadOptions) (map[string]*tensor.RawTensor, error) {
	return loader.ReadCheckpoint(path, device, opts)
}

// WriteOptions configures WriteBorn.
type WriteOptions = serialization.WriteOptions

// WriteBorn writes stateDict to path in .born format (v2 unless
// opts.Version says otherwise).
func WriteBorn(path string, stateDict map[string]*tensor.RawTensor, opts WriteOptions) error {
	return serialization.WriteFile(path, stateDict, opts)
}

// WriteSafeTensors writes stateDict to path in SafeTensors format.
func WriteSafeTensors(path string, stateDict map[string]*tensor.RawTensor, metadata map[string]string) error {
	return serialization.WriteSafeTensors(path, stateDict, metadata)
}
