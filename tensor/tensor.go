// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package tensor exposes the tensor storage used by state dicts.
//
// A RawTensor is a typed, shaped byte buffer placed on a Device:
//
//	raw, _ := tensor.FromSlice([]float32{1, 2, 3, 4}, tensor.Shape{2, 2}, tensor.CPU)
//	data := raw.AsFloat32() // views the buffer
//	half, _ := tensor.Convert(raw, tensor.Float16)
package tensor

import (
	"github.com/born-ml/pretrained/internal/tensor"
)

// RawTensor is the low-level tensor representation.
//
// RawTensor provides:
//   - Shape and type information via Shape(), DType(), Device()
//   - Type-safe data access via AsFloat32(), AsInt64(), etc.
//   - Buffer sharing via Clone() and deep copies via Copy()
//   - Reference counting for efficient memory management
type RawTensor = tensor.RawTensor

// Shape represents the dimensions of a tensor.
type Shape = tensor.Shape

// DataType is the element type of a tensor.
type DataType = tensor.DataType

// DType constrains the Go element types accepted by FromSlice.
type DType = tensor.DType

// Supported data types.
const (
	Float32  = tensor.Float32
	Float64  = tensor.Float64
	Int32    = tensor.Int32
	Int64    = tensor.Int64
	Uint8    = tensor.Uint8
	Bool     = tensor.Bool
	Float16  = tensor.Float16
	BFloat16 = tensor.BFloat16
)

// Device is where a tensor is placed.
type Device = tensor.Device

// Supported devices.
const (
	CPU    = tensor.CPU
	CUDA   = tensor.CUDA
	Vulkan = tensor.Vulkan
	Metal  = tensor.Metal
	WebGPU = tensor.WebGPU
)

// NewRaw creates a zero-filled tensor.
func NewRaw(shape Shape, dtype DataType, device Device) (*RawTensor, error) {
	return tensor.NewRaw(shape, dtype, device)
}

// FromSlice creates a tensor holding a copy of data.
func FromSlice[T DType](data []T, shape Shape, device Device) (*RawTensor, error) {
	return tensor.FromSlice(data, shape, device)
}

// FromBytes creates a tensor from little-endian element bytes.
func FromBytes(data []byte, shape Shape, dtype DataType, device Device) (*RawTensor, error) {
	return tensor.FromBytes(data, shape, dtype, device)
}

// Convert returns a copy of r cast to dtype. Only floating point dtypes
// convert.
func Convert(r *RawTensor, dtype DataType) (*RawTensor, error) {
	return tensor.Convert(r, dtype)
}

// ParseDevice parses a location such as "cpu", "cuda" or "cuda:1".
func ParseDevice(location string) (Device, error) {
	return tensor.ParseDevice(location)
}

// ParseDataType parses a dtype name such as "float32".
func ParseDataType(s string) (DataType, error) {
	return tensor.ParseDataType(s)
}
