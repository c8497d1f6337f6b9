// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package pretrained loads pretrained parameters into a model, optionally
// scoped to a sub-module named by a dotted path.
//
//	model := nn.NewDict().
//	    Add("encoder", encoder).
//	    Add("decoder", decoder)
//
//	// Copy "encoder.*" from a full ASR checkpoint, keep the decoder as is.
//	report, err := pretrained.Load("asr.born", model, pretrained.WithKey("encoder"))
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Println(report)
//
// Failed loads leave the model unchanged.
package pretrained

import (
	"github.com/born-ml/pretrained/internal/loader"
	"github.com/born-ml/pretrained/internal/nn"
	"github.com/born-ml/pretrained/internal/pretrained"
	"github.com/born-ml/pretrained/internal/serialization"
	"github.com/born-ml/pretrained/internal/tensor"
)

// Errors.
var (
	ErrAttribute  = pretrained.ErrAttribute
	ErrMissingKey = pretrained.ErrMissingKey
)

// AttributeError reports a sub-module path that does not resolve.
type AttributeError = pretrained.AttributeError

// MissingKeyError reports target keys absent from the checkpoint.
type MissingKeyError = pretrained.MissingKeyError

// Report describes the outcome of a load.
type Report = pretrained.Report

// Option configures Load.
type Option = pretrained.Option

// WithKey scopes the load to the sub-module at a dotted path.
func WithKey(key string) Option { return pretrained.WithKey(key) }

// WithDevice places checkpoint tensors on device.
func WithDevice(device tensor.Device) Option { return pretrained.WithDevice(device) }

// WithLocation places checkpoint tensors on a device given as a string.
func WithLocation(location string) Option { return pretrained.WithLocation(location) }

// WithIgnoreMissing tolerates (true, the default) or rejects missing keys.
func WithIgnoreMissing(ignore bool) Option { return pretrained.WithIgnoreMissing(ignore) }

// WithReaderOptions sets .born validation and checksum behavior.
func WithReaderOptions(opts serialization.ReaderOptions) Option {
	return pretrained.WithReaderOptions(opts)
}

// WithMapper renames checkpoint keys before they are matched.
func WithMapper(mapper loader.KeyMapper) Option { return pretrained.WithMapper(mapper) }

// Load reads the checkpoint at path and merges it into model.
func Load(path string, model nn.Module, opts ...Option) (*Report, error) {
	return pretrained.Load(path, model, opts...)
}

// LoadStateDict merges an in-memory checkpoint into model.
func LoadStateDict(checkpoint map[string]*tensor.RawTensor, model nn.Module, opts ...Option) (*Report, error) {
	return pretrained.LoadStateDict(checkpoint, model, opts...)
}

// Resolve returns the sub-module at a dotted path and its key prefix.
func Resolve(model nn.Module, key string) (nn.Module, string, error) {
	return pretrained.Resolve(model, key)
}

// Init plans

// Plan is an ordered list of loads.
type Plan = pretrained.Plan

// PlanEntry is one load of a Plan.
type PlanEntry = pretrained.PlanEntry

// LoadPlan reads a YAML plan.
func LoadPlan(path string) (*Plan, error) { return pretrained.LoadPlan(path) }

// ParsePlan decodes a YAML plan.
func ParsePlan(data []byte) (*Plan, error) { return pretrained.ParsePlan(data) }

// ParseInitParam parses "path:key".
func ParseInitParam(s string) (PlanEntry, error) { return pretrained.ParseInitParam(s) }

// ApplyPlan runs every entry of plan against model in order.
func ApplyPlan(model nn.Module, plan *Plan, opts ...Option) ([]*Report, error) {
	return pretrained.ApplyPlan(model, plan, opts...)
}

// Config holds load defaults taken from PRETRAINED_* environment variables.
type Config = pretrained.Config

// ConfigFromEnv parses Config from the environment.
func ConfigFromEnv() (Config, error) { return pretrained.ConfigFromEnv() }
