// Package pretrained loads pretrained parameters from a checkpoint into a
// model, optionally scoped to one of its sub-modules.
//
// The sub-module is named by a dotted path ("encoder", "encoder.layers.0").
// Its state dict keys are looked up in the checkpoint under the path as a
// prefix, so loading "encoder.weight" from a full-model checkpoint into a
// standalone encoder works without renaming:
//
//	report, err := pretrained.Load("asr.born", model,
//	    pretrained.WithKey("encoder"),
//	    pretrained.WithIgnoreMissing(false),
//	)
//
// Keys of the target that the checkpoint lacks keep their current values
// unless missing keys are not tolerated. Shapes and dtypes are validated
// before anything is written, so a failed load leaves the model unchanged.
//
// Several loads can be described in a YAML init plan and applied in order
// with ApplyPlan.
package pretrained
