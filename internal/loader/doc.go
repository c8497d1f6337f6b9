// Package loader reads checkpoints into state dictionaries.
//
// Two on-disk formats are supported:
//   - .born: the native format, v1 and v2 (SHA-256 over the data section)
//   - SafeTensors: the Hugging Face format; F16 and BF16 tensors are
//     upcast to float32 on load
//
// The format is detected from the leading bytes of the file, falling back to
// the file extension. Tensors are read lazily through CheckpointReader, or all
// at once with ReadCheckpoint:
//
//	sd, err := loader.ReadCheckpoint("model.safetensors", tensor.CPU, loader.ReadOptions{})
//	if err != nil {
//	    log.Fatal(err)
//	}
//
// Training checkpoints written by the .born writer carry optimizer state under
// the "optimizer." namespace; ReadCheckpoint drops it unless
// ReadOptions.KeepOptimizerState is set.
package loader
