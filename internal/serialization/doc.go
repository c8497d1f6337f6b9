// Package serialization reads and writes parameter checkpoints.
//
// Two formats are supported:
//
// The native .born format:
//
//	v1:
//	  [4 bytes: Magic "BORN"]
//	  [4 bytes: Version (uint32 LE)]
//	  [4 bytes: Flags (uint32 LE)]
//	  [8 bytes: Header Size (uint64 LE)]
//	  [Header: JSON metadata]
//	  [Tensor data: raw bytes, 64-byte aligned]
//
//	v2 (default for writing):
//	  [64 bytes: fixed header - magic, version, flags, reserved,
//	   header size, data size, SHA-256 of the data section]
//	  [Header: JSON metadata]
//	  [Tensor data: raw bytes, 64-byte aligned]
//
// And SafeTensors (writing only; reading lives in the loader package):
//
//	[8 bytes: header size (uint64 LE)]
//	[JSON header: name -> {dtype, shape, data_offsets}]
//	[tensor data]
//
// Example:
//
//	err := serialization.WriteFile("encoder.born", model.StateDict(), serialization.WriteOptions{
//	    ModelType: "Encoder",
//	})
//
//	reader, err := serialization.NewBornReader("encoder.born")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer reader.Close()
//	stateDict, err := reader.ReadStateDict(tensor.CPU)
package serialization
