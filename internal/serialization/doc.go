// Package serialization reads and writes .born files: named tensors with a
// JSON header and a SHA-256 checksum over the tensor data.
//
//	Layout:
//	  0x00 [4]  magic "BORN"
//	  0x04 [4]  format version (uint32 LE)
//	  0x08 [4]  flags (uint32 LE)
//	  0x0C [4]  reserved
//	  0x10 [8]  header size (uint64 LE)
//	  0x18 [8]  data size (uint64 LE)
//	  0x20 [32] SHA-256 of the data section
//	  0x40      JSON header, zero padded to a 64-byte boundary
//	            tensor data, in header order
//
// Model weights and training checkpoints share the format; checkpoints
// prefix model tensors with "model." and optimizer buffers with
// "optimizer." and carry a CheckpointMeta in the header.
//
//	err := serialization.SaveCheckpoint("run/epoch-3.born", serialization.Checkpoint{
//	    Model:     model.StateDict(),
//	    Optimizer: opt.StateDict(),
//	    Meta:      serialization.CheckpointMeta{Epoch: 3},
//	})
package serialization
