// Package serialization stores module records as checkpoints.
//
// Two recorders are provided. JSONRecorder writes a single ordered JSON
// document, handy for inspection and diffs. FileRecorder writes the binary
// .ckpt format:
//
//	Format Structure:
//	  [64 bytes: fixed header]
//	    0x00 magic "CKPT"
//	    0x04 version (uint32 LE)
//	    0x08 flags (uint32 LE)
//	    0x0C reserved
//	    0x10 header size (uint64 LE)
//	    0x18 data size (uint64 LE)
//	    0x20 SHA-256 of the data section (32 bytes)
//	  [Header: JSON, the record tree with tensors replaced by references]
//	  [Padding to a 64-byte boundary]
//	  [Data: tensor payloads, back to back]
//
// Tensor payloads keep the dtype chosen by the record's precision, so a
// half-precision checkpoint is half the size of a full one.
//
// Example usage:
//
//	ckpt := &serialization.Checkpoint{
//	    ModuleType: "Conv2d",
//	    Precision:  record.Half,
//	    Item:       layer.IntoRecord().IntoItem(record.Half),
//	}
//	if err := serialization.RecorderFor("conv.ckpt").Record("conv.ckpt", ckpt); err != nil {
//	    log.Fatal(err)
//	}
package serialization
