// Package caption reads and writes compiled closed caption containers (VCCD).
//
// A container is laid out as a fixed 24 byte header, a directory of 12 byte
// entries sorted by token hash, and a data section split into fixed size
// blocks. Each directory entry addresses a NUL terminated UTF-16LE string by
// block index, offset within the block and byte length:
//
//	header    "VCCD" version blocks blockSize entries dataOffset
//	directory hash(u32) block(i32) offset(u16) length(u16) ...
//	padding   up to dataOffset (512 byte aligned when built by Builder)
//	blocks    blockSize bytes each
//
// Blocks exist for streaming in the engine; Container hides them and exposes
// one logical string per entry.
package caption
