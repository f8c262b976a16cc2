// Package tensor implements buffers (owned or viewed raw bytes) and tensors
// (typed shaped views into a buffer): shape, strides, broadcasting across
// contiguous and view tensors.
package tensor

import "github.com/BinaryCat17/sf-spec/internal/memory"

// Buffer flag bits, mirroring the SF_BUFFER_* flags.
const (
	FlagOwnsData uint32 = 1 << iota
	FlagGPU             // data resides in VRAM; reserved for a future backend
	FlagPinned          // CPU memory pinned for DMA; reserved for a future backend
)

// Buffer owns or views a raw byte region.
type Buffer struct {
	Data      []byte
	SizeBytes int
	Alloc     memory.Allocator
	Flags     uint32
	RefCount  uint32
}

// InitView initialises buf as a non-owning view over data.
func InitView(buf *Buffer, data []byte) {
	buf.Data = data
	buf.SizeBytes = len(data)
	buf.Flags = 0
}

// AllocBuffer allocates a new owning buffer of size bytes through alloc.
func AllocBuffer(buf *Buffer, alloc memory.Allocator, size int) error {
	data, err := alloc.Alloc(size)
	if err != nil {
		return err
	}
	buf.Data = data
	buf.SizeBytes = size
	buf.Alloc = alloc
	buf.Flags = FlagOwnsData
	return nil
}

// Free releases buf's memory if it owns the underlying data. It does not
// clear buf itself.
func Free(buf *Buffer) {
	if buf.Flags&FlagOwnsData != 0 && buf.Alloc != nil {
		buf.Alloc.Free(buf.Data)
	}
}
