package tensor

import (
	"errors"
	"unsafe"

	"github.com/BinaryCat17/sf-spec/internal/memory"
	"github.com/BinaryCat17/sf-spec/internal/shape"
)

// ErrRankMismatch is returned by Transpose for tensors that are not rank 2.
var ErrRankMismatch = errors.New("tensor: operation requires rank 2")

// ErrCountMismatch is returned by Reshape/CopyContiguous when element
// counts disagree.
var ErrCountMismatch = errors.New("tensor: element count mismatch")

// ErrOutOfBounds is returned when a view would read or write past its
// buffer.
var ErrOutOfBounds = errors.New("tensor: view exceeds buffer bounds")

// TypeInfo is a shape plus its dtype: shape.Info describes rank/dims/
// strides, Dtype selects the element width. Value-copied everywhere.
type TypeInfo struct {
	Dtype Dtype
	shape.Info
}

// InitContiguous builds a TypeInfo with freshly computed contiguous
// strides for the given shape.
func InitContiguous(dtype Dtype, dims []int32) TypeInfo {
	var info TypeInfo
	info.Dtype = dtype
	info.NDim = uint8(len(dims))
	copy(info.Shape[:], dims)
	shape.CalcStrides(&info.Info)
	return info
}

// Count returns the element count described by info.
func (info *TypeInfo) Count() int64 {
	return shape.CalcCount(info.Shape[:info.NDim])
}

// Bytes returns the byte size described by info.
func (info *TypeInfo) Bytes() int64 {
	return info.Count() * int64(info.Dtype.Size())
}

// Tensor is a typed, shaped view into a Buffer.
type Tensor struct {
	Info       TypeInfo
	Buf        *Buffer
	ByteOffset int
}

// Alloc allocates the buffer and its storage for info in one call to
// alloc, setting ByteOffset to 0.
func Alloc(info TypeInfo, alloc memory.Allocator) (Tensor, error) {
	buf := &Buffer{}
	if err := AllocBuffer(buf, alloc, int(info.Bytes())); err != nil {
		return Tensor{}, err
	}
	return Tensor{Info: info, Buf: buf, ByteOffset: 0}, nil
}

// Resize grows t's storage to match newInfo. Growing always allocates a
// new block, copies the old bytes, and frees the old one: in-place growth
// is never guaranteed.
func Resize(t *Tensor, alloc memory.Allocator, newInfo TypeInfo) error {
	needed := int(newInfo.Bytes())
	if t.Buf != nil && needed <= t.Buf.SizeBytes {
		t.Info = newInfo
		return nil
	}

	newBuf := &Buffer{}
	if err := AllocBuffer(newBuf, alloc, needed); err != nil {
		return err
	}
	if t.Buf != nil {
		copy(newBuf.Data, t.Buf.Data)
		if t.Buf.Flags&FlagOwnsData != 0 {
			Free(t.Buf)
		}
	}
	t.Buf = newBuf
	t.Info = newInfo
	t.ByteOffset = 0
	return nil
}

// View returns a plain struct copy of t: an O(1) non-owning alias sharing
// t's buffer.
func View(t Tensor) Tensor {
	return t
}

// Slice advances byte_offset by start*elemsize and collapses the result to
// a flat 1-D view of count elements.
func Slice(t Tensor, start, count int) (Tensor, error) {
	elemSize := t.Info.Dtype.Size()
	newOffset := t.ByteOffset + start*elemSize
	if newOffset+count*elemSize > t.Buf.SizeBytes {
		return Tensor{}, ErrOutOfBounds
	}
	out := t
	out.ByteOffset = newOffset
	out.Info.NDim = 1
	out.Info.Shape[0] = int32(count)
	out.Info.Strides[0] = 1
	return out, nil
}

// Reshape requires the element count to match and rebuilds contiguous
// strides over newShape.
func Reshape(t Tensor, newShape []int32) (Tensor, error) {
	newCount := shape.CalcCount(newShape)
	if newCount != t.Info.Count() {
		return Tensor{}, ErrCountMismatch
	}
	out := t
	out.Info = InitContiguous(t.Info.Dtype, newShape)
	return out, nil
}

// Transpose is restricted to rank 2: it swaps shape[0]<->shape[1] and
// strides[0]<->strides[1].
func Transpose(t Tensor) (Tensor, error) {
	if t.Info.NDim != 2 {
		return Tensor{}, ErrRankMismatch
	}
	out := t
	out.Info.Shape[0], out.Info.Shape[1] = out.Info.Shape[1], out.Info.Shape[0]
	out.Info.Strides[0], out.Info.Strides[1] = out.Info.Strides[1], out.Info.Strides[0]
	return out, nil
}

// isContiguous reports whether t's strides match a freshly computed
// contiguous layout for its shape.
func isContiguous(t *Tensor) bool {
	var want shape.Info
	want.NDim = t.Info.NDim
	want.Shape = t.Info.Shape
	shape.CalcStrides(&want)
	for i := 0; i < int(t.Info.NDim); i++ {
		if t.Info.Strides[i] != want.Strides[i] {
			return false
		}
	}
	return true
}

// CopyContiguous requires both tensors to be contiguous and of equal
// element count; it is a flat byte copy.
func CopyContiguous(dst, src Tensor) error {
	if src.Info.Count() != dst.Info.Count() {
		return ErrCountMismatch
	}
	if !isContiguous(&src) || !isContiguous(&dst) {
		return errors.New("tensor: CopyContiguous requires contiguous tensors, use CopyStrided")
	}
	n := int(src.Info.Bytes())
	copy(dst.Buf.Data[dst.ByteOffset:dst.ByteOffset+n], src.Buf.Data[src.ByteOffset:src.ByteOffset+n])
	return nil
}

// CopyStrided is a generic strided-copy kernel for arbitrary (including
// non-contiguous) tensors of equal element count. Unlike the routine this
// is ported from, non-contiguous input is supported rather than refused —
// that refusal was a limitation of the original implementation, not a
// contract this runtime preserves.
func CopyStrided(dst, src Tensor) error {
	if src.Info.Count() != dst.Info.Count() {
		return ErrCountMismatch
	}
	elemSize := src.Info.Dtype.Size()
	n := int(src.Info.Count())
	ndim := int(src.Info.NDim)

	idx := make([]int32, ndim)
	for i := 0; i < n; i++ {
		srcOff := src.ByteOffset
		dstOff := dst.ByteOffset
		for k := 0; k < ndim; k++ {
			srcOff += int(idx[k]) * int(src.Info.Strides[k]) * elemSize
			dstOff += int(idx[k]) * int(dst.Info.Strides[k]) * elemSize
		}
		copy(dst.Buf.Data[dstOff:dstOff+elemSize], src.Buf.Data[srcOff:srcOff+elemSize])

		for k := ndim - 1; k >= 0; k-- {
			idx[k]++
			if idx[k] < dst.Info.Shape[k] {
				break
			}
			idx[k] = 0
		}
	}
	return nil
}

// AsFloat32 casts t's live byte range to a []float32 view without copying.
func AsFloat32(t Tensor) []float32 {
	n := int(t.Info.Count())
	base := t.Buf.Data[t.ByteOffset : t.ByteOffset+n*4]
	return unsafe.Slice((*float32)(unsafe.Pointer(&base[0])), n)
}

// AsInt32 casts t's live byte range to a []int32 view without copying.
func AsInt32(t Tensor) []int32 {
	n := int(t.Info.Count())
	base := t.Buf.Data[t.ByteOffset : t.ByteOffset+n*4]
	return unsafe.Slice((*int32)(unsafe.Pointer(&base[0])), n)
}

// AsUint8 returns t's live byte range directly.
func AsUint8(t Tensor) []uint8 {
	n := int(t.Info.Count())
	return t.Buf.Data[t.ByteOffset : t.ByteOffset+n]
}
