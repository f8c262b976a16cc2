// Package shape implements the shape/stride algebra shared by tensors and
// the execution domain: element counts, contiguous stride derivation,
// NumPy-style broadcasting, and the broadcast-to-domain stride projection
// the dispatcher uses to walk arbitrary inputs as plain strided iteration.
package shape

import "fmt"

// MaxDims is the hard ceiling on tensor rank.
const MaxDims = 8

// Info is a shape plus its element-strides, value-copied everywhere (it
// carries no pointers and is cheap to pass and store by value).
type Info struct {
	NDim    uint8
	Shape   [MaxDims]int32
	Strides [MaxDims]int32
}

// CalcCount returns the element count, treating zero/negative dims as 1.
// Rank 0 returns 1.
func CalcCount(shape []int32) int64 {
	return product(shape)
}

// CalcStrides fills contiguous row-major strides in elements, walking from
// the last dimension to the first.
func CalcStrides(info *Info) {
	stride := int32(1)
	for k := int(info.NDim) - 1; k >= 0; k-- {
		info.Strides[k] = stride
		d := info.Shape[k]
		if d <= 0 {
			d = 1
		}
		stride *= d
	}
}

// IsScalar reports whether info has rank 0 or every dimension equal to 1.
func IsScalar(info *Info) bool {
	if info.NDim == 0 {
		return true
	}
	for i := 0; i < int(info.NDim); i++ {
		if info.Shape[i] > 1 {
			return false
		}
	}
	return true
}

// Normalize drops every dimension equal to 1 and recomputes strides.
// Rank 0 is a legal result.
func Normalize(info *Info) {
	if info.NDim == 0 {
		return
	}
	var newShape [MaxDims]int32
	newNDim := uint8(0)
	for i := 0; i < int(info.NDim); i++ {
		if info.Shape[i] != 1 {
			newShape[newNDim] = info.Shape[i]
			newNDim++
		}
	}
	info.NDim = newNDim
	info.Shape = newShape
	CalcStrides(info)
}

// ErrIncompatible is returned by Broadcast when two shapes cannot be
// broadcast against each other.
type ErrIncompatible struct {
	A, B Info
}

func (e *ErrIncompatible) Error() string {
	return fmt.Sprintf("shape: incompatible for broadcast: %s vs %s", Format(&e.A), Format(&e.B))
}

// Broadcast computes the NumPy-style broadcast of a and b: dimensions align
// on the right, each aligned pair must be equal or one of them must be 1,
// and the result dimension is the max of the two. Negative dims inherit the
// positive side. The result always has contiguous strides.
func Broadcast(a, b *Info) (Info, error) {
	if IsScalar(a) {
		return *b, nil
	}
	if IsScalar(b) {
		return *a, nil
	}

	ndimA, ndimB := int(a.NDim), int(b.NDim)
	maxNDim := ndimA
	if ndimB > maxNDim {
		maxNDim = ndimB
	}

	var out Info
	out.NDim = uint8(maxNDim)

	for i := 0; i < maxNDim; i++ {
		idxA := ndimA - 1 - i
		idxB := ndimB - 1 - i
		idxOut := maxNDim - 1 - i

		dimA := int32(1)
		if idxA >= 0 {
			dimA = a.Shape[idxA]
		}
		dimB := int32(1)
		if idxB >= 0 {
			dimB = b.Shape[idxB]
		}

		switch {
		case dimA == dimB:
			out.Shape[idxOut] = dimA
		case dimA == 1:
			out.Shape[idxOut] = dimB
		case dimB == 1:
			out.Shape[idxOut] = dimA
		case dimA < 0 || dimB < 0:
			if dimA > 0 {
				out.Shape[idxOut] = dimA
			} else {
				out.Shape[idxOut] = dimB
			}
		default:
			return Info{}, &ErrIncompatible{A: *a, B: *b}
		}
	}

	CalcStrides(&out)
	return out, nil
}

// BroadcastStrides projects tensor's native strides onto domain's rank by
// right-alignment: a tensor dimension of 1 against a larger domain
// dimension becomes stride 0, and dimensions missing from the smaller-rank
// tensor become stride 0. This is the single arithmetic routine that lets
// the dispatcher treat broadcast inputs as plain strided iteration.
func BroadcastStrides(tensor *Info, domain *Info) [MaxDims]int32 {
	var out [MaxDims]int32

	sIdx := int(tensor.NDim) - 1
	dIdx := int(domain.NDim) - 1

	for sIdx >= 0 && dIdx >= 0 {
		if tensor.Shape[sIdx] == domain.Shape[dIdx] {
			out[dIdx] = tensor.Strides[sIdx]
		} else {
			// Either a size-1 broadcast dim or a genuine mismatch the
			// compiler should have already rejected; both project to a
			// stride of zero so the dispatcher reads the same element
			// for every position along this axis.
			out[dIdx] = 0
		}
		sIdx--
		dIdx--
	}
	// Remaining domain-only axes (tensor has fewer dims) stay at the
	// zero value out was initialised with.
	return out
}

// Format renders a shape as "[d0,d1,...]" for diagnostics.
func Format(info *Info) string {
	if info.NDim == 0 {
		return "[]"
	}
	s := "["
	for i := 0; i < int(info.NDim); i++ {
		if i > 0 {
			s += ","
		}
		s += fmt.Sprintf("%d", info.Shape[i])
	}
	return s + "]"
}
