package shape

import "golang.org/x/exp/constraints"

// product multiplies a slice of any integer type, treating non-positive
// entries as 1. CalcCount and the Go-side index helpers share this so the
// dtype-sized element shape and plain int domain-iteration counts don't
// need two hand-written copies of the same fold.
func product[T constraints.Integer](vals []T) int64 {
	count := int64(1)
	for _, v := range vals {
		if v > 0 {
			count *= int64(v)
		}
	}
	return count
}

// DomainElementCount is the int-typed counterpart of CalcCount, for a
// domain described with plain Go ints rather than the wire-format int32
// shape. The dispatcher itself uses CalcCount.
func DomainElementCount(shape []int) int64 {
	return product(shape)
}
