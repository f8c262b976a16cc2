// Package sferrors registers the dispatcher's error vocabulary as Go
// error values, and wraps a failed run's context (element index,
// source line/column) the way the teacher's runtime/compiler errors
// wrap an underlying cause with fmt.Errorf's %w.
package sferrors

import (
	"errors"
	"fmt"

	"github.com/BinaryCat17/sf-spec/internal/exec"
	"github.com/BinaryCat17/sf-spec/internal/isa"
)

// Sentinel errors, one per exec.ErrorKind, so callers can errors.Is
// against a kind without reaching into internal/exec directly.
var (
	ErrOOM           = errors.New("sionflow: out of memory")
	ErrShapeMismatch = errors.New("sionflow: shape mismatch")
	ErrInvalidOp     = errors.New("sionflow: invalid opcode")
	ErrRuntime       = errors.New("sionflow: runtime error")
	ErrOutOfBounds   = errors.New("sionflow: out of bounds access")
)

func sentinelFor(kind exec.ErrorKind) error {
	switch kind {
	case exec.ErrorOOM:
		return ErrOOM
	case exec.ErrorShapeMismatch:
		return ErrShapeMismatch
	case exec.ErrorInvalidOp:
		return ErrInvalidOp
	case exec.ErrorRuntime:
		return ErrRuntime
	case exec.ErrorOutOfBounds:
		return ErrOutOfBounds
	default:
		return nil
	}
}

// DispatchError is the diagnostic Wrap builds for a failed dispatch: the
// error kind, the first offending element index, and the source
// line/column of the instruction that raised it. engine.Run does not build
// one; it returns only the exec.ErrorKind.
type DispatchError struct {
	Kind       exec.ErrorKind
	ElementIdx uint32
	Line       uint16
	Column     uint16
}

func (e *DispatchError) Error() string {
	if e.Line == 0 && e.Column == 0 {
		return fmt.Sprintf("sionflow: %s at element %d", e.Kind, e.ElementIdx)
	}
	return fmt.Sprintf("sionflow: %s at element %d (line %d, col %d)", e.Kind, e.ElementIdx, e.Line, e.Column)
}

// Unwrap exposes the kind-level sentinel so errors.Is(err, sferrors.ErrOOM)
// works regardless of which element/instruction triggered it.
func (e *DispatchError) Unwrap() error {
	return sentinelFor(e.Kind)
}

// Wrap builds a DispatchError for a failed dispatch. Returns nil if
// kind is exec.ErrorNone.
func Wrap(kind exec.ErrorKind, elementIdx uint32, inst *isa.Instruction) error {
	if kind == exec.ErrorNone {
		return nil
	}
	de := &DispatchError{Kind: kind, ElementIdx: elementIdx}
	if inst != nil {
		de.Line = inst.Line
		de.Column = inst.Column
	}
	return de
}
