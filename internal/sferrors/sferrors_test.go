package sferrors

import (
	"errors"
	"testing"

	"github.com/BinaryCat17/sf-spec/internal/exec"
	"github.com/BinaryCat17/sf-spec/internal/isa"
)

func TestWrapNoneReturnsNil(t *testing.T) {
	t.Parallel()
	if err := Wrap(exec.ErrorNone, 0, nil); err != nil {
		t.Errorf("Wrap(ErrorNone) = %v, want nil", err)
	}
}

func TestWrapCarriesElementAndSource(t *testing.T) {
	t.Parallel()
	inst := &isa.Instruction{Line: 7, Column: 3}
	err := Wrap(exec.ErrorShapeMismatch, 42, inst)
	if err == nil {
		t.Fatal("Wrap returned nil for a real error kind")
	}
	var de *DispatchError
	if !errors.As(err, &de) {
		t.Fatal("errors.As failed to unwrap to *DispatchError")
	}
	if de.ElementIdx != 42 || de.Line != 7 || de.Column != 3 {
		t.Errorf("DispatchError = %+v, want ElementIdx=42 Line=7 Column=3", de)
	}
	if !errors.Is(err, ErrShapeMismatch) {
		t.Error("errors.Is against the sentinel should succeed")
	}
}

func TestWrapWithoutInstructionOmitsSource(t *testing.T) {
	t.Parallel()
	err := Wrap(exec.ErrorOOM, 5, nil)
	if !errors.Is(err, ErrOOM) {
		t.Error("errors.Is against ErrOOM should succeed even with nil instruction")
	}
}
