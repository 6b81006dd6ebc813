package enginerr

import (
	"errors"
	"testing"
)

func TestNewAndError(t *testing.T) {
	err := New(NotFound, "schema missing")
	if err.Kind != NotFound {
		t.Fatalf("Kind = %v, want NotFound", err.Kind)
	}
	if got, want := err.Error(), "not_found: schema missing"; got != want {
		t.Fatalf("Error() = %q, want %q", got, want)
	}
}

func TestWrapNilCauseReturnsNil(t *testing.T) {
	if err := Wrap(Internal, "should be nil", nil); err != nil {
		t.Fatalf("Wrap with nil cause = %v, want nil", err)
	}
}

func TestWrapIncludesCause(t *testing.T) {
	cause := errors.New("boom")
	err := Wrap(Internal, "scan failed", cause)
	if !errors.Is(err, cause) {
		t.Fatalf("errors.Is(err, cause) = false, want true")
	}
	if got, want := err.Error(), "internal: scan failed: boom"; got != want {
		t.Fatalf("Error() = %q, want %q", got, want)
	}
}

func TestIsMatchesKindThroughWrapping(t *testing.T) {
	inner := New(OutOfRange, "dim out of range")
	outer := Wrap(InvalidArgument, "create rejected", inner)
	if !Is(outer, InvalidArgument) {
		t.Fatalf("Is(outer, InvalidArgument) = false, want true")
	}
	if Is(outer, OutOfRange) {
		t.Fatalf("Is(outer, OutOfRange) = true, want false (outer's own Kind wins)")
	}
}

func TestKindOfDefaultsToInternalForUnclassifiedError(t *testing.T) {
	if got := KindOf(errors.New("plain error")); got != Internal {
		t.Fatalf("KindOf(plain) = %v, want Internal", got)
	}
	if got := KindOf(nil); got != "" {
		t.Fatalf("KindOf(nil) = %v, want empty Kind", got)
	}
	if got := KindOf(New(AlreadyExists, "dup")); got != AlreadyExists {
		t.Fatalf("KindOf(*Error) = %v, want AlreadyExists", got)
	}
}
