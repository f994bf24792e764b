package compileerr

import (
	"errors"
	"testing"
)

func TestNewFormatsMessage(t *testing.T) {
	err := New(KindInvalidQuery, nil, "bad clause %d", 7)
	if err.Kind != KindInvalidQuery {
		t.Fatalf("Kind = %q, want %q", err.Kind, KindInvalidQuery)
	}
	if err.Error() != "bad clause 7" {
		t.Fatalf("Error() = %q, want %q", err.Error(), "bad clause 7")
	}
}

func TestWrapPreservesCause(t *testing.T) {
	cause := errors.New("underlying failure")
	err := Wrap(KindFieldResolutionFailure, "some-clause", cause)
	if !errors.Is(err, cause) {
		t.Fatalf("expected Wrap's result to unwrap to the original cause")
	}
	if err.Error() != cause.Error() {
		t.Fatalf("Error() = %q, want %q", err.Error(), cause.Error())
	}
}

func TestCompileErrorIsDetectableViaErrorsAs(t *testing.T) {
	var err error = New(KindUnknownClause, nil, "unknown")
	var ce *CompileError
	if !errors.As(err, &ce) {
		t.Fatalf("expected errors.As to match *CompileError")
	}
	if ce.Kind != KindUnknownClause {
		t.Fatalf("Kind = %q, want %q", ce.Kind, KindUnknownClause)
	}
}
