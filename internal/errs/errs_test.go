package errs

import (
	"errors"
	"fmt"
	"testing"
)

func TestNewAndKind(t *testing.T) {
	e := New(BadDigest, "transaction not found")
	if e.Kind() != BadDigest {
		t.Fatalf("Kind() = %v, want BadDigest", e.Kind())
	}
	if e.Error() != "BadDigest: transaction not found" {
		t.Fatalf("Error() = %q", e.Error())
	}
}

func TestNewf(t *testing.T) {
	e := Newf(MissingObject, "object %s@%d missing", "0x2", 4)
	want := "MissingObject: object 0x2@4 missing"
	if e.Error() != want {
		t.Fatalf("Error() = %q, want %q", e.Error(), want)
	}
}

func TestWrapNilIsNil(t *testing.T) {
	if Wrap(Fetch, nil, "whatever") != nil {
		t.Fatal("Wrap(nil) should return nil")
	}
	if Wrapf(Fetch, nil, "whatever %d", 1) != nil {
		t.Fatal("Wrapf(nil) should return nil")
	}
}

func TestWrapUnwraps(t *testing.T) {
	cause := errors.New("boom")
	wrapped := Wrap(Fetch, cause, "fetch object")
	if !errors.Is(wrapped, cause) {
		t.Fatal("errors.Is should see through the wrap")
	}
	want := fmt.Sprintf("%s: %s: %v", Fetch, "fetch object", cause)
	if wrapped.Error() != want {
		t.Fatalf("Error() = %q, want %q", wrapped.Error(), want)
	}
}

func TestIs(t *testing.T) {
	var err error = New(LinkageCycle, "cycle detected")
	if !Is(err, LinkageCycle) {
		t.Fatal("Is should match the same kind")
	}
	if Is(err, Abort) {
		t.Fatal("Is should not match a different kind")
	}
	if Is(nil, Abort) {
		t.Fatal("Is(nil) should be false")
	}
}

func TestIsThroughWrapChain(t *testing.T) {
	inner := New(BadType, "bad type")
	outer := Wrap(Fetch, inner, "outer context")
	if !Is(outer, Fetch) {
		t.Fatal("Is should match the outer kind")
	}
	if Is(outer, BadType) {
		t.Fatal("Is does not walk into the inner *Error's own kind, only Unwrap() chains of non-*Error causes")
	}
}
