package addr

import (
	"testing"

	"sui-replay/internal/errs"
)

const canonical2 = "0x0000000000000000000000000000000000000000000000000000000000000002"

func TestNormalize(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"0x2", canonical2},
		{"0X2", canonical2},
		{"2", canonical2},
	}
	for _, c := range cases {
		got, err := Normalize(c.in)
		if err != nil {
			t.Fatalf("Normalize(%q) error: %v", c.in, err)
		}
		if got != c.want {
			t.Fatalf("Normalize(%q) = %q, want %q", c.in, got, c.want)
		}
	}
}

func TestNormalizeIdempotent(t *testing.T) {
	once, err := Normalize("0xABCDEF")
	if err != nil {
		t.Fatal(err)
	}
	twice, err := Normalize(once)
	if err != nil {
		t.Fatal(err)
	}
	if once != twice {
		t.Fatalf("Normalize not idempotent: %q != %q", once, twice)
	}
}

func TestNormalizeErrors(t *testing.T) {
	for _, in := range []string{"", "zz", "0x" + string(make([]byte, 65))} {
		if _, err := Normalize(in); err == nil {
			t.Fatalf("Normalize(%q) expected error", in)
		} else if !errs.Is(err, errs.BadAddress) {
			t.Fatalf("Normalize(%q) error kind = %v, want BadAddress", in, err)
		}
	}
}

func TestParseRoundTrip(t *testing.T) {
	a, err := Parse("0x2")
	if err != nil {
		t.Fatal(err)
	}
	if a.Hex() != Sys2.Hex() {
		t.Fatalf("Parse(0x2).Hex() = %s, want %s", a.Hex(), Sys2.Hex())
	}
	if a.Short() != "0x2" {
		t.Fatalf("Short() = %s, want 0x2", a.Short())
	}
}

func TestIsFrameworkAddress(t *testing.T) {
	for _, a := range []Address{Sys1, Sys2, Sys3, System} {
		if !IsFrameworkAddress(a) {
			t.Fatalf("%s expected to be a framework address", a.Hex())
		}
	}
	other, err := Parse("0x99")
	if err != nil {
		t.Fatal(err)
	}
	if IsFrameworkAddress(other) {
		t.Fatalf("0x99 should not be a framework address")
	}
}

func TestIsFrameworkAddressString(t *testing.T) {
	if !IsFrameworkAddressString("0x5") {
		t.Fatal("0x5 expected to be a framework address")
	}
	if IsFrameworkAddressString("not-an-address") {
		t.Fatal("invalid string should not be a framework address")
	}
}

func TestShortForm(t *testing.T) {
	short, err := ShortForm("0x0000000000000000000000000000000000000000000000000000000000000002")
	if err != nil {
		t.Fatal(err)
	}
	if short != "0x2" {
		t.Fatalf("ShortForm = %s, want 0x2", short)
	}
}
