// Package addr implements canonical address handling for the replay engine.
//
// Addresses are 32-byte values, always compared in normalized form: lowercase
// hex, left-padded to 64 hex chars, prefixed "0x". A short form (e.g. "0x2")
// is accepted as input but is never used as an internal map key.
package addr

import (
	"strings"

	"github.com/ethereum/go-ethereum/common/hexutil"

	"sui-replay/internal/errs"
)

// Address is a 32-byte object/package identifier.
type Address [32]byte

// Len is the canonical hex digit count of a normalized address (64 hex
// chars, 32 bytes).
const Len = 64

// Framework addresses per spec §4.1 / §8 invariant 7.
var frameworkShorts = map[string]struct{}{
	"0x1": {},
	"0x2": {},
	"0x3": {},
	"0x5": {},
}

// Normalize returns the canonical 66-char form ("0x" + 64 lowercase hex
// digits) of s. It is idempotent: Normalize(Normalize(s)) == Normalize(s).
func Normalize(s string) (string, error) {
	h := strings.TrimSpace(s)
	h = strings.TrimPrefix(h, "0x")
	h = strings.TrimPrefix(h, "0X")
	if h == "" {
		return "", errs.New(errs.BadAddress, "empty address")
	}
	if len(h) > Len {
		return "", errs.Newf(errs.BadAddress, "address %q exceeds %d hex digits", s, Len)
	}
	h = strings.ToLower(h)
	for _, c := range h {
		if !isHexDigit(c) {
			return "", errs.Newf(errs.BadAddress, "address %q contains non-hex digit %q", s, c)
		}
	}
	padded := strings.Repeat("0", Len-len(h)) + h
	return "0x" + padded, nil
}

func isHexDigit(c rune) bool {
	return (c >= '0' && c <= '9') || (c >= 'a' && c <= 'f') || (c >= 'A' && c <= 'F')
}

// Parse normalizes s and decodes it into an Address.
func Parse(s string) (Address, error) {
	canon, err := Normalize(s)
	if err != nil {
		return Address{}, err
	}
	b, err := hexutil.Decode(canon)
	if err != nil {
		return Address{}, errs.Wrap(errs.BadAddress, err, "decode address "+s)
	}
	var a Address
	copy(a[:], b)
	return a, nil
}

// MustParse is Parse but panics on error; reserved for package-init literals
// (framework addresses) that are known-good at compile time.
func MustParse(s string) Address {
	a, err := Parse(s)
	if err != nil {
		panic(err)
	}
	return a
}

// Hex returns the canonical "0x"+64-hex-digit form of a.
func (a Address) Hex() string {
	return hexutil.Encode(a[:])
}

// Short returns a's hex form with leading zero nibbles stripped, keeping at
// least one digit (e.g. Address for 0x2 formats as "0x2", not
// "0x0000...0002"). Used as an alternate lookup key, never as a primary one.
func (a Address) Short() string {
	h := strings.TrimLeft(a.Hex()[2:], "0")
	if h == "" {
		h = "0"
	}
	return "0x" + h
}

// ShortForm strips leading zero nibbles from an already-normalized or raw hex
// string, for building the tri-key lookup forms described in spec §4.4.
func ShortForm(s string) (string, error) {
	canon, err := Normalize(s)
	if err != nil {
		return "", err
	}
	h := strings.TrimLeft(canon[2:], "0")
	if h == "" {
		h = "0"
	}
	return "0x" + h, nil
}

// IsFrameworkAddress reports whether a is one of 0x1, 0x2, 0x3, 0x5 (the
// system-state address). See spec §9 Open Questions: this is the single
// predicate every path consults, rather than each call site re-deciding
// whether 0x5 counts.
func IsFrameworkAddress(a Address) bool {
	_, ok := frameworkShorts[a.Short()]
	return ok
}

// IsFrameworkAddressString is a convenience wrapper over IsFrameworkAddress
// for callers that only have the string form.
func IsFrameworkAddressString(s string) bool {
	short, err := ShortForm(s)
	if err != nil {
		return false
	}
	_, ok := frameworkShorts[short]
	return ok
}

var (
	Zero   = Address{}
	Sys1   = MustParse("0x1")
	Sys2   = MustParse("0x2")
	Sys3   = MustParse("0x3")
	System = MustParse("0x5")
)
