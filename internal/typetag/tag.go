// Package typetag implements the type model and tag parser (spec §4.1,
// component C1): parsing and formatting canonical Move type strings,
// rewriting them through an alias map, and walking a lightweight bytecode
// signature model built from already-decoded modules.
package typetag

import (
	"strings"

	"sui-replay/internal/addr"
	"sui-replay/internal/errs"
)

// Kind enumerates the primitive and composite type tag shapes.
type Kind int

const (
	KBool Kind = iota
	KU8
	KU16
	KU32
	KU64
	KU128
	KU256
	KAddress
	KSigner
	KVector
	KStruct
)

// TypeTag is a canonical Move type tag. Vector and Struct are the only
// composite shapes; Elem/Struct are populated accordingly.
type TypeTag struct {
	Kind   Kind
	Elem   *TypeTag   // non-nil iff Kind == KVector
	Struct *StructTag // non-nil iff Kind == KStruct
}

// StructTag identifies a struct type and its type arguments.
type StructTag struct {
	Address    addr.Address
	Module     string
	Name       string
	TypeParams []TypeTag
}

var primitiveNames = map[string]Kind{
	"bool":    KBool,
	"u8":      KU8,
	"u16":     KU16,
	"u32":     KU32,
	"u64":     KU64,
	"u128":    KU128,
	"u256":    KU256,
	"address": KAddress,
	"signer":  KSigner,
}

var kindNames = map[Kind]string{
	KBool:    "bool",
	KU8:      "u8",
	KU16:     "u16",
	KU32:     "u32",
	KU64:     "u64",
	KU128:    "u128",
	KU256:    "u256",
	KAddress: "address",
	KSigner:  "signer",
}

// ParseTypeTag parses a canonical type string such as
// "0x2::coin::Coin<0x2::sui::SUI>" or "vector<u8>" into a TypeTag.
func ParseTypeTag(s string) (TypeTag, error) {
	p := &tagParser{input: s}
	tag, err := p.parseTag()
	if err != nil {
		return TypeTag{}, err
	}
	p.skipSpace()
	if p.pos != len(p.input) {
		return TypeTag{}, errs.Newf(errs.BadType, "trailing input after type tag %q", s)
	}
	return tag, nil
}

type tagParser struct {
	input string
	pos   int
}

func (p *tagParser) skipSpace() {
	for p.pos < len(p.input) && (p.input[p.pos] == ' ' || p.input[p.pos] == '\t') {
		p.pos++
	}
}

func (p *tagParser) parseTag() (TypeTag, error) {
	p.skipSpace()
	if p.pos >= len(p.input) {
		return TypeTag{}, errs.New(errs.BadType, "unexpected end of type tag")
	}

	if strings.HasPrefix(p.input[p.pos:], "vector<") {
		p.pos += len("vector<")
		elem, err := p.parseTag()
		if err != nil {
			return TypeTag{}, err
		}
		p.skipSpace()
		if p.pos >= len(p.input) || p.input[p.pos] != '>' {
			return TypeTag{}, errs.Newf(errs.BadType, "malformed vector tag %q: missing '>'", p.input)
		}
		p.pos++
		return TypeTag{Kind: KVector, Elem: &elem}, nil
	}

	ident := p.readIdent()
	if ident == "" {
		return TypeTag{}, errs.Newf(errs.BadType, "malformed type tag %q at offset %d", p.input, p.pos)
	}
	if kind, ok := primitiveNames[ident]; ok {
		return TypeTag{Kind: kind}, nil
	}

	// Must be a struct tag: <address>::<module>::<name>[<type params>]
	addrStr := ident
	if err := p.expectLiteral("::"); err != nil {
		return TypeTag{}, errs.Newf(errs.BadType, "malformed struct tag %q: expected '::' after address", p.input)
	}
	module := p.readIdent()
	if module == "" {
		return TypeTag{}, errs.Newf(errs.BadType, "malformed struct tag %q: missing module", p.input)
	}
	if err := p.expectLiteral("::"); err != nil {
		return TypeTag{}, errs.Newf(errs.BadType, "malformed struct tag %q: expected '::' after module", p.input)
	}
	name := p.readIdent()
	if name == "" {
		return TypeTag{}, errs.Newf(errs.BadType, "malformed struct tag %q: missing type name", p.input)
	}

	a, err := addr.Parse(addrStr)
	if err != nil {
		return TypeTag{}, err
	}

	var typeParams []TypeTag
	p.skipSpace()
	if p.pos < len(p.input) && p.input[p.pos] == '<' {
		p.pos++
		for {
			tp, err := p.parseTag()
			if err != nil {
				return TypeTag{}, err
			}
			typeParams = append(typeParams, tp)
			p.skipSpace()
			if p.pos < len(p.input) && p.input[p.pos] == ',' {
				p.pos++
				continue
			}
			break
		}
		p.skipSpace()
		if p.pos >= len(p.input) || p.input[p.pos] != '>' {
			return TypeTag{}, errs.Newf(errs.BadType, "malformed type params in %q: missing '>'", p.input)
		}
		p.pos++
	}

	return TypeTag{Kind: KStruct, Struct: &StructTag{
		Address:    a,
		Module:     module,
		Name:       name,
		TypeParams: typeParams,
	}}, nil
}

func (p *tagParser) readIdent() string {
	p.skipSpace()
	start := p.pos
	for p.pos < len(p.input) {
		c := p.input[p.pos]
		if c == ':' || c == '<' || c == '>' || c == ',' || c == ' ' || c == '\t' {
			break
		}
		p.pos++
	}
	return p.input[start:p.pos]
}

func (p *tagParser) expectLiteral(lit string) error {
	if strings.HasPrefix(p.input[p.pos:], lit) {
		p.pos += len(lit)
		return nil
	}
	return errs.Newf(errs.BadType, "expected %q at offset %d in %q", lit, p.pos, p.input)
}

// FormatTypeTag renders t back into its canonical string form.
func FormatTypeTag(t TypeTag) string {
	switch t.Kind {
	case KVector:
		return "vector<" + FormatTypeTag(*t.Elem) + ">"
	case KStruct:
		var sb strings.Builder
		sb.WriteString(t.Struct.Address.Hex())
		sb.WriteString("::")
		sb.WriteString(t.Struct.Module)
		sb.WriteString("::")
		sb.WriteString(t.Struct.Name)
		if len(t.Struct.TypeParams) > 0 {
			sb.WriteString("<")
			for i, tp := range t.Struct.TypeParams {
				if i > 0 {
					sb.WriteString(", ")
				}
				sb.WriteString(FormatTypeTag(tp))
			}
			sb.WriteString(">")
		}
		return sb.String()
	default:
		return kindNames[t.Kind]
	}
}

// RewriteTypeTag walks t and rewrites any struct address found as a key in
// aliases to its mapped runtime address, recursively through type
// arguments. Idempotent: rewriting an already-rewritten tag is a no-op once
// the alias chain is exhausted.
func RewriteTypeTag(t TypeTag, aliases map[addr.Address]addr.Address) TypeTag {
	switch t.Kind {
	case KVector:
		rewritten := RewriteTypeTag(*t.Elem, aliases)
		return TypeTag{Kind: KVector, Elem: &rewritten}
	case KStruct:
		newAddr := t.Struct.Address
		if mapped, ok := aliases[newAddr]; ok {
			newAddr = mapped
		}
		params := make([]TypeTag, len(t.Struct.TypeParams))
		for i, p := range t.Struct.TypeParams {
			params[i] = RewriteTypeTag(p, aliases)
		}
		return TypeTag{Kind: KStruct, Struct: &StructTag{
			Address:    newAddr,
			Module:     t.Struct.Module,
			Name:       t.Struct.Name,
			TypeParams: params,
		}}
	default:
		return t
	}
}

// RewriteTypeString is the string-in/string-out convenience form of
// RewriteTypeTag used by the object-map patch pass (spec §4.4).
func RewriteTypeString(s string, aliases map[addr.Address]addr.Address) (string, error) {
	t, err := ParseTypeTag(s)
	if err != nil {
		return "", err
	}
	return FormatTypeTag(RewriteTypeTag(t, aliases)), nil
}

// ExtractPackageIDs walks the tag tree embedded in s and returns the set of
// canonical package addresses it references.
func ExtractPackageIDs(s string) (map[string]struct{}, error) {
	t, err := ParseTypeTag(s)
	if err != nil {
		return nil, err
	}
	out := map[string]struct{}{}
	collectPackageIDs(t, out)
	return out, nil
}

func collectPackageIDs(t TypeTag, out map[string]struct{}) {
	switch t.Kind {
	case KVector:
		collectPackageIDs(*t.Elem, out)
	case KStruct:
		out[t.Struct.Address.Hex()] = struct{}{}
		for _, p := range t.Struct.TypeParams {
			collectPackageIDs(p, out)
		}
	}
}

// IsFrameworkAddress re-exports addr.IsFrameworkAddress under the name the
// spec's C1 contract uses.
func IsFrameworkAddress(a addr.Address) bool { return addr.IsFrameworkAddress(a) }

// NormalizeAddress re-exports addr.Normalize under the name the spec's C1
// contract uses.
func NormalizeAddress(s string) (string, error) { return addr.Normalize(s) }
