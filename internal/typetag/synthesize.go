package typetag

import (
	"sui-replay/internal/bcsutil"
	"sui-replay/internal/errs"
)

// SynthResult is the output of TypeSynthesizer.SynthesizeWithFallback: some
// BCS buffer whose first 32 bytes are the object-id slot, plus whether the
// value is a structurally-arbitrary stub (unknown/opaque type) or a
// best-effort field-accurate fill (known struct in the model).
type SynthResult struct {
	Bytes       []byte
	IsStub      bool
	Description string
}

// TypeSynthesizer manufactures placeholder BCS values for a TypeModel (spec
// §4.1 "TypeSynthesizer on a TypeModel").
type TypeSynthesizer struct {
	model *TypeModel
}

// NewTypeSynthesizer builds a synthesizer bound to model. model may be nil,
// in which case every request is answered with the generic stub path.
func NewTypeSynthesizer(model *TypeModel) *TypeSynthesizer {
	return &TypeSynthesizer{model: model}
}

// minFillerLen ensures every synthesized value is at least wide enough that
// overwriting the first 32 bytes with an object id never truncates it.
const minFillerLen = 32

// SynthesizeWithFallback returns a BCS buffer for typeStr. For any
// syntactically valid type tag it always succeeds (spec §8 invariant 5);
// unknown/opaque types are marked IsStub.
func (s *TypeSynthesizer) SynthesizeWithFallback(typeStr string) (SynthResult, error) {
	tag, err := ParseTypeTag(typeStr)
	if err != nil {
		return SynthResult{}, err
	}

	filler, isStub, desc := s.fillerFor(tag, 0)
	if len(filler) < minFillerLen {
		filler = append(filler, make([]byte, minFillerLen-len(filler))...)
	}

	var idSlot [32]byte
	bz, err := bcsutil.MarshalStub(idSlot, filler)
	if err != nil {
		return SynthResult{}, errs.Wrap(errs.BadType, err, "synthesize "+typeStr)
	}
	if len(bz) < 32 {
		bz = append(bz, make([]byte, 32-len(bz))...)
	}
	return SynthResult{Bytes: bz, IsStub: isStub, Description: desc}, nil
}

const maxSynthDepth = 32

// fillerFor produces a structurally valid (but semantically arbitrary)
// value for t, recursing for vector/struct shapes up to maxSynthDepth.
func (s *TypeSynthesizer) fillerFor(t TypeTag, depth int) (data []byte, isStub bool, description string) {
	if depth > maxSynthDepth {
		return []byte{0}, true, "max synthesis depth exceeded"
	}
	switch t.Kind {
	case KBool:
		return []byte{0}, false, "bool"
	case KU8:
		return []byte{0}, false, "u8"
	case KU16:
		return make([]byte, 2), false, "u16"
	case KU32:
		return make([]byte, 4), false, "u32"
	case KU64:
		return make([]byte, 8), false, "u64"
	case KU128:
		return make([]byte, 16), false, "u128"
	case KU256:
		return make([]byte, 32), false, "u256"
	case KAddress:
		return make([]byte, 32), false, "address"
	case KSigner:
		return make([]byte, 32), true, "signer (stub: cannot synthesize a signing capability)"
	case KVector:
		elem, elemStub, _ := s.fillerFor(*t.Elem, depth+1)
		// Empty vector: length-prefix byte 0. Valid BCS for any element type.
		return append([]byte{0}, elem[:0]...), elemStub, "empty vector<" + FormatTypeTag(*t.Elem) + ">"
	case KStruct:
		return s.fillerForStruct(*t.Struct, depth)
	default:
		return []byte{0}, true, "unknown type kind"
	}
}

func (s *TypeSynthesizer) fillerForStruct(st StructTag, depth int) (data []byte, isStub bool, description string) {
	if s.model == nil {
		return make([]byte, minFillerLen), true, "no type model available for " + st.Name
	}
	def, ok := s.model.LookupStruct(st.Address, st.Module, st.Name)
	if !ok {
		return make([]byte, minFillerLen), true, "opaque/unresolved struct " + st.Module + "::" + st.Name
	}
	var out []byte
	anyStub := false
	for _, f := range def.Fields {
		ft := f.Type
		// Rewrite any generic placeholder type parameters is the caller's
		// job (RewriteTypeTag); here we just walk concrete field types.
		fb, fStub, _ := s.fillerFor(ft, depth+1)
		out = append(out, fb...)
		anyStub = anyStub || fStub
	}
	return out, anyStub, "struct " + st.Module + "::" + st.Name
}
