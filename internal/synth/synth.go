// Package synth implements the synthesizer (spec §4.5, component C5):
// manufacturing stand-ins for missing input objects, plus the two
// dynamic-field "self-heal" fetcher shapes the VM harness installs for
// runtime child-object loads.
package synth

import (
	"context"

	"sui-replay/internal/addr"
	"sui-replay/internal/errs"
	"sui-replay/internal/typetag"
)

// PackageQuery resolves an object's type at a checkpoint (preferred) or
// latest (fallback), the GraphQL-style collaborator named in spec §4.5
// step 1.
type PackageQuery interface {
	ObjectType(ctx context.Context, id string, checkpoint *uint64) (typeStr string, err error)
}

// MissingInput names one (id, version) pair the harness could not resolve
// during a first execution attempt.
type MissingInput struct {
	ID      string
	Version uint64
}

// Synthesized is one manufactured stand-in, ready for insertion into all
// three ObjectMap key forms.
type Synthesized struct {
	ID          string
	Version     uint64
	TypeTag     string
	Bytes       []byte
	IsStub      bool
	Description string
}

// Synthesizer manufactures stand-ins for missing inputs and answers
// dynamic-field self-heal lookups, both backed by the same TypeSynthesizer.
type Synthesizer struct {
	query   PackageQuery
	typer   *typetag.TypeSynthesizer
	aliases map[addr.Address]addr.Address
}

// New builds a Synthesizer. model may be nil (generic stub path only).
func New(query PackageQuery, model *typetag.TypeModel, aliases map[addr.Address]addr.Address) *Synthesizer {
	return &Synthesizer{
		query:   query,
		typer:   typetag.NewTypeSynthesizer(model),
		aliases: aliases,
	}
}

// SynthesizeMissingInput implements spec §4.5 steps 1-3 for one missing
// (id, version) pair.
func (s *Synthesizer) SynthesizeMissingInput(ctx context.Context, missing MissingInput, checkpoint *uint64) (Synthesized, error) {
	norm, err := addr.Normalize(missing.ID)
	if err != nil {
		return Synthesized{}, err
	}

	typeStr, err := s.query.ObjectType(ctx, norm, checkpoint)
	if err != nil {
		return Synthesized{}, errs.Wrapf(errs.MissingObject, err, "resolve type for missing input %s", norm)
	}

	rewritten, err := typetag.RewriteTypeString(typeStr, s.aliases)
	if err != nil {
		rewritten = typeStr
	}

	result, err := s.typer.SynthesizeWithFallback(rewritten)
	if err != nil {
		return Synthesized{}, errs.Wrapf(errs.BadType, err, "synthesize missing input %s", norm)
	}

	bz := overwriteIDSlot(result.Bytes, norm)

	return Synthesized{
		ID:          norm,
		Version:     missing.Version,
		TypeTag:     rewritten,
		Bytes:       bz,
		IsStub:      result.IsStub,
		Description: result.Description,
	}, nil
}

// overwriteIDSlot replaces the first 32 bytes of bz with the big-endian
// bytes of the normalized id, per the TypeSynthesizer contract (spec §4.1:
// "first 32 bytes are the object ID slot").
func overwriteIDSlot(bz []byte, normalizedID string) []byte {
	a, err := addr.Parse(normalizedID)
	if err != nil || len(bz) < 32 {
		return bz
	}
	out := make([]byte, len(bz))
	copy(out, bz)
	copy(out[:32], a[:])
	return out
}

// ChildLookup is what a versioned or key-based fetch returns: the object's
// type and bytes, or a zero value with ok=false when nothing was found.
type ChildLookup struct {
	TypeTag string
	Bytes   []byte
	Version uint64
}

// VersionedChildFetcher resolves (parent, child_id) to an object, returning
// ok=false if the remote object's version exceeds maxInputVersion (spec
// §4.5: "preventing anachronism").
type VersionedChildFetcher func(ctx context.Context, parent, childID string, maxInputVersion uint64) (ChildLookup, bool, error)

// KeyBasedChildFetcher looks up a dynamic field by its BCS-encoded key. A
// fetcher built by WrapKeyBasedWithFallback falls back to synthesized bytes
// if the remote returned a type but no bytes (spec §4.5); other
// implementations return whatever their lookup produced.
type KeyBasedChildFetcher func(ctx context.Context, parent, childID string, keyType string, keyBytes []byte) (ChildLookup, bool, error)

// WrapKeyBasedWithFallback adapts a raw remote key-based lookup (which may
// report a type with no bytes) into a KeyBasedChildFetcher that fills in
// synthesized bytes for that case, per spec §4.5.
func (s *Synthesizer) WrapKeyBasedWithFallback(remote func(ctx context.Context, parent, childID, keyType string, keyBytes []byte) (typeStr string, bz []byte, found bool, err error)) KeyBasedChildFetcher {
	return func(ctx context.Context, parent, childID, keyType string, keyBytes []byte) (ChildLookup, bool, error) {
		typeStr, bz, found, err := remote(ctx, parent, childID, keyType, keyBytes)
		if err != nil {
			return ChildLookup{}, false, err
		}
		if !found {
			return ChildLookup{}, false, nil
		}
		if len(bz) > 0 {
			return ChildLookup{TypeTag: typeStr, Bytes: bz}, true, nil
		}
		rewritten, rerr := typetag.RewriteTypeString(typeStr, s.aliases)
		if rerr != nil {
			rewritten = typeStr
		}
		result, serr := s.typer.SynthesizeWithFallback(rewritten)
		if serr != nil {
			return ChildLookup{}, false, serr
		}
		return ChildLookup{TypeTag: rewritten, Bytes: overwriteIDSlot(result.Bytes, childID)}, true, nil
	}
}
