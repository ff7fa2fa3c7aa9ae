// Package bcsutil wraps github.com/iotaledger/bcs-go for the byte payloads
// this module fabricates itself: synthesizer stub values (encoded by
// internal/typetag's TypeSynthesizer, which internal/synth drives).
// Prepared-context module blobs are plain base64 and do not pass through
// this package. The BCS decoding of real on-chain transactions
// and packages stays an external collaborator per spec §1 — this package
// only round-trips values this repository produces.
package bcsutil

import (
	"github.com/iotaledger/bcs-go"

	"sui-replay/internal/errs"
)

// Marshal BCS-encodes v.
func Marshal(v any) ([]byte, error) {
	b, err := bcs.Marshal(v)
	if err != nil {
		return nil, errs.Wrap(errs.BadType, err, "bcs marshal")
	}
	return b, nil
}

// Unmarshal BCS-decodes data into v.
func Unmarshal(data []byte, v any) error {
	if err := bcs.Unmarshal(data, v); err != nil {
		return errs.Wrap(errs.BadType, err, "bcs unmarshal")
	}
	return nil
}

// StubPayload is the canonical shape synthesized placeholder objects encode:
// a 32-byte id slot (always overwritten by the caller per spec §4.1) plus a
// type-shaped filler blob.
type StubPayload struct {
	ID     [32]byte
	Filler []byte
}

// MarshalStub BCS-encodes a StubPayload and returns the resulting bytes,
// which are guaranteed to be at least 32 bytes long with the id slot first
// (spec §8 invariant 5).
func MarshalStub(id [32]byte, filler []byte) ([]byte, error) {
	return Marshal(StubPayload{ID: id, Filler: filler})
}
