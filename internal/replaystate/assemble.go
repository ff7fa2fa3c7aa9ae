// Package replaystate implements the replay state assembler (spec §4.3,
// component C3): locating one transaction inside a checkpoint blob and
// building the ReplayState it hydrates into, plus the effect-derived
// version extraction rule used to seed the version map.
package replaystate

import (
	"sui-replay/internal/addr"
	"sui-replay/internal/errs"
	"sui-replay/internal/rtypes"
)

// AssembleFromCheckpoint locates digest inside blob and builds the
// ReplayState it hydrates into (spec §4.3).
func AssembleFromCheckpoint(blob *rtypes.CheckpointBlob, digest string) (*rtypes.ReplayState, *rtypes.TxRecord, error) {
	if digest == "" {
		return nil, nil, errs.New(errs.BadDigest, "empty digest")
	}
	var found *rtypes.TxRecord
	for i := range blob.Transactions {
		if blob.Transactions[i].Digest == digest {
			found = &blob.Transactions[i]
			break
		}
	}
	if found == nil {
		return nil, nil, errs.Newf(errs.BadDigest, "transaction %s not found in checkpoint", digest)
	}

	state := &rtypes.ReplayState{
		Transaction:       found.Transaction,
		Epoch:             blob.Epoch,
		ProtocolVersion:   blob.ProtocolVersion,
		ReferenceGasPrice: blob.ReferenceGasPrice,
		Objects:           make(map[string]*rtypes.SerializedObject),
		Packages:          make(map[string]*rtypes.PackageData),
	}

	for _, obj := range found.InputObjects {
		insertObject(state, obj)
	}
	for _, obj := range found.OutputObjects {
		insertObject(state, obj)
	}
	for _, pkg := range found.ImmutablePackages {
		if pkg == nil {
			continue
		}
		norm, err := addr.Normalize(pkg.Address)
		if err != nil {
			continue
		}
		state.Packages[norm] = pkg
	}

	if found.Effects != nil {
		versions := ExtractVersions(found.Effects)
		for id, v := range versions {
			if obj, ok := state.Objects[id]; ok && obj.Version == 0 {
				obj.Version = v
			}
		}
	}

	return state, found, nil
}

func insertObject(state *rtypes.ReplayState, obj *rtypes.SerializedObject) {
	if obj == nil {
		return
	}
	norm, err := addr.Normalize(obj.ID)
	if err != nil {
		return
	}
	state.Objects[norm] = obj
}

// ExtractVersions implements the effect-derived version extraction rule
// (spec §4.3): the union of (id, version) pairs from
// unchanged_consensus_objects, unchanged_loaded_runtime_objects, and the
// *input* versions of mutated/deleted/wrapped objects. First entry wins on
// conflict; framework addresses are allowed.
func ExtractVersions(effects *rtypes.RecordedEffects) map[string]uint64 {
	out := make(map[string]uint64)
	insert := func(id string, v uint64) {
		norm, err := addr.Normalize(id)
		if err != nil {
			return
		}
		if _, exists := out[norm]; exists {
			return
		}
		out[norm] = v
	}

	for _, ref := range effects.UnchangedConsensusObjects {
		insert(ref.ID, ref.Version)
	}
	for _, ref := range effects.UnchangedLoadedRuntimeObjects {
		insert(ref.ID, ref.Version)
	}
	for _, c := range effects.Changed {
		switch c.Kind {
		case rtypes.ChangeMutated, rtypes.ChangeDeleted, rtypes.ChangeWrapped:
			insert(c.ID, c.InputVersion)
		}
	}
	return out
}
