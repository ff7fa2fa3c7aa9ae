// Package rtypes holds the shared data model from spec §3: PackageData,
// ReplayState, the recorded-effects shapes used for version extraction and
// reconciliation, and the checkpoint blob shape C3 consumes.
package rtypes

import "sui-replay/internal/typetag"

// ModuleEntry is one (name, bytecode) pair of a package, plus the decoded
// form. Decoding raw Move bytecode is an external collaborator's job (spec
// §1); Decoded is what that decoder is assumed to have already produced.
type ModuleEntry struct {
	Name     string
	Bytecode []byte
	Decoded  *typetag.Module
}

// PackageData is the decoded form of one on-chain Move package (spec §3).
type PackageData struct {
	Address    string // canonical hex
	Version    uint64
	Modules    []ModuleEntry
	Linkage    map[string]string // runtime_dep_addr -> storage_dep_addr, canonical hex keys/values
	OriginalID *string           // canonical hex, nil if this is not an upgrade
}

// SerializedObject is one object's BCS bytes at a known version (spec §3).
type SerializedObject struct {
	ID       string // canonical hex
	Version  uint64
	TypeTag  string
	BCS      []byte
	Shared   bool
	Mutable  bool // meaningful only when Shared
	Imm      bool // immutable object
}

// ReplayState is the hydrated pre-transaction state a replay runs against
// (spec §3).
type ReplayState struct {
	Transaction       any // holds a *ptb.Transaction; typed any, so callers type-assert
	Checkpoint        *uint64
	Epoch             uint64
	ProtocolVersion   uint64
	ReferenceGasPrice uint64
	Objects           map[string]*SerializedObject // keyed by canonical id
	Packages          map[string]*PackageData      // keyed by canonical address
}

// ObjectVersionRef names one (id, version) pair.
type ObjectVersionRef struct {
	ID      string
	Version uint64
}

// ChangeKind classifies one changed-object entry in recorded effects.
type ChangeKind string

const (
	ChangeMutated  ChangeKind = "mutated"
	ChangeDeleted  ChangeKind = "deleted"
	ChangeWrapped  ChangeKind = "wrapped"
)

// ChangedObject is one mutated/deleted/wrapped object entry from recorded
// effects, carrying both its pre- and post-transaction version.
type ChangedObject struct {
	ID           string
	InputVersion uint64
	OutputVersion uint64
	Kind         ChangeKind
}

// RecordedEffects is the on-chain effects record a replay is reconciled
// against (spec §3 Effects, plus the extra bookkeeping §4.3 needs).
type RecordedEffects struct {
	Success                       bool
	UnchangedConsensusObjects     []ObjectVersionRef
	UnchangedLoadedRuntimeObjects []ObjectVersionRef
	Changed                       []ChangedObject
	Created, Mutated, Deleted     []string
	Wrapped, Unwrapped            []string
	Transferred, Received         []string
}

// CheckpointBlob is the raw archived batch C3 extracts one transaction
// from (spec §4.3). Fetching it is an external collaborator's job.
type CheckpointBlob struct {
	Epoch             uint64
	ProtocolVersion   uint64
	ReferenceGasPrice uint64
	Transactions      []TxRecord
}

// TxRecord is one transaction's inputs/outputs/effects within a checkpoint.
type TxRecord struct {
	Digest            string
	Transaction       any // *ptb.Transaction
	Effects           *RecordedEffects
	InputObjects      []*SerializedObject
	OutputObjects     []*SerializedObject
	ImmutablePackages []*PackageData
}
