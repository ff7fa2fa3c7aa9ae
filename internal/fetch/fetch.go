// Package fetch declares the external collaborator interfaces the
// orchestrator drives: checkpoint/object/package fetchers and the
// bytecode/transaction decoders (spec §1, §4.9). Every implementation is
// context-bound, matching the teacher's networking code style of bounding
// every outbound call with a deadline derived from the caller's context.
package fetch

import (
	"context"

	"sui-replay/internal/rtypes"
)

// CheckpointFetcher retrieves a checkpoint blob by sequence number from the
// archive, for C3's "locate the transaction by digest" hydration path.
type CheckpointFetcher interface {
	FetchCheckpoint(ctx context.Context, sequenceNumber uint64) (*rtypes.CheckpointBlob, error)
}

// ArchiveObjectFetcher retrieves a single object's BCS bytes at a known
// version, for the on-disk/archive object store named in spec §4.9 step 1.
type ArchiveObjectFetcher interface {
	FetchObject(ctx context.Context, id string, version uint64) (*rtypes.SerializedObject, error)
}

// PackageFetcher retrieves a package's decoded modules at a historical
// checkpoint (preferred) or latest (fallback), for dependency-closure
// resolution (spec §4.9 step 3) and the self-heal fetchers (spec §4.5).
type PackageFetcher interface {
	FetchPackage(ctx context.Context, address string, checkpoint *uint64) (*rtypes.PackageData, error)
}

// TransactionDecoder turns raw on-chain transaction bytes into the
// already-decoded *ptb.Transaction shape rtypes.ReplayState carries. It
// returns `any`, matching the untyped ReplayState.Transaction field
// (callers type-assert to *ptb.Transaction).
type TransactionDecoder interface {
	DecodeTransaction(ctx context.Context, raw []byte) (any, error)
}

// PackageDecoder turns raw compiled-module bytes into the typetag.Module
// shape rtypes.PackageData.Modules carries.
type PackageDecoder interface {
	DecodeModule(ctx context.Context, raw []byte) (any, error)
}

// HistoricalClient is the gRPC-style fetcher with a GraphQL-style co-client
// named in spec §4.9 step 1's non-checkpoint hydration path.
type HistoricalClient interface {
	CheckpointFetcher
	ArchiveObjectFetcher
	PackageFetcher
}
