package orchestrator

import (
	"context"
	"testing"

	"sui-replay/internal/addr"
	"sui-replay/internal/errs"
	"sui-replay/internal/ptb"
	"sui-replay/internal/rtypes"
)

type fakeCheckpointFetcher struct {
	blob *rtypes.CheckpointBlob
}

func (f fakeCheckpointFetcher) FetchCheckpoint(ctx context.Context, sequenceNumber uint64) (*rtypes.CheckpointBlob, error) {
	return f.blob, nil
}

func sampleBlob(digest string, effects *rtypes.RecordedEffects) *rtypes.CheckpointBlob {
	tx := &ptb.Transaction{
		Digest:    digest,
		Sender:    addr.Sys2,
		GasBudget: 50,
		Inputs: []ptb.Input{
			{Kind: ptb.InputOwnedObject, ObjectID: "0x10", Version: 1},
		},
		Commands: []ptb.Command{
			{Kind: ptb.CmdMergeCoins, MergeCoins: &ptb.MergeCoins{
				Destination: ptb.Argument{Kind: ptb.ArgGasCoin},
				Sources:     []ptb.Argument{{Kind: ptb.ArgInput, InputIndex: 0}},
			}},
		},
	}
	return &rtypes.CheckpointBlob{
		Epoch: 1,
		Transactions: []rtypes.TxRecord{
			{
				Digest:      digest,
				Transaction: tx,
				InputObjects: []*rtypes.SerializedObject{
					{ID: "0x10", Version: 1, TypeTag: "0x2::coin::Coin<0x2::sui::SUI>", BCS: []byte("abc")},
				},
				Effects: effects,
			},
		},
	}
}

func TestReplaySucceedsFromCheckpoint(t *testing.T) {
	checkpoint := uint64(5)
	o := New(Options{
		RequestedSource:   SourceHybrid,
		Checkpoint:        &checkpoint,
		AllowFallback:     true,
		SynthesizeMissing: true,
	}, Collaborators{
		CheckpointFetcher: fakeCheckpointFetcher{blob: sampleBlob("0xtx", nil)},
	})

	envelope, err := o.Replay(context.Background(), "0xtx")
	if err != nil {
		t.Fatalf("Replay: %v", err)
	}
	if !envelope.LocalSuccess {
		t.Fatalf("expected local success, got error %q", envelope.Effects.Error)
	}
	if envelope.Digest != "0xtx" {
		t.Fatalf("Digest = %q, want 0xtx", envelope.Digest)
	}
	if envelope.ExecutionPath.EffectiveSource != string(SourceHybrid) {
		t.Fatalf("EffectiveSource = %q, want %q", envelope.ExecutionPath.EffectiveSource, SourceHybrid)
	}
	if envelope.Comparison != nil {
		t.Fatal("expected no comparison when the checkpoint carries no recorded effects")
	}
}

func TestReplayReconcilesAgainstRecordedEffects(t *testing.T) {
	checkpoint := uint64(5)
	recorded := &rtypes.RecordedEffects{Success: true, Deleted: []string{addr.MustParse("0x10").Hex()}}
	o := New(Options{Checkpoint: &checkpoint}, Collaborators{
		CheckpointFetcher: fakeCheckpointFetcher{blob: sampleBlob("0xtx", recorded)},
	})
	envelope, err := o.Replay(context.Background(), "0xtx")
	if err != nil {
		t.Fatalf("Replay: %v", err)
	}
	if envelope.Comparison == nil {
		t.Fatal("expected a comparison against recorded effects")
	}
	if !envelope.Comparison.StatusMatch {
		t.Fatal("expected local and recorded status to match")
	}
}

func TestReplayAnalyzeOnly(t *testing.T) {
	checkpoint := uint64(5)
	o := New(Options{Checkpoint: &checkpoint, AnalyzeOnly: true}, Collaborators{
		CheckpointFetcher: fakeCheckpointFetcher{blob: sampleBlob("0xtx", nil)},
	})
	envelope, err := o.Replay(context.Background(), "0xtx")
	if err != nil {
		t.Fatalf("Replay: %v", err)
	}
	if envelope.Analysis == nil {
		t.Fatal("expected an Analysis block in analyze-only mode")
	}
	if envelope.Analysis.ObjectsLoaded != 1 {
		t.Fatalf("ObjectsLoaded = %d, want 1", envelope.Analysis.ObjectsLoaded)
	}
	if !envelope.Analysis.MM2ModelOK {
		t.Fatalf("expected the type model to build cleanly, got error %q", envelope.Analysis.MM2Error)
	}
	if envelope.Analysis.Sender != addr.Sys2.Hex() {
		t.Fatalf("Sender = %q, want %q", envelope.Analysis.Sender, addr.Sys2.Hex())
	}
	if envelope.Analysis.TimestampMs <= 0 {
		t.Fatalf("expected a positive TimestampMs, got %d", envelope.Analysis.TimestampMs)
	}
}

func TestReplayMissingObjectProducesDiagnostics(t *testing.T) {
	checkpoint := uint64(5)
	digest := "0xtx2"
	tx := &ptb.Transaction{
		Digest: digest,
		Inputs: []ptb.Input{
			{Kind: ptb.InputOwnedObject, ObjectID: "0x999", Version: 1},
		},
		Commands: []ptb.Command{
			{Kind: ptb.CmdMergeCoins, MergeCoins: &ptb.MergeCoins{
				Destination: ptb.Argument{Kind: ptb.ArgGasCoin},
				Sources:     []ptb.Argument{{Kind: ptb.ArgInput, InputIndex: 0}},
			}},
		},
	}
	blob := &rtypes.CheckpointBlob{
		Transactions: []rtypes.TxRecord{{Digest: digest, Transaction: tx}},
	}
	o := New(Options{Checkpoint: &checkpoint, SynthesizeMissing: false}, Collaborators{
		CheckpointFetcher: fakeCheckpointFetcher{blob: blob},
	})
	envelope, err := o.Replay(context.Background(), digest)
	if err != nil {
		t.Fatalf("Replay: %v", err)
	}
	if envelope.LocalSuccess {
		t.Fatal("expected the replay to fail on an unresolvable input object")
	}
	if envelope.Diagnostics == nil || len(envelope.Diagnostics.MissingInputObjects) != 1 {
		t.Fatalf("expected one missing input object in diagnostics, got %+v", envelope.Diagnostics)
	}
}

func TestReplayNoHydrationSourceErrors(t *testing.T) {
	o := New(Options{}, Collaborators{})
	_, err := o.Replay(context.Background(), "0xtx")
	if err == nil || !errs.Is(err, errs.Fetch) {
		t.Fatalf("expected a Fetch error for no hydration source, got %v", err)
	}
}

func TestReplayEmptyDigestAndNoStateFileErrors(t *testing.T) {
	o := New(Options{}, Collaborators{})
	_, err := o.Replay(context.Background(), "")
	if err == nil || !errs.Is(err, errs.BadDigest) {
		t.Fatalf("expected a BadDigest error, got %v", err)
	}
}
