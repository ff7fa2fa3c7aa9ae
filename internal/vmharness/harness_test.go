package vmharness

import (
	"context"
	"testing"

	"sui-replay/internal/addr"
	"sui-replay/internal/objectmap"
	"sui-replay/internal/ptb"
	"sui-replay/internal/rtypes"
	"sui-replay/internal/synth"
	"sui-replay/internal/typetag"
)

func buildObjectMap(t *testing.T) *objectmap.ObjectMap {
	t.Helper()
	state := &rtypes.ReplayState{
		Objects: map[string]*rtypes.SerializedObject{
			"0x10": {ID: "0x10", Version: 3, TypeTag: "0x2::coin::Coin<0x2::sui::SUI>", BCS: []byte("abc")},
		},
	}
	m, err := objectmap.Build(state)
	if err != nil {
		t.Fatalf("objectmap.Build: %v", err)
	}
	return m
}

func TestNewHarnessLoadsObjectMap(t *testing.T) {
	h := New(SimConfig{}, buildObjectMap(t), nil)
	norm, _ := addr.Normalize("0x10")
	st, ok := h.objects[norm]
	if !ok {
		t.Fatal("expected the seeded object to be present in the working set")
	}
	if st.version != 3 || string(st.bytes) != "abc" {
		t.Fatalf("unexpected object state: %+v", st)
	}
}

func TestExecuteCommandsResolvesOwnedInputAndMergesCoins(t *testing.T) {
	h := New(SimConfig{GasBudget: 100}, buildObjectMap(t), nil)
	tx := &ptb.Transaction{
		Digest: "0xdigest",
		Inputs: []ptb.Input{
			{Kind: ptb.InputOwnedObject, ObjectID: "0x10", Version: 3},
		},
		Commands: []ptb.Command{
			{Kind: ptb.CmdMergeCoins, MergeCoins: &ptb.MergeCoins{
				Destination: ptb.Argument{Kind: ptb.ArgGasCoin},
				Sources:     []ptb.Argument{{Kind: ptb.ArgInput, InputIndex: 0}},
			}},
		},
	}
	eff, failure := h.ExecuteCommands(context.Background(), tx)
	if failure != nil {
		t.Fatalf("unexpected failure: %+v", failure)
	}
	if !eff.Success {
		t.Fatalf("expected success, got %q", eff.Error)
	}
	if eff.GasUsed != 100 {
		t.Fatalf("GasUsed = %d, want 100", eff.GasUsed)
	}
	norm, _ := addr.Normalize("0x10")
	if len(eff.Deleted) != 1 || eff.Deleted[0] != norm {
		t.Fatalf("expected the merged source coin to be deleted, got %v", eff.Deleted)
	}
}

func TestExecuteCommandsMissingObjectRecordsMissingRef(t *testing.T) {
	h := New(SimConfig{}, buildObjectMap(t), nil)
	tx := &ptb.Transaction{
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
	_, failure := h.ExecuteCommands(context.Background(), tx)
	if failure == nil {
		t.Fatal("expected a failure when the input object cannot be resolved")
	}
	missing := h.Missing()
	if len(missing) != 1 {
		t.Fatalf("expected exactly one missing ref, got %v", missing)
	}
	norm, _ := addr.Normalize("0x999")
	if missing[0].ID != norm {
		t.Fatalf("missing ref id = %q, want %q", missing[0].ID, norm)
	}
}

func TestTryHealUsesVersionedFetcher(t *testing.T) {
	h := New(SimConfig{}, buildObjectMap(t), nil)
	h.SetVersionedChildFetcher(func(ctx context.Context, parent, childID string, maxInputVersion uint64) (synth.ChildLookup, bool, error) {
		return synth.ChildLookup{TypeTag: "u64", Bytes: []byte{1}, Version: 9}, true, nil
	})
	tx := &ptb.Transaction{
		Inputs: []ptb.Input{
			{Kind: ptb.InputOwnedObject, ObjectID: "0x77", Version: 1},
		},
		Commands: []ptb.Command{
			{Kind: ptb.CmdMergeCoins, MergeCoins: &ptb.MergeCoins{
				Destination: ptb.Argument{Kind: ptb.ArgGasCoin},
				Sources:     []ptb.Argument{{Kind: ptb.ArgInput, InputIndex: 0}},
			}},
		},
	}
	_, failure := h.ExecuteCommands(context.Background(), tx)
	if failure != nil {
		t.Fatalf("expected the versioned fetcher to heal the missing object: %+v", failure)
	}
}

func TestSharedInputMutableAdvancesLamportClock(t *testing.T) {
	h := New(SimConfig{}, buildObjectMap(t), nil)
	norm, _ := addr.Normalize("0x10")
	before := h.sharedLock.Current(norm)

	tx := &ptb.Transaction{
		Inputs: []ptb.Input{
			{Kind: ptb.InputSharedObject, ObjectID: "0x10", Mutable: true},
		},
		Commands: []ptb.Command{
			{Kind: ptb.CmdMergeCoins, MergeCoins: &ptb.MergeCoins{
				Destination: ptb.Argument{Kind: ptb.ArgGasCoin},
				Sources:     []ptb.Argument{{Kind: ptb.ArgInput, InputIndex: 0}},
			}},
		},
	}
	_, failure := h.ExecuteCommands(context.Background(), tx)
	if failure != nil {
		t.Fatalf("unexpected failure: %+v", failure)
	}
	after := h.sharedLock.Current(norm)
	if after != before+1 {
		t.Fatalf("expected a mutable shared input to advance the lamport clock: before=%d after=%d", before, after)
	}
}

func TestClassifyParamDelegatesToTypeModel(t *testing.T) {
	h := New(SimConfig{}, buildObjectMap(t), nil)
	model := typetag.FromModules(nil)
	h.SetTypeModel(model)
	if h.ClassifyParam(typetag.TypeTag{Kind: typetag.KU64}) != typetag.ParamPure {
		t.Fatal("expected a primitive to classify as ParamPure")
	}
}
