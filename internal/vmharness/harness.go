// Package vmharness implements the VM harness (spec §4.6, component C6):
// owns the simulation config, the alias/version pins the resolver hands
// it, the shared-object Lamport clock, and the self-heal child fetchers,
// and drives the executor (C7) over one transaction's commands.
//
// Grounded on the teacher's core/virtual_machine.go LightVM: a struct that
// owns mutable execution state (registers/memory there, an object working
// set here) and exposes one "run the program" entry point.
package vmharness

import (
	"context"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"sync"

	"github.com/google/uuid"

	"sui-replay/internal/addr"
	"sui-replay/internal/effects"
	"sui-replay/internal/errs"
	"sui-replay/internal/exec"
	"sui-replay/internal/objectmap"
	"sui-replay/internal/ptb"
	"sui-replay/internal/synth"
	"sui-replay/internal/typetag"
)

// SimConfig is the simulation configuration derived from a ReplayState
// (spec §4.6: "epoch, protocol version, reference gas price, sender").
type SimConfig struct {
	Epoch             uint64
	ProtocolVersion   uint64
	ReferenceGasPrice uint64
	Sender            addr.Address
	Checkpoint        *uint64
	GasBudget         uint64
}

// objState is one object's current working-set snapshot.
type objState struct {
	typeTag string
	bytes   []byte
	version uint64
	shared  bool
	mutable bool
	imm     bool
}

// Harness is C6: it owns the mutable object working set for one replay and
// drives the executor over a transaction's commands.
type Harness struct {
	cfg SimConfig

	mu      sync.Mutex
	aliases map[addr.Address]addr.Address
	model   *typetag.TypeModel

	objects    map[string]objState
	sharedLock *SharedLock
	maxVersion uint64

	lookupFn func(pkg addr.Address, module, fn string) (typetag.FunctionSignature, bool)

	versionedFetch synth.VersionedChildFetcher
	keyBasedFetch  synth.KeyBasedChildFetcher

	ctx context.Context
	eff *effects.Effects

	inputs                []ptb.Input
	receivingMaterialized map[int]bool

	gasCoinID string
	missing   []MissingRef
}

// MissingRef names one (id, version) pair the harness could not resolve
// while running a transaction, feeding the synthesize-and-retry step (spec
// §4.9 step 7).
type MissingRef struct {
	ID      string
	Version uint64
}

// Missing returns every input this harness failed to resolve during its
// last ExecuteCommands call.
func (h *Harness) Missing() []MissingRef {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]MissingRef, len(h.missing))
	copy(out, h.missing)
	return out
}

// New builds a Harness over the given object map (C4 output), seeded with
// cfg. lookupFn resolves a function signature, normally backed by a
// resolver.LocalModuleResolver.
func New(cfg SimConfig, objMap *objectmap.ObjectMap, lookupFn func(pkg addr.Address, module, fn string) (typetag.FunctionSignature, bool)) *Harness {
	h := &Harness{
		cfg:        cfg,
		objects:    make(map[string]objState),
		sharedLock: NewSharedLock(objMap.VersionMap),
		lookupFn:   lookupFn,
	}
	for id, b64 := range objMap.CachedObjects {
		norm, err := addr.Normalize(id)
		if err != nil {
			continue
		}
		st := h.objects[norm]
		st.typeTag = objMap.TypeTags[norm]
		st.version = objMap.VersionMap[norm]
		if st.version > h.maxVersion {
			h.maxVersion = st.version
		}
		st.bytes, _ = base64.StdEncoding.DecodeString(b64)
		h.objects[norm] = st
	}
	return h
}

// SetAddressAliasesWithVersions installs the resolver's current alias map
// and the historical version pins the VM must load against (spec §4.6).
func (h *Harness) SetAddressAliasesWithVersions(aliases map[addr.Address]addr.Address, versionsStr map[string]uint64) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.aliases = aliases
	for id, v := range versionsStr {
		norm, err := addr.Normalize(id)
		if err != nil {
			continue
		}
		st := h.objects[norm]
		st.version = v
		h.objects[norm] = st
		if v > h.maxVersion {
			h.maxVersion = v
		}
	}
}

// SetTypeModel installs the type model used to classify Move call return
// values as objects vs. pure values.
func (h *Harness) SetTypeModel(m *typetag.TypeModel) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.model = m
}

// SetVersionedChildFetcher installs the self-heal fetcher for versioned
// child-object loads (spec §4.5/§4.6).
func (h *Harness) SetVersionedChildFetcher(f synth.VersionedChildFetcher) {
	h.versionedFetch = f
}

// SetKeyBasedChildFetcher stores the self-heal fetcher for dynamic-field
// key-based loads (spec §4.5/§4.6). No code path in this package calls the
// stored fetcher; only the versioned fetcher is consulted, by tryHeal.
func (h *Harness) SetKeyBasedChildFetcher(f synth.KeyBasedChildFetcher) {
	h.keyBasedFetch = f
}

// MaxVersion returns the largest version pin currently known, for wiring
// self-heal fetchers with max_input_version = max(version_map) (spec §4.9
// step 5).
func (h *Harness) MaxVersion() uint64 {
	return h.maxVersion
}

// InsertSynthesized merges a synthesizer stand-in (C5 output) into the
// working object set under its normalized id, the only key form the
// working set uses (input lookups normalize before reading it).
func (h *Harness) InsertSynthesized(s synth.Synthesized) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.objects[s.ID] = objState{typeTag: s.TypeTag, bytes: s.Bytes, version: s.Version}
	if s.Version > h.maxVersion {
		h.maxVersion = s.Version
	}
}

// ExecuteCommands drives tx's commands through the executor (spec §4.6
// execute_commands). inputs is bound for the duration of this call.
func (h *Harness) ExecuteCommands(ctx context.Context, tx *ptb.Transaction) (*effects.Effects, *exec.FailureCapture) {
	h.mu.Lock()
	h.ctx = ctx
	h.inputs = tx.Inputs
	h.receivingMaterialized = make(map[int]bool)
	h.eff = effects.New()
	h.missing = nil
	h.gasCoinID = newObjectID()
	h.objects[h.gasCoinID] = objState{typeTag: "0x2::coin::Coin<0x2::sui::SUI>", version: 1}
	h.mu.Unlock()

	executor := exec.NewExecutor(h)
	eff, failure := executor.Run(ctx, tx)

	h.mu.Lock()
	eff.GasUsed = h.cfg.GasBudget
	h.mu.Unlock()

	return eff, failure
}

// --- exec.Environment implementation ---

func (h *Harness) Input(i int) (exec.Value, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if i < 0 || i >= len(h.inputs) {
		return exec.Value{}, errs.Newf(errs.MissingObject, "input index %d out of range", i)
	}
	in := h.inputs[i]

	switch in.Kind {
	case ptb.InputPure:
		return exec.Value{IsObject: false, Pure: in.Pure}, nil
	case ptb.InputReceiving:
		h.receivingMaterialized[i] = true
		return h.resolveObjectInputLocked(in.ObjectID, in.Version)
	case ptb.InputSharedObject:
		norm, err := addr.Normalize(in.ObjectID)
		if err != nil {
			return exec.Value{}, err
		}
		lamport := h.sharedLock.Current(norm)
		v, err := h.resolveObjectInputLocked(norm, lamport)
		if err != nil {
			return exec.Value{}, err
		}
		v.Object.Version = lamport
		if in.Mutable {
			h.sharedLock.Advance(norm)
		}
		return v, nil
	default: // InputOwnedObject, InputImmutableObject
		return h.resolveObjectInputLocked(in.ObjectID, in.Version)
	}
}

// resolveObjectInputLocked must be called with h.mu held.
func (h *Harness) resolveObjectInputLocked(id string, version uint64) (exec.Value, error) {
	norm, err := addr.Normalize(id)
	if err != nil {
		return exec.Value{}, err
	}
	st, ok := h.objects[norm]
	if !ok {
		healed, found, herr := h.tryHeal(norm, version)
		if herr != nil {
			return exec.Value{}, herr
		}
		if !found {
			h.missing = append(h.missing, MissingRef{ID: norm, Version: version})
			return exec.Value{}, errs.Newf(errs.MissingObject, "object %s not in working set", norm)
		}
		st = healed
		h.objects[norm] = st
	}
	return exec.Value{IsObject: true, Object: exec.ObjectRef{
		ID: norm, Version: st.version, TypeTag: st.typeTag, Bytes: st.bytes,
	}}, nil
}

// tryHeal asks the versioned child fetcher for an object this harness's
// initial working set did not contain, the self-heal path named in spec
// §4.5/§4.6 for runtime child-object loads. Must be called with h.mu held.
func (h *Harness) tryHeal(id string, version uint64) (objState, bool, error) {
	if h.versionedFetch == nil {
		return objState{}, false, nil
	}
	lookup, found, err := h.versionedFetch(h.ctx, "", id, h.maxVersion)
	if err != nil {
		return objState{}, false, err
	}
	if !found {
		return objState{}, false, nil
	}
	v := version
	if lookup.Version != 0 {
		v = lookup.Version
	}
	return objState{typeTag: lookup.TypeTag, bytes: lookup.Bytes, version: v}, true, nil
}

func (h *Harness) GasCoin() exec.Value {
	h.mu.Lock()
	defer h.mu.Unlock()
	st := h.objects[h.gasCoinID]
	return exec.Value{IsObject: true, Object: exec.ObjectRef{ID: h.gasCoinID, Version: st.version, TypeTag: st.typeTag}}
}

func (h *Harness) LookupFunction(pkg addr.Address, module, fn string) (typetag.FunctionSignature, bool) {
	if h.lookupFn == nil {
		return typetag.FunctionSignature{}, false
	}
	return h.lookupFn(pkg, module, fn)
}

func (h *Harness) ClassifyParam(t typetag.TypeTag) typetag.ParamKind {
	h.mu.Lock()
	model := h.model
	h.mu.Unlock()
	return typetag.ClassifyParam(t, model)
}

func (h *Harness) NewObjectID() string {
	return newObjectID()
}

// newObjectID manufactures a fresh 32-byte canonical object id. Two
// uuid.New() (version 4) draws give 244 random bits (122 each), hashed
// with SHA-256 into a single 32-byte id.
func newObjectID() string {
	u1 := uuid.New()
	u2 := uuid.New()
	sum := sha256.Sum256(append(u1[:], u2[:]...))
	return "0x" + hex.EncodeToString(sum[:])
}

func (h *Harness) RecordCreated(obj exec.ObjectRef) {
	h.mu.Lock()
	defer h.mu.Unlock()
	st := h.objects[obj.ID]
	st.typeTag = obj.TypeTag
	st.version = 1
	h.objects[obj.ID] = st
	h.eff.Created = append(h.eff.Created, obj.ID)
	h.eff.OutputVersions[obj.ID] = 1
}

func (h *Harness) RecordMutated(obj exec.ObjectRef) {
	h.mu.Lock()
	defer h.mu.Unlock()
	st := h.objects[obj.ID]
	st.version++
	h.objects[obj.ID] = st
	h.eff.Mutated = append(h.eff.Mutated, obj.ID)
	h.eff.OutputVersions[obj.ID] = st.version
}

func (h *Harness) RecordDeleted(id string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.objects, id)
	h.eff.Deleted = append(h.eff.Deleted, id)
}

func (h *Harness) RecordWrapped(id string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.objects, id)
	h.eff.Wrapped = append(h.eff.Wrapped, id)
}

func (h *Harness) RecordUnwrapped(id string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	st := h.objects[id]
	st.version++
	h.objects[id] = st
	h.eff.Unwrapped = append(h.eff.Unwrapped, id)
	h.eff.OutputVersions[id] = st.version
}

func (h *Harness) RecordTransferred(id string, recipient string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	st := h.objects[id]
	st.version++
	h.objects[id] = st
	h.eff.Transferred = append(h.eff.Transferred, id)
	h.eff.OutputVersions[id] = st.version
}

func (h *Harness) RecordReceived(id string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.eff.Received = append(h.eff.Received, id)
}

func (h *Harness) EmitEvent(ev effects.EmittedEvent) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.eff.Events = append(h.eff.Events, ev)
}

func (h *Harness) Abort(commandIndex int, description string) error {
	return errs.Newf(errs.Abort, "command %d aborted: %s", commandIndex, description)
}

// Effects returns the accumulator exec.Executor's Run writes into via the
// Record* calls above.
func (h *Harness) Effects() *effects.Effects {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.eff
}
