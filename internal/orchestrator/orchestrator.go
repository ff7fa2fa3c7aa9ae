// Package orchestrator owns the replay pipeline (spec §4.9, component C9):
// hydrate, resolver fetch closure, patch, execute, optional
// synthesize-and-retry, reconcile. Grounded on the teacher's node startup
// sequence (core/virtual_machine.go's top-level "assemble, then run" driver)
// generalized into a replay-scoped pipeline.
package orchestrator

import (
	"context"
	"time"

	"sui-replay/internal/addr"
	"sui-replay/internal/cache"
	"sui-replay/internal/effects"
	"sui-replay/internal/errs"
	"sui-replay/internal/exec"
	"sui-replay/internal/fetch"
	"sui-replay/internal/objectmap"
	"sui-replay/internal/ptb"
	"sui-replay/internal/reconcile"
	"sui-replay/internal/replaylog"
	"sui-replay/internal/replaystate"
	"sui-replay/internal/resolver"
	"sui-replay/internal/rtypes"
	"sui-replay/internal/synth"
	"sui-replay/internal/typetag"
	"sui-replay/internal/vmharness"
)

// maxDepRounds bounds the dependency-closure fetch loop (spec §4.9 step 3).
const maxDepRounds = 8

// Source names the replay input source (spec §6).
type Source string

const (
	SourceHybrid    Source = "hybrid"
	SourceGRPC      Source = "grpc"
	SourceWalrus    Source = "walrus"
	SourceLocal     Source = "local"
	SourceStateFile Source = "state_file"
)

// Options configures one replay (spec §6, §4.9).
type Options struct {
	RequestedSource Source

	VMOnly               bool
	AllowFallback        bool
	AutoSystemObjects    bool
	DynamicFieldPrefetch bool
	PrefetchDepth        int
	PrefetchLimit        int
	SynthesizeMissing    bool

	Checkpoint *uint64

	PreparedContextRaw  []byte
	ReplayStateFileRaw  []byte

	AnalyzeOnly bool
}

// Collaborators are the external data sources and decoders the
// orchestrator drives (spec §1, §4.9). Any may be nil if the corresponding
// feature is unused.
type Collaborators struct {
	CheckpointFetcher    fetch.CheckpointFetcher
	PackageFetcher       fetch.PackageFetcher
	PackageQuery         synth.PackageQuery
	LocalCache           *cache.Store
	VersionedChildFetcher synth.VersionedChildFetcher
	KeyBasedChildFetcher  synth.KeyBasedChildFetcher

	// PackageDecoder turns raw module bytecode (from a prepared context)
	// into a *typetag.Module; required whenever packages are merged from a
	// prepared context rather than already-decoded.
	PackageDecoder func(raw []byte) (*typetag.Module, error)
}

// ExecutionPath records every hydration/execution decision (spec §6).
type ExecutionPath struct {
	RequestedSource string `json:"requested_source"`
	EffectiveSource string `json:"effective_source"`

	VMOnly               bool `json:"vm_only"`
	AllowFallback        bool `json:"allow_fallback"`
	AutoSystemObjects    bool `json:"auto_system_objects"`
	FallbackUsed         bool `json:"fallback_used"`
	DynamicFieldPrefetch bool `json:"dynamic_field_prefetch"`
	PrefetchDepth        int  `json:"prefetch_depth"`
	PrefetchLimit        int  `json:"prefetch_limit"`

	DependencyFetchMode       string `json:"dependency_fetch_mode"`
	DependencyPackagesFetched int    `json:"dependency_packages_fetched"`
	SyntheticInputs           int    `json:"synthetic_inputs"`
}

// EffectsOut mirrors the effects block of the output envelope (spec §6).
type EffectsOut struct {
	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`
	GasUsed uint64 `json:"gas_used"`

	Created     []string `json:"created"`
	Mutated     []string `json:"mutated"`
	Deleted     []string `json:"deleted"`
	Wrapped     []string `json:"wrapped"`
	Unwrapped   []string `json:"unwrapped"`
	Transferred []string `json:"transferred"`
	Received    []string `json:"received"`
	EventsCount int      `json:"events_count"`

	FailedCommandIndex       int    `json:"failed_command_index"`
	FailedCommandDescription string `json:"failed_command_description,omitempty"`
	CommandsSucceeded        int    `json:"commands_succeeded"`
	ReturnValues             []int  `json:"return_values"`
}

// Diagnostics is emitted only on failure (spec §6).
type Diagnostics struct {
	MissingInputObjects []string `json:"missing_input_objects,omitempty"`
	MissingPackages     []string `json:"missing_packages,omitempty"`
	Suggestions         []string `json:"suggestions,omitempty"`

	// DependencyFetchRounds is the per-round fetched-package count from the
	// dependency-closure loop, kept for failure diagnostics even though
	// execution_path.dependency_packages_fetched stays a single sum.
	DependencyFetchRounds []int `json:"dependency_fetch_rounds,omitempty"`
}

// Analysis mirrors a hydration-only summary, used in analyze-only mode
// (spec §4.9).
type Analysis struct {
	PackagesLoaded int    `json:"packages_loaded"`
	ModulesLoaded  int    `json:"modules_loaded"`
	ObjectsLoaded  int    `json:"objects_loaded"`
	Sender         string `json:"sender"`
	TimestampMs    int64  `json:"timestamp_ms"`
	MM2ModelOK     bool   `json:"mm2_model_ok"`
	MM2Error       string `json:"mm2_error,omitempty"`
}

// Envelope is the full replay output (spec §6).
type Envelope struct {
	Digest       string              `json:"digest"`
	LocalSuccess bool                `json:"local_success"`
	ExecutionPath ExecutionPath      `json:"execution_path"`
	Effects      EffectsOut          `json:"effects"`
	CommandsExecuted int             `json:"commands_executed"`
	Comparison   *reconcile.Comparison `json:"comparison,omitempty"`
	Diagnostics  *Diagnostics        `json:"diagnostics,omitempty"`
	Analysis     *Analysis           `json:"analysis,omitempty"`
	LocalError   string              `json:"local_error,omitempty"`
}

// Orchestrator drives one replay pipeline.
type Orchestrator struct {
	opts   Options
	collab Collaborators

	// dependencyRounds records the number of packages fetched in each round
	// of fetchDependencyClosure, kept only for failure diagnostics; the
	// execution_path field stays a plain sum across all rounds.
	dependencyRounds []int
}

// New builds an Orchestrator.
func New(opts Options, collab Collaborators) *Orchestrator {
	return &Orchestrator{opts: opts, collab: collab}
}

// Replay runs the full pipeline for digest (spec §4.9).
func (o *Orchestrator) Replay(ctx context.Context, digest string) (*Envelope, error) {
	if digest == "" && len(o.opts.ReplayStateFileRaw) == 0 {
		return nil, errs.New(errs.BadDigest, "empty digest")
	}

	log := replaylog.ForReplay(digest, o.opts.Checkpoint)

	path := ExecutionPath{
		RequestedSource:      string(o.opts.RequestedSource),
		VMOnly:               o.opts.VMOnly,
		AllowFallback:        o.opts.AllowFallback,
		AutoSystemObjects:    o.opts.AutoSystemObjects,
		DynamicFieldPrefetch: o.opts.DynamicFieldPrefetch,
		PrefetchDepth:        o.opts.PrefetchDepth,
		PrefetchLimit:        o.opts.PrefetchLimit,
	}

	// --- step 1: hydrate ---
	state, effectiveSource, recorded, err := o.hydrate(ctx, digest)
	if err != nil {
		return nil, err
	}
	path.EffectiveSource = effectiveSource
	log.WithField("effective_source", effectiveSource).Info("replay hydrated")

	tx, _ := state.Transaction.(*ptb.Transaction)
	if tx == nil {
		return nil, errs.New(errs.BadType, "hydrated replay state carries no decoded transaction")
	}
	if digest == "" {
		digest = tx.Digest
	}

	// --- step 2: hydrate resolver ---
	r := resolver.WithSuiFramework()
	if err := o.loadPackagesIntoResolver(r, state); err != nil {
		return nil, err
	}

	// --- step 3: fetch dependency closure ---
	fetched, err := o.fetchDependencyClosure(ctx, r, state)
	if err != nil {
		log.WithField("error", err.Error()).Warn("dependency closure fetch encountered an error; continuing")
	}
	path.DependencyFetchMode = "graphql"
	path.DependencyPackagesFetched = fetched

	// --- step 4: build maps and patch ---
	objMap, err := objectmap.Build(state)
	if err != nil {
		return nil, err
	}
	aliases := r.Aliases()
	if err := objMap.PatchTypeTags(aliases); err != nil {
		return nil, err
	}

	// --- step 5: instantiate harness ---
	model, mm2OK, mm2Err := r.TypeModel(digest)
	h := vmharness.New(vmharness.SimConfig{
		Epoch:             state.Epoch,
		ProtocolVersion:   state.ProtocolVersion,
		ReferenceGasPrice: state.ReferenceGasPrice,
		Sender:            tx.Sender,
		Checkpoint:        o.opts.Checkpoint,
		GasBudget:         tx.GasBudget,
	}, objMap, r.GetFunctionSignature)
	h.SetTypeModel(model)
	h.SetAddressAliasesWithVersions(aliases, objMap.VersionsStr)

	var synthesizer *synth.Synthesizer
	if o.collab.PackageQuery != nil {
		synthesizer = synth.New(o.collab.PackageQuery, model, aliases)
	}
	if o.opts.DynamicFieldPrefetch {
		if o.collab.VersionedChildFetcher != nil {
			h.SetVersionedChildFetcher(o.collab.VersionedChildFetcher)
		}
		if o.collab.KeyBasedChildFetcher != nil {
			h.SetKeyBasedChildFetcher(o.collab.KeyBasedChildFetcher)
		}
	}

	if o.opts.AnalyzeOnly {
		return &Envelope{
			Digest:        digest,
			ExecutionPath: path,
			Analysis:      o.Analyze(state, tx, mm2OK, mm2Err),
		}, nil
	}

	// --- step 6: first replay attempt ---
	eff, failure := h.ExecuteCommands(ctx, tx)
	syntheticInputs := 0

	// --- step 7: synthesize-and-retry (optional, exactly one retry) ---
	if !eff.Success && o.opts.SynthesizeMissing && synthesizer != nil {
		missing := h.Missing()
		if len(missing) > 0 {
			for _, m := range missing {
				s, serr := synthesizer.SynthesizeMissingInput(ctx, synth.MissingInput{ID: m.ID, Version: m.Version}, o.opts.Checkpoint)
				if serr != nil {
					entry := log.WithField("object", m.ID)
					if desc, ok := objMap.Describe(m.ID); ok {
						entry = entry.WithField("ownership", desc.Ownership).WithField("known_version", desc.Version)
					}
					entry.Warn("failed to synthesize missing input")
					continue
				}
				h.InsertSynthesized(s)
				syntheticInputs++
			}
			eff, failure = h.ExecuteCommands(ctx, tx)
		}
	}
	path.SyntheticInputs = syntheticInputs

	// --- step 8: assemble output envelope ---
	envelope := &Envelope{
		Digest:        digest,
		LocalSuccess:  eff.Success,
		ExecutionPath: path,
		Effects:       toEffectsOut(eff, failure),
		CommandsExecuted: len(tx.Commands),
	}

	if recorded != nil {
		cmp := reconcile.Reconcile(reconcile.Strict, eff, recorded)
		envelope.Comparison = &cmp
	}

	if !eff.Success {
		envelope.Diagnostics = o.buildDiagnostics(h, r)
	}

	return envelope, nil
}

func toEffectsOut(eff *effects.Effects, failure *exec.FailureCapture) EffectsOut {
	out := EffectsOut{
		Success:            eff.Success,
		Error:              eff.Error,
		GasUsed:            eff.GasUsed,
		Created:            orEmpty(eff.Created),
		Mutated:            orEmpty(eff.Mutated),
		Deleted:            orEmpty(eff.Deleted),
		Wrapped:            orEmpty(eff.Wrapped),
		Unwrapped:          orEmpty(eff.Unwrapped),
		Transferred:        orEmpty(eff.Transferred),
		Received:           orEmpty(eff.Received),
		EventsCount:        len(eff.Events),
		ReturnValues:       []int{},
		FailedCommandIndex: -1,
	}
	if failure != nil {
		out.FailedCommandIndex = failure.FailedCommandIndex
		out.FailedCommandDescription = failure.FailedCommandDescription
		out.CommandsSucceeded = failure.CommandsSucceeded
	}
	return out
}

func orEmpty(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

// Analyze builds the hydration-only summary returned in analyze-only mode,
// mirroring execute_get_state's loaded_packages/loaded_modules/object_count/
// sender/timestamp_ms shape.
func (o *Orchestrator) Analyze(state *rtypes.ReplayState, tx *ptb.Transaction, mm2OK bool, mm2Err string) *Analysis {
	modulesLoaded := 0
	for _, pkg := range state.Packages {
		modulesLoaded += len(pkg.Modules)
	}
	return &Analysis{
		PackagesLoaded: len(state.Packages),
		ModulesLoaded:  modulesLoaded,
		ObjectsLoaded:  len(state.Objects),
		Sender:         tx.Sender.Hex(),
		TimestampMs:    time.Now().UnixMilli(),
		MM2ModelOK:     mm2OK,
		MM2Error:       mm2Err,
	}
}

func (o *Orchestrator) buildDiagnostics(h *vmharness.Harness, r *resolver.LocalModuleResolver) *Diagnostics {
	d := &Diagnostics{}
	for _, m := range h.Missing() {
		d.MissingInputObjects = append(d.MissingInputObjects, m.ID)
	}
	for a := range r.GetMissingDependencies() {
		d.MissingPackages = append(d.MissingPackages, a.Hex())
	}
	if len(d.MissingInputObjects) > 0 {
		d.Suggestions = append(d.Suggestions, "missing input objects detected; retry with synthesize_missing or a prepared context supplying them")
	}
	if len(d.MissingPackages) > 0 {
		d.Suggestions = append(d.Suggestions, "missing package bytecode detected; retry with a prepared context supplying them")
	}
	if len(o.dependencyRounds) > 0 {
		d.DependencyFetchRounds = o.dependencyRounds
	}
	return d
}

func (o *Orchestrator) loadPackagesIntoResolver(r *resolver.LocalModuleResolver, state *rtypes.ReplayState) error {
	for addrStr, pkg := range state.Packages {
		storageAddr, err := addr.Parse(addrStr)
		if err != nil {
			return err
		}
		mods, err := decodedModules(pkg, o.collab.PackageDecoder)
		if err != nil {
			return err
		}
		if len(mods) == 0 {
			continue
		}
		if err := r.LoadPackageAt(mods, storageAddr); err != nil {
			return err
		}
	}
	return nil
}

func decodedModules(pkg *rtypes.PackageData, decode func([]byte) (*typetag.Module, error)) ([]*typetag.Module, error) {
	mods := make([]*typetag.Module, 0, len(pkg.Modules))
	for _, me := range pkg.Modules {
		if me.Decoded != nil {
			mods = append(mods, me.Decoded)
			continue
		}
		if decode == nil {
			continue
		}
		m, err := decode(me.Bytecode)
		if err != nil {
			return nil, errs.Wrapf(errs.BadType, err, "decode module %s", me.Name)
		}
		mods = append(mods, m)
	}
	return mods, nil
}

func (o *Orchestrator) fetchDependencyClosure(ctx context.Context, r *resolver.LocalModuleResolver, state *rtypes.ReplayState) (int, error) {
	if o.collab.PackageFetcher == nil {
		return 0, nil
	}
	fetched := 0
	for round := 0; round < maxDepRounds; round++ {
		missing := r.GetMissingDependencies()
		if len(missing) == 0 {
			return fetched, nil
		}
		roundFetched := 0
		for a := range missing {
			pkg, err := o.collab.PackageFetcher.FetchPackage(ctx, a.Hex(), o.opts.Checkpoint)
			if err != nil {
				continue
			}
			state.Packages[pkg.Address] = pkg
			mods, derr := decodedModules(pkg, o.collab.PackageDecoder)
			if derr != nil || len(mods) == 0 {
				continue
			}
			storageAddr, perr := addr.Parse(pkg.Address)
			if perr != nil {
				continue
			}
			if err := r.LoadPackageAt(mods, storageAddr); err != nil {
				continue
			}
			fetched++
			roundFetched++
		}
		o.dependencyRounds = append(o.dependencyRounds, roundFetched)
	}
	return fetched, errs.Newf(errs.MissingPackage, "dependency closure still incomplete after %d rounds", maxDepRounds)
}

func (o *Orchestrator) hydrate(ctx context.Context, digest string) (*rtypes.ReplayState, string, *rtypes.RecordedEffects, error) {
	var state *rtypes.ReplayState
	var recorded *rtypes.RecordedEffects
	source := string(o.opts.RequestedSource)

	switch {
	case len(o.opts.ReplayStateFileRaw) > 0:
		s, err := LoadReplayStateFile(o.opts.ReplayStateFileRaw, digest)
		if err != nil {
			return nil, "", nil, err
		}
		state = s
		source = string(SourceStateFile)

	case o.opts.RequestedSource == SourceLocal:
		if o.collab.LocalCache == nil {
			return nil, "", nil, errs.New(errs.Fetch, "local cache not configured")
		}
		s, ok, err := o.collab.LocalCache.Get(digest)
		if err != nil {
			return nil, "", nil, err
		}
		if !ok {
			return nil, "", nil, errs.Newf(errs.Fetch, "no local cache entry for digest %s", digest)
		}
		state = s

	case o.opts.Checkpoint != nil:
		if o.collab.CheckpointFetcher == nil {
			return nil, "", nil, errs.New(errs.Fetch, "checkpoint fetcher not configured")
		}
		blob, err := o.collab.CheckpointFetcher.FetchCheckpoint(ctx, *o.opts.Checkpoint)
		if err != nil {
			return nil, "", nil, errs.Wrap(errs.Fetch, err, "fetch checkpoint")
		}
		s, txRecord, err := replaystate.AssembleFromCheckpoint(blob, digest)
		if err != nil {
			return nil, "", nil, err
		}
		state = s
		recorded = txRecord.Effects

	default:
		return nil, "", nil, errs.New(errs.Fetch, "no hydration source available: supply a checkpoint number, a replay-state file, or use source=local")
	}

	if len(o.opts.PreparedContextRaw) > 0 {
		pc, err := ParsePreparedContext(o.opts.PreparedContextRaw)
		if err != nil {
			return nil, "", nil, err
		}
		mergeIntoPackages(state, pc)
	}

	return state, source, recorded, nil
}
