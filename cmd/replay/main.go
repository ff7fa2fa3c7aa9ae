// Command replay drives one transaction replay end to end (spec §6): it
// wires the remote collaborators, the local cache, and the orchestrator
// together, then prints the resulting envelope as JSON.
//
// Grounded on the teacher's cmd/opcode-lint, the simplest "wire a core
// package up and run it" driver in the repo.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"

	"sui-replay/internal/cache"
	"sui-replay/internal/orchestrator"
	"sui-replay/internal/remote"
	"sui-replay/internal/replayconfig"
	"sui-replay/internal/replaylog"
	"sui-replay/internal/synth"
)

func main() {
	var (
		digest       = flag.String("digest", "", "transaction digest to replay")
		checkpoint   = flag.Uint64("checkpoint", 0, "checkpoint sequence number (0 means unset)")
		source       = flag.String("source", "hybrid", "replay source: hybrid|grpc|walrus|local|state_file")
		stateFile    = flag.String("state-file", "", "path to a replay-state file (source=state_file)")
		preparedFile = flag.String("prepared-context", "", "path to a prepared-context file")
		profile      = flag.String("profile", "balanced", "concurrency profile: safe|balanced|fast")
		synthesize   = flag.Bool("synthesize-missing", true, "synthesize stand-ins for missing inputs and retry once")
		vmOnly       = flag.Bool("vm-only", false, "record vm_only in the execution path (hydration and reconciliation are unchanged)")
		analyzeOnly  = flag.Bool("analyze-only", false, "hydrate and build the type model without executing")
	)
	flag.Parse()

	if *digest == "" && *stateFile == "" {
		fmt.Fprintln(os.Stderr, "usage: replay -digest <hex> [-checkpoint N] [-source hybrid|grpc|walrus|local|state_file]")
		os.Exit(2)
	}

	replaylog.Init()
	endpoints := replayconfig.LoadEndpoints(replayconfig.ParseProfile(*profile))

	var checkpointPtr *uint64
	if *checkpoint != 0 {
		checkpointPtr = checkpoint
	}

	opts := orchestrator.Options{
		RequestedSource:      orchestrator.Source(*source),
		VMOnly:               *vmOnly,
		AllowFallback:        true,
		AutoSystemObjects:    true,
		DynamicFieldPrefetch: true,
		PrefetchDepth:        3,
		PrefetchLimit:        256,
		SynthesizeMissing:    *synthesize,
		Checkpoint:           checkpointPtr,
		AnalyzeOnly:          *analyzeOnly,
	}

	if *stateFile != "" {
		raw, err := os.ReadFile(*stateFile)
		if err != nil {
			fmt.Fprintf(os.Stderr, "read state file: %v\n", err)
			os.Exit(1)
		}
		opts.ReplayStateFileRaw = raw
	}
	if *preparedFile != "" {
		raw, err := os.ReadFile(*preparedFile)
		if err != nil {
			fmt.Fprintf(os.Stderr, "read prepared context: %v\n", err)
			os.Exit(1)
		}
		opts.PreparedContextRaw = raw
	}

	collab := orchestrator.Collaborators{}

	localCache, err := cache.Open()
	if err != nil {
		fmt.Fprintf(os.Stderr, "open local cache: %v\n", err)
		os.Exit(1)
	}
	collab.LocalCache = localCache

	if endpoints.GRPCEndpoint != "" {
		archive, err := remote.DialArchive(endpoints.GRPCEndpoint, endpoints.GRPCAPIKey)
		if err != nil {
			fmt.Fprintf(os.Stderr, "dial archive endpoint: %v\n", err)
			os.Exit(1)
		}
		defer archive.Close()
		collab.CheckpointFetcher = archive
		collab.VersionedChildFetcher = func(ctx context.Context, parent, childID string, maxInputVersion uint64) (synth.ChildLookup, bool, error) {
			obj, err := archive.FetchObject(ctx, childID, maxInputVersion)
			if err != nil {
				return synth.ChildLookup{}, false, err
			}
			if obj == nil || obj.Version > maxInputVersion {
				return synth.ChildLookup{}, false, nil
			}
			return synth.ChildLookup{TypeTag: obj.TypeTag, Bytes: obj.BCS, Version: obj.Version}, true, nil
		}
	}
	if endpoints.GraphQLEndpoint != "" {
		gql := remote.NewGraphQLClient(endpoints.GraphQLEndpoint)
		collab.PackageFetcher = gql
		collab.PackageQuery = gql
		// The orchestrator builds its Synthesizer per-replay once the type
		// model is known, so this driver cannot pre-wrap the raw remote
		// lookup with Synthesizer.WrapKeyBasedWithFallback; it installs the
		// direct mapping instead, so a dynamic field reported with a type but
		// no contents comes back with empty bytes rather than synthesized ones.
		collab.KeyBasedChildFetcher = func(ctx context.Context, parent, childID, keyType string, keyBytes []byte) (synth.ChildLookup, bool, error) {
			typeStr, bz, found, err := gql.FetchDynamicField(ctx, parent, childID, keyType, keyBytes)
			if err != nil || !found {
				return synth.ChildLookup{}, false, err
			}
			return synth.ChildLookup{TypeTag: typeStr, Bytes: bz}, true, nil
		}
	}

	o := orchestrator.New(opts, collab)
	envelope, err := o.Replay(context.Background(), *digest)
	if err != nil {
		fmt.Fprintf(os.Stderr, "replay failed: %v\n", err)
		os.Exit(1)
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(envelope); err != nil {
		fmt.Fprintf(os.Stderr, "encode envelope: %v\n", err)
		os.Exit(1)
	}
}
