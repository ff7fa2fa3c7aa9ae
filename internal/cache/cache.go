// Package cache implements the local cache directory (spec §6):
// $SUI_SANDBOX_HOME/cache/local by default, recording each imported
// ReplayState under its digest for offline replay with source=local.
// Grounded on the teacher's pkg/utils env-caching helpers for the root
// directory lookup, and core/ledger.go's pattern of one JSON file per
// record keyed by an id.
package cache

import (
	"encoding/json"
	"os"
	"path/filepath"

	"sui-replay/internal/errs"
	"sui-replay/internal/replayconfig"
	"sui-replay/internal/rtypes"
)

const defaultSubdir = "cache/local"

// Dir returns the local cache directory: $SUI_SANDBOX_HOME/cache/local,
// or ./.sui-sandbox/cache/local if SUI_SANDBOX_HOME is unset.
func Dir() string {
	home := replayconfig.EnvOrDefault("SUI_SANDBOX_HOME", ".sui-sandbox")
	return filepath.Join(home, defaultSubdir)
}

// Store is a handle on the local cache directory.
type Store struct {
	dir string
}

// Open opens (creating if needed) the local cache directory.
func Open() (*Store, error) {
	return OpenAt(Dir())
}

// OpenAt opens (creating if needed) a cache directory at an explicit path,
// letting tests point a Store at a sandbox directory instead of the
// environment-derived default.
func OpenAt(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, errs.Wrapf(errs.Fetch, err, "create local cache dir %s", dir)
	}
	return &Store{dir: dir}, nil
}

func (s *Store) path(digest string) string {
	return filepath.Join(s.dir, digest+".json")
}

// Put records state under digest for later offline replay.
func (s *Store) Put(digest string, state *rtypes.ReplayState) error {
	if digest == "" {
		return errs.New(errs.BadDigest, "empty digest")
	}
	bz, err := json.Marshal(state)
	if err != nil {
		return errs.Wrapf(errs.Fetch, err, "marshal replay state for %s", digest)
	}
	if err := os.WriteFile(s.path(digest), bz, 0o644); err != nil {
		return errs.Wrapf(errs.Fetch, err, "write local cache entry for %s", digest)
	}
	return nil
}

// Get loads a previously cached ReplayState by digest. ok is false if no
// entry exists.
func (s *Store) Get(digest string) (state *rtypes.ReplayState, ok bool, err error) {
	bz, rerr := os.ReadFile(s.path(digest))
	if rerr != nil {
		if os.IsNotExist(rerr) {
			return nil, false, nil
		}
		return nil, false, errs.Wrapf(errs.Fetch, rerr, "read local cache entry for %s", digest)
	}
	var st rtypes.ReplayState
	if uerr := json.Unmarshal(bz, &st); uerr != nil {
		return nil, false, errs.Wrapf(errs.Fetch, uerr, "decode local cache entry for %s", digest)
	}
	return &st, true, nil
}
