package orchestrator

import (
	"encoding/json"

	"sui-replay/internal/errs"
	"sui-replay/internal/rtypes"
)

// LoadReplayStateFile parses a replay-state file (spec §6): one or more
// ReplayState records. When more than one is present, digest disambiguates
// which one to use; an empty digest with more than one record is an
// ambiguity error.
func LoadReplayStateFile(raw []byte, digest string) (*rtypes.ReplayState, error) {
	var single rtypes.ReplayState
	if err := json.Unmarshal(raw, &single); err == nil && single.Objects != nil {
		return &single, nil
	}

	var list []rtypes.ReplayState
	if err := json.Unmarshal(raw, &list); err != nil {
		return nil, errs.Wrap(errs.BadType, err, "parse replay state file")
	}
	if len(list) == 0 {
		return nil, errs.New(errs.BadDigest, "replay state file contains no records")
	}
	if len(list) == 1 {
		return &list[0], nil
	}
	if digest == "" {
		return nil, errs.Newf(errs.BadDigest, "replay state file contains %d records; digest required to disambiguate", len(list))
	}
	for i := range list {
		if txDigest(&list[i]) == digest {
			return &list[i], nil
		}
	}
	return nil, errs.Newf(errs.BadDigest, "no replay state record matches digest %s", digest)
}

// txDigest best-effort extracts a digest from a ReplayState's Transaction
// field, which is typed any.
func txDigest(s *rtypes.ReplayState) string {
	type digested interface{ GetDigest() string }
	if d, ok := s.Transaction.(digested); ok {
		return d.GetDigest()
	}
	return ""
}
