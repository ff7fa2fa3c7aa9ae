// Package reconcile implements the effects reconciler (spec §4.8,
// component C8): comparing a local replay's effects against the recorded
// on-chain effects under either a Strict or Lenient policy.
package reconcile

import (
	"sort"
	"strconv"

	"sui-replay/internal/effects"
	"sui-replay/internal/rtypes"
)

// Policy selects how strictly local effects must match recorded ones.
type Policy int

const (
	// Strict requires success, id-set sizes, and sorted id sets to match.
	Strict Policy = iota
	// Lenient compares only success/status; id-set mismatches become notes.
	Lenient
)

// OnChainStatus mirrors the recorded effects' status in the output
// envelope's vocabulary.
type OnChainStatus string

const (
	StatusSuccess OnChainStatus = "success"
	StatusFailed  OnChainStatus = "failed"
	StatusUnknown OnChainStatus = "unknown"
)

// Comparison is C8's output (spec §4.8).
type Comparison struct {
	StatusMatch  bool
	CreatedMatch bool
	MutatedMatch bool
	DeletedMatch bool

	OnChainStatus OnChainStatus
	LocalStatus   OnChainStatus

	Notes []string
}

// Reconcile compares local against recorded under policy.
func Reconcile(policy Policy, local *effects.Effects, recorded *rtypes.RecordedEffects) Comparison {
	c := Comparison{
		LocalStatus: statusOf(local.Success),
	}
	if recorded == nil {
		c.OnChainStatus = StatusUnknown
		c.StatusMatch = false
		c.Notes = append(c.Notes, "no recorded effects to compare against")
		return c
	}
	c.OnChainStatus = statusOf(recorded.Success)
	c.StatusMatch = local.Success == recorded.Success

	switch policy {
	case Strict:
		c.CreatedMatch = idSetsMatch(local.Created, recorded.Created)
		c.MutatedMatch = idSetsMatch(local.Mutated, recorded.Mutated)
		c.DeletedMatch = idSetsMatch(local.Deleted, recorded.Deleted)
		annotateMismatch(&c, "created", local.Created, recorded.Created, c.CreatedMatch)
		annotateMismatch(&c, "mutated", local.Mutated, recorded.Mutated, c.MutatedMatch)
		annotateMismatch(&c, "deleted", local.Deleted, recorded.Deleted, c.DeletedMatch)
	case Lenient:
		c.CreatedMatch = idSetsMatch(local.Created, recorded.Created)
		c.MutatedMatch = idSetsMatch(local.Mutated, recorded.Mutated)
		c.DeletedMatch = idSetsMatch(local.Deleted, recorded.Deleted)
		if !c.CreatedMatch {
			c.Notes = append(c.Notes, "created id set differs (lenient: not scored)")
		}
		if !c.MutatedMatch {
			c.Notes = append(c.Notes, "mutated id set differs (lenient: not scored)")
		}
		if !c.DeletedMatch {
			c.Notes = append(c.Notes, "deleted id set differs (lenient: not scored)")
		}
	}
	return c
}

func statusOf(success bool) OnChainStatus {
	if success {
		return StatusSuccess
	}
	return StatusFailed
}

// idSetsMatch compares two id lists as sorted sets, the stdlib-based
// comparison named in DESIGN.md (no pack library does set-of-strings
// comparison; sort+equal is the idiomatic stdlib substitute).
func idSetsMatch(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	sa := append([]string(nil), a...)
	sb := append([]string(nil), b...)
	sort.Strings(sa)
	sort.Strings(sb)
	for i := range sa {
		if sa[i] != sb[i] {
			return false
		}
	}
	return true
}

func annotateMismatch(c *Comparison, field string, local, recorded []string, match bool) {
	if match {
		return
	}
	c.Notes = append(c.Notes, field+" mismatch: local has "+strconv.Itoa(len(local))+", recorded has "+strconv.Itoa(len(recorded)))
}
