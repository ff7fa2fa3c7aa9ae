// Package replaylog centralizes logrus setup for the replay engine, mirroring
// the teacher's direct use of logrus across core/ledger.go and
// core/virtual_machine.go rather than introducing a bespoke logging facade.
package replaylog

import (
	"sync"

	"github.com/sirupsen/logrus"
)

var initOnce sync.Once

// Init configures the process-wide logrus formatter. Safe to call more than
// once; only the first call has an effect.
func Init() {
	initOnce.Do(func() {
		logrus.SetFormatter(&logrus.JSONFormatter{})
	})
}

// ForReplay returns a logger entry tagged with the transaction digest and
// (if known) checkpoint, so concurrent external callers replaying different
// transactions can disambiguate interleaved log lines.
func ForReplay(digest string, checkpoint *uint64) *logrus.Entry {
	Init()
	fields := logrus.Fields{"digest": digest}
	if checkpoint != nil {
		fields["checkpoint"] = *checkpoint
	}
	return logrus.WithFields(fields)
}
