package state

import (
	"time"

	"github.com/driftlock/driftlock/pkg/errors"
)

// MaxClockSkew bounds how far into the future a state file's last_updated
// may sit before it's treated as corrupt rather than merely stale.
const MaxClockSkew = time.Hour

// ValidateFreshness rejects a last_updated timestamp that lies more than
// MaxClockSkew in the future, per the "non-future last_updated" invariant
// every managed state file must satisfy.
func ValidateFreshness(lastUpdated time.Time) error {
	if lastUpdated.After(time.Now().Add(MaxClockSkew)) {
		return errors.New(errors.CodeStateCorrupt, "state file last_updated is too far in the future")
	}
	return nil
}
