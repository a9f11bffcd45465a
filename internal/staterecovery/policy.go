// Package staterecovery implements the boot-time local-vs-remote decision
// policy for the four managed high-level state files: download each file's
// latest object-store snapshot, validate both copies, and decide whether
// to keep local, adopt remote, or initialize empty — recording every
// decision to the local JSONL recovery audit log.
package staterecovery

import (
	"encoding/json"
	"time"
)

const (
	// MaxClockSkew bounds how far into the future a last_updated timestamp
	// may sit before a file is treated as invalid.
	MaxClockSkew = time.Hour
	// RemoteNewerThreshold is how much newer remote must be than local
	// before remote is trusted over local when both are valid.
	RemoteNewerThreshold = 2 * time.Hour
)

// Decision is the outcome of evaluating one managed file.
type Decision string

const (
	DecisionUseRemote Decision = "use_remote"
	DecisionUseLocal  Decision = "use_local"
	DecisionEmpty     Decision = "initialize_empty"
)

type fileMeta struct {
	StateFileVersion int       `json:"state_file_version"`
	LastUpdated      time.Time `json:"last_updated"`
}

// validate parses data as a state file and reports its last_updated time
// if it parses, carries a non-zero state_file_version, and its timestamp
// isn't further in the future than MaxClockSkew allows.
func validate(data []byte, now time.Time) (time.Time, bool) {
	if len(data) == 0 {
		return time.Time{}, false
	}
	var meta fileMeta
	if err := json.Unmarshal(data, &meta); err != nil {
		return time.Time{}, false
	}
	if meta.StateFileVersion == 0 || meta.LastUpdated.IsZero() {
		return time.Time{}, false
	}
	if meta.LastUpdated.After(now.Add(MaxClockSkew)) {
		return time.Time{}, false
	}
	return meta.LastUpdated, true
}

// decide applies the local-vs-remote policy table.
func decide(localValid, remoteValid bool, localTime, remoteTime, now time.Time) (Decision, string) {
	switch {
	case !localValid && remoteValid:
		return DecisionUseRemote, "local invalid, remote valid"
	case !localValid && !remoteValid:
		return DecisionEmpty, "both local and remote invalid"
	case localValid && !remoteValid:
		return DecisionUseLocal, "remote invalid, local valid"
	case remoteTime.Sub(localTime) > RemoteNewerThreshold:
		return DecisionUseRemote, "remote newer than local by more than the recovery threshold"
	default:
		return DecisionUseLocal, "remote not newer enough to override local, likely clock skew"
	}
}
