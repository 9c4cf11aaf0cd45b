// Package clientid generates the per-attempt unique client identifier U
// used throughout the commit protocol (spec's §4.3 and §9 "Unique client
// ids"). A collision between two clients' ids would silently corrupt
// contention adjudication, so ids are drawn from a generator that is
// unique with overwhelming probability across hosts and are validated
// against the small set of names the protocol reserves for itself.
package clientid

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// PreCommitPrefix is the filename prefix reserved for phase-one markers
// (spec §6.2). No client id may render to a string starting with it.
const PreCommitPrefix = "PRE_COMMIT-"

// Reserved filenames no client id may collide with (spec §6.2).
var reserved = map[string]bool{
	"COMMIT-HINT.TXT":  true,
	"EXPIRED-HINT.TXT": true,
}

// New generates a fresh client id. Two calls, even from the same process,
// return distinct ids with overwhelming probability, satisfying spec's
// requirement that retries by the same client use distinct U.
func New() (string, error) {
	for attempt := 0; attempt < 8; attempt++ {
		id, err := uuid.NewRandom()
		if err != nil {
			return "", fmt.Errorf("generate client id: %w", err)
		}
		candidate := strings.ReplaceAll(id.String(), "-", "")
		if Valid(candidate) {
			return candidate, nil
		}
		// A candidate rejected by Valid would mean uuid happened to collide
		// with a reserved literal or our own chosen prefix; vanishingly
		// unlikely, but the loop keeps the contract honest.
	}
	return "", fmt.Errorf("generate client id: exhausted retries avoiding reserved names")
}

// Valid reports whether id is usable as a client identifier: non-empty,
// not one of the reserved marker filenames, does not start with the
// pre-commit prefix, and does not contain '@' (which separates U and S in
// COMMIT-HINT bodies, spec §6.2).
func Valid(id string) bool {
	if id == "" {
		return false
	}
	if strings.HasPrefix(id, PreCommitPrefix) {
		return false
	}
	if strings.Contains(id, "@") {
		return false
	}
	upper := strings.ToUpper(id)
	if reserved[upper] || reserved[upper+".TXT"] {
		return false
	}
	return true
}
