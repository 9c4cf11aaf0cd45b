package coordinator

import (
	"context"
	"fmt"
	"time"

	"github.com/catalogfs/commitcoord/internal/logger"
	"github.com/catalogfs/commitcoord/pkg/storage"
)

// adjudicate runs the Contention Adjudicator over a non-empty attempt
// workspace listing (groupByClient drops EXPIRED-HINT.TXT from it). It always
// concludes in ErrConcurrentModification; its job is deciding which
// side effect, if any, to perform first: recovering a prior client's
// hint, fencing the attempt with EXPIRED-HINT, or simply failing.
func adjudicate(ctx context.Context, driver storage.Driver, clock Clock, ttl time.Duration, rv resolvedVersion, ra resolvedAttempt, entries []storage.Entry) error {
	groups := groupByClient(entries)

	hinted, err := driver.Exists(ctx, rv.HintPath)
	if err != nil {
		return fmt.Errorf("check %s: %w", rv.HintPath, err)
	}

	if len(groups) >= 2 && allSingletons(groups) {
		logger.Debug("adjudicator sees two or more mid-phase-one clients, fencing",
			logger.KeyVersion, rv.Version, logger.KeyAttempt, ra.Attempt, logger.KeyState, "contested")
		return fenceAttempt(ctx, driver, rv, ra)
	}

	stale := clock.Now().Sub(latestModified(entries)) > ttl

	if clientID, ok := singleCompletePair(groups); ok && stale && !hinted {
		logger.Debug("adjudicator recovering abandoned hint",
			logger.KeyVersion, rv.Version, logger.KeyAttempt, ra.Attempt, logger.KeyClientID, clientID,
			logger.KeyState, "abandoned")
		return recoverHint(ctx, driver, rv, ra, clientID)
	}

	if stale && !hinted {
		logger.Debug("adjudicator fencing stale partial progress",
			logger.KeyVersion, rv.Version, logger.KeyAttempt, ra.Attempt, logger.KeyState, "stale")
		return fenceAttempt(ctx, driver, rv, ra)
	}

	return newError("adjudicate", rv.Version, ra.Attempt, "", ErrConcurrentModification)
}

// groupByClient groups entries (excluding EXPIRED-HINT.TXT) by client
// key, where the key is a filename with any PRE_COMMIT- prefix
// stripped.
func groupByClient(entries []storage.Entry) map[string][]string {
	groups := make(map[string][]string)
	for _, e := range entries {
		if e.Name == expiredHintFile {
			continue
		}
		key := clientKeyOf(e.Name)
		groups[key] = append(groups[key], e.Name)
	}
	return groups
}

func allSingletons(groups map[string][]string) bool {
	for _, members := range groups {
		if len(members) != 1 {
			return false
		}
	}
	return true
}

// singleCompletePair reports whether exactly one group has two
// members (its PRE_COMMIT-U and U files), returning that group's
// client id.
func singleCompletePair(groups map[string][]string) (clientID string, ok bool) {
	found := ""
	count := 0
	for key, members := range groups {
		if len(members) == 2 {
			count++
			found = key
		}
	}
	if count == 1 {
		return found, true
	}
	return "", false
}

func latestModified(entries []storage.Entry) time.Time {
	var latest time.Time
	for _, e := range entries {
		if e.LastModified.After(latest) {
			latest = e.LastModified
		}
	}
	return latest
}

func fenceAttempt(ctx context.Context, driver storage.Driver, rv resolvedVersion, ra resolvedAttempt) error {
	if err := driver.WriteFileWithoutGuarantees(ctx, ra.ExpiredPath, []byte(expiredBody)); err != nil {
		return fmt.Errorf("write %s: %w", ra.ExpiredPath, err)
	}
	return newError("adjudicate", rv.Version, ra.Attempt, "", ErrConcurrentModification)
}

func recoverHint(ctx context.Context, driver storage.Driver, rv resolvedVersion, ra resolvedAttempt, clientID string) error {
	body := fmt.Sprintf("%s@%d", clientID, ra.Attempt)
	if err := driver.WriteFileWithoutGuarantees(ctx, rv.HintPath, []byte(body)); err != nil {
		return fmt.Errorf("write %s: %w", rv.HintPath, err)
	}
	if err := driver.WriteFileWithoutGuarantees(ctx, debugWitnessPath(rv.Version, clientID), []byte(clientID)); err != nil {
		return fmt.Errorf("write debug witness for %s: %w", clientID, err)
	}
	return newError("adjudicate", rv.Version, ra.Attempt, clientID, ErrConcurrentModification)
}
