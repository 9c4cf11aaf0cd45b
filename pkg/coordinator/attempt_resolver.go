package coordinator

import (
	"context"
	"fmt"

	"github.com/catalogfs/commitcoord/internal/logger"
	"github.com/catalogfs/commitcoord/pkg/storage"
)

// resolvedAttempt is the output of the Attempt Resolver: the current
// attempt number under a version and its workspace path.
type resolvedAttempt struct {
	Attempt       int
	WorkspacePath string
	ExpiredPath   string
}

// resolveAttempt selects the current attempt under rv, rolling
// forward exactly once if the prior attempt has been marked EXPIRED.
func resolveAttempt(ctx context.Context, driver storage.Driver, rv resolvedVersion) (resolvedAttempt, error) {
	s, err := maxAttemptNumber(ctx, driver, rv.SubTracker)
	if err != nil {
		return resolvedAttempt{}, err
	}

	ra := deriveAttemptPaths(rv.Version, s)

	expired, err := driver.Exists(ctx, ra.ExpiredPath)
	if err != nil {
		return resolvedAttempt{}, fmt.Errorf("check %s: %w", ra.ExpiredPath, err)
	}
	if expired {
		s++
		ra = deriveAttemptPaths(rv.Version, s)
	}

	subTrackerFile := subTrackerFilePath(rv.Version, s)
	exists, err := driver.Exists(ctx, subTrackerFile)
	if err != nil {
		return resolvedAttempt{}, fmt.Errorf("check %s: %w", subTrackerFile, err)
	}
	if !exists {
		if err := driver.WriteFileWithoutGuarantees(ctx, subTrackerFile, []byte(itoa(s))); err != nil {
			return resolvedAttempt{}, fmt.Errorf("write %s: %w", subTrackerFile, err)
		}
	}

	if err := driver.CreateDirectory(ctx, ra.WorkspacePath); err != nil {
		return resolvedAttempt{}, fmt.Errorf("ensure %s: %w", ra.WorkspacePath, err)
	}

	logger.Debug("resolved target attempt", logger.KeyVersion, rv.Version, logger.KeyAttempt, s)
	return ra, nil
}

func deriveAttemptPaths(v, s int) resolvedAttempt {
	return resolvedAttempt{
		Attempt:       s,
		WorkspacePath: attemptPath(v, s),
		ExpiredPath:   expiredHintPath(v, s),
	}
}

// maxAttemptNumber lists sub-tracker/ and returns the maximum attempt
// number encoded by its entries' filenames, or 0 if empty.
func maxAttemptNumber(ctx context.Context, driver storage.Driver, subTracker string) (int, error) {
	entries, err := driver.ListAllFiles(ctx, subTracker, false)
	if err != nil {
		return 0, fmt.Errorf("list %s: %w", subTracker, err)
	}

	max := 0
	for _, e := range entries {
		n, err := parseLeadingInt(e.Name)
		if err != nil {
			return 0, fmt.Errorf("parse sub-tracker entry %q: %w", e.Name, err)
		}
		if n > max {
			max = n
		}
	}
	return max, nil
}
