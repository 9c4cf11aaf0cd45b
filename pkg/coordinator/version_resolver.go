package coordinator

import (
	"context"
	"fmt"

	"github.com/catalogfs/commitcoord/internal/logger"
	"github.com/catalogfs/commitcoord/pkg/storage"
)

// resolvedVersion is the output of the Version Resolver: a target
// version and the paths derived from it.
type resolvedVersion struct {
	Version       int
	TrackerPath   string
	WorkspacePath string
	SubTracker    string
	SubHint       string
	HintPath      string
}

// resolveVersion ensures the top-level subtrees exist, finds the
// current target version from tracker/, and rolls forward exactly
// once if that version is already published.
func resolveVersion(ctx context.Context, driver storage.Driver) (resolvedVersion, error) {
	for _, dir := range []string{trackerDir, commitDir, archiveDir} {
		if err := driver.CreateDirectory(ctx, dir); err != nil {
			return resolvedVersion{}, fmt.Errorf("ensure %s: %w", dir, err)
		}
	}

	v, err := maxTrackerVersion(ctx, driver)
	if err != nil {
		return resolvedVersion{}, err
	}

	rv := deriveVersionPaths(v)

	hinted, err := driver.Exists(ctx, rv.HintPath)
	if err != nil {
		return resolvedVersion{}, fmt.Errorf("check %s: %w", rv.HintPath, err)
	}
	if hinted {
		v++
		rv = deriveVersionPaths(v)
	}

	trackerExists, err := driver.Exists(ctx, rv.TrackerPath)
	if err != nil {
		return resolvedVersion{}, fmt.Errorf("check %s: %w", rv.TrackerPath, err)
	}
	if !trackerExists {
		if err := driver.WriteFileWithoutGuarantees(ctx, rv.TrackerPath, []byte(itoa(v))); err != nil {
			return resolvedVersion{}, fmt.Errorf("write %s: %w", rv.TrackerPath, err)
		}
	}

	for _, dir := range []string{rv.WorkspacePath, rv.SubTracker, rv.SubHint} {
		if err := driver.CreateDirectory(ctx, dir); err != nil {
			return resolvedVersion{}, fmt.Errorf("ensure %s: %w", dir, err)
		}
	}

	logger.Debug("resolved target version", logger.KeyVersion, v)
	return rv, nil
}

func deriveVersionPaths(v int) resolvedVersion {
	return resolvedVersion{
		Version:       v,
		TrackerPath:   trackerPath(v),
		WorkspacePath: commitWorkspacePath(v),
		SubTracker:    subTrackerPath(v),
		SubHint:       subHintPath(v),
		HintPath:      commitHintPath(v),
	}
}

// resolveVersionReadOnly computes the same target version as
// resolveVersion but performs no writes, for use by debug-only
// inspection paths that must never mutate the layout.
func resolveVersionReadOnly(ctx context.Context, driver storage.Driver) (resolvedVersion, error) {
	v, err := maxTrackerVersion(ctx, driver)
	if err != nil {
		return resolvedVersion{}, err
	}

	rv := deriveVersionPaths(v)
	hinted, err := driver.Exists(ctx, rv.HintPath)
	if err != nil {
		return resolvedVersion{}, fmt.Errorf("check %s: %w", rv.HintPath, err)
	}
	if hinted {
		v++
		rv = deriveVersionPaths(v)
	}
	return rv, nil
}

// maxTrackerVersion lists tracker/ and returns the maximum version
// encoded by its entries' filenames, or 0 if tracker/ is empty.
func maxTrackerVersion(ctx context.Context, driver storage.Driver) (int, error) {
	entries, err := driver.ListAllFiles(ctx, trackerDir, false)
	if err != nil {
		return 0, fmt.Errorf("list %s: %w", trackerDir, err)
	}

	max := 0
	for _, e := range entries {
		v, err := parseLeadingInt(e.Name)
		if err != nil {
			return 0, fmt.Errorf("parse tracker entry %q: %w", e.Name, err)
		}
		if v > max {
			max = v
		}
	}
	return max, nil
}
