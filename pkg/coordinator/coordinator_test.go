package coordinator

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/catalogfs/commitcoord/pkg/storage"
	"github.com/catalogfs/commitcoord/pkg/storage/memory"
	"github.com/stretchr/testify/require"
)

// fakeClock lets tests move time forward deterministically instead of
// sleeping past the TTL.
type fakeClock struct{ t time.Time }

func newFakeClock() *fakeClock        { return &fakeClock{t: time.Now()} }
func (c *fakeClock) Now() time.Time   { return c.t }
func (c *fakeClock) Advance(d time.Duration) { c.t = c.t.Add(d) }

func newTestCoordinator(driver storage.Driver, clock Clock) *Coordinator {
	return New(Options{
		Driver:                   driver,
		Clock:                    clock,
		MaxSave:                  2,
		MaxArchiveSize:           100,
		ArchiveBatchCleanMaxSize: 20,
		TTLPreCommit:             30 * time.Second,
		CleanTTL:                 10 * time.Minute,
	})
}

func exists(t *testing.T, ctx context.Context, driver storage.Driver, path string) bool {
	t.Helper()
	ok, err := driver.Exists(ctx, path)
	require.NoError(t, err)
	return ok
}

func TestSoloFirstCommit(t *testing.T) {
	ctx := context.Background()
	driver := memory.New()
	clock := newFakeClock()
	driver.SetNowFunc(clock.Now)

	c := newTestCoordinator(driver, clock)
	require.NoError(t, c.Commit(ctx))

	require.True(t, exists(t, ctx, driver, trackerPath(0)))
	require.True(t, exists(t, ctx, driver, subTrackerFilePath(0, 0)))
	require.True(t, exists(t, ctx, driver, commitHintPath(0)))

	entries, err := driver.ListAllFiles(ctx, attemptPath(0, 0), false)
	require.NoError(t, err)
	require.Len(t, entries, 2) // PRE_COMMIT-U1.txt and U1.txt
}

func TestSecondCommitAfterFirst(t *testing.T) {
	ctx := context.Background()
	driver := memory.New()
	clock := newFakeClock()
	driver.SetNowFunc(clock.Now)
	c := newTestCoordinator(driver, clock)

	require.NoError(t, c.Commit(ctx))
	require.NoError(t, c.Commit(ctx))

	require.True(t, exists(t, ctx, driver, trackerPath(1)))
	require.True(t, exists(t, ctx, driver, commitHintPath(1)))
	require.False(t, exists(t, ctx, driver, commitHintPath(2)))
}

func TestTwoRacersSameAttemptThenThirdRollsForward(t *testing.T) {
	ctx := context.Background()
	driver := memory.New()
	clock := newFakeClock()
	driver.SetNowFunc(clock.Now)

	// Simulate two clients reaching P1 concurrently: both PRE_COMMIT
	// files land in commit/0/0/ before either lists.
	rv, err := resolveVersion(ctx, driver)
	require.NoError(t, err)
	ra, err := resolveAttempt(ctx, driver, rv)
	require.NoError(t, err)

	require.NoError(t, driver.WriteFileWithoutGuarantees(ctx, preCommitFilePath(rv.Version, ra.Attempt, "U1"), []byte("U1")))
	require.NoError(t, driver.WriteFileWithoutGuarantees(ctx, preCommitFilePath(rv.Version, ra.Attempt, "U2"), []byte("U2")))

	c := newTestCoordinator(driver, clock)

	// Both racers would observe a peer file and abort; we only need to
	// show that a third client, arriving after TTL, fences the attempt.
	clock.Advance(31 * time.Second)
	err = c.Commit(ctx)
	require.ErrorIs(t, err, ErrConcurrentModification)
	require.True(t, exists(t, ctx, driver, expiredHintPath(0, 0)))

	// The fenced client's retry rolls to attempt 1 and succeeds alone.
	require.NoError(t, c.Commit(ctx))
	require.True(t, exists(t, ctx, driver, subTrackerFilePath(0, 1)))
	require.True(t, exists(t, ctx, driver, commitHintPath(0)))
}

func TestCrashedFinisherRecoversHint(t *testing.T) {
	ctx := context.Background()
	driver := memory.New()
	clock := newFakeClock()
	driver.SetNowFunc(clock.Now)

	rv, err := resolveVersion(ctx, driver)
	require.NoError(t, err)
	ra, err := resolveAttempt(ctx, driver, rv)
	require.NoError(t, err)

	// U1 completes both phases, then "crashes" before publishing.
	require.NoError(t, driver.WriteFileWithoutGuarantees(ctx, preCommitFilePath(rv.Version, ra.Attempt, "U1"), []byte("U1")))
	require.NoError(t, driver.WriteFileWithoutGuarantees(ctx, commitFilePath(rv.Version, ra.Attempt, "U1"), []byte("U1")))

	c := newTestCoordinator(driver, clock)
	clock.Advance(31 * time.Second)

	err = c.Commit(ctx)
	require.ErrorIs(t, err, ErrConcurrentModification)

	require.True(t, exists(t, ctx, driver, commitHintPath(0)))
	require.True(t, exists(t, ctx, driver, debugWitnessPath(0, "U1")))
	require.False(t, exists(t, ctx, driver, expiredHintPath(0, 0)))

	// The retrying client lands on V=1 next.
	require.NoError(t, c.Commit(ctx))
	require.True(t, exists(t, ctx, driver, trackerPath(1)))
}

func TestArchivalAfterMaxSaveExceeded(t *testing.T) {
	ctx := context.Background()
	driver := memory.New()
	clock := newFakeClock()
	driver.SetNowFunc(clock.Now)
	c := newTestCoordinator(driver, clock)

	for i := 0; i < 4; i++ {
		require.NoError(t, c.Commit(ctx))
	}

	// After committing V=3 with MaxSave=2, V=0 should be archived.
	require.False(t, exists(t, ctx, driver, trackerPath(0)))

	entries, err := driver.ListAllFiles(ctx, archiveDir, false)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	v, _, err := parseArchiveName(entries[0].Name)
	require.NoError(t, err)
	require.Equal(t, 0, v)

	// Versions within MaxSave of current are untouched.
	require.True(t, exists(t, ctx, driver, trackerPath(1)))
	require.True(t, exists(t, ctx, driver, trackerPath(2)))
	require.True(t, exists(t, ctx, driver, trackerPath(3)))
}

func TestGCDeletesExpiredTombstone(t *testing.T) {
	ctx := context.Background()
	driver := memory.New()
	clock := newFakeClock()
	driver.SetNowFunc(clock.Now)
	c := newTestCoordinator(driver, clock)

	for i := 0; i < 4; i++ {
		require.NoError(t, c.Commit(ctx))
	}
	require.False(t, exists(t, ctx, driver, trackerPath(0)))
	require.True(t, exists(t, ctx, driver, commitWorkspacePath(0)))

	// Advance time past CleanTTL and trigger GC via the next commit.
	clock.Advance(11 * time.Minute)
	require.NoError(t, c.Commit(ctx))

	require.False(t, exists(t, ctx, driver, commitWorkspacePath(0)))

	entries, err := driver.ListAllFiles(ctx, archiveDir, false)
	require.NoError(t, err)
	for _, e := range entries {
		v, _, err := parseArchiveName(e.Name)
		require.NoError(t, err)
		require.NotEqual(t, 0, v)
	}
}

func TestBoundaryEmptyRepositoryPublishesVersionZero(t *testing.T) {
	ctx := context.Background()
	driver := memory.New()
	clock := newFakeClock()
	driver.SetNowFunc(clock.Now)
	c := newTestCoordinator(driver, clock)

	require.NoError(t, c.Commit(ctx))
	require.True(t, exists(t, ctx, driver, commitHintPath(0)))
}

func TestBoundaryExpiredHintSkipsToNextAttemptWithoutTouchingPrior(t *testing.T) {
	ctx := context.Background()
	driver := memory.New()
	clock := newFakeClock()
	driver.SetNowFunc(clock.Now)

	rv, err := resolveVersion(ctx, driver)
	require.NoError(t, err)
	ra, err := resolveAttempt(ctx, driver, rv)
	require.NoError(t, err)
	require.NoError(t, driver.WriteFileWithoutGuarantees(ctx, expiredHintPath(rv.Version, ra.Attempt), []byte(expiredBody)))

	c := newTestCoordinator(driver, clock)
	require.NoError(t, c.Commit(ctx))

	require.True(t, exists(t, ctx, driver, subTrackerFilePath(0, 1)))
	require.True(t, exists(t, ctx, driver, commitHintPath(0)))

	// Attempt 0's workspace is untouched beyond the EXPIRED marker
	// already there.
	entries, err := driver.ListAllFiles(ctx, attemptPath(0, 0), false)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	require.Equal(t, expiredHintFile, entries[0].Name)
}

func TestBoundaryTrackerCountEqualToMaxSaveDoesNotArchive(t *testing.T) {
	ctx := context.Background()
	driver := memory.New()
	clock := newFakeClock()
	driver.SetNowFunc(clock.Now)
	c := newTestCoordinator(driver, clock)

	// Two commits: trackers 0 and 1, MaxSave=2, current-v' never
	// exceeds MaxSave so nothing is archived.
	require.NoError(t, c.Commit(ctx))
	require.NoError(t, c.Commit(ctx))

	require.True(t, exists(t, ctx, driver, trackerPath(0)))
	require.True(t, exists(t, ctx, driver, trackerPath(1)))

	entries, err := driver.ListAllFiles(ctx, archiveDir, false)
	require.NoError(t, err)
	require.Empty(t, entries)
}

func TestCorruptTrackerNameSurfacesFatalError(t *testing.T) {
	ctx := context.Background()
	driver := memory.New()
	clock := newFakeClock()
	driver.SetNowFunc(clock.Now)

	require.NoError(t, driver.CreateDirectory(ctx, trackerDir))
	require.NoError(t, driver.WriteFileWithoutGuarantees(ctx, trackerDir+"/not-a-number.txt", []byte("garbage")))

	c := newTestCoordinator(driver, clock)
	err := c.Commit(ctx)
	require.Error(t, err)
	require.ErrorIs(t, err, ErrCorruptLayout)
}

func TestPropertyP1UniquePublicationPerVersion(t *testing.T) {
	ctx := context.Background()
	driver := memory.New()
	clock := newFakeClock()
	driver.SetNowFunc(clock.Now)
	c := newTestCoordinator(driver, clock)

	for i := 0; i < 5; i++ {
		require.NoError(t, c.Commit(ctx))
	}

	for v := 0; v < 5; v++ {
		hinted := exists(t, ctx, driver, commitHintPath(v))
		if !hinted {
			continue
		}
		entries, err := driver.ListAllFiles(ctx, subHintPath(v), false)
		require.NoError(t, err)
		witnesses := 0
		for _, e := range entries {
			if e.Name != commitHintFile {
				witnesses++
			}
		}
		require.Equalf(t, 1, witnesses, "version %d should have exactly one debug witness", v)
	}
}

func TestPropertyP3VersionMonotonicity(t *testing.T) {
	ctx := context.Background()
	driver := memory.New()
	clock := newFakeClock()
	driver.SetNowFunc(clock.Now)
	c := newTestCoordinator(driver, clock)

	var published []int
	for i := 0; i < 6; i++ {
		before, err := maxTrackerVersion(ctx, driver)
		require.NoError(t, err)
		require.NoError(t, c.Commit(ctx))
		after, err := maxTrackerVersion(ctx, driver)
		require.NoError(t, err)
		if after != before || i == 0 {
			published = append(published, after)
		}
	}

	for i := 1; i < len(published); i++ {
		require.Greater(t, published[i], published[i-1])
	}
}

func TestPropertyP4FencingExclusivity(t *testing.T) {
	ctx := context.Background()
	driver := memory.New()
	clock := newFakeClock()
	driver.SetNowFunc(clock.Now)

	rv, err := resolveVersion(ctx, driver)
	require.NoError(t, err)
	ra, err := resolveAttempt(ctx, driver, rv)
	require.NoError(t, err)

	require.NoError(t, driver.WriteFileWithoutGuarantees(ctx, preCommitFilePath(rv.Version, ra.Attempt, "U1"), []byte("U1")))
	require.NoError(t, driver.WriteFileWithoutGuarantees(ctx, preCommitFilePath(rv.Version, ra.Attempt, "U2"), []byte("U2")))

	clock.Advance(31 * time.Second)
	c := newTestCoordinator(driver, clock)
	_ = c.Commit(ctx)

	hinted := exists(t, ctx, driver, commitHintPath(rv.Version))
	expired := exists(t, ctx, driver, expiredHintPath(rv.Version, ra.Attempt))
	require.False(t, hinted && expired)
}

func TestPropertyP5IdempotentRetryAfterConflict(t *testing.T) {
	ctx := context.Background()
	driver := memory.New()
	clock := newFakeClock()
	driver.SetNowFunc(clock.Now)
	c := newTestCoordinator(driver, clock)

	// A failed first attempt (simulated by pre-seeding a peer file, as
	// in the two-racers scenario) must not leave the tree in a state
	// that a clean retry cannot recover from.
	rv, err := resolveVersion(ctx, driver)
	require.NoError(t, err)
	ra, err := resolveAttempt(ctx, driver, rv)
	require.NoError(t, err)
	require.NoError(t, driver.WriteFileWithoutGuarantees(ctx, preCommitFilePath(rv.Version, ra.Attempt, "Upeer"), []byte("Upeer")))

	err = c.Commit(ctx)
	require.ErrorIs(t, err, ErrConcurrentModification)

	// Once the peer's file is older than the TTL, the next call fences
	// the attempt and the call after it publishes alone at attempt 1.
	clock.Advance(31 * time.Second)
	require.ErrorIs(t, c.Commit(ctx), ErrConcurrentModification)
	require.NoError(t, c.Commit(ctx))
	require.True(t, exists(t, ctx, driver, commitHintPath(0)))
}

func TestAttemptWorkspaceGroupingHelpers(t *testing.T) {
	entries := []storage.Entry{
		{Name: "PRE_COMMIT-U1.txt"},
		{Name: "U1.txt"},
		{Name: "PRE_COMMIT-U2.txt"},
	}
	groups := groupByClient(entries)
	require.Len(t, groups, 2)
	require.Len(t, groups["U1"], 2)
	require.Len(t, groups["U2"], 1)
	require.False(t, allSingletons(groups))

	_, ok := singleCompletePair(groups)
	require.True(t, ok)
}

func TestParseLeadingIntRejectsGarbage(t *testing.T) {
	_, err := parseLeadingInt("not-a-number.txt")
	require.ErrorIs(t, err, ErrCorruptLayout)

	v, err := parseLeadingInt("42.txt")
	require.NoError(t, err)
	require.Equal(t, 42, v)
}

func TestParseArchiveNameRejectsMissingExpiration(t *testing.T) {
	_, _, err := parseArchiveName("5.txt")
	require.ErrorIs(t, err, ErrCorruptLayout)

	v, exp, err := parseArchiveName("5.txt@1234567890")
	require.NoError(t, err)
	require.Equal(t, 5, v)
	require.Equal(t, int64(1234567890), exp)
}

func TestCoordinatorErrorUnwraps(t *testing.T) {
	err := newError("commit", 1, 2, "U1", ErrConcurrentModification)
	require.ErrorIs(t, err, ErrConcurrentModification)
	require.Contains(t, err.Error(), "version=1")
	require.Contains(t, err.Error(), fmt.Sprintf("client=%s", "U1"))
}
