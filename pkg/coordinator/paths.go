package coordinator

import (
	"strconv"
	"strings"
)

// Directory and file names fixed by the persisted layout. Names carry
// the protocol's meaning; contents are informational.
const (
	trackerDir = "tracker"
	commitDir  = "commit"
	archiveDir = "archive"

	subTrackerDir = "sub-tracker"
	subHintDir    = "sub-hint"

	commitHintFile  = "COMMIT-HINT.TXT"
	expiredHintFile = "EXPIRED-HINT.TXT"

	preCommitPrefix = "PRE_COMMIT-"

	expiredBody = "EXPIRED!"
)

// trackerPath returns tracker/<V>.txt.
func trackerPath(v int) string {
	return join(trackerDir, itoa(v)+".txt")
}

// commitWorkspacePath returns commit/<V>/.
func commitWorkspacePath(v int) string {
	return join(commitDir, itoa(v))
}

// subTrackerPath returns commit/<V>/sub-tracker/.
func subTrackerPath(v int) string {
	return join(commitWorkspacePath(v), subTrackerDir)
}

// subTrackerFilePath returns commit/<V>/sub-tracker/<S>.txt.
func subTrackerFilePath(v, s int) string {
	return join(subTrackerPath(v), itoa(s)+".txt")
}

// subHintPath returns commit/<V>/sub-hint/.
func subHintPath(v int) string {
	return join(commitWorkspacePath(v), subHintDir)
}

// commitHintPath returns commit/<V>/sub-hint/COMMIT-HINT.TXT.
func commitHintPath(v int) string {
	return join(subHintPath(v), commitHintFile)
}

// debugWitnessPath returns commit/<V>/sub-hint/<U>.txt.
func debugWitnessPath(v int, clientID string) string {
	return join(subHintPath(v), clientID+".txt")
}

// attemptPath returns commit/<V>/<S>/.
func attemptPath(v, s int) string {
	return join(commitWorkspacePath(v), itoa(s))
}

// preCommitFilePath returns commit/<V>/<S>/PRE_COMMIT-<U>.txt.
func preCommitFilePath(v, s int, clientID string) string {
	return join(attemptPath(v, s), preCommitPrefix+clientID+".txt")
}

// commitFilePath returns commit/<V>/<S>/<U>.txt.
func commitFilePath(v, s int, clientID string) string {
	return join(attemptPath(v, s), clientID+".txt")
}

// expiredHintPath returns commit/<V>/<S>/EXPIRED-HINT.TXT.
func expiredHintPath(v, s int) string {
	return join(attemptPath(v, s), expiredHintFile)
}

// archiveTombstonePath returns archive/<V>.txt@<expireMillis>.
func archiveTombstonePath(v int, expireMillis int64) string {
	return join(archiveDir, itoa(v)+".txt@"+strconv.FormatInt(expireMillis, 10))
}

func join(parts ...string) string {
	return strings.Join(parts, "/")
}

func itoa(n int) string {
	return strconv.Itoa(n)
}

// parseLeadingInt parses the leading run of decimal digits in name as
// an integer, stopping at the first non-digit byte (typically ".").
// It returns ErrCorruptLayout if name has no leading digits.
func parseLeadingInt(name string) (int, error) {
	i := 0
	for i < len(name) && name[i] >= '0' && name[i] <= '9' {
		i++
	}
	if i == 0 {
		return 0, ErrCorruptLayout
	}
	n, err := strconv.Atoi(name[:i])
	if err != nil {
		return 0, ErrCorruptLayout
	}
	return n, nil
}

// parseArchiveName splits an archive tombstone filename of the form
// "<V>.txt@<expireMillis>" into its version and expiration.
func parseArchiveName(name string) (version int, expireMillis int64, err error) {
	at := strings.LastIndex(name, "@")
	if at < 0 {
		return 0, 0, ErrCorruptLayout
	}
	stem := strings.TrimSuffix(name[:at], ".txt")
	version, err = strconv.Atoi(stem)
	if err != nil {
		return 0, 0, ErrCorruptLayout
	}
	expireMillis, err = strconv.ParseInt(name[at+1:], 10, 64)
	if err != nil {
		return 0, 0, ErrCorruptLayout
	}
	return version, expireMillis, nil
}

// clientKeyOf strips the PRE_COMMIT- prefix (if present) and the .txt
// suffix from a filename, yielding the client key used to group an
// attempt workspace's entries by owning client.
func clientKeyOf(name string) string {
	name = strings.TrimPrefix(name, preCommitPrefix)
	return strings.TrimSuffix(name, ".txt")
}
