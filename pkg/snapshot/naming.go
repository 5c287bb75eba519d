package snapshot

import (
	"regexp"
	"strings"
	"time"
)

// TimestampLayout is the UTC, second-resolution prefix of archive names.
const TimestampLayout = "20060102_150405"

// timestampPrefixLen is len("YYYYMMDD_HHMMSS_").
const timestampPrefixLen = 16

var timestampPrefix = regexp.MustCompile(`^\d{8}_\d{6}_`)

// EncodeArchivePath returns "<folder>/<YYYYMMDD_HHMMSS>_<filename>", or the
// bare name when folder is empty.
//
// Two archives of the same file in the same folder within one second get the
// same path and the later one overwrites the earlier.
func EncodeArchivePath(folder, filename string, ts time.Time) string {
	name := ts.UTC().Format(TimestampLayout) + "_" + filename
	if folder == "" {
		return name
	}
	return folder + "/" + name
}

// DecodeOriginalName strips the timestamp prefix from an archive name or
// path. Names without the prefix come back unchanged.
//
// Filenames that themselves start with a timestamp-like prefix do not survive
// an encode/decode round trip with their prefix intact.
func DecodeOriginalName(name string) string {
	base := baseName(name)
	if timestampPrefix.MatchString(base) {
		return base[timestampPrefixLen:]
	}
	return base
}

// ParseArchiveTimestamp reads the timestamp prefix of an archive name or path.
func ParseArchiveTimestamp(name string) (time.Time, bool) {
	base := baseName(name)
	if !timestampPrefix.MatchString(base) {
		return time.Time{}, false
	}
	ts, err := time.ParseInLocation(TimestampLayout, base[:timestampPrefixLen-1], time.UTC)
	if err != nil {
		return time.Time{}, false
	}
	return ts, true
}

// SplitArchivePath splits "<folder>/<name>" into its parts. Paths without a
// separator have an empty folder.
func SplitArchivePath(p string) (folder, name string) {
	if i := strings.LastIndex(p, "/"); i >= 0 {
		return p[:i], p[i+1:]
	}
	return "", p
}

func baseName(p string) string {
	_, name := SplitArchivePath(p)
	return name
}
