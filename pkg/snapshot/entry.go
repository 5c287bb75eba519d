package snapshot

import (
	"sort"
	"strings"
	"time"

	"github.com/pauldequant/umbraco-media-snapshot-sub000/pkg/blob"
)

// Archive metadata keys as stored on each entry.
const (
	MetaUploaderName    = "UploaderName"
	MetaUploadDate      = "UploadDate"
	MetaSnapshotDate    = "SnapshotDate"
	MetaOriginalMediaID = "OriginalMediaId"
	MetaPinned          = "Pinned"
	MetaNote            = "Note"
	MetaRestoredFrom    = "RestoredFrom"
	MetaRestoredDate    = "RestoredDate"
)

// MaxNoteLength is the longest note, in characters, SetNote accepts.
const MaxNoteLength = 500

// DateFormat is the round-trip ISO-8601 layout used for date metadata.
const DateFormat = time.RFC3339Nano

// Entry is one archived copy of a media file.
type Entry struct {
	Folder           string        `json:"folder"`
	Name             string        `json:"name"`
	OriginalFilename string        `json:"original_filename"`
	Timestamp        time.Time     `json:"timestamp"`
	SizeBytes        int64         `json:"size_bytes"`
	ContentType      string        `json:"content_type,omitempty"`
	CreatedOn        time.Time     `json:"created_on,omitzero"`
	LastModified     time.Time     `json:"last_modified"`
	Metadata         blob.Metadata `json:"metadata,omitempty"`
}

// EntryFromProperties builds an Entry from an archive blob listing.
//
// Timestamp comes from the name prefix. Names without one fall back to the
// blob creation time, or last-modified time when the backend has none.
func EntryFromProperties(p blob.Properties) Entry {
	folder, name := SplitArchivePath(p.Key)
	ts, ok := ParseArchiveTimestamp(name)
	if !ok {
		ts = p.CreatedOrModified().UTC().Truncate(time.Second)
	}
	return Entry{
		Folder:           folder,
		Name:             name,
		OriginalFilename: DecodeOriginalName(name),
		Timestamp:        ts,
		SizeBytes:        p.Size,
		ContentType:      p.ContentType,
		CreatedOn:        p.CreatedOn,
		LastModified:     p.LastModified,
		Metadata:         p.Metadata,
	}
}

// Path is the entry's identity in the archive container.
func (e Entry) Path() string {
	if e.Folder == "" {
		return e.Name
	}
	return e.Folder + "/" + e.Name
}

// Pinned reports whether automated cleanup must leave the entry alone.
func (e Entry) Pinned() bool {
	v, _ := e.Metadata.Get(MetaPinned)
	return strings.EqualFold(v, "true")
}

// Note returns the user note, if any.
func (e Entry) Note() string {
	v, _ := e.Metadata.Get(MetaNote)
	return v
}

// UploaderName returns who uploaded the archived content.
func (e Entry) UploaderName() string {
	v, _ := e.Metadata.Get(MetaUploaderName)
	return v
}

// UploadDate returns the original upload instant, if recorded.
func (e Entry) UploadDate() (time.Time, bool) {
	return metaTime(e.Metadata, MetaUploadDate)
}

func metaTime(md blob.Metadata, key string) (time.Time, bool) {
	v, ok := md.Get(key)
	if !ok || v == "" {
		return time.Time{}, false
	}
	t, err := time.Parse(DateFormat, v)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}

// newerFirst orders entries most recent first. Same-second entries fall back
// to blob times, then to name.
func newerFirst(a, b Entry) bool {
	if !a.Timestamp.Equal(b.Timestamp) {
		return a.Timestamp.After(b.Timestamp)
	}
	at, bt := a.createdOrModified(), b.createdOrModified()
	if !at.Equal(bt) {
		return at.After(bt)
	}
	return a.Name > b.Name
}

func (e Entry) createdOrModified() time.Time {
	if !e.CreatedOn.IsZero() {
		return e.CreatedOn
	}
	return e.LastModified
}

// SortNewestFirst returns a sorted copy of entries.
func SortNewestFirst(entries []Entry) []Entry {
	sorted := make([]Entry, len(entries))
	copy(sorted, entries)
	sort.SliceStable(sorted, func(i, j int) bool {
		return newerFirst(sorted[i], sorted[j])
	})
	return sorted
}
