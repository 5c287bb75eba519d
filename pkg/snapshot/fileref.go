package snapshot

import (
	"bytes"
	"encoding/json"
	"strings"
)

// ============================================================================
// File References
// ============================================================================

// FileRefKind tells which shape a media file field had.
type FileRefKind int

const (
	// FileRefPlain is a bare path string: "/media/a1b2c3/photo.jpg".
	FileRefPlain FileRefKind = iota

	// FileRefStructured is a JSON image descriptor whose "src" member holds
	// the path: {"src": "/media/a1b2c3/photo.jpg", "crops": [...]}.
	FileRefStructured
)

func (k FileRefKind) String() string {
	if k == FileRefStructured {
		return "structured"
	}
	return "plain"
}

// srcField is the JSON member holding the path in a structured reference.
const srcField = "src"

// member is one JSON object member kept verbatim.
type member struct {
	name  string
	value json.RawMessage
}

// FileRef is a parsed media file field.
//
// Structured references keep every member other than "src" byte-for-byte and
// in their original order, so rewriting the path never disturbs crop or focal
// point data owned by the host.
type FileRef struct {
	Kind FileRefKind
	Path string

	members []member
}

// ParseFileRef parses a raw file field. It returns false for empty input,
// malformed JSON, and JSON objects without a string "src" member.
func ParseFileRef(raw string) (FileRef, bool) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return FileRef{}, false
	}

	if !strings.HasPrefix(trimmed, "{") {
		return FileRef{Kind: FileRefPlain, Path: trimmed}, true
	}

	members, ok := decodeMembers(trimmed)
	if !ok {
		return FileRef{}, false
	}

	ref := FileRef{Kind: FileRefStructured, members: members}
	found := false
	for _, m := range members {
		if m.name != srcField {
			continue
		}
		var src string
		if err := json.Unmarshal(m.value, &src); err != nil {
			return FileRef{}, false
		}
		ref.Path = strings.TrimSpace(src)
		found = true
	}
	if !found || ref.Path == "" {
		return FileRef{}, false
	}

	return ref, true
}

// decodeMembers walks the top-level object token by token so member order
// survives.
func decodeMembers(s string) ([]member, bool) {
	dec := json.NewDecoder(strings.NewReader(s))
	dec.UseNumber()

	tok, err := dec.Token()
	if err != nil {
		return nil, false
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return nil, false
	}

	var members []member
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return nil, false
		}
		name, ok := tok.(string)
		if !ok {
			return nil, false
		}

		var value json.RawMessage
		if err := dec.Decode(&value); err != nil {
			return nil, false
		}
		members = append(members, member{name: name, value: value})
	}

	// Closing brace must end the (trimmed) input.
	if tok, err := dec.Token(); err != nil || tok != json.Delim('}') {
		return nil, false
	}
	if dec.InputOffset() != int64(len(s)) {
		return nil, false
	}

	return members, true
}

// WithPath returns a copy pointing at path. Structured references keep all
// other members in place.
func (r FileRef) WithPath(path string) FileRef {
	out := FileRef{Kind: r.Kind, Path: path}
	if r.Kind != FileRefStructured {
		return out
	}

	out.members = make([]member, 0, len(r.members))
	for _, m := range r.members {
		if m.name == srcField {
			encoded, _ := json.Marshal(path)
			m = member{name: srcField, value: encoded}
		}
		out.members = append(out.members, m)
	}
	return out
}

// String encodes the reference back into a file field value.
func (r FileRef) String() string {
	if r.Kind != FileRefStructured {
		return r.Path
	}

	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, m := range r.members {
		if i > 0 {
			buf.WriteByte(',')
		}
		name, _ := json.Marshal(m.name)
		buf.Write(name)
		buf.WriteByte(':')
		buf.Write(m.value)
	}
	buf.WriteByte('}')
	return buf.String()
}

// ============================================================================
// Path Helpers
// ============================================================================

// ExtractRawPath returns the storage path held by a raw file field.
func ExtractRawPath(raw string) (string, bool) {
	ref, ok := ParseFileRef(raw)
	if !ok {
		return "", false
	}
	return ref.Path, true
}

// ExtractFolder returns the per-item folder key of a raw file field.
//
// The path's leading separator is dropped and it is split on "/". When the
// first segment equals mediaRoot (case-insensitively) the second segment is
// the folder, otherwise the first one is.
func ExtractFolder(raw, mediaRoot string) (string, bool) {
	path, ok := ExtractRawPath(raw)
	if !ok {
		return "", false
	}
	return FolderOfPath(path, mediaRoot)
}

// FolderOfPath applies the ExtractFolder rule to an already extracted path.
func FolderOfPath(path, mediaRoot string) (string, bool) {
	segments := pathSegments(path, mediaRoot)
	if len(segments) == 0 || segments[0] == "" {
		return "", false
	}
	return segments[0], true
}

// BlobKeyOfPath maps a storage path to its key in the media container:
// "/media/a1b2c3/photo.jpg" becomes "a1b2c3/photo.jpg".
func BlobKeyOfPath(path, mediaRoot string) (string, bool) {
	segments := pathSegments(path, mediaRoot)
	if len(segments) < 2 {
		return "", false
	}
	for _, seg := range segments {
		if seg == "" {
			return "", false
		}
	}
	return strings.Join(segments, "/"), true
}

// StoragePath builds "/<mediaRoot>/<folder>/<filename>".
func StoragePath(mediaRoot, folder, filename string) string {
	if mediaRoot == "" {
		return "/" + folder + "/" + filename
	}
	return "/" + mediaRoot + "/" + folder + "/" + filename
}

// pathSegments strips the leading separator and the media root segment. A
// path naming only the media root has no segments.
func pathSegments(path, mediaRoot string) []string {
	trimmed := strings.TrimLeft(strings.TrimSpace(path), "/")
	if trimmed == "" {
		return nil
	}
	segments := strings.Split(trimmed, "/")
	if mediaRoot != "" && strings.EqualFold(segments[0], mediaRoot) {
		segments = segments[1:]
	}
	return segments
}
