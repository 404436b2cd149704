package revision

import (
	"crypto/sha1"
	"encoding/hex"
	"fmt"
	"sort"
	"strings"
)

// Testament is the canonical textual digest of a revision's identifying
// fields plus its inventory's file-id to text-sha1 map. It is the
// payload signed when a revision is cryptographically signed; two
// implementations producing the same testament text for the same
// revision is an interoperability requirement, so the format is fixed
// and never varies with local configuration.
type Testament struct {
	RevisionID RevisionID
	Committer  string
	Timestamp  float64
	Timezone   int
	Message    string

	// entries maps each file's path (at the time of this revision) to
	// its file-id and text-sha1; directories and symlinks contribute
	// no text-sha1.
	entries []testamentEntry
}

type testamentEntry struct {
	path     string
	fileID   FileID
	kind     Kind
	textSHA1 string
}

// FromRevision builds the testament for rev against the inventory it
// recorded, pulling in every file entry's path and text-sha1.
func FromRevision(rev *Revision, inv *Inventory) *Testament {
	t := &Testament{
		RevisionID: rev.RevisionID,
		Committer:  rev.Committer,
		Timestamp:  rev.Timestamp,
		Timezone:   rev.Timezone,
		Message:    rev.Message,
	}
	for _, e := range inv.Entries() {
		p, _ := inv.pathOf(e.FileID)
		t.entries = append(t.entries, testamentEntry{path: p, fileID: e.FileID, kind: e.Kind, textSHA1: e.TextSHA1})
	}
	sort.Slice(t.entries, func(i, j int) bool { return t.entries[i].path < t.entries[j].path })
	return t
}

// ToTextForm1 renders the testament in its canonical version-1 text
// form: a fixed header, one line per metadata field, an explicit entry
// count, one line per file entry (empty for directories/symlinks, so
// the zero-entries case is a revision with no file contents yet), and
// the commit message indented by two spaces.
func (t *Testament) ToTextForm1() string {
	var b strings.Builder
	b.WriteString("bazaar-ng testament version 1\n")
	fmt.Fprintf(&b, "revision-id: %s\n", t.RevisionID)
	fmt.Fprintf(&b, "committer: %s\n", t.Committer)
	fmt.Fprintf(&b, "timestamp: %s\n", formatTimestamp(t.Timestamp))
	fmt.Fprintf(&b, "timezone: %d\n", t.Timezone)

	var fileEntries []testamentEntry
	for _, e := range t.entries {
		if e.kind == KindFile {
			fileEntries = append(fileEntries, e)
		}
	}
	fmt.Fprintf(&b, "entries: %d\n", len(fileEntries))
	for _, e := range fileEntries {
		fmt.Fprintf(&b, "  %s %s %s\n", e.fileID, e.path, e.textSHA1)
	}

	b.WriteString("message:\n")
	for _, line := range strings.Split(t.Message, "\n") {
		b.WriteString("  ")
		b.WriteString(line)
		b.WriteByte('\n')
	}
	return b.String()
}

func formatTimestamp(ts float64) string {
	s := fmt.Sprintf("%.1f", ts)
	return s
}

// SHA1 returns the hex-encoded SHA-1 digest of the canonical text form,
// the value actually embedded in a detached signature.
func (t *Testament) SHA1() string {
	sum := sha1.Sum([]byte(t.ToTextForm1()))
	return hex.EncodeToString(sum[:])
}
