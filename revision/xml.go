package revision

import (
	"bytes"
	"fmt"
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

// Serialize renders inv in the canonical on-disk XML-like form. The
// format is line-oriented and entry order is always root first, then
// every other entry sorted by path, so that re-serializing a parsed
// Inventory reproduces an identical byte sequence.
func Serialize(inv *Inventory) []byte {
	var buf bytes.Buffer
	fmt.Fprintf(&buf, "<inventory format=\"1\" revision_id=%s>\n", quoteAttr(string(inv.Revision)))

	root, _ := inv.Get(inv.RootID)
	if root != nil {
		writeEntry(&buf, root, "")
	}
	for _, e := range inv.Entries() {
		if e.FileID == inv.RootID {
			continue
		}
		writeEntry(&buf, e, string(e.ParentID))
	}
	buf.WriteString("</inventory>\n")
	return buf.Bytes()
}

func writeEntry(buf *bytes.Buffer, e *InventoryEntry, parentID string) {
	tag := e.Kind.String()
	fmt.Fprintf(buf, "<%s file_id=%s name=%s", tag, quoteAttr(string(e.FileID)), quoteAttr(e.Name))
	if parentID != "" {
		fmt.Fprintf(buf, " parent_id=%s", quoteAttr(parentID))
	}
	if e.LastModifiedBy != "" {
		fmt.Fprintf(buf, " revision=%s", quoteAttr(string(e.LastModifiedBy)))
	}
	switch e.Kind {
	case KindFile:
		fmt.Fprintf(buf, " text_sha1=%s text_size=%s", quoteAttr(e.TextSHA1), quoteAttr(strconv.FormatInt(e.TextSize, 10)))
		if e.Executable {
			buf.WriteString(" executable=\"yes\"")
		}
	case KindSymlink:
		fmt.Fprintf(buf, " symlink_target=%s", quoteAttr(e.SymlinkTarget))
	}
	buf.WriteString(" />\n")
}

func quoteAttr(s string) string {
	var b strings.Builder
	b.WriteByte('"')
	for _, r := range s {
		switch r {
		case '&':
			b.WriteString("&amp;")
		case '"':
			b.WriteString("&quot;")
		case '<':
			b.WriteString("&lt;")
		case '>':
			b.WriteString("&gt;")
		default:
			b.WriteRune(r)
		}
	}
	b.WriteByte('"')
	return b.String()
}

func unquoteAttr(s string) string {
	s = strings.ReplaceAll(s, "&lt;", "<")
	s = strings.ReplaceAll(s, "&gt;", ">")
	s = strings.ReplaceAll(s, "&quot;", "\"")
	s = strings.ReplaceAll(s, "&amp;", "&")
	return s
}

// Deserialize parses the canonical form produced by Serialize. Entries
// may appear in any order in the input; only Serialize's own output
// guarantees root-first, path-sorted order.
func Deserialize(data []byte) (*Inventory, error) {
	lines := strings.Split(string(data), "\n")
	if len(lines) == 0 {
		return nil, errors.New("revision: empty inventory document")
	}

	inv := NewInventory()
	var pending []*InventoryEntry
	var pendingParent []string

	header := strings.TrimSpace(lines[0])
	if !strings.HasPrefix(header, "<inventory ") {
		return nil, errors.Errorf("revision: missing <inventory> header, got %q", header)
	}
	attrs, err := parseAttrs(header[len("<inventory") : len(header)-1])
	if err != nil {
		return nil, errors.Wrap(err, "revision: parsing inventory header")
	}
	inv.Revision = RevisionID(attrs["revision_id"])

	for _, line := range lines[1:] {
		line = strings.TrimSpace(line)
		if line == "" || line == "</inventory>" {
			continue
		}
		if !strings.HasPrefix(line, "<") || !strings.HasSuffix(line, "/>") {
			return nil, errors.Errorf("revision: malformed entry line %q", line)
		}
		tag, rest := splitTag(line)
		kind, err := kindFromTag(tag)
		if err != nil {
			return nil, err
		}
		attrs, err := parseAttrs(rest)
		if err != nil {
			return nil, errors.Wrapf(err, "revision: parsing entry %q", line)
		}

		entry := &InventoryEntry{
			FileID:         FileID(attrs["file_id"]),
			Name:           attrs["name"],
			Kind:           kind,
			LastModifiedBy: RevisionID(attrs["revision"]),
		}
		switch kind {
		case KindFile:
			entry.TextSHA1 = attrs["text_sha1"]
			if sz, ok := attrs["text_size"]; ok {
				n, err := strconv.ParseInt(sz, 10, 64)
				if err != nil {
					return nil, errors.Wrapf(err, "revision: invalid text_size in %q", line)
				}
				entry.TextSize = n
			}
			entry.Executable = attrs["executable"] == "yes"
		case KindSymlink:
			entry.SymlinkTarget = attrs["symlink_target"]
		}

		if parentID, ok := attrs["parent_id"]; ok {
			pending = append(pending, entry)
			pendingParent = append(pendingParent, parentID)
		} else {
			inv.SetRoot(entry)
		}
	}

	// Entries may reference a parent not yet inserted if the input
	// wasn't produced by Serialize; retry until no progress is made.
	for len(pending) > 0 {
		progressed := false
		var nextPending []*InventoryEntry
		var nextParent []string
		for i, entry := range pending {
			entry.ParentID = FileID(pendingParent[i])
			if err := inv.Add(entry); err != nil {
				if _, ok := inv.byID[entry.ParentID]; !ok {
					nextPending = append(nextPending, entry)
					nextParent = append(nextParent, pendingParent[i])
					continue
				}
				return nil, errors.Wrap(err, "revision: rebuilding inventory")
			}
			progressed = true
		}
		if !progressed {
			return nil, errors.New("revision: inventory references an unknown parent directory")
		}
		pending, pendingParent = nextPending, nextParent
	}

	return inv, nil
}

func splitTag(line string) (tag, rest string) {
	body := strings.TrimPrefix(line, "<")
	body = strings.TrimSuffix(body, "/>")
	body = strings.TrimSpace(body)
	idx := strings.IndexByte(body, ' ')
	if idx == -1 {
		return body, ""
	}
	return body[:idx], body[idx+1:]
}

func kindFromTag(tag string) (Kind, error) {
	switch tag {
	case "file":
		return KindFile, nil
	case "directory":
		return KindDirectory, nil
	case "symlink":
		return KindSymlink, nil
	default:
		return 0, errors.Errorf("revision: unknown entry tag %q", tag)
	}
}

// parseAttrs parses a sequence of name="value" pairs (our own
// restricted subset of XML attribute syntax: double-quoted only; a
// value runs to the next double quote, so it may contain spaces but
// never an unescaped quote).
func parseAttrs(s string) (map[string]string, error) {
	out := map[string]string{}
	s = strings.TrimSpace(s)
	for len(s) > 0 {
		eq := strings.IndexByte(s, '=')
		if eq == -1 {
			return nil, errors.Errorf("malformed attribute list %q", s)
		}
		name := strings.TrimSpace(s[:eq])
		rest := s[eq+1:]
		if len(rest) == 0 || rest[0] != '"' {
			return nil, errors.Errorf("expected quoted value for %q", name)
		}
		end := strings.IndexByte(rest[1:], '"')
		if end == -1 {
			return nil, errors.Errorf("unterminated attribute value for %q", name)
		}
		value := rest[1 : 1+end]
		out[name] = unquoteAttr(value)
		s = strings.TrimSpace(rest[1+end+1:])
	}
	return out, nil
}
