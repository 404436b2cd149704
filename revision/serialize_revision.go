package revision

import (
	"sort"
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

// SerializeRevision renders rev in the same line-oriented canonical
// style as Testament.ToTextForm1 (a fixed header, one line per field,
// a message block indented two spaces) so a revision record reads the
// same whether it's being hashed for a signature or written to the
// versioned-file store.
func SerializeRevision(rev *Revision) []byte {
	var b strings.Builder
	b.WriteString("revctl revision version 1\n")
	b.WriteString("revision-id: " + string(rev.RevisionID) + "\n")
	parentStrs := make([]string, len(rev.ParentIDs))
	for i, p := range rev.ParentIDs {
		parentStrs[i] = string(p)
	}
	b.WriteString("parent-ids: " + strings.Join(parentStrs, " ") + "\n")
	b.WriteString("committer: " + rev.Committer + "\n")
	b.WriteString("timestamp: " + strconv.FormatFloat(rev.Timestamp, 'f', 1, 64) + "\n")
	b.WriteString("timezone: " + strconv.Itoa(rev.Timezone) + "\n")
	b.WriteString("inventory-sha1: " + rev.InventorySHA1 + "\n")

	keys := make([]string, 0, len(rev.Properties))
	for k := range rev.Properties {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	b.WriteString("properties:\n")
	for _, k := range keys {
		b.WriteString("  " + k + ": " + rev.Properties[k] + "\n")
	}

	b.WriteString("message:\n")
	for _, line := range strings.Split(rev.Message, "\n") {
		b.WriteString("  " + line + "\n")
	}
	return []byte(b.String())
}

// DeserializeRevision parses the form produced by SerializeRevision.
func DeserializeRevision(data []byte) (*Revision, error) {
	lines := strings.Split(string(data), "\n")
	if len(lines) == 0 || lines[0] != "revctl revision version 1" {
		return nil, errors.New("revision: missing version header")
	}
	rev := &Revision{Properties: map[string]string{}}

	i := 1
	for ; i < len(lines); i++ {
		line := lines[i]
		switch {
		case strings.HasPrefix(line, "revision-id: "):
			rev.RevisionID = RevisionID(strings.TrimPrefix(line, "revision-id: "))
		case strings.HasPrefix(line, "parent-ids: "):
			rest := strings.TrimPrefix(line, "parent-ids: ")
			if rest != "" {
				for _, p := range strings.Split(rest, " ") {
					rev.ParentIDs = append(rev.ParentIDs, RevisionID(p))
				}
			}
		case strings.HasPrefix(line, "committer: "):
			rev.Committer = strings.TrimPrefix(line, "committer: ")
		case strings.HasPrefix(line, "timestamp: "):
			ts, err := strconv.ParseFloat(strings.TrimPrefix(line, "timestamp: "), 64)
			if err != nil {
				return nil, errors.Wrap(err, "revision: parsing timestamp")
			}
			rev.Timestamp = ts
		case strings.HasPrefix(line, "timezone: "):
			tz, err := strconv.Atoi(strings.TrimPrefix(line, "timezone: "))
			if err != nil {
				return nil, errors.Wrap(err, "revision: parsing timezone")
			}
			rev.Timezone = tz
		case strings.HasPrefix(line, "inventory-sha1: "):
			rev.InventorySHA1 = strings.TrimPrefix(line, "inventory-sha1: ")
		case line == "properties:":
			i++
			for i < len(lines) && strings.HasPrefix(lines[i], "  ") && lines[i] != "message:" {
				kv := strings.TrimPrefix(lines[i], "  ")
				parts := strings.SplitN(kv, ": ", 2)
				if len(parts) == 2 {
					rev.Properties[parts[0]] = parts[1]
				}
				i++
			}
			i--
		case line == "message:":
			var msgLines []string
			i++
			for i < len(lines) {
				if lines[i] == "" && i == len(lines)-1 {
					break
				}
				msgLines = append(msgLines, strings.TrimPrefix(lines[i], "  "))
				i++
			}
			rev.Message = strings.Join(msgLines, "\n")
		}
	}
	return rev, nil
}
