package revision

import (
	"path"
	"sort"

	radix "github.com/armon/go-radix"
	"github.com/pkg/errors"
)

// Kind enumerates the kinds of entry an Inventory can hold.
type Kind int

const (
	KindFile Kind = iota
	KindDirectory
	KindSymlink
)

func (k Kind) String() string {
	switch k {
	case KindFile:
		return "file"
	case KindDirectory:
		return "directory"
	case KindSymlink:
		return "symlink"
	default:
		return "unknown"
	}
}

// InventoryEntry describes one file, directory, or symlink tracked in
// an Inventory. ParentID is the file-id of the containing directory;
// the root entry has an empty ParentID.
type InventoryEntry struct {
	FileID         FileID
	ParentID       FileID
	Name           string
	Kind           Kind
	TextSHA1       string
	TextSize       int64
	Executable     bool
	SymlinkTarget  string
	LastModifiedBy RevisionID
}

// Inventory is a snapshot of the tree as of one revision: every file,
// directory, and symlink indexed by file-id, plus the path→file-id
// index needed to resolve a path to an entry.
type Inventory struct {
	RootID   FileID
	Revision RevisionID

	byID   map[FileID]*InventoryEntry
	byPath *radix.Tree // path (no leading slash) -> FileID
}

// NewInventory returns an Inventory with no entries and no root; call
// SetRoot before adding any other entry.
func NewInventory() *Inventory {
	return &Inventory{
		byID:   make(map[FileID]*InventoryEntry),
		byPath: radix.New(),
	}
}

// EmptyTree returns the canonical inventory for the parent of a first
// commit: a single empty root directory with file-id RootFileID, and
// no revision of its own recorded yet (used only for delta computation
// against a first commit's inventory).
func EmptyTree() *Inventory {
	inv := NewInventory()
	inv.SetRoot(&InventoryEntry{
		FileID: RootFileID,
		Kind:   KindDirectory,
	})
	return inv
}

// SetRoot installs root as the tree root. root.ParentID and root.Name
// are forced empty regardless of caller input.
func (inv *Inventory) SetRoot(root *InventoryEntry) {
	root.ParentID = ""
	root.Name = ""
	inv.RootID = root.FileID
	inv.byID[root.FileID] = root
	inv.byPath.Insert("", root.FileID)
}

// Add inserts entry into the inventory. The parent directory named by
// entry.ParentID must already be present.
func (inv *Inventory) Add(entry *InventoryEntry) error {
	if entry.FileID == "" {
		return errors.New("inventory: cannot add an entry with an empty file-id")
	}
	if _, exists := inv.byID[entry.FileID]; exists {
		return errors.Errorf("inventory: file-id %q already present", entry.FileID)
	}
	parent, ok := inv.byID[entry.ParentID]
	if !ok {
		return errors.Errorf("inventory: parent directory %q for %q not found", entry.ParentID, entry.FileID)
	}
	if parent.Kind != KindDirectory {
		return errors.Errorf("inventory: parent %q of %q is not a directory", entry.ParentID, entry.FileID)
	}
	p, err := inv.pathOf(entry.ParentID)
	if err != nil {
		return err
	}
	full := path.Join(p, entry.Name)
	if _, exists := inv.byPath.Get(full); exists {
		return errors.Errorf("inventory: path %q already occupied", full)
	}
	inv.byID[entry.FileID] = entry
	inv.byPath.Insert(full, entry.FileID)
	return nil
}

// Remove deletes the entry named by id. Removing a non-empty directory
// is an error: callers must remove its children first.
func (inv *Inventory) Remove(id FileID) error {
	entry, ok := inv.byID[id]
	if !ok {
		return errors.Errorf("inventory: no such file-id %q", id)
	}
	if entry.Kind == KindDirectory {
		for _, e := range inv.byID {
			if e.ParentID == id {
				return errors.Errorf("inventory: directory %q is not empty", id)
			}
		}
	}
	p, err := inv.pathOf(id)
	if err != nil {
		return err
	}
	delete(inv.byID, id)
	inv.byPath.Delete(p)
	return nil
}

// Get returns the entry for file-id id.
func (inv *Inventory) Get(id FileID) (*InventoryEntry, bool) {
	e, ok := inv.byID[id]
	return e, ok
}

// ByPath resolves a root-relative path (no leading slash) to its entry.
func (inv *Inventory) ByPath(p string) (*InventoryEntry, bool) {
	id, ok := inv.byPath.Get(p)
	if !ok {
		return nil, false
	}
	return inv.byID[id.(FileID)], true
}

// Path returns the root-relative path of file-id id.
func (inv *Inventory) Path(id FileID) (string, error) {
	return inv.pathOf(id)
}

func (inv *Inventory) pathOf(id FileID) (string, error) {
	entry, ok := inv.byID[id]
	if !ok {
		return "", errors.Errorf("inventory: no such file-id %q", id)
	}
	if entry.ParentID == "" {
		return "", nil
	}
	parentPath, err := inv.pathOf(entry.ParentID)
	if err != nil {
		return "", err
	}
	return path.Join(parentPath, entry.Name), nil
}

// Entries returns every entry in deterministic path order, root first.
func (inv *Inventory) Entries() []*InventoryEntry {
	type pe struct {
		path  string
		entry *InventoryEntry
	}
	all := make([]pe, 0, len(inv.byID))
	for id, e := range inv.byID {
		p, _ := inv.pathOf(id)
		all = append(all, pe{p, e})
	}
	sort.Slice(all, func(i, j int) bool { return all[i].path < all[j].path })
	out := make([]*InventoryEntry, len(all))
	for i, v := range all {
		out[i] = v.entry
	}
	return out
}

// DeltaEntry is one changed, added, or removed path between two
// inventories.
type DeltaEntry struct {
	OldPath string
	NewPath string
	FileID  FileID
	OldKind Kind
	NewKind Kind
	// Removed is true when the entry existed in the base inventory but
	// not in this one; Added is true for the reverse.
	Removed bool
	Added   bool
}

// Delta computes the entries that differ between base and inv, keyed
// by file-id so renames are reported as a single change rather than a
// remove+add pair.
func (inv *Inventory) Delta(base *Inventory) []DeltaEntry {
	var out []DeltaEntry
	seen := map[FileID]struct{}{}

	for id, newEntry := range inv.byID {
		seen[id] = struct{}{}
		oldEntry, existed := base.byID[id]
		newPath, _ := inv.pathOf(id)
		if !existed {
			out = append(out, DeltaEntry{NewPath: newPath, FileID: id, NewKind: newEntry.Kind, Added: true})
			continue
		}
		oldPath, _ := base.pathOf(id)
		if oldPath != newPath || oldEntry.TextSHA1 != newEntry.TextSHA1 ||
			oldEntry.Executable != newEntry.Executable || oldEntry.SymlinkTarget != newEntry.SymlinkTarget ||
			oldEntry.Kind != newEntry.Kind {
			out = append(out, DeltaEntry{
				OldPath: oldPath, NewPath: newPath, FileID: id,
				OldKind: oldEntry.Kind, NewKind: newEntry.Kind,
			})
		}
	}
	for id, oldEntry := range base.byID {
		if _, ok := seen[id]; ok {
			continue
		}
		oldPath, _ := base.pathOf(id)
		out = append(out, DeltaEntry{OldPath: oldPath, FileID: id, OldKind: oldEntry.Kind, Removed: true})
	}

	sort.Slice(out, func(i, j int) bool {
		ki := out[i].NewPath
		if ki == "" {
			ki = out[i].OldPath
		}
		kj := out[j].NewPath
		if kj == "" {
			kj = out[j].OldPath
		}
		return ki < kj
	})
	return out
}
