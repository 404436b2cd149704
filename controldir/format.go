// Package controldir implements the ControlDir (the container for a
// Repository and its named Branches at one location), the Format
// registry that lets a Prober recognize an on-disk layout from its
// control-file signature, and the two-tier (server-then-local) prober
// chain spec §4.5 describes.
//
// Grounded on bzrlib's controldir.py (ControlDirFormat, Prober,
// ControlDirFormatRegistry) and spec.md §4.5.
package controldir

import (
	"sort"

	"github.com/Masterminds/semver"
)

// Format identifies one on-disk control-directory layout by the fixed
// byte-string signature stored in its control file (mirroring
// BZR_BRANCH_FORMAT_5/6 in branch.py), together with the semantic
// version that signature embeds so formats can be ordered and compared
// instead of relying on ad hoc string matching.
type Format struct {
	Signature   string
	Version     *semver.Version
	RichRoot    bool
	Description string
	Supported   bool
}

// Registry is the set of formats a SignatureProber can recognize.
type Registry struct {
	byName map[string]*Format
	order  []string
}

// NewRegistry returns an empty format registry.
func NewRegistry() *Registry {
	return &Registry{byName: map[string]*Format{}}
}

// Register adds or replaces the format with this signature.
func (r *Registry) Register(f *Format) {
	if _, exists := r.byName[f.Signature]; !exists {
		r.order = append(r.order, f.Signature)
	}
	r.byName[f.Signature] = f
}

// Lookup returns the format registered under signature, if any.
func (r *Registry) Lookup(signature string) (*Format, bool) {
	f, ok := r.byName[signature]
	return f, ok
}

// Formats returns every registered format, newest version first
// (formats without a parseable version sort after all versioned ones,
// ordered by signature).
func (r *Registry) Formats() []*Format {
	out := make([]*Format, 0, len(r.order))
	for _, name := range r.order {
		out = append(out, r.byName[name])
	}
	sort.SliceStable(out, func(i, j int) bool {
		vi, vj := out[i].Version, out[j].Version
		if vi != nil && vj != nil {
			return vi.GreaterThan(vj)
		}
		if vi != nil {
			return true
		}
		if vj != nil {
			return false
		}
		return out[i].Signature < out[j].Signature
	})
	return out
}

// Newest returns the highest-versioned registered format, or nil if
// the registry is empty. ControlDirFormat.get_default_format in
// bzrlib is a fixed pointer set once at startup; here the default is
// simply the newest registered format, which keeps a program that adds
// formats in version order from having to separately track a default.
func (r *Registry) Newest() *Format {
	all := r.Formats()
	if len(all) == 0 {
		return nil
	}
	return all[0]
}

// Resolve returns the format named by signature, or, when signature is
// empty (the engine config's way of saying "no explicit preference"),
// r.Newest(). It fails with *UnknownFormatError if signature is
// non-empty and unregistered, or if the registry is empty altogether.
func (r *Registry) Resolve(signature string) (*Format, error) {
	if signature == "" {
		if f := r.Newest(); f != nil {
			return f, nil
		}
		return nil, &UnknownFormatError{Signature: signature}
	}
	f, ok := r.Lookup(signature)
	if !ok {
		return nil, &UnknownFormatError{Signature: signature}
	}
	return f, nil
}
