package controldir

import (
	"io"
	"time"

	"github.com/brennie/revctl/branch"
	"github.com/brennie/revctl/config"
	"github.com/brennie/revctl/internal/rlog"
	"github.com/brennie/revctl/lock"
	"github.com/brennie/revctl/repo"
	"github.com/brennie/revctl/transport"
)

// ControlDir is a single location holding zero or one Repository and
// zero or more named Branches; the unnamed "" branch is the default
// one most operations act on, mirroring spec §4.5's ControlDir.
type ControlDir struct {
	Dir        Dir
	Format     *Format
	Repository *repo.Repository

	// Logger receives progress output for CreateRepository and
	// CreateBranch, and is handed down to both so operations through
	// them log under the same sink. A nil Logger discards everything.
	Logger *rlog.Logger

	// LockTimeout bounds LockControlFile's wait for a contended write
	// lock. Zero (the default for New) means no wait: a contended lock
	// fails at once. Set by NewFromConfig from config.Config.LockTimeout.
	LockTimeout time.Duration

	branches map[string]*branch.Branch
}

// LockControlFile takes an exclusive write lock on a control file at
// relpath within t, retrying a contended lock until cd.LockTimeout has
// elapsed; with a zero LockTimeout it fails immediately on contention.
func (cd *ControlDir) LockControlFile(t *transport.LocalTransport, relpath string) (*lock.WriteLock, error) {
	return t.LockWriteTimeout(relpath, cd.LockTimeout)
}

// New returns an empty control dir of the given format, backed by dir
// for its own format-signature control file.
func New(dir Dir, format *Format) *ControlDir {
	return &ControlDir{Dir: dir, Format: format, branches: map[string]*branch.Branch{}}
}

// CreateRepository attaches a fresh, empty repository to this control
// dir. It fails with *RepositoryAlreadyExistsError if one is already
// attached.
func (cd *ControlDir) CreateRepository(richRoot bool) (*repo.Repository, error) {
	if cd.Repository != nil {
		return nil, &RepositoryAlreadyExistsError{}
	}
	cd.Logger.Notef("controldir", "creating repository (rich-root=%v)", richRoot)
	cd.Repository = repo.NewRepository(richRoot)
	cd.Repository.Logger = cd.Logger
	return cd.Repository, nil
}

// FindRepository returns the repository attached to this control dir.
// It fails with *NoRepositoryPresentError if none was ever created.
func (cd *ControlDir) FindRepository() (*repo.Repository, error) {
	if cd.Repository == nil {
		return nil, &NoRepositoryPresentError{}
	}
	return cd.Repository, nil
}

// CreateBranch creates a new named branch (use "" for the default
// branch) backed by this control dir's repository and a dedicated set
// of control files.
func (cd *ControlDir) CreateBranch(name string, files branch.ControlFiles) (*branch.Branch, error) {
	if cd.Repository == nil {
		return nil, &NoRepositoryPresentError{}
	}
	if _, exists := cd.branches[name]; exists {
		return nil, &BranchAlreadyExistsError{Name: name}
	}
	cd.Logger.Notef("controldir", "creating branch %q", name)
	b := branch.New(cd.Repository, files)
	b.Logger = cd.Logger
	cd.branches[name] = b
	return b, nil
}

// OpenBranch returns a previously created branch. ignoreFallbacks is
// accepted for parity with spec §4.5's open_branch(name,
// ignore_fallbacks) signature; this module does not implement stacked
// branches (see safeopen's TransformFallbackLocation for where
// stacked-on resolution belongs once a format supports it), so the
// parameter currently has no effect.
func (cd *ControlDir) OpenBranch(name string, ignoreFallbacks bool) (*branch.Branch, error) {
	_ = ignoreFallbacks
	b, ok := cd.branches[name]
	if !ok {
		return nil, &NoSuchBranchError{Name: name}
	}
	return b, nil
}

// NewFromConfig returns an empty control dir the way New does, except
// the format is resolved from cfg.DefaultFormat against reg (rather
// than given explicitly) and the control dir's Logger is gated on
// cfg.LogVerbose via rlog.NewFromConfig, so a quiet revctl.toml yields
// a ControlDir that logs nothing even when w is non-nil.
func NewFromConfig(dir Dir, cfg config.Config, reg *Registry, w io.Writer) (*ControlDir, error) {
	format, err := reg.Resolve(cfg.DefaultFormat)
	if err != nil {
		return nil, err
	}
	cd := New(dir, format)
	cd.Logger = rlog.NewFromConfig(cfg.LogVerbose, w)
	cd.LockTimeout = cfg.LockTimeout
	return cd, nil
}

// Branches lists the names of every branch created in this control
// dir, in no particular order.
func (cd *ControlDir) Branches() []string {
	names := make([]string, 0, len(cd.branches))
	for name := range cd.branches {
		names = append(names, name)
	}
	return names
}
