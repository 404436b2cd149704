package controldir

import "fmt"

// UnknownFormatError means a control file was found but its signature
// does not match any format registered with the Registry a Prober
// consulted.
type UnknownFormatError struct {
	Signature string
}

func (e *UnknownFormatError) Error() string {
	return fmt.Sprintf("controldir: unknown format signature %q", e.Signature)
}

// UnsupportedFormatError means a known format signature was matched,
// but that format is marked unsupported and the caller did not opt in
// to unsupported formats.
type UnsupportedFormatError struct {
	Format *Format
}

func (e *UnsupportedFormatError) Error() string {
	return fmt.Sprintf("controldir: format %q is not supported", e.Format.Description)
}

// NotBranchError means no control file was found at all.
type NotBranchError struct {
	Path string
}

func (e *NotBranchError) Error() string {
	if e.Path == "" {
		return "controldir: not a control directory"
	}
	return fmt.Sprintf("controldir: not a control directory: %q", e.Path)
}

// BranchAlreadyExistsError means CreateBranch was called with a name
// that already has a branch.
type BranchAlreadyExistsError struct {
	Name string
}

func (e *BranchAlreadyExistsError) Error() string {
	return fmt.Sprintf("controldir: branch %q already exists", e.Name)
}

// NoSuchBranchError means OpenBranch was called with a name that was
// never created.
type NoSuchBranchError struct {
	Name string
}

func (e *NoSuchBranchError) Error() string {
	return fmt.Sprintf("controldir: no branch named %q", e.Name)
}

// RepositoryAlreadyExistsError means CreateRepository was called on a
// control dir that already has one attached.
type RepositoryAlreadyExistsError struct{}

func (e *RepositoryAlreadyExistsError) Error() string {
	return "controldir: a repository already exists in this control directory"
}

// NoRepositoryPresentError means an operation needing a repository was
// attempted before one was created.
type NoRepositoryPresentError struct{}

func (e *NoRepositoryPresentError) Error() string {
	return "controldir: no repository present in this control directory"
}
