package safeopen

import (
	"path"
	"strings"
)

// BlacklistPolicy forbids a fixed set of URLs and accepts everything
// else; mostly useful for tests.
type BlacklistPolicy struct {
	Follow     bool
	UnsafeURLs map[string]bool
}

// AcceptAnythingPolicy returns a BlacklistPolicy with nothing
// blacklisted, following every reference.
func AcceptAnythingPolicy() *BlacklistPolicy {
	return &BlacklistPolicy{Follow: true, UnsafeURLs: map[string]bool{}}
}

func (p *BlacklistPolicy) ShouldFollowReferences() bool { return p.Follow }

func (p *BlacklistPolicy) CheckOneURL(url string) error {
	if p.UnsafeURLs[url] {
		return &BadURLError{URL: url}
	}
	return nil
}

func (p *BlacklistPolicy) TransformFallbackLocation(branchURL, url string) (string, bool) {
	return joinURL(branchURL, url), false
}

// WhitelistPolicy only allows URLs from a fixed allow-list.
type WhitelistPolicy struct {
	Follow      bool
	AllowedURLs map[string]bool
	Check       bool
}

func (p *WhitelistPolicy) ShouldFollowReferences() bool { return p.Follow }

func (p *WhitelistPolicy) CheckOneURL(url string) error {
	if !p.AllowedURLs[strings.TrimRight(url, "/")] {
		return &BadURLError{URL: url}
	}
	return nil
}

func (p *WhitelistPolicy) TransformFallbackLocation(branchURL, url string) (string, bool) {
	return joinURL(branchURL, url), p.Check
}

// SingleSchemePolicy rejects any URL not on a fixed scheme (e.g.
// "https"), following references and stacked-on locations freely.
type SingleSchemePolicy struct {
	AllowedScheme string
}

func (p *SingleSchemePolicy) ShouldFollowReferences() bool { return true }

func (p *SingleSchemePolicy) TransformFallbackLocation(branchURL, url string) (string, bool) {
	return joinURL(branchURL, url), true
}

func (p *SingleSchemePolicy) CheckOneURL(url string) error {
	scheme, _, ok := splitScheme(url)
	if !ok || scheme != p.AllowedScheme {
		return &BadURLError{URL: url}
	}
	return nil
}

func splitScheme(url string) (scheme, rest string, ok bool) {
	i := strings.Index(url, "://")
	if i < 0 {
		return "", url, false
	}
	return url[:i], url[i+3:], true
}

// joinURL is a minimal relative-URL join: an absolute url (one
// carrying its own scheme) is returned unchanged, otherwise it is
// resolved against branchURL, taken as a directory, the way
// urlutils.join treats a relative stacked-on location ("." and ".."
// segments are collapsed).
func joinURL(branchURL, url string) string {
	if _, _, ok := splitScheme(url); ok {
		return url
	}
	if scheme, rest, ok := splitScheme(branchURL); ok {
		return scheme + "://" + path.Join(rest, url)
	}
	return path.Join(branchURL, url)
}

// Open opens the branch at url using only URLs on allowedScheme,
// mirroring bzrlib's module-level safe_open convenience function.
func Open(allowedScheme, url string, openBranch func(resolvedURL string) (interface{}, error)) (interface{}, error) {
	return New(&SingleSchemePolicy{AllowedScheme: allowedScheme}, NoReferences{}).Open(url, openBranch)
}
