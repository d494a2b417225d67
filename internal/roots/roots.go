// Package roots implements the Package Root Registry: a configured mapping
// of package-prefix to filesystem-path-root, used to resolve a fully
// qualified HIDL interface name to a directory on disk.
package roots

import (
	"github.com/cockroachdb/errors"

	"github.com/hidl-gen/hidlgen/internal/fqname"
)

// Entry is a (prefix, path) pair. Path existence is checked lazily, the
// first time a name under that prefix is resolved.
type Entry struct {
	Prefix string
	Path   string
}

// Registry holds the configured Package-Root Entries for one invocation.
type Registry struct {
	entries []Entry
}

// New returns an empty registry.
func New() *Registry {
	return &Registry{}
}

// Add registers prefix -> path. It fails only on a duplicate prefix; the
// path is not required to exist until a name under it is actually resolved.
func (r *Registry) Add(prefix, path string) error {
	for _, e := range r.entries {
		if e.Prefix == prefix {
			return errors.Newf("roots: duplicate package root prefix %q", prefix)
		}
	}
	r.entries = append(r.entries, Entry{Prefix: prefix, Path: path})
	return nil
}

// AddDefault registers prefix -> path only if prefix is not already present.
func (r *Registry) AddDefault(prefix, path string) {
	for _, e := range r.entries {
		if e.Prefix == prefix {
			return
		}
	}
	r.entries = append(r.entries, Entry{Prefix: prefix, Path: path})
}

// Find selects the registered prefix of maximum length that is a prefix of
// name's package. The longer prefix always wins.
func (r *Registry) Find(name fqname.FQName) (Entry, error) {
	var best Entry
	found := false
	for _, e := range r.entries {
		if !name.InPackage(e.Prefix) {
			continue
		}
		if !found || len(e.Prefix) > len(best.Prefix) {
			best = e
			found = true
		}
	}
	if !found {
		return Entry{}, errors.Newf("roots: no package root registered for %q", name.Package())
	}
	return best, nil
}

