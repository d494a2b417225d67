// Package ast implements the AST Cache / Parser Gateway: given a fully
// qualified interface name, it locates the interface's .hal file, parses it
// once via halfile, memoizes the result, and exposes the query surface the
// Build-File Planner needs (imports, imports hierarchy, exported types,
// sub-types, Java compatibility).
package ast

import (
	"github.com/cockroachdb/errors"

	"github.com/hidl-gen/hidlgen/internal/fqname"
	"github.com/hidl-gen/hidlgen/internal/halfile"
)

// SubType mirrors halfile.SubType at the AST-handle boundary.
type SubType struct {
	Name      string
	Kind      string
	IsTypeDef bool
}

// ExportedType mirrors halfile.ExportedType at the AST-handle boundary. It
// carries no owning-package field; callers merging several interfaces'
// exports into one slice keep track of the package themselves.
type ExportedType struct {
	Name        string
	ValuePrefix string
}

// ExistsChecker answers whether a given package has interface files on
// disk. Used to walk the lower-versioned hierarchy of an import without
// the AST cache needing to know about package roots directly.
type ExistsChecker interface {
	PackageExists(pkg fqname.FQName) bool
}

// Handle is the opaque, read-only AST exposed to the rest of the core. Its
// lifetime is the lifetime of the owning Cache; it is never mutated after
// construction.
type Handle struct {
	file     *halfile.File
	filename string
	exists   ExistsChecker
}

func newHandle(file *halfile.File, filename string, exists ExistsChecker) *Handle {
	return &Handle{file: file, filename: filename, exists: exists}
}

// Filename returns the source .hal path.
func (h *Handle) Filename() string { return h.filename }

// Raw returns the source file's bytes as parsed, for hashing.
func (h *Handle) Raw() []byte { return h.file.Raw }

// IsJavaCompatible reports whether this interface/types file contains
// nothing that would make it unrepresentable in Java.
func (h *Handle) IsJavaCompatible() bool {
	return !h.file.JavaIncompatible
}

// InterfaceName returns the local interface name ("IFoo"), or "" for a
// types.hal.
func (h *Handle) InterfaceName() string { return h.file.InterfaceName }

// SuperTypeName returns the super-type reference exactly as written in the
// extends clause ("IBase", "@1.0::IFoo"), or "" if the interface extends
// nothing but the implicit IBase.
func (h *Handle) SuperTypeName() string { return h.file.Extends }

// GetSubTypes returns the package-level named types declared in this file.
func (h *Handle) GetSubTypes() []SubType {
	out := make([]SubType, 0, len(h.file.SubTypes))
	for _, st := range h.file.SubTypes {
		out = append(out, SubType{Name: st.Name, Kind: st.Kind, IsTypeDef: st.IsTypeDef})
	}
	return out
}

// AppendToExportedTypesVector appends this file's @export-annotated types
// to out, returning the extended slice.
func (h *Handle) AppendToExportedTypesVector(out []ExportedType) []ExportedType {
	for _, e := range h.file.Exported {
		out = append(out, ExportedType{Name: e.Name, ValuePrefix: e.ValuePrefix})
	}
	return out
}

// GetImportedPackages returns the direct packages this file imports
// (package-only FQNames, deduplicated, canonically ordered).
func (h *Handle) GetImportedPackages() []fqname.FQName {
	seen := map[string]fqname.FQName{}
	for _, raw := range h.file.Imports {
		f, err := fqname.Parse(raw)
		if err != nil {
			continue
		}
		pv := f.PackageAndVersion()
		seen[pv.String()] = pv
	}
	out := make([]fqname.FQName, 0, len(seen))
	for _, f := range seen {
		out = append(out, f)
	}
	fqname.SortFQNames(out)
	return out
}

// GetImportedPackagesHierarchy extends GetImportedPackages with the
// lower minor versions of each imported package that exist on disk,
// covering the transitive ABI surface the build planner must link against.
// The walk goes down one minor version at a time and stops at the first
// version that does not exist, so versions below a gap are not included.
func (h *Handle) GetImportedPackagesHierarchy() []fqname.FQName {
	direct := h.GetImportedPackages()
	seen := map[string]fqname.FQName{}
	for _, pkg := range direct {
		seen[pkg.String()] = pkg
		if h.exists == nil {
			continue
		}
		for cur := pkg; cur.Minor() > 0; {
			cur = cur.DownRev()
			if !h.exists.PackageExists(cur) {
				break
			}
			seen[cur.String()] = cur
		}
	}
	out := make([]fqname.FQName, 0, len(seen))
	for _, f := range seen {
		out = append(out, f)
	}
	fqname.SortFQNames(out)
	return out
}

// Cache memoizes parsed ASTs keyed by fully-qualified interface name.
type Cache struct {
	entries map[string]*Handle
	// inProgress guards against re-entrant parsing of an in-flight
	// interface, reporting a cycle as a fatal error (HIDL forbids cycles).
	inProgress map[string]bool
}

// NewCache returns an empty AST cache.
func NewCache() *Cache {
	return &Cache{entries: map[string]*Handle{}, inProgress: map[string]bool{}}
}

// Get returns the cached handle for name, if one was already parsed.
func (c *Cache) Get(name fqname.FQName) (*Handle, bool) {
	h, ok := c.entries[name.String()]
	return h, ok
}

// LoaderFunc reads and parses the .hal file for name, returning its raw
// filename (for Handle.Filename) alongside the parsed file.
type LoaderFunc func(name fqname.FQName) (file *halfile.File, filename string, err error)

// GetOrParse returns the cached handle for name, parsing and caching it via
// load if this is the first request. Returns an error if name is already
// being parsed higher up the call stack (an import cycle).
func (c *Cache) GetOrParse(name fqname.FQName, exists ExistsChecker, load LoaderFunc) (*Handle, error) {
	key := name.String()
	if h, ok := c.entries[key]; ok {
		return h, nil
	}
	if c.inProgress[key] {
		return nil, errors.Newf("ast: import cycle detected while parsing %s", key)
	}

	c.inProgress[key] = true
	defer delete(c.inProgress, key)

	file, filename, err := load(name)
	if err != nil {
		return nil, err
	}

	h := newHandle(file, filename, exists)
	c.entries[key] = h
	return h, nil
}
