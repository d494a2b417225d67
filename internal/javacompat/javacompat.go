// Package javacompat determines Java-compatibility reachability for a
// package: whether every interface reachable from it, through its direct
// imports, is itself representable in Java.
package javacompat

import (
	"github.com/hidl-gen/hidlgen/internal/ast"
	"github.com/hidl-gen/hidlgen/internal/fqname"
	"github.com/hidl-gen/hidlgen/internal/hashmanifest"
)

// Parser is the subset of the Coordinator the reachability walk needs:
// parse an interface, and enumerate a package's interface files.
type Parser interface {
	Parse(name fqname.FQName, parsedSet map[string]*ast.Handle, enforce hashmanifest.Enforcement) (*ast.Handle, error)
	AppendPackageInterfacesToVector(pkg fqname.FQName) ([]fqname.FQName, error)
}

// IsPackageJavaCompatible walks the worklist of pkg's own interfaces,
// parsing each; if any is not Java-compatible, it returns false. Otherwise,
// for each of that interface's direct imported packages, it enumerates and
// pushes any not-yet-seen interfaces, continuing until the worklist empties
// (returning true) or a parse fails (returning the error).
func IsPackageJavaCompatible(p Parser, pkg fqname.FQName) (bool, error) {
	seed, err := p.AppendPackageInterfacesToVector(pkg)
	if err != nil {
		return false, err
	}

	worklist := append([]fqname.FQName(nil), seed...)
	seen := map[string]bool{}
	for _, f := range seed {
		seen[f.String()] = true
	}

	for len(worklist) > 0 {
		cur := worklist[0]
		worklist = worklist[1:]

		h, err := p.Parse(cur, nil, hashmanifest.Default)
		if err != nil {
			return false, err
		}
		if !h.IsJavaCompatible() {
			return false, nil
		}

		for _, importedPkg := range h.GetImportedPackages() {
			interfaces, err := p.AppendPackageInterfacesToVector(importedPkg)
			if err != nil {
				return false, err
			}
			for _, f := range interfaces {
				if seen[f.String()] {
					continue
				}
				seen[f.String()] = true
				worklist = append(worklist, f)
			}
		}
	}

	return true, nil
}
