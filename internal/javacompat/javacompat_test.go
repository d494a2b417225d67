package javacompat

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/hidl-gen/hidlgen/internal/ast"
	"github.com/hidl-gen/hidlgen/internal/fqname"
	"github.com/hidl-gen/hidlgen/internal/halfile"
	"github.com/hidl-gen/hidlgen/internal/hashmanifest"
)

type fakeParser struct {
	files    map[string]string // fqname string -> raw .hal
	packages map[string][]fqname.FQName
	cache    *ast.Cache
}

func newFakeParser() *fakeParser {
	return &fakeParser{
		files:    map[string]string{},
		packages: map[string][]fqname.FQName{},
		cache:    ast.NewCache(),
	}
}

func (p *fakeParser) Parse(name fqname.FQName, parsedSet map[string]*ast.Handle, enforce hashmanifest.Enforcement) (*ast.Handle, error) {
	return p.cache.GetOrParse(name, nil, func(n fqname.FQName) (*halfile.File, string, error) {
		f, err := halfile.Parse([]byte(p.files[n.String()]))
		return f, n.String() + ".hal", err
	})
}

func (p *fakeParser) AppendPackageInterfacesToVector(pkg fqname.FQName) ([]fqname.FQName, error) {
	return p.packages[pkg.String()], nil
}

func TestIsPackageJavaCompatibleTrue(t *testing.T) {
	t.Parallel()

	p := newFakeParser()
	foo := fqname.MustParse("a.b@1.0::IFoo")
	bar := fqname.MustParse("a.c@1.0::IBar")

	p.files[foo.String()] = "package a.b@1.0;\n\nimport a.c@1.0::IBar;\n\ninterface IFoo {\n};\n"
	p.files[bar.String()] = "package a.c@1.0;\ninterface IBar {\n};\n"
	p.packages[foo.PackageAndVersion().String()] = []fqname.FQName{foo}
	p.packages[bar.PackageAndVersion().String()] = []fqname.FQName{bar}

	ok, err := IsPackageJavaCompatible(p, foo.PackageAndVersion())
	require.NoError(t, err)
	require.True(t, ok)
}

func TestIsPackageJavaCompatibleFalse(t *testing.T) {
	t.Parallel()

	p := newFakeParser()
	foo := fqname.MustParse("a.b@1.0::IFoo")
	p.files[foo.String()] = "package a.b@1.0;\n\n@nojavacompat\ninterface IFoo {\n};\n"
	p.packages[foo.PackageAndVersion().String()] = []fqname.FQName{foo}

	ok, err := IsPackageJavaCompatible(p, foo.PackageAndVersion())
	require.NoError(t, err)
	require.False(t, ok)
}

func TestIsPackageJavaCompatibleTransitiveFalse(t *testing.T) {
	t.Parallel()

	p := newFakeParser()
	foo := fqname.MustParse("a.b@1.0::IFoo")
	bar := fqname.MustParse("a.c@1.0::IBar")

	p.files[foo.String()] = "package a.b@1.0;\n\nimport a.c@1.0::IBar;\n\ninterface IFoo {\n};\n"
	p.files[bar.String()] = "package a.c@1.0;\n\n@nojavacompat\ninterface IBar {\n};\n"
	p.packages[foo.PackageAndVersion().String()] = []fqname.FQName{foo}
	p.packages[bar.PackageAndVersion().String()] = []fqname.FQName{bar}

	ok, err := IsPackageJavaCompatible(p, foo.PackageAndVersion())
	require.NoError(t, err)
	require.False(t, ok)
}
