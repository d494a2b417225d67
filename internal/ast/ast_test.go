package ast

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/hidl-gen/hidlgen/internal/fqname"
	"github.com/hidl-gen/hidlgen/internal/halfile"
)

func mustParse(t *testing.T, src string) *halfile.File {
	t.Helper()
	f, err := halfile.Parse([]byte(src))
	require.NoError(t, err)
	return f
}

func TestGetOrParseMemoizes(t *testing.T) {
	t.Parallel()

	c := NewCache()
	calls := 0
	load := func(name fqname.FQName) (*halfile.File, string, error) {
		calls++
		return mustParse(t, "package a.b@1.0;\ninterface IFoo {\n};\n"), "a/b/1.0/IFoo.hal", nil
	}

	name := fqname.MustParse("a.b@1.0::IFoo")
	h1, err := c.GetOrParse(name, nil, load)
	require.NoError(t, err)
	h2, err := c.GetOrParse(name, nil, load)
	require.NoError(t, err)

	require.Same(t, h1, h2)
	require.Equal(t, 1, calls)
	require.Equal(t, "a/b/1.0/IFoo.hal", h1.Filename())
}

func TestGetOrParseCycle(t *testing.T) {
	t.Parallel()

	c := NewCache()
	name := fqname.MustParse("a.b@1.0::IFoo")

	var load LoaderFunc
	load = func(n fqname.FQName) (*halfile.File, string, error) {
		_, err := c.GetOrParse(name, nil, load)
		require.Error(t, err)
		return mustParse(t, "package a.b@1.0;\ninterface IFoo {\n};\n"), "x.hal", nil
	}

	_, err := c.GetOrParse(name, nil, load)
	require.NoError(t, err)
}

func TestGetImportedPackages(t *testing.T) {
	t.Parallel()

	src := `package a.b@1.0;

import a.c@1.0::IBar;
import a.c@1.0::IBaz;
import a.d@2.1;

interface IFoo extends IBase {
};
`
	f := mustParse(t, src)
	h := newHandle(f, "x.hal", nil)

	got := h.GetImportedPackages()
	require.Len(t, got, 2)
	require.Equal(t, "a.c@1.0", got[0].String())
	require.Equal(t, "a.d@2.1", got[1].String())
}

type fakeExists struct {
	present map[string]bool
}

func (f *fakeExists) PackageExists(pkg fqname.FQName) bool {
	return f.present[pkg.String()]
}

func TestGetImportedPackagesHierarchy(t *testing.T) {
	t.Parallel()

	src := `package a.b@1.0;

import a.c@2.2;

interface IFoo extends IBase {
};
`
	f := mustParse(t, src)
	exists := &fakeExists{present: map[string]bool{
		"a.c@2.1": true,
		"a.c@2.0": true,
	}}
	h := newHandle(f, "x.hal", exists)

	got := h.GetImportedPackagesHierarchy()
	strs := make([]string, len(got))
	for i, g := range got {
		strs[i] = g.String()
	}
	require.Equal(t, []string{"a.c@2.0", "a.c@2.1", "a.c@2.2"}, strs)
}

func TestAppendToExportedTypesVector(t *testing.T) {
	t.Parallel()

	src := `package a.b@1.0;

@export(name="Status", value_prefix="STATUS_")
enum Status : int32_t {
    OK,
};
`
	f := mustParse(t, src)
	h := newHandle(f, "types.hal", nil)

	out := h.AppendToExportedTypesVector(nil)
	require.Len(t, out, 1)
	require.Equal(t, "Status", out[0].Name)
	require.Equal(t, "STATUS_", out[0].ValuePrefix)
}

func TestIsJavaCompatible(t *testing.T) {
	t.Parallel()

	f := mustParse(t, "package a.b@1.0;\n\n@nojavacompat\ninterface IFoo {\n};\n")
	h := newHandle(f, "x.hal", nil)
	require.False(t, h.IsJavaCompatible())
}
