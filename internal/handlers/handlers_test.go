package handlers

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/hidl-gen/hidlgen/internal/coordinator"
	"github.com/hidl-gen/hidlgen/internal/fqname"
)

func writeHalFile(t *testing.T, dir, name, contents string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(dir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(contents), 0o644))
}

func setupPackage(t *testing.T) (*coordinator.Coordinator, string) {
	t.Helper()

	root := t.TempDir()
	pkgDir := filepath.Join(root, "a", "b", "1.0")
	writeHalFile(t, pkgDir, "types.hal", `package a.b@1.0;

@export(name="Status", value_prefix="STATUS_")
enum Status : int32_t {
    OK,
};
`)
	writeHalFile(t, pkgDir, "IFoo.hal", `package a.b@1.0;
interface IFoo extends IBase {
};
`)

	baseDir := filepath.Join(root, "android", "hidl", "base", "1.0")
	writeHalFile(t, baseDir, "types.hal", "package android.hidl.base@1.0;\n")
	writeHalFile(t, baseDir, "IBase.hal", "package android.hidl.base@1.0;\ninterface IBase {\n};\n")

	c := coordinator.New(nil)
	require.NoError(t, c.AddPackagePath("a.b", root+"/a/b"))
	require.NoError(t, c.AddPackagePath("android.hidl.base", root+"/android/hidl/base"))

	return c, root
}

func TestTableRegistersEveryFormat(t *testing.T) {
	t.Parallel()

	for _, key := range []string{
		"check", "c++", "c++-headers", "c++-sources",
		"c++-impl", "c++-impl-headers", "c++-impl-sources",
		"c++-adapter", "c++-adapter-headers", "c++-adapter-sources", "c++-adapter-main",
		"java", "java-constants", "export-header", "vts",
		"androidbp", "androidbp-impl", "hash",
	} {
		h, ok := Table[key]
		require.Truef(t, ok, "missing handler for %q", key)
		require.Equal(t, key, h.Key)
		require.NotNil(t, h.Validate)
		require.NotNil(t, h.Generate)
	}
}

func TestValidateIsSourceAcceptsPackageOrInterface(t *testing.T) {
	t.Parallel()

	require.NoError(t, validateIsSource(fqname.MustParse("a.b@1.0")))
	require.NoError(t, validateIsSource(fqname.MustParse("a.b@1.0::IFoo")))
	require.Error(t, validateIsSource(fqname.MustParse("a.b@1.0::types.Status")))
	require.NoError(t, validateSourceFor("java")(fqname.MustParse("a.b@1.0::types.Status")))
}

func TestGenerateHashOnPackageEnumeratesInterfaces(t *testing.T) {
	t.Parallel()

	c, _ := setupPackage(t)
	var buf bytes.Buffer
	ctx := &Context{Coordinator: c, Stdout: &buf}

	err := Table["hash"].Generate(ctx, fqname.MustParse("a.b@1.0"), "")
	require.NoError(t, err)

	lines := strings.Split(strings.TrimRight(buf.String(), "\n"), "\n")
	require.Len(t, lines, 2)
	require.Contains(t, lines[0], "a.b@1.0::types")
	require.Contains(t, lines[1], "a.b@1.0::IFoo")
}

func TestValidateIsPackageRejectsInterface(t *testing.T) {
	t.Parallel()

	require.Error(t, validateIsPackage(fqname.MustParse("a.b@1.0::IFoo")))
	require.NoError(t, validateIsPackage(fqname.MustParse("a.b@1.0")))
}

func TestGenerateCheckParsesWithoutOutput(t *testing.T) {
	t.Parallel()

	c, _ := setupPackage(t)
	ctx := &Context{Coordinator: c}
	err := Table["check"].Generate(ctx, fqname.MustParse("a.b@1.0::IFoo"), "")
	require.NoError(t, err)
}

func TestGenerateCppHeadersWritesInterfaceFiles(t *testing.T) {
	t.Parallel()

	c, _ := setupPackage(t)
	out := t.TempDir()
	ctx := &Context{Coordinator: c}

	err := Table["c++-headers"].Generate(ctx, fqname.MustParse("a.b@1.0::IFoo"), out+"/")
	require.NoError(t, err)

	for _, name := range []string{"IFoo.h", "IHwFoo.h", "BnHwFoo.h", "BpHwFoo.h", "BsFoo.h"} {
		path := filepath.Join(out, "a", "b", "1.0", name)
		require.FileExistsf(t, path, "expected %s to be written", path)
	}
}

func TestGenerateCppHeadersTypesUsesFixedNames(t *testing.T) {
	t.Parallel()

	c, _ := setupPackage(t)
	out := t.TempDir()
	ctx := &Context{Coordinator: c}

	err := Table["c++-headers"].Generate(ctx, fqname.MustParse("a.b@1.0::types"), out+"/")
	require.NoError(t, err)

	require.FileExists(t, filepath.Join(out, "a", "b", "1.0", "types.h"))
	require.FileExists(t, filepath.Join(out, "a", "b", "1.0", "hwtypes.h"))
}

func TestGenerateHashPrintsDigestLine(t *testing.T) {
	t.Parallel()

	c, _ := setupPackage(t)
	var buf bytes.Buffer
	ctx := &Context{Coordinator: c, Stdout: &buf}

	err := Table["hash"].Generate(ctx, fqname.MustParse("a.b@1.0::IFoo"), "")
	require.NoError(t, err)
	require.Contains(t, buf.String(), "a.b@1.0::IFoo")
	require.Len(t, strings.Fields(buf.String())[0], 64)
}

func TestGenerateJavaConstantsSkippedWhenNoExports(t *testing.T) {
	t.Parallel()

	// android.hidl.base exports nothing, unlike a.b whose types.hal carries
	// an @export annotation.
	c, _ := setupPackage(t)
	out := t.TempDir()
	ctx := &Context{Coordinator: c}

	err := Table["java-constants"].Generate(ctx, fqname.MustParse("android.hidl.base@1.0"), out+"/")
	require.NoError(t, err)
	require.NoFileExists(t, filepath.Join(out, "android", "hidl", "base", "V1_0", "Constants.java"))
}

func TestGenerateJavaConstantsWritesFileForExports(t *testing.T) {
	t.Parallel()

	c, _ := setupPackage(t)
	out := t.TempDir()
	ctx := &Context{Coordinator: c}

	err := Table["java-constants"].Generate(ctx, fqname.MustParse("a.b@1.0"), out+"/")
	require.NoError(t, err)

	contents, err := os.ReadFile(filepath.Join(out, "a", "b", "V1_0", "Constants.java"))
	require.NoError(t, err)
	require.Contains(t, string(contents), "package a.b.V1_0;")
	require.Contains(t, string(contents), "Status")
}

func TestGenerateAndroidBpProducesFile(t *testing.T) {
	t.Parallel()

	c, root := setupPackage(t)
	ctx := &Context{Coordinator: c, HidlGenTool: "hidl-gen"}

	// androidbp writes back into the source tree at the package root.
	err := Table["androidbp"].Generate(ctx, fqname.MustParse("a.b@1.0"), "")
	require.NoError(t, err)

	contents, err := os.ReadFile(filepath.Join(root, "a", "b", "1.0", "Android.bp"))
	require.NoError(t, err)
	require.Contains(t, string(contents), "a.b@1.0_hal")
	require.Contains(t, string(contents), "cc_library {")
	require.Contains(t, string(contents), "autogenerated by hidl-gen")
}

func TestGenerateAndroidBpImplSkipsTypes(t *testing.T) {
	t.Parallel()

	c, _ := setupPackage(t)
	out := t.TempDir()
	ctx := &Context{Coordinator: c}

	err := Table["androidbp-impl"].Generate(ctx, fqname.MustParse("a.b@1.0"), out+"/")
	require.NoError(t, err)

	contents, err := os.ReadFile(filepath.Join(out, "Android.bp"))
	require.NoError(t, err)
	require.Contains(t, string(contents), "a.b@1.0-impl")
	require.NotContains(t, string(contents), `"types.cpp"`)
	require.Contains(t, string(contents), `"libutils",`)
	require.Contains(t, string(contents), `"a.b@1.0",`)
	require.NotContains(t, string(contents), `"liblog"`)
}

func TestGenerateAndroidBpImplLinksImportedPackages(t *testing.T) {
	t.Parallel()

	c, root := setupPackage(t)
	writeHalFile(t, filepath.Join(root, "a", "c", "1.0"), "IBaz.hal", `package a.c@1.0;

import a.b@1.0::IFoo;
import android.hidl.base@1.0::IBase;

interface IBaz extends IBase {
};
`)
	require.NoError(t, c.AddPackagePath("a.c", root+"/a/c"))

	out := t.TempDir()
	ctx := &Context{Coordinator: c}

	err := Table["androidbp-impl"].Generate(ctx, fqname.MustParse("a.c@1.0"), out+"/")
	require.NoError(t, err)

	contents, err := os.ReadFile(filepath.Join(out, "Android.bp"))
	require.NoError(t, err)
	require.Contains(t, string(contents), `"a.b@1.0",`)
	require.NotContains(t, string(contents), `"android.hidl.base@1.0",`)
}
