package buildformat

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestBlockIndentation(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	f := New(&buf)
	f.Block(`cc_library_shared`, func(f *Formatter) {
		f.Line("name: %q,", "a.b@1.0")
		f.StringList("srcs", []string{"types.cpp", "IFoo.cpp"})
		f.StringList("shared_libs", nil)
	})
	require.NoError(t, f.Close())

	want := "cc_library_shared {\n" +
		"    name: \"a.b@1.0\",\n" +
		"    srcs: [\n" +
		"        \"types.cpp\",\n" +
		"        \"IFoo.cpp\",\n" +
		"    ],\n" +
		"    shared_libs: [],\n" +
		"}\n"
	require.Equal(t, want, buf.String())
}

func TestOpenCreatesParentDirs(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := filepath.Join(dir, "nested", "deep", "Android.bp")

	f := Open(path)
	require.True(t, f.IsValid())
	f.Line("// generated")
	require.NoError(t, f.Close())

	got, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Equal(t, "// generated\n", string(got))
}

func TestOpenBadPathIsInvalid(t *testing.T) {
	t.Parallel()

	// A regular file used as a parent directory component cannot be
	// mkdir -p'd into.
	dir := t.TempDir()
	blocker := filepath.Join(dir, "blocker")
	require.NoError(t, os.WriteFile(blocker, []byte("x"), 0o644))

	f := Open(filepath.Join(blocker, "sub", "Android.bp"))
	require.False(t, f.IsValid())
	require.Error(t, f.Err())
}
