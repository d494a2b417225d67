package roots

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/hidl-gen/hidlgen/internal/fqname"
)

func TestAddDuplicatePrefix(t *testing.T) {
	t.Parallel()

	r := New()
	dir := t.TempDir()
	require.NoError(t, r.Add("a.b", dir))
	err := r.Add("a.b", dir)
	require.Error(t, err)
}

func TestAddMissingPathRegisters(t *testing.T) {
	t.Parallel()

	// Path existence is checked lazily at resolve time, not at
	// registration.
	r := New()
	require.NoError(t, r.Add("a.b", "/does/not/exist/at/all"))

	e, err := r.Find(fqname.MustParse("a.b@1.0::IFoo"))
	require.NoError(t, err)
	require.Equal(t, "/does/not/exist/at/all", e.Path)
}

func TestFindLongestPrefixWins(t *testing.T) {
	t.Parallel()

	r := New()
	p := t.TempDir()
	q := t.TempDir()
	require.NoError(t, r.Add("a", p))
	require.NoError(t, r.Add("a.b", q))

	e, err := r.Find(fqname.MustParse("a.b@1.0::IFoo"))
	require.NoError(t, err)
	require.Equal(t, "a.b", e.Prefix)
	require.Equal(t, q, e.Path)
}

func TestFindNoMatch(t *testing.T) {
	t.Parallel()

	r := New()
	_, err := r.Find(fqname.MustParse("z.y@1.0::IFoo"))
	require.Error(t, err)
}

func TestAddDefaultDoesNotOverride(t *testing.T) {
	t.Parallel()

	r := New()
	p := t.TempDir()
	q := t.TempDir()
	require.NoError(t, r.Add("a", p))
	r.AddDefault("a", q)

	e, err := r.Find(fqname.MustParse("a@1.0::IFoo"))
	require.NoError(t, err)
	require.Equal(t, p, e.Path)
}
