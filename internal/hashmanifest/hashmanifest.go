// Package hashmanifest implements Hash Enforcement: loading a package's
// current.txt manifest of frozen interface digests, checking a live file's
// SHA-256 against the frozen value, and the supplemented minor-version
// uprev enforcement rule that rides the same opt-out.
package hashmanifest

import (
	"bufio"
	"crypto/sha256"
	"encoding/hex"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/cockroachdb/errors"

	"github.com/hidl-gen/hidlgen/internal/fqname"
)

// Enforcement selects how strictly parse() polices a package's current.txt.
type Enforcement int

const (
	// Default enforces both hash-matching and minor-version uprev rules.
	Default Enforcement = iota
	// NoHash skips both checks; only the hash subcommand uses this, since
	// it is in the business of producing the manifest, not policing it.
	NoHash
)

// Manifest is one current.txt: FQName -> frozen hex digest. The
// Coordinator loads one per registered package root, shared by every
// package and version under that root.
type Manifest struct {
	digests map[string]string
}

// Load reads and parses a current.txt file. A missing file is not an error:
// it simply yields an empty manifest (an unreleased package has none yet).
func Load(path string) (*Manifest, error) {
	m := &Manifest{digests: map[string]string{}}

	f, err := os.Open(path)
	if errors.Is(err, os.ErrNotExist) {
		return m, nil
	}
	if err != nil {
		return nil, errors.Wrapf(err, "hashmanifest: opening %q", path)
	}
	defer f.Close()

	sc := bufio.NewScanner(f)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		fields := strings.Fields(line)
		if len(fields) != 2 {
			return nil, errors.Newf("hashmanifest: %q: malformed line %q", path, line)
		}
		digest, name := fields[0], fields[1]
		if len(digest) != 64 {
			return nil, errors.Newf("hashmanifest: %q: digest %q is not 64 hex characters", path, digest)
		}
		m.digests[name] = strings.ToLower(digest)
	}
	if err := sc.Err(); err != nil {
		return nil, errors.Wrapf(err, "hashmanifest: scanning %q", path)
	}
	return m, nil
}

// Lookup returns the frozen digest for name, if current.txt records one.
func (m *Manifest) Lookup(name fqname.FQName) (string, bool) {
	d, ok := m.digests[name.String()]
	return d, ok
}

// HashFile returns the lowercase hex SHA-256 digest of raw.
func HashFile(raw []byte) string {
	sum := sha256.Sum256(raw)
	return hex.EncodeToString(sum[:])
}

// CheckHash enforces the hash-matching rule for one interface's raw bytes
// against its package manifest. A package with no recorded digest for name
// is unreleased and always passes (nothing to enforce against yet).
func CheckHash(m *Manifest, name fqname.FQName, raw []byte, enforce Enforcement) error {
	if enforce == NoHash {
		return nil
	}
	want, ok := m.Lookup(name)
	if !ok {
		return nil
	}
	got := HashFile(raw)
	if got != want {
		return errors.Newf(
			"hashmanifest: %s: hash mismatch (expected %s, got %s); interface has changed since release",
			name.String(), want, got,
		)
	}
	return nil
}

// PackagePathFunc resolves a package version's directory, reporting whether
// it exists on disk; the uprev walk uses it to find the nearest prior minor.
type PackagePathFunc func(pkg fqname.FQName) (dir string, ok bool)

// PriorInterfacesFunc enumerates a package version's non-types interface
// names, reporting whether the package is types-only.
type PriorInterfacesFunc func(pkg fqname.FQName) (interfaces map[string]bool, typesOnly bool, err error)

// CheckMinorVersionUprev walks down from pkg to the nearest prior minor
// version that exists on disk and applies two rules against it. Every
// interface (other than "types") whose same-named counterpart exists there
// must declare that counterpart as its immediate super type; extending
// anything else, including the implicit IBase, fails immediately. And at
// least one interface must extend such a counterpart; a package of entirely
// new interface names fails too. A types-only prior package is exempt. If
// no prior version exists at all, there is nothing to enforce.
func CheckMinorVersionUprev(pkg fqname.FQName, pathFor PackagePathFunc, lookup PriorInterfacesFunc, thisInterfaces map[string]string, enforce Enforcement) error {
	if enforce == NoHash {
		return nil
	}
	if pkg.Minor() == 0 {
		return nil
	}

	var prior fqname.FQName
	found := false
	for cur := pkg; cur.Minor() > 0; {
		cur = cur.DownRev()
		if _, ok := pathFor(cur); ok {
			prior = cur
			found = true
			break
		}
	}
	if !found {
		return nil
	}

	priorInterfaces, typesOnly, err := lookup(prior)
	if err != nil {
		return errors.Wrapf(err, "hashmanifest: loading prior version %s for uprev check", prior.String())
	}
	if typesOnly {
		return nil
	}

	names := make([]string, 0, len(thisInterfaces))
	for name := range thisInterfaces {
		names = append(names, name)
	}
	sort.Strings(names)

	extended := false
	for _, name := range names {
		if name == "types" || !priorInterfaces[name] {
			continue
		}
		if extendsPriorVersion(thisInterfaces[name], prior, name) {
			extended = true
			continue
		}
		super := thisInterfaces[name]
		if super == "" {
			super = "IBase"
		}
		return errors.Newf(
			"hashmanifest: %s::%s extends %s, which is not allowed; it must extend %s::%s",
			pkg.String(), name, super, prior.String(), name,
		)
	}

	if !extended {
		return errors.Newf(
			"hashmanifest: %s: no interface extends its %s counterpart; minor version uprevs must extend the prior version",
			pkg.String(), prior.String(),
		)
	}
	return nil
}

// extendsPriorVersion reports whether an extends clause names the prior
// version's same-named interface, in either the version-only or the fully
// qualified form.
func extendsPriorVersion(extends string, prior fqname.FQName, name string) bool {
	return extends == "@"+prior.Version()+"::"+name ||
		extends == prior.String()+"::"+name
}

// ManifestPath returns the conventional current.txt path under a package
// root directory.
func ManifestPath(packageRootDir string) string {
	return filepath.Join(packageRootDir, "current.txt")
}
