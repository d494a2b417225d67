// Package coordinator implements the Coordinator facade: the single point
// of reference for everything path- or identity-related, composing the
// package root registry, the AST cache, and hash enforcement behind the
// operations the Build-File Planner and output handlers call through.
package coordinator

import (
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/cockroachdb/errors"
	"go.uber.org/zap"

	"github.com/hidl-gen/hidlgen/internal/ast"
	"github.com/hidl-gen/hidlgen/internal/buildformat"
	"github.com/hidl-gen/hidlgen/internal/fqname"
	"github.com/hidl-gen/hidlgen/internal/halfile"
	"github.com/hidl-gen/hidlgen/internal/hashmanifest"
	"github.com/hidl-gen/hidlgen/internal/roots"
)

// Location selects which directory tree getFilepath resolves a file into.
type Location int

const (
	// Direct writes straight into the output base path, no package
	// sub-structure. Used for single-file or flat-directory targets such as
	// export-header, c++-impl, c++-adapter-main and androidbp-impl.
	Direct Location = iota
	// PackageRoot writes into the package's source directory layout,
	// rooted at the Coordinator's configured root path.
	PackageRoot
	// GenOutput writes into the output base path, under a directory tree
	// mirroring the package's path, version-suffixed.
	GenOutput
	// GenSanitized is GenOutput with the Java-style sanitized version
	// component ("V1_0" instead of "1.0").
	GenSanitized
)

// Coordinator is the single owner of the package-root registry and the AST
// cache for one invocation.
type Coordinator struct {
	rootPath  string
	roots     *roots.Registry
	asts      *ast.Cache
	manifests map[string]*hashmanifest.Manifest
	enforced  map[string]bool
	log       *zap.SugaredLogger
	verbose   bool
}

// New returns an empty Coordinator. log may be nil (a no-op logger is used).
func New(log *zap.SugaredLogger) *Coordinator {
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	return &Coordinator{
		roots:     roots.New(),
		asts:      ast.NewCache(),
		manifests: map[string]*hashmanifest.Manifest{},
		enforced:  map[string]bool{},
		log:       log,
	}
}

// SetRootPath sets the base path that relative package-root paths (and
// Location.PackageRoot output) are resolved against.
func (c *Coordinator) SetRootPath(p string) { c.rootPath = p }

// SetVerbose turns on per-file-access tracing.
func (c *Coordinator) SetVerbose(v bool) { c.verbose = v }

// AddPackagePath registers a -r PREFIX:PATH root. Fails on a duplicate
// prefix; the path itself is only checked when a name under it is resolved.
func (c *Coordinator) AddPackagePath(prefix, path string) error {
	return c.roots.Add(prefix, path)
}

// AddDefaultPackagePath registers a fallback root (e.g. ANDROID_BUILD_TOP's
// conventional hardware/interfaces), only if prefix is not already present.
func (c *Coordinator) AddDefaultPackagePath(prefix, path string) {
	c.roots.AddDefault(prefix, path)
}

func (c *Coordinator) onFileAccess(path, mode string) {
	if !c.verbose {
		return
	}
	c.log.Infof("file access %s %s", path, mode)
}

func (c *Coordinator) makeAbsolute(path string) string {
	if strings.HasPrefix(path, "/") || c.rootPath == "" {
		return path
	}
	return filepath.Join(c.rootPath, path) + "/"
}

// getPackagePath returns the package's directory, relative to its
// registered root unless relative is false (in which case the root path is
// prefixed), with a trailing slash. sanitized selects the Java-style
// version component.
func (c *Coordinator) getPackagePath(name fqname.FQName, relative, sanitized bool) (string, error) {
	entry, err := c.roots.Find(name)
	if err != nil {
		return "", err
	}

	suffix := strings.TrimPrefix(name.Package(), entry.Prefix)
	suffix = strings.TrimPrefix(suffix, ".")

	var components []string
	if !relative {
		components = append(components, strings.TrimRight(entry.Path, "/"))
	}
	if suffix != "" {
		components = append(components, strings.Split(suffix, ".")...)
	}
	if sanitized {
		components = append(components, name.SanitizedVersion())
	} else {
		components = append(components, name.Version())
	}

	return strings.Join(components, "/") + "/", nil
}

// GetPackageRoot returns the registered prefix name's package resolves
// under.
func (c *Coordinator) GetPackageRoot(name fqname.FQName) (string, error) {
	entry, err := c.roots.Find(name)
	if err != nil {
		return "", err
	}
	return entry.Prefix, nil
}

// GetPackageRootPath returns the registered filesystem path name's package
// resolves under.
func (c *Coordinator) GetPackageRootPath(name fqname.FQName) (string, error) {
	entry, err := c.roots.Find(name)
	if err != nil {
		return "", err
	}
	return entry.Path, nil
}

// GetPackageRootOption renders "prefix:path", used to reconstruct the -r
// flags a generated build rule needs to re-invoke the tool standalone.
func (c *Coordinator) GetPackageRootOption(name fqname.FQName) (string, error) {
	prefix, err := c.GetPackageRoot(name)
	if err != nil {
		return "", err
	}
	path, err := c.GetPackageRootPath(name)
	if err != nil {
		return "", err
	}
	return prefix + ":" + path, nil
}

func (c *Coordinator) convertPackageRootToPath(name fqname.FQName) (string, error) {
	prefix, err := c.GetPackageRoot(name)
	if err != nil {
		return "", err
	}
	if !strings.HasSuffix(prefix, ".") {
		prefix += "."
	}
	return strings.ReplaceAll(prefix, ".", "/"), nil
}

// GetFilepath builds an absolute-or-output-relative path for filename under
// base, shaped by location.
func (c *Coordinator) GetFilepath(base string, name fqname.FQName, loc Location, filename string) (string, error) {
	var b strings.Builder
	b.WriteString(base)

	switch loc {
	case Direct:
		// nothing
	case PackageRoot:
		p, err := c.getPackagePath(name, false, false)
		if err != nil {
			return "", err
		}
		b.WriteString(p)
	case GenOutput:
		root, err := c.convertPackageRootToPath(name)
		if err != nil {
			return "", err
		}
		b.WriteString(root)
		p, err := c.getPackagePath(name, true, false)
		if err != nil {
			return "", err
		}
		b.WriteString(p)
	case GenSanitized:
		root, err := c.convertPackageRootToPath(name)
		if err != nil {
			return "", err
		}
		b.WriteString(root)
		p, err := c.getPackagePath(name, true, true)
		if err != nil {
			return "", err
		}
		b.WriteString(p)
	default:
		return "", errors.Newf("coordinator: invalid location %d", loc)
	}

	b.WriteString(filename)
	return b.String(), nil
}

// GetFormatter opens (creating parent directories as needed) a scoped
// Formatter for filename under base/name/loc. Callers must check
// f.IsValid() before writing.
func (c *Coordinator) GetFormatter(base string, name fqname.FQName, loc Location, filename string) (*buildformat.Formatter, error) {
	path, err := c.GetFilepath(base, name, loc, filename)
	if err != nil {
		return nil, err
	}
	c.onFileAccess(path, "w")
	return buildformat.Open(path), nil
}

func (c *Coordinator) halFilePath(name fqname.FQName) (string, error) {
	rel, err := c.getPackagePath(name, false, false)
	if err != nil {
		return "", err
	}
	return c.makeAbsolute(rel) + name.Name() + ".hal", nil
}

// manifestFor loads (once) the current.txt manifest at name's registered
// package root, shared by every package version under that root.
func (c *Coordinator) manifestFor(name fqname.FQName) (*hashmanifest.Manifest, string, error) {
	rootPath, err := c.GetPackageRootPath(name)
	if err != nil {
		return nil, "", err
	}
	dir := c.makeAbsolute(strings.TrimRight(rootPath, "/") + "/")
	if m, ok := c.manifests[dir]; ok {
		return m, dir, nil
	}
	c.onFileAccess(hashmanifest.ManifestPath(dir), "r")
	m, err := hashmanifest.Load(hashmanifest.ManifestPath(dir))
	if err != nil {
		return nil, "", err
	}
	c.manifests[dir] = m
	return m, dir, nil
}

// Parse resolves name's .hal file via the root registry, enforces its hash
// against the package's current.txt manifest (unless enforce is NoHash),
// parses it, and caches the AST. parsedSet, if non-nil, receives the
// returned handle keyed by name's string form; nothing else is added to it.
func (c *Coordinator) Parse(name fqname.FQName, parsedSet map[string]*ast.Handle, enforce hashmanifest.Enforcement) (*ast.Handle, error) {
	if !name.IsFullyQualified() {
		return nil, errors.Newf("coordinator: parse requires a fully qualified name, got %q", name.String())
	}

	if h, ok := c.asts.Get(name); ok {
		if parsedSet != nil {
			parsedSet[name.String()] = h
		}
		return h, nil
	}

	path, err := c.halFilePath(name)
	if err != nil {
		return nil, err
	}

	c.onFileAccess(path, "r")
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "coordinator: reading %q", path)
	}

	if enforce != hashmanifest.NoHash {
		manifest, _, err := c.manifestFor(name)
		if err != nil {
			return nil, err
		}
		if err := hashmanifest.CheckHash(manifest, name, raw, enforce); err != nil {
			return nil, err
		}
	}

	h, err := c.asts.GetOrParse(name, c, func(fqname.FQName) (*halfile.File, string, error) {
		f, err := halfile.Parse(raw)
		if err != nil {
			return nil, "", errors.Wrapf(err, "coordinator: parsing %q", path)
		}
		if f.Package != name.Package() || f.Major != name.Major() || f.Minor != name.Minor() {
			return nil, "", errors.Newf("coordinator: file at %q does not match expected package and/or version", path)
		}
		return f, path, nil
	})
	if err != nil {
		return nil, err
	}

	// Every .hal file parsed triggers a whole-package enforcement pass.
	// The AST is already cached above, so the pass's own re-parse of this
	// interface resolves from cache; the sibling interfaces it parses reach
	// enforcePackage again but return early through the enforced memo
	// instead of recursing.
	if err := c.enforcePackage(name.PackageAndVersion(), enforce); err != nil {
		return nil, err
	}

	if parsedSet != nil {
		parsedSet[name.String()] = h
	}
	return h, nil
}

// enforcePackage runs the minor-version-uprev enforcement rule for pkg,
// once per package per Coordinator lifetime. NoHash enforcement (used only
// by the hash subcommand) skips it entirely, matching hash's read-only
// relationship to a package's manifest.
func (c *Coordinator) enforcePackage(pkg fqname.FQName, enforce hashmanifest.Enforcement) error {
	key := pkg.String()
	if c.enforced[key] {
		return nil
	}
	c.enforced[key] = true

	if enforce == hashmanifest.NoHash || pkg.Minor() == 0 {
		return nil
	}

	pathFor := func(p fqname.FQName) (string, bool) {
		rel, err := c.getPackagePath(p, false, false)
		if err != nil {
			return "", false
		}
		dir := c.makeAbsolute(rel)
		info, err := os.Stat(dir)
		return dir, err == nil && info.IsDir()
	}

	lookup := func(p fqname.FQName) (map[string]bool, bool, error) {
		typesOnly, err := c.IsTypesOnlyPackage(p)
		if err != nil {
			return nil, false, err
		}
		if typesOnly {
			return nil, true, nil
		}
		interfaces, err := c.AppendPackageInterfacesToVector(p)
		if err != nil {
			return nil, false, err
		}
		out := map[string]bool{}
		for _, iface := range interfaces {
			if iface.Name() == "types" {
				continue
			}
			out[iface.Name()] = true
		}
		return out, false, nil
	}

	interfaces, err := c.AppendPackageInterfacesToVector(pkg)
	if err != nil {
		return err
	}
	thisInterfaces := map[string]string{}
	for _, iface := range interfaces {
		if iface.Name() == "types" {
			continue
		}
		h, err := c.Parse(iface, nil, enforce)
		if err != nil {
			return err
		}
		thisInterfaces[iface.Name()] = h.SuperTypeName()
	}

	return hashmanifest.CheckMinorVersionUprev(pkg, pathFor, lookup, thisInterfaces, enforce)
}

// PackageExists implements ast.ExistsChecker: a package "exists" if its
// directory can be resolved under a registered root and is present on disk.
func (c *Coordinator) PackageExists(pkg fqname.FQName) bool {
	rel, err := c.getPackagePath(pkg, false, false)
	if err != nil {
		return false
	}
	dir := c.makeAbsolute(rel)
	info, err := os.Stat(dir)
	return err == nil && info.IsDir()
}

func (c *Coordinator) packageInterfaceFileStems(pkg fqname.FQName) ([]string, error) {
	rel, err := c.getPackagePath(pkg, false, false)
	if err != nil {
		return nil, err
	}
	dir := c.makeAbsolute(rel)

	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, errors.Wrapf(err, "coordinator: could not open package path %q for package %s", dir, pkg.Package())
	}

	var stems []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if !strings.HasSuffix(e.Name(), ".hal") {
			continue
		}
		stems = append(stems, strings.TrimSuffix(e.Name(), ".hal"))
	}
	return stems, nil
}

// AppendPackageInterfacesToVector lists the interface files in pkg's
// directory, returning one package-qualified FQName per .hal file, "types"
// first (if present) and the rest sorted ascending by name.
func (c *Coordinator) AppendPackageInterfacesToVector(pkg fqname.FQName) ([]fqname.FQName, error) {
	stems, err := c.packageInterfaceFileStems(pkg)
	if err != nil {
		return nil, err
	}

	var out []fqname.FQName
	hasTypes := false
	for _, stem := range stems {
		if stem == "types" {
			hasTypes = true
			continue
		}
		out = append(out, fqname.New(pkg.Package(), pkg.Major(), pkg.Minor(), stem))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name() < out[j].Name() })

	if hasTypes {
		out = append([]fqname.FQName{fqname.New(pkg.Package(), pkg.Major(), pkg.Minor(), "types")}, out...)
	}
	return out, nil
}

// IsTypesOnlyPackage reports whether pkg's only interface file is types.hal.
func (c *Coordinator) IsTypesOnlyPackage(pkg fqname.FQName) (bool, error) {
	interfaces, err := c.AppendPackageInterfacesToVector(pkg)
	if err != nil {
		return false, err
	}
	return len(interfaces) == 1 && interfaces[0].Name() == "types", nil
}
