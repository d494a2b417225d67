// Package fqname implements the FQName value type: a fully-qualified HIDL
// name of the form "package@major.minor[::name]".
package fqname

import (
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/cockroachdb/errors"
)

// nameGrammar matches "pkg(.pkg)*@MAJOR.MINOR(::name(.name)*)?".
var nameGrammar = regexp.MustCompile(
	`^([a-zA-Z0-9_]+(?:\.[a-zA-Z0-9_]+)*)@(\d+)\.(\d+)(?:::([a-zA-Z0-9_]+(?:\.[a-zA-Z0-9_]+)*))?$`,
)

// FQName is an immutable value: package@version[::name].
//
// It is either package-only (Name == "") or fully qualified (Name != "").
// A valid FQName always carries a version.
type FQName struct {
	pkg     string
	major   int
	minor   int
	name    string
	hasVer  bool
	isValid bool
}

// Parse parses s against the FQName grammar. On failure it returns a
// zero-value, invalid FQName and a non-nil error describing the defect.
func Parse(s string) (FQName, error) {
	m := nameGrammar.FindStringSubmatch(s)
	if m == nil {
		return FQName{}, errors.Newf("fqname: malformed fully-qualified name %q", s)
	}

	major, err := strconv.Atoi(m[2])
	if err != nil {
		return FQName{}, errors.Wrapf(err, "fqname: malformed major version in %q", s)
	}
	minor, err := strconv.Atoi(m[3])
	if err != nil {
		return FQName{}, errors.Wrapf(err, "fqname: malformed minor version in %q", s)
	}

	return FQName{
		pkg:     m[1],
		major:   major,
		minor:   minor,
		name:    m[4],
		hasVer:  true,
		isValid: true,
	}, nil
}

// MustParse is Parse but panics on error; intended for tests and for
// well-known constants baked into the program (e.g. the IBase FQName).
func MustParse(s string) FQName {
	f, err := Parse(s)
	if err != nil {
		panic(err)
	}
	return f
}

// New constructs an FQName directly from its parts, without going through
// string parsing. Used internally when deriving related names.
func New(pkg string, major, minor int, name string) FQName {
	return FQName{pkg: pkg, major: major, minor: minor, name: name, hasVer: true, isValid: pkg != ""}
}

func (f FQName) Package() string { return f.pkg }
func (f FQName) Major() int      { return f.major }
func (f FQName) Minor() int      { return f.minor }
func (f FQName) Name() string    { return f.name }

// Version renders "major.minor", e.g. "1.0".
func (f FQName) Version() string {
	return fmt.Sprintf("%d.%d", f.major, f.minor)
}

// SanitizedVersion renders "Vmajor_minor", e.g. "V1_0", used for
// Location.GEN_SANITIZED (Java-style) paths.
func (f FQName) SanitizedVersion() string {
	return fmt.Sprintf("V%d_%d", f.major, f.minor)
}

// AtVersion renders "@major.minor".
func (f FQName) AtVersion() string {
	return "@" + f.Version()
}

// IsValid reports whether this value was produced by a successful Parse/New.
func (f FQName) IsValid() bool {
	return f.isValid && f.pkg != "" && f.hasVer
}

// IsFullyQualified reports whether Name is non-empty.
func (f FQName) IsFullyQualified() bool {
	return f.IsValid() && f.name != ""
}

// InPackage reports whether f's package is prefix, or a dotted sub-package
// of prefix (e.g. "android.hardware.foo" is in package "android.hardware").
func (f FQName) InPackage(prefix string) bool {
	if f.pkg == prefix {
		return true
	}
	return strings.HasPrefix(f.pkg, prefix+".")
}

// String renders the canonical form: "pkg@major.minor" or
// "pkg@major.minor::name".
func (f FQName) String() string {
	s := f.pkg + f.AtVersion()
	if f.name != "" {
		s += "::" + f.name
	}
	return s
}

// PackageAndVersion returns the package-only FQName (Name cleared).
func (f FQName) PackageAndVersion() FQName {
	return New(f.pkg, f.major, f.minor, "")
}

// TypesForPackage returns the FQName of this package's types.hal.
func (f FQName) TypesForPackage() FQName {
	return New(f.pkg, f.major, f.minor, "types")
}

// DownRev returns the same package one minor version down. Callers must
// check Minor() > 0 first; DownRev does not clamp.
func (f FQName) DownRev() FQName {
	return New(f.pkg, f.major, f.minor-1, f.name)
}

// baseName strips the conventional leading "I" from an interface name,
// e.g. "IFoo" -> "Foo". If the name does not start with "I", it is
// returned unchanged (this should not happen for well-formed interface
// FQNames, but derivation functions must still be total).
func (f FQName) baseName() string {
	if strings.HasPrefix(f.name, "I") && len(f.name) > 1 {
		return f.name[1:]
	}
	return f.name
}

// GetInterfaceBaseName returns "Foo" for "IFoo", used in the C++ source
// filename "FooAll.cpp" and the impl filenames "Foo.h"/"Foo.cpp".
func (f FQName) GetInterfaceBaseName() string {
	return f.baseName()
}

// GetInterfaceHwName returns "IHwFoo" for "IFoo".
func (f FQName) GetInterfaceHwName() string {
	return "IHw" + f.baseName()
}

// GetInterfaceStubName returns "BnHwFoo" for "IFoo".
func (f FQName) GetInterfaceStubName() string {
	return "BnHw" + f.baseName()
}

// GetInterfaceProxyName returns "BpHwFoo" for "IFoo".
func (f FQName) GetInterfaceProxyName() string {
	return "BpHw" + f.baseName()
}

// GetInterfacePassthroughName returns "BsFoo" for "IFoo".
func (f FQName) GetInterfacePassthroughName() string {
	return "Bs" + f.baseName()
}

// GetInterfaceAdapterName returns "IFooAdapter" for "IFoo".
func (f FQName) GetInterfaceAdapterName() string {
	return f.name + "Adapter"
}

// GetInterfaceAdapterFqName returns the fully-qualified name of this
// interface's adapter type, in the same package@version.
func (f FQName) GetInterfaceAdapterFqName() FQName {
	return New(f.pkg, f.major, f.minor, f.GetInterfaceAdapterName())
}

// JavaPackage renders the dotted Java package form, e.g.
// "android.hardware.foo.V1_0".
func (f FQName) JavaPackage() string {
	return f.pkg + "." + f.SanitizedVersion()
}

// TokenName renders an upper-cased, underscore-joined identifier safe for
// use in an include guard, e.g. "ANDROID_HARDWARE_FOO_V1_0".
func (f FQName) TokenName() string {
	pkgToken := strings.ToUpper(strings.ReplaceAll(f.pkg, ".", "_"))
	return pkgToken + "_V" + strconv.Itoa(f.major) + "_" + strconv.Itoa(f.minor)
}

// Less implements the canonical ordering: lexicographic on
// (package, version, name).
func Less(a, b FQName) bool {
	if a.pkg != b.pkg {
		return a.pkg < b.pkg
	}
	if a.major != b.major {
		return a.major < b.major
	}
	if a.minor != b.minor {
		return a.minor < b.minor
	}
	return a.name < b.name
}

// Equal reports structural equality.
func Equal(a, b FQName) bool {
	return a.pkg == b.pkg && a.major == b.major && a.minor == b.minor && a.name == b.name
}

// SortFQNames sorts a slice in canonical order, in place.
func SortFQNames(names []FQName) {
	sort.Slice(names, func(i, j int) bool { return Less(names[i], names[j]) })
}
