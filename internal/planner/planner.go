// Package planner derives the build plan for a package: one Android.bp
// description covering every generated artifact derivable from it
// (file-group, C++ codegen rules and library, Java library, Java constants
// library, adapter libraries).
package planner

import (
	"sort"
	"strings"

	"github.com/hidl-gen/hidlgen/internal/ast"
	"github.com/hidl-gen/hidlgen/internal/buildformat"
	"github.com/hidl-gen/hidlgen/internal/coordinator"
	"github.com/hidl-gen/hidlgen/internal/fqname"
	"github.com/hidl-gen/hidlgen/internal/hashmanifest"
)

// IBase and IManager are the well-known transport packages exported by
// libhidltransport; a package build plan never redefines their library.
var (
	IBase    = fqname.MustParse("android.hidl.base@1.0")
	IManager = fqname.MustParse("android.hidl.manager@1.0")
)

var systemProcessSupportedPackages = map[string]bool{
	"android.hardware.graphics.allocator@2.0": true,
	"android.hardware.graphics.common@1.0":    true,
	"android.hardware.graphics.mapper@2.0":    true,
	"android.hardware.graphics.mapper@2.1":    true,
	"android.hardware.renderscript@1.0":       true,
	"android.hidl.memory@1.0":                 true,
}

var systemPackagePrefixes = []string{"android.hidl", "android.system", "android.frameworks", "android.hardware"}

// IsHidlTransportPackage reports whether pkg is one of the two packages
// that ship as part of libhidltransport itself and must not be redefined.
func IsHidlTransportPackage(pkg fqname.FQName) bool {
	return pkg.Package() == IBase.Package() || pkg.Package() == IManager.Package()
}

// IsSystemProcessSupportedPackage reports membership in the small,
// fixed allow-list of packages whose VNDK library additionally supports
// being linked into system server processes.
func IsSystemProcessSupportedPackage(pkg fqname.FQName) bool {
	return systemProcessSupportedPackages[pkg.String()]
}

// IsSystemPackage reports whether pkg lives under one of the four
// system-owned prefix namespaces.
func IsSystemPackage(pkg fqname.FQName) bool {
	for _, prefix := range systemPackagePrefixes {
		if pkg.InPackage(prefix) {
			return true
		}
	}
	return false
}

// LibraryLocation selects the vendor-availability / VNDK declaration for a
// cc_library module.
type LibraryLocation int

const (
	Vendor LibraryLocation = iota
	VendorAvailable
	Vndk
)

func MakeLibraryName(pkg fqname.FQName) string { return pkg.String() }

func MakeHalFilegroupName(pkg fqname.FQName) string { return pkg.String() + "_hal" }

// MakeJavaLibraryName renders "<package>-V<version>-java".
func MakeJavaLibraryName(pkg fqname.FQName) string {
	return pkg.Package() + "-V" + pkg.Version() + "-java"
}

// Coordinator is the subset of internal/coordinator.Coordinator the planner
// needs: path derivation, interface enumeration, parsing, and -r option
// reconstruction.
type Coordinator interface {
	GetPackageRootOption(name fqname.FQName) (string, error)
	GetFilepath(base string, name fqname.FQName, loc coordinator.Location, filename string) (string, error)
	AppendPackageInterfacesToVector(pkg fqname.FQName) ([]fqname.FQName, error)
	IsTypesOnlyPackage(pkg fqname.FQName) (bool, error)
	Parse(name fqname.FQName, parsedSet map[string]*ast.Handle, enforce hashmanifest.Enforcement) (*ast.Handle, error)
}

// fqSet is a sorted-by-FQName set; every enumerated set in the emitted
// build file serializes in this stable ordering.
type fqSet struct {
	m map[string]fqname.FQName
}

func newFQSet() *fqSet { return &fqSet{m: map[string]fqname.FQName{}} }

func (s *fqSet) add(f fqname.FQName) { s.m[f.String()] = f }

func (s *fqSet) sorted() []fqname.FQName {
	out := make([]fqname.FQName, 0, len(s.m))
	for _, f := range s.m {
		out = append(out, f)
	}
	fqname.SortFQNames(out)
	return out
}

// Precomputed holds everything Emit needs, gathered up front: the
// package's own interfaces, the union of every interface's imports
// hierarchy, the union of exported types, the types.hal AST (if any),
// whether the package is types-only, and whether it is Java-compatible.
type Precomputed struct {
	Package           fqname.FQName
	Interfaces        []fqname.FQName
	ImportedHierarchy []fqname.FQName
	ExportedTypes     []ast.ExportedType
	TypesAST          *ast.Handle
	TypesOnly         bool
	JavaCompatible    bool
}

// JavaCompatibleFunc abstracts javacompat.IsPackageJavaCompatible so that
// Precompute receives the Java-compatibility check from its caller instead
// of importing javacompat itself.
type JavaCompatibleFunc func(pkg fqname.FQName) (bool, error)

// Precompute parses every interface in pkg and gathers the package-level
// facts the emit pass consumes.
func Precompute(c Coordinator, pkg fqname.FQName, javaCompatible JavaCompatibleFunc) (*Precomputed, error) {
	interfaces, err := c.AppendPackageInterfacesToVector(pkg)
	if err != nil {
		return nil, err
	}

	p := &Precomputed{Package: pkg, Interfaces: interfaces}

	hierarchy := newFQSet()
	var exported []ast.ExportedType

	for _, name := range interfaces {
		h, err := c.Parse(name, nil, hashmanifest.Default)
		if err != nil {
			return nil, err
		}
		if name.Name() == "types" {
			p.TypesAST = h
		}
		for _, imp := range h.GetImportedPackagesHierarchy() {
			hierarchy.add(imp)
		}
		exported = h.AppendToExportedTypesVector(exported)
	}
	p.ImportedHierarchy = hierarchy.sorted()
	p.ExportedTypes = exported

	typesOnly, err := c.IsTypesOnlyPackage(pkg)
	if err != nil {
		return nil, err
	}
	p.TypesOnly = typesOnly

	compatible, err := javaCompatible(pkg)
	if err != nil {
		return nil, err
	}
	p.JavaCompatible = compatible

	return p, nil
}

// PackageNeedsJavaCode implements packageNeedsJavaCode: a package needs a
// Java library if it has any interface beyond a lone types.hal, or if that
// types.hal declares any non-typedef sub-type.
func PackageNeedsJavaCode(p *Precomputed) bool {
	if len(p.Interfaces) == 0 {
		return false
	}
	if len(p.Interfaces) > 1 || p.Interfaces[0].Name() != "types" {
		return true
	}
	if p.TypesAST == nil {
		return false
	}
	for _, st := range p.TypesAST.GetSubTypes() {
		if !st.IsTypeDef {
			return true
		}
	}
	return false
}

func dependencyList(f *buildformat.Formatter, hierarchy []fqname.FQName) {
	for _, pkg := range hierarchy {
		if IsHidlTransportPackage(pkg) {
			continue
		}
		f.Line("%q,", MakeLibraryName(pkg))
	}
}

func cppLibSection(f *buildformat.Formatter, loc LibraryLocation, pkg fqname.FQName, libraryName, genSourceName, genHeaderName string, deps func(*buildformat.Formatter)) {
	f.Block("cc_library", func(f *buildformat.Formatter) {
		f.Line("name: %q,", libraryName)
		f.Line(`defaults: ["hidl-module-defaults"],`)
		f.Line("generated_sources: [%q],", genSourceName)
		f.Line("generated_headers: [%q],", genHeaderName)
		f.Line("export_generated_headers: [%q],", genHeaderName)

		switch loc {
		case Vendor:
			f.Line("vendor: true,")
		case VendorAvailable:
			f.Line("vendor_available: true,")
		case Vndk:
			f.Line("vendor_available: true,")
			f.Block("vndk", func(f *buildformat.Formatter) {
				f.Line("enabled: true,")
				if IsSystemProcessSupportedPackage(pkg) {
					f.Line("support_system_process: true,")
				}
			})
		}

		f.Line("shared_libs: [")
		f.Indent()
		for _, lib := range []string{"libhidlbase", "libhidltransport", "libhwbinder", "liblog", "libutils", "libcutils"} {
			f.Line("%q,", lib)
		}
		deps(f)
		f.Unindent()
		f.Line("],")

		f.Line("export_shared_lib_headers: [")
		f.Indent()
		for _, lib := range []string{"libhidlbase", "libhidltransport", "libhwbinder", "libutils"} {
			f.Line("%q,", lib)
		}
		deps(f)
		f.Unindent()
		f.Line("],")
	})
}

// packagePathsOption reconstructs the sorted -r PREFIX:PATH set for pkg plus
// its imports hierarchy plus the implicit IBase dependency every interface
// carries for its transport binding.
func packagePathsOption(c Coordinator, pkg fqname.FQName, imports []fqname.FQName) (string, error) {
	options := map[string]bool{}
	for _, imp := range imports {
		opt, err := c.GetPackageRootOption(imp)
		if err != nil {
			return "", err
		}
		options[opt] = true
	}
	selfOpt, err := c.GetPackageRootOption(pkg)
	if err != nil {
		return "", err
	}
	options[selfOpt] = true
	baseOpt, err := c.GetPackageRootOption(IBase)
	if err != nil {
		return "", err
	}
	options[baseOpt] = true

	sorted := make([]string, 0, len(options))
	for o := range options {
		sorted = append(sorted, o)
	}
	sort.Strings(sorted)

	var b strings.Builder
	for _, o := range sorted {
		b.WriteString("-r")
		b.WriteString(o)
		b.WriteString(" ")
	}
	return b.String(), nil
}

func genSection(f *buildformat.Formatter, c Coordinator, pkg fqname.FQName, hidlGenTool, halFilegroupName, genName, language string, interfaces []fqname.FQName, imports []fqname.FQName, outFn func(*buildformat.Formatter, fqname.FQName)) error {
	pathsOpt, err := packagePathsOption(c, pkg, imports)
	if err != nil {
		return err
	}

	f.Block("genrule", func(f *buildformat.Formatter) {
		f.Line("name: %q,", genName)
		f.Line("tools: [%q],", hidlGenTool)
		f.Line("cmd: \"$(location %s) -o $(genDir) -L%s %s%s\",", hidlGenTool, language, pathsOpt, pkg.String())
		f.Line("srcs: [")
		f.Indent()
		f.Line("%q,", ":"+halFilegroupName)
		f.Unindent()
		f.Line("],")
		f.Line("out: [")
		f.Indent()
		for _, name := range interfaces {
			outFn(f, name)
		}
		f.Unindent()
		f.Line("],")
	})
	f.Endl()
	return nil
}

// PlanOptions carries the bits the planner cannot derive itself: the tool
// name generated rules invoke, and whether this invocation is in test mode
// (-t), which disables VNDK placement.
type PlanOptions struct {
	HidlGenTool string
	TestMode    bool
}

// Emit writes the complete per-package build file plan to f: file-group,
// C++ codegen + library, Java library, Java constants library, adapter
// libraries, with a comment wherever a section is intentionally skipped.
func Emit(f *buildformat.Formatter, c Coordinator, p *Precomputed, opt PlanOptions) error {
	emitHalFilegroup(f, p)

	if err := emitDefinitionLibs(f, c, p, opt); err != nil {
		return err
	}

	if PackageNeedsJavaCode(p) {
		if p.JavaCompatible {
			if err := emitJavaLibs(f, c, p, opt); err != nil {
				return err
			}
		} else {
			f.Line("// This package is not java compatible. Not creating java target.")
			f.Endl()
		}

		if len(p.ExportedTypes) > 0 {
			if err := emitJavaExports(f, c, p, opt); err != nil {
				return err
			}
		} else {
			f.Line("// This package does not export any types. Not creating java constants export.")
			f.Endl()
		}
	} else {
		f.Line("// This package has nothing to generate Java code.")
		f.Endl()
	}

	if !p.TypesOnly {
		if err := emitAdapterLibs(f, c, p, opt); err != nil {
			return err
		}
	} else {
		f.Line("// This package has no interfaces. Not creating versioning adapter.")
	}

	return nil
}

func emitHalFilegroup(f *buildformat.Formatter, p *Precomputed) {
	f.Block("filegroup", func(f *buildformat.Formatter) {
		f.Line("name: %q,", MakeHalFilegroupName(p.Package))
		srcs := make([]string, len(p.Interfaces))
		for i, iface := range p.Interfaces {
			srcs[i] = iface.Name() + ".hal"
		}
		f.StringList("srcs", srcs)
	})
	f.Endl()
}

func cppHeaderNames(pathPrefix string, name fqname.FQName) []string {
	if name.Name() == "types" {
		return []string{pathPrefix + "types.h", pathPrefix + "hwtypes.h"}
	}
	return []string{
		pathPrefix + name.Name() + ".h",
		pathPrefix + name.GetInterfaceHwName() + ".h",
		pathPrefix + name.GetInterfaceStubName() + ".h",
		pathPrefix + name.GetInterfaceProxyName() + ".h",
		pathPrefix + name.GetInterfacePassthroughName() + ".h",
	}
}

func cppSourceName(pathPrefix string, name fqname.FQName) string {
	if name.Name() == "types" {
		return pathPrefix + "types.cpp"
	}
	return pathPrefix + name.GetInterfaceBaseName() + "All.cpp"
}

func emitDefinitionLibs(f *buildformat.Formatter, c Coordinator, p *Precomputed, opt PlanOptions) error {
	libraryName := MakeLibraryName(p.Package)
	halFilegroupName := MakeHalFilegroupName(p.Package)
	genSourceName := libraryName + "_genc++"
	genHeaderName := libraryName + "_genc++_headers"

	pathPrefix, err := c.GetFilepath("", p.Package, coordinator.GenOutput, "")
	if err != nil {
		return err
	}

	if err := genSection(f, c, p.Package, opt.HidlGenTool, halFilegroupName, genSourceName, "c++-sources", p.Interfaces, p.ImportedHierarchy, func(f *buildformat.Formatter, name fqname.FQName) {
		f.Line("%q,", cppSourceName(pathPrefix, name))
	}); err != nil {
		return err
	}

	if err := genSection(f, c, p.Package, opt.HidlGenTool, halFilegroupName, genHeaderName, "c++-headers", p.Interfaces, p.ImportedHierarchy, func(f *buildformat.Formatter, name fqname.FQName) {
		for _, h := range cppHeaderNames(pathPrefix, name) {
			f.Line("%q,", h)
		}
	}); err != nil {
		return err
	}

	if IsHidlTransportPackage(p.Package) {
		f.Line("// %s is exported from libhidltransport", p.Package.String())
	} else {
		loc := VendorAvailable
		if !opt.TestMode && IsSystemPackage(p.Package) {
			loc = Vndk
		}
		cppLibSection(f, loc, p.Package, libraryName, genSourceName, genHeaderName, func(f *buildformat.Formatter) {
			dependencyList(f, p.ImportedHierarchy)
		})
	}
	f.Endl()
	return nil
}

func emitJavaLibs(f *buildformat.Formatter, c Coordinator, p *Precomputed, opt PlanOptions) error {
	libraryName := MakeJavaLibraryName(p.Package)
	halFilegroupName := MakeHalFilegroupName(p.Package)
	genJavaName := libraryName + "_gen_java"

	pathPrefix, err := c.GetFilepath("", p.Package, coordinator.GenSanitized, "")
	if err != nil {
		return err
	}

	if err := genSection(f, c, p.Package, opt.HidlGenTool, halFilegroupName, genJavaName, "java", p.Interfaces, p.ImportedHierarchy, func(f *buildformat.Formatter, name fqname.FQName) {
		if name.Name() != "types" {
			f.Line("%q,", pathPrefix+name.Name()+".java")
			return
		}
		subTypes := p.TypesAST.GetSubTypes()
		sort.Slice(subTypes, func(i, j int) bool { return subTypes[i].Name < subTypes[j].Name })
		for _, st := range subTypes {
			if st.IsTypeDef {
				continue
			}
			f.Line("%q,", pathPrefix+st.Name+".java")
		}
	}); err != nil {
		return err
	}

	f.Block("java_library", func(f *buildformat.Formatter) {
		f.Line("name: %q,", libraryName)
		f.Line("no_framework_libs: true,")
		f.Line(`defaults: ["hidl-java-module-defaults"],`)
		f.Line("srcs: [%q],", ":"+genJavaName)
		f.Line("libs: [")
		f.Indent()
		f.Line(`"hwbinder",`)
		for _, imp := range p.ImportedHierarchy {
			f.Line("%q,", MakeJavaLibraryName(imp))
		}
		f.Unindent()
		f.Line("],")
	})
	f.Endl()
	return nil
}

func emitJavaExports(f *buildformat.Formatter, c Coordinator, p *Precomputed, opt PlanOptions) error {
	libraryName := MakeJavaLibraryName(p.Package)
	halFilegroupName := MakeHalFilegroupName(p.Package)

	pathPrefix, err := c.GetFilepath("", p.Package, coordinator.GenSanitized, "")
	if err != nil {
		return err
	}

	constantsLibraryName := libraryName + "-constants"
	genConstantsName := constantsLibraryName + "_gen_java"

	wrote := false
	if err := genSection(f, c, p.Package, opt.HidlGenTool, halFilegroupName, genConstantsName, "java-constants", p.Interfaces, p.ImportedHierarchy, func(f *buildformat.Formatter, name fqname.FQName) {
		if wrote {
			return
		}
		f.Line("%q,", pathPrefix+"Constants.java")
		wrote = true
	}); err != nil {
		return err
	}

	f.Block("java_library", func(f *buildformat.Formatter) {
		f.Line("name: %q,", constantsLibraryName)
		f.Line("no_framework_libs: true,")
		f.Line(`defaults: ["hidl-java-module-defaults"],`)
		f.Line("srcs: [%q],", ":"+genConstantsName)
	})
	return nil
}

func emitAdapterLibs(f *buildformat.Formatter, c Coordinator, p *Precomputed, opt PlanOptions) error {
	adapterName := MakeLibraryName(p.Package) + "-adapter"
	halFilegroupName := MakeHalFilegroupName(p.Package)
	genAdapterName := adapterName + "_genc++"
	adapterHelperName := adapterName + "-helper"
	genAdapterSourcesName := adapterHelperName + "_genc++"
	genAdapterHeadersName := adapterHelperName + "_genc++_headers"

	pathPrefix, err := c.GetFilepath("", p.Package, coordinator.GenOutput, "")
	if err != nil {
		return err
	}

	adapterPackages := newFQSet()
	for _, imp := range p.ImportedHierarchy {
		adapterPackages.add(imp)
	}
	adapterPackages.add(p.Package)
	sortedAdapterPackages := adapterPackages.sorted()

	f.Endl()
	if err := genSection(f, c, p.Package, opt.HidlGenTool, halFilegroupName, genAdapterSourcesName, "c++-adapter-sources", p.Interfaces, sortedAdapterPackages, func(f *buildformat.Formatter, name fqname.FQName) {
		if name.Name() != "types" {
			f.Line("%q,", pathPrefix+name.GetInterfaceAdapterName()+".cpp")
		}
	}); err != nil {
		return err
	}
	if err := genSection(f, c, p.Package, opt.HidlGenTool, halFilegroupName, genAdapterHeadersName, "c++-adapter-headers", p.Interfaces, sortedAdapterPackages, func(f *buildformat.Formatter, name fqname.FQName) {
		if name.Name() != "types" {
			f.Line("%q,", pathPrefix+name.GetInterfaceAdapterName()+".h")
		}
	}); err != nil {
		return err
	}

	var helperErr error
	cppLibSection(f, VendorAvailable, p.Package, adapterHelperName, genAdapterSourcesName, genAdapterHeadersName, func(f *buildformat.Formatter) {
		f.Line(`"libhidladapter",`)
		dependencyList(f, sortedAdapterPackages)
		for _, imp := range p.ImportedHierarchy {
			if fqname.Equal(imp, p.Package) {
				continue
			}
			typesOnly, err := c.IsTypesOnlyPackage(imp)
			if err != nil {
				helperErr = err
				return
			}
			if typesOnly {
				continue
			}
			f.Line("%q,", MakeLibraryName(imp)+"-adapter-helper")
		}
	})
	if helperErr != nil {
		return helperErr
	}

	f.Endl()
	pathsOpt, err := packagePathsOption(c, p.Package, sortedAdapterPackages)
	if err != nil {
		return err
	}
	f.Block("genrule", func(f *buildformat.Formatter) {
		f.Line("name: %q,", genAdapterName)
		f.Line("tools: [%q],", opt.HidlGenTool)
		f.Line("cmd: \"$(location %s) -o $(genDir) -Lc++-adapter-main %s%s\",", opt.HidlGenTool, pathsOpt, p.Package.String())
		f.Line(`out: ["main.cpp"],`)
	})
	f.Endl()

	f.Block("cc_test", func(f *buildformat.Formatter) {
		f.Line("name: %q,", adapterName)
		f.Line(`defaults: ["hidl-module-defaults"],`)
		f.Line("shared_libs: [")
		f.Indent()
		for _, lib := range []string{"libhidladapter", "libhidlbase", "libhidltransport", "libutils"} {
			f.Line("%q,", lib)
		}
		dependencyList(f, sortedAdapterPackages)
		f.Line("%q,", adapterHelperName)
		f.Unindent()
		f.Line("],")
		f.Line("generated_sources: [%q],", genAdapterName)
	})
	return nil
}
