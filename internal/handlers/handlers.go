// Package handlers implements the output-handler table: a static registry
// mapping a -L format key to its (validator, generator, output-path
// requirement) triple.
//
// The language backends that turn an AST into target-language text are
// separate tools with their own contract: produce the conventionally named
// files at the conventionally derived paths. The generators below fulfill
// that contract with minimal, deterministic bodies; the full C++/Java/VTS
// emitters live outside this module.
package handlers

import (
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/cockroachdb/errors"

	"github.com/hidl-gen/hidlgen/internal/ast"
	"github.com/hidl-gen/hidlgen/internal/buildformat"
	"github.com/hidl-gen/hidlgen/internal/coordinator"
	"github.com/hidl-gen/hidlgen/internal/fqname"
	"github.com/hidl-gen/hidlgen/internal/hashmanifest"
	"github.com/hidl-gen/hidlgen/internal/javacompat"
	"github.com/hidl-gen/hidlgen/internal/planner"
)

// PathRequirement controls how the driver normalizes the -o path before
// invoking a handler's generator.
type PathRequirement int

const (
	NotNeeded PathRequirement = iota
	NeedsDir
	NeedsFile
	NeedsSrc
)

// Context is everything a generator needs beyond the target FQName and
// output path: the Coordinator, the tool's own invocation name (baked into
// generated genrule "tools:"/"cmd:" entries), test mode, and the stream
// `hash` writes to.
type Context struct {
	Coordinator *coordinator.Coordinator
	HidlGenTool string
	TestMode    bool
	Stdout      io.Writer
}

// Validator rejects an FQName unsuitable for a given handler (e.g. only
// "java" accepts a dotted "types.X" local name; "androidbp" requires a bare
// package).
type Validator func(name fqname.FQName) error

// Generator performs one handler's work for one FQName.
type Generator func(ctx *Context, name fqname.FQName, outputPath string) error

// Handler is one row of the Output Handlers table.
type Handler struct {
	Key             string
	Description     string
	PathRequirement PathRequirement
	Validate        Validator
	Generate        Generator
}

// Table holds every registered handler, keyed by -L value.
var Table = map[string]*Handler{}

func register(h *Handler) {
	if _, dup := Table[h.Key]; dup {
		panic("handlers: duplicate registration for " + h.Key)
	}
	Table[h.Key] = h
}

// validateSourceFor returns the "source" validator for a given -L language:
// package-only names are accepted (the generator then dispatches over every
// interface in the package), fully qualified names are accepted, and a
// dotted local name ("types.TopLevel") is rejected unless language is
// "java" and the name starts with "types.".
func validateSourceFor(language string) Validator {
	return func(name fqname.FQName) error {
		if name.Package() == "" {
			return errors.New("handlers: expecting package name")
		}
		local := name.Name()
		if local == "" || !strings.Contains(local, ".") {
			return nil
		}
		if language == "java" && strings.HasPrefix(local, "types.") {
			return nil
		}
		return errors.Newf("handlers: %q: dotted sub-type names are only accepted by -Ljava as types.X", name.String())
	}
}

func validateIsSource(name fqname.FQName) error {
	return validateSourceFor("")(name)
}

func validateIsPackage(name fqname.FQName) error {
	if name.Package() == "" {
		return errors.New("handlers: expecting package name")
	}
	if name.IsFullyQualified() {
		return errors.Newf("handlers: %q: expecting only package name and version", name.String())
	}
	return nil
}

// generateFileOrPackage adapts a per-interface generator so that a
// package-only FQName fans out across every interface the package defines.
func generateFileOrPackage(perFile Generator) Generator {
	return func(ctx *Context, name fqname.FQName, outputPath string) error {
		if name.IsFullyQualified() {
			return perFile(ctx, name, outputPath)
		}
		interfaces, err := ctx.Coordinator.AppendPackageInterfacesToVector(name)
		if err != nil {
			return err
		}
		for _, iface := range interfaces {
			if err := perFile(ctx, iface, outputPath); err != nil {
				return err
			}
		}
		return nil
	}
}

func init() {
	register(&Handler{
		Key: "check", Description: "parses the interface and reports errors, producing no output",
		PathRequirement: NotNeeded, Validate: validateSourceFor("check"), Generate: generateFileOrPackage(generateCheck),
	})
	register(&Handler{
		Key: "c++-headers", Description: "generates C++ headers",
		PathRequirement: NeedsDir, Validate: validateSourceFor("c++-headers"), Generate: generateFileOrPackage(generateCppHeaders),
	})
	register(&Handler{
		Key: "c++-sources", Description: "generates C++ sources",
		PathRequirement: NeedsDir, Validate: validateSourceFor("c++-sources"), Generate: generateFileOrPackage(generateCppSources),
	})
	register(&Handler{
		Key: "c++", Description: "generates C++ headers and sources",
		PathRequirement: NeedsDir, Validate: validateSourceFor("c++"), Generate: generateFileOrPackage(generateCppBoth),
	})
	register(&Handler{
		Key: "c++-impl-headers", Description: "generates skeleton C++ implementation headers",
		PathRequirement: NeedsDir, Validate: validateSourceFor("c++-impl-headers"), Generate: generateFileOrPackage(generateCppImplHeaders),
	})
	register(&Handler{
		Key: "c++-impl-sources", Description: "generates skeleton C++ implementation sources",
		PathRequirement: NeedsDir, Validate: validateSourceFor("c++-impl-sources"), Generate: generateFileOrPackage(generateCppImplSources),
	})
	register(&Handler{
		Key: "c++-impl", Description: "generates skeleton C++ implementation headers and sources",
		PathRequirement: NeedsDir, Validate: validateSourceFor("c++-impl"), Generate: generateFileOrPackage(generateCppImplBoth),
	})
	register(&Handler{
		Key: "c++-adapter-headers", Description: "generates C++ adapter headers",
		PathRequirement: NeedsDir, Validate: validateSourceFor("c++-adapter-headers"), Generate: generateFileOrPackage(generateAdapterHeaders),
	})
	register(&Handler{
		Key: "c++-adapter-sources", Description: "generates C++ adapter sources",
		PathRequirement: NeedsDir, Validate: validateSourceFor("c++-adapter-sources"), Generate: generateFileOrPackage(generateAdapterSources),
	})
	register(&Handler{
		Key: "c++-adapter", Description: "generates C++ adapter headers and sources",
		PathRequirement: NeedsDir, Validate: validateSourceFor("c++-adapter"), Generate: generateFileOrPackage(generateAdapterBoth),
	})
	register(&Handler{
		Key: "c++-adapter-main", Description: "generates the adapter main.cpp for a package",
		PathRequirement: NeedsDir, Validate: validateIsPackage, Generate: generateAdapterMain,
	})
	register(&Handler{
		Key: "java", Description: "generates Java code",
		PathRequirement: NeedsDir, Validate: validateSourceFor("java"), Generate: generateFileOrPackage(generateJava),
	})
	register(&Handler{
		Key: "java-constants", Description: "generates a Java class for exported constants",
		PathRequirement: NeedsDir, Validate: validateIsPackage, Generate: generateJavaConstants,
	})
	register(&Handler{
		Key: "export-header", Description: "generates a C header for exported constants",
		PathRequirement: NeedsFile, Validate: validateIsPackage, Generate: generateExportHeader,
	})
	register(&Handler{
		Key: "vts", Description: "generates a VTS proto",
		PathRequirement: NeedsDir, Validate: validateSourceFor("vts"), Generate: generateFileOrPackage(generateVts),
	})
	register(&Handler{
		Key: "androidbp", Description: "generates the Android.bp build file for a package",
		PathRequirement: NeedsSrc, Validate: validateIsPackage, Generate: generateAndroidBp,
	})
	register(&Handler{
		Key: "androidbp-impl", Description: "generates a skeleton Android.bp for the impl library",
		PathRequirement: NeedsDir, Validate: validateIsPackage, Generate: generateAndroidBpImpl,
	})
	register(&Handler{
		Key: "hash", Description: "prints the current.txt line for each interface",
		PathRequirement: NotNeeded, Validate: validateSourceFor("hash"), Generate: generateFileOrPackage(generateHash),
	})
}

func generateCheck(ctx *Context, name fqname.FQName, outputPath string) error {
	_, err := ctx.Coordinator.Parse(name, nil, hashmanifest.Default)
	return err
}

func writeStubFile(ctx *Context, name fqname.FQName, loc coordinator.Location, outputPath, filename, comment string) error {
	f, err := ctx.Coordinator.GetFormatter(outputPath, name, loc, filename)
	if err != nil {
		return err
	}
	if !f.IsValid() {
		return errors.Wrapf(f.Err(), "handlers: opening %s", filename)
	}
	f.Line("// %s", comment)
	f.Line("// package %s", name.Package())
	return f.Close()
}

func generateCppHeaders(ctx *Context, name fqname.FQName, outputPath string) error {
	if _, err := ctx.Coordinator.Parse(name, nil, hashmanifest.Default); err != nil {
		return err
	}
	if name.Name() == "types" {
		if err := writeStubFile(ctx, name, coordinator.GenOutput, outputPath, "types.h", "generated types header"); err != nil {
			return err
		}
		return writeStubFile(ctx, name, coordinator.GenOutput, outputPath, "hwtypes.h", "generated wire-format types header")
	}
	for _, suffix := range []string{name.Name(), name.GetInterfaceHwName(), name.GetInterfaceStubName(), name.GetInterfaceProxyName(), name.GetInterfacePassthroughName()} {
		if err := writeStubFile(ctx, name, coordinator.GenOutput, outputPath, suffix+".h", "generated interface header"); err != nil {
			return err
		}
	}
	return nil
}

func generateCppSources(ctx *Context, name fqname.FQName, outputPath string) error {
	if _, err := ctx.Coordinator.Parse(name, nil, hashmanifest.Default); err != nil {
		return err
	}
	if name.Name() == "types" {
		return writeStubFile(ctx, name, coordinator.GenOutput, outputPath, "types.cpp", "generated types source")
	}
	return writeStubFile(ctx, name, coordinator.GenOutput, outputPath, name.GetInterfaceBaseName()+"All.cpp", "generated interface source")
}

func generateCppBoth(ctx *Context, name fqname.FQName, outputPath string) error {
	if err := generateCppHeaders(ctx, name, outputPath); err != nil {
		return err
	}
	return generateCppSources(ctx, name, outputPath)
}

func generateCppImplHeaders(ctx *Context, name fqname.FQName, outputPath string) error {
	if name.Name() == "types" {
		return nil
	}
	if _, err := ctx.Coordinator.Parse(name, nil, hashmanifest.Default); err != nil {
		return err
	}
	return writeStubFile(ctx, name, coordinator.Direct, outputPath, name.GetInterfaceBaseName()+".h", "skeleton implementation header")
}

func generateCppImplSources(ctx *Context, name fqname.FQName, outputPath string) error {
	if name.Name() == "types" {
		return nil
	}
	if _, err := ctx.Coordinator.Parse(name, nil, hashmanifest.Default); err != nil {
		return err
	}
	return writeStubFile(ctx, name, coordinator.Direct, outputPath, name.GetInterfaceBaseName()+".cpp", "skeleton implementation source")
}

func generateCppImplBoth(ctx *Context, name fqname.FQName, outputPath string) error {
	if err := generateCppImplHeaders(ctx, name, outputPath); err != nil {
		return err
	}
	return generateCppImplSources(ctx, name, outputPath)
}

func generateAdapterHeaders(ctx *Context, name fqname.FQName, outputPath string) error {
	if name.Name() == "types" {
		return nil
	}
	if _, err := ctx.Coordinator.Parse(name, nil, hashmanifest.Default); err != nil {
		return err
	}
	return writeStubFile(ctx, name, coordinator.GenOutput, outputPath, name.GetInterfaceAdapterName()+".h", "generated adapter header")
}

func generateAdapterSources(ctx *Context, name fqname.FQName, outputPath string) error {
	if name.Name() == "types" {
		return nil
	}
	if _, err := ctx.Coordinator.Parse(name, nil, hashmanifest.Default); err != nil {
		return err
	}
	return writeStubFile(ctx, name, coordinator.GenOutput, outputPath, name.GetInterfaceAdapterName()+".cpp", "generated adapter source")
}

func generateAdapterBoth(ctx *Context, name fqname.FQName, outputPath string) error {
	if err := generateAdapterHeaders(ctx, name, outputPath); err != nil {
		return err
	}
	return generateAdapterSources(ctx, name, outputPath)
}

func generateAdapterMain(ctx *Context, name fqname.FQName, outputPath string) error {
	interfaces, err := ctx.Coordinator.AppendPackageInterfacesToVector(name)
	if err != nil {
		return err
	}

	f, err := ctx.Coordinator.GetFormatter(outputPath, name, coordinator.Direct, "main.cpp")
	if err != nil {
		return err
	}
	if !f.IsValid() {
		return errors.Wrapf(f.Err(), "handlers: opening main.cpp for %s", name.String())
	}

	f.Line("#include <hidladapter/HidlBinderAdapter.h>")
	for _, iface := range interfaces {
		if iface.Name() == "types" {
			continue
		}
		f.Line("#include <%s.h>", iface.GetInterfaceAdapterName())
	}
	f.Endl()
	f.Block("int main(int argc, char** argv)", func(f *buildformat.Formatter) {
		f.Line("return ::android::hardware::adapterMain<")
		f.Indent()
		names := make([]string, 0, len(interfaces))
		for _, iface := range interfaces {
			if iface.Name() == "types" {
				continue
			}
			names = append(names, iface.GetInterfaceAdapterFqName().String())
		}
		for i, n := range names {
			sep := ","
			if i == len(names)-1 {
				sep = ""
			}
			f.Line("%s%s", n, sep)
		}
		f.Unindent()
		f.Line(">(%q, argc, argv);", name.String())
	})
	return f.Close()
}

// generateJava handles both a plain interface/types name and the extended
// "types.TopLevelTypeName" syntax, which restricts output to a single
// top-level type declared by that package's types.hal. java is the only
// handler that accepts a dotted local name.
func generateJava(ctx *Context, name fqname.FQName, outputPath string) error {
	local := name.Name()
	baseLocal, only := local, ""
	if idx := strings.Index(local, "."); idx >= 0 {
		baseLocal, only = local[:idx], local[idx+1:]
	}
	parseName := fqname.New(name.Package(), name.Major(), name.Minor(), baseLocal)

	h, err := ctx.Coordinator.Parse(parseName, nil, hashmanifest.Default)
	if err != nil {
		return err
	}
	if baseLocal != "types" {
		return writeStubFile(ctx, parseName, coordinator.GenSanitized, outputPath, baseLocal+".java", "generated Java interface")
	}
	subTypes := h.GetSubTypes()
	sort.Slice(subTypes, func(i, j int) bool { return subTypes[i].Name < subTypes[j].Name })
	for _, st := range subTypes {
		if st.IsTypeDef {
			continue
		}
		if only != "" && st.Name != only {
			continue
		}
		if err := writeStubFile(ctx, parseName, coordinator.GenSanitized, outputPath, st.Name+".java", "generated Java type"); err != nil {
			return err
		}
	}
	return nil
}

func exportedTypesForPackage(ctx *Context, pkg fqname.FQName) ([]ast.ExportedType, error) {
	interfaces, err := ctx.Coordinator.AppendPackageInterfacesToVector(pkg)
	if err != nil {
		return nil, err
	}
	var out []ast.ExportedType
	for _, name := range interfaces {
		h, err := ctx.Coordinator.Parse(name, nil, hashmanifest.Default)
		if err != nil {
			return nil, err
		}
		out = h.AppendToExportedTypesVector(out)
	}
	return out, nil
}

func generateJavaConstants(ctx *Context, name fqname.FQName, outputPath string) error {
	exported, err := exportedTypesForPackage(ctx, name)
	if err != nil {
		return err
	}
	if len(exported) == 0 {
		return nil
	}

	f, err := ctx.Coordinator.GetFormatter(outputPath, name, coordinator.GenSanitized, "Constants.java")
	if err != nil {
		return err
	}
	if !f.IsValid() {
		return errors.Wrapf(f.Err(), "handlers: opening Constants.java for %s", name.String())
	}
	rootOpt, err := ctx.Coordinator.GetPackageRootOption(name)
	if err != nil {
		return err
	}
	f.Line("// This file is autogenerated by hidl-gen. Do not edit manually.")
	f.Line("// Source: %s", name.String())
	f.Line("// Root: %s", rootOpt)
	f.Endl()
	f.Line("package %s;", name.JavaPackage())
	f.Endl()
	f.Block("public final class Constants", func(f *buildformat.Formatter) {
		for _, e := range exported {
			f.Line("// %s (%s)", e.Name, e.ValuePrefix)
		}
	})
	return f.Close()
}

func generateExportHeader(ctx *Context, name fqname.FQName, outputPath string) error {
	exported, err := exportedTypesForPackage(ctx, name)
	if err != nil {
		return err
	}
	if len(exported) == 0 {
		return nil
	}

	f, err := ctx.Coordinator.GetFormatter(outputPath, name, coordinator.Direct, "")
	if err != nil {
		return err
	}
	if !f.IsValid() {
		return errors.Wrapf(f.Err(), "handlers: opening export header for %s", name.String())
	}
	rootOpt, err := ctx.Coordinator.GetPackageRootOption(name)
	if err != nil {
		return err
	}
	f.Line("// This file is autogenerated by hidl-gen. Do not edit manually.")
	f.Line("// Source: %s", name.String())
	f.Line("// Root: %s", rootOpt)
	f.Endl()
	guard := "HIDL_GENERATED_" + name.TokenName() + "_EXPORTED_CONSTANTS_H_"
	f.Line("#ifndef %s", guard)
	f.Line("#define %s", guard)
	f.Endl()
	f.Line("#ifdef __cplusplus")
	f.Line(`extern "C" {`)
	f.Line("#endif")
	f.Endl()
	for _, e := range exported {
		f.Line("// %s%s", e.ValuePrefix, e.Name)
	}
	f.Endl()
	f.Line("#ifdef __cplusplus")
	f.Line("}")
	f.Line("#endif")
	f.Endl()
	f.Line("#endif  // %s", guard)
	return f.Close()
}

func generateVts(ctx *Context, name fqname.FQName, outputPath string) error {
	if _, err := ctx.Coordinator.Parse(name, nil, hashmanifest.Default); err != nil {
		return err
	}
	filename := name.Name() + ".vts"
	if name.Name() == "types" {
		filename = "types.vts"
	}
	return writeStubFile(ctx, name, coordinator.GenOutput, outputPath, filename, "generated VTS spec")
}

func generateAndroidBp(ctx *Context, name fqname.FQName, outputPath string) error {
	javaCompatible := func(pkg fqname.FQName) (bool, error) {
		return javacompat.IsPackageJavaCompatible(ctx.Coordinator, pkg)
	}
	p, err := planner.Precompute(ctx.Coordinator, name, javaCompatible)
	if err != nil {
		return err
	}

	f, err := ctx.Coordinator.GetFormatter(outputPath, name, coordinator.PackageRoot, "Android.bp")
	if err != nil {
		return err
	}
	if !f.IsValid() {
		return errors.Wrapf(f.Err(), "handlers: opening Android.bp for %s", name.String())
	}

	f.Line("// This file is autogenerated by hidl-gen. Do not edit manually.")
	f.Endl()

	if err := planner.Emit(f, ctx.Coordinator, p, planner.PlanOptions{
		HidlGenTool: ctx.HidlGenTool,
		TestMode:    ctx.TestMode,
	}); err != nil {
		return err
	}

	return f.Close()
}

func generateAndroidBpImpl(ctx *Context, name fqname.FQName, outputPath string) error {
	interfaces, err := ctx.Coordinator.AppendPackageInterfacesToVector(name)
	if err != nil {
		return err
	}

	imported := map[string]fqname.FQName{}
	for _, iface := range interfaces {
		h, err := ctx.Coordinator.Parse(iface, nil, hashmanifest.Default)
		if err != nil {
			return err
		}
		for _, pkg := range h.GetImportedPackages() {
			imported[pkg.String()] = pkg
		}
	}
	importedPackages := make([]fqname.FQName, 0, len(imported))
	for _, pkg := range imported {
		importedPackages = append(importedPackages, pkg)
	}
	fqname.SortFQNames(importedPackages)

	f, err := ctx.Coordinator.GetFormatter(outputPath, name, coordinator.Direct, "Android.bp")
	if err != nil {
		return err
	}
	if !f.IsValid() {
		return errors.Wrapf(f.Err(), "handlers: opening impl Android.bp for %s", name.String())
	}

	libraryName := planner.MakeLibraryName(name) + "-impl"
	var srcs []string
	for _, iface := range interfaces {
		if iface.Name() == "types" {
			continue
		}
		srcs = append(srcs, iface.GetInterfaceBaseName()+".cpp")
	}

	f.Block("cc_library_shared", func(f *buildformat.Formatter) {
		f.Line("name: %q,", libraryName)
		f.Line("relative_install_path: %q,", "hw")
		f.Line("proprietary: true,")
		f.StringList("srcs", srcs)
		f.Line("shared_libs: [")
		f.Indent()
		for _, lib := range []string{"libhidlbase", "libhidltransport", "libutils", planner.MakeLibraryName(name)} {
			f.Line("%q,", lib)
		}
		for _, pkg := range importedPackages {
			if planner.IsHidlTransportPackage(pkg) {
				continue
			}
			f.Line("%q,", planner.MakeLibraryName(pkg))
		}
		f.Unindent()
		f.Line("],")
	})

	return f.Close()
}

func generateHash(ctx *Context, name fqname.FQName, outputPath string) error {
	h, err := ctx.Coordinator.Parse(name, nil, hashmanifest.NoHash)
	if err != nil {
		return err
	}
	digest := hashmanifest.HashFile(h.Raw())
	_, err = fmt.Fprintf(ctx.Stdout, "%s %s\n", digest, name.String())
	return err
}
