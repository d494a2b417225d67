// Package halfile reads the subset of a .hal file the Coordinator and
// Build-File Planner need: the package/version header, the imported
// packages, the declared interface and its super type, the package-level
// sub-types, and which of those are annotated for export.
//
// It does not attempt to parse method bodies, request/response types, or
// full HIDL expression syntax. Those live entirely inside the per-language
// emitters, which consume the AST handle rather than raw file text.
package halfile

import (
	"bufio"
	"bytes"
	"regexp"
	"strconv"
	"strings"

	"github.com/cockroachdb/errors"
)

// SubType is a package-level named type declared in a .hal file.
type SubType struct {
	Name      string
	Kind      string // "enum", "struct", "union", "typedef"
	IsTypeDef bool
}

// ExportedType is a sub-type annotated with @export for C/Java constant
// emission.
type ExportedType struct {
	Name        string
	ValuePrefix string
}

// File is the parsed representation of one .hal file.
type File struct {
	Package          string
	Major            int
	Minor            int
	IsInterface      bool
	InterfaceName    string
	Extends          string // super-interface reference as written ("IBase", "@1.0::IFoo"), "" if none
	Imports          []string
	SubTypes         []SubType
	Exported         []ExportedType
	JavaIncompatible bool
	Raw              []byte
}

var (
	packageLineRe   = regexp.MustCompile(`^package\s+([\w.]+)@(\d+)\.(\d+)\s*;`)
	importLineRe    = regexp.MustCompile(`^import\s+([\w.@:]+)\s*;`)
	interfaceLineRe = regexp.MustCompile(`^interface\s+(\w+)(?:\s+extends\s+([\w.@:]+))?\s*\{?`)
	typeDeclRe      = regexp.MustCompile(`^(enum|struct|union)\s+(\w+)\b`)
	typedefRe       = regexp.MustCompile(`^typedef\s+.+\s+(\w+)\s*;`)
	exportAnnotRe   = regexp.MustCompile(`^@export(?:\(([^)]*)\))?`)
	exportAttrRe    = regexp.MustCompile(`(\w+)\s*=\s*"([^"]*)"`)
	nojavaAnnotRe   = regexp.MustCompile(`^@nojavacompat\b`)
)

// Parse reads a .hal file's raw bytes and returns its File representation.
func Parse(raw []byte) (*File, error) {
	f := &File{Raw: raw}

	pendingExport := false
	pendingExportPrefix := ""
	pendingExportName := ""

	sc := bufio.NewScanner(bytes.NewReader(raw))
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "//") {
			continue
		}

		if m := packageLineRe.FindStringSubmatch(line); m != nil {
			f.Package = m[1]
			major, err := strconv.Atoi(m[2])
			if err != nil {
				return nil, errors.Wrap(err, "halfile: malformed major version")
			}
			minor, err := strconv.Atoi(m[3])
			if err != nil {
				return nil, errors.Wrap(err, "halfile: malformed minor version")
			}
			f.Major, f.Minor = major, minor
			continue
		}

		if m := importLineRe.FindStringSubmatch(line); m != nil {
			f.Imports = append(f.Imports, m[1])
			continue
		}

		if nojavaAnnotRe.MatchString(line) {
			f.JavaIncompatible = true
			continue
		}

		if m := exportAnnotRe.FindStringSubmatch(line); m != nil {
			pendingExport = true
			pendingExportName = ""
			pendingExportPrefix = ""
			for _, attr := range exportAttrRe.FindAllStringSubmatch(m[1], -1) {
				switch attr[1] {
				case "name":
					pendingExportName = attr[2]
				case "value_prefix":
					pendingExportPrefix = attr[2]
				}
			}
			continue
		}

		if m := interfaceLineRe.FindStringSubmatch(line); m != nil {
			f.IsInterface = true
			f.InterfaceName = m[1]
			f.Extends = m[2]
			continue
		}

		if m := typeDeclRe.FindStringSubmatch(line); m != nil {
			kind, name := m[1], m[2]
			f.SubTypes = append(f.SubTypes, SubType{Name: name, Kind: kind})
			if pendingExport {
				exportName := pendingExportName
				if exportName == "" {
					exportName = name
				}
				f.Exported = append(f.Exported, ExportedType{Name: exportName, ValuePrefix: pendingExportPrefix})
				pendingExport = false
			}
			continue
		}

		if m := typedefRe.FindStringSubmatch(line); m != nil {
			f.SubTypes = append(f.SubTypes, SubType{Name: m[1], Kind: "typedef", IsTypeDef: true})
			continue
		}
	}

	if err := sc.Err(); err != nil {
		return nil, errors.Wrap(err, "halfile: scanning file")
	}

	if f.Package == "" {
		return nil, errors.New("halfile: missing package declaration")
	}

	return f, nil
}
