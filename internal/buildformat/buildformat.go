// Package buildformat implements the minimal indenting block writer the
// Build-File Planner uses to emit Android.bp text: an indent/outdent cursor,
// a scoped "name { ... }" block helper, and file lifecycle (create parent
// directories, flush, close) matching the Coordinator's scoped-formatter
// acquisition contract.
package buildformat

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/cockroachdb/errors"
)

const indentUnit = "    "

// Formatter is a scoped, indenting text writer. Its zero value is not
// usable; construct one with Open or New.
type Formatter struct {
	w     *bufio.Writer
	c     io.Closer
	depth int
	valid bool
	err   error
}

// New wraps an already-open writer (used by tests, and by handlers that
// write straight to stdout, e.g. the hash format).
func New(w io.Writer) *Formatter {
	bw, ok := w.(*bufio.Writer)
	if !ok {
		bw = bufio.NewWriter(w)
	}
	return &Formatter{w: bw, valid: true}
}

// Open creates path's parent directories if needed, truncates or creates
// the file, and returns a Formatter over it. IsValid() is false (with Err()
// set) if the file could not be opened; callers check IsValid() rather
// than propagating the error immediately.
func Open(path string) *Formatter {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return &Formatter{err: errors.Wrapf(err, "buildformat: creating parent directory for %q", path)}
	}
	f, err := os.Create(path)
	if err != nil {
		return &Formatter{err: errors.Wrapf(err, "buildformat: creating %q", path)}
	}
	return &Formatter{w: bufio.NewWriter(f), c: f, valid: true}
}

// IsValid reports whether this Formatter opened successfully.
func (f *Formatter) IsValid() bool { return f.valid }

// Err returns the error that made IsValid false, or nil.
func (f *Formatter) Err() error { return f.err }

func (f *Formatter) writeIndent() {
	f.w.WriteString(strings.Repeat(indentUnit, f.depth))
}

// Line writes one fully-formatted, indented line terminated with a newline.
func (f *Formatter) Line(format string, args ...interface{}) {
	f.writeIndent()
	fmt.Fprintf(f.w, format, args...)
	f.w.WriteByte('\n')
}

// Endl writes a bare blank line, ignoring the current indent depth.
func (f *Formatter) Endl() {
	f.w.WriteByte('\n')
}

// Indent increases the indent depth by one level.
func (f *Formatter) Indent() { f.depth++ }

// Unindent decreases the indent depth by one level.
func (f *Formatter) Unindent() {
	if f.depth > 0 {
		f.depth--
	}
}

// Block writes "header {\n", runs body at depth+1, then writes the closing
// "}\n" at the original depth: the scoped brace-block shape every
// Android.bp module definition uses.
func (f *Formatter) Block(header string, body func(*Formatter)) {
	f.Line("%s {", header)
	f.Indent()
	body(f)
	f.Unindent()
	f.Line("}")
}

// StringList writes `key: [ "a", "b" ],` with one entry per line when non-
// empty, or `key: [],` on one line when empty, the recurring Android.bp
// shape for srcs/shared_libs/static_libs/etc.
func (f *Formatter) StringList(key string, values []string) {
	if len(values) == 0 {
		f.Line("%s: [],", key)
		return
	}
	f.Line("%s: [", key)
	f.Indent()
	for _, v := range values {
		f.Line("%q,", v)
	}
	f.Unindent()
	f.Line("],")
}

// Close flushes buffered output and closes the underlying file, if any.
func (f *Formatter) Close() error {
	if f.w != nil {
		if err := f.w.Flush(); err != nil {
			return errors.Wrap(err, "buildformat: flushing output")
		}
	}
	if f.c != nil {
		if err := f.c.Close(); err != nil {
			return errors.Wrap(err, "buildformat: closing output")
		}
	}
	return nil
}
