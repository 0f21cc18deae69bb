// Package specfile reads export specs from disk.
//
// Three formats are understood, picked by file extension:
//
//   - YAML (.yaml, .yml) and TOML (.toml) documents with an "exports"
//     table and optional "package", "impl_prefix", "eager" and "attrs"
//     fields;
//   - the line format (anything else): one "<dotted.api.name> <location>"
//     pair per line, "#" starting a comment. Dotted names create nested
//     namespaces.
package specfile

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"

	lnerrors "github.com/conneroisu/lazyns/pkg/errors"
	"github.com/conneroisu/lazyns/pkg/lazyns"
)

// Format identifies a spec file syntax.
type Format int

const (
	FormatLines Format = iota
	FormatYAML
	FormatTOML
)

// String returns the string representation of the format
func (f Format) String() string {
	switch f {
	case FormatYAML:
		return "yaml"
	case FormatTOML:
		return "toml"
	default:
		return "lines"
	}
}

// DetectFormat picks the format for a file name.
func DetectFormat(name string) Format {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".yaml", ".yml":
		return FormatYAML
	case ".toml":
		return FormatTOML
	default:
		return FormatLines
	}
}

// File is a parsed spec file.
type File struct {
	Package    string         `yaml:"package" toml:"package"`
	ImplPrefix string         `yaml:"impl_prefix" toml:"impl_prefix"`
	Eager      bool           `yaml:"eager" toml:"eager"`
	Attrs      map[string]any `yaml:"attrs" toml:"attrs"`
	Exports    map[string]any `yaml:"exports" toml:"exports"`

	// Name is where the file was read from.
	Name   string `yaml:"-" toml:"-"`
	Format Format `yaml:"-" toml:"-"`
}

// Load reads and parses the spec file at path.
func Load(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fileError("READ_FAILED", path, "cannot read spec file", err)
	}
	return Parse(path, data)
}

// Parse parses data in the format implied by name.
func Parse(name string, data []byte) (*File, error) {
	format := DetectFormat(name)

	var (
		f   *File
		err error
	)
	switch format {
	case FormatYAML:
		f, err = parseYAML(name, data)
	case FormatTOML:
		f, err = parseTOML(name, data)
	default:
		var exports map[string]any
		exports, err = ParseLines(data)
		f = &File{Exports: exports}
	}
	if err != nil {
		return nil, err
	}

	f.Name = name
	f.Format = format
	if f.Package == "" {
		f.Package = packageFromName(name)
	}
	return f, nil
}

func parseYAML(name string, data []byte) (*File, error) {
	var f File
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&f); err != nil && !errors.Is(err, io.EOF) {
		return nil, fileError("BAD_YAML", name, "invalid YAML spec", err)
	}
	return &f, nil
}

func parseTOML(name string, data []byte) (*File, error) {
	var f File
	md, err := toml.Decode(string(data), &f)
	if err != nil {
		return nil, fileError("BAD_TOML", name, "invalid TOML spec", err)
	}
	var keys []string
	for _, k := range md.Undecoded() {
		// Tables decoded into maps still report their keys as undecoded.
		if len(k) > 1 && (k[0] == "exports" || k[0] == "attrs") {
			continue
		}
		keys = append(keys, k.String())
	}
	if len(keys) > 0 {
		return nil, fileError("BAD_TOML", name,
			fmt.Sprintf("unknown keys: %s", strings.Join(keys, ", ")), nil)
	}
	return &f, nil
}

// ParseLines parses the line format into a nested export mapping.
func ParseLines(data []byte) (map[string]any, error) {
	ns := make(map[string]any)
	scanner := bufio.NewScanner(bytes.NewReader(data))
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if i := strings.Index(line, "#"); i >= 0 {
			line = strings.TrimSpace(line[:i])
		}
		if line == "" {
			continue
		}

		parts := strings.Fields(line)
		if len(parts) != 2 {
			return nil, lineError(lineNo, fmt.Sprintf("want \"<name> <location>\", got %q", line))
		}
		apiName, location := parts[0], parts[1]

		names := strings.Split(apiName, ".")
		cur := ns
		for _, n := range names[:len(names)-1] {
			if n == "" {
				return nil, lineError(lineNo, fmt.Sprintf("empty segment in %q", apiName))
			}
			next, ok := cur[n]
			if !ok {
				sub := make(map[string]any)
				cur[n] = sub
				cur = sub
				continue
			}
			sub, ok := next.(map[string]any)
			if !ok {
				return nil, lineError(lineNo, fmt.Sprintf("%q is both an export and a namespace", n))
			}
			cur = sub
		}

		leaf := names[len(names)-1]
		if leaf == "" {
			return nil, lineError(lineNo, fmt.Sprintf("empty segment in %q", apiName))
		}
		if _, exists := cur[leaf]; exists {
			return nil, lineError(lineNo, fmt.Sprintf("%q declared twice", apiName))
		}
		cur[leaf] = location
	}
	if err := scanner.Err(); err != nil {
		return nil, fileError("READ_FAILED", "", "cannot scan spec", err)
	}
	return ns, nil
}

// Spec converts the exports into an ExportSpec, checking every value is a
// location string or a nested table.
func (f *File) Spec() (lazyns.ExportSpec, error) {
	return toSpec(f.Exports, "")
}

// Compile converts and compiles the exports, reporting every construction
// error Init would.
func (f *File) Compile() ([]lazyns.Declaration, error) {
	spec, err := f.Spec()
	if err != nil {
		return nil, err
	}
	decls, err := lazyns.Compile(spec)
	if err != nil {
		return nil, err
	}
	if err := lazyns.CheckShadowing(f.Package, f.ImplPrefix, decls); err != nil {
		return nil, err
	}
	return decls, nil
}

// InitOptions returns the Init options the file asks for.
func (f *File) InitOptions() []lazyns.InitOption {
	var opts []lazyns.InitOption
	if len(f.Attrs) > 0 {
		opts = append(opts, lazyns.WithAttrs(f.Attrs))
	}
	if f.ImplPrefix != "" {
		opts = append(opts, lazyns.WithImplPrefix(f.ImplPrefix))
	}
	if f.Eager {
		opts = append(opts, lazyns.WithEager())
	}
	return opts
}

func toSpec(m map[string]any, scope string) (lazyns.ExportSpec, error) {
	spec := make(lazyns.ExportSpec, len(m))
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, k := range keys {
		qualified := k
		if scope != "" {
			qualified = scope + "." + k
		}
		switch v := m[k].(type) {
		case string:
			spec[k] = v
		case map[string]any:
			sub, err := toSpec(v, qualified)
			if err != nil {
				return nil, err
			}
			spec[k] = sub
		default:
			return nil, lnerrors.NewSpecError("BAD_VALUE", qualified,
				fmt.Sprintf("export %q must be a location or a table, got %T", qualified, v))
		}
	}
	return spec, nil
}

func packageFromName(name string) string {
	base := filepath.Base(name)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

func fileError(code, name, msg string, cause error) *lnerrors.Error {
	e := lnerrors.NewSpecError(code, name, msg)
	e.Cause = cause
	if name != "" {
		e.WithContext("file", name)
	}
	return e
}

func lineError(line int, msg string) *lnerrors.Error {
	return lnerrors.NewSpecError("BAD_LINE", fmt.Sprintf("line %d", line), msg).
		WithContext("line", line)
}
