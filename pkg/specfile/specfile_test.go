package specfile

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	lnerrors "github.com/conneroisu/lazyns/pkg/errors"
	"github.com/conneroisu/lazyns/pkg/importer"
	"github.com/conneroisu/lazyns/pkg/lazyns"
	"github.com/conneroisu/lazyns/pkg/registry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const yamlSpec = `
package: pkgA
eager: true
attrs:
  __version__: "1.0"
exports:
  __doc__: .sub:doc
  x: .sub:value
  y:
    z: .sub:value
  os: hostos
`

const tomlSpec = `
package = "pkgA"
impl_prefix = "impl"

[attrs]
__version__ = "1.0"

[exports]
__doc__ = ".sub:doc"
x = ".sub:value"
os = "hostos"

[exports.y]
z = ".sub:value"
`

const lineSpec = `
# the public API
__doc__   .sub:doc
x         .sub:value
y.z       .sub:value   # nested
os        hostos
`

func wantExports() lazyns.ExportSpec {
	return lazyns.ExportSpec{
		"__doc__": ".sub:doc",
		"x":       ".sub:value",
		"y":       lazyns.ExportSpec{"z": ".sub:value"},
		"os":      "hostos",
	}
}

func TestDetectFormat(t *testing.T) {
	assert.Equal(t, FormatYAML, DetectFormat("a/api.yaml"))
	assert.Equal(t, FormatYAML, DetectFormat("API.YML"))
	assert.Equal(t, FormatTOML, DetectFormat("api.toml"))
	assert.Equal(t, FormatLines, DetectFormat("api.spec"))
	assert.Equal(t, FormatLines, DetectFormat("API"))
	assert.Equal(t, "yaml", FormatYAML.String())
	assert.Equal(t, "toml", FormatTOML.String())
	assert.Equal(t, "lines", FormatLines.String())
}

func TestParse_AllFormats(t *testing.T) {
	tests := []struct {
		name       string
		file       string
		data       string
		pkg        string
		implPrefix string
		eager      bool
		version    any
	}{
		{name: "yaml", file: "api.yaml", data: yamlSpec, pkg: "pkgA", eager: true, version: "1.0"},
		{name: "toml", file: "api.toml", data: tomlSpec, pkg: "pkgA", implPrefix: "impl", version: "1.0"},
		{name: "lines", file: "dir/pkgA.spec", data: lineSpec, pkg: "pkgA"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f, err := Parse(tt.file, []byte(tt.data))
			require.NoError(t, err)

			assert.Equal(t, tt.pkg, f.Package)
			assert.Equal(t, tt.implPrefix, f.ImplPrefix)
			assert.Equal(t, tt.eager, f.Eager)
			assert.Equal(t, tt.file, f.Name)
			if tt.version != nil {
				assert.Equal(t, tt.version, f.Attrs["__version__"])
			}

			spec, err := f.Spec()
			require.NoError(t, err)
			assert.Equal(t, wantExports(), spec)

			decls, err := f.Compile()
			require.NoError(t, err)
			assert.Len(t, decls, 4)
		})
	}
}

func TestParse_Errors(t *testing.T) {
	tests := []struct {
		name string
		file string
		data string
	}{
		{name: "yaml syntax", file: "a.yaml", data: "exports: [unclosed"},
		{name: "yaml unknown field", file: "a.yaml", data: "exprts:\n  x: a:b\n"},
		{name: "toml syntax", file: "a.toml", data: "exports = ["},
		{name: "toml unknown key", file: "a.toml", data: "pakage = \"x\"\n"},
		{name: "toml unknown table", file: "a.toml", data: "[exprts.y]\nz = \"a:b\"\n"},
		{name: "line with three fields", file: "a.spec", data: "x a:b extra"},
		{name: "line with one field", file: "a.spec", data: "x"},
		{name: "namespace over export", file: "a.spec", data: "x a:b\nx.y c:d"},
		{name: "duplicate", file: "a.spec", data: "x a:b\nx c:d"},
		{name: "empty segment", file: "a.spec", data: "x..y a:b"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse(tt.file, []byte(tt.data))
			require.Error(t, err)
			assert.True(t, lnerrors.IsSpecError(err))
		})
	}
}

func TestFile_SpecRejectsBadValues(t *testing.T) {
	f, err := Parse("a.yaml", []byte("exports:\n  x: 3\n"))
	require.NoError(t, err)

	_, err = f.Spec()
	assert.ErrorIs(t, err, lnerrors.ErrSpec)

	f, err = Parse("a.yaml", []byte("exports:\n  x: a:b:c\n"))
	require.NoError(t, err)
	_, err = f.Compile()
	assert.ErrorIs(t, err, lnerrors.ErrSpec)

	// The namespace "sub" would take the registry slot of unit a.sub.
	f, err = Parse("a.spec", []byte("x .sub:value\nsub.y .impl:y\n"))
	require.NoError(t, err)
	_, err = f.Compile()
	assert.ErrorIs(t, err, lnerrors.ErrSpec)
}

func TestParse_EmptyYAML(t *testing.T) {
	f, err := Parse("empty.yml", nil)
	require.NoError(t, err)
	assert.Equal(t, "empty", f.Package)

	spec, err := f.Spec()
	require.NoError(t, err)
	assert.Empty(t, spec)
}

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "pkgA.yaml")
	require.NoError(t, os.WriteFile(path, []byte(yamlSpec), 0o644))

	f, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, FormatYAML, f.Format)
	assert.Equal(t, path, f.Name)

	_, err = Load(filepath.Join(dir, "missing.yaml"))
	assert.ErrorIs(t, err, lnerrors.ErrSpec)
}

func TestFile_InitOptionsDriveInit(t *testing.T) {
	ctx := context.Background()
	f, err := Parse("api.toml", []byte(tomlSpec))
	require.NoError(t, err)

	im := importer.New(registry.New())
	im.MustRegister("impl.sub", importer.Unit("impl.sub", map[string]any{"doc": "d", "value": 3}))
	rt := lazyns.New(lazyns.WithImporter(im), lazyns.WithVersionLookup(nil))

	spec, err := f.Spec()
	require.NoError(t, err)
	mod, err := rt.Init(ctx, f.Package, spec, f.InitOptions()...)
	require.NoError(t, err)

	v, err := mod.GetAttr(ctx, "x")
	require.NoError(t, err)
	assert.Equal(t, 3, v)
	ver, _ := mod.Lookup("__version__")
	assert.Equal(t, "1.0", ver)
	assert.True(t, rt.Registry().Has("pkgA.os"))
}

func TestParse_TOMLNestedTables(t *testing.T) {
	data := `
[attrs.meta]
owner = "core"

[exports]
x = ".sub:value"

[exports.y]
z = ".sub:value"

[exports.y.w]
v = ".sub:other"
`
	f, err := Parse("deep.toml", []byte(data))
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"owner": "core"}, f.Attrs["meta"])

	spec, err := f.Spec()
	require.NoError(t, err)
	assert.Equal(t, lazyns.ExportSpec{
		"x": ".sub:value",
		"y": lazyns.ExportSpec{
			"z": ".sub:value",
			"w": lazyns.ExportSpec{"v": ".sub:other"},
		},
	}, spec)
}
