package lazyns

import (
	"fmt"
	"sort"
	"strings"

	lnerrors "github.com/conneroisu/lazyns/pkg/errors"
)

// Reserved export names.
const (
	// DocName declares the namespace documentation string.
	DocName = "__doc__"
	// HookName declares the on-first-access hook.
	HookName = "__onfirstaccess__"
)

// Structural attributes carried over when a registered package is
// re-initialized in place.
const (
	AttrFile    = "__file__"
	AttrVersion = "__version__"
	AttrLoader  = "__loader__"
	AttrPath    = "__path__"
	AttrPackage = "__package__"
	AttrDoc     = DocName
	AttrSpec    = "__spec__"
)

// PreservedAttrs is the allow-list of structural attributes kept across
// in-place re-initialization.
var PreservedAttrs = []string{
	AttrFile,
	AttrVersion,
	AttrLoader,
	AttrPath,
	AttrPackage,
	AttrDoc,
	AttrSpec,
}

// Location names an importable unit and an optional dotted attribute
// chain inside it.
type Location struct {
	Path      string
	Attribute string
}

// ParseLocation parses "<path>[:<attr.chain>]". An empty chain ("unit:")
// names the whole unit.
func ParseLocation(s string) (Location, error) {
	parts := strings.Split(s, ":")
	if len(parts) > 2 {
		return Location{}, lnerrors.NewSpecError("BAD_LOCATION", s,
			fmt.Sprintf("location %q must contain at most one ':'", s))
	}
	loc := Location{Path: strings.TrimSpace(parts[0])}
	if len(parts) == 2 {
		loc.Attribute = strings.TrimSpace(parts[1])
	}
	if loc.Path == "" || loc.Path == "." {
		return Location{}, lnerrors.NewSpecError("BAD_LOCATION", s,
			fmt.Sprintf("location %q has no unit path", s))
	}
	return loc, nil
}

// IsRelative reports whether the path is relative to the package's
// implementation prefix.
func (l Location) IsRelative() bool {
	return strings.HasPrefix(l.Path, ".")
}

// IsWhole reports whether the location names a whole unit.
func (l Location) IsWhole() bool {
	return l.Attribute == ""
}

// Abs rewrites a relative path against prefix.
func (l Location) Abs(prefix string) Location {
	if !l.IsRelative() || prefix == "" {
		return l
	}
	return Location{Path: prefix + l.Path, Attribute: l.Attribute}
}

// String renders the location in spec syntax.
func (l Location) String() string {
	if l.Attribute == "" {
		return l.Path
	}
	return l.Path + ":" + l.Attribute
}

// Target renders the location as a dotted name.
func (l Location) Target() string {
	if l.Attribute == "" {
		return l.Path
	}
	return l.Path + "." + l.Attribute
}

// Kind tags a Declaration.
type Kind int

const (
	// KindAttr is a lazily resolved attribute.
	KindAttr Kind = iota
	// KindAlias is a whole-unit export, aliased eagerly.
	KindAlias
	// KindNamespace is a nested virtual namespace.
	KindNamespace
	// KindDoc is the namespace documentation string.
	KindDoc
	// KindHook is the on-first-access hook.
	KindHook
)

// String returns the string representation of the kind
func (k Kind) String() string {
	switch k {
	case KindAttr:
		return "attr"
	case KindAlias:
		return "alias"
	case KindNamespace:
		return "namespace"
	case KindDoc:
		return "doc"
	case KindHook:
		return "hook"
	default:
		return "unknown"
	}
}

// Declaration is one compiled entry of an ExportSpec.
type Declaration struct {
	Name     string
	Kind     Kind
	Location Location
	Children []Declaration
}

// ExportSpec maps exported names to location strings or nested specs.
type ExportSpec map[string]any

// Compile validates spec and turns it into declarations sorted by name.
// All construction errors are reported here, before anything is built.
func Compile(spec ExportSpec) ([]Declaration, error) {
	return compile(spec, "")
}

// CheckShadowing rejects declarations whose registry entry would sit at
// the path of a unit the same tree imports. The registry is also the
// import cache, so that unit could never be loaded: the namespace or alias
// would be returned in its place. name is the package the declarations are
// installed under and implPrefix anchors relative paths.
func CheckShadowing(name, implPrefix string, decls []Declaration) error {
	if implPrefix == "" {
		implPrefix = name
	}

	type use struct{ path, export string }
	installed := make(map[string]string)
	var uses []use

	var walk func(scope, export string, decls []Declaration)
	walk = func(scope, export string, decls []Declaration) {
		for _, d := range decls {
			child := scope + "." + d.Name
			qualified := d.Name
			if export != "" {
				qualified = export + "." + d.Name
			}
			switch d.Kind {
			case KindNamespace:
				installed[child] = qualified
				walk(child, qualified, d.Children)
			case KindAlias:
				installed[child] = qualified
				uses = append(uses, use{d.Location.Abs(implPrefix).Path, qualified})
			default:
				uses = append(uses, use{d.Location.Abs(implPrefix).Path, qualified})
			}
		}
	}
	walk(name, "", decls)

	for _, u := range uses {
		if owner, ok := installed[u.path]; ok {
			return lnerrors.NewSpecError("SHADOWED", u.export,
				fmt.Sprintf("export %q imports %q, which export %q replaces in the registry",
					u.export, u.path, owner))
		}
	}
	return nil
}

func compile(spec map[string]any, scope string) ([]Declaration, error) {
	names := make([]string, 0, len(spec))
	for name := range spec {
		names = append(names, name)
	}
	sort.Strings(names)

	decls := make([]Declaration, 0, len(names))
	for _, name := range names {
		qualified := name
		if scope != "" {
			qualified = scope + "." + name
		}
		if name == "" {
			return nil, lnerrors.NewSpecError("BAD_NAME", qualified, "empty export name")
		}

		switch v := spec[name].(type) {
		case ExportSpec:
			d, err := compileNamespace(v, name, qualified)
			if err != nil {
				return nil, err
			}
			decls = append(decls, d)
		case map[string]any:
			d, err := compileNamespace(v, name, qualified)
			if err != nil {
				return nil, err
			}
			decls = append(decls, d)
		case string:
			d, err := compileEntry(name, qualified, v)
			if err != nil {
				return nil, err
			}
			decls = append(decls, d)
		default:
			return nil, lnerrors.NewSpecError("BAD_VALUE", qualified,
				fmt.Sprintf("export %q has unsupported value of type %T", qualified, v))
		}
	}
	return decls, nil
}

func compileNamespace(spec map[string]any, name, qualified string) (Declaration, error) {
	if strings.Contains(name, ".") || name == DocName || name == HookName {
		return Declaration{}, lnerrors.NewSpecError("BAD_NAME", qualified,
			fmt.Sprintf("%q cannot name a namespace", qualified))
	}
	children, err := compile(spec, qualified)
	if err != nil {
		return Declaration{}, err
	}
	return Declaration{Name: name, Kind: KindNamespace, Children: children}, nil
}

func compileEntry(name, qualified, text string) (Declaration, error) {
	loc, err := ParseLocation(text)
	if err != nil {
		if e, ok := err.(*lnerrors.Error); ok {
			e.WithContext("export", qualified)
		}
		return Declaration{}, err
	}

	d := Declaration{Name: name, Location: loc}
	switch {
	case name == DocName:
		d.Kind = KindDoc
	case name == HookName:
		d.Kind = KindHook
	case loc.IsWhole():
		d.Kind = KindAlias
	default:
		d.Kind = KindAttr
	}

	if (d.Kind == KindDoc || d.Kind == KindHook) && loc.IsWhole() {
		return Declaration{}, lnerrors.NewSpecError("BAD_LOCATION", qualified,
			fmt.Sprintf("%s needs an attribute, got %q", name, text))
	}
	if d.Kind != KindAlias && strings.Contains(name, ".") {
		return Declaration{}, lnerrors.NewSpecError("BAD_NAME", qualified,
			fmt.Sprintf("dotted name %q is only allowed for whole-unit aliases", qualified))
	}
	return d, nil
}
