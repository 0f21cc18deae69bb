package cmd

import (
	"fmt"
	"io"
	"sort"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/conneroisu/lazyns/pkg/lazyns"
	"github.com/conneroisu/lazyns/pkg/registry"
	"github.com/conneroisu/lazyns/pkg/specfile"
)

var inspectFormat OutputFormat

var inspectCmd = &cobra.Command{
	Use:   "inspect <file>",
	Short: "Print the namespace tree a spec file builds",
	Long: `Inspect initializes the spec file into a fresh runtime and prints the
resulting namespace tree: every declared name with its kind, the location
it resolves from and whether it is still pending.

Nothing is imported unless the file or the configuration asks for eager
resolution.

Examples:
  lazyns inspect api.yaml
  lazyns inspect api.spec --format yaml`,
	Args: cobra.ExactArgs(1),
	RunE: runInspectCommand,
}

func init() {
	rootCmd.AddCommand(inspectCmd)

	AddOutputFlag(inspectCmd.Flags(), &inspectFormat, "format", "f")
}

// Node is one entry of the printed namespace tree.
type Node struct {
	Name     string  `json:"name" yaml:"name"`
	Kind     string  `json:"kind" yaml:"kind"`
	Location string  `json:"location,omitempty" yaml:"location,omitempty"`
	State    string  `json:"state" yaml:"state"`
	Value    string  `json:"value,omitempty" yaml:"value,omitempty"`
	Children []*Node `json:"children,omitempty" yaml:"children,omitempty"`
}

const (
	statePending  = "pending"
	stateResolved = "resolved"
	stateSet      = "set"
	stateMissing  = "missing"
)

func runInspectCommand(cmd *cobra.Command, args []string) error {
	cfg, logger, err := loadSettings(cmd)
	if err != nil {
		return err
	}

	f, err := specfile.Load(args[0])
	if err != nil {
		return err
	}
	spec, err := f.Spec()
	if err != nil {
		return err
	}

	rt := newRuntime(cfg, logger)
	mod, err := rt.Init(cmd.Context(), f.Package, spec, append(cfg.InitOptions(), f.InitOptions()...)...)
	if err != nil {
		return err
	}

	tree := buildTree(mod, mod.Name(), rt.Registry())
	return writeOutput(cmd.OutOrStdout(), inspectFormat, tree, func(w io.Writer) error {
		tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
		printTree(tw, tree, 0)
		return tw.Flush()
	})
}

// buildTree describes mod without resolving anything.
func buildTree(mod *lazyns.Module, label string, reg *registry.Registry) *Node {
	root := &Node{Name: label, Kind: "namespace", State: stateSet}

	if loc, ok := mod.Hook(); ok {
		root.Children = append(root.Children, &Node{
			Name: lazyns.HookName, Kind: "hook", Location: loc.String(), State: statePending,
		})
	}

	declared := make(map[string]bool)
	for _, name := range mod.Declared() {
		declared[name] = true
		root.Children = append(root.Children, declaredNode(mod, name, reg))
	}

	var extra []string
	for _, name := range mod.Dir() {
		if !declared[name] {
			extra = append(extra, name)
		}
	}
	sort.Strings(extra)
	for _, name := range extra {
		v, _ := mod.Lookup(name)
		root.Children = append(root.Children, valueNode(name, v))
	}
	return root
}

func declaredNode(mod *lazyns.Module, name string, reg *registry.Registry) *Node {
	if loc, ok := mod.Location(name); ok {
		kind := "attr"
		if name == lazyns.DocName {
			kind = "doc"
		}
		return &Node{Name: name, Kind: kind, Location: loc.String(), State: statePending}
	}

	v, ok := mod.Lookup(name)
	if !ok {
		// Dotted alias names live in the registry only.
		v, ok = reg.Lookup(mod.Name() + "." + name)
	}
	if !ok {
		return &Node{Name: name, Kind: "attr", State: stateMissing}
	}

	switch v := v.(type) {
	case *lazyns.Module:
		return buildTree(v, name, reg)
	case *lazyns.Alias:
		state := statePending
		if v.Resolved() {
			state = stateResolved
		}
		return &Node{Name: name, Kind: "alias", Location: v.TargetLocation().String(), State: state}
	default:
		n := valueNode(name, v)
		n.State = stateResolved
		return n
	}
}

func valueNode(name string, v any) *Node {
	n := &Node{Name: name, Kind: "value", State: stateSet}
	if v != nil {
		n.Value = fmt.Sprintf("%v", v)
	}
	return n
}

func printTree(w io.Writer, n *Node, depth int) {
	indent := strings.Repeat("  ", depth)
	fmt.Fprintf(w, "%s%s\t%s\t%s\t%s\n", indent, n.Name, n.Kind, describeNode(n), n.State)
	for _, child := range n.Children {
		printTree(w, child, depth+1)
	}
}

func describeNode(n *Node) string {
	switch {
	case n.Location != "":
		return n.Location
	case n.Value != "":
		return n.Value
	default:
		return "-"
	}
}
