package cmd

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	lnerrors "github.com/conneroisu/lazyns/pkg/errors"
	"github.com/conneroisu/lazyns/pkg/lazyns"
	"github.com/conneroisu/lazyns/pkg/specfile"
)

var validateFormat OutputFormat

// validateCmd represents the validate command.
var validateCmd = &cobra.Command{
	Use:   "validate <file>...",
	Short: "Check spec files for construction errors",
	Long: `Validate parses and compiles spec files without importing anything. It
reports every problem Init would refuse at construction time:

- Malformed locations ("a:b:c", ":x", ".")
- Namespaces or aliases sitting on the path of a unit the file imports
- Non-string entries outside nested namespaces
- Duplicate or conflicting names in the line format
- Unknown keys in YAML and TOML files

Examples:
  lazyns validate api.yaml
  lazyns validate specs/*.toml --format json`,
	Args: cobra.MinimumNArgs(1),
	RunE: runValidateCommand,
}

func init() {
	rootCmd.AddCommand(validateCmd)

	AddOutputFlag(validateCmd.Flags(), &validateFormat, "format", "f")
}

// ValidationResult is the outcome for a single spec file.
type ValidationResult struct {
	File         string `json:"file" yaml:"file"`
	Package      string `json:"package,omitempty" yaml:"package,omitempty"`
	Format       string `json:"format,omitempty" yaml:"format,omitempty"`
	Declarations int    `json:"declarations" yaml:"declarations"`
	Error        string `json:"error,omitempty" yaml:"error,omitempty"`
}

func runValidateCommand(cmd *cobra.Command, args []string) error {
	_, logger, err := loadSettings(cmd)
	if err != nil {
		return err
	}

	results := make([]ValidationResult, 0, len(args))
	failed := lnerrors.NewCollector()
	for _, path := range args {
		res, err := validateFile(path)
		if err != nil {
			res.Error = err.Error()
			failed.Add(res.Package, path, err)
			logger.Debug(cmd.Context(), "Spec file rejected", "file", path, "error", err)
		}
		results = append(results, res)
	}

	if err := writeOutput(cmd.OutOrStdout(), validateFormat, results, func(w io.Writer) error {
		return printValidation(w, results)
	}); err != nil {
		return err
	}

	if failed.HasErrors() {
		return fmt.Errorf("%d of %d spec files are invalid", failed.Len(), len(args))
	}
	return nil
}

func validateFile(path string) (ValidationResult, error) {
	res := ValidationResult{File: path}
	f, err := specfile.Load(path)
	if err != nil {
		return res, err
	}
	res.Package = f.Package
	res.Format = f.Format.String()

	decls, err := f.Compile()
	if err != nil {
		return res, err
	}
	res.Declarations = countDeclarations(decls)
	return res, nil
}

func countDeclarations(decls []lazyns.Declaration) int {
	n := 0
	for _, d := range decls {
		n++
		if d.Kind == lazyns.KindNamespace {
			n += countDeclarations(d.Children)
		}
	}
	return n
}

func printValidation(w io.Writer, results []ValidationResult) error {
	for _, r := range results {
		var err error
		if r.Error != "" {
			_, err = fmt.Fprintf(w, "FAIL %s: %s\n", r.File, r.Error)
		} else {
			_, err = fmt.Fprintf(w, "ok   %s (%s, package %s, %d declarations)\n",
				r.File, r.Format, r.Package, r.Declarations)
		}
		if err != nil {
			return err
		}
	}
	return nil
}
