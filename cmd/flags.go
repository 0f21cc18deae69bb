package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/pflag"
	"gopkg.in/yaml.v3"
)

// OutputFormat selects how a command renders its result. It implements
// pflag.Value so that bad values fail at flag parsing.
type OutputFormat string

const (
	OutputText OutputFormat = "text"
	OutputJSON OutputFormat = "json"
	OutputYAML OutputFormat = "yaml"
)

var outputFormats = []OutputFormat{OutputText, OutputJSON, OutputYAML}

var _ pflag.Value = (*OutputFormat)(nil)

func (f *OutputFormat) String() string {
	if *f == "" {
		return string(OutputText)
	}
	return string(*f)
}

func (f *OutputFormat) Set(s string) error {
	for _, known := range outputFormats {
		if strings.EqualFold(s, string(known)) {
			*f = known
			return nil
		}
	}
	names := make([]string, len(outputFormats))
	for i, known := range outputFormats {
		names[i] = string(known)
	}
	return fmt.Errorf("invalid output format %q, must be one of: %s", s, strings.Join(names, ", "))
}

func (f *OutputFormat) Type() string {
	return "format"
}

// AddOutputFlag registers --name/-short on fs, defaulting to text.
func AddOutputFlag(fs *pflag.FlagSet, p *OutputFormat, name, short string) {
	*p = OutputText
	fs.VarP(p, name, short, "output format (text, json, yaml)")
}

// writeOutput renders v as JSON or YAML, or calls text for the text format.
func writeOutput(w io.Writer, format OutputFormat, v any, text func(io.Writer) error) error {
	switch format {
	case OutputJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	case OutputYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(v); err != nil {
			return err
		}
		return enc.Close()
	default:
		return text(w)
	}
}
