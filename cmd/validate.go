package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/pe-score/internal/ruleset"
)

var validateModel string

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Check a model file and report every problem",
	RunE: func(cmd *cobra.Command, args []string) error {
		data, err := os.ReadFile(validateModel)
		if err != nil {
			return eris.Wrapf(err, "validate: read %s", validateModel)
		}
		compiled, problems := validateModelSource(data)
		if len(problems) > 0 {
			for _, p := range problems {
				_, _ = fmt.Fprintln(os.Stderr, p)
			}
			return eris.Errorf("validate: %s has %d problem(s)", validateModel, len(problems))
		}
		describeModel(os.Stdout, compiled)
		return nil
	},
}

func init() {
	validateCmd.Flags().StringVar(&validateModel, "model", "", "model file (YAML)")
	_ = validateCmd.MarkFlagRequired("model")
	rootCmd.AddCommand(validateCmd)
}

// validateModelSource decodes and compiles a model document. It returns
// the compiled model or one message per problem found.
func validateModelSource(data []byte) (*ruleset.Compiled, []string) {
	m, err := ruleset.Parse(data)
	if err != nil {
		return nil, []string{err.Error()}
	}
	compiled, err := m.Compile()
	if err != nil {
		return nil, errorMessages(err)
	}
	return compiled, nil
}

// errorMessages flattens joined errors into one message each.
func errorMessages(err error) []string {
	var out []string
	var walk func(error)
	walk = func(e error) {
		if j, ok := e.(interface{ Unwrap() []error }); ok {
			for _, inner := range j.Unwrap() {
				walk(inner)
			}
			return
		}
		out = append(out, strings.TrimSpace(e.Error()))
	}
	walk(err)
	return out
}

func describeModel(w io.Writer, c *ruleset.Compiled) {
	_, _ = fmt.Fprintf(w, "model %q is valid\n", c.Name)
	_, _ = fmt.Fprintf(w, "  no-data policy: %s\n", c.NoData.Mode)
	for _, s := range c.Sets {
		_, _ = fmt.Fprintf(w, "  set %s: %d rules, defuzz %s\n", s.Name, len(s.Rules.Rules), s.Defuzz)
	}
	_, _ = fmt.Fprintf(w, "  inputs: %s\n", strings.Join(c.Inputs(), ", "))
	_, _ = fmt.Fprintf(w, "  outputs: %s\n", strings.Join(c.OutputNames(), ", "))
}
