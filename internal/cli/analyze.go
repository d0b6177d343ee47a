/*
Copyright © 2025 Acronis International GmbH.

Released under MIT license.
*/

package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/windowlimit/go-windowlimit/textstats"
)

const (
	formatJSON = "json"
	formatYAML = "yaml"
)

func newAnalyzeCommand(env Env) *cobra.Command {
	var format string
	cmd := &cobra.Command{
		Use:   "analyze [text|-]",
		Short: "Print word statistics of a text",
		Long: `Prints word count, average word length, longest words and word frequencies of the text.
The text is taken from the arguments, or from the standard input if no arguments are given or the only argument is "-".`,
		RunE: func(cmd *cobra.Command, args []string) error {
			text, err := readText(env.Stdin, args)
			if err != nil {
				return err
			}
			return writeResult(env.Stdout, format, textstats.Analyze(text))
		},
	}
	cmd.Flags().StringVarP(&format, "format", "f", formatJSON, "output format (json, yaml)")
	return cmd
}

func readText(stdin io.Reader, args []string) (string, error) {
	if len(args) != 0 && !(len(args) == 1 && args[0] == "-") {
		return strings.Join(args, " "), nil
	}
	data, err := io.ReadAll(stdin)
	if err != nil {
		return "", fmt.Errorf("read standard input: %w", err)
	}
	return string(data), nil
}

func writeResult(w io.Writer, format string, v interface{}) error {
	switch strings.ToLower(format) {
	case formatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	case formatYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(v); err != nil {
			return err
		}
		return enc.Close()
	default:
		return fmt.Errorf("unsupported output format %q, should be one of [%s %s]", format, formatJSON, formatYAML)
	}
}
