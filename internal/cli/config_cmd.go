/*
Copyright © 2025 Acronis International GmbH.

Released under MIT license.
*/

package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newConfigCommand(env Env, rootFlags *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "config",
		Short: "Print the effective configuration as YAML",
		Long: `Prints the configuration assembled from defaults, the --config file and
` + EnvVarsPrefix + `_* environment variables.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadAppConfig(rootFlags)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			return writeResult(env.Stdout, formatYAML, cfg)
		},
	}
}
