// Package config implements the command that prints the effective settings.
package config

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/lesionscan/lesionscan/internal/conf"
)

// Command creates the config command.
func Command() *cobra.Command {
	return &cobra.Command{
		Use:   "config",
		Short: "Print the effective configuration",
		Long:  "Print the merged configuration from file, environment and flags as YAML. Secrets are masked.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := conf.MarshalYAML(conf.GetSettings())
			if err != nil {
				return err
			}
			_, err = fmt.Fprint(cmd.OutOrStdout(), string(data))
			return err
		},
	}
}
