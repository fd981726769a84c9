package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"smartnotes/internal/config"
)

func newConfigCommand(wiring commandWiring) *cobra.Command {
	var defaults bool
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Print the effective configuration as TOML",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.Default()
			if !defaults {
				loaded, err := wiring.loadConfig()
				if err != nil {
					return err
				}
				cfg = loaded
			}
			data, err := cfg.Encode()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if path, err := config.ConfigPath(); err == nil {
				fmt.Fprintf(out, "# %s\n", path)
			}
			_, err = out.Write(data)
			return err
		},
	}
	cmd.Flags().BoolVar(&defaults, "defaults", false, "print built-in defaults instead of the effective configuration")
	return cmd
}
