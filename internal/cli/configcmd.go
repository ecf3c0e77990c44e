package cli

import (
	"os"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"dicomvol/pkg/config"
)

func (a *app) newConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Manage the configuration file",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "init <path>",
		Short: "Write a configuration file with default values (.yaml or .toml)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, err := os.Stat(args[0]); err == nil {
				return errors.Errorf("%s already exists", args[0])
			}
			if err := config.CreateDefaultConfigFile(args[0]); err != nil {
				return err
			}
			loggerFromContext(cmd.Context()).Info("wrote config", "path", args[0])
			return nil
		},
	})
	return cmd
}
