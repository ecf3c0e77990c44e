package cli

import (
	"github.com/spf13/cobra"

	"dicomvol/pkg/transfer"
)

// newTFCmd builds transfer functions from a calibration given on the command
// line, without reading any images.
func (a *app) newTFCmd() *cobra.Command {
	opts := &presetOptions{}
	cal := transfer.Identity

	cmd := &cobra.Command{
		Use:   "tf",
		Short: "Print the transfer functions of a preset for a given calibration",
		Long: `Build the colour and opacity transfer functions of a preset for the rescale
slope and intercept given on the command line. No DICOM files are read.`,
		Example: `  dicomvol tf --preset bone --intercept -1024
  dicomvol tf --bone-only --format json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := opts.apply(cmd, a.cfg); err != nil {
				return err
			}
			pair := a.buildPair(cmd.Context(), cal)
			return writePair(a.out, pair, cal, a.cfg.Output.Format)
		},
	}

	opts.register(cmd)
	cmd.Flags().Float64Var(&cal.Slope, "slope", cal.Slope, "rescale slope (0028,1053)")
	cmd.Flags().Float64Var(&cal.Intercept, "intercept", cal.Intercept, "rescale intercept (0028,1052)")
	return cmd
}
