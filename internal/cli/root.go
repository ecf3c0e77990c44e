package cli

import (
	"context"
	"fmt"
	"io"
	"os"

	charmlog "github.com/charmbracelet/log"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"dicomvol/pkg/config"
	"dicomvol/pkg/dicomio"
	"dicomvol/pkg/transfer"
)

var (
	version = "dev" // semantic version, set by SetVersion
	commit  string  // git commit SHA
)

// SetVersion sets the version information displayed by --version.
func SetVersion(v, c string) {
	version = v
	commit = c
}

// app carries state shared by all commands.
type app struct {
	out        io.Writer
	errOut     io.Writer
	cfg        *config.Config
	configPath string
	verbose    bool
	recursive  bool
	series     string
}

// presetOptions are the flags that select transfer functions.
type presetOptions struct {
	preset   string
	boneOnly bool
	variant  string
	format   string
}

func (o *presetOptions) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&o.preset, "preset", "", "preset: soft, bone, lung, bone-only, cinematic or a configured window")
	cmd.Flags().BoolVar(&o.boneOnly, "bone-only", false, "show bone only, overriding --preset")
	cmd.Flags().StringVar(&o.variant, "bone-only-variant", "", "bone-only landmarks: standard or dense")
	cmd.Flags().StringVar(&o.format, "format", "", "output format: table, json or yaml")
}

// apply copies explicitly set flags over the loaded configuration.
func (o *presetOptions) apply(cmd *cobra.Command, cfg *config.Config) error {
	flags := cmd.Flags()
	if flags.Changed("preset") {
		cfg.Preset.Name = o.preset
	}
	if flags.Changed("bone-only") {
		cfg.Preset.BoneOnly = o.boneOnly
	}
	if flags.Changed("bone-only-variant") {
		cfg.Preset.BoneOnlyVariant = o.variant
	}
	if flags.Changed("format") {
		cfg.Output.Format = o.format
	}
	return cfg.Validate()
}

func (a *app) builder(logger *charmlog.Logger) *transfer.Builder {
	return transfer.NewBuilder(a.cfg.Catalog(), a.cfg.BoneOnlyVariant(), logger)
}

// NewRootCommand builds the command tree writing results to out and logs to
// errOut.
func NewRootCommand(out, errOut io.Writer) *cobra.Command {
	a := &app{out: out, errOut: errOut}
	opts := &presetOptions{}

	root := &cobra.Command{
		Use:   "dicomvol <dicom-dir>",
		Short: "Build CT volume transfer functions from a DICOM series",
		Long: `dicomvol loads a directory of DICOM images, assembles the largest series into a
volume and prints the colour and opacity transfer functions of a CT preset,
mapped into the stored scalar range of the images.`,
		Version:       version,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.DefaultConfig()
			if a.configPath != "" {
				var err error
				if cfg, err = config.LoadConfig(a.configPath); err != nil {
					return err
				}
			}
			a.cfg = cfg

			level := charmlog.InfoLevel
			if a.verbose || cfg.Output.Verbose {
				level = charmlog.DebugLevel
			}
			cmd.SetContext(withLogger(cmd.Context(), newLogger(a.errOut, level)))
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := opts.apply(cmd, a.cfg); err != nil {
				return err
			}
			return a.runView(cmd.Context(), args[0])
		},
	}

	root.SetOut(out)
	root.SetErr(errOut)
	root.SetVersionTemplate(fmt.Sprintf("dicomvol %s\ncommit: %s\n", version, commit))
	root.PersistentFlags().BoolVarP(&a.verbose, "verbose", "v", false, "enable verbose logging")
	root.PersistentFlags().StringVar(&a.configPath, "config", "", "configuration file (YAML or TOML)")
	root.PersistentFlags().BoolVar(&a.recursive, "recursive", false, "scan subdirectories of the DICOM directory")
	root.PersistentFlags().StringVar(&a.series, "series", "", "series instance UID to load (default: largest series)")
	opts.register(root)

	root.AddCommand(a.newTFCmd())
	root.AddCommand(a.newPresetsCmd())
	root.AddCommand(a.newPreviewCmd())
	root.AddCommand(a.newConfigCmd())

	return root
}

// Execute runs the dicomvol CLI.
func Execute(ctx context.Context) error {
	return NewRootCommand(os.Stdout, os.Stderr).ExecuteContext(ctx)
}

// loadVolume reads the DICOM series in dir with the configured loader
// settings.
func (a *app) loadVolume(ctx context.Context, dir string) (*dicomio.Result, error) {
	logger := loggerFromContext(ctx)
	params := &dicomio.Params{
		InputDir:  dir,
		Recursive: a.cfg.Loading.Recursive || a.recursive,
		NumCores:  a.cfg.Loading.NumCores,
		SeriesUID: a.cfg.Loading.SeriesUID,
	}
	if a.series != "" {
		params.SeriesUID = a.series
	}

	loader := dicomio.NewLoader(params, logger)
	loader.SetProgressCallback(percentReporter(logger))

	prog := newProgress(logger)
	res, err := loader.Load(ctx)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to read DICOM series from %s", dir)
	}
	prog.done(fmt.Sprintf("Loaded %d images", res.Volume.Depth))

	vol := res.Volume
	ext := vol.Extent()
	logger.Info("loaded DICOM volume", "dir", dir, "series", res.Series.UID, "skipped", res.Skipped)
	logger.Info("geometry",
		"extent", fmt.Sprintf("[%d, %d] x [%d, %d] x [%d, %d]", ext[0], ext[1], ext[2], ext[3], ext[4], ext[5]),
		"spacing", fmt.Sprintf("(%g, %g, %g)", vol.VoxelSize.X, vol.VoxelSize.Y, vol.VoxelSize.Z),
		"origin", fmt.Sprintf("(%g, %g, %g)", vol.Origin[0], vol.Origin[1], vol.Origin[2]))
	logger.Info("scalars",
		"range", fmt.Sprintf("[%g, %g]", vol.ScalarRange[0], vol.ScalarRange[1]),
		"mean", fmt.Sprintf("%.1f", vol.Mean), "stddev", fmt.Sprintf("%.1f", vol.StdDev))
	logger.Info("rescale", "slope", vol.RescaleSlope, "intercept", vol.RescaleIntercept,
		"mapHUToScalar", a.cfg.Preset.MapHUToScalar)
	return res, nil
}

// calibration returns the calibration presets are mapped through.
func (a *app) calibration(res *dicomio.Result) transfer.Calibration {
	if !a.cfg.Preset.MapHUToScalar {
		return transfer.Identity
	}
	return res.Calibration()
}

// buildPair resolves the configured preset and builds it for cal.
func (a *app) buildPair(ctx context.Context, cal transfer.Calibration) transfer.Pair {
	b := a.builder(loggerFromContext(ctx))
	return b.Build(b.Resolve(a.cfg.Preset.Name, a.cfg.Preset.BoneOnly), cal)
}

func (a *app) runView(ctx context.Context, dir string) error {
	res, err := a.loadVolume(ctx, dir)
	if err != nil {
		return err
	}
	cal := a.calibration(res)
	pair := a.buildPair(ctx, cal)
	return writePair(a.out, pair, cal, a.cfg.Output.Format)
}
