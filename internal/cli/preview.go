package cli

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"dicomvol/pkg/visualization"
)

func (a *app) newPreviewCmd() *cobra.Command {
	opts := &presetOptions{}
	var (
		axis  string
		index int
		all   bool
		out   string
	)

	cmd := &cobra.Command{
		Use:   "preview <dicom-dir>",
		Short: "Write slices coloured by the transfer functions as PNG",
		Long: `Load a DICOM series and write one slice, or every slice along an axis, with
each voxel coloured by the preset's transfer functions and composited over the
background colour.`,
		Example: `  dicomvol preview ./CT --preset bone --index 40
  dicomvol preview ./CT --bone-only --axis y --all --out previews`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := opts.apply(cmd, a.cfg); err != nil {
				return err
			}
			if cmd.Flags().Changed("axis") {
				a.cfg.Preview.Axis = axis
			}
			if cmd.Flags().Changed("out") {
				a.cfg.Preview.Dir = out
			}
			if err := a.cfg.Validate(); err != nil {
				return err
			}
			return a.runPreview(cmd, args[0], index, all)
		},
	}

	opts.register(cmd)
	cmd.Flags().StringVar(&axis, "axis", "z", "slice axis: x, y or z")
	cmd.Flags().IntVar(&index, "index", -1, "slice index (default: middle slice)")
	cmd.Flags().BoolVar(&all, "all", false, "write every slice along the axis")
	cmd.Flags().StringVar(&out, "out", "previews", "output directory")
	return cmd
}

func (a *app) runPreview(cmd *cobra.Command, dir string, index int, all bool) error {
	ctx := cmd.Context()
	logger := loggerFromContext(ctx)

	res, err := a.loadVolume(ctx, dir)
	if err != nil {
		return err
	}
	pair := a.buildPair(ctx, a.calibration(res))

	viewer, err := visualization.NewViewer(res.Volume, pair, a.cfg.Preview.Background)
	if err != nil {
		return errors.Wrap(err, "building preview")
	}

	axis := strings.ToLower(a.cfg.Preview.Axis)
	if all {
		target := filepath.Join(a.cfg.Preview.Dir, axis)
		prog := newProgress(logger)
		if err := viewer.SaveSliceSequence(axis, target); err != nil {
			return errors.Wrapf(err, "saving %s-axis slices", axis)
		}
		prog.done(fmt.Sprintf("Saved %s-axis slices to %s", axis, target))
		return nil
	}

	if index < 0 {
		index = middleIndex(res.Volume.Width, res.Volume.Height, res.Volume.Depth, axis)
	}
	img, err := viewer.RenderSlice(axis, index)
	if err != nil {
		return err
	}
	if err := ensureDir(a.cfg.Preview.Dir); err != nil {
		return err
	}
	path := filepath.Join(a.cfg.Preview.Dir, visualization.SliceFilename(axis, index))
	if err := viewer.SaveSlice(img, path); err != nil {
		return errors.Wrapf(err, "writing %s", path)
	}
	logger.Info("wrote preview", "preset", pair.Preset, "axis", axis, "index", index, "path", path)
	fmt.Fprintln(a.out, path)
	return nil
}

func ensureDir(dir string) error {
	return errors.Wrap(os.MkdirAll(dir, 0755), "creating output directory")
}

func middleIndex(width, height, depth int, axis string) int {
	switch axis {
	case "x":
		return width / 2
	case "y":
		return height / 2
	}
	return depth / 2
}
