package visualization

import (
	"fmt"
	"image"
	"image/color"
	"image/png"
	"math"
	"os"
	"path/filepath"

	"golang.org/x/image/draw"

	"dicomvol/internal/models"
	"dicomvol/pkg/transfer"
)

// DefaultBackground is the colour fully transparent voxels composite over.
var DefaultBackground = [3]float64{0.1, 0.1, 0.12}

// Viewer renders 2D slices of a volume through a pair of transfer functions.
// Each pixel is the voxel colour composited over the background with the
// voxel opacity; no rays are cast through the volume.
type Viewer struct {
	// volume holds the stored scalars and voxel spacing
	volume *models.Volume

	// eval interpolates the colour and opacity functions
	eval *transfer.Evaluator

	// background is the RGB colour behind transparent voxels
	background [3]float64
}

// NewViewer creates a viewer for volume coloured by pair
func NewViewer(volume *models.Volume, pair transfer.Pair, background [3]float64) (*Viewer, error) {
	eval, err := pair.Evaluator()
	if err != nil {
		return nil, err
	}
	return &Viewer{
		volume:     volume,
		eval:       eval,
		background: background,
	}, nil
}

// shade maps one stored scalar to a display colour
func (v *Viewer) shade(s float64) color.RGBA {
	r, g, b := v.eval.Color(s)
	a := clamp01(v.eval.Opacity(s))
	mix := func(c, bg float64) uint8 {
		return uint8(math.Round(clamp01(a*c+(1-a)*bg) * 255))
	}
	return color.RGBA{
		R: mix(r, v.background[0]),
		G: mix(g, v.background[1]),
		B: mix(b, v.background[2]),
		A: 255,
	}
}

func clamp01(x float64) float64 {
	return math.Max(0, math.Min(1, x))
}

// axisLength returns the number of slices along axis
func (v *Viewer) axisLength(axis string) (int, error) {
	switch axis {
	case "x", "X":
		return v.volume.Width, nil
	case "y", "Y":
		return v.volume.Height, nil
	case "z", "Z":
		return v.volume.Depth, nil
	}
	return 0, fmt.Errorf("invalid axis: %s (must be x, y, or z)", axis)
}

// ExtractSlice renders the slice at position along axis at one pixel per voxel
func (v *Viewer) ExtractSlice(axis string, position int) (*image.RGBA, error) {
	if position < 0 {
		return nil, fmt.Errorf("position must be non-negative")
	}
	n, err := v.axisLength(axis)
	if err != nil {
		return nil, err
	}
	if position >= n {
		return nil, fmt.Errorf("position %d exceeds %s size %d", position, axis, n)
	}

	vol := v.volume
	var img *image.RGBA

	switch axis {
	case "x", "X":
		// YZ plane
		img = image.NewRGBA(image.Rect(0, 0, vol.Depth, vol.Height))
		for y := 0; y < vol.Height; y++ {
			for z := 0; z < vol.Depth; z++ {
				img.SetRGBA(z, y, v.shade(vol.At(position, y, z)))
			}
		}

	case "y", "Y":
		// XZ plane
		img = image.NewRGBA(image.Rect(0, 0, vol.Width, vol.Depth))
		for z := 0; z < vol.Depth; z++ {
			for x := 0; x < vol.Width; x++ {
				img.SetRGBA(x, z, v.shade(vol.At(x, position, z)))
			}
		}

	default:
		// XY plane
		img = image.NewRGBA(image.Rect(0, 0, vol.Width, vol.Height))
		for y := 0; y < vol.Height; y++ {
			for x := 0; x < vol.Width; x++ {
				img.SetRGBA(x, y, v.shade(vol.At(x, y, position)))
			}
		}
	}

	return img, nil
}

// pixelSpacing returns the physical size of one slice pixel along the image
// x and y axes
func (v *Viewer) pixelSpacing(axis string) (sx, sy float64) {
	vs := v.volume.VoxelSize
	switch axis {
	case "x", "X":
		return vs.Z, vs.Y
	case "y", "Y":
		return vs.X, vs.Z
	}
	return vs.X, vs.Y
}

// ScaleToSpacing resamples img so that pixels are square in millimetres. The
// finer of the two spacings keeps one pixel per voxel.
func (v *Viewer) ScaleToSpacing(img *image.RGBA, axis string) image.Image {
	sx, sy := v.pixelSpacing(axis)
	if sx <= 0 || sy <= 0 || sx == sy {
		return img
	}
	unit := math.Min(sx, sy)
	b := img.Bounds()
	w := int(math.Round(float64(b.Dx()) * sx / unit))
	h := int(math.Round(float64(b.Dy()) * sy / unit))
	if w == b.Dx() && h == b.Dy() {
		return img
	}

	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.BiLinear.Scale(dst, dst.Bounds(), img, b, draw.Src, nil)
	return dst
}

// RenderSlice extracts a slice and corrects it to physical aspect ratio
func (v *Viewer) RenderSlice(axis string, position int) (image.Image, error) {
	img, err := v.ExtractSlice(axis, position)
	if err != nil {
		return nil, err
	}
	return v.ScaleToSpacing(img, axis), nil
}

// SaveSlice saves a rendered slice as a PNG image
func (v *Viewer) SaveSlice(img image.Image, filename string) error {
	file, err := os.Create(filename)
	if err != nil {
		return err
	}
	defer file.Close()

	return png.Encode(file, img)
}

// SaveSliceSequence renders and saves every slice along the specified axis
func (v *Viewer) SaveSliceSequence(axis string, outputDir string) error {
	maxPos, err := v.axisLength(axis)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(outputDir, 0755); err != nil {
		return err
	}

	for pos := 0; pos < maxPos; pos++ {
		img, err := v.RenderSlice(axis, pos)
		if err != nil {
			return err
		}

		filename := filepath.Join(outputDir, SliceFilename(axis, pos))
		if err := v.SaveSlice(img, filename); err != nil {
			return err
		}
	}

	return nil
}

// SliceFilename is the file name used for the slice at pos along axis
func SliceFilename(axis string, pos int) string {
	return fmt.Sprintf("slice_%s_%03d.png", axis, pos)
}
