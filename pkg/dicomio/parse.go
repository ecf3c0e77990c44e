package dicomio

import (
	"image"
	"image/color"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/pkg/errors"
	"github.com/suyashkumar/dicom"
	"github.com/suyashkumar/dicom/pkg/tag"

	"dicomvol/internal/models"
	"dicomvol/pkg/transfer"
)

var (
	// errNotDICOM marks a file without the DICOM Part 10 preamble.
	errNotDICOM = errors.New("not a DICOM file")

	// errNotImage marks a DICOM file that carries no image, such as a
	// DICOMDIR or a structured report.
	errNotImage = errors.New("no pixel data")
)

const (
	preambleLen = 128
	magicWord   = "DICM"
)

// hasPreamble reports whether the file at path starts with the 128-byte
// preamble followed by the DICM magic word.
func hasPreamble(path string) (bool, error) {
	f, err := os.Open(path)
	if err != nil {
		return false, err
	}
	defer f.Close()

	var header [preambleLen + len(magicWord)]byte
	if _, err := io.ReadFull(f, header[:]); err != nil {
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			return false, nil
		}
		return false, err
	}
	return string(header[preambleLen:]) == magicWord, nil
}

// readSlice parses one file and decodes its first frame. Files without a
// DICOM preamble yield errNotDICOM and DICOM files without an image yield
// errNotImage; any other error means a DICOM file could not be read.
func readSlice(path string) (*models.Slice, error) {
	ok, err := hasPreamble(path)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, errNotDICOM
	}

	ds, err := dicom.ParseFile(path, nil)
	if err != nil {
		return nil, errors.Wrap(err, "parsing DICOM")
	}
	return sliceFromDataset(path, &ds)
}

// sliceFromDataset extracts the geometry, calibration and pixel values of a
// parsed dataset.
func sliceFromDataset(path string, ds *dicom.Dataset) (*models.Slice, error) {
	pixels, err := ds.FindElementByTag(tag.PixelData)
	if err != nil || pixels.Value.ValueType() != dicom.PixelData {
		// The parser stops quietly at EOF, so a truncated image arrives
		// with its pixel module but no pixel data.
		if _, ok := firstInt(ds, tag.Rows); ok {
			return nil, errors.New("image header without pixel data (truncated file?)")
		}
		return nil, errNotImage
	}

	s := &models.Slice{
		Filename:          path,
		StudyUID:          firstString(ds, tag.StudyInstanceUID),
		SeriesUID:         firstString(ds, tag.SeriesInstanceUID),
		SeriesDescription: firstString(ds, tag.SeriesDescription),
		PixelSpacing:      [2]float64{1, 1},
	}

	cal := ReadCalibration(ds)
	s.RescaleSlope, s.RescaleIntercept = cal.Slope, cal.Intercept

	if n, ok := firstInt(ds, tag.InstanceNumber); ok {
		s.InstanceNumber = n
	}
	if pos := floatValues(ds, tag.ImagePositionPatient); len(pos) >= 3 {
		copy(s.Position[:], pos[:3])
		s.HasPosition = true
	}
	if ori := floatValues(ds, tag.ImageOrientationPatient); len(ori) >= 6 {
		copy(s.Orientation[:], ori[:6])
		s.HasOrientation = true
	}
	// PixelSpacing is stored as row spacing, column spacing.
	if sp := floatValues(ds, tag.PixelSpacing); len(sp) >= 2 && sp[0] > 0 && sp[1] > 0 {
		s.PixelSpacing = [2]float64{sp[1], sp[0]}
	}
	if th := floatValues(ds, tag.SliceThickness); len(th) > 0 {
		s.Thickness = th[0]
	}

	signed := false
	if rep, ok := firstInt(ds, tag.PixelRepresentation); ok {
		signed = rep == 1
	}

	info := dicom.MustGetPixelDataInfo(pixels.Value)
	if len(info.Frames) == 0 {
		return nil, errNotImage
	}
	fr := info.Frames[0]
	img, err := fr.GetImage()
	if err != nil {
		return nil, errors.Wrap(err, "decoding pixel data")
	}

	b := img.Bounds()
	s.Columns, s.Rows = b.Dx(), b.Dy()
	if rows, ok := firstInt(ds, tag.Rows); ok && rows != s.Rows {
		return nil, errors.Errorf("pixel data has %d rows, header says %d", s.Rows, rows)
	}
	s.Data = imageScalars(img, signed)
	return s, nil
}

// ReadCalibration returns the rescale slope (0028,1053) and intercept
// (0028,1052) of ds, defaulting to 1 and 0 when a tag is absent.
func ReadCalibration(ds *dicom.Dataset) transfer.Calibration {
	cal := transfer.Identity
	if v := floatValues(ds, tag.RescaleSlope); len(v) > 0 {
		cal.Slope = v[0]
	}
	if v := floatValues(ds, tag.RescaleIntercept); len(v) > 0 {
		cal.Intercept = v[0]
	}
	return cal
}

// imageScalars converts a decoded frame to stored values. Signed 16-bit data
// arrives as its two's complement bit pattern and is reinterpreted here.
func imageScalars(img image.Image, signed bool) []float64 {
	b := img.Bounds()
	out := make([]float64, 0, b.Dx()*b.Dy())

	switch im := img.(type) {
	case *image.Gray16:
		for y := b.Min.Y; y < b.Max.Y; y++ {
			for x := b.Min.X; x < b.Max.X; x++ {
				v := im.Gray16At(x, y).Y
				if signed {
					out = append(out, float64(int16(v)))
				} else {
					out = append(out, float64(v))
				}
			}
		}
	case *image.Gray:
		for y := b.Min.Y; y < b.Max.Y; y++ {
			for x := b.Min.X; x < b.Max.X; x++ {
				v := im.GrayAt(x, y).Y
				if signed {
					out = append(out, float64(int8(v)))
				} else {
					out = append(out, float64(v))
				}
			}
		}
	default:
		for y := b.Min.Y; y < b.Max.Y; y++ {
			for x := b.Min.X; x < b.Max.X; x++ {
				g := color.Gray16Model.Convert(img.At(x, y)).(color.Gray16)
				out = append(out, float64(g.Y))
			}
		}
	}
	return out
}

// stringValues returns the values of t as strings, or nil if ds lacks it.
func stringValues(ds *dicom.Dataset, t tag.Tag) []string {
	el, err := ds.FindElementByTag(t)
	if err != nil || el.Value == nil {
		return nil
	}
	switch v := el.Value.GetValue().(type) {
	case []string:
		return v
	case []int:
		out := make([]string, len(v))
		for i, n := range v {
			out[i] = strconv.Itoa(n)
		}
		return out
	case []float64:
		out := make([]string, len(v))
		for i, f := range v {
			out[i] = strconv.FormatFloat(f, 'g', -1, 64)
		}
		return out
	}
	return nil
}

func firstString(ds *dicom.Dataset, t tag.Tag) string {
	if v := stringValues(ds, t); len(v) > 0 {
		return strings.TrimSpace(v[0])
	}
	return ""
}

func firstInt(ds *dicom.Dataset, t tag.Tag) (int, bool) {
	s := firstString(ds, t)
	if s == "" {
		return 0, false
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		f, ferr := strconv.ParseFloat(s, 64)
		if ferr != nil {
			return 0, false
		}
		n = int(f)
	}
	return n, true
}

// floatValues parses decimal string values. Multi-valued strings joined by a
// backslash are split.
func floatValues(ds *dicom.Dataset, t tag.Tag) []float64 {
	var out []float64
	for _, raw := range stringValues(ds, t) {
		for _, part := range strings.Split(raw, `\`) {
			part = strings.TrimSpace(part)
			if part == "" {
				continue
			}
			f, err := strconv.ParseFloat(part, 64)
			if err != nil {
				return nil
			}
			out = append(out, f)
		}
	}
	return out
}
