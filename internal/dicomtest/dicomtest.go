// Package dicomtest writes small synthetic CT images for tests.
package dicomtest

import (
	"os"
	"path/filepath"
	"strconv"

	"github.com/pkg/errors"
	"github.com/suyashkumar/dicom"
	"github.com/suyashkumar/dicom/pkg/frame"
	"github.com/suyashkumar/dicom/pkg/tag"
	"github.com/suyashkumar/dicom/pkg/uid"
)

// ctImageStorage is the CT Image Storage SOP class.
const ctImageStorage = "1.2.840.10008.5.1.4.1.1.2"

// Image describes one single-frame 16-bit CT slice.
type Image struct {
	Name      string
	StudyUID  string
	SeriesUID string
	Instance  int

	// Z is the slice position along the patient z axis in mm
	Z float64

	Rows, Cols int

	// Signed stores Pixels as two's complement with PixelRepresentation 1
	Signed bool
	Pixels []int

	Slope, Intercept float64
}

func ds(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// Dataset builds the DICOM dataset of img.
func (img Image) Dataset() (dicom.Dataset, error) {
	if len(img.Pixels) != img.Rows*img.Cols {
		return dicom.Dataset{}, errors.Errorf("%s: %d pixels for %dx%d image",
			img.Name, len(img.Pixels), img.Cols, img.Rows)
	}

	nf := frame.NewNativeFrame[uint16](16, img.Rows, img.Cols, img.Rows*img.Cols, 1)
	for i, v := range img.Pixels {
		if img.Signed {
			nf.RawData[i] = uint16(int16(v))
		} else {
			nf.RawData[i] = uint16(v)
		}
	}
	rep := 0
	if img.Signed {
		rep = 1
	}
	instanceUID := img.SeriesUID + "." + strconv.Itoa(img.Instance)

	values := []struct {
		t    tag.Tag
		data any
	}{
		{tag.MediaStorageSOPClassUID, []string{ctImageStorage}},
		{tag.MediaStorageSOPInstanceUID, []string{instanceUID}},
		{tag.TransferSyntaxUID, []string{uid.ExplicitVRLittleEndian}},
		{tag.SOPClassUID, []string{ctImageStorage}},
		{tag.SOPInstanceUID, []string{instanceUID}},
		{tag.Modality, []string{"CT"}},
		{tag.SliceThickness, []string{"1"}},
		{tag.StudyInstanceUID, []string{img.StudyUID}},
		{tag.SeriesInstanceUID, []string{img.SeriesUID}},
		{tag.InstanceNumber, []string{strconv.Itoa(img.Instance)}},
		{tag.ImagePositionPatient, []string{"0", "0", ds(img.Z)}},
		{tag.ImageOrientationPatient, []string{"1", "0", "0", "0", "1", "0"}},
		{tag.SamplesPerPixel, []int{1}},
		{tag.PhotometricInterpretation, []string{"MONOCHROME2"}},
		{tag.Rows, []int{img.Rows}},
		{tag.Columns, []int{img.Cols}},
		{tag.PixelSpacing, []string{"0.5", "0.5"}},
		{tag.BitsAllocated, []int{16}},
		{tag.BitsStored, []int{16}},
		{tag.HighBit, []int{15}},
		{tag.PixelRepresentation, []int{rep}},
		{tag.RescaleIntercept, []string{ds(img.Intercept)}},
		{tag.RescaleSlope, []string{ds(img.Slope)}},
		{tag.PixelData, dicom.PixelDataInfo{
			Frames: []*frame.Frame{{Encapsulated: false, NativeData: nf}},
		}},
	}

	var out dicom.Dataset
	for _, v := range values {
		el, err := dicom.NewElement(v.t, v.data)
		if err != nil {
			return dicom.Dataset{}, errors.Wrapf(err, "%s: element %v", img.Name, v.t)
		}
		out.Elements = append(out.Elements, el)
	}
	return out, nil
}

// Write writes img to dir and returns its path.
func Write(dir string, img Image) (string, error) {
	d, err := img.Dataset()
	if err != nil {
		return "", err
	}
	path := filepath.Join(dir, img.Name)
	f, err := os.Create(path)
	if err != nil {
		return "", err
	}
	if err := dicom.Write(f, d); err != nil {
		f.Close()
		return "", errors.Wrapf(err, "writing %s", path)
	}
	return path, f.Close()
}

// WriteAll writes every image to dir.
func WriteAll(dir string, imgs []Image) error {
	for _, img := range imgs {
		if _, err := Write(dir, img); err != nil {
			return err
		}
	}
	return nil
}

// Series returns three 2x2 slices of one series, 2.5mm apart, whose file
// names and instance numbers both run against their z order. The middle
// slice is signed.
func Series() []Image {
	base := Image{
		StudyUID:  "1.2.826.0.1.3680043.2.1125.1",
		SeriesUID: "1.2.826.0.1.3680043.2.1125.1.1",
		Rows:      2,
		Cols:      2,
		Slope:     1,
		Intercept: -1024,
	}

	top, mid, bottom := base, base, base
	top.Name, top.Instance, top.Z = "IM1.dcm", 1, 5
	top.Pixels = []int{1, 2, 3, 4}
	mid.Name, mid.Instance, mid.Z = "IM2.dcm", 2, 2.5
	mid.Signed, mid.Pixels = true, []int{100, 200, 300, -1}
	bottom.Name, bottom.Instance, bottom.Z = "IM3.dcm", 3, 0
	bottom.Pixels = []int{10, 20, 30, 40}
	return []Image{top, mid, bottom}
}
