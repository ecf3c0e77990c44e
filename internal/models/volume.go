package models

// Slice represents a single decoded DICOM image with the metadata needed to
// place it in a volume
type Slice struct {
	// Filename is the file the slice was read from
	Filename string

	// StudyUID and SeriesUID identify the study and series the slice belongs to
	StudyUID  string
	SeriesUID string

	// SeriesDescription is the free-text series label, if present
	SeriesDescription string

	// InstanceNumber is the slice number stored in the file, 0 if absent
	InstanceNumber int

	// Position is ImagePositionPatient in mm; HasPosition is false when the
	// tag is missing
	Position    [3]float64
	HasPosition bool

	// Orientation is ImageOrientationPatient: the row and column direction
	// cosines
	Orientation    [6]float64
	HasOrientation bool

	// PixelSpacing is the in-plane spacing in mm as (x, y)
	PixelSpacing [2]float64

	// Thickness is the nominal slice thickness in mm
	Thickness float64

	// RescaleSlope and RescaleIntercept convert stored values to HU
	RescaleSlope     float64
	RescaleIntercept float64

	// Rows and Columns are the image dimensions
	Rows    int
	Columns int

	// Data holds Rows*Columns stored values in row-major order
	Data []float64
}

// Volume represents a 3D CT volume assembled from a sorted series
type Volume struct {
	// Data is the 3D volume data as a 1D array in row-major order:
	// z*Width*Height + y*Width + x
	Data []float64

	// Width is the width of the volume in voxels
	Width int

	// Height is the height of the volume in voxels
	Height int

	// Depth is the depth of the volume in voxels
	Depth int

	// VoxelSize is the physical size of each voxel in mm
	VoxelSize struct {
		X, Y, Z float64
	}

	// Origin is the position of the first voxel in mm
	Origin [3]float64

	// ScalarRange is the minimum and maximum stored value
	ScalarRange [2]float64

	// Mean and StdDev summarise the stored values
	Mean   float64
	StdDev float64

	// RescaleSlope and RescaleIntercept are taken from the first slice
	RescaleSlope     float64
	RescaleIntercept float64
}

// Extent returns the voxel index bounds as x0, x1, y0, y1, z0, z1
func (v *Volume) Extent() [6]int {
	return [6]int{0, v.Width - 1, 0, v.Height - 1, 0, v.Depth - 1}
}

// At returns the stored value at voxel (x, y, z)
func (v *Volume) At(x, y, z int) float64 {
	return v.Data[z*v.Width*v.Height+y*v.Width+x]
}

// Series groups the slices of one DICOM series
type Series struct {
	UID         string
	Description string
	Slices      []*Slice
}

// Study groups the series of one DICOM study
type Study struct {
	UID    string
	Series []*Series
}
