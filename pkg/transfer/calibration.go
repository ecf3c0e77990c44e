// Package transfer builds the colour and opacity transfer functions used to
// render CT volumes.
//
// Presets are expressed in Hounsfield Units (HU). Every landmark is mapped
// into the stored scalar domain of the image through its rescale calibration
// before a control point is emitted, so a preset renders the same tissue
// whether the volume holds raw detector values or HU.
package transfer

// Calibration is the DICOM rescale calibration of an image:
// hu = scalar*Slope + Intercept.
type Calibration struct {
	Slope     float64 `json:"slope" yaml:"slope"`
	Intercept float64 `json:"intercept" yaml:"intercept"`
}

// Identity is the calibration of an image whose scalars are already HU.
var Identity = Calibration{Slope: 1, Intercept: 0}

// EffectiveSlope returns the slope used for conversion. A zero slope is
// treated as 1.
func (c Calibration) EffectiveSlope() float64 {
	if c.Slope == 0 {
		return 1
	}
	return c.Slope
}

// HUToScalar maps a Hounsfield value into the stored scalar domain. It is the
// inverse of ScalarToHU.
func (c Calibration) HUToScalar(hu float64) float64 {
	return (hu - c.Intercept) / c.EffectiveSlope()
}

// ScalarToHU applies the rescale equation to a stored scalar.
func (c Calibration) ScalarToHU(scalar float64) float64 {
	return scalar*c.EffectiveSlope() + c.Intercept
}
