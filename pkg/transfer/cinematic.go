package transfer

// cinematicStop is one landmark of the cinematic skull preset.
type cinematicStop struct {
	hu      float64
	r, g, b float64
	opacity float64
}

// Air and fat stay invisible, soft tissue is a faint amber veil, bone and
// teeth go opaque white.
var cinematicStops = []cinematicStop{
	{hu: -1000, r: 0.00, g: 0.00, b: 0.00, opacity: 0.00}, // air
	{hu: -100, r: 0.73, g: 0.47, b: 0.28, opacity: 0.00},  // fat
	{hu: 0, r: 0.84, g: 0.58, b: 0.40, opacity: 0.05},     // water
	{hu: 80, r: 0.90, g: 0.68, b: 0.50, opacity: 0.12},    // upper soft tissue
	{hu: 300, r: 0.95, g: 0.90, b: 0.80, opacity: 0.35},   // trabecular bone
	{hu: 700, r: 0.98, g: 0.96, b: 0.92, opacity: 0.80},   // cortical bone
	{hu: 1500, r: 1.00, g: 1.00, b: 1.00, opacity: 0.95},  // teeth, metal
	{hu: 3000, r: 1.00, g: 1.00, b: 1.00, opacity: 0.98},  // clamp
}

// BuildCinematic builds the stylised skull preset.
func BuildCinematic(cal Calibration) Pair {
	p := Pair{
		Preset:  PresetCinematic,
		Color:   make([]ColorPoint, 0, len(cinematicStops)),
		Opacity: make([]OpacityPoint, 0, len(cinematicStops)),
	}
	for _, st := range cinematicStops {
		s := cal.HUToScalar(st.hu)
		p.Color = append(p.Color, ColorPoint{Scalar: s, R: st.r, G: st.g, B: st.b})
		p.Opacity = append(p.Opacity, OpacityPoint{Scalar: s, Opacity: st.opacity})
	}
	p.sortPoints()
	return p
}
