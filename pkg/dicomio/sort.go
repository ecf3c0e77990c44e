package dicomio

import (
	"math"
	"path/filepath"
	"sort"
	"strconv"

	"dicomvol/internal/models"
)

// groupStudies sorts slices into studies and series. Studies and series are
// ordered by UID, slices within a series by sortSlices.
func groupStudies(slices []*models.Slice) []*models.Study {
	studies := map[string]*models.Study{}
	series := map[string]*models.Series{}

	for _, s := range slices {
		st, ok := studies[s.StudyUID]
		if !ok {
			st = &models.Study{UID: s.StudyUID}
			studies[s.StudyUID] = st
		}
		key := s.StudyUID + "\x00" + s.SeriesUID
		se, ok := series[key]
		if !ok {
			se = &models.Series{UID: s.SeriesUID, Description: s.SeriesDescription}
			series[key] = se
			st.Series = append(st.Series, se)
		}
		se.Slices = append(se.Slices, s)
	}

	out := make([]*models.Study, 0, len(studies))
	for _, st := range studies {
		sort.Slice(st.Series, func(i, j int) bool { return st.Series[i].UID < st.Series[j].UID })
		for _, se := range st.Series {
			sortSlices(se.Slices)
		}
		out = append(out, st)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UID < out[j].UID })
	return out
}

// sortSlices orders a series along its stacking axis. Slices are compared
// by position along the slice normal when every slice has a position, then
// by instance number, then by the number embedded in the file name.
func sortSlices(slices []*models.Slice) {
	byPosition := len(slices) > 0
	for _, s := range slices {
		if !s.HasPosition {
			byPosition = false
			break
		}
	}
	var normal [3]float64
	if byPosition {
		normal = sliceNormal(slices[0])
	}

	sort.SliceStable(slices, func(i, j int) bool {
		a, b := slices[i], slices[j]
		if byPosition {
			da, db := dot(a.Position, normal), dot(b.Position, normal)
			if da != db {
				return da < db
			}
		}
		if a.InstanceNumber != b.InstanceNumber {
			return a.InstanceNumber < b.InstanceNumber
		}
		na, nb := extractNumber(a.Filename), extractNumber(b.Filename)
		if na != nb {
			return na < nb
		}
		return a.Filename < b.Filename
	})
}

// sliceNormal returns the unit normal of the image plane, or the z axis when
// the orientation is missing or degenerate.
func sliceNormal(s *models.Slice) [3]float64 {
	if !s.HasOrientation {
		return [3]float64{0, 0, 1}
	}
	r := [3]float64{s.Orientation[0], s.Orientation[1], s.Orientation[2]}
	c := [3]float64{s.Orientation[3], s.Orientation[4], s.Orientation[5]}
	n := [3]float64{
		r[1]*c[2] - r[2]*c[1],
		r[2]*c[0] - r[0]*c[2],
		r[0]*c[1] - r[1]*c[0],
	}
	l := math.Sqrt(dot(n, n))
	if l == 0 {
		return [3]float64{0, 0, 1}
	}
	return [3]float64{n[0] / l, n[1] / l, n[2] / l}
}

func dot(a, b [3]float64) float64 {
	return a[0]*b[0] + a[1]*b[1] + a[2]*b[2]
}

// extractNumber extracts the numeric part from a filename
func extractNumber(filename string) int {
	base := filepath.Base(filename)
	numStr := ""
	for _, c := range base {
		if c >= '0' && c <= '9' {
			numStr += string(c)
		}
	}

	if numStr != "" {
		num, err := strconv.Atoi(numStr)
		if err == nil {
			return num
		}
	}
	return 0
}
