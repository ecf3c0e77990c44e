// Package dicomio reads a directory of DICOM files and assembles the largest
// (or a chosen) series into a scalar volume.
package dicomio

import (
	"context"
	"io/fs"
	"math"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"sync"

	"github.com/charmbracelet/log"
	"github.com/pkg/errors"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"dicomvol/internal/models"
	"dicomvol/pkg/transfer"
)

var (
	// ErrNoImages is returned when a directory holds no readable DICOM image.
	ErrNoImages = errors.New("no DICOM images found")

	// ErrSeriesNotFound is returned when the requested series UID is absent.
	ErrSeriesNotFound = errors.New("series not found")
)

// Params holds the loader configuration.
type Params struct {
	// InputDir is the directory to scan.
	InputDir string

	// Recursive descends into subdirectories.
	Recursive bool

	// NumCores is the number of files parsed concurrently.
	NumCores int

	// SeriesUID selects a series. Empty selects the series with most images.
	SeriesUID string
}

// ProgressCallback receives the number of files processed so far.
type ProgressCallback func(completed, total int, message string)

// Loader scans, parses and assembles DICOM series.
type Loader struct {
	params           *Params
	logger           *log.Logger
	progressCallback ProgressCallback
}

// Result is the outcome of Load.
type Result struct {
	// Studies lists every study and series found, sorted by UID.
	Studies []*models.Study

	// Series is the series the volume was built from.
	Series *models.Series

	// Volume is the assembled volume.
	Volume *models.Volume

	// Skipped counts files that were not DICOM images.
	Skipped int
}

// Calibration returns the rescale calibration of the loaded volume.
func (r *Result) Calibration() transfer.Calibration {
	return transfer.Calibration{Slope: r.Volume.RescaleSlope, Intercept: r.Volume.RescaleIntercept}
}

// NewLoader creates a loader. A nil logger means log.Default().
func NewLoader(params *Params, logger *log.Logger) *Loader {
	if logger == nil {
		logger = log.Default()
	}
	return &Loader{params: params, logger: logger}
}

// SetProgressCallback sets a function called after each file is parsed.
func (l *Loader) SetProgressCallback(callback ProgressCallback) {
	l.progressCallback = callback
}

func (l *Loader) reportProgress(completed, total int, message string) {
	if l.progressCallback != nil {
		l.progressCallback(completed, total, message)
	}
}

// Load reads the input directory and builds the selected series into a
// volume.
func (l *Loader) Load(ctx context.Context) (*Result, error) {
	info, err := os.Stat(l.params.InputDir)
	if err != nil {
		return nil, errors.Wrap(err, "reading input directory")
	}
	if !info.IsDir() {
		return nil, errors.Errorf("%s is not a directory", l.params.InputDir)
	}

	files, err := listFiles(l.params.InputDir, l.params.Recursive)
	if err != nil {
		return nil, errors.Wrapf(err, "scanning %s", l.params.InputDir)
	}
	if len(files) == 0 {
		return nil, ErrNoImages
	}
	l.logger.Debug("scanning files", "dir", l.params.InputDir, "count", len(files))

	slices, skipped, err := l.readAll(ctx, files)
	if err != nil {
		return nil, err
	}
	if len(slices) == 0 {
		return nil, ErrNoImages
	}

	studies := groupStudies(slices)
	for i, st := range studies {
		l.logger.Info("study", "index", i, "uid", st.UID, "series", len(st.Series))
		for j, se := range st.Series {
			l.logger.Info("series", "study", i, "index", j, "uid", se.UID,
				"description", se.Description, "images", len(se.Slices))
		}
	}

	series, err := selectSeries(studies, l.params.SeriesUID)
	if err != nil {
		return nil, err
	}

	vol, err := BuildVolume(series.Slices)
	if err != nil {
		return nil, errors.Wrapf(err, "series %s", series.UID)
	}

	return &Result{Studies: studies, Series: series, Volume: vol, Skipped: skipped}, nil
}

// listFiles returns the regular files under dir in lexical order.
func listFiles(dir string, recursive bool) ([]string, error) {
	var files []string
	if !recursive {
		entries, err := os.ReadDir(dir)
		if err != nil {
			return nil, err
		}
		for _, e := range entries {
			if e.Type().IsRegular() {
				files = append(files, filepath.Join(dir, e.Name()))
			}
		}
		return files, nil
	}

	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.Type().IsRegular() {
			files = append(files, path)
		}
		return nil
	})
	return files, err
}

// readAll parses files on NumCores workers. Files that are not DICOM, or
// DICOM without an image, are counted and skipped. Any other read failure
// stops the load.
func (l *Loader) readAll(ctx context.Context, files []string) ([]*models.Slice, int, error) {
	numWorkers := l.params.NumCores
	if numWorkers <= 0 {
		numWorkers = runtime.NumCPU()
	}
	if numWorkers > len(files) {
		numWorkers = len(files)
	}

	type readResult struct {
		path  string
		slice *models.Slice
		err   error
	}

	parent := ctx
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	jobs := make(chan string)
	resultChan := make(chan readResult)

	var wg sync.WaitGroup
	for i := 0; i < numWorkers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for path := range jobs {
				s, err := readSlice(path)
				select {
				case resultChan <- readResult{path: path, slice: s, err: err}:
				case <-ctx.Done():
					return
				}
			}
		}()
	}

	go func() {
		defer close(jobs)
		for _, f := range files {
			select {
			case jobs <- f:
			case <-ctx.Done():
				return
			}
		}
	}()

	go func() {
		wg.Wait()
		close(resultChan)
	}()

	var (
		slices   []*models.Slice
		skipped  int
		firstErr error
	)
	completed := 0
	for res := range resultChan {
		completed++
		l.reportProgress(completed, len(files), filepath.Base(res.path))
		if firstErr != nil {
			continue
		}

		switch {
		case res.err == nil:
			slices = append(slices, res.slice)
		case errors.Is(res.err, errNotDICOM):
			skipped++
			l.logger.Debug("skipping non-DICOM file", "file", res.path)
		case errors.Is(res.err, errNotImage):
			skipped++
			l.logger.Debug("skipping file without pixel data", "file", res.path)
		default:
			firstErr = errors.Wrapf(res.err, "reading %s", res.path)
			cancel()
		}
	}
	if firstErr != nil {
		return nil, 0, firstErr
	}
	if err := parent.Err(); err != nil {
		return nil, 0, err
	}
	return slices, skipped, nil
}

// selectSeries returns the series with the given UID, or the one with the most
// images when uid is empty.
func selectSeries(studies []*models.Study, uid string) (*models.Series, error) {
	var best *models.Series
	for _, st := range studies {
		for _, se := range st.Series {
			if uid != "" {
				if se.UID == uid {
					return se, nil
				}
				continue
			}
			if best == nil || len(se.Slices) > len(best.Slices) {
				best = se
			}
		}
	}
	if uid != "" {
		return nil, errors.Wrap(ErrSeriesNotFound, uid)
	}
	if best == nil {
		return nil, ErrNoImages
	}
	return best, nil
}

// BuildVolume stacks sorted slices into a volume. All slices must share the
// dimensions of the first. Calibration is taken from the first slice.
func BuildVolume(slices []*models.Slice) (*models.Volume, error) {
	if len(slices) == 0 {
		return nil, ErrNoImages
	}
	first := slices[0]
	w, h := first.Columns, first.Rows
	if w <= 0 || h <= 0 {
		return nil, errors.Errorf("%s: empty image", first.Filename)
	}

	vol := &models.Volume{
		Width:            w,
		Height:           h,
		Depth:            len(slices),
		Data:             make([]float64, 0, w*h*len(slices)),
		Origin:           first.Position,
		RescaleSlope:     first.RescaleSlope,
		RescaleIntercept: first.RescaleIntercept,
	}
	for _, s := range slices {
		if s.Columns != w || s.Rows != h || len(s.Data) != w*h {
			return nil, errors.Errorf("%s: image is %dx%d, expected %dx%d",
				s.Filename, s.Columns, s.Rows, w, h)
		}
		vol.Data = append(vol.Data, s.Data...)
	}

	vol.VoxelSize.X = first.PixelSpacing[0]
	vol.VoxelSize.Y = first.PixelSpacing[1]
	vol.VoxelSize.Z = sliceSpacing(slices)

	vol.ScalarRange = [2]float64{floats.Min(vol.Data), floats.Max(vol.Data)}
	vol.Mean, vol.StdDev = stat.MeanStdDev(vol.Data, nil)
	return vol, nil
}

// sliceSpacing returns the median distance between neighbouring slices along
// the slice normal, falling back to the nominal thickness and then to 1mm.
func sliceSpacing(slices []*models.Slice) float64 {
	if len(slices) > 1 && slices[0].HasPosition {
		normal := sliceNormal(slices[0])
		var gaps []float64
		for i := 1; i < len(slices); i++ {
			if !slices[i].HasPosition {
				gaps = nil
				break
			}
			g := math.Abs(dot(slices[i].Position, normal) - dot(slices[i-1].Position, normal))
			if g > 0 {
				gaps = append(gaps, g)
			}
		}
		if len(gaps) > 0 {
			sort.Float64s(gaps)
			return stat.Quantile(0.5, stat.Empirical, gaps, nil)
		}
	}
	if slices[0].Thickness > 0 {
		return slices[0].Thickness
	}
	return 1
}
