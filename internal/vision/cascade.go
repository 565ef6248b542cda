package vision

import (
	"fmt"
	"image"
	"os"

	"gocv.io/x/gocv"

	"github.com/clalos/plate-logger/internal/pipeline"
	"github.com/clalos/plate-logger/internal/plate"
)

const (
	// DefaultCascadePath is the plate classifier shipped next to the binary.
	DefaultCascadePath = "model/haarcascade_russian_plate_number.xml"

	DefaultScaleFactor  = 1.1
	DefaultMinNeighbors = 4
)

// CascadeDetector proposes plate regions with a Haar cascade classifier.
type CascadeDetector struct {
	classifier   gocv.CascadeClassifier
	scaleFactor  float64
	minNeighbors int
}

// NewCascadeDetector loads the classifier at path. scaleFactor and
// minNeighbors control how strict the multi-scale scan is.
func NewCascadeDetector(path string, scaleFactor float64, minNeighbors int) (*CascadeDetector, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("cascade file not found: %w", err)
	}
	if scaleFactor <= 1 {
		return nil, fmt.Errorf("scale factor must be greater than 1, got %v", scaleFactor)
	}

	classifier := gocv.NewCascadeClassifier()
	if !classifier.Load(path) {
		classifier.Close()
		return nil, fmt.Errorf("failed to load cascade classifier: %s", path)
	}

	return &CascadeDetector{
		classifier:   classifier,
		scaleFactor:  scaleFactor,
		minNeighbors: minNeighbors,
	}, nil
}

// Detect runs the classifier on the grayscale frame.
func (d *CascadeDetector) Detect(f pipeline.Frame) ([]plate.Region, error) {
	frame, err := asFrame(f)
	if err != nil {
		return nil, err
	}

	rects := d.classifier.DetectMultiScaleWithParams(frame.Gray, d.scaleFactor, d.minNeighbors, 0, image.Point{}, image.Point{})

	regions := make([]plate.Region, 0, len(rects))
	for _, r := range rects {
		regions = append(regions, plate.Region{
			X:      r.Min.X,
			Y:      r.Min.Y,
			Width:  r.Dx(),
			Height: r.Dy(),
		})
	}
	return regions, nil
}

// Close releases the classifier.
func (d *CascadeDetector) Close() error {
	return d.classifier.Close()
}
