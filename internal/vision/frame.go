// Package vision adapts OpenCV and Tesseract to the pipeline: a camera frame
// source, a Haar cascade region detector, a single-line OCR text extractor
// and a display window.
package vision

import (
	"errors"
	"fmt"
	"image"
	"time"

	"gocv.io/x/gocv"

	"github.com/clalos/plate-logger/internal/pipeline"
	"github.com/clalos/plate-logger/internal/plate"
)

var (
	_ pipeline.FrameSource    = (*Camera)(nil)
	_ pipeline.RegionDetector = (*CascadeDetector)(nil)
	_ pipeline.TextExtractor  = (*TesseractExtractor)(nil)
	_ pipeline.Display        = (*Window)(nil)
)

// ErrUnexpectedFrame is returned when a pipeline frame was not produced by
// this package.
var ErrUnexpectedFrame = errors.New("unexpected frame type")

// Frame is a captured camera image with its grayscale variant.
type Frame struct {
	// Color is the BGR frame, annotated in place before display.
	Color gocv.Mat

	// Gray is the grayscale copy used for detection and OCR.
	Gray gocv.Mat

	index      int64
	capturedAt time.Time
}

// NewFrame builds a Frame from a BGR image. The Frame owns color; the
// grayscale variant is derived from it.
func NewFrame(color gocv.Mat, index int64, at time.Time) *Frame {
	gray := gocv.NewMat()
	gocv.CvtColor(color, &gray, gocv.ColorBGRToGray)
	return &Frame{Color: color, Gray: gray, index: index, capturedAt: at}
}

// Index returns the camera's frame counter, starting from 1.
func (f *Frame) Index() int64 { return f.index }

// CapturedAt returns when the frame was read from the device.
func (f *Frame) CapturedAt() time.Time { return f.capturedAt }

// Close releases both images.
func (f *Frame) Close() error {
	return errors.Join(f.Color.Close(), f.Gray.Close())
}

// Bounds returns the frame rectangle.
func (f *Frame) Bounds() image.Rectangle {
	return image.Rect(0, 0, f.Gray.Cols(), f.Gray.Rows())
}

func asFrame(f pipeline.Frame) (*Frame, error) {
	frame, ok := f.(*Frame)
	if !ok || frame == nil {
		return nil, fmt.Errorf("%w: %T", ErrUnexpectedFrame, f)
	}
	return frame, nil
}

func regionRect(r plate.Region) image.Rectangle {
	return image.Rect(r.X, r.Y, r.X+r.Width, r.Y+r.Height)
}

// clampRegion intersects r with bounds. It reports false when nothing is left.
func clampRegion(r plate.Region, bounds image.Rectangle) (image.Rectangle, bool) {
	rect := regionRect(r).Intersect(bounds)
	return rect, !rect.Empty()
}
