package pipeline

import (
	"errors"
	"time"

	"github.com/clalos/plate-logger/internal/plate"
	"github.com/clalos/plate-logger/internal/readlog"
)

// Frame is one captured image, owned by the iteration that acquired it.
// The controller closes it when the iteration ends.
type Frame interface {
	// Index is the source's frame counter, starting from 1.
	Index() int64
	// CapturedAt is when the frame was read from the device.
	CapturedAt() time.Time
	Close() error
}

// Acquisition is the tagged outcome of asking a FrameSource for a frame:
// either a usable Frame or the reason none was produced.
type Acquisition struct {
	Frame Frame
	Err   error
}

// Ok wraps a successfully captured frame.
func Ok(f Frame) Acquisition {
	return Acquisition{Frame: f}
}

// Failed reports that no usable frame was captured.
func Failed(err error) Acquisition {
	if err == nil {
		err = errNoFrame
	}
	return Acquisition{Err: err}
}

// OK reports whether the acquisition produced a frame.
func (a Acquisition) OK() bool {
	return a.Err == nil && a.Frame != nil
}

var errNoFrame = errors.New("no frame returned")

// FrameSource delivers frames from a capture device.
type FrameSource interface {
	Acquire() Acquisition
	Close() error
}

// RegionDetector proposes candidate plate regions in a frame. The order of
// the returned regions is not significant.
type RegionDetector interface {
	Detect(frame Frame) ([]plate.Region, error)
}

// TextExtractor transcribes the text inside one region of a frame. It may
// return empty or garbage text for unreadable input.
type TextExtractor interface {
	Extract(frame Frame, region plate.Region) (string, error)
}

// ReadLog is the durable store of accepted reads. An Append error is fatal.
type ReadLog interface {
	Append(read readlog.PlateRead) error
}

// Observer is notified of every accepted read after it has been logged.
// Observer errors are logged and otherwise ignored.
type Observer interface {
	Observe(read readlog.PlateRead) error
}

// Display shows annotated frames and reports key presses. WaitKey blocks for
// at most d and returns the pressed key, or -1 if none.
type Display interface {
	Annotate(frame Frame, region plate.Region, text string)
	Show(frame Frame)
	WaitKey(d time.Duration) int
	Close() error
}
