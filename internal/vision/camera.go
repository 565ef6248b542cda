package vision

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	"gocv.io/x/gocv"

	"github.com/clalos/plate-logger/internal/pipeline"
)

var (
	errReadFailed = errors.New("failed to read frame from capture device")
	errEmptyFrame = errors.New("empty frame captured")
)

// CameraConfig describes the capture device.
type CameraConfig struct {
	// Device is a camera index ("0") or a stream URL.
	Device string
	Width  int
	Height int
}

// Camera is a pipeline.FrameSource backed by an OpenCV video capture.
// A failed read drops the connection; the next Acquire reopens it.
type Camera struct {
	cfg     CameraConfig
	logger  *slog.Logger
	capture *gocv.VideoCapture
	img     gocv.Mat
	index   int64
}

// OpenCamera opens the device and applies the configured resolution.
func OpenCamera(cfg CameraConfig, logger *slog.Logger) (*Camera, error) {
	c := &Camera{cfg: cfg, logger: logger, img: gocv.NewMat()}
	if err := c.open(); err != nil {
		c.img.Close()
		return nil, err
	}
	return c, nil
}

func (c *Camera) open() error {
	capture, err := gocv.OpenVideoCapture(c.cfg.Device)
	if err != nil {
		return fmt.Errorf("failed to open video capture: %w", err)
	}
	if !capture.IsOpened() {
		capture.Close()
		return fmt.Errorf("video capture %q is not opened", c.cfg.Device)
	}

	if c.cfg.Width > 0 {
		capture.Set(gocv.VideoCaptureFrameWidth, float64(c.cfg.Width))
	}
	if c.cfg.Height > 0 {
		capture.Set(gocv.VideoCaptureFrameHeight, float64(c.cfg.Height))
	}

	c.capture = capture
	c.logger.Debug("Video capture opened",
		"device", c.cfg.Device,
		"frame_width", capture.Get(gocv.VideoCaptureFrameWidth),
		"frame_height", capture.Get(gocv.VideoCaptureFrameHeight))
	return nil
}

// Acquire reads one frame. It never returns frame data from a failed read.
func (c *Camera) Acquire() pipeline.Acquisition {
	if c.capture == nil {
		c.logger.Info("Attempting capture reconnection", "device", c.cfg.Device)
		if err := c.open(); err != nil {
			return pipeline.Failed(err)
		}
	}

	if !c.capture.Read(&c.img) {
		c.capture.Close()
		c.capture = nil
		return pipeline.Failed(errReadFailed)
	}
	if c.img.Empty() {
		return pipeline.Failed(errEmptyFrame)
	}

	c.index++
	return pipeline.Ok(NewFrame(c.img.Clone(), c.index, time.Now()))
}

// Close releases the capture device.
func (c *Camera) Close() error {
	var errs []error
	if c.capture != nil {
		if err := c.capture.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close video capture: %w", err))
		}
		c.capture = nil
	}
	if err := c.img.Close(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}
