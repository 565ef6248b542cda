// Package pipeline drives the per-frame plate logging loop.
//
// A Controller is an explicit state machine. Each call to Step runs one full
// iteration: acquire a frame, detect candidate regions, read and validate
// each region, log accepted reads, show the frame and wait for the next scan.
// The wait is the only place a stop request is observed; a frame that has
// entered detection always runs to the end of its region loop.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/clalos/plate-logger/internal/plate"
	"github.com/clalos/plate-logger/internal/readlog"
)

// ErrAcquisitionExhausted is returned by Step once the capture device has
// failed more consecutive times than the RetryPolicy allows.
var ErrAcquisitionExhausted = errors.New("frame acquisition failed too many times")

// ErrStopped is returned by Step after the controller reached Shutdown.
var ErrStopped = errors.New("controller is stopped")

// State is a controller state.
type State int32

const (
	StateAcquireFrame State = iota
	StateDetectRegions
	StateExtractText
	StateValidate
	StateLogAndAnnotate
	StateDisplay
	StateWaitOrExit
	StateShutdown
)

// String returns a string representation of the State.
func (s State) String() string {
	switch s {
	case StateAcquireFrame:
		return "ACQUIRE_FRAME"
	case StateDetectRegions:
		return "DETECT_REGIONS"
	case StateExtractText:
		return "EXTRACT_TEXT"
	case StateValidate:
		return "VALIDATE"
	case StateLogAndAnnotate:
		return "LOG_AND_ANNOTATE"
	case StateDisplay:
		return "DISPLAY"
	case StateWaitOrExit:
		return "WAIT_OR_EXIT"
	case StateShutdown:
		return "SHUTDOWN"
	default:
		return "UNKNOWN"
	}
}

// DefaultStopKey is the key that ends the run when a display is attached.
const DefaultStopKey = 'q'

// maxStopKey is the largest key the display reports; WaitKey keeps the low byte.
const maxStopKey = 0xFF

// keyPollInterval bounds a single WaitKey call so cancellation is noticed
// during long waits.
const keyPollInterval = 100 * time.Millisecond

// metricsReportInterval matches how often the periodic metrics line is logged.
const metricsReportInterval = 30 * time.Second

// Options configures a Controller. Source, Detector, Extractor and Log are
// required. The controller takes ownership of Source and Display and closes
// them on shutdown.
type Options struct {
	Source    FrameSource
	Detector  RegionDetector
	Extractor TextExtractor
	Validator plate.Validator
	Log       ReadLog
	Observers []Observer

	// Display is nil when running headless.
	Display Display

	// Interval is the inter-scan delay.
	Interval time.Duration
	StopKey  rune
	Retry    RetryPolicy

	Now    func() time.Time
	Logger *slog.Logger
}

// Controller runs the plate logging state machine. It is not safe for
// concurrent use except for State, IsStopped and Metrics.
type Controller struct {
	source    FrameSource
	detector  RegionDetector
	extractor TextExtractor
	validator plate.Validator
	log       ReadLog
	observers []Observer
	display   Display

	interval time.Duration
	stopKey  rune
	retry    RetryPolicy
	now      func() time.Time
	logger   *slog.Logger

	state    atomic.Int32
	failures int
	metrics  Metrics

	lastReport time.Time
	closeOnce  sync.Once
}

// New validates opts and returns a Controller in StateAcquireFrame.
func New(opts Options) (*Controller, error) {
	switch {
	case opts.Source == nil:
		return nil, fmt.Errorf("frame source is required")
	case opts.Detector == nil:
		return nil, fmt.Errorf("region detector is required")
	case opts.Extractor == nil:
		return nil, fmt.Errorf("text extractor is required")
	case opts.Log == nil:
		return nil, fmt.Errorf("read log is required")
	}

	if opts.Validator == (plate.Validator{}) {
		opts.Validator = plate.NewValidator(0, 0)
	}
	if opts.Interval < 0 {
		return nil, fmt.Errorf("interval must not be negative")
	}
	if opts.StopKey == 0 {
		opts.StopKey = DefaultStopKey
	}
	if opts.StopKey > maxStopKey {
		return nil, fmt.Errorf("stop key %q cannot be reported by the display", opts.StopKey)
	}
	if opts.Retry == (RetryPolicy{}) {
		opts.Retry = DefaultRetryPolicy(opts.Interval)
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}

	c := &Controller{
		source:     opts.Source,
		detector:   opts.Detector,
		extractor:  opts.Extractor,
		validator:  opts.Validator,
		log:        opts.Log,
		observers:  opts.Observers,
		display:    opts.Display,
		interval:   opts.Interval,
		stopKey:    opts.StopKey,
		retry:      opts.Retry,
		now:        opts.Now,
		logger:     opts.Logger,
		lastReport: opts.Now(),
	}
	c.state.Store(int32(StateAcquireFrame))
	return c, nil
}

// State returns the current state.
func (c *Controller) State() State {
	return State(c.state.Load())
}

// IsStopped reports whether the controller reached Shutdown.
func (c *Controller) IsStopped() bool {
	return c.State() == StateShutdown
}

// Metrics returns a snapshot of the pipeline counters.
func (c *Controller) Metrics() MetricsSnapshot {
	return c.metrics.Snapshot()
}

func (c *Controller) enter(s State) {
	c.state.Store(int32(s))
}

// Run calls Step until a stop is requested or a fatal error occurs, then
// releases the capture device and display.
func (c *Controller) Run(ctx context.Context) error {
	defer c.Close()

	for !c.IsStopped() {
		if err := c.Step(ctx); err != nil {
			c.shutdown("fatal error")
			c.logSummary()
			return err
		}
	}

	c.logSummary()
	return nil
}

// Step runs one iteration of the state machine and returns in either
// StateAcquireFrame (ready for the next iteration) or StateShutdown.
//
// A failed acquisition skips the rest of the iteration. The returned error is
// non-nil only for fatal conditions: an exhausted retry budget or a read log
// write failure.
func (c *Controller) Step(ctx context.Context) error {
	if c.IsStopped() {
		return ErrStopped
	}
	if ctx.Err() != nil {
		c.shutdown("context cancelled")
		return nil
	}

	c.enter(StateAcquireFrame)
	acq := c.source.Acquire()
	if !acq.OK() {
		if acq.Frame != nil {
			acq.Frame.Close()
		}
		return c.acquisitionFailed(ctx, acq.Err)
	}
	c.failures = 0
	c.metrics.framesAcquired.Add(1)

	frame := acq.Frame
	defer frame.Close()

	if err := c.processFrame(frame); err != nil {
		return err
	}

	c.enter(StateDisplay)
	if c.display != nil {
		c.display.Show(frame)
	}

	c.enter(StateWaitOrExit)
	if c.wait(ctx, c.interval) {
		c.shutdown("stop requested")
		return nil
	}

	c.reportMetrics()
	c.enter(StateAcquireFrame)
	return nil
}

func (c *Controller) acquisitionFailed(ctx context.Context, cause error) error {
	if cause == nil {
		cause = errNoFrame
	}
	c.failures++
	c.metrics.acquireFailures.Add(1)

	if c.failures > c.retry.MaxFailures {
		return fmt.Errorf("%w: %d consecutive failures, last: %w", ErrAcquisitionExhausted, c.failures, cause)
	}

	delay := c.retry.Delay(c.failures)
	c.logger.Warn("Frame acquisition failed, skipping iteration",
		"error", cause,
		"consecutive_failures", c.failures,
		"max_failures", c.retry.MaxFailures,
		"retry_in", delay)

	c.enter(StateWaitOrExit)
	if c.wait(ctx, delay) {
		c.shutdown("stop requested")
		return nil
	}
	c.enter(StateAcquireFrame)
	return nil
}

// processFrame runs detection and the per-region loop. Regions are handled
// independently: overlapping boxes that both validate are logged twice.
func (c *Controller) processFrame(frame Frame) error {
	c.enter(StateDetectRegions)
	regions, err := c.detector.Detect(frame)
	if err != nil {
		c.metrics.detectErrors.Add(1)
		c.logger.Warn("Region detection failed, skipping frame", "error", err)
		return nil
	}
	c.metrics.regionsSeen.Add(int64(len(regions)))

	for _, region := range regions {
		if err := c.processRegion(frame, region); err != nil {
			return err
		}
	}
	return nil
}

func (c *Controller) processRegion(frame Frame, region plate.Region) error {
	// Tiny regions are rejected before paying for OCR.
	if !plate.LargeEnough(region, c.validator.MinArea) {
		c.metrics.recordVerdict(plate.RejectedArea, c.now())
		c.logger.Debug("Region rejected", "verdict", plate.RejectedArea, "area", region.Area())
		return nil
	}

	c.enter(StateExtractText)
	text, err := c.extractor.Extract(frame, region)
	if err != nil {
		c.metrics.ocrErrors.Add(1)
		c.logger.Warn("Text extraction failed", "error", err, "region", region)
		text = ""
	}

	c.enter(StateValidate)
	verdict := c.validator.Validate(region, text)
	if !verdict.Accepted() {
		c.metrics.recordVerdict(verdict, c.now())
		c.logger.Debug("Region rejected",
			"verdict", verdict,
			"area", region.Area(),
			"text", strings.TrimSpace(text))
		return nil
	}

	c.enter(StateLogAndAnnotate)
	read := readlog.PlateRead{
		Text:      strings.TrimSpace(text),
		Timestamp: c.now(),
	}
	if err := c.log.Append(read); err != nil {
		return fmt.Errorf("failed to log plate read: %w", err)
	}
	c.metrics.recordVerdict(verdict, read.Timestamp)

	c.logger.Info("Plate read logged",
		"plate", read.Text,
		"timestamp", read.Timestamp.Format(readlog.TimestampLayout),
		"frame_index", frame.Index(),
		"captured_at", frame.CapturedAt(),
		"x", region.X,
		"y", region.Y,
		"width", region.Width,
		"height", region.Height)

	for _, o := range c.observers {
		if err := o.Observe(read); err != nil {
			c.logger.Warn("Observer failed", "error", err, "plate", read.Text)
		}
	}

	if c.display != nil {
		c.display.Annotate(frame, region, read.Text)
	}
	return nil
}

// wait blocks for d or until a stop is requested, and reports whether the
// run should stop. With a display attached the wait also pumps window events.
func (c *Controller) wait(ctx context.Context, d time.Duration) bool {
	if c.display != nil {
		deadline := time.Now().Add(d)
		for {
			slice := min(time.Until(deadline), keyPollInterval)
			key := c.display.WaitKey(slice)
			if key >= 0 && rune(key&0xFF) == c.stopKey {
				return true
			}
			if ctx.Err() != nil {
				return true
			}
			if time.Until(deadline) <= 0 {
				return false
			}
		}
	}

	if d <= 0 {
		return ctx.Err() != nil
	}

	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return true
	case <-timer.C:
		return false
	}
}

func (c *Controller) shutdown(reason string) {
	if c.IsStopped() {
		return
	}
	c.enter(StateShutdown)
	c.logger.Info("Plate logger shutting down", "reason", reason)
}

// Close releases the capture device and closes the display. It is safe to
// call more than once.
func (c *Controller) Close() error {
	var err error
	c.closeOnce.Do(func() {
		c.enter(StateShutdown)

		var errs []error
		if err := c.source.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close frame source: %w", err))
		}
		if c.display != nil {
			if err := c.display.Close(); err != nil {
				errs = append(errs, fmt.Errorf("failed to close display: %w", err))
			}
		}
		err = errors.Join(errs...)
	})
	return err
}

func (c *Controller) reportMetrics() {
	now := c.now()
	if now.Sub(c.lastReport) < metricsReportInterval {
		return
	}
	c.lastReport = now

	s := c.metrics.Snapshot()
	c.logger.Debug("Pipeline metrics report",
		"frames_acquired", s.FramesAcquired,
		"acquire_failures", s.AcquireFailures,
		"detect_errors", s.DetectErrors,
		"regions_seen", s.RegionsSeen,
		"ocr_errors", s.OCRErrors,
		"reads_accepted", s.ReadsAccepted,
		"rejected_area", s.RejectedArea,
		"rejected_composition", s.RejectedComposition,
		"rejected_length", s.RejectedLength)
}

func (c *Controller) logSummary() {
	s := c.metrics.Snapshot()
	c.logger.Info("Plate logger stopped",
		"frames_acquired", s.FramesAcquired,
		"reads_accepted", s.ReadsAccepted,
		"acquire_failures", s.AcquireFailures)
}
