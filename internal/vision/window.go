package vision

import (
	"image"
	"image/color"
	"time"

	"gocv.io/x/gocv"

	"github.com/clalos/plate-logger/internal/pipeline"
	"github.com/clalos/plate-logger/internal/plate"
)

// WindowTitle is the display window name.
const WindowTitle = "License Plate Detector"

var (
	boxColor  = color.RGBA{R: 0, G: 255, B: 0, A: 0}
	textColor = color.RGBA{R: 255, G: 0, B: 255, A: 0}
)

// Window shows annotated frames in a highgui window.
type Window struct {
	window *gocv.Window
}

// NewWindow opens a window titled title.
func NewWindow(title string) *Window {
	return &Window{window: gocv.NewWindow(title)}
}

// Annotate draws the region box and the read text above it on the color frame.
func (w *Window) Annotate(f pipeline.Frame, region plate.Region, text string) {
	frame, err := asFrame(f)
	if err != nil {
		return
	}
	drawRead(&frame.Color, region, text)
}

func drawRead(img *gocv.Mat, region plate.Region, text string) {
	gocv.Rectangle(img, regionRect(region), boxColor, 2)
	gocv.PutText(img, text, image.Pt(region.X, region.Y-5), gocv.FontHersheyComplexSmall, 1, textColor, 2)
}

// Show displays the color frame.
func (w *Window) Show(f pipeline.Frame) {
	frame, err := asFrame(f)
	if err != nil {
		return
	}
	w.window.IMShow(frame.Color)
}

// WaitKey pumps window events for d and returns the pressed key or -1.
// Durations under a millisecond still poll once; zero would block forever.
func (w *Window) WaitKey(d time.Duration) int {
	ms := int(d / time.Millisecond)
	if ms < 1 {
		ms = 1
	}
	return w.window.WaitKey(ms)
}

// Close destroys the window.
func (w *Window) Close() error {
	return w.window.Close()
}
