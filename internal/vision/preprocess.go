package vision

import (
	"image"
	"math"

	"gocv.io/x/gocv"
)

const (
	upscaleFactor = 1.5
	maxDimension  = 2048
)

// preprocessCrop upscales a grayscale crop and applies a mean adaptive
// threshold to sharpen character edges. The caller must close the result.
func preprocessCrop(gray gocv.Mat) gocv.Mat {
	resized := gocv.NewMat()
	defer resized.Close()

	gocv.Resize(gray, &resized, scaledSize(gray.Cols(), gray.Rows()), 0, 0, gocv.InterpolationLinear)

	thresholded := gocv.NewMat()
	gocv.AdaptiveThreshold(resized, &thresholded, 255, gocv.AdaptiveThresholdMean, gocv.ThresholdBinary, 11, 2)
	return thresholded
}

// scaledSize returns the upscaled size, shrunk to fit maxDimension.
func scaledSize(width, height int) image.Point {
	scale := upscaleFactor
	if float64(width)*scale > maxDimension || float64(height)*scale > maxDimension {
		scale = math.Min(float64(maxDimension)/float64(width), float64(maxDimension)/float64(height))
	}
	return image.Point{X: int(float64(width) * scale), Y: int(float64(height) * scale)}
}
