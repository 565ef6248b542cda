package vision

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/otiai10/gosseract/v2"
	"gocv.io/x/gocv"

	"github.com/clalos/plate-logger/internal/pipeline"
	"github.com/clalos/plate-logger/internal/plate"
)

// DefaultPageSegMode treats each crop as a single line of text.
const DefaultPageSegMode = int(gosseract.PSM_SINGLE_LINE)

// OCRConfig configures the Tesseract client.
type OCRConfig struct {
	// Language holds Tesseract language codes, comma-separated.
	Language string
	// PageSegMode is the Tesseract page segmentation mode.
	PageSegMode int
	// Preprocess upscales and thresholds each crop before recognition.
	Preprocess bool
}

// TesseractExtractor reads the text inside a plate region.
type TesseractExtractor struct {
	client     *gosseract.Client
	preprocess bool
	logger     *slog.Logger
}

// NewTesseractExtractor creates a Tesseract client configured for plate crops.
func NewTesseractExtractor(cfg OCRConfig, logger *slog.Logger) (*TesseractExtractor, error) {
	client := gosseract.NewClient()

	langs := strings.Split(cfg.Language, ",")
	for i, lang := range langs {
		langs[i] = strings.TrimSpace(lang)
	}
	if err := client.SetLanguage(langs...); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to set OCR language: %w", err)
	}

	if err := client.SetPageSegMode(gosseract.PageSegMode(cfg.PageSegMode)); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to set page segmentation mode: %w", err)
	}

	logger.Debug("Tesseract client initialized",
		"version", client.Version(),
		"languages", langs,
		"page_seg_mode", cfg.PageSegMode,
		"preprocess", cfg.Preprocess)

	return &TesseractExtractor{
		client:     client,
		preprocess: cfg.Preprocess,
		logger:     logger,
	}, nil
}

// Extract crops the grayscale frame to region and returns Tesseract's best
// guess. A region entirely outside the frame yields empty text.
func (e *TesseractExtractor) Extract(f pipeline.Frame, region plate.Region) (string, error) {
	frame, err := asFrame(f)
	if err != nil {
		return "", err
	}

	rect, ok := clampRegion(region, frame.Bounds())
	if !ok {
		return "", nil
	}

	crop := frame.Gray.Region(rect)
	defer crop.Close()

	src := crop
	if e.preprocess {
		processed := preprocessCrop(crop)
		defer processed.Close()
		src = processed
	}

	imgBytes, err := gocv.IMEncode(gocv.PNGFileExt, src)
	if err != nil {
		return "", fmt.Errorf("failed to encode crop: %w", err)
	}
	defer imgBytes.Close()

	if err := e.client.SetImageFromBytes(imgBytes.GetBytes()); err != nil {
		return "", fmt.Errorf("failed to set OCR image: %w", err)
	}

	text, err := e.client.Text()
	if err != nil {
		return "", fmt.Errorf("failed to extract text: %w", err)
	}
	return text, nil
}

// Close releases the Tesseract client.
func (e *TesseractExtractor) Close() error {
	if e.client != nil {
		return e.client.Close()
	}
	return nil
}
