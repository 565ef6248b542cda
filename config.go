package main

import (
	"flag"
	"fmt"
	"os"
	"strconv"
	"time"
	"unicode/utf8"

	"github.com/clalos/plate-logger/internal/pipeline"
	"github.com/clalos/plate-logger/internal/plate"
	"github.com/clalos/plate-logger/internal/vision"
)

const maxStopKey = 0xFF

// Config holds the application configuration parsed from command-line flags.
// Every flag default can be overridden by a PLATE_* environment variable.
type Config struct {
	Device string
	Width  int
	Height int

	CascadePath  string
	ScaleFactor  float64
	MinNeighbors int

	MinArea  int
	MinAlnum int
	Interval time.Duration

	Language    string
	PageSegMode int
	Preprocess  bool

	LogDir     string
	DBPath     string
	ListenAddr string

	Headless           bool
	StopKey            rune
	MaxAcquireFailures int

	LogFormat string
	Verbose   bool
}

// parseFlags parses command-line arguments and returns the application configuration.
func parseFlags() (*Config, error) {
	// Create a new FlagSet to avoid global flag conflicts in tests
	fs := flag.NewFlagSet("plate-logger", flag.ContinueOnError)

	var (
		device    = fs.String("device", getEnv("PLATE_DEVICE", "0"), "Camera index or video stream URL")
		width     = fs.Int("width", getEnvAsInt("PLATE_WIDTH", 640), "Requested frame width")
		height    = fs.Int("height", getEnvAsInt("PLATE_HEIGHT", 480), "Requested frame height")
		cascade   = fs.String("cascade", getEnv("PLATE_CASCADE", vision.DefaultCascadePath), "Haar cascade XML for plate detection")
		scale     = fs.Float64("scale", getEnvAsFloat("PLATE_SCALE", vision.DefaultScaleFactor), "Cascade scale factor (> 1)")
		neighbors = fs.Int("neighbors", getEnvAsInt("PLATE_NEIGHBORS", vision.DefaultMinNeighbors), "Cascade minimum neighbors")
		minArea   = fs.Int("min-area", getEnvAsInt("PLATE_MIN_AREA", plate.DefaultMinArea), "Minimum region area in pixels")
		minAlnum  = fs.Int("min-alnum", getEnvAsInt("PLATE_MIN_ALNUM", plate.DefaultMinAlnum), "Minimum alphanumeric characters in a read")
		interval  = fs.Duration("interval", getEnvAsDuration("PLATE_INTERVAL", time.Second), "Delay between scans")
		lang      = fs.String("lang", getEnv("PLATE_LANG", "eng"), "Tesseract language codes (comma-separated)")
		psm       = fs.Int("psm", getEnvAsInt("PLATE_PSM", vision.DefaultPageSegMode), "Tesseract page segmentation mode")
		prep      = fs.Bool("preprocess", getEnvAsBool("PLATE_PREPROCESS", false), "Upscale and threshold crops before OCR")
		logDir    = fs.String("logdir", getEnv("PLATE_LOG_DIR", "."), "Directory for the daily plates CSV")
		dbPath    = fs.String("db", getEnv("PLATE_DB", ""), "Optional SQLite database mirroring accepted reads")
		listen    = fs.String("listen", getEnv("PLATE_LISTEN", ""), "Optional address for the live feed server (e.g. :8080)")
		headless  = fs.Bool("headless", getEnvAsBool("PLATE_HEADLESS", false), "Run without a display window")
		stopKey   = fs.String("stop-key", getEnv("PLATE_STOP_KEY", string(pipeline.DefaultStopKey)), "Key that stops the run")
		maxFail   = fs.Int("max-acquire-failures", getEnvAsInt("PLATE_MAX_ACQUIRE_FAILURES", 10), "Consecutive failed frame reads tolerated")
		logfmt    = fs.String("logfmt", getEnv("PLATE_LOGFMT", "json"), "Log format: json or kv")
		verbose   = fs.Bool("verbose", getEnvAsBool("PLATE_VERBOSE", false), "Enable debug logging")
	)

	if err := fs.Parse(os.Args[1:]); err != nil {
		return nil, err
	}

	if *device == "" {
		return nil, fmt.Errorf("device must not be empty")
	}

	if *width <= 0 || *height <= 0 {
		return nil, fmt.Errorf("width and height must be positive")
	}

	if *scale <= 1 {
		return nil, fmt.Errorf("scale must be greater than 1")
	}

	if *neighbors < 0 {
		return nil, fmt.Errorf("neighbors must not be negative")
	}

	if *minArea <= 0 || *minAlnum <= 0 {
		return nil, fmt.Errorf("min-area and min-alnum must be positive")
	}

	if *interval < 0 {
		return nil, fmt.Errorf("interval must not be negative")
	}

	if *psm < 0 || *psm > 13 {
		return nil, fmt.Errorf("psm must be between 0 and 13")
	}

	if *maxFail < 1 {
		return nil, fmt.Errorf("max-acquire-failures must be at least 1")
	}

	if utf8.RuneCountInString(*stopKey) != 1 {
		return nil, fmt.Errorf("stop-key must be a single character")
	}
	key, _ := utf8.DecodeRuneInString(*stopKey)
	// highgui reports key codes in the low byte only.
	if key > maxStopKey {
		return nil, fmt.Errorf("stop-key must be a Latin-1 character")
	}

	if *logfmt != "json" && *logfmt != "kv" {
		return nil, fmt.Errorf("logfmt must be 'json' or 'kv'")
	}

	return &Config{
		Device:             *device,
		Width:              *width,
		Height:             *height,
		CascadePath:        *cascade,
		ScaleFactor:        *scale,
		MinNeighbors:       *neighbors,
		MinArea:            *minArea,
		MinAlnum:           *minAlnum,
		Interval:           *interval,
		Language:           *lang,
		PageSegMode:        *psm,
		Preprocess:         *prep,
		LogDir:             *logDir,
		DBPath:             *dbPath,
		ListenAddr:         *listen,
		Headless:           *headless,
		StopKey:            key,
		MaxAcquireFailures: *maxFail,
		LogFormat:          *logfmt,
		Verbose:            *verbose,
	}, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatValue, err := strconv.ParseFloat(value, 64); err == nil {
			return floatValue
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
