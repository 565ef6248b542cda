package pipeline

import (
	"sync/atomic"
	"time"

	"github.com/clalos/plate-logger/internal/plate"
)

// Metrics tracks pipeline counters. The controller is the only writer; the
// fields are atomic so the live feed can read them from its own goroutines.
type Metrics struct {
	framesAcquired      atomic.Int64
	acquireFailures     atomic.Int64
	detectErrors        atomic.Int64
	regionsSeen         atomic.Int64
	ocrErrors           atomic.Int64
	readsAccepted       atomic.Int64
	rejectedArea        atomic.Int64
	rejectedComposition atomic.Int64
	rejectedLength      atomic.Int64
	lastAcceptedTime    atomic.Int64
}

// MetricsSnapshot is a point-in-time copy of Metrics.
type MetricsSnapshot struct {
	FramesAcquired      int64     `json:"frames_acquired"`
	AcquireFailures     int64     `json:"acquire_failures"`
	DetectErrors        int64     `json:"detect_errors"`
	RegionsSeen         int64     `json:"regions_seen"`
	OCRErrors           int64     `json:"ocr_errors"`
	ReadsAccepted       int64     `json:"reads_accepted"`
	RejectedArea        int64     `json:"rejected_area"`
	RejectedComposition int64     `json:"rejected_composition"`
	RejectedLength      int64     `json:"rejected_length"`
	LastAccepted        time.Time `json:"last_accepted,omitzero"`
}

// Snapshot returns the current counter values.
func (m *Metrics) Snapshot() MetricsSnapshot {
	s := MetricsSnapshot{
		FramesAcquired:      m.framesAcquired.Load(),
		AcquireFailures:     m.acquireFailures.Load(),
		DetectErrors:        m.detectErrors.Load(),
		RegionsSeen:         m.regionsSeen.Load(),
		OCRErrors:           m.ocrErrors.Load(),
		ReadsAccepted:       m.readsAccepted.Load(),
		RejectedArea:        m.rejectedArea.Load(),
		RejectedComposition: m.rejectedComposition.Load(),
		RejectedLength:      m.rejectedLength.Load(),
	}
	if nanos := m.lastAcceptedTime.Load(); nanos != 0 {
		s.LastAccepted = time.Unix(0, nanos)
	}
	return s
}

func (m *Metrics) recordVerdict(v plate.Verdict, at time.Time) {
	switch v {
	case plate.Accepted:
		m.readsAccepted.Add(1)
		m.lastAcceptedTime.Store(at.UnixNano())
	case plate.RejectedArea:
		m.rejectedArea.Add(1)
	case plate.RejectedComposition:
		m.rejectedComposition.Add(1)
	case plate.RejectedLength:
		m.rejectedLength.Add(1)
	}
}
