package trend

import (
	"encoding/json"

	"github.com/rs/zerolog/log"
	"github.com/wuwenjia6498/fishbowl-monitor/internal/domain/radar"
)

const (
	// WindowSize is the sparkline capacity in trading days
	WindowSize = 250

	// MinViablePoints is the smallest stored window worth extending
	// incrementally; below it the window is rebuilt from full history.
	MinViablePoints = 20

	// pointScale is the decimal precision persisted per point
	pointScale = 4
)

// NewSparklinePoint builds the window entry for one classified day,
// rounded to the persisted precision.
func NewSparklinePoint(m *radar.DailyMetric) radar.SparklinePoint {
	return radar.SparklinePoint{
		Date:  m.Date.Format("2006-01-02"),
		Price: m.ClosePrice.Round(pointScale),
		MA20:  m.MA20Price.Round(pointScale),
	}
}

// ParseWindow decodes a persisted window. Corrupt state is not an error the
// caller has to handle: it is discarded with a warning and the window starts
// over empty, so one bad blob can never wedge an instrument.
func ParseWindow(symbol string, prior []byte) []radar.SparklinePoint {
	if len(prior) == 0 {
		return nil
	}
	var window []radar.SparklinePoint
	if err := json.Unmarshal(prior, &window); err != nil {
		log.Warn().
			Str("symbol", symbol).
			Err(radar.ErrCorruptWindowState).
			Str("cause", err.Error()).
			Msg("Discarding stored sparkline, rebuilding from empty")
		return nil
	}
	return window
}

// AppendPoint merges one day's point into a window. A point dated the same as
// the last stored point replaces it, so re-running a trading day corrects in
// place instead of duplicating. The result is truncated to the newest maxLen
// points.
func AppendPoint(window []radar.SparklinePoint, pt radar.SparklinePoint, maxLen int) []radar.SparklinePoint {
	if n := len(window); n > 0 && window[n-1].Date == pt.Date {
		window[n-1] = pt
	} else {
		window = append(window, pt)
	}
	if maxLen > 0 && len(window) > maxLen {
		window = window[len(window)-maxLen:]
	}
	return window
}

// BuildWindow derives an initial window from full classified history, keeping
// the newest maxLen points. Used when no usable stored window exists.
func BuildWindow(metrics []*radar.DailyMetric, maxLen int) []radar.SparklinePoint {
	start := 0
	if maxLen > 0 && len(metrics) > maxLen {
		start = len(metrics) - maxLen
	}
	window := make([]radar.SparklinePoint, 0, len(metrics)-start)
	for _, m := range metrics[start:] {
		window = append(window, NewSparklinePoint(m))
	}
	return window
}
