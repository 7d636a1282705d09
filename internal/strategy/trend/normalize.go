package trend

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/wuwenjia6498/fishbowl-monitor/internal/domain/radar"
)

// Column names the upstream endpoints use for the trade date. index_daily and
// fund_daily return trade_date, index_global and sge_daily have shipped both
// spellings over time.
var dateFields = []string{"trade_date", "date"}

var dateLayouts = []string{
	"20060102",
	"2006-01-02",
	time.RFC3339,
}

// Normalize coerces a provider-native series into a canonical ascending
// (date, close) sequence. Rows with a missing or unparseable date or close are
// dropped; if fewer than minLen rows survive, the series is rejected with
// ErrEmptySeries. Two rows sharing one date make the whole series invalid.
func Normalize(raw *radar.RawSeries, minLen int) ([]radar.PricePoint, error) {
	if raw == nil || len(raw.Items) == 0 {
		return nil, radar.ErrEmptySeries
	}

	dateIdx, closeIdx := -1, -1
	for i, f := range raw.Fields {
		name := strings.ToLower(strings.TrimSpace(f))
		if closeIdx < 0 && name == "close" {
			closeIdx = i
		}
		for _, df := range dateFields {
			if dateIdx < 0 && name == df {
				dateIdx = i
			}
		}
	}
	if dateIdx < 0 || closeIdx < 0 {
		return nil, fmt.Errorf("%w: no date/close columns in %v", radar.ErrEmptySeries, raw.Fields)
	}

	points := make([]radar.PricePoint, 0, len(raw.Items))
	for _, item := range raw.Items {
		if len(item) <= dateIdx || len(item) <= closeIdx {
			continue
		}
		date, ok := parseDate(item[dateIdx])
		if !ok {
			continue
		}
		close, ok := parseClose(item[closeIdx])
		if !ok {
			continue
		}
		points = append(points, radar.PricePoint{Date: date, Close: close})
	}

	if len(points) == 0 {
		return nil, radar.ErrEmptySeries
	}
	if minLen > 0 && len(points) < minLen {
		return nil, fmt.Errorf("%w: %d rows, need %d", radar.ErrEmptySeries, len(points), minLen)
	}

	sort.Slice(points, func(i, j int) bool {
		return points[i].Date.Before(points[j].Date)
	})

	for i := 1; i < len(points); i++ {
		if points[i].Date.Equal(points[i-1].Date) {
			return nil, fmt.Errorf("%w: %s", radar.ErrDuplicateDate, points[i].Date.Format("2006-01-02"))
		}
	}

	return points, nil
}

func parseDate(v interface{}) (time.Time, bool) {
	s := ""
	switch val := v.(type) {
	case string:
		s = strings.TrimSpace(val)
	case float64:
		// trade_date occasionally arrives as a bare number (20231229)
		s = fmt.Sprintf("%.0f", val)
	case json.Number:
		s = val.String()
	default:
		return time.Time{}, false
	}
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC().Truncate(24 * time.Hour), true
		}
	}
	return time.Time{}, false
}

func parseClose(v interface{}) (decimal.Decimal, bool) {
	switch val := v.(type) {
	case float64:
		return decimal.NewFromFloat(val), true
	case string:
		s := strings.TrimSpace(val)
		if s == "" {
			return decimal.Decimal{}, false
		}
		d, err := decimal.NewFromString(s)
		if err != nil {
			return decimal.Decimal{}, false
		}
		return d, true
	case json.Number:
		d, err := decimal.NewFromString(val.String())
		if err != nil {
			return decimal.Decimal{}, false
		}
		return d, true
	case int64:
		return decimal.NewFromInt(val), true
	default:
		return decimal.Decimal{}, false
	}
}
