package trend

import (
	"fmt"

	"github.com/shopspring/decimal"
	"github.com/wuwenjia6498/fishbowl-monitor/internal/domain/radar"
)

const (
	// MAWindow is the moving-average lookback in trading days
	MAWindow = 20

	// BreakoutMaxDays is the longest YES streak still tagged BREAKOUT
	BreakoutMaxDays = 3
)

var (
	// bufferBand is the hysteresis half-width around MA20. Inside
	// [MA20*0.99, MA20*1.01] yesterday's status is carried forward.
	bufferBand = decimal.NewFromFloat(0.01)

	// extremeBand separates STRONG/SLUMP from OVERHEAT/EXTREME_BEAR
	extremeBand = decimal.NewFromFloat(0.15)

	one = decimal.NewFromInt(1)
)

// Accumulator is the only state carried between fold steps of the state
// machine: yesterday's status and how long it has held.
type Accumulator struct {
	Status   radar.TrendStatus
	Duration int
}

// Seed returns the first-day accumulator. With no prior state the buffer
// bands do not apply: close >= ma20 is YES, otherwise NO.
func Seed(close, ma20 decimal.Decimal) Accumulator {
	status := radar.StatusNo
	if close.GreaterThanOrEqual(ma20) {
		status = radar.StatusYes
	}
	return Accumulator{Status: status, Duration: 1}
}

// Step applies the buffered transition for one point. Breaching the upper
// band forces YES, breaching the lower band forces NO, inside the band the
// previous status holds. Duration resets to 1 on a flip.
func Step(prev Accumulator, close, ma20 decimal.Decimal) Accumulator {
	upper := ma20.Mul(one.Add(bufferBand))
	lower := ma20.Mul(one.Sub(bufferBand))

	status := prev.Status
	switch {
	case close.GreaterThan(upper):
		status = radar.StatusYes
	case close.LessThan(lower):
		status = radar.StatusNo
	}

	duration := 1
	if status == prev.Status {
		duration = prev.Duration + 1
	}
	return Accumulator{Status: status, Duration: duration}
}

// Tag derives the signal tier from the deviation sign, never from status
// alone, so tag family and deviation sign cannot diverge.
func Tag(status radar.TrendStatus, duration int, deviation decimal.Decimal) radar.SignalTag {
	if deviation.GreaterThan(decimal.Zero) {
		if status == radar.StatusYes && duration <= BreakoutMaxDays {
			return radar.TagBreakout
		}
		if deviation.GreaterThan(extremeBand) {
			return radar.TagOverheat
		}
		return radar.TagStrong
	}
	if deviation.LessThan(extremeBand.Neg()) {
		return radar.TagExtremeBear
	}
	return radar.TagSlump
}

// Classify runs the full single-pass classification over an ascending series
// and returns one metric fragment per point (trend_rank and sparkline are
// filled in by later phases). A non-positive close anywhere rejects the whole
// series: the state machine has no meaning over invalid prices.
func Classify(symbol string, series []radar.PricePoint) ([]*radar.DailyMetric, error) {
	if len(series) == 0 {
		return nil, radar.ErrEmptySeries
	}

	for _, p := range series {
		if p.Close.LessThanOrEqual(decimal.Zero) {
			return nil, fmt.Errorf("%w: %s close %s on %s",
				radar.ErrInvalidPrice, symbol, p.Close, p.Date.Format("2006-01-02"))
		}
	}

	metrics := make([]*radar.DailyMetric, 0, len(series))
	rollingSum := decimal.Zero
	var acc Accumulator

	for i, p := range series {
		rollingSum = rollingSum.Add(p.Close)
		window := i + 1
		if window > MAWindow {
			rollingSum = rollingSum.Sub(series[i-MAWindow].Close)
			window = MAWindow
		}
		ma20 := rollingSum.Div(decimal.NewFromInt(int64(window)))
		if ma20.IsZero() {
			return nil, fmt.Errorf("%w: %s zero MA20 on %s",
				radar.ErrInvalidPrice, symbol, p.Date.Format("2006-01-02"))
		}

		if i == 0 {
			acc = Seed(p.Close, ma20)
		} else {
			acc = Step(acc, p.Close, ma20)
		}

		deviation := p.Close.Sub(ma20).Div(ma20)

		m := &radar.DailyMetric{
			Symbol:       symbol,
			Date:         p.Date,
			ClosePrice:   p.Close,
			MA20Price:    ma20,
			Status:       acc.Status,
			DeviationPct: deviation,
			DurationDays: acc.Duration,
			SignalTag:    Tag(acc.Status, acc.Duration, deviation),
		}

		if i > 0 {
			prev := series[i-1].Close
			change := p.Close.Sub(prev).Div(prev)
			m.ChangePct = &change
		}

		// The streak's reference close is the day before the streak began.
		if start := i - acc.Duration; start >= 0 {
			ref := series[start].Close
			trend := p.Close.Sub(ref).Div(ref)
			m.TrendPct = &trend
		}

		metrics = append(metrics, m)
	}

	return metrics, nil
}
