// Package pattern infers a title's release cadence from its chapter history.
// The inputs are sparse and noisy: duplicates, out-of-order entries, and long
// hiatus gaps all occur in practice. Every metric degrades to an explicit
// "unknown" rather than guessing or failing.
package pattern

import (
	"sort"
	"time"
)

// maxPlausibleGap bounds consecutive-release gaps considered part of a
// title's cadence. Longer gaps are hiatuses or missed scrapes, not cadence.
const maxPlausibleGap = 365 * 24 * time.Hour

const (
	minDatesForInterval = 3
	minDatesForWeekday  = 5
)

// Result carries the full analysis for one title. Zero-value fields paired
// with their Known/Detected flags express absence explicitly.
type Result struct {
	AvgInterval      time.Duration
	IntervalKnown    bool
	Weekday          time.Weekday
	WeekdayDetected  bool
	Confidence       float64
	NextRelease      time.Time
	NextReleaseKnown bool
}

// Analyze runs every metric over the provided publish timestamps. Metrics
// fail independently: a weekday may be detected even when the interval is
// unknown, and vice versa.
func Analyze(dates []time.Time) Result {
	var result Result

	if interval, ok := AverageInterval(dates); ok {
		result.AvgInterval = interval
		result.IntervalKnown = true
	}
	if weekday, confidence, ok := DetectWeeklyPattern(dates); ok {
		result.Weekday = weekday
		result.WeekdayDetected = true
		result.Confidence = confidence
	}
	if next, ok := PredictNextRelease(dates); ok {
		result.NextRelease = next
		result.NextReleaseKnown = true
	}
	return result
}

// AverageInterval computes the mean gap between consecutive releases. It
// needs at least three dates; with fewer the cadence is unknowable and the
// second return is false. Negative and implausibly large gaps are discarded
// as outliers before averaging.
func AverageInterval(dates []time.Time) (time.Duration, bool) {
	if len(dates) < minDatesForInterval {
		return 0, false
	}

	sorted := sortedCopy(dates)
	var (
		total time.Duration
		gaps  int
	)
	for i := 1; i < len(sorted); i++ {
		gap := sorted[i].Sub(sorted[i-1])
		if gap <= 0 || gap > maxPlausibleGap {
			continue
		}
		total += gap
		gaps++
	}
	if gaps == 0 {
		return 0, false
	}
	return total / time.Duration(gaps), true
}

// DetectWeeklyPattern buckets releases by day of week and reports the modal
// day with the fraction of entries landing on it. Requires at least five
// dates; the mode of fewer entries is noise.
func DetectWeeklyPattern(dates []time.Time) (time.Weekday, float64, bool) {
	if len(dates) < minDatesForWeekday {
		return 0, 0, false
	}

	var buckets [7]int
	counted := 0
	for _, date := range dates {
		if date.IsZero() {
			continue
		}
		buckets[date.UTC().Weekday()]++
		counted++
	}
	if counted < minDatesForWeekday {
		return 0, 0, false
	}

	mode := time.Sunday
	for day := time.Monday; day <= time.Saturday; day++ {
		if buckets[day] > buckets[mode] {
			mode = day
		}
	}
	return mode, float64(buckets[mode]) / float64(counted), true
}

// ConfidenceScore returns the fraction of dates landing on candidateDay, in
// [0, 1]. Zero-value dates are excluded from both sides of the fraction.
func ConfidenceScore(dates []time.Time, candidateDay time.Weekday) float64 {
	counted := 0
	matching := 0
	for _, date := range dates {
		if date.IsZero() {
			continue
		}
		counted++
		if date.UTC().Weekday() == candidateDay {
			matching++
		}
	}
	if counted == 0 {
		return 0
	}
	return float64(matching) / float64(counted)
}

// PredictNextRelease extrapolates the last release by the average interval.
// Advisory only: the scheduling engine still applies hard bounds.
func PredictNextRelease(dates []time.Time) (time.Time, bool) {
	interval, ok := AverageInterval(dates)
	if !ok {
		return time.Time{}, false
	}

	last := dates[0]
	for _, date := range dates[1:] {
		if date.After(last) {
			last = date
		}
	}
	if last.IsZero() {
		return time.Time{}, false
	}
	return last.Add(interval), true
}

func sortedCopy(dates []time.Time) []time.Time {
	sorted := make([]time.Time, 0, len(dates))
	for _, date := range dates {
		if date.IsZero() {
			continue
		}
		sorted = append(sorted, date)
	}
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Before(sorted[j]) })
	return sorted
}
