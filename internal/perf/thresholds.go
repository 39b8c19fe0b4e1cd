package perf

// Thresholds are upper bounds for performance metrics. Times are in
// milliseconds; CLS is unitless.
type Thresholds struct {
	FirstContentfulPaint   float64
	LargestContentfulPaint float64
	TimeToInteractive      float64
	TotalBlockingTime      float64
	CumulativeLayoutShift  float64
	FirstInputDelay        float64
}

// DefaultThresholds is the harness-wide threshold table.
var DefaultThresholds = Thresholds{
	FirstContentfulPaint:   1800,
	LargestContentfulPaint: 2500,
	TimeToInteractive:      3500,
	TotalBlockingTime:      200,
	CumulativeLayoutShift:  0.1,
	FirstInputDelay:        100,
}

// Metrics is a set of observed values. Nil fields were not observed.
type Metrics struct {
	FirstContentfulPaint   *float64
	LargestContentfulPaint *float64
	TimeToInteractive      *float64
	TotalBlockingTime      *float64
	CumulativeLayoutShift  *float64
	FirstInputDelay        *float64
}

// Violation is a metric that exceeded its threshold.
type Violation struct {
	Metric    string  `json:"metric"`
	Value     float64 `json:"value"`
	Threshold float64 `json:"threshold"`
	Status    string  `json:"status"`
}

// Value returns a pointer to v for building Metrics literals.
func Value(v float64) *float64 {
	return &v
}

// CheckThresholds returns one violation per observed metric that is above
// its threshold. Metrics that were not observed never produce a violation.
func CheckThresholds(m Metrics, t Thresholds) []Violation {
	checks := []struct {
		name      string
		value     *float64
		threshold float64
	}{
		{"FCP", m.FirstContentfulPaint, t.FirstContentfulPaint},
		{"LCP", m.LargestContentfulPaint, t.LargestContentfulPaint},
		{"TTI", m.TimeToInteractive, t.TimeToInteractive},
		{"TBT", m.TotalBlockingTime, t.TotalBlockingTime},
		{"CLS", m.CumulativeLayoutShift, t.CumulativeLayoutShift},
		{"FID", m.FirstInputDelay, t.FirstInputDelay},
	}

	violations := make([]Violation, 0)
	for _, c := range checks {
		if c.value == nil || *c.value <= c.threshold {
			continue
		}

		violations = append(violations, Violation{
			Metric:    c.name,
			Value:     *c.value,
			Threshold: c.threshold,
			Status:    "fail",
		})
	}

	return violations
}
