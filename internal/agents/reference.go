// internal/agents/reference.go
package agents

// metricRange is the physiologically plausible band for a metric. Readings
// outside it count against the device's accuracy rate.
type metricRange struct {
	Min, Max float64
}

// referenceRanges maps metric names to their plausible reading band. Metrics
// without an entry are skipped by the accuracy check.
var referenceRanges = map[string]metricRange{
	"heart_rate":       {Min: 30, Max: 220},
	"blood_glucose":    {Min: 40, Max: 400},
	"spo2":             {Min: 70, Max: 100},
	"weight":           {Min: 20, Max: 300},
	"systolic_bp":      {Min: 70, Max: 200},
	"diastolic_bp":     {Min: 40, Max: 130},
	"body_temperature": {Min: 34, Max: 42},
	"respiratory_rate": {Min: 6, Max: 40},
}

// expectedDailySamples is the nominal per-day sample count at a metric's
// normal recording cadence. Metrics without an entry default to one sample
// per day.
var expectedDailySamples = map[string]int{
	"heart_rate":       24, // hourly summaries
	"blood_glucose":    96, // 15-minute CGM readings
	"spo2":             24,
	"steps":            24,
	"calories":         24,
	"sleep":            1,
	"weight":           1,
	"systolic_bp":      2,
	"diastolic_bp":     2,
	"body_temperature": 4,
	"respiratory_rate": 24,
}

// defaultSyncCadenceHours is the expected hours between syncs per device
// type; config can override individual entries.
var defaultSyncCadenceHours = map[string]float64{
	"fitness_tracker": 24,
	"smartwatch":      12,
	"cgm":             1,
	"smart_scale":     168,
	"bp_monitor":      72,
}

const fallbackCadenceHours = 24

func dailySamplesFor(metric string) int {
	if n, ok := expectedDailySamples[metric]; ok {
		return n
	}
	return 1
}

func cadenceHoursFor(deviceType string, overrides map[string]float64) float64 {
	if h, ok := overrides[deviceType]; ok && h > 0 {
		return h
	}
	if h, ok := defaultSyncCadenceHours[deviceType]; ok {
		return h
	}
	return fallbackCadenceHours
}
