package ontology

import "math"

// DurationStat tracks streaming mean and variance of clip durations for one
// clip function using Welford's algorithm, so no raw samples are stored.
type DurationStat struct {
	Count int     `json:"count"`
	Mean  float64 `json:"mean"`
	M2    float64 `json:"m2"`
}

// Update folds one duration sample into the running statistics.
func (d *DurationStat) Update(seconds float64) {
	d.Count++
	delta := seconds - d.Mean
	d.Mean += delta / float64(d.Count)
	d.M2 += delta * (seconds - d.Mean)
}

// Variance returns the population variance of the observed durations.
func (d *DurationStat) Variance() float64 {
	if d.Count == 0 {
		return 0
	}
	return d.M2 / float64(d.Count)
}

// StdDev returns the population standard deviation.
func (d *DurationStat) StdDev() float64 {
	return math.Sqrt(d.Variance())
}
