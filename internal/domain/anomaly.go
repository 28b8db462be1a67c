package domain

import "github.com/montanaflynn/stats"

// ZScoreThreshold is the one-sided cutoff: a record is anomalous when its
// magnitude lies strictly more than this many standard deviations above the
// mean.
const ZScoreThreshold = 2.0

// Analysis is the outcome of one anomaly pass over a dataset.
type Analysis struct {
	Count     int
	Mean      float64
	StdDev    float64 // sample standard deviation (N-1)
	Anomalies []Record
}

// Analyze computes magnitude statistics and collects the records whose
// Z-score exceeds ZScoreThreshold, in dataset order. The input is not
// modified.
func Analyze(records []Record) Analysis {
	a := Analysis{Count: len(records), Anomalies: []Record{}}

	// Sample stddev is undefined below two records; treat like zero variance.
	if len(records) < 2 {
		if len(records) == 1 {
			a.Mean = records[0].Magnitude
		}
		return a
	}

	magnitudes := make(stats.Float64Data, len(records))
	for i, r := range records {
		magnitudes[i] = r.Magnitude
	}

	mean, err := stats.Mean(magnitudes)
	if err != nil {
		return a
	}
	stddev, err := stats.StandardDeviationSample(magnitudes)
	if err != nil {
		return a
	}
	a.Mean = mean
	a.StdDev = stddev

	// Zero variance: nothing can be an outlier.
	if stddev == 0 {
		return a
	}

	for _, r := range records {
		if z := (r.Magnitude - mean) / stddev; z > ZScoreThreshold {
			a.Anomalies = append(a.Anomalies, r)
		}
	}
	return a
}

// Detect returns only the anomalous records of Analyze.
func Detect(records []Record) []Record {
	return Analyze(records).Anomalies
}
