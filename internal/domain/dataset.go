package domain

import "errors"

// Rejections counts dropped rows by reason.
type Rejections map[RejectReason]int

// Total returns the number of dropped rows.
func (r Rejections) Total() int {
	n := 0
	for _, c := range r {
		n += c
	}
	return n
}

// Build parses every line in order and keeps the successes in their original
// relative order. Bad rows are counted, never returned as errors. An empty
// result means the feed carried no data.
func Build(lines []string) ([]Record, Rejections) {
	records := make([]Record, 0, len(lines))
	rejected := make(Rejections)

	for _, line := range lines {
		rec, err := ParseLine(line)
		if err != nil {
			var rej *RejectError
			if errors.As(err, &rej) {
				rejected[rej.Reason]++
			}
			continue
		}
		records = append(records, rec)
	}

	return records, rejected
}
