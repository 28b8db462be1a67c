package domain

// Record is one earthquake parsed from a bulletin row.
type Record struct {
	Timestamp string  `json:"timestamp"` // "{date} {time}" exactly as published, no timezone
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
	Depth     float64 `json:"depth"` // kilometers
	Magnitude float64 `json:"magnitude"`
	Location  string  `json:"location"`
}

// Columns is the field order shared by the tabular store and the JSON export.
var Columns = []string{"timestamp", "latitude", "longitude", "depth", "magnitude", "location"}
