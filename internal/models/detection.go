package models

import "time"

// Detection represents a single detected object in a frame.
// Coordinates are pixel corners (x1,y1)-(x2,y2) in the source frame.
type Detection struct {
	Label      string  `json:"class"`
	Confidence float64 `json:"confidence"`
	X1         int     `json:"x1"`
	Y1         int     `json:"y1"`
	X2         int     `json:"x2"`
	Y2         int     `json:"y2"`
	TrackID    int     `json:"id"` // -1 when the tracker has no ID for this box
}

// Snapshot is one published generation of detection results.
// A snapshot is immutable after publication; readers never see results
// from two generations mixed.
type Snapshot struct {
	Generation uint64      `json:"generation"`
	Detections []Detection `json:"detections"`
	Timestamp  time.Time   `json:"timestamp"`
}

// ScenePrediction is one scored label from the scene classifier.
type ScenePrediction struct {
	Label string  `json:"label"`
	Score float64 `json:"score"`
}
