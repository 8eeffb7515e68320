package vision

import "robodash/internal/models"

const (
	trackIoUThreshold = 0.3
	trackMaxMisses    = 5
)

type track struct {
	id     int
	label  string
	x1, y1 int
	x2, y2 int
	misses int
}

// Tracker assigns stable track identifiers to detections across cycles using
// greedy IoU matching. It only ever runs on the scheduler goroutine that owns
// it, so it needs no locking. Boxes that stay unmatched for a few cycles are
// dropped so identifiers are not recycled onto unrelated objects.
type Tracker struct {
	nextID int
	tracks []track
}

// NewTracker creates an empty tracker.
func NewTracker() *Tracker {
	return &Tracker{nextID: 1}
}

// Assign sets TrackID on every detection, matching against boxes from earlier
// cycles by label and IoU. Unmatched detections open new tracks.
func (t *Tracker) Assign(detections []models.Detection) {
	matched := make([]bool, len(t.tracks))

	for i := range detections {
		best := -1
		bestIoU := trackIoUThreshold
		for j, tr := range t.tracks {
			if matched[j] || tr.label != detections[i].Label {
				continue
			}
			iou := boxIoU(detections[i], tr)
			if iou > bestIoU {
				bestIoU = iou
				best = j
			}
		}

		if best >= 0 {
			matched[best] = true
			t.tracks[best].x1, t.tracks[best].y1 = detections[i].X1, detections[i].Y1
			t.tracks[best].x2, t.tracks[best].y2 = detections[i].X2, detections[i].Y2
			t.tracks[best].misses = 0
			detections[i].TrackID = t.tracks[best].id
			continue
		}

		tr := track{
			id:    t.nextID,
			label: detections[i].Label,
			x1:    detections[i].X1, y1: detections[i].Y1,
			x2: detections[i].X2, y2: detections[i].Y2,
		}
		t.nextID++
		t.tracks = append(t.tracks, tr)
		matched = append(matched, true)
		detections[i].TrackID = tr.id
	}

	// Age out tracks that found no detection this cycle.
	kept := t.tracks[:0]
	for j := range t.tracks {
		if !matched[j] {
			t.tracks[j].misses++
			if t.tracks[j].misses > trackMaxMisses {
				continue
			}
		}
		kept = append(kept, t.tracks[j])
	}
	t.tracks = kept
}

// Reset forgets all tracks. Called when detection is re-enabled or the model
// changes, so old identifiers do not leak onto a new vocabulary.
func (t *Tracker) Reset() {
	t.tracks = t.tracks[:0]
}

func boxIoU(d models.Detection, tr track) float64 {
	ix1 := max(d.X1, tr.x1)
	iy1 := max(d.Y1, tr.y1)
	ix2 := min(d.X2, tr.x2)
	iy2 := min(d.Y2, tr.y2)

	iw := ix2 - ix1
	ih := iy2 - iy1
	if iw <= 0 || ih <= 0 {
		return 0
	}

	inter := float64(iw * ih)
	areaD := float64((d.X2 - d.X1) * (d.Y2 - d.Y1))
	areaT := float64((tr.x2 - tr.x1) * (tr.y2 - tr.y1))
	union := areaD + areaT - inter
	if union <= 0 {
		return 0
	}
	return inter / union
}
