package ai

import (
	"fmt"
	"hash/fnv"
	"image"
	"image/color"

	"gocv.io/x/gocv"

	"robodash/internal/models"
)

// palette holds distinct box colors; a detection's track id picks its color
// so a tracked object keeps the same color between frames.
var palette = []color.RGBA{
	{R: 66, G: 133, B: 244}, {R: 219, G: 68, B: 55}, {R: 244, G: 180, B: 0},
	{R: 15, G: 157, B: 88}, {R: 171, G: 71, B: 188}, {R: 0, G: 172, B: 193},
	{R: 255, G: 112, B: 67}, {R: 158, G: 157, B: 36}, {R: 121, G: 85, B: 72},
	{R: 96, G: 125, B: 139},
}

// DrawDetections renders detection boxes and labels onto a JPEG frame and
// returns the re-encoded image. The input bytes are not modified.
func DrawDetections(frameData []byte, detections []models.Detection) ([]byte, error) {
	mat, err := gocv.IMDecode(frameData, gocv.IMReadColor)
	if err != nil {
		return nil, fmt.Errorf("failed to decode frame: %w", err)
	}
	defer mat.Close()

	for _, det := range detections {
		col := boxColor(det)
		rect := image.Rect(det.X1, det.Y1, det.X2, det.Y2)
		if err := gocv.Rectangle(&mat, rect, col, 2); err != nil {
			return nil, fmt.Errorf("failed to draw rectangle: %w", err)
		}

		label := fmt.Sprintf("%s %.0f%%", det.Label, det.Confidence*100)
		if det.TrackID > 0 {
			label = fmt.Sprintf("%s #%d %.0f%%", det.Label, det.TrackID, det.Confidence*100)
		}
		pt := image.Pt(det.X1, det.Y1-5)
		if err := gocv.PutText(&mat, label, pt, gocv.FontHersheySimplex, 0.5, col, 1); err != nil {
			return nil, fmt.Errorf("failed to draw label: %w", err)
		}
	}

	buf, err := gocv.IMEncode(".jpg", mat)
	if err != nil {
		return nil, fmt.Errorf("failed to encode frame: %w", err)
	}
	defer buf.Close()

	out := make([]byte, len(buf.GetBytes()))
	copy(out, buf.GetBytes())
	return out, nil
}

func boxColor(det models.Detection) color.RGBA {
	if det.TrackID > 0 {
		return palette[det.TrackID%len(palette)]
	}
	h := fnv.New32a()
	h.Write([]byte(det.Label))
	return palette[int(h.Sum32()%uint32(len(palette)))]
}
