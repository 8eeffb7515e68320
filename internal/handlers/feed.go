package handlers

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"robodash/internal/logger"
	"robodash/internal/models"
	"robodash/internal/services"
	"robodash/internal/services/vision"
)

const feedFrameInterval = 33 * time.Millisecond

// VideoFeedHandler streams the camera as multipart MJPEG with the current
// detection snapshot drawn on every frame. The snapshot is the last good one
// (zero-order hold), so boxes never flicker while inference lags behind the
// display rate.
func VideoFeedHandler(pipeline *services.Pipeline, draw func([]byte, []models.Detection) ([]byte, error), log *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "multipart/x-mixed-replace; boundary=frame")
		w.Header().Set("Cache-Control", "no-cache")

		flusher, ok := w.(http.Flusher)
		if !ok {
			http.Error(w, "Streaming unsupported", http.StatusInternalServerError)
			return
		}

		ticker := time.NewTicker(feedFrameInterval)
		defer ticker.Stop()

		for {
			select {
			case <-r.Context().Done():
				return
			case <-ticker.C:
			}

			jpeg, err := pipeline.ServeFrame(draw)
			if err != nil {
				if errors.Is(err, vision.ErrFrameUnavailable) {
					continue // camera warming up
				}
				log.Error("Video feed error: %v", err)
				continue
			}

			if _, err := fmt.Fprintf(w, "--frame\r\nContent-Type: image/jpeg\r\nContent-Length: %d\r\n\r\n", len(jpeg)); err != nil {
				return
			}
			if _, err := w.Write(jpeg); err != nil {
				return
			}
			if _, err := fmt.Fprint(w, "\r\n"); err != nil {
				return
			}
			flusher.Flush()
		}
	}
}
