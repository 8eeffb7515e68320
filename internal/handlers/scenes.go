package handlers

import (
	"encoding/json"
	"net/http"

	"robodash/internal/logger"
	"robodash/internal/services"
)

// ScenesHandler serves the scene context table: GET lists every stored
// record, POST upserts one.
func ScenesHandler(pipeline *services.Pipeline, log *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet:
			listScenes(w, pipeline, log)
		case http.MethodPost:
			saveScene(w, r, pipeline, log)
		default:
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		}
	}
}

func listScenes(w http.ResponseWriter, pipeline *services.Pipeline, log *logger.Logger) {
	all, err := pipeline.Resolver.All()
	if err != nil {
		log.Error("Failed to list scenes: %v", err)
		http.Error(w, "Failed to list scenes", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(all); err != nil {
		log.Error("Failed to encode scenes: %v", err)
	}
}

func saveScene(w http.ResponseWriter, r *http.Request, pipeline *services.Pipeline, log *logger.Logger) {
	var req struct {
		Name    string   `json:"name"`
		Classes []string `json:"classes"`
		Model   string   `json:"model"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	if err := pipeline.SaveScene(req.Name, req.Classes, req.Model); err != nil {
		log.Error("Failed to save scene %q: %v", req.Name, err)
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
