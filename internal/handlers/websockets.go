package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"robodash/internal/logger"
	"robodash/internal/services"
	"robodash/internal/services/scenes"
	"robodash/internal/services/vision"
	ws "robodash/internal/services/websocket"
)

var Upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// pongWait is how long a client may stay silent before it is considered dead.
// pingPeriod must be shorter so a healthy but listen-only client always has a
// ping to answer within the window. Variables so tests can shrink them.
var (
	pongWait   = 60 * time.Second
	pingPeriod = 54 * time.Second
)

// Command is one control message from a dashboard client.
type Command struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

type errorEvent struct {
	Kind    string `json:"kind"`
	Message string `json:"message"`
}

// ControlWebsocketHandler runs the control channel: clients send commands
// (enable, set_confidence, set_vocabulary, switch_scene, save_scene,
// scene_watch, status) and receive detection_results / scene_switched /
// detection_state / error events. Broadcast events arrive through the hub;
// command replies go to the issuing client only.
func ControlWebsocketHandler(pipeline *services.Pipeline, hub *ws.HubService, log *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		conn, err := Upgrader.Upgrade(w, r, nil)
		if err != nil {
			log.Error("WebSocket upgrade error: %v", err)
			return
		}

		conn.SetReadLimit(4096)
		conn.SetReadDeadline(time.Now().Add(pongWait))
		conn.SetPongHandler(func(string) error {
			conn.SetReadDeadline(time.Now().Add(pongWait))
			return nil
		})

		// Keep listen-only clients alive: pings are control frames, which
		// gorilla allows concurrently with the hub's data writes.
		stopPings := make(chan struct{})
		defer close(stopPings)
		go func() {
			ticker := time.NewTicker(pingPeriod)
			defer ticker.Stop()
			for {
				select {
				case <-stopPings:
					return
				case <-ticker.C:
					if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(10*time.Second)); err != nil {
						return
					}
				}
			}
		}()

		clientID := hub.Register(conn)
		defer hub.Unregister(clientID)

		// New clients get the current state right away, plus the last good
		// snapshot so their overlay is populated before the next cycle.
		hub.SendTo(clientID, "detection_state", pipeline.Status())
		hub.SendTo(clientID, "detection_results", pipeline.State.Current())

		for {
			_, raw, err := conn.ReadMessage()
			if err != nil {
				log.Info("Control client disconnected: %v", err)
				return
			}
			conn.SetReadDeadline(time.Now().Add(pongWait))

			var cmd Command
			if err := json.Unmarshal(raw, &cmd); err != nil {
				hub.SendTo(clientID, "error", errorEvent{Kind: "bad_request", Message: "invalid command"})
				continue
			}

			dispatchCommand(pipeline, hub, clientID, cmd, log)
		}
	}
}

func dispatchCommand(pipeline *services.Pipeline, hub *ws.HubService, clientID string, cmd Command, log *logger.Logger) {
	switch cmd.Type {
	case "enable":
		var data struct {
			Enabled bool `json:"enabled"`
		}
		if err := json.Unmarshal(cmd.Data, &data); err != nil {
			sendError(hub, clientID, err)
			return
		}
		pipeline.SetEnabled(data.Enabled)

	case "set_confidence":
		var data struct {
			Confidence float64 `json:"confidence"`
		}
		if err := json.Unmarshal(cmd.Data, &data); err != nil {
			sendError(hub, clientID, err)
			return
		}
		if err := pipeline.SetConfidence(data.Confidence); err != nil {
			sendError(hub, clientID, err)
		}

	case "set_vocabulary":
		var data struct {
			Classes []string `json:"classes"`
		}
		if err := json.Unmarshal(cmd.Data, &data); err != nil {
			sendError(hub, clientID, err)
			return
		}
		if err := pipeline.SetVocabulary(data.Classes); err != nil {
			sendError(hub, clientID, err)
			return
		}
		hub.SendTo(clientID, "vocabulary_update", map[string]interface{}{
			"success": true,
			"classes": data.Classes,
		})

	case "switch_scene":
		var data struct {
			Scene string `json:"scene"`
		}
		if err := json.Unmarshal(cmd.Data, &data); err != nil {
			sendError(hub, clientID, err)
			return
		}
		if _, err := pipeline.SwitchScene(data.Scene); err != nil {
			sendError(hub, clientID, err)
		}

	case "save_scene":
		var data struct {
			Name    string   `json:"name"`
			Classes []string `json:"classes"`
			Model   string   `json:"model"`
		}
		if err := json.Unmarshal(cmd.Data, &data); err != nil {
			sendError(hub, clientID, err)
			return
		}
		if err := pipeline.SaveScene(data.Name, data.Classes, data.Model); err != nil {
			sendError(hub, clientID, err)
		}

	case "scene_watch":
		var data struct {
			Enabled bool `json:"enabled"`
		}
		if err := json.Unmarshal(cmd.Data, &data); err != nil {
			sendError(hub, clientID, err)
			return
		}
		pipeline.SetSceneWatch(data.Enabled)

	case "status":
		hub.SendTo(clientID, "detection_state", pipeline.Status())

	default:
		log.Warning("Unknown control command: %q", cmd.Type)
		hub.SendTo(clientID, "error", errorEvent{Kind: "bad_request", Message: "unknown command: " + cmd.Type})
	}
}

func sendError(hub *ws.HubService, clientID string, err error) {
	hub.SendTo(clientID, "error", errorEvent{Kind: errorKind(err), Message: err.Error()})
}

// errorKind maps pipeline errors onto the control channel taxonomy.
func errorKind(err error) string {
	var loadErr *vision.ModelLoadError
	switch {
	case errors.Is(err, vision.ErrVocabularyUnsupported):
		return "vocabulary_unsupported"
	case errors.As(err, &loadErr):
		return "model_load_failure"
	case errors.Is(err, vision.ErrConfidenceRange), errors.Is(err, scenes.ErrNoClasses):
		return "bad_request"
	default:
		return "internal"
	}
}
