package models

// SceneContext maps a named scene to the class vocabulary and detector model
// that should be active while the robot is in that scene.
type SceneContext struct {
	Name    string   `json:"name"`
	Classes []string `json:"classes"`
	Model   string   `json:"model"`
}
