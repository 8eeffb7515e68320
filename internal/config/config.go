package config

import (
	"os"
	"path/filepath"
	"strconv"

	"github.com/joho/godotenv"
)

type Config struct {
	Port             int
	Password         string
	ModelDirectory   string // directory holding models.json and model files
	DefaultModel     string // model id activated at startup
	SceneDBPath      string // sqlite database with the scene_context table
	TaxonomyCSV      string // scene taxonomy used to seed the context table
	CaptureDevice    int    // webcam device index
	CaptureWidth     int
	CaptureHeight    int
	CaptureFPS       int     // producer cadence
	DetectIntervalMs int     // fast tier cadence
	SceneIntervalMs  int     // slow contextual tier cadence
	DetectTimeoutMs  int     // per-cycle watchdog for a single detect call
	StatusIntervalMs int     // detection_state broadcast cadence
	Confidence       float64 // initial confidence threshold
	LogDirectory     string
}

func Load() *Config {
	// .env is optional; real deployments set the environment directly.
	_ = godotenv.Load()

	return &Config{
		Port:             getEnvAsInt("PORT", 8080),
		Password:         getEnv("PASSWORD", "admin"),
		ModelDirectory:   getEnv("MODEL_DIR", filepath.Join(".", "models")),
		DefaultModel:     getEnv("DEFAULT_MODEL", "ssd_mobilenet"),
		SceneDBPath:      getEnv("SCENE_DB", filepath.Join(".", "data", "context.db")),
		TaxonomyCSV:      getEnv("TAXONOMY_CSV", filepath.Join(".", "data", "scene_taxonomy.csv")),
		CaptureDevice:    getEnvAsInt("CAPTURE_DEVICE", 0),
		CaptureWidth:     getEnvAsInt("CAPTURE_WIDTH", 640),
		CaptureHeight:    getEnvAsInt("CAPTURE_HEIGHT", 480),
		CaptureFPS:       getEnvAsInt("CAPTURE_FPS", 30),
		DetectIntervalMs: getEnvAsInt("DETECT_INTERVAL_MS", 100),
		SceneIntervalMs:  getEnvAsInt("SCENE_INTERVAL_MS", 5000),
		DetectTimeoutMs:  getEnvAsInt("DETECT_TIMEOUT_MS", 2000),
		StatusIntervalMs: getEnvAsInt("STATUS_INTERVAL_MS", 1000),
		Confidence:       getEnvAsFloat("CONFIDENCE", 0.35),
		LogDirectory:     getEnv("LOG_DIR", filepath.Join(".", "logs")),
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatValue, err := strconv.ParseFloat(value, 64); err == nil {
			return floatValue
		}
	}
	return defaultValue
}
