package app

import (
	"context"
	"fmt"
	"net/http"
	"path/filepath"
	"time"

	"robodash/internal/config"
	"robodash/internal/logger"
	"robodash/internal/repository/sqlite"
	"robodash/internal/routes"
	"robodash/internal/services"
	"robodash/internal/services/ai"
	"robodash/internal/services/capture"
	"robodash/internal/services/scenes"
	"robodash/internal/services/vision"
	"robodash/internal/services/websocket"
)

type App struct {
	config   *config.Config
	logger   *logger.Logger
	db       *sqlite.DB
	hub      *websocket.HubService
	pipeline *services.Pipeline
}

func NewApp() (*App, error) {
	cfg := config.Load()
	log := logger.New(cfg.LogDirectory)

	db, err := sqlite.New(cfg.SceneDBPath)
	if err != nil {
		return nil, fmt.Errorf("open scene database: %w", err)
	}

	catalog, err := ai.LoadCatalog(cfg.ModelDirectory)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("load model catalog: %w", err)
	}

	resolver, err := scenes.NewResolver(sqlite.NewSceneRepository(db), cfg.DefaultModel, log)
	if err != nil {
		db.Close()
		return nil, err
	}

	supported, err := catalog.Classes(cfg.DefaultModel)
	if err != nil {
		log.Warning("Default model %s has no class list, seeding without a filter: %v", cfg.DefaultModel, err)
		supported = nil
	}
	if err := resolver.EnsureSeeded(cfg.TaxonomyCSV, supported); err != nil {
		db.Close()
		return nil, fmt.Errorf("seed scene contexts: %w", err)
	}

	registry := vision.NewRegistry(ai.NewLoader(catalog, log), log)
	if err := registry.RequestModel(cfg.DefaultModel); err != nil {
		db.Close()
		return nil, err
	}

	buffer := vision.NewFrameBuffer()
	state := vision.NewStateStore(cfg.Confidence)
	hub := websocket.NewHubService(log)
	clock := vision.SystemClock{}

	scheduler := vision.NewScheduler(
		"detect",
		time.Duration(cfg.DetectIntervalMs)*time.Millisecond,
		time.Duration(cfg.DetectTimeoutMs)*time.Millisecond,
		buffer, state, registry, hub, clock, log,
	)

	watcher := newSceneWatcher(cfg, buffer, hub, clock, log)

	producer := newProducer(cfg, buffer, clock, log)

	pipeline := services.NewPipeline(cfg, buffer, state, registry, resolver,
		scheduler, watcher, producer, hub, clock, log)

	return &App{
		config:   cfg,
		logger:   log,
		db:       db,
		hub:      hub,
		pipeline: pipeline,
	}, nil
}

// newSceneWatcher wires the contextual classifier if its model files are
// present. The dashboard works without it, so a missing model is not fatal.
func newSceneWatcher(cfg *config.Config, buffer *vision.FrameBuffer, hub *websocket.HubService, clock vision.Clock, log *logger.Logger) *vision.SceneWatcher {
	classifier, err := ai.NewPlacesClassifier(
		filepath.Join(cfg.ModelDirectory, "deploy_places365.prototxt"),
		filepath.Join(cfg.ModelDirectory, "googlenet_places365.caffemodel"),
		filepath.Join(cfg.ModelDirectory, "categories_places365.txt"),
	)
	if err != nil {
		log.Warning("Scene classifier unavailable, suggestions disabled: %v", err)
		return nil
	}
	return vision.NewSceneWatcher(
		time.Duration(cfg.SceneIntervalMs)*time.Millisecond,
		classifier, buffer, hub, clock, log,
	)
}

// newProducer opens the webcam. A headless deployment without a camera still
// serves the API, it just never fills the frame buffer.
func newProducer(cfg *config.Config, buffer *vision.FrameBuffer, clock vision.Clock, log *logger.Logger) *capture.Producer {
	source, err := capture.OpenWebcam(cfg.CaptureDevice, cfg.CaptureWidth, cfg.CaptureHeight)
	if err != nil {
		log.Warning("Camera device %d unavailable: %v", cfg.CaptureDevice, err)
		return nil
	}
	interval := time.Second / time.Duration(cfg.CaptureFPS)
	return capture.NewProducer(source, buffer, interval, clock, log)
}

func (a *App) Run(ctx context.Context) error {
	go a.hub.Run(ctx)
	go a.pipeline.Run(ctx)

	router := routes.SetupRoutes(a.pipeline, a.hub, a.config, a.logger)

	fmt.Printf("🤖 Robot Detection Dashboard\n")
	fmt.Printf("📍 URL: http://localhost:%d\n", a.config.Port)
	fmt.Printf("🧠 Models: %s\n", a.config.ModelDirectory)
	fmt.Printf("🗺️  Scene DB: %s\n", a.config.SceneDBPath)

	server := &http.Server{Addr: fmt.Sprintf(":%d", a.config.Port), Handler: router}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		server.Shutdown(shutdownCtx)
	}()

	err := server.ListenAndServe()
	a.db.Close()
	if err == http.ErrServerClosed {
		return nil
	}
	return err
}

// Resolver exposes the scene resolver for maintenance commands.
func (a *App) Resolver() *scenes.Resolver {
	return a.pipeline.Resolver
}

// Config returns the loaded configuration.
func (a *App) Config() *config.Config {
	return a.config
}

// Close releases the database. Run closes it on shutdown already; Close is
// for commands that never call Run.
func (a *App) Close() error {
	return a.db.Close()
}
