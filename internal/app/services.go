package app

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/dokzlo13/obstrigger/internal/config"
	"github.com/dokzlo13/obstrigger/internal/controller"
	"github.com/dokzlo13/obstrigger/internal/db"
	"github.com/dokzlo13/obstrigger/internal/eventbus"
	"github.com/dokzlo13/obstrigger/internal/ledger"
	"github.com/dokzlo13/obstrigger/internal/script"
)

// Services is a container for all application services.
// It manages service initialization order and dependencies.
type Services struct {
	cfg *config.Config

	// Core infrastructure
	DB     *db.DB
	Ledger *ledger.Ledger
	Bus    *eventbus.Bus

	// Trigger routing
	OBS        *OBSService
	Controller *controller.Controller

	// High-level services
	Health  *HealthService
	Webhook *WebhookService
	Cleanup *LedgerService
}

// NewServices creates all services with proper dependency injection.
func NewServices(cfg *config.Config) (*Services, error) {
	s := &Services{cfg: cfg}

	// Initialize database
	database, err := db.Open(cfg.Database.Path)
	if err != nil {
		return nil, err
	}
	s.DB = database

	// Initialize ledger
	s.Ledger = ledger.New(database.DB)

	// Fired triggers run on the bus worker pool
	s.Bus = eventbus.NewWithConfig(cfg.EventBus.GetWorkers(), cfg.EventBus.GetQueueSize())

	// OBS session and handler
	s.OBS = NewOBSService(cfg)

	// Controller owns the handler tables
	s.Controller = controller.New(s.Bus, s.Ledger, s.OBS.Handler)

	defs, err := LoadDefinitions(cfg)
	if err != nil {
		s.Close()
		return nil, err
	}
	if err := s.Controller.Load(defs); err != nil {
		s.Close()
		return nil, err
	}
	stats := s.OBS.Handler.Registry().Stats()
	log.Info().
		Int("triggers", s.Controller.Triggers()).
		Int("scenes", stats.Scenes).
		Int("stream_started", stats.StreamStarted).
		Int("stream_stopped", stats.StreamStopped).
		Int("messages", stats.Messages).
		Msg("Triggers loaded")

	s.Health = NewHealthService(cfg, s.OBS.Session)
	s.Webhook = NewWebhookService(cfg, s.Controller)
	s.Cleanup = NewLedgerService(cfg, s.Ledger)

	return s, nil
}

// LoadDefinitions collects triggers declared in the config file and the Lua script.
// Config triggers come first.
func LoadDefinitions(cfg *config.Config) ([]controller.Definition, error) {
	defs := make([]controller.Definition, 0, len(cfg.Triggers))
	for _, t := range cfg.Triggers {
		defs = append(defs, controller.Definition{On: t.On, Actions: t.Actions})
	}

	if cfg.Script != "" {
		scripted, err := script.LoadFile(cfg.Script)
		if err != nil {
			return nil, fmt.Errorf("load script %s: %w", cfg.Script, err)
		}
		defs = append(defs, scripted...)
	}

	return defs, nil
}

// Start starts all services in the correct order.
// The onFatalError callback is called when a fatal error occurs (e.g., max reconnects exceeded).
func (s *Services) Start(ctx context.Context, onFatalError func(error)) error {
	// Trigger runner must be subscribed before events can match
	s.Controller.Start(ctx)

	s.OBS.StartBackground(ctx, s.Controller, onFatalError)
	s.Health.Start(ctx)
	s.Webhook.Start(ctx)
	s.Cleanup.Start(ctx)

	return nil
}

// Stop gracefully stops all services.
func (s *Services) Stop() error {
	s.Close()
	return nil
}

// Close releases all resources.
func (s *Services) Close() {
	if s.Bus != nil {
		ctx, cancel := context.WithTimeout(context.Background(), s.cfg.GetShutdownTimeout())
		s.Bus.Close(ctx)
		cancel()
	}
	if s.DB != nil {
		s.DB.Close()
	}
}
