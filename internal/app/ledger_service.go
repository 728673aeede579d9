package app

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/dokzlo13/obstrigger/internal/config"
	"github.com/dokzlo13/obstrigger/internal/ledger"
)

// LedgerService periodically removes ledger entries past retention.
type LedgerService struct {
	cfg    *config.Config
	ledger *ledger.Ledger
}

// NewLedgerService creates a new LedgerService.
func NewLedgerService(cfg *config.Config, l *ledger.Ledger) *LedgerService {
	return &LedgerService{cfg: cfg, ledger: l}
}

// Start begins the cleanup loop.
func (s *LedgerService) Start(ctx context.Context) {
	go s.run(ctx)
}

func (s *LedgerService) run(ctx context.Context) {
	// NewTicker panics on non-positive intervals
	interval := s.cfg.Ledger.CleanupInterval.Duration()
	if interval <= 0 {
		log.Warn().Dur("interval", interval).Msg("Ledger cleanup disabled, interval must be positive")
		return
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.cleanup()
		}
	}
}

// cleanup deletes entries older than the configured retention.
func (s *LedgerService) cleanup() {
	retention := time.Duration(s.cfg.Ledger.RetentionDays) * 24 * time.Hour
	deleted, err := s.ledger.DeleteOlderThan(retention)
	if err != nil {
		log.Error().Err(err).Msg("Failed to cleanup old ledger entries")
		return
	}
	if deleted > 0 {
		log.Info().Int64("deleted", deleted).Dur("retention", retention).Msg("Cleaned up old ledger entries")
	}
}
