package app

import (
	"context"

	"github.com/rs/zerolog/log"

	"github.com/dokzlo13/obstrigger/internal/config"
	"github.com/dokzlo13/obstrigger/internal/obs"
	"github.com/dokzlo13/obstrigger/internal/trigger"
)

// OBSService wraps the OBS session and the OBS trigger handler.
type OBSService struct {
	cfg *config.Config

	Session *obs.Session
	Handler *trigger.OBSHandler
}

// NewOBSService creates the session and handler without connecting.
func NewOBSService(cfg *config.Config) *OBSService {
	session := obs.NewSession(SessionConfig(cfg))
	return &OBSService{
		cfg:     cfg,
		Session: session,
		Handler: trigger.NewOBSHandler(session),
	}
}

// SessionConfig maps application config onto session settings.
func SessionConfig(cfg *config.Config) obs.Config {
	sc := obs.DefaultConfig()
	sc.Address = cfg.OBS.Address
	sc.Password = cfg.OBS.Password
	sc.RequestTimeout = cfg.OBS.RequestTimeout.Duration()
	sc.MinBackoff = cfg.OBS.MinRetryBackoff.Duration()
	sc.MaxBackoff = cfg.OBS.MaxRetryBackoff.Duration()
	sc.Multiplier = cfg.OBS.RetryMultiplier
	sc.MaxReconnects = cfg.OBS.MaxReconnects
	sc.KeepAlive = cfg.OBS.KeepAlive.Duration()
	return sc
}

// StartBackground runs the session and the event matcher.
// Matched triggers are reported to dispatcher.
func (s *OBSService) StartBackground(ctx context.Context, dispatcher trigger.Dispatcher, onFatalError func(error)) {
	matcher := s.Handler.Matcher(dispatcher)
	go matcher.Run(ctx, s.Session.Events())

	go func() {
		if err := s.Session.Run(ctx); err != nil {
			log.Error().Err(err).Msg("OBS session terminated")
			if onFatalError != nil {
				onFatalError(err)
			}
		}
	}()
}
