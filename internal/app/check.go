package app

import (
	"context"

	"github.com/dokzlo13/obstrigger/internal/config"
	"github.com/dokzlo13/obstrigger/internal/controller"
	"github.com/dokzlo13/obstrigger/internal/eventbus"
	"github.com/dokzlo13/obstrigger/internal/trigger"
)

// Check loads definitions into a handler that is never connected and
// returns the resulting registry counts.
func Check(cfg *config.Config, defs []controller.Definition) (trigger.Stats, error) {
	svc := NewOBSService(cfg)

	bus := eventbus.New()
	defer bus.Close(context.Background())

	c := controller.New(bus, nil, svc.Handler)
	if err := c.Load(defs); err != nil {
		return trigger.Stats{}, err
	}
	return svc.Handler.Registry().Stats(), nil
}
