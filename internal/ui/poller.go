package ui

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/GriffinCanCode/aptools/internal/shared/types"
)

// DefaultInterval is the refresh period of the status view.
const DefaultInterval = time.Second

var ErrNoState = errors.New("no state in response")

// StateSource fetches the current state of the watched page.
type StateSource interface {
	FetchState(ctx context.Context) (types.PageState, error)
}

// StateSourceFunc adapts a function to StateSource.
type StateSourceFunc func(ctx context.Context) (types.PageState, error)

func (f StateSourceFunc) FetchState(ctx context.Context) (types.PageState, error) {
	return f(ctx)
}

// Poller refreshes the status view on a fixed interval.
type Poller struct {
	source     StateSource
	renderer   Renderer
	targetHost string
	interval   time.Duration
	logger     *zap.Logger
}

// NewPoller creates a poller. An empty targetHost accepts any page.
func NewPoller(source StateSource, renderer Renderer, targetHost string) *Poller {
	return &Poller{
		source:     source,
		renderer:   renderer,
		targetHost: targetHost,
		interval:   DefaultInterval,
		logger:     zap.NewNop(),
	}
}

// WithInterval sets the refresh period.
func (p *Poller) WithInterval(d time.Duration) *Poller {
	if d > 0 {
		p.interval = d
	}
	return p
}

// WithLogger sets the logger.
func (p *Poller) WithLogger(logger *zap.Logger) *Poller {
	if logger != nil {
		p.logger = logger
	}
	return p
}

// Refresh fetches the state once and renders it.
func (p *Poller) Refresh(ctx context.Context) error {
	return p.renderer.Render(p.status(ctx))
}

func (p *Poller) status(ctx context.Context) Status {
	ps, err := p.source.FetchState(ctx)
	if err != nil {
		p.logger.Debug("Error getting state", zap.Error(err))
		return NotRunning()
	}
	if !OnTarget(ps.URL, p.targetHost) {
		return NotOnTarget()
	}
	return Render(ps.State)
}

// Run renders immediately, then on every tick until ctx is done.
func (p *Poller) Run(ctx context.Context) error {
	if err := p.Refresh(ctx); err != nil {
		return err
	}

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if err := p.Refresh(ctx); err != nil {
				return err
			}
		}
	}
}
