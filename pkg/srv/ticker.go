package srv

import (
	"context"
	"sync"
	"time"

	"github.com/sandevgo/tuskrelay/pkg/log"
)

// tickerService runs fn every interval until shutdown.
type tickerService struct {
	name     string
	interval time.Duration
	fn       func(ctx context.Context) error

	stop chan struct{}
	once sync.Once
	wg   sync.WaitGroup
}

func NewTicker(name string, interval time.Duration, fn func(ctx context.Context) error) Service {
	return &tickerService{
		name:     name,
		interval: interval,
		fn:       fn,
		stop:     make(chan struct{}),
	}
}

func (t *tickerService) Start(ctx context.Context) error {
	t.wg.Add(1)
	defer t.wg.Done()

	logger := log.FromCtx(ctx).With().Str("service", t.name).Logger()
	logger.Info().Dur("interval", t.interval).Msg("starting ticker")

	ticker := time.NewTicker(t.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-t.stop:
			return nil
		case <-ticker.C:
			if err := t.fn(ctx); err != nil {
				logger.Error().Err(err).Msg("tick failed")
			}
		}
	}
}

func (t *tickerService) Shutdown(ctx context.Context) error {
	t.once.Do(func() { close(t.stop) })
	t.wg.Wait()
	return nil
}
