package catalog

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"
)

const defaultScanInterval = 5 * time.Second

// Poller drives background rescans: a fixed-interval ticker plus an
// optional trigger channel fed by the filesystem watcher. Owned by the
// gateway lifecycle; stops when its context is cancelled.
type Poller struct {
	scanner  *Scanner
	interval time.Duration
	trigger  <-chan struct{}
}

func NewPoller(scanner *Scanner, interval time.Duration, trigger <-chan struct{}) *Poller {
	if interval <= 0 {
		interval = defaultScanInterval
	}
	return &Poller{scanner: scanner, interval: interval, trigger: trigger}
}

// Start runs the poll loop. Call as a goroutine.
func (p *Poller) Start(ctx context.Context) {
	log.Info().Dur("interval", p.interval).Msg("template poller started")

	t := time.NewTicker(p.interval)
	defer t.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("template poller stopped")
			return
		case <-t.C:
			p.scanner.Scan()
		case <-p.trigger:
			p.scanner.Scan()
		}
	}
}
