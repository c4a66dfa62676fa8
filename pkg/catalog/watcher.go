package catalog

import (
	"context"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog/log"

	"github.com/tsyork/loanwatch-jasper-reports/pkg/types"
)

const watchDebounce = 500 * time.Millisecond

// Watcher turns filesystem events on the writable template directory
// into rescan triggers, so uploads and edits are picked up faster than
// the poll interval. Events are debounced; the interval poller remains
// the correctness backstop.
type Watcher struct {
	dir     string
	watcher *fsnotify.Watcher
	trigger chan struct{}
}

func NewWatcher(dir string) (*Watcher, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if err := fw.Add(dir); err != nil {
		fw.Close()
		return nil, err
	}

	return &Watcher{
		dir:     dir,
		watcher: fw,
		trigger: make(chan struct{}, 1),
	}, nil
}

// Trigger returns the channel the poller selects on
func (w *Watcher) Trigger() <-chan struct{} {
	return w.trigger
}

// Start runs the event loop. Call as a goroutine.
func (w *Watcher) Start(ctx context.Context) {
	defer w.watcher.Close()

	log.Info().Str("dir", w.dir).Msg("template watcher started")

	var timer *time.Timer
	fire := make(chan struct{}, 1)

	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if !strings.HasSuffix(event.Name, types.TemplateExtension) {
				continue
			}
			if timer == nil {
				timer = time.AfterFunc(watchDebounce, func() {
					select {
					case fire <- struct{}{}:
					default:
					}
				})
			} else {
				timer.Reset(watchDebounce)
			}
		case <-fire:
			timer = nil
			select {
			case w.trigger <- struct{}{}:
			default: // a rescan is already pending
			}
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			log.Warn().Err(err).Msg("template watcher error")
		}
	}
}
