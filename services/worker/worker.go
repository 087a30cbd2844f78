// Package worker schedules the watch crawls and fans new listings out to the
// configured publishers.
package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/griguv/pricewatch/internal/watch"
	"github.com/griguv/pricewatch/logger"
	"github.com/griguv/pricewatch/pkg/errors"
	"github.com/griguv/pricewatch/services/publisher"
)

// errorNotifyEvery rate-limits error notifications per search so a persistent
// block does not flood the chats on every polling pass.
const errorNotifyEvery = 30 * time.Minute

// Worker runs the saved searches on the polling schedule and publishes new
// listings plus periodic heartbeat reports.
type Worker struct {
	ctx            context.Context
	searches       []*watch.Search
	publishers     []publisher.Publisher
	pollInterval   time.Duration
	reportInterval time.Duration
	log            *logger.Logger

	checks   atomic.Int64
	newItems atomic.Int64

	notifyMu   sync.Mutex
	lastNotify map[string]time.Time
}

// New creates a worker
func New(ctx context.Context, searches []*watch.Search, pubs []publisher.Publisher, pollInterval, reportInterval time.Duration) *Worker {
	return &Worker{
		ctx:            ctx,
		searches:       searches,
		publishers:     pubs,
		pollInterval:   pollInterval,
		reportInterval: reportInterval,
		log:            logger.ForWorker(),
		lastNotify:     make(map[string]time.Time),
	}
}

// Start runs the worker until the context is canceled. The first pass runs
// immediately so seen sets seed right away; subsequent passes and heartbeat
// reports run on the cron schedule.
func (w *Worker) Start() error {
	w.runSearches()

	c := cron.New()
	if _, err := c.AddFunc(fmt.Sprintf("@every %s", w.pollInterval), w.runSearches); err != nil {
		return errors.NewConfiguration("invalid poll interval", err)
	}
	if w.reportInterval > 0 {
		if _, err := c.AddFunc(fmt.Sprintf("@every %s", w.reportInterval), w.report); err != nil {
			return errors.NewConfiguration("invalid report interval", err)
		}
	}
	c.Start()

	<-w.ctx.Done()
	stopped := c.Stop()
	<-stopped.Done()
	return nil
}

// runSearches runs all the searches in parallel and then trims the streams
func (w *Worker) runSearches() {
	start := time.Now()

	var wg sync.WaitGroup
	for _, s := range w.searches {
		wg.Add(1)
		go func(s *watch.Search) {
			defer wg.Done()
			w.crawlAndPublish(s)
		}(s)
	}
	wg.Wait()

	for _, pub := range w.publishers {
		if err := pub.TrimStreams(); err != nil {
			logger.LogError("StreamTrimming", err, "failed to trim streams")
		}
	}
	w.log.Debug().Dur("elapsed", time.Since(start)).Msg("Polling pass finished")
}

// crawlAndPublish crawls one search and publishes its new listings
func (w *Worker) crawlAndPublish(s *watch.Search) {
	result, err := s.Crawl(w.ctx)
	w.checks.Add(1)
	if err != nil {
		logger.LogError(s.Name(), err, "crawl failed")
		w.notifyError(s, err)
		return
	}
	if result.Seeded {
		w.log.Info().
			Str("watch", s.Name()).
			Int("total", result.Total).
			Msg("Seen set seeded; first pass reports nothing")
		return
	}

	for _, item := range result.New {
		data, err := json.Marshal(item)
		if err != nil {
			logger.LogError(s.Name(), err, "failed to encode listing")
			continue
		}
		for _, pub := range w.publishers {
			if err := pub.Publish(s.Name(), data); err != nil {
				logger.LogError(s.Name(), err, "failed to publish listing")
			}
		}
	}
	w.newItems.Add(int64(len(result.New)))
}

// notifyError publishes a crawl failure to the publishers, at most once per
// search per rate-limit window.
func (w *Worker) notifyError(s *watch.Search, err error) {
	w.notifyMu.Lock()
	last, ok := w.lastNotify[s.Name()]
	if ok && time.Since(last) < errorNotifyEvery {
		w.notifyMu.Unlock()
		return
	}
	w.lastNotify[s.Name()] = time.Now()
	w.notifyMu.Unlock()

	msg := fmt.Sprintf("watch %q: %v", s.Name(), err)
	for _, pub := range w.publishers {
		if perr := pub.Publish("error", []byte(msg)); perr != nil {
			logger.LogError(s.Name(), perr, "failed to publish error notice")
		}
	}
}

// report publishes the heartbeat with counters since the previous report
func (w *Worker) report() {
	checks := w.checks.Swap(0)
	newItems := w.newItems.Swap(0)

	names := make([]string, 0, len(w.searches))
	for _, s := range w.searches {
		names = append(names, s.Name())
	}
	msg := fmt.Sprintf("pricewatch alive: %d checks, %d new listings across [%s]",
		checks, newItems, strings.Join(names, ", "))

	for _, pub := range w.publishers {
		if err := pub.Publish("report", []byte(msg)); err != nil {
			logger.LogError("Heartbeat", err, "failed to publish report")
		}
	}
	w.log.Info().Int64("checks", checks).Int64("new", newItems).Msg("Heartbeat sent")
}
