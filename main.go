package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/joho/godotenv"

	"github.com/griguv/pricewatch/config"
	"github.com/griguv/pricewatch/internal/compare"
	"github.com/griguv/pricewatch/internal/currency"
	"github.com/griguv/pricewatch/internal/dedup"
	"github.com/griguv/pricewatch/internal/fetcher"
	"github.com/griguv/pricewatch/internal/metrics"
	"github.com/griguv/pricewatch/internal/resilience"
	"github.com/griguv/pricewatch/internal/watch"
	"github.com/griguv/pricewatch/logger"
	"github.com/griguv/pricewatch/services/cache"
	"github.com/griguv/pricewatch/services/proxy"
	"github.com/griguv/pricewatch/services/publisher"
	"github.com/griguv/pricewatch/services/worker"
)

func main() {
	checkURL := flag.String("check", "", "compare one product URL across countries and exit")
	flag.Parse()

	// Load environment variables
	godotenv.Load()

	// Initialize logger first
	logger.Init()
	log := logger.Default

	// Load and validate configuration
	cfg := config.LoadConfig()
	if err := cfg.Validate(); err != nil {
		log.Fatal().Err(err).Msg("Invalid configuration")
	}

	log.Info().
		Str("environment", cfg.Environment).
		Dur("poll_interval", cfg.PollInterval).
		Msg("Starting application")

	// Set up context with cancellation
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Set up signal handling
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	m := metrics.New()

	services, err := initializeServices(ctx, &cfg, m)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize services")
	}
	defer services.Cleanup()

	// One-shot mode: compare a product URL across the configured countries.
	if *checkURL != "" {
		runCheck(ctx, &cfg, services, m, *checkURL)
		return
	}

	searches, err := createSearches(&cfg, services, m)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create searches")
	}
	if len(searches) == 0 {
		log.Fatal().Msg("No watch URLs configured; set WATCH_URLS or use -check")
	}
	log.Info().Int("search_count", len(searches)).Msg("Created searches")

	opsServer := startOpsServer(cfg.OpsAddr, m)
	defer opsServer.Shutdown(context.Background())

	// Create and start worker
	w := worker.New(ctx, searches, services.Publishers, cfg.PollInterval, cfg.ReportInterval)

	workerDone := make(chan error, 1)
	go func() {
		log.Info().Msg("Starting price watch worker")
		workerDone <- w.Start()
	}()

	// Wait for shutdown signal or worker error
	select {
	case sig := <-sigChan:
		log.Info().
			Str("signal", sig.String()).
			Msg("Received shutdown signal")
		cancel()
		<-workerDone
	case err := <-workerDone:
		if err != nil {
			log.Error().Err(err).Msg("Worker exited with error")
		} else {
			log.Info().Msg("Worker exited normally")
		}
	}

	log.Info().Msg("Shutting down gracefully...")
}

// Services holds all the initialized services
type Services struct {
	Cache      cache.CacheService
	Fetcher    *resilience.Fetcher
	Converter  *currency.Converter
	Publishers []publisher.Publisher
	Seen       *dedup.Store
}

// Cleanup cleans up all services
func (s *Services) Cleanup() {
	for _, p := range s.Publishers {
		p.Close()
	}
}

// initializeServices initializes all required services
func initializeServices(ctx context.Context, cfg *config.Config, m *metrics.Metrics) (*Services, error) {
	services := &Services{}

	// Cache backend: memcache when an address is configured, otherwise the
	// in-process store.
	if cfg.MemcacheAddr != "" {
		services.Cache = cache.NewMemcacheService(cfg.MemcacheAddr)
		logger.Info("Connected to Memcache at %s", cfg.MemcacheAddr)
	} else {
		services.Cache = cache.NewMemoryService(0)
		logger.Info("Using in-memory cache")
	}

	proxies := proxy.NewStaticSelector(cfg.ProxyByCountry, cfg.DefaultProxy)
	logger.Info("Proxy selector: %s", proxies.Describe())

	client := fetcher.NewClient(fetcher.Options{
		Timeout:      cfg.FetchTimeout,
		DebugHTML:    cfg.DebugHTML,
		DebugHTMLLen: cfg.DebugHTMLLen,
		DebugDumpDir: cfg.DebugDumpDir,
	})
	profiles := fetcher.NewProfileFactory(cfg.UserAgents)

	services.Fetcher = resilience.New(client, profiles, proxies, services.Cache, resilience.Config{
		MaxAttempts:  cfg.MaxAttempts,
		BaseDelay:    cfg.BaseDelay,
		BackoffCap:   cfg.BackoffCap,
		Cooldown:     cfg.Cooldown,
		DomainMinGap: cfg.DomainMinGap,
	}, m)

	services.Converter = currency.NewConverter(services.Cache, cfg.RatesURL)
	services.Seen = dedup.NewStore(services.Cache, 0)

	redisPublisher := publisher.NewRedisPublisher(
		ctx,
		cfg.RedisAddr,
		cfg.RedisDB,
		cfg.RedisStream,
		cfg.RedisStreamCount,
		cfg.RedisStreamMaxLength,
	)
	services.Publishers = append(services.Publishers, redisPublisher)
	logger.Info("Connected to Redis at %s (DB: %d, Stream: %s)",
		cfg.RedisAddr, cfg.RedisDB, cfg.RedisStream)

	if cfg.TelegramToken != "" && len(cfg.TelegramChatIDs) > 0 {
		services.Publishers = append(services.Publishers,
			publisher.NewTelegramPublisher(cfg.TelegramAPIURL, cfg.TelegramToken, cfg.TelegramChatIDs))
		logger.Info("Telegram delivery enabled for %d chat(s)", len(cfg.TelegramChatIDs))
	}

	return services, nil
}

// createSearches builds one search per configured watch URL
func createSearches(cfg *config.Config, services *Services, m *metrics.Metrics) ([]*watch.Search, error) {
	searches := make([]*watch.Search, 0, len(cfg.WatchURLs))
	for i, rawURL := range cfg.WatchURLs {
		name := searchName(rawURL, i)
		s, err := watch.NewSearch(name, rawURL, cfg.PageCap, services.Fetcher, services.Seen, cfg.StripParams, m)
		if err != nil {
			return nil, fmt.Errorf("watch url %d: %w", i+1, err)
		}
		searches = append(searches, s)
	}
	return searches, nil
}

// searchName derives a readable name from the watch URL's host
func searchName(rawURL string, index int) string {
	u, err := url.Parse(rawURL)
	if err != nil || u.Hostname() == "" {
		return fmt.Sprintf("watch-%d", index+1)
	}
	return fmt.Sprintf("%s-%d", u.Hostname(), index+1)
}

// runCheck compares one product URL across the configured countries and
// prints the table.
func runCheck(ctx context.Context, cfg *config.Config, services *Services, m *metrics.Metrics, rawURL string) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Minute)
	defer cancel()

	comparer := compare.New(services.Fetcher, services.Converter, cfg.Countries, cfg.BaseCurrency, m)
	table := comparer.PricesAcross(ctx, rawURL)
	fmt.Print(compare.FormatTable(table, cfg.Countries))
}

// startOpsServer serves liveness and metrics endpoints
func startOpsServer(addr string, m *metrics.Metrics) *http.Server {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})
	r.Handle("/metrics", m.Handler())

	srv := &http.Server{Addr: addr, Handler: r}
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("ops server: %v", err)
		}
	}()
	logger.Info("Ops server listening on %s", addr)
	return srv
}
