// signald is the betting signal engine daemon. It ingests live match
// telemetry, periodically generates betting signals through an LLM and
// serves the feed, history and analytics over HTTP.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"net/http"
	"os"
	ossignal "os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/jsales362-jpg/betsignal/pkg/config"
	"github.com/jsales362-jpg/betsignal/pkg/engine"
	"github.com/jsales362-jpg/betsignal/pkg/generator"
	"github.com/jsales362-jpg/betsignal/pkg/kv"
	"github.com/jsales362-jpg/betsignal/pkg/match"
	"github.com/jsales362-jpg/betsignal/pkg/metrics"
	"github.com/jsales362-jpg/betsignal/pkg/prematch"
	"github.com/jsales362-jpg/betsignal/pkg/scheduler"
	"github.com/jsales362-jpg/betsignal/pkg/signal"
	"github.com/jsales362-jpg/betsignal/pkg/telemetry"
)

var (
	httpAddr = flag.String("http", "", "HTTP listen address (overrides SERVER_PORT)")
	verbose  = flag.Bool("verbose", false, "Debug logging")
)

func main() {
	flag.Parse()

	logger := newLogger(*verbose)

	cfg, err := config.Load(logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("configuration failed")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	ossignal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	svc, err := newService(ctx, cfg, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("service init failed")
	}

	svc.scheduler.OnSignal(func(s signal.Signal) {
		logger.Info().
			Str("match", s.MatchName).
			Str("type", string(s.Type)).
			Float64("confidence", s.Confidence).
			Msg("signal generated")
	})
	svc.scheduler.OnError(func(err error) {
		logger.Error().Err(err).Msg("sync error")
	})

	if cfg.TelemetryURL != "" {
		if err := svc.consumer.Connect(ctx); err != nil {
			logger.Warn().Err(err).Msg("initial telemetry connect failed, will retry")
		}
	} else {
		logger.Warn().Msg("no TELEMETRY_URL configured, match store stays empty")
	}

	if err := svc.scheduler.Start(ctx); err != nil {
		logger.Fatal().Err(err).Msg("scheduler start failed")
	}

	addr := *httpAddr
	if addr == "" {
		addr = ":" + cfg.ServerPort
	}
	server := svc.newServer(addr)

	go func() {
		logger.Info().Str("addr", addr).Msg("HTTP server listening")
		if err := server.ListenAndServe(); err != http.ErrServerClosed {
			logger.Error().Err(err).Msg("HTTP server error")
		}
	}()

	<-sigCh
	logger.Info().Msg("shutting down")

	svc.scheduler.Stop()
	if svc.consumer != nil {
		svc.consumer.Close()
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("HTTP shutdown failed")
	}

	cancel()
	logger.Info().Msg("stopped")
}

func newLogger(verbose bool) zerolog.Logger {
	level := zerolog.InfoLevel
	if verbose {
		level = zerolog.DebugLevel
	}
	return zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}).
		Level(level).
		With().Timestamp().Logger()
}

type service struct {
	engine    *engine.Engine
	scheduler *scheduler.Scheduler
	consumer  *telemetry.Consumer
	metrics   *metrics.EngineMetrics
	log       zerolog.Logger
}

func newService(ctx context.Context, cfg *config.Config, logger zerolog.Logger) (*service, error) {
	store, err := newStore(ctx, cfg)
	if err != nil {
		return nil, err
	}

	matches := match.NewStore()
	feed := signal.NewFeed(cfg.FeedCapacity)
	ledger := signal.NewLedger(ctx, store, logger)
	saved := signal.NewSavedStore(ctx, store, logger)
	tracker := signal.NewTracker(ledger, matches, logger)

	m := metrics.NewEngineMetrics()
	tracker.OnSettle(func(status signal.ResolutionStatus) {
		m.ResolutionsTotal.WithLabelValues(strings.ToLower(string(status))).Inc()
	})

	clientCfg := generator.DefaultClientConfig()
	clientCfg.APIKey = cfg.GeminiAPIKey
	if cfg.GeminiBaseURL != "" {
		clientCfg.BaseURL = cfg.GeminiBaseURL
	}
	if cfg.GeminiModel != "" {
		clientCfg.Model = cfg.GeminiModel
	}
	pmCache := prematch.NewCache()
	gen := generator.New(generator.NewClient(clientCfg), logger, generator.WithPreMatchCache(pmCache))

	schedCfg := &scheduler.Config{
		Interval:  cfg.SyncInterval,
		BatchSize: cfg.BatchSize,
	}
	sched := scheduler.New(schedCfg, matches, gen, feed, ledger, tracker, m, logger)

	eng := engine.New(matches, feed, ledger, saved, gen, sched, m, logger)

	var consumer *telemetry.Consumer
	if cfg.TelemetryURL != "" {
		consumer = telemetry.NewConsumer(telemetry.DefaultConfig(cfg.TelemetryURL), matches, logger)
		consumer.OnOnline = func(online bool) {
			sched.SetOnline(ctx, online)
		}
		consumer.OnApply = func() {
			m.TrackedMatches.Set(float64(matches.Len()))
			keep := make(map[string]bool)
			for _, snap := range matches.List() {
				keep[snap.ID] = true
			}
			pmCache.Evict(keep)
		}
	}

	return &service{
		engine:    eng,
		scheduler: sched,
		consumer:  consumer,
		metrics:   m,
		log:       logger,
	}, nil
}

func newStore(ctx context.Context, cfg *config.Config) (kv.Store, error) {
	if cfg.RedisAddr != "" {
		return kv.NewRedisStore(ctx, cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB, "betsignal")
	}
	return kv.NewFileStore(cfg.DataDir)
}

func (s *service) newServer(addr string) *http.Server {
	mux := http.NewServeMux()

	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		s.writeJSON(w, map[string]string{"status": "ok"})
	})

	mux.HandleFunc("/status", func(w http.ResponseWriter, r *http.Request) {
		s.writeJSON(w, s.engine.Status())
	})

	mux.HandleFunc("/signals", func(w http.ResponseWriter, r *http.Request) {
		filter := signal.Filter{
			Type:       signal.Type(r.URL.Query().Get("type")),
			LeagueName: r.URL.Query().Get("league"),
		}
		if v := r.URL.Query().Get("minConfidence"); v != "" {
			if f, err := strconv.ParseFloat(v, 64); err == nil {
				filter.MinConfidence = f
			}
		}
		s.writeJSON(w, s.engine.ListLiveFeed(filter))
	})

	mux.HandleFunc("/history", func(w http.ResponseWriter, r *http.Request) {
		s.writeJSON(w, s.engine.ListHistory(queryInt64(r, "since")))
	})

	mux.HandleFunc("/stats", func(w http.ResponseWriter, r *http.Request) {
		s.writeJSON(w, s.engine.ComputeReport(queryInt64(r, "since")))
	})

	mux.HandleFunc("/stats/today", func(w http.ResponseWriter, r *http.Request) {
		s.writeJSON(w, s.engine.TodayReport())
	})

	mux.HandleFunc("/saved", func(w http.ResponseWriter, r *http.Request) {
		s.writeJSON(w, s.engine.ListSaved())
	})

	mux.HandleFunc("/saved/toggle", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		id := r.URL.Query().Get("id")
		if id == "" {
			http.Error(w, "missing id", http.StatusBadRequest)
			return
		}
		added, err := s.engine.ToggleSaved(r.Context(), id)
		if err != nil {
			http.Error(w, err.Error(), http.StatusNotFound)
			return
		}
		s.writeJSON(w, map[string]bool{"saved": added})
	})

	mux.HandleFunc("/matches", func(w http.ResponseWriter, r *http.Request) {
		if q := r.URL.Query().Get("q"); q != "" {
			s.writeJSON(w, s.engine.SearchMatches(q))
			return
		}
		s.writeJSON(w, s.engine.ListMatches())
	})

	mux.HandleFunc("/match", func(w http.ResponseWriter, r *http.Request) {
		snap, ok := s.engine.GetMatch(r.URL.Query().Get("id"))
		if !ok {
			http.Error(w, "match not found", http.StatusNotFound)
			return
		}
		s.writeJSON(w, snap)
	})

	mux.HandleFunc("/sync", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		matchID := r.URL.Query().Get("matchId")
		if matchID == "" {
			http.Error(w, "missing matchId", http.StatusBadRequest)
			return
		}
		if err := s.engine.SyncMatch(r.Context(), matchID); err != nil {
			http.Error(w, err.Error(), http.StatusConflict)
			return
		}
		s.writeJSON(w, map[string]string{"status": "synced"})
	})

	mux.HandleFunc("/tickets", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		tickets, err := s.engine.GenerateTickets(r.Context())
		if err != nil {
			http.Error(w, err.Error(), http.StatusServiceUnavailable)
			return
		}
		s.writeJSON(w, tickets)
	})

	mux.Handle("/metrics", s.metrics.Handler())

	return &http.Server{
		Addr:         addr,
		Handler:      mux,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
	}
}

func (s *service) writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.log.Warn().Err(err).Msg("response encode failed")
	}
}

func queryInt64(r *http.Request, key string) int64 {
	v := r.URL.Query().Get(key)
	if v == "" {
		return 0
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return 0
	}
	return n
}
