// Command server wires the persistence layer against real backends and
// exposes an operational surface: health, readiness, metrics, read-only
// support queries and an event-pipeline smoke check. Business transport is
// out of scope; domain callers embed the repositories and units of work
// directly.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"lendit/internal/events"
	"lendit/internal/listing"
	"lendit/internal/platform/config"
	"lendit/internal/platform/httpserver"
	"lendit/internal/platform/logger"
	"lendit/internal/platform/metrics"
	"lendit/internal/platform/mongodb"
	"lendit/internal/readmodel"
	"lendit/internal/reservation"
	mongostore "lendit/pkg/docstore/mongodb"
	"lendit/pkg/domain"
)

func main() {
	cfg := config.FromEnv()
	log := logger.New("lendit", cfg.LogLevel)

	if err := run(cfg, log); err != nil {
		log.Fatal().Err(err).Msg("server exited")
	}
}

func run(cfg config.Config, log zerolog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	client, err := mongodb.New(ctx, cfg)
	if err != nil {
		return err
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := client.Close(shutdownCtx); err != nil {
			log.Error().Err(err).Msg("mongo disconnect failed")
		}
	}()

	store := mongostore.NewStore(client.Client, cfg.MongoDB)
	m := metrics.New()

	remote, closeRemote, err := crossBus(cfg, log)
	if err != nil {
		return err
	}
	defer closeRemote()

	local := events.NewInProcess(log)
	local.Register("*", func(_ context.Context, e domain.Event) {
		log.Debug().Str("event", e.EventName()).Str("aggregateId", e.AggregateID()).Msg("event dispatched")
	})
	dispatcher := events.NewDispatcher(local, remote, log, m)

	// The ops binary holds no caller passport; support queries run
	// unattributed.
	var passport domain.Passport
	listingReads := listing.NewReadRepository(store, passport, log, m)
	reservationReads := reservation.NewReadRepository(store, passport, log, m)

	router := chi.NewRouter()
	router.Use(middleware.Recoverer)
	router.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	router.Get("/readyz", func(w http.ResponseWriter, r *http.Request) {
		if err := client.Health(r.Context()); err != nil {
			http.Error(w, "mongo unreachable", http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
	})
	router.Handle("/metrics", promhttp.Handler())

	router.Get("/ops/listings", func(w http.ResponseWriter, r *http.Request) {
		page, err := listingReads.GetPaged(r.Context(), queryFrom(r))
		writePage(w, log, page, err)
	})
	router.Get("/ops/reservations", func(w http.ResponseWriter, r *http.Request) {
		q := queryFrom(r)
		if sharer := r.URL.Query().Get("sharer"); sharer != "" {
			page, err := reservationReads.GetPagedBySharer(r.Context(), sharer, q)
			writePage(w, log, page, err)
			return
		}
		page, err := reservationReads.GetPaged(r.Context(), q)
		writePage(w, log, page, err)
	})

	// Smoke check for the event pipeline: pushes one synthetic event through
	// both buses so deployments can verify broker connectivity.
	router.Post("/ops/events/ping", func(w http.ResponseWriter, r *http.Request) {
		dispatcher.DispatchAll(r.Context(), []domain.Event{
			domain.NewBaseEvent("ops.ping", "ops"),
		})
		w.WriteHeader(http.StatusAccepted)
	})

	srv := httpserver.New(cfg.Addr, router)

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", cfg.Addr).Msg("server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	log.Info().Msg("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

// crossBus builds the configured cross-process publisher. "none" disables
// cross-process dispatch; events are still fanned out in process.
func crossBus(cfg config.Config, log zerolog.Logger) (events.Publisher, func(), error) {
	switch cfg.CrossBus {
	case "kafka":
		k, err := events.NewKafka(cfg.KafkaBrokers, cfg.KafkaTopic)
		if err != nil {
			return nil, nil, err
		}
		return k, k.Close, nil
	case "redis":
		r, err := events.NewRedis(cfg.RedisURL, cfg.EventChannel)
		if err != nil {
			return nil, nil, err
		}
		return r, func() {
			if err := r.Close(); err != nil {
				log.Error().Err(err).Msg("redis close failed")
			}
		}, nil
	default:
		return nil, func() {}, nil
	}
}

func queryFrom(r *http.Request) readmodel.Query {
	v := r.URL.Query()
	q := readmodel.Query{
		SearchText: v.Get("search"),
		SortBy:     v.Get("sort"),
	}
	q.Page, _ = strconv.Atoi(v.Get("page"))
	q.PageSize, _ = strconv.Atoi(v.Get("pageSize"))
	if statuses := v.Get("status"); statuses != "" {
		q.Statuses = strings.Split(statuses, ",")
	}
	return q
}

func writePage(w http.ResponseWriter, log zerolog.Logger, page any, err error) {
	if err != nil {
		log.Error().Err(err).Msg("support query failed")
		http.Error(w, "query failed", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(page); err != nil {
		log.Error().Err(err).Msg("encode response")
	}
}
