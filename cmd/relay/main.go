package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/felixge/httpsnoop"
	"github.com/gorilla/mux"
	"github.com/rs/zerolog"
	"github.com/urfave/cli/v2"
	"golang.org/x/xerrors"

	"github.com/astromechza/pizza-relay/pkg/config"
	"github.com/astromechza/pizza-relay/pkg/journal"
	"github.com/astromechza/pizza-relay/pkg/logging"
	"github.com/astromechza/pizza-relay/pkg/relay"
	"github.com/astromechza/pizza-relay/pkg/store"
)

func main() {
	app := &cli.App{
		Name:  "relay",
		Usage: "keep the shared pizza order and relay it to every participant",
		Flags: append(logging.Flags(),
			&cli.StringFlag{Name: "config", Usage: "path to a config file"},
			&cli.IntFlag{Name: "port", Usage: "port to listen on, overrides SOCKETIO_PORT"},
			&cli.DurationFlag{Name: "stats-interval", Value: time.Minute, Usage: "how often to log connection and request counts, 0 to disable"},
		),
		Action: mainInner,
	}
	if err := app.Run(os.Args); err != nil {
		logging.Fallback().Err(err).Msg("relay failed")
		os.Exit(1)
	}
}

func mainInner(c *cli.Context) error {
	log := logging.FromContext(c)

	cfg, err := config.Load(c.String("config"))
	if err != nil {
		return err
	}
	if c.IsSet("port") {
		cfg.Port = c.Int("port")
	}

	sinks, err := openSinks(log, cfg)
	if err != nil {
		return err
	}
	recorder := journal.NewRecorder(log.With().Str("component", "journal").Logger(), cfg.JournalQueue, sinks...)

	st := store.New(cfg.Limits())
	r := relay.New(log.With().Str("component", "relay").Logger(), st, recorder, relay.Options{
		SendBuffer:     cfg.SendBuffer,
		AllowedOrigins: cfg.AllowedOrigins,
	})

	router := mux.NewRouter()
	router.Use(func(handler http.Handler) http.Handler {
		return http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
			m := httpsnoop.CaptureMetrics(handler, writer, request)
			log.Info().Str("method", request.Method).Str("url", request.URL.String()).Dur("duration", m.Duration).Int("status", m.Code).Msg("handled")
		})
	})
	router.Methods(http.MethodGet).Path("/socket").HandlerFunc(r.ServeWS)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	wg := new(sync.WaitGroup)

	wg.Add(1)
	go func() {
		defer wg.Done()
		recorder.Run(ctx)
	}()

	if interval := c.Duration("stats-interval"); interval > 0 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			t := time.NewTicker(interval)
			defer t.Stop()
			for {
				select {
				case <-t.C:
					s := r.Stats()
					log.Info().Int("connections", s.Connections).Int("requests", s.Requests).Uint64("journal_dropped", recorder.Dropped()).Msg("stats")
				case <-ctx.Done():
					return
				}
			}
		}()
	}

	httpServer := &http.Server{Addr: cfg.Addr(), Handler: router, ReadHeaderTimeout: 5 * time.Second}

	serveErr := make(chan error, 1)
	wg.Add(1)
	go func() {
		defer wg.Done()
		log.Info().Str("addr", cfg.Addr()).Msg("running pizza relay")
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- xerrors.Errorf("server listen failed: %w", err)
		}
	}()

	exit := make(chan os.Signal, 1) // we need to reserve to buffer size 1, so the notifier are not blocked
	signal.Notify(exit, syscall.SIGINT, syscall.SIGTERM)

	var result error
	select {
	case sig := <-exit:
		log.Info().Str("sig", sig.String()).Msg("signal caught")
	case result = <-serveErr:
	}
	cancel()
	_ = httpServer.Close()
	wg.Wait()
	return result
}

func openSinks(log zerolog.Logger, cfg *config.Config) ([]journal.Sink, error) {
	var sinks []journal.Sink
	if cfg.JournalPath != "" {
		db, err := journal.OpenSQLite(cfg.JournalPath)
		if err != nil {
			return nil, err
		}
		log.Info().Str("path", cfg.JournalPath).Msg("journaling to sqlite")
		sinks = append(sinks, db)
	}
	if len(cfg.KafkaBrokers) > 0 {
		k, err := journal.DialKafka(cfg.KafkaBrokers, cfg.KafkaTopic)
		if err != nil {
			for _, s := range sinks {
				_ = s.Close()
			}
			return nil, err
		}
		log.Info().Strs("brokers", cfg.KafkaBrokers).Str("topic", cfg.KafkaTopic).Msg("journaling to kafka")
		sinks = append(sinks, k)
	}
	return sinks, nil
}
