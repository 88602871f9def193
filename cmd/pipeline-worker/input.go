package main

import (
	"bufio"
	"context"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/gorilla/mux"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/askiada/go-pipeline-services/internal/config"
	"github.com/askiada/go-pipeline-services/pkg/source/kafkasource"
	"github.com/askiada/go-pipeline-services/pkg/worker"
)

// countingPublisher counts the values accepted by the engine.
type countingPublisher struct {
	engine    *worker.Engine[string]
	published int64
}

func (p *countingPublisher) Publish(ctx context.Context, value string) error {
	err := p.engine.Publish(ctx, value)
	if err != nil {
		return err
	}

	p.published++

	return nil
}

// consume publishes every input value and returns how many were published.
func consume(ctx context.Context, cfg config.Config, engine *worker.Engine[string], logger *zap.Logger) (int64, error) {
	pub := &countingPublisher{engine: engine}

	if !cfg.Kafka.Enabled() {
		err := publishLines(ctx, os.Stdin, pub)

		return pub.published, err
	}

	reader, err := kafkasource.NewReader(kafkasource.Config{
		Brokers: cfg.Kafka.Brokers,
		Topic:   cfg.Kafka.Topic,
		GroupID: cfg.Kafka.GroupID,
	})
	if err != nil {
		return 0, err
	}

	src, err := kafkasource.New[string](reader, pub, kafkasource.StringDecoder,
		kafkasource.WithLogger[string](logger.Named("kafka")))
	if err != nil {
		return 0, err
	}

	defer func() {
		closeErr := src.Close()
		if closeErr != nil {
			logger.Warn("unable to close kafka reader", zap.Error(closeErr))
		}
	}()

	err = src.Run(ctx)

	return pub.published, err
}

// publishLines publishes every line of r until EOF or until ctx is done.
func publishLines(ctx context.Context, r io.Reader, pub kafkasource.Publisher[string]) error {
	lines := make(chan string)
	scanErr := make(chan error, 1)

	go func() {
		defer close(lines)

		scanner := bufio.NewScanner(r)
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-ctx.Done():
				return
			}
		}

		scanErr <- scanner.Err()
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case line, ok := <-lines:
			if !ok {
				select {
				case err := <-scanErr:
					return errors.Wrap(err, "unable to read input")
				default:
					return nil
				}
			}

			err := pub.Publish(ctx, line)
			if err != nil {
				if ctx.Err() != nil || errors.Is(err, worker.ErrEngineStopped) {
					return nil
				}

				return err
			}
		}
	}
}

// serveMetrics exposes the Prometheus registry and a health check on addr. It returns
// the function stopping the server, a no-op when addr is empty.
func serveMetrics(addr string, reg *prometheus.Registry, engine *worker.Engine[string], logger *zap.Logger) func(context.Context) {
	if addr == "" {
		return func(context.Context) {}
	}

	router := mux.NewRouter()
	router.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{})).Methods(http.MethodGet)
	router.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = io.WriteString(w, engine.Name()+" ok\n")
	}).Methods(http.MethodGet)

	srv := &http.Server{Addr: addr, Handler: router, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		err := srv.ListenAndServe()
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("metrics server failed", zap.Error(err))
		}
	}()

	return func(ctx context.Context) {
		err := srv.Shutdown(ctx)
		if err != nil {
			logger.Warn("unable to stop metrics server", zap.Error(err))
		}
	}
}
