// Command pipeline-worker cleans text lines with a pipeline. Lines are read from stdin or a
// Kafka topic, queued in a worker engine and the run reports can be stored in S3.
package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"

	"github.com/askiada/go-pipeline-services/internal/config"
	"github.com/askiada/go-pipeline-services/internal/graceful"
	"github.com/askiada/go-pipeline-services/pkg/pipeline"
	"github.com/askiada/go-pipeline-services/pkg/pipeline/drawer"
	"github.com/askiada/go-pipeline-services/pkg/pipeline/instrument/oteltrace"
	"github.com/askiada/go-pipeline-services/pkg/pipeline/instrument/prom"
	"github.com/askiada/go-pipeline-services/pkg/pipeline/instrument/zaplog"
	"github.com/askiada/go-pipeline-services/pkg/pipeline/measure"
	"github.com/askiada/go-pipeline-services/pkg/pipeline/model"
	"github.com/askiada/go-pipeline-services/pkg/provider"
	"github.com/askiada/go-pipeline-services/pkg/report"
	"github.com/askiada/go-pipeline-services/pkg/report/s3store"
	"github.com/askiada/go-pipeline-services/pkg/worker"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	logger, err := newLogger(cfg)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	defer logger.Sync() //nolint:errcheck

	err = run(cfg, logger)
	if err != nil {
		logger.Fatal("pipeline worker failed", zap.Error(err))
	}
}

func newLogger(cfg config.Config) (*zap.Logger, error) {
	zcfg := zap.NewProductionConfig()
	if cfg.LogDevelopment {
		zcfg = zap.NewDevelopmentConfig()
	}

	zcfg.Level = zap.NewAtomicLevelAt(cfg.LogLevel)

	logger, err := zcfg.Build()
	if err != nil {
		return nil, errors.Wrap(err, "unable to build logger")
	}

	return logger, nil
}

func run(cfg config.Config, logger *zap.Logger) error {
	ctx, cancel := graceful.Context(context.Background(), logger)
	defer cancel()

	promReg := prometheus.NewRegistry()
	promReg.MustRegister(collectors.NewGoCollector())

	promInstr, err := prom.New(promReg, "pipeline")
	if err != nil {
		return err
	}

	msr := measure.NewDefaultMeasure()
	instr := model.Combine(msr, promInstr, zaplog.New(logger.Named("runs")), oteltrace.New())

	factory, err := newFactory(cfg, instr, logger)
	if err != nil {
		return err
	}

	prv, err := provider.New(cfg.ProviderMode, factory, cfg.PoolSize, provider.WithLogger(logger))
	if err != nil {
		return errors.Wrap(err, "unable to create provider")
	}

	store, err := newStore(ctx, cfg.S3, logger)
	if err != nil {
		return err
	}

	engine, err := worker.New[string](cfg.Name, cfg.QueueCapacity, prv,
		worker.WithResultHandler(resultHandler(os.Stdout, store, logger)),
		worker.WithLogger[string](logger),
	)
	if err != nil {
		return errors.Wrap(err, "unable to start worker")
	}

	stopMetrics := serveMetrics(cfg.MetricsAddr, promReg, engine, logger)

	logger.Info("pipeline worker started",
		zap.String("pipeline", cfg.Name),
		zap.Stringer("provider", cfg.ProviderMode),
		zap.Strings("steps", cfg.Steps),
		zap.Bool("kafka", cfg.Kafka.Enabled()),
		zap.Bool("s3", store != nil),
	)

	published, inputErr := consume(ctx, cfg, engine, logger)

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer shutdownCancel()

	if ctx.Err() == nil {
		drain(shutdownCtx, engine, published)
	}

	err = engine.Shutdown(shutdownCtx)
	if err != nil {
		logger.Warn("worker did not stop in time", zap.Error(err))
	}

	stopMetrics(shutdownCtx)

	logger.Info("pipeline worker stopped",
		zap.Int64("published", published),
		zap.Int64("processed", engine.Processed()),
		zap.Int64("failed", engine.Failed()),
		zap.Duration("avg_run", msr.AVGRunDuration()),
	)

	if cfg.DrawFile != "" {
		err = draw(cfg.DrawFile, factory, msr)
		if err != nil {
			logger.Warn("unable to draw pipeline", zap.Error(err))
		}
	}

	return inputErr
}

func newStore(ctx context.Context, cfg config.S3, logger *zap.Logger) (*s3store.Store, error) {
	if !cfg.Enabled() {
		return nil, nil //nolint:nilnil
	}

	client, err := s3store.NewMinio(cfg.Endpoint, cfg.AccessKey, cfg.SecretKey, cfg.UseSSL)
	if err != nil {
		return nil, err
	}

	store, err := s3store.New(client, cfg.Bucket, s3store.WithPrefix(cfg.Prefix), s3store.WithLogger(logger))
	if err != nil {
		return nil, err
	}

	err = store.EnsureBucket(ctx)
	if err != nil {
		return nil, err
	}

	return store, nil
}

// resultHandler writes the value of every successful run to out. Failed runs are logged
// with their run id instead. Reports of every run that went through a pipeline are stored.
func resultHandler(out io.Writer, store *s3store.Store, logger *zap.Logger) worker.ResultHandler[string] {
	return func(ctx context.Context, item worker.Item[string], res pipeline.Result[string], err error) {
		if err != nil {
			logger.Warn("item failed", zap.Stringer("id", item.ID), zap.Error(err))
			return
		}

		if runErr := res.Err(); runErr != nil {
			logger.Warn("run failed",
				zap.Stringer("id", item.ID),
				zap.Stringer("run_id", res.RunID),
				zap.Bool("short_circuited", res.ShortCircuited),
				zap.Error(runErr),
			)
		} else {
			fmt.Fprintln(out, res.Context)
		}

		if store == nil {
			return
		}

		key, err := store.Save(ctx, report.FromResult(res))
		if err != nil {
			logger.Warn("unable to store report", zap.Stringer("run_id", res.RunID), zap.Error(err))
			return
		}

		logger.Debug("report stored", zap.String("key", key))
	}
}

// drain waits until every published item went through the engine.
func drain(ctx context.Context, engine *worker.Engine[string], published int64) {
	ticker := time.NewTicker(10 * time.Millisecond)
	defer ticker.Stop()

	for engine.Processed() < published {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func draw(fileName string, factory provider.Factory[string], msr measure.Measure) error {
	p, err := factory()
	if err != nil {
		return err
	}

	drw := drawer.NewDOTDrawer()

	err = drawer.Describe(drw, p.Steps())
	if err != nil {
		return err
	}

	err = drw.AddMeasure(msr)
	if err != nil {
		return err
	}

	return drw.WriteFile(fileName)
}
