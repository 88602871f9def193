package main

import (
	"github.com/pkg/errors"
	"github.com/sony/gobreaker"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/askiada/go-pipeline-services/internal/config"
	"github.com/askiada/go-pipeline-services/internal/textsteps"
	"github.com/askiada/go-pipeline-services/pkg/pipeline"
	"github.com/askiada/go-pipeline-services/pkg/pipeline/model"
	"github.com/askiada/go-pipeline-services/pkg/provider"
	"github.com/askiada/go-pipeline-services/pkg/registry"
	"github.com/askiada/go-pipeline-services/pkg/remote"
	"github.com/askiada/go-pipeline-services/pkg/report"
)

const remoteStepName = "remote"

// newFactory resolves every configured step once, the returned factory only assembles
// the pipeline.
func newFactory(cfg config.Config, instr model.Instrumentation, logger *zap.Logger) (provider.Factory[string], error) {
	reg := registry.New[string]()

	err := textsteps.Register(reg)
	if err != nil {
		return nil, errors.Wrap(err, "unable to register text steps")
	}

	actions, err := reg.ResolveAll(cfg.Steps...)
	if err != nil {
		return nil, errors.Wrap(err, "unable to resolve steps")
	}

	remoteAction, err := newRemote(cfg.Remote, logger)
	if err != nil {
		return nil, err
	}

	reportAction := report.LogAction[string](logger.Named("report"))

	return func() (*pipeline.Pipeline[string], error) {
		b := pipeline.NewBuilder[string](cfg.Name).
			ShortCircuitOnError(cfg.ShortCircuitOnError).
			MaxJumps(cfg.MaxJumps).
			Instrumentation(instr).
			Logger(logger)

		for i, action := range actions {
			b = b.Main(action, pipeline.StepName(cfg.Steps[i]))
		}

		if remoteAction != nil {
			b = b.Main(remoteAction, pipeline.StepName(remoteStepName))
		}

		return b.Post(reportAction, pipeline.StepName("report")).Build()
	}, nil
}

func newRemote(cfg config.Remote, logger *zap.Logger) (pipeline.Action[string], error) {
	if !cfg.Enabled() {
		return nil, nil //nolint:nilnil
	}

	opts := []remote.Option{
		remote.WithLogger(logger.Named(remoteStepName)),
		remote.WithCircuitBreaker(gobreaker.NewCircuitBreaker(gobreaker.Settings{
			Name: remoteStepName,
			OnStateChange: func(name string, from, to gobreaker.State) {
				logger.Warn("remote circuit breaker state changed",
					zap.String("name", name), zap.Stringer("from", from), zap.Stringer("to", to))
			},
		})),
	}

	if cfg.RPS > 0 {
		opts = append(opts, remote.WithRateLimiter(rate.NewLimiter(rate.Limit(cfg.RPS), 1)))
	}

	action, err := remote.New[string](remote.Spec{
		Endpoint: cfg.URL,
		Method:   cfg.Method,
		Timeout:  cfg.Timeout,
		Retries:  cfg.Retries,
		Backoff:  cfg.Backoff,
	}, remote.StringCodec{}, opts...)
	if err != nil {
		return nil, errors.Wrap(err, "unable to create remote step")
	}

	return action, nil
}
