// Package kafkasource publishes the messages of a Kafka topic to a worker engine.
package kafkasource

import (
	"context"
	"io"
	"sync/atomic"
	"time"

	"github.com/pkg/errors"
	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"github.com/askiada/go-pipeline-services/pkg/worker"
)

var (
	ErrNilReader    = errors.New("reader must be set")
	ErrNilPublisher = errors.New("publisher must be set")
	ErrNilDecoder   = errors.New("decoder must be set")
)

// Reader is the part of kafka.Reader used by the source.
type Reader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Publisher receives decoded values, worker.Engine implements it.
type Publisher[C any] interface {
	Publish(ctx context.Context, value C) error
}

// Decoder turns a message into a value.
type Decoder[C any] func(msg kafka.Message) (C, error)

// StringDecoder uses the message value as is.
func StringDecoder(msg kafka.Message) (string, error) {
	return string(msg.Value), nil
}

// Config is the consumer group configuration.
type Config struct {
	Topic   string
	GroupID string
	Brokers []string
}

// NewReader returns a consumer group reader with manual commits.
func NewReader(cfg Config) (*kafka.Reader, error) {
	if len(cfg.Brokers) == 0 || cfg.Topic == "" {
		return nil, errors.New("brokers and topic must be set")
	}

	return kafka.NewReader(kafka.ReaderConfig{
		Brokers:        cfg.Brokers,
		Topic:          cfg.Topic,
		GroupID:        cfg.GroupID,
		CommitInterval: 0,
		MinBytes:       1,
		MaxBytes:       10e6,
	}), nil
}

type Option[C any] func(s *Source[C])

func WithLogger[C any](logger *zap.Logger) Option[C] {
	return func(s *Source[C]) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithRetryDelay sets the wait after a failed fetch.
func WithRetryDelay[C any](delay time.Duration) Option[C] {
	return func(s *Source[C]) {
		s.retryDelay = delay
	}
}

// Source reads messages and publishes them. A message is committed once its value was
// accepted by the publisher, or when it cannot be decoded.
type Source[C any] struct {
	reader     Reader
	publisher  Publisher[C]
	decode     Decoder[C]
	logger     *zap.Logger
	retryDelay time.Duration
	published  atomic.Int64
	skipped    atomic.Int64
}

func New[C any](reader Reader, publisher Publisher[C], decode Decoder[C], opts ...Option[C]) (*Source[C], error) {
	switch {
	case reader == nil:
		return nil, ErrNilReader
	case publisher == nil:
		return nil, ErrNilPublisher
	case decode == nil:
		return nil, ErrNilDecoder
	}

	s := &Source[C]{
		reader:     reader,
		publisher:  publisher,
		decode:     decode,
		logger:     zap.NewNop(),
		retryDelay: time.Second,
	}

	for _, opt := range opts {
		opt(s)
	}

	return s, nil
}

// Run consumes until ctx is done, the reader is closed or the publisher stops.
func (s *Source[C]) Run(ctx context.Context) error {
	for {
		msg, err := s.reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, io.EOF) {
				return nil
			}

			s.logger.Warn("unable to fetch message", zap.Error(err))

			if sleep(ctx, s.retryDelay) != nil {
				return nil
			}

			continue
		}

		value, err := s.decode(msg)
		if err != nil {
			s.skipped.Add(1)
			s.logger.Warn("unable to decode message, skipping",
				zap.String("topic", msg.Topic), zap.Int("partition", msg.Partition),
				zap.Int64("offset", msg.Offset), zap.Error(err))
		} else {
			err = s.publisher.Publish(ctx, value)
			if err != nil {
				if ctx.Err() != nil || errors.Is(err, worker.ErrEngineStopped) {
					return nil
				}

				return errors.Wrapf(err, "unable to publish message at offset %d", msg.Offset)
			}

			s.published.Add(1)
		}

		err = s.reader.CommitMessages(ctx, msg)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}

			return errors.Wrapf(err, "unable to commit offset %d", msg.Offset)
		}
	}
}

// Published returns the number of published messages.
func (s *Source[C]) Published() int64 {
	return s.published.Load()
}

// Skipped returns the number of messages that could not be decoded.
func (s *Source[C]) Skipped() int64 {
	return s.skipped.Load()
}

func (s *Source[C]) Close() error {
	return errors.Wrap(s.reader.Close(), "unable to close reader")
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}

	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

var (
	_ Reader            = (*kafka.Reader)(nil)
	_ Publisher[string] = (*worker.Engine[string])(nil)
)
