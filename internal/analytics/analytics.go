package analytics

import (
	"context"

	"codeberg.org/mutker/dustctl/internal/errors"
	"codeberg.org/mutker/dustctl/internal/logger"
)

type service struct {
	repo   Repository
	logger logger.Logger
}

// No-op implementation
type noopSink struct{}

// NewService returns the configured sink, or a no-op sink when disabled.
func NewService(cfg Config, log logger.Logger) (Sink, error) {
	errFactory := errors.New()

	if err := cfg.Validate(); err != nil {
		return nil, errFactory.Wrap(ErrInvalidConfig, err)
	}

	if !cfg.Enabled {
		log.Debug().Msg("Analytics disabled, using no-op sink")
		return Noop(), nil
	}

	repo, err := NewRepository(cfg, log)
	if err != nil {
		return nil, err
	}

	return NewServiceWithRepository(repo, log), nil
}

// NewServiceWithRepository wraps an existing repository.
func NewServiceWithRepository(repo Repository, log logger.Logger) Sink {
	return &service{repo: repo, logger: log}
}

func (s *service) AddRecord(ctx context.Context, record *Record) error {
	errFactory := errors.New()

	if record == nil || record.DustEndTS.Before(record.DustStartTS) {
		return errFactory.New(ErrInvalidRecord)
	}

	select {
	case <-ctx.Done():
		return errFactory.Wrap(ErrOperationTimeout, ctx.Err())
	default:
	}

	if err := s.repo.Store(ctx, record); err != nil {
		return err
	}

	ev := s.logger.Debug().
		Str("id", record.ID.String()).
		Dur("duration", record.Duration())
	if g, ok := record.Gradient(); ok {
		ev = ev.Float64("gradient", g)
	}
	ev.Msg("Dust cycle recorded")

	return nil
}

func (s *service) Close() error {
	return s.repo.Close()
}

// Noop returns a sink that drops every record.
func Noop() Sink {
	return noopSink{}
}

func (noopSink) AddRecord(_ context.Context, _ *Record) error {
	return nil
}

func (noopSink) Close() error {
	return nil
}
