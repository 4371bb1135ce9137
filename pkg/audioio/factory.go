package audioio

import (
	"fmt"
	"log/slog"
)

// NewSource creates an audio source for cfg.Backend.
func NewSource(cfg Config, logger *slog.Logger, opts ...MockSourceOption) (Source, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	if logger == nil {
		logger = slog.Default()
	}

	logger.Info("creating audio source",
		"backend", cfg.Backend,
		"sample_rate", cfg.SampleRate,
		"channels", cfg.Channels,
	)

	switch cfg.Backend {
	case BackendStation, "":
		return NewStationSource(cfg, logger), nil
	case BackendMock:
		return NewMockSource(cfg, logger, opts...), nil
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedBackend, cfg.Backend)
	}
}

// AvailableBackends lists the backends NewSource accepts.
func AvailableBackends() []Backend {
	return []Backend{BackendStation, BackendMock}
}
