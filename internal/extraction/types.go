package extraction

import (
	"time"

	"codeberg.org/mutker/dustctl/internal/config"
)

// Mode is the fan mode the controller last requested.
type Mode uint8

const (
	ModeOff Mode = iota
	ModeAuto
	ModeFixed
	ModeTrailing
)

// String returns a human-readable mode name.
func (m Mode) String() string {
	switch m {
	case ModeOff:
		return "off"
	case ModeAuto:
		return "auto"
	case ModeFixed:
		return "fixed"
	case ModeTrailing:
		return "trailing"
	default:
		return "unknown"
	}
}

// State is the single active fan mode. Percent is only meaningful for
// ModeFixed and ModeTrailing.
type State struct {
	Mode    Mode
	Percent int
}

// Reading is the latest dust sensor value. Present is false when the sensor
// event carried no value, which is distinct from a zero reading.
type Reading struct {
	Value      float64
	Present    bool
	ObservedAt time.Time
}

func (r Reading) valuePtr() *float64 {
	if !r.Present {
		return nil
	}
	v := r.Value
	return &v
}

// Config holds the extraction settings. It is fixed for the lifetime of a
// Controller.
type Config struct {
	ExtractionLimit        float64
	AutoModeTime           time.Duration
	SampleInterval         time.Duration
	TrailingSampleInterval time.Duration
	MaxStaleness           time.Duration
	RetryDelay             time.Duration
	ModeRetryDelay         time.Duration
}

const (
	DefaultSampleInterval         = 3 * time.Second
	DefaultTrailingSampleInterval = 1 * time.Second
	DefaultMaxStaleness           = 10 * time.Second
	DefaultRetryDelay             = 1 * time.Second
	DefaultModeRetryDelay         = 200 * time.Millisecond
)

// DefaultConfig returns the built-in timings with the given profile values.
func DefaultConfig(limit float64, autoModeTime time.Duration) Config {
	return Config{
		ExtractionLimit:        limit,
		AutoModeTime:           autoModeTime,
		SampleInterval:         DefaultSampleInterval,
		TrailingSampleInterval: DefaultTrailingSampleInterval,
		MaxStaleness:           DefaultMaxStaleness,
		RetryDelay:             DefaultRetryDelay,
		ModeRetryDelay:         DefaultModeRetryDelay,
	}
}

// NewConfig combines the daemon configuration with the active profile.
func NewConfig(cfg *config.Config, profiles config.ProfileSource) (Config, error) {
	profile, err := profiles.ActiveProfile()
	if err != nil {
		return Config{}, err
	}

	return Config{
		ExtractionLimit:        profile.ExtractionLimit,
		AutoModeTime:           profile.AutoModeTime,
		SampleInterval:         cfg.SampleInterval,
		TrailingSampleInterval: cfg.TrailingSampleInterval,
		MaxStaleness:           cfg.MaxStaleness,
		RetryDelay:             cfg.RetryDelay,
		ModeRetryDelay:         cfg.ModeRetryDelay,
	}, nil
}

// Snapshot is a consistent read-only view of the controller.
type Snapshot struct {
	State          State
	Reading        Reading
	Trailing       bool
	AutoOffPending bool
	SampleInterval time.Duration
	ShuttingDown   bool
}
