package analytics

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Sink receives one record per completed trailing-extraction cycle.
type Sink interface {
	AddRecord(ctx context.Context, record *Record) error
	Close() error
}

// Repository defines the interface for record storage
type Repository interface {
	Store(ctx context.Context, record *Record) error
	List(ctx context.Context, limit int) ([]Record, error)
	Close() error
}

// Record describes one trailing-extraction cycle. A nil dust value means the
// sensor had not reported a value at that point.
type Record struct {
	ID          uuid.UUID
	DustStart   *float64
	DustStartTS time.Time
	DustEnd     *float64
	DustEndTS   time.Time
}

// NewRecord stamps a fresh record with a random ID.
func NewRecord(dustStart *float64, startTS time.Time, dustEnd *float64, endTS time.Time) *Record {
	return &Record{
		ID:          uuid.New(),
		DustStart:   copyFloat(dustStart),
		DustStartTS: startTS,
		DustEnd:     copyFloat(dustEnd),
		DustEndTS:   endTS,
	}
}

// Duration is the time the fan ran at full speed after the job.
func (r *Record) Duration() time.Duration {
	return r.DustEndTS.Sub(r.DustStartTS)
}

// Gradient returns the dust decrease per second, if both ends are known and
// some time elapsed.
func (r *Record) Gradient() (float64, bool) {
	secs := r.Duration().Seconds()
	if r.DustStart == nil || r.DustEnd == nil || secs <= 0 {
		return 0, false
	}
	return (*r.DustStart - *r.DustEnd) / secs, true
}

func copyFloat(v *float64) *float64 {
	if v == nil {
		return nil
	}
	c := *v
	return &c
}
