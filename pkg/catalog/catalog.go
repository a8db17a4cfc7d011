package catalog

import (
	"context"
	"errors"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/goliatone/go-formembed/pkg/form"
)

var (
	// ErrNotFound is returned when no record carries the requested id.
	ErrNotFound = errors.New("catalog: form not found")
	// ErrDuplicate is returned when creating a record whose id is taken.
	ErrDuplicate = errors.New("catalog: form already exists")
)

// Catalog lists, reads and writes form records.
type Catalog interface {
	ListForms(ctx context.Context) ([]form.Record, error)
	GetForm(ctx context.Context, id string) (form.Record, error)
	CreateForm(ctx context.Context, record form.Record) (form.Record, error)
	UpdateForm(ctx context.Context, record form.Record) (form.Record, error)
}

// Clock returns the current time. Tests substitute a fixed clock.
type Clock func() time.Time

// Option customises Memory and Bolt catalogs.
type Option func(*options)

type options struct {
	clock  Clock
	logger *zap.Logger
	seed   []form.Record
}

func defaultOptions() options {
	return options{
		clock:  time.Now,
		logger: zap.NewNop(),
	}
}

// WithClock overrides the clock used to stamp LastModified.
func WithClock(clock Clock) Option {
	return func(o *options) {
		if clock != nil {
			o.clock = clock
		}
	}
}

// WithLogger attaches a logger.
func WithLogger(logger *zap.Logger) Option {
	return func(o *options) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithSeed inserts records that are not already present when the catalog
// opens.
func WithSeed(records ...form.Record) Option {
	return func(o *options) {
		o.seed = append(o.seed, records...)
	}
}

// DefaultSeed returns the sample catalog shown by a fresh console.
func DefaultSeed() []form.Record {
	return []form.Record{
		{
			ID:           "test",
			Name:         "Contact Form",
			Path:         "test",
			Status:       form.StatusPublished,
			Submissions:  23,
			Views:        145,
			LastModified: day(2025, time.January, 6),
		},
		{
			ID:           "newsletter",
			Name:         "Newsletter Signup",
			Path:         "newsletter",
			Status:       form.StatusPublished,
			Submissions:  67,
			Views:        289,
			LastModified: day(2025, time.January, 5),
		},
		{
			ID:           "feedback",
			Name:         "Customer Feedback",
			Path:         "feedback",
			Status:       form.StatusDraft,
			Submissions:  12,
			Views:        78,
			LastModified: day(2025, time.January, 4),
		},
	}
}

func day(year int, month time.Month, d int) time.Time {
	return time.Date(year, month, d, 0, 0, 0, 0, time.UTC)
}

// sortRecords orders records most recently modified first, then by id.
func sortRecords(records []form.Record) {
	sort.SliceStable(records, func(i, j int) bool {
		if !records[i].LastModified.Equal(records[j].LastModified) {
			return records[i].LastModified.After(records[j].LastModified)
		}
		return records[i].ID < records[j].ID
	})
}
