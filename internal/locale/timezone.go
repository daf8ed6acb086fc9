// Package locale resolves device locale and timezone through platform
// collaborators that are individually unreliable.
package locale

import (
	"log/slog"

	"github.com/asaskevich/govalidator"
)

// tzPattern accepts IANA-style identifiers ("America/Los_Angeles") and
// rejects the garbage some platforms hand back ("GMT+05:30 (IST)").
const tzPattern = `^[A-Za-z][A-Za-z0-9/_+-]+$`

// FallbackTimezone is the last resort when every source fails validation.
const FallbackTimezone = "UTC"

// Sources are the platform queries, in preference order. Any of them may be
// nil, error, or return an empty string.
type Sources struct {
	// Calendar asks the platform calendar API.
	Calendar func() (string, error)
	// Locale asks the locale API.
	Locale func() (string, error)
	// Raw returns the unvalidated timezone string the OS reports.
	Raw func() string
}

// Resolver applies the fallback chain with format validation at each step.
type Resolver struct {
	sources Sources
	logger  *slog.Logger
}

// Option configures the Resolver.
type Option func(*Resolver)

func WithLogger(logger *slog.Logger) Option {
	return func(r *Resolver) {
		r.logger = logger
	}
}

func NewResolver(sources Sources, opts ...Option) *Resolver {
	r := &Resolver{sources: sources, logger: slog.Default()}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Timezone walks calendar, then locale, then the raw string, validating each
// candidate; "UTC" is the final fallback. Never fails.
func (r *Resolver) Timezone() string {
	if r.sources.Calendar != nil {
		if tz, err := r.sources.Calendar(); err == nil && valid(tz) {
			return tz
		} else if err != nil {
			r.logger.Debug("calendar timezone query failed", "error", err)
		}
	}
	if r.sources.Locale != nil {
		if tz, err := r.sources.Locale(); err == nil && valid(tz) {
			return tz
		} else if err != nil {
			r.logger.Debug("locale timezone query failed", "error", err)
		}
	}
	if r.sources.Raw != nil {
		if tz := r.sources.Raw(); valid(tz) {
			return tz
		}
	}
	return FallbackTimezone
}

func valid(tz string) bool {
	return tz != "" && govalidator.Matches(tz, tzPattern)
}
