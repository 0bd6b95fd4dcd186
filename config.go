package livelist

import (
	"github.com/cockroachdb/errors"
	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/livefir/livelist/internal/metrics"
)

// Config holds the coordinator settings. It is read once by New and never
// changed afterwards.
type Config struct {
	// AutomaticUpdate subscribes the coordinator to its source.
	AutomaticUpdate bool `yaml:"automatic_update" json:"automatic_update"`
	// AnimateChanges enables granular operations. It has no effect without
	// AutomaticUpdate.
	AnimateChanges bool `yaml:"animate_changes" json:"animate_changes"`
	// Grouping inserts a header row at every GroupingKey boundary.
	Grouping bool `yaml:"grouping" json:"grouping"`
	// GroupingKey is the source column the backing sequence is sorted by.
	GroupingKey string `yaml:"grouping_key" json:"grouping_key" validate:"required_if=Grouping true"`
}

// DefaultConfig returns a configuration with automatic, animated updates and
// no grouping.
func DefaultConfig() Config {
	return Config{
		AutomaticUpdate: true,
		AnimateChanges:  true,
	}
}

// Animated reports whether granular operations are enabled.
func (c Config) Animated() bool {
	return c.AutomaticUpdate && c.AnimateChanges
}

var configValidator = validator.New()

// Validate checks the configuration on its own, without a source.
func (c Config) Validate() error {
	if err := configValidator.Struct(c); err != nil {
		var fieldErrors validator.ValidationErrors
		if errors.As(err, &fieldErrors) && len(fieldErrors) > 0 {
			fe := fieldErrors[0]
			return configError("config field %s failed %q validation", fe.Field(), fe.Tag())
		}
		return errors.Mark(errors.Wrap(err, "invalid config"), ErrConfiguration)
	}
	return nil
}

// Option customises a Coordinator.
type Option func(*Coordinator)

// WithLogger sets the logger. The default discards everything.
func WithLogger(l *zap.Logger) Option {
	return func(c *Coordinator) {
		if l != nil {
			c.logger = l
		}
	}
}

// WithMetrics makes the coordinator record into an existing collector.
func WithMetrics(m *metrics.Collector) Option {
	return func(c *Coordinator) {
		if m != nil {
			c.metrics = m
		}
	}
}

// WithHeaderLabel replaces DefaultHeaderLabel.
func WithHeaderLabel(fn LabelFunc) Option {
	return func(c *Coordinator) {
		if fn != nil {
			c.label = fn
		}
	}
}
