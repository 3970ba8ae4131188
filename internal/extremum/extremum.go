package extremum

import (
	"log/slog"
	"sync"

	"github.com/spatialplot/globeviz/internal/model"
)

// DefaultMax is used when a metric has no usable values, so height
// fractions downstream stay finite.
const DefaultMax = 1.0

// Source yields every recorded value for a metric across all years.
type Source interface {
	AllValues(metric model.Metric) ([]float64, error)
}

// Cache memoizes the all-time maximum per metric. Imported values never
// change, so each maximum is computed once and kept for the process
// lifetime. Safe for concurrent readers.
type Cache struct {
	m      sync.Mutex
	source Source
	logger *slog.Logger
	maxima map[model.Metric]float64
}

func NewCache(source Source, logger *slog.Logger) *Cache {
	return &Cache{
		source: source,
		logger: logger,
		maxima: make(map[model.Metric]float64),
	}
}

// Max returns the all-time maximum for the metric, scanning the source on
// first use. A source failure or an empty value set yields DefaultMax.
func (c *Cache) Max(metric model.Metric) float64 {
	c.m.Lock()
	defer c.m.Unlock()

	if max, ok := c.maxima[metric]; ok {
		return max
	}

	max := c.compute(metric)
	c.maxima[metric] = max
	return max
}

func (c *Cache) compute(metric model.Metric) float64 {
	values, err := c.source.AllValues(metric)
	if err != nil {
		c.logger.Debug("Global maximum unavailable, using default",
			"metric", metric,
			"error", err)
		return DefaultMax
	}
	if len(values) == 0 {
		c.logger.Debug("No values recorded for metric, using default maximum",
			"metric", metric)
		return DefaultMax
	}

	max := values[0]
	for _, v := range values[1:] {
		if v > max {
			max = v
		}
	}
	return max
}
