package cache

import (
	"context"
	"time"

	"github.com/goccy/go-json"
	"github.com/sirupsen/logrus"

	"viral-music-bot/internal/models"
)

const statsKey = "stats:aggregate"

// StatsSource computes fresh aggregate stats.
type StatsSource interface {
	AggregateStats(ctx context.Context) (models.Stats, error)
}

// CachedStats serves aggregate stats from c for up to ttl. Cache failures
// are logged and fall through to the source.
type CachedStats struct {
	src StatsSource
	c   Cache
	ttl time.Duration
	log *logrus.Logger
}

func NewCachedStats(src StatsSource, c Cache, ttl time.Duration, log *logrus.Logger) *CachedStats {
	return &CachedStats{src: src, c: c, ttl: ttl, log: log}
}

func (s *CachedStats) AggregateStats(ctx context.Context) (models.Stats, error) {
	if s.ttl <= 0 {
		return s.src.AggregateStats(ctx)
	}

	b, ok, err := s.c.Get(ctx, statsKey)
	if err != nil {
		s.log.WithError(err).Warn("stats cache read failed")
	}
	if ok {
		var st models.Stats
		err := json.Unmarshal(b, &st)
		if err == nil {
			return st, nil
		}
		s.log.WithError(err).Warn("stats cache entry corrupt")
	}

	st, err := s.src.AggregateStats(ctx)
	if err != nil {
		return models.Stats{}, err
	}

	if b, err := json.Marshal(st); err == nil {
		if err := s.c.Set(ctx, statsKey, b, s.ttl); err != nil {
			s.log.WithError(err).Warn("stats cache write failed")
		}
	}
	return st, nil
}
