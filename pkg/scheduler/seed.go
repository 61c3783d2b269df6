package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/go-pkgz/lgr"

	"github.com/denius89/news-ai-bot-sub002/pkg/domain"
)

// RecentNews lists stored records newer than since
type RecentNews interface {
	Recent(ctx context.Context, since time.Time, limit int) ([]domain.NewsRecord, error)
}

// Seeder puts known items into the dedup index without checking them
type Seeder interface {
	Seed(title, text, url string)
}

// SeedDedup loads records of the last window into the dedup index so a restart
// does not re-admit news saved by the previous run
func SeedDedup(ctx context.Context, src RecentNews, d Seeder, window time.Duration, limit int) (int, error) {
	if window <= 0 {
		return 0, nil
	}
	recs, err := src.Recent(ctx, time.Now().Add(-window), limit)
	if err != nil {
		return 0, fmt.Errorf("load recent news: %w", err)
	}
	for _, r := range recs {
		d.Seed(r.Title, r.Content, r.Link)
	}
	lgr.Printf("[INFO] dedup seeded with %d records of last %v", len(recs), window)
	return len(recs), nil
}
