package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/denius89/news-ai-bot-sub002/pkg/domain"
)

// NewsRepository handles admitted news persistence
type NewsRepository struct {
	db *sqlx.DB
}

// newsSQL represents a news row for SQL operations
type newsSQL struct {
	UID         string     `db:"uid"`
	Title       string     `db:"title"`
	Content     string     `db:"content"`
	Link        string     `db:"link"`
	Source      string     `db:"source"`
	Category    string     `db:"category"`
	Subcategory string     `db:"subcategory"`
	PublishedAt *time.Time `db:"published_at"`
	Importance  float64    `db:"importance"`
	Credibility float64    `db:"credibility"`
	CreatedAt   time.Time  `db:"created_at"`
	UpdatedAt   time.Time  `db:"updated_at"`
}

// NewNewsRepository creates a new news repository
func NewNewsRepository(db *sqlx.DB) *NewsRepository {
	return &NewsRepository{db: db}
}

const upsertNewsQuery = `
	INSERT INTO news (
		uid, title, content, link, source, category, subcategory,
		published_at, importance, credibility, created_at, updated_at
	) VALUES (
		:uid, :title, :content, :link, :source, :category, :subcategory,
		:published_at, :importance, :credibility, :created_at, :updated_at
	)
	ON CONFLICT(uid) DO UPDATE SET
		content = excluded.content,
		source = excluded.source,
		category = excluded.category,
		subcategory = excluded.subcategory,
		published_at = COALESCE(excluded.published_at, news.published_at),
		importance = excluded.importance,
		credibility = excluded.credibility,
		updated_at = excluded.updated_at
`

// Upsert stores records keyed by uid. Records with the same uid update the existing row in place.
// Records with an empty uid get one computed from link and title.
func (r *NewsRepository) Upsert(ctx context.Context, records []domain.NewsRecord) error {
	if len(records) == 0 {
		return nil
	}
	now := time.Now().UTC()
	rows := make([]newsSQL, 0, len(records))
	for _, rec := range records {
		if rec.UID == "" {
			rec.UID = domain.NewsUID(rec.Link, rec.Title)
		}
		rows = append(rows, newsSQL{
			UID: rec.UID, Title: rec.Title, Content: rec.Content, Link: rec.Link, Source: rec.Source,
			Category: rec.Category, Subcategory: rec.Subcategory, PublishedAt: utcPtr(rec.PublishedAt),
			Importance: rec.Importance, Credibility: rec.Credibility, CreatedAt: now, UpdatedAt: now,
		})
	}

	err := inTx(ctx, r.db, func(tx *sqlx.Tx) error {
		stmt, err := tx.PrepareNamedContext(ctx, upsertNewsQuery)
		if err != nil {
			return fmt.Errorf("prepare upsert: %w", err)
		}
		defer stmt.Close()
		for i := range rows {
			if _, err := stmt.ExecContext(ctx, &rows[i]); err != nil {
				return fmt.Errorf("upsert news %s: %w", rows[i].UID, err)
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("upsert %d news: %w", len(rows), err)
	}
	return nil
}

// Get returns a record by uid
func (r *NewsRepository) Get(ctx context.Context, uid string) (*domain.NewsRecord, error) {
	var row newsSQL
	if err := r.db.GetContext(ctx, &row, "SELECT * FROM news WHERE uid = ?", uid); err != nil {
		return nil, fmt.Errorf("get news %s: %w", uid, err)
	}
	rec := row.toDomain()
	return &rec, nil
}

// Recent returns records created since the given time, newest first, at most limit rows
func (r *NewsRepository) Recent(ctx context.Context, since time.Time, limit int) ([]domain.NewsRecord, error) {
	var rows []newsSQL
	query := `SELECT * FROM news WHERE created_at >= ? ORDER BY created_at DESC LIMIT ?`
	if err := r.db.SelectContext(ctx, &rows, query, since.UTC(), limit); err != nil {
		return nil, fmt.Errorf("get recent news: %w", err)
	}
	res := make([]domain.NewsRecord, 0, len(rows))
	for _, row := range rows {
		res = append(res, row.toDomain())
	}
	return res, nil
}

// Count returns the number of stored records
func (r *NewsRepository) Count(ctx context.Context) (int, error) {
	var count int
	if err := r.db.GetContext(ctx, &count, "SELECT COUNT(*) FROM news"); err != nil {
		return 0, fmt.Errorf("count news: %w", err)
	}
	return count, nil
}

func (n newsSQL) toDomain() domain.NewsRecord {
	return domain.NewsRecord{
		UID: n.UID, Title: n.Title, Content: n.Content, Link: n.Link, Source: n.Source,
		Category: n.Category, Subcategory: n.Subcategory, PublishedAt: utcPtr(n.PublishedAt),
		Importance: n.Importance, Credibility: n.Credibility,
	}
}

func utcPtr(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	u := t.UTC()
	return &u
}
