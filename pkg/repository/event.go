package repository

import (
	"context"
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/jmoiron/sqlx"

	"github.com/denius89/news-ai-bot-sub002/pkg/domain"
)

// EventRepository handles collected events persistence
type EventRepository struct {
	db *sqlx.DB
	sb sq.StatementBuilderType
}

// eventSQL represents an event row for SQL operations
type eventSQL struct {
	UniqueHash  string      `db:"unique_hash"`
	Title       string      `db:"title"`
	Category    string      `db:"category"`
	Subcategory string      `db:"subcategory"`
	StartsAt    time.Time   `db:"starts_at"`
	EndsAt      *time.Time  `db:"ends_at"`
	Source      string      `db:"source"`
	Link        string      `db:"link"`
	Importance  float64     `db:"importance"`
	Description string      `db:"description"`
	Location    string      `db:"location"`
	Organizer   string      `db:"organizer"`
	Status      string      `db:"status"`
	Metadata    metadataSQL `db:"metadata"`
	CreatedAt   time.Time   `db:"created_at"`
	UpdatedAt   time.Time   `db:"updated_at"`
}

// metadataSQL is a free-form JSON object for SQL operations
type metadataSQL map[string]any

// Value implements driver.Valuer for database storage
func (m metadataSQL) Value() (driver.Value, error) {
	if m == nil {
		return "{}", nil
	}
	b, err := json.Marshal(map[string]any(m))
	if err != nil {
		return nil, fmt.Errorf("marshal metadata: %w", err)
	}
	return string(b), nil
}

// Scan implements sql.Scanner for database retrieval
func (m *metadataSQL) Scan(value interface{}) error {
	var data []byte
	switch v := value.(type) {
	case []byte:
		data = v
	case string:
		data = []byte(v)
	default:
		*m = metadataSQL{}
		return nil
	}
	res := metadataSQL{}
	if err := json.Unmarshal(data, &res); err != nil {
		return fmt.Errorf("unmarshal metadata: %w", err)
	}
	*m = res
	return nil
}

var eventColumns = []string{
	"unique_hash", "title", "category", "subcategory", "starts_at", "ends_at", "source", "link",
	"importance", "description", "location", "organizer", "status", "metadata", "created_at", "updated_at",
}

const eventConflictClause = `ON CONFLICT(unique_hash) DO UPDATE SET
	category = excluded.category,
	subcategory = excluded.subcategory,
	ends_at = excluded.ends_at,
	link = excluded.link,
	importance = excluded.importance,
	description = excluded.description,
	location = excluded.location,
	organizer = excluded.organizer,
	status = excluded.status,
	metadata = excluded.metadata,
	updated_at = excluded.updated_at`

// eventBatchSize keeps the number of bound parameters well under SQLite limits
const eventBatchSize = 50

// NewEventRepository creates a new event repository
func NewEventRepository(db *sqlx.DB) *EventRepository {
	return &EventRepository{db: db, sb: sq.StatementBuilder.PlaceholderFormat(sq.Question)}
}

// Upsert stores events keyed by unique_hash, missing hashes are computed from title, start and source
func (r *EventRepository) Upsert(ctx context.Context, events []domain.EventRecord) error {
	if len(events) == 0 {
		return nil
	}
	now := time.Now().UTC()
	err := inTx(ctx, r.db, func(tx *sqlx.Tx) error {
		for start := 0; start < len(events); start += eventBatchSize {
			end := min(start+eventBatchSize, len(events))
			ins := r.sb.Insert("events").Columns(eventColumns...)
			seen := map[string]bool{}
			for _, ev := range events[start:end] {
				if ev.UniqueHash == "" {
					ev.UniqueHash = domain.EventHash(ev.Title, ev.StartsAt, ev.Source)
				}
				if seen[ev.UniqueHash] {
					continue // same statement can't touch a row twice
				}
				seen[ev.UniqueHash] = true
				ins = ins.Values(ev.UniqueHash, ev.Title, ev.Category, ev.Subcategory, ev.StartsAt.UTC(), utcPtr(ev.EndsAt),
					ev.Source, ev.Link, ev.Importance, ev.Description, ev.Location, ev.Organizer, ev.Status,
					metadataSQL(ev.Metadata), now, now)
			}
			query, args, err := ins.Suffix(eventConflictClause).ToSql()
			if err != nil {
				return fmt.Errorf("build events upsert: %w", err)
			}
			if _, err := tx.ExecContext(ctx, query, args...); err != nil {
				return fmt.Errorf("upsert events: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("upsert %d events: %w", len(events), err)
	}
	return nil
}

// EventFilter selects events for Between, empty fields match everything
type EventFilter struct {
	From, To    time.Time
	Category    string
	Subcategory string
	Limit       uint64
}

// Between returns events starting in [From, To), soonest first
func (r *EventRepository) Between(ctx context.Context, f EventFilter) ([]domain.EventRecord, error) {
	sel := r.sb.Select("*").From("events").OrderBy("starts_at ASC", "importance DESC")
	if !f.From.IsZero() {
		sel = sel.Where(sq.GtOrEq{"starts_at": f.From.UTC()})
	}
	if !f.To.IsZero() {
		sel = sel.Where(sq.Lt{"starts_at": f.To.UTC()})
	}
	if f.Category != "" {
		sel = sel.Where(sq.Eq{"category": f.Category})
	}
	if f.Subcategory != "" {
		sel = sel.Where(sq.Eq{"subcategory": f.Subcategory})
	}
	if f.Limit > 0 {
		sel = sel.Limit(f.Limit)
	}
	query, args, err := sel.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build events query: %w", err)
	}

	var rows []eventSQL
	if err := r.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("get events: %w", err)
	}
	res := make([]domain.EventRecord, 0, len(rows))
	for _, row := range rows {
		res = append(res, domain.EventRecord{
			UniqueHash: row.UniqueHash, Title: row.Title, Category: row.Category, Subcategory: row.Subcategory,
			StartsAt: row.StartsAt.UTC(), EndsAt: utcPtr(row.EndsAt), Source: row.Source, Link: row.Link,
			Importance: row.Importance, Description: row.Description, Location: row.Location,
			Organizer: row.Organizer, Status: row.Status, Metadata: row.Metadata,
		})
	}
	return res, nil
}
