package storage

import (
	"context"
	"database/sql"
	"fmt"

	sq "github.com/Masterminds/squirrel"
	"github.com/lib/pq"

	"Vid2News/internal/domain"
	"Vid2News/internal/ports"
)

const postsTable = "posts"

// PostgresStore keeps one desk's review rows in the shared posts table.
type PostgresStore struct {
	db      *sql.DB
	desk    string
	builder sq.StatementBuilderType
}

var _ ports.PostStore = (*PostgresStore)(nil)

// NewPostgresStore wires a sql.DB implementation scoped to desk.
func NewPostgresStore(db *sql.DB, desk string) *PostgresStore {
	return &PostgresStore{
		db:      db,
		desk:    desk,
		builder: sq.StatementBuilder.PlaceholderFormat(sq.Dollar),
	}
}

// Open connects to Postgres and verifies the connection.
func Open(ctx context.Context, dsn string) (*sql.DB, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	return db, nil
}

// Create inserts all posts in one statement and returns their ids in order.
func (s *PostgresStore) Create(ctx context.Context, posts []domain.GeneratedPost, status string) ([]int64, error) {
	if len(posts) == 0 {
		return nil, nil
	}

	insert := s.builder.Insert(postsTable).
		Columns("desk", "title", "content", "source_video_urls", "source_channels", "cluster_id", "status").
		Suffix("RETURNING id")
	for _, p := range posts {
		insert = insert.Values(s.desk, p.Title, p.Content,
			pq.StringArray(nonNil(p.SourceURLs)), pq.StringArray(nonNil(p.SourceLabels)), p.ClusterID, status)
	}

	query, args, err := insert.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build insert: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("insert posts: %w", err)
	}
	defer rows.Close()

	ids := make([]int64, 0, len(posts))
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan id: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration: %w", err)
	}
	if len(ids) != len(posts) {
		return nil, fmt.Errorf("insert posts: expected %d ids, got %d", len(posts), len(ids))
	}
	return ids, nil
}

// Read returns the desk's rows with the given status, oldest first. Limit
// caps the result only when set.
func (s *PostgresStore) Read(ctx context.Context, filter domain.PostFilter) ([]domain.PostRecord, error) {
	where := sq.Eq{"desk": s.desk}
	if filter.Status != "" {
		where["status"] = filter.Status
	}
	selectPosts := s.builder.
		Select("id", "title", "content", "source_video_urls", "source_channels", "status", "score").
		From(postsTable).
		Where(where).
		OrderBy("id")
	if filter.Limit > 0 {
		selectPosts = selectPosts.Limit(uint64(filter.Limit))
	}
	query, args, err := selectPosts.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build select: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query posts: %w", err)
	}
	defer rows.Close()

	var out []domain.PostRecord
	for rows.Next() {
		var (
			rec    domain.PostRecord
			urls   pq.StringArray
			labels pq.StringArray
			score  sql.NullFloat64
		)
		if err := rows.Scan(&rec.ID, &rec.Title, &rec.Content, &urls, &labels, &rec.Status, &score); err != nil {
			return nil, fmt.Errorf("scan post: %w", err)
		}
		rec.SourceURLs = []string(urls)
		rec.SourceLabels = []string(labels)
		if score.Valid {
			v := score.Float64
			rec.Score = &v
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration: %w", err)
	}
	return out, nil
}

// Patch applies all updates in one transaction. A missing row rolls back the batch.
func (s *PostgresStore) Patch(ctx context.Context, patches []domain.PostPatch) (err error) {
	if len(patches) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	for _, p := range patches {
		if p.Status == nil && p.Score == nil {
			continue
		}
		update := s.builder.Update(postsTable).
			Set("updated_at", sq.Expr("NOW()")).
			Where(sq.Eq{"id": p.ID, "desk": s.desk})
		if p.Status != nil {
			update = update.Set("status", *p.Status)
		}
		if p.Score != nil {
			update = update.Set("score", *p.Score)
		}

		query, args, buildErr := update.ToSql()
		if buildErr != nil {
			return fmt.Errorf("build update: %w", buildErr)
		}
		res, execErr := tx.ExecContext(ctx, query, args...)
		if execErr != nil {
			return fmt.Errorf("update post %d: %w", p.ID, execErr)
		}
		affected, rowsErr := res.RowsAffected()
		if rowsErr != nil {
			return fmt.Errorf("rows affected: %w", rowsErr)
		}
		if affected == 0 {
			return fmt.Errorf("update post %d: row not found", p.ID)
		}
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

func nonNil(values []string) []string {
	if values == nil {
		return []string{}
	}
	return values
}
