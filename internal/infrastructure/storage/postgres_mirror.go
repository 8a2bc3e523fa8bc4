package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	sq "github.com/Masterminds/squirrel"
	"github.com/lib/pq"

	"ArticleDesk/internal/domain"
	"ArticleDesk/internal/ports"
)

const (
	mirrorTable = "article_mirror"

	// insertChunk keeps a single INSERT well below the 65535 bind parameter limit.
	insertChunk = 500
)

var psql = sq.StatementBuilder.PlaceholderFormat(sq.Dollar)

// PostgresMirror replicates the article list into a Postgres table.
// Rows that Load could not decode are re-inserted untouched by Replace.
type PostgresMirror struct {
	db    *sql.DB
	table string

	mu   sync.Mutex
	kept []mirrorRow
}

type mirrorRow struct {
	id, payload, title, tldr string
}

var _ ports.Mirror = (*PostgresMirror)(nil)

// OpenPostgres opens a lib/pq connection pool and checks it is reachable.
func OpenPostgres(ctx context.Context, dsn string) (*sql.DB, error) {
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

// NewPostgresMirror wires a sql.DB implementation.
func NewPostgresMirror(db *sql.DB) *PostgresMirror {
	return &PostgresMirror{db: db, table: mirrorTable}
}

// Name implements ports.Mirror.
func (m *PostgresMirror) Name() string { return "postgres" }

// EnsureSchema creates the mirror table when it does not exist yet.
func (m *PostgresMirror) EnsureSchema(ctx context.Context) error {
	if m.db == nil {
		return nil
	}
	query := `CREATE TABLE IF NOT EXISTS ` + pq.QuoteIdentifier(m.table) + ` (
              position SERIAL,
              id TEXT PRIMARY KEY,
              payload JSONB NOT NULL,
              title TEXT NOT NULL DEFAULT '',
              tl_dr TEXT NOT NULL DEFAULT ''
          )`
	if _, err := m.db.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("create mirror table: %w", err)
	}
	return nil
}

// Load returns every mirrored record in insertion order. Rows whose
// payload does not decode are held back for the next Replace.
func (m *PostgresMirror) Load(ctx context.Context) ([]domain.Article, error) {
	if m.db == nil {
		return nil, nil
	}

	query, args, err := m.selectQuery().ToSql()
	if err != nil {
		return nil, fmt.Errorf("build select: %w", err)
	}

	rows, err := m.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query mirror: %w", classify(err))
	}

	var (
		result []domain.Article
		kept   []mirrorRow
	)
	for rows.Next() {
		var row mirrorRow
		if err := rows.Scan(&row.id, &row.payload, &row.title, &row.tldr); err != nil {
			_ = rows.Close()
			return nil, fmt.Errorf("scan payload: %w", err)
		}
		var article domain.Article
		if err := json.Unmarshal([]byte(row.payload), &article); err != nil || article.ID == "" {
			kept = append(kept, row)
			continue
		}
		result = append(result, article)
	}

	if rowsErr := rows.Err(); rowsErr != nil {
		_ = rows.Close()
		return nil, fmt.Errorf("rows iteration: %w", rowsErr)
	}

	if closeErr := rows.Close(); closeErr != nil {
		return nil, fmt.Errorf("close rows: %w", closeErr)
	}

	m.mu.Lock()
	m.kept = kept
	m.mu.Unlock()
	return result, nil
}

// Replace overwrites the table with articles inside one transaction.
func (m *PostgresMirror) Replace(ctx context.Context, articles []domain.Article) error {
	if m.db == nil {
		return nil
	}

	inserts, err := m.insertQueries(articles)
	if err != nil {
		return err
	}
	deleteSQL, deleteArgs, err := m.deleteQuery().ToSql()
	if err != nil {
		return fmt.Errorf("build delete: %w", err)
	}

	tx, err := m.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin mirror tx: %w", classify(err))
	}

	if _, err := tx.ExecContext(ctx, deleteSQL, deleteArgs...); err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("clear mirror: %w", classify(err))
	}
	for _, insert := range inserts {
		query, args, err := insert.ToSql()
		if err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("build insert: %w", err)
		}
		if _, err := tx.ExecContext(ctx, query, args...); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("insert mirror rows: %w", classify(err))
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit mirror tx: %w", classify(err))
	}
	return nil
}

func (m *PostgresMirror) selectQuery() sq.SelectBuilder {
	return psql.Select("id", "payload::text", "title", "tl_dr").From(m.table).OrderBy("position")
}

func (m *PostgresMirror) deleteQuery() sq.DeleteBuilder {
	return psql.Delete(m.table)
}

func (m *PostgresMirror) insertQueries(articles []domain.Article) ([]sq.InsertBuilder, error) {
	rows := make([]mirrorRow, 0, len(articles))
	ids := make(map[string]bool, len(articles))
	for _, article := range articles {
		payload, err := json.Marshal(article)
		if err != nil {
			return nil, fmt.Errorf("encode article %s: %w", article.ID, err)
		}
		ids[article.ID] = true
		rows = append(rows, mirrorRow{id: article.ID, payload: string(payload), title: article.Title(), tldr: article.TLDR})
	}

	m.mu.Lock()
	for _, row := range m.kept {
		if !ids[row.id] {
			rows = append(rows, row)
		}
	}
	m.mu.Unlock()

	var out []sq.InsertBuilder
	for start := 0; start < len(rows); start += insertChunk {
		end := min(start+insertChunk, len(rows))

		insert := psql.Insert(m.table).Columns("id", "payload", "title", "tl_dr")
		for _, row := range rows[start:end] {
			insert = insert.Values(row.id, row.payload, row.title, row.tldr)
		}
		out = append(out, insert)
	}
	return out, nil
}

// classify surfaces authentication and privilege failures as
// domain.ErrNotAuthenticated.
func classify(err error) error {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && (pqErr.Code.Class() == "28" || pqErr.Code == "42501") {
		return fmt.Errorf("%w: %s", domain.ErrNotAuthenticated, pqErr.Message)
	}
	return err
}
