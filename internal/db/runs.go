package db

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"
	"github.com/rs/zerolog/log"

	"github.com/Harvey-AU/llmoptimizer/internal/extractor"
)

// ErrRunNotFound is returned when no run matches a lookup.
var ErrRunNotFound = errors.New("run not found")

// Run is one persisted generation.
type Run struct {
	ID          string
	BaseURL     string
	Strategy    string
	GeneratedAt time.Time
	PageCount   int
	Locales     []string
	OutFile     string
}

// SaveRun stores a run and its pages in a single transaction.
func (d *DB) SaveRun(ctx context.Context, run Run, pages []extractor.PageExtract) error {
	tx, err := d.client.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if err != nil {
			if rbErr := tx.Rollback(); rbErr != nil && !errors.Is(rbErr, sql.ErrTxDone) {
				log.Warn().Err(rbErr).Str("run_id", run.ID).Msg("Rollback failed")
			}
		}
	}()

	locales := run.Locales
	if locales == nil {
		locales = []string{}
	}
	_, err = tx.ExecContext(ctx, `
		INSERT INTO llm_runs (id, base_url, strategy, generated_at, page_count, locales, out_file)
		VALUES ($1, NULLIF($2, ''), $3, $4, $5, $6, $7)
	`, run.ID, run.BaseURL, run.Strategy, run.GeneratedAt.UTC(), run.PageCount, pq.Array(locales), run.OutFile)
	if err != nil {
		return fmt.Errorf("failed to insert run: %w", err)
	}

	if len(pages) > 0 {
		if err = insertPages(ctx, tx, run.ID, pages); err != nil {
			return err
		}
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit run: %w", err)
	}

	log.Info().
		Str("run_id", run.ID).
		Str("strategy", run.Strategy).
		Int("pages", len(pages)).
		Msg("Saved generation run")
	return nil
}

func insertPages(ctx context.Context, tx *sql.Tx, runID string, pages []extractor.PageExtract) error {
	positions := make([]int, len(pages))
	urls := make([]string, len(pages))
	titles := make([]sql.NullString, len(pages))
	descriptions := make([]sql.NullString, len(pages))
	locales := make([]sql.NullString, len(pages))
	wordCounts := make([]int, len(pages))
	extracts := make([]string, len(pages))

	for i, p := range pages {
		positions[i] = i
		urls[i] = p.URL
		titles[i] = nullString(p.Title)
		descriptions[i] = nullString(p.Description)
		locales[i] = nullString(p.Locale)
		wordCounts[i] = p.WordCount

		data, err := json.Marshal(p)
		if err != nil {
			return fmt.Errorf("failed to encode page %s: %w", p.URL, err)
		}
		extracts[i] = string(data)
	}

	result, err := tx.ExecContext(ctx, `
		INSERT INTO llm_pages (run_id, position, url, title, description, locale, word_count, extract)
		SELECT $1, *
		FROM unnest(
			$2::integer[],
			$3::text[],
			$4::text[],
			$5::text[],
			$6::text[],
			$7::integer[],
			$8::jsonb[]
		)
	`,
		runID,
		pq.Array(positions),
		pq.Array(urls),
		pq.Array(titles),
		pq.Array(descriptions),
		pq.Array(locales),
		pq.Array(wordCounts),
		pq.Array(extracts),
	)
	if err != nil {
		return fmt.Errorf("failed to insert pages: %w", err)
	}

	rowsAffected, _ := result.RowsAffected()
	log.Debug().
		Str("run_id", runID).
		Int64("rows_affected", rowsAffected).
		Msg("Batch inserted run pages")
	return nil
}

func nullString(p *string) sql.NullString {
	if p == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *p, Valid: true}
}

// LatestRun returns the most recent run for baseURL.
func (d *DB) LatestRun(ctx context.Context, baseURL string) (*Run, error) {
	var run Run
	var base sql.NullString
	err := d.client.QueryRowContext(ctx, `
		SELECT id, base_url, strategy, generated_at, page_count, locales, out_file
		FROM llm_runs
		WHERE base_url = $1
		ORDER BY generated_at DESC
		LIMIT 1
	`, baseURL).Scan(&run.ID, &base, &run.Strategy, &run.GeneratedAt, &run.PageCount, pq.Array(&run.Locales), &run.OutFile)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrRunNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query latest run: %w", err)
	}
	run.BaseURL = base.String
	return &run, nil
}

// RunPages returns the stored page records of a run in their original order.
func (d *DB) RunPages(ctx context.Context, runID string) ([]extractor.PageExtract, error) {
	rows, err := d.client.QueryContext(ctx, `
		SELECT extract
		FROM llm_pages
		WHERE run_id = $1
		ORDER BY position
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to query run pages: %w", err)
	}
	defer rows.Close()

	var pages []extractor.PageExtract
	for rows.Next() {
		var raw []byte
		if err := rows.Scan(&raw); err != nil {
			return nil, fmt.Errorf("failed to scan page: %w", err)
		}
		var p extractor.PageExtract
		if err := json.Unmarshal(raw, &p); err != nil {
			return nil, fmt.Errorf("failed to decode page: %w", err)
		}
		pages = append(pages, p)
	}
	return pages, rows.Err()
}
