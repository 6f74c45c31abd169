package storage

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/lib/pq"

	"github.com/iWorld-y/usecase_radar/app/usecase_radar/pkg/config"
	"github.com/iWorld-y/usecase_radar/app/usecase_radar/pkg/model"
)

// PostgresStore 将报告写入 PostgreSQL
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore 连接数据库并初始化表结构
func NewPostgresStore(cfg config.DBConfig) (*PostgresStore, error) {
	connStr := fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=disable",
		cfg.Host, cfg.Port, cfg.User, cfg.Password, cfg.Name)

	db, err := sql.Open("postgres", connStr)
	if err != nil {
		return nil, fmt.Errorf("failed to open database connection: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	s := NewPostgresStoreWithDB(db)
	if err := s.InitSchema(context.Background()); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return s, nil
}

// NewPostgresStoreWithDB 使用已有连接
func NewPostgresStoreWithDB(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) Close() error {
	return s.db.Close()
}

// InitSchema 建表，已存在时跳过
func (s *PostgresStore) InitSchema(ctx context.Context) error {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS usecase_reports (
			id SERIAL PRIMARY KEY,
			run_id TEXT NOT NULL UNIQUE,
			company_name TEXT NOT NULL,
			analysis_date DATE NOT NULL,
			parse_warnings TEXT[],
			created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE TABLE IF NOT EXISTS topic_details (
			id SERIAL PRIMARY KEY,
			report_id INTEGER REFERENCES usecase_reports(id),
			topic TEXT NOT NULL,
			summary TEXT,
			details TEXT[],
			degraded BOOLEAN DEFAULT FALSE,
			failure_reason TEXT
		)`,
		`CREATE TABLE IF NOT EXISTS use_cases (
			id SERIAL PRIMARY KEY,
			report_id INTEGER REFERENCES usecase_reports(id),
			position INTEGER NOT NULL,
			title TEXT NOT NULL,
			description TEXT,
			complexity TEXT,
			impact TEXT,
			resources TEXT[]
		)`,
	}

	for _, query := range queries {
		if _, err := s.db.ExecContext(ctx, query); err != nil {
			return fmt.Errorf("failed to execute query %s: %w", query, err)
		}
	}

	return nil
}

// Save implements Sink
func (s *PostgresStore) Save(ctx context.Context, r *model.Report) (string, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return "", err
	}
	defer tx.Rollback()

	var reportID int
	err = tx.QueryRowContext(ctx, `
		INSERT INTO usecase_reports (run_id, company_name, analysis_date, parse_warnings)
		VALUES ($1, $2, $3, $4)
		RETURNING id`,
		r.RunID, sanitize(r.CompanyName), r.AnalysisDate, pq.Array(sanitizeAll(r.ParseWarnings))).Scan(&reportID)
	if err != nil {
		return "", fmt.Errorf("failed to insert report: %w", err)
	}

	for _, t := range r.ResearchData.Summaries() {
		_, err = tx.ExecContext(ctx, `
			INSERT INTO topic_details (report_id, topic, summary, details, degraded, failure_reason)
			VALUES ($1, $2, $3, $4, $5, $6)`,
			reportID, string(t.Topic), sanitize(t.Summary), pq.Array(sanitizeAll(t.Details)), t.Degraded, sanitize(t.FailureReason))
		if err != nil {
			return "", fmt.Errorf("failed to insert topic detail: %w", err)
		}
	}

	for i, uc := range r.AIUseCases {
		_, err = tx.ExecContext(ctx, `
			INSERT INTO use_cases (report_id, position, title, description, complexity, impact, resources)
			VALUES ($1, $2, $3, $4, $5, $6, $7)`,
			reportID, i+1, sanitize(uc.Title), sanitize(uc.Description), string(uc.Complexity), string(uc.Impact), pq.Array(sanitizeAll(uc.Resources)))
		if err != nil {
			return "", fmt.Errorf("failed to insert use case: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return "", err
	}
	return fmt.Sprintf("postgres:usecase_reports/%d", reportID), nil
}

// sanitize 移除无效的 UTF-8 字符和 NULL 字节，PostgreSQL 文本字段不支持
func sanitize(s string) string {
	if !utf8.ValidString(s) {
		v := make([]rune, 0, len(s))
		for _, r := range s {
			if r == utf8.RuneError {
				continue
			}
			v = append(v, r)
		}
		s = string(v)
	}
	return strings.ReplaceAll(s, "\x00", "")
}

func sanitizeAll(items []string) []string {
	out := make([]string, len(items))
	for i, s := range items {
		out[i] = sanitize(s)
	}
	return out
}
