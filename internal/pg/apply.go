package pg

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
	"go.uber.org/zap"

	"dvh/internal/generate"
)

// SQLSTATE codes of objects that already exist.
var duplicateCodes = map[string]bool{
	"42710": true, // duplicate_object
	"42P07": true, // duplicate_table
	"42P06": true, // duplicate_schema
}

// Result counts what Apply did.
type Result struct {
	Applied int `json:"applied"`
	Skipped int `json:"skipped"`
}

// Applier runs generated scripts against a database, in the given order.
type Applier struct {
	db  *sql.DB
	log *zap.Logger

	// SkipExisting ignores "already exists" failures so a DDL run can be
	// repeated.
	SkipExisting bool
}

func NewApplier(db *sql.DB, log *zap.Logger) *Applier {
	if log == nil {
		log = zap.NewNop()
	}
	return &Applier{db: db, log: log, SkipExisting: true}
}

// Apply executes every statement of every script. It stops at the first
// failure; the Result covers what ran before it.
func (a *Applier) Apply(ctx context.Context, scripts []generate.Script) (Result, error) {
	var res Result
	for _, s := range scripts {
		for i, stmt := range s.Statements {
			text := strings.TrimSpace(stmt)
			if text == "" {
				continue
			}
			if _, err := a.db.ExecContext(ctx, text); err != nil {
				if a.SkipExisting && alreadyExists(err) {
					a.log.Info("statement skipped (already exists)",
						zap.String("entity", s.Entity), zap.Int("step", i+1), zap.Error(err))
					res.Skipped++
					continue
				}
				return res, fmt.Errorf("apply %s step %d: %w", s.Entity, i+1, err)
			}
			a.log.Debug("statement applied", zap.String("entity", s.Entity), zap.Int("step", i+1))
			res.Applied++
		}
	}
	return res, nil
}

func alreadyExists(err error) bool {
	// pgx/stdlib surfaces *pgconn.PgError
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return duplicateCodes[pgErr.Code]
	}
	return strings.Contains(strings.ToLower(err.Error()), "already exists")
}
