package repositories

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgconn"
	"github.com/jackc/pgx/v4"

	"github.com/Ndunguuu01/kodipay/internal/utils"
)

// maxVersionAttempts bounds the read-mutate-write loop for versioned rows.
// Ledger writers take the bill's row lock first, so for them the first
// attempt always wins; the bound matters for unlocked writers such as
// property edits.
const maxVersionAttempts = 3

// VersionedEntity is a row guarded by row_version: properties, bills and
// payments. T must be a pointer type so a missing row scans to nil.
type VersionedEntity interface {
	comparable
	GetID() string
	GetRowVersion() int64
	SetRowVersion(int64)
}

// writeIfVersion stores entity only while row_version still equals expected.
type writeIfVersion[T VersionedEntity] func(ctx context.Context, entity T, expected int64) (pgconn.CommandTag, error)

// versionedRows reads one kind of versioned row and applies mutations to it.
type versionedRows[T VersionedEntity] struct {
	db   DB
	kind string
	byID string
	scan func(pgx.Row) (T, error)
}

func newVersionedRows[T VersionedEntity](db DB, kind, byID string, scan func(pgx.Row) (T, error)) *versionedRows[T] {
	return &versionedRows[T]{db: db, kind: kind, byID: byID, scan: scan}
}

func (v *versionedRows[T]) get(ctx context.Context, id uuid.UUID) (T, error) {
	return v.scan(v.db.QueryRow(ctx, v.byID, id))
}

// mutate re-reads the row, applies fn and writes it back. A write that
// finds row_version moved on starts over from a fresh read. On success the
// mutated entity carries the stored row_version.
func (v *versionedRows[T]) mutate(ctx context.Context, id uuid.UUID, fn func(T) error, write writeIfVersion[T]) error {
	var missing T
	for attempt := 1; attempt <= maxVersionAttempts; attempt++ {
		cur, err := v.get(ctx, id)
		if err != nil {
			return err
		}
		if cur == missing {
			return pgx.ErrNoRows
		}

		read := cur.GetRowVersion()
		if err := fn(cur); err != nil {
			return err
		}

		tag, err := write(ctx, cur, read)
		if err != nil {
			return err
		}
		if tag.RowsAffected() == 1 {
			cur.SetRowVersion(read + 1)
			return nil
		}
		utils.Logger.WithField(v.kind+"ID", cur.GetID()).WithField("attempt", attempt).Debug("row_version moved, re-reading")
	}
	return fmt.Errorf("%w: %s %s was rewritten by another writer on each of %d attempts",
		utils.ErrRowVersionConflict, v.kind, id, maxVersionAttempts)
}
