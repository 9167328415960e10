package repositories

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/jackc/pgconn"
	"github.com/jackc/pgx/v4"
	"github.com/stretchr/testify/require"

	"github.com/Ndunguuu01/kodipay/internal/models"
	"github.com/Ndunguuu01/kodipay/internal/utils"
)

// rowlessDB hands out nil rows; the scanners below never read them.
type rowlessDB struct{ DB }

func (rowlessDB) QueryRow(context.Context, string, ...any) pgx.Row { return nil }

// billStore is a single stored bill whose row_version other writers can bump.
type billStore struct {
	stored *models.Bill
	reads  int
	// bumps is how many upcoming writes lose to a concurrent writer.
	bumps int
}

func (s *billStore) rows() *versionedRows[*models.Bill] {
	return newVersionedRows(rowlessDB{}, "bill", "", func(pgx.Row) (*models.Bill, error) {
		s.reads++
		if s.stored == nil {
			return nil, nil
		}
		c := *s.stored
		return &c, nil
	})
}

func (s *billStore) write(_ context.Context, b *models.Bill, expected int64) (pgconn.CommandTag, error) {
	if s.bumps > 0 {
		s.bumps--
		s.stored.RowVersion++
	}
	if s.stored.RowVersion != expected {
		return pgconn.CommandTag("UPDATE 0"), nil
	}
	c := *b
	c.RowVersion = expected + 1
	s.stored = &c
	return pgconn.CommandTag("UPDATE 1"), nil
}

func newBillStore() *billStore {
	b := &models.Bill{ID: uuid.New(), Amount: 1000}
	b.RowVersion = 1
	return &billStore{stored: b}
}

func TestMutateWritesOnFirstRead(t *testing.T) {
	s := newBillStore()
	var seen *models.Bill
	err := s.rows().mutate(context.Background(), s.stored.ID, func(b *models.Bill) error {
		b.Description = "March rent"
		seen = b
		return nil
	}, s.write)
	require.NoError(t, err)
	require.Equal(t, 1, s.reads)
	require.Equal(t, "March rent", s.stored.Description)
	require.Equal(t, int64(2), s.stored.RowVersion)
	require.Equal(t, int64(2), seen.RowVersion)
}

func TestMutateRereadsAfterConcurrentWrite(t *testing.T) {
	s := newBillStore()
	s.bumps = 2
	calls := 0
	err := s.rows().mutate(context.Background(), s.stored.ID, func(b *models.Bill) error {
		calls++
		b.Description = "water"
		return nil
	}, s.write)
	require.NoError(t, err)
	require.Equal(t, 3, calls)
	require.Equal(t, "water", s.stored.Description)
	require.Equal(t, int64(4), s.stored.RowVersion)
}

func TestMutateGivesUpUnderContention(t *testing.T) {
	s := newBillStore()
	s.bumps = maxVersionAttempts
	id := s.stored.ID
	err := s.rows().mutate(context.Background(), id, func(*models.Bill) error { return nil }, s.write)
	require.ErrorIs(t, err, utils.ErrRowVersionConflict)
	require.Contains(t, err.Error(), "bill "+id.String())
	require.Equal(t, maxVersionAttempts, s.reads)
}

func TestMutateMissingRow(t *testing.T) {
	s := &billStore{}
	err := s.rows().mutate(context.Background(), uuid.New(), func(*models.Bill) error { return nil }, s.write)
	require.ErrorIs(t, err, pgx.ErrNoRows)
}

func TestMutateStopsOnMutationError(t *testing.T) {
	s := newBillStore()
	refused := errors.New("bill is cancelled")
	err := s.rows().mutate(context.Background(), s.stored.ID, func(*models.Bill) error { return refused }, s.write)
	require.ErrorIs(t, err, refused)
	require.Equal(t, int64(1), s.stored.RowVersion)
}
