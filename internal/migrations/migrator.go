package migrations

import (
	"fmt"
	"sort"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/Ndunguuu01/kodipay/internal/utils"
)

// Migration is one versioned schema step. Versions sort lexically, so they
// are zero-padded.
type Migration struct {
	Version string
	Name    string
	Up      func(*gorm.DB) error
	Down    func(*gorm.DB) error
}

// MigrationRecord marks a migration as applied.
type MigrationRecord struct {
	Version   string    `gorm:"primaryKey"`
	Name      string    `gorm:"not null"`
	AppliedAt time.Time `gorm:"not null"`
}

func (MigrationRecord) TableName() string { return "schema_migrations" }

// Status is one row of `kodipay migrate status`.
type Status struct {
	Version   string
	Name      string
	Applied   bool
	AppliedAt *time.Time
}

type Migrator struct {
	db         *gorm.DB
	migrations []*Migration
}

// NewMigrator returns a migrator over the given migrations, ordered by
// version.
func NewMigrator(db *gorm.DB, migrations ...*Migration) *Migrator {
	sorted := make([]*Migration, len(migrations))
	copy(sorted, migrations)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Version < sorted[j].Version })
	return &Migrator{db: db, migrations: sorted}
}

// Open connects gorm to Postgres for migration work only; the request path
// uses pgx directly.
func Open(databaseURL string) (*gorm.DB, error) {
	return gorm.Open(postgres.Open(databaseURL), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn),
	})
}

func (m *Migrator) ensureVersionTable() error {
	return m.db.AutoMigrate(&MigrationRecord{})
}

func (m *Migrator) appliedRecords() (map[string]MigrationRecord, error) {
	if err := m.ensureVersionTable(); err != nil {
		return nil, err
	}
	var records []MigrationRecord
	if err := m.db.Find(&records).Error; err != nil {
		return nil, err
	}
	out := make(map[string]MigrationRecord, len(records))
	for _, r := range records {
		out[r.Version] = r
	}
	return out, nil
}

// Up applies every pending migration in order. Each migration and its
// record commit together; it returns the versions applied.
func (m *Migrator) Up() ([]string, error) {
	applied, err := m.appliedRecords()
	if err != nil {
		return nil, err
	}

	var done []string
	for _, mig := range m.migrations {
		if _, ok := applied[mig.Version]; ok {
			continue
		}
		err := m.db.Transaction(func(tx *gorm.DB) error {
			if err := mig.Up(tx); err != nil {
				return err
			}
			return tx.Create(&MigrationRecord{
				Version:   mig.Version,
				Name:      mig.Name,
				AppliedAt: time.Now(),
			}).Error
		})
		if err != nil {
			return done, fmt.Errorf("migration %s_%s: %w", mig.Version, mig.Name, err)
		}
		utils.Logger.WithField("version", mig.Version).Infof("Applied migration %s", mig.Name)
		done = append(done, mig.Version)
	}
	return done, nil
}

// Down rolls back the most recently applied migration. It returns the
// version rolled back, or "" when nothing was applied.
func (m *Migrator) Down() (string, error) {
	if err := m.ensureVersionTable(); err != nil {
		return "", err
	}
	var last MigrationRecord
	res := m.db.Order("version DESC").Limit(1).Find(&last)
	if res.Error != nil {
		return "", res.Error
	}
	if res.RowsAffected == 0 {
		return "", nil
	}

	var target *Migration
	for _, mig := range m.migrations {
		if mig.Version == last.Version {
			target = mig
			break
		}
	}
	if target == nil || target.Down == nil {
		return "", fmt.Errorf("migration %s has no down step", last.Version)
	}

	err := m.db.Transaction(func(tx *gorm.DB) error {
		if err := target.Down(tx); err != nil {
			return err
		}
		return tx.Delete(&MigrationRecord{}, "version = ?", last.Version).Error
	})
	if err != nil {
		return "", err
	}
	return last.Version, nil
}

func (m *Migrator) Status() ([]Status, error) {
	applied, err := m.appliedRecords()
	if err != nil {
		return nil, err
	}
	out := make([]Status, 0, len(m.migrations))
	for _, mig := range m.migrations {
		s := Status{Version: mig.Version, Name: mig.Name}
		if rec, ok := applied[mig.Version]; ok {
			s.Applied = true
			at := rec.AppliedAt
			s.AppliedAt = &at
		}
		out = append(out, s)
	}
	return out, nil
}

// execAll runs statements in order on db.
func execAll(db *gorm.DB, statements ...string) error {
	for _, stmt := range statements {
		if err := db.Exec(stmt).Error; err != nil {
			return err
		}
	}
	return nil
}
