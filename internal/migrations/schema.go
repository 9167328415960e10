package migrations

import "gorm.io/gorm"

// All returns the application schema migrations.
func All() []*Migration {
	return []*Migration{
		identityTables,
		propertyTables,
		tenantTables,
		ledgerTables,
		complaintTables,
		refreshTokenRotation,
	}
}

var identityTables = &Migration{
	Version: "0001",
	Name:    "identity",
	Up: func(db *gorm.DB) error {
		return execAll(db,
			`CREATE TABLE users (
                id            UUID PRIMARY KEY,
                name          TEXT NOT NULL,
                email         TEXT,
                phone         TEXT NOT NULL,
                password_hash TEXT NOT NULL,
                role          TEXT NOT NULL DEFAULT 'landlord',
                created_at    TIMESTAMPTZ NOT NULL DEFAULT NOW(),
                updated_at    TIMESTAMPTZ NOT NULL DEFAULT NOW(),
                CONSTRAINT users_phone_key UNIQUE (phone)
            )`,
			`CREATE UNIQUE INDEX users_email_lower_uniq ON users (lower(email)) WHERE email IS NOT NULL`,
			`CREATE TABLE refresh_tokens (
                id         UUID PRIMARY KEY,
                user_id    UUID NOT NULL REFERENCES users(id) ON DELETE CASCADE,
                token_hash TEXT NOT NULL UNIQUE,
                expires_at TIMESTAMPTZ NOT NULL,
                created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
            )`,
			`CREATE INDEX refresh_tokens_user_idx ON refresh_tokens (user_id)`,
			`CREATE TABLE password_resets (
                id         UUID PRIMARY KEY,
                user_id    UUID NOT NULL REFERENCES users(id) ON DELETE CASCADE,
                token_hash TEXT NOT NULL UNIQUE,
                expires_at TIMESTAMPTZ NOT NULL,
                created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
            )`,
		)
	},
	Down: func(db *gorm.DB) error {
		return execAll(db,
			`DROP TABLE IF EXISTS password_resets`,
			`DROP TABLE IF EXISTS refresh_tokens`,
			`DROP TABLE IF EXISTS users`,
		)
	},
}

var propertyTables = &Migration{
	Version: "0002",
	Name:    "properties",
	Up: func(db *gorm.DB) error {
		return execAll(db,
			`CREATE TABLE properties (
                id          UUID PRIMARY KEY,
                landlord_id UUID NOT NULL REFERENCES users(id),
                name        TEXT NOT NULL,
                address     TEXT NOT NULL DEFAULT '',
                rent_amount BIGINT NOT NULL DEFAULT 0 CHECK (rent_amount >= 0),
                created_at  TIMESTAMPTZ NOT NULL DEFAULT NOW(),
                updated_at  TIMESTAMPTZ NOT NULL DEFAULT NOW(),
                row_version BIGINT NOT NULL DEFAULT 1
            )`,
			`CREATE INDEX properties_landlord_idx ON properties (landlord_id)`,
			`CREATE TABLE floors (
                id          UUID PRIMARY KEY,
                property_id UUID NOT NULL REFERENCES properties(id) ON DELETE CASCADE,
                number      INT NOT NULL,
                position    INT NOT NULL,
                created_at  TIMESTAMPTZ NOT NULL DEFAULT NOW()
            )`,
			`CREATE TABLE rooms (
                id          UUID PRIMARY KEY,
                property_id UUID NOT NULL REFERENCES properties(id) ON DELETE CASCADE,
                floor_id    UUID NOT NULL REFERENCES floors(id) ON DELETE CASCADE,
                label       TEXT NOT NULL,
                rent_amount BIGINT NOT NULL DEFAULT 0 CHECK (rent_amount >= 0),
                is_occupied BOOLEAN NOT NULL DEFAULT FALSE,
                tenant_id   UUID,
                position    INT NOT NULL,
                created_at  TIMESTAMPTZ NOT NULL DEFAULT NOW(),
                updated_at  TIMESTAMPTZ NOT NULL DEFAULT NOW(),
                CONSTRAINT rooms_occupancy_chk CHECK (is_occupied = (tenant_id IS NOT NULL))
            )`,
			`CREATE UNIQUE INDEX rooms_tenant_id_uniq ON rooms (tenant_id) WHERE tenant_id IS NOT NULL`,
			`CREATE INDEX rooms_property_idx ON rooms (property_id)`,
		)
	},
	Down: func(db *gorm.DB) error {
		return execAll(db,
			`DROP TABLE IF EXISTS rooms`,
			`DROP TABLE IF EXISTS floors`,
			`DROP TABLE IF EXISTS properties`,
		)
	},
}

var tenantTables = &Migration{
	Version: "0003",
	Name:    "tenants",
	Up: func(db *gorm.DB) error {
		return execAll(db,
			`CREATE TABLE tenants (
                id          UUID PRIMARY KEY,
                landlord_id UUID NOT NULL REFERENCES users(id),
                user_id     UUID REFERENCES users(id) ON DELETE SET NULL,
                name        TEXT NOT NULL,
                email       TEXT,
                phone       TEXT NOT NULL,
                national_id TEXT NOT NULL,
                property_id UUID NOT NULL REFERENCES properties(id),
                room_id     UUID REFERENCES rooms(id) ON DELETE SET NULL,
                lease_start TIMESTAMPTZ NOT NULL,
                lease_end   TIMESTAMPTZ NOT NULL,
                status      TEXT NOT NULL DEFAULT 'active',
                notes       TEXT NOT NULL DEFAULT '',
                created_at  TIMESTAMPTZ NOT NULL DEFAULT NOW(),
                updated_at  TIMESTAMPTZ NOT NULL DEFAULT NOW(),
                CONSTRAINT tenants_phone_key UNIQUE (phone),
                CONSTRAINT tenants_national_id_key UNIQUE (national_id)
            )`,
			`CREATE INDEX tenants_landlord_idx ON tenants (landlord_id)`,
			`CREATE INDEX tenants_user_idx ON tenants (user_id)`,
			`ALTER TABLE rooms
                ADD CONSTRAINT rooms_tenant_fk FOREIGN KEY (tenant_id) REFERENCES tenants(id)`,
			`CREATE TABLE leases (
                id          UUID PRIMARY KEY,
                tenant_id   UUID NOT NULL REFERENCES tenants(id) ON DELETE CASCADE,
                property_id UUID NOT NULL REFERENCES properties(id) ON DELETE CASCADE,
                room_id     UUID REFERENCES rooms(id) ON DELETE SET NULL,
                lease_start TIMESTAMPTZ NOT NULL,
                lease_end   TIMESTAMPTZ NOT NULL,
                status      TEXT NOT NULL DEFAULT 'active',
                notes       TEXT NOT NULL DEFAULT '',
                created_at  TIMESTAMPTZ NOT NULL DEFAULT NOW(),
                updated_at  TIMESTAMPTZ NOT NULL DEFAULT NOW()
            )`,
			`CREATE INDEX leases_tenant_idx ON leases (tenant_id)`,
		)
	},
	Down: func(db *gorm.DB) error {
		return execAll(db,
			`DROP TABLE IF EXISTS leases`,
			`ALTER TABLE rooms DROP CONSTRAINT IF EXISTS rooms_tenant_fk`,
			`DROP TABLE IF EXISTS tenants`,
		)
	},
}

var ledgerTables = &Migration{
	Version: "0004",
	Name:    "ledger",
	Up: func(db *gorm.DB) error {
		return execAll(db,
			`CREATE TABLE bills (
                id              UUID PRIMARY KEY,
                tenant_user_id  UUID REFERENCES users(id) ON DELETE SET NULL,
                tenant_id       UUID REFERENCES tenants(id) ON DELETE SET NULL,
                property_id     UUID NOT NULL REFERENCES properties(id) ON DELETE CASCADE,
                room_id         UUID REFERENCES rooms(id) ON DELETE SET NULL,
                created_by      UUID NOT NULL REFERENCES users(id),
                type            TEXT NOT NULL,
                description     TEXT NOT NULL DEFAULT '',
                amount          BIGINT NOT NULL CHECK (amount >= 0),
                due_date        TIMESTAMPTZ NOT NULL,
                status          TEXT NOT NULL,
                payment_history JSONB NOT NULL DEFAULT '[]'::jsonb,
                created_at      TIMESTAMPTZ NOT NULL DEFAULT NOW(),
                updated_at      TIMESTAMPTZ NOT NULL DEFAULT NOW(),
                row_version     BIGINT NOT NULL DEFAULT 1
            )`,
			`CREATE INDEX bills_created_by_idx ON bills (created_by)`,
			`CREATE INDEX bills_tenant_user_idx ON bills (tenant_user_id)`,
			`CREATE INDEX bills_overdue_idx ON bills (due_date) WHERE status = 'pending'`,
			`CREATE TABLE payments (
                id                  UUID PRIMARY KEY,
                bill_id             UUID NOT NULL REFERENCES bills(id) ON DELETE CASCADE,
                amount              BIGINT NOT NULL CHECK (amount >= 0),
                method              TEXT NOT NULL,
                status              TEXT NOT NULL,
                reference           TEXT NOT NULL,
                transaction_id      TEXT,
                checkout_request_id TEXT,
                idempotency_key     TEXT,
                payment_date        TIMESTAMPTZ NOT NULL,
                notes               TEXT NOT NULL DEFAULT '',
                created_by          UUID NOT NULL, -- kept after the recording user is removed
                created_at          TIMESTAMPTZ NOT NULL DEFAULT NOW(),
                updated_at          TIMESTAMPTZ NOT NULL DEFAULT NOW(),
                row_version         BIGINT NOT NULL DEFAULT 1,
                CONSTRAINT payments_reference_key UNIQUE (reference)
            )`,
			`CREATE UNIQUE INDEX payments_checkout_request_uniq
                ON payments (checkout_request_id) WHERE checkout_request_id IS NOT NULL`,
			`CREATE UNIQUE INDEX payments_idempotency_key_uniq
                ON payments (created_by, idempotency_key) WHERE idempotency_key IS NOT NULL`,
			`CREATE INDEX payments_bill_idx ON payments (bill_id)`,
		)
	},
	Down: func(db *gorm.DB) error {
		return execAll(db,
			`DROP TABLE IF EXISTS payments`,
			`DROP TABLE IF EXISTS bills`,
		)
	},
}

var complaintTables = &Migration{
	Version: "0005",
	Name:    "complaints",
	Up: func(db *gorm.DB) error {
		return execAll(db,
			`CREATE TABLE complaints (
                id          UUID PRIMARY KEY,
                property_id UUID NOT NULL REFERENCES properties(id) ON DELETE CASCADE,
                landlord_id UUID NOT NULL REFERENCES users(id),
                author_id   UUID NOT NULL REFERENCES users(id) ON DELETE CASCADE,
                title       TEXT NOT NULL,
                description TEXT NOT NULL,
                status      TEXT NOT NULL DEFAULT 'open',
                created_at  TIMESTAMPTZ NOT NULL DEFAULT NOW(),
                updated_at  TIMESTAMPTZ NOT NULL DEFAULT NOW()
            )`,
			`CREATE INDEX complaints_landlord_idx ON complaints (landlord_id)`,
		)
	},
	Down: func(db *gorm.DB) error {
		return execAll(db, `DROP TABLE IF EXISTS complaints`)
	},
}

// refreshTokenRotation keeps rotated refresh tokens until they expire so a
// replayed one can be recognised as reuse.
var refreshTokenRotation = &Migration{
	Version: "0006",
	Name:    "refresh_token_rotation",
	Up: func(db *gorm.DB) error {
		return execAll(db,
			`ALTER TABLE refresh_tokens ADD COLUMN rotated_at TIMESTAMPTZ`,
		)
	},
	Down: func(db *gorm.DB) error {
		return execAll(db, `ALTER TABLE refresh_tokens DROP COLUMN IF EXISTS rotated_at`)
	},
}
