package db

import (
	"context"
	"fmt"

	"gorm.io/gorm"
)

var migrationStatements = []string{
	`CREATE EXTENSION IF NOT EXISTS "uuid-ossp";`,
	`CREATE EXTENSION IF NOT EXISTS "btree_gist";`,
	`DO $$
	BEGIN
		IF NOT EXISTS (SELECT 1 FROM pg_type WHERE typname = 'payment_status') THEN
			CREATE TYPE payment_status AS ENUM ('PENDING', 'PROCESSING', 'COMPLETED', 'FAILED', 'REFUNDED');
		END IF;
		IF NOT EXISTS (SELECT 1 FROM pg_type WHERE typname = 'fiscal_action_type') THEN
			CREATE TYPE fiscal_action_type AS ENUM ('VERIFICATION', 'INFRINGEMENT', 'PATROL');
		END IF;
		IF NOT EXISTS (SELECT 1 FROM pg_type WHERE typname = 'verification_result') THEN
			CREATE TYPE verification_result AS ENUM ('VALID', 'EXPIRED', 'NOT_FOUND');
		END IF;
		IF NOT EXISTS (SELECT 1 FROM pg_type WHERE typname = 'infringement_type') THEN
			CREATE TYPE infringement_type AS ENUM ('NO_PERMIT', 'EXPIRED_PERMIT');
		END IF;
		IF NOT EXISTS (SELECT 1 FROM pg_type WHERE typname = 'infringement_status') THEN
			CREATE TYPE infringement_status AS ENUM ('REGISTERED', 'NOTIFIED', 'CONTESTED', 'CONFIRMED', 'PAID', 'CANCELLED');
		END IF;
	END
	$$;`,
	`CREATE TABLE IF NOT EXISTS vehicles (
		id UUID PRIMARY KEY DEFAULT uuid_generate_v4(),
		plate VARCHAR(7) NOT NULL,
		model VARCHAR(128),
		description TEXT,
		user_id UUID,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	);`,
	`CREATE UNIQUE INDEX IF NOT EXISTS uniq_vehicles_plate ON vehicles (plate);`,
	`CREATE INDEX IF NOT EXISTS idx_vehicles_user_id ON vehicles (user_id);`,
	`CREATE TABLE IF NOT EXISTS zones (
		id BIGSERIAL PRIMARY KEY,
		name VARCHAR(128) NOT NULL,
		description TEXT,
		active BOOLEAN NOT NULL DEFAULT TRUE,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	);`,
	`CREATE TABLE IF NOT EXISTS price_configs (
		id UUID PRIMARY KEY DEFAULT uuid_generate_v4(),
		zone_id BIGINT NOT NULL REFERENCES zones(id) ON DELETE RESTRICT,
		valid_from TIMESTAMPTZ NOT NULL,
		valid_to TIMESTAMPTZ,
		hour1_price NUMERIC(10,2) NOT NULL CHECK (hour1_price >= 0),
		hour2_price NUMERIC(10,2) NOT NULL CHECK (hour2_price >= 0),
		hour3_price NUMERIC(10,2) NOT NULL CHECK (hour3_price >= 0),
		hour4_price NUMERIC(10,2) NOT NULL CHECK (hour4_price >= 0),
		hour5_price NUMERIC(10,2) NOT NULL CHECK (hour5_price >= 0),
		hour6_price NUMERIC(10,2) NOT NULL CHECK (hour6_price >= 0),
		hour12_price NUMERIC(10,2) NOT NULL CHECK (hour12_price >= 0),
		created_by UUID,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		CONSTRAINT chk_price_configs_window CHECK (valid_to IS NULL OR valid_to > valid_from)
	);`,
	`CREATE INDEX IF NOT EXISTS idx_price_configs_zone_from ON price_configs (zone_id, valid_from DESC);`,
	`DO $$
	BEGIN
		IF NOT EXISTS (SELECT 1 FROM pg_constraint WHERE conname = 'excl_price_configs_zone_window') THEN
			ALTER TABLE price_configs
				ADD CONSTRAINT excl_price_configs_zone_window
				EXCLUDE USING gist (zone_id WITH =, tstzrange(valid_from, valid_to, '[)') WITH &&);
		END IF;
	END
	$$;`,
	`CREATE TABLE IF NOT EXISTS permits (
		id UUID PRIMARY KEY DEFAULT uuid_generate_v4(),
		vehicle_id UUID NOT NULL REFERENCES vehicles(id) ON DELETE RESTRICT,
		zone_id BIGINT NOT NULL REFERENCES zones(id) ON DELETE RESTRICT,
		price_config_id UUID NOT NULL REFERENCES price_configs(id) ON DELETE RESTRICT,
		user_id UUID,
		duration_hours INTEGER NOT NULL CHECK (duration_hours IN (1, 2, 3, 4, 5, 6, 12)),
		start_time TIMESTAMPTZ NOT NULL,
		end_time TIMESTAMPTZ NOT NULL,
		amount NUMERIC(10,2) NOT NULL CHECK (amount >= 0),
		payment_status payment_status NOT NULL DEFAULT 'PENDING',
		payment_method VARCHAR(32) NOT NULL,
		transaction_code VARCHAR(14) NOT NULL,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		CONSTRAINT chk_permits_window CHECK (end_time > start_time)
	);`,
	`CREATE UNIQUE INDEX IF NOT EXISTS uniq_permits_transaction_code ON permits (transaction_code);`,
	`CREATE INDEX IF NOT EXISTS idx_permits_vehicle_window ON permits (vehicle_id, start_time, end_time);`,
	`CREATE INDEX IF NOT EXISTS idx_permits_user_created ON permits (user_id, created_at DESC);`,
	`CREATE INDEX IF NOT EXISTS idx_permits_zone_id ON permits (zone_id);`,
	`CREATE TABLE IF NOT EXISTS permit_status_log (
		id UUID PRIMARY KEY DEFAULT uuid_generate_v4(),
		permit_id UUID NOT NULL REFERENCES permits(id) ON DELETE CASCADE,
		old_status payment_status,
		new_status payment_status NOT NULL,
		note TEXT,
		changed_by UUID,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	);`,
	`CREATE INDEX IF NOT EXISTS idx_permit_status_log_permit_id ON permit_status_log (permit_id);`,
	`CREATE TABLE IF NOT EXISTS fiscal_actions (
		id UUID PRIMARY KEY DEFAULT uuid_generate_v4(),
		fiscal_user_id UUID NOT NULL,
		plate VARCHAR(32) NOT NULL,
		action_type fiscal_action_type NOT NULL,
		latitude DOUBLE PRECISION,
		longitude DOUBLE PRECISION,
		performed_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	);`,
	`CREATE INDEX IF NOT EXISTS idx_fiscal_actions_user ON fiscal_actions (fiscal_user_id, performed_at DESC);`,
	`CREATE INDEX IF NOT EXISTS idx_fiscal_actions_plate ON fiscal_actions (plate);`,
	`CREATE TABLE IF NOT EXISTS verifications (
		id UUID PRIMARY KEY DEFAULT uuid_generate_v4(),
		fiscal_action_id UUID NOT NULL REFERENCES fiscal_actions(id) ON DELETE CASCADE,
		result verification_result NOT NULL,
		permit_id UUID REFERENCES permits(id) ON DELETE SET NULL,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	);`,
	`CREATE UNIQUE INDEX IF NOT EXISTS uniq_verifications_action ON verifications (fiscal_action_id);`,
	`CREATE TABLE IF NOT EXISTS infringements (
		id UUID PRIMARY KEY DEFAULT uuid_generate_v4(),
		vehicle_id UUID NOT NULL REFERENCES vehicles(id) ON DELETE RESTRICT,
		fiscal_action_id UUID NOT NULL REFERENCES fiscal_actions(id) ON DELETE CASCADE,
		infringement_type infringement_type NOT NULL,
		notes TEXT,
		evidence JSONB NOT NULL DEFAULT '[]'::jsonb,
		status infringement_status NOT NULL DEFAULT 'REGISTERED',
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	);`,
	`CREATE UNIQUE INDEX IF NOT EXISTS uniq_infringements_action ON infringements (fiscal_action_id);`,
	`CREATE INDEX IF NOT EXISTS idx_infringements_vehicle_id ON infringements (vehicle_id);`,
	`CREATE INDEX IF NOT EXISTS idx_infringements_status ON infringements (status);`,
	`CREATE INDEX IF NOT EXISTS idx_infringements_created_at ON infringements (created_at);`,
	`CREATE TABLE IF NOT EXISTS infringement_status_log (
		id UUID PRIMARY KEY DEFAULT uuid_generate_v4(),
		infringement_id UUID NOT NULL REFERENCES infringements(id) ON DELETE CASCADE,
		old_status infringement_status,
		new_status infringement_status NOT NULL,
		note TEXT,
		changed_by UUID,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	);`,
	`CREATE INDEX IF NOT EXISTS idx_infringement_status_log_infringement_id ON infringement_status_log (infringement_id);`,
	`CREATE OR REPLACE FUNCTION set_row_updated_at()
	RETURNS TRIGGER AS $$
	BEGIN
		NEW.updated_at = NOW();
		RETURN NEW;
	END;
	$$ LANGUAGE plpgsql;`,
	`DO $$
	BEGIN
		IF NOT EXISTS (SELECT 1 FROM pg_trigger WHERE tgname = 'trg_vehicles_updated_at') THEN
			CREATE TRIGGER trg_vehicles_updated_at
				BEFORE UPDATE ON vehicles
				FOR EACH ROW
				EXECUTE PROCEDURE set_row_updated_at();
		END IF;
		IF NOT EXISTS (SELECT 1 FROM pg_trigger WHERE tgname = 'trg_zones_updated_at') THEN
			CREATE TRIGGER trg_zones_updated_at
				BEFORE UPDATE ON zones
				FOR EACH ROW
				EXECUTE PROCEDURE set_row_updated_at();
		END IF;
		IF NOT EXISTS (SELECT 1 FROM pg_trigger WHERE tgname = 'trg_price_configs_updated_at') THEN
			CREATE TRIGGER trg_price_configs_updated_at
				BEFORE UPDATE ON price_configs
				FOR EACH ROW
				EXECUTE PROCEDURE set_row_updated_at();
		END IF;
		IF NOT EXISTS (SELECT 1 FROM pg_trigger WHERE tgname = 'trg_permits_updated_at') THEN
			CREATE TRIGGER trg_permits_updated_at
				BEFORE UPDATE ON permits
				FOR EACH ROW
				EXECUTE PROCEDURE set_row_updated_at();
		END IF;
		IF NOT EXISTS (SELECT 1 FROM pg_trigger WHERE tgname = 'trg_infringements_updated_at') THEN
			CREATE TRIGGER trg_infringements_updated_at
				BEFORE UPDATE ON infringements
				FOR EACH ROW
				EXECUTE PROCEDURE set_row_updated_at();
		END IF;
	END
	$$;`,
	`CREATE OR REPLACE FUNCTION trg_permits_freeze_completed()
	RETURNS TRIGGER AS $$
	BEGIN
		IF OLD.payment_status = 'COMPLETED' AND (
			NEW.start_time IS DISTINCT FROM OLD.start_time OR
			NEW.end_time IS DISTINCT FROM OLD.end_time OR
			NEW.amount IS DISTINCT FROM OLD.amount
		) THEN
			RAISE EXCEPTION 'permit % is completed; window and amount are immutable', OLD.id;
		END IF;
		RETURN NEW;
	END;
	$$ LANGUAGE plpgsql;`,
	`DO $$
	BEGIN
		IF NOT EXISTS (SELECT 1 FROM pg_trigger WHERE tgname = 'trg_permits_freeze_completed') THEN
			CREATE TRIGGER trg_permits_freeze_completed
				BEFORE UPDATE ON permits
				FOR EACH ROW
				EXECUTE PROCEDURE trg_permits_freeze_completed();
		END IF;
	END
	$$;`,
}

// migrationLockKey serialises Migrate across replicas starting together.
const migrationLockKey = 7090001

// Migrate applies the schema in one transaction. Every statement is
// idempotent, so it runs on each start.
func Migrate(ctx context.Context, database *gorm.DB) error {
	return database.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Exec("SELECT pg_advisory_xact_lock(?)", migrationLockKey).Error; err != nil {
			return fmt.Errorf("acquire migration lock: %w", err)
		}
		for i, stmt := range migrationStatements {
			if err := tx.Exec(stmt).Error; err != nil {
				return fmt.Errorf("migration %d failed: %w", i+1, err)
			}
		}
		return nil
	})
}
