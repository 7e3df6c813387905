package database

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"
	"go.uber.org/zap"
)

// Execer is the subset of pgxpool.Pool used to run migrations.
type Execer interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
}

// RunMigrations creates the outreach site's tables. Every statement is
// idempotent so the list can be replayed on each deploy.
func RunMigrations(ctx context.Context, db Execer, log *zap.SugaredLogger) error {
	migrations := []string{
		createEnumTypes,
		createCampaignsTable,
		createCampaignRegistrationsTable,
		createResourcesTable,
		createTutorialsTable,
		createTrainingsTable,
		createTestimoniesTable,
		createTeamMembersTable,
		createDonationsTable,
		createVolunteersTable,
		createConsultationRequestsTable,
		preventHardDeleteDonations,
	}

	for i, migration := range migrations {
		log.Debugw("running migration", "step", i+1, "total", len(migrations))
		if _, err := db.Exec(ctx, migration); err != nil {
			return fmt.Errorf("migration %d failed: %w", i+1, err)
		}
	}

	log.Infow("all migrations completed", "count", len(migrations))
	return nil
}

const createEnumTypes = `
DO $$
BEGIN
  IF NOT EXISTS (SELECT 1 FROM pg_type WHERE typname = 'campaign_status_t') THEN
    CREATE TYPE campaign_status_t AS ENUM ('draft', 'open', 'closed', 'archived');
  END IF;
END$$;

DO $$
BEGIN
  IF NOT EXISTS (SELECT 1 FROM pg_type WHERE typname = 'resource_kind_t') THEN
    CREATE TYPE resource_kind_t AS ENUM ('article', 'video', 'pdf', 'link');
  END IF;
END$$;
`

const createCampaignsTable = `
CREATE TABLE IF NOT EXISTS campaigns (
  id BIGINT GENERATED BY DEFAULT AS IDENTITY PRIMARY KEY,
  slug TEXT NOT NULL UNIQUE,
  title VARCHAR(200) NOT NULL,
  description TEXT,
  status campaign_status_t NOT NULL DEFAULT 'draft',
  starts_on DATE,
  ends_on DATE,
  goal_amount NUMERIC(12, 2),
  capacity INT,
  created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW()
);

CREATE INDEX IF NOT EXISTS idx_campaigns_status ON campaigns(status);
`

const createCampaignRegistrationsTable = `
CREATE TABLE IF NOT EXISTS campaign_registrations (
  id BIGINT GENERATED BY DEFAULT AS IDENTITY PRIMARY KEY,
  campaign_id BIGINT NOT NULL REFERENCES campaigns(id) ON DELETE RESTRICT,
  full_name TEXT NOT NULL,
  email TEXT NOT NULL,
  phone TEXT,
  registered_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),
  UNIQUE (campaign_id, email)
);

CREATE INDEX IF NOT EXISTS idx_campaign_registrations_campaign_id ON campaign_registrations(campaign_id);
`

const createResourcesTable = `
CREATE TABLE IF NOT EXISTS resources (
  id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
  title TEXT NOT NULL,
  kind resource_kind_t NOT NULL,
  url TEXT,
  summary TEXT,
  published BOOLEAN NOT NULL DEFAULT FALSE,
  metadata JSONB,
  created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW()
);
`

const createTutorialsTable = `
CREATE TABLE IF NOT EXISTS tutorials (
  id SERIAL PRIMARY KEY,
  title TEXT NOT NULL,
  body TEXT NOT NULL,
  duration_minutes SMALLINT,
  published BOOLEAN NOT NULL DEFAULT FALSE,
  created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW()
);
`

const createTrainingsTable = `
CREATE TABLE IF NOT EXISTS trainings (
  id SERIAL PRIMARY KEY,
  title TEXT NOT NULL,
  location TEXT,
  session_date DATE NOT NULL,
  starts_at TIME,
  seats INT NOT NULL DEFAULT 20,
  fee NUMERIC(8, 2) NOT NULL DEFAULT 0
);
`

const createTestimoniesTable = `
CREATE TABLE IF NOT EXISTS testimonies (
  id SERIAL PRIMARY KEY,
  author_name TEXT NOT NULL,
  quote TEXT NOT NULL,
  rating SMALLINT CHECK (rating BETWEEN 1 AND 5),
  approved BOOLEAN NOT NULL DEFAULT FALSE,
  photo BYTEA
);
`

const createTeamMembersTable = `
CREATE TABLE IF NOT EXISTS team_members (
  id SERIAL PRIMARY KEY,
  full_name TEXT NOT NULL,
  role TEXT NOT NULL,
  email TEXT UNIQUE,
  bio TEXT,
  sort_order INT NOT NULL DEFAULT 0
);
`

const createDonationsTable = `
CREATE TABLE IF NOT EXISTS donations (
  id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
  campaign_id BIGINT REFERENCES campaigns(id) ON DELETE SET NULL,
  donor_name TEXT,
  donor_email TEXT NOT NULL,
  amount NUMERIC(12, 2) NOT NULL CHECK (amount > 0),
  currency CHAR(3) NOT NULL DEFAULT 'USD',
  recurring BOOLEAN NOT NULL DEFAULT FALSE,
  donated_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW()
);

CREATE INDEX IF NOT EXISTS idx_donations_campaign_id ON donations(campaign_id);
`

const createVolunteersTable = `
CREATE TABLE IF NOT EXISTS volunteers (
  id SERIAL PRIMARY KEY,
  full_name TEXT NOT NULL,
  email TEXT NOT NULL UNIQUE,
  skills TEXT[],
  availability JSONB,
  signed_up_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW()
);
`

const createConsultationRequestsTable = `
CREATE TABLE IF NOT EXISTS consultation_requests (
  id BIGINT GENERATED ALWAYS AS IDENTITY PRIMARY KEY,
  visitor_email TEXT,
  question TEXT NOT NULL,
  transcript JSONB,
  created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW()
);
`

const preventHardDeleteDonations = `
CREATE OR REPLACE FUNCTION prevent_hard_delete_donations()
RETURNS trigger AS $$
BEGIN
  RAISE EXCEPTION 'Donations are financial records and cannot be deleted.';
END;
$$ LANGUAGE plpgsql;

DROP TRIGGER IF EXISTS no_donation_hard_delete ON donations;

CREATE TRIGGER no_donation_hard_delete
BEFORE DELETE ON donations
FOR EACH ROW
EXECUTE FUNCTION prevent_hard_delete_donations();
`
