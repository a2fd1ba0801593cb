package store

// Schema is the DDL for the Postgres point ledger.
const Schema = `
CREATE TABLE IF NOT EXISTS point_accounts (
	user_id        UUID PRIMARY KEY,
	points         INT NOT NULL DEFAULT 0 CHECK (points >= 0),
	approved_count INT NOT NULL DEFAULT 0,
	verified_count INT NOT NULL DEFAULT 0,
	updated_at     TIMESTAMPTZ NOT NULL
);

CREATE TABLE IF NOT EXISTS point_awards (
	user_id       UUID NOT NULL,
	submission_id UUID NOT NULL,
	rule          TEXT NOT NULL,
	points        INT NOT NULL,
	awarded_at    TIMESTAMPTZ NOT NULL,
	PRIMARY KEY (user_id, submission_id, rule)
);

CREATE TABLE IF NOT EXISTS user_badges (
	user_id   UUID NOT NULL,
	badge     TEXT NOT NULL,
	earned_at TIMESTAMPTZ NOT NULL,
	PRIMARY KEY (user_id, badge)
);
`
