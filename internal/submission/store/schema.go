package store

// Schema is the DDL for the Postgres submission store. Applied by deployment
// tooling and by integration suites.
const Schema = `
CREATE TABLE IF NOT EXISTS submissions (
	id             UUID PRIMARY KEY,
	url            TEXT NOT NULL DEFAULT '',
	file_reference TEXT NOT NULL DEFAULT '',
	title          TEXT NOT NULL,
	publisher      TEXT NOT NULL DEFAULT '',
	country        CHAR(2) NOT NULL,
	category       TEXT NOT NULL,
	submitter_id   UUID NOT NULL,
	status         TEXT NOT NULL,
	credibility    TEXT NOT NULL DEFAULT '',
	verifier_id    UUID,
	verifier_notes TEXT NOT NULL DEFAULT '',
	verified_at    TIMESTAMPTZ,
	version        BIGINT NOT NULL,
	created_at     TIMESTAMPTZ NOT NULL,
	updated_at     TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_submissions_country_status ON submissions (country, status);
CREATE INDEX IF NOT EXISTS idx_submissions_submitter ON submissions (submitter_id);

CREATE TABLE IF NOT EXISTS review_history (
	submission_id UUID NOT NULL REFERENCES submissions(id) ON DELETE CASCADE,
	seq           INT NOT NULL,
	actor_id      UUID NOT NULL,
	action        TEXT NOT NULL,
	notes         TEXT NOT NULL DEFAULT '',
	created_at    TIMESTAMPTZ NOT NULL,
	PRIMARY KEY (submission_id, seq)
);
`
