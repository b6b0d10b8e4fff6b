package database

// Schema statements use {{...}} placeholders for column types; see
// dialect.ddl. Each statement is executed on its own so no driver needs
// multi-statement support.

// schemaMigrationsTable creates the schema_migrations table for tracking database versions.
const schemaMigrationsTable = `
CREATE TABLE IF NOT EXISTS schema_migrations (
    version {{int}} PRIMARY KEY,
    applied_at {{ts}} NOT NULL,
    description {{str}}
)`

// accountsAndPetsSchema is version 1.
var accountsAndPetsSchema = []string{
	`CREATE TABLE IF NOT EXISTS accounts (
    id {{id}} PRIMARY KEY,
    username {{str}} NOT NULL UNIQUE,
    password {{str}} NOT NULL,
    full_name {{str}} NOT NULL DEFAULT '',
    email {{str}} NOT NULL DEFAULT '',
    created_at {{ts}} NOT NULL,
    updated_at {{ts}} NOT NULL
)`,
	`CREATE TABLE IF NOT EXISTS pets (
    id {{id}} PRIMARY KEY,
    name {{str}} NOT NULL,
    gender {{str}} NOT NULL,
    age {{int}} NOT NULL,
    breed {{str}} NOT NULL,
    health {{text}},
    contact {{str}} NOT NULL,
    traits {{text}},
    reason {{text}},
    image {{blob}},
    status {{str}} NOT NULL,
    created_at {{ts}} NOT NULL,

    CHECK (age >= 0),
    CHECK (status IN ('available', 'adopted', 'in_foster', 'unknown'))
)`,
	`CREATE INDEX idx_pets_status ON pets(status)`,
	`CREATE INDEX idx_pets_created_at ON pets(created_at)`,
}

// appointmentsAndDonationsSchema is version 2.
var appointmentsAndDonationsSchema = []string{
	`CREATE TABLE IF NOT EXISTS appointments (
    id {{id}} PRIMARY KEY,
    pet_name {{str}} NOT NULL,
    owner {{str}} NOT NULL,
    vet {{str}} NOT NULL,
    reason {{text}},
    scheduled_at {{ts}} NOT NULL,
    created_at {{ts}} NOT NULL
)`,
	`CREATE INDEX idx_appointments_scheduled_at ON appointments(scheduled_at)`,
	`CREATE TABLE IF NOT EXISTS donations (
    id {{id}} PRIMARY KEY,
    donor {{str}} NOT NULL,
    amount_cents {{bigint}} NOT NULL,
    note {{text}},
    created_at {{ts}} NOT NULL,

    CHECK (amount_cents > 0)
)`,
	`CREATE INDEX idx_donations_created_at ON donations(created_at)`,
}
