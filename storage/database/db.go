package database

import (
	"net/url"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
	"github.com/pkg/errors"

	"github.com/trezcool/quickgrade/core"
)

const (
	EngineSqlite   = "sqlite3"
	EnginePostgres = "postgres"
	EngineMemory   = "memory"
)

const schema = `
CREATE TABLE IF NOT EXISTS saved_documents (
	id              TEXT PRIMARY KEY,
	assignment_name TEXT NOT NULL,
	student_count   INTEGER NOT NULL DEFAULT 0,
	document        TEXT NOT NULL,
	saved_at        TIMESTAMP NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_saved_documents_saved_at ON saved_documents(saved_at);
CREATE INDEX IF NOT EXISTS idx_saved_documents_assignment ON saved_documents(assignment_name);
`

func dataSourceName(conf *core.Config) string {
	if conf.Database.Engine != EnginePostgres {
		return conf.Database.Path
	}

	sslMode := "require"
	if conf.Database.DisableTLS {
		sslMode = "disable"
	}
	q := make(url.Values)
	q.Set("sslmode", sslMode)
	q.Set("timezone", "utc")

	u := url.URL{
		Scheme:   conf.Database.Engine,
		User:     url.UserPassword(conf.Database.User, conf.Database.Password),
		Host:     conf.Database.Address(),
		Path:     conf.Database.Name,
		RawQuery: q.Encode(),
	}
	return u.String()
}

// Open connects to the configured sqlite3 or postgres database and waits for it to be ready.
func Open(conf *core.Config) (*sqlx.DB, error) {
	switch conf.Database.Engine {
	case EngineSqlite, EnginePostgres:
	default:
		return nil, errors.Errorf("unsupported database engine %q", conf.Database.Engine)
	}

	db, err := sqlx.Open(conf.Database.Engine, dataSourceName(conf))
	if err != nil {
		return nil, errors.Wrap(err, "opening database")
	}
	if conf.Database.Engine == EngineSqlite {
		// sqlite3 does not support concurrent writers
		db.SetMaxOpenConns(1)
	}
	if err = ping(db); err != nil {
		_ = db.Close()
		return nil, errors.Wrap(err, "pinging database")
	}
	return db, nil
}

// ping waits for the database to be ready. Waits 100ms longer between each attempt.
func ping(db *sqlx.DB) error {
	var err error
	maxAttempts := 30
	for attempts := 1; attempts <= maxAttempts; attempts++ {
		err = db.Ping()
		if err == nil {
			break
		}
		time.Sleep(time.Duration(attempts) * 100 * time.Millisecond)
	}

	if err != nil {
		return errors.Wrap(err, "DB ping timeout")
	}
	return nil
}

// Migrate creates the tables that do not exist yet.
func Migrate(db *sqlx.DB) error {
	if _, err := db.Exec(schema); err != nil {
		return errors.Wrap(err, "migrating database")
	}
	return nil
}
