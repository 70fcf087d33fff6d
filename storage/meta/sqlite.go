// Copyright 2024 gorse Project Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
// http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package meta

import (
	"database/sql"
	"time"

	"github.com/juju/errors"
	_ "modernc.org/sqlite"
)

type SQLite struct {
	db *sql.DB
}

func (s *SQLite) Close() error {
	return s.db.Close()
}

func (s *SQLite) Init() error {
	// Create tables
	if _, err := s.db.Exec(`
CREATE TABLE IF NOT EXISTS runs (
	id TEXT PRIMARY KEY,
	model TEXT,
	config TEXT,
	status TEXT,
	epochs INTEGER,
	train_rmse REAL,
	valid_rmse REAL,
	archive TEXT,
	message TEXT,
	start_time DATETIME,
	end_time DATETIME
);`); err != nil {
		return errors.Trace(err)
	}
	if _, err := s.db.Exec(`
CREATE INDEX IF NOT EXISTS runs_model_start_time ON runs (model, start_time);`); err != nil {
		return errors.Trace(err)
	}
	if _, err := s.db.Exec(`
CREATE TABLE IF NOT EXISTS key_values (
	key TEXT PRIMARY KEY,
	value TEXT
);`); err != nil {
		return errors.Trace(err)
	}
	return nil
}

// PutRun inserts a run or replaces the run with the same identifier.
func (s *SQLite) PutRun(run *Run) error {
	config, err := run.configJSON()
	if err != nil {
		return errors.Trace(err)
	}
	_, err = s.db.Exec(`
INSERT INTO runs (id, model, config, status, epochs, train_rmse, valid_rmse, archive, message, start_time, end_time)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT(id) DO UPDATE SET
	model = excluded.model,
	config = excluded.config,
	status = excluded.status,
	epochs = excluded.epochs,
	train_rmse = excluded.train_rmse,
	valid_rmse = excluded.valid_rmse,
	archive = excluded.archive,
	message = excluded.message,
	start_time = excluded.start_time,
	end_time = excluded.end_time
`, run.ID, run.Model, config, run.Status, run.Epochs, run.TrainRMSE, run.ValidRMSE,
		run.Archive, run.Message, run.StartTime.UTC(), run.EndTime.UTC())
	return errors.Trace(err)
}

func (s *SQLite) GetRun(id string) (*Run, error) {
	rs, err := s.db.Query(`
SELECT id, model, config, status, epochs, train_rmse, valid_rmse, archive, message, start_time, end_time
FROM runs WHERE id = ?
`, id)
	if err != nil {
		return nil, errors.Trace(err)
	}
	runs, err := scanRuns(rs)
	if err != nil {
		return nil, errors.Trace(err)
	}
	if len(runs) == 0 {
		return nil, errors.NotFoundf("run %s", id)
	}
	return runs[0], nil
}

// ListRuns lists the latest runs of a model. Runs of every model are listed
// if the model name is empty.
func (s *SQLite) ListRuns(modelName string, limit int) ([]*Run, error) {
	if limit <= 0 {
		limit = -1
	}
	rs, err := s.db.Query(`
SELECT id, model, config, status, epochs, train_rmse, valid_rmse, archive, message, start_time, end_time
FROM runs WHERE ? = '' OR model = ?
ORDER BY start_time DESC LIMIT ?
`, modelName, modelName, limit)
	if err != nil {
		return nil, errors.Trace(err)
	}
	return scanRuns(rs)
}

func scanRuns(rs *sql.Rows) ([]*Run, error) {
	defer rs.Close()
	var runs []*Run
	for rs.Next() {
		var (
			run       Run
			config    string
			startTime time.Time
			endTime   time.Time
		)
		if err := rs.Scan(&run.ID, &run.Model, &config, &run.Status, &run.Epochs, &run.TrainRMSE, &run.ValidRMSE,
			&run.Archive, &run.Message, &startTime, &endTime); err != nil {
			return nil, errors.Trace(err)
		}
		if err := run.setConfigJSON(config); err != nil {
			return nil, errors.Trace(err)
		}
		run.StartTime, run.EndTime = startTime.UTC(), endTime.UTC()
		runs = append(runs, &run)
	}
	return runs, errors.Trace(rs.Err())
}

func (s *SQLite) Put(key, value string) error {
	_, err := s.db.Exec(`
INSERT INTO key_values (key, value) VALUES (?, ?)
ON CONFLICT(key) DO UPDATE SET value = excluded.value
`, key, value)
	return errors.Trace(err)
}

func (s *SQLite) Get(key string) (*string, error) {
	var value string
	err := s.db.QueryRow(`
SELECT value FROM key_values WHERE key = ?
`, key).Scan(&value)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil // key not found
		}
		return nil, errors.Trace(err)
	}
	return &value, nil
}
