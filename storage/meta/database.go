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
	"encoding/json"
	"strings"
	"time"

	"github.com/XSAM/otelsql"
	"github.com/google/uuid"
	"github.com/gorse-io/reco/model"
	"github.com/gorse-io/reco/storage"
	"github.com/juju/errors"
	"github.com/samber/lo"
	semconv "go.opentelemetry.io/otel/semconv/v1.12.0"
)

const (
	StatusRunning   = "running"
	StatusCompleted = "completed"
	StatusDiverged  = "diverged"
	StatusFailed    = "failed"
)

// LatestKey is the key of the latest completed run of a model.
func LatestKey(modelName string) string {
	return "latest/" + modelName
}

// Run is a record of a training run.
type Run struct {
	ID        string
	Model     string
	Config    *model.Config
	Status    string
	Epochs    int
	TrainRMSE float64
	ValidRMSE float64
	Archive   string
	Message   string
	StartTime time.Time
	EndTime   time.Time
}

// NewRun creates a running record with a random identifier.
func NewRun(modelName string, config *model.Config) *Run {
	return &Run{
		ID:        uuid.NewString(),
		Model:     modelName,
		Config:    config,
		Status:    StatusRunning,
		StartTime: time.Now().UTC(),
	}
}

// Finish fills the outcome of training.
func (r *Run) Finish(result model.Result, err error) {
	r.EndTime = time.Now().UTC()
	r.Epochs = result.Epochs
	r.TrainRMSE = result.TrainRMSE
	r.ValidRMSE = result.ValidRMSE
	var divergenceError *model.DivergenceError
	switch {
	case err == nil:
		r.Status = StatusCompleted
	case errors.As(err, &divergenceError):
		r.Status = StatusDiverged
		r.Message = err.Error()
	default:
		r.Status = StatusFailed
		r.Message = err.Error()
	}
}

func (r *Run) configJSON() (string, error) {
	data, err := json.Marshal(r.Config)
	return string(data), errors.Trace(err)
}

func (r *Run) setConfigJSON(data string) error {
	r.Config = &model.Config{}
	return json.Unmarshal([]byte(data), r.Config)
}

type Database interface {
	Close() error
	Init() error
	PutRun(run *Run) error
	GetRun(id string) (*Run, error)
	ListRuns(modelName string, limit int) ([]*Run, error)
	Put(key, value string) error
	Get(key string) (*string, error)
}

// Open a connection to a database.
func Open(path string) (Database, error) {
	var err error
	if strings.HasPrefix(path, storage.SQLitePrefix) {
		dataSourceName := path[len(storage.SQLitePrefix):]
		// append parameters
		if dataSourceName, err = storage.AppendURLParams(dataSourceName, []lo.Tuple2[string, string]{
			{"_pragma", "busy_timeout(10000)"},
			{"_pragma", "journal_mode(wal)"},
		}); err != nil {
			return nil, errors.Trace(err)
		}
		// connect to database
		database := new(SQLite)
		if database.db, err = otelsql.Open("sqlite", dataSourceName,
			otelsql.WithAttributes(semconv.DBSystemSqlite),
			otelsql.WithSpanOptions(otelsql.SpanOptions{DisableErrSkip: true}),
		); err != nil {
			return nil, errors.Trace(err)
		}
		return database, nil
	}
	return nil, errors.Errorf("Unknown database: %s", path)
}
