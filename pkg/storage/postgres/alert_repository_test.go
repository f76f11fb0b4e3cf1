/*
Copyright 2025 Jordi Gil.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package postgres

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jordigilh/alertpipe/pkg/storage/repository"
	"github.com/jordigilh/alertpipe/pkg/types"
)

func testAlert() *types.Alert {
	return &types.Alert{
		ID:          "alert-1",
		Fingerprint: "fp-1",
		Source:      "alertmanager",
		Name:        "HighCPU",
		Severity:    types.SeverityCritical,
		Status:      types.AlertStatusFiring,
		Labels:      map[string]string{},
		Annotations: map[string]string{},
		RawPayload:  []byte(`{}`),
	}
}

func newMockDB(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return sqlx.NewDb(db, "postgres"), mock
}

func TestAlertRepository_FindFiringByFingerprint_NotFound(t *testing.T) {
	db, mock := newMockDB(t)
	repo := AlertRepository{DB: db}

	mock.ExpectQuery("SELECT .* FROM alerts WHERE fingerprint").
		WithArgs("fp-missing").
		WillReturnRows(sqlmock.NewRows([]string{
			"id", "fingerprint", "source", "name", "severity", "status", "labels",
			"annotations", "raw_payload", "incident_id", "received_at", "starts_at", "ends_at",
		}))

	_, err := repo.FindFiringByFingerprint(context.Background(), "fp-missing")
	assert.ErrorIs(t, err, repository.ErrNotFound)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestAlertRepository_FindFiringByFingerprint_Found(t *testing.T) {
	db, mock := newMockDB(t)
	repo := AlertRepository{DB: db}

	now := time.Now().UTC().Truncate(time.Second)
	mock.ExpectQuery("SELECT .* FROM alerts WHERE fingerprint").
		WithArgs("fp-1").
		WillReturnRows(sqlmock.NewRows([]string{
			"id", "fingerprint", "source", "name", "severity", "status", "labels",
			"annotations", "raw_payload", "incident_id", "received_at", "starts_at", "ends_at",
		}).AddRow(
			"alert-1", "fp-1", "alertmanager", "HighCPU", "critical", "firing",
			[]byte(`{}`), []byte(`{}`), []byte(`{}`), "incident-1", now, now, nil,
		))

	alert, err := repo.FindFiringByFingerprint(context.Background(), "fp-1")
	require.NoError(t, err)
	assert.Equal(t, "alert-1", alert.ID)
	assert.Equal(t, "incident-1", alert.IncidentID)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestAlertRepository_Update_NotFoundWhenNoRowsAffected(t *testing.T) {
	db, mock := newMockDB(t)
	repo := AlertRepository{DB: db}

	mock.ExpectExec("UPDATE alerts SET").WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.Update(context.Background(), testAlert())
	assert.ErrorIs(t, err, repository.ErrNotFound)
	require.NoError(t, mock.ExpectationsWereMet())
}
