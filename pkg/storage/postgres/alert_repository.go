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
	"database/sql"
	"errors"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/jordigilh/alertpipe/pkg/storage/repository"
	"github.com/jordigilh/alertpipe/pkg/types"
)

type alertRow struct {
	ID          string         `db:"id"`
	Fingerprint string         `db:"fingerprint"`
	Source      string         `db:"source"`
	Name        string         `db:"name"`
	Severity    string         `db:"severity"`
	Status      string         `db:"status"`
	Labels      jsonMap        `db:"labels"`
	Annotations jsonMap        `db:"annotations"`
	RawPayload  jsonAny        `db:"raw_payload"`
	IncidentID  sql.NullString `db:"incident_id"`
	ReceivedAt  sql.NullTime   `db:"received_at"`
	StartsAt    sql.NullTime   `db:"starts_at"`
	EndsAt      sql.NullTime   `db:"ends_at"`
}

func (r alertRow) toDomain() *types.Alert {
	a := &types.Alert{
		ID:          r.ID,
		Fingerprint: r.Fingerprint,
		Source:      r.Source,
		Name:        r.Name,
		Severity:    types.Severity(r.Severity),
		Status:      types.AlertStatus(r.Status),
		Labels:      map[string]string(r.Labels),
		Annotations: map[string]string(r.Annotations),
		RawPayload:  []byte(r.RawPayload),
		IncidentID:  r.IncidentID.String,
		ReceivedAt:  r.ReceivedAt.Time,
		StartsAt:    r.StartsAt.Time,
	}
	if r.EndsAt.Valid {
		t := r.EndsAt.Time
		a.EndsAt = &t
	}
	return a
}

func fromAlert(a *types.Alert) alertRow {
	row := alertRow{
		ID:          a.ID,
		Fingerprint: a.Fingerprint,
		Source:      a.Source,
		Name:        a.Name,
		Severity:    string(a.Severity),
		Status:      string(a.Status),
		Labels:      jsonMap(a.Labels),
		Annotations: jsonMap(a.Annotations),
		RawPayload:  jsonAny(a.RawPayload),
		IncidentID:  sql.NullString{String: a.IncidentID, Valid: a.IncidentID != ""},
		ReceivedAt:  sql.NullTime{Time: a.ReceivedAt, Valid: !a.ReceivedAt.IsZero()},
		StartsAt:    sql.NullTime{Time: a.StartsAt, Valid: !a.StartsAt.IsZero()},
	}
	if a.EndsAt != nil {
		row.EndsAt = sql.NullTime{Time: *a.EndsAt, Valid: true}
	}
	return row
}

type AlertRepository struct{ DB *sqlx.DB }

var _ repository.AlertRepository = AlertRepository{}

func (r AlertRepository) FindFiringByFingerprint(ctx context.Context, fingerprint string) (*types.Alert, error) {
	var row alertRow
	err := r.DB.GetContext(ctx, &row, `
		SELECT id, fingerprint, source, name, severity, status, labels, annotations,
		       raw_payload, incident_id, received_at, starts_at, ends_at
		FROM alerts WHERE fingerprint = $1 AND status = 'firing'`, fingerprint)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, repository.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return row.toDomain(), nil
}

func (r AlertRepository) Insert(ctx context.Context, alert *types.Alert) error {
	if alert.ID == "" {
		alert.ID = uuid.NewString()
	}
	row := fromAlert(alert)
	_, err := r.DB.NamedExecContext(ctx, `
		INSERT INTO alerts (id, fingerprint, source, name, severity, status, labels,
		                     annotations, raw_payload, incident_id, received_at, starts_at, ends_at)
		VALUES (:id, :fingerprint, :source, :name, :severity, :status, :labels,
		        :annotations, :raw_payload, :incident_id, :received_at, :starts_at, :ends_at)`, row)
	return err
}

func (r AlertRepository) Update(ctx context.Context, alert *types.Alert) error {
	row := fromAlert(alert)
	res, err := r.DB.NamedExecContext(ctx, `
		UPDATE alerts SET source=:source, name=:name, severity=:severity, status=:status,
		       labels=:labels, annotations=:annotations, raw_payload=:raw_payload,
		       incident_id=:incident_id, received_at=:received_at, starts_at=:starts_at, ends_at=:ends_at
		WHERE id=:id`, row)
	if err != nil {
		return err
	}
	return checkRowsAffected(res)
}

func (r AlertRepository) Get(ctx context.Context, id string) (*types.Alert, error) {
	var row alertRow
	err := r.DB.GetContext(ctx, &row, `
		SELECT id, fingerprint, source, name, severity, status, labels, annotations,
		       raw_payload, incident_id, received_at, starts_at, ends_at
		FROM alerts WHERE id = $1`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, repository.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return row.toDomain(), nil
}

func (r AlertRepository) ListByIncident(ctx context.Context, incidentID string) ([]*types.Alert, error) {
	var rows []alertRow
	err := r.DB.SelectContext(ctx, &rows, `
		SELECT id, fingerprint, source, name, severity, status, labels, annotations,
		       raw_payload, incident_id, received_at, starts_at, ends_at
		FROM alerts WHERE incident_id = $1 ORDER BY received_at`, incidentID)
	if err != nil {
		return nil, err
	}
	out := make([]*types.Alert, len(rows))
	for i, row := range rows {
		out[i] = row.toDomain()
	}
	return out, nil
}

func checkRowsAffected(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return repository.ErrNotFound
	}
	return nil
}
