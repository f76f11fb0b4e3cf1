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
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/jordigilh/alertpipe/pkg/storage/repository"
	"github.com/jordigilh/alertpipe/pkg/types"
)

type incidentRow struct {
	ID          string       `db:"id"`
	Title       string       `db:"title"`
	Description string       `db:"description"`
	Severity    string       `db:"severity"`
	Status      string       `db:"status"`
	GroupingKey string       `db:"grouping_key"`
	Metadata    jsonMap      `db:"metadata"`
	CreatedAt   sql.NullTime `db:"created_at"`
	UpdatedAt   sql.NullTime `db:"updated_at"`
	ResolvedAt  sql.NullTime `db:"resolved_at"`
}

func (r incidentRow) toDomain() *types.Incident {
	inc := &types.Incident{
		ID:          r.ID,
		Title:       r.Title,
		Description: r.Description,
		Severity:    types.Severity(r.Severity),
		Status:      types.IncidentStatus(r.Status),
		GroupingKey: r.GroupingKey,
		Metadata:    map[string]string(r.Metadata),
		CreatedAt:   r.CreatedAt.Time,
		UpdatedAt:   r.UpdatedAt.Time,
	}
	if r.ResolvedAt.Valid {
		t := r.ResolvedAt.Time
		inc.ResolvedAt = &t
	}
	return inc
}

func fromIncident(i *types.Incident) incidentRow {
	row := incidentRow{
		ID:          i.ID,
		Title:       i.Title,
		Description: i.Description,
		Severity:    string(i.Severity),
		Status:      string(i.Status),
		GroupingKey: i.GroupingKey,
		Metadata:    jsonMap(i.Metadata),
		CreatedAt:   sql.NullTime{Time: i.CreatedAt, Valid: !i.CreatedAt.IsZero()},
		UpdatedAt:   sql.NullTime{Time: i.UpdatedAt, Valid: !i.UpdatedAt.IsZero()},
	}
	if i.ResolvedAt != nil {
		row.ResolvedAt = sql.NullTime{Time: *i.ResolvedAt, Valid: true}
	}
	return row
}

type IncidentRepository struct{ DB *sqlx.DB }

var _ repository.IncidentRepository = IncidentRepository{}

func (r IncidentRepository) FindOpenByGroupingKey(ctx context.Context, groupingKey string) (*types.Incident, error) {
	var row incidentRow
	err := r.DB.GetContext(ctx, &row, `
		SELECT id, title, description, severity, status, grouping_key, metadata, created_at, updated_at, resolved_at
		FROM incidents WHERE grouping_key = $1 AND status NOT IN ('resolved', 'closed')
		ORDER BY created_at DESC LIMIT 1`, groupingKey)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, repository.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return row.toDomain(), nil
}

func (r IncidentRepository) Insert(ctx context.Context, incident *types.Incident) error {
	if incident.ID == "" {
		incident.ID = uuid.NewString()
	}
	row := fromIncident(incident)
	_, err := r.DB.NamedExecContext(ctx, `
		INSERT INTO incidents (id, title, description, severity, status, grouping_key, metadata, created_at, updated_at, resolved_at)
		VALUES (:id, :title, :description, :severity, :status, :grouping_key, :metadata, :created_at, :updated_at, :resolved_at)`, row)
	return err
}

func (r IncidentRepository) Update(ctx context.Context, incident *types.Incident) error {
	row := fromIncident(incident)
	res, err := r.DB.NamedExecContext(ctx, `
		UPDATE incidents SET title=:title, description=:description, severity=:severity, status=:status,
		       metadata=:metadata, updated_at=:updated_at, resolved_at=:resolved_at
		WHERE id=:id`, row)
	if err != nil {
		return err
	}
	return checkRowsAffected(res)
}

func (r IncidentRepository) Get(ctx context.Context, id string) (*types.Incident, error) {
	var row incidentRow
	err := r.DB.GetContext(ctx, &row, `
		SELECT id, title, description, severity, status, grouping_key, metadata, created_at, updated_at, resolved_at
		FROM incidents WHERE id = $1`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, repository.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return row.toDomain(), nil
}

func (r IncidentRepository) List(ctx context.Context, statusFilter string, limit, offset int) ([]*types.Incident, error) {
	query := `SELECT id, title, description, severity, status, grouping_key, metadata, created_at, updated_at, resolved_at
	          FROM incidents`
	args := []interface{}{}
	if statusFilter != "" {
		query += ` WHERE status = $1`
		args = append(args, statusFilter)
	}
	query += ` ORDER BY created_at LIMIT ? OFFSET ?`
	query = r.DB.Rebind(query)
	args = append(args, limit, offset)

	var rows []incidentRow
	if err := r.DB.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, err
	}
	out := make([]*types.Incident, len(rows))
	for i, row := range rows {
		out[i] = row.toDomain()
	}
	return out, nil
}

// AlertHistoryRepository appends to the audit trail of alert status changes.
type AlertHistoryRepository struct{ DB *sqlx.DB }

var _ repository.AlertHistoryRepository = AlertHistoryRepository{}

func (r AlertHistoryRepository) Append(ctx context.Context, h *types.AlertHistory) error {
	_, err := r.DB.ExecContext(ctx, `
		INSERT INTO alert_history (alert_id, previous_status, new_status, at, details)
		VALUES ($1, $2, $3, $4, $5)`, h.AlertID, h.PreviousStatus, h.NewStatus, h.At, h.Details)
	return err
}

type alertHistoryRow struct {
	ID             int64     `db:"id"`
	AlertID        string    `db:"alert_id"`
	PreviousStatus string    `db:"previous_status"`
	NewStatus      string    `db:"new_status"`
	At             time.Time `db:"at"`
	Details        string    `db:"details"`
}

func (r AlertHistoryRepository) ListByAlert(ctx context.Context, alertID string) ([]*types.AlertHistory, error) {
	var rows []alertHistoryRow
	err := r.DB.SelectContext(ctx, &rows, `
		SELECT id, alert_id, previous_status, new_status, at, details
		FROM alert_history WHERE alert_id = $1 ORDER BY at`, alertID)
	if err != nil {
		return nil, err
	}
	out := make([]*types.AlertHistory, len(rows))
	for i, row := range rows {
		out[i] = &types.AlertHistory{
			ID:             row.ID,
			AlertID:        row.AlertID,
			PreviousStatus: types.AlertStatus(row.PreviousStatus),
			NewStatus:      types.AlertStatus(row.NewStatus),
			At:             row.At,
			Details:        row.Details,
		}
	}
	return out, nil
}
