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
	"encoding/json"
	"errors"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/jordigilh/alertpipe/pkg/storage/repository"
	"github.com/jordigilh/alertpipe/pkg/types"
)

type definitionRow struct {
	Name      string  `db:"name"`
	Version   int     `db:"version"`
	Config    jsonAny `db:"config"`
	Tags      jsonAny `db:"tags"`
	IsActive  bool    `db:"is_active"`
}

func (r definitionRow) toDomain() (*types.PipelineDefinition, error) {
	var cfg types.DefinitionConfig
	if err := json.Unmarshal(r.Config, &cfg); err != nil {
		return nil, err
	}
	var tags []string
	if len(r.Tags) > 0 {
		if err := json.Unmarshal(r.Tags, &tags); err != nil {
			return nil, err
		}
	}
	return &types.PipelineDefinition{
		Name:     r.Name,
		Version:  r.Version,
		Config:   cfg,
		Tags:     tags,
		IsActive: r.IsActive,
	}, nil
}

type DefinitionRepository struct{ DB *sqlx.DB }

var _ repository.DefinitionRepository = DefinitionRepository{}

func (r DefinitionRepository) Get(ctx context.Context, name string) (*types.PipelineDefinition, error) {
	var row definitionRow
	err := r.DB.GetContext(ctx, &row, `
		SELECT name, version, config, tags, is_active FROM pipeline_definitions WHERE name = $1`, name)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, repository.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return row.toDomain()
}

// Upsert increments version on every call for an existing definition name,
// whether or not its config changed — the version bump is computed here
// rather than left to a trigger, so an in-memory implementation can mirror
// it exactly.
func (r DefinitionRepository) Upsert(ctx context.Context, def *types.PipelineDefinition) error {
	cfgJSON, err := json.Marshal(def.Config)
	if err != nil {
		return err
	}
	tagsJSON, err := json.Marshal(def.Tags)
	if err != nil {
		return err
	}

	existing, err := r.Get(ctx, def.Name)
	if err != nil && !errors.Is(err, repository.ErrNotFound) {
		return err
	}
	if existing != nil {
		def.Version = existing.Version + 1
	} else {
		def.Version = 1
	}

	_, err = r.DB.ExecContext(ctx, `
		INSERT INTO pipeline_definitions (name, version, config, tags, is_active, updated_at)
		VALUES ($1, $2, $3, $4, $5, now())
		ON CONFLICT (name) DO UPDATE SET version = $2, config = $3, tags = $4, is_active = $5, updated_at = now()`,
		def.Name, def.Version, []byte(cfgJSON), []byte(tagsJSON), def.IsActive)
	return err
}

func (r DefinitionRepository) List(ctx context.Context) ([]*types.PipelineDefinition, error) {
	var rows []definitionRow
	if err := r.DB.SelectContext(ctx, &rows, `SELECT name, version, config, tags, is_active FROM pipeline_definitions ORDER BY name`); err != nil {
		return nil, err
	}
	out := make([]*types.PipelineDefinition, len(rows))
	for i, row := range rows {
		d, err := row.toDomain()
		if err != nil {
			return nil, err
		}
		out[i] = d
	}
	return out, nil
}

// ChannelRepository queries NotificationChannel rows.
type ChannelRepository struct{ DB *sqlx.DB }

var _ repository.ChannelRepository = ChannelRepository{}

type channelRow struct {
	ID       string  `db:"id"`
	Name     string  `db:"name"`
	Driver   string  `db:"driver"`
	Config   jsonAny `db:"config"`
	IsActive bool    `db:"is_active"`
}

func (r channelRow) toDomain() (*types.NotificationChannel, error) {
	cfg := map[string]interface{}{}
	if len(r.Config) > 0 {
		if err := json.Unmarshal(r.Config, &cfg); err != nil {
			return nil, err
		}
	}
	return &types.NotificationChannel{ID: r.ID, Name: r.Name, Driver: r.Driver, Config: cfg, IsActive: r.IsActive}, nil
}

func (r ChannelRepository) ListActiveByDrivers(ctx context.Context, drivers []string) ([]*types.NotificationChannel, error) {
	query := `SELECT id, name, driver, config, is_active FROM notification_channels WHERE is_active = true`
	args := []interface{}{}
	if len(drivers) > 0 {
		query += ` AND driver = ANY(?)`
		args = append(args, pq.Array(drivers))
	}
	query = r.DB.Rebind(query)

	var rows []channelRow
	if err := r.DB.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, err
	}
	out := make([]*types.NotificationChannel, 0, len(rows))
	for _, row := range rows {
		c, err := row.toDomain()
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, nil
}

func (r ChannelRepository) ListActive(ctx context.Context) ([]*types.NotificationChannel, error) {
	return r.ListActiveByDrivers(ctx, nil)
}

// ProviderRepository queries the single active IntelligenceProvider row.
type ProviderRepository struct{ DB *sqlx.DB }

var _ repository.ProviderRepository = ProviderRepository{}

type providerRow struct {
	ID          string  `db:"id"`
	Name        string  `db:"name"`
	Type        string  `db:"type"`
	Credentials jsonAny `db:"credentials"`
	IsActive    bool    `db:"is_active"`
}

func (r ProviderRepository) GetActive(ctx context.Context) (*types.IntelligenceProvider, error) {
	var row providerRow
	err := r.DB.GetContext(ctx, &row, `
		SELECT id, name, type, credentials, is_active FROM intelligence_providers WHERE is_active = true LIMIT 1`)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, repository.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	creds := map[string]interface{}{}
	if len(row.Credentials) > 0 {
		if err := json.Unmarshal(row.Credentials, &creds); err != nil {
			return nil, err
		}
	}
	return &types.IntelligenceProvider{ID: row.ID, Name: row.Name, Type: row.Type, Credentials: creds, IsActive: row.IsActive}, nil
}
