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

// Package memory implements every repository.* interface in-process, for
// unit and orchestration-level tests that should not require a database.
// The FingerprintLocker here intentionally uses an in-process mutex map —
// acceptable in tests, but repository.FingerprintLocker callers in
// production must use the postgres advisory-lock implementation instead.
package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/google/uuid"

	"github.com/jordigilh/alertpipe/pkg/storage/repository"
	"github.com/jordigilh/alertpipe/pkg/types"
)

// Store bundles every in-memory repository implementation behind the same
// mutex, mirroring a single transactional database in tests.
type Store struct {
	mu sync.Mutex

	alerts        map[string]*types.Alert
	alertHistory  []*types.AlertHistory
	incidents     map[string]*types.Incident
	checkRuns     []*types.CheckRun
	analysisRuns  []*types.AnalysisRun
	runs          map[string]*types.PipelineRun
	stageExecs    map[string]*types.StageExecution
	definitions   map[string]*types.PipelineDefinition
	channels      map[string]*types.NotificationChannel
	providers     map[string]*types.IntelligenceProvider

	locks map[string]*sync.Mutex
}

func NewStore() *Store {
	return &Store{
		alerts:      map[string]*types.Alert{},
		incidents:   map[string]*types.Incident{},
		runs:        map[string]*types.PipelineRun{},
		stageExecs:  map[string]*types.StageExecution{},
		definitions: map[string]*types.PipelineDefinition{},
		channels:    map[string]*types.NotificationChannel{},
		providers:   map[string]*types.IntelligenceProvider{},
		locks:       map[string]*sync.Mutex{},
	}
}

// --- AlertRepository ---

func (s *Store) FindFiringByFingerprint(ctx context.Context, fingerprint string) (*types.Alert, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, a := range s.alerts {
		if a.Fingerprint == fingerprint && a.Status == types.AlertStatusFiring {
			cp := *a
			return &cp, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (s *Store) Insert(ctx context.Context, alert *types.Alert) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if alert.ID == "" {
		alert.ID = uuid.NewString()
	}
	cp := *alert
	s.alerts[alert.ID] = &cp
	return nil
}

func (s *Store) Update(ctx context.Context, alert *types.Alert) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.alerts[alert.ID]; !ok {
		return repository.ErrNotFound
	}
	cp := *alert
	s.alerts[alert.ID] = &cp
	return nil
}

func (s *Store) Get(ctx context.Context, id string) (*types.Alert, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.alerts[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	cp := *a
	return &cp, nil
}

func (s *Store) ListByIncident(ctx context.Context, incidentID string) ([]*types.Alert, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*types.Alert
	for _, a := range s.alerts {
		if a.IncidentID == incidentID {
			cp := *a
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ReceivedAt.Before(out[j].ReceivedAt) })
	return out, nil
}

// --- AlertHistoryRepository ---

func (s *Store) Append(ctx context.Context, h *types.AlertHistory) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	h.ID = int64(len(s.alertHistory) + 1)
	cp := *h
	s.alertHistory = append(s.alertHistory, &cp)
	return nil
}

func (s *Store) ListByAlert(ctx context.Context, alertID string) ([]*types.AlertHistory, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*types.AlertHistory
	for _, h := range s.alertHistory {
		if h.AlertID == alertID {
			cp := *h
			out = append(out, &cp)
		}
	}
	return out, nil
}

// --- IncidentRepository ---

func (s *Store) FindOpenByGroupingKey(ctx context.Context, groupingKey string) (*types.Incident, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, inc := range s.incidents {
		if inc.GroupingKey == groupingKey && inc.Status != types.IncidentResolved && inc.Status != types.IncidentClosed {
			cp := *inc
			return &cp, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (s *Store) InsertIncident(ctx context.Context, incident *types.Incident) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if incident.ID == "" {
		incident.ID = uuid.NewString()
	}
	cp := *incident
	s.incidents[incident.ID] = &cp
	return nil
}

func (s *Store) UpdateIncident(ctx context.Context, incident *types.Incident) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.incidents[incident.ID]; !ok {
		return repository.ErrNotFound
	}
	cp := *incident
	s.incidents[incident.ID] = &cp
	return nil
}

func (s *Store) GetIncident(ctx context.Context, id string) (*types.Incident, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	inc, ok := s.incidents[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	cp := *inc
	return &cp, nil
}

func (s *Store) ListIncidents(ctx context.Context, statusFilter string, limit, offset int) ([]*types.Incident, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*types.Incident
	for _, inc := range s.incidents {
		if statusFilter != "" && string(inc.Status) != statusFilter {
			continue
		}
		cp := *inc
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return paginate(out, limit, offset), nil
}

// --- CheckRunRepository ---

func (s *Store) InsertCheckRun(ctx context.Context, run *types.CheckRun) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if run.ID == "" {
		run.ID = uuid.NewString()
	}
	cp := *run
	s.checkRuns = append(s.checkRuns, &cp)
	return nil
}

func (s *Store) ListCheckRunsByTrace(ctx context.Context, traceID string) ([]*types.CheckRun, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*types.CheckRun
	for _, r := range s.checkRuns {
		if r.TraceID == traceID {
			cp := *r
			out = append(out, &cp)
		}
	}
	return out, nil
}

// --- AnalysisRunRepository ---

func (s *Store) InsertAnalysisRun(ctx context.Context, run *types.AnalysisRun) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if run.ID == "" {
		run.ID = uuid.NewString()
	}
	cp := *run
	s.analysisRuns = append(s.analysisRuns, &cp)
	return nil
}

func (s *Store) ListAnalysisRunsByIncident(ctx context.Context, incidentID string) ([]*types.AnalysisRun, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*types.AnalysisRun
	for _, r := range s.analysisRuns {
		if r.IncidentID == incidentID {
			cp := *r
			out = append(out, &cp)
		}
	}
	return out, nil
}

// --- PipelineRunRepository ---

func (s *Store) InsertRun(ctx context.Context, run *types.PipelineRun) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if run.ID == "" {
		run.ID = uuid.NewString()
	}
	cp := *run
	s.runs[run.ID] = &cp
	return nil
}

func (s *Store) UpdateRun(ctx context.Context, run *types.PipelineRun) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.runs[run.ID]; !ok {
		return repository.ErrNotFound
	}
	cp := *run
	s.runs[run.ID] = &cp
	return nil
}

func (s *Store) GetRun(ctx context.Context, id string) (*types.PipelineRun, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.runs[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	cp := *r
	return &cp, nil
}

func (s *Store) ListRuns(ctx context.Context, statusFilter string, limit, offset int) ([]*types.PipelineRun, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*types.PipelineRun
	for _, r := range s.runs {
		if statusFilter != "" && string(r.Status) != statusFilter {
			continue
		}
		cp := *r
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return paginate(out, limit, offset), nil
}

// --- StageExecutionRepository ---

func (s *Store) InsertStageExecution(ctx context.Context, se *types.StageExecution) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.stageExecs {
		if existing.IdempotencyKey == se.IdempotencyKey {
			return repository.ErrDuplicateIdempotencyKey
		}
		if se.Status == types.StageSucceeded && existing.PipelineRunID == se.PipelineRunID &&
			existing.Stage == se.Stage && existing.Status == types.StageSucceeded {
			return repository.ErrDuplicateIdempotencyKey
		}
	}
	if se.ID == "" {
		se.ID = uuid.NewString()
	}
	cp := *se
	s.stageExecs[se.ID] = &cp
	return nil
}

func (s *Store) UpdateStageExecution(ctx context.Context, se *types.StageExecution) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if se.Status == types.StageSucceeded {
		for _, existing := range s.stageExecs {
			if existing.ID != se.ID && existing.PipelineRunID == se.PipelineRunID &&
				existing.Stage == se.Stage && existing.Status == types.StageSucceeded {
				return repository.ErrDuplicateIdempotencyKey
			}
		}
	}
	if _, ok := s.stageExecs[se.ID]; !ok {
		return repository.ErrNotFound
	}
	cp := *se
	s.stageExecs[se.ID] = &cp
	return nil
}

func (s *Store) GetStageExecution(ctx context.Context, id string) (*types.StageExecution, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	se, ok := s.stageExecs[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	cp := *se
	return &cp, nil
}

func (s *Store) ListStageExecutionsByRun(ctx context.Context, runID string) ([]*types.StageExecution, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*types.StageExecution
	for _, se := range s.stageExecs {
		if se.PipelineRunID == runID {
			cp := *se
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Stage != out[j].Stage {
			return out[i].Stage < out[j].Stage
		}
		return out[i].Attempt < out[j].Attempt
	})
	return out, nil
}

func (s *Store) MaxAttempt(ctx context.Context, runID, stage string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	max := 0
	for _, se := range s.stageExecs {
		if se.PipelineRunID == runID && se.Stage == stage && se.Attempt > max {
			max = se.Attempt
		}
	}
	return max, nil
}

func (s *Store) SucceededStages(ctx context.Context, runID string) (map[string]*types.StageExecution, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := map[string]*types.StageExecution{}
	for _, se := range s.stageExecs {
		if se.PipelineRunID == runID && se.Status == types.StageSucceeded {
			cp := *se
			out[se.Stage] = &cp
		}
	}
	return out, nil
}

// --- DefinitionRepository ---

func (s *Store) GetDefinition(ctx context.Context, name string) (*types.PipelineDefinition, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	d, ok := s.definitions[name]
	if !ok {
		return nil, repository.ErrNotFound
	}
	cp := *d
	return &cp, nil
}

func (s *Store) UpsertDefinition(ctx context.Context, def *types.PipelineDefinition) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if existing, ok := s.definitions[def.Name]; ok {
		def.Version = existing.Version + 1
	} else {
		def.Version = 1
	}
	cp := *def
	s.definitions[def.Name] = &cp
	return nil
}

func (s *Store) ListDefinitions(ctx context.Context) ([]*types.PipelineDefinition, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*types.PipelineDefinition
	for _, d := range s.definitions {
		cp := *d
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

// --- ChannelRepository ---

func (s *Store) ListActiveChannelsByDrivers(ctx context.Context, drivers []string) ([]*types.NotificationChannel, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	want := map[string]bool{}
	for _, d := range drivers {
		want[d] = true
	}
	var out []*types.NotificationChannel
	for _, c := range s.channels {
		if !c.IsActive {
			continue
		}
		if len(want) > 0 && !want[c.Driver] {
			continue
		}
		cp := *c
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (s *Store) ListActiveChannels(ctx context.Context) ([]*types.NotificationChannel, error) {
	return s.ListActiveChannelsByDrivers(ctx, nil)
}

func (s *Store) PutChannel(c *types.NotificationChannel) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	cp := *c
	s.channels[c.ID] = &cp
}

// --- ProviderRepository ---

func (s *Store) GetActiveProvider(ctx context.Context) (*types.IntelligenceProvider, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, p := range s.providers {
		if p.IsActive {
			cp := *p
			return &cp, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (s *Store) PutProvider(p *types.IntelligenceProvider) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	if p.IsActive {
		for _, other := range s.providers {
			other.IsActive = false
		}
	}
	cp := *p
	s.providers[p.ID] = &cp
}

// --- FingerprintLocker ---

func (s *Store) Lock(ctx context.Context, fingerprint string) (func(), error) {
	s.mu.Lock()
	l, ok := s.locks[fingerprint]
	if !ok {
		l = &sync.Mutex{}
		s.locks[fingerprint] = l
	}
	s.mu.Unlock()

	done := make(chan struct{})
	go func() {
		l.Lock()
		close(done)
	}()

	select {
	case <-done:
		return l.Unlock, nil
	case <-ctx.Done():
		go func() { <-done; l.Unlock() }()
		return nil, ctx.Err()
	}
}

func paginate[T any](items []T, limit, offset int) []T {
	if offset < 0 {
		offset = 0
	}
	if offset >= len(items) {
		return nil
	}
	end := len(items)
	if limit > 0 && offset+limit < end {
		end = offset + limit
	}
	return items[offset:end]
}

// Adapters below give each repository.* interface its exact method set
// (Insert/Update/Get collide across entities on *Store itself) while
// sharing Store's single mutex-guarded map set underneath.

type AlertRepo struct{ S *Store }

func (r AlertRepo) FindFiringByFingerprint(ctx context.Context, fp string) (*types.Alert, error) {
	return r.S.FindFiringByFingerprint(ctx, fp)
}
func (r AlertRepo) Insert(ctx context.Context, a *types.Alert) error { return r.S.Insert(ctx, a) }
func (r AlertRepo) Update(ctx context.Context, a *types.Alert) error { return r.S.Update(ctx, a) }
func (r AlertRepo) Get(ctx context.Context, id string) (*types.Alert, error) { return r.S.Get(ctx, id) }
func (r AlertRepo) ListByIncident(ctx context.Context, incidentID string) ([]*types.Alert, error) {
	return r.S.ListByIncident(ctx, incidentID)
}

type AlertHistoryRepo struct{ S *Store }

func (r AlertHistoryRepo) Append(ctx context.Context, h *types.AlertHistory) error {
	return r.S.Append(ctx, h)
}
func (r AlertHistoryRepo) ListByAlert(ctx context.Context, alertID string) ([]*types.AlertHistory, error) {
	return r.S.ListByAlert(ctx, alertID)
}

type IncidentRepo struct{ S *Store }

func (r IncidentRepo) FindOpenByGroupingKey(ctx context.Context, key string) (*types.Incident, error) {
	return r.S.FindOpenByGroupingKey(ctx, key)
}
func (r IncidentRepo) Insert(ctx context.Context, i *types.Incident) error {
	return r.S.InsertIncident(ctx, i)
}
func (r IncidentRepo) Update(ctx context.Context, i *types.Incident) error {
	return r.S.UpdateIncident(ctx, i)
}
func (r IncidentRepo) Get(ctx context.Context, id string) (*types.Incident, error) {
	return r.S.GetIncident(ctx, id)
}
func (r IncidentRepo) List(ctx context.Context, statusFilter string, limit, offset int) ([]*types.Incident, error) {
	return r.S.ListIncidents(ctx, statusFilter, limit, offset)
}

type CheckRunRepo struct{ S *Store }

func (r CheckRunRepo) Insert(ctx context.Context, run *types.CheckRun) error {
	return r.S.InsertCheckRun(ctx, run)
}
func (r CheckRunRepo) ListByTrace(ctx context.Context, traceID string) ([]*types.CheckRun, error) {
	return r.S.ListCheckRunsByTrace(ctx, traceID)
}

type AnalysisRunRepo struct{ S *Store }

func (r AnalysisRunRepo) Insert(ctx context.Context, run *types.AnalysisRun) error {
	return r.S.InsertAnalysisRun(ctx, run)
}
func (r AnalysisRunRepo) ListByIncident(ctx context.Context, incidentID string) ([]*types.AnalysisRun, error) {
	return r.S.ListAnalysisRunsByIncident(ctx, incidentID)
}

type PipelineRunRepo struct{ S *Store }

func (r PipelineRunRepo) Insert(ctx context.Context, run *types.PipelineRun) error {
	return r.S.InsertRun(ctx, run)
}
func (r PipelineRunRepo) Update(ctx context.Context, run *types.PipelineRun) error {
	return r.S.UpdateRun(ctx, run)
}
func (r PipelineRunRepo) Get(ctx context.Context, id string) (*types.PipelineRun, error) {
	return r.S.GetRun(ctx, id)
}
func (r PipelineRunRepo) List(ctx context.Context, statusFilter string, limit, offset int) ([]*types.PipelineRun, error) {
	return r.S.ListRuns(ctx, statusFilter, limit, offset)
}

type StageExecutionRepo struct{ S *Store }

func (r StageExecutionRepo) Insert(ctx context.Context, se *types.StageExecution) error {
	return r.S.InsertStageExecution(ctx, se)
}
func (r StageExecutionRepo) Update(ctx context.Context, se *types.StageExecution) error {
	return r.S.UpdateStageExecution(ctx, se)
}
func (r StageExecutionRepo) Get(ctx context.Context, id string) (*types.StageExecution, error) {
	return r.S.GetStageExecution(ctx, id)
}
func (r StageExecutionRepo) ListByRun(ctx context.Context, runID string) ([]*types.StageExecution, error) {
	return r.S.ListStageExecutionsByRun(ctx, runID)
}
func (r StageExecutionRepo) MaxAttempt(ctx context.Context, runID, stage string) (int, error) {
	return r.S.MaxAttempt(ctx, runID, stage)
}
func (r StageExecutionRepo) SucceededStages(ctx context.Context, runID string) (map[string]*types.StageExecution, error) {
	return r.S.SucceededStages(ctx, runID)
}

type DefinitionRepo struct{ S *Store }

func (r DefinitionRepo) Get(ctx context.Context, name string) (*types.PipelineDefinition, error) {
	return r.S.GetDefinition(ctx, name)
}
func (r DefinitionRepo) Upsert(ctx context.Context, def *types.PipelineDefinition) error {
	return r.S.UpsertDefinition(ctx, def)
}
func (r DefinitionRepo) List(ctx context.Context) ([]*types.PipelineDefinition, error) {
	return r.S.ListDefinitions(ctx)
}

type ChannelRepo struct{ S *Store }

func (r ChannelRepo) ListActiveByDrivers(ctx context.Context, drivers []string) ([]*types.NotificationChannel, error) {
	return r.S.ListActiveChannelsByDrivers(ctx, drivers)
}
func (r ChannelRepo) ListActive(ctx context.Context) ([]*types.NotificationChannel, error) {
	return r.S.ListActiveChannels(ctx)
}

type ProviderRepo struct{ S *Store }

func (r ProviderRepo) GetActive(ctx context.Context) (*types.IntelligenceProvider, error) {
	return r.S.GetActiveProvider(ctx)
}

type FingerprintLockRepo struct{ S *Store }

func (r FingerprintLockRepo) Lock(ctx context.Context, fingerprint string) (func(), error) {
	return r.S.Lock(ctx, fingerprint)
}

var (
	_ repository.AlertRepository          = AlertRepo{}
	_ repository.AlertHistoryRepository   = AlertHistoryRepo{}
	_ repository.IncidentRepository       = IncidentRepo{}
	_ repository.CheckRunRepository       = CheckRunRepo{}
	_ repository.AnalysisRunRepository    = AnalysisRunRepo{}
	_ repository.PipelineRunRepository    = PipelineRunRepo{}
	_ repository.StageExecutionRepository = StageExecutionRepo{}
	_ repository.DefinitionRepository     = DefinitionRepo{}
	_ repository.ChannelRepository        = ChannelRepo{}
	_ repository.ProviderRepository       = ProviderRepo{}
	_ repository.FingerprintLocker        = FingerprintLockRepo{}
)
