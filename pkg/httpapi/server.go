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

// Package httpapi exposes the §6 external interface contracts over HTTP:
// pipeline submission (fixed topology and definition-based), run query and
// resume, and definition management. Every handler is a thin adapter over an
// already-wired Orchestrator/Runner/repository; no business logic lives here
// — the HTTP surface is named out of scope by spec.md §1 beyond its request/
// response contracts, so this package stays a dispatch layer.
package httpapi

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-logr/logr"
	"github.com/go-playground/validator/v10"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/jordigilh/alertpipe/pkg/definition"
	"github.com/jordigilh/alertpipe/pkg/metrics"
	"github.com/jordigilh/alertpipe/pkg/nodes"
	"github.com/jordigilh/alertpipe/pkg/orchestrator"
	"github.com/jordigilh/alertpipe/pkg/storage/repository"
)

// Server wires the orchestration core to chi routes. Construct with New,
// then mount s.Router (or use ListenAndServe via http.Server directly).
type Server struct {
	Orchestrator *orchestrator.Orchestrator
	Runner       *definition.Runner
	NodeRegistry *nodes.Registry

	Runs        repository.PipelineRunRepository
	StageExecs  repository.StageExecutionRepository
	Definitions repository.DefinitionRepository

	// Metrics is optional; a nil value disables the HTTP request-duration
	// middleware (the orchestration-level collectors are unaffected, since
	// those are recorded by the orchestrator/runner directly).
	Metrics *metrics.Metrics

	Log       logr.Logger
	validate  *validator.Validate
	Router    *chi.Mux
}

func New(orch *orchestrator.Orchestrator, runner *definition.Runner, nodeRegistry *nodes.Registry, runs repository.PipelineRunRepository, stageExecs repository.StageExecutionRepository, definitions repository.DefinitionRepository, m *metrics.Metrics, log logr.Logger) *Server {
	s := &Server{
		Orchestrator: orch,
		Runner:       runner,
		NodeRegistry: nodeRegistry,
		Runs:         runs,
		StageExecs:   stageExecs,
		Definitions:  definitions,
		Metrics:      m,
		Log:          log,
		validate:     validator.New(validator.WithRequiredStructEnabled()),
	}
	s.Router = s.newRouter()
	return s
}

func (s *Server) newRouter() *chi.Mux {
	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{http.MethodGet, http.MethodPost},
		AllowedHeaders: []string{"Content-Type"},
	}))
	if s.Metrics != nil {
		r.Use(httpMetricsMiddleware(s.Metrics))
	}

	r.Get("/healthz", s.handleHealthz)
	r.Handle("/metrics", promhttp.Handler())

	r.Post("/pipeline/", s.handleSubmitPipeline)
	r.Get("/pipelines/", s.handleListRuns)
	r.Get("/pipeline/{runID}/", s.handleGetRun)
	r.Post("/pipeline/{runID}/resume/", s.handleResumeRun)

	r.Get("/definitions/", s.handleListDefinitions)
	r.Get("/definitions/{name}/", s.handleGetDefinition)
	r.Post("/definitions/{name}/execute/", s.handleExecuteDefinition)
	r.Post("/definitions/{name}/validate/", s.handleValidateDefinition)

	return r
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
