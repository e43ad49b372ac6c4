// Package server exposes the forge orchestrators over HTTP.
package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/danielgtaylor/huma/v2"
	humachi "github.com/danielgtaylor/huma/v2/adapters/humachi"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/ShayCichocki/forge/internal/control"
	"github.com/ShayCichocki/forge/internal/ledger"
	"github.com/ShayCichocki/forge/internal/orchestrator"
	"github.com/ShayCichocki/forge/internal/state"
	"github.com/ShayCichocki/forge/internal/version"
	"github.com/ShayCichocki/forge/pkg/models"
)

// Config for the HTTP API handler.
type Config struct {
	Forge    *orchestrator.Forge
	BasePath string
	// Signals enables POST /control/halt when set.
	Signals *control.Signals
	Logger  *zap.Logger
}

type apiErrorBody struct {
	Code    string         `json:"code" example:"invalid_transition"`
	Message string         `json:"message" example:"invalid state transition: approved -> rejected"`
	Details map[string]any `json:"details,omitempty" jsonschema:"type=object,additionalProperties=true"`
}

// apiError models the error envelope.
type apiError struct {
	status int
	Body   apiErrorBody `json:"error"`
}

func (e *apiError) GetStatus() int { return e.status }
func (e *apiError) Error() string  { return e.Body.Message }

// New returns an HTTP handler exposing the forge API.
func New(cfg Config) (http.Handler, error) {
	if cfg.Forge == nil {
		return nil, errors.New("server: forge is required")
	}
	log := cfg.Logger
	if log == nil {
		log = zap.NewNop()
	}
	basePath := cfg.BasePath
	if basePath == "" {
		basePath = "/v1"
	}
	if !strings.HasPrefix(basePath, "/") {
		basePath = "/" + basePath
	}

	huma.DefaultArrayNullable = false
	huma.NewError = func(status int, msg string, errs ...error) huma.StatusError {
		return newAPIError(status, "", msg, nil)
	}
	huma.NewErrorWithContext = func(_ huma.Context, status int, msg string, errs ...error) huma.StatusError {
		if status == http.StatusUnprocessableEntity && strings.Contains(strings.ToLower(msg), "validation") {
			status = http.StatusBadRequest
		}
		var details map[string]any
		if len(errs) > 0 {
			details = map[string]any{"errors": errs}
		}
		return newAPIError(status, "", msg, details)
	}

	router := chi.NewRouter()
	router.Use(middleware.RequestID)
	router.Use(middleware.Recoverer)
	router.Use(requestLogger(log.Named("http")))
	router.Handle("/metrics", promhttp.Handler())

	hcfg := huma.DefaultConfig("Forge API", version.Get())
	hcfg.OpenAPIPath = basePath + "/openapi"
	api := humachi.New(router, hcfg)
	group := huma.NewGroup(api, basePath)

	f := cfg.Forge
	registerHealth(group)
	registerProposals(group, f)
	registerProjects(group, f)
	registerEvents(group, f)
	registerSummary(group, f)
	if cfg.Signals != nil {
		registerControl(group, cfg.Signals)
	}

	return router, nil
}

func requestLogger(log *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()
			next.ServeHTTP(ww, r)
			log.Debug("request",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", ww.Status()),
				zap.Duration("elapsed", time.Since(start)),
				zap.String("request_id", middleware.GetReqID(r.Context())),
			)
		})
	}
}

func newAPIError(status int, code, message string, details map[string]any) huma.StatusError {
	if code == "" {
		code = defaultCodeForStatus(status)
	}
	return &apiError{
		status: status,
		Body: apiErrorBody{
			Code:    code,
			Message: message,
			Details: details,
		},
	}
}

func handleError(err error) huma.StatusError {
	if err == nil {
		return nil
	}
	msg := err.Error()
	switch {
	case errors.Is(err, state.ErrNotFound):
		return newAPIError(http.StatusNotFound, "not_found", msg, nil)
	case errors.Is(err, orchestrator.ErrInvalidTransition):
		return newAPIError(http.StatusConflict, "invalid_transition", msg, nil)
	case errors.Is(err, orchestrator.ErrAlreadyProvisioned):
		return newAPIError(http.StatusConflict, "already_provisioned", msg, nil)
	case errors.Is(err, models.ErrMissingProjectName):
		return newAPIError(http.StatusBadRequest, "bad_request", msg, nil)
	case errors.Is(err, orchestrator.ErrStepFailed):
		return newAPIError(http.StatusBadGateway, "step_failed", msg, nil)
	default:
		return newAPIError(http.StatusInternalServerError, "internal_error", "internal error", map[string]any{"error": msg})
	}
}

func defaultCodeForStatus(status int) string {
	switch status {
	case http.StatusBadRequest:
		return "bad_request"
	case http.StatusNotFound:
		return "not_found"
	case http.StatusConflict:
		return "conflict"
	case http.StatusUnprocessableEntity:
		return "validation_failed"
	case http.StatusInternalServerError:
		return "internal_error"
	default:
		return strings.ToLower(strings.ReplaceAll(http.StatusText(status), " ", "_"))
	}
}

func registerHealth(api huma.API) {
	huma.Register(api, huma.Operation{
		OperationID: "health",
		Method:      http.MethodGet,
		Path:        "/health",
		Summary:     "Health check",
	}, func(ctx context.Context, _ *struct{}) (*struct {
		Body map[string]string `json:"body"`
	}, error) {
		return &struct {
			Body map[string]string `json:"body"`
		}{Body: map[string]string{"status": "ok", "version": version.Get()}}, nil
	})
}

type proposalBody struct {
	Body *models.Proposal `json:"body"`
}

type projectBody struct {
	Body *models.Project `json:"body"`
}

type idPath struct {
	ID string `path:"id"`
}

func registerProposals(api huma.API, f *orchestrator.Forge) {
	huma.Register(api, huma.Operation{
		OperationID:   "submit-proposal",
		Method:        http.MethodPost,
		Path:          "/proposals",
		Summary:       "Assemble a proposal from requirements",
		DefaultStatus: http.StatusCreated,
		Errors:        []int{http.StatusBadRequest},
	}, func(ctx context.Context, input *struct {
		Body models.RequirementInput
	}) (*proposalBody, error) {
		p, err := f.Submit(ctx, input.Body)
		if err != nil {
			return nil, handleError(err)
		}
		return &proposalBody{Body: p}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-proposals",
		Method:      http.MethodGet,
		Path:        "/proposals",
		Summary:     "List proposals",
		Errors:      []int{http.StatusBadRequest},
	}, func(ctx context.Context, input *struct {
		Status string `query:"status" enum:"pending,approved,rejected"`
	}) (*struct {
		Body listProposals `json:"body"`
	}, error) {
		var status *models.ProposalStatus
		if input.Status != "" {
			s := models.ProposalStatus(input.Status)
			status = &s
		}
		items, err := f.Proposals(status)
		if err != nil {
			return nil, handleError(err)
		}
		if items == nil {
			items = []models.Proposal{}
		}
		return &struct {
			Body listProposals `json:"body"`
		}{Body: listProposals{Items: items}}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-proposal",
		Method:      http.MethodGet,
		Path:        "/proposals/{id}",
		Summary:     "Get a proposal",
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, input *idPath) (*proposalBody, error) {
		p, err := f.Proposal(input.ID)
		if err != nil {
			return nil, handleError(err)
		}
		return &proposalBody{Body: p}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "edit-proposal",
		Method:      http.MethodPatch,
		Path:        "/proposals/{id}",
		Summary:     "Edit a pending proposal",
		Errors:      []int{http.StatusNotFound, http.StatusConflict},
	}, func(ctx context.Context, input *struct {
		ID   string `path:"id"`
		Body models.ProposalEdit
	}) (*proposalBody, error) {
		p, err := f.EditProposal(ctx, input.ID, input.Body)
		if err != nil {
			return nil, handleError(err)
		}
		return &proposalBody{Body: p}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "approve-proposal",
		Method:      http.MethodPost,
		Path:        "/proposals/{id}/approve",
		Summary:     "Approve a proposal and provision its project",
		Errors:      []int{http.StatusNotFound, http.StatusConflict},
	}, func(ctx context.Context, input *idPath) (*projectBody, error) {
		p, err := f.Approve(ctx, input.ID)
		if err != nil {
			return nil, handleError(err)
		}
		return &projectBody{Body: p}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "reject-proposal",
		Method:      http.MethodPost,
		Path:        "/proposals/{id}/reject",
		Summary:     "Reject a proposal",
		Errors:      []int{http.StatusNotFound, http.StatusConflict},
	}, func(ctx context.Context, input *idPath) (*proposalBody, error) {
		p, err := f.Reject(ctx, input.ID)
		if err != nil {
			return nil, handleError(err)
		}
		return &proposalBody{Body: p}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "delete-proposal",
		Method:      http.MethodDelete,
		Path:        "/proposals/{id}",
		Summary:     "Delete a proposal with its project and history",
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, input *idPath) (*struct {
		Body DeleteResponse `json:"body"`
	}, error) {
		res, err := f.DeleteProposal(ctx, input.ID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body DeleteResponse `json:"body"`
		}{Body: deleteResponse(res)}, nil
	})
}

func registerProjects(api huma.API, f *orchestrator.Forge) {
	huma.Register(api, huma.Operation{
		OperationID: "list-projects",
		Method:      http.MethodGet,
		Path:        "/projects",
		Summary:     "List projects",
		Errors:      []int{http.StatusBadRequest},
	}, func(ctx context.Context, input *struct {
		Status string `query:"status" enum:"active,on hold,completed,cancelled"`
	}) (*struct {
		Body listProjects `json:"body"`
	}, error) {
		var status *models.ProjectStatus
		if input.Status != "" {
			s := models.ProjectStatus(input.Status)
			status = &s
		}
		items, err := f.Projects(status)
		if err != nil {
			return nil, handleError(err)
		}
		if items == nil {
			items = []models.Project{}
		}
		return &struct {
			Body listProjects `json:"body"`
		}{Body: listProjects{Items: items}}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-project",
		Method:      http.MethodGet,
		Path:        "/projects/{id}",
		Summary:     "Get a project",
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, input *idPath) (*projectBody, error) {
		p, err := f.Project(input.ID)
		if err != nil {
			return nil, handleError(err)
		}
		return &projectBody{Body: p}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-project-artifacts",
		Method:      http.MethodGet,
		Path:        "/projects/{id}/artifacts",
		Summary:     "List generated code, reports and documentation",
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, input *idPath) (*struct {
		Body *orchestrator.ProjectArtifacts `json:"body"`
	}, error) {
		a, err := f.Artifacts(input.ID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body *orchestrator.ProjectArtifacts `json:"body"`
		}{Body: a}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID:   "generate-code",
		Method:        http.MethodPost,
		Path:          "/projects/{id}/code",
		Summary:       "Generate a source file",
		DefaultStatus: http.StatusCreated,
		Errors:        []int{http.StatusNotFound, http.StatusBadGateway},
	}, func(ctx context.Context, input *struct {
		ID   string `path:"id"`
		Body orchestrator.CodeRequest
	}) (*struct {
		Body *models.GeneratedCode `json:"body"`
	}, error) {
		code, err := f.GenerateCode(ctx, input.ID, input.Body)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body *models.GeneratedCode `json:"body"`
		}{Body: code}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID:   "generate-documentation",
		Method:        http.MethodPost,
		Path:          "/projects/{id}/docs",
		Summary:       "Generate a project document",
		DefaultStatus: http.StatusCreated,
		Errors:        []int{http.StatusNotFound, http.StatusBadGateway},
	}, func(ctx context.Context, input *struct {
		ID   string `path:"id"`
		Body DocumentationRequest
	}) (*struct {
		Body *models.Documentation `json:"body"`
	}, error) {
		doc, err := f.GenerateDocumentation(ctx, input.ID, input.Body.DocumentType)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body *models.Documentation `json:"body"`
		}{Body: doc}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID:   "generate-report",
		Method:        http.MethodPost,
		Path:          "/projects/{id}/reports",
		Summary:       "Run a quality or security audit",
		DefaultStatus: http.StatusCreated,
		Errors:        []int{http.StatusBadRequest, http.StatusNotFound, http.StatusBadGateway},
	}, func(ctx context.Context, input *struct {
		ID   string `path:"id"`
		Body ReportRequest
	}) (*struct {
		Body *models.Report `json:"body"`
	}, error) {
		report, err := f.GenerateReport(ctx, input.ID, models.ReportKind(input.Body.Kind))
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body *models.Report `json:"body"`
		}{Body: report}, nil
	})
}

const (
	defaultEventLimit = 50
	maxEventLimit     = 500
)

func normalizeLimit(limit int) int {
	if limit <= 0 {
		return defaultEventLimit
	}
	if limit > maxEventLimit {
		return maxEventLimit
	}
	return limit
}

func registerEvents(api huma.API, f *orchestrator.Forge) {
	huma.Register(api, huma.Operation{
		OperationID: "list-events",
		Method:      http.MethodGet,
		Path:        "/events",
		Summary:     "List ledger events in sequence order",
		Errors:      []int{http.StatusBadRequest},
	}, func(ctx context.Context, input *struct {
		SubjectID string `query:"subject_id"`
		Type      string `query:"type"`
		Status    string `query:"status" enum:"INFO,SUCCESS,WARNING,ERROR,CRITICAL"`
		Actor     string `query:"actor"`
		Limit     int    `query:"limit" default:"50"`
		Cursor    string `query:"cursor"`
	}) (*struct {
		Body paginatedEvents `json:"body"`
	}, error) {
		limit := normalizeLimit(input.Limit)
		var after int64
		if input.Cursor != "" {
			parsed, err := strconv.ParseInt(input.Cursor, 10, 64)
			if err != nil || parsed < 0 {
				return nil, newAPIError(http.StatusBadRequest, "bad_request", "invalid cursor", map[string]any{"cursor": input.Cursor})
			}
			after = parsed
		}

		items, err := f.Events(ctx, ledger.Filter{
			SubjectID: input.SubjectID,
			Type:      models.EventType(input.Type),
			Status:    models.EventStatus(input.Status),
			Actor:     input.Actor,
			AfterSeq:  after,
			Limit:     limit + 1,
		})
		if err != nil {
			return nil, handleError(err)
		}

		resp := paginatedEvents{Items: []models.Event{}}
		if len(items) > limit {
			items = items[:limit]
			resp.NextCursor = fmt.Sprintf("%d", items[limit-1].Seq)
		}
		resp.Items = append(resp.Items, items...)
		return &struct {
			Body paginatedEvents `json:"body"`
		}{Body: resp}, nil
	})
}

func registerSummary(api huma.API, f *orchestrator.Forge) {
	huma.Register(api, huma.Operation{
		OperationID: "summary",
		Method:      http.MethodGet,
		Path:        "/summary",
		Summary:     "Commercial summary of proposals and projects",
	}, func(ctx context.Context, _ *struct{}) (*struct {
		Body *orchestrator.Summary `json:"body"`
	}, error) {
		s, err := f.Summary(ctx)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body *orchestrator.Summary `json:"body"`
		}{Body: s}, nil
	})
}

func registerControl(api huma.API, signals *control.Signals) {
	huma.Register(api, huma.Operation{
		OperationID:   "halt",
		Method:        http.MethodPost,
		Path:          "/control/halt",
		Summary:       "Halt running pipelines between steps",
		DefaultStatus: http.StatusAccepted,
	}, func(ctx context.Context, _ *struct{}) (*struct {
		Body map[string]string `json:"body"`
	}, error) {
		if err := signals.SendHalt(); err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body map[string]string `json:"body"`
		}{Body: map[string]string{"status": "halt requested"}}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "clear-halt",
		Method:      http.MethodDelete,
		Path:        "/control/halt",
		Summary:     "Clear a pending halt signal",
	}, func(ctx context.Context, _ *struct{}) (*struct {
		Body map[string]string `json:"body"`
	}, error) {
		signals.Clear()
		return &struct {
			Body map[string]string `json:"body"`
		}{Body: map[string]string{"status": "cleared"}}, nil
	})
}
