package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path"
	"strconv"
	"strings"
	"time"

	"github.com/danielgtaylor/huma/v2"
	humachi "github.com/danielgtaylor/huma/v2/adapters/humachi"
	"github.com/go-chi/chi/v5"

	"github.com/Mdraugelis/ai-programs-registry/internal/chat"
	"github.com/Mdraugelis/ai-programs-registry/internal/domain"
	"github.com/Mdraugelis/ai-programs-registry/internal/engine"
	"github.com/Mdraugelis/ai-programs-registry/internal/events"
	"github.com/Mdraugelis/ai-programs-registry/internal/repo"
)

// Config for the HTTP API handler.
type Config struct {
	Engine   engine.Engine
	Chat     *chat.Service
	BasePath string
	Auth     AuthConfig
}

type apiErrorBody struct {
	Code    string         `json:"code" example:"not_found"`
	Message string         `json:"message" example:"initiative not found"`
	Details map[string]any `json:"details,omitempty" jsonschema:"type=object,additionalProperties=true"`
}

type bodyBytesKey struct{}

// apiError is the error envelope every endpoint returns.
type apiError struct {
	status int
	Body   apiErrorBody `json:"error"`
}

func (e *apiError) GetStatus() int { return e.status }
func (e *apiError) Error() string  { return e.Body.Message }

// New returns an HTTP handler exposing the registry API.
func New(cfg Config) (http.Handler, error) {
	basePath := cfg.BasePath
	if basePath == "" {
		basePath = "/api"
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
	router.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			bodyBytes, _ := io.ReadAll(r.Body)
			r.Body = io.NopCloser(bytes.NewBuffer(bodyBytes))
			ctx := context.WithValue(r.Context(), bodyBytesKey{}, bodyBytes)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	})
	router.Use(newAuthMiddleware(basePath, cfg.Auth))
	hcfg := huma.DefaultConfig("AI Programs Registry API", "0.1.0")
	hcfg.OpenAPIPath = "/openapi"
	hcfg.DocsPath = "" // custom Swagger UI below
	api := humachi.New(router, hcfg)
	group := huma.NewGroup(api, basePath)

	registerDocs(router, basePath)
	registerHealth(group)
	registerLogin(group, cfg.Engine, cfg.Auth)
	registerMe(group, cfg.Engine)
	registerUsers(group, cfg.Engine)
	registerInitiatives(group, cfg.Engine)
	registerStats(group, cfg.Engine)
	registerDocuments(group, cfg.Engine)
	registerCompliance(group, cfg.Engine)
	registerChat(group, cfg.Engine, cfg.Chat)
	registerEvents(group, cfg.Engine)
	registerDownload(router, basePath, cfg.Engine)
	registerExport(router, basePath, cfg.Engine)
	registerOpenAPI(router, api, basePath)

	return router, nil
}

func bodyBytes(ctx context.Context) []byte {
	b, _ := ctx.Value(bodyBytesKey{}).([]byte)
	return b
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
	if errors.Is(err, repo.ErrNotFound) {
		return newAPIError(http.StatusNotFound, "not_found", err.Error(), nil)
	}
	if errors.Is(err, engine.ErrInvalidCredentials) {
		return newAPIError(http.StatusUnauthorized, "invalid_credentials", "invalid credentials", nil)
	}
	if errors.Is(err, chat.ErrNoKey) {
		return newAPIError(http.StatusBadRequest, "chat_not_configured", err.Error(), nil)
	}
	if errors.Is(err, chat.ErrInvalidKey) {
		return newAPIError(http.StatusUnauthorized, "chat_key_invalid", err.Error(), nil)
	}
	msg := err.Error()
	lowered := strings.ToLower(msg)
	switch {
	case strings.Contains(lowered, "unique constraint"):
		return newAPIError(http.StatusConflict, "conflict", msg, nil)
	case strings.Contains(lowered, "unknown"),
		strings.Contains(lowered, "invalid"),
		strings.Contains(lowered, "missing"),
		strings.Contains(lowered, "required"),
		strings.Contains(lowered, "is not a template"):
		return newAPIError(http.StatusBadRequest, "bad_request", msg, nil)
	default:
		return newAPIError(http.StatusInternalServerError, "internal_error", "internal error", map[string]any{"error": msg})
	}
}

func defaultCodeForStatus(status int) string {
	switch status {
	case http.StatusBadRequest:
		return "bad_request"
	case http.StatusUnauthorized:
		return "unauthorized"
	case http.StatusForbidden:
		return "forbidden"
	case http.StatusNotFound:
		return "not_found"
	case http.StatusConflict:
		return "conflict"
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
		Body struct {
			Status string `json:"status" example:"ok"`
		} `json:"body"`
	}, error) {
		resp := &struct {
			Body struct {
				Status string `json:"status" example:"ok"`
			} `json:"body"`
		}{}
		resp.Body.Status = "ok"
		return resp, nil
	})
}

func registerLogin(api huma.API, e engine.Engine, auth AuthConfig) {
	huma.Register(api, huma.Operation{
		OperationID: "login",
		Method:      http.MethodPost,
		Path:        "/login",
		Summary:     "Exchange credentials for a token",
		Errors:      []int{http.StatusBadRequest, http.StatusUnauthorized},
	}, func(ctx context.Context, input *struct {
		Body LoginRequest `json:"body"`
	}) (*struct {
		Body LoginResponse `json:"body"`
	}, error) {
		if input.Body.Username == "" || input.Body.Password == "" {
			return nil, newAPIError(http.StatusBadRequest, "bad_request", "username and password are required", nil)
		}
		u, err := e.Authenticate(ctx, input.Body.Username, input.Body.Password)
		if err != nil {
			return nil, handleError(err)
		}
		p := Principal{UserID: u.ID, Username: u.Username, Role: u.Role}
		token, err := issueToken(auth.JWTSecret, p, auth.tokenTTL(), time.Now())
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body LoginResponse `json:"body"`
		}{Body: LoginResponse{Token: token, User: userResponse(u)}}, nil
	})
}

func registerMe(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID: "me",
		Method:      http.MethodGet,
		Path:        "/me",
		Summary:     "Current user",
		Errors:      []int{http.StatusUnauthorized},
	}, func(ctx context.Context, _ *struct{}) (*struct {
		Body UserResponse `json:"body"`
	}, error) {
		p, authErr := requirePrincipal(ctx)
		if authErr != nil {
			return nil, authErr
		}
		u, err := e.Repo.GetUser(ctx, p.UserID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body UserResponse `json:"body"`
		}{Body: userResponse(u)}, nil
	})
}

func registerUsers(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID: "create-user",
		Method:      http.MethodPost,
		Path:        "/users",
		Summary:     "Create user",
		Errors:      []int{http.StatusBadRequest, http.StatusForbidden, http.StatusConflict},
	}, func(ctx context.Context, input *struct {
		Body CreateUserRequest `json:"body"`
	}) (*struct {
		Body UserResponse `json:"body"`
	}, error) {
		p, authErr := requireRole(ctx, "admin")
		if authErr != nil {
			return nil, authErr
		}
		u, err := e.CreateUser(ctx, input.Body.Username, input.Body.Email, input.Body.Password, input.Body.Role, p.UserID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body UserResponse `json:"body"`
		}{Body: userResponse(u)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-users",
		Method:      http.MethodGet,
		Path:        "/users",
		Summary:     "List users",
		Errors:      []int{http.StatusForbidden},
	}, func(ctx context.Context, _ *struct{}) (*struct {
		Body []UserResponse `json:"body"`
	}, error) {
		if _, authErr := requireRole(ctx, "admin"); authErr != nil {
			return nil, authErr
		}
		items, err := e.Repo.ListUsers(ctx)
		if err != nil {
			return nil, handleError(err)
		}
		out := make([]UserResponse, 0, len(items))
		for _, u := range items {
			out = append(out, userResponse(u))
		}
		return &struct {
			Body []UserResponse `json:"body"`
		}{Body: out}, nil
	})
}

func registerInitiatives(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID: "create-initiative",
		Method:      http.MethodPost,
		Path:        "/initiatives",
		Summary:     "Register an initiative",
		Errors:      []int{http.StatusBadRequest, http.StatusUnauthorized},
	}, func(ctx context.Context, input *struct {
		Body CreateInitiativeRequest `json:"body"`
	}) (*struct {
		Body InitiativeResponse `json:"body"`
	}, error) {
		p, authErr := requirePrincipal(ctx)
		if authErr != nil {
			return nil, authErr
		}
		if len(bodyBytes(ctx)) == 0 {
			return nil, newAPIError(http.StatusBadRequest, "bad_request", "body required", nil)
		}
		opts := engine.InitiativeCreateOptions{
			Title:                input.Body.Title,
			ProgramOwner:         deref(input.Body.ProgramOwner),
			Department:           deref(input.Body.Department),
			Background:           deref(input.Body.Background),
			Goal:                 deref(input.Body.Goal),
			Stage:                deref(input.Body.Stage),
			Risks:                deref(input.Body.Risks),
			VendorInfo:           deref(input.Body.VendorInfo),
			AIComponents:         deref(input.Body.AIComponents),
			EquityConsiderations: deref(input.Body.EquityConsiderations),
			ActorID:              p.UserID,
		}
		in, err := e.CreateInitiative(ctx, opts)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body InitiativeResponse `json:"body"`
		}{Body: initiativeResponse(in)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-initiatives",
		Method:      http.MethodGet,
		Path:        "/initiatives",
		Summary:     "List initiatives",
		Errors:      []int{http.StatusBadRequest},
	}, func(ctx context.Context, input *struct {
		Department string `query:"department"`
		Stage      string `query:"stage" enum:",idea,proposal,pilot,production,retired"`
		Risk       string `query:"risk"`
		Status     string `query:"status" enum:",active,paused,completed,deleted"`
		Search     string `query:"search"`
		SortBy     string `query:"sort_by"`
		SortOrder  string `query:"sort_order" enum:",asc,desc"`
		Limit      int    `query:"limit"`
		Offset     int    `query:"offset"`
	}) (*struct {
		Body []InitiativeResponse `json:"body"`
	}, error) {
		if _, authErr := requirePrincipal(ctx); authErr != nil {
			return nil, authErr
		}
		items, err := e.Repo.ListInitiatives(ctx, repo.InitiativeFilters{
			Department: input.Department,
			Stage:      input.Stage,
			Risk:       input.Risk,
			Status:     input.Status,
			Search:     input.Search,
			SortBy:     input.SortBy,
			SortOrder:  input.SortOrder,
			Limit:      input.Limit,
			Offset:     input.Offset,
		})
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body []InitiativeResponse `json:"body"`
		}{Body: mapInitiatives(items)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-initiative",
		Method:      http.MethodGet,
		Path:        "/initiatives/{id}",
		Summary:     "Get initiative",
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		ID string `path:"id"`
	}) (*struct {
		Body InitiativeResponse `json:"body"`
	}, error) {
		if _, authErr := requirePrincipal(ctx); authErr != nil {
			return nil, authErr
		}
		in, err := e.Repo.GetInitiative(ctx, input.ID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body InitiativeResponse `json:"body"`
		}{Body: initiativeResponse(in)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "update-initiative",
		Method:      http.MethodPatch,
		Path:        "/initiatives/{id}",
		Summary:     "Update initiative fields",
		Errors:      []int{http.StatusBadRequest, http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		ID   string                  `path:"id"`
		Body UpdateInitiativeRequest `json:"body"`
	}) (*struct {
		Body InitiativeResponse `json:"body"`
	}, error) {
		p, authErr := requirePrincipal(ctx)
		if authErr != nil {
			return nil, authErr
		}
		if len(bodyBytes(ctx)) == 0 {
			return nil, newAPIError(http.StatusBadRequest, "bad_request", "body required", nil)
		}
		u := repo.InitiativeUpdate{
			Title:                input.Body.Title,
			ProgramOwner:         input.Body.ProgramOwner,
			Department:           input.Body.Department,
			Background:           input.Body.Background,
			Goal:                 input.Body.Goal,
			Stage:                input.Body.Stage,
			Risks:                input.Body.Risks,
			VendorInfo:           input.Body.VendorInfo,
			AIComponents:         input.Body.AIComponents,
			EquityConsiderations: input.Body.EquityConsiderations,
			Status:               input.Body.Status,
		}
		in, err := e.UpdateInitiative(ctx, input.ID, u, p.UserID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body InitiativeResponse `json:"body"`
		}{Body: initiativeResponse(in)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "delete-initiative",
		Method:      http.MethodDelete,
		Path:        "/initiatives/{id}",
		Summary:     "Soft-delete initiative",
		Errors:      []int{http.StatusForbidden, http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		ID string `path:"id"`
	}) (*struct{}, error) {
		p, authErr := requireRole(ctx, "admin")
		if authErr != nil {
			return nil, authErr
		}
		if err := e.DeleteInitiative(ctx, input.ID, p.UserID); err != nil {
			return nil, handleError(err)
		}
		return &struct{}{}, nil
	})
}

func registerStats(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID: "registry-stats",
		Method:      http.MethodGet,
		Path:        "/stats",
		Summary:     "Registry counts by stage",
	}, func(ctx context.Context, _ *struct{}) (*struct {
		Body struct {
			Total   int            `json:"total"`
			ByStage map[string]int `json:"by_stage" jsonschema:"type=object,additionalProperties=true"`
		} `json:"body"`
	}, error) {
		if _, authErr := requirePrincipal(ctx); authErr != nil {
			return nil, authErr
		}
		total, err := e.Repo.CountInitiatives(ctx)
		if err != nil {
			return nil, handleError(err)
		}
		byStage, err := e.Repo.CountInitiativesByStage(ctx)
		if err != nil {
			return nil, handleError(err)
		}
		resp := &struct {
			Body struct {
				Total   int            `json:"total"`
				ByStage map[string]int `json:"by_stage" jsonschema:"type=object,additionalProperties=true"`
			} `json:"body"`
		}{}
		resp.Body.Total = total
		resp.Body.ByStage = byStage
		return resp, nil
	})
}

func registerDocuments(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID: "upload-document",
		Method:      http.MethodPost,
		Path:        "/documents",
		Summary:     "Upload a document",
		Description: "The request body is the raw file content; metadata rides in query parameters.",
		Errors:      []int{http.StatusBadRequest, http.StatusForbidden, http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		RawBody      []byte `contentType:"application/octet-stream"`
		InitiativeID string `query:"initiative_id"`
		LibraryType  string `query:"library_type" enum:"admin,core,ancillary" required:"true"`
		Category     string `query:"category"`
		Filename     string `query:"filename" required:"true"`
		DocumentType string `query:"document_type"`
		Description  string `query:"description"`
		Tags         string `query:"tags"`
		IsTemplate   bool   `query:"is_template"`
		IsRequired   bool   `query:"is_required"`
	}) (*struct {
		Body DocumentResponse `json:"body"`
	}, error) {
		p, authErr := requirePrincipal(ctx)
		if authErr != nil {
			return nil, authErr
		}
		if input.LibraryType == "admin" {
			if _, authErr := requireRole(ctx, "admin"); authErr != nil {
				return nil, authErr
			}
		}
		if len(input.RawBody) == 0 {
			return nil, newAPIError(http.StatusBadRequest, "bad_request", "file content required", nil)
		}
		d, err := e.UploadDocument(ctx, engine.DocumentUploadOptions{
			InitiativeID: input.InitiativeID,
			LibraryType:  input.LibraryType,
			Category:     input.Category,
			Filename:     input.Filename,
			Content:      input.RawBody,
			DocumentType: input.DocumentType,
			Description:  input.Description,
			Tags:         input.Tags,
			IsTemplate:   input.IsTemplate,
			IsRequired:   input.IsRequired,
			ActorID:      p.UserID,
		})
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body DocumentResponse `json:"body"`
		}{Body: documentResponse(d)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-documents",
		Method:      http.MethodGet,
		Path:        "/documents",
		Summary:     "List documents",
		Errors:      []int{http.StatusBadRequest},
	}, func(ctx context.Context, input *struct {
		InitiativeID string `query:"initiative_id"`
		LibraryType  string `query:"library_type" enum:",admin,core,ancillary"`
		Category     string `query:"category"`
	}) (*struct {
		Body []DocumentResponse `json:"body"`
	}, error) {
		if _, authErr := requirePrincipal(ctx); authErr != nil {
			return nil, authErr
		}
		items, err := e.Repo.ListDocuments(ctx, repo.DocumentFilters{
			InitiativeID: input.InitiativeID,
			LibraryType:  input.LibraryType,
			Category:     input.Category,
		})
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body []DocumentResponse `json:"body"`
		}{Body: mapDocuments(items)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-templates",
		Method:      http.MethodGet,
		Path:        "/documents/templates",
		Summary:     "List the admin template library",
	}, func(ctx context.Context, _ *struct{}) (*struct {
		Body []DocumentResponse `json:"body"`
	}, error) {
		if _, authErr := requirePrincipal(ctx); authErr != nil {
			return nil, authErr
		}
		items, err := e.Repo.ListDocuments(ctx, repo.DocumentFilters{
			LibraryType: "admin",
			Templates:   true,
		})
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body []DocumentResponse `json:"body"`
		}{Body: mapDocuments(items)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "instantiate-template",
		Method:      http.MethodPost,
		Path:        "/documents/instantiate",
		Summary:     "Copy a template into an initiative's core library",
		Errors:      []int{http.StatusBadRequest, http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		Body InstantiateTemplateRequest `json:"body"`
	}) (*struct {
		Body DocumentResponse `json:"body"`
	}, error) {
		p, authErr := requirePrincipal(ctx)
		if authErr != nil {
			return nil, authErr
		}
		if input.Body.TemplateID == "" || input.Body.InitiativeID == "" {
			return nil, newAPIError(http.StatusBadRequest, "bad_request", "template_id and initiative_id are required", nil)
		}
		d, err := e.InstantiateTemplate(ctx, input.Body.TemplateID, input.Body.InitiativeID, p.UserID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body DocumentResponse `json:"body"`
		}{Body: documentResponse(d)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-document",
		Method:      http.MethodGet,
		Path:        "/documents/{id}",
		Summary:     "Get document metadata",
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		ID string `path:"id"`
	}) (*struct {
		Body DocumentResponse `json:"body"`
	}, error) {
		if _, authErr := requirePrincipal(ctx); authErr != nil {
			return nil, authErr
		}
		d, err := e.Repo.GetDocument(ctx, input.ID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body DocumentResponse `json:"body"`
		}{Body: documentResponse(d)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "delete-document",
		Method:      http.MethodDelete,
		Path:        "/documents/{id}",
		Summary:     "Soft-delete document",
		Errors:      []int{http.StatusForbidden, http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		ID string `path:"id"`
	}) (*struct{}, error) {
		p, authErr := requireRole(ctx, "admin", "reviewer")
		if authErr != nil {
			return nil, authErr
		}
		if err := e.DeleteDocument(ctx, input.ID, p.UserID); err != nil {
			return nil, handleError(err)
		}
		return &struct{}{}, nil
	})
}

func registerCompliance(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID: "initiative-compliance",
		Method:      http.MethodGet,
		Path:        "/initiatives/{id}/compliance",
		Summary:     "Document compliance for an initiative",
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		ID string `path:"id"`
	}) (*struct {
		Body ComplianceResponse `json:"body"`
	}, error) {
		if _, authErr := requirePrincipal(ctx); authErr != nil {
			return nil, authErr
		}
		c, err := e.Compliance(ctx, input.ID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body ComplianceResponse `json:"body"`
		}{Body: ComplianceResponse{
			InitiativeID:         c.InitiativeID,
			Status:               c.Status,
			CompliancePercentage: c.CompliancePercentage,
			TotalRequired:        c.TotalRequired,
			Completed:            c.Completed,
			Missing:              c.Missing,
		}}, nil
	})
}

func registerChat(api huma.API, e engine.Engine, svc *chat.Service) {
	huma.Register(api, huma.Operation{
		OperationID: "chat-setup",
		Method:      http.MethodPost,
		Path:        "/chat/setup",
		Summary:     "Store the caller's LLM API key",
		Errors:      []int{http.StatusBadRequest, http.StatusUnauthorized},
	}, func(ctx context.Context, input *struct {
		Body ChatSetupRequest `json:"body"`
	}) (*struct {
		Body chat.Status `json:"body"`
	}, error) {
		p, authErr := requirePrincipal(ctx)
		if authErr != nil {
			return nil, authErr
		}
		if err := svc.Setup(ctx, p.UserID, input.Body.APIKey); err != nil {
			return nil, handleError(err)
		}
		st, err := svc.Status(ctx, p.UserID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body chat.Status `json:"body"`
		}{Body: st}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "chat-status",
		Method:      http.MethodGet,
		Path:        "/chat/status",
		Summary:     "Chat configuration for the caller",
	}, func(ctx context.Context, _ *struct{}) (*struct {
		Body chat.Status `json:"body"`
	}, error) {
		p, authErr := requirePrincipal(ctx)
		if authErr != nil {
			return nil, authErr
		}
		st, err := svc.Status(ctx, p.UserID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body chat.Status `json:"body"`
		}{Body: st}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "chat-query",
		Method:      http.MethodPost,
		Path:        "/chat/query",
		Summary:     "Ask about the visible initiatives",
		Errors:      []int{http.StatusBadRequest, http.StatusUnauthorized},
	}, func(ctx context.Context, input *struct {
		Body ChatQueryRequest `json:"body"`
	}) (*struct {
		Body ChatQueryResponse `json:"body"`
	}, error) {
		p, authErr := requirePrincipal(ctx)
		if authErr != nil {
			return nil, authErr
		}
		if strings.TrimSpace(input.Body.Query) == "" {
			return nil, newAPIError(http.StatusBadRequest, "bad_request", "query is required", nil)
		}
		visible, err := chatContext(ctx, e, input.Body.InitiativeIDs)
		if err != nil {
			return nil, handleError(err)
		}
		answer, err := svc.Query(ctx, p.UserID, input.Body.Query, visible)
		if err != nil {
			return nil, handleError(err)
		}
		if err := appendChatEvent(ctx, e, p.UserID, len(visible)); err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body ChatQueryResponse `json:"body"`
		}{Body: ChatQueryResponse{Response: answer}}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "chat-disconnect",
		Method:      http.MethodDelete,
		Path:        "/chat/key",
		Summary:     "Remove the caller's LLM API key",
	}, func(ctx context.Context, _ *struct{}) (*struct{}, error) {
		p, authErr := requirePrincipal(ctx)
		if authErr != nil {
			return nil, authErr
		}
		if err := svc.Disconnect(ctx, p.UserID); err != nil {
			return nil, handleError(err)
		}
		return &struct{}{}, nil
	})
}

// chatContext resolves the initiatives a chat query should see: the named
// ones when the client sends ids, otherwise everything visible.
func chatContext(ctx context.Context, e engine.Engine, ids []string) ([]domain.Initiative, error) {
	if len(ids) == 0 {
		return e.Repo.ListInitiatives(ctx, repo.InitiativeFilters{})
	}
	out := make([]domain.Initiative, 0, len(ids))
	for _, id := range ids {
		in, err := e.Repo.GetInitiative(ctx, id)
		if err != nil {
			if errors.Is(err, repo.ErrNotFound) {
				continue
			}
			return nil, err
		}
		out = append(out, in)
	}
	return out, nil
}

func appendChatEvent(ctx context.Context, e engine.Engine, userID string, contextSize int) error {
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()
	if err := e.Events.Append(ctx, tx, "chat.queried", "chat", userID, userID, events.EventPayload{
		"context_initiatives": contextSize,
	}); err != nil {
		return err
	}
	return tx.Commit()
}

func registerEvents(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID: "list-events",
		Method:      http.MethodGet,
		Path:        "/events",
		Summary:     "List recent audit events",
		Errors:      []int{http.StatusBadRequest},
	}, func(ctx context.Context, input *struct {
		Type       string `query:"type"`
		EntityKind string `query:"entity_kind" enum:",initiative,document,user,chat"`
		EntityID   string `query:"entity_id"`
		Limit      int    `query:"limit" default:"50"`
		Cursor     string `query:"cursor"`
	}) (*struct {
		Body paginatedEvents `json:"body"`
	}, error) {
		if _, authErr := requirePrincipal(ctx); authErr != nil {
			return nil, authErr
		}
		limit := input.Limit
		if limit <= 0 || limit > 200 {
			limit = 50
		}
		var cursorID int64
		if input.Cursor != "" {
			parsed, err := strconv.ParseInt(input.Cursor, 10, 64)
			if err != nil {
				return nil, newAPIError(http.StatusBadRequest, "bad_request", "invalid cursor", map[string]any{"cursor": input.Cursor})
			}
			cursorID = parsed
		}
		items, err := e.Repo.LatestEventsFrom(ctx, limit+1, cursorID, input.Type, input.EntityKind, input.EntityID)
		if err != nil {
			return nil, handleError(err)
		}
		resp := paginatedEvents{Items: []EventResponse{}}
		if len(items) > limit {
			resp.NextCursor = fmt.Sprintf("%d", items[limit].ID)
			items = items[:limit]
		}
		for _, evt := range items {
			resp.Items = append(resp.Items, eventResponse(evt))
		}
		return &struct {
			Body paginatedEvents `json:"body"`
		}{Body: resp}, nil
	})
}

func registerDownload(r chi.Router, basePath string, e engine.Engine) {
	r.Get(path.Join(basePath, "documents/{id}/download"), func(w http.ResponseWriter, req *http.Request) {
		d, err := e.Repo.GetDocument(req.Context(), chi.URLParam(req, "id"))
		if err != nil || d.Status == "deleted" {
			respondStatusError(w, newAPIError(http.StatusNotFound, "not_found", "document not found", nil))
			return
		}
		full := e.DocumentFullPath(d)
		if _, err := os.Stat(full); err != nil {
			respondStatusError(w, newAPIError(http.StatusNotFound, "not_found", "document file missing", nil))
			return
		}
		w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", d.Filename))
		http.ServeFile(w, req, full)
	})
}

func registerExport(r chi.Router, basePath string, e engine.Engine) {
	r.Get(path.Join(basePath, "export/csv"), func(w http.ResponseWriter, req *http.Request) {
		out, err := e.ExportCSV(req.Context())
		if err != nil {
			respondStatusError(w, handleError(err))
			return
		}
		w.Header().Set("Content-Type", "text/csv")
		w.Header().Set("Content-Disposition", `attachment; filename="initiatives.csv"`)
		w.Write(out)
	})
}

func registerDocs(r chi.Router, basePath string) {
	r.Get("/docs", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		io.WriteString(w, swaggerHTML(basePath))
	})
}

func registerOpenAPI(r chi.Router, api huma.API, basePath string) {
	var spec []byte
	specPath := path.Join(basePath, "openapi.json")
	r.Get(specPath, func(w http.ResponseWriter, r *http.Request) {
		if spec == nil {
			oas := api.OpenAPI()
			applyAuthSecurity(oas, basePath)
			spec, _ = json.Marshal(oas)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write(spec)
	})
}

func applyAuthSecurity(oas *huma.OpenAPI, basePath string) {
	if oas == nil {
		return
	}
	if oas.Components == nil {
		oas.Components = &huma.Components{}
	}
	if oas.Components.SecuritySchemes == nil {
		oas.Components.SecuritySchemes = map[string]*huma.SecurityScheme{}
	}
	oas.Components.SecuritySchemes["bearerAuth"] = &huma.SecurityScheme{
		Type:         "http",
		Scheme:       "bearer",
		BearerFormat: "JWT",
	}
	security := []map[string][]string{{"bearerAuth": {}}}
	oas.Security = security
	open := map[string]bool{
		"/" + strings.TrimPrefix(path.Join(basePath, "health"), "/"): true,
		"/" + strings.TrimPrefix(path.Join(basePath, "login"), "/"):  true,
	}
	for route, item := range oas.Paths {
		for _, op := range []*huma.Operation{
			item.Get, item.Put, item.Post, item.Delete, item.Options, item.Head, item.Patch, item.Trace,
		} {
			if op == nil {
				continue
			}
			if open[route] {
				op.Security = []map[string][]string{}
				continue
			}
			op.Security = security
		}
	}
}

func swaggerHTML(basePath string) string {
	specURL := path.Join("/", path.Join(basePath, "openapi.json"))
	return fmt.Sprintf(`<!doctype html>
<html lang="en">
  <head>
    <meta charset="utf-8"/>
    <meta name="viewport" content="width=device-width, initial-scale=1"/>
    <title>AI Programs Registry API</title>
    <link rel="stylesheet" href="https://unpkg.com/swagger-ui-dist@5/swagger-ui.css"/>
  </head>
  <body>
    <div id="swagger-ui"></div>
    <script src="https://unpkg.com/swagger-ui-dist@5/swagger-ui-bundle.js"></script>
    <script>
      window.onload = () => {
        window.ui = SwaggerUIBundle({url: %q, dom_id: "#swagger-ui"});
      };
    </script>
  </body>
</html>`, specURL)
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
