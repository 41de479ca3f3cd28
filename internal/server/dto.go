package server

import (
	"encoding/json"

	"github.com/Mdraugelis/ai-programs-registry/internal/domain"
)

// Request payloads

type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type CreateInitiativeRequest struct {
	Title                string  `json:"title"`
	ProgramOwner         *string `json:"program_owner,omitempty"`
	Department           *string `json:"department,omitempty"`
	Background           *string `json:"background,omitempty"`
	Goal                 *string `json:"goal,omitempty"`
	Stage                *string `json:"stage,omitempty" enum:"idea,proposal,pilot,production,retired"`
	Risks                *string `json:"risks,omitempty"`
	VendorInfo           *string `json:"vendor_info,omitempty"`
	AIComponents         *string `json:"ai_components,omitempty"`
	EquityConsiderations *string `json:"equity_considerations,omitempty"`
}

type UpdateInitiativeRequest struct {
	Title                *string `json:"title,omitempty"`
	ProgramOwner         *string `json:"program_owner,omitempty"`
	Department           *string `json:"department,omitempty"`
	Background           *string `json:"background,omitempty"`
	Goal                 *string `json:"goal,omitempty"`
	Stage                *string `json:"stage,omitempty" enum:"idea,proposal,pilot,production,retired"`
	Risks                *string `json:"risks,omitempty"`
	VendorInfo           *string `json:"vendor_info,omitempty"`
	AIComponents         *string `json:"ai_components,omitempty"`
	EquityConsiderations *string `json:"equity_considerations,omitempty"`
	Status               *string `json:"status,omitempty" enum:"active,paused,completed"`
}

type CreateUserRequest struct {
	Username string `json:"username"`
	Email    string `json:"email,omitempty"`
	Password string `json:"password"`
	Role     string `json:"role,omitempty" enum:"admin,reviewer,contributor"`
}

type InstantiateTemplateRequest struct {
	TemplateID   string `json:"template_id"`
	InitiativeID string `json:"initiative_id"`
}

type ChatSetupRequest struct {
	APIKey string `json:"api_key"`
}

type ChatQueryRequest struct {
	Query         string   `json:"query"`
	InitiativeIDs []string `json:"initiative_ids,omitempty"`
}

// Response payloads

type InitiativeResponse struct {
	ID                   string `json:"id"`
	Title                string `json:"title"`
	ProgramOwner         string `json:"program_owner,omitempty"`
	Department           string `json:"department,omitempty"`
	Background           string `json:"background,omitempty"`
	Goal                 string `json:"goal,omitempty"`
	Stage                string `json:"stage" enum:"idea,proposal,pilot,production,retired"`
	Risks                string `json:"risks,omitempty"`
	VendorInfo           string `json:"vendor_info,omitempty"`
	AIComponents         string `json:"ai_components,omitempty"`
	EquityConsiderations string `json:"equity_considerations,omitempty"`
	Status               string `json:"status" enum:"active,paused,completed,deleted"`
	CreatedBy            string `json:"created_by,omitempty"`
	CreatedAt            string `json:"created_at" format:"date-time"`
	UpdatedAt            string `json:"updated_at" format:"date-time"`
}

type DocumentResponse struct {
	ID           string  `json:"id"`
	InitiativeID *string `json:"initiative_id,omitempty"`
	LibraryType  string  `json:"library_type" enum:"admin,core,ancillary"`
	Category     string  `json:"category,omitempty"`
	Filename     string  `json:"filename"`
	FileSize     int64   `json:"file_size"`
	DocumentType string  `json:"document_type,omitempty"`
	Description  string  `json:"description,omitempty"`
	Tags         string  `json:"tags,omitempty"`
	IsTemplate   bool    `json:"is_template"`
	IsRequired   bool    `json:"is_required"`
	TemplateID   *string `json:"template_id,omitempty"`
	Version      int     `json:"version"`
	Status       string  `json:"status" enum:"active,archived,deleted"`
	UploadedBy   string  `json:"uploaded_by"`
	UploadedAt   string  `json:"uploaded_at" format:"date-time"`
}

type UserResponse struct {
	ID        string  `json:"id"`
	Username  string  `json:"username"`
	Email     string  `json:"email,omitempty"`
	Role      string  `json:"role" enum:"admin,reviewer,contributor"`
	CreatedAt string  `json:"created_at" format:"date-time"`
	LastLogin *string `json:"last_login,omitempty" format:"date-time"`
}

type LoginResponse struct {
	Token string       `json:"token"`
	User  UserResponse `json:"user"`
}

type ComplianceResponse struct {
	InitiativeID         string   `json:"initiative_id"`
	Status               string   `json:"status" enum:"compliant,partial,non_compliant"`
	CompliancePercentage float64  `json:"compliance_percentage"`
	TotalRequired        int      `json:"total_required"`
	Completed            int      `json:"completed"`
	Missing              []string `json:"missing"`
}

type EventResponse struct {
	ID         int64          `json:"id"`
	TS         string         `json:"ts" format:"date-time"`
	Type       string         `json:"type"`
	EntityKind string         `json:"entity_kind"`
	EntityID   string         `json:"entity_id,omitempty"`
	ActorID    string         `json:"actor_id,omitempty"`
	Payload    map[string]any `json:"payload,omitempty" jsonschema:"type=object,additionalProperties=true"`
}

type paginatedEvents struct {
	Items      []EventResponse `json:"items"`
	NextCursor string          `json:"next_cursor,omitempty"`
}

type ChatQueryResponse struct {
	Response string `json:"response"`
}

func initiativeResponse(in domain.Initiative) InitiativeResponse {
	return InitiativeResponse{
		ID:                   in.ID,
		Title:                in.Title,
		ProgramOwner:         in.ProgramOwner,
		Department:           in.Department,
		Background:           in.Background,
		Goal:                 in.Goal,
		Stage:                in.Stage,
		Risks:                in.Risks,
		VendorInfo:           in.VendorInfo,
		AIComponents:         in.AIComponents,
		EquityConsiderations: in.EquityConsiderations,
		Status:               in.Status,
		CreatedBy:            in.CreatedBy,
		CreatedAt:            in.CreatedAt,
		UpdatedAt:            in.UpdatedAt,
	}
}

func mapInitiatives(items []domain.Initiative) []InitiativeResponse {
	out := make([]InitiativeResponse, 0, len(items))
	for _, in := range items {
		out = append(out, initiativeResponse(in))
	}
	return out
}

func documentResponse(d domain.Document) DocumentResponse {
	return DocumentResponse{
		ID:           d.ID,
		InitiativeID: d.InitiativeID,
		LibraryType:  d.LibraryType,
		Category:     d.Category,
		Filename:     d.Filename,
		FileSize:     d.FileSize,
		DocumentType: d.DocumentType,
		Description:  d.Description,
		Tags:         d.Tags,
		IsTemplate:   d.IsTemplate,
		IsRequired:   d.IsRequired,
		TemplateID:   d.TemplateID,
		Version:      d.Version,
		Status:       d.Status,
		UploadedBy:   d.UploadedBy,
		UploadedAt:   d.UploadedAt,
	}
}

func mapDocuments(items []domain.Document) []DocumentResponse {
	out := make([]DocumentResponse, 0, len(items))
	for _, d := range items {
		out = append(out, documentResponse(d))
	}
	return out
}

func userResponse(u domain.User) UserResponse {
	return UserResponse{
		ID:        u.ID,
		Username:  u.Username,
		Email:     u.Email,
		Role:      u.Role,
		CreatedAt: u.CreatedAt,
		LastLogin: u.LastLogin,
	}
}

func eventResponse(evt domain.Event) EventResponse {
	var payload map[string]any
	if evt.Payload != "" {
		_ = json.Unmarshal([]byte(evt.Payload), &payload)
	}
	return EventResponse{
		ID:         evt.ID,
		TS:         evt.TS,
		Type:       evt.Type,
		EntityKind: evt.EntityKind,
		EntityID:   evt.EntityID,
		ActorID:    evt.ActorID,
		Payload:    payload,
	}
}
