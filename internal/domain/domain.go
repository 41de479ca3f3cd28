package domain

// Stages is the fixed lifecycle order for initiatives.
var Stages = []string{"idea", "proposal", "pilot", "production", "retired"}

// StageRank returns the position of a stage in the lifecycle order, or -1.
func StageRank(stage string) int {
	for i, s := range Stages {
		if s == stage {
			return i
		}
	}
	return -1
}

type Initiative struct {
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

type Document struct {
	ID           string  `json:"id"`
	InitiativeID *string `json:"initiative_id,omitempty"`
	LibraryType  string  `json:"library_type" enum:"admin,core,ancillary"`
	Category     string  `json:"category,omitempty"`
	Filename     string  `json:"filename"`
	FilePath     string  `json:"file_path"`
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

type User struct {
	ID           string  `json:"id"`
	Username     string  `json:"username"`
	Email        string  `json:"email,omitempty"`
	Role         string  `json:"role" enum:"admin,reviewer,contributor"`
	PasswordHash string  `json:"-"`
	CreatedAt    string  `json:"created_at" format:"date-time"`
	LastLogin    *string `json:"last_login,omitempty" format:"date-time"`
}

type ChatKey struct {
	UserID       string  `json:"user_id"`
	EncryptedKey string  `json:"-"`
	Provider     string  `json:"provider"`
	CreatedAt    string  `json:"created_at" format:"date-time"`
	LastUsed     *string `json:"last_used,omitempty" format:"date-time"`
	UsageCount   int     `json:"usage_count"`
}

type Event struct {
	ID         int64  `json:"id"`
	TS         string `json:"ts" format:"date-time"`
	Type       string `json:"type"`
	EntityKind string `json:"entity_kind"`
	EntityID   string `json:"entity_id,omitempty"`
	ActorID    string `json:"actor_id"`
	Payload    string `json:"payload_json"`
}

type Compliance struct {
	InitiativeID         string   `json:"initiative_id"`
	Status               string   `json:"status" enum:"compliant,partial,non_compliant"`
	CompliancePercentage float64  `json:"compliance_percentage"`
	TotalRequired        int      `json:"total_required"`
	Completed            int      `json:"completed"`
	Missing              []string `json:"missing"`
}
