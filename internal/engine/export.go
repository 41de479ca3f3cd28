package engine

import (
	"bytes"
	"context"
	"encoding/csv"

	"github.com/Mdraugelis/ai-programs-registry/internal/repo"
)

var exportHeader = []string{
	"id", "title", "program_owner", "department", "stage", "status",
	"background", "goal", "risks", "vendor_info", "ai_components",
	"equity_considerations", "created_by", "created_at", "updated_at",
}

// ExportCSV renders every non-deleted initiative as CSV.
func (e Engine) ExportCSV(ctx context.Context) ([]byte, error) {
	items, err := e.Repo.ListInitiatives(ctx, repo.InitiativeFilters{})
	if err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.Write(exportHeader); err != nil {
		return nil, err
	}
	for _, in := range items {
		row := []string{
			in.ID, in.Title, in.ProgramOwner, in.Department, in.Stage, in.Status,
			in.Background, in.Goal, in.Risks, in.VendorInfo, in.AIComponents,
			in.EquityConsiderations, in.CreatedBy, in.CreatedAt, in.UpdatedAt,
		}
		if err := w.Write(row); err != nil {
			return nil, err
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
