package engine

import (
	"context"
	"math"
	"strings"

	"github.com/Mdraugelis/ai-programs-registry/internal/domain"
	"github.com/Mdraugelis/ai-programs-registry/internal/repo"
)

// Compliance checks the initiative's core library against the config
// requirement catalog. Only mandatory requirements at or before the
// initiative's current stage count.
func (e Engine) Compliance(ctx context.Context, initiativeID string) (domain.Compliance, error) {
	in, err := e.Repo.GetInitiative(ctx, initiativeID)
	if err != nil {
		return domain.Compliance{}, err
	}
	docs, err := e.Repo.ListDocuments(ctx, repo.DocumentFilters{
		InitiativeID: initiativeID,
		LibraryType:  "core",
	})
	if err != nil {
		return domain.Compliance{}, err
	}
	present := make(map[string]bool, len(docs))
	for _, d := range docs {
		if d.Status == "active" {
			present[strings.ToLower(d.Category)] = true
		}
	}

	rank := domain.StageRank(in.Stage)
	c := domain.Compliance{InitiativeID: initiativeID, Missing: []string{}}
	for _, req := range e.Config.Documents.Requirements {
		if !req.Mandatory || domain.StageRank(req.Stage) > rank {
			continue
		}
		c.TotalRequired++
		if present[strings.ToLower(req.Category)] {
			c.Completed++
		} else {
			c.Missing = append(c.Missing, req.Name)
		}
	}

	switch {
	case c.TotalRequired == 0 || c.Completed == c.TotalRequired:
		c.Status = "compliant"
		c.CompliancePercentage = 100
	case c.Completed == 0:
		c.Status = "non_compliant"
	default:
		c.Status = "partial"
	}
	if c.TotalRequired > 0 {
		c.CompliancePercentage = math.Round(float64(c.Completed)/float64(c.TotalRequired)*1000) / 10
	}
	return c, nil
}
