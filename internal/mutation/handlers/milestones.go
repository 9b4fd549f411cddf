// milestones.go customizes the generic handler for milestone rows: the
// milestone date and its estimate/actual marker travel as one paired value, so
// a payload can never update the marker without the date it belongs to.
package handlers

import (
	"context"
	"fmt"

	"github.com/project-registry/project-registry/internal/fields"
	"github.com/project-registry/project-registry/internal/mutation"
)

type milestoneHandler struct {
	*mutation.EntityHandler
}

func newMilestoneHandler(types map[string]string, resolver mutation.Resolver) *milestoneHandler {
	return &milestoneHandler{
		EntityHandler: mutation.NewEntityHandler(mutation.EntityConfig{
			Name:    "milestones",
			Table:   "milestones",
			Columns: same("name", "milestone_date", "date_confidence", "completed_pct"),
			Types:   types,
		}, resolver),
	}
}

// ResolveReferences coerces the (milestone_date, date_confidence) pair as a
// unit before handing the rows to the generic resolution path.
func (h *milestoneHandler) ResolveReferences(ctx context.Context, projectID int64, b mutation.Bundle) (mutation.Resolved, []mutation.Skipped, error) {
	for i, row := range b.Updates {
		if err := coerceDatePair(row); err != nil {
			return mutation.Resolved{}, nil, fmt.Errorf("milestones update %d: %w", i, err)
		}
	}
	for i, row := range b.Creates {
		if err := coerceDatePair(row); err != nil {
			return mutation.Resolved{}, nil, fmt.Errorf("milestones create %d: %w", i, err)
		}
	}
	return h.EntityHandler.ResolveReferences(ctx, projectID, b)
}

func coerceDatePair(row map[string]any) error {
	rawDate, hasDate := row["milestone_date"]
	rawConf, hasConf := row["date_confidence"]
	if !hasDate && !hasConf {
		return nil
	}
	if hasConf && !hasDate {
		return fmt.Errorf("%w: date_confidence cannot be updated without milestone_date",
			mutation.ErrInvalidPayload)
	}
	date, _ := rawDate.(string)
	conf, _ := rawConf.(string)
	dv, err := fields.CoerceDateValue(date, conf)
	if err != nil {
		return err
	}
	if dv == nil {
		row["milestone_date"] = nil
		row["date_confidence"] = nil
		return nil
	}
	row["milestone_date"] = dv.Date
	row["date_confidence"] = string(dv.Confidence)
	return nil
}
