// dispatcher.go executes resolved bundles against the store in delete →
// update → create order. Writes for one entity are sequential so instance
// numbers assigned as max+1 observe prior inserts; bundles for different
// entities within one save are independent and fan out concurrently.
package mutation

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/project-registry/project-registry/internal/db/models"
	"github.com/project-registry/project-registry/internal/telemetry"
)

// Result is the outcome of dispatching one entity's bundle.
type Result struct {
	Entity  string          `json:"entity"`
	Records []models.Record `json:"data"`
	Skipped []Skipped       `json:"skipped,omitempty"`
	Action  string          `json:"action"`
}

// Dispatcher routes bundles to registered handlers and issues persistence
// calls.
type Dispatcher struct {
	registry *Registry
	store    Store
}

// NewDispatcher creates a dispatcher over a handler registry and a store.
func NewDispatcher(registry *Registry, store Store) *Dispatcher {
	return &Dispatcher{registry: registry, store: store}
}

// Registry exposes the handler registry for callers that enumerate entities.
func (d *Dispatcher) Registry() *Registry { return d.registry }

// Dispatch validates, resolves, and persists one entity's bundle. Deletes run
// first in one project-scoped batch, then sparse updates, then creates, so a
// delete-then-recreate of the same natural key never shows a duplicate.
func (d *Dispatcher) Dispatch(ctx context.Context, entityName string, projectID int64, b Bundle) (*Result, error) {
	h, ok := d.registry.Get(entityName)
	if !ok {
		return nil, UnsupportedEntityError(entityName, d.registry.Names())
	}

	if err := h.Validate(b); err != nil {
		return nil, err
	}

	resolved, skipped, err := h.ResolveReferences(ctx, projectID, b)
	if err != nil {
		return nil, err
	}
	for _, s := range skipped {
		slog.Warn("create skipped: unresolved reference",
			"entity", entityName, "project_id", projectID, "index", s.Index, "reason", s.Reason)
	}

	writes := h.ToWrites(projectID, resolved)
	result := &Result{Entity: entityName, Skipped: skipped, Action: b.ActionType()}

	if len(writes.Deletes) > 0 {
		if err := d.store.DeleteBatch(ctx, h.Table(), projectID, writes.Deletes); err != nil {
			return nil, fmt.Errorf("delete %s: %w", entityName, err)
		}
	}

	for _, u := range writes.Updates {
		rec, err := d.store.UpdateSparse(ctx, h.Table(), projectID, u.ID, u.Fields)
		if err != nil {
			return nil, fmt.Errorf("update %s id=%d: %w", entityName, u.ID, err)
		}
		result.Records = append(result.Records, rec)
	}

	instanceCol, groupCol := "", ""
	if ia, ok := h.(InstanceAssigner); ok {
		instanceCol, groupCol = ia.InstanceRule()
	}
	for _, ins := range writes.Inserts {
		if instanceCol != "" {
			if _, supplied := ins[instanceCol]; !supplied {
				max, err := d.store.MaxInstance(ctx, h.Table(), projectID, instanceCol, groupCol, ins[groupCol])
				if err != nil {
					return nil, fmt.Errorf("instance number for %s: %w", entityName, err)
				}
				ins[instanceCol] = max + 1
			}
		}
		rec, err := d.store.Insert(ctx, h.Table(), ins)
		if err != nil {
			return nil, fmt.Errorf("create %s: %w", entityName, err)
		}
		result.Records = append(result.Records, rec)
	}

	telemetry.MutationsTotal.WithLabelValues(entityName, result.Action).Inc()
	telemetry.MutationRowsTotal.WithLabelValues(entityName, "delete").Add(float64(len(writes.Deletes)))
	telemetry.MutationRowsTotal.WithLabelValues(entityName, "update").Add(float64(len(writes.Updates)))
	telemetry.MutationRowsTotal.WithLabelValues(entityName, "create").Add(float64(len(writes.Inserts)))
	return result, nil
}

// DispatchAll fans out bundles for multiple entities concurrently. Each
// entity's own writes stay sequential inside Dispatch; cross-entity bundles
// have no data dependency on each other. Results come back sorted by entity
// name for deterministic responses.
func (d *Dispatcher) DispatchAll(ctx context.Context, projectID int64, bundles map[string]Bundle) ([]*Result, error) {
	g, gctx := errgroup.WithContext(ctx)
	var mu sync.Mutex
	results := make([]*Result, 0, len(bundles))

	for entity, bundle := range bundles {
		entity, bundle := entity, bundle
		g.Go(func() error {
			res, err := d.Dispatch(gctx, entity, projectID, bundle)
			if err != nil {
				return err
			}
			mu.Lock()
			results = append(results, res)
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	sort.Slice(results, func(i, j int) bool { return results[i].Entity < results[j].Entity })
	return results, nil
}
