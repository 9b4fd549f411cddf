// catalog.go provides the in-process view of the field metadata catalog.
// Descriptors load once at startup and are immutable afterward; dropdown
// options are fetched lazily and cached in Redis (when configured) because
// they change rarely and back every editable dropdown in the UI.
package fields

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"

	"github.com/project-registry/project-registry/internal/db/models"
	"github.com/project-registry/project-registry/internal/naming"
)

const dropdownCacheTTL = 5 * time.Minute

// CatalogSource is the persistence surface the catalog reads from,
// implemented by the catalog repository.
type CatalogSource interface {
	ListFields(ctx context.Context) ([]models.FieldDescriptor, error)
	GetDropdownOptions(ctx context.Context, entityName, fieldKey string) ([]models.DropdownOption, error)
}

// Catalog is the runtime field catalog. Load must be called once before use.
type Catalog struct {
	source   CatalogSource
	rdb      *redis.Client
	byEntity map[string][]models.FieldDescriptor
}

// NewCatalog creates a catalog over its source. rdb may be nil, in which
// case dropdown options go straight to the database on every read.
func NewCatalog(source CatalogSource, rdb *redis.Client) *Catalog {
	return &Catalog{source: source, rdb: rdb}
}

// Load reads the full catalog. The result is kept for the process lifetime;
// catalog changes require a restart by design.
func (c *Catalog) Load(ctx context.Context) error {
	all, err := c.source.ListFields(ctx)
	if err != nil {
		return fmt.Errorf("load field catalog: %w", err)
	}
	byEntity := make(map[string][]models.FieldDescriptor)
	for _, fd := range all {
		byEntity[fd.EntityName] = append(byEntity[fd.EntityName], fd)
	}
	c.byEntity = byEntity
	slog.Info("field catalog loaded", "entities", len(byEntity), "fields", len(all))
	return nil
}

// Fields returns the descriptors for one entity, in form layout order. An
// unknown entity returns an empty slice.
func (c *Catalog) Fields(entityName string) []models.FieldDescriptor {
	return c.byEntity[entityName]
}

// ByEntity returns the whole catalog keyed by entity name.
func (c *Catalog) ByEntity() map[string][]models.FieldDescriptor {
	return c.byEntity
}

// Label returns a field's display label, deriving one from the key when the
// catalog has no entry or the entry carries no label.
func (c *Catalog) Label(entityName, fieldKey string) string {
	for _, fd := range c.byEntity[entityName] {
		if fd.FieldKey == fieldKey {
			if fd.DisplayLabel == "" {
				break
			}
			return fd.DisplayLabel
		}
	}
	return naming.FieldLabel(fieldKey)
}

// DropdownOptions returns the legal values for a dropdown field, consulting
// the Redis cache first. Cache failures are logged and fall through to the
// database; a non-dropdown pair yields an empty list, which callers treat as
// non-fatal.
func (c *Catalog) DropdownOptions(ctx context.Context, entityName, fieldKey string) ([]models.DropdownOption, error) {
	key := fmt.Sprintf("dropdown:%s:%s", entityName, fieldKey)

	if c.rdb != nil {
		cached, err := c.rdb.Get(ctx, key).Bytes()
		if err == nil {
			var opts []models.DropdownOption
			if err := json.Unmarshal(cached, &opts); err == nil {
				return opts, nil
			}
		} else if err != redis.Nil {
			slog.Warn("dropdown cache read failed", "key", key, "error", err)
		}
	}

	opts, err := c.source.GetDropdownOptions(ctx, entityName, fieldKey)
	if err != nil {
		return nil, err
	}

	if c.rdb != nil {
		if payload, err := json.Marshal(opts); err == nil {
			if err := c.rdb.Set(ctx, key, payload, dropdownCacheTTL).Err(); err != nil {
				slog.Warn("dropdown cache write failed", "key", key, "error", err)
			}
		}
	}
	return opts, nil
}

// PrefetchDropdowns fetches the options for every dropdown field of an entity
// concurrently. The fetches have no data dependency on each other, so they
// are dispatched together and the call returns once every fetch settles.
func (c *Catalog) PrefetchDropdowns(ctx context.Context, entityName string) (map[string][]models.DropdownOption, error) {
	g, gctx := errgroup.WithContext(ctx)
	out := make(map[string][]models.DropdownOption)
	results := make([][]models.DropdownOption, len(c.byEntity[entityName]))

	descriptors := c.byEntity[entityName]
	for i, fd := range descriptors {
		if fd.DataType != models.TypeDropdown {
			continue
		}
		i, fd := i, fd
		g.Go(func() error {
			opts, err := c.DropdownOptions(gctx, entityName, fd.FieldKey)
			if err != nil {
				return err
			}
			results[i] = opts
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	for i, fd := range descriptors {
		if fd.DataType == models.TypeDropdown {
			out[fd.FieldKey] = results[i]
		}
	}
	return out, nil
}
