// resolver.go adapts the lookup repository to the mutation.Resolver
// contract. The repository reports misses with its own sentinel; here they
// become mutation.ErrLookupMiss so handlers apply partial-failure semantics
// without the repository layer knowing about them.
package handlers

import (
	"context"
	"errors"
	"fmt"

	"github.com/project-registry/project-registry/internal/db/repositories"
	"github.com/project-registry/project-registry/internal/mutation"
)

// DBResolver implements mutation.Resolver over the lookup repository.
type DBResolver struct {
	repo *repositories.LookupRepository
}

func NewDBResolver(repo *repositories.LookupRepository) *DBResolver {
	return &DBResolver{repo: repo}
}

func (r *DBResolver) ResolveName(ctx context.Context, table, name string) (int64, error) {
	id, err := r.repo.ResolveName(ctx, table, name)
	if err != nil {
		if errors.Is(err, repositories.ErrLookupNotFound) {
			return 0, fmt.Errorf("%w: %s %q", mutation.ErrLookupMiss, table, name)
		}
		return 0, err
	}
	return id, nil
}

func (r *DBResolver) FindRowID(ctx context.Context, table string, projectID int64, cols map[string]any) (int64, error) {
	return r.repo.FindRowID(ctx, table, projectID, cols)
}
