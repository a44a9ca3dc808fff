package store

import (
	"context"
	"errors"
	"regexp"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/dbasik/dbasik/internal/model"
)

// ErrNotFound is wrapped by lookups that match no row.
var ErrNotFound = eris.New("not found")

// Store defines the persistence interface for datamaps, returns and their
// extracted items.
type Store interface {
	// Register
	CreateTier(ctx context.Context, name, description string) (*model.Tier, error)
	CreateProject(ctx context.Context, name, tierID string) (*model.Project, error)
	GetProject(ctx context.Context, id string) (*model.Project, error)
	GetProjectByName(ctx context.Context, name string) (*model.Project, error)

	// Returns
	CreateReturn(ctx context.Context, projectID string, q model.Quarter) (*model.Return, error)
	GetReturn(ctx context.Context, id string) (*model.Return, error)
	ListReturns(ctx context.Context, filter model.ReturnFilter) ([]model.Return, error)

	// Datamaps
	CreateDatamap(ctx context.Context, name, tierID string) (*model.Datamap, error)
	GetDatamap(ctx context.Context, id string) (*model.Datamap, error)
	GetDatamapByName(ctx context.Context, name string) (*model.Datamap, error)
	ListDatamaps(ctx context.Context) ([]model.Datamap, error)
	AddDatamapLines(ctx context.Context, datamapID string, lines []model.DatamapLine) error
	ReplaceDatamapLines(ctx context.Context, datamapID string, lines []model.DatamapLine) error

	// Return items
	SaveReturnItems(ctx context.Context, returnID string, items []model.ReturnItem) error
	ListReturnItems(ctx context.Context, returnID string) ([]model.ReturnItem, error)
	DeleteReturnItems(ctx context.Context, returnID string) (int, error)

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}

// FindDatamap looks a datamap up by id, then by name.
func FindDatamap(ctx context.Context, s Store, idOrName string) (*model.Datamap, error) {
	dm, err := s.GetDatamap(ctx, idOrName)
	if err == nil {
		return dm, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return nil, err
	}
	return s.GetDatamapByName(ctx, idOrName)
}

func notFound(entity, id string) error {
	return eris.Wrapf(ErrNotFound, "%s %s", entity, id)
}

var nonSlug = regexp.MustCompile(`[^a-z0-9]+`)

// slugify turns a tier name into its URL form: "Tier 1" -> "tier-1".
func slugify(name string) string {
	return strings.Trim(nonSlug.ReplaceAllString(strings.ToLower(name), "-"), "-")
}

const dateLayout = "2006-01-02"

// nullable returns nil for the empty string, for optional foreign keys.
func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}
