package catalog

import "context"

type Repository interface {
	ListActive(ctx context.Context) ([]*Definition, error)
	List(ctx context.Context, status string, limit, offset int) ([]*Definition, int, error)
	// Upsert updates the definition sharing d's identifier code, preferring
	// the active one, or inserts d. It reports whether a row was inserted.
	Upsert(ctx context.Context, d *Definition) (bool, error)
}
