package db

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"regexp"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/labstack/echo/v4"
)

type contextKey string

const (
	TenantIDKey contextKey = "tenant_id"
	DBConnKey   contextKey = "db_conn"

	TenantHeader = "X-Tenant-ID"
)

// ErrForkUnavailable is returned when no extra tenant connection could be
// acquired in time.
var ErrForkUnavailable = errors.New("no tenant connection available")

var tenantIDPattern = regexp.MustCompile(`^[a-zA-Z0-9_]+$`)

// SchemaName returns the PostgreSQL schema holding a tenant's records.
func SchemaName(tenantID string) (string, error) {
	if !tenantIDPattern.MatchString(tenantID) {
		return "", fmt.Errorf("invalid tenant identifier: %q", tenantID)
	}
	return "tenant_" + tenantID, nil
}

// TenantMiddleware acquires a connection per request and pins its
// search_path to the caller's tenant schema.
func TenantMiddleware(pool *pgxpool.Pool, defaultTenant string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			tenantID := extractTenantID(c, defaultTenant)
			if _, err := SchemaName(tenantID); err != nil {
				return echo.NewHTTPError(http.StatusBadRequest, "invalid tenant identifier")
			}

			ctx, release, err := AcquireTenant(c.Request().Context(), pool, tenantID)
			if err != nil {
				return echo.NewHTTPError(http.StatusServiceUnavailable, "tenant resolution failed")
			}
			defer release()

			c.SetRequest(c.Request().WithContext(ctx))
			c.Set("tenant_id", tenantID)
			return next(c)
		}
	}
}

// AcquireTenant returns a context carrying the tenant id and a pooled
// connection whose search_path is the tenant schema. release resets the
// connection and returns it to the pool.
func AcquireTenant(ctx context.Context, pool *pgxpool.Pool, tenantID string) (context.Context, func(), error) {
	conn, release, err := acquireTenantConn(ctx, pool, tenantID)
	if err != nil {
		return ctx, func() {}, err
	}
	ctx = WithTenant(ctx, tenantID)
	ctx = context.WithValue(ctx, DBConnKey, conn)
	return ctx, release, nil
}

func acquireTenantConn(ctx context.Context, pool *pgxpool.Pool, tenantID string) (*pgxpool.Conn, func(), error) {
	schema, err := SchemaName(tenantID)
	if err != nil {
		return nil, nil, err
	}
	conn, err := pool.Acquire(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("acquire connection: %w", err)
	}
	if _, err := conn.Exec(ctx, fmt.Sprintf("SET search_path TO %s, public", schema)); err != nil {
		conn.Release()
		return nil, nil, fmt.Errorf("set search_path: %w", err)
	}
	release := func() {
		// Pooled connections are reused across tenants.
		conn.Exec(context.Background(), "RESET search_path") //nolint:errcheck
		conn.Release()
	}
	return conn, release, nil
}

// ForkTenant returns a function that gives a concurrent reader its own
// tenant connection. A pgx connection serves one query at a time, so work
// fanned out from a request must not share the request's connection. When
// ctx carries no tenant connection the returned context is ctx itself.
//
// The request already holds a connection while it forks, so waiting on a
// drained pool is bounded by wait; the returned error wraps ErrForkUnavailable.
func ForkTenant(pool *pgxpool.Pool, wait time.Duration) func(ctx context.Context) (context.Context, func(), error) {
	return func(ctx context.Context) (context.Context, func(), error) {
		tenantID := TenantFromContext(ctx)
		if pool == nil || tenantID == "" || ConnFromContext(ctx) == nil {
			return ctx, func() {}, nil
		}
		actx, cancel := context.WithTimeout(ctx, wait)
		defer cancel()
		conn, release, err := acquireTenantConn(actx, pool, tenantID)
		if err != nil {
			return ctx, func() {}, fmt.Errorf("%w: %v", ErrForkUnavailable, err)
		}
		return context.WithValue(ctx, DBConnKey, conn), release, nil
	}
}

func extractTenantID(c echo.Context, defaultTenant string) string {
	if tid, ok := c.Get("jwt_tenant_id").(string); ok && tid != "" {
		return tid
	}
	if tid := c.Request().Header.Get(TenantHeader); tid != "" {
		return tid
	}
	return defaultTenant
}

// WithTenant stores the tenant id on ctx.
func WithTenant(ctx context.Context, tenantID string) context.Context {
	return context.WithValue(ctx, TenantIDKey, tenantID)
}

// ConnFromContext retrieves the tenant-scoped database connection from context.
func ConnFromContext(ctx context.Context) *pgxpool.Conn {
	conn, _ := ctx.Value(DBConnKey).(*pgxpool.Conn)
	return conn
}

// TenantFromContext retrieves the tenant ID from context.
func TenantFromContext(ctx context.Context) string {
	tid, _ := ctx.Value(TenantIDKey).(string)
	return tid
}

// EnsureTenantSchema creates the tenant schema when missing.
func EnsureTenantSchema(ctx context.Context, pool *pgxpool.Pool, tenantID string) (string, error) {
	schema, err := SchemaName(tenantID)
	if err != nil {
		return "", err
	}
	if _, err := pool.Exec(ctx, fmt.Sprintf("CREATE SCHEMA IF NOT EXISTS %s", schema)); err != nil {
		return "", fmt.Errorf("create schema %s: %w", schema, err)
	}
	return schema, nil
}
