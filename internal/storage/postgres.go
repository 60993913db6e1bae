package storage

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

//go:embed schema.sql
var schema string

// PostgresRepository implements Repository on PostgreSQL
type PostgresRepository struct {
	db *pgxpool.Pool
}

// Connect opens a connection pool and verifies it with a ping
func Connect(ctx context.Context, dsn string, maxConns int32) (*pgxpool.Pool, error) {
	config, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to parse database url: %w", err)
	}
	if maxConns > 0 {
		config.MaxConns = maxConns
	}

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("failed to create pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	return pool, nil
}

// NewPostgresRepository creates a repository on an initialized pool
func NewPostgresRepository(db *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// Migrate creates the tables if they do not exist
func (r *PostgresRepository) Migrate(ctx context.Context) error {
	if _, err := r.db.Exec(ctx, schema); err != nil {
		return fmt.Errorf("Migrate failed: %w", err)
	}
	return nil
}

func (r *PostgresRepository) SaveRoute(ctx context.Context, route *RouteRecord) error {
	const query = `
		INSERT INTO route_history (
			id, user_id,
			source_lat, source_lng, source_address,
			destination_lat, destination_lng, destination_address,
			safety_score, risk_level, distance, duration,
			coordinates, assessment, steps, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)`

	prepareRoute(route, time.Now())
	steps := route.Steps
	if steps == nil {
		steps = []Step{}
	}

	_, err := r.db.Exec(ctx, query,
		route.ID, route.UserID,
		route.Source.Latitude, route.Source.Longitude, route.Source.Address,
		route.Destination.Latitude, route.Destination.Longitude, route.Destination.Address,
		route.Assessment.OverallScore, string(route.Assessment.RiskLevel), route.Distance, route.Duration,
		route.Coordinates, route.Assessment, steps, route.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("SaveRoute failed: %w", err)
	}
	return nil
}

const routeColumns = `
	id, user_id,
	source_lat, source_lng, source_address,
	destination_lat, destination_lng, destination_address,
	distance, duration, coordinates, assessment, steps, created_at`

func scanRoute(row pgx.Row) (*RouteRecord, error) {
	route := &RouteRecord{}
	err := row.Scan(
		&route.ID, &route.UserID,
		&route.Source.Latitude, &route.Source.Longitude, &route.Source.Address,
		&route.Destination.Latitude, &route.Destination.Longitude, &route.Destination.Address,
		&route.Distance, &route.Duration,
		&route.Coordinates, &route.Assessment, &route.Steps, &route.CreatedAt,
	)
	return route, err
}

func (r *PostgresRepository) ListRoutes(ctx context.Context, userID string, limit int) ([]*RouteRecord, error) {
	query := `SELECT` + routeColumns + `
		FROM route_history
		WHERE user_id = $1
		ORDER BY created_at DESC
		LIMIT $2`

	rows, err := r.db.Query(ctx, query, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("ListRoutes failed: %w", err)
	}
	defer rows.Close()

	var routes []*RouteRecord
	for rows.Next() {
		route, err := scanRoute(rows)
		if err != nil {
			return nil, fmt.Errorf("ListRoutes scan failed: %w", err)
		}
		routes = append(routes, route)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("ListRoutes rows error: %w", err)
	}
	return routes, nil
}

func (r *PostgresRepository) GetRoute(ctx context.Context, userID string, id uuid.UUID) (*RouteRecord, error) {
	query := `SELECT` + routeColumns + `
		FROM route_history
		WHERE id = $1 AND user_id = $2`

	route, err := scanRoute(r.db.QueryRow(ctx, query, id, userID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("GetRoute failed: %w", err)
	}
	return route, nil
}

func (r *PostgresRepository) SaveAlert(ctx context.Context, a *EmergencyAlert) error {
	const query = `
		INSERT INTO emergency_alerts (id, user_id, lat, lng, address, alert_type, status, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`

	prepareAlert(a, time.Now())
	_, err := r.db.Exec(ctx, query,
		a.ID, a.UserID,
		a.Location.Latitude, a.Location.Longitude, a.Location.Address,
		a.AlertType, a.Status, a.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("SaveAlert failed: %w", err)
	}
	return nil
}

func (r *PostgresRepository) GetProfile(ctx context.Context, userID string) (*Profile, error) {
	const query = `
		SELECT user_id, full_name, phone, emergency_contact, updated_at
		FROM profiles
		WHERE user_id = $1`

	p := &Profile{}
	err := r.db.QueryRow(ctx, query, userID).Scan(&p.UserID, &p.FullName, &p.Phone, &p.EmergencyContact, &p.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("GetProfile failed: %w", err)
	}
	return p, nil
}

func (r *PostgresRepository) UpsertProfile(ctx context.Context, p *Profile) error {
	const query = `
		INSERT INTO profiles (user_id, full_name, phone, emergency_contact, updated_at)
		VALUES ($1, $2, $3, $4, now())
		ON CONFLICT (user_id) DO UPDATE
		SET full_name = EXCLUDED.full_name,
		    phone = EXCLUDED.phone,
		    emergency_contact = EXCLUDED.emergency_contact,
		    updated_at = now()
		RETURNING updated_at`

	if err := r.db.QueryRow(ctx, query, p.UserID, p.FullName, p.Phone, p.EmergencyContact).Scan(&p.UpdatedAt); err != nil {
		return fmt.Errorf("UpsertProfile failed: %w", err)
	}
	return nil
}
