// Package pgstore provides a PostgreSQL implementation of alert.Store and
// alert.DuplicateChecker.
package pgstore

import (
	"context"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/linnemanlabs/rampart/internal/alert"
)

var tracer = otel.Tracer("github.com/linnemanlabs/rampart/internal/alert/pgstore")

//go:embed schema.sql
var schema string

// Store persists alerts in PostgreSQL.
type Store struct {
	pool *pgxpool.Pool
}

// New applies the schema and returns a ready Store on the given pool.
func New(ctx context.Context, pool *pgxpool.Pool) (*Store, error) {
	if _, err := pool.Exec(ctx, schema); err != nil {
		return nil, fmt.Errorf("apply schema: %w", err)
	}
	return &Store{pool: pool}, nil
}

const alertColumns = `id, tenant_id, device_id, source_system, alert_type, classification,
	severity, message, status, owner_id, assigned_at, resolution_notes, metadata, created_at, detected_at`

// Persist inserts a new alert row.
func (s *Store) Persist(ctx context.Context, a *alert.Alert) error {
	ctx, span := tracer.Start(ctx, "pgstore.Persist", trace.WithAttributes(
		attribute.String("db.system", "postgresql"),
		attribute.String("db.operation.name", "INSERT"),
	))
	defer span.End()

	metadataJSON, err := json.Marshal(a.Metadata)
	if err != nil {
		return fmt.Errorf("marshal metadata: %w", err)
	}

	query := `INSERT INTO alerts (` + alertColumns + `)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15)`

	_, err = s.pool.Exec(ctx, query,
		a.ID, a.TenantID, a.DeviceID, a.SourceSystem, a.AlertType, a.Classification,
		string(a.Severity), a.Message, string(a.Status), a.OwnerID, a.AssignedAt,
		a.ResolutionNotes, metadataJSON, a.CreatedAt, a.DetectedAt,
	)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return fmt.Errorf("insert alert: %w", err)
	}
	return nil
}

// Get retrieves a tenant's alert by ID. A row owned by another tenant
// reads as absent.
func (s *Store) Get(ctx context.Context, tenantID, id string) (*alert.Alert, bool, error) {
	ctx, span := tracer.Start(ctx, "pgstore.Get", trace.WithAttributes(
		attribute.String("db.system", "postgresql"),
		attribute.String("db.operation.name", "SELECT"),
	))
	defer span.End()

	query := `SELECT ` + alertColumns + ` FROM alerts WHERE id = $1 AND tenant_id = $2`
	a, err := scanAlertRow(s.pool.QueryRow(ctx, query, id, tenantID))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, false, err
	}
	if a == nil {
		return nil, false, nil
	}
	return a, true, nil
}

// ConditionalUpdate applies patch in a single UPDATE guarded by the
// expected status (and owner, when set). Zero rows affected means a
// concurrent caller won.
func (s *Store) ConditionalUpdate(ctx context.Context, tenantID, id string, expect alert.Expect, patch alert.Patch) (bool, error) {
	ctx, span := tracer.Start(ctx, "pgstore.ConditionalUpdate", trace.WithAttributes(
		attribute.String("db.system", "postgresql"),
		attribute.String("db.operation.name", "UPDATE"),
	))
	defer span.End()

	sets := []string{"status = $1"}
	args := []any{string(patch.Status)}
	if patch.OwnerID != nil {
		args = append(args, *patch.OwnerID)
		sets = append(sets, "owner_id = $"+strconv.Itoa(len(args)))
	}
	if patch.AssignedAt != nil {
		args = append(args, *patch.AssignedAt)
		sets = append(sets, "assigned_at = $"+strconv.Itoa(len(args)))
	}
	if patch.ResolutionNotes != nil {
		args = append(args, *patch.ResolutionNotes)
		sets = append(sets, "resolution_notes = $"+strconv.Itoa(len(args)))
	}

	args = append(args, id)
	conds := []string{"id = $" + strconv.Itoa(len(args))}
	args = append(args, tenantID)
	conds = append(conds, "tenant_id = $"+strconv.Itoa(len(args)))
	args = append(args, string(expect.Status))
	conds = append(conds, "status = $"+strconv.Itoa(len(args)))
	if expect.OwnerID != "" {
		args = append(args, expect.OwnerID)
		conds = append(conds, "owner_id = $"+strconv.Itoa(len(args)))
	}

	query := "UPDATE alerts SET " + strings.Join(sets, ", ") + " WHERE " + strings.Join(conds, " AND ")

	tag, err := s.pool.Exec(ctx, query, args...)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return false, fmt.Errorf("conditional update: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

// ExistsRecentDuplicate reports whether a same tenant/device/type alert
// was created within the window.
func (s *Store) ExistsRecentDuplicate(ctx context.Context, tenantID, deviceID, alertType string, window time.Duration) (bool, error) {
	ctx, span := tracer.Start(ctx, "pgstore.ExistsRecentDuplicate", trace.WithAttributes(
		attribute.String("db.system", "postgresql"),
		attribute.String("db.operation.name", "SELECT"),
	))
	defer span.End()

	query := `SELECT EXISTS (
		SELECT 1 FROM alerts
		WHERE tenant_id = $1 AND device_id = $2 AND alert_type = $3 AND created_at > $4
	)`

	var exists bool
	err := s.pool.QueryRow(ctx, query, tenantID, deviceID, alertType, time.Now().Add(-window)).Scan(&exists)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return false, fmt.Errorf("duplicate check: %w", err)
	}
	return exists, nil
}

// scanAlertRow scans a single row into an alert.Alert.
// Returns (nil, nil) when no row is found.
func scanAlertRow(row pgx.Row) (*alert.Alert, error) {
	var (
		a            alert.Alert
		severity     string
		status       string
		assignedAt   *time.Time
		metadataJSON []byte
	)

	err := row.Scan(
		&a.ID, &a.TenantID, &a.DeviceID, &a.SourceSystem, &a.AlertType, &a.Classification,
		&severity, &a.Message, &status, &a.OwnerID, &assignedAt, &a.ResolutionNotes,
		&metadataJSON, &a.CreatedAt, &a.DetectedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("scan: %w", err)
	}

	a.Severity = alert.Severity(severity)
	a.Status = alert.Status(status)
	a.AssignedAt = assignedAt

	if len(metadataJSON) > 0 {
		if err := json.Unmarshal(metadataJSON, &a.Metadata); err != nil {
			return nil, fmt.Errorf("unmarshal metadata: %w", err)
		}
	}

	return &a, nil
}
