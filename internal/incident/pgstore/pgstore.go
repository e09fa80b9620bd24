// Package pgstore provides a PostgreSQL implementation of incident.Store.
package pgstore

import (
	"context"
	_ "embed"
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
	"github.com/linnemanlabs/rampart/internal/incident"
)

var tracer = otel.Tracer("github.com/linnemanlabs/rampart/internal/incident/pgstore")

//go:embed schema.sql
var schema string

// Store persists incidents in PostgreSQL.
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

const incidentColumns = `id, tenant_id, title, description, severity, status, owner_id,
	linked_alert_id, resolution_summary, created_at, acknowledged_at, investigation_started_at,
	resolved_at, sla_acknowledge_by, sla_investigate_by, sla_resolve_by`

// Persist inserts a new incident row. The unique index on
// (tenant_id, linked_alert_id) backstops the one-incident-per-alert
// invariant at the storage level.
func (s *Store) Persist(ctx context.Context, inc *incident.Incident) error {
	ctx, span := tracer.Start(ctx, "pgstore.Persist", trace.WithAttributes(
		attribute.String("db.system", "postgresql"),
		attribute.String("db.operation.name", "INSERT"),
	))
	defer span.End()

	query := `INSERT INTO incidents (` + incidentColumns + `)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16)`

	_, err := s.pool.Exec(ctx, query,
		inc.ID, inc.TenantID, inc.Title, inc.Description, string(inc.Severity), string(inc.Status),
		inc.OwnerID, inc.LinkedAlertID, inc.ResolutionSummary, inc.CreatedAt, inc.AcknowledgedAt,
		inc.InvestigationStartedAt, inc.ResolvedAt, inc.SLAAcknowledgeBy, inc.SLAInvestigateBy, inc.SLAResolveBy,
	)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return fmt.Errorf("insert incident: %w", err)
	}
	return nil
}

// Get retrieves a tenant's incident by ID.
//
//nolint:dupl // similar structure to GetByAlert is intentional
func (s *Store) Get(ctx context.Context, tenantID, id string) (*incident.Incident, bool, error) {
	ctx, span := tracer.Start(ctx, "pgstore.Get", trace.WithAttributes(
		attribute.String("db.system", "postgresql"),
		attribute.String("db.operation.name", "SELECT"),
	))
	defer span.End()

	query := `SELECT ` + incidentColumns + ` FROM incidents WHERE id = $1 AND tenant_id = $2`
	inc, err := scanIncidentRow(s.pool.QueryRow(ctx, query, id, tenantID))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, false, err
	}
	if inc == nil {
		return nil, false, nil
	}
	return inc, true, nil
}

// GetByAlert finds the incident linked to an escalated alert.
//
//nolint:dupl // similar structure to Get is intentional
func (s *Store) GetByAlert(ctx context.Context, tenantID, alertID string) (*incident.Incident, bool, error) {
	ctx, span := tracer.Start(ctx, "pgstore.GetByAlert", trace.WithAttributes(
		attribute.String("db.system", "postgresql"),
		attribute.String("db.operation.name", "SELECT"),
	))
	defer span.End()

	query := `SELECT ` + incidentColumns + ` FROM incidents WHERE tenant_id = $1 AND linked_alert_id = $2`
	inc, err := scanIncidentRow(s.pool.QueryRow(ctx, query, tenantID, alertID))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, false, err
	}
	if inc == nil {
		return nil, false, nil
	}
	return inc, true, nil
}

// ConditionalUpdate applies patch in a single UPDATE guarded by the
// expected status. Zero rows affected means a concurrent caller won.
func (s *Store) ConditionalUpdate(ctx context.Context, tenantID, id string, expect incident.Expect, patch incident.Patch) (bool, error) {
	ctx, span := tracer.Start(ctx, "pgstore.ConditionalUpdate", trace.WithAttributes(
		attribute.String("db.system", "postgresql"),
		attribute.String("db.operation.name", "UPDATE"),
	))
	defer span.End()

	sets := []string{"status = $1"}
	args := []any{string(patch.Status)}
	if patch.AcknowledgedAt != nil {
		args = append(args, *patch.AcknowledgedAt)
		sets = append(sets, "acknowledged_at = $"+strconv.Itoa(len(args)))
	}
	if patch.InvestigationStartedAt != nil {
		args = append(args, *patch.InvestigationStartedAt)
		sets = append(sets, "investigation_started_at = $"+strconv.Itoa(len(args)))
	}
	if patch.ResolvedAt != nil {
		args = append(args, *patch.ResolvedAt)
		sets = append(sets, "resolved_at = $"+strconv.Itoa(len(args)))
	}
	if patch.ResolutionSummary != nil {
		args = append(args, *patch.ResolutionSummary)
		sets = append(sets, "resolution_summary = $"+strconv.Itoa(len(args)))
	}

	args = append(args, id)
	idPos := len(args)
	args = append(args, tenantID)
	tenantPos := len(args)
	args = append(args, string(expect.Status))
	statusPos := len(args)

	query := "UPDATE incidents SET " + strings.Join(sets, ", ") +
		" WHERE id = $" + strconv.Itoa(idPos) +
		" AND tenant_id = $" + strconv.Itoa(tenantPos) +
		" AND status = $" + strconv.Itoa(statusPos)

	tag, err := s.pool.Exec(ctx, query, args...)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return false, fmt.Errorf("conditional update: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

// scanIncidentRow scans a single row into an incident.Incident.
// Returns (nil, nil) when no row is found.
func scanIncidentRow(row pgx.Row) (*incident.Incident, error) {
	var (
		inc      incident.Incident
		severity string
		status   string
		ackAt    *time.Time
		invAt    *time.Time
		resAt    *time.Time
	)

	err := row.Scan(
		&inc.ID, &inc.TenantID, &inc.Title, &inc.Description, &severity, &status, &inc.OwnerID,
		&inc.LinkedAlertID, &inc.ResolutionSummary, &inc.CreatedAt, &ackAt, &invAt,
		&resAt, &inc.SLAAcknowledgeBy, &inc.SLAInvestigateBy, &inc.SLAResolveBy,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("scan: %w", err)
	}

	inc.Severity = alert.Severity(severity)
	inc.Status = incident.Status(status)
	inc.AcknowledgedAt = ackAt
	inc.InvestigationStartedAt = invAt
	inc.ResolvedAt = resAt

	return &inc, nil
}
