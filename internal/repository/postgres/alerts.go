package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	squirrel "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"

	"github.com/chibuezedev/florin-server/internal/core/domain"
	"github.com/chibuezedev/florin-server/internal/core/port"
	"github.com/chibuezedev/florin-server/internal/repository"
)

var alertColumns = []string{
	"id",
	"account_id",
	"account_name",
	"email",
	"type",
	"severity",
	"description",
	"anomaly_score",
	"details",
	"sample_id",
	"resolved",
	"resolved_at",
	"resolved_by",
	"notes",
	"created_at",
}

// AlertRepository implements port.AlertRepository using PostgreSQL.
type AlertRepository struct {
	exec    pgExecutor
	builder squirrel.StatementBuilderType
}

// NewAlertRepository wires a PostgreSQL-backed alert repository.
func NewAlertRepository(exec pgExecutor) *AlertRepository {
	return &AlertRepository{exec: exec, builder: newBuilder()}
}

// Create inserts a new, unresolved alert.
func (r *AlertRepository) Create(ctx context.Context, alert domain.Alert) error {
	details, err := json.Marshal(alert.Details)
	if err != nil {
		return fmt.Errorf("marshal alert details: %w", err)
	}

	stmt, args, err := r.builder.Insert(alertsTable).
		Columns(
			"id",
			"account_id",
			"account_name",
			"email",
			"type",
			"severity",
			"description",
			"anomaly_score",
			"details",
			"sample_id",
			"created_at",
		).
		Values(
			alert.ID,
			alert.AccountID,
			alert.AccountName,
			alert.Email,
			string(alert.Type),
			string(alert.Severity),
			alert.Description,
			alert.AnomalyScore,
			details,
			alert.SampleID,
			alert.CreatedAt,
		).
		ToSql()
	if err != nil {
		return fmt.Errorf("build insert alert sql: %w", err)
	}

	if _, err := r.exec.Exec(ctx, stmt, args...); err != nil {
		return fmt.Errorf("insert alert: %w", err)
	}
	return nil
}

// List returns alerts matching filter, newest first.
func (r *AlertRepository) List(ctx context.Context, filter domain.AlertFilter) ([]domain.Alert, error) {
	limit := filter.Limit
	if limit <= 0 || limit > defaultListLimit {
		limit = defaultListLimit
	}

	query := r.builder.Select(alertColumns...).From(alertsTable)
	switch filter.Status {
	case domain.AlertStatusAll:
	case domain.AlertStatusResolved:
		query = query.Where(squirrel.Eq{"resolved": true})
	default:
		query = query.Where(squirrel.Eq{"resolved": false})
	}
	if filter.AccountID != "" {
		query = query.Where(squirrel.Eq{"account_id": filter.AccountID})
	}

	stmt, args, err := query.OrderBy("created_at DESC").Limit(uint64(limit)).ToSql()
	if err != nil {
		return nil, fmt.Errorf("build list alerts sql: %w", err)
	}

	rows, err := r.exec.Query(ctx, stmt, args...)
	if err != nil {
		return nil, fmt.Errorf("query alerts: %w", err)
	}
	defer rows.Close()

	alerts := make([]domain.Alert, 0)
	for rows.Next() {
		alert, err := scanAlert(rows)
		if err != nil {
			return nil, err
		}
		alerts = append(alerts, alert)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate alerts: %w", err)
	}
	return alerts, nil
}

// Resolve marks an alert resolved and returns the updated row.
func (r *AlertRepository) Resolve(ctx context.Context, alertID, resolverID string, notes *string, at time.Time) (*domain.Alert, error) {
	stmt, args, err := r.builder.Update(alertsTable).
		Set("resolved", true).
		Set("resolved_at", at).
		Set("resolved_by", resolverID).
		Set("notes", notes).
		Where(squirrel.Eq{"id": alertID}).
		Suffix("RETURNING " + strings.Join(alertColumns, ", ")).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build resolve alert sql: %w", err)
	}

	alert, err := scanAlert(r.exec.QueryRow(ctx, stmt, args...))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) || pgErrorCode(err) == invalidTextFormat {
			return nil, repository.ErrNotFound
		}
		return nil, err
	}
	return &alert, nil
}

func scanAlert(row pgx.Row) (domain.Alert, error) {
	var (
		alert    domain.Alert
		kind     string
		severity string
		details  []byte
	)
	if err := row.Scan(
		&alert.ID,
		&alert.AccountID,
		&alert.AccountName,
		&alert.Email,
		&kind,
		&severity,
		&alert.Description,
		&alert.AnomalyScore,
		&details,
		&alert.SampleID,
		&alert.Resolved,
		&alert.ResolvedAt,
		&alert.ResolvedBy,
		&alert.Notes,
		&alert.CreatedAt,
	); err != nil {
		return alert, fmt.Errorf("scan alert: %w", err)
	}

	alert.Type = domain.AlertType(kind)
	alert.Severity = domain.RiskTier(severity)
	if len(details) > 0 {
		if err := json.Unmarshal(details, &alert.Details); err != nil {
			return alert, fmt.Errorf("decode alert details: %w", err)
		}
	}
	return alert, nil
}

var _ port.AlertRepository = (*AlertRepository)(nil)
