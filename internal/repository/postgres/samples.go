package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"slices"
	"time"

	squirrel "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"

	"github.com/chibuezedev/florin-server/internal/core/domain"
	"github.com/chibuezedev/florin-server/internal/core/port"
	"github.com/chibuezedev/florin-server/internal/repository"
)

var sampleColumns = []string{
	"id",
	"account_id",
	"email",
	"session_id",
	"logon",
	"typing",
	"pointer",
	"email_context",
	"touch",
	"device_fingerprint",
	"ip_address",
	"user_agent",
	"created_at",
	"anomaly_score",
	"risk_tier",
	"scored_at",
}

// SampleRepository implements port.SampleRepository. Signal groups are stored as JSONB.
type SampleRepository struct {
	exec    pgExecutor
	builder squirrel.StatementBuilderType
}

// NewSampleRepository wires a PostgreSQL-backed behavioral sample repository.
func NewSampleRepository(exec pgExecutor) *SampleRepository {
	return &SampleRepository{exec: exec, builder: newBuilder()}
}

// WithTx returns a repository instance operating within the supplied transaction.
func (r *SampleRepository) WithTx(tx pgx.Tx) *SampleRepository {
	if tx == nil {
		return r
	}
	return &SampleRepository{exec: tx, builder: r.builder}
}

// Create inserts an unscored sample.
func (r *SampleRepository) Create(ctx context.Context, sample domain.BehavioralSample) error {
	groups, err := marshalGroups(sample)
	if err != nil {
		return err
	}

	stmt, args, err := r.builder.Insert(samplesTable).
		Columns(sampleColumns[:13]...).
		Values(
			sample.ID,
			sample.AccountID,
			sample.Email,
			sample.SessionID,
			groups[0],
			groups[1],
			groups[2],
			groups[3],
			groups[4],
			sample.DeviceFingerprint,
			sample.IPAddress,
			sample.UserAgent,
			sample.CreatedAt,
		).
		ToSql()
	if err != nil {
		return fmt.Errorf("build insert sample sql: %w", err)
	}

	if _, err := r.exec.Exec(ctx, stmt, args...); err != nil {
		return fmt.Errorf("insert sample: %w", err)
	}
	return nil
}

// AttachAssessment writes the assessment only while scored_at is still NULL.
// A second attempt, or an unknown sample, returns repository.ErrConflict.
func (r *SampleRepository) AttachAssessment(ctx context.Context, sampleID string, assessment domain.RiskAssessment, scoredAt time.Time) error {
	stmt, args, err := r.builder.Update(samplesTable).
		Set("anomaly_score", assessment.AnomalyScore).
		Set("risk_tier", string(assessment.Tier)).
		Set("scored_at", scoredAt).
		Where(squirrel.Eq{"id": sampleID, "scored_at": nil}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build attach assessment sql: %w", err)
	}

	tag, err := r.exec.Exec(ctx, stmt, args...)
	if err != nil {
		return fmt.Errorf("attach assessment: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("attach assessment to %s: %w", sampleID, repository.ErrConflict)
	}
	return nil
}

// ListByAccount returns the newest samples of an account.
func (r *SampleRepository) ListByAccount(ctx context.Context, accountID string, limit int) ([]domain.BehavioralSample, error) {
	if limit <= 0 || limit > defaultListLimit {
		limit = defaultListLimit
	}

	stmt, args, err := r.builder.Select(sampleColumns...).
		From(samplesTable).
		Where(squirrel.Eq{"account_id": accountID}).
		OrderBy("created_at DESC").
		Limit(uint64(limit)).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build list samples sql: %w", err)
	}

	rows, err := r.exec.Query(ctx, stmt, args...)
	if err != nil {
		return nil, fmt.Errorf("query samples: %w", err)
	}
	defer rows.Close()

	samples := make([]domain.BehavioralSample, 0, limit)
	for rows.Next() {
		sample, err := scanSample(rows)
		if err != nil {
			return nil, err
		}
		samples = append(samples, sample)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate samples: %w", err)
	}
	return samples, nil
}

// ListRecent returns the newest samples of every account, joined with the owning account.
func (r *SampleRepository) ListRecent(ctx context.Context, limit int) ([]domain.OwnedSample, error) {
	if limit <= 0 || limit > defaultListLimit {
		limit = defaultListLimit
	}

	columns := make([]string, 0, len(sampleColumns)+2)
	for _, column := range sampleColumns {
		columns = append(columns, "s."+column)
	}
	columns = append(columns, "a.name", "a.email")

	stmt, args, err := r.builder.Select(columns...).
		From(samplesTable + " s").
		Join(accountsTable + " a ON a.id = s.account_id").
		OrderBy("s.created_at DESC").
		Limit(uint64(limit)).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build list recent samples sql: %w", err)
	}

	rows, err := r.exec.Query(ctx, stmt, args...)
	if err != nil {
		return nil, fmt.Errorf("query recent samples: %w", err)
	}
	defer rows.Close()

	samples := make([]domain.OwnedSample, 0, limit)
	for rows.Next() {
		var owned domain.OwnedSample
		sample, err := scanSample(rows, &owned.OwnerName, &owned.OwnerEmail)
		if err != nil {
			return nil, err
		}
		owned.BehavioralSample = sample
		samples = append(samples, owned)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate recent samples: %w", err)
	}
	return samples, nil
}

// AnomalyTimeline aggregates scored samples per hour and returns the latest
// buckets in ascending order. An empty accountID aggregates every account.
func (r *SampleRepository) AnomalyTimeline(ctx context.Context, accountID string, buckets int) ([]domain.TimelineBucket, error) {
	if buckets <= 0 {
		buckets = defaultBucketCount
	}

	where := squirrel.And{squirrel.NotEq{"scored_at": nil}}
	if accountID != "" {
		where = append(where, squirrel.Eq{"account_id": accountID})
	}

	stmt, args, err := r.builder.Select(
		"date_trunc('hour', created_at) AS hour",
		"AVG(anomaly_score)",
		"MAX(anomaly_score)",
		"COUNT(*)",
	).
		From(samplesTable).
		Where(where).
		GroupBy("hour").
		OrderBy("hour DESC").
		Limit(uint64(buckets)).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build timeline sql: %w", err)
	}

	rows, err := r.exec.Query(ctx, stmt, args...)
	if err != nil {
		return nil, fmt.Errorf("query timeline: %w", err)
	}
	defer rows.Close()

	timeline := make([]domain.TimelineBucket, 0, buckets)
	for rows.Next() {
		var (
			bucket domain.TimelineBucket
			count  int64
		)
		if err := rows.Scan(&bucket.Hour, &bucket.AvgScore, &bucket.MaxScore, &count); err != nil {
			return nil, fmt.Errorf("scan timeline bucket: %w", err)
		}
		bucket.Count = int(count)
		timeline = append(timeline, bucket)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate timeline: %w", err)
	}

	slices.Reverse(timeline)
	return timeline, nil
}

func marshalGroups(sample domain.BehavioralSample) ([5][]byte, error) {
	var out [5][]byte
	for i, group := range []any{sample.Logon, sample.Typing, sample.Pointer, sample.EmailContext, sample.Touch} {
		raw, err := json.Marshal(group)
		if err != nil {
			return out, fmt.Errorf("marshal sample signals: %w", err)
		}
		out[i] = raw
	}
	return out, nil
}

// scanSample decodes a row of sampleColumns; extra receives any trailing columns.
func scanSample(row pgx.Row, extra ...any) (domain.BehavioralSample, error) {
	var (
		sample                               domain.BehavioralSample
		logon, typing, pointer, email, touch []byte
		score                                *float64
		tier                                 *string
	)
	dest := []any{
		&sample.ID,
		&sample.AccountID,
		&sample.Email,
		&sample.SessionID,
		&logon,
		&typing,
		&pointer,
		&email,
		&touch,
		&sample.DeviceFingerprint,
		&sample.IPAddress,
		&sample.UserAgent,
		&sample.CreatedAt,
		&score,
		&tier,
		&sample.ScoredAt,
	}
	if err := row.Scan(append(dest, extra...)...); err != nil {
		return sample, fmt.Errorf("scan sample: %w", err)
	}

	targets := []struct {
		raw  []byte
		dest any
	}{
		{logon, &sample.Logon},
		{typing, &sample.Typing},
		{pointer, &sample.Pointer},
		{email, &sample.EmailContext},
		{touch, &sample.Touch},
	}
	for _, target := range targets {
		if len(target.raw) == 0 {
			continue
		}
		if err := json.Unmarshal(target.raw, target.dest); err != nil {
			return sample, fmt.Errorf("decode sample signals: %w", err)
		}
	}

	if score != nil && tier != nil {
		sample.Assessment = &domain.RiskAssessment{AnomalyScore: *score, Tier: domain.RiskTier(*tier)}
	}
	return sample, nil
}

var _ port.SampleRepository = (*SampleRepository)(nil)
