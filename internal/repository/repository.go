// Package repository provides data persistence implementations.
package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/campusguard/argus/internal/domain"
)

var (
	ErrNotFound     = domain.ErrNotFound
	ErrInvalidInput = domain.ErrInvalidInput
)

// SQLRepository implements domain.Store using database/sql.
// Works with both SQLite and PostgreSQL drivers.
type SQLRepository struct {
	db      *sql.DB
	driver  string
	timeout time.Duration
}

// New creates a new repository based on configuration.
func New(cfg domain.RepositoryConfig) (*SQLRepository, error) {
	var db *sql.DB
	var err error

	switch cfg.Driver {
	case "sqlite":
		db, err = openSQLite(cfg)
	case "postgres":
		db, err = openPostgres(cfg)
	default:
		return nil, fmt.Errorf("unsupported driver: %s", cfg.Driver)
	}

	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Configure connection pool
	if cfg.MaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		db.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	if cfg.ConnMaxLifetime > 0 {
		db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	}

	repo := &SQLRepository{
		db:      db,
		driver:  cfg.Driver,
		timeout: cfg.QueryTimeout,
	}

	// Run migrations
	if err := repo.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return repo, nil
}

func (r *SQLRepository) migrate() error {
	for _, schema := range AllSchemas(r.driver) {
		if _, err := r.db.Exec(schema); err != nil {
			return err
		}
	}
	return nil
}

const profileColumns = `entity_id, name, role, department,
	COALESCE(card_id, ''), COALESCE(device_hash, ''), COALESCE(face_id, ''),
	COALESCE(student_id, ''), COALESCE(email, '')`

// GetProfile retrieves a profile by entity ID.
func (r *SQLRepository) GetProfile(ctx context.Context, entityID string) (*domain.Profile, error) {
	ctx, cancel := r.bound(ctx)
	defer cancel()

	query := `SELECT ` + profileColumns + ` FROM profiles WHERE entity_id = ?`

	p, err := scanProfile(r.db.QueryRowContext(ctx, r.rebind(query), entityID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, storeErr("get profile", err)
	}
	return p, nil
}

// ListProfiles returns a page of profiles ordered by entity ID.
func (r *SQLRepository) ListProfiles(ctx context.Context, limit, offset int) ([]*domain.Profile, error) {
	if limit <= 0 {
		limit = 100
	}
	if offset < 0 {
		offset = 0
	}

	ctx, cancel := r.bound(ctx)
	defer cancel()

	query := `SELECT ` + profileColumns + ` FROM profiles ORDER BY entity_id LIMIT ? OFFSET ?`
	return r.queryProfiles(ctx, "list profiles", query, limit, offset)
}

// AllProfiles returns every profile ordered by entity ID.
func (r *SQLRepository) AllProfiles(ctx context.Context) ([]*domain.Profile, error) {
	ctx, cancel := r.bound(ctx)
	defer cancel()

	query := `SELECT ` + profileColumns + ` FROM profiles ORDER BY entity_id`
	return r.queryProfiles(ctx, "all profiles", query)
}

// SearchProfiles performs a case-insensitive substring match on one column.
func (r *SQLRepository) SearchProfiles(ctx context.Context, field domain.SearchField, pattern string, limit int) ([]*domain.Profile, error) {
	if !domain.ValidSearchField(field) {
		return nil, fmt.Errorf("%w: cannot search on %q", ErrInvalidInput, field)
	}
	if limit <= 0 {
		limit = 50
	}

	ctx, cancel := r.bound(ctx)
	defer cancel()

	query := fmt.Sprintf(`SELECT %s FROM profiles
		WHERE LOWER(COALESCE(%s, '')) LIKE ?
		ORDER BY entity_id LIMIT ?`, profileColumns, field)

	like := "%" + strings.ToLower(strings.TrimSpace(pattern)) + "%"
	return r.queryProfiles(ctx, "search profiles", query, like, limit)
}

// FindProfileBy returns the first profile whose identifier equals value.
func (r *SQLRepository) FindProfileBy(ctx context.Context, field domain.IdentifierField, value string) (*domain.Profile, error) {
	switch field {
	case domain.FieldCardID, domain.FieldDeviceHash, domain.FieldFaceID, domain.FieldStudentID, domain.FieldEmail:
	default:
		return nil, fmt.Errorf("%w: unknown identifier %q", ErrInvalidInput, field)
	}

	ctx, cancel := r.bound(ctx)
	defer cancel()

	query := fmt.Sprintf(`SELECT %s FROM profiles WHERE %s = ? ORDER BY entity_id LIMIT 1`, profileColumns, field)

	p, err := scanProfile(r.db.QueryRowContext(ctx, r.rebind(query), value))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, storeErr("find profile", err)
	}
	return p, nil
}

// SaveProfile inserts or replaces a profile.
func (r *SQLRepository) SaveProfile(ctx context.Context, p *domain.Profile) error {
	if p == nil || p.EntityID == "" {
		return fmt.Errorf("%w: entity_id is required", ErrInvalidInput)
	}

	ctx, cancel := r.bound(ctx)
	defer cancel()

	query := `
		INSERT INTO profiles (
			entity_id, name, role, department, card_id, device_hash, face_id, student_id, email
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(entity_id) DO UPDATE SET
			name = excluded.name,
			role = excluded.role,
			department = excluded.department,
			card_id = excluded.card_id,
			device_hash = excluded.device_hash,
			face_id = excluded.face_id,
			student_id = excluded.student_id,
			email = excluded.email
	`

	_, err := r.db.ExecContext(ctx, r.rebind(query),
		p.EntityID, p.Name, p.Role, p.Department,
		nullable(p.CardID), nullable(p.DeviceHash), nullable(p.FaceID),
		nullable(p.StudentID), nullable(p.Email),
	)
	if err != nil {
		return storeErr("save profile", err)
	}
	return nil
}

// ActivityFor returns an entity's records from one source in insertion order.
// A zero since returns the full history.
func (r *SQLRepository) ActivityFor(ctx context.Context, source domain.Source, entityID string, since time.Time) ([]*domain.ActivityRecord, error) {
	st, err := lookupSource(source)
	if err != nil {
		return nil, err
	}

	ctx, cancel := r.bound(ctx)
	defer cancel()

	query := fmt.Sprintf(`SELECT %s FROM %s WHERE %s = ?`, st.selectColumns(), st.table, entityExpr)
	args := []any{entityID}
	if !since.IsZero() {
		query += fmt.Sprintf(" AND %s >= ?", st.tsCol)
		args = append(args, since.UTC())
	}
	query += " ORDER BY seq"

	return r.queryActivity(ctx, source, query, args...)
}

// ActivityByIdentifier returns the most recent records observed with an identifier.
func (r *SQLRepository) ActivityByIdentifier(ctx context.Context, source domain.Source, identifier string, limit int) ([]*domain.ActivityRecord, error) {
	st, err := lookupSource(source)
	if err != nil {
		return nil, err
	}
	if st.identCol == "" {
		return nil, fmt.Errorf("%w: source %q carries no identifier", ErrInvalidInput, source)
	}
	if limit <= 0 {
		limit = 5
	}

	ctx, cancel := r.bound(ctx)
	defer cancel()

	query := fmt.Sprintf(`SELECT %s FROM %s WHERE %s = ? ORDER BY %s DESC, seq LIMIT ?`,
		st.selectColumns(), st.table, st.identCol, st.tsCol)

	return r.queryActivity(ctx, source, query, identifier, limit)
}

// CountActivity counts an entity's records from one source since a point in time.
func (r *SQLRepository) CountActivity(ctx context.Context, source domain.Source, entityID string, since time.Time) (int64, error) {
	st, err := lookupSource(source)
	if err != nil {
		return 0, err
	}

	ctx, cancel := r.bound(ctx)
	defer cancel()

	query := fmt.Sprintf(`SELECT COUNT(*) FROM %s WHERE %s = ? AND %s >= ?`, st.table, entityExpr, st.tsCol)

	var count int64
	if err := r.db.QueryRowContext(ctx, r.rebind(query), entityID, since.UTC()).Scan(&count); err != nil {
		return 0, storeErr("count activity", err)
	}
	return count, nil
}

// LastSeenByEntity returns, for each listed entity with activity in the window,
// its most recent timestamp in one source. It issues a single set-membership query.
func (r *SQLRepository) LastSeenByEntity(ctx context.Context, source domain.Source, entityIDs []string, since time.Time) (map[string]time.Time, error) {
	st, err := lookupSource(source)
	if err != nil {
		return nil, err
	}

	out := make(map[string]time.Time)
	if len(entityIDs) == 0 {
		return out, nil
	}

	ctx, cancel := r.bound(ctx)
	defer cancel()

	placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(entityIDs)), ", ")
	query := fmt.Sprintf(`SELECT %s, %s FROM %s WHERE %s IN (%s) AND %s >= ?`,
		entityExpr, st.tsCol, st.table, entityExpr, placeholders, st.tsCol)

	args := make([]any, 0, len(entityIDs)+1)
	for _, id := range entityIDs {
		args = append(args, id)
	}
	args = append(args, since.UTC())

	rows, err := r.db.QueryContext(ctx, r.rebind(query), args...)
	if err != nil {
		return nil, storeErr("last seen", err)
	}
	defer rows.Close()

	for rows.Next() {
		var id string
		var ts time.Time
		if err := rows.Scan(&id, &ts); err != nil {
			return nil, storeErr("last seen", err)
		}
		if prev, ok := out[id]; !ok || ts.After(prev) {
			out[id] = ts
		}
	}
	if err := rows.Err(); err != nil {
		return nil, storeErr("last seen", err)
	}
	return out, nil
}

// SaveActivity appends an activity record to its source table.
func (r *SQLRepository) SaveActivity(ctx context.Context, rec *domain.ActivityRecord) error {
	if rec == nil || rec.EntityID == "" {
		return fmt.Errorf("%w: entity_id is required", ErrInvalidInput)
	}
	st, err := lookupSource(rec.Source)
	if err != nil {
		return err
	}

	ctx, cancel := r.bound(ctx)
	defer cancel()

	cols := []string{"entity_id", st.locationCol, st.tsCol, "raw_record_json"}
	args := []any{rec.EntityID, rec.Location, rec.Timestamp.UTC(), encodeRaw(rec.Raw)}
	if st.identCol != "" {
		cols = append(cols, st.identCol)
		args = append(args, nullable(rec.Identifier))
	}
	if st.textCol != "" {
		cols = append(cols, st.textCol)
		args = append(args, rec.Text)
	}

	placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(cols)), ", ")
	query := fmt.Sprintf(`INSERT INTO %s (%s) VALUES (%s)`, st.table, strings.Join(cols, ", "), placeholders)

	if _, err := r.db.ExecContext(ctx, r.rebind(query), args...); err != nil {
		return storeErr("save activity", err)
	}
	return nil
}

// Ping checks database connectivity.
func (r *SQLRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

// Close closes the database connection.
func (r *SQLRepository) Close() error {
	return r.db.Close()
}

func (r *SQLRepository) queryProfiles(ctx context.Context, op, query string, args ...any) ([]*domain.Profile, error) {
	rows, err := r.db.QueryContext(ctx, r.rebind(query), args...)
	if err != nil {
		return nil, storeErr(op, err)
	}
	defer rows.Close()

	var profiles []*domain.Profile
	for rows.Next() {
		p, err := scanProfile(rows)
		if err != nil {
			return nil, storeErr(op, err)
		}
		profiles = append(profiles, p)
	}
	if err := rows.Err(); err != nil {
		return nil, storeErr(op, err)
	}
	return profiles, nil
}

func (r *SQLRepository) queryActivity(ctx context.Context, source domain.Source, query string, args ...any) ([]*domain.ActivityRecord, error) {
	rows, err := r.db.QueryContext(ctx, r.rebind(query), args...)
	if err != nil {
		return nil, storeErr("query "+string(source), err)
	}
	defer rows.Close()

	var records []*domain.ActivityRecord
	for rows.Next() {
		rec := &domain.ActivityRecord{Source: source}
		var raw string
		if err := rows.Scan(&rec.Seq, &rec.EntityID, &rec.Location, &rec.Identifier, &rec.Text, &rec.Timestamp, &raw); err != nil {
			return nil, storeErr("scan "+string(source), err)
		}
		if raw != "" {
			json.Unmarshal([]byte(raw), &rec.Raw)
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, storeErr("query "+string(source), err)
	}
	return records, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanProfile(row rowScanner) (*domain.Profile, error) {
	var p domain.Profile
	if err := row.Scan(
		&p.EntityID, &p.Name, &p.Role, &p.Department,
		&p.CardID, &p.DeviceHash, &p.FaceID, &p.StudentID, &p.Email,
	); err != nil {
		return nil, err
	}
	return &p, nil
}

// bound applies the configured per-call timeout.
func (r *SQLRepository) bound(ctx context.Context) (context.Context, context.CancelFunc) {
	if r.timeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, r.timeout)
}

func storeErr(op string, err error) error {
	return fmt.Errorf("%s: %w: %w", op, domain.ErrStoreUnavailable, err)
}

func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func encodeRaw(raw map[string]any) any {
	if len(raw) == 0 {
		return nil
	}
	data, err := json.Marshal(raw)
	if err != nil {
		return nil
	}
	return string(data)
}

// rebind converts ? placeholders to $1, $2, etc. for PostgreSQL.
func (r *SQLRepository) rebind(query string) string {
	if r.driver != "postgres" {
		return query
	}

	var b strings.Builder
	n := 1
	for i := 0; i < len(query); i++ {
		if query[i] == '?' {
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			n++
		} else {
			b.WriteByte(query[i])
		}
	}
	return b.String()
}
