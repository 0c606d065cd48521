package store

import (
	"context"
	"encoding/hex"
	"fmt"
	"os"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/rawblock/authcore/internal/errs"
	"github.com/rawblock/authcore/pkg/models"
)

// Postgres is the durable EnrollmentRecord store, grounded on the teacher's
// PostgresStore: a pgxpool-backed struct with a schema loaded from an
// embedded-by-path schema.sql, transactional multi-row writes, and ON
// CONFLICT upserts.
type Postgres struct {
	pool *pgxpool.Pool
}

// ConnectPostgres opens a pool against connStr and verifies connectivity.
func ConnectPostgres(connStr string) (*Postgres, error) {
	pool, err := pgxpool.New(context.Background(), connStr)
	if err != nil {
		return nil, errs.Wrap(errs.Unavailable, err, "store: unable to connect to postgres")
	}
	if err := pool.Ping(context.Background()); err != nil {
		return nil, errs.Wrap(errs.Unavailable, err, "store: postgres ping failed")
	}
	return &Postgres{pool: pool}, nil
}

// Close releases the connection pool.
func (s *Postgres) Close() {
	if s.pool != nil {
		s.pool.Close()
	}
}

// InitSchema loads and executes schema.sql from path.
func (s *Postgres) InitSchema(path string) error {
	b, err := os.ReadFile(path)
	if err != nil {
		return errs.Wrap(errs.Internal, err, "store: failed to read schema file")
	}
	if _, err := s.pool.Exec(context.Background(), string(b)); err != nil {
		return errs.Wrap(errs.Internal, err, "store: failed to execute schema migrations")
	}
	return nil
}

// Save persists rec transactionally: one upsert into enrollments, then a
// replace-all of its factor_digests rows (spec.md §4.8 step 6).
func (s *Postgres) Save(ctx context.Context, rec models.EnrollmentRecord) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return errs.Wrap(errs.Unavailable, err, "store: begin transaction failed")
	}
	defer func() { _ = tx.Rollback(ctx) }()

	const upsertEnrollment = `
		INSERT INTO enrollments (user_id, alias, terms, privacy, processing, created_at, expires_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (user_id) DO UPDATE
		SET alias = EXCLUDED.alias, terms = EXCLUDED.terms, privacy = EXCLUDED.privacy,
		    processing = EXCLUDED.processing, expires_at = EXCLUDED.expires_at;
	`
	_, err = tx.Exec(ctx, upsertEnrollment,
		rec.UserID, rec.Alias, rec.Consent.Terms, rec.Consent.Privacy, rec.Consent.Processing,
		rec.CreatedAt, rec.ExpiresAt)
	if err != nil {
		return errs.Wrap(errs.Unavailable, err, "store: failed to upsert enrollment")
	}

	if _, err := tx.Exec(ctx, `DELETE FROM factor_digests WHERE user_id = $1`, rec.UserID); err != nil {
		return errs.Wrap(errs.Unavailable, err, "store: failed to clear prior digests")
	}

	const insertDigest = `INSERT INTO factor_digests (user_id, factor_kind, digest_hex) VALUES ($1, $2, $3)`
	for kind, digest := range rec.Digests {
		if _, err := tx.Exec(ctx, insertDigest, rec.UserID, kind.String(), hex.EncodeToString(digest[:])); err != nil {
			return errs.Wrap(errs.Unavailable, err, fmt.Sprintf("store: failed to insert digest for %s", kind))
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return errs.Wrap(errs.Unavailable, err, "store: commit failed")
	}
	return nil
}

// Load reconstructs an EnrollmentRecord from its enrollment row and digest
// rows. Returns a NotFound error if no such user exists.
func (s *Postgres) Load(ctx context.Context, userID string) (*models.EnrollmentRecord, error) {
	rec := &models.EnrollmentRecord{UserID: userID, Digests: make(map[models.FactorKind]models.FactorDigest)}

	row := s.pool.QueryRow(ctx, `
		SELECT alias, terms, privacy, processing, created_at, expires_at
		FROM enrollments WHERE user_id = $1`, userID)
	if err := row.Scan(&rec.Alias, &rec.Consent.Terms, &rec.Consent.Privacy, &rec.Consent.Processing,
		&rec.CreatedAt, &rec.ExpiresAt); err != nil {
		return nil, errs.Wrap(errs.NotFound, err, "store: enrollment not found")
	}

	rows, err := s.pool.Query(ctx, `SELECT factor_kind, digest_hex FROM factor_digests WHERE user_id = $1`, userID)
	if err != nil {
		return nil, errs.Wrap(errs.Unavailable, err, "store: failed to load digests")
	}
	defer rows.Close()

	for rows.Next() {
		var kindName, digestHex string
		if err := rows.Scan(&kindName, &digestHex); err != nil {
			return nil, errs.Wrap(errs.Unavailable, err, "store: failed to scan digest row")
		}
		kind, ok := models.ParseFactorKind(kindName)
		if !ok {
			continue
		}
		raw, err := hex.DecodeString(digestHex)
		if err != nil || len(raw) != models.DigestSize {
			continue
		}
		var digest models.FactorDigest
		copy(digest[:], raw)
		rec.Digests[kind] = digest
	}
	return rec, nil
}

// Delete removes rec's enrollment and digest rows. Idempotent: deleting an
// absent user is not an error (spec.md §4.8 "Delete ... idempotent").
func (s *Postgres) Delete(ctx context.Context, userID string) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return errs.Wrap(errs.Unavailable, err, "store: begin transaction failed")
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if _, err := tx.Exec(ctx, `DELETE FROM factor_digests WHERE user_id = $1`, userID); err != nil {
		return errs.Wrap(errs.Unavailable, err, "store: failed to delete digests")
	}
	if _, err := tx.Exec(ctx, `DELETE FROM enrollments WHERE user_id = $1`, userID); err != nil {
		return errs.Wrap(errs.Unavailable, err, "store: failed to delete enrollment")
	}
	if err := tx.Commit(ctx); err != nil {
		return errs.Wrap(errs.Unavailable, err, "store: commit failed")
	}
	return nil
}
