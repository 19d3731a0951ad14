package postgres

import (
	"context"
	"fmt"

	"github.com/labsim-hub/labsim-progression-engine/internal/domain/achievement"
	"github.com/labsim-hub/labsim-progression-engine/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// ACHIEVEMENT GRANTS / CERTIFICATES / CAREER PROFILES
// ══════════════════════════════════════════════════════════════════════════════

// AchievementRepository implements achievement.GrantRepository,
// achievement.CertificateRepository and achievement.ProfileRepository.
// Grants and certificates are idempotent: re-awarding an existing pair
// returns the stored row instead of failing, so the completion flow can
// retry safely.
type AchievementRepository struct {
	conn *Connection
}

// NewAchievementRepository creates an achievement repository.
func NewAchievementRepository(conn *Connection) *AchievementRepository {
	return &AchievementRepository{conn: conn}
}

// SaveGrant persists a grant. On a duplicate (user, achievement) pair the
// existing grant is returned unchanged.
func (r *AchievementRepository) SaveGrant(ctx context.Context, grant *achievement.Grant) (*achievement.Grant, error) {
	query := `
		INSERT INTO achievement_grants (id, user_id, achievement_id, granted_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (user_id, achievement_id) DO NOTHING
		RETURNING id, user_id, achievement_id, granted_at
	`

	var stored achievement.Grant
	err := r.conn.QueryRow(ctx, query,
		grant.ID,
		string(grant.UserID),
		grant.AchievementID,
		grant.GrantedAt,
	).Scan(&stored.ID, &stored.UserID, &stored.AchievementID, &stored.GrantedAt)
	if err == nil {
		return &stored, nil
	}
	if !IsNoRows(err) {
		return nil, fmt.Errorf("failed to save grant: %w", err)
	}

	// Conflict path: the pair already exists, fetch it.
	existing := `
		SELECT id, user_id, achievement_id, granted_at
		FROM achievement_grants
		WHERE user_id = $1 AND achievement_id = $2
	`
	err = r.conn.QueryRow(ctx, existing, string(grant.UserID), grant.AchievementID).
		Scan(&stored.ID, &stored.UserID, &stored.AchievementID, &stored.GrantedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to load existing grant: %w", err)
	}
	return &stored, nil
}

// FindGrants returns all grants for a user, newest first.
func (r *AchievementRepository) FindGrants(ctx context.Context, userID shared.UserID) ([]achievement.Grant, error) {
	query := `
		SELECT id, user_id, achievement_id, granted_at
		FROM achievement_grants
		WHERE user_id = $1
		ORDER BY granted_at DESC
	`

	rows, err := r.conn.Query(ctx, query, string(userID))
	if err != nil {
		return nil, fmt.Errorf("failed to find grants: %w", err)
	}
	defer rows.Close()

	var grants []achievement.Grant
	for rows.Next() {
		var g achievement.Grant
		if err := rows.Scan(&g.ID, &g.UserID, &g.AchievementID, &g.GrantedAt); err != nil {
			return nil, fmt.Errorf("failed to scan grant: %w", err)
		}
		grants = append(grants, g)
	}
	return grants, rows.Err()
}

// SaveCertificate persists a certificate. On a duplicate (user, workstation)
// pair the existing certificate is returned unchanged.
func (r *AchievementRepository) SaveCertificate(ctx context.Context, cert *achievement.Certificate) (*achievement.Certificate, error) {
	query := `
		INSERT INTO certificates (id, user_id, workstation_id, issued_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (user_id, workstation_id) DO NOTHING
		RETURNING id, user_id, workstation_id, issued_at
	`

	var stored achievement.Certificate
	err := r.conn.QueryRow(ctx, query,
		cert.ID,
		string(cert.UserID),
		string(cert.WorkstationID),
		cert.IssuedAt,
	).Scan(&stored.ID, &stored.UserID, &stored.WorkstationID, &stored.IssuedAt)
	if err == nil {
		return &stored, nil
	}
	if !IsNoRows(err) {
		return nil, fmt.Errorf("failed to save certificate: %w", err)
	}

	existing := `
		SELECT id, user_id, workstation_id, issued_at
		FROM certificates
		WHERE user_id = $1 AND workstation_id = $2
	`
	err = r.conn.QueryRow(ctx, existing, string(cert.UserID), string(cert.WorkstationID)).
		Scan(&stored.ID, &stored.UserID, &stored.WorkstationID, &stored.IssuedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to load existing certificate: %w", err)
	}
	return &stored, nil
}

// FindCertificates returns all certificates for a user, newest first.
func (r *AchievementRepository) FindCertificates(ctx context.Context, userID shared.UserID) ([]achievement.Certificate, error) {
	query := `
		SELECT id, user_id, workstation_id, issued_at
		FROM certificates
		WHERE user_id = $1
		ORDER BY issued_at DESC
	`

	rows, err := r.conn.Query(ctx, query, string(userID))
	if err != nil {
		return nil, fmt.Errorf("failed to find certificates: %w", err)
	}
	defer rows.Close()

	var certs []achievement.Certificate
	for rows.Next() {
		var c achievement.Certificate
		if err := rows.Scan(&c.ID, &c.UserID, &c.WorkstationID, &c.IssuedAt); err != nil {
			return nil, fmt.Errorf("failed to scan certificate: %w", err)
		}
		certs = append(certs, c)
	}
	return certs, rows.Err()
}

// FindProfile returns the career profile or shared.ErrNotFound.
func (r *AchievementRepository) FindProfile(ctx context.Context, userID shared.UserID) (*achievement.CareerProfile, error) {
	query := `
		SELECT user_id, level, total_xp
		FROM career_profiles
		WHERE user_id = $1
	`

	var p achievement.CareerProfile
	err := r.conn.QueryRow(ctx, query, string(userID)).Scan(&p.UserID, &p.Level, &p.TotalXP)
	if IsNoRows(err) {
		return nil, shared.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find profile: %w", err)
	}
	return &p, nil
}

// SaveProfile upserts the career profile.
func (r *AchievementRepository) SaveProfile(ctx context.Context, profile *achievement.CareerProfile) error {
	query := `
		INSERT INTO career_profiles (user_id, level, total_xp)
		VALUES ($1, $2, $3)
		ON CONFLICT (user_id) DO UPDATE SET
			level = EXCLUDED.level,
			total_xp = EXCLUDED.total_xp
	`

	_, err := r.conn.Exec(ctx, query, string(profile.UserID), profile.Level, profile.TotalXP)
	if err != nil {
		return fmt.Errorf("failed to save profile: %w", err)
	}
	return nil
}
