package storage

import (
	"context"
	"database/sql"
	"fmt"
)

const matchColumns = `user_id, age, location_region, openness, conscientiousness,
	extraversion, agreeableness, neuroticism, interests`

// MatchRepository reads matchmaking profiles.
type MatchRepository struct {
	db DB
}

// NewMatchRepository creates a new matchmaking repository.
func NewMatchRepository(db DB) *MatchRepository {
	return &MatchRepository{db: db}
}

// GetByID returns a profile by user id, or ErrNotFound.
func (r *MatchRepository) GetByID(ctx context.Context, userID string) (*MatchProfile, error) {
	profiles, err := r.query(ctx, `SELECT `+matchColumns+` FROM matchmaking WHERE user_id = $1`, userID)
	if err != nil {
		return nil, err
	}
	if len(profiles) == 0 {
		return nil, ErrNotFound
	}
	return &profiles[0], nil
}

// List returns up to limit profiles ordered by user id.
func (r *MatchRepository) List(ctx context.Context, limit int) ([]MatchProfile, error) {
	return r.query(ctx, `SELECT `+matchColumns+` FROM matchmaking ORDER BY user_id LIMIT $1`, limit)
}

func (r *MatchRepository) query(ctx context.Context, query string, args ...interface{}) ([]MatchProfile, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query matchmaking: %w", err)
	}
	defer rows.Close()

	var out []MatchProfile
	for rows.Next() {
		var (
			p                                 MatchProfile
			age                               sql.NullInt64
			region, interests                 sql.NullString
			open, consc, extra, agree, neurot sql.NullFloat64
		)
		if err := rows.Scan(&p.UserID, &age, &region, &open, &consc, &extra, &agree, &neurot, &interests); err != nil {
			return nil, fmt.Errorf("scan match profile: %w", err)
		}
		if age.Valid {
			n := int(age.Int64)
			p.Age = &n
		}
		p.LocationRegion = str(region)
		p.Openness = floatPtr(open)
		p.Conscientiousness = floatPtr(consc)
		p.Extraversion = floatPtr(extra)
		p.Agreeableness = floatPtr(agree)
		p.Neuroticism = floatPtr(neurot)
		p.Interests = str(interests)
		out = append(out, p)
	}
	return out, rows.Err()
}
