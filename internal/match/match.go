// Package match scores how compatible two matchmaking profiles are from
// their personality traits and shared interests.
package match

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/cupid-chocolate/giftlab/internal/observability"
	"github.com/cupid-chocolate/giftlab/internal/storage"
)

// neutralTrait stands in for a missing trait score.
const neutralTrait = 0.5

// Result is the compatibility of two profiles.
type Result struct {
	UserA storage.MatchProfile `json:"userA"`
	UserB storage.MatchProfile `json:"userB"`
	// Score is 0 to 100, one decimal place.
	Score   float64  `json:"score"`
	Overlap []string `json:"overlap"`
}

// Score compares the five traits of a and b. Each trait difference counts
// equally; identical profiles score 100 and the score never drops below 0.
// Overlap lists the shared interests, sorted.
func Score(a, b storage.MatchProfile) Result {
	ta, tb := traits(a), traits(b)
	var diff float64
	for i := range ta {
		diff += math.Abs(ta[i] - tb[i])
	}
	score := math.Max(0, 1-diff/float64(len(ta)))

	return Result{
		UserA:   a,
		UserB:   b,
		Score:   math.Round(score*1000) / 10,
		Overlap: overlap(a.Interests, b.Interests),
	}
}

func traits(p storage.MatchProfile) [5]float64 {
	var out [5]float64
	for i, v := range []*float64{p.Openness, p.Conscientiousness, p.Extraversion, p.Agreeableness, p.Neuroticism} {
		out[i] = neutralTrait
		if v != nil {
			out[i] = *v
		}
	}
	return out
}

func interestSet(s string) map[string]bool {
	set := make(map[string]bool)
	for _, item := range strings.Split(s, ",") {
		if item = strings.TrimSpace(item); item != "" {
			set[item] = true
		}
	}
	return set
}

func overlap(a, b string) []string {
	setB := interestSet(b)
	shared := []string{}
	for item := range interestSet(a) {
		if setB[item] {
			shared = append(shared, item)
		}
	}
	sort.Strings(shared)
	return shared
}

// ProfileStore reads matchmaking profiles.
type ProfileStore interface {
	GetByID(ctx context.Context, userID string) (*storage.MatchProfile, error)
	List(ctx context.Context, limit int) ([]storage.MatchProfile, error)
}

// Service looks up profiles and scores them.
type Service struct {
	store  ProfileStore
	logger *observability.Logger
}

// NewService creates a matchmaking service.
func NewService(store ProfileStore, logger *observability.Logger) *Service {
	if logger == nil {
		logger = observability.NopLogger()
	}
	return &Service{store: store, logger: logger.WithComponent("match")}
}

// Compatibility scores users a and b. It returns nil when either user is
// unknown.
func (s *Service) Compatibility(ctx context.Context, userA, userB string) (*Result, error) {
	a, err := s.profile(ctx, userA)
	if err != nil || a == nil {
		return nil, err
	}
	b, err := s.profile(ctx, userB)
	if err != nil || b == nil {
		return nil, err
	}

	res := Score(*a, *b)
	s.logger.WithContext(ctx).Debug().
		Str("user_a", userA).
		Str("user_b", userB).
		Float64("score", res.Score).
		Msg("Compatibility scored")
	return &res, nil
}

func (s *Service) profile(ctx context.Context, userID string) (*storage.MatchProfile, error) {
	p, err := s.store.GetByID(ctx, userID)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("compatibility: %w", err)
	}
	return p, nil
}

// Profiles lists up to limit profiles by user id.
func (s *Service) Profiles(ctx context.Context, limit int) ([]storage.MatchProfile, error) {
	profiles, err := s.store.List(ctx, limit)
	if err != nil {
		return nil, fmt.Errorf("list profiles: %w", err)
	}
	return profiles, nil
}
