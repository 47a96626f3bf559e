// Package scoring computes online scores and client interests, memoized
// through the key-value store.
package scoring

import (
	"context"
	stderrors "errors"
	"fmt"
	"math/rand"
	"strconv"
	"strings"
	"time"

	domain "github.com/fennr/scoring-api/internal/app/domain/scoring"
	"github.com/fennr/scoring-api/internal/app/metrics"
	"github.com/fennr/scoring-api/internal/app/storage"
	"github.com/fennr/scoring-api/internal/errors"
	"github.com/fennr/scoring-api/internal/logging"
)

// AdminScore is the fixed score returned to admin callers.
const AdminScore = 42.0

// scoreTTL bounds how long a computed score stays cached.
const scoreTTL = time.Hour

// interestsVocabulary is the fixed tag set interests are drawn from.
var interestsVocabulary = []string{
	"cars", "pets", "travel", "hi-tech", "sport", "music",
	"books", "tv", "cinema", "geek", "otus",
}

// Service derives scores and interests. A nil store disables caching for
// GetScore and makes GetInterests fail, which mirrors the store's role:
// optional optimization for scores, source of truth for interests.
type Service struct {
	store storage.KeyValue
	log   *logging.Logger
}

// New constructs a scoring service. Store may be nil.
func New(store storage.KeyValue, log *logging.Logger) *Service {
	if log == nil {
		log = logging.New("scoring", "info", "text")
	}
	return &Service{store: store, log: log}
}

// CacheKey builds the deterministic memoization key for a validated
// online_score request: colon-joined fields in fixed order, empty string
// for any absent field.
func CacheKey(req domain.OnlineScoreRequest) string {
	birthday := ""
	if req.Birthday != nil {
		birthday = req.Birthday.Format("20060102")
	}
	gender := ""
	if req.Gender != nil {
		gender = strconv.Itoa(*req.Gender)
	}
	return "uid:" + strings.Join([]string{
		req.Phone,
		req.Email,
		birthday,
		gender,
		req.FirstName,
		req.LastName,
	}, ":")
}

// GetScore returns the score for a validated request, reading through the
// cache when a store is attached. Cache failures never affect the result.
func (s *Service) GetScore(ctx context.Context, req domain.OnlineScoreRequest) float64 {
	key := CacheKey(req)

	if s.store != nil {
		if cached, ok := s.store.CacheGet(ctx, key); ok {
			if score, err := strconv.ParseFloat(cached, 64); err == nil {
				metrics.RecordCacheOp("get", "hit")
				return score
			}
			s.log.WithContext(ctx).Warnf("discarding malformed cached score for %s", key)
		}
		metrics.RecordCacheOp("get", "miss")
	}

	score := computeScore(req)

	if s.store != nil {
		if s.store.CacheSet(ctx, key, strconv.FormatFloat(score, 'g', -1, 64), scoreTTL) {
			metrics.RecordCacheOp("set", "stored")
		} else {
			metrics.RecordCacheOp("set", "dropped")
			s.log.WithContext(ctx).Warnf("score cache write dropped for %s", key)
		}
	}
	return score
}

func computeScore(req domain.OnlineScoreRequest) float64 {
	score := 0.0
	if req.Phone != "" {
		score += 1.5
	}
	if req.Email != "" {
		score += 1.5
	}
	if req.Birthday != nil && req.Gender != nil {
		score += 1.5
	}
	if req.FirstName != "" && req.LastName != "" {
		score += 0.5
	}
	return score
}

// GetInterests returns the interest tags for a client, generating and
// persisting a fresh pair on first access. The store is mandatory here and
// a failing lookup is fatal: unlike the score cache there is no offline
// fallback short of generating defaults.
func (s *Service) GetInterests(ctx context.Context, clientID int) ([]string, error) {
	if s.store == nil {
		return nil, fmt.Errorf("scoring: store is required for interests")
	}

	key := fmt.Sprintf("i:%d", clientID)
	stored, err := s.store.Get(ctx, key)
	switch {
	case err == nil && stored != "":
		return strings.Split(stored, ","), nil
	case err != nil && !stderrors.Is(err, storage.ErrNotFound):
		return nil, errors.Unavailable("interests lookup failed", err)
	}

	tags := sampleInterests(2)
	if err := s.store.Set(ctx, key, strings.Join(tags, ",")); err != nil {
		// Best effort; the generated tags still serve this request.
		s.log.WithContext(ctx).WithError(err).Warnf("persisting interests for client %d failed", clientID)
	}
	return tags, nil
}

func sampleInterests(n int) []string {
	tags := make([]string, 0, n)
	for _, i := range rand.Perm(len(interestsVocabulary))[:n] {
		tags = append(tags, interestsVocabulary[i])
	}
	return tags
}

// Vocabulary returns the fixed interest tag set.
func Vocabulary() []string {
	out := make([]string, len(interestsVocabulary))
	copy(out, interestsVocabulary)
	return out
}
