package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/spanishfactoria/textocorrector/internal/correction"
	errx "github.com/spanishfactoria/textocorrector/internal/core/error"
	"github.com/spanishfactoria/textocorrector/internal/model"
	logx "github.com/spanishfactoria/textocorrector/pkg/logger"
)

const (
	correctionsKept = 50
	metricsKept     = 1000
)

// statKeyByCategory maps display category names to the stat keys kept in
// the student profile.
var statKeyByCategory = map[string]string{
	correction.CategoryGrammar:     "gramatica",
	correction.CategoryLexicon:     "lexico",
	correction.CategoryPunctuation: "puntuacion",
	correction.CategoryStructure:   "estructura_textual",
}

// ThreadRecord is the per-owner pointer to the remote conversation thread.
type ThreadRecord struct {
	ThreadID     string    `json:"thread_id"`
	CreatedAt    time.Time `json:"created_at"`
	MessageCount int       `json:"message_count"`
}

// RedisStore persists thread pointers, student profiles, correction history
// and usage metrics.
type RedisStore struct {
	rdb redis.Cmdable
	ttl time.Duration
}

func NewRedisStore(rdb redis.Cmdable, ttl time.Duration) *RedisStore {
	return &RedisStore{rdb: rdb, ttl: ttl}
}

func (s *RedisStore) threadKey(ownerID string) string {
	return fmt.Sprintf("owner:%s:thread", ownerID)
}

func (s *RedisStore) profileKey(ownerID string) string {
	return fmt.Sprintf("owner:%s:profile", ownerID)
}

func (s *RedisStore) correctionsKey(ownerID string) string {
	return fmt.Sprintf("owner:%s:corrections", ownerID)
}

func (s *RedisStore) metricsKey() string {
	return "metrics:usage"
}

// ThreadForOwner loads the owner's thread pointer. A missing pointer is not
// an error, it returns nil.
func (s *RedisStore) ThreadForOwner(ctx context.Context, ownerID string) (*ThreadRecord, error) {
	raw, err := s.rdb.Get(ctx, s.threadKey(ownerID)).Result()
	if err != nil {
		if err == redis.Nil {
			return nil, nil
		}
		logx.Error().Err(err).Str("ownerID", ownerID).Msg("failed to load thread record")
		return nil, errx.WrapRedis(err)
	}
	var record ThreadRecord
	if err := json.Unmarshal([]byte(raw), &record); err != nil {
		return nil, fmt.Errorf("unmarshal thread record: %w", err)
	}
	return &record, nil
}

func (s *RedisStore) SaveThreadForOwner(ctx context.Context, ownerID string, record ThreadRecord) error {
	b, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("marshal thread record: %w", err)
	}
	if err := s.rdb.Set(ctx, s.threadKey(ownerID), b, s.ttl).Err(); err != nil {
		logx.Error().Err(err).Str("ownerID", ownerID).Msg("failed to save thread record")
		return errx.WrapRedis(err)
	}
	return nil
}

func (s *RedisStore) ClearThreadForOwner(ctx context.Context, ownerID string) error {
	if err := s.rdb.Del(ctx, s.threadKey(ownerID)).Err(); err != nil {
		logx.Error().Err(err).Str("ownerID", ownerID).Msg("failed to clear thread record")
		return errx.WrapRedis(err)
	}
	return nil
}

// OwnerProfile loads the student profile. A missing profile yields a
// not-found error so callers can choose their own fallback.
func (s *RedisStore) OwnerProfile(ctx context.Context, ownerID string) (model.StudentProfile, error) {
	raw, err := s.rdb.Get(ctx, s.profileKey(ownerID)).Result()
	if err != nil {
		if err != redis.Nil {
			logx.Error().Err(err).Str("ownerID", ownerID).Msg("failed to load profile")
		}
		return model.StudentProfile{}, errx.WrapRedis(err)
	}
	var profile model.StudentProfile
	if err := json.Unmarshal([]byte(raw), &profile); err != nil {
		return model.StudentProfile{}, fmt.Errorf("unmarshal profile: %w", err)
	}
	if profile.ErrorStats == nil {
		profile.ErrorStats = map[string]int{}
	}
	return profile, nil
}

func (s *RedisStore) SaveOwnerProfile(ctx context.Context, ownerID string, profile model.StudentProfile) error {
	b, err := json.Marshal(profile)
	if err != nil {
		return fmt.Errorf("marshal profile: %w", err)
	}
	if err := s.rdb.Set(ctx, s.profileKey(ownerID), b, 0).Err(); err != nil {
		logx.Error().Err(err).Str("ownerID", ownerID).Msg("failed to save profile")
		return errx.WrapRedis(err)
	}
	return nil
}

// correctionEntry is the compact history record kept per correction.
type correctionEntry struct {
	Timestamp     int64          `json:"timestamp"`
	OriginalText  string         `json:"texto_original"`
	CorrectedText string         `json:"texto_corregido"`
	ErrorCounts   map[string]int `json:"errores_por_tipo"`
}

// SaveCorrection appends the correction to the owner's history and folds its
// error counts into the profile statistics.
func (s *RedisStore) SaveCorrection(ctx context.Context, ownerID string, result *correction.Result) error {
	counts := make(map[string]int, len(statKeyByCategory))
	for category, items := range result.Errors {
		if key, ok := statKeyByCategory[category]; ok {
			counts[key] = len(items)
		}
	}

	entry := correctionEntry{
		Timestamp:     time.Now().Unix(),
		OriginalText:  result.OriginalText,
		CorrectedText: result.CorrectedText,
		ErrorCounts:   counts,
	}
	b, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("marshal correction entry: %w", err)
	}

	key := s.correctionsKey(ownerID)
	if err := s.rdb.LPush(ctx, key, b).Err(); err != nil {
		logx.Error().Err(err).Str("ownerID", ownerID).Msg("failed to push correction entry")
		return errx.WrapRedis(err)
	}
	if err := s.rdb.LTrim(ctx, key, 0, correctionsKept-1).Err(); err != nil {
		logx.Warn().Err(err).Str("key", key).Msg("failed to trim correction history")
	}

	return s.foldIntoProfile(ctx, ownerID, counts)
}

func (s *RedisStore) foldIntoProfile(ctx context.Context, ownerID string, counts map[string]int) error {
	profile, err := s.OwnerProfile(ctx, ownerID)
	if err != nil {
		if !errx.IsNotFound(err) {
			return err
		}
		profile = model.DefaultProfile("")
		profile.UserID = ownerID
	}
	for key, count := range counts {
		profile.ErrorStats[key] += count
	}
	profile.Corrections++
	return s.SaveOwnerProfile(ctx, ownerID, profile)
}

// CorrectionHistory returns up to limit recent corrections, newest first.
func (s *RedisStore) CorrectionHistory(ctx context.Context, ownerID string, limit int) ([]map[string]any, error) {
	if limit <= 0 || limit > correctionsKept {
		limit = correctionsKept
	}
	rows, err := s.rdb.LRange(ctx, s.correctionsKey(ownerID), 0, int64(limit-1)).Result()
	if err != nil {
		if err == redis.Nil {
			return nil, nil
		}
		return nil, errx.WrapRedis(err)
	}
	entries := make([]map[string]any, 0, len(rows))
	for i, row := range rows {
		var entry map[string]any
		if err := json.Unmarshal([]byte(row), &entry); err != nil {
			return nil, fmt.Errorf("unmarshal correction entry at index %d: %w", i, err)
		}
		entries = append(entries, entry)
	}
	return entries, nil
}

// RecordMetric appends one usage metric, keeping a bounded window.
func (s *RedisStore) RecordMetric(ctx context.Context, metric model.UsageMetric) error {
	b, err := json.Marshal(metric)
	if err != nil {
		return fmt.Errorf("marshal metric: %w", err)
	}
	key := s.metricsKey()
	if err := s.rdb.LPush(ctx, key, b).Err(); err != nil {
		logx.Error().Err(err).Msg("failed to record metric")
		return errx.WrapRedis(err)
	}
	if err := s.rdb.LTrim(ctx, key, 0, metricsKept-1).Err(); err != nil {
		logx.Warn().Err(err).Msg("failed to trim metrics window")
	}
	return nil
}
