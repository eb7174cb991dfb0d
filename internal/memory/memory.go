package memory

import (
	"context"
	"fmt"
	"log"
	"math"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/caretrace/caretrace/internal/affect"
	"github.com/caretrace/caretrace/internal/store"
)

// Retention bounds in days. Low-intensity memories live about a week,
// high-intensity ones about a quarter.
const (
	MinRetentionDays = 7.0
	MaxRetentionDays = 90.0
)

// RetentionDays computes the retention TTL in days from affect intensity:
// 7 + (90-7) * i^1.5, monotonically non-decreasing in i and bounded [7,90].
func RetentionDays(intensity float64) float64 {
	if intensity < 0 {
		intensity = 0
	}
	if intensity > 1 {
		intensity = 1
	}
	return MinRetentionDays + (MaxRetentionDays-MinRetentionDays)*math.Pow(intensity, 1.5)
}

// ErrUnavailable is returned when neither the embedding service nor the
// fallback can serve a request. Callers surface it as "temporarily
// unavailable", never as a stack trace.
var ErrUnavailable = fmt.Errorf("memory store temporarily unavailable")

// Service owns the memory write and query paths.
type Service struct {
	db       *store.DB
	embedder Embedder
	fallback Embedder
	topK     int
}

// NewService returns a memory Service. fallback may be nil; topK <= 0
// defaults to 5.
func NewService(db *store.DB, embedder, fallback Embedder, topK int) *Service {
	if topK <= 0 {
		topK = 5
	}
	return &Service{db: db, embedder: embedder, fallback: fallback, topK: topK}
}

// embed runs the primary embedder and falls back to the hashing embedder on
// failure. The degraded flag reports which path served.
func (s *Service) embed(ctx context.Context, text string) (vec []float64, degraded bool, err error) {
	if s.embedder != nil {
		vec, err = s.embedder.Embed(ctx, text)
		if err == nil {
			return vec, false, nil
		}
		log.Printf("embedder failed, degrading: %v", err)
	}
	if s.fallback == nil {
		return nil, false, ErrUnavailable
	}
	vec, err = s.fallback.Embed(ctx, text)
	if err != nil {
		return nil, false, ErrUnavailable
	}
	return vec, true, nil
}

// Remember stores an utterance as an emotion-weighted memory. The combined
// embedding is the semantic vector with the affect feature block appended;
// retention TTL is computed from the affect intensity at write time.
func (s *Service) Remember(ctx context.Context, subjectID, content string, actx affect.Context) (*store.Memory, error) {
	if subjectID == "" || content == "" {
		return nil, fmt.Errorf("subject id and content required")
	}

	semantic, _, err := s.embed(ctx, content)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	combined := append(append([]float64{}, semantic...), actx.FeatureVector()...)

	m := &store.Memory{
		ID:            ulid.Make().String(),
		SubjectID:     subjectID,
		Content:       content,
		AffectLabel:   string(actx.Label),
		Intensity:     actx.Intensity,
		Embedding:     combined,
		RetentionDays: RetentionDays(actx.Intensity),
		CreatedAt:     now.UnixMilli(),
		ReinforcedAt:  now.UnixMilli(),
	}
	if err := s.db.InsertMemory(m); err != nil {
		return nil, err
	}
	return m, nil
}
