package memory

import (
	"context"
	"log"
	"sort"
	"time"

	"github.com/caretrace/caretrace/internal/affect"
	"github.com/caretrace/caretrace/internal/store"
)

// Result is one ranked retrieval hit.
type Result struct {
	Memory      store.Memory `json:"memory"`
	Similarity  float64      `json:"similarity"`
	FinalScore  float64      `json:"final_score"`
	DecayFactor float64      `json:"decay_factor"`
}

// Search retrieves the subject's memories most similar to the query text,
// re-ranked by affect when a live affect context is supplied.
//
// Recall pulls top-K*2 candidates by combined-vector similarity, then
// re-ranks: emotionBoost = sim * (1 + intensity*0.5), emotionSim =
// 1 - |queryIntensity - resultIntensity|, final = boost * (0.8 +
// emotionSim*0.2). The top 3 hits are reinforced as a side effect.
//
// degraded is true when the query ran without affect weighting (no affect
// context, or the primary embedder was unreachable).
func (s *Service) Search(ctx context.Context, subjectID, query string, actx *affect.Context, limit int) (results []Result, degraded bool, err error) {
	if limit <= 0 {
		limit = s.topK
	}

	queryVec, embDegraded, err := s.embed(ctx, query)
	if err != nil {
		return nil, false, err
	}

	affectBlock := make([]float64, affect.FeatureDims)
	if actx != nil {
		affectBlock = actx.FeatureVector()
	}
	combined := append(append([]float64{}, queryVec...), affectBlock...)

	memories, err := s.db.MemoriesBySubject(subjectID)
	if err != nil {
		return nil, false, err
	}

	now := time.Now()
	var candidates []Result
	for _, m := range memories {
		if len(m.Embedding) == 0 {
			continue
		}
		sim := CosineSimilarity(combined, m.Embedding)
		if sim < 0 {
			sim = 0
		}
		if sim == 0 {
			continue
		}
		candidates = append(candidates, Result{
			Memory:      m,
			Similarity:  sim,
			DecayFactor: DecayFactor(m, now),
		})
	}

	// Recall stage: top-K*2 by raw similarity.
	sort.Slice(candidates, func(i, j int) bool {
		return candidates[i].Similarity > candidates[j].Similarity
	})
	if len(candidates) > limit*2 {
		candidates = candidates[:limit*2]
	}

	useAffect := actx != nil && !embDegraded
	for i := range candidates {
		if useAffect {
			boost := candidates[i].Similarity * (1 + candidates[i].Memory.Intensity*0.5)
			emotionSim := 1 - abs(actx.Intensity-candidates[i].Memory.Intensity)
			candidates[i].FinalScore = boost * (0.8 + emotionSim*0.2)
		} else {
			candidates[i].FinalScore = candidates[i].Similarity
		}
	}

	sort.Slice(candidates, func(i, j int) bool {
		return candidates[i].FinalScore > candidates[j].FinalScore
	})
	if len(candidates) > limit {
		candidates = candidates[:limit]
	}

	// Recall is reinforcement: the strongest hits get a retention boost.
	if err := s.ReinforceTop(candidates, now); err != nil {
		log.Printf("reinforcement failed: %v", err)
	}

	return candidates, !useAffect, nil
}

func abs(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}
