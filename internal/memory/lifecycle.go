package memory

import (
	"fmt"
	"log"
	"time"

	"github.com/caretrace/caretrace/internal/store"
)

// reinforcementSteps are the intensity increments for the 1st/2nd/3rd ranked
// recall results.
var reinforcementSteps = []float64{0.05, 0.03, 0.01}

// DefaultGraceMultiplier extends the retention TTL before a record becomes
// eligible for deletion.
const DefaultGraceMultiplier = 2.0

const dayMillis = 24 * 60 * 60 * 1000

// ageDays returns the record's effective age in days at the given instant.
func ageDays(m store.Memory, now time.Time) float64 {
	return float64(now.UnixMilli()-m.CreatedAt) / dayMillis
}

// DecayFactor derives a continuous read-side weight for a memory:
// max(0, 1 - age/retentionTTL). Stored fields are never decayed; eligibility
// for deletion is purely age-based.
func DecayFactor(m store.Memory, now time.Time) float64 {
	if m.RetentionDays <= 0 {
		return 0
	}
	f := 1 - ageDays(m, now)/m.RetentionDays
	if f < 0 {
		return 0
	}
	return f
}

// ReinforceTop applies rank-based reinforcement to the top recall results:
// +0.05/+0.03/+0.01 intensity, clamped to 1.0. TTL is recomputed from the new
// intensity and never decreased; lastReinforcedAt is refreshed.
func (s *Service) ReinforceTop(results []Result, now time.Time) error {
	for rank, r := range results {
		if rank >= len(reinforcementSteps) {
			break
		}
		m := r.Memory

		intensity := m.Intensity + reinforcementSteps[rank]
		if intensity > 1.0 {
			intensity = 1.0
		}
		retention := RetentionDays(intensity)
		if retention < m.RetentionDays {
			retention = m.RetentionDays
		}

		if err := s.db.UpdateReinforcement(m.ID, intensity, retention, now.UnixMilli()); err != nil {
			return fmt.Errorf("reinforce %s: %w", m.ID, err)
		}
	}
	return nil
}

// CleanupReport summarizes one cleanup pass.
type CleanupReport struct {
	Scanned    int            `json:"scanned"`
	Candidates []store.Memory `json:"candidates,omitempty"`
	Deleted    int            `json:"deleted"`
	DryRun     bool           `json:"dry_run"`
}

// Cleanup deletes memories whose age exceeds retentionTTL * graceMultiplier.
// A dry run reports the identical candidate set without deleting anything.
func (s *Service) Cleanup(now time.Time, graceMultiplier float64, dryRun bool) (*CleanupReport, error) {
	if graceMultiplier < 1 {
		graceMultiplier = DefaultGraceMultiplier
	}

	// Records younger than the minimum TTL times the grace period can never
	// be candidates; the created_at index skips them.
	cutoff := now.UnixMilli() - int64(MinRetentionDays*graceMultiplier*dayMillis)
	memories, err := s.db.MemoriesCreatedBefore(cutoff)
	if err != nil {
		return nil, fmt.Errorf("cleanup scan: %w", err)
	}

	report := &CleanupReport{Scanned: len(memories), DryRun: dryRun}
	for _, m := range memories {
		if ageDays(m, now) <= m.RetentionDays*graceMultiplier {
			continue
		}
		report.Candidates = append(report.Candidates, m)
	}

	if dryRun {
		return report, nil
	}

	for _, m := range report.Candidates {
		if err := s.db.DeleteMemory(m.ID); err != nil {
			return report, fmt.Errorf("cleanup delete: %w", err)
		}
		report.Deleted++
	}
	if report.Deleted > 0 {
		log.Printf("cleanup: deleted %d expired memories", report.Deleted)
	}
	return report, nil
}
