package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/caretrace/caretrace/internal/config"
)

var (
	cleanupDryRun bool
	cleanupGrace  float64
)

var cleanupCmd = &cobra.Command{
	Use:   "cleanup",
	Short: "Delete memories past their retention grace period",
	RunE:  runCleanup,
}

func init() {
	cleanupCmd.Flags().BoolVar(&cleanupDryRun, "dry-run", false, "report candidates without deleting")
	cleanupCmd.Flags().Float64Var(&cleanupGrace, "grace", 0, "grace-period multiplier override (default from config)")
}

func runCleanup(cmd *cobra.Command, args []string) error {
	cfg := config.Load()

	db, err := openDB(cfg)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer db.Close()

	grace := cfg.Memory.GraceMultiplier
	if cleanupGrace >= 1 {
		grace = cleanupGrace
	}

	memorySvc := newMemoryService(cfg, db)
	report, err := memorySvc.Cleanup(time.Now(), grace, cleanupDryRun)
	if err != nil {
		return err
	}

	for _, m := range report.Candidates {
		fmt.Printf("candidate %s (subject %s, ttl %.0fd, created %s)\n",
			m.ID, m.SubjectID, m.RetentionDays, time.UnixMilli(m.CreatedAt).Format("2006-01-02"))
	}
	if report.DryRun {
		fmt.Printf("dry run: %d candidates of %d scanned\n", len(report.Candidates), report.Scanned)
	} else {
		fmt.Printf("deleted %d of %d scanned\n", report.Deleted, report.Scanned)
	}
	return nil
}
