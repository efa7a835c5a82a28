package jobs

import (
	"context"
	"log"

	"github.com/evidentry/evidentry/internal/service"
)

// RetentionEnforcer is the slice of RetentionService the sweeper needs.
type RetentionEnforcer interface {
	Enforce(ctx context.Context, input service.EnforceInput) (*service.EnforcementReport, error)
}

// RetentionSweeper runs scheduled retention enforcement across all tenants.
// Each sweep is one full pass; per-artifact failures are already isolated
// inside Enforce and surface only in the report counters.
type RetentionSweeper struct {
	enforcer RetentionEnforcer
	dryRun   bool
}

func NewRetentionSweeper(enforcer RetentionEnforcer, dryRun bool) *RetentionSweeper {
	return &RetentionSweeper{enforcer: enforcer, dryRun: dryRun}
}

func (s *RetentionSweeper) Sweep(ctx context.Context) error {
	report, err := s.enforcer.Enforce(ctx, service.EnforceInput{
		DryRun:      s.dryRun,
		Reason:      "scheduled_sweep",
		RequestedBy: "retention-sweeper",
	})
	if err != nil {
		return err
	}
	log.Printf("retention sweep %s: scanned=%d eligible=%d deleted=%d on_hold=%d failed=%d dry_run=%v",
		report.JobID, report.Scanned, report.Eligible, report.Deleted, report.SkippedOnHold, report.Failed, report.DryRun)
	return nil
}
