package engine

// reconcile.go — divergence detection between local open positions and the
// venue's authoritative list. Detection only: auto-correcting financial
// position state without confirmation is unsafe, so every divergence is
// surfaced as an alert and left for the operator.

import (
	"github.com/alejandrodnm/gembot/internal/domain"
)

// ReconcileReport lists the outcome of one reconciliation pass.
type ReconcileReport struct {
	Matched  []string // instruments present on both sides
	Phantom  []string // tracked locally, missing on the venue (lost fill or bug)
	Orphaned []string // live on the venue, untracked locally (needs manual action)
}

// Clean reports whether no divergence was found.
func (r ReconcileReport) Clean() bool {
	return len(r.Phantom) == 0 && len(r.Orphaned) == 0
}

// Reconcile compares local open positions against the venue's list by
// instrument symbol.
func Reconcile(local []domain.Position, venue []domain.VenuePosition) ReconcileReport {
	var report ReconcileReport

	venueSet := make(map[string]bool, len(venue))
	for _, v := range venue {
		venueSet[v.Instrument] = true
	}

	localSet := make(map[string]bool, len(local))
	for _, p := range local {
		if !p.IsOpen {
			continue
		}
		localSet[p.MarketID] = true
		if venueSet[p.MarketID] {
			report.Matched = append(report.Matched, p.MarketID)
		} else {
			report.Phantom = append(report.Phantom, p.MarketID)
		}
	}

	for _, v := range venue {
		if !localSet[v.Instrument] {
			report.Orphaned = append(report.Orphaned, v.Instrument)
		}
	}
	return report
}
