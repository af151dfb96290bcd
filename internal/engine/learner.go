package engine

// learner.go — adaptive retuning of entry threshold, Kelly multiplier and
// stop width from rolling trade statistics.
//
// The learner is the sole writer of tuned parameters. It publishes whole
// new snapshots between ticks; it never mutates the snapshot a tick reads.
//
// Anti-deadlock: repeated tightening that generates zero new trades would
// starve the learner of the very data it needs to loosen again. After a few
// such cycles a forced "starvation relief" loosening breaks the loop.

import (
	"log/slog"

	"github.com/alejandrodnm/gembot/internal/domain"
)

const (
	learnerWindow    = 30 // most recent closed trades evaluated
	learnerMinSample = 10

	goodWinRate = 0.55
	badWinRate  = 0.45

	loosenThresholdStep  = 2.0
	loosenKellyStep      = 0.02
	tightenThresholdStep = 3.0
	tightenStopStep      = 0.01

	starvationStreak     = 3
	starvationReliefStep = 5.0
)

// Learner retunes parameters from realized performance.
type Learner struct {
	tighteningStreak int
	tradesAtTighten  int
	totalSeen        int

	// Decay-stop vs stop-loss comparison, recorded for future tuning of
	// the decay threshold itself (not automated yet).
	DecayVsStopPnL float64
}

// NewLearner creates a learner.
func NewLearner() *Learner { return &Learner{} }

// Evaluate inspects the rolling window of closed trades and returns a new
// parameter snapshot. changed=false when the sample is too small or no
// adjustment fired.
func (l *Learner) Evaluate(closed []domain.Position, totalClosed int, params domain.Params) (domain.Params, bool) {
	if len(closed) > learnerWindow {
		closed = closed[:learnerWindow]
	}
	stats := domain.ComputeTradeStats(closed)
	l.totalSeen = totalClosed

	l.recordDecayComparison(stats)

	if stats.Count < learnerMinSample {
		slog.Debug("learner: sample too small", "count", stats.Count, "min", learnerMinSample)
		return params, false
	}

	// Starvation relief: tightening repeatedly with zero new trades means
	// the threshold is too strict to ever produce data to re-evaluate it.
	if l.tighteningStreak >= starvationStreak && totalClosed == l.tradesAtTighten {
		next := params.With(domain.ParamEntryThreshold,
			params.Get(domain.ParamEntryThreshold)-starvationReliefStep)
		l.tighteningStreak = 0
		slog.Warn("learner: starvation relief, loosening entry threshold",
			"entry_threshold", next.Get(domain.ParamEntryThreshold))
		return next, true
	}

	switch {
	case stats.WinRate >= goodWinRate && stats.AvgPnL > 0:
		next := params.
			With(domain.ParamEntryThreshold, params.Get(domain.ParamEntryThreshold)-loosenThresholdStep).
			With(domain.ParamKellyMultiplier, params.Get(domain.ParamKellyMultiplier)+loosenKellyStep)
		l.tighteningStreak = 0
		slog.Info("learner: loosening",
			"win_rate", stats.WinRate,
			"avg_pnl", stats.AvgPnL,
			"entry_threshold", next.Get(domain.ParamEntryThreshold),
			"kelly_multiplier", next.Get(domain.ParamKellyMultiplier),
		)
		return next, true

	case stats.WinRate < badWinRate:
		next := params.
			With(domain.ParamEntryThreshold, params.Get(domain.ParamEntryThreshold)+tightenThresholdStep).
			With(domain.ParamStopLossWidth, params.Get(domain.ParamStopLossWidth)-tightenStopStep)
		l.tighteningStreak++
		l.tradesAtTighten = totalClosed
		slog.Info("learner: tightening",
			"win_rate", stats.WinRate,
			"streak", l.tighteningStreak,
			"entry_threshold", next.Get(domain.ParamEntryThreshold),
			"stop_loss_width", next.Get(domain.ParamStopLossWidth),
		)
		return next, true
	}

	return params, false
}

// recordDecayComparison tracks whether the time-decay stop is exiting
// better than the plain stop-loss, by average PnL per bucket.
func (l *Learner) recordDecayComparison(stats domain.TradeStats) {
	decay, hasDecay := stats.ByExitReason[domain.ExitTimeDecayStop]
	plain, hasPlain := stats.ByExitReason[domain.ExitStopLoss]
	if !hasDecay || !hasPlain {
		return
	}
	l.DecayVsStopPnL = decay.AvgPnL - plain.AvgPnL
	slog.Debug("learner: decay-stop vs stop-loss",
		"decay_avg_pnl", decay.AvgPnL,
		"stop_avg_pnl", plain.AvgPnL,
		"difference", l.DecayVsStopPnL,
	)
}
