package engine

// admission.go — pre-trade gating. Every reject is an expected outcome with
// a reason string, logged at low severity and not retried within the tick.
// The only terminal state is the drawdown kill switch, which requires
// operator intervention.

import (
	"fmt"
	"math"

	"github.com/alejandrodnm/gembot/internal/domain"
	"golang.org/x/time/rate"
)

const (
	// Concentration limits.
	maxSameCategory          = 3
	maxSameDirectionCategory = 2

	// Hard drawdown kill switch: balance below this fraction of the
	// initial balance stops all new entries until an operator intervenes.
	killSwitchBalanceFloor = 0.80

	// Spread-aware edge margin: required edge must beat 2×spread plus this.
	spreadEdgeMargin = 0.01

	// Deep-moneyness guard: spot further than this fraction beyond the
	// strike in the "certain outcome" direction blocks the trade.
	deepMoneynessBand = 0.20

	// Live sanity check: minimum priced edge versus an independent
	// reference before risking a real order (guards stale synthetics).
	liveReferenceSanityEdge = 0.01
)

// Decision is the admission verdict. Rejections carry a reason; Killed marks
// the terminal drawdown state.
type Decision struct {
	Allowed bool
	Reason  string
	Killed  bool
}

func allow() Decision { return Decision{Allowed: true} }

func reject(format string, args ...any) Decision {
	return Decision{Reason: fmt.Sprintf(format, args...)}
}

// AdmissionRequest is the portfolio-plus-signal context for one entry.
type AdmissionRequest struct {
	Signal   domain.Signal
	Contract domain.Contract
	Mode     domain.Mode

	SpotPrice float64
	Open      []domain.Position
	Wallet    domain.WalletState
	DailyPnL  float64

	LiveBalance   *float64 // nil in paper mode
	ReferenceProb *float64 // independent reference for the live sanity check
}

// Admission gates new entries on portfolio-level invariants.
type Admission struct {
	liveLimiter *rate.Limiter
}

// NewAdmission builds the controller. ordersPerCycle bounds live order
// submissions per tick interval.
func NewAdmission(ordersPerCycle int, tickSeconds float64) *Admission {
	if ordersPerCycle <= 0 {
		ordersPerCycle = 2
	}
	if tickSeconds <= 0 {
		tickSeconds = 10
	}
	return &Admission{
		liveLimiter: rate.NewLimiter(rate.Limit(float64(ordersPerCycle)/tickSeconds), ordersPerCycle),
	}
}

// Check runs every gate in order and returns the first rejection.
func (a *Admission) Check(req AdmissionRequest, params domain.Params) Decision {
	sig := req.Signal

	// Kill switch first: terminal, nothing else matters.
	if req.Wallet.InitialBalance > 0 && req.Wallet.Balance < killSwitchBalanceFloor*req.Wallet.InitialBalance {
		return Decision{Reason: "drawdown kill switch: balance below 80% of initial", Killed: true}
	}
	if dd := req.Wallet.Drawdown(); dd >= params.Get(domain.ParamMaxDrawdown) {
		return Decision{Reason: fmt.Sprintf("drawdown kill switch: %.1f%% from peak", dd*100), Killed: true}
	}

	// One open position per market, always.
	for _, p := range req.Open {
		if p.MarketID == sig.MarketID {
			return reject("position already open on %s", sig.MarketID)
		}
	}

	if len(req.Open) >= int(params.Get(domain.ParamMaxConcurrent)) {
		return reject("max concurrent positions (%d)", len(req.Open))
	}

	// Concentration: same category, and same direction within category.
	var sameCat, sameDir int
	for _, p := range req.Open {
		if p.Category != sig.Category {
			continue
		}
		sameCat++
		if p.Direction == sig.Direction {
			sameDir++
		}
	}
	if sameCat >= maxSameCategory {
		return reject("category concentration: %d open in %s", sameCat, sig.Category)
	}
	if sameDir >= maxSameDirectionCategory {
		return reject("direction concentration: %d %s open in %s", sameDir, sig.Direction, sig.Category)
	}

	if req.DailyPnL < params.Get(domain.ParamDailyLossFloor) {
		return reject("daily pnl %.2f below floor", req.DailyPnL)
	}

	// Capital at risk ceiling over the whole book.
	if req.Wallet.Balance > 0 {
		var atRisk float64
		for _, p := range req.Open {
			atRisk += p.SizeUSD
		}
		if atRisk/req.Wallet.Balance >= params.Get(domain.ParamMaxCapitalAtRisk) {
			return reject("capital at risk %.0f%% at ceiling", atRisk/req.Wallet.Balance*100)
		}
	}

	// Spread-aware minimum edge: a priced edge has to clear round-trip
	// spread cost (2×spread + margin), not just the generic minimum —
	// otherwise cheap-looking edges are pure spread noise.
	if spread, ok := req.Contract.Spread(); ok && sig.NetEdge > 0 {
		required := math.Max(params.Get(domain.ParamMinNetEdge), 2*spread+spreadEdgeMargin)
		if sig.NetEdge < required {
			return reject("net edge %.3f under spread-aware minimum %.3f", sig.NetEdge, required)
		}
	}

	// Deep moneyness: with spot far beyond the strike the outcome is all
	// but settled; buying the certain side has no edge left and buying
	// against it is directionally nonsensical.
	if req.SpotPrice > 0 && req.Contract.Strike > 0 {
		ratio := req.SpotPrice / req.Contract.Strike
		if ratio > 1+deepMoneynessBand && sig.Direction == domain.DirectionYes {
			return reject("deep ITM: spot %.0f%% above strike", (ratio-1)*100)
		}
		if ratio < 1-deepMoneynessBand && sig.Direction == domain.DirectionNo {
			return reject("deep OTM: spot %.0f%% below strike", (1-ratio)*100)
		}
	}

	if req.Mode == domain.ModeLive {
		return a.checkLive(req, params)
	}
	return allow()
}

// checkLive applies the stricter real-money gates.
func (a *Admission) checkLive(req AdmissionRequest, params domain.Params) Decision {
	sig := req.Signal

	if !req.Contract.TwoSided() {
		return reject("live: one-sided book")
	}
	if spread, ok := req.Contract.Spread(); ok && spread > params.Get(domain.ParamMaxSpreadLive) {
		return reject("live: spread %.3f over max", spread)
	}
	if sig.NetEdge < params.Get(domain.ParamMinNetEdgeLive) {
		return reject("live: net edge %.3f under live minimum", sig.NetEdge)
	}
	if sig.Score < params.Get(domain.ParamMinScoreLive) {
		return reject("live: score %.0f under live minimum", sig.Score)
	}
	if req.LiveBalance == nil {
		return reject("live: venue balance unavailable")
	}
	if *req.LiveBalance < params.Get(domain.ParamMinPositionUSD) {
		return reject("live: venue balance %.2f under minimum", *req.LiveBalance)
	}

	// Sanity check against an independent reference: a live order needs a
	// real priced edge versus something other than our own synthetic.
	if req.ReferenceProb != nil {
		ref := *req.ReferenceProb
		edge := ref - sig.TargetPrice
		if sig.Direction == domain.DirectionNo {
			edge = (1 - ref) - sig.TargetPrice
		}
		if edge < liveReferenceSanityEdge {
			return reject("live: reference edge %.3f fails sanity check", edge)
		}
	}

	// Per-cycle submission rate limit, last so a rejection above doesn't
	// consume a token.
	if !a.liveLimiter.Allow() {
		return reject("live: order rate limit for this cycle")
	}
	return allow()
}
