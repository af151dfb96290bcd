package engine

// engine.go — the tick loop.
//
// One logical loop on a fixed short period. A tick that is still running
// when the next is due is skipped, not queued — no backlog builds up behind
// slow venue I/O. All computation inside a tick operates on a point-in-time
// snapshot fetched at tick start: no component re-fetches mid-tick, so the
// pricing pipeline never sees torn reads. The learner and reconciliation
// cadences run in the same select loop, which is what makes "the learner
// publishes parameter snapshots between ticks" true by construction.

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/alejandrodnm/gembot/internal/arbitrage"
	"github.com/alejandrodnm/gembot/internal/domain"
	"github.com/alejandrodnm/gembot/internal/ports"
	"github.com/alejandrodnm/gembot/internal/pricing"
	"github.com/alejandrodnm/gembot/internal/signals"
)

const (
	defaultTickInterval      = 10 * time.Second
	defaultLearnInterval     = 15 * time.Minute
	defaultReconcileInterval = 5 * time.Minute

	breakerMaxFailures = 5
	breakerCooldown    = 2 * time.Minute

	// Arbitrage signals score above the composite band so they win merges
	// on score as well as on kind priority.
	arbBaseScore = 75.0

	summaryWindow = 50 // closed trades behind the per-tick stats
)

// Config holds engine-level settings. Tunable knobs live in domain.Params;
// this is the non-tunable wiring.
type Config struct {
	Mode              domain.Mode
	TickInterval      time.Duration
	LearnInterval     time.Duration
	ReconcileInterval time.Duration
	FeeRate           float64
	InitialCapital    float64
	DefaultVol        float64
	VolWindow         time.Duration
	VelocityWindow    time.Duration
	OrdersPerCycle    int
}

// DefaultConfig returns production defaults for paper mode.
func DefaultConfig() Config {
	return Config{
		Mode:              domain.ModePaper,
		TickInterval:      defaultTickInterval,
		LearnInterval:     defaultLearnInterval,
		ReconcileInterval: defaultReconcileInterval,
		FeeRate:           0.02,
		InitialCapital:    1000,
		DefaultVol:        0.60,
		VolWindow:         30 * time.Minute,
		VelocityWindow:    2 * time.Minute,
		OrdersPerCycle:    2,
	}
}

// Deps are the external collaborators, all injected.
type Deps struct {
	Contracts  ports.ContractProvider
	Venue      ports.MarketDataFeed
	Brackets   ports.BracketFeed
	Spot       ports.SpotFeed
	References []ports.ReferenceFeed
	Executor   ports.Executor
	Storage    ports.Storage
	Notifier   ports.Notifier
}

// Engine wires pricing, detection, admission, sizing, monitoring, learning
// and reconciliation behind a single tick loop.
type Engine struct {
	cfg  Config
	deps Deps

	vol       *pricing.Estimator
	ensemble  *pricing.Ensemble
	scorer    *signals.Scorer
	sizer     *Sizer
	admission *Admission
	monitor   *Monitor
	learner   *Learner
	ledger    *Ledger

	params  domain.Params
	breaker domain.CircuitBreaker
	killed  bool

	closedCount int
	catWinRate  map[domain.Category]float64
	prevMid     map[string]float64
	prevRefProb map[string]float64
}

// New builds an engine. Deps must be fully populated except References,
// which may be empty.
func New(cfg Config, deps Deps) *Engine {
	if cfg.TickInterval <= 0 {
		cfg.TickInterval = defaultTickInterval
	}
	if cfg.LearnInterval <= 0 {
		cfg.LearnInterval = defaultLearnInterval
	}
	if cfg.ReconcileInterval <= 0 {
		cfg.ReconcileInterval = defaultReconcileInterval
	}
	return &Engine{
		cfg:         cfg,
		deps:        deps,
		vol:         pricing.NewEstimator(cfg.DefaultVol),
		ensemble:    pricing.NewEnsemble(),
		scorer:      signals.NewScorer(),
		sizer:       NewSizer(),
		admission:   NewAdmission(cfg.OrdersPerCycle, cfg.TickInterval.Seconds()),
		monitor:     NewMonitor(cfg.FeeRate),
		learner:     NewLearner(),
		ledger:      NewLedger(cfg.InitialCapital),
		params:      domain.DefaultParams(),
		breaker:     domain.NewCircuitBreaker(breakerMaxFailures, breakerCooldown),
		catWinRate:  make(map[domain.Category]float64),
		prevMid:     make(map[string]float64),
		prevRefProb: make(map[string]float64),
	}
}

// Bootstrap restores wallet, parameters and open positions from storage.
func (e *Engine) Bootstrap(ctx context.Context) error {
	if wallet, found, err := e.deps.Storage.LoadWallet(ctx); err != nil {
		return fmt.Errorf("engine.Bootstrap: load wallet: %w", err)
	} else if found {
		open, err := e.deps.Storage.GetOpenPositions(ctx)
		if err != nil {
			return fmt.Errorf("engine.Bootstrap: load open positions: %w", err)
		}
		e.ledger.Restore(wallet, open)
		slog.Info("engine: state restored",
			"balance", wallet.Balance, "open_positions", len(open))
	}

	values, err := e.deps.Storage.LoadParams(ctx)
	if err != nil {
		return fmt.Errorf("engine.Bootstrap: load params: %w", err)
	}
	if len(values) > 0 {
		e.params = domain.ParamsFrom(values, 1)
	}

	closed, err := e.deps.Storage.GetRecentClosed(ctx, summaryWindow)
	if err == nil {
		e.closedCount = len(closed)
		e.refreshCategoryWinRates(closed)
	}
	return nil
}

// Run executes the tick loop until the context is cancelled, then performs
// a best-effort shutdown (closing live positions).
func (e *Engine) Run(ctx context.Context) error {
	slog.Info("engine starting",
		"mode", e.cfg.Mode,
		"tick", e.cfg.TickInterval,
		"learn", e.cfg.LearnInterval,
	)

	tick := time.NewTicker(e.cfg.TickInterval)
	defer tick.Stop()
	learn := time.NewTicker(e.cfg.LearnInterval)
	defer learn.Stop()
	reconcile := time.NewTicker(e.cfg.ReconcileInterval)
	defer reconcile.Stop()

	for {
		select {
		case <-ctx.Done():
			e.shutdown(context.Background())
			slog.Info("engine stopped")
			return nil
		case <-tick.C:
			if err := e.Tick(ctx); err != nil {
				slog.Error("tick failed", "err", err)
			}
			// A tick that became due while this one ran is dropped, not
			// queued.
			select {
			case <-tick.C:
			default:
			}
		case <-learn.C:
			e.runLearner(ctx)
		case <-reconcile.C:
			if e.cfg.Mode == domain.ModeLive {
				e.runReconcile(ctx)
			}
		}
	}
}

// Tick runs one full cycle with circuit-breaker accounting.
func (e *Engine) Tick(ctx context.Context) error {
	now := time.Now()
	if !e.breaker.Allow(now) {
		slog.Debug("tick skipped: circuit breaker open")
		return nil
	}

	if err := e.tick(ctx, now); err != nil {
		if e.breaker.RecordFailure(now) {
			e.alert(ctx, ports.SeverityCritical,
				fmt.Sprintf("circuit breaker open after %d consecutive tick failures", breakerMaxFailures))
		}
		return err
	}
	e.breaker.RecordSuccess()
	return nil
}

// marketSnapshot is the point-in-time state of one contract for this tick.
type marketSnapshot struct {
	contract  domain.Contract
	quote     domain.Quote
	depth     *domain.Depth
	spot      float64
	modeled   pricing.BinaryPrice
	fair      *domain.EnsembleEstimate
	synthetic *arbitrage.CurvePoint
	refProbs  map[string]*float64
}

func (e *Engine) tick(ctx context.Context, now time.Time) error {
	start := now
	params := e.params // one immutable snapshot per tick

	contracts, err := e.deps.Contracts.ActiveContracts(ctx)
	if err != nil {
		return fmt.Errorf("engine.tick: fetch contracts: %w", err)
	}

	snapshots := e.buildSnapshots(ctx, contracts, now)

	var liveBalance *float64
	if e.cfg.Mode == domain.ModeLive {
		liveBalance, err = e.deps.Executor.GetAvailableBalance(ctx)
		if err != nil {
			slog.Warn("live balance unavailable", "err", err)
		}
	}

	candidates := e.collectSignals(snapshots, params, now)
	// The kill switch only blocks new entries. Open positions keep being
	// evaluated for exit so stops and targets still fire after a trip.
	if e.killed {
		slog.Debug("entries halted: kill switch tripped")
	} else {
		e.admitAndEnter(ctx, snapshots, candidates, liveBalance, params, now)
	}
	e.evaluateExits(ctx, snapshots, params, now)
	e.rememberTick(snapshots)

	closed, err := e.deps.Storage.GetRecentClosed(ctx, summaryWindow)
	if err == nil {
		e.refreshCategoryWinRates(closed)
		stats := domain.ComputeTradeStats(closed)
		if err := e.deps.Notifier.Summary(ctx, e.ledger.OpenPositions(), e.ledger.Wallet(), stats); err != nil {
			slog.Warn("notifier error", "err", err)
		}
	}

	slog.Info("tick complete",
		"contracts", len(contracts),
		"priced", len(snapshots),
		"signals", len(candidates),
		"open", len(e.ledger.OpenPositions()),
		"duration", time.Since(start).Round(time.Millisecond),
	)
	return nil
}

// buildSnapshots fetches everything once and prices each contract. A feed
// returning an error or stale data skips the contract for this tick — data
// unavailability is not a tick failure.
func (e *Engine) buildSnapshots(ctx context.Context, contracts []domain.Contract, now time.Time) map[string]*marketSnapshot {
	spots := make(map[string]float64)
	curves := make(map[string]arbitrage.Curve)

	for _, c := range contracts {
		if _, done := spots[c.Asset]; done {
			continue
		}
		spot, err := e.deps.Spot.GetSpotPrice(ctx, c.Asset)
		if err != nil {
			slog.Debug("spot unavailable", "asset", c.Asset, "err", err)
			continue
		}
		spots[c.Asset] = spot
		if err := e.vol.Record(c.Asset, spot, now); err != nil {
			slog.Debug("spot rejected", "asset", c.Asset, "err", err)
		}

		ladder, err := e.deps.Brackets.GetBracketLadder(ctx, c.Asset)
		if err != nil {
			slog.Debug("bracket ladder unavailable", "asset", c.Asset, "err", err)
			continue
		}
		curve, err := arbitrage.AboveCurve(ladder)
		if err != nil {
			slog.Warn("invalid bracket ladder", "asset", c.Asset, "err", err)
			continue
		}
		curves[c.Asset] = curve
	}

	snapshots := make(map[string]*marketSnapshot, len(contracts))
	for _, c := range contracts {
		if !c.Active(now) {
			continue
		}
		spot, hasSpot := spots[c.Asset]
		if !hasSpot {
			continue
		}

		quote, err := e.deps.Venue.GetBestPrices(ctx, c.MarketID)
		if err != nil {
			slog.Debug("quote unavailable", "market", c.MarketID, "err", err)
			continue
		}
		c.Bid, c.Ask = quote.Bid, quote.Ask

		depth, err := e.deps.Venue.GetOrderbookDepth(ctx, c.MarketID)
		if err != nil {
			depth = nil // best-effort
		}

		snap := &marketSnapshot{
			contract: c,
			quote:    quote,
			depth:    depth,
			spot:     spot,
			refProbs: make(map[string]*float64),
		}

		hours := c.HoursToExpiry(now)
		realized := e.vol.Realized(c.Asset, e.cfg.VolWindow, now)
		snap.modeled = pricing.PriceBinary(spot, c.Strike, hours, realized)

		sources := map[string]*float64{
			pricing.SourceOptionModel: domain.Ptr(snap.modeled.Probability),
		}

		if curve, ok := curves[c.Asset]; ok {
			if point, matched := curve.MatchStrike(c.Strike, arbitrage.DefaultStrikeTolerance); matched {
				snap.synthetic = &point
				sources[pricing.SourceCrossVenue] = domain.Ptr(point.ClampedMid())
			}
		}

		for _, ref := range e.deps.References {
			prob, err := ref.GetProbability(ctx, c.EventTitle)
			if err != nil {
				slog.Debug("reference feed error", "feed", ref.Name(), "err", err)
				continue
			}
			snap.refProbs[ref.Name()] = prob
			sources[ref.Name()] = prob
		}

		if est, ok := e.ensemble.Combine(c.Category, sources); ok {
			snap.fair = &est
		}
		snapshots[c.MarketID] = snap
	}
	return snapshots
}

// collectSignals runs the three detectors over the snapshot and merges
// candidates per market: arbitrage and momentum beat composite, then score.
func (e *Engine) collectSignals(snapshots map[string]*marketSnapshot, params domain.Params, now time.Time) []domain.Signal {
	best := make(map[string]domain.Signal)

	merge := func(sig domain.Signal) {
		cur, exists := best[sig.MarketID]
		if !exists ||
			sig.Kind.Priority() > cur.Kind.Priority() ||
			(sig.Kind.Priority() == cur.Kind.Priority() && sig.Score > cur.Score) {
			best[sig.MarketID] = sig
		}
	}

	for _, snap := range snapshots {
		if snap.synthetic != nil {
			edge, ok := arbitrage.DetectEdge(snap.contract, *snap.synthetic,
				e.cfg.FeeRate, params.Get(domain.ParamMinNetEdge))
			if ok {
				sig := domain.Signal{
					MarketID:    snap.contract.MarketID,
					Asset:       snap.contract.Asset,
					Category:    snap.contract.Category,
					Kind:        domain.KindArbitrage,
					Direction:   edge.Direction,
					RawEdge:     edge.RawEdge,
					NetEdge:     edge.NetEdge,
					Score:       math.Min(arbBaseScore+edge.NetEdge*100, 100),
					Confidence:  domain.ConfidenceHigh,
					TargetPrice: edge.EntryPrice,
					FairValue:   edge.SyntheticProb,
					At:          now,
				}
				merge(sig)
			}
		}

		in := e.scorerInput(snap, now)
		if sig, ok := e.scorer.Momentum(in, params); ok {
			merge(sig)
		}
		if sig, ok := e.scorer.Score(in, params); ok {
			merge(sig)
		}
	}

	out := make([]domain.Signal, 0, len(best))
	for _, sig := range best {
		out = append(out, sig)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Kind.Priority() != out[j].Kind.Priority() {
			return out[i].Kind.Priority() > out[j].Kind.Priority()
		}
		return out[i].Score > out[j].Score
	})
	return out
}

// scorerInput assembles the scorer's view of one market from the snapshot.
func (e *Engine) scorerInput(snap *marketSnapshot, now time.Time) signals.Input {
	in := signals.Input{
		Contract:        snap.contract,
		SpotPrice:       snap.spot,
		LastTradeAt:     snap.quote.LastTradeAt,
		ContractDelta:   snap.modeled.Delta,
		CategoryWinRate: -1,
		At:              now,
	}
	if snap.fair != nil {
		in.FairValue = domain.Ptr(snap.fair.Probability)
	}
	if spread, ok := snap.contract.Spread(); ok {
		in.VenueSpread = domain.Ptr(spread)
	}
	if snap.synthetic != nil {
		if refSpread := snap.synthetic.AskSum - snap.synthetic.BidSum; refSpread >= 0 {
			in.ReferenceSpreads = []float64{refSpread}
		}
	}

	if window := e.vol.Window(snap.contract.Asset, e.cfg.VelocityWindow, now); len(window) >= 2 && window[0] > 0 {
		in.SpotVelocity = (window[len(window)-1] - window[0]) / window[0]
	}
	if mid, ok := snap.contract.Mid(); ok {
		if prev, seen := e.prevMid[snap.contract.MarketID]; seen {
			in.ContractReprice = mid - prev
		}
	}
	in.ReferenceDirections = e.referenceDirections(snap)
	if wr, ok := e.catWinRate[snap.contract.Category]; ok {
		in.CategoryWinRate = wr
	}
	return in
}

// referenceDirections derives +1/-1/0 per reference feed from the change in
// its probability since the previous tick.
func (e *Engine) referenceDirections(snap *marketSnapshot) []int {
	const epsilon = 0.005
	var dirs []int
	for name, prob := range snap.refProbs {
		if prob == nil {
			continue
		}
		key := name + "|" + snap.contract.MarketID
		if prev, seen := e.prevRefProb[key]; seen {
			switch {
			case *prob-prev > epsilon:
				dirs = append(dirs, 1)
			case prev-*prob > epsilon:
				dirs = append(dirs, -1)
			default:
				dirs = append(dirs, 0)
			}
		}
	}
	return dirs
}

// admitAndEnter filters candidates through admission + sizing and submits
// accepted entries.
func (e *Engine) admitAndEnter(ctx context.Context, snapshots map[string]*marketSnapshot, candidates []domain.Signal, liveBalance *float64, params domain.Params, now time.Time) {
	for _, sig := range candidates {
		snap, ok := snapshots[sig.MarketID]
		if !ok {
			continue
		}
		if err := e.deps.Storage.SaveSignal(ctx, sig); err != nil {
			slog.Warn("signal audit write failed", "err", err)
		}

		req := AdmissionRequest{
			Signal:        sig,
			Contract:      snap.contract,
			Mode:          e.cfg.Mode,
			SpotPrice:     snap.spot,
			Open:          e.ledger.OpenPositions(),
			Wallet:        e.ledger.Wallet(),
			DailyPnL:      e.ledger.DailyPnL(now),
			LiveBalance:   liveBalance,
			ReferenceProb: firstReferenceProb(snap.refProbs),
		}
		decision := e.admission.Check(req, params)
		if decision.Killed {
			e.killed = true
			e.alert(ctx, ports.SeverityCritical, "kill switch: "+decision.Reason)
			return
		}
		if !decision.Allowed {
			slog.Debug("entry rejected", "market", sig.MarketID, "reason", decision.Reason)
			continue
		}

		var depthUSD *float64
		if snap.depth != nil {
			depthUSD = domain.Ptr(snap.depth.AskUSD)
		}
		size, ok := e.sizer.Size(SizeRequest{
			Signal:        sig,
			WalletBalance: e.ledger.Wallet().Balance,
			LiveBalance:   liveBalance,
			AskDepthUSD:   depthUSD,
		}, params)
		if !ok {
			slog.Debug("entry too small", "market", sig.MarketID)
			continue
		}

		e.enter(ctx, snap, sig, size, params, now)
	}
}

// enter submits the order and registers the position. A failed live order
// is abandoned for this tick — never downgraded to a paper fill.
func (e *Engine) enter(ctx context.Context, snap *marketSnapshot, sig domain.Signal, size float64, params domain.Params, now time.Time) {
	res, err := e.deps.Executor.PlaceOrder(ctx, domain.OrderRequest{
		Instrument: sig.MarketID,
		Side:       "buy",
		Direction:  sig.Direction,
		Amount:     size,
		Price:      sig.TargetPrice,
	})
	if err != nil || !res.Success {
		slog.Warn("order failed", "market", sig.MarketID, "err", err, "status", res.Status)
		return
	}

	entry := res.FillPrice
	if entry <= 0 {
		entry = sig.TargetPrice
	}

	stopWidth := params.Get(domain.ParamStopLossWidth)
	tpWidth := params.Get(domain.ParamTakeProfitWidth)
	pos := domain.Position{
		ID:         uuid.NewString(),
		MarketID:   sig.MarketID,
		Asset:      sig.Asset,
		Category:   sig.Category,
		Direction:  sig.Direction,
		Mode:       e.cfg.Mode,
		EntryPrice: entry,
		SizeUSD:    size,
		TakeProfit: clampProb(entry + tpWidth),
		StopLoss:   clampProb(entry - stopWidth),
		Score:      sig.Score,
		OpenedAt:   now,
		IsOpen:     true,
	}

	if err := e.ledger.AddOpen(pos); err != nil {
		slog.Error("ledger rejected position", "err", err)
		return
	}
	if err := e.deps.Storage.SavePosition(ctx, pos); err != nil {
		slog.Warn("position persist failed", "err", err, "id", pos.ID)
	}
	slog.Info("position opened",
		"market", pos.MarketID,
		"direction", pos.Direction,
		"kind", sig.Kind.String(),
		"entry", pos.EntryPrice,
		"size", pos.SizeUSD,
		"score", pos.Score,
	)
}

// evaluateExits runs the monitor over every open position.
func (e *Engine) evaluateExits(ctx context.Context, snapshots map[string]*marketSnapshot, params domain.Params, now time.Time) {
	for _, pos := range e.ledger.OpenPositions() {
		quote, expiry, ok := e.exitQuote(ctx, snapshots, pos)
		if !ok {
			continue
		}
		decision, evaluable := e.monitor.Evaluate(pos, quote, expiry, now, params)
		if !evaluable || !decision.Exit {
			continue
		}
		e.closePosition(ctx, pos, decision, now)
	}
}

// exitQuote finds the quote for a position's market, preferring the tick
// snapshot and falling back to a direct fetch for delisted contracts.
func (e *Engine) exitQuote(ctx context.Context, snapshots map[string]*marketSnapshot, pos domain.Position) (domain.Quote, time.Time, bool) {
	if snap, ok := snapshots[pos.MarketID]; ok {
		return snap.quote, snap.contract.ExpiryTime, true
	}
	quote, err := e.deps.Venue.GetBestPrices(ctx, pos.MarketID)
	if err != nil {
		slog.Debug("exit quote unavailable", "market", pos.MarketID, "err", err)
		return domain.Quote{}, time.Time{}, false
	}
	return quote, time.Time{}, true
}

// closePosition submits the exit (live) and settles the ledger. Live exit
// failures are retried across ticks up to the cap, then the position is
// abandoned loudly rather than silently closed.
func (e *Engine) closePosition(ctx context.Context, pos domain.Position, decision ExitDecision, now time.Time) {
	if pos.Mode == domain.ModeLive {
		_, err := e.deps.Executor.PlaceOrder(ctx, domain.OrderRequest{
			Instrument: pos.MarketID,
			Side:       "sell",
			Direction:  pos.Direction,
			Amount:     pos.SizeUSD,
			Price:      decision.ExitPrice,
		})
		if err != nil {
			pos.ExitRetries++
			if pos.ExitRetries >= e.monitor.MaxExitRetries() {
				abandoned, _ := e.ledger.Abandon(pos.MarketID)
				if err := e.deps.Storage.ClosePosition(ctx, abandoned); err != nil {
					slog.Error("abandoned position persist failed", "err", err, "id", abandoned.ID)
				}
				e.alert(ctx, ports.SeverityCritical, fmt.Sprintf(
					"exit abandoned after %d failed submissions: %s — manual intervention required",
					pos.ExitRetries, pos.MarketID))
				return
			}
			e.ledger.Update(pos)
			slog.Warn("exit submission failed, will retry",
				"market", pos.MarketID, "retries", pos.ExitRetries, "err", err)
			return
		}
	}

	pnl := e.monitor.PnL(pos, decision.ExitPrice)
	closed, err := e.ledger.Close(pos.MarketID, decision.ExitPrice, pnl, decision.Reason, now)
	if err != nil {
		slog.Error("ledger close failed", "err", err)
		return
	}
	e.closedCount++

	if err := e.deps.Storage.ClosePosition(ctx, closed); err != nil {
		slog.Warn("close persist failed", "err", err, "id", closed.ID)
	}
	if err := e.deps.Storage.SaveWallet(ctx, e.ledger.Wallet()); err != nil {
		slog.Warn("wallet persist failed", "err", err)
	}
	slog.Info("position closed",
		"market", closed.MarketID,
		"reason", closed.ExitReason,
		"exit", closed.ExitPrice,
		"pnl", fmt.Sprintf("%.2f", closed.PnL),
		"hold_s", int(closed.HoldSeconds),
	)
}

// rememberTick stores per-market state needed by next tick's momentum and
// consensus checks.
func (e *Engine) rememberTick(snapshots map[string]*marketSnapshot) {
	for id, snap := range snapshots {
		if mid, ok := snap.contract.Mid(); ok {
			e.prevMid[id] = mid
		}
		for name, prob := range snap.refProbs {
			if prob != nil {
				e.prevRefProb[name+"|"+id] = *prob
			}
		}
	}
}

// runLearner evaluates the rolling window and publishes a new parameter
// snapshot between ticks.
func (e *Engine) runLearner(ctx context.Context) {
	closed, err := e.deps.Storage.GetRecentClosed(ctx, learnerWindow)
	if err != nil {
		slog.Warn("learner: load trades failed", "err", err)
		return
	}
	next, changed := e.learner.Evaluate(closed, e.closedCount, e.params)
	if !changed {
		return
	}
	e.params = next
	for name, value := range next.Values() {
		if err := e.deps.Storage.UpsertParam(ctx, name, value); err != nil {
			slog.Warn("learner: param persist failed", "param", name, "err", err)
		}
	}
	slog.Info("learner: published parameter snapshot", "version", next.Version)
}

// runReconcile compares local open positions against the venue's list.
func (e *Engine) runReconcile(ctx context.Context) {
	venuePositions, err := e.deps.Executor.GetOpenPositions(ctx)
	if err != nil {
		slog.Warn("reconcile: venue positions unavailable", "err", err)
		return
	}
	report := Reconcile(e.ledger.OpenPositions(), venuePositions)
	slog.Info("reconcile complete",
		"matched", len(report.Matched),
		"phantom", len(report.Phantom),
		"orphaned", len(report.Orphaned),
	)
	for _, id := range report.Phantom {
		e.alert(ctx, ports.SeverityCritical,
			"phantom position: tracked locally but missing on venue: "+id)
	}
	for _, id := range report.Orphaned {
		e.alert(ctx, ports.SeverityCritical,
			"orphaned position: open on venue but untracked locally: "+id)
	}
}

// shutdown attempts to close all open positions (best-effort, live mode
// submits real exits; individual failures are logged, not retried).
func (e *Engine) shutdown(ctx context.Context) {
	open := e.ledger.OpenPositions()
	if len(open) == 0 {
		return
	}
	slog.Info("shutdown: closing open positions", "count", len(open))
	now := time.Now()

	for _, pos := range open {
		quote, err := e.deps.Venue.GetBestPrices(ctx, pos.MarketID)
		if err != nil {
			slog.Warn("shutdown: no quote, leaving position", "market", pos.MarketID, "err", err)
			continue
		}
		exec, _, ok := sidePrices(pos.Direction, quote)
		if !ok {
			slog.Warn("shutdown: one-sided book, leaving position", "market", pos.MarketID)
			continue
		}
		if pos.Mode == domain.ModeLive {
			if _, err := e.deps.Executor.PlaceOrder(ctx, domain.OrderRequest{
				Instrument: pos.MarketID,
				Side:       "sell",
				Direction:  pos.Direction,
				Amount:     pos.SizeUSD,
				Price:      exec,
			}); err != nil {
				slog.Error("shutdown: exit failed, position remains on venue",
					"market", pos.MarketID, "err", err)
				continue
			}
		}
		pnl := e.monitor.PnL(pos, exec)
		closed, err := e.ledger.Close(pos.MarketID, exec, pnl, domain.ExitShutdown, now)
		if err != nil {
			continue
		}
		if err := e.deps.Storage.ClosePosition(ctx, closed); err != nil {
			slog.Warn("shutdown: close persist failed", "err", err)
		}
	}
	if err := e.deps.Storage.SaveWallet(ctx, e.ledger.Wallet()); err != nil {
		slog.Warn("shutdown: wallet persist failed", "err", err)
	}
}

// refreshCategoryWinRates recomputes trailing win rates per category.
func (e *Engine) refreshCategoryWinRates(closed []domain.Position) {
	counts := make(map[domain.Category]int)
	wins := make(map[domain.Category]int)
	for _, p := range closed {
		if p.IsOpen || p.Abandoned {
			continue
		}
		counts[p.Category]++
		if p.IsWin() {
			wins[p.Category]++
		}
	}
	for cat, n := range counts {
		if n > 0 {
			e.catWinRate[cat] = float64(wins[cat]) / float64(n)
		}
	}
}

// Params exposes the current snapshot (for the host process dashboard).
func (e *Engine) Params() domain.Params { return e.params }

// Wallet exposes the wallet state (read-only copy).
func (e *Engine) Wallet() domain.WalletState { return e.ledger.Wallet() }

// Killed reports whether the drawdown kill switch has tripped.
func (e *Engine) Killed() bool { return e.killed }

func (e *Engine) alert(ctx context.Context, severity ports.AlertSeverity, message string) {
	slog.Error(message, "severity", severity)
	if err := e.deps.Notifier.Alert(ctx, severity, message); err != nil {
		slog.Warn("alert delivery failed", "err", err)
	}
}

// firstReferenceProb picks any available reference probability for the live
// sanity check, in a stable preference order.
func firstReferenceProb(probs map[string]*float64) *float64 {
	for _, name := range []string{pricing.SourceKalshi, pricing.SourceManifold, pricing.SourceMetaculus} {
		if p, ok := probs[name]; ok && p != nil {
			return p
		}
	}
	return nil
}

func clampProb(p float64) float64 {
	if p < 0.01 {
		return 0.01
	}
	if p > 0.99 {
		return 0.99
	}
	return p
}
