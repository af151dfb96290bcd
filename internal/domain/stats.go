package domain

import "math"

// ReasonStats aggregates PnL per exit reason. The learner compares the
// time_decay_stop bucket against plain stop_loss to judge whether the
// decaying stop is earning its keep.
type ReasonStats struct {
	Count  int
	AvgPnL float64
}

// TradeStats are rolling performance metrics over a window of closed trades.
type TradeStats struct {
	Count        int
	Wins         int
	Losses       int
	WinRate      float64
	TotalPnL     float64
	AvgPnL       float64
	ProfitFactor float64 // gross wins / gross losses
	Sharpe       float64 // mean(return) / stddev(return), zero risk-free
	MaxDrawdown  float64 // worst peak-to-trough on the cumulative PnL curve
	ByExitReason map[ExitReason]ReasonStats
}

// ComputeTradeStats computes performance metrics over closed positions.
// Open or abandoned positions are skipped.
func ComputeTradeStats(trades []Position) TradeStats {
	stats := TradeStats{ByExitReason: make(map[ExitReason]ReasonStats)}

	var grossWin, grossLoss float64
	var returns []float64
	reasonPnL := make(map[ExitReason]float64)

	for _, t := range trades {
		if t.IsOpen || t.Abandoned {
			continue
		}
		stats.Count++
		stats.TotalPnL += t.PnL
		if t.PnL > 0 {
			stats.Wins++
			grossWin += t.PnL
		} else {
			stats.Losses++
			grossLoss += -t.PnL
		}
		if t.SizeUSD > 0 {
			returns = append(returns, t.PnL/t.SizeUSD)
		}
		rs := stats.ByExitReason[t.ExitReason]
		rs.Count++
		stats.ByExitReason[t.ExitReason] = rs
		reasonPnL[t.ExitReason] += t.PnL
	}

	if stats.Count == 0 {
		return stats
	}

	stats.WinRate = float64(stats.Wins) / float64(stats.Count)
	stats.AvgPnL = stats.TotalPnL / float64(stats.Count)
	if grossLoss > 0 {
		stats.ProfitFactor = grossWin / grossLoss
	} else if grossWin > 0 {
		stats.ProfitFactor = math.Inf(1)
	}
	stats.Sharpe = sharpeRatio(returns)
	stats.MaxDrawdown = maxDrawdown(returns)

	for reason, rs := range stats.ByExitReason {
		rs.AvgPnL = reasonPnL[reason] / float64(rs.Count)
		stats.ByExitReason[reason] = rs
	}
	return stats
}

// sharpeRatio is mean/stddev of per-trade returns with zero risk-free rate.
// Sample stddev (n-1); fewer than 2 returns gives 0.
func sharpeRatio(returns []float64) float64 {
	if len(returns) < 2 {
		return 0
	}
	mean := 0.0
	for _, r := range returns {
		mean += r
	}
	mean /= float64(len(returns))

	variance := 0.0
	for _, r := range returns {
		d := r - mean
		variance += d * d
	}
	variance /= float64(len(returns) - 1)
	sd := math.Sqrt(variance)
	if sd == 0 {
		return 0
	}
	return mean / sd
}

// maxDrawdown walks the cumulative return curve and returns the worst
// peak-to-trough drop (positive number).
func maxDrawdown(returns []float64) float64 {
	cum, peak, worst := 0.0, 0.0, 0.0
	for _, r := range returns {
		cum += r
		if cum > peak {
			peak = cum
		}
		if dd := peak - cum; dd > worst {
			worst = dd
		}
	}
	return worst
}
