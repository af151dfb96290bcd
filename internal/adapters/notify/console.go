package notify

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/alejandrodnm/gembot/internal/domain"
	"github.com/alejandrodnm/gembot/internal/ports"
	"github.com/olekukonko/tablewriter"
)

// Console implementa ports.Notifier escribiendo a stdout.
// Las alertas críticas (kill switch, circuit breaker, posiciones abandonadas,
// divergencias de reconciliación) se imprimen SIEMPRE, no dependen del modo
// compacto: si arriesgan capital real tienen que ser imposibles de ignorar.
type Console struct {
	out   io.Writer
	table bool // tabla completa de posiciones vs línea compacta
}

// NewConsole crea un notificador que escribe a stdout.
func NewConsole(table bool) *Console {
	return &Console{out: os.Stdout, table: table}
}

// NewConsoleWriter crea un notificador para tests.
func NewConsoleWriter(w io.Writer, table bool) *Console {
	return &Console{out: w, table: table}
}

// Alert imprime una alerta visible para el operador.
func (c *Console) Alert(_ context.Context, severity ports.AlertSeverity, message string) error {
	now := time.Now().Format("15:04:05")
	prefix := ">>"
	if severity == ports.SeverityCritical {
		prefix = "!!"
	}
	fmt.Fprintf(c.out, "[%s] %s [%s] %s\n", now, prefix, strings.ToUpper(string(severity)), message)
	return nil
}

// Summary imprime el snapshot del portfolio tras un tick.
func (c *Console) Summary(_ context.Context, positions []domain.Position, wallet domain.WalletState, stats domain.TradeStats) error {
	if c.table {
		c.printFull(positions, wallet, stats)
	} else {
		c.printCompact(positions, wallet, stats)
	}
	return nil
}

// printCompact imprime lo esencial en una línea.
func (c *Console) printCompact(positions []domain.Position, wallet domain.WalletState, stats domain.TradeStats) {
	now := time.Now().Format("15:04:05")

	var atRisk float64
	for _, p := range positions {
		atRisk += p.SizeUSD
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "[%s] bal $%.2f (dd %.1f%%) | %d open $%.0f at risk",
		now, wallet.Balance, wallet.Drawdown()*100, len(positions), atRisk)
	if stats.Count > 0 {
		fmt.Fprintf(&sb, " | %dT wr%.0f%% pnl$%.2f sharpe %.2f",
			stats.Count, stats.WinRate*100, stats.TotalPnL, stats.Sharpe)
	}
	fmt.Fprintln(c.out, sb.String())
}

// printFull imprime la tabla completa de posiciones y el resumen de stats.
func (c *Console) printFull(positions []domain.Position, wallet domain.WalletState, stats domain.TradeStats) {
	now := time.Now().Format("15:04:05")
	fmt.Fprintf(c.out, "\n[%s] balance $%.2f | peak $%.2f | drawdown %.1f%% | %d open\n",
		now, wallet.Balance, wallet.PeakBalance, wallet.Drawdown()*100, len(positions))

	if len(positions) > 0 {
		table := tablewriter.NewWriter(c.out)
		table.Header("Market", "Dir", "Mode", "Entry", "TP", "SL", "Size$", "Score", "Held")

		for _, p := range positions {
			table.Append(
				truncate(p.MarketID, 28),
				string(p.Direction),
				string(p.Mode),
				fmt.Sprintf("%.3f", p.EntryPrice),
				fmt.Sprintf("%.3f", p.TakeProfit),
				fmt.Sprintf("%.3f", p.StopLoss),
				fmt.Sprintf("%.0f", p.SizeUSD),
				fmt.Sprintf("%.0f", p.Score),
				holdLabel(p.HoldTime(time.Now())),
			)
		}
		table.Render()
	}

	if stats.Count > 0 {
		fmt.Fprintf(c.out, "  %d trades | wr %.0f%% (%dW/%dL) | pnl $%.2f (avg $%.2f) | pf %.2f | sharpe %.2f | maxdd %.2f\n",
			stats.Count, stats.WinRate*100, stats.Wins, stats.Losses,
			stats.TotalPnL, stats.AvgPnL, stats.ProfitFactor, stats.Sharpe, stats.MaxDrawdown)
		c.printReasons(stats)
	}
	fmt.Fprintln(c.out)
}

// printReasons desglosa los exits por razón, en orden fijo.
func (c *Console) printReasons(stats domain.TradeStats) {
	order := []domain.ExitReason{
		domain.ExitTakeProfit,
		domain.ExitStopLoss,
		domain.ExitTimeDecayStop,
		domain.ExitTimeLimit,
		domain.ExitShutdown,
	}
	var parts []string
	for _, reason := range order {
		rs, ok := stats.ByExitReason[reason]
		if !ok {
			continue
		}
		parts = append(parts, fmt.Sprintf("%s:%d($%.2f)", reason, rs.Count, rs.AvgPnL))
	}
	if len(parts) > 0 {
		fmt.Fprintf(c.out, "  exits: %s\n", strings.Join(parts, "  "))
	}
}

// PrintDailyReport imprime el informe de cierre de día.
func (c *Console) PrintDailyReport(closed []domain.Position, wallet domain.WalletState) {
	stats := domain.ComputeTradeStats(closed)

	fmt.Fprintf(c.out, "\n========================================================\n")
	fmt.Fprintf(c.out, "  DAILY REPORT — %s\n", time.Now().Format("2006-01-02"))
	fmt.Fprintf(c.out, "========================================================\n\n")

	if stats.Count == 0 {
		fmt.Fprintln(c.out, "  No closed trades today.")
		return
	}

	table := tablewriter.NewWriter(c.out)
	table.Header("Market", "Dir", "Entry", "Exit", "PnL$", "Reason", "Held")
	for _, p := range closed {
		if p.IsOpen || p.Abandoned {
			continue
		}
		table.Append(
			truncate(p.MarketID, 28),
			string(p.Direction),
			fmt.Sprintf("%.3f", p.EntryPrice),
			fmt.Sprintf("%.3f", p.ExitPrice),
			fmt.Sprintf("%.2f", p.PnL),
			string(p.ExitReason),
			holdLabel(time.Duration(p.HoldSeconds)*time.Second),
		)
	}
	table.Render()

	fmt.Fprintf(c.out, "\n  Trades:     %d (%dW / %dL, wr %.0f%%)\n",
		stats.Count, stats.Wins, stats.Losses, stats.WinRate*100)
	fmt.Fprintf(c.out, "  Net PnL:    $%.2f (avg $%.2f/trade)\n", stats.TotalPnL, stats.AvgPnL)
	fmt.Fprintf(c.out, "  Sharpe:     %.2f | profit factor %.2f\n", stats.Sharpe, stats.ProfitFactor)
	fmt.Fprintf(c.out, "  Balance:    $%.2f (peak $%.2f, dd %.1f%%)\n",
		wallet.Balance, wallet.PeakBalance, wallet.Drawdown()*100)
	fmt.Fprintln(c.out)
}

// --- helpers ---

func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen-3] + "..."
}

func holdLabel(d time.Duration) string {
	if d < time.Minute {
		return fmt.Sprintf("%ds", int(d.Seconds()))
	}
	if d < time.Hour {
		return fmt.Sprintf("%dm", int(d.Minutes()))
	}
	return fmt.Sprintf("%.1fh", d.Hours())
}
