package sim

// feeds.go — feeds sintéticos para correr el engine sin venues reales.
//
// El spot hace un random walk lognormal; las quotes del venue "fino" se
// derivan del pricer con un lag configurable (para que aparezcan señales de
// momentum) y un spread fijo; la ladder de brackets se construye alrededor
// del spot con mids consistentes con el modelo. No pretende ser un backtest
// fiel: es un harness de humo para paper mode y demos.

import (
	"context"
	"fmt"
	"math"
	"math/rand"
	"sync"
	"time"

	"github.com/alejandrodnm/gembot/internal/domain"
	"github.com/alejandrodnm/gembot/internal/pricing"
)

const (
	simSpread       = 0.04 // spread del venue fino en probabilidad
	simBracketWidth = 500.0
	simBracketCount = 8
	simWalkVol      = 0.55 // vol anualizada del random walk
	simQuoteLag     = 0.6  // las quotes solo repricean esta fracción del delta
)

// Market reúne los feeds sintéticos de un conjunto de contratos.
// Implementa ContractProvider, MarketDataFeed, BracketFeed y SpotFeed.
type Market struct {
	mu        sync.Mutex
	rng       *rand.Rand
	spots     map[string]float64 // asset → spot actual
	contracts []domain.Contract
	lastMid   map[string]float64 // marketID → mid de la última quote
	expiry    time.Time
}

// NewMarket crea el mercado sintético. Para cada asset genera contratos en
// strikes alrededor del spot inicial, todos con el mismo settlement.
func NewMarket(seed int64, spots map[string]float64, expiry time.Time) *Market {
	m := &Market{
		rng:     rand.New(rand.NewSource(seed)),
		spots:   make(map[string]float64, len(spots)),
		lastMid: make(map[string]float64),
		expiry:  expiry,
	}
	for asset, spot := range spots {
		m.spots[asset] = spot
		base := math.Round(spot/simBracketWidth) * simBracketWidth
		for i := -2; i <= 2; i++ {
			strike := base + float64(i)*simBracketWidth
			m.contracts = append(m.contracts, domain.Contract{
				MarketID:       fmt.Sprintf("%s-above-%.0f", asset, strike),
				Asset:          asset,
				Strike:         strike,
				ExpiryTime:     expiry,
				SettlementHour: expiry.UTC().Hour(),
				EventTitle:     fmt.Sprintf("%s above %.0f at settlement", asset, strike),
				Category:       domain.CategoryCrypto,
			})
		}
	}
	return m
}

// Step avanza el random walk del spot un paso de dt.
func (m *Market) Step(dt time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	dtYears := dt.Hours() / (24 * 365.25)
	for asset, spot := range m.spots {
		z := m.rng.NormFloat64()
		m.spots[asset] = spot * math.Exp(simWalkVol*math.Sqrt(dtYears)*z)
	}
}

// ActiveContracts implementa ports.ContractProvider.
func (m *Market) ActiveContracts(context.Context) ([]domain.Contract, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]domain.Contract, len(m.contracts))
	copy(out, m.contracts)
	return out, nil
}

// GetBestPrices implementa ports.MarketDataFeed. El mid se mueve hacia el
// valor del modelo solo una fracción por consulta: el lag deliberado es lo
// que da señales de momentum al engine.
func (m *Market) GetBestPrices(_ context.Context, instrument string) (domain.Quote, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	c, ok := m.findContract(instrument)
	if !ok {
		return domain.Quote{}, fmt.Errorf("sim.Market.GetBestPrices: instrumento desconocido %s", instrument)
	}

	now := time.Now()
	model := pricing.PriceBinary(m.spots[c.Asset], c.Strike, c.HoursToExpiry(now), simWalkVol).Probability

	mid, seen := m.lastMid[instrument]
	if !seen {
		mid = model
	} else {
		mid += (model - mid) * simQuoteLag
	}
	m.lastMid[instrument] = mid

	bid := clampQuote(mid - simSpread/2)
	ask := clampQuote(mid + simSpread/2)
	return domain.Quote{
		Bid:         domain.Ptr(bid),
		Ask:         domain.Ptr(ask),
		LastTradeAt: now.Add(-time.Duration(m.rng.Intn(600)) * time.Second),
		At:          now,
	}, nil
}

// GetOrderbookDepth implementa ports.MarketDataFeed con profundidad fija.
func (m *Market) GetOrderbookDepth(context.Context, string) (*domain.Depth, error) {
	return &domain.Depth{BidUSD: 2000, AskUSD: 2000}, nil
}

// GetBracketLadder implementa ports.BracketFeed: brackets adyacentes cuyos
// mids son diferencias de la curva del modelo (consistentes por construcción,
// con un poco de ruido para que el sintético no sea idéntico al modelo).
func (m *Market) GetBracketLadder(_ context.Context, asset string) (domain.BracketLadder, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	spot, ok := m.spots[asset]
	if !ok {
		return domain.BracketLadder{}, fmt.Errorf("sim.Market.GetBracketLadder: asset desconocido %s", asset)
	}

	now := time.Now()
	hours := m.expiry.Sub(now).Hours()
	base := math.Round(spot/simBracketWidth)*simBracketWidth - float64(simBracketCount/2)*simBracketWidth

	ladder := domain.BracketLadder{Asset: asset, SettlementHour: m.expiry.UTC().Hour()}
	for i := 0; i < simBracketCount; i++ {
		floor := base + float64(i)*simBracketWidth
		pAbove := pricing.PriceBinary(spot, floor, hours, simWalkVol).Probability
		pAboveNext := pricing.PriceBinary(spot, floor+simBracketWidth, hours, simWalkVol).Probability
		mid := clampQuote(pAbove - pAboveNext + m.rng.Float64()*0.004 - 0.002)

		half := 0.01
		ladder.Brackets = append(ladder.Brackets, domain.Bracket{
			Floor: floor,
			Bid:   domain.Ptr(clampQuote(mid - half)),
			Ask:   domain.Ptr(clampQuote(mid + half)),
		})
	}
	return ladder, nil
}

// RecordSpotPrice implementa ports.SpotFeed (no-op: el walk es interno).
func (m *Market) RecordSpotPrice(string, float64, time.Time) {}

// GetSpotPrice implementa ports.SpotFeed.
func (m *Market) GetSpotPrice(_ context.Context, asset string) (float64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	spot, ok := m.spots[asset]
	if !ok {
		return 0, fmt.Errorf("sim.Market.GetSpotPrice: asset desconocido %s", asset)
	}
	return spot, nil
}

func (m *Market) findContract(instrument string) (domain.Contract, bool) {
	for _, c := range m.contracts {
		if c.MarketID == instrument {
			return c, true
		}
	}
	return domain.Contract{}, false
}

// clampQuote acota un precio a [0.001, 0.999]: el venue sintético nunca
// publica quotes degeneradas en 0 o 1.
func clampQuote(v float64) float64 {
	return math.Max(0.001, math.Min(0.999, v))
}
