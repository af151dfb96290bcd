package signals

// scorer.go — score compuesto de oportunidad (0-100) con cinco componentes
// capeados + overrides de momentum.
//
// Componentes y caps:
//
//	velocity     (0-30): magnitud del movimiento spot vs threshold configurado
//	spread diff  (0-20): spread del venue fino menos spread medio de referencia
//	consensus    (0-15): acuerdo direccional entre feeds de referencia
//	staleness    (0-20): antigüedad del último trade del venue fino
//	win rate     (0-15): win rate histórico de la categoría
//
// Una señal es accionable solo si total >= entry_threshold Y hay dirección
// determinada Y el mercado no está en cooldown post-señal (evita re-entradas
// por flapping de la misma señal).

import (
	"log/slog"
	"math"
	"time"

	"github.com/alejandrodnm/gembot/internal/domain"
)

const (
	velocityCap   = 30.0
	spreadDiffCap = 20.0
	consensusCap  = 15.0
	stalenessCap  = 20.0
	winRateCap    = 15.0

	// Escala del componente de spread: 5 puntos de probabilidad de
	// diferencia saturan el componente.
	spreadDiffScale = 0.05

	// Staleness satura a los 30 minutos sin trades.
	stalenessSaturation = 30 * time.Minute

	// Gap mínimo fair value vs mid para fijar dirección por valor.
	minDirectionGap = 0.01

	// Momentum: lag mínimo de repricing para sintetizar señal.
	minMomentumLag = 0.02
)

// Input es el estado puntual de un mercado que consume el scorer.
// Lo ensambla el engine desde el snapshot del tick; el scorer no hace fetch.
type Input struct {
	Contract  domain.Contract
	FairValue *float64 // probabilidad del ensemble, nil = sin estimación

	// Spot
	SpotPrice    float64
	SpotVelocity float64 // retorno fraccional del spot en la ventana corta

	// Microestructura
	VenueSpread      *float64  // spread del venue fino
	ReferenceSpreads []float64 // spreads observados en los venues de referencia
	LastTradeAt      time.Time // último trade del venue fino

	// Direcciones implícitas de los feeds de referencia: +1 sube, -1 baja,
	// 0 plano. Slice vacío = datos insuficientes.
	ReferenceDirections []int

	// Win rate histórico de la categoría en [0,1]. Negativo = desconocido.
	CategoryWinRate float64

	// Para momentum: delta conocida del contrato y cuánto ha repriceado
	// el contrato en la misma ventana que SpotVelocity.
	ContractDelta   float64
	ContractReprice float64 // cambio del mid del contrato en la ventana
	At              time.Time
}

// Components desglosa el score para logging y tests.
type Components struct {
	Velocity   float64
	SpreadDiff float64
	Consensus  float64
	Staleness  float64
	WinRate    float64
}

// Total suma los componentes (<= 100 por construcción de los caps).
func (c Components) Total() float64 {
	return c.Velocity + c.SpreadDiff + c.Consensus + c.Staleness + c.WinRate
}

// Scorer produce señales compuestas y de momentum, con cooldown por mercado.
type Scorer struct {
	lastActionable map[string]time.Time // marketID → última señal accionable
}

// NewScorer crea un scorer vacío.
func NewScorer() *Scorer {
	return &Scorer{lastActionable: make(map[string]time.Time)}
}

// Score evalúa un mercado y devuelve la señal compuesta si es accionable.
func (s *Scorer) Score(in Input, params domain.Params) (domain.Signal, bool) {
	comps := s.components(in, params)
	total := comps.Total()

	dir, target, ok := s.direction(in)
	if !ok {
		return domain.Signal{}, false
	}

	if total < params.Get(domain.ParamEntryThreshold) {
		return domain.Signal{}, false
	}

	if s.inCooldown(in.Contract.MarketID, in.At, params) {
		slog.Debug("signal suppressed by cooldown", "market", in.Contract.MarketID)
		return domain.Signal{}, false
	}

	sig := domain.Signal{
		MarketID:    in.Contract.MarketID,
		Asset:       in.Contract.Asset,
		Category:    in.Contract.Category,
		Kind:        domain.KindComposite,
		Direction:   dir,
		Score:       total,
		Confidence:  confidenceFor(total),
		TargetPrice: target,
		At:          in.At,
	}
	if in.FairValue != nil {
		sig.FairValue = *in.FairValue
		sig.RawEdge = rawEdge(dir, *in.FairValue, target)
	}

	s.markActionable(in.Contract.MarketID, in.At)
	return sig, true
}

// Momentum detecta contratos que no han repriceado proporcionalmente a un
// movimiento del spot: sintetiza (o refuerza) una señal hacia la dirección
// del movimiento, con urgencia proporcional al tamaño del lag.
func (s *Scorer) Momentum(in Input, params domain.Params) (domain.Signal, bool) {
	velThreshold := params.Get(domain.ParamVelocityThreshold)
	if math.Abs(in.SpotVelocity) < velThreshold {
		return domain.Signal{}, false
	}
	if in.ContractDelta <= 0 || in.SpotPrice <= 0 {
		return domain.Signal{}, false
	}

	// Repricing esperado: delta × movimiento absoluto del spot.
	spotMove := in.SpotVelocity * in.SpotPrice
	expected := in.ContractDelta * spotMove
	lag := expected - in.ContractReprice
	if math.Abs(lag) < minMomentumLag {
		return domain.Signal{}, false
	}
	// El contrato va por detrás del spot: entrar hacia el movimiento.
	if lag*in.SpotVelocity < 0 {
		return domain.Signal{}, false
	}

	dir := domain.DirectionYes
	if in.SpotVelocity < 0 {
		dir = domain.DirectionNo
	}
	target, ok := entryPriceFor(in.Contract, dir)
	if !ok {
		return domain.Signal{}, false
	}

	urgency := math.Min(math.Abs(lag)/minMomentumLag, 3.0)
	score := math.Min(60+15*urgency, 100)

	if s.inCooldown(in.Contract.MarketID, in.At, params) {
		return domain.Signal{}, false
	}
	s.markActionable(in.Contract.MarketID, in.At)

	sig := domain.Signal{
		MarketID:    in.Contract.MarketID,
		Asset:       in.Contract.Asset,
		Category:    in.Contract.Category,
		Kind:        domain.KindMomentum,
		Direction:   dir,
		Score:       score,
		Confidence:  confidenceFor(score),
		TargetPrice: target,
		RawEdge:     math.Abs(lag),
		At:          in.At,
	}
	if in.FairValue != nil {
		sig.FairValue = *in.FairValue
	}
	return sig, true
}

// components calcula los cinco sub-scores capeados.
func (s *Scorer) components(in Input, params domain.Params) Components {
	var c Components

	// 1. Velocity: |retorno| escalado contra el threshold configurado.
	velThreshold := params.Get(domain.ParamVelocityThreshold)
	if velThreshold > 0 {
		c.Velocity = math.Min(math.Abs(in.SpotVelocity)/velThreshold, 1) * velocityCap
	}

	// 2. Diferencial de spread: venue fino ancho + referencias estrechas =
	// más hueco para capturar.
	if in.VenueSpread != nil && len(in.ReferenceSpreads) > 0 {
		avgRef := 0.0
		for _, sp := range in.ReferenceSpreads {
			avgRef += sp
		}
		avgRef /= float64(len(in.ReferenceSpreads))
		diff := *in.VenueSpread - avgRef
		if diff > 0 {
			c.SpreadDiff = math.Min(diff/spreadDiffScale, 1) * spreadDiffCap
		}
	}

	// 3. Consenso direccional entre referencias.
	c.Consensus = consensusFactor(in.ReferenceDirections) * consensusCap

	// 4. Staleness del último trade: más viejo = quote menos defendida.
	if !in.LastTradeAt.IsZero() {
		age := in.At.Sub(in.LastTradeAt)
		c.Staleness = math.Min(age.Seconds()/stalenessSaturation.Seconds(), 1) * stalenessCap
	}

	// 5. Win rate de la categoría, proporcional directo.
	if in.CategoryWinRate >= 0 {
		c.WinRate = math.Min(in.CategoryWinRate, 1) * winRateCap
	}

	return c
}

// consensusFactor: 1.0 si ambas referencias coinciden en signo, 0.7 si una
// está plana, 0.0 en desacuerdo, 0.5 si ambas planas o datos insuficientes.
func consensusFactor(dirs []int) float64 {
	if len(dirs) < 2 {
		return 0.5
	}
	a, b := dirs[0], dirs[1]
	switch {
	case a == 0 && b == 0:
		return 0.5
	case a == 0 || b == 0:
		return 0.7
	case a == b:
		return 1.0
	default:
		return 0.0
	}
}

// direction fija la dirección por gap fair value vs mid, con fallback al
// signo de la velocity. ok=false si no se puede determinar.
func (s *Scorer) direction(in Input) (domain.Direction, float64, bool) {
	if in.FairValue != nil {
		if mid, ok := in.Contract.Mid(); ok {
			gap := *in.FairValue - mid
			if gap > minDirectionGap {
				return priceForOrFallback(in.Contract, domain.DirectionYes)
			}
			if gap < -minDirectionGap {
				return priceForOrFallback(in.Contract, domain.DirectionNo)
			}
		}
	}
	if in.SpotVelocity > 0 {
		return priceForOrFallback(in.Contract, domain.DirectionYes)
	}
	if in.SpotVelocity < 0 {
		return priceForOrFallback(in.Contract, domain.DirectionNo)
	}
	return "", 0, false
}

func priceForOrFallback(c domain.Contract, dir domain.Direction) (domain.Direction, float64, bool) {
	target, ok := entryPriceFor(c, dir)
	if !ok {
		return "", 0, false
	}
	return dir, target, true
}

// entryPriceFor devuelve el precio de entrada ejecutable para la dirección:
// YES se compra al ask; NO cuesta 1 - bid.
func entryPriceFor(c domain.Contract, dir domain.Direction) (float64, bool) {
	switch dir {
	case domain.DirectionYes:
		if c.Ask == nil {
			return 0, false
		}
		return *c.Ask, true
	case domain.DirectionNo:
		if c.Bid == nil {
			return 0, false
		}
		return 1 - *c.Bid, true
	}
	return 0, false
}

// rawEdge es el edge bruto de la señal respecto al fair value.
func rawEdge(dir domain.Direction, fair, entry float64) float64 {
	if dir == domain.DirectionYes {
		return fair - entry
	}
	return (1 - fair) - entry
}

func confidenceFor(score float64) domain.Confidence {
	switch {
	case score >= 80:
		return domain.ConfidenceHigh
	case score >= 60:
		return domain.ConfidenceMedium
	default:
		return domain.ConfidenceLow
	}
}

func (s *Scorer) inCooldown(marketID string, now time.Time, params domain.Params) bool {
	last, ok := s.lastActionable[marketID]
	if !ok {
		return false
	}
	cooldown := time.Duration(params.Get(domain.ParamCooldownSeconds)) * time.Second
	return now.Sub(last) < cooldown
}

func (s *Scorer) markActionable(marketID string, at time.Time) {
	s.lastActionable[marketID] = at
}
