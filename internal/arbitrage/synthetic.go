package arbitrage

// synthetic.go — curva sintética "probabilidad de acabar por encima de X"
// construida desde la ladder de brackets del venue de referencia.
//
// P(spot > strike_i) ≈ Σ mid(bracket_j) para todo j con floor_j >= strike_i:
// una suffix sum sobre la ladder ordenada por strike. Bajo liquidez fina la
// suma puede salirse de [0,1] y se clampea antes de compararla con quotes.

import (
	"fmt"
	"math"

	"github.com/alejandrodnm/gembot/internal/domain"
)

// DefaultStrikeTolerance es la distancia máxima de matching en unidades
// absolutas de la moneda base. Absoluta, no porcentual: el venue de
// referencia lista brackets en incrementos fijos ($500/$1000), así que la
// distancia relevante es la mitad del incremento, no una fracción del spot.
const DefaultStrikeTolerance = 500.0

// CurvePoint es el valor de la curva sintética en un strike de la ladder.
type CurvePoint struct {
	Strike       float64
	Mid          float64 // suma de mids (sin clampear — ver ClampedMid)
	BidSum       float64
	AskSum       float64
	LiquidCount  int // brackets con ambos lados cotizados
	BracketCount int // brackets incluidos en la suma
}

// ClampedMid devuelve la probabilidad sintética clampeada a [0,1].
func (p CurvePoint) ClampedMid() float64 {
	return math.Max(0, math.Min(1, p.Mid))
}

// Curve es la curva sintética completa, con strikes crecientes.
type Curve []CurvePoint

// AboveCurve construye la curva sintética desde una ladder.
// Para cada strike suma mid/bid/ask de todos los brackets con floor >= strike
// (suffix sum de derecha a izquierda).
func AboveCurve(ladder domain.BracketLadder) (Curve, error) {
	if err := ladder.Validate(); err != nil {
		return nil, fmt.Errorf("arbitrage.AboveCurve: %w", err)
	}
	if len(ladder.Brackets) == 0 {
		return nil, nil
	}

	curve := make(Curve, len(ladder.Brackets))
	var midSum, bidSum, askSum float64
	var liquid, count int

	for i := len(ladder.Brackets) - 1; i >= 0; i-- {
		b := ladder.Brackets[i]
		count++
		if mid, ok := b.Mid(); ok {
			midSum += mid
			liquid++
		}
		if b.Bid != nil {
			bidSum += *b.Bid
		}
		if b.Ask != nil {
			askSum += *b.Ask
		}
		curve[i] = CurvePoint{
			Strike:       b.Floor,
			Mid:          midSum,
			BidSum:       bidSum,
			AskSum:       askSum,
			LiquidCount:  liquid,
			BracketCount: count,
		}
	}
	return curve, nil
}

// MatchStrike busca el punto de la curva más cercano al strike objetivo.
// Rechaza el match si la distancia absoluta supera la tolerancia.
func (c Curve) MatchStrike(target, tolerance float64) (CurvePoint, bool) {
	if len(c) == 0 {
		return CurvePoint{}, false
	}
	best := c[0]
	bestDist := math.Abs(c[0].Strike - target)
	for _, p := range c[1:] {
		if d := math.Abs(p.Strike - target); d < bestDist {
			best, bestDist = p, d
		}
	}
	if bestDist > tolerance {
		return CurvePoint{}, false
	}
	return best, true
}

// Edge es un desajuste direccional entre el sintético y la quote del venue fino.
type Edge struct {
	Direction     domain.Direction
	RawEdge       float64 // desajuste bruto en puntos de probabilidad
	NetEdge       float64 // bruto menos fees round-trip
	SyntheticProb float64
	EntryPrice    float64 // precio de entrada propuesto en el venue fino
}

// DetectEdge compara el sintético con las quotes del contrato.
//
//   - sintético > ask + fees → comprar YES (el venue fino infravalora)
//   - sintético < bid - fees → comprar NO (el venue fino sobrevalora)
//
// El edge se compara SIEMPRE neto de fees round-trip: un gap bruto que no
// cubre dos cruces de fee no es accionable. ok=false si no hay edge neto
// por encima de minNetEdge o si falta el lado relevante de la quote.
func DetectEdge(contract domain.Contract, point CurvePoint, feeRate, minNetEdge float64) (Edge, bool) {
	synth := point.ClampedMid()

	if contract.Ask != nil && synth > *contract.Ask {
		entry := *contract.Ask
		raw := synth - entry
		net := raw - roundTripFees(entry, feeRate)
		if net > minNetEdge {
			return Edge{
				Direction:     domain.DirectionYes,
				RawEdge:       raw,
				NetEdge:       net,
				SyntheticProb: synth,
				EntryPrice:    entry,
			}, true
		}
	}

	if contract.Bid != nil && synth < *contract.Bid {
		// Comprar NO cuesta (1 - bid YES).
		entry := 1 - *contract.Bid
		raw := *contract.Bid - synth
		net := raw - roundTripFees(entry, feeRate)
		if net > minNetEdge {
			return Edge{
				Direction:     domain.DirectionNo,
				RawEdge:       raw,
				NetEdge:       net,
				SyntheticProb: synth,
				EntryPrice:    entry,
			}, true
		}
	}

	return Edge{}, false
}

// roundTripFees estima el coste de fees de entrada + salida sobre el precio
// de entrada.
func roundTripFees(entryPrice, feeRate float64) float64 {
	return 2 * feeRate * entryPrice
}
