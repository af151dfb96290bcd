package pricing

// binary.go — pricing cerrado de contratos binarios "spot above strike".
//
// Modelo estándar con rate cero: P(S_T > K) = Φ(d2) con
//
//	d2 = (ln(S/K) - σ²/2·T) / (σ·√T)
//
// T en años (año de 365.25 días). La delta es la sensibilidad de la
// probabilidad al spot: φ(d2) / (S·σ·√T).

import "math"

const hoursPerYear = 24 * 365.25

// BinaryPrice es el resultado del pricer: probabilidad de acabar in-the-money
// y delta respecto al spot.
type BinaryPrice struct {
	Probability float64
	Delta       float64
}

// PriceBinary devuelve probabilidad y delta para "spot above strike at expiry".
//
// Casos degenerados:
//   - hoursToExpiry <= 0: step determinista 0/1 según spot vs strike.
//   - cualquier otro input no positivo: probabilidad 0.5 (incertidumbre
//     máxima) con delta cero — sentinel documentado, no un error.
func PriceBinary(spot, strike, hoursToExpiry, volatility float64) BinaryPrice {
	if hoursToExpiry <= 0 {
		if spot > strike {
			return BinaryPrice{Probability: 1}
		}
		return BinaryPrice{Probability: 0}
	}
	if spot <= 0 || strike <= 0 || volatility <= 0 {
		return BinaryPrice{Probability: 0.5}
	}

	t := hoursToExpiry / hoursPerYear
	sigmaSqrtT := volatility * math.Sqrt(t)
	d2 := (math.Log(spot/strike) - 0.5*volatility*volatility*t) / sigmaSqrtT

	return BinaryPrice{
		Probability: normCDF(d2),
		Delta:       normPDF(d2) / (spot * sigmaSqrtT),
	}
}

// normCDF es la CDF normal estándar vía la aproximación racional de
// Abramowitz & Stegun 26.2.17 (error < 7.5e-8, suficiente para el contrato
// de ~1e-7 de este pricer).
func normCDF(x float64) float64 {
	if x < 0 {
		return 1 - normCDF(-x)
	}
	k := 1 / (1 + 0.2316419*x)
	poly := k * (0.319381530 + k*(-0.356563782+k*(1.781477937+k*(-1.821255978+k*1.330274429))))
	return 1 - normPDF(x)*poly
}

// normPDF es la densidad normal estándar.
func normPDF(x float64) float64 {
	return math.Exp(-x*x/2) / math.Sqrt(2*math.Pi)
}
