package pricing

// volatility.go — volatilidad realizada desde el historial de spot e
// implícita desde quotes de mercados bracketed (inversión por bisección).

import (
	"math"
	"time"
)

const (
	defaultHistoryCapacity = 600

	// Mínimos de datos para volatilidad realizada. Por debajo se devuelve
	// el default configurado, nunca una estimación con 3 puntos.
	minRawObservations    = 10
	minWindowObservations = 5

	// Premium multiplicativo por fat tails de cripto intradía.
	fatTailPremium = 1.2

	secondsPerYear = 365.25 * 24 * 3600

	// Rango y límites de la bisección de volatilidad implícita.
	impliedVolMin  = 0.05
	impliedVolMax  = 5.0
	bisectMaxIters = 50
	bisectTol      = 1e-6

	// Fuera de este rango de probabilidad target la inversión es
	// numéricamente inestable (la CDF está plana) → nil.
	impliedProbMin = 0.01
	impliedProbMax = 0.99
)

// Estimator calcula volatilidad realizada e implícita.
// Es el único escritor de su HistoryArena.
type Estimator struct {
	arena      *HistoryArena
	defaultVol float64
}

// NewEstimator crea un estimator con el default de volatilidad anualizada
// que se devuelve cuando no hay datos suficientes.
func NewEstimator(defaultVol float64) *Estimator {
	if defaultVol <= 0 {
		defaultVol = 0.60
	}
	return &Estimator{
		arena:      NewHistoryArena(defaultHistoryCapacity),
		defaultVol: defaultVol,
	}
}

// Record añade una observación de spot. Rechaza precios no positivos.
func (e *Estimator) Record(asset string, price float64, at time.Time) error {
	return e.arena.Record(asset, price, at)
}

// LastPrice devuelve el último spot registrado del asset.
func (e *Estimator) LastPrice(asset string) (float64, bool) {
	obs, ok := e.arena.Last(asset)
	if !ok {
		return 0, false
	}
	return obs.Price, true
}

// Window expone las observaciones de una ventana (para velocity/momentum).
func (e *Estimator) Window(asset string, window time.Duration, now time.Time) []float64 {
	obs := e.arena.Window(asset, window, now)
	out := make([]float64, len(obs))
	for i, o := range obs {
		out[i] = o.Price
	}
	return out
}

// Realized devuelve la volatilidad anualizada de los log-returns de la
// ventana dada.
//
// Con menos de 10 observaciones totales o menos de 5 dentro de la ventana
// devuelve exactamente el default configurado. La anualización usa el
// spacing MEDIO observado entre puntos, no una frecuencia de muestreo fija:
// sqrt(observaciones_por_año) con obs/año = segundos_año / spacing_medio.
// Al resultado se le aplica el fat-tail premium.
func (e *Estimator) Realized(asset string, window time.Duration, now time.Time) float64 {
	if e.arena.Len(asset) < minRawObservations {
		return e.defaultVol
	}
	obs := e.arena.Window(asset, window, now)
	if len(obs) < minWindowObservations {
		return e.defaultVol
	}

	returns := make([]float64, 0, len(obs)-1)
	for i := 1; i < len(obs); i++ {
		if obs[i-1].Price <= 0 || obs[i].Price <= 0 {
			continue
		}
		returns = append(returns, math.Log(obs[i].Price/obs[i-1].Price))
	}
	if len(returns) < 2 {
		return e.defaultVol
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
	// Bessel: denominador n-1.
	variance /= float64(len(returns) - 1)
	sd := math.Sqrt(variance)

	spacing := obs[len(obs)-1].At.Sub(obs[0].At).Seconds() / float64(len(obs)-1)
	if spacing <= 0 {
		return e.defaultVol
	}
	obsPerYear := secondsPerYear / spacing

	return sd * math.Sqrt(obsPerYear) * fatTailPremium
}

// Implied invierte el pricer binario: busca la volatilidad que reproduce
// targetProbability con el spot/strike/tiempo dados.
//
// Devuelve nil para inputs degenerados (spot/strike/horas no positivos) o
// targets extremos (<= 0.01, >= 0.99). Bisección en [0.05, 5.0], máx 50
// iteraciones o convergencia 1e-6. Si no converge devuelve el midpoint
// igualmente: limitación documentada, no un fallo — el caller obtiene la
// mejor aproximación disponible.
//
// Dirección: con spot > strike, subir la volatilidad BAJA la probabilidad
// modelada (más varianza = más masa bajo el strike); con spot < strike la
// sube. El paso de bisección tiene que ramificar sobre ese signo.
func (e *Estimator) Implied(spot, strike, hoursToExpiry, targetProbability float64) *float64 {
	if spot <= 0 || strike <= 0 || hoursToExpiry <= 0 {
		return nil
	}
	if targetProbability <= impliedProbMin || targetProbability >= impliedProbMax {
		return nil
	}

	lo, hi := impliedVolMin, impliedVolMax
	mid := (lo + hi) / 2

	for i := 0; i < bisectMaxIters; i++ {
		mid = (lo + hi) / 2
		p := PriceBinary(spot, strike, hoursToExpiry, mid).Probability

		if math.Abs(p-targetProbability) < bisectTol {
			return &mid
		}

		if spot >= strike {
			// prob decrece con la vol
			if p > targetProbability {
				lo = mid
			} else {
				hi = mid
			}
		} else {
			// prob crece con la vol
			if p < targetProbability {
				lo = mid
			} else {
				hi = mid
			}
		}
	}
	return &mid
}
