package domain

// params.go — knobs numéricos del engine con bounds independientes.
//
// Los valores por defecto son constantes empíricas heredadas de producción,
// no invariantes: el learner (o un override del operador vía storage) puede
// moverlos DENTRO de sus bounds. Cada tick toma un snapshot inmutable al
// empezar; el learner publica snapshots nuevos entre ticks, nunca durante.

// Nombres de parámetros. Se usan como keys en storage (tabla parameters).
const (
	ParamEntryThreshold    = "entry_threshold"     // score mínimo (0-100) para entrar
	ParamMinNetEdge        = "min_net_edge"        // edge neto mínimo en modo paper
	ParamMinNetEdgeLive    = "min_net_edge_live"   // edge neto mínimo en modo live (más estricto)
	ParamKellyMultiplier   = "kelly_multiplier"    // fracción del Kelly completo
	ParamStopLossWidth     = "stop_loss_width"     // distancia del stop al entry
	ParamTakeProfitWidth   = "take_profit_width"   // distancia del take-profit al entry
	ParamMaxHoldSeconds    = "max_hold_seconds"    // hold máximo por defecto
	ParamMaxConcurrent     = "max_concurrent"      // posiciones abiertas simultáneas
	ParamMaxCapitalAtRisk  = "max_capital_at_risk" // suma de sizes / balance
	ParamMaxPositionUSD    = "max_position_usd"    // cap absoluto por trade
	ParamMinPositionUSD    = "min_position_usd"    // floor por trade
	ParamDailyLossFloor    = "daily_loss_floor"    // PnL diario mínimo antes de parar
	ParamMaxDrawdown       = "max_drawdown"        // kill switch de drawdown
	ParamCooldownSeconds   = "cooldown_seconds"    // cooldown post-señal por mercado
	ParamMaxSpreadLive     = "max_spread_live"     // spread máximo aceptable en live
	ParamMinScoreLive      = "min_score_live"      // score mínimo en live
	ParamVelocityThreshold = "velocity_threshold"  // % de movimiento spot para velocity máxima
)

// ParamBounds define el default y el rango válido de un knob.
type ParamBounds struct {
	Default float64
	Min     float64
	Max     float64
}

// Bounds es la tabla de bounds de todos los parámetros tunables.
// El learner solo puede mover valores dentro de estos rangos.
var Bounds = map[string]ParamBounds{
	ParamEntryThreshold:    {Default: 55, Min: 35, Max: 85},
	ParamMinNetEdge:        {Default: 0.03, Min: 0.01, Max: 0.10},
	ParamMinNetEdgeLive:    {Default: 0.05, Min: 0.03, Max: 0.12},
	ParamKellyMultiplier:   {Default: 0.25, Min: 0.05, Max: 0.25},
	ParamStopLossWidth:     {Default: 0.10, Min: 0.03, Max: 0.25},
	ParamTakeProfitWidth:   {Default: 0.15, Min: 0.05, Max: 0.40},
	ParamMaxHoldSeconds:    {Default: 600, Min: 120, Max: 7200},
	ParamMaxConcurrent:     {Default: 5, Min: 1, Max: 10},
	ParamMaxCapitalAtRisk:  {Default: 0.50, Min: 0.10, Max: 0.80},
	ParamMaxPositionUSD:    {Default: 100, Min: 5, Max: 1000},
	ParamMinPositionUSD:    {Default: 5, Min: 1, Max: 50},
	ParamDailyLossFloor:    {Default: -50, Min: -1000, Max: 0},
	ParamMaxDrawdown:       {Default: 0.20, Min: 0.05, Max: 0.30},
	ParamCooldownSeconds:   {Default: 300, Min: 60, Max: 1800},
	ParamMaxSpreadLive:     {Default: 0.08, Min: 0.02, Max: 0.20},
	ParamMinScoreLive:      {Default: 60, Min: 40, Max: 90},
	ParamVelocityThreshold: {Default: 0.004, Min: 0.001, Max: 0.02},
}

// Params es un snapshot inmutable de los knobs. Version crece en cada
// publicación del learner o del operador.
type Params struct {
	Version int
	values  map[string]float64
}

// DefaultParams construye el snapshot inicial con todos los defaults.
func DefaultParams() Params {
	vals := make(map[string]float64, len(Bounds))
	for name, b := range Bounds {
		vals[name] = b.Default
	}
	return Params{Version: 1, values: vals}
}

// Get devuelve el valor de un parámetro. Un nombre desconocido devuelve 0:
// fail-closed, igual que las categorías sin tabla de pesos.
func (p Params) Get(name string) float64 {
	return p.values[name]
}

// With devuelve un snapshot nuevo con el parámetro clampeado a sus bounds.
// El snapshot original no se modifica.
func (p Params) With(name string, value float64) Params {
	b, ok := Bounds[name]
	if !ok {
		return p
	}
	if value < b.Min {
		value = b.Min
	}
	if value > b.Max {
		value = b.Max
	}
	vals := make(map[string]float64, len(p.values))
	for k, v := range p.values {
		vals[k] = v
	}
	vals[name] = value
	return Params{Version: p.Version + 1, values: vals}
}

// Values devuelve una copia del mapping nombre → valor (para persistencia).
func (p Params) Values() map[string]float64 {
	out := make(map[string]float64, len(p.values))
	for k, v := range p.values {
		out[k] = v
	}
	return out
}

// ParamsFrom reconstruye un snapshot desde valores persistidos, clampeando
// cada uno a sus bounds e ignorando nombres desconocidos.
func ParamsFrom(values map[string]float64, version int) Params {
	p := DefaultParams()
	p.Version = version
	for name, v := range values {
		b, ok := Bounds[name]
		if !ok {
			continue
		}
		if v < b.Min {
			v = b.Min
		}
		if v > b.Max {
			v = b.Max
		}
		p.values[name] = v
	}
	return p
}
