package domain

import "time"

// Direction es el lado del contrato que compra la señal.
type Direction string

const (
	DirectionYes Direction = "YES"
	DirectionNo  Direction = "NO"
)

// Confidence es la confianza cualitativa de una señal.
type Confidence string

const (
	ConfidenceLow    Confidence = "low"
	ConfidenceMedium Confidence = "medium"
	ConfidenceHigh   Confidence = "high"
)

// SignalKind indica qué detector produjo la señal.
// Las señales de arbitraje y momentum tienen prioridad sobre las de score
// compuesto cuando compiten por el mismo mercado.
type SignalKind int

const (
	KindComposite SignalKind = iota
	KindArbitrage
	KindMomentum
)

func (k SignalKind) String() string {
	switch k {
	case KindArbitrage:
		return "arbitrage"
	case KindMomentum:
		return "momentum"
	default:
		return "composite"
	}
}

// Priority devuelve el rango de prioridad para el merge de candidatos.
// Mayor = gana el mercado en disputa.
func (k SignalKind) Priority() int {
	switch k {
	case KindArbitrage:
		return 2
	case KindMomentum:
		return 1
	default:
		return 0
	}
}

// Signal es un candidato direccional de entrada para un mercado.
// Es efímera: se recalcula en cada tick y solo se persiste como audit log,
// nunca como estado autoritativo.
type Signal struct {
	MarketID  string
	Asset     string
	Category  Category
	Kind      SignalKind
	Direction Direction

	RawEdge float64 // edge bruto vs fair value
	NetEdge float64 // edge neto de fees round-trip
	Score   float64 // 0-100

	Confidence    Confidence
	TargetPrice   float64 // precio de entrada propuesto
	FairValue     float64 // probabilidad del ensemble
	KellyFraction float64 // 0 = el sizer la deriva
	At            time.Time
}

// FairValueEstimate es la estimación de probabilidad de una fuente.
type FairValueEstimate struct {
	Source      string
	Probability float64
	Confidence  float64
}

// EnsembleComponent es una fuente incluida en el combinado, con su peso
// ya normalizado sobre las fuentes presentes.
type EnsembleComponent struct {
	Source      string
	Probability float64
	Weight      float64
}

// EnsembleEstimate es la probabilidad combinada de las fuentes disponibles.
// Invariante: la suma de Weight de Components es 1.0 (± 1e-9).
type EnsembleEstimate struct {
	Probability float64
	Components  []EnsembleComponent
}
