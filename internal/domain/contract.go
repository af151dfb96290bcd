package domain

import (
	"fmt"
	"time"
)

// Category clasifica el evento subyacente de un contrato.
// Las tablas de pesos del ensemble se indexan por categoría: una categoría
// sin tabla propia usa la tabla default, nunca un fallback implícito.
type Category string

const (
	CategoryCrypto   Category = "crypto"
	CategoryPolitics Category = "politics"
	CategorySports   Category = "sports"
	CategoryOther    Category = "other"
)

// Contract representa un contrato binario "above/below" en el venue fino.
// Paga $1 si el spot está por encima del strike al settlement, $0 si no.
// La identidad es MarketID (único por instrumento del venue).
type Contract struct {
	MarketID       string
	Asset          string // "BTC", "ETH"
	Strike         float64
	ExpiryTime     time.Time
	SettlementHour int // hora UTC de settlement (para matchear ladders)
	EventTitle     string
	Category       Category

	// Bid/Ask son probabilidades en [0,1].
	// Un lado ausente es nil, NUNCA 0: 0 es un precio válido de mercado muerto.
	Bid *float64
	Ask *float64
}

// HoursToExpiry devuelve las horas hasta expiry. Devuelve 0 si ya expiró.
func (c Contract) HoursToExpiry(now time.Time) float64 {
	h := c.ExpiryTime.Sub(now).Hours()
	if h < 0 {
		return 0
	}
	return h
}

// Active devuelve true si el contrato aún no ha expirado.
func (c Contract) Active(now time.Time) bool {
	return now.Before(c.ExpiryTime)
}

// TwoSided devuelve true si el contrato tiene bid Y ask cotizados.
func (c Contract) TwoSided() bool {
	return c.Bid != nil && c.Ask != nil
}

// Mid devuelve el midpoint bid/ask. ok=false si falta algún lado.
func (c Contract) Mid() (float64, bool) {
	if !c.TwoSided() {
		return 0, false
	}
	return (*c.Bid + *c.Ask) / 2, true
}

// Spread devuelve ask - bid. ok=false si falta algún lado.
func (c Contract) Spread() (float64, bool) {
	if !c.TwoSided() {
		return 0, false
	}
	return *c.Ask - *c.Bid, true
}

// PriceObservation es un punto de precio spot con timestamp.
// Se acumulan en ring buffers de capacidad fija por asset (newest-last).
type PriceObservation struct {
	Price float64
	At    time.Time
}

// Bracket es un contrato de rango [Floor, Floor+width) en el venue de
// referencia. Los precios son probabilidades; un lado sin liquidez es nil.
type Bracket struct {
	Floor float64
	Bid   *float64
	Ask   *float64
}

// Liquid devuelve true si el bracket tiene ambos lados cotizados.
func (b Bracket) Liquid() bool {
	return b.Bid != nil && b.Ask != nil
}

// Mid devuelve el midpoint del bracket. ok=false si falta algún lado.
func (b Bracket) Mid() (float64, bool) {
	if !b.Liquid() {
		return 0, false
	}
	return (*b.Bid + *b.Ask) / 2, true
}

// BracketLadder es el conjunto ordenado de brackets adyacentes de un evento
// de settlement en el venue de referencia. La suma de mids de los brackets
// con floor >= X aproxima P(spot > X), pero bajo liquidez fina puede salirse
// de [0,1] y debe clamparse antes de usarse.
type BracketLadder struct {
	Asset          string
	SettlementHour int
	Brackets       []Bracket
}

// Validate comprueba el invariante de floors estrictamente crecientes.
func (l BracketLadder) Validate() error {
	for i := 1; i < len(l.Brackets); i++ {
		if l.Brackets[i].Floor <= l.Brackets[i-1].Floor {
			return fmt.Errorf("domain.BracketLadder: floors no crecientes en posición %d (%.0f <= %.0f)",
				i, l.Brackets[i].Floor, l.Brackets[i-1].Floor)
		}
	}
	return nil
}

// Quote es el best bid/ask de un instrumento en un momento dado.
type Quote struct {
	Bid         *float64
	Ask         *float64
	LastTradeAt time.Time
	At          time.Time
}

// TwoSided devuelve true si la quote tiene ambos lados.
func (q Quote) TwoSided() bool {
	return q.Bid != nil && q.Ask != nil
}

// Mid devuelve el midpoint. ok=false si falta algún lado.
func (q Quote) Mid() (float64, bool) {
	if !q.TwoSided() {
		return 0, false
	}
	return (*q.Bid + *q.Ask) / 2, true
}

// Spread devuelve ask - bid. ok=false si falta algún lado.
func (q Quote) Spread() (float64, bool) {
	if !q.TwoSided() {
		return 0, false
	}
	return *q.Ask - *q.Bid, true
}

// Depth es la profundidad disponible del orderbook en USD (best-effort).
type Depth struct {
	BidUSD float64
	AskUSD float64
}

// Ptr es un helper para construir lados opcionales de quotes en tests y adapters.
func Ptr(v float64) *float64 { return &v }
