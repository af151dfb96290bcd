package pricing

import (
	"fmt"
	"time"

	"github.com/alejandrodnm/gembot/internal/domain"
)

// HistoryArena guarda observaciones de precio en ring buffers de capacidad
// fija, uno por asset. Eviction por índice (el más viejo se sobreescribe),
// sin shifts de slice. El componente que escribe es el único dueño.
type HistoryArena struct {
	capacity int
	buffers  map[string]*ring
}

// NewHistoryArena crea un arena con la capacidad dada por asset.
func NewHistoryArena(capacity int) *HistoryArena {
	if capacity <= 0 {
		capacity = defaultHistoryCapacity
	}
	return &HistoryArena{
		capacity: capacity,
		buffers:  make(map[string]*ring),
	}
}

// Record añade una observación. Rechaza precios no positivos.
func (a *HistoryArena) Record(asset string, price float64, at time.Time) error {
	if price <= 0 {
		return fmt.Errorf("pricing.HistoryArena.Record: precio no positivo %.6f para %s", price, asset)
	}
	r, ok := a.buffers[asset]
	if !ok {
		r = newRing(a.capacity)
		a.buffers[asset] = r
	}
	r.push(domain.PriceObservation{Price: price, At: at})
	return nil
}

// Len devuelve cuántas observaciones hay para el asset.
func (a *HistoryArena) Len(asset string) int {
	r, ok := a.buffers[asset]
	if !ok {
		return 0
	}
	return r.count
}

// Last devuelve la observación más reciente.
func (a *HistoryArena) Last(asset string) (domain.PriceObservation, bool) {
	r, ok := a.buffers[asset]
	if !ok || r.count == 0 {
		return domain.PriceObservation{}, false
	}
	return r.at(r.count - 1), true
}

// Window devuelve las observaciones dentro de [now-window, now], en orden
// cronológico (newest-last).
func (a *HistoryArena) Window(asset string, window time.Duration, now time.Time) []domain.PriceObservation {
	r, ok := a.buffers[asset]
	if !ok {
		return nil
	}
	cutoff := now.Add(-window)
	var out []domain.PriceObservation
	for i := 0; i < r.count; i++ {
		obs := r.at(i)
		if obs.At.Before(cutoff) {
			continue
		}
		out = append(out, obs)
	}
	return out
}

// ring es un buffer circular de observaciones.
type ring struct {
	data  []domain.PriceObservation
	start int
	count int
}

func newRing(capacity int) *ring {
	return &ring{data: make([]domain.PriceObservation, capacity)}
}

func (r *ring) push(obs domain.PriceObservation) {
	if r.count < len(r.data) {
		r.data[(r.start+r.count)%len(r.data)] = obs
		r.count++
		return
	}
	// Lleno: sobreescribir el más viejo y avanzar start.
	r.data[r.start] = obs
	r.start = (r.start + 1) % len(r.data)
}

// at devuelve la observación i-ésima en orden cronológico (0 = más vieja).
func (r *ring) at(i int) domain.PriceObservation {
	return r.data[(r.start+i)%len(r.data)]
}
