package engine

import (
	"testing"

	"github.com/alejandrodnm/gembot/internal/domain"
	"github.com/stretchr/testify/assert"
)

func TestReconcile_CleanWhenBothSidesMatch(t *testing.T) {
	local := []domain.Position{
		{MarketID: "m1", IsOpen: true},
		{MarketID: "m2", IsOpen: true},
	}
	venue := []domain.VenuePosition{
		{Instrument: "m1", Quantity: 100},
		{Instrument: "m2", Quantity: 50},
	}

	report := Reconcile(local, venue)
	assert.True(t, report.Clean())
	assert.ElementsMatch(t, []string{"m1", "m2"}, report.Matched)
}

func TestReconcile_PhantomAndOrphaned(t *testing.T) {
	local := []domain.Position{
		{MarketID: "m1", IsOpen: true},
		{MarketID: "m2", IsOpen: true}, // solo local → phantom
	}
	venue := []domain.VenuePosition{
		{Instrument: "m1", Quantity: 100},
		{Instrument: "m3", Quantity: 25}, // solo venue → orphaned
	}

	report := Reconcile(local, venue)
	assert.False(t, report.Clean())
	assert.Equal(t, []string{"m1"}, report.Matched)
	assert.Equal(t, []string{"m2"}, report.Phantom)
	assert.Equal(t, []string{"m3"}, report.Orphaned)
}

func TestReconcile_ClosedLocalsIgnored(t *testing.T) {
	local := []domain.Position{
		{MarketID: "m1", IsOpen: false}, // cerrada: no cuenta como phantom
	}
	report := Reconcile(local, nil)
	assert.True(t, report.Clean())
	assert.Empty(t, report.Matched)
}
