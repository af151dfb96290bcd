package pricing

import (
	"testing"

	"github.com/alejandrodnm/gembot/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEnsemble_Combine_AllSources(t *testing.T) {
	e := NewEnsemble()
	sources := map[string]*float64{
		SourceOptionModel: domain.Ptr(0.60),
		SourceCrossVenue:  domain.Ptr(0.55),
		SourceKalshi:      domain.Ptr(0.58),
		SourceManifold:    domain.Ptr(0.62),
		SourceMetaculus:   domain.Ptr(0.57),
	}

	est, ok := e.Combine(domain.CategoryCrypto, sources)
	require.True(t, ok)
	require.Len(t, est.Components, 5)

	// Invariante: los pesos renormalizados suman 1.0 ± 1e-9.
	var sum float64
	for _, c := range est.Components {
		sum += c.Weight
	}
	assert.InDelta(t, 1.0, sum, 1e-9)

	// La tabla cripto pesa el modelo 0.45: el combinado cae entre los extremos
	// y cerca del modelo.
	assert.Greater(t, est.Probability, 0.55)
	assert.Less(t, est.Probability, 0.62)
}

func TestEnsemble_Combine_NilSourcesExcluded(t *testing.T) {
	e := NewEnsemble()
	sources := map[string]*float64{
		SourceOptionModel: domain.Ptr(0.60),
		SourceCrossVenue:  nil,
		SourceKalshi:      nil,
	}

	est, ok := e.Combine(domain.CategoryCrypto, sources)
	require.True(t, ok)
	require.Len(t, est.Components, 1)
	assert.Equal(t, SourceOptionModel, est.Components[0].Source)
	assert.InDelta(t, 1.0, est.Components[0].Weight, 1e-9)
	assert.Equal(t, 0.60, est.Probability)
}

func TestEnsemble_Combine_ZeroWeightSourceExcluded(t *testing.T) {
	e := NewEnsemble()
	// La tabla politics no incluye option_model: peso cero → fuera.
	sources := map[string]*float64{
		SourceOptionModel: domain.Ptr(0.99),
		SourceKalshi:      domain.Ptr(0.40),
		SourceManifold:    domain.Ptr(0.44),
	}

	est, ok := e.Combine(domain.CategoryPolitics, sources)
	require.True(t, ok)
	require.Len(t, est.Components, 2)
	for _, c := range est.Components {
		assert.NotEqual(t, SourceOptionModel, c.Source)
	}
	assert.Less(t, est.Probability, 0.45)
}

func TestEnsemble_Combine_NoQualifyingSources(t *testing.T) {
	e := NewEnsemble()

	_, ok := e.Combine(domain.CategoryCrypto, map[string]*float64{
		SourceOptionModel: nil,
		SourceCrossVenue:  nil,
	})
	assert.False(t, ok)

	_, ok = e.Combine(domain.CategoryCrypto, nil)
	assert.False(t, ok)
}

func TestEnsemble_UnknownCategoryUsesFallback(t *testing.T) {
	e := NewEnsemble()
	table := e.TableFor(domain.CategorySports)
	assert.Equal(t, e.fallback, table)

	est, ok := e.Combine(domain.CategorySports, map[string]*float64{
		SourceOptionModel: domain.Ptr(0.50),
		SourceCrossVenue:  domain.Ptr(0.70),
	})
	require.True(t, ok)
	// Fallback: ambos 0.30 → renormalizados 0.5/0.5.
	assert.InDelta(t, 0.60, est.Probability, 1e-9)
}
