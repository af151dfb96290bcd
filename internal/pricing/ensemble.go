package pricing

// ensemble.go — combinación de 0-5 estimaciones de probabilidad con pesos
// por categoría.
//
// Solo participan las fuentes con valor no nil Y peso configurado positivo
// para la categoría activa: una fuente con peso cero se EXCLUYE, no se
// incluye con peso 0. Los pesos se renormalizan sobre las fuentes presentes
// (suman 1.0 ± 1e-9). Con cero fuentes calificadas no hay estimación: el
// caller trata la ausencia como "este contrato no se puede pricear este
// tick", nunca como un 0.5 por defecto.

import (
	"sort"

	"github.com/alejandrodnm/gembot/internal/domain"
)

// Nombres de las fuentes del ensemble.
const (
	SourceOptionModel = "option_model" // pricer binario sobre vol realizada
	SourceCrossVenue  = "cross_venue"  // sintético de la ladder de brackets
	SourceKalshi      = "kalshi"       // feeds de probabilidad opcionales
	SourceManifold    = "manifold"
	SourceMetaculus   = "metaculus"
)

// WeightTable asigna peso a cada fuente para una categoría.
type WeightTable map[string]float64

// Ensemble combina estimaciones de probabilidad por categoría.
type Ensemble struct {
	tables   map[domain.Category]WeightTable
	fallback WeightTable
}

// NewEnsemble crea el ensemble con las tablas de producción:
// cripto se fía del modelo de opciones y del sintético cross-venue;
// política pesa las fuentes de forecast independientes.
// Una categoría sin tabla usa la tabla default global.
func NewEnsemble() *Ensemble {
	return &Ensemble{
		tables: map[domain.Category]WeightTable{
			domain.CategoryCrypto: {
				SourceOptionModel: 0.45,
				SourceCrossVenue:  0.35,
				SourceKalshi:      0.10,
				SourceManifold:    0.05,
				SourceMetaculus:   0.05,
			},
			domain.CategoryPolitics: {
				SourceCrossVenue: 0.30,
				SourceKalshi:     0.30,
				SourceManifold:   0.20,
				SourceMetaculus:  0.20,
			},
		},
		fallback: WeightTable{
			SourceOptionModel: 0.30,
			SourceCrossVenue:  0.30,
			SourceKalshi:      0.20,
			SourceManifold:    0.10,
			SourceMetaculus:   0.10,
		},
	}
}

// TableFor devuelve la tabla de la categoría, o la default global si la
// categoría no tiene tabla propia.
func (e *Ensemble) TableFor(cat domain.Category) WeightTable {
	if t, ok := e.tables[cat]; ok {
		return t
	}
	return e.fallback
}

// Combine mezcla las fuentes disponibles con los pesos de la categoría.
// ok=false si ninguna fuente califica (valor nil o peso <= 0).
func (e *Ensemble) Combine(cat domain.Category, sources map[string]*float64) (domain.EnsembleEstimate, bool) {
	table := e.TableFor(cat)

	// Orden determinista para que Components sea estable entre ticks.
	names := make([]string, 0, len(sources))
	for name := range sources {
		names = append(names, name)
	}
	sort.Strings(names)

	var totalWeight float64
	var included []domain.EnsembleComponent
	for _, name := range names {
		prob := sources[name]
		if prob == nil {
			continue
		}
		w := table[name]
		if w <= 0 {
			continue
		}
		included = append(included, domain.EnsembleComponent{
			Source:      name,
			Probability: *prob,
			Weight:      w,
		})
		totalWeight += w
	}

	if len(included) == 0 || totalWeight <= 0 {
		return domain.EnsembleEstimate{}, false
	}

	est := domain.EnsembleEstimate{Components: make([]domain.EnsembleComponent, len(included))}
	for i, c := range included {
		c.Weight = c.Weight / totalWeight
		est.Components[i] = c
		est.Probability += c.Weight * c.Probability
	}
	return est, true
}
