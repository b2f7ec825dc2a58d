package inventory

import (
	"sort"

	"github.com/jhoicas/stock-ledger/internal/domain/entity"
)

// LessFEFO define el orden de consumo: vencimiento ascendente, lotes sin vencimiento
// al final (como si vencieran en la fecha máxima) y desempate por orden de inserción.
func LessFEFO(a, b *entity.Batch) bool {
	switch {
	case a.ExpiresAt != nil && b.ExpiresAt != nil:
		if !a.ExpiresAt.Equal(*b.ExpiresAt) {
			return a.ExpiresAt.Before(*b.ExpiresAt)
		}
	case a.ExpiresAt != nil:
		return true
	case b.ExpiresAt != nil:
		return false
	}
	return a.Seq < b.Seq
}

// SortFEFO ordena los lotes in-place según LessFEFO.
func SortFEFO(batches []*entity.Batch) {
	sort.SliceStable(batches, func(i, j int) bool {
		return LessFEFO(batches[i], batches[j])
	})
}

// Allocation cantidad a tomar de un lote concreto.
type Allocation struct {
	Batch    *entity.Batch
	Quantity int64
}

// AllocateFEFO recorre los lotes (ya ordenados FEFO) tomando min(remanente, pendiente)
// hasta cubrir requested. Devuelve las asignaciones y lo que quedó sin cubrir;
// missing > 0 significa que los lotes no alcanzan.
func AllocateFEFO(batches []*entity.Batch, requested int64) (allocs []Allocation, missing int64) {
	missing = requested
	for _, b := range batches {
		if missing <= 0 {
			break
		}
		if b.Quantity <= 0 {
			continue
		}
		take := min(b.Quantity, missing)
		allocs = append(allocs, Allocation{Batch: b, Quantity: take})
		missing -= take
	}
	return allocs, missing
}

// SumRemaining suma la cantidad remanente de los lotes.
func SumRemaining(batches []*entity.Batch) int64 {
	var total int64
	for _, b := range batches {
		total += b.Quantity
	}
	return total
}
