package pipeline

import (
	"sort"

	"github.com/MeKo-Tech/qrengine/internal/utils"
)

// dedupSymbols drops symbols whose quad overlaps an earlier one by at least
// iou. The input is in candidate order, so the lowest scale index wins. The
// survivors are put in reading order.
func dedupSymbols(symbols []Symbol, iou float64) []Symbol {
	var kept []Symbol
	for _, s := range symbols {
		dup := false
		for _, k := range kept {
			if utils.QuadIoU(k.Quad, s.Quad) >= iou {
				dup = true
				break
			}
		}
		if !dup {
			kept = append(kept, s)
		}
	}
	readingOrder(kept)
	return kept
}

// columnTolerance is the fraction of a column's first symbol width within
// which another symbol's left edge counts as the same column.
const columnTolerance = 0.5

// readingOrder sorts symbols into columns, left to right, and each column
// top to bottom. Grouping into columns first keeps symbols stacked in one
// column in order when their left edges differ by a few pixels.
func readingOrder(symbols []Symbol) {
	sort.SliceStable(symbols, func(i, j int) bool {
		return symbols[i].Quad.Bounds().MinX < symbols[j].Quad.Bounds().MinX
	})
	for start := 0; start < len(symbols); {
		head := symbols[start].Quad.Bounds()
		end := start + 1
		for end < len(symbols) && symbols[end].Quad.Bounds().MinX-head.MinX <= columnTolerance*head.Width() {
			end++
		}
		column := symbols[start:end]
		sort.SliceStable(column, func(i, j int) bool {
			bi, bj := column[i].Quad.Bounds(), column[j].Quad.Bounds()
			if bi.MinY != bj.MinY {
				return bi.MinY < bj.MinY
			}
			return bi.MinX < bj.MinX
		})
		start = end
	}
}
