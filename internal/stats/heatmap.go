package stats

import (
	"github.com/postcadence/planner/internal/models"
)

// Heatmap returns one cell per grid block with data, with intensity scaled
// so the best cell is 1.
func (a *Aggregator) Heatmap(records []models.PostRecord, periodDays int, metric string) []models.HeatmapCell {
	blocks := a.BlockAverages(records, periodDays, metric)

	var peak float64
	for _, b := range blocks {
		if b.Avg > peak {
			peak = b.Avg
		}
	}

	cells := make([]models.HeatmapCell, 0, len(blocks))
	for _, b := range blocks {
		cell := models.HeatmapCell{
			DayOfWeek:      b.DayOfWeek,
			BlockStartHour: b.BlockStartHour,
			Avg:            b.Avg,
			Count:          b.Count,
		}
		if peak > 0 {
			cell.Intensity = b.Avg / peak
		}
		cells = append(cells, cell)
	}
	return cells
}
