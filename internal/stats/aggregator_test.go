package stats

import (
	"testing"
	"time"

	"github.com/postcadence/planner/internal/catalog"
	"github.com/postcadence/planner/internal/models"
	"github.com/postcadence/planner/internal/timeblock"
)

var brt = time.FixedZone("BRT", -3*60*60)

// now is Sunday 2026-10-18 20:00 local.
var now = time.Date(2026, 10, 18, 20, 0, 0, 0, brt)

func testAggregator() *Aggregator {
	return NewAggregator(brt).WithClock(func() time.Time { return now })
}

// monday9 returns an instant in the Monday 09:00 block, weeksAgo weeks back.
func monday9(weeksAgo int) time.Time {
	return time.Date(2026, 10, 12, 9, 30, 0, 0, brt).AddDate(0, 0, -7*weeksAgo)
}

func record(at time.Time, views interface{}) models.PostRecord {
	return models.PostRecord{
		UserID:   "creator-1",
		PostedAt: at,
		Metrics:  map[string]interface{}{models.MetricViews: views},
	}
}

func TestBlockAveragesMondayMorning(t *testing.T) {
	records := []models.PostRecord{
		record(monday9(0), 100.0),
		record(monday9(1), 300.0),
	}

	got := testAggregator().BlockAverages(records, 90, models.MetricViews)
	if len(got) != 1 {
		t.Fatalf("expected 1 block, got %d: %+v", len(got), got)
	}
	want := BlockStat{Block: timeblock.Block{DayOfWeek: 1, BlockStartHour: 9}, Avg: 200, Count: 2}
	if got[0] != want {
		t.Errorf("BlockAverages() = %+v, want %+v", got[0], want)
	}
}

func TestBlockAveragesSkipsMissingMetrics(t *testing.T) {
	noMetric := record(monday9(2), nil)
	delete(noMetric.Metrics, models.MetricViews)

	records := []models.PostRecord{
		record(monday9(0), 100.0),
		record(monday9(1), "300"),
		record(monday9(2), nil),
		record(monday9(3), "n/a"),
		noMetric,
	}

	got := testAggregator().BlockAverages(records, 90, "")
	if len(got) != 1 || got[0].Avg != 200 || got[0].Count != 2 {
		t.Errorf("expected avg 200 over 2 posts, got %+v", got)
	}
}

func TestBlockAveragesWindowAndNoZeroFill(t *testing.T) {
	records := []models.PostRecord{
		record(monday9(0), 100.0),
		record(monday9(20), 5000.0), // outside a 90 day window
		record(time.Date(2026, 10, 14, 19, 0, 0, 0, brt), 50.0),
	}

	got := testAggregator().BlockAverages(records, 90, models.MetricViews)
	if len(got) != 2 {
		t.Fatalf("expected 2 blocks, got %+v", got)
	}
	if got[0].Block != (timeblock.Block{DayOfWeek: 1, BlockStartHour: 9}) || got[0].Avg != 100 {
		t.Errorf("unexpected first block %+v", got[0])
	}
	if got[1].Block != (timeblock.Block{DayOfWeek: 3, BlockStartHour: 18}) || got[1].Count != 1 {
		t.Errorf("unexpected second block %+v", got[1])
	}
}

func TestCategoryStatsFanOut(t *testing.T) {
	first := record(monday9(0), 100.0)
	first.Context = []string{"finance", "education"}
	second := record(monday9(1), 300.0)
	second.Context = []string{"finance"}
	untagged := record(monday9(2), 900.0)

	got := testAggregator().CategoryStatsByBlock([]models.PostRecord{first, second, untagged}, catalog.Context, models.MetricViews)
	if len(got) != 2 {
		t.Fatalf("expected 2 buckets, got %+v", got)
	}
	byLabel := map[string]CategoryBlockStat{}
	for _, s := range got {
		byLabel[s.Label] = s
	}
	if s := byLabel["education"]; s.Avg != 100 || s.Count != 1 {
		t.Errorf("education = %+v, want full contribution of 100", s)
	}
	if s := byLabel["finance"]; s.Avg != 200 || s.Count != 2 {
		t.Errorf("finance = %+v, want avg 200 over 2", s)
	}
	if got[0].Label != "education" {
		t.Errorf("expected label order within a block, got %s first", got[0].Label)
	}
}

func TestComboStatsCartesianProduct(t *testing.T) {
	full := record(monday9(0), 400.0)
	full.Context = []string{"finance", "education"}
	full.Proposal = []string{"tips"}
	full.Format = []string{"reel"}

	noProposal := record(monday9(1), 10000.0)
	noProposal.Context = []string{"finance"}
	noProposal.Format = []string{"reel"}

	got := testAggregator().ComboStatsByBlock([]models.PostRecord{full, noProposal}, models.MetricViews)
	if len(got) != 2 {
		t.Fatalf("expected 2 combos, got %+v", got)
	}
	want := []Combo{
		{Context: "education", Proposal: "tips", Format: "reel"},
		{Context: "finance", Proposal: "tips", Format: "reel"},
	}
	for i, w := range want {
		if got[i].Combo != w || got[i].Avg != 400 || got[i].Count != 1 {
			t.Errorf("combo[%d] = %+v, want %+v at 400", i, got[i], w)
		}
	}
}

func TestHeatmapIntensity(t *testing.T) {
	records := []models.PostRecord{
		record(monday9(0), 400.0),
		record(time.Date(2026, 10, 16, 12, 0, 0, 0, brt), 100.0),
	}
	cells := testAggregator().Heatmap(records, 90, models.MetricViews)
	if len(cells) != 2 {
		t.Fatalf("expected 2 cells, got %+v", cells)
	}
	if cells[0].Intensity != 1 || cells[1].Intensity != 0.25 {
		t.Errorf("unexpected intensities %v and %v", cells[0].Intensity, cells[1].Intensity)
	}
}
