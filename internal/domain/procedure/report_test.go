package procedure

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

func seedProcedure(repo *mockRepo, clinicID uuid.UUID, category string, date time.Time, items []ProcedureItem) *DentalProcedure {
	p := &DentalProcedure{
		ID: uuid.New(), ClinicID: clinicID,
		PatientID: uuid.New(), DentistID: uuid.New(),
		Name: category + " work", Category: category,
		Status: StatusCompleted, ProcedureDate: date, Items: items,
	}
	p.RecomputeTotal()
	repo.procs[p.ID] = p
	return p
}

func line(name string, qty int, unitCost string) ProcedureItem {
	uc := decimal.RequireFromString(unitCost)
	return ProcedureItem{
		ID: uuid.New(), ItemID: uuid.New(), ItemName: name,
		Quantity: qty, UnitCost: uc,
		TotalCost: uc.Mul(decimal.NewFromInt(int64(qty))),
	}
}

func TestUsageReport_AggregatesByItemAndCategory(t *testing.T) {
	repo := newMockRepo()
	svc := NewService(repo, newMockStock())
	clinicID := uuid.New()
	now := time.Now()

	resin := line("Composite Resin", 2, "10")
	seedProcedure(repo, clinicID, "Restorative", now.Add(-48*time.Hour), []ProcedureItem{resin})
	resinAgain := resin
	resinAgain.Quantity, resinAgain.TotalCost = 1, dec("10")
	seedProcedure(repo, clinicID, "Restorative", now.Add(-24*time.Hour), []ProcedureItem{resinAgain})
	seedProcedure(repo, clinicID, "Surgical", now.Add(-24*time.Hour), []ProcedureItem{line("Suture Kit", 1, "12")})

	// Outside the window and outside the clinic.
	seedProcedure(repo, clinicID, "Surgical", now.Add(-240*time.Hour), []ProcedureItem{line("Old", 9, "99")})
	seedProcedure(repo, uuid.New(), "Surgical", now.Add(-24*time.Hour), []ProcedureItem{line("Foreign", 9, "99")})

	rep, err := svc.GenerateUsageReport(context.Background(), clinicID,
		now.Add(-72*time.Hour), now, "")
	if err != nil {
		t.Fatalf("report: %v", err)
	}

	if rep.Procedures != 3 {
		t.Errorf("expected 3 procedures, got %d", rep.Procedures)
	}
	if !rep.TotalCost.Equal(dec("42")) {
		t.Errorf("expected total 42, got %s", rep.TotalCost)
	}
	if !rep.ByCategory["Restorative"].Equal(dec("30")) || !rep.ByCategory["Surgical"].Equal(dec("12")) {
		t.Errorf("unexpected category breakdown: %v", rep.ByCategory)
	}
	// The two resin consumptions share an item id and merge into one line.
	if len(rep.ByItem) != 2 {
		t.Fatalf("expected 2 item lines, got %d", len(rep.ByItem))
	}
	if rep.ByItem[0].ItemName != "Composite Resin" || rep.ByItem[0].Quantity != 3 {
		t.Errorf("expected merged resin line first, got %+v", rep.ByItem[0])
	}
	if rep.ByItem[0].TotalCost.LessThan(rep.ByItem[1].TotalCost) {
		t.Error("expected item lines sorted by cost descending")
	}
}

func TestUsageReport_CategoryFilter(t *testing.T) {
	repo := newMockRepo()
	svc := NewService(repo, newMockStock())
	clinicID := uuid.New()
	now := time.Now()

	seedProcedure(repo, clinicID, "Restorative", now.Add(-24*time.Hour), []ProcedureItem{line("Resin", 1, "10")})
	seedProcedure(repo, clinicID, "Surgical", now.Add(-24*time.Hour), []ProcedureItem{line("Suture", 1, "12")})

	rep, err := svc.GenerateUsageReport(context.Background(), clinicID,
		now.Add(-48*time.Hour), now, "Surgical")
	if err != nil {
		t.Fatalf("report: %v", err)
	}
	if rep.Procedures != 1 || !rep.TotalCost.Equal(dec("12")) {
		t.Errorf("expected surgical only, got %d procedures / %s", rep.Procedures, rep.TotalCost)
	}
}

func TestUsageReport_InvertedRange(t *testing.T) {
	svc := NewService(newMockRepo(), newMockStock())
	now := time.Now()
	_, err := svc.GenerateUsageReport(context.Background(), uuid.New(), now, now.Add(-time.Hour), "")
	if err == nil {
		t.Fatal("expected validation error for inverted range")
	}
}

func TestUsageTrend_WeekHasSevenDailyBuckets(t *testing.T) {
	repo := newMockRepo()
	svc := NewService(repo, newMockStock())
	clinicID := uuid.New()
	now := time.Now()

	seedProcedure(repo, clinicID, "Restorative", now.Add(-2*time.Hour), []ProcedureItem{line("Resin", 2, "10")})
	seedProcedure(repo, clinicID, "Restorative", now.Add(-50*time.Hour), []ProcedureItem{line("Resin", 1, "10")})

	rep, err := svc.GenerateUsageTrend(context.Background(), clinicID, "week")
	if err != nil {
		t.Fatalf("trend: %v", err)
	}
	if len(rep.Series) != 7 {
		t.Fatalf("expected 7 buckets, got %d", len(rep.Series))
	}
	totalQty := 0
	for _, b := range rep.Series {
		totalQty += b.Quantity
	}
	if totalQty != 3 {
		t.Errorf("expected 3 units across buckets, got %d", totalQty)
	}
	if len(rep.TopItems) != 2 {
		t.Errorf("expected 2 top item lines, got %d", len(rep.TopItems))
	}
	if !rep.ByCategory["Restorative"].Equal(dec("30")) {
		t.Errorf("unexpected category breakdown: %v", rep.ByCategory)
	}
}

func TestUsageTrend_BucketCounts(t *testing.T) {
	svc := NewService(newMockRepo(), newMockStock())
	clinicID := uuid.New()

	cases := map[string]int{"week": 7, "month": 30, "quarter": 13, "year": 12}
	for period, want := range cases {
		rep, err := svc.GenerateUsageTrend(context.Background(), clinicID, period)
		if err != nil {
			t.Fatalf("%s: %v", period, err)
		}
		if len(rep.Series) != want {
			t.Errorf("%s: expected %d buckets, got %d", period, want, len(rep.Series))
		}
	}

	if _, err := svc.GenerateUsageTrend(context.Background(), clinicID, "decade"); err == nil {
		t.Error("expected validation error for unknown period")
	}
}

func TestCommonItems_UsesHistoryWhenPresent(t *testing.T) {
	repo := newMockRepo()
	svc := NewService(repo, newMockStock())
	clinicID := uuid.New()
	now := time.Now()

	file := line("K-File 25mm", 2, "3")
	fileAgain := file
	fileAgain.Quantity, fileAgain.TotalCost = 4, dec("12")
	seedProcedure(repo, clinicID, "Endodontic", now.Add(-24*time.Hour), []ProcedureItem{file})
	seedProcedure(repo, clinicID, "Endodontic", now.Add(-48*time.Hour), []ProcedureItem{fileAgain})

	items, err := svc.CommonItems(context.Background(), clinicID, "Endodontic")
	if err != nil {
		t.Fatalf("common items: %v", err)
	}
	if len(items) != 1 {
		t.Fatalf("expected 1 item, got %d", len(items))
	}
	// Average of 2 and 4 for the same item id.
	if items[0].Quantity != 3 {
		t.Errorf("expected typical quantity 3, got %d", items[0].Quantity)
	}
}

func TestCommonItems_KeywordFallback(t *testing.T) {
	repo := newMockRepo()
	stock := newMockStock()
	svc := NewService(repo, stock)
	clinicID := uuid.New()

	stock.addItem(clinicID, "K-File 25mm", "Endodontic", 10, "3")
	stock.addItem(clinicID, "Gutta Percha Points", "Endodontic", 10, "4")
	stock.addItem(clinicID, "Composite Resin", "Restorative", 10, "10")

	items, err := svc.CommonItems(context.Background(), clinicID, "Endodontic")
	if err != nil {
		t.Fatalf("common items: %v", err)
	}
	if len(items) != 2 {
		t.Fatalf("expected 2 keyword matches, got %d: %+v", len(items), items)
	}
	names := map[string]bool{}
	for _, ci := range items {
		names[ci.ItemName] = true
	}
	if !names["K-File 25mm"] || !names["Gutta Percha Points"] {
		t.Errorf("unexpected matches: %+v", items)
	}
}

func TestCommonItems_GenericFallback(t *testing.T) {
	repo := newMockRepo()
	stock := newMockStock()
	svc := NewService(repo, stock)
	clinicID := uuid.New()

	stock.addItem(clinicID, "Cotton Rolls", "Consumables", 100, "0.10")
	stock.addItem(clinicID, "Saliva Ejectors", "Consumables", 100, "0.20")

	// No history and no keyword table entry for this category.
	items, err := svc.CommonItems(context.Background(), clinicID, "Prosthodontic")
	if err != nil {
		t.Fatalf("common items: %v", err)
	}
	if len(items) != 2 {
		t.Fatalf("expected generic consumables fallback, got %d", len(items))
	}
}
