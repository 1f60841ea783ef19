package procedure

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/clinicore/clinicore/internal/domain/inventory"
	"github.com/clinicore/clinicore/internal/platform/apperr"
)

// UsageLine is a per-item consumption aggregate.
type UsageLine struct {
	ItemID    uuid.UUID       `json:"item_id"`
	ItemName  string          `json:"item_name"`
	Quantity  int             `json:"quantity"`
	TotalCost decimal.Decimal `json:"total_cost"`
}

// UsageReport is the date-bounded consumption rollup.
type UsageReport struct {
	From       time.Time                  `json:"from"`
	To         time.Time                  `json:"to"`
	Category   string                     `json:"category,omitempty"`
	Procedures int                        `json:"procedures"`
	TotalCost  decimal.Decimal            `json:"total_cost"`
	ByItem     []UsageLine                `json:"by_item"`
	ByCategory map[string]decimal.Decimal `json:"by_category"`
}

// GenerateUsageReport aggregates consumed quantity and cost per item and per
// procedure category over a date window.
func (s *Service) GenerateUsageReport(ctx context.Context, clinicID uuid.UUID, from, to time.Time, category string) (*UsageReport, error) {
	if !from.Before(to) {
		return nil, apperr.Validation("from must be before to")
	}
	procs, err := s.repo.ListInRange(ctx, clinicID, from, to, category)
	if err != nil {
		return nil, err
	}

	rep := &UsageReport{
		From: from, To: to, Category: category,
		Procedures: len(procs),
		TotalCost:  decimal.Zero,
		ByCategory: map[string]decimal.Decimal{},
	}
	byItem := map[uuid.UUID]*UsageLine{}
	for _, p := range procs {
		for _, li := range p.Items {
			rep.TotalCost = rep.TotalCost.Add(li.TotalCost)

			cat := rep.ByCategory[p.Category]
			rep.ByCategory[p.Category] = cat.Add(li.TotalCost)

			line, ok := byItem[li.ItemID]
			if !ok {
				line = &UsageLine{ItemID: li.ItemID, ItemName: li.ItemName, TotalCost: decimal.Zero}
				byItem[li.ItemID] = line
			}
			line.Quantity += li.Quantity
			line.TotalCost = line.TotalCost.Add(li.TotalCost)
		}
	}
	for _, line := range byItem {
		rep.ByItem = append(rep.ByItem, *line)
	}
	sort.Slice(rep.ByItem, func(i, j int) bool {
		return rep.ByItem[i].TotalCost.GreaterThan(rep.ByItem[j].TotalCost)
	})
	return rep, nil
}

// TrendBucket is one point of the usage time series.
type TrendBucket struct {
	Label     string          `json:"label"`
	Start     time.Time       `json:"start"`
	Quantity  int             `json:"quantity"`
	TotalCost decimal.Decimal `json:"total_cost"`
}

// TrendReport is the windowed usage series with its top items and per
// category cost breakdown.
type TrendReport struct {
	Period     string                     `json:"period"`
	Series     []TrendBucket              `json:"series"`
	TopItems   []UsageLine                `json:"top_items"`
	ByCategory map[string]decimal.Decimal `json:"by_category"`
}

const trendTopN = 5

// GenerateUsageTrend buckets consumption by day, week or month depending on
// the requested period: week is 7 daily buckets, month 30 daily, quarter 13
// weekly, year 12 monthly.
func (s *Service) GenerateUsageTrend(ctx context.Context, clinicID uuid.UUID, period string) (*TrendReport, error) {
	now := time.Now()
	var buckets int
	var step time.Duration
	var label func(time.Time) string

	switch period {
	case "week":
		buckets, step, label = 7, 24*time.Hour, func(t time.Time) string { return t.Format("2006-01-02") }
	case "month":
		buckets, step, label = 30, 24*time.Hour, func(t time.Time) string { return t.Format("2006-01-02") }
	case "quarter":
		buckets, step, label = 13, 7*24*time.Hour, func(t time.Time) string { return "week of " + t.Format("2006-01-02") }
	case "year":
		buckets, step, label = 12, 0, func(t time.Time) string { return t.Format("2006-01") }
	default:
		return nil, apperr.Validation("invalid period: %s (want week, month, quarter or year)", period)
	}

	starts := make([]time.Time, buckets)
	if period == "year" {
		first := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, now.Location()).AddDate(0, -(buckets - 1), 0)
		for i := range starts {
			starts[i] = first.AddDate(0, i, 0)
		}
	} else {
		first := now.Truncate(24 * time.Hour).Add(-time.Duration(buckets-1) * step)
		for i := range starts {
			starts[i] = first.Add(time.Duration(i) * step)
		}
	}
	windowStart := starts[0]

	procs, err := s.repo.ListInRange(ctx, clinicID, windowStart, now.Add(time.Second), "")
	if err != nil {
		return nil, err
	}

	rep := &TrendReport{
		Period:     period,
		Series:     make([]TrendBucket, buckets),
		ByCategory: map[string]decimal.Decimal{},
	}
	for i, start := range starts {
		rep.Series[i] = TrendBucket{Label: label(start), Start: start, TotalCost: decimal.Zero}
	}

	bucketFor := func(t time.Time) int {
		if period == "year" {
			months := (t.Year()-starts[0].Year())*12 + int(t.Month()) - int(starts[0].Month())
			return months
		}
		return int(t.Sub(starts[0]) / step)
	}

	byItem := map[uuid.UUID]*UsageLine{}
	for _, p := range procs {
		idx := bucketFor(p.ProcedureDate)
		if idx < 0 || idx >= buckets {
			continue
		}
		for _, li := range p.Items {
			rep.Series[idx].Quantity += li.Quantity
			rep.Series[idx].TotalCost = rep.Series[idx].TotalCost.Add(li.TotalCost)

			cat := rep.ByCategory[p.Category]
			rep.ByCategory[p.Category] = cat.Add(li.TotalCost)

			line, ok := byItem[li.ItemID]
			if !ok {
				line = &UsageLine{ItemID: li.ItemID, ItemName: li.ItemName, TotalCost: decimal.Zero}
				byItem[li.ItemID] = line
			}
			line.Quantity += li.Quantity
			line.TotalCost = line.TotalCost.Add(li.TotalCost)
		}
	}

	for _, line := range byItem {
		rep.TopItems = append(rep.TopItems, *line)
	}
	sort.Slice(rep.TopItems, func(i, j int) bool {
		return rep.TopItems[i].TotalCost.GreaterThan(rep.TopItems[j].TotalCost)
	})
	if len(rep.TopItems) > trendTopN {
		rep.TopItems = rep.TopItems[:trendTopN]
	}
	return rep, nil
}

// CommonItem is a typical item+quantity estimate for a procedure category.
type CommonItem struct {
	ItemID   uuid.UUID `json:"item_id"`
	ItemName string    `json:"item_name"`
	Quantity int       `json:"quantity"`
}

// categoryKeywords drives the static fallback when no historical procedures
// exist for a category yet.
var categoryKeywords = map[string][]string{
	"Endodontic":  {"file", "gutta percha", "sealer", "irrigant"},
	"Restorative": {"composite", "etchant", "bonding", "matrix"},
	"Surgical":    {"suture", "blade", "anesthetic", "gauze"},
	"Orthodontic": {"bracket", "wire", "elastics", "band"},
	"Implants":    {"implant", "abutment", "membrane", "graft"},
}

// CommonItems estimates the typical consumption for a procedure category.
// It prefers historical procedures; with none it matches the category's
// keyword table against the clinic's items, then falls back to generic
// consumables.
func (s *Service) CommonItems(ctx context.Context, clinicID uuid.UUID, category string) ([]CommonItem, error) {
	if category == "" {
		return nil, apperr.Validation("category is required")
	}

	procs, err := s.repo.ListInRange(ctx, clinicID, time.Time{}, time.Now().Add(time.Second), category)
	if err != nil {
		return nil, err
	}
	if len(procs) > 0 {
		return typicalFromHistory(procs), nil
	}

	if common := s.keywordMatch(ctx, clinicID, category); len(common) > 0 {
		return common, nil
	}
	return s.genericFallback(ctx, clinicID), nil
}

// typicalFromHistory averages each item's quantity over the procedures that
// used it, rounding up.
func typicalFromHistory(procs []*DentalProcedure) []CommonItem {
	type acc struct {
		name  string
		qty   int
		count int
	}
	byItem := map[uuid.UUID]*acc{}
	for _, p := range procs {
		for _, li := range p.Items {
			a, ok := byItem[li.ItemID]
			if !ok {
				a = &acc{name: li.ItemName}
				byItem[li.ItemID] = a
			}
			a.qty += li.Quantity
			a.count++
		}
	}
	var result []CommonItem
	for id, a := range byItem {
		result = append(result, CommonItem{
			ItemID:   id,
			ItemName: a.name,
			Quantity: (a.qty + a.count - 1) / a.count,
		})
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ItemName < result[j].ItemName })
	return result
}

func (s *Service) keywordMatch(ctx context.Context, clinicID uuid.UUID, category string) []CommonItem {
	keywords, ok := categoryKeywords[category]
	if !ok {
		return nil
	}
	var result []CommonItem
	seen := map[uuid.UUID]bool{}
	for _, kw := range keywords {
		items, _, err := s.stock.QueryItems(ctx, clinicID, inventory.Filters{Search: kw}, 5, 0)
		if err != nil {
			continue
		}
		for _, it := range items {
			if !it.IsActive || seen[it.ID] {
				continue
			}
			if !strings.Contains(strings.ToLower(it.Name), strings.ToLower(kw)) {
				continue
			}
			seen[it.ID] = true
			result = append(result, CommonItem{ItemID: it.ID, ItemName: it.Name, Quantity: 1})
			break
		}
	}
	return result
}

func (s *Service) genericFallback(ctx context.Context, clinicID uuid.UUID) []CommonItem {
	items, _, err := s.stock.QueryItems(ctx, clinicID, inventory.Filters{Category: "Consumables"}, 3, 0)
	if err != nil {
		return nil
	}
	var result []CommonItem
	for _, it := range items {
		if !it.IsActive {
			continue
		}
		result = append(result, CommonItem{ItemID: it.ID, ItemName: it.Name, Quantity: 1})
	}
	return result
}
