package feed

import (
	"context"
	"sort"

	"github.com/shopspring/decimal"

	"github.com/printforge/printflow_backend/models"
)

// Reconciliation of the production backlog against a marketplace feed. Both
// operations are pure reads over the product store plus a parsed feed batch.

// CoverageEntry describes one production-needed product and whether the
// marketplace knows about it.
type CoverageEntry struct {
	ProductId         int                `json:"product_id"`
	Article           string             `json:"article"`
	Name              string             `json:"name"`
	GroupName         string             `json:"group_name"`
	ProductType       models.ProductType `json:"product_type"`
	CurrentStock      decimal.Decimal    `json:"current_stock"`
	ProductionNeeded  decimal.Decimal    `json:"production_needed"`
	Priority          int                `json:"priority"`
	IsInFeed          bool               `json:"is_in_feed"`
	OrdersInFeed      int                `json:"orders_in_feed"`
	NeedsRegistration bool               `json:"needs_registration"`
}

// FilteredItem mirrors a production list entry restricted to feed-present
// articles. Never persisted.
type FilteredItem struct {
	ProductId    int                `json:"product_id"`
	Article      string             `json:"article"`
	Name         string             `json:"name"`
	GroupName    string             `json:"group_name"`
	ProductType  models.ProductType `json:"product_type"`
	CurrentStock decimal.Decimal    `json:"current_stock"`
	Quantity     decimal.Decimal    `json:"quantity"`
	Priority     int                `json:"priority"`
	Rank         int                `json:"rank"`
	OrdersInFeed int                `json:"orders_in_feed"`
}

// CoverageReport joins production-needed products against the feed. Products
// missing from the feed float to the top as registration prompts. Feed
// articles with no matching product contribute nothing.
func CoverageReport(ctx context.Context, rows []FeedRow) ([]CoverageEntry, error) {
	products, err := models.GetProductionCandidates(ctx, 0)
	if err != nil {
		return nil, err
	}
	return buildCoverage(products, rows), nil
}

// FilteredProduction returns the production-needed products whose article
// appears in the feed, in priority order.
func FilteredProduction(ctx context.Context, rows []FeedRow) ([]FilteredItem, error) {
	products, err := models.GetProductionCandidates(ctx, 0)
	if err != nil {
		return nil, err
	}
	return filterProduction(products, rows), nil
}

func ordersByArticle(rows []FeedRow) map[string]int {
	m := make(map[string]int, len(rows))
	for _, row := range rows {
		m[row.ArticleNorm] = row.Orders
	}
	return m
}

func buildCoverage(products []models.Product, rows []FeedRow) []CoverageEntry {
	orders := ordersByArticle(rows)

	entries := make([]CoverageEntry, 0, len(products))
	for _, p := range products {
		inFeed := false
		feedOrders := 0
		if n, ok := orders[p.ArticleNorm]; ok {
			inFeed = true
			feedOrders = n
		}
		entries = append(entries, CoverageEntry{
			ProductId:         p.ID,
			Article:           p.Article,
			Name:              p.Name,
			GroupName:         p.GroupName,
			ProductType:       p.ProductType,
			CurrentStock:      p.CurrentStock,
			ProductionNeeded:  p.ProductionNeeded,
			Priority:          p.ProductionPriority,
			IsInFeed:          inFeed,
			OrdersInFeed:      feedOrders,
			NeedsRegistration: !inFeed,
		})
	}

	// Registration prompts first, then by descending priority. Stable, so
	// the candidate query's article tiebreak survives.
	sort.SliceStable(entries, func(i, j int) bool {
		if entries[i].NeedsRegistration != entries[j].NeedsRegistration {
			return entries[i].NeedsRegistration
		}
		return entries[i].Priority > entries[j].Priority
	})
	return entries
}

func filterProduction(products []models.Product, rows []FeedRow) []FilteredItem {
	orders := ordersByArticle(rows)

	items := make([]FilteredItem, 0, len(products))
	rank := 0
	for _, p := range products {
		n, ok := orders[p.ArticleNorm]
		if !ok {
			continue
		}
		rank++
		items = append(items, FilteredItem{
			ProductId:    p.ID,
			Article:      p.Article,
			Name:         p.Name,
			GroupName:    p.GroupName,
			ProductType:  p.ProductType,
			CurrentStock: p.CurrentStock,
			Quantity:     p.ProductionNeeded,
			Priority:     p.ProductionPriority,
			Rank:         rank,
			OrdersInFeed: n,
		})
	}
	return items
}
