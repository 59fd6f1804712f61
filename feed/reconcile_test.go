package feed

import (
	"testing"

	"github.com/shopspring/decimal"

	"github.com/printforge/printflow_backend/models"
)

func candidateProducts() []models.Product {
	// Ordered the way the candidate query returns them: priority desc, article asc.
	return []models.Product{
		{ID: 3, Article: "C", ArticleNorm: "C", Name: "Vase C", ProductionPriority: 100, ProductionNeeded: decimal.NewFromInt(8)},
		{ID: 2, Article: "B", ArticleNorm: "B", Name: "Mug B", ProductionPriority: 80, ProductionNeeded: decimal.NewFromInt(4)},
		{ID: 1, Article: "A", ArticleNorm: "A", Name: "Pot A", ProductionPriority: 60, ProductionNeeded: decimal.NewFromInt(2)},
	}
}

func TestBuildCoverage_RegistrationPromptsFloatToTop(t *testing.T) {
	feedRows := []FeedRow{{ArticleNorm: "A", Orders: 12}}

	entries := buildCoverage(candidateProducts(), feedRows)
	if len(entries) != 3 {
		t.Fatalf("expected 3 entries, got %d", len(entries))
	}

	if entries[0].Article != "C" || entries[1].Article != "B" {
		t.Fatalf("expected missing articles C then B first, got %s then %s", entries[0].Article, entries[1].Article)
	}
	if !entries[0].NeedsRegistration || !entries[1].NeedsRegistration {
		t.Fatalf("missing articles must need registration")
	}

	last := entries[2]
	if last.Article != "A" || !last.IsInFeed || last.OrdersInFeed != 12 || last.NeedsRegistration {
		t.Fatalf("unexpected feed-present entry %+v", last)
	}
}

// Every entry is either in the feed or needs registration, never both.
func TestBuildCoverage_Partition(t *testing.T) {
	feedRows := []FeedRow{{ArticleNorm: "B", Orders: 1}}
	for _, e := range buildCoverage(candidateProducts(), feedRows) {
		if e.IsInFeed == e.NeedsRegistration {
			t.Fatalf("entry %s violates the coverage partition: in_feed=%v needs_registration=%v",
				e.Article, e.IsInFeed, e.NeedsRegistration)
		}
	}
}

func TestBuildCoverage_IgnoresUnknownFeedArticles(t *testing.T) {
	feedRows := []FeedRow{
		{ArticleNorm: "A", Orders: 1},
		{ArticleNorm: "ZZZ", Orders: 99},
	}
	entries := buildCoverage(candidateProducts(), feedRows)
	if len(entries) != 3 {
		t.Fatalf("feed-only article must not add entries; got %d", len(entries))
	}
}

func TestFilterProduction_PreservesPriorityOrder(t *testing.T) {
	feedRows := []FeedRow{
		{ArticleNorm: "A", Orders: 5},
		{ArticleNorm: "C", Orders: 7},
	}

	items := filterProduction(candidateProducts(), feedRows)
	if len(items) != 2 {
		t.Fatalf("expected 2 items, got %d", len(items))
	}
	if items[0].Article != "C" || items[1].Article != "A" {
		t.Fatalf("expected priority order C then A, got %s then %s", items[0].Article, items[1].Article)
	}
	if items[0].Rank != 1 || items[1].Rank != 2 {
		t.Fatalf("ranks must be contiguous from 1, got %d and %d", items[0].Rank, items[1].Rank)
	}
	if !items[0].Quantity.Equal(decimal.NewFromInt(8)) {
		t.Fatalf("quantity must mirror production need, got %s", items[0].Quantity)
	}
	if items[0].OrdersInFeed != 7 {
		t.Fatalf("expected orders_in_feed 7, got %d", items[0].OrdersInFeed)
	}
}

func TestFilterProduction_EmptyFeed(t *testing.T) {
	if items := filterProduction(candidateProducts(), nil); len(items) != 0 {
		t.Fatalf("empty feed must filter everything, got %d items", len(items))
	}
}
