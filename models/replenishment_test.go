package models

import (
	"testing"

	"github.com/shopspring/decimal"
)

func d(s string) decimal.Decimal {
	v, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return v
}

func TestClassifyProduct(t *testing.T) {
	cases := []struct {
		stock    string
		sales    string
		expected ProductType
	}{
		{"2", "10", ProductTypeCritical},
		{"4.99", "0.01", ProductTypeCritical},
		{"0", "0", ProductTypeNew},
		{"100", "0", ProductTypeNew},
		{"4", "4", ProductTypeCritical}, // critical wins over the new test
		{"8", "2", ProductTypeOld},
		{"6", "5", ProductTypeOld},
		{"5", "4", ProductTypeOld}, // stock not < 5
	}
	for _, tc := range cases {
		got := ClassifyProduct(d(tc.stock), d(tc.sales))
		if got != tc.expected {
			t.Fatalf("ClassifyProduct(%s, %s) expected %s, got %s", tc.stock, tc.sales, tc.expected, got)
		}
	}
}

func TestReplenishmentQty(t *testing.T) {
	cases := []struct {
		name     string
		stock    string
		sales    string
		ptype    ProductType
		expected string
	}{
		{"new below threshold", "3", "0", ProductTypeNew, "7"},
		{"new at threshold", "5", "0", ProductTypeNew, "0"},
		{"critical mid sales", "2", "10", ProductTypeCritical, "8"},
		{"old low sales low stock", "2", "2", ProductTypeOld, "3"},
		{"old low sales high stock", "8", "2", ProductTypeOld, "0"},
		{"old mid sales boundary stock", "6", "5", ProductTypeOld, "4"},
		{"old mid sales above boundary", "7", "5", ProductTypeOld, "0"},
		{"old high sales below runway", "1", "30", ProductTypeOld, "6.5"},
		{"old high sales enough runway", "6", "30", ProductTypeOld, "0"},
		{"critical zero stock", "0", "2", ProductTypeCritical, "5"},
		{"critical mid sales zero stock", "0", "4", ProductTypeCritical, "10"},
	}
	for _, tc := range cases {
		got := ReplenishmentQty(d(tc.stock), d(tc.sales), tc.ptype)
		if !got.Equal(d(tc.expected)) {
			t.Fatalf("%s: ReplenishmentQty(%s, %s, %s) expected %s, got %s",
				tc.name, tc.stock, tc.sales, tc.ptype, tc.expected, got)
		}
	}
}

// For old products with sales <= 3 the quantity is exactly 5 - stock and
// strictly decreasing while stock stays below 5.
func TestReplenishmentQty_MonotonicLowSales(t *testing.T) {
	prev := decimal.NewFromInt(6)
	for stock := 0; stock < 5; stock++ {
		s := decimal.NewFromInt(int64(stock))
		got := ReplenishmentQty(s, d("2"), ProductTypeOld)
		want := decFive.Sub(s)
		if !got.Equal(want) {
			t.Fatalf("stock=%d expected %s, got %s", stock, want, got)
		}
		if !got.LessThan(prev) {
			t.Fatalf("stock=%d quantity %s not strictly decreasing (prev %s)", stock, got, prev)
		}
		prev = got
	}
}

func TestProductionPriority(t *testing.T) {
	days72 := d("72")
	days4 := d("4")
	days9 := d("9")
	cases := []struct {
		name     string
		ptype    ProductType
		stock    string
		days     decimal.Decimal
		hasDays  bool
		expected int
	}{
		{"critical low stock", ProductTypeCritical, "2", days4, true, 100},
		{"old short runway", ProductTypeOld, "9", days4, true, 80},
		{"new low stock", ProductTypeNew, "3", decimal.Zero, false, 60},
		{"old medium runway", ProductTypeOld, "9", days9, true, 40},
		{"old long runway", ProductTypeOld, "6", days72, true, 20},
		{"old undefined runway", ProductTypeOld, "3", decimal.Zero, false, 20},
		{"new high stock", ProductTypeNew, "50", decimal.Zero, false, 20},
	}
	for _, tc := range cases {
		got := ProductionPriority(tc.ptype, d(tc.stock), tc.days, tc.hasDays)
		if got != tc.expected {
			t.Fatalf("%s: expected %d, got %d", tc.name, tc.expected, got)
		}
		switch got {
		case 20, 40, 60, 80, 100:
		default:
			t.Fatalf("%s: priority %d outside the tier set", tc.name, got)
		}
	}
}

func TestDaysOfStock(t *testing.T) {
	avg, ok := DaysOfStock(d("6"), AvgDailyConsumption(d("5")))
	if !ok {
		t.Fatalf("expected defined days-of-stock")
	}
	// avg daily is fixed at 4 fractional digits (0.0833), so the exact
	// quotient lands at 72.03 rather than 72.
	if !avg.Equal(d("72.03")) {
		t.Fatalf("expected 72.03 days of stock, got %s", avg)
	}

	if _, ok := DaysOfStock(d("6"), decimal.Zero); ok {
		t.Fatalf("days-of-stock must be undefined at zero consumption")
	}
}
