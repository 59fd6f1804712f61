package models

import (
	"github.com/shopspring/decimal"
)

// Demand classification and replenishment math. All quantities are decimals;
// divisions round half-to-even (RoundBank) so repeated syncs are stable.

type ProductType string

const (
	ProductTypeNew      ProductType = "new"
	ProductTypeOld      ProductType = "old"
	ProductTypeCritical ProductType = "critical"
)

const salesWindowDays = 60

var (
	decThree   = decimal.NewFromInt(3)
	decFive    = decimal.NewFromInt(5)
	decSix     = decimal.NewFromInt(6)
	decTen     = decimal.NewFromInt(10)
	decFifteen = decimal.NewFromInt(15)
	decSixty   = decimal.NewFromInt(salesWindowDays)
)

// ClassifyProduct assigns the demand profile from current stock and the sales
// total of the last two months. The critical test runs before the new test;
// reordering the predicates changes the result.
func ClassifyProduct(stock, salesLast2Months decimal.Decimal) ProductType {
	if stock.LessThan(decFive) && salesLast2Months.GreaterThan(decimal.Zero) {
		return ProductTypeCritical
	}
	if salesLast2Months.IsZero() {
		return ProductTypeNew
	}
	if salesLast2Months.LessThan(decFive) && stock.LessThan(decFive) {
		return ProductTypeNew
	}
	return ProductTypeOld
}

// AvgDailyConsumption is the linear estimate sales / 60, kept at four
// fractional digits.
func AvgDailyConsumption(salesLast2Months decimal.Decimal) decimal.Decimal {
	return salesLast2Months.Div(decSixty).RoundBank(4)
}

// DaysOfStock reports how many days the current stock lasts at the average
// daily consumption. The second return is false when consumption is zero and
// the value is undefined.
func DaysOfStock(stock, avgDaily decimal.Decimal) (decimal.Decimal, bool) {
	if avgDaily.LessThanOrEqual(decimal.Zero) {
		return decimal.Zero, false
	}
	return stock.Div(avgDaily).RoundBank(2), true
}

// ReplenishmentQty computes how many units to manufacture so the product
// reaches its target stock level. Never negative.
func ReplenishmentQty(stock, salesLast2Months decimal.Decimal, productType ProductType) decimal.Decimal {
	if productType == ProductTypeNew {
		if stock.LessThan(decFive) {
			return decTen.Sub(stock)
		}
		return decimal.Zero
	}

	// old and critical share the ladder below
	switch {
	case salesLast2Months.LessThanOrEqual(decThree) && stock.LessThan(decFive):
		return maxDecimal(decimal.Zero, decFive.Sub(stock))
	case salesLast2Months.GreaterThan(decThree) && salesLast2Months.LessThanOrEqual(decTen) && stock.LessThanOrEqual(decSix):
		return maxDecimal(decimal.Zero, decTen.Sub(stock))
	case salesLast2Months.GreaterThan(decTen):
		daily := AvgDailyConsumption(salesLast2Months)
		target := daily.Mul(decFifteen)
		if stock.LessThan(daily.Mul(decTen)) {
			return maxDecimal(decimal.Zero, target.Sub(stock).RoundBank(2))
		}
		return decimal.Zero
	default:
		return decimal.Zero
	}
}

// ProductionPriority ranks a product into one of the five priority tiers.
// hasDaysOfStock is false when avg daily consumption is zero; the
// days-of-stock comparisons then read as false.
func ProductionPriority(productType ProductType, stock decimal.Decimal, daysOfStock decimal.Decimal, hasDaysOfStock bool) int {
	switch {
	case productType == ProductTypeCritical && stock.LessThan(decFive):
		return 100
	case productType == ProductTypeOld && hasDaysOfStock && daysOfStock.LessThan(decFive):
		return 80
	case productType == ProductTypeNew && stock.LessThan(decFive):
		return 60
	case productType == ProductTypeOld && hasDaysOfStock && daysOfStock.LessThan(decTen):
		return 40
	default:
		return 20
	}
}

func maxDecimal(a, b decimal.Decimal) decimal.Decimal {
	if a.GreaterThan(b) {
		return a
	}
	return b
}
