package models

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/printforge/printflow_backend/config"
)

// ProductionList is an immutable ranked snapshot of what to manufacture.
type ProductionList struct {
	ID                uint                 `gorm:"primary_key" json:"id"`
	TotalItems        int                  `json:"total_items"`
	TotalUnits        decimal.Decimal      `gorm:"type:decimal(20,2);default:0" json:"total_units"`
	MinPriority       int                  `json:"min_priority"`
	AssortmentApplied bool                 `gorm:"default:false" json:"assortment_applied"`
	Items             []ProductionListItem `gorm:"foreignKey:ProductionListId" json:"items"`
	CreatedAt         time.Time            `gorm:"autoCreateTime" json:"created_at"`
}

type ProductionListItem struct {
	ID               uint            `gorm:"primary_key" json:"id"`
	ProductionListId uint            `gorm:"index;not null" json:"production_list_id"`
	ProductId        int             `gorm:"index;not null" json:"product_id"`
	Article          string          `gorm:"size:100" json:"article"`
	Name             string          `gorm:"size:255" json:"name"`
	GroupName        string          `gorm:"size:255" json:"group_name"`
	ProductType      ProductType     `gorm:"type:enum('new','old','critical')" json:"product_type"`
	Priority         int             `json:"priority"`
	CurrentStock     decimal.Decimal `gorm:"type:decimal(20,2);default:0" json:"current_stock"`
	Quantity         decimal.Decimal `gorm:"type:decimal(20,2);not null" json:"quantity"`
	Rank             int             `gorm:"not null" json:"rank"`
}

// Assortment mode kicks in once the backlog is this large.
const assortmentThreshold = 30

var (
	coefFull   = decimal.NewFromInt(1)
	coefHigh   = decimal.NewFromFloat(0.7)
	coefMid    = decimal.NewFromFloat(0.5)
	coefLow    = decimal.NewFromFloat(0.3)
)

// AssortmentCoefficient scales a batch quantity by priority tier so a large
// backlog favors high-priority items without starving the rest.
func AssortmentCoefficient(priority int) decimal.Decimal {
	switch {
	case priority >= 80:
		return coefFull
	case priority >= 60:
		return coefHigh
	case priority >= 40:
		return coefMid
	default:
		return coefLow
	}
}

type BuildProductionListOptions struct {
	MinPriority    int
	AssortmentMode bool
}

// rankProductionItems turns ordered candidates into ranked list items,
// applying assortment coefficients when the batch is large enough. Items
// whose scaled quantity drops to zero are removed.
func rankProductionItems(candidates []Product, assortmentMode bool) []ProductionListItem {
	applyCoef := assortmentMode && len(candidates) >= assortmentThreshold

	items := make([]ProductionListItem, 0, len(candidates))
	rank := 0
	for _, p := range candidates {
		qty := p.ProductionNeeded
		if applyCoef {
			qty = qty.Mul(AssortmentCoefficient(p.ProductionPriority)).RoundBank(2)
		}
		if qty.LessThanOrEqual(decimal.Zero) {
			continue
		}
		rank++
		items = append(items, ProductionListItem{
			ProductId:    p.ID,
			Article:      p.Article,
			Name:         p.Name,
			GroupName:    p.GroupName,
			ProductType:  p.ProductType,
			Priority:     p.ProductionPriority,
			CurrentStock: p.CurrentStock,
			Quantity:     qty,
			Rank:         rank,
		})
	}
	return items
}

// BuildProductionList assembles and persists a ranked production snapshot.
// Candidates are read and the snapshot written inside one transaction, so the
// list always reflects a consistent product state.
func BuildProductionList(ctx context.Context, opts BuildProductionListOptions) (*ProductionList, error) {
	db := config.GetDB()

	var list *ProductionList
	err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		candidates, err := getProductionCandidates(tx, opts.MinPriority)
		if err != nil {
			return err
		}

		items := rankProductionItems(candidates, opts.AssortmentMode)

		totalUnits := decimal.Zero
		for _, item := range items {
			totalUnits = totalUnits.Add(item.Quantity)
		}

		list = &ProductionList{
			TotalItems:        len(items),
			TotalUnits:        totalUnits,
			MinPriority:       opts.MinPriority,
			AssortmentApplied: opts.AssortmentMode && len(candidates) >= assortmentThreshold,
			Items:             items,
		}
		return tx.Create(list).Error
	})
	if err != nil {
		return nil, err
	}
	return list, nil
}

// GetLatestProductionList returns nil when no list has been built yet.
func GetLatestProductionList(ctx context.Context) (*ProductionList, error) {
	db := config.GetDB()
	var list ProductionList
	err := db.WithContext(ctx).Preload("Items", func(tx *gorm.DB) *gorm.DB {
		return tx.Order("production_list_items.rank ASC")
	}).Order("id DESC").Take(&list).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, err
	}
	return &list, nil
}
