package models

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/printforge/printflow_backend/config"
	"github.com/printforge/printflow_backend/utils"
)

// Product is the canonical catalog entity, rewritten from the ERP on every
// sync. Classification and the replenishment figures are derived fields; they
// are recomputed from the inputs on every save.
type Product struct {
	ID                  int              `gorm:"primary_key" json:"id"`
	ExternalId          string           `gorm:"uniqueIndex;size:64;not null" json:"external_id"`
	Article             string           `gorm:"index;size:100" json:"article"`
	ArticleNorm         string           `gorm:"index;size:100" json:"article_norm"`
	Name                string           `gorm:"size:255;not null" json:"name"`
	Description         string           `gorm:"type:text" json:"description"`
	Color               string           `gorm:"size:100" json:"color"`
	GroupId             string           `gorm:"index;size:64" json:"group_id"`
	GroupName           string           `gorm:"size:255" json:"group_name"`
	CurrentStock        decimal.Decimal  `gorm:"type:decimal(20,2);default:0" json:"current_stock"`
	ReservedStock       decimal.Decimal  `gorm:"type:decimal(20,2);default:0" json:"reserved_stock"`
	SalesLast2Months    decimal.Decimal  `gorm:"type:decimal(20,2);default:0" json:"sales_last_2_months"`
	AvgDailyConsumption decimal.Decimal  `gorm:"type:decimal(20,4);default:0" json:"avg_daily_consumption"`
	ProductType         ProductType      `gorm:"type:enum('new','old','critical');default:'new'" json:"product_type"`
	DaysOfStock         *decimal.Decimal `gorm:"type:decimal(20,2)" json:"days_of_stock"`
	ProductionNeeded    decimal.Decimal  `gorm:"type:decimal(20,2);default:0" json:"production_needed"`
	ProductionPriority  int              `gorm:"default:20" json:"production_priority"`
	HasImage            bool             `gorm:"default:false" json:"has_image"`
	ImagePath           string           `gorm:"size:255" json:"image_path"`
	LastSyncedAt        *time.Time       `json:"last_synced_at"`
	CreatedAt           time.Time        `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt           time.Time        `gorm:"autoUpdateTime" json:"updated_at"`
}

// RecomputeDerived refreshes every derived field from the current inputs.
// Pure in the sense that it touches nothing outside the struct; the save path
// calls it so a product can never be persisted with stale classification.
func (p *Product) RecomputeDerived() {
	p.ArticleNorm = utils.NormalizeArticle(p.Article)
	p.AvgDailyConsumption = AvgDailyConsumption(p.SalesLast2Months)
	p.ProductType = ClassifyProduct(p.CurrentStock, p.SalesLast2Months)

	days, hasDays := DaysOfStock(p.CurrentStock, p.AvgDailyConsumption)
	if hasDays {
		p.DaysOfStock = &days
	} else {
		p.DaysOfStock = nil
	}

	p.ProductionNeeded = ReplenishmentQty(p.CurrentStock, p.SalesLast2Months, p.ProductType)
	p.ProductionPriority = ProductionPriority(p.ProductType, p.CurrentStock, days, hasDays)
}

func (p *Product) BeforeSave(tx *gorm.DB) error {
	p.RecomputeDerived()
	return nil
}

// GetProductByExternalId returns nil when the product does not exist.
func GetProductByExternalId(ctx context.Context, externalId string) (*Product, error) {
	db := config.GetDB()
	var product Product
	err := db.WithContext(ctx).Where("external_id = ?", externalId).Take(&product).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, err
	}
	return &product, nil
}

// GetProductionCandidates returns all products that need production at or
// above the given priority, ordered the way the production list ranks them.
func GetProductionCandidates(ctx context.Context, minPriority int) ([]Product, error) {
	return getProductionCandidates(config.GetDB().WithContext(ctx), minPriority)
}

func getProductionCandidates(db *gorm.DB, minPriority int) ([]Product, error) {
	var products []Product
	err := db.
		Where("production_needed > 0 AND production_priority >= ?", minPriority).
		Order("production_priority DESC, article ASC").
		Find(&products).Error
	return products, err
}

// GetProductsWithoutImages feeds the optional image sync step.
func GetProductsWithoutImages(ctx context.Context, limit int) ([]Product, error) {
	db := config.GetDB()
	var products []Product
	err := db.WithContext(ctx).
		Where("has_image = ?", false).
		Order("id").
		Limit(limit).
		Find(&products).Error
	return products, err
}

func CountProducts(ctx context.Context) (int64, error) {
	db := config.GetDB()
	var count int64
	err := db.WithContext(ctx).Model(&Product{}).Count(&count).Error
	return count, err
}
