package moysklad

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/disintegration/imaging"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/printforge/printflow_backend/config"
	"github.com/printforge/printflow_backend/models"
	"github.com/printforge/printflow_backend/utils"
)

// SyncOptions controls one full product sync run.
type SyncOptions struct {
	Kind             string
	WarehouseID      string
	ExcludedGroupIds []string
	SyncImages       bool
	MaxImages        int
}

const turnoverDays = 60
const progressEvery = 100

// RunProductSync executes the full ERP product sync: fetch the catalog, the
// stock report and the sixty-day turnover report, then rewrite the local
// product table. Per-item failures are recorded and counted, never fatal;
// only a failed first fetch fails the whole run.
func RunProductSync(ctx context.Context, opts SyncOptions) error {
	db := config.GetDB()
	logger := config.GetLogger()

	if opts.Kind == "" {
		opts.Kind = models.SyncKindManual
	}
	if opts.MaxImages <= 0 {
		opts.MaxImages = maxImagesFromEnv()
	}
	if opts.WarehouseID == "" {
		opts.WarehouseID = strings.TrimSpace(os.Getenv("MOYSKLAD_WAREHOUSE_ID"))
	}
	if len(opts.ExcludedGroupIds) == 0 {
		opts.ExcludedGroupIds = excludedGroupsFromEnv()
	}

	correlationId, ok := utils.GetCorrelationIdFromContext(ctx)
	if !ok {
		correlationId = uuid.New().String()
		ctx = utils.SetCorrelationIdInContext(ctx, correlationId)
	}

	now := time.Now()
	run := models.SyncRun{
		Kind:          opts.Kind,
		Source:        models.SyncSourceERP,
		Status:        models.SyncRunStatusPending,
		CorrelationId: correlationId,
		StartedAt:     &now,
	}
	if err := db.WithContext(ctx).Create(&run).Error; err != nil {
		config.LogError(logger, "moysklad", "RunProductSync", "create sync run", opts, err)
		return err
	}

	client, err := NewClient(os.Getenv("MOYSKLAD_TOKEN"))
	if err != nil {
		return finalizeFailed(db, &run, err)
	}

	logger.WithFields(map[string]any{
		"run_id":         run.ID,
		"correlation_id": correlationId,
		"kind":           opts.Kind,
	}).Info("moysklad product sync started")

	products, err := client.ListProducts(ctx)
	if err != nil {
		config.LogError(logger, "moysklad", "RunProductSync", "list products", nil, err)
		return finalizeFailed(db, &run, err)
	}

	stockByProductId, err := fetchStockMap(ctx, client, opts.WarehouseID)
	if err != nil {
		config.LogError(logger, "moysklad", "RunProductSync", "stock report", nil, err)
		return finalizeFailed(db, &run, err)
	}

	salesByArticle, err := fetchTurnoverMap(ctx, client)
	if err != nil {
		config.LogError(logger, "moysklad", "RunProductSync", "turnover report", nil, err)
		return finalizeFailed(db, &run, err)
	}

	folderNames, err := fetchFolderNames(ctx, client)
	if err != nil {
		config.LogError(logger, "moysklad", "RunProductSync", "product folders", nil, err)
		return finalizeFailed(db, &run, err)
	}

	excluded := make(map[string]bool, len(opts.ExcludedGroupIds))
	for _, id := range opts.ExcludedGroupIds {
		if id = strings.TrimSpace(id); id != "" {
			excluded[id] = true
		}
	}

	// The excluded-group filter also cleans: everything local is dropped and
	// the surviving catalog is written back, so products that moved into an
	// excluded group since the last run disappear as well.
	if len(excluded) > 0 {
		deleted, err := deleteAllProducts(ctx, db)
		if err != nil {
			config.LogError(logger, "moysklad", "RunProductSync", "clean filtered products", nil, err)
			return finalizeFailed(db, &run, err)
		}
		run.Deleted = deleted
	}

	colorLabel := strings.TrimSpace(os.Getenv("MOYSKLAD_COLOR_ATTRIBUTE"))
	if colorLabel == "" {
		colorLabel = "Цвет"
	}

	run.Total = len(products)
	syncedAt := time.Now()

	for _, row := range products {
		select {
		case <-ctx.Done():
			run.Status = models.SyncRunStatusPartial
			run.ErrorDetails = "Interrupted"
			return finalizeRun(context.Background(), db, &run)
		default:
		}

		if row.Archived {
			continue
		}
		if row.ProductFolder != nil && excluded[row.ProductFolder.Meta.ID()] {
			continue
		}

		externalId := row.Meta.ID()

		// The list endpoint omits attributes unless expanded; fetch the
		// detail so the color attribute can be extracted. A failed detail
		// fetch degrades to an empty color, not a failed item.
		if len(row.Attributes) == 0 {
			if detail, detailErr := client.GetProductDetail(ctx, externalId); detailErr == nil && detail != nil {
				row.Attributes = detail.Attributes
			}
		}

		if err := upsertProduct(ctx, db, row, externalId, stockByProductId, salesByArticle, folderNames, colorLabel, syncedAt); err != nil {
			run.Failed++
			payload, _ := json.Marshal(row)
			if recErr := models.CreateSyncError(ctx, db, run.ID, "product", externalId, "upsert_failed", err.Error(), payload, true); recErr != nil {
				config.LogError(logger, "moysklad", "RunProductSync", "record sync error", externalId, recErr)
			}
			continue
		}
		run.Synced++

		if run.Synced%progressEvery == 0 {
			run.CurrentItem = row.Name
			db.WithContext(ctx).Model(&models.SyncRun{}).Where("id = ?", run.ID).
				Updates(map[string]any{"synced": run.Synced, "failed": run.Failed, "current_item": run.CurrentItem})
		}
	}

	if opts.SyncImages {
		if err := syncProductImages(ctx, client, opts.MaxImages); err != nil {
			config.LogError(logger, "moysklad", "RunProductSync", "image sync", nil, err)
		}
	}

	if run.Failed > 0 {
		run.Status = models.SyncRunStatusPartial
	} else {
		run.Status = models.SyncRunStatusSuccess
	}
	if err := finalizeRun(ctx, db, &run); err != nil {
		return err
	}

	logger.WithFields(map[string]any{
		"run_id":  run.ID,
		"status":  run.Status,
		"total":   run.Total,
		"synced":  run.Synced,
		"failed":  run.Failed,
		"deleted": run.Deleted,
	}).Info("moysklad product sync finished")
	return nil
}

// upsertProduct writes one catalog row into the local table, keyed by the
// remote entity id. The BeforeSave hook recomputes classification and the
// replenishment figures from the fresh inputs.
func upsertProduct(ctx context.Context, db *gorm.DB, row ProductRow, externalId string, stock map[string]stockFigures, sales map[string]decimal.Decimal, folderNames map[string]string, colorLabel string, syncedAt time.Time) error {
	product, err := models.GetProductByExternalId(ctx, externalId)
	if err != nil {
		return err
	}
	if product == nil {
		product = &models.Product{ExternalId: externalId}
	}

	product.Article = row.Article
	product.Name = row.Name
	product.Description = row.Description
	product.Color = ExtractAttributeString(row.Attributes, colorLabel)
	if row.ProductFolder != nil {
		product.GroupId = row.ProductFolder.Meta.ID()
		product.GroupName = folderNames[product.GroupId]
		if product.GroupName == "" {
			product.GroupName = row.ProductFolder.Name
		}
	} else {
		product.GroupId = ""
		product.GroupName = ""
	}

	figures := stock[externalId]
	product.CurrentStock = figures.Stock
	product.ReservedStock = figures.Reserve
	product.SalesLast2Months = sales[utils.NormalizeArticleFold(row.Article)]
	product.LastSyncedAt = &syncedAt

	return db.WithContext(ctx).Save(product).Error
}

// deleteAllProducts clears the local table ahead of a filtered rewrite and
// returns the number of rows removed.
func deleteAllProducts(ctx context.Context, db *gorm.DB) (int, error) {
	var count int64
	if err := db.WithContext(ctx).Model(&models.Product{}).Count(&count).Error; err != nil {
		return 0, err
	}
	if err := db.WithContext(ctx).Where("1 = 1").Delete(&models.Product{}).Error; err != nil {
		return 0, err
	}
	return int(count), nil
}

func finalizeRun(ctx context.Context, db *gorm.DB, run *models.SyncRun) error {
	finished := time.Now()
	run.FinishedAt = &finished
	return db.WithContext(ctx).Model(&models.SyncRun{}).Where("id = ?", run.ID).
		Updates(map[string]any{
			"status":        run.Status,
			"total":         run.Total,
			"synced":        run.Synced,
			"failed":        run.Failed,
			"deleted":       run.Deleted,
			"current_item":  run.CurrentItem,
			"error_details": run.ErrorDetails,
			"finished_at":   run.FinishedAt,
		}).Error
}

func finalizeFailed(db *gorm.DB, run *models.SyncRun, cause error) error {
	run.Status = models.SyncRunStatusFailed
	run.ErrorDetails = cause.Error()
	// Even a cancelled context must not leave the run stuck in pending.
	if err := finalizeRun(context.Background(), db, run); err != nil {
		config.LogError(config.GetLogger(), "moysklad", "finalizeFailed", "finalize run", run.ID, err)
	}
	return cause
}

type stockFigures struct {
	Stock   decimal.Decimal
	Reserve decimal.Decimal
}

func fetchStockMap(ctx context.Context, client *Client, warehouseId string) (map[string]stockFigures, error) {
	rows, err := client.StockAll(ctx, warehouseId)
	if err != nil {
		return nil, err
	}
	out := make(map[string]stockFigures, len(rows))
	for _, row := range rows {
		out[row.Meta.ID()] = stockFigures{
			Stock:   decimalFromNumber(row.Stock),
			Reserve: decimalFromNumber(row.Reserve),
		}
	}
	return out, nil
}

func fetchTurnoverMap(ctx context.Context, client *Client) (map[string]decimal.Decimal, error) {
	to := time.Now()
	from := to.AddDate(0, 0, -turnoverDays)
	rows, err := client.TurnoverAll(ctx, from, to)
	if err != nil {
		return nil, err
	}
	out := make(map[string]decimal.Decimal, len(rows))
	for _, row := range rows {
		key := utils.NormalizeArticleFold(row.Assortment.Article)
		if key == "" {
			continue
		}
		out[key] = out[key].Add(decimalFromNumber(row.Outcome.Quantity))
	}
	return out, nil
}

func fetchFolderNames(ctx context.Context, client *Client) (map[string]string, error) {
	folders, err := client.ListProductFolders(ctx)
	if err != nil {
		return nil, err
	}
	out := make(map[string]string, len(folders))
	for _, folder := range folders {
		out[folder.Meta.ID()] = folder.Name
	}
	return out, nil
}

func decimalFromNumber(n json.Number) decimal.Decimal {
	s := strings.TrimSpace(n.String())
	if s == "" {
		return decimal.Zero
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero
	}
	return d
}

func maxImagesFromEnv() int {
	if v := strings.TrimSpace(os.Getenv("MOYSKLAD_MAX_IMAGES_PER_SYNC")); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			return n
		}
	}
	return 100
}

func excludedGroupsFromEnv() []string {
	v := strings.TrimSpace(os.Getenv("MOYSKLAD_EXCLUDED_GROUP_IDS"))
	if v == "" {
		return nil
	}
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// syncProductImages downloads up to maxImages primary images for products
// that still lack one, resizes them to 256px thumbnails and stores them under
// the media directory.
func syncProductImages(ctx context.Context, client *Client, maxImages int) error {
	db := config.GetDB()
	logger := config.GetLogger()

	mediaDir := strings.TrimSpace(os.Getenv("MEDIA_DIR"))
	if mediaDir == "" {
		mediaDir = "media"
	}
	if err := os.MkdirAll(filepath.Join(mediaDir, "products"), 0o755); err != nil {
		return err
	}

	products, err := models.GetProductsWithoutImages(ctx, maxImages)
	if err != nil {
		return err
	}

	for _, product := range products {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		images, err := client.ListProductImages(ctx, product.ExternalId)
		if err != nil {
			config.LogError(logger, "moysklad", "syncProductImages", "list images", product.ExternalId, err)
			continue
		}
		if len(images) == 0 {
			continue
		}

		data, err := client.DownloadImage(ctx, images[0].Download.Href)
		if err != nil {
			config.LogError(logger, "moysklad", "syncProductImages", "download image", product.ExternalId, err)
			continue
		}

		img, err := imaging.Decode(bytes.NewReader(data))
		if err != nil {
			config.LogError(logger, "moysklad", "syncProductImages", "decode image", product.ExternalId, err)
			continue
		}
		thumb := imaging.Resize(img, 256, 0, imaging.Lanczos)

		relPath := filepath.Join("products", fmt.Sprintf("%s.jpg", product.ExternalId))
		if err := imaging.Save(thumb, filepath.Join(mediaDir, relPath)); err != nil {
			config.LogError(logger, "moysklad", "syncProductImages", "save image", product.ExternalId, err)
			continue
		}

		db.WithContext(ctx).Model(&models.Product{}).Where("id = ?", product.ID).
			Updates(map[string]any{"has_image": true, "image_path": relPath})
	}
	return nil
}
