package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"gorm.io/gorm"

	"github.com/printforge/printflow_backend/config"
	"github.com/printforge/printflow_backend/models"
)

// Recomputes classification and replenishment figures for every product from
// the already-synced inputs. Run after changing the planning thresholds.
func main() {
	batchSize := flag.Int("batch-size", 500, "Products loaded per batch")
	dryRun := flag.Bool("dry-run", false, "Report what would change without writing")
	flag.Parse()

	_ = godotenv.Load()

	config.ConnectDatabaseWithRetry()
	db := config.GetDB()
	if db == nil {
		fmt.Fprintln(os.Stderr, "database not initialized (config.GetDB returned nil)")
		os.Exit(1)
	}

	var processed, changed int
	var batch []models.Product
	result := db.FindInBatches(&batch, *batchSize, func(tx *gorm.DB, _ int) error {
		for i := range batch {
			product := &batch[i]
			before := product.ProductionPriority
			beforeQty := product.ProductionNeeded
			product.RecomputeDerived()
			processed++
			if product.ProductionPriority != before || !product.ProductionNeeded.Equal(beforeQty) {
				changed++
			}
			if *dryRun {
				continue
			}
			if err := tx.Save(product).Error; err != nil {
				return err
			}
		}
		return nil
	})
	if result.Error != nil {
		fmt.Fprintf(os.Stderr, "replan failed: %v\n", result.Error)
		os.Exit(1)
	}

	fmt.Printf("processed %d products, %d changed", processed, changed)
	if *dryRun {
		fmt.Print(" (dry run, nothing written)")
	}
	fmt.Println()
}
