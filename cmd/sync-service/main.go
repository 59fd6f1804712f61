package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/joho/godotenv"

	"github.com/printforge/printflow_backend/config"
	"github.com/printforge/printflow_backend/models"
	"github.com/printforge/printflow_backend/moysklad"
	"github.com/printforge/printflow_backend/simpleprint"
)

// Headless sync runner: executes one sync against the chosen upstream and
// exits. Useful as a cron job next to the long-running server.
func main() {
	source := flag.String("source", models.SyncSourceERP, "Sync source: erp or print_service")
	fullSync := flag.Bool("full-sync", false, "Print service only: prune local files absent upstream")
	syncImages := flag.Bool("sync-images", false, "ERP only: download thumbnails for products lacking images")
	warehouse := flag.String("warehouse", "", "ERP only: warehouse id override")
	flag.Parse()

	_ = godotenv.Load()

	config.ConnectDatabaseWithRetry()
	if config.GetDB() == nil {
		fmt.Fprintln(os.Stderr, "database not initialized (config.GetDB returned nil)")
		os.Exit(1)
	}
	config.ConnectRedisWithRetry()
	models.MigrateTable()

	ctx := context.Background()

	var err error
	switch strings.TrimSpace(*source) {
	case models.SyncSourceERP:
		err = moysklad.RunProductSync(ctx, moysklad.SyncOptions{
			Kind:        models.SyncKindScheduled,
			WarehouseID: *warehouse,
			SyncImages:  *syncImages,
		})
	case models.SyncSourcePrintService:
		err = simpleprint.RunFileSync(ctx, simpleprint.SyncOptions{
			Kind:     models.SyncKindScheduled,
			FullSync: *fullSync,
		})
		if err == nil {
			err = simpleprint.RunPrinterSync(ctx)
		}
	default:
		fmt.Fprintf(os.Stderr, "unknown source %q\n", *source)
		os.Exit(2)
	}

	if err != nil {
		fmt.Fprintf(os.Stderr, "sync failed: %v\n", err)
		os.Exit(1)
	}
	fmt.Println("sync finished")
}
