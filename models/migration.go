package models

import (
	"log"

	"github.com/printforge/printflow_backend/config"
)

func MigrateTable() {
	db := config.GetDB()

	err := db.AutoMigrate(
		&Product{},
		&SyncRun{}, &SyncErrorRecord{},
		&ProductionList{}, &ProductionListItem{},
		&PrintFolder{}, &PrintFile{}, &PrintQueueItem{},
		&PrintJob{}, &PrinterSnapshot{}, &PrintWebhookEvent{},
	)
	if err != nil {
		log.Fatal(err)
	}
}
