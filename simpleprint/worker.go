package simpleprint

import (
	"context"
	"encoding/json"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/printforge/printflow_backend/config"
	"github.com/printforge/printflow_backend/models"
	"github.com/printforge/printflow_backend/utils"
)

const progressEvery = 50

// SyncOptions controls one print-service sync run.
type SyncOptions struct {
	Kind     string
	FullSync bool
}

type fetchedFolder struct {
	folder RemoteFolder
	depth  int
}

// RunFileSync mirrors the print-service file tree: recursive descent from the
// root with a visited set against folder cycles, folders written in ascending
// depth order so parent references always resolve, files upserted by remote
// id. With FullSync, local files absent upstream are pruned.
func RunFileSync(ctx context.Context, opts SyncOptions) error {
	db := config.GetDB()
	logger := config.GetLogger()

	if opts.Kind == "" {
		opts.Kind = models.SyncKindManual
	}

	correlationId, ok := utils.GetCorrelationIdFromContext(ctx)
	if !ok {
		correlationId = uuid.New().String()
		ctx = utils.SetCorrelationIdInContext(ctx, correlationId)
	}

	now := time.Now()
	run := models.SyncRun{
		Kind:          opts.Kind,
		Source:        models.SyncSourcePrintService,
		Status:        models.SyncRunStatusPending,
		CorrelationId: correlationId,
		StartedAt:     &now,
	}
	if err := db.WithContext(ctx).Create(&run).Error; err != nil {
		config.LogError(logger, "simpleprint", "RunFileSync", "create sync run", opts, err)
		return err
	}

	client, err := NewClient(os.Getenv("SIMPLEPRINT_TOKEN"))
	if err != nil {
		return finalizeFailed(db, &run, err)
	}

	logger.WithFields(map[string]any{
		"run_id":         run.ID,
		"correlation_id": correlationId,
		"full_sync":      opts.FullSync,
	}).Info("simpleprint file sync started")

	folders, files, err := fetchTree(ctx, client)
	if err != nil {
		config.LogError(logger, "simpleprint", "RunFileSync", "fetch file tree", nil, err)
		return finalizeFailed(db, &run, err)
	}

	run.Total = len(folders) + len(files)
	syncedAt := time.Now()

	for _, entry := range folders {
		if err := upsertFolder(ctx, db, entry, syncedAt); err != nil {
			run.Failed++
			if recErr := models.CreateSyncError(ctx, db, run.ID, "folder", entry.folder.Id, "upsert_failed", err.Error(), entry.folder.raw, true); recErr != nil {
				config.LogError(logger, "simpleprint", "RunFileSync", "record sync error", entry.folder.Id, recErr)
			}
			continue
		}
		run.Synced++
	}

	seenFileIds := make(map[string]bool, len(files))
	for _, file := range files {
		select {
		case <-ctx.Done():
			run.Status = models.SyncRunStatusPartial
			run.ErrorDetails = "Interrupted"
			return finalizeRun(context.Background(), db, &run)
		default:
		}

		seenFileIds[file.Id] = true
		if err := upsertFile(ctx, db, file, syncedAt); err != nil {
			run.Failed++
			if recErr := models.CreateSyncError(ctx, db, run.ID, "file", file.Id, "upsert_failed", err.Error(), file.raw, true); recErr != nil {
				config.LogError(logger, "simpleprint", "RunFileSync", "record sync error", file.Id, recErr)
			}
			continue
		}
		run.Synced++

		if run.Synced%progressEvery == 0 {
			run.CurrentItem = file.Name
			db.WithContext(ctx).Model(&models.SyncRun{}).Where("id = ?", run.ID).
				Updates(map[string]any{"synced": run.Synced, "failed": run.Failed, "current_item": run.CurrentItem})
		}
	}

	if opts.FullSync {
		deleted, err := pruneAbsentFiles(ctx, db, seenFileIds)
		if err != nil {
			config.LogError(logger, "simpleprint", "RunFileSync", "prune absent files", nil, err)
		} else {
			run.Deleted = deleted
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
	}).Info("simpleprint file sync finished")
	return nil
}

// fetchTree walks the folder tree breadth-first. The visited set guards
// against parent cycles in upstream data; files arrive grouped per folder.
func fetchTree(ctx context.Context, client *Client) ([]fetchedFolder, []RemoteFile, error) {
	type queueEntry struct {
		folderId string
		depth    int
	}

	visited := map[string]bool{"": true}
	queue := []queueEntry{{folderId: "", depth: 0}}

	var folders []fetchedFolder
	var files []RemoteFile

	for len(queue) > 0 {
		entry := queue[0]
		queue = queue[1:]

		select {
		case <-ctx.Done():
			return folders, files, ctx.Err()
		default:
		}

		childFolders, childFiles, err := client.GetFilesAndFolders(ctx, entry.folderId)
		if err != nil {
			return folders, files, err
		}
		files = append(files, childFiles...)

		for _, folder := range childFolders {
			if visited[folder.Id] {
				continue
			}
			visited[folder.Id] = true

			// Sparse list entries carry no name; the folder detail does.
			if folder.Name == "" {
				if detail, detailErr := client.GetFolder(ctx, folder.Id); detailErr == nil && detail != nil {
					folder = *detail
				}
			}

			folders = append(folders, fetchedFolder{folder: folder, depth: entry.depth + 1})
			queue = append(queue, queueEntry{folderId: folder.Id, depth: entry.depth + 1})
		}
	}
	// Breadth-first order is ascending depth order already.
	return folders, files, nil
}

func upsertFolder(ctx context.Context, db *gorm.DB, entry fetchedFolder, syncedAt time.Time) error {
	var existing models.PrintFolder
	err := db.WithContext(ctx).Where("remote_id = ?", entry.folder.Id).Take(&existing).Error
	if err != nil && err != gorm.ErrRecordNotFound {
		return err
	}
	existing.RemoteId = entry.folder.Id
	existing.ParentRemoteId = entry.folder.Parent
	existing.Name = entry.folder.Name
	existing.Depth = entry.depth
	existing.RawPayload = entry.folder.raw
	existing.LastSyncedAt = &syncedAt
	return db.WithContext(ctx).Save(&existing).Error
}

func upsertFile(ctx context.Context, db *gorm.DB, file RemoteFile, syncedAt time.Time) error {
	var existing models.PrintFile
	err := db.WithContext(ctx).Where("remote_id = ?", file.Id).Take(&existing).Error
	if err != nil && err != gorm.ErrRecordNotFound {
		return err
	}
	existing.RemoteId = file.Id
	existing.FolderRemoteId = file.Folder
	existing.Name = file.Name
	existing.SizeBytes = file.Size
	existing.RawPayload = file.raw
	existing.LastSyncedAt = &syncedAt
	return db.WithContext(ctx).Save(&existing).Error
}

func pruneAbsentFiles(ctx context.Context, db *gorm.DB, seen map[string]bool) (int, error) {
	var local []models.PrintFile
	if err := db.WithContext(ctx).Select("id", "remote_id").Find(&local).Error; err != nil {
		return 0, err
	}
	deleted := 0
	for _, file := range local {
		if seen[file.RemoteId] {
			continue
		}
		if err := db.WithContext(ctx).Delete(&models.PrintFile{}, file.ID).Error; err != nil {
			return deleted, err
		}
		deleted++
	}
	return deleted, nil
}

// RunPrinterSync records one telemetry snapshot per printer.
func RunPrinterSync(ctx context.Context) error {
	db := config.GetDB()
	logger := config.GetLogger()

	client, err := NewClient(os.Getenv("SIMPLEPRINT_TOKEN"))
	if err != nil {
		return err
	}

	printers, err := client.ListPrinters(ctx)
	if err != nil {
		config.LogError(logger, "simpleprint", "RunPrinterSync", "list printers", nil, err)
		return err
	}

	now := time.Now()
	for _, printer := range printers {
		prev, err := models.LatestPrinterSnapshot(ctx, printer.Id)
		if err != nil {
			config.LogError(logger, "simpleprint", "RunPrinterSync", "load previous snapshot", printer.Id, err)
			continue
		}
		snapshot := derivePrinterSnapshot(printer, prev, now)
		if err := db.WithContext(ctx).Create(&snapshot).Error; err != nil {
			config.LogError(logger, "simpleprint", "RunPrinterSync", "store snapshot", printer.Id, err)
		}
	}
	return nil
}

// mapPrinterState folds upstream state strings into the local closed set.
func mapPrinterState(remote string) string {
	switch strings.ToLower(strings.TrimSpace(remote)) {
	case "printing", "busy":
		return models.PrinterStatePrinting
	case "operational", "idle", "ready", "online":
		return models.PrinterStateIdle
	case "paused", "pausing":
		return models.PrinterStatePaused
	case "error", "failed":
		return models.PrinterStateError
	default:
		return models.PrinterStateOffline
	}
}

// derivePrinterSnapshot computes one observation. For a printing state with
// elapsed > 0 the job start is backdated by elapsed; a positive percentage
// additionally yields the end estimate. For an idle state, idle_since is the
// timestamp of the previous non-idle snapshot, carried forward across
// consecutive idle observations.
func derivePrinterSnapshot(printer RemotePrinter, prev *models.PrinterSnapshot, now time.Time) models.PrinterSnapshot {
	snapshot := models.PrinterSnapshot{
		PrinterRemoteId: printer.Id,
		Name:            printer.Name,
		State:           mapPrinterState(printer.State),
		RawPayload:      printer.raw,
	}

	if printer.Temps != nil {
		if d, ok := numberToDecimal(printer.Temps.Current.Nozzle); ok {
			snapshot.NozzleTemp = &d
		}
		if d, ok := numberToDecimal(printer.Temps.Current.Bed); ok {
			snapshot.BedTemp = &d
		}
		if d, ok := numberToDecimal(printer.Temps.Ambient); ok {
			snapshot.AmbientTemp = &d
		}
	}

	if snapshot.State == models.PrinterStatePrinting && printer.Job != nil {
		if d, ok := numberToDecimal(printer.Job.Percentage); ok {
			snapshot.Percentage = d
		}
		snapshot.ElapsedSeconds = printer.Job.Elapsed

		if printer.Job.Elapsed > 0 {
			start := now.Add(-time.Duration(printer.Job.Elapsed) * time.Second)
			snapshot.JobStartTime = &start

			if snapshot.Percentage.IsPositive() {
				totalSeconds := decimal.NewFromInt(printer.Job.Elapsed).
					Mul(decimal.NewFromInt(100)).
					Div(snapshot.Percentage).
					RoundBank(0)
				end := start.Add(time.Duration(totalSeconds.IntPart()) * time.Second)
				snapshot.JobEndEstimate = &end
			}
		}
	}

	if snapshot.State == models.PrinterStateIdle {
		switch {
		case prev == nil:
			snapshot.IdleSince = &now
		case prev.State == models.PrinterStateIdle && prev.IdleSince != nil:
			snapshot.IdleSince = prev.IdleSince
		default:
			createdAt := prev.CreatedAt
			snapshot.IdleSince = &createdAt
		}
	}

	return snapshot
}

func numberToDecimal(n json.Number) (decimal.Decimal, bool) {
	s := strings.TrimSpace(n.String())
	if s == "" {
		return decimal.Decimal{}, false
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Decimal{}, false
	}
	return d, true
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
		config.LogError(config.GetLogger(), "simpleprint", "finalizeFailed", "finalize run", run.ID, err)
	}
	return cause
}
