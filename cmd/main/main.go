package main

import (
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"quote-observer/src/analysis"
	"quote-observer/src/config"
	"quote-observer/src/exporter"
	"quote-observer/src/helpers"
	"quote-observer/src/interfaces"
	"quote-observer/src/logger"
	"quote-observer/src/models"
	"quote-observer/src/server"
	"quote-observer/src/statestore"
	"quote-observer/src/storage"
)

// -----------------------------------------------------------------------------

func main() {

	// Parse command line flags
	configPath := flag.String("config", "../../config/default.yaml", "path to config file")
	startFlag := flag.String("start", "", "start of the processing range (RFC3339 or YYYY-MM-DD)")
	endFlag := flag.String("end", "", "end of the processing range (RFC3339 or YYYY-MM-DD)")
	exportPath := flag.String("export", "", "CSV export path (overrides config)")
	serve := flag.Bool("serve", false, "serve results over HTTP/WebSocket after the batch")
	flag.Parse()

	// Load config from YAML file
	config, err := config.NewConfig(*configPath)
	if err != nil {
		fmt.Printf("Error loading config: %v\n", err)
		os.Exit(1)
	}

	// Setup logger
	appLogger := logger.NewLogger(config.LogLevel, config.Name)
	errorHandler := helpers.NewErrorHandler(config.LogLevel)

	// Parse the processing range
	startTs, err := parseTimeFlag(*startFlag)
	if err != nil {
		appLogger.Critical("Invalid -start: %v", err)
	}
	endTs, err := parseTimeFlag(*endFlag)
	if err != nil {
		appLogger.Critical("Invalid -end: %v", err)
	}
	if endTs < startTs {
		appLogger.Critical("-end (%d) is before -start (%d)", endTs, startTs)
	}

	// 2. Setup storage
	var db interfaces.IDatabase

	switch config.Storage.DBType {
	case "postgres":
		db, err = storage.NewPostgresDB(config.MConfig, appLogger)
	default:
		// Default to SQLite
		db, err = storage.NewSQLiteDB(config.MConfig, appLogger)
	}

	if err != nil {
		appLogger.Critical("Failed to init db: %v", err)
	}
	if err := db.Initialize(); err != nil {
		appLogger.Critical("Failed to migrate db: %v", err)
	}
	defer db.Close()

	// 3. Restore calculation state. A corrupt file aborts the batch: starting
	// from empty state would silently produce wrong statistics for every
	// window spanning the batch boundary.
	store := statestore.NewStateStore(config.MConfig, appLogger)
	states, highWaterMark, err := store.Load()
	if err != nil {
		appLogger.Critical("Failed to load calculation state: %v", err)
	}

	// 4. Load snapshots with lookback warm-up so windows are populated at the
	// start of the requested range
	lookbackFrom := startTs - int64(config.Engine.LookbackHours)*3600
	var snapshots []models.MQuoteSnapshot
	err = errorHandler.ExecuteWithRetry("Load snapshots from database", func() error {
		var loadErr error
		snapshots, loadErr = db.LoadQuoteSnapshots(lookbackFrom, endTs)
		return loadErr
	}, 3)
	if err != nil {
		appLogger.Critical("Failed to load snapshots: %v", err)
	}
	appLogger.Info("Loaded %d snapshots for range [%d, %d] (lookback from %d)", len(snapshots), startTs, endTs, lookbackFrom)

	// 5. Process
	engine := analysis.NewEngine(config.MConfig, states, highWaterMark, appLogger)
	results := engine.Process(snapshots, startTs, endTs)

	// 6. Persist results before the state file: a failure here leaves the
	// previous state untouched and the batch re-runnable
	err = errorHandler.ExecuteWithRetry("Save results to database", func() error {
		return db.SaveStdevRecordsBulk(results)
	}, 3)
	if err != nil {
		appLogger.Critical("Failed to save results: %v", err)
	}

	// 7. CSV export
	csvPath := config.Export.CSVPath
	if *exportPath != "" {
		csvPath = *exportPath
	}
	if csvPath != "" && len(results) > 0 {
		if err := exporter.WriteStdevCSV(results, csvPath); err != nil {
			appLogger.Critical("Failed to export CSV: %v", err)
		}
		appLogger.Info("Exported %d records to %s", len(results), csvPath)
	}

	// 8. Persist calculation state (atomic replace)
	if err := store.Save(engine.States, engine.HighWaterMark); err != nil {
		appLogger.Critical("Failed to save calculation state: %v", err)
	}

	// 9. Retention cleanup
	db.CleanupOldData()

	appLogger.Info("Batch complete: %d records emitted", len(results))

	if !*serve {
		return
	}

	// 10. Serve mode: expose the batch results until interrupted
	var srv interfaces.IDataExchanger = server.NewResultServer(config.MConfig, appLogger)

	payload := buildPayload(results, engine.Metrics, startTs, endTs)
	srv.UpdateAllDatas(payload)

	go func() {
		if err := srv.Start(); err != nil {
			appLogger.Error("Server failed: %v", err)
		}
	}()
	srv.Broadcast(payload)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	appLogger.Info("Shutting down...")
	srv.Stop()
}

// -----------------------------------------------------------------------------

// buildPayload keeps the latest record per security for the server state
func buildPayload(results []models.MStdevRecord, metrics models.MProcessingMetrics, startTs, endTs int64) *models.MLatestData {
	latest := make(map[string]models.MStdevRecord)
	for _, r := range results {
		if prev, ok := latest[r.SecurityID]; !ok || r.Timestamp > prev.Timestamp {
			latest[r.SecurityID] = r
		}
	}

	return &models.MLatestData{
		Type:              "UPDATE",
		Results:           latest,
		RangeStart:        startTs,
		RangeEnd:          endTs,
		Timestamp:         time.Now().Unix(),
		ProcessingMetrics: metrics,
	}
}

// -----------------------------------------------------------------------------

// parseTimeFlag accepts RFC3339 or a plain date (midnight UTC)
func parseTimeFlag(s string) (int64, error) {
	if s == "" {
		return 0, fmt.Errorf("flag is required")
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t.Unix(), nil
	}
	if t, err := time.Parse("2006-01-02", s); err == nil {
		return t.Unix(), nil
	}
	return 0, fmt.Errorf("unparseable time '%s' (want RFC3339 or YYYY-MM-DD)", s)
}
