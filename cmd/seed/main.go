package main

import (
	"flag"
	"fmt"
	"math"
	"math/rand"
	"os"
	"time"

	"quote-observer/src/config"
	"quote-observer/src/exporter"
	"quote-observer/src/interfaces"
	"quote-observer/src/logger"
	"quote-observer/src/models"
	"quote-observer/src/storage"
)

// -----------------------------------------------------------------------------
// seed populates the snapshot table, either from a CSV file or with a
// generated random-walk fixture. Useful for local runs and demos.
// -----------------------------------------------------------------------------

func main() {
	configPath := flag.String("config", "../../config/default.yaml", "path to config file")
	csvPath := flag.String("csv", "", "CSV file of snapshots to ingest (security_id,timestamp,bid,mid,ask)")
	securities := flag.Int("securities", 5, "number of synthetic securities to generate")
	hours := flag.Int("hours", 240, "hours of synthetic history per security")
	startFlag := flag.String("start", "", "first synthetic timestamp (RFC3339, default: now minus the generated span)")
	gapEvery := flag.Int("gap-every", 0, "insert a missing hour every N snapshots (0 = none)")
	missingRate := flag.Float64("missing-rate", 0.02, "probability of a missing mid value per snapshot")
	seed := flag.Int64("seed", 42, "random seed")
	flag.Parse()

	cfg, err := config.NewConfig(*configPath)
	if err != nil {
		fmt.Printf("Error loading config: %v\n", err)
		os.Exit(1)
	}

	appLogger := logger.NewLogger(cfg.LogLevel, "seed")

	var db interfaces.IDatabase
	switch cfg.Storage.DBType {
	case "postgres":
		db, err = storage.NewPostgresDB(cfg.MConfig, appLogger)
	default:
		db, err = storage.NewSQLiteDB(cfg.MConfig, appLogger)
	}
	if err != nil {
		appLogger.Critical("Failed to init db: %v", err)
	}
	if err := db.Initialize(); err != nil {
		appLogger.Critical("Failed to migrate db: %v", err)
	}
	defer db.Close()

	var snapshots []models.MQuoteSnapshot

	if *csvPath != "" {
		snapshots, err = exporter.ReadSnapshotsCSV(*csvPath)
		if err != nil {
			appLogger.Critical("Failed to read CSV: %v", err)
		}
		appLogger.Info("Read %d snapshots from %s", len(snapshots), *csvPath)
	} else {
		startTs := time.Now().UTC().Truncate(time.Hour).Add(-time.Duration(*hours) * time.Hour).Unix()
		if *startFlag != "" {
			t, err := time.Parse(time.RFC3339, *startFlag)
			if err != nil {
				appLogger.Critical("Invalid -start: %v", err)
			}
			startTs = t.Unix()
		}
		snapshots = generate(*securities, *hours, startTs, *gapEvery, *missingRate, *seed)
		appLogger.Info("Generated %d synthetic snapshots (%d securities x %d hours)", len(snapshots), *securities, *hours)
	}

	if err := db.SaveQuoteSnapshotsBulk(snapshots); err != nil {
		appLogger.Critical("Failed to save snapshots: %v", err)
	}

	appLogger.Info("Seed complete")
}

// -----------------------------------------------------------------------------

// generate builds hourly random-walk quotes. Mid walks, bid/ask bracket it
// with a small spread; optional periodic gaps and missing mids exercise the
// engine's reset and missing-field paths.
func generate(securities, hours int, startTs int64, gapEvery int, missingRate float64, seed int64) []models.MQuoteSnapshot {
	rng := rand.New(rand.NewSource(seed))
	var snapshots []models.MQuoteSnapshot

	for sec := 0; sec < securities; sec++ {
		id := fmt.Sprintf("SEC%03d", sec+1)
		mid := 50.0 + rng.Float64()*100.0

		for h := 0; h < hours; h++ {
			if gapEvery > 0 && h > 0 && h%gapEvery == 0 {
				continue // missing hour: the engine should reset here
			}

			mid += rng.NormFloat64() * 0.5
			if mid < 1 {
				mid = 1
			}
			spread := 0.01 + rng.Float64()*0.05

			snap := models.MQuoteSnapshot{
				SecurityID: id,
				Timestamp:  startTs + int64(h)*3600,
				Bid:        mid - spread,
				Mid:        mid,
				Ask:        mid + spread,
			}
			if rng.Float64() < missingRate {
				snap.Mid = math.NaN()
			}

			snapshots = append(snapshots, snap)
		}
	}

	return snapshots
}
