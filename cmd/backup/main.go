package main

import (
	"bufio"
	"bytes"
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"edugame/internal/config"
	"edugame/internal/database"
	"edugame/internal/logger"
	"edugame/internal/service"
	"edugame/internal/storage"
	"edugame/migrations"
)

func main() {
	// Define subcommands
	exportCmd := flag.NewFlagSet("export", flag.ExitOnError)
	importCmd := flag.NewFlagSet("import", flag.ExitOnError)

	// Export flags
	exportOutput := exportCmd.String("output", "", "Output file path (default: edugame_backup_YYYYMMDD_HHMMSS.json)")
	exportUpload := exportCmd.Bool("upload", false, "Also upload the backup to the S3 bucket")

	// Import flags
	importInput := importCmd.String("input", "", "Input file path")
	importObject := importCmd.String("object", "", "Object key to download from the S3 bucket instead of -input")
	importClear := importCmd.Bool("clear", false, "Clear existing data before import (WARNING: destructive)")
	importYes := importCmd.Bool("yes", false, "Skip the confirmation prompt for -clear")

	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	cfg := config.Load()
	log := logger.New("edugame-backup", cfg.LogLevel)
	ctx := context.Background()

	db, err := database.InitializeWithConfig(cfg)
	if err != nil {
		log.WithError(err).Fatal("failed to initialize database")
	}
	defer db.Close()

	// Run migrations to ensure schema is up to date
	if _, err := db.RunMigrations(ctx, migrations.FS); err != nil {
		log.WithError(err).Fatal("failed to run migrations")
	}

	backupService := service.NewBackupService(db, log)

	switch os.Args[1] {
	case "export":
		_ = exportCmd.Parse(os.Args[2:])
		if err := handleExport(ctx, cfg, log, backupService, *exportOutput, *exportUpload); err != nil {
			log.WithError(err).Fatal("export failed")
		}

	case "import":
		_ = importCmd.Parse(os.Args[2:])
		if (*importInput == "") == (*importObject == "") {
			fmt.Println("Error: exactly one of -input or -object is required")
			importCmd.PrintDefaults()
			os.Exit(1)
		}
		if err := handleImport(ctx, cfg, log, backupService, *importInput, *importObject, *importClear, *importYes); err != nil {
			log.WithError(err).Fatal("import failed")
		}

	default:
		printUsage()
		os.Exit(1)
	}
}

func objectStore(cfg *config.Config) (*storage.ObjectStore, error) {
	return storage.NewObjectStore(storage.Config{
		Endpoint:  cfg.S3Endpoint,
		AccessKey: cfg.S3AccessKey,
		SecretKey: cfg.S3SecretKey,
		UseSSL:    cfg.S3UseSSL,
		Bucket:    cfg.BackupBucket,
	})
}

func handleExport(ctx context.Context, cfg *config.Config, log logrus.FieldLogger, backupService *service.BackupService, outputPath string, upload bool) error {
	now := time.Now()
	if outputPath == "" {
		outputPath = fmt.Sprintf("edugame_backup_%s.json", now.Format("20060102_150405"))
	}

	dir := filepath.Dir(outputPath)
	if dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create output directory: %w", err)
		}
	}

	var buf bytes.Buffer
	if _, err := backupService.Export(ctx, &buf); err != nil {
		return err
	}
	if err := os.WriteFile(outputPath, buf.Bytes(), 0600); err != nil {
		return fmt.Errorf("failed to write %s: %w", outputPath, err)
	}
	log.WithFields(logrus.Fields{
		"path":    outputPath,
		"size_mb": fmt.Sprintf("%.2f", float64(buf.Len())/1024/1024),
	}).Info("export complete")

	if !upload {
		return nil
	}

	store, err := objectStore(cfg)
	if err != nil {
		return err
	}
	if err := store.EnsureBucket(ctx); err != nil {
		return err
	}
	name := storage.BackupObjectName(now)
	if err := store.Upload(ctx, name, bytes.NewReader(buf.Bytes()), int64(buf.Len()), "application/json"); err != nil {
		return err
	}
	log.WithFields(logrus.Fields{"bucket": store.Bucket(), "object": name}).Info("backup uploaded")
	return nil
}

func handleImport(ctx context.Context, cfg *config.Config, log logrus.FieldLogger, backupService *service.BackupService, inputPath, object string, clearData, skipConfirm bool) error {
	var source io.ReadCloser
	if object != "" {
		store, err := objectStore(cfg)
		if err != nil {
			return err
		}
		if source, err = store.Download(ctx, object); err != nil {
			return err
		}
		log.WithFields(logrus.Fields{"bucket": store.Bucket(), "object": object}).Info("importing backup from object storage")
	} else {
		file, err := os.Open(inputPath)
		if err != nil {
			return fmt.Errorf("failed to open input file: %w", err)
		}
		source = file
		log.WithField("path", inputPath).Info("importing backup from file")
	}
	defer source.Close()

	if clearData {
		if !skipConfirm && !confirm("WARNING: This will delete all existing data. Type 'yes' to confirm: ") {
			log.Info("import cancelled")
			return nil
		}
		if err := backupService.Clear(ctx); err != nil {
			return err
		}
	}

	summary, err := backupService.Import(ctx, source)
	if err != nil {
		return err
	}

	for _, kind := range []string{"users", "questions", "levels", "results", "feedback"} {
		fmt.Printf("  %-10s imported %5d  skipped %5d\n", kind, summary.Imported[kind], summary.Skipped[kind])
	}
	log.Info("import complete")
	return nil
}

func confirm(prompt string) bool {
	fmt.Print(prompt)
	line, _ := bufio.NewReader(os.Stdin).ReadString('\n')
	return strings.TrimSpace(line) == "yes"
}

func printUsage() {
	fmt.Println("EduGame Database Backup Tool")
	fmt.Println()
	fmt.Println("Usage:")
	fmt.Println("  backup export [options]    Export database to JSON file")
	fmt.Println("  backup import [options]    Import database from JSON file or S3 object")
	fmt.Println()
	fmt.Println("Export Options:")
	fmt.Println("  -output <file>    Output file path (default: edugame_backup_YYYYMMDD_HHMMSS.json)")
	fmt.Println("  -upload           Also upload the backup to BACKUP_BUCKET")
	fmt.Println()
	fmt.Println("Import Options:")
	fmt.Println("  -input <file>     Input file path")
	fmt.Println("  -object <key>     Object key in BACKUP_BUCKET")
	fmt.Println("  -clear            Clear existing data before import (WARNING: destructive)")
	fmt.Println("  -yes              Do not ask for confirmation")
	fmt.Println()
	fmt.Println("Environment Variables:")
	fmt.Println("  DB_TYPE          Database type: sqlite, postgres, or mysql (default: sqlite)")
	fmt.Println("  DB_PATH          SQLite database path (default: ./edugame.db)")
	fmt.Println("  DATABASE_URL     PostgreSQL or MySQL connection URL")
	fmt.Println("  S3_ENDPOINT      S3-compatible endpoint for -upload and -object")
}
