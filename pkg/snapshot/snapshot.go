package snapshot

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	pgcommands "github.com/habx/pg-commands"
	"github.com/stakewell/stakedash/internal/config"
	"github.com/stakewell/stakedash/internal/metrics"
	"github.com/stakewell/stakedash/internal/metrics/metricsTypes"
	"go.uber.org/zap"
)

const (
	PgDump    = "pg_dump"
	PgRestore = "pg_restore"
)

// SnapshotConfig encapsulates all configuration needed for snapshot operations.
type SnapshotConfig struct {
	OutputFile string
	InputFile  string
	Host       string
	Port       int
	User       string
	Password   string
	DbName     string
	SchemaName string
	// SkipHashValidation restores a dump that has no .sha256 file next to it.
	SkipHashValidation bool
}

func SnapshotConfigFromConfig(cfg *config.Config) *SnapshotConfig {
	host := cfg.DatabaseConfig.Host
	if host == "" {
		host = "localhost"
	}
	port := cfg.DatabaseConfig.Port
	if port == 0 {
		port = 5432
	}
	return &SnapshotConfig{
		OutputFile: cfg.SnapshotConfig.OutputFile,
		InputFile:  cfg.SnapshotConfig.InputFile,
		Host:       host,
		Port:       port,
		User:       cfg.DatabaseConfig.User,
		Password:   cfg.DatabaseConfig.Password,
		DbName:     cfg.DatabaseConfig.DbName,
		SchemaName: cfg.DatabaseConfig.SchemaName,
	}
}

// SnapshotService wraps pg_dump and pg_restore for the postgres driver.
type SnapshotService struct {
	cfg         *SnapshotConfig
	l           *zap.Logger
	metricsSink *metrics.MetricsSink
}

// NewSnapshotService initializes a new SnapshotService with the given configuration and logger.
func NewSnapshotService(cfg *SnapshotConfig, l *zap.Logger, ms *metrics.MetricsSink) (*SnapshotService, error) {
	var err error

	cfg.InputFile, err = resolveFilePath(cfg.InputFile)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve input file path: %w", err)
	}
	cfg.OutputFile, err = resolveFilePath(cfg.OutputFile)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve output file path: %w", err)
	}
	if ms == nil {
		ms = metrics.NewNoopMetricsSink()
	}

	l.Sugar().Infow("Resolved file paths", "inputFile", cfg.InputFile, "outputFile", cfg.OutputFile)

	return &SnapshotService{
		cfg:         cfg,
		l:           l,
		metricsSink: ms,
	}, nil
}

// resolveFilePath expands the ~ in file paths to the user's home directory and converts relative paths to absolute paths.
func resolveFilePath(path string) (string, error) {
	if path == "" {
		return "", nil
	}
	if strings.HasPrefix(path, "~/") {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("failed to get user home directory: %w", err)
		}
		path = filepath.Join(homeDir, path[2:])
	}
	absPath, err := filepath.Abs(path)
	if err != nil {
		return "", fmt.Errorf("failed to get absolute path: %w", err)
	}
	return absPath, nil
}

// CreateSnapshot dumps the database and writes the hash and metadata files next to the dump.
func (s *SnapshotService) CreateSnapshot() (*SnapshotFile, error) {
	if err := s.validateCreateSnapshotConfig(); err != nil {
		return nil, err
	}
	if !cmdExists(PgDump) {
		return nil, fmt.Errorf("%s not found in PATH", PgDump)
	}
	start := time.Now()

	dump, err := s.setupSnapshotDump()
	if err != nil {
		return nil, err
	}

	dumpExec := dump.Exec(pgcommands.ExecOptions{StreamPrint: false})
	if dumpExec.Error != nil {
		s.l.Sugar().Errorw("Failed to create database snapshot", "error", dumpExec.Error.Err, "output", dumpExec.Output)
		return nil, dumpExec.Error.Err
	}
	_ = s.metricsSink.Timing(metricsTypes.Metric_Timing_CreateSnapshot, time.Since(start), nil)

	snapshotFile := newSnapshotFile(s.cfg.OutputFile, s.cfg.SchemaName)
	if err := snapshotFile.GenerateAndSaveSnapshotHash(); err != nil {
		return nil, fmt.Errorf("error generating snapshot hash: %w", err)
	}
	if err := snapshotFile.GenerateAndSaveMetadata(); err != nil {
		return nil, fmt.Errorf("error generating metadata file: %w", err)
	}

	s.l.Sugar().Infow("Successfully created snapshot", zap.String("outputFile", snapshotFile.FullPath()))
	return snapshotFile, nil
}

// RestoreSnapshot checks the dump against its hash file and restores it.
func (s *SnapshotService) RestoreSnapshot() error {
	if err := s.validateRestoreConfig(); err != nil {
		return err
	}
	if !cmdExists(PgRestore) {
		return fmt.Errorf("%s not found in PATH", PgRestore)
	}

	if !s.cfg.SkipHashValidation {
		if err := newSnapshotFile(s.cfg.InputFile, s.cfg.SchemaName).ValidateHash(); err != nil {
			return fmt.Errorf("snapshot failed hash validation: %w", err)
		}
	}

	restore, err := s.setupRestore()
	if err != nil {
		return err
	}

	restoreExec := restore.Exec(s.cfg.InputFile, pgcommands.ExecOptions{StreamPrint: false})
	if restoreExec.Error != nil {
		s.l.Sugar().Errorw("Failed to restore from snapshot",
			"error", restoreExec.Error.Err,
			"output", restoreExec.Output,
		)
		return restoreExec.Error.Err
	}

	s.l.Sugar().Infow("Successfully restored from snapshot")
	return nil
}

func (s *SnapshotService) validateCreateSnapshotConfig() error {
	if s.cfg.Host == "" {
		return fmt.Errorf("database host is required")
	}
	if s.cfg.DbName == "" {
		return fmt.Errorf("database name is required")
	}
	if s.cfg.OutputFile == "" {
		return fmt.Errorf("output path i.e. `output-file` must be specified")
	}
	return nil
}

func (s *SnapshotService) setupSnapshotDump() (*pgcommands.Dump, error) {
	dump, err := pgcommands.NewDump(&pgcommands.Postgres{
		Host:     s.cfg.Host,
		Port:     s.cfg.Port,
		DB:       s.cfg.DbName,
		Username: s.cfg.User,
		Password: s.cfg.Password,
	})
	if err != nil {
		s.l.Sugar().Errorw("Failed to initialize pg-commands Dump", "error", err)
		return nil, err
	}

	dump.Options = append(dump.Options, "--no-owner", "--no-privileges")
	if s.cfg.SchemaName != "" {
		dump.Options = append(dump.Options, fmt.Sprintf("--schema=%s", s.cfg.SchemaName))
	}

	dump.SetFileName(s.cfg.OutputFile)

	return dump, nil
}

func (s *SnapshotService) validateRestoreConfig() error {
	if s.cfg.InputFile == "" {
		return fmt.Errorf("restore snapshot file path i.e. `input-file` must be specified")
	}
	if s.cfg.DbName == "" {
		return fmt.Errorf("database name is required")
	}

	info, err := os.Stat(s.cfg.InputFile)
	if err != nil || info.IsDir() {
		return fmt.Errorf("snapshot file does not exist: %s", s.cfg.InputFile)
	}

	return nil
}

func (s *SnapshotService) setupRestore() (*pgcommands.Restore, error) {
	restore, err := pgcommands.NewRestore(&pgcommands.Postgres{
		Host:     s.cfg.Host,
		Port:     s.cfg.Port,
		DB:       "", // left blank to not automatically assign DB as the role
		Username: s.cfg.User,
		Password: s.cfg.Password,
	})
	if err != nil {
		s.l.Sugar().Errorw("Failed to initialize restore", "error", err)
		return nil, err
	}

	restore.Options = append(restore.Options, "--clean", "--if-exists", "--no-owner", "--no-privileges")
	restore.Options = append(restore.Options, fmt.Sprintf("--dbname=%s", s.cfg.DbName))

	if s.cfg.SchemaName != "" {
		restore.SetSchemas([]string{s.cfg.SchemaName})
	}

	return restore, nil
}
