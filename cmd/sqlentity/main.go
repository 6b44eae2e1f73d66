package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/koba/sqlentity/internal/catalog"
	"github.com/koba/sqlentity/internal/codec"
	"github.com/koba/sqlentity/internal/config"
	"github.com/koba/sqlentity/internal/database"
	"github.com/koba/sqlentity/internal/ddl"
	"github.com/koba/sqlentity/internal/diff"
	"github.com/koba/sqlentity/internal/logging"
	"github.com/koba/sqlentity/internal/schema"
	"github.com/koba/sqlentity/internal/snapshot"
)

// errDrift is returned by check when the database differs from the catalog.
var errDrift = errors.New("schema drift detected")

var (
	configPath   string
	envFile      string
	databasePath string
	logLevel     string

	ifNotExists  bool
	snapshotPath string
	tables       []string
	outputDir    string
	nullLiteral  bool
)

// app holds what PersistentPreRunE prepared for the running command.
var app struct {
	config     *config.Config
	registry   *codec.Registry
	cache      *schema.Cache
	restoreLog func()
}

func main() {
	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:               "sqlentity",
	Short:             "Entity schema and serializer tool for SQLite",
	Long:              `A tool to generate, apply and check the SQLite schema of the catalog entities.`,
	SilenceUsage:      true,
	SilenceErrors:     true,
	PersistentPreRunE: setup,
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if app.restoreLog != nil {
			app.restoreLog()
			app.restoreLog = nil
		}
	},
}

var typesCmd = &cobra.Command{
	Use:   "types",
	Short: "List registered value types",
	Long:  `List every value type the registry can serialize, with its storage affinity.`,
	Args:  cobra.NoArgs,
	RunE:  runTypes,
}

var ddlCmd = &cobra.Command{
	Use:   "ddl",
	Short: "Print the catalog DDL",
	Long:  `Print CREATE TABLE and CREATE INDEX statements for the catalog entities.`,
	Args:  cobra.NoArgs,
	RunE:  runDDL,
}

var applyCmd = &cobra.Command{
	Use:   "apply",
	Short: "Create the catalog tables",
	Long:  `Create the catalog tables and indexes in the configured database.`,
	Args:  cobra.NoArgs,
	RunE:  runApply,
}

var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Report schema drift",
	Long:  `Compare the catalog entities with the live database, or with a snapshot, and report the differences.`,
	Args:  cobra.NoArgs,
	RunE:  runCheck,
}

var snapshotCmd = &cobra.Command{
	Use:   "snapshot [name]",
	Short: "Create a schema snapshot",
	Long:  `Save the schema of the configured database to a snapshot file.`,
	Args:  cobra.MaximumNArgs(1),
	RunE:  runSnapshot,
}

var literalCmd = &cobra.Command{
	Use:   "literal <type> [text]",
	Short: "Print a SQL literal",
	Long:  `Convert a textual value of a registered type to the SQL literal used in DEFAULT clauses.`,
	Args:  cobra.RangeArgs(1, 2),
	RunE:  runLiteral,
}

func init() {
	flags := rootCmd.PersistentFlags()
	flags.StringVar(&configPath, "config", "sqlentity.yaml", "Configuration file")
	flags.StringVar(&envFile, "env-file", ".env", "File with SQLENTITY_* variables")
	flags.StringVar(&databasePath, "database", "", "SQLite database file (overrides configuration)")
	flags.StringVar(&logLevel, "log-level", "", "Log level (overrides configuration)")

	ddlCmd.Flags().BoolVar(&ifNotExists, "if-not-exists", false, "Emit IF NOT EXISTS clauses")
	applyCmd.Flags().BoolVar(&ifNotExists, "if-not-exists", false, "Skip tables and indexes that already exist")
	checkCmd.Flags().StringVar(&snapshotPath, "snapshot", "", "Compare against a snapshot file instead of the database")
	snapshotCmd.Flags().StringSliceVar(&tables, "tables", nil, "Comma-separated list of tables to snapshot (default: all tables)")
	snapshotCmd.Flags().StringVar(&outputDir, "output-dir", "./snapshots", "Output directory for snapshots")
	literalCmd.Flags().BoolVar(&nullLiteral, "null", false, "Convert a NULL value")

	rootCmd.AddCommand(typesCmd)
	rootCmd.AddCommand(ddlCmd)
	rootCmd.AddCommand(applyCmd)
	rootCmd.AddCommand(checkCmd)
	rootCmd.AddCommand(snapshotCmd)
	rootCmd.AddCommand(literalCmd)
}

// setup resolves the configuration, installs the logger and builds the
// registry and schema cache of the catalog.
func setup(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadOrDefault(configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	env, err := config.Environment(envFile)
	if err != nil {
		return fmt.Errorf("failed to load environment: %w", err)
	}
	if err := cfg.ApplyEnv(env); err != nil {
		return fmt.Errorf("failed to load environment: %w", err)
	}
	if databasePath != "" {
		cfg.Database = databasePath
	}
	if logLevel != "" {
		cfg.LogLevel = logLevel
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	// a previous run that failed skipped PersistentPostRun
	if app.restoreLog != nil {
		app.restoreLog()
	}
	restore, err := logging.Install(cfg.LogLevel)
	if err != nil {
		return err
	}

	r := codec.NewRegistry()
	catalog.Register(r)
	cfg.Configure(r, catalog.GenreEnum)

	app.config = cfg
	app.registry = r
	app.cache = schema.NewCache(r)
	app.restoreLog = restore

	zap.L().Debug("configured",
		zap.String("database", cfg.Database),
		zap.String("date_format", cfg.DateFormat),
		zap.String("enum_storage", cfg.EnumStorage),
	)
	return nil
}

func declaredTables() ([]*ddl.TableSchema, error) {
	tables, err := ddl.FromTypes(app.cache, catalog.Types()...)
	if err != nil {
		return nil, fmt.Errorf("failed to build catalog schema: %w", err)
	}
	return tables, nil
}

func connect(ctx context.Context) (database.Database, error) {
	db, err := database.NewDatabase(database.Config{
		Path:              app.config.Database,
		BusyTimeoutMillis: app.config.BusyTimeoutMillis,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create database: %w", err)
	}
	if err := db.Connect(ctx); err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	return db, nil
}

func runTypes(cmd *cobra.Command, args []string) error {
	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "TYPE\tAFFINITY\tNULLABLE")
	for _, t := range app.registry.Types() {
		s, err := app.registry.Lookup(t, false)
		if err != nil {
			return err
		}
		fmt.Fprintf(w, "%s\t%s\t%t\n", t, s.Affinity(), s.Nullable())
	}
	return w.Flush()
}

func runDDL(cmd *cobra.Command, args []string) error {
	tables, err := declaredTables()
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), ddl.NewDDLGenerator(ifNotExists).Script(tables))
	return nil
}

func runApply(cmd *cobra.Command, args []string) error {
	tables, err := declaredTables()
	if err != nil {
		return err
	}
	gen := ddl.NewDDLGenerator(ifNotExists)
	var statements []string
	for _, table := range tables {
		statements = append(statements, gen.Generate(table)...)
	}

	db, err := connect(cmd.Context())
	if err != nil {
		return err
	}
	defer db.Close()

	if err := db.Apply(cmd.Context(), statements); err != nil {
		return fmt.Errorf("failed to apply schema: %w", err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Applied %d statements to %s\n", len(statements), app.config.Database)
	return nil
}

func runCheck(cmd *cobra.Command, args []string) error {
	declared, err := declaredTables()
	if err != nil {
		return err
	}

	var live []*ddl.TableSchema
	if snapshotPath != "" {
		snap, err := snapshot.LoadSnapshot(cmd.Context(), snapshotPath)
		if err != nil {
			return fmt.Errorf("failed to load snapshot: %w", err)
		}
		live = snap.TableList()
	} else {
		db, err := connect(cmd.Context())
		if err != nil {
			return err
		}
		defer db.Close()

		snap, err := snapshot.Capture(cmd.Context(), db, nil)
		if err != nil {
			return err
		}
		live = snap.TableList()
	}

	result := diff.Compare(live, declared)
	diff.Display(cmd.OutOrStdout(), result)
	if !result.Empty() {
		return errDrift
	}
	return nil
}

func runSnapshot(cmd *cobra.Command, args []string) error {
	db, err := connect(cmd.Context())
	if err != nil {
		return err
	}
	defer db.Close()

	// Generate snapshot filename
	var filename string
	if len(args) > 0 {
		filename = args[0]
		if !strings.HasSuffix(filename, ".db") {
			filename += ".db"
		}
	} else {
		base := strings.TrimSuffix(filepath.Base(app.config.Database), filepath.Ext(app.config.Database))
		filename = fmt.Sprintf("%s-%s.db", base, time.Now().Format("2006-01-02-15-04-05"))
	}
	outputPath := filepath.Join(outputDir, filename)

	if err := snapshot.CreateSnapshot(cmd.Context(), db, tables, outputPath); err != nil {
		return fmt.Errorf("failed to create snapshot: %w", err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Snapshot created successfully: %s\n", outputPath)
	return nil
}

func runLiteral(cmd *cobra.Command, args []string) error {
	t, ok := registeredType(args[0])
	if !ok {
		return fmt.Errorf("unknown type %s, see the types command", args[0])
	}
	s, err := app.registry.Lookup(t, false)
	if err != nil {
		return err
	}

	var text sql.NullString
	switch {
	case nullLiteral:
	case len(args) == 2:
		text = sql.NullString{String: args[1], Valid: true}
	default:
		return errors.New("a value or --null is required")
	}

	literal, err := s.Literal(text, nil)
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), literal)
	return nil
}

func registeredType(name string) (reflect.Type, bool) {
	for _, t := range app.registry.Types() {
		if t.String() == name {
			return t, true
		}
	}
	return nil, false
}
