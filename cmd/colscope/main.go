package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/url"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/guillermoBallester/colscope/internal/adapter/mcp"
	"github.com/guillermoBallester/colscope/internal/adapter/postgres"
	"github.com/guillermoBallester/colscope/internal/adapter/rules"
	"github.com/guillermoBallester/colscope/internal/audit"
	"github.com/guillermoBallester/colscope/internal/config"
	"github.com/guillermoBallester/colscope/internal/core/domain"
	"github.com/guillermoBallester/colscope/internal/core/port"
	"github.com/guillermoBallester/colscope/internal/core/service"
	"github.com/guillermoBallester/colscope/internal/render"
	"github.com/guillermoBallester/colscope/internal/telemetry"
	mcpserver "github.com/mark3labs/mcp-go/server"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"go.opentelemetry.io/otel/trace"
)

var version = "dev"

func main() {
	if err := newRootCmd(os.Stdout).Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func newRootCmd(stdout io.Writer) *cobra.Command {
	flags := &flagValues{}

	root := &cobra.Command{
		Use:           "colscope",
		Short:         "Column-level redundancy and duplication analysis for Postgres tables",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	flags.register(root.PersistentFlags())

	// withApp wires the application for one command and tears it down after.
	withApp := func(fn func(ctx context.Context, a *app, args []string) error) func(*cobra.Command, []string) error {
		return func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGTERM, syscall.SIGINT)
			defer stop()

			a, err := newApp(ctx, flags.overrides(cmd.Flags()), stdout)
			if err != nil {
				return err
			}
			defer a.close()
			return fn(ctx, a, args)
		}
	}

	root.AddCommand(
		&cobra.Command{
			Use:   "analyze [tables...]",
			Short: "Run the full column analysis and print the report",
			RunE:  withApp(runAnalyze),
		},
		&cobra.Command{
			Use:   "shared [tables...]",
			Short: "List column names shared by at least --min-occurrence tables",
			RunE:  withApp(runShared),
		},
		&cobra.Command{
			Use:   "explore <table>",
			Short: "Show a table's columns, sample rows, and pattern samples",
			Args:  cobra.ExactArgs(1),
			RunE:  withApp(runExplore),
		},
		&cobra.Command{
			Use:   "counts [tables...]",
			Short: "Print the row count of each table",
			RunE:  withApp(runCounts),
		},
		&cobra.Command{
			Use:   "query <sql>",
			Short: "Run one read-only SELECT or EXPLAIN statement",
			Args:  cobra.ExactArgs(1),
			RunE:  withApp(runQuery),
		},
		&cobra.Command{
			Use:   "serve",
			Short: "Serve the analysis tools over MCP stdio",
			Args:  cobra.NoArgs,
			RunE:  withApp(runServe),
		},
	)

	return root
}

// app is the wired application shared by every subcommand.
type app struct {
	cfg      *config.Config
	logger   *slog.Logger
	out      io.Writer
	tables   []string
	analysis *service.AnalysisService
	explore  *service.ExploreService
	query    *service.QueryService
	tracer   trace.Tracer
	inst     port.Instrumentation
	closers  []func()
}

func newApp(ctx context.Context, overrides config.Overrides, out io.Writer) (a *app, err error) {
	cfg, err := config.Load(overrides)
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}

	// Logs go to stderr; stdout carries reports and the MCP stdio transport.
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: cfg.LogLevel,
	}))

	a = &app{cfg: cfg, logger: logger, out: out}
	defer func() {
		if err != nil {
			a.close()
		}
	}()

	settings, tables, err := loadSettings(cfg)
	if err != nil {
		return nil, err
	}
	a.tables = tables

	logger.Info("starting colscope",
		slog.String("version", version),
		slog.String("database", redactDSN(cfg.DatabaseURL)),
		slog.String("schema", cfg.Schema),
		slog.Any("tables", tables),
		slog.Int("workers", cfg.Workers()),
		slog.Float64("semantic_threshold", settings.SemanticThreshold),
		slog.Float64("near_empty_threshold", settings.NearEmptyThreshold),
		slog.Int("min_occurrence", settings.MinOccurrence),
	)

	tracer := telemetry.NoopTracer()
	var inst port.Instrumentation = telemetry.NoopInstruments()
	if cfg.OTelEnabled {
		provider, err := telemetry.Init(ctx, telemetry.Options{
			ServiceName: "colscope",
			Version:     version,
			Schema:      cfg.Schema,
		})
		if err != nil {
			return nil, fmt.Errorf("initializing telemetry: %w", err)
		}
		a.closers = append(a.closers, func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := provider.Shutdown(shutdownCtx); err != nil {
				logger.Error("telemetry shutdown failed", slog.String("error", err.Error()))
			}
		})
		tracer = telemetry.Tracer()
		inst = telemetry.NewInstruments()
		logger.Info("telemetry enabled")
	}

	var auditor port.QueryAuditor = port.NoopAuditor{}
	if cfg.AuditLog != "" {
		fa, err := audit.NewFileAuditor(cfg.AuditLog)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, func() { _ = fa.Close() })
		auditor = fa
		logger.Info("audit log enabled", slog.String("path", cfg.AuditLog))
	}

	pool, err := postgres.NewPool(ctx, cfg.DatabaseURL, postgres.PoolConfig{
		MaxConns:        cfg.PoolMaxConns,
		MinConns:        cfg.PoolMinConns,
		MaxConnLifetime: cfg.PoolMaxConnLifetime,
	})
	if err != nil {
		return nil, fmt.Errorf("connecting to database: %w", err)
	}
	a.closers = append(a.closers, pool.Close)
	logger.Info("database pool connected", slog.String("db.system", "postgresql"))

	store := postgres.NewStore(pool, cfg.Schema, cfg.QueryTimeout)
	executor := postgres.NewExecutor(pool, cfg.MaxRows, cfg.QueryTimeout)

	a.tracer, a.inst = tracer, inst
	a.analysis = service.NewAnalysisService(store, settings, cfg.Workers(), auditor, logger, tracer, inst)
	a.explore = service.NewExploreService(store, settings.ExplorePatterns, settings.SampleLimit, cfg.Workers(), logger, tracer)
	a.query = service.NewQueryService(domain.NewPgQueryValidator(), executor, auditor, logger, tracer, inst)

	return a, nil
}

// close releases resources in reverse acquisition order.
func (a *app) close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}

// loadSettings layers built-in defaults, the rules file, then explicit config
// values, and resolves the default table set.
func loadSettings(cfg *config.Config) (domain.Settings, []string, error) {
	var (
		r   *rules.Rules
		err error
	)
	if cfg.RulesFile != "" {
		r, err = rules.LoadFromFile(cfg.RulesFile)
	} else {
		r, err = rules.Default()
	}
	if err != nil {
		return domain.Settings{}, nil, fmt.Errorf("loading rules: %w", err)
	}

	settings := domain.DefaultSettings()
	r.Apply(&settings)
	cfg.ApplyTo(&settings)
	if err := settings.Validate(); err != nil {
		return domain.Settings{}, nil, err
	}

	tables := cfg.Tables
	if len(tables) == 0 {
		tables = r.Tables
	}
	return settings, tables, nil
}

// tablesOrDefault returns args when given, otherwise the configured set.
func (a *app) tablesOrDefault(args []string) []string {
	var out []string
	for _, arg := range args {
		out = append(out, service.ParseTableList(arg)...)
	}
	if len(out) > 0 {
		return out
	}
	return a.tables
}

func (a *app) jsonOutput() bool { return a.cfg.Output == "json" }

func runAnalyze(ctx context.Context, a *app, args []string) error {
	report, err := a.analysis.Analyze(ctx, a.tablesOrDefault(args))
	if err != nil {
		return err
	}
	if a.jsonOutput() {
		return render.JSON(a.out, report)
	}
	return render.Report(a.out, report)
}

func runShared(ctx context.Context, a *app, args []string) error {
	k := a.analysis.Settings().MinOccurrence
	shared, skipped, err := a.analysis.SharedColumns(ctx, a.tablesOrDefault(args), k)
	if err != nil {
		return err
	}
	if a.jsonOutput() {
		return render.JSON(a.out, map[string]any{
			"min_occurrence": k,
			"shared_columns": shared,
			"skipped_tables": skipped,
		})
	}
	return render.Shared(a.out, k, shared, skipped)
}

func runExplore(ctx context.Context, a *app, args []string) error {
	e, err := a.explore.ExploreTable(ctx, args[0])
	if err != nil {
		return err
	}
	if a.jsonOutput() {
		return render.JSON(a.out, e)
	}
	return render.Exploration(a.out, e)
}

func runCounts(ctx context.Context, a *app, args []string) error {
	tables := a.tablesOrDefault(args)
	if len(tables) == 0 {
		return domain.ErrNoTables
	}
	counts, err := a.explore.CountRows(ctx, tables)
	if err != nil {
		return err
	}
	if a.jsonOutput() {
		return render.JSON(a.out, counts)
	}
	return render.RowCounts(a.out, counts)
}

func runQuery(ctx context.Context, a *app, args []string) error {
	rows, err := a.query.Execute(service.WithOperation(ctx, "query"), args[0])
	if err != nil {
		return err
	}
	return render.JSON(a.out, rows)
}

func runServe(ctx context.Context, a *app, _ []string) error {
	s := mcp.NewServer(version, mcp.Services{
		Analysis:      a.analysis,
		Explore:       a.explore,
		Query:         a.query,
		DefaultTables: a.tables,
	}, a.logger, a.tracer, a.inst)

	a.logger.Info("serving MCP over stdio")
	stdio := mcpserver.NewStdioServer(s)
	if err := stdio.Listen(ctx, os.Stdin, a.out); err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("stdio server: %w", err)
	}

	a.logger.Info("shutdown complete")
	return nil
}

// flagValues holds raw flag destinations. Only flags the user actually set
// become overrides.
type flagValues struct {
	databaseURL         string
	schema              string
	tables              []string
	rulesFile           string
	logLevel            string
	maxRows             int
	queryTimeout        time.Duration
	sampleLimit         int
	semanticSampleLimit int
	semanticThreshold   float64
	nearEmptyThreshold  float64
	minOccurrence       int
	concurrency         int
	output              string
	otel                bool
	auditLog            string
	poolMaxConns        int32
	poolMinConns        int32
	poolMaxConnLifetime time.Duration
}

func (f *flagValues) register(fs *pflag.FlagSet) {
	fs.StringVar(&f.databaseURL, "database-url", "", "Postgres connection string (env DATABASE_URL)")
	fs.StringVar(&f.schema, "schema", "", "schema the tables live in (env SCHEMA)")
	fs.StringSliceVar(&f.tables, "tables", nil, "default table set, comma-separated (env TABLES)")
	fs.StringVar(&f.rulesFile, "rules-file", "", "YAML rules file (env RULES_FILE)")
	fs.StringVar(&f.logLevel, "log-level", "", "debug, info, warn or error (env LOG_LEVEL)")
	fs.IntVar(&f.maxRows, "max-rows", 0, "row cap for the query command (env MAX_ROWS)")
	fs.DurationVar(&f.queryTimeout, "query-timeout", 0, "per-statement timeout (env QUERY_TIMEOUT)")
	fs.IntVar(&f.sampleLimit, "sample-limit", 0, "distinct values per column sample (env SAMPLE_LIMIT)")
	fs.IntVar(&f.semanticSampleLimit, "semantic-sample-limit", 0, "distinct values sampled for overlap detection (env SEMANTIC_SAMPLE_LIMIT)")
	fs.Float64Var(&f.semanticThreshold, "semantic-threshold", 0, "Jaccard similarity a pair must exceed (env SEMANTIC_THRESHOLD)")
	fs.Float64Var(&f.nearEmptyThreshold, "near-empty-threshold", 0, "null ratio at which a column is near-empty (env NEAR_EMPTY_THRESHOLD)")
	fs.IntVar(&f.minOccurrence, "min-occurrence", 0, "tables a shared column must appear in (env SHARED_MIN_OCCURRENCE)")
	fs.IntVar(&f.concurrency, "concurrency", 0, "concurrent store reads (env CONCURRENCY)")
	fs.StringVar(&f.output, "output", "", "text or json (env OUTPUT)")
	fs.BoolVar(&f.otel, "otel", false, "enable OpenTelemetry export (env OTEL_ENABLED)")
	fs.StringVar(&f.auditLog, "audit-log", "", "append an NDJSON audit record for every store read")
	fs.Int32Var(&f.poolMaxConns, "pool-max-conns", 0, "maximum pool connections (env POOL_MAX_CONNS)")
	fs.Int32Var(&f.poolMinConns, "pool-min-conns", 0, "minimum pool connections (env POOL_MIN_CONNS)")
	fs.DurationVar(&f.poolMaxConnLifetime, "pool-max-conn-lifetime", 0, "maximum connection lifetime (env POOL_MAX_CONN_LIFETIME)")
}

func (f *flagValues) overrides(fs *pflag.FlagSet) config.Overrides {
	o := config.Overrides{
		OTelEnabled: f.otel,
		AuditLog:    f.auditLog,
	}
	if fs.Changed("database-url") {
		o.DatabaseURL = &f.databaseURL
	}
	if fs.Changed("schema") {
		o.Schema = &f.schema
	}
	if fs.Changed("tables") {
		o.Tables = f.tables
	}
	if fs.Changed("rules-file") {
		o.RulesFile = &f.rulesFile
	}
	if fs.Changed("log-level") {
		o.LogLevel = &f.logLevel
	}
	if fs.Changed("max-rows") {
		o.MaxRows = &f.maxRows
	}
	if fs.Changed("query-timeout") {
		o.QueryTimeout = &f.queryTimeout
	}
	if fs.Changed("sample-limit") {
		o.SampleLimit = &f.sampleLimit
	}
	if fs.Changed("semantic-sample-limit") {
		o.SemanticSampleLimit = &f.semanticSampleLimit
	}
	if fs.Changed("semantic-threshold") {
		o.SemanticThreshold = &f.semanticThreshold
	}
	if fs.Changed("near-empty-threshold") {
		o.NearEmptyThreshold = &f.nearEmptyThreshold
	}
	if fs.Changed("min-occurrence") {
		o.MinOccurrence = &f.minOccurrence
	}
	if fs.Changed("concurrency") {
		o.Concurrency = &f.concurrency
	}
	if fs.Changed("output") {
		o.Output = &f.output
	}
	if fs.Changed("pool-max-conns") {
		o.PoolMaxConns = &f.poolMaxConns
	}
	if fs.Changed("pool-min-conns") {
		o.PoolMinConns = &f.poolMinConns
	}
	if fs.Changed("pool-max-conn-lifetime") {
		o.PoolMaxConnLifetime = &f.poolMaxConnLifetime
	}
	return o
}

// redactDSN masks the password in a connection URL for logging.
func redactDSN(dsn string) string {
	u, err := url.Parse(dsn)
	if err != nil || u.Scheme == "" {
		return "***"
	}
	if _, ok := u.User.Password(); ok {
		u.User = url.UserPassword(u.User.Username(), "***")
	}
	return u.String()
}
