// coursegraph builds learning curricula from source repositories: it
// extracts a knowledge graph from repo analysis data, expands it through
// LLM proposal rounds, and orders the result into courses.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/term"

	"coursegraph/pkg/config"
	"coursegraph/pkg/course"
	"coursegraph/pkg/expand"
	"coursegraph/pkg/extract"
	"coursegraph/pkg/graph"
	"coursegraph/pkg/llm"
	"coursegraph/pkg/llm/factory"
	"coursegraph/pkg/merge"
	"coursegraph/pkg/metrics"
	"coursegraph/pkg/persistence"
	"coursegraph/pkg/proposal"
	"coursegraph/pkg/version"
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	var err error
	switch os.Args[1] {
	case "extract":
		err = cmdExtract(ctx, os.Args[2:])
	case "expand":
		err = cmdExpand(ctx, os.Args[2:])
	case "build":
		err = cmdBuild(ctx, os.Args[2:])
	case "pipeline":
		err = cmdPipeline(ctx, os.Args[2:])
	case "stats":
		err = cmdStats(ctx, os.Args[2:])
	case "secrets":
		err = cmdSecrets(os.Args[2:])
	case "version":
		fmt.Printf("coursegraph %s (commit %s, built %s)\n", version.Version, version.Commit, version.Date)
	case "help", "-h", "--help":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "Error: unknown command %q\n\n", os.Args[1])
		printUsage()
		os.Exit(1)
	}

	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Print(`Usage: coursegraph <command> [flags]

Commands:
  extract    Run the initial extraction round over a repo analysis file
  expand     Run expansion rounds over an existing graph
  build      Build ordered courses from an existing graph
  pipeline   extract + expand + build in one run
  stats      Show stored run statistics (and Prometheus aggregates if configured)
  secrets    Manage the encrypted secrets file
  version    Print version information

Common flags (per command):
  -config    Path to config file (JSON or YAML)
  -project   Project directory holding the .coursegraph state (default ".")
`)
}

// commonFlags are shared by every pipeline command.
type commonFlags struct {
	configPath string
	projectDir string
}

func registerCommon(fs *flag.FlagSet) *commonFlags {
	cf := &commonFlags{}
	fs.StringVar(&cf.configPath, "config", "", "Path to config file (JSON or YAML)")
	fs.StringVar(&cf.projectDir, "project", ".", "Project directory")
	return cf
}

// setup unlocks secrets if present, loads configuration, and returns it.
func setup(cf *commonFlags) (*config.Config, error) {
	if config.SecretsFileExists(cf.projectDir) {
		password, err := promptPassword("Secrets passphrase: ")
		if err != nil {
			return nil, err
		}
		secrets, err := config.DecryptSecretsFile(cf.projectDir, password)
		if err != nil {
			return nil, err
		}
		config.SetDecryptedSecrets(secrets)
	}
	return config.Load(cf.configPath)
}

func newClient(cfg *config.Config, recorder *metrics.Recorder, phase string) (llm.Client, error) {
	return factory.NewInstrumentedClient(cfg.LLM.Provider, llm.Config{
		APIKey:      cfg.LLM.APIKey,
		BaseURL:     cfg.LLM.BaseURL,
		ModelName:   cfg.LLM.Model,
		MaxTokens:   cfg.LLM.MaxTokens,
		Temperature: cfg.LLM.Temperature,
	}, recorder, phase)
}

// initMetrics starts the /metrics endpoint when configured and returns the
// recorder the pipeline observes through. Without an address everything is
// recorded into a no-op.
func initMetrics(cfg *config.Config) *metrics.Recorder {
	if cfg.MetricsAddr == "" {
		return metrics.NewNopRecorder()
	}
	recorder := metrics.NewRecorder()
	go func() {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.Handler())
		server := &http.Server{Addr: cfg.MetricsAddr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			fmt.Fprintf(os.Stderr, "metrics endpoint failed: %v\n", err)
		}
	}()
	return recorder
}

func cmdExtract(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("extract", flag.ExitOnError)
	cf := registerCommon(fs)
	analysisPath := fs.String("analysis", "", "Repo analysis JSON file (required)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *analysisPath == "" {
		return fmt.Errorf("-analysis is required")
	}

	cfg, err := setup(cf)
	if err != nil {
		return err
	}
	recorder := initMetrics(cfg)
	client, err := newClient(cfg, recorder, "extract")
	if err != nil {
		return err
	}
	analysis, err := extract.LoadAnalysis(*analysisPath)
	if err != nil {
		return err
	}

	store := graph.NewStore()
	engine := merge.NewEngine(store)
	extractor := extract.NewExtractor(client, engine)

	report, err := extractor.Extract(ctx, analysis)
	if err != nil {
		return err
	}

	graphPath := config.ResolvePath(cf.projectDir, cfg.GraphPath)
	if err := store.Save(graphPath); err != nil {
		return err
	}
	if err := indexRun(cf, cfg, store, nil); err != nil {
		return err
	}

	fmt.Printf("Extracted %d concepts (%d merged, %d rejected) -> %s\n",
		report.Accepted, report.Merged, len(report.Rejected), graphPath)
	return nil
}

func cmdExpand(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("expand", flag.ExitOnError)
	cf := registerCommon(fs)
	rounds := fs.Int("rounds", 0, "Expansion rounds (default from config)")
	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg, err := setup(cf)
	if err != nil {
		return err
	}
	recorder := initMetrics(cfg)
	client, err := newClient(cfg, recorder, "expand")
	if err != nil {
		return err
	}

	graphPath := config.ResolvePath(cf.projectDir, cfg.GraphPath)
	store, err := graph.Load(graphPath)
	if err != nil {
		return err
	}

	report, err := runExpansion(ctx, cfg, client, store, recorder, *rounds)
	if err != nil {
		return err
	}
	if err := store.Save(graphPath); err != nil {
		return err
	}
	if err := indexRun(cf, cfg, store, nil); err != nil {
		return err
	}

	fmt.Printf("Expansion: %d/%d rounds executed, graph now holds %d concepts\n",
		report.RoundsExecuted, report.RoundsRequested, store.Len())
	return nil
}

func cmdBuild(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("build", flag.ExitOnError)
	cf := registerCommon(fs)
	noContent := fs.Bool("no-content", false, "Skip lesson content generation")
	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg, err := setup(cf)
	if err != nil {
		return err
	}
	recorder := initMetrics(cfg)

	graphPath := config.ResolvePath(cf.projectDir, cfg.GraphPath)
	store, err := graph.Load(graphPath)
	if err != nil {
		return err
	}

	courses, err := buildCourses(ctx, cfg, store, recorder, *noContent)
	if err != nil {
		return err
	}

	coursesPath := config.ResolvePath(cf.projectDir, cfg.CoursesPath)
	if err := course.Save(coursesPath, courses); err != nil {
		return err
	}
	if err := indexRun(cf, cfg, store, courses); err != nil {
		return err
	}

	fmt.Printf("Built %d courses -> %s\n", len(courses), coursesPath)
	return nil
}

func cmdPipeline(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("pipeline", flag.ExitOnError)
	cf := registerCommon(fs)
	analysisPath := fs.String("analysis", "", "Repo analysis JSON file (required)")
	rounds := fs.Int("rounds", 0, "Expansion rounds (default from config)")
	noContent := fs.Bool("no-content", false, "Skip lesson content generation")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *analysisPath == "" {
		return fmt.Errorf("-analysis is required")
	}

	cfg, err := setup(cf)
	if err != nil {
		return err
	}
	recorder := initMetrics(cfg)
	client, err := newClient(cfg, recorder, "extract")
	if err != nil {
		return err
	}
	analysis, err := extract.LoadAnalysis(*analysisPath)
	if err != nil {
		return err
	}

	store := graph.NewStore()
	engine := merge.NewEngine(store)

	if _, err := extract.NewExtractor(client, engine).Extract(ctx, analysis); err != nil {
		return err
	}
	expandClient, err := newClient(cfg, recorder, "expand")
	if err != nil {
		return err
	}
	report, err := runExpansion(ctx, cfg, expandClient, store, recorder, *rounds)
	if err != nil {
		return err
	}

	graphPath := config.ResolvePath(cf.projectDir, cfg.GraphPath)
	if err := store.Save(graphPath); err != nil {
		return err
	}

	courses, err := buildCourses(ctx, cfg, store, recorder, *noContent)
	if err != nil {
		return err
	}
	coursesPath := config.ResolvePath(cf.projectDir, cfg.CoursesPath)
	if err := course.Save(coursesPath, courses); err != nil {
		return err
	}
	if err := indexRun(cf, cfg, store, courses); err != nil {
		return err
	}

	fmt.Printf("Pipeline complete: %d concepts after %d expansion rounds, %d courses\n",
		store.Len(), report.RoundsExecuted, len(courses))
	return nil
}

func cmdStats(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("stats", flag.ExitOnError)
	cf := registerCommon(fs)
	runID := fs.String("run", "", "Run ID to inspect (default: latest indexed)")
	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg, err := config.Load(cf.configPath)
	if err != nil {
		// Stats should work without credentials; fall back to defaults.
		cfg = config.Default()
	}

	id := *runID
	if id == "" {
		id = "latest"
	}
	dbPath := config.ResolvePath(cf.projectDir, cfg.DBPath)
	store, err := persistence.Open(dbPath, id)
	if err != nil {
		return err
	}
	defer store.Close() //nolint:errcheck // Close on read path

	stats, err := store.Stats()
	if err != nil {
		return err
	}
	out, _ := json.MarshalIndent(stats, "", "  ")
	fmt.Println(string(out))

	if cfg.PrometheusURL != "" {
		qs, err := metrics.NewQueryService(cfg.PrometheusURL)
		if err != nil {
			return err
		}
		runMetrics, err := qs.GetRunMetrics(ctx, id)
		if err != nil {
			return err
		}
		out, _ := json.MarshalIndent(runMetrics, "", "  ")
		fmt.Println(string(out))
	}
	return nil
}

func cmdSecrets(args []string) error {
	fs := flag.NewFlagSet("secrets", flag.ExitOnError)
	cf := registerCommon(fs)
	set := fs.String("set", "", "Secret name to set (value prompted)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *set == "" {
		return fmt.Errorf("-set NAME is required")
	}

	password, err := promptPassword("Secrets passphrase: ")
	if err != nil {
		return err
	}

	secrets := map[string]string{}
	if config.SecretsFileExists(cf.projectDir) {
		secrets, err = config.DecryptSecretsFile(cf.projectDir, password)
		if err != nil {
			return err
		}
	}

	value, err := promptPassword(fmt.Sprintf("Value for %s: ", *set))
	if err != nil {
		return err
	}
	secrets[*set] = value

	if err := config.EncryptSecretsFile(cf.projectDir, password, secrets); err != nil {
		return err
	}
	fmt.Printf("Stored secret %s (%d secrets total)\n", *set, len(secrets))
	return nil
}

// runExpansion wires the controller with config-derived options. Each run
// gets a fresh UUID so provenance entries distinguish expansion runs.
func runExpansion(ctx context.Context, cfg *config.Config, client llm.Client, store *graph.Store, recorder *metrics.Recorder, rounds int) (expand.RunReport, error) {
	if rounds <= 0 {
		rounds = cfg.Expand.Rounds
	}
	engine := merge.NewEngine(store)
	source := proposal.NewLLMSource(client, "expand:"+uuid.NewString())
	controller := expand.NewController(store, engine, source, expand.Options{
		FrontierSize:       cfg.Expand.FrontierSize,
		SummaryTokenBudget: cfg.Expand.SummaryTokenBudget,
		MaxRetries:         cfg.Expand.MaxRetries,
		Metrics:            recorder,
	})
	return controller.Run(ctx, rounds)
}

func buildCourses(ctx context.Context, cfg *config.Config, store *graph.Store, recorder *metrics.Recorder, noContent bool) ([]course.Course, error) {
	builder := course.NewBuilder(course.Options{
		LessonSize: cfg.Course.LessonSize,
		CourseSize: cfg.Course.CourseSize,
	})
	courses, err := builder.Build(store)
	if err != nil {
		return nil, err
	}

	if cfg.Course.GenerateContent && !noContent {
		client, err := newClient(cfg, recorder, "course")
		if err != nil {
			return nil, err
		}
		if err := course.NewContentWriter(client).FillCourses(ctx, store, courses); err != nil {
			return nil, err
		}
	}
	return courses, nil
}

// indexRun mirrors the run's artifacts into SQLite for later inspection.
func indexRun(cf *commonFlags, cfg *config.Config, store *graph.Store, courses []course.Course) error {
	dbPath := config.ResolvePath(cf.projectDir, cfg.DBPath)
	db, err := persistence.Open(dbPath, "latest")
	if err != nil {
		return err
	}
	defer db.Close() //nolint:errcheck // Close after indexing

	if err := db.IndexGraph(store); err != nil {
		return err
	}
	if courses != nil {
		if err := db.IndexCourses(courses); err != nil {
			return err
		}
	}
	return nil
}

// promptPassword reads a passphrase without echo when stdin is a terminal,
// falling back to a plain line read for piped input.
func promptPassword(prompt string) (string, error) {
	fmt.Fprint(os.Stderr, prompt)
	if term.IsTerminal(int(os.Stdin.Fd())) {
		data, err := term.ReadPassword(int(os.Stdin.Fd()))
		fmt.Fprintln(os.Stderr)
		if err != nil {
			return "", fmt.Errorf("failed to read passphrase: %w", err)
		}
		return string(data), nil
	}
	var line string
	if _, err := fmt.Fscanln(os.Stdin, &line); err != nil {
		return "", fmt.Errorf("failed to read passphrase: %w", err)
	}
	return line, nil
}
