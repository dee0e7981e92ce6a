package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"

	"github.com/alecthomas/kong"
	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/smileynet/promptbeam/internal/beam"
	"github.com/smileynet/promptbeam/internal/config"
	"github.com/smileynet/promptbeam/internal/logging"
	"github.com/smileynet/promptbeam/internal/metadata"
	"github.com/smileynet/promptbeam/internal/pipeline"
	"github.com/smileynet/promptbeam/internal/provider"
	"github.com/smileynet/promptbeam/internal/ratelimit"
	"github.com/smileynet/promptbeam/internal/tui"
)

var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

// CLI is the top-level command structure for promptbeam.
type CLI struct {
	Version   kong.VersionFlag `help:"Show version." short:"V"`
	Run       RunCmd           `cmd:"" help:"Refine a prompt through beam search."`
	Providers ProvidersCmd     `cmd:"" help:"List registered provider bundles."`
}

// RunCmd refines one user prompt.
type RunCmd struct {
	Prompt string `arg:"" help:"Prompt to refine."`

	BeamWidth   int     `help:"Candidates per iteration." default:"0"`
	KeepTop     int     `help:"Survivors per iteration." default:"0"`
	Iterations  int     `help:"Total iterations including the initial expansion." default:"0"`
	Alpha       float64 `help:"Alignment weight in [0,1] for total score." default:"-1"`
	Temperature float64 `help:"Expansion temperature." default:"-1"`
	Provider    string  `help:"Provider bundle name." default:""`
	Session     string  `help:"Session ID (default: random UUID)." default:""`
	NoTUI       bool    `help:"Force plain text output even if stdout is a TTY." default:"false"`
	MetricsAddr string  `help:"Serve Prometheus metrics on this address (e.g. :9090)." default:""`
}

// ProvidersCmd lists the registered provider bundles.
type ProvidersCmd struct{}

// loadConfig loads layered config from user and project paths with env overrides.
func loadConfig() (*config.Config, error) {
	cfg, err := config.LoadLayered(
		os.ExpandEnv("$HOME/.config/promptbeam/config.yaml"),
		".promptbeam/config.yaml",
	)
	if err != nil {
		return nil, err
	}
	if err := cfg.ApplyEnv(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// newRegistry builds the provider registry with built-in bundles.
func newRegistry() *provider.Registry {
	reg := provider.NewRegistry()
	provider.RegisterBuiltins(reg)
	return reg
}

// applyFlags overlays non-default CLI flags onto the loaded config.
func (r *RunCmd) applyFlags(cfg *config.Config) {
	if r.BeamWidth > 0 {
		cfg.Run.BeamWidth = r.BeamWidth
	}
	if r.KeepTop > 0 {
		cfg.Run.KeepTop = r.KeepTop
	}
	if r.Iterations > 0 {
		cfg.Run.Iterations = r.Iterations
	}
	if r.Alpha >= 0 {
		cfg.Run.Alpha = r.Alpha
	}
	if r.Temperature >= 0 {
		cfg.Run.Temperature = r.Temperature
	}
	if r.Provider != "" {
		cfg.Provider.Name = r.Provider
	}
}

// Run executes the run command.
func (r *RunCmd) Run() error {
	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("run: %w", err)
	}
	r.applyFlags(cfg)
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("run: %w", err)
	}

	log := logging.New(cfg.Logging.Level, cfg.Logging.Format, os.Stderr)

	bundle, err := newRegistry().NewBundle(cfg.Provider.Name)
	if err != nil {
		return fmt.Errorf("run: %w", err)
	}

	limits := ratelimit.NewSet(ratelimit.Limits{
		LLM:      cfg.Limits.LLM,
		ImageGen: cfg.Limits.ImageGen,
		Vision:   cfg.Limits.Vision,
	})
	if r.MetricsAddr != "" {
		serveMetrics(r.MetricsAddr, limits, log)
	}

	sessionID := r.Session
	if sessionID == "" {
		sessionID = uuid.NewString()
	}
	store, err := metadata.NewFileStore(cfg.Output.BaseDir, sessionID)
	if err != nil {
		return fmt.Errorf("run: %w", err)
	}

	// The cancel func is passed to the TUI so keyboard abort (q / Ctrl+C)
	// can cancel the run gracefully.
	runCtx, runCancel := context.WithCancel(context.Background())
	defer runCancel()

	bridge := tui.NewBridge()
	display := tui.NewDisplay(tui.DisplayOptions{
		Writer:     os.Stdout,
		ForcePlain: r.NoTUI,
		CancelFunc: runCancel,
	})

	search, err := r.newSearch(cfg, bundle, limits, store, bridge, sessionID, log)
	if err != nil {
		return fmt.Errorf("run: %w", err)
	}

	return r.run(os.Stdout, search, display, bridge, runCtx, log)
}

// newSearch assembles the beam search from config and the provider bundle.
func (r *RunCmd) newSearch(cfg *config.Config, bundle provider.Bundle, limits *ratelimit.Set, store metadata.Sink, bridge *tui.Bridge, sessionID string, log zerolog.Logger) (*beam.Search, error) {
	params := beam.Params{
		UserPrompt:  r.Prompt,
		BeamWidth:   cfg.Run.BeamWidth,
		KeepTop:     cfg.Run.KeepTop,
		Iterations:  cfg.Run.Iterations,
		Alpha:       cfg.Run.Alpha,
		Temperature: cfg.Run.Temperature,
		SessionID:   sessionID,
	}

	opts := []beam.Option{
		beam.WithLimits(limits),
		beam.WithMetadataSink(store),
		beam.WithEventSink(bridge.Sink()),
		beam.WithLogger(log),
		beam.WithImageDefaults(pipeline.ImageDefaults{
			Model:   cfg.Provider.ImageModel,
			Size:    cfg.Provider.ImageSize,
			Quality: cfg.Provider.ImageQuality,
		}),
		beam.WithEnsemble(cfg.Ranking.EnsembleSize),
	}
	if bundle.Evaluator != nil {
		opts = append(opts, beam.WithEvaluator(bundle.Evaluator))
	}
	if bundle.Judge != nil {
		opts = append(opts, beam.WithJudge(bundle.Judge))
	}
	if bundle.Critic != nil {
		opts = append(opts, beam.WithCritic(bundle.Critic))
	}
	if cfg.Ranking.GracefulDegradation {
		opts = append(opts, beam.WithGracefulDegradation())
	}

	return beam.New(params, bundle.Text, bundle.Image, opts...)
}

// searchRunner abstracts beam.Search for testable wiring.
type searchRunner interface {
	Run(ctx context.Context) (*beam.Result, error)
}

// run executes the search with display lifecycle management.
func (r *RunCmd) run(w io.Writer, search searchRunner, display tui.Display, bridge *tui.Bridge, runCtx context.Context, log zerolog.Logger) error {
	// Start display goroutine.
	displayDone := make(chan error, 1)
	go func() {
		displayDone <- display.Run(context.Background(), bridge.Events())
	}()

	// Wrap with OS signal handling so Ctrl+C in non-TUI mode still works.
	ctx, stop := signal.NotifyContext(runCtx, os.Interrupt)
	defer stop()

	result, runErr := search.Run(ctx)

	// Signal display completion and wait for it to release the terminal.
	if runErr != nil {
		bridge.Error(runErr)
	} else {
		bridge.Done()
	}
	<-displayDone

	if runErr != nil {
		return runErr
	}

	printResult(w, result)
	log.Info().
		Str("winner", result.Winner.ID.String()).
		Int("tokens", result.TokensUsed).
		Msg("run complete")
	return nil
}

// printResult renders the winner and the run-wide leaderboard.
func printResult(w io.Writer, result *beam.Result) {
	winner := result.Winner
	_, _ = fmt.Fprintf(w, "\nWinner: %s\n", winner.ID)
	_, _ = fmt.Fprintf(w, "  prompt: %s\n", winner.Combined)
	if winner.Image.Usable() {
		_, _ = fmt.Fprintf(w, "  image:  %s\n", winner.Image.Ref())
	}
	if winner.Image.Metadata.SafetyRephrased {
		_, _ = fmt.Fprintf(w, "  note:   prompt was rephrased after a content-filter rejection\n")
	}
	if winner.Evaluation != nil {
		_, _ = fmt.Fprintf(w, "  score:  %.1f\n", winner.TotalScore)
	}
	_, _ = fmt.Fprintf(w, "\n%s", tui.RenderLeaderboard(result.Leaderboard))
}

// serveMetrics exposes limiter gauges on addr. Best-effort: a dead metrics
// listener must not kill the run.
func serveMetrics(addr string, limits *ratelimit.Set, log zerolog.Logger) {
	reg := prometheus.NewRegistry()
	ratelimit.RegisterMetrics(reg, limits)

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	go func() {
		if err := http.ListenAndServe(addr, mux); err != nil {
			log.Warn().Err(err).Str("addr", addr).Msg("metrics listener stopped")
		}
	}()
}

// Run executes the providers command.
func (p *ProvidersCmd) Run() error {
	for _, name := range newRegistry().Available() {
		fmt.Println(name)
	}
	return nil
}

// Exit codes.
const (
	exitSuccess = 0
	exitRun     = 1
	exitSetup   = 2
)

// exitCode maps an error to the appropriate exit code.
func exitCode(err error) int {
	if err == nil {
		return exitSuccess
	}
	var ce *beam.ConfigError
	if errors.As(err, &ce) {
		return exitSetup
	}
	var up *provider.UnknownProviderError
	if errors.As(err, &up) {
		return exitSetup
	}
	if errors.Is(err, beam.ErrAllCandidatesFailed) || errors.Is(err, context.Canceled) {
		return exitRun
	}
	var pe *provider.ProviderError
	var sv *provider.SafetyViolationError
	if errors.As(err, &pe) || errors.As(err, &sv) {
		return exitRun
	}
	return exitSetup
}

func main() {
	// Best-effort: provider API keys often live in a local .env.
	_ = godotenv.Load()

	var cli CLI
	ctx := kong.Parse(&cli, kong.Vars{"version": version + " " + commit + " " + date})
	err := ctx.Run()
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %s\n", err)
		os.Exit(exitCode(err))
	}
}
