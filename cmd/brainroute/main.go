package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"slices"
	"sort"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"golang.org/x/time/rate"

	"github.com/zen-systems/brainroute/pkg/adapter"
	"github.com/zen-systems/brainroute/pkg/cache"
	"github.com/zen-systems/brainroute/pkg/config"
	"github.com/zen-systems/brainroute/pkg/observability"
	"github.com/zen-systems/brainroute/pkg/router"
	"github.com/zen-systems/brainroute/pkg/tokens"
)

var (
	contextFile string
	verbose     bool
	jsonOutput  bool
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "brainroute",
		Short: "Pick a mode, model and inference parameters for a prompt",
		Long: `Brainroute decides how a conversational agent should answer a prompt.
	A deterministic rubric runs first; a cheap classifier model is consulted
	only when the rubric is uncertain and the context is large enough to
	justify the call.`,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			level := slog.LevelWarn
			if verbose {
				level = slog.LevelDebug
			}
			slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))
		},
		SilenceUsage: true,
	}

	rootCmd.PersistentFlags().StringVar(&contextFile, "context", "", "path to a JSON project context (project + messages)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "log routing details to stderr")
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "print JSON instead of text")

	rootCmd.AddCommand(routeCmd())
	rootCmd.AddCommand(estimateCmd())
	rootCmd.AddCommand(reduceCmd())
	rootCmd.AddCommand(modesCmd())
	rootCmd.AddCommand(modelsCmd())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	err := rootCmd.ExecuteContext(ctx)
	stop()
	if err != nil {
		os.Exit(1)
	}
}

func routeCmd() *cobra.Command {
	var modeFlag string
	var modelFlag string
	var totalTokens int
	var noClassifier bool

	cmd := &cobra.Command{
		Use:   "route [prompt]",
		Short: "Route a prompt and print the decision",
		Long: `Routes the prompt against the loaded context and prints the chosen mode,
	model and parameters.

	Use --tokens to route against a bare token count instead of a context file.
	Use --mode and --model to force a decision.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			prompt := args[0]

			cfg, err := loadConfig()
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}
			reg := cfg.Registry()

			stats, err := loadStats(reg, totalTokens)
			if err != nil {
				return err
			}

			opts := []router.Option{
				router.WithLogger(slog.Default()),
				router.WithMetrics(observability.NewMetricsRecorder()),
				router.WithTracer(observability.NewSpanManager()),
			}
			if !noClassifier {
				classifierOpts, closeCache := createClassifier(cfg, reg)
				defer closeCache()
				opts = append(opts, classifierOpts...)
			}
			r := router.New(reg, opts...)

			var routeOpts router.RouteOptions
			if modeFlag != "" {
				mode, err := config.ParseMode(modeFlag)
				if err != nil {
					return err
				}
				routeOpts.ForceMode = mode
			}
			routeOpts.ForceModel = modelFlag

			result, err := r.Route(cmd.Context(), prompt, &stats, routeOpts)
			if err != nil {
				return err
			}

			if jsonOutput {
				return printJSON(result)
			}
			printRouteResult(result)
			return nil
		},
	}

	cmd.Flags().StringVar(&modeFlag, "mode", "", "force a mode (plan, consult, batch, long_context)")
	cmd.Flags().StringVar(&modelFlag, "model", "", "force a model or alias")
	cmd.Flags().IntVar(&totalTokens, "tokens", 0, "total context tokens when no --context is given")
	cmd.Flags().BoolVar(&noClassifier, "no-classifier", false, "never call the classifier model")

	return cmd
}

func printRouteResult(result router.RouteResult) {
	cfg := result.Config
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintf(w, "Mode:\t%s\n", result.Mode)
	fmt.Fprintf(w, "Model:\t%s (%s)\n", cfg.Model, cfg.Provider)
	fmt.Fprintf(w, "Reasoning effort:\t%s\n", cfg.ReasoningEffort)
	fmt.Fprintf(w, "Verbosity:\t%s\n", cfg.Verbosity)
	fmt.Fprintf(w, "Max output tokens:\t%s\n", tokens.FormatTokenCount(cfg.MaxOutputTokens))
	if cfg.UseRAG {
		fmt.Fprintf(w, "Context reduction:\t%s\n", cfg.ReductionStrategy)
	}
	fmt.Fprintf(w, "Gate:\t%s (confidence %.2f, uncertain=%t)\n", result.Gate, result.Confidence, result.Uncertain)
	classifier := "not used"
	if result.UsedClassifier {
		classifier = "consulted"
		if result.ClassifierFallback {
			classifier = "unavailable, fell back"
		}
	}
	fmt.Fprintf(w, "Classifier:\t%s\n", classifier)
	fmt.Fprintf(w, "Risk:\t%s\n", result.RiskLevel)
	if len(result.MatchedTriggers) > 0 {
		fmt.Fprintf(w, "Triggers:\t%s\n", strings.Join(result.MatchedTriggers, ", "))
	}
	fmt.Fprintf(w, "Context:\t%s tokens\n", tokens.FormatTokenCount(result.Stats.TotalTokens))
	if result.EstimatedCostUSD > 0 {
		fmt.Fprintf(w, "Max cost:\t$%.4f\n", result.EstimatedCostUSD)
	}
	fmt.Fprintf(w, "Reason:\t%s\n", result.Reason)
	w.Flush()
}

func estimateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "estimate [prompt]",
		Short: "Estimate context and prompt tokens",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}
			threshold := cfg.Registry().Thresholds().LongContextTokens

			tctx, err := loadContext()
			if err != nil {
				return err
			}
			stats := tokens.CalculateContextStats(tctx, threshold)

			prompt := ""
			if len(args) == 1 {
				prompt = args[0]
			}

			if jsonOutput {
				return printJSON(struct {
					Stats        tokens.ContextStats `json:"stats"`
					PromptTokens int                 `json:"prompt_tokens"`
					TotalRequest int                 `json:"total_request_tokens"`
					NeedsRAG     bool                `json:"needs_rag"`
				}{stats, tokens.EstimatePromptTokens(prompt), tokens.EstimateTotalRequestTokens(prompt, tctx), tokens.NeedsRAGStrategy(stats, threshold)})
			}

			w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "SOURCE\tTOKENS")
			fmt.Fprintf(w, "business rules\t%s\n", tokens.FormatTokenCount(stats.BusinessRuleTokens))
			fmt.Fprintf(w, "flow specs\t%s\n", tokens.FormatTokenCount(stats.FlowSpecTokens))
			fmt.Fprintf(w, "registry items\t%s\n", tokens.FormatTokenCount(stats.RegistryItemTokens))
			fmt.Fprintf(w, "personas\t%s\n", tokens.FormatTokenCount(stats.PersonaTokens))
			fmt.Fprintf(w, "product profile\t%s\n", tokens.FormatTokenCount(stats.ProductProfileTokens))
			fmt.Fprintf(w, "messages (%d)\t%s\n", stats.MessageCount, tokens.FormatTokenCount(stats.MessageTokens))
			fmt.Fprintln(w)
			fmt.Fprintf(w, "TOTAL\t%s (%.1f%% of %s)\n", tokens.FormatTokenCount(stats.TotalTokens),
				tokens.CalculateUsagePercentage(stats.TotalTokens, threshold), tokens.FormatTokenCount(threshold))
			if prompt != "" {
				fmt.Fprintf(w, "PROMPT\t%s\n", tokens.FormatTokenCount(tokens.EstimatePromptTokens(prompt)))
				fmt.Fprintf(w, "REQUEST\t%s\n", tokens.FormatTokenCount(tokens.EstimateTotalRequestTokens(prompt, tctx)))
			}
			if tokens.NeedsRAGStrategy(stats, threshold) {
				fmt.Fprintln(w, "\nContext exceeds the long-context ceiling; reduction recommended.")
			}
			return w.Flush()
		},
	}
}

func reduceCmd() *cobra.Command {
	var budget int
	var strategy string
	var outFile string

	cmd := &cobra.Command{
		Use:   "reduce",
		Short: "Shrink a context with a named reduction strategy",
		Long: fmt.Sprintf(`Applies a reduction strategy to the --context file and reports the result.

	Strategies: %s
	"message_limit:N" keeps the latest N messages.`, strings.Join(tokens.Strategies(), ", ")),
		RunE: func(cmd *cobra.Command, args []string) error {
			if contextFile == "" {
				return fmt.Errorf("--context is required")
			}
			tctx, err := loadContext()
			if err != nil {
				return err
			}
			if budget <= 0 {
				cfg, err := loadConfig()
				if err != nil {
					return fmt.Errorf("failed to load config: %w", err)
				}
				budget = cfg.Registry().Thresholds().LongContextTokens
			}

			red := tokens.ReduceContextToFit(tctx, budget, strategy)

			if outFile != "" {
				data, err := json.MarshalIndent(red.Context, "", "  ")
				if err != nil {
					return fmt.Errorf("failed to encode reduced context: %w", err)
				}
				if err := os.WriteFile(outFile, data, 0o644); err != nil {
					return fmt.Errorf("failed to write %s: %w", outFile, err)
				}
			}

			if jsonOutput {
				return printJSON(struct {
					Requested    string   `json:"requested"`
					Applied      []string `json:"applied"`
					TokensBefore int      `json:"tokens_before"`
					TokensAfter  int      `json:"tokens_after"`
					Fits         bool     `json:"fits"`
				}{red.Requested, red.Applied, red.TokensBefore, red.TokensAfter, red.Fits})
			}

			w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
			fmt.Fprintf(w, "Requested:\t%s\n", red.Requested)
			fmt.Fprintf(w, "Applied:\t%s\n", formatList(red.Applied))
			fmt.Fprintf(w, "Before:\t%s\n", tokens.FormatTokenCount(red.TokensBefore))
			fmt.Fprintf(w, "After:\t%s\n", tokens.FormatTokenCount(red.TokensAfter))
			fmt.Fprintf(w, "Budget:\t%s (fits=%t)\n", tokens.FormatTokenCount(budget), red.Fits)
			return w.Flush()
		},
	}

	cmd.Flags().IntVar(&budget, "budget", 0, "token budget (default: long-context threshold)")
	cmd.Flags().StringVar(&strategy, "strategy", tokens.StrategyAuto, "reduction strategy")
	cmd.Flags().StringVarP(&outFile, "out", "o", "", "write the reduced context as JSON")

	return cmd
}

func modesCmd() *cobra.Command {
	var showPrompts bool

	cmd := &cobra.Command{
		Use:   "modes",
		Short: "Show per-mode model configuration and thresholds",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}
			reg := cfg.Registry()

			w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "MODE\tMODEL\tPROVIDER\tEFFORT\tVERBOSITY\tMAX TOKENS")
			row := func(name string, c config.ModelConfig) {
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%d\n", name, c.Model, c.Provider, c.ReasoningEffort, c.Verbosity, c.MaxOutputTokens)
			}
			row(string(config.ModePlan), reg.PlanConfig())
			row(string(config.ModePlan)+" (pro)", reg.PlanProConfig())
			row(string(config.ModeConsult), reg.ConsultConfig())
			row(string(config.ModeBatch), reg.BatchConfig())
			row(string(config.ModeLongContext), reg.LongContextConfig())

			th := reg.Thresholds()
			fmt.Fprintln(w)
			fmt.Fprintf(w, "Long-context ceiling:\t%s\n", tokens.FormatTokenCount(th.LongContextTokens))
			fmt.Fprintf(w, "Uncertainty band:\t%.2f - %.2f\n", th.UncertaintyLow, th.UncertaintyHigh)
			fmt.Fprintf(w, "Classifier floor:\t%s tokens\n", tokens.FormatTokenCount(th.ClassifierMinTokens))
			cs := reg.Classifier()
			fmt.Fprintf(w, "Classifier:\t%s/%s enabled=%t timeout=%s\n", cs.Provider, cs.Model, cs.Enabled, cs.Timeout)
			fmt.Fprintf(w, "High-effort triggers:\t%s\n", formatList(reg.HighEffortTriggers()))
			if err := w.Flush(); err != nil {
				return err
			}

			for _, issue := range reg.Env().Issues {
				fmt.Fprintf(os.Stderr, "config: %s\n", issue)
			}

			if showPrompts {
				for _, mode := range config.AllModes {
					fmt.Printf("\n== %s ==\n%s\n", mode, reg.SystemPromptForMode(mode))
				}
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&showPrompts, "prompts", false, "also print each mode's system prompt")
	return cmd
}

func modelsCmd() *cobra.Command {
	var resolveFlag bool
	var validateFlag bool

	cmd := &cobra.Command{
		Use:   "models",
		Short: "List providers, models, and aliases",
		Long: `Lists providers and their models.

	Use --resolve to show aliases and what they resolve to.
	Use --validate to check every mode's model is known to its provider.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}

			if resolveFlag {
				return showAliases(cfg.Aliases)
			}
			if validateFlag {
				return validateModels(cfg)
			}

			w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "PROVIDER\tMODELS\tSTATUS")
			supported := adapter.Providers()
			for _, provider := range cfg.Aliases.ListProviders() {
				status := "no key"
				switch {
				case !slices.Contains(supported, provider):
					status = "no adapter"
				case cfg.HasAdapter(provider):
					status = "ready"
				}
				fmt.Fprintf(w, "%s\t%s\t%s\n", provider, formatList(cfg.Aliases.GetProviderModels(provider)), status)
			}
			return w.Flush()
		},
	}

	cmd.Flags().BoolVar(&resolveFlag, "resolve", false, "show aliases and what they resolve to")
	cmd.Flags().BoolVar(&validateFlag, "validate", false, "check mode models against the provider lists")

	return cmd
}

func showAliases(aliases *config.ModelAliases) error {
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ALIAS\tMODEL\tPROVIDER")

	aliasMap := aliases.ListAliases()
	names := make([]string, 0, len(aliasMap))
	for name := range aliasMap {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, alias := range names {
		model := aliasMap[alias]
		fmt.Fprintf(w, "%s\t%s\t%s\n", alias, model, aliases.GetProviderForModel(model))
	}
	return w.Flush()
}

func validateModels(cfg *config.Config) error {
	errs := cfg.Aliases.ValidateModeConfigs(cfg.Registry())
	if len(errs) == 0 {
		fmt.Println("All mode models are valid.")
		return nil
	}

	fmt.Fprintf(os.Stderr, "Found %d validation errors:\n", len(errs))
	for _, err := range errs {
		fmt.Fprintf(os.Stderr, "  - %s\n", err)
	}
	return fmt.Errorf("validation failed")
}

func formatList(items []string) string {
	if len(items) == 0 {
		return "-"
	}
	return strings.Join(items, ", ")
}

func loadConfig() (*config.Config, error) {
	return config.Load()
}

func loadContext() (tokens.Context, error) {
	var tctx tokens.Context
	if contextFile == "" {
		return tctx, nil
	}
	data, err := os.ReadFile(contextFile)
	if err != nil {
		return tctx, fmt.Errorf("failed to read context: %w", err)
	}
	if err := json.Unmarshal(data, &tctx); err != nil {
		return tctx, fmt.Errorf("failed to parse context %s: %w", contextFile, err)
	}
	return tctx, nil
}

func loadStats(reg *config.Registry, totalTokens int) (tokens.ContextStats, error) {
	threshold := reg.Thresholds().LongContextTokens
	if contextFile == "" {
		return tokens.NewContextStats(tokens.ContextStats{TotalTokens: totalTokens}, threshold)
	}
	tctx, err := loadContext()
	if err != nil {
		return tokens.ContextStats{}, err
	}
	return tokens.CalculateContextStats(tctx, threshold), nil
}

// createClassifier builds the classifier options from configuration. The
// returned func closes the cache.
func createClassifier(cfg *config.Config, reg *config.Registry) ([]router.Option, func()) {
	noop := func() {}
	settings := reg.Classifier()
	if !settings.Enabled {
		return nil, noop
	}

	a, err := adapter.New(settings.Provider, cfg.APIKey(settings.Provider))
	if err != nil {
		slog.Debug("classifier not configured", slog.String("provider", settings.Provider), slog.String("error", err.Error()))
		return nil, noop
	}
	model := reg.Aliases().Resolve(settings.Model)
	opts := []router.Option{router.WithClassifier(router.CreateClassifierFunction(a, model))}

	var store cache.Cache
	if settings.RedisURL != "" {
		store, err = cache.NewRedis(cache.RedisConfig{URL: settings.RedisURL})
		if err != nil {
			slog.Warn("redis classifier cache unavailable, using memory", slog.String("error", err.Error()))
			store = nil
		}
	}
	if store == nil {
		store = cache.NewMemory(settings.CacheSize)
	}
	opts = append(opts, router.WithCache(store))

	if settings.RPS > 0 {
		burst := int(settings.RPS)
		if burst < 1 {
			burst = 1
		}
		opts = append(opts, router.WithLimiter(rate.NewLimiter(rate.Limit(settings.RPS), burst)))
	}

	return opts, func() {
		if err := store.Close(); err != nil {
			slog.Debug("close classifier cache", slog.String("error", err.Error()))
		}
	}
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
