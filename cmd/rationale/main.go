// rationale — adversarial stock verdict engine.
//
// Main CLI entrypoint using cobra command framework.
package main

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/rdx-labs/rationale/api"
	"github.com/rdx-labs/rationale/internal/config"
	"github.com/rdx-labs/rationale/internal/datasource"
	"github.com/rdx-labs/rationale/internal/llm"
	"github.com/rdx-labs/rationale/internal/logging"
	"github.com/rdx-labs/rationale/internal/narrative"
	"github.com/rdx-labs/rationale/internal/profile"
	"github.com/rdx-labs/rationale/internal/relay"
	"github.com/rdx-labs/rationale/internal/schedule"
)

// Build-time variables (set via -ldflags).
var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

// Global config and logger, set by PersistentPreRunE.
var (
	cfg    *config.Config
	logger zerolog.Logger
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "rationale",
	Short: "rationale — adversarial stock verdict engine",
	Long: `rationale runs a bear/bull analyst debate over live market data
and produces a deterministic quantitative verdict (BUY / HOLD / SELL)
with a confidence score. The LLM narrates; the numbers decide.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		configFile, _ := cmd.Flags().GetString("config")
		if configFile != "" {
			cfg, err = config.LoadFromFile(configFile)
		} else {
			cfg, err = config.Load()
		}
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}
		if lvl, _ := cmd.Flags().GetString("log-level"); lvl != "" {
			cfg.Logging.Level = lvl
		}
		logger = logging.New(logging.Config{
			Level:  cfg.Logging.Level,
			Format: cfg.Logging.Format,
		})
		logging.SetGlobal(logger)
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().String("config", "", "config file path (default: ./config/config.yaml)")
	rootCmd.PersistentFlags().String("log-level", "", "log level override (debug, info, warn, error)")

	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(analyzeCmd)
	rootCmd.AddCommand(profileCmd)
	rootCmd.AddCommand(watchCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(statusCmd)
}

// --- Wiring ---

// buildRelay assembles the full pipeline: data providers, LLM router,
// narrative generator. A missing API key is not fatal; the debate
// sections degrade to placeholders while the verdict still runs.
func buildRelay() *relay.Relay {
	router := buildRouter()

	mode := narrative.ParseMode(cfg.Narrative.Mode)
	gen := narrative.NewGenerator(router, mode, logger,
		narrative.WithTemperature(cfg.LLM.Temperature),
		narrative.WithMaxTokens(cfg.LLM.MaxTokens))

	chain := buildChain()
	news := datasource.NewNews()

	return relay.New(chain, gen, logger,
		relay.WithNews(news),
		relay.WithNewsLimit(cfg.Datasource.NewsLimit))
}

// buildRouter assembles the LLM provider chain, with the configured
// provider first and the other as fallback.
func buildRouter() *llm.Router {
	var providers []llm.Provider
	addGroq := func() {
		if p, err := llm.NewGroq(cfg.LLM.GroqKey, llm.WithModel(cfg.LLM.GroqModel)); err == nil {
			providers = append(providers, p)
		}
	}
	addDeepSeek := func() {
		if p, err := llm.NewDeepSeek(cfg.LLM.DeepSeekKey, llm.WithModel(cfg.LLM.DeepSeekModel)); err == nil {
			providers = append(providers, p)
		}
	}
	if cfg.LLM.Provider == "deepseek" {
		addDeepSeek()
		addGroq()
	} else {
		addGroq()
		addDeepSeek()
	}
	return llm.NewRouter(logger, providers...)
}

func buildChain() *datasource.Chain {
	return datasource.ConfiguredChain(logger, datasource.ChainConfig{
		Order:    cfg.Datasource.Order,
		CacheTTL: time.Duration(cfg.Datasource.CacheTTL) * time.Second,
	})
}

func openProfiles() (*profile.Store, error) {
	return profile.Open(cfg.Profile.DBPath, logger)
}

// --- Version Command ---

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("rationale %s\n", version)
		fmt.Printf("  commit:  %s\n", commit)
		fmt.Printf("  built:   %s\n", date)
	},
}

// --- Analyze Command ---

var analyzeCmd = &cobra.Command{
	Use:   "analyze [ticker] [thesis...]",
	Short: "Run the full debate and verdict for a stock",
	Long: `Fetch market data, run the bear/bull analyst debate, compute the
quantitative verdict, and print the decision report.

Examples:
  rationale analyze AAPL
  rationale analyze NVDA "AI demand stays strong through 2027"`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ticker := args[0]
		thesis := strings.Join(args[1:], " ")

		r := buildRelay()
		result, err := r.Run(cmd.Context(), ticker, thesis)
		if err != nil {
			return err
		}
		fmt.Println(relay.Report(result))
		return nil
	},
}

// --- Profile Command ---

var profileCmd = &cobra.Command{
	Use:   "profile",
	Short: "Manage watchlist profiles",
}

var profileCreateCmd = &cobra.Command{
	Use:   "create [name]",
	Short: "Create a new watchlist profile",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := openProfiles()
		if err != nil {
			return err
		}
		defer store.Close()

		p, err := store.Create(args[0])
		if err != nil {
			return err
		}
		fmt.Printf("Created profile %q (%s)\n", p.Name, p.ID)
		return nil
	},
}

var profileListCmd = &cobra.Command{
	Use:   "list",
	Short: "List all profiles",
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := openProfiles()
		if err != nil {
			return err
		}
		defer store.Close()

		profiles, err := store.List()
		if err != nil {
			return err
		}
		if len(profiles) == 0 {
			fmt.Println("No profiles. Create one with: rationale profile create <name>")
			return nil
		}
		for _, p := range profiles {
			fmt.Printf("%s  %-20s %s\n", p.ID, p.Name, strings.Join(p.Tickers, ", "))
		}
		return nil
	},
}

var profileShowCmd = &cobra.Command{
	Use:   "show [id]",
	Short: "Show one profile",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := openProfiles()
		if err != nil {
			return err
		}
		defer store.Close()

		p, err := store.Get(args[0])
		if err != nil {
			return err
		}
		fmt.Printf("Profile: %s (%s)\n", p.Name, p.ID)
		if len(p.Tickers) == 0 {
			fmt.Println("  (no tickers)")
			return nil
		}
		for _, t := range p.Tickers {
			fmt.Printf("  %s\n", t)
		}
		return nil
	},
}

var profileRenameCmd = &cobra.Command{
	Use:   "rename [id] [name]",
	Short: "Rename a profile",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := openProfiles()
		if err != nil {
			return err
		}
		defer store.Close()

		p, err := store.Rename(args[0], args[1])
		if err != nil {
			return err
		}
		fmt.Printf("Renamed profile %s to %q\n", p.ID, p.Name)
		return nil
	},
}

var profileDeleteCmd = &cobra.Command{
	Use:   "delete [id]",
	Short: "Delete a profile",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := openProfiles()
		if err != nil {
			return err
		}
		defer store.Close()

		if err := store.Delete(args[0]); err != nil {
			return err
		}
		fmt.Println("Deleted.")
		return nil
	},
}

var profileAddCmd = &cobra.Command{
	Use:   "add [id] [ticker...]",
	Short: "Add tickers to a profile (validated against market data)",
	Args:  cobra.MinimumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := openProfiles()
		if err != nil {
			return err
		}
		defer store.Close()

		validator := buildChain()
		var p *profile.Profile
		for _, t := range args[1:] {
			p, err = store.AddValidated(cmd.Context(), args[0], t, validator)
			if err != nil {
				return err
			}
		}
		fmt.Printf("Watchlist: %s\n", strings.Join(p.Tickers, ", "))
		return nil
	},
}

var profileRemoveCmd = &cobra.Command{
	Use:   "remove [id] [ticker...]",
	Short: "Remove tickers from a profile",
	Args:  cobra.MinimumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := openProfiles()
		if err != nil {
			return err
		}
		defer store.Close()

		var p *profile.Profile
		for _, t := range args[1:] {
			p, err = store.RemoveTicker(args[0], t)
			if err != nil {
				return err
			}
		}
		fmt.Printf("Watchlist: %s\n", strings.Join(p.Tickers, ", "))
		return nil
	},
}

func init() {
	profileCmd.AddCommand(profileCreateCmd)
	profileCmd.AddCommand(profileListCmd)
	profileCmd.AddCommand(profileShowCmd)
	profileCmd.AddCommand(profileRenameCmd)
	profileCmd.AddCommand(profileDeleteCmd)
	profileCmd.AddCommand(profileAddCmd)
	profileCmd.AddCommand(profileRemoveCmd)
}

// --- Watch Command ---

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Scan watchlists for BUY verdicts",
}

var watchScanCmd = &cobra.Command{
	Use:   "scan [profile-id]",
	Short: "Run the verdict engine over a profile's watchlist",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := openProfiles()
		if err != nil {
			return err
		}
		defer store.Close()

		p, err := store.Get(args[0])
		if err != nil {
			return err
		}
		if len(p.Tickers) == 0 {
			fmt.Println("Watchlist is empty.")
			return nil
		}

		r := buildRelay()
		scanner := schedule.New(logger, store, r)
		items := scanner.ScanProfile(cmd.Context(), p)

		fmt.Printf("Scan results for %q:\n", p.Name)
		for _, item := range items {
			if item.Err != nil {
				fmt.Printf("  %-8s error: %v\n", item.Ticker, item.Err)
				continue
			}
			v := item.Result.Verdict
			fmt.Printf("  %-8s %s (confidence %d)\n", item.Ticker, v.Decision, v.ConfidenceScore)
		}
		if buys := relay.Buys(items); len(buys) > 0 {
			fmt.Printf("BUY candidates: %s\n", strings.Join(buys, ", "))
		} else {
			fmt.Println("No BUY candidates.")
		}
		return nil
	},
}

func init() {
	watchCmd.AddCommand(watchScanCmd)
}

// --- Serve Command (API Server) ---

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API server",
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := openProfiles()
		if err != nil {
			return err
		}
		defer store.Close()

		r := buildRelay()
		validator := buildChain()

		if cfg.Scan.Enabled {
			scanner := schedule.New(logger, store, r)
			if err := scanner.Schedule(cfg.Scan.Cron); err != nil {
				return fmt.Errorf("invalid scan schedule %q: %w", cfg.Scan.Cron, err)
			}
			scanner.Start()
			defer scanner.Stop()
		}

		srv := api.NewServer(cfg, r, store, validator, logger)
		addr := fmt.Sprintf("%s:%d", cfg.API.Host, cfg.API.Port)
		return srv.ListenAndServe(addr)
	},
}

// --- Status Command ---

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show system status and configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		fmt.Println("═══════════════════════════════════════")
		fmt.Println("  rationale — System Status")
		fmt.Println("═══════════════════════════════════════")
		fmt.Printf("  Version:       %s (%s)\n", version, commit)
		fmt.Println()

		fmt.Println("  Configuration:")
		model := cfg.LLM.GroqModel
		if cfg.LLM.Provider == "deepseek" {
			model = cfg.LLM.DeepSeekModel
		}
		fmt.Printf("    LLM Provider:   %s (model: %s)\n", cfg.LLM.Provider, model)
		fmt.Printf("    Narrative Mode: %s\n", cfg.Narrative.Mode)
		fmt.Printf("    API Server:     %s:%d\n", cfg.API.Host, cfg.API.Port)
		fmt.Printf("    Profile DB:     %s\n", cfg.Profile.DBPath)
		if cfg.Scan.Enabled {
			fmt.Printf("    Watchlist Scan: %s\n", cfg.Scan.Cron)
		} else {
			fmt.Println("    Watchlist Scan: disabled")
		}
		fmt.Println()

		fmt.Println("  API Keys:")
		for _, k := range config.CheckAPIKeys(cfg) {
			status := "not set"
			if k.IsSet {
				status = fmt.Sprintf("set (%s: %s)", k.Source, k.Masked)
			}
			fmt.Printf("    %-20s %s\n", k.Name+":", status)
		}
		fmt.Println()

		fmt.Println("  Providers:")
		router := buildRouter()
		names := router.ProviderNames()
		if len(names) == 0 {
			fmt.Println("    (none configured)")
		} else {
			ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
			defer cancel()
			health := router.HealthCheck(ctx)
			for _, name := range names {
				status := "ok"
				if err := health[name]; err != nil {
					status = fmt.Sprintf("unreachable: %v", err)
				}
				fmt.Printf("    %-20s %s\n", name+":", status)
			}
		}

		fmt.Println("═══════════════════════════════════════")
		return nil
	},
}
