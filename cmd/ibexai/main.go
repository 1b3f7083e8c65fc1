// IBEX AI is an AI investment advisor for the IBEX35 index.
//
// Main CLI entrypoint using cobra command framework.
package main

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"text/tabwriter"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/seenimoa/ibexai/api"
	"github.com/seenimoa/ibexai/internal/advisor"
	"github.com/seenimoa/ibexai/internal/agent/prompts"
	"github.com/seenimoa/ibexai/internal/app"
	"github.com/seenimoa/ibexai/internal/config"
	"github.com/seenimoa/ibexai/internal/llm"
	"github.com/seenimoa/ibexai/internal/logging"
	"github.com/seenimoa/ibexai/internal/market"
	"github.com/seenimoa/ibexai/internal/report"
	"github.com/seenimoa/ibexai/pkg/models"
	"github.com/seenimoa/ibexai/pkg/utils"
)

// Build-time variables (set via -ldflags).
var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

// cliSession is the session id used by the one-shot commands.
const cliSession = "cli"

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
	Use:   "ibexai",
	Short: "IBEX AI — AI investment advisor for the IBEX35",
	Long: `IBEX AI
Market summaries, technical analysis and multi-agent investment reports for
the 35 members of the IBEX35, plus a conversational assistant that knows
your portfolio.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		// .env is optional
		_ = godotenv.Load()

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

		if level, _ := cmd.Flags().GetString("log-level"); level != "" {
			cfg.Logging.Level = level
		}
		logger = logging.New(logging.FromConfig(cfg.Logging))
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().String("config", "", "config file path (default: ./config/config.yaml)")
	rootCmd.PersistentFlags().String("log-level", "", "log level override (debug, info, warn, error)")

	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(reportCmd)
	rootCmd.AddCommand(chatCmd)
	rootCmd.AddCommand(digestCmd)
	rootCmd.AddCommand(profitabilityCmd)
	rootCmd.AddCommand(statusCmd)
}

// buildApp wires the stack and cancels its context on SIGINT/SIGTERM.
func buildApp(cmd *cobra.Command) (*app.App, context.Context, func(), error) {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	a, err := app.New(ctx, cfg, logger)
	if err != nil {
		stop()
		return nil, nil, nil, err
	}
	return a, ctx, func() {
		if err := a.Close(); err != nil {
			logger.Warn().Err(err).Msg("closing session store")
		}
		stop()
	}, nil
}

// loadPortfolioFile reads a JSON list of positions.
func loadPortfolioFile(path string) (models.Portfolio, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var pf models.Portfolio
	if err := json.Unmarshal(data, &pf); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	for i := range pf {
		pf[i].Symbol = utils.NormalizeTicker(pf[i].Symbol)
	}
	return pf, pf.Validate()
}

// --- Version Command ---

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("IBEX AI %s\n", version)
		fmt.Printf("  commit:  %s\n", commit)
		fmt.Printf("  built:   %s\n", date)
	},
}

// --- Serve Command (API Server) ---

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API server and assistant page",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, _, done, err := buildApp(cmd)
		if err != nil {
			return err
		}
		defer done()

		api.Version = version
		srv := api.NewServer(a)
		noUI, _ := cmd.Flags().GetBool("no-ui")
		if noUI {
			srv.SetServeUI(false)
		}
		addr := fmt.Sprintf("%s:%d", cfg.API.Host, cfg.API.Port)
		fmt.Printf("🌐 Starting IBEX AI on http://%s\n", addr)
		return srv.ListenAndServe(addr)
	},
}

func init() {
	serveCmd.Flags().Bool("no-ui", false, "serve only the JSON API")
}

// --- Report Command ---

var reportCmd = &cobra.Command{
	Use:   "report",
	Short: "Generate an investment report with the multi-agent pipeline",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, ctx, done, err := buildApp(cmd)
		if err != nil {
			return err
		}
		defer done()

		profile, _ := cmd.Flags().GetString("profile")
		objective, _ := cmd.Flags().GetString("objective")
		extended, _ := cmd.Flags().GetBool("extended")
		out, _ := cmd.Flags().GetString("out")

		fmt.Fprintf(os.Stderr, "📝 Generating %s report (perfil %s)...\n", reportKind(extended), profile)
		reply, err := a.Advisor.Advise(ctx, cliSession, advisor.AdviseRequest{
			Profile:   profile,
			Objective: objective,
			Extended:  extended,
			Text:      "informe",
		})
		if err != nil {
			return err
		}
		if reply.Failed() {
			return fmt.Errorf("%s", reply.Markdown)
		}
		if out != "" {
			if err := os.WriteFile(out, []byte(reply.Markdown), 0o644); err != nil {
				return err
			}
			fmt.Fprintf(os.Stderr, "✅ Report written to %s\n", out)
		} else {
			fmt.Println(reply.Markdown)
		}

		htmlOut, _ := cmd.Flags().GetString("html")
		pdfOut, _ := cmd.Flags().GetString("pdf")
		if htmlOut == "" && pdfOut == "" {
			return nil
		}
		doc := report.Document{
			Profile:   prompts.NormalizeProfile(profile),
			Objective: objective,
			Extended:  extended,
			BodyHTML:  a.Advisor.RenderHTML(reply.Markdown),
		}
		if snap := a.Market.Current(); snap != nil {
			doc.DataAt = snap.FetchedAt
			doc.Profitability = market.Profitability(snap)
		}
		html, err := report.GenerateHTML(doc)
		if err != nil {
			return err
		}
		if htmlOut != "" {
			if err := os.WriteFile(htmlOut, []byte(html), 0o644); err != nil {
				return err
			}
			fmt.Fprintf(os.Stderr, "✅ HTML report written to %s\n", htmlOut)
		}
		if pdfOut != "" {
			pdfCfg := report.DefaultPDFConfig()
			pdfCfg.OutputPath = pdfOut
			written, err := report.GeneratePDF(ctx, html, pdfCfg)
			if err != nil {
				return err
			}
			fmt.Fprintf(os.Stderr, "✅ Report exported to %s\n", written)
		}
		return nil
	},
}

func reportKind(extended bool) string {
	if extended {
		return "extended"
	}
	return "basic"
}

func init() {
	reportCmd.Flags().String("profile", "Moderado", "risk profile (Bajo, Moderado, Alto)")
	reportCmd.Flags().String("objective", "", "investment objective")
	reportCmd.Flags().Bool("extended", false, "add risk and visualization stages")
	reportCmd.Flags().StringP("out", "o", "", "write the markdown report to a file")
	reportCmd.Flags().String("html", "", "also export a standalone HTML document")
	reportCmd.Flags().String("pdf", "", "also export a PDF (HTML when no converter is installed)")
	_ = reportCmd.MarkFlagRequired("objective")
}

// --- Chat Command ---

var chatCmd = &cobra.Command{
	Use:   "chat [question]",
	Short: "Ask the assistant, or start interactive chat mode",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, ctx, done, err := buildApp(cmd)
		if err != nil {
			return err
		}
		defer done()

		if path, _ := cmd.Flags().GetString("portfolio"); path != "" {
			pf, err := loadPortfolioFile(path)
			if err != nil {
				return err
			}
			if err := a.Advisor.SetPortfolio(ctx, cliSession, pf); err != nil {
				return err
			}
		}

		ask := func(q string) error {
			reply, err := a.Advisor.Chat(ctx, cliSession, q)
			if err != nil {
				return err
			}
			fmt.Printf("\n%s\n\n", reply.Markdown)
			return nil
		}

		if len(args) > 0 {
			return ask(strings.Join(args, " "))
		}

		fmt.Println("💬 IBEX AI Chat. Escribe 'salir' para terminar.")
		scanner := bufio.NewScanner(os.Stdin)
		for {
			fmt.Print("Tú: ")
			if !scanner.Scan() {
				return scanner.Err()
			}
			q := strings.TrimSpace(scanner.Text())
			switch q {
			case "":
				continue
			case "salir", "exit", "quit":
				return nil
			}
			if err := ask(q); err != nil {
				return err
			}
			if errors.Is(ctx.Err(), context.Canceled) {
				return nil
			}
		}
	},
}

func init() {
	chatCmd.Flags().String("portfolio", "", "JSON file with positions [{symbol, shares, cost_basis}]")
}

// --- Digest Command ---

var digestCmd = &cobra.Command{
	Use:   "digest",
	Short: "Email the daily portfolio digest",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, ctx, done, err := buildApp(cmd)
		if err != nil {
			return err
		}
		defer done()

		path, _ := cmd.Flags().GetString("portfolio")
		pf, err := loadPortfolioFile(path)
		if err != nil {
			return err
		}
		to, _ := cmd.Flags().GetStringSlice("to")
		if len(to) == 0 {
			to = a.Recipients()
		}
		if err := a.Digest.Send(ctx, to, pf); err != nil {
			return err
		}
		fmt.Printf("📧 Digest sent to %s\n", strings.Join(to, ", "))
		return nil
	},
}

func init() {
	digestCmd.Flags().String("portfolio", "", "JSON file with positions [{symbol, shares, cost_basis}]")
	digestCmd.Flags().StringSlice("to", nil, "recipients (default: email.to)")
	_ = digestCmd.MarkFlagRequired("portfolio")
}

// --- Profitability Command ---

var profitabilityCmd = &cobra.Command{
	Use:   "profitability",
	Short: "Print the dividend and profitability table",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, ctx, done, err := buildApp(cmd)
		if err != nil {
			return err
		}
		defer done()

		snap, err := a.Market.Snapshot(ctx)
		if err != nil {
			return err
		}
		tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', tabwriter.AlignRight)
		fmt.Fprintln(tw, "Empresa\tTicker\tPrecio\tDividendo\tRent. %\tCapitalización\tCambio 1A aj. %\t")
		for _, row := range market.Profitability(snap) {
			fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\t%s\t\n",
				row.Name,
				utils.BaseTicker(row.Symbol),
				utils.Number(row.Price),
				utils.Number(row.Dividend),
				utils.Number(row.DividendYieldPct),
				utils.BillionsEUR(row.MarketCap),
				utils.SignedPercent(row.AdjChange1YPct))
		}
		fmt.Fprintf(tw, "\nDatos de %s\n", utils.FormatDateTime(snap.FetchedAt))
		return tw.Flush()
	},
}

// --- Status Command ---

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show system status and configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		now := utils.NowMadrid()
		fmt.Println("═══════════════════════════════════════")
		fmt.Println("  IBEX AI — System Status")
		fmt.Println("═══════════════════════════════════════")
		fmt.Printf("  Version:       %s (%s)\n", version, commit)
		fmt.Printf("  Market Status: %s\n", utils.MarketStatus(now))
		fmt.Printf("  Time (Madrid): %s\n", utils.FormatDateTime(now))
		fmt.Println()

		fmt.Println("  Configuration:")
		fmt.Printf("    LLM Provider:  %s (model: %s)\n", cfg.LLM.Primary, cfg.LLM.Model)
		fmt.Printf("    Snapshot TTL:  %s\n", cfg.Market.SnapshotTTL())
		fmt.Printf("    Sessions:      %s (history window %d)\n", cfg.Session.Backend, cfg.Session.HistoryWindow)
		fmt.Printf("    Email:         %s\n", cfg.Email.Transport)
		fmt.Printf("    API Server:    %s:%d\n", cfg.API.Host, cfg.API.Port)
		fmt.Println()

		fmt.Println("  API Keys:")
		keys := config.CheckAPIKeys(cfg)
		for _, k := range keys {
			status := "❌ not set"
			if k.IsSet {
				status = fmt.Sprintf("✅ set (%s: %s)", k.Source, k.Masked)
			}
			fmt.Printf("    %-25s %s\n", k.Name+":", status)
		}
		if !config.HasLLMCredential(cfg) {
			fmt.Println()
			fmt.Println("  ⚠️  No credential for the primary LLM backend; serve/report/chat will fail.")
		}

		if ping, _ := cmd.Flags().GetBool("ping"); ping {
			fmt.Println()
			fmt.Println("  LLM Backends:")
			router, err := llm.NewRouterFromConfig(cfg, logger)
			if err != nil {
				fmt.Printf("    ❌ %v\n", err)
			} else {
				health := llm.ProviderHealth(cmd.Context(), router)
				for _, name := range router.ProviderNames() {
					if err := health[name]; err != nil {
						fmt.Printf("    %-25s ❌ %v\n", name+":", err)
					} else {
						fmt.Printf("    %-25s ✅ reachable\n", name+":")
					}
				}
			}
		}

		fmt.Println("═══════════════════════════════════════")
		return nil
	},
}

func init() {
	statusCmd.Flags().Bool("ping", false, "ping every configured LLM backend")
}
