package main

import (
	"encoding/json"
	"fmt"
	"net/url"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/sitescout/internal/analyze"
	"github.com/sells-group/sitescout/internal/cache"
	"github.com/sells-group/sitescout/internal/crawler"
	"github.com/sells-group/sitescout/internal/model"
	"github.com/sells-group/sitescout/pkg/anthropic"
)

var (
	scrapeOutput   string
	scrapeDryRun   bool
	maxPagesFlag   int
	maxDepthFlag   int
	delayFlag      float64
	concurrentFlag int
	thresholdFlag  float64
	cacheDuration  int
	modelFlag      string
)

var scrapeCmd = &cobra.Command{
	Use:   "scrape <url>",
	Short: "Crawl a website and analyze its content",
	Args:  cobra.ExactArgs(1),
	RunE:  runScrape,
}

func init() {
	scrapeCmd.Flags().StringVarP(&scrapeOutput, "output", "o", "", "output file path (default: auto-generated from host)")
	scrapeCmd.Flags().IntVarP(&maxPagesFlag, "max-pages", "m", 0, "maximum pages to crawl")
	scrapeCmd.Flags().IntVarP(&maxDepthFlag, "max-depth", "d", -1, "maximum crawl depth")
	scrapeCmd.Flags().Float64VarP(&delayFlag, "delay", "w", 0, "delay between requests per host in seconds")
	scrapeCmd.Flags().IntVarP(&concurrentFlag, "concurrent", "c", 0, "maximum concurrent requests")
	scrapeCmd.Flags().Float64VarP(&thresholdFlag, "content-threshold", "t", -1, "minimum content score to analyze (0.0-1.0)")
	scrapeCmd.Flags().IntVar(&cacheDuration, "cache-duration", -1, "cache duration in seconds (0 disables the persistent cache)")
	scrapeCmd.Flags().StringVar(&modelFlag, "model", "", "analysis model identifier")
	scrapeCmd.Flags().BoolVar(&scrapeDryRun, "dry-run", false, "print the effective configuration without crawling")

	rootCmd.AddCommand(scrapeCmd)
}

func runScrape(cmd *cobra.Command, args []string) error {
	applyFlagOverrides()

	base, err := crawler.NormalizeURL(args[0])
	if err != nil {
		return err
	}

	if scrapeDryRun {
		printDryRun(base.String())
		return nil
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	ttl := time.Duration(cfg.Cache.TTLSecs) * time.Second

	var store cache.Store
	if ttl > 0 {
		s, err := cache.NewSQLite(cfg.Cache.Path)
		if err != nil {
			return eris.Wrap(err, "open cache")
		}
		store = s
	} else {
		store = cache.NewMemory()
	}
	defer func() { _ = store.Close() }()

	var analyzer analyze.Analyzer
	if cfg.Anthropic.Key != "" {
		analyzer = analyze.NewClaudeAnalyzer(anthropic.NewClient(cfg.Anthropic.Key), cfg.Anthropic)
	} else {
		zap.L().Warn("no anthropic key configured, pages will be scored but not summarized")
	}

	c := crawler.New(cfg.Crawl, store, analyzer, ttl)

	zap.L().Info("starting scrape",
		zap.String("base_url", base.String()),
		zap.Int("max_pages", cfg.Crawl.MaxPages),
		zap.Int("max_depth", cfg.Crawl.MaxDepth),
	)

	session, err := c.Run(ctx, base.String())
	if err != nil {
		return err
	}

	outputPath := scrapeOutput
	if outputPath == "" {
		outputPath = defaultOutputPath(base)
	}
	if err := writeReport(session, outputPath); err != nil {
		return err
	}

	printSummary(session, outputPath)
	return nil
}

// applyFlagOverrides copies explicitly set flags over the loaded config.
func applyFlagOverrides() {
	if maxPagesFlag > 0 {
		cfg.Crawl.MaxPages = maxPagesFlag
	}
	if maxDepthFlag >= 0 {
		cfg.Crawl.MaxDepth = maxDepthFlag
	}
	if delayFlag > 0 {
		cfg.Crawl.DelaySecs = delayFlag
	}
	if concurrentFlag > 0 {
		cfg.Crawl.ConcurrentRequests = concurrentFlag
	}
	if thresholdFlag >= 0 {
		cfg.Crawl.ContentThreshold = thresholdFlag
	}
	if cacheDuration >= 0 {
		cfg.Cache.TTLSecs = cacheDuration
	}
	if modelFlag != "" {
		cfg.Anthropic.Model = modelFlag
	}
}

func defaultOutputPath(base *url.URL) string {
	host := strings.ReplaceAll(base.Host, ".", "_")
	return host + "_scraping_results.json"
}

func writeReport(session *model.Session, path string) error {
	report := session.Report()
	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return eris.Wrap(err, "marshal report")
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return eris.Wrapf(err, "write report %s", path)
	}
	zap.L().Info("report written", zap.String("path", path))
	return nil
}

func printDryRun(baseURL string) {
	fmt.Println("DRY RUN - no crawling will be performed")
	fmt.Printf("  Base URL:            %s\n", baseURL)
	fmt.Printf("  Max pages:           %d\n", cfg.Crawl.MaxPages)
	fmt.Printf("  Max depth:           %d\n", cfg.Crawl.MaxDepth)
	fmt.Printf("  Delay:               %.1fs\n", cfg.Crawl.DelaySecs)
	fmt.Printf("  Concurrent requests: %d\n", cfg.Crawl.ConcurrentRequests)
	fmt.Printf("  Content threshold:   %.2f\n", cfg.Crawl.ContentThreshold)
	fmt.Printf("  Cache duration:      %ds\n", cfg.Cache.TTLSecs)
	fmt.Printf("  Model:               %s\n", cfg.Anthropic.Model)
}

func printSummary(session *model.Session, outputPath string) {
	info := session.Report().ScrapingSession

	fmt.Println(strings.Repeat("=", 60))
	fmt.Println("SCRAPING COMPLETED")
	fmt.Println(strings.Repeat("=", 60))
	fmt.Printf("Base URL: %s\n", info.BaseURL)
	fmt.Printf("Total pages processed: %d\n", info.TotalPages)
	fmt.Printf("Successful pages: %d\n", info.SuccessfulPages)
	fmt.Printf("Failed pages: %d\n", info.FailedPages)
	fmt.Printf("Total time: %.1fs\n", info.TotalTime)
	fmt.Printf("Results saved to: %s\n", outputPath)
}
