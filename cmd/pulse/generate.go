package main

import (
	"context"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/tradingpro/pulse/internal/core"
	"github.com/tradingpro/pulse/internal/logger"
)

var (
	generateSource  string
	generateDeliver bool
)

var generateCmd = &cobra.Command{
	Use:   "generate [ticker...]",
	Short: "Generate trading signals for tickers",
	Long: `Generate signals for one or more tickers and print them. With
--deliver, each generated signal is also fanned out to matching
webhook subscribers.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runGenerate,
}

func init() {
	generateCmd.Flags().StringVar(&generateSource, "source", "combined",
		"analysis path: gpt_analysis, market_data or combined")
	generateCmd.Flags().BoolVar(&generateDeliver, "deliver", false,
		"deliver generated signals to webhook subscribers")

	rootCmd.AddCommand(generateCmd)
}

func runGenerate(cmd *cobra.Command, args []string) error {
	log := logger.Must(debug)
	defer log.Sync()

	cfg, err := loadConfig(log)
	if err != nil {
		return err
	}

	rt, err := buildRuntime(cfg, log)
	if err != nil {
		return err
	}

	symbols := make([]string, 0, len(args))
	for _, arg := range args {
		symbols = append(symbols, strings.ToUpper(strings.TrimSpace(arg)))
	}

	ctx := context.Background()
	signals := rt.generator.GenerateForSymbols(ctx, symbols, core.SignalSource(generateSource))
	if len(signals) == 0 {
		fmt.Println("No signals generated")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "TICKER\tTYPE\tCONFIDENCE\tSOURCE\tEXPIRES")
	for _, sig := range signals {
		fmt.Fprintf(w, "%s\t%s\t%.2f\t%s\t%s\n",
			sig.Symbol, sig.Type, sig.Confidence, sig.Source,
			sig.ExpiryTime.Format("2006-01-02 15:04"))
	}
	w.Flush()

	if !generateDeliver {
		return nil
	}

	for _, sig := range signals {
		results, err := rt.webhooks.DeliverToAllSubscribers(ctx, sig)
		if err != nil {
			log.Error("webhook fan-out failed",
				zap.String("signal_id", sig.ID), zap.Error(err))
			continue
		}
		delivered := 0
		for _, res := range results {
			if res.Success {
				delivered++
			}
		}
		fmt.Printf("%s: delivered to %d/%d subscribers\n",
			sig.Symbol, delivered, len(results))
	}

	return nil
}
