package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/talgya/stalk-market/internal/client"
	"github.com/talgya/stalk-market/internal/config"
	"github.com/talgya/stalk-market/internal/logging"
	"github.com/talgya/stalk-market/internal/market"
	"github.com/talgya/stalk-market/internal/persistence"
	"github.com/talgya/stalk-market/internal/report"
	"github.com/talgya/stalk-market/internal/sample"
	"github.com/talgya/stalk-market/internal/sweep"
)

// app carries what every subcommand shares.
type app struct {
	cfg      *config.Config
	asJSON   bool
	remote   bool
	apiURL   string
	logLevel string
}

func newRootCmd() *cobra.Command {
	a := &app{}

	root := &cobra.Command{
		Use:   "turnips",
		Short: "Predict the bounds of this week's turnip prices",
		Long: `turnips enumerates every way the four weekly price patterns can unfold
for a Sunday buy price and reports the price ranges still possible
given the prices seen so far.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			a.cfg = cfg
			level := cfg.LogLevel
			if a.logLevel != "" {
				level = a.logLevel
			}
			// stdout belongs to the report; logs go to stderr.
			slog.SetDefault(logging.New(os.Stderr, level, false))
			if a.apiURL == "" {
				a.apiURL = cfg.APIURL
			}
			return nil
		},
	}
	root.PersistentFlags().BoolVar(&a.asJSON, "json", false, "Print JSON instead of a table")
	root.PersistentFlags().BoolVar(&a.remote, "remote", false, "Ask a running stalkd instead of computing locally")
	root.PersistentFlags().StringVar(&a.apiURL, "api", "", "stalkd base URL (default from STALK_API_URL)")
	root.PersistentFlags().StringVar(&a.logLevel, "log-level", "", "debug, info, warn or error")

	root.AddCommand(
		newPredictCmd(a),
		newTableCmd(a),
		newBuildCmd(a),
		newSampleCmd(a),
		newPatternsCmd(a),
		newHistoryCmd(a),
		newStatusCmd(a),
	)
	return root
}

func newPredictCmd(a *app) *cobra.Command {
	var buy int
	var prices string

	cmd := &cobra.Command{
		Use:   "predict",
		Short: "Search every combination against the observed prices",
		Example: `  turnips predict --buy 100 --prices 85,80
  turnips predict --buy 104 --prices ,,88,80 --remote`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := market.ValidateBuy(buy); err != nil {
				return err
			}
			observed, err := market.ParseObserved(prices)
			if err != nil {
				return err
			}

			if !a.remote {
				return a.print(cmd.OutOrStdout(), market.Predict(buy, observed))
			}
			resp, err := a.client().Predict(cmd.Context(), buy, observed)
			if err != nil {
				return err
			}
			slog.Debug("prediction stored", "id", resp.ID)
			return a.print(cmd.OutOrStdout(), resp.Prediction)
		},
	}
	cmd.Flags().IntVar(&buy, "buy", 0, "Sunday buy price (90..110)")
	cmd.Flags().StringVar(&prices, "prices", "", "Observed prices from Monday AM, comma separated; empty = unknown")
	cmd.MarkFlagRequired("buy")
	return cmd
}

func newTableCmd(a *app) *cobra.Command {
	var buy int
	var prices string
	var fromDB bool

	cmd := &cobra.Command{
		Use:   "table",
		Short: "Match observed prices against the lookup table for a buy price",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := market.ValidateBuy(buy); err != nil {
				return err
			}
			observed, err := market.ParseObserved(prices)
			if err != nil {
				return err
			}

			switch {
			case a.remote:
				resp, err := a.client().Table(cmd.Context(), buy, observed)
				if err != nil {
					return err
				}
				return a.print(cmd.OutOrStdout(), resp.Prediction)
			case fromDB:
				db, err := persistence.Open(a.cfg.DBPath)
				if err != nil {
					return err
				}
				defer db.Close()
				table, err := db.LoadTable(buy)
				if err != nil {
					return err
				}
				return a.print(cmd.OutOrStdout(), market.MatchTable(table, observed))
			default:
				return a.print(cmd.OutOrStdout(), market.MatchTable(market.BuildTable(buy), observed))
			}
		},
	}
	cmd.Flags().IntVar(&buy, "buy", 0, "Sunday buy price (90..110)")
	cmd.Flags().StringVar(&prices, "prices", "", "Observed prices from Monday AM, comma separated")
	cmd.Flags().BoolVar(&fromDB, "db", false, "Read the stored table from STALK_DB_PATH instead of building it")
	cmd.MarkFlagRequired("buy")
	return cmd
}

func newBuildCmd(a *app) *cobra.Command {
	var lo, hi, workers int

	cmd := &cobra.Command{
		Use:   "build",
		Short: "Build and store lookup tables for a range of buy prices",
		RunE: func(cmd *cobra.Command, args []string) error {
			if a.remote {
				sum, err := a.client().Rebuild(cmd.Context())
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "run %s rebuilt %d..%d in %s\n", sum.RunID, sum.Lo, sum.Hi, sum.Elapsed.Round(time.Millisecond))
				return nil
			}

			if lo == 0 {
				lo = a.cfg.MinBuy
			}
			if hi == 0 {
				hi = a.cfg.MaxBuy
			}
			if workers == 0 {
				workers = a.cfg.Workers
			}
			db, err := persistence.Open(a.cfg.DBPath)
			if err != nil {
				return err
			}
			defer db.Close()

			sum, err := sweep.Build(cmd.Context(), lo, hi, workers, db)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "run %s stored %d tables (%s combinations) in %s\n",
				sum.RunID, len(sum.Tables), humanize.Comma(int64(sum.Total())), sum.Elapsed.Round(time.Millisecond))
			return nil
		},
	}
	cmd.Flags().IntVar(&lo, "min", 0, "Lowest buy price (default from config)")
	cmd.Flags().IntVar(&hi, "max", 0, "Highest buy price (default from config)")
	cmd.Flags().IntVar(&workers, "workers", 0, "Parallel builds (default from config)")
	return cmd
}

func newSampleCmd(a *app) *cobra.Command {
	var cfg sample.Config
	var upto int
	var predict bool

	cmd := &cobra.Command{
		Use:   "sample",
		Short: "Draw a synthetic week of prices",
		Example: `  turnips sample --pattern 1 --seed 7
  turnips sample --upto 5 --predict`,
		RunE: func(cmd *cobra.Command, args []string) error {
			w := sample.Draw(cfg)
			revealed := w.Upto(upto)

			if predict {
				return a.print(cmd.OutOrStdout(), market.Predict(w.Buy, revealed))
			}
			if a.asJSON {
				w.Prices = revealed
				return writeJSON(cmd.OutOrStdout(), w)
			}
			l := report.LabelFor(w.Pattern)
			fmt.Fprintf(cmd.OutOrStdout(), "%s %s, combination %s, buy %d, seed %d\n", l.Key, l.Name, w.Combination, w.Buy, w.Seed)
			fmt.Fprintf(cmd.OutOrStdout(), "--buy %d --prices %s\n", w.Buy, revealed.String())
			return nil
		},
	}
	cmd.Flags().IntVar(&cfg.Pattern, "pattern", -1, "Pattern 0..3; -1 = any")
	cmd.Flags().IntVar(&cfg.Buy, "buy", 0, "Sunday buy price; 0 = any")
	cmd.Flags().Int64Var(&cfg.Seed, "seed", 0, "Noise seed; 0 = random")
	cmd.Flags().IntVar(&upto, "upto", market.Phases, "Reveal only the first N phases")
	cmd.Flags().BoolVar(&predict, "predict", false, "Predict from the revealed prices instead of printing them")
	return cmd
}

func newPatternsCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "patterns",
		Short: "List the weekly price patterns",
		RunE: func(cmd *cobra.Command, args []string) error {
			labels := report.Labels()
			if a.remote {
				var err error
				if labels, err = a.client().Patterns(cmd.Context()); err != nil {
					return err
				}
			}
			if a.asJSON {
				return writeJSON(cmd.OutOrStdout(), labels)
			}
			for _, l := range labels {
				fmt.Fprintf(cmd.OutOrStdout(), "%s  %-12s %s\n", l.Key, l.Name, l.Description)
			}
			return nil
		},
	}
}

func newHistoryCmd(a *app) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "history",
		Short: "List predictions stored by stalkd",
		RunE: func(cmd *cobra.Command, args []string) error {
			var records []persistence.PredictionRecord
			if a.remote {
				var err error
				if records, err = a.client().Predictions(cmd.Context(), limit); err != nil {
					return err
				}
			} else {
				db, err := persistence.Open(a.cfg.DBPath)
				if err != nil {
					return err
				}
				defer db.Close()
				if records, err = db.RecentPredictions(limit); err != nil {
					return err
				}
			}

			if a.asJSON {
				return writeJSON(cmd.OutOrStdout(), records)
			}
			for _, r := range records {
				fmt.Fprintf(cmd.OutOrStdout(), "%s  %-8s buy %d  %2d left  [%s]  %s\n",
					r.ID, r.Source, r.Buy, r.Surviving, r.Observed,
					humanize.Time(time.Unix(r.CreatedAt, 0)))
			}
			return nil
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 10, "How many predictions to list")
	return cmd
}

func newStatusCmd(a *app) *cobra.Command {
	var wait time.Duration

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show the status of a running stalkd",
		RunE: func(cmd *cobra.Command, args []string) error {
			c := a.client()
			if wait > 0 {
				ctx, cancel := context.WithTimeout(cmd.Context(), wait)
				defer cancel()
				if err := c.WaitReady(ctx); err != nil {
					return err
				}
			}
			st, err := c.Status(cmd.Context())
			if err != nil {
				return err
			}
			if a.asJSON {
				return writeJSON(cmd.OutOrStdout(), st)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s up %s, buy %d..%d, %d tables (%s), %d predictions\n",
				st.Name, st.Uptime, st.MinBuy, st.MaxBuy, st.Tables, st.TableSize, st.Predictions)
			return nil
		},
	}
	cmd.Flags().DurationVar(&wait, "wait", 0, "Wait up to this long for stalkd to come up")
	return cmd
}

func (a *app) client() *client.Client {
	return client.New(a.apiURL, a.cfg.AdminKey)
}

func (a *app) print(w io.Writer, pred market.Prediction) error {
	if a.asJSON {
		return writeJSON(w, pred)
	}
	return report.Render(w, pred)
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
