package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/getlogtx/logtx/pkg/config"
	"github.com/getlogtx/logtx/pkg/dispatch"
	"github.com/getlogtx/logtx/pkg/fragment"
	"github.com/getlogtx/logtx/pkg/history"
	"github.com/getlogtx/logtx/pkg/logging"
	"github.com/getlogtx/logtx/pkg/metrics"
	"github.com/getlogtx/logtx/pkg/source"
	"github.com/getlogtx/logtx/pkg/txn"
)

var tailFlags struct {
	configPath string

	skipFirst         int
	stopAfter         int
	includeTag        string
	excludeTag        string
	includeTagPattern string
	excludeTagPattern string
	ignoreCase        bool

	noAggregate    bool
	payloadPattern string
	filterExpr     string
	showNonRequest bool

	keep     int
	logLevel string

	showMetrics bool
}

var tailCmd = &cobra.Command{
	Use:   "tail <fragment-dump>",
	Short: "Replay a fragment dump and print reconstructed transactions",
	Long: `Replay a persisted fragment dump (JSONL, one fragment per line) through
the reconstruction pipeline and print each completed transaction.

By default backend transactions are aggregated onto the client
transactions that triggered them; --no-aggregate prints every
transaction independently.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := tailConfig()
		if err != nil {
			return err
		}

		log := logging.New(logging.Config{
			Level:  logging.ParseLevel(cfg.Logging.Level),
			Format: logging.ParseFormat(cfg.Logging.Format),
		})

		src, err := source.Open(args[0])
		if err != nil {
			return err
		}
		defer src.Close()

		filteredSrc, err := source.Filtered(src, source.Options{
			SkipFirst:         cfg.Reader.SkipFirst,
			StopAfter:         cfg.Reader.StopAfter,
			IncludeTag:        cfg.Reader.IncludeTag,
			ExcludeTag:        cfg.Reader.ExcludeTag,
			IncludeTagPattern: cfg.Reader.IncludeTagPattern,
			ExcludeTagPattern: cfg.Reader.ExcludeTagPattern,
			IgnoreCase:        cfg.Reader.IgnoreCase,
		})
		if err != nil {
			return err
		}

		filter, err := dispatch.NewTxnFilter(cfg.Dispatch.PayloadPattern, cfg.Dispatch.FilterExpr, cfg.Reader.IgnoreCase)
		if err != nil {
			return err
		}

		reg := metrics.NewRegistry()
		m, err := dispatch.NewMetrics(reg)
		if err != nil {
			return err
		}

		store := history.NewMemoryStore(cfg.History.MaxEntries)
		d := dispatch.New(log, m)

		opts := dispatch.Options{
			Aggregate: cfg.Dispatch.AggregateOrDefault(),
			Filter:    filter,
		}
		if tailFlags.showNonRequest {
			opts.NonRequest = func(f fragment.Fragment) {
				fmt.Printf("-- connection event: %s %s\n", f.Tag, f.Payload)
			}
		}

		err = d.Process(filteredSrc, func(rec txn.Record) {
			store.Log(rec)
			printTransaction(rec)
		}, opts)
		if err != nil {
			return err
		}

		if tailFlags.showMetrics {
			fmt.Println()
			if err := reg.WriteTo(os.Stdout); err != nil {
				return err
			}
		}
		return nil
	},
}

// tailConfig merges the config file (if any) with command-line flags;
// flags win.
func tailConfig() (*config.Config, error) {
	cfg := config.Default()
	if tailFlags.configPath != "" {
		loaded, err := config.LoadFromFile(tailFlags.configPath)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}

	if tailFlags.skipFirst > 0 {
		cfg.Reader.SkipFirst = tailFlags.skipFirst
	}
	if tailFlags.stopAfter > 0 {
		cfg.Reader.StopAfter = tailFlags.stopAfter
	}
	if tailFlags.includeTag != "" {
		cfg.Reader.IncludeTag = tailFlags.includeTag
	}
	if tailFlags.excludeTag != "" {
		cfg.Reader.ExcludeTag = tailFlags.excludeTag
	}
	if tailFlags.includeTagPattern != "" {
		cfg.Reader.IncludeTagPattern = tailFlags.includeTagPattern
	}
	if tailFlags.excludeTagPattern != "" {
		cfg.Reader.ExcludeTagPattern = tailFlags.excludeTagPattern
	}
	if tailFlags.ignoreCase {
		cfg.Reader.IgnoreCase = true
	}
	if tailFlags.noAggregate {
		aggregate := false
		cfg.Dispatch.Aggregate = &aggregate
	}
	if tailFlags.payloadPattern != "" {
		cfg.Dispatch.PayloadPattern = tailFlags.payloadPattern
	}
	if tailFlags.filterExpr != "" {
		cfg.Dispatch.FilterExpr = tailFlags.filterExpr
	}
	if tailFlags.keep > 0 {
		cfg.History.MaxEntries = tailFlags.keep
	}
	if tailFlags.logLevel != "" {
		cfg.Logging.Level = tailFlags.logLevel
	}
	return cfg, nil
}

func init() {
	fs := tailCmd.Flags()
	fs.StringVarP(&tailFlags.configPath, "config", "c", "", "Path to a logtx config file")
	fs.IntVar(&tailFlags.skipFirst, "skip", 0, "Skip the first M fragments")
	fs.IntVar(&tailFlags.stopAfter, "stop-after", 0, "Stop after N fragments")
	fs.StringVar(&tailFlags.includeTag, "include-tag", "", "Only process fragments with this tag")
	fs.StringVar(&tailFlags.excludeTag, "exclude-tag", "", "Drop fragments with this tag")
	fs.StringVar(&tailFlags.includeTagPattern, "include-tag-re", "", "Only process fragments whose tag matches this regexp")
	fs.StringVar(&tailFlags.excludeTagPattern, "exclude-tag-re", "", "Drop fragments whose tag matches this regexp")
	fs.BoolVarP(&tailFlags.ignoreCase, "ignore-case", "i", false, "Case-insensitive tag and payload matching")
	fs.BoolVar(&tailFlags.noAggregate, "no-aggregate", false, "Deliver backend transactions independently instead of attached to clients")
	fs.StringVar(&tailFlags.payloadPattern, "match", "", "Only print transactions with a fragment payload matching this regexp")
	fs.StringVar(&tailFlags.filterExpr, "filter", "", `Only print transactions matching this expression, e.g. 'status >= 500 && !hit'`)
	fs.BoolVar(&tailFlags.showNonRequest, "connection-events", false, "Also print connection-level events (descriptor 0)")
	fs.IntVar(&tailFlags.keep, "keep", 0, "Number of transactions to retain in history (default 1000)")
	fs.StringVar(&tailFlags.logLevel, "log-level", "", "Log level: debug, info, warn, error")
	fs.BoolVar(&tailFlags.showMetrics, "metrics", false, "Print pipeline metrics after the stream ends")

	rootCmd.AddCommand(tailCmd)
}
