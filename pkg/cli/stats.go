package cli

import (
	"fmt"

	"github.com/ohler55/ojg/oj"
	"github.com/spf13/cobra"

	"github.com/getlogtx/logtx/pkg/stats"
)

var statsCmd = &cobra.Command{
	Use:   "stats <snapshot> [previous-snapshot]",
	Short: "Print proxy counters from a snapshot, or the delta between two",
	Long: `Print the counters from a proxy statistics snapshot (a JSON counter
dump). With two snapshots the per-counter increase from the older to
the newer one is printed instead.`,
	Args: cobra.RangeArgs(1, 2),
	RunE: func(cmd *cobra.Command, args []string) error {
		snap, err := stats.Load(args[0])
		if err != nil {
			return err
		}

		values := make(map[string]uint64, snap.Len())
		if len(args) == 2 {
			prev, err := stats.Load(args[1])
			if err != nil {
				return err
			}
			values = snap.Delta(prev)
		} else {
			for _, name := range snap.Names() {
				v, _ := snap.Get(name)
				values[name] = v
			}
		}

		if jsonOutput {
			fmt.Println(oj.JSON(values, 2))
			return nil
		}
		for _, name := range snap.Names() {
			fmt.Printf("%-50s %d\n", name, values[name])
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(statsCmd)
}
