package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	cm "colourmag/pkg/colourmag"
)

var reduceCmd = &cobra.Command{
	Use:   "reduce",
	Short: "Calibrate, register and stack the frames, then detect and measure sources",
	Args:  cobra.NoArgs,
	RunE:  runReduce,
}

func init() {
	rootCmd.AddCommand(reduceCmd)
}

func runReduce(cmd *cobra.Command, args []string) error {
	cfg, err := cm.LoadConfig(configPath)
	if err != nil {
		return err
	}
	s, err := cm.NewSession(cfg)
	if err != nil {
		return err
	}

	start := time.Now()
	res, err := s.Reduce(cmd.Context())
	if err != nil {
		return err
	}

	fmt.Println()
	fmt.Printf("=== Reduction (%.1fs) ===\n", time.Since(start).Seconds())
	fmt.Printf("  Run:             %s\n", res.RunID)
	for b := cm.Band(0); b < cm.NumBands; b++ {
		name := cfg.BandColour(b)
		fmt.Printf("  %-6s master:   %s\n", name, res.MasterPaths[b])
		fmt.Printf("  %-6s applied:  %s\n", name, joinOrNone(res.Reports[b].Applied))
		fmt.Printf("  %-6s sources:  %d\n", name, res.Found[b])
	}
	fmt.Printf("  Common sources:  %d\n", res.Count)
	fmt.Printf("  Overlay:         %s\n", res.OverlayPath)
	fmt.Println("=========================")
	fmt.Println()
	fmt.Println("Open the overlay and identify stars of known magnitude. Then run:")
	fmt.Println("  colourmag label <index> <mag_short> <mag_long>")
	fmt.Println("  colourmag deselect <index>...")
	fmt.Println("  colourmag preview")
	fmt.Println("  colourmag save")
	return nil
}

func joinOrNone(items []string) string {
	if len(items) == 0 {
		return "none"
	}
	out := items[0]
	for _, it := range items[1:] {
		out += ", " + it
	}
	return out
}
