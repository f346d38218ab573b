package main

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	cm "colourmag/pkg/colourmag"
)

var (
	previewReddening float64
	previewOut       string
)

var previewCmd = &cobra.Command{
	Use:   "preview",
	Short: "Fit the colour transforms and plot the colour-magnitude diagram",
	Args:  cobra.NoArgs,
	RunE:  runPreview,
}

var saveReddening float64

var saveCmd = &cobra.Command{
	Use:   "save",
	Short: "Write the data table and the colour-magnitude diagram",
	Args:  cobra.NoArgs,
	RunE:  runSave,
}

func init() {
	previewCmd.Flags().Float64Var(&previewReddening, "reddening", 0, "Colour excess E(short-long) subtracted from the colour index")
	previewCmd.Flags().StringVar(&previewOut, "out", "", "Plot file (default preview.png in path_result)")
	saveCmd.Flags().Float64Var(&saveReddening, "reddening", 0, "Colour excess E(short-long) subtracted from the colour index")
	rootCmd.AddCommand(previewCmd)
	rootCmd.AddCommand(saveCmd)
}

// reddeningFlag returns the flag value when set, otherwise the configured one.
func reddeningFlag(cmd *cobra.Command, flag float64, cfg *cm.Config) float64 {
	if cmd.Flags().Changed("reddening") {
		return flag
	}
	return cfg.Reddening
}

func runPreview(cmd *cobra.Command, args []string) error {
	cfg, s, err := openSession()
	if err != nil {
		return err
	}
	diagram, st, err := s.ColourMagnitude(reddeningFlag(cmd, previewReddening, cfg))
	if err != nil {
		return err
	}
	printTransforms(cfg, diagram)

	out := previewOut
	if out == "" {
		out = filepath.Join(cfg.PathResult, "preview.png")
	}
	if err := cm.SaveCMDPlot(out, diagram, st.Statuses, cfg.ShortColour, cfg.LongColour); err != nil {
		return err
	}
	fmt.Printf("  Plot:            %s\n", out)
	return nil
}

func runSave(cmd *cobra.Command, args []string) error {
	cfg, s, err := openSession()
	if err != nil {
		return err
	}
	res, err := s.Save(reddeningFlag(cmd, saveReddening, cfg))
	if err != nil {
		return err
	}
	printTransforms(cfg, res.CMD)
	fmt.Printf("  Rows:            %d\n", res.Rows)
	fmt.Printf("  Table:           %s\n", res.TablePath)
	fmt.Printf("  Plot:            %s\n", res.PlotPath)
	return nil
}

func printTransforms(cfg *cm.Config, c *cm.CMD) {
	fmt.Println()
	fmt.Println("=== Colour transforms ===")
	if c.Arbitrary {
		fmt.Println("  Fewer than two reference stars per band, magnitudes in arbitrary units")
		for b := cm.Band(0); b < cm.NumBands; b++ {
			fmt.Printf("  %-6s zero point: source %03d\n", cfg.BandColour(b), c.ZeroPoint[b])
		}
	} else {
		for b := cm.Band(0); b < cm.NumBands; b++ {
			fmt.Printf("  %-6s %s\n", cfg.BandColour(b), c.Transforms[b])
		}
	}
	fmt.Printf("  Plotted sources: %d\n", len(c.ValidPoints()))
}
