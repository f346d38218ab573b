package main

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	cm "colourmag/pkg/colourmag"
)

var (
	offsetsOut string
	overlayOut string
)

var offsetsCmd = &cobra.Command{
	Use:       "offsets <short|long|master>",
	Short:     "Plot the registration offsets of a band or of the masters",
	Args:      cobra.ExactArgs(1),
	ValidArgs: []string{string(cm.OffsetsShort), string(cm.OffsetsLong), string(cm.OffsetsMaster)},
	RunE:      runOffsets,
}

var overlayCmd = &cobra.Command{
	Use:   "overlay",
	Short: "Render the source overlay with the current selection",
	Args:  cobra.NoArgs,
	RunE:  runOverlay,
}

func init() {
	offsetsCmd.Flags().StringVar(&offsetsOut, "out", "", "Plot file (default offsets_<table>.png in path_result)")
	overlayCmd.Flags().StringVar(&overlayOut, "out", "", "Image file (default overlay.png in path_result)")
	rootCmd.AddCommand(offsetsCmd)
	rootCmd.AddCommand(overlayCmd)
}

func runOffsets(cmd *cobra.Command, args []string) error {
	cfg, s, err := openSession()
	if err != nil {
		return err
	}
	which := cm.OffsetTable(args[0])
	offsets, err := s.Offsets(which)
	if err != nil {
		return err
	}
	for i, o := range offsets {
		fmt.Printf("  %3d  dx=%4d  dy=%4d\n", i, o.DX, o.DY)
	}

	out := offsetsOut
	if out == "" {
		out = filepath.Join(cfg.PathResult, fmt.Sprintf("offsets_%s.png", which))
	}
	if err := cm.SaveOffsetPlot(out, fmt.Sprintf("Registration offsets (%s)", which), offsets); err != nil {
		return err
	}
	fmt.Printf("Plot written to %s\n", out)
	return nil
}

func runOverlay(cmd *cobra.Command, args []string) error {
	cfg, s, err := openSession()
	if err != nil {
		return err
	}
	out := overlayOut
	if out == "" {
		out = filepath.Join(cfg.PathResult, cm.OverlayFileName)
	}
	if err := s.RenderOverlay(out); err != nil {
		return err
	}
	fmt.Printf("Overlay written to %s\n", out)
	return nil
}
