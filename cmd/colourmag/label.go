package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	cm "colourmag/pkg/colourmag"
)

var labelCmd = &cobra.Command{
	Use:   "label <index> <mag_short> <mag_long>",
	Short: "Record the standard magnitudes of a source in both bands",
	Long: `Records reference magnitudes for the source with the given overlay index.
Labeling the same source again replaces the previous entry.`,
	Args: cobra.ExactArgs(3),
	RunE: runLabel,
}

func init() {
	rootCmd.AddCommand(labelCmd)
}

func runLabel(cmd *cobra.Command, args []string) error {
	index, err := strconv.Atoi(args[0])
	if err != nil {
		return fmt.Errorf("%w: %q is not an index", cm.ErrSourceIndex, args[0])
	}
	magShort, err := cm.ParseMagnitude(args[1])
	if err != nil {
		return err
	}
	magLong, err := cm.ParseMagnitude(args[2])
	if err != nil {
		return err
	}

	cfg, s, err := openSession()
	if err != nil {
		return err
	}
	if err := s.RecordReference(index, magShort, magLong); err != nil {
		return err
	}
	fmt.Printf("Source %03d: %s = %.3f, %s = %.3f\n", index, cfg.ShortColour, magShort, cfg.LongColour, magLong)
	return nil
}
