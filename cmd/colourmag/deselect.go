package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	cm "colourmag/pkg/colourmag"
)

var deselectCmd = &cobra.Command{
	Use:   "deselect <index>...",
	Short: "Toggle the selection of sources",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runDeselect,
}

var toggleCmd = &cobra.Command{
	Use:   "toggle",
	Short: "Flip the selection of every source",
	Args:  cobra.NoArgs,
	RunE:  runToggle,
}

func init() {
	rootCmd.AddCommand(deselectCmd)
	rootCmd.AddCommand(toggleCmd)
}

func runDeselect(cmd *cobra.Command, args []string) error {
	indices := make([]int, len(args))
	for i, a := range args {
		v, err := strconv.Atoi(a)
		if err != nil {
			return fmt.Errorf("%w: %q is not an index", cm.ErrSourceIndex, a)
		}
		indices[i] = v
	}

	_, s, err := openSession()
	if err != nil {
		return err
	}
	if err := s.ToggleSelection(indices...); err != nil {
		return err
	}
	return printStatuses(s, indices)
}

func runToggle(cmd *cobra.Command, args []string) error {
	_, s, err := openSession()
	if err != nil {
		return err
	}
	if err := s.ToggleAll(); err != nil {
		return err
	}
	st, err := s.State()
	if err != nil {
		return err
	}
	selected := 0
	for _, status := range st.Statuses {
		if status.Has(cm.Selected) {
			selected++
		}
	}
	fmt.Printf("%d of %d sources selected\n", selected, st.Count)
	return nil
}

func printStatuses(s *cm.Session, indices []int) error {
	st, err := s.State()
	if err != nil {
		return err
	}
	for _, i := range indices {
		fmt.Printf("Source %03d: %s\n", i, st.Statuses[i])
	}
	return nil
}
