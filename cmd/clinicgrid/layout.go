package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/jw6ventures/clinicgrid/internal/config"
	"github.com/jw6ventures/clinicgrid/internal/grid"
	"github.com/jw6ventures/clinicgrid/internal/logging"
)

type layoutOutput struct {
	Blocks  []grid.Block    `json:"blocks"`
	Slots   []grid.TimeSlot `json:"slots"`
	Dropped []string        `json:"dropped"`
}

func layoutCmd() *cobra.Command {
	var input, gridFile string
	cmd := &cobra.Command{
		Use:   "layout",
		Short: "Lay out a JSON array of events offline and print the blocks",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadGrid(gridFile)
			if err != nil {
				return err
			}
			var in io.Reader = cmd.InOrStdin()
			if input != "" && input != "-" {
				f, err := os.Open(input)
				if err != nil {
					return fmt.Errorf("open input: %w", err)
				}
				defer f.Close()
				in = f
			}
			logger := logging.NewWithWriter("warn", "development", cmd.ErrOrStderr())
			return runLayout(in, cmd.OutOrStdout(), cfg, logger)
		},
	}
	cmd.Flags().StringVar(&input, "input", "-", "events JSON file, - for stdin")
	cmd.Flags().StringVar(&gridFile, "grid", "", "grid settings YAML (defaults when empty)")
	return cmd
}

// runLayout reads []grid.Event from in and writes a layoutOutput to out.
// Events without a positive duration are reported in Dropped.
func runLayout(in io.Reader, out io.Writer, cfg grid.Config, logger zerolog.Logger) error {
	var events []grid.Event
	if err := json.NewDecoder(in).Decode(&events); err != nil {
		return fmt.Errorf("decode events: %w", err)
	}

	res := layoutOutput{Dropped: []string{}}
	valid := events[:0]
	for _, ev := range events {
		if !ev.End.After(ev.Start) {
			logger.Warn().Str("event_id", ev.ID).Msg("dropping event with non-positive duration")
			res.Dropped = append(res.Dropped, ev.ID)
			continue
		}
		valid = append(valid, ev)
	}
	res.Blocks = grid.Layout(valid, cfg)
	if res.Blocks == nil {
		res.Blocks = []grid.Block{}
	}
	res.Slots = grid.TimeSlots(cfg)

	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(res)
}
