package main

import (
	"fmt"

	"github.com/mitchellh/colorstring"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"github.com/blkcore/blkmount/internal/partition"
	"github.com/blkcore/blkmount/internal/partition/dispatch"
	"github.com/blkcore/blkmount/internal/sector"
	"github.com/blkcore/blkmount/internal/utils/logger"
)

var probeOnly string

// createProbeCommand creates the probe subcommand.
func createProbeCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "probe [flags] DEVICE_OR_IMAGE",
		Short: "probe a device or image file for its partition table",
		Args:  cobra.ExactArgs(1),
		RunE:  executeProbe,
	}
	cmd.Flags().StringVar(&probeOnly, "only", "", "restrict detection to a single scheme (e.g. gpt, dos, bsd)")
	return cmd
}

func executeProbe(cmd *cobra.Command, args []string) error {
	log := logger.Logger()
	path := args[0]
	log.Infof("probing %s", path)

	bar := progressbar.NewOptions(3,
		progressbar.OptionSetDescription("scanning"),
		progressbar.OptionSetWriter(cmd.OutOrStdout()),
	)
	defer bar.Finish()

	r, err := sector.OpenFile(path, 0)
	if err != nil {
		return fmt.Errorf("open %s: %w", path, err)
	}
	defer r.Close()
	_ = bar.Add(1)

	d := dispatch.New()
	list := partition.New()
	var winner partition.Prober
	if probeOnly != "" {
		winner, err = d.DispatchOnly(r, list, probeOnly)
	} else {
		winner, err = d.Dispatch(r, list)
	}
	_ = bar.Add(1)
	if err != nil {
		return fmt.Errorf("probe %s: %w", path, err)
	}
	_ = bar.Add(1)

	out := cmd.OutOrStdout()
	if winner == nil {
		fmt.Fprintln(out, colorstring.Color("[yellow]no recognized partition table[reset]"))
		return nil
	}

	fmt.Fprintln(out)
	fmt.Fprintln(out, colorstring.Color(fmt.Sprintf("[green]PTTYPE[reset]=%s", winner.Name())))
	for _, t := range list.Tables() {
		if t.IDString != "" {
			fmt.Fprintln(out, colorstring.Color(fmt.Sprintf("[green]PTUUID[reset]=%s", t.IDString)))
		}
	}
	for _, e := range list.Entries() {
		fmt.Fprintf(out, "  #%d %-10s start=%d size=%d name=%q\n",
			e.PartNumber, e.TypeString, e.Start, e.Size, e.Name)
	}
	return nil
}
