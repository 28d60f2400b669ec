package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/blkcore/blkmount/internal/mount/optlist"
	"github.com/blkcore/blkmount/internal/mount/optmap"
)

var optstrFilter string

// createOptstrCommand creates the optstr subcommand: parses an option
// string and prints its normalized form plus the resolved kernel flag
// word, without touching any kernel or filesystem state.
func createOptstrCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "optstr OPTION_STRING",
		Short: "parse and normalize a mount option string",
		Args:  cobra.ExactArgs(1),
		RunE:  executeOptstr,
	}
	cmd.Flags().StringVar(&optstrFilter, "filter", "default", "default, all, unknown, helpers, or mtab")
	return cmd
}

func executeOptstr(cmd *cobra.Command, args []string) error {
	registry := optmap.NewRegistry(optmap.LinuxVFS(), optmap.Userspace())
	vfsMap := registry.Maps()[0]

	list := optlist.New(registry)
	if err := list.AppendFromString(args[0], vfsMap); err != nil {
		return fmt.Errorf("parse option string: %w", err)
	}
	list.Merge()

	filter, err := parseFilter(optstrFilter)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "optstr: %s\n", list.GetOptstr(nil, filter))
	fmt.Fprintf(out, "flags:  0x%x\n", list.GetFlags(vfsMap, filter))
	if s := list.LastSuggestion(); s != "" {
		fmt.Fprintf(out, "note: unrecognized option, did you mean %q?\n", s)
	}
	return nil
}

func parseFilter(name string) (optlist.Filter, error) {
	switch name {
	case "default":
		return optlist.FilterDefault, nil
	case "all":
		return optlist.FilterAll, nil
	case "unknown":
		return optlist.FilterUnknown, nil
	case "helpers":
		return optlist.FilterHelpers, nil
	case "mtab":
		return optlist.FilterMtab, nil
	default:
		return 0, fmt.Errorf("unsupported --filter %q (supported: default, all, unknown, helpers, mtab)", name)
	}
}
