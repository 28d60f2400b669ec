package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/blkcore/blkmount/internal/mount/hookset"
	"github.com/blkcore/blkmount/internal/mount/mountctx"
	"github.com/blkcore/blkmount/internal/mount/optmap"
	"github.com/blkcore/blkmount/internal/utils/logger"
)

var (
	mountFSType     string
	mountOptstr     string
	mountRestricted bool
)

// createMountCommand creates the mount subcommand.
func createMountCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "mount [flags] SOURCE TARGET",
		Short: "drive a single mount request through prepare/do/finalize",
		Args:  cobra.ExactArgs(2),
		RunE:  executeMount,
	}
	cmd.Flags().StringVarP(&mountFSType, "types", "t", "auto", "filesystem type (or type list / auto)")
	cmd.Flags().StringVarP(&mountOptstr, "options", "o", "", "comma-separated mount options")
	cmd.Flags().BoolVar(&mountRestricted, "restricted", false, "evaluate as an unprivileged caller")
	return cmd
}

func executeMount(cmd *cobra.Command, args []string) error {
	log := logger.Logger()
	source, target := args[0], args[1]
	log.Infof("mounting %s at %s (type=%s)", source, target, mountFSType)

	registry := optmap.NewRegistry(optmap.LinuxVFS(), optmap.Userspace())
	vfsMap, userMap := registry.Maps()[0], registry.Maps()[1]
	engine := hookset.NewEngine(hookset.Mkdir, hookset.Subdir)

	mc := mountctx.New(mountctx.ActionMount, registry, vfsMap, userMap, engine)
	mc.Fs.Source = source
	mc.Fs.Target = target
	mc.Fs.FSType = mountFSType
	mc.Fs.OptStr = mountOptstr
	mc.Restricted = mountRestricted

	if cfg := loadConfig(); cfg.FakeMode {
		log.Infof("fake-mode enabled: no mount(2)/umount(2) call will be issued")
		mc.Kernel = mountctx.FakeKernel
	}

	ctx := cmd.Context()
	if err := mc.Prepare(ctx); err != nil {
		return fmt.Errorf("prepare_mount: %w", err)
	}
	if err := mc.Do(ctx); err != nil {
		return fmt.Errorf("do_mount: %w", err)
	}
	if err := mc.Finalize(ctx); err != nil {
		return fmt.Errorf("finalize_mount: %w", err)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "mounted %s at %s\n", source, target)
	return nil
}
