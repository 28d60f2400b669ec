package main

import (
	"fmt"

	"github.com/gdamore/tcell"
	"github.com/rivo/tview"
	"github.com/spf13/cobra"

	"github.com/blkcore/blkmount/internal/partition"
	"github.com/blkcore/blkmount/internal/partition/dispatch"
	"github.com/blkcore/blkmount/internal/sector"
)

// createBrowseCommand creates the browse subcommand: probes the given
// device/image and renders its partition tree as a collapsible tview
// tree view, selecting a node prints its name/value pairs below it.
func createBrowseCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "browse DEVICE_OR_IMAGE",
		Short: "interactively browse a probed partition tree",
		Args:  cobra.ExactArgs(1),
		RunE:  executeBrowse,
	}
	return cmd
}

func executeBrowse(cmd *cobra.Command, args []string) error {
	path := args[0]
	r, err := sector.OpenFile(path, 0)
	if err != nil {
		return fmt.Errorf("open %s: %w", path, err)
	}
	defer r.Close()

	list := partition.New()
	winner, err := dispatch.New().Dispatch(r, list)
	if err != nil {
		return fmt.Errorf("probe %s: %w", path, err)
	}

	root := tview.NewTreeNode(path).SetColor(tcell.ColorGreen)
	schemeLabel := "no recognized partition table"
	if winner != nil {
		schemeLabel = winner.Name()
	}
	root.SetReference(map[string]string{"scheme": schemeLabel})

	for _, e := range list.Entries() {
		label := fmt.Sprintf("#%d %s", e.PartNumber, e.TypeString)
		node := tview.NewTreeNode(label).SetColor(tcell.ColorYellow)
		node.SetReference(map[string]string{
			"start": fmt.Sprintf("%d", e.Start),
			"size":  fmt.Sprintf("%d", e.Size),
			"name":  e.Name,
			"uuid":  e.UUID.String(),
		})
		root.AddChild(node)
	}

	tree := tview.NewTreeView().SetRoot(root).SetCurrentNode(root)
	detail := tview.NewTextView().SetDynamicColors(true).SetText(schemeLabel)

	tree.SetSelectedFunc(func(node *tview.TreeNode) {
		fields, _ := node.GetReference().(map[string]string)
		text := ""
		for k, v := range fields {
			text += fmt.Sprintf("[yellow]%s[white]=%s\n", k, v)
		}
		detail.SetText(text)
	})

	layout := tview.NewFlex().SetDirection(tview.FlexRow).
		AddItem(tree, 0, 3, true).
		AddItem(detail, 0, 1, false)

	app := tview.NewApplication()
	return app.SetRoot(layout, true).SetFocus(tree).Run()
}
