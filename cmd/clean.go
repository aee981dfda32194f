package cmd

import (
	"os"

	"github.com/spf13/cobra"
	"github.com/tanq16/segfetch/internal/output"
	"github.com/tanq16/segfetch/internal/utils"
)

func newCleanCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "clean [SAVE_PATH]",
		Short: "Remove downloaded segments under a save path",
		Args:  cobra.MaximumNArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			savePath := "."
			if len(args) > 0 {
				savePath = args[0]
			}
			if err := utils.Clean(savePath); err != nil {
				output.PrintError("Error cleaning up temporary files")
				os.Exit(1)
			}
			output.PrintSuccess("Temporary files cleaned up")
		},
	}
}
