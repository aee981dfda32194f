package cmd

import (
	u "net/url"
	"os"

	"github.com/spf13/cobra"
	"github.com/tanq16/segfetch/internal/output"
	"github.com/tanq16/segfetch/internal/utils"
)

func newGetCmd() *cobra.Command {
	var name string
	var savePath string
	var listFile string

	cmd := &cobra.Command{
		Use:   "get [URL...] [--list FILE] [--output SAVE_PATH]",
		Short: "Download segment URLs into a save path",
		Args:  cobra.ArbitraryArgs,
		Run: func(cmd *cobra.Command, args []string) {
			if len(args) == 0 && listFile == "" {
				output.PrintError("No URL or URL list provided")
				os.Exit(1)
			}
			if listFile != "" && len(args) > 0 {
				output.PrintError("Cannot specify url arguments and --list together, choose one")
				os.Exit(1)
			}
			urls := args
			if listFile != "" {
				var err error
				urls, err = utils.ReadURLList(listFile)
				if err != nil {
					output.PrintError("Failed to read URL list file")
					os.Exit(1)
				}
			}
			for _, url := range urls {
				if _, err := u.ParseRequestURI(url); err != nil {
					output.PrintError("Invalid URL format: " + url)
					os.Exit(1)
				}
			}
			runJobs([]utils.SegmentJob{{Name: name, SavePath: savePath, URLs: urls}})
		},
	}

	cmd.Flags().StringVarP(&name, "name", "n", "segments", "Job name shown in progress output")
	cmd.Flags().StringVarP(&savePath, "output", "o", ".", "Save path; segments go to its temp directory")
	cmd.Flags().StringVarP(&listFile, "list", "l", "", "Text file with one segment URL per line")
	return cmd
}
