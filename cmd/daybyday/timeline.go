package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ivlev/daybyday/internal/timeline"
)

var timelineCmd = &cobra.Command{
	Use:   "timeline",
	Short: "Build a YAML timeline from a folder of dated photos",
	Long: `Scan a folder for files named YYYY-MM-DD*.ext and write them as a timeline.
When several files share a day, the first one in name order is used.

Example:
  daybyday timeline --dir ./photos --out timeline.yaml`,
	RunE: func(cmd *cobra.Command, args []string) error {
		dir, _ := cmd.Flags().GetString("dir")
		out, _ := cmd.Flags().GetString("out")

		entries, ignored, err := timeline.ScanDir(dir)
		if err != nil {
			return err
		}
		for _, name := range ignored {
			fmt.Printf("[!] Пропущен файл: %s\n", name)
		}
		if err := timeline.Validate(entries); err != nil {
			return err
		}
		if err := timeline.WriteFile(out, entries); err != nil {
			return err
		}
		fmt.Printf("[+] Записано дней: %d -> %s\n", len(entries), out)
		return nil
	},
}

func init() {
	timelineCmd.Flags().String("dir", "", "Folder with photos")
	timelineCmd.Flags().StringP("out", "o", "timeline.yaml", "Output YAML file")
	timelineCmd.MarkFlagRequired("dir")
}
