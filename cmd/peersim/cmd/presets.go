package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Pugstorm/CoreKeeperModSDK-sub013/internal/profile"
)

func newPresetsCmd() *cobra.Command {
	var showAll bool

	cmd := &cobra.Command{
		Use:   "presets",
		Short: "List the available network-condition presets",
		Run: func(cmd *cobra.Command, args []string) {
			catalogue := profile.NewCatalogue()
			if showAll {
				catalogue.ToggleShowAll()
			}

			fmt.Printf("%-18s %9s %10s %7s %7s  %s\n",
				bold("NAME"), "DELAY", "JITTER", "DROP", "FUZZ", "RATING")
			for _, p := range catalogue.Visible() {
				name := p.Name
				if p.Debug {
					name = yellow(name)
				}
				fmt.Printf("%-18s %7dms %8dms %5d%% %5d%%  %s\n",
					name,
					p.Profile.DelayMS,
					p.Profile.JitterMS,
					p.Profile.DropPercent,
					p.Profile.FuzzPercent,
					p.Profile.Classify().String(),
				)
			}
		},
	}

	cmd.Flags().BoolVar(&showAll, "all", false, "include debug presets")
	return cmd
}
