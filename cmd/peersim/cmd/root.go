package cmd

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/Pugstorm/CoreKeeperModSDK-sub013/internal/version"
)

var (
	cfgFile string
	verbose bool
	noColor bool

	// Color functions
	green  = color.New(color.FgGreen).SprintFunc()
	yellow = color.New(color.FgYellow).SprintFunc()
	red    = color.New(color.FgRed).SprintFunc()
	cyan   = color.New(color.FgCyan).SprintFunc()
	bold   = color.New(color.Bold).SprintFunc()
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "peersim",
	Short: "peersim - simulated multiplayer peer fleet with network emulation",
	Long: `peersim runs a simulated multiplayer session: a server, a primary
client and a fleet of thin clients, all connected over a deterministic
loopback transport with configurable network conditions and fault
injection (lag spikes, forced timeouts).`,
	Version: version.String(),
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	cobra.OnInitialize(initLogging)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ./peersim.toml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
	rootCmd.PersistentFlags().BoolVar(&noColor, "no-color", false, "disable colored output")

	rootCmd.AddCommand(
		newRunCmd(),
		newPresetsCmd(),
	)
}

func initLogging() {
	if noColor {
		color.NoColor = true
	}
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))
}

// Helper functions for consistent output

func printSuccess(format string, a ...any) {
	fmt.Printf("%s %s\n", green("[OK]"), fmt.Sprintf(format, a...))
}

func printInfo(format string, a ...any) {
	fmt.Printf("%s %s\n", cyan("[INFO]"), fmt.Sprintf(format, a...))
}

func printWarning(format string, a ...any) {
	fmt.Printf("%s %s\n", yellow("[WARN]"), fmt.Sprintf(format, a...))
}

func printError(format string, a ...any) {
	fmt.Fprintf(os.Stderr, "%s %s\n", red("[ERROR]"), fmt.Sprintf(format, a...))
}
