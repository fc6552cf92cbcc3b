// Package main is the CLI entry point for screenguard.
package main

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/eliteGoblin/focusd/screen_guard/internal/domain"
	"github.com/eliteGoblin/focusd/screen_guard/internal/infra"
	"github.com/eliteGoblin/focusd/screen_guard/internal/policy"
)

var (
	// Version info (set via ldflags)
	Version   = "0.1.0"
	Commit    = "dev"
	BuildTime = "unknown"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "screenguard",
	Short: "Capture protection - blocks screenshots and blurs while recording",
	Long: `screenguard watches whether a protected application is in the foreground
and whether the screen is being recorded, and drives two protective actions:
screenshot blocking and a blur overlay.

The actions themselves are performed by hook commands from the config file.`,
	Version:       Version,
	SilenceUsage:  true,
	SilenceErrors: false,
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the protection daemon in the foreground",
	Long: `Starts the protection controller. It subscribes to capture status
(recorder processes, optionally OBS), samples the frontmost application, and
applies protective actions until interrupted.`,
	RunE: runRun,
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the last published protection status",
	RunE:  runStatus,
}

var journalCmd = &cobra.Command{
	Use:   "journal",
	Short: "Show recent transitions from the encrypted journal",
	RunE:  runJournal,
}

var simulateCmd = &cobra.Command{
	Use:   "simulate",
	Short: "Drive the controller from an event script on stdin",
	Long: `Reads one event per line from stdin and prints the action requests the
controller emits. Events:

  launch | activate | resign | terminate
  capture on | capture off
  fail-subscribe      (the next launch cannot subscribe)

Lines starting with # are ignored.`,
	RunE: runSimulate,
}

var policiesCmd = &cobra.Command{
	Use:   "policies",
	Short: "List protection policies",
	RunE:  runPolicies,
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Long:  `Prints version, commit, and build time. Use --json for machine-readable output.`,
	Run:   runVersion,
}

var (
	configPath   string
	appName      string
	policyID     string
	jsonOutput   bool
	journalLimit int
)

func init() {
	runCmd.Flags().StringVar(&configPath, "config", "", "Config file (default depends on execution mode)")
	runCmd.Flags().StringVar(&appName, "app", "", "Protected application name (overrides config)")
	runCmd.Flags().StringVar(&policyID, "policy", "", "Policy ID (overrides config)")
	statusCmd.Flags().BoolVar(&jsonOutput, "json", false, "Output status as JSON")
	journalCmd.Flags().IntVar(&journalLimit, "limit", 20, "Number of transitions to show")
	simulateCmd.Flags().StringVar(&policyID, "policy", "", "Policy ID")
	versionCmd.Flags().BoolVar(&jsonOutput, "json", false, "Output version info as JSON")

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(journalCmd)
	rootCmd.AddCommand(simulateCmd)
	rootCmd.AddCommand(policiesCmd)
	rootCmd.AddCommand(versionCmd)
}

func runStatus(cmd *cobra.Command, args []string) error {
	paths := infra.DetectPaths()
	store := infra.NewFileStatusStore(paths.StatusPath)

	snapshot, err := store.Load()
	if err != nil {
		return fmt.Errorf("failed to read status: %w", err)
	}

	running := snapshot != nil &&
		snapshot.Phase != domain.PhaseTerminated &&
		infra.NewProcessManager().IsRunning(snapshot.PID)

	out := cmd.OutOrStdout()
	if jsonOutput {
		return writeStatusJSON(out, snapshot, running)
	}

	fmt.Fprintln(out, "\n=== screenguard Status ===")
	if snapshot == nil {
		fmt.Fprintln(out, "Status: NOT RUNNING")
		fmt.Fprintln(out, "\nRun 'screenguard run' to enable protection.")
		return nil
	}

	switch {
	case !running:
		fmt.Fprintln(out, "Status: NOT RUNNING (last state below)")
	case snapshot.Degraded:
		fmt.Fprintln(out, "Status: DEGRADED (capture status unavailable)")
	default:
		fmt.Fprintln(out, "Status: RUNNING")
	}

	if snapshot.App != "" {
		fmt.Fprintf(out, "App: %s\n", snapshot.App)
	}
	fmt.Fprintf(out, "Policy: %s\n", snapshot.Policy)
	fmt.Fprintf(out, "Phase: %s\n", snapshot.Phase)
	fmt.Fprintf(out, "Capture: %s\n", snapshot.Capture)
	fmt.Fprintf(out, "Screenshot blocking: %s\n", onOff(snapshot.State.ScreenshotBlockEnabled))
	fmt.Fprintf(out, "Blur overlay: %s\n", onOff(snapshot.State.BlurEnabled))
	if snapshot.UpdatedAt > 0 {
		updated := time.Unix(snapshot.UpdatedAt, 0)
		fmt.Fprintf(out, "Updated: %s ago\n", time.Since(updated).Round(time.Second))
	}
	fmt.Fprintln(out, "==========================")
	return nil
}

func runJournal(cmd *cobra.Command, args []string) error {
	paths := infra.DetectPaths()
	out := cmd.OutOrStdout()

	if !infra.NewFileKeyProvider(paths.DataDir).KeyExists() {
		fmt.Fprintln(out, "No journal yet.")
		return nil
	}

	journal, err := infra.OpenJournal(paths.DataDir)
	if err != nil {
		return fmt.Errorf("failed to open journal: %w", err)
	}
	defer journal.Close()

	transitions, err := journal.Recent(journalLimit)
	if err != nil {
		return fmt.Errorf("failed to read journal: %w", err)
	}
	printTransitions(out, transitions)
	return nil
}

func runPolicies(cmd *cobra.Command, args []string) error {
	out := cmd.OutOrStdout()
	fmt.Fprintln(out, "\n=== Protection Policies ===")
	for _, p := range policy.NewRegistry().GetAll() {
		marker := ""
		if p.ID() == policy.DefaultPolicyID {
			marker = " (default)"
		}
		fmt.Fprintf(out, "\n[%s] %s%s\n", p.ID(), p.Name(), marker)
		fmt.Fprintf(out, "  %s\n", p.Description())
	}
	fmt.Fprintln(out, "\n===========================")
	return nil
}

func runVersion(cmd *cobra.Command, args []string) {
	out := cmd.OutOrStdout()
	if jsonOutput {
		fmt.Fprintf(out, `{"version":"%s","commit":"%s","build_time":"%s"}`+"\n",
			Version, Commit, BuildTime)
	} else {
		fmt.Fprintf(out, "screenguard %s (commit: %s, built: %s)\n",
			Version, Commit, BuildTime)
	}
}
