package cli

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
)

var (
	cleanForce       bool
	cleanRuns        bool
	cleanLeaderboard bool
	cleanSubmissions bool
	cleanAll         bool
)

var cleanCmd = &cobra.Command{
	Use:   "clean",
	Short: "Clean up cached runs, the leaderboard snapshot, and submission output",
	Long: `Remove directories created by 'tbench analyze', 'tbench logs', and
'tbench prepare': downloaded run artifacts, the cached leaderboard clone,
and the prepared submission output.

By default, shows what would be deleted and asks for confirmation.
Use --force to skip confirmation.

Examples:
  tbench clean                # Interactive cleanup of downloaded runs
  tbench clean --leaderboard  # Clean only the leaderboard snapshot
  tbench clean --submissions  # Clean only prepared submission output
  tbench clean --all --force  # Clean everything without asking`,
	RunE: func(cmd *cobra.Command, args []string) error {
		// Default to downloaded runs if no specific flag is set
		if !cleanRuns && !cleanLeaderboard && !cleanSubmissions && !cleanAll {
			cleanRuns = true
		}

		if cleanAll {
			cleanRuns = true
			cleanLeaderboard = true
			cleanSubmissions = true
		}

		var toDelete []string
		addIfDir := func(path string) {
			if info, err := os.Stat(path); err == nil && info.IsDir() {
				toDelete = append(toDelete, path)
			}
		}

		if cleanRuns {
			addIfDir(filepath.Join(cfg.Cache.Dir, "runs"))
		}
		if cleanLeaderboard {
			addIfDir(filepath.Join(cfg.Cache.Dir, filepath.Base(cfg.Benchmark.LeaderboardRepo)))
		}
		if cleanSubmissions {
			addIfDir(cfg.Submission.OutputDir)
		}

		if len(toDelete) == 0 {
			fmt.Println("Nothing to clean.")
			return nil
		}

		fmt.Println("The following directories will be deleted:")
		fmt.Println()
		for _, dir := range toDelete {
			fmt.Printf("  %s\n", dir)
		}
		fmt.Println()

		if !cleanForce {
			fmt.Print("Delete these directories? [y/N] ")
			reader := bufio.NewReader(os.Stdin)
			response, err := reader.ReadString('\n')
			if err != nil {
				return fmt.Errorf("reading response: %w", err)
			}
			response = strings.TrimSpace(strings.ToLower(response))
			if response != "y" && response != "yes" {
				fmt.Println("Cancelled.")
				return nil
			}
		}

		deleted := 0
		for _, dir := range toDelete {
			if err := os.RemoveAll(dir); err != nil {
				fmt.Printf("  Failed to delete %s: %v\n", dir, err)
			} else {
				fmt.Printf("  Deleted %s\n", dir)
				deleted++
			}
		}

		fmt.Printf("\nCleaned up %d directories.\n", deleted)
		return nil
	},
}

func init() {
	cleanCmd.Flags().BoolVar(&cleanForce, "force", false, "skip confirmation prompts")
	cleanCmd.Flags().BoolVar(&cleanRuns, "runs", false, "clean downloaded run artifacts")
	cleanCmd.Flags().BoolVar(&cleanLeaderboard, "leaderboard", false, "clean the cached leaderboard snapshot")
	cleanCmd.Flags().BoolVar(&cleanSubmissions, "submissions", false, "clean prepared submission output")
	cleanCmd.Flags().BoolVar(&cleanAll, "all", false, "clean everything")
}
