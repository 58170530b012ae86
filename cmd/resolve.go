package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/gramrelay/gramrelay/fetcher"
	"github.com/gramrelay/gramrelay/resolver"
)

var resolveOutDir string

func init() {
	resolveCmd.Flags().StringVar(&resolveOutDir, "out", ".", "directory to copy retrieved files into")
	rootCmd.AddCommand(resolveCmd)
}

// resolveCmd runs a single resolution without Telegram or the database,
// useful for trying out a URL from the command line.
var resolveCmd = &cobra.Command{
	Use:   "resolve <url>",
	Short: "Fetches one Instagram URL and writes the media to a directory",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		log.SetLevel(log.InfoLevel)

		if err := os.MkdirAll(resolveOutDir, 0755); err != nil {
			return fmt.Errorf("creating output directory: %w", err)
		}

		contentResolver := resolver.NewResolver(fetcher.NewClient(), os.TempDir())

		outcome, err := contentResolver.Resolve(context.Background(), args[0], "cli", func(ws *resolver.Workspace) error {
			artifacts, err := ws.Artifacts()
			if err != nil {
				return err
			}
			for _, artifact := range artifacts {
				dest := filepath.Join(resolveOutDir, filepath.Base(artifact.Path))
				if err := copyFile(artifact.Path, dest); err != nil {
					return err
				}
				fmt.Printf("wrote %s (%d bytes)\n", dest, artifact.SizeBytes)
			}
			return nil
		})
		if err != nil {
			return err
		}

		if !outcome.Succeeded() {
			for _, diagnostic := range outcome.Diagnostics {
				fmt.Println(diagnostic)
			}
			return fmt.Errorf("could not retrieve %s (%s)", args[0], outcome.Failure)
		}
		fmt.Printf("retrieved %d files via the %s strategy\n", len(outcome.Artifacts), outcome.Strategy)
		return nil
	},
}

func copyFile(src string, dest string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()
	out, err := os.Create(dest)
	if err != nil {
		return err
	}
	defer out.Close()
	if _, err := io.Copy(out, in); err != nil {
		return err
	}
	return out.Close()
}
