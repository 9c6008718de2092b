// =============================================================================
// NaPTAN Import - Refresh Command
// =============================================================================
//
// This file defines the 'refresh' command, which deletes every configured
// registry document and downloads a fresh copy of each from the NaPTAN
// service. The locality document is not downloaded and is never deleted.
//
// COMMAND USAGE:
//   naptan-import refresh
//
// DOWNLOADS:
//   One POST per entry of naptan.documents (file name -> authority name).
//   A failed download aborts the refresh; documents already downloaded are
//   kept.
//
// =============================================================================

package cmd

import (
	"context"
	"fmt"
	"io"
	"sort"

	"github.com/ginjaninja78/naptan-xml-import/internal/fetch"
	"github.com/ginjaninja78/naptan-xml-import/pkg/utils"
	"github.com/spf13/cobra"
)

// refreshCmd represents the 'refresh' command.
var refreshCmd = &cobra.Command{
	Use:   "refresh",
	Short: "Delete and re-download the registry documents",
	Long: `The refresh command deletes every configured registry document and
downloads it from the NaPTAN service again. Local edits to those documents are
lost. The locality document and other files in the registry directory are kept.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runRefresh(cmd.Context(), cmd.OutOrStdout())
	},
}

func init() {
	rootCmd.AddCommand(refreshCmd)
}

// runRefresh deletes the configured documents and downloads each again.
func runRefresh(ctx context.Context, out io.Writer) error {
	fm := newFileManager()
	names := documentNames()
	if err := fm.Reset(names); err != nil {
		return err
	}
	fmt.Fprintln(out, "Deleted all registry documents")
	logger.Info("registry cleared", "dir", fm.RegistryDir, "documents", names)

	return downloadDocuments(ctx, out, fm, newClient(), names)
}

// documentNames returns the configured registry file names, sorted.
func documentNames() []string {
	names := make([]string, 0, len(cfg.NaPTAN.Documents))
	for name := range cfg.NaPTAN.Documents {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// downloadDocuments fetches each named document in turn.
//
// PARAMETERS:
//   - ctx: Cancels the current download.
//   - out: Receives one progress line per document.
//   - fm: Writes the downloaded bytes into the registry directory.
//   - client: The NaPTAN client.
//   - names: Registry file names; each must be in naptan.documents.
//
// RETURNS:
//   - The first download or write error.
func downloadDocuments(ctx context.Context, out io.Writer, fm *utils.FileManager, client *fetch.Client, names []string) error {
	for _, name := range names {
		authority, ok := cfg.NaPTAN.Documents[name]
		if !ok {
			return fmt.Errorf("no local authority configured for %s", name)
		}

		body, err := client.DownloadAuthority(ctx, authority)
		if err != nil {
			return fmt.Errorf("download %s: %w", name, err)
		}
		path, err := fm.WriteDocument(name, body)
		body.Close()
		if err != nil {
			return err
		}

		fmt.Fprintf(out, "Downloaded %s\n", name)
		logger.Info("registry document downloaded", "document", name, "authority", authority, "path", path)
	}
	return nil
}
