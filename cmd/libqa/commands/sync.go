// ABOUTME: Sync commands mirroring the vector store through Charm cloud
// ABOUTME: Provides status, push, pull and delete of the saved store artifacts
package commands

import (
	"errors"
	"fmt"
	"sort"

	"github.com/harper/libraryqa/internal/charm"
	"github.com/spf13/cobra"
)

// NewSyncCmd creates the sync command group
func NewSyncCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sync",
		Short: "Mirror the vector store through Charm cloud",
		Long: `Mirror the local vector store through Charm cloud.

The store lives in local files (chunks.json and embeddings.npy). push
copies the saved files to your Charm account, pull replaces the local
files with the mirrored copy after verifying checksums. Devices linked
to the same Charm account share one mirror.`,
	}

	cmd.AddCommand(newSyncStatusCmd())
	cmd.AddCommand(newSyncPushCmd())
	cmd.AddCommand(newSyncPullCmd())
	cmd.AddCommand(newSyncDeleteCmd())

	return cmd
}

func newSyncStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show Charm connection and mirror info",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			out := cmd.OutOrStdout()
			client, err := a.Mirror()
			if err != nil {
				return fmt.Errorf("failed to connect to Charm: %w", err)
			}

			id, err := client.ID()
			if err != nil {
				fmt.Fprintln(out, "Status: Not connected")
				return nil
			}
			fmt.Fprintln(out, "Status: Connected")
			fmt.Fprintf(out, "User ID: %s\n", id)
			fmt.Fprintf(out, "Host: %s\n", a.Config.CharmHost)

			keys, err := client.ListKeys(charm.SnapshotPrefix)
			if err != nil {
				return fmt.Errorf("listing mirror keys: %w", err)
			}
			fmt.Fprintf(out, "Mirrored artifacts: %d\n", len(keys))
			return nil
		},
	}
}

func newSyncPushCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "push",
		Short: "Upload the saved vector store to Charm cloud",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			client, err := a.Mirror()
			if err != nil {
				return fmt.Errorf("failed to connect to Charm: %w", err)
			}

			manifest, err := charm.PushSnapshot(client, a.Store.Dir())
			if err != nil {
				return fmt.Errorf("push failed: %w", err)
			}
			if err := client.Sync(); err != nil {
				return fmt.Errorf("sync failed: %w", err)
			}

			if jsonOutput() {
				return printJSON(cmd.OutOrStdout(), manifest)
			}
			printManifest(cmd, "Pushed", manifest)
			return nil
		},
	}
}

func newSyncPullCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "pull",
		Short: "Replace the local vector store with the mirrored copy",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			client, err := a.Mirror()
			if err != nil {
				return fmt.Errorf("failed to connect to Charm: %w", err)
			}
			if err := client.Sync(); err != nil {
				return fmt.Errorf("sync failed: %w", err)
			}

			manifest, err := charm.PullSnapshot(client, a.Store.Dir())
			if errors.Is(err, charm.ErrNoSnapshot) {
				fmt.Fprintln(cmd.OutOrStdout(), "Nothing to pull: run 'libqa sync push' on another device first")
				return nil
			}
			if err != nil {
				return fmt.Errorf("pull failed: %w", err)
			}

			if err := a.Store.Load(); err != nil {
				return fmt.Errorf("reloading vector store: %w", err)
			}
			if err := a.AnswerCache.Clear(); err != nil {
				a.Logger.Warn("failed to clear answer cache", "err", err)
			}

			if jsonOutput() {
				return printJSON(cmd.OutOrStdout(), manifest)
			}
			printManifest(cmd, "Pulled", manifest)
			fmt.Fprintf(cmd.OutOrStdout(), "Loaded %d chunk(s)\n", a.Store.Len())
			return nil
		},
	}
}

func newSyncDeleteCmd() *cobra.Command {
	var confirm bool

	cmd := &cobra.Command{
		Use:   "delete",
		Short: "Remove the mirrored snapshot from Charm cloud",
		Long: `Remove the mirrored snapshot from Charm cloud.

The local vector store is not touched. Other devices will have nothing
to pull until the next push.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			if !confirm {
				fmt.Fprintln(out, "This removes the mirrored snapshot for every linked device.")
				fmt.Fprintln(out, "Run with --confirm to proceed")
				return nil
			}

			a, err := openApp(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			client, err := a.Mirror()
			if err != nil {
				return fmt.Errorf("failed to connect to Charm: %w", err)
			}
			if err := charm.DeleteSnapshot(client); err != nil {
				return fmt.Errorf("delete failed: %w", err)
			}
			fmt.Fprintln(out, "Mirrored snapshot deleted")
			return nil
		},
	}

	cmd.Flags().BoolVar(&confirm, "confirm", false, "Confirm deletion")
	return cmd
}

func printManifest(cmd *cobra.Command, verb string, m *charm.Manifest) {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "%s snapshot from %s\n", verb, m.PushedAt.Format("2006-01-02 15:04:05"))
	names := make([]string, 0, len(m.Sizes))
	for name := range m.Sizes {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		fmt.Fprintf(out, "  %s  %d bytes  %s\n", name, m.Sizes[name], truncate(m.Checksums[name], 15))
	}
}
