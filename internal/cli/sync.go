package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/dvloznov/kids-bank/internal/app"
	"github.com/dvloznov/kids-bank/internal/cloudsync"
	"github.com/dvloznov/kids-bank/internal/domain"
	"github.com/dvloznov/kids-bank/internal/pubsub"
)

// SyncStatus is the output of "sync status".
type SyncStatus struct {
	Enabled    bool             `json:"enabled"`
	Configured bool             `json:"configured"`
	Mode       domain.CloudMode `json:"mode"`
	GUID       string           `json:"guid,omitempty"`
	ETag       string           `json:"etag,omitempty"`
	Snapshot   bool             `json:"snapshot"`
}

// NewSyncCommand creates the sync command group.
func NewSyncCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sync",
		Short: "Control end-to-end encrypted cloud sync",
	}

	cmd.AddCommand(&cobra.Command{
		Use:          "run",
		Short:        "Run one sync cycle now",
		Args:         cobra.NoArgs,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, rootOpts, func(ctx context.Context, a *app.App) error {
				if !a.State.Descriptor().Configured() {
					return errors.New("cloud sync is not configured: run 'sync keys' and 'sync enable' or pair with another device")
				}

				// Toasts are the user-facing outcome of a sync.
				sub := a.Bus.Subscribe(pubsub.TopicToast, func(e pubsub.Event) {
					fmt.Fprintf(cmd.ErrOrStderr(), "[%s] %s\n", e.Toast.Type, e.Toast.Message)
				})
				defer sub.Unsubscribe()

				if a.Syncer.Sync(ctx) == cloudsync.OutcomeFailed {
					return app.ErrSyncFailed
				}
				status := a.Syncer.Status()
				return formatter(cmd, rootOpts).Message(map[string]pubsub.SyncStatus{"status": status}, "Sync status: %s", status)
			})
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:          "status",
		Short:        "Show the sync configuration of this device",
		Args:         cobra.NoArgs,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, rootOpts, func(ctx context.Context, a *app.App) error {
				desc := a.State.Descriptor()
				status := SyncStatus{
					Enabled:    desc.Enabled,
					Configured: desc.Configured(),
					Mode:       a.State.CloudConfig().Mode(),
					GUID:       desc.GUID,
					ETag:       desc.ETag,
					Snapshot:   a.State.LastSynced() != nil,
				}
				mode := string(status.Mode)
				if mode == "" {
					mode = "none"
				}
				rows := [][]string{
					{"enabled", fmt.Sprint(status.Enabled)},
					{"configured", fmt.Sprint(status.Configured)},
					{"transport", mode},
					{"sync id", status.GUID},
					{"etag", status.ETag},
					{"snapshot", fmt.Sprint(status.Snapshot)},
				}
				return formatter(cmd, rootOpts).Print(status, []string{"Setting", "Value"}, rows)
			})
		},
	})

	cmd.AddCommand(newSyncEnableCommand(rootOpts, "enable", true))
	cmd.AddCommand(newSyncEnableCommand(rootOpts, "disable", false))

	cmd.AddCommand(&cobra.Command{
		Use:          "keys",
		Short:        "Generate a new sync id and key",
		Long:         "Generate a new sync id and encryption key. Devices paired with the old key stop syncing with this one until they are paired again.",
		Args:         cobra.NoArgs,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, rootOpts, func(ctx context.Context, a *app.App) error {
				guid, err := a.Syncer.GenerateSyncKeys(ctx)
				if err != nil {
					return err
				}
				return formatter(cmd, rootOpts).Message(map[string]string{"guid": guid}, "Generated sync id %s", guid)
			})
		},
	})

	cmd.AddCommand(newPairingCommand(rootOpts))
	cmd.AddCommand(newPairCommand(rootOpts))

	return cmd
}

func newSyncEnableCommand(rootOpts *RootOptions, use string, enabled bool) *cobra.Command {
	return &cobra.Command{
		Use:          use,
		Short:        use + " cloud sync on this device",
		Args:         cobra.NoArgs,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, rootOpts, func(ctx context.Context, a *app.App) error {
				if err := a.Syncer.SetEnabled(ctx, enabled); err != nil {
					return err
				}
				return formatter(cmd, rootOpts).Message(map[string]bool{"enabled": enabled}, "Cloud sync %sd", use)
			})
		},
	}
}

func newPairingCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:          "pairing",
		Short:        "Print the pairing payload for another device",
		Long:         "Print the pairing payload. It contains the storage credentials and the encryption key: treat it as a secret.",
		Args:         cobra.NoArgs,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, rootOpts, func(ctx context.Context, a *app.App) error {
				p, err := a.Syncer.PairingPayload()
				if err != nil {
					return err
				}
				return formatter(cmd, rootOpts).JSON(p)
			})
		},
	}
}

func newPairCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:          "pair <file>",
		Short:        "Join another device using its pairing payload",
		Long:         "Join another device using the payload printed by its 'sync pairing' command. Use - to read standard input. Local data is replaced by the remote data when it exists.",
		Args:         cobra.ExactArgs(1),
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := readInput(cmd, args[0])
			if err != nil {
				return err
			}
			var p domain.PairingPayload
			if err := json.Unmarshal(data, &p); err != nil {
				return fmt.Errorf("parse pairing payload: %w", err)
			}

			return withApp(cmd, rootOpts, func(ctx context.Context, a *app.App) error {
				found, err := a.Syncer.ImportPairing(ctx, p)
				if err != nil {
					return err
				}
				if err := a.Syncer.SetEnabled(ctx, true); err != nil {
					return err
				}
				msg := "Paired. No remote data yet; the next sync uploads this device's data."
				if found {
					msg = "Paired. Remote data imported."
				}
				return formatter(cmd, rootOpts).Message(map[string]bool{"found": found}, "%s", msg)
			})
		},
	}
}

// readInput reads a file, or standard input for "-".
func readInput(cmd *cobra.Command, path string) ([]byte, error) {
	if path == "-" {
		data, err := io.ReadAll(cmd.InOrStdin())
		if err != nil {
			return nil, fmt.Errorf("read stdin: %w", err)
		}
		return data, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	return data, nil
}
