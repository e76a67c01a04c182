package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/OpenGG/spacetime-token/internal/tokens"
	"github.com/OpenGG/spacetime-token/internal/tokens/domain"
)

var currentMarker = color.New(color.FgGreen, color.Bold).SprintFunc()

// NewRootCommand constructs the root Cobra command for spacetime-token.
func NewRootCommand(mgr *tokens.Manager, prompter Prompter, stdout, stderr io.Writer) *cobra.Command {
	cmd := &cobra.Command{
		Use:           "spacetime-token",
		Short:         "Manage SpacetimeDB CLI tokens",
		Long:          "spacetime-token stores named SpacetimeDB tokens as profiles and switches the token used by the spacetime CLI.",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.SetOut(stdout)
	cmd.SetErr(stderr)

	cmd.AddCommand(newSetCommand(mgr, stdout))
	cmd.AddCommand(newSwitchCommand(mgr, prompter, stdout))
	cmd.AddCommand(newAdminCommand(mgr, stdout))
	cmd.AddCommand(newSaveCommand(mgr, stdout))
	cmd.AddCommand(newCreateCommand(mgr, stdout))
	cmd.AddCommand(newDeleteCommand(mgr, stdout))
	cmd.AddCommand(newListCommand(mgr, stdout))
	cmd.AddCommand(newCurrentCommand(mgr, stdout))
	cmd.AddCommand(newResetCommand(mgr, prompter, stdout))
	cmd.AddCommand(newSetupCommand(mgr, prompter, stdout))
	cmd.AddCommand(newPruneCommand(mgr, prompter, stdout))

	return cmd
}

func newSetCommand(mgr *tokens.Manager, stdout io.Writer) *cobra.Command {
	return &cobra.Command{
		Use:   "set <name> <token>",
		Short: "Store a token under a profile name and make it active",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			name, token := args[0], args[1]
			if err := mgr.Set(name, token); err != nil {
				return err
			}
			settings := mgr.Settings()
			fmt.Fprintf(stdout, "Profile '%s' saved/updated in %s.\n", name, settings.ProfilesFilename)
			fmt.Fprintf(stdout, "Profile '%s' also set as active token in %s.\n", name, settings.CLIConfigFilename)
			return nil
		},
	}
}

func newSwitchCommand(mgr *tokens.Manager, prompter Prompter, stdout io.Writer) *cobra.Command {
	return &cobra.Command{
		Use:   "switch [name]",
		Short: "Activate a stored profile",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			name := ""
			if len(args) > 0 {
				name = args[0]
			} else {
				names, err := mgr.ProfileNames()
				if err != nil {
					return err
				}
				if len(names) == 0 {
					return fmt.Errorf("%w: %s is empty, cannot switch", domain.ErrNoProfiles, mgr.ProfilesPath())
				}
				current := ""
				if status, err := mgr.Current(); err == nil && status.State == tokens.StateMatched {
					current = status.Profile
				}
				_, selected, err := prompter.Select("Select profile to switch to", reorderWithDefault(names, current), current)
				if err != nil {
					return err
				}
				name = selected
			}

			if err := mgr.Switch(name); err != nil {
				return err
			}
			settings := mgr.Settings()
			fmt.Fprintf(stdout, "Switched active token to profile '%s' (from %s) in %s.\n", name, settings.ProfilesFilename, settings.CLIConfigFilename)
			return nil
		},
	}
}

func newAdminCommand(mgr *tokens.Manager, stdout io.Writer) *cobra.Command {
	return &cobra.Command{
		Use:   "admin",
		Short: fmt.Sprintf("Activate the '%s' profile", tokens.AdminProfile),
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := mgr.Admin(); err != nil {
				if errors.Is(err, domain.ErrProfileNotFound) {
					return fmt.Errorf("%w; ensure a profile named '%s' exists with a valid token", err, tokens.AdminProfile)
				}
				return err
			}
			settings := mgr.Settings()
			fmt.Fprintf(stdout, "Switched active token to ADMIN profile '%s' (from %s) in %s.\n", tokens.AdminProfile, settings.ProfilesFilename, settings.CLIConfigFilename)
			return nil
		},
	}
}

func newSaveCommand(mgr *tokens.Manager, stdout io.Writer) *cobra.Command {
	return &cobra.Command{
		Use:   "save <name>",
		Short: "Save the CLI's active token as a new profile",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			name := args[0]
			if err := mgr.SaveActive(name); err != nil {
				return err
			}
			fmt.Fprintf(stdout, "Saved current active token as '%s' in %s.\n", name, mgr.Settings().ProfilesFilename)
			return nil
		},
	}
}

func newCreateCommand(mgr *tokens.Manager, stdout io.Writer) *cobra.Command {
	return &cobra.Command{
		Use:   "create <name>",
		Short: "Log in with a fresh identity and store its token",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			name := args[0]
			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}
			fmt.Fprintf(stdout, "Logging out, then follow the prompts from '%s login'.\n", tokens.CLICommand)
			if err := mgr.Create(ctx, name); err != nil {
				return err
			}
			fmt.Fprintf(stdout, "Successfully created and saved profile '%s' in %s.\n", name, mgr.Settings().ProfilesFilename)
			return nil
		},
	}
}

func newDeleteCommand(mgr *tokens.Manager, stdout io.Writer) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <name>",
		Short: "Remove a stored profile",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			name := args[0]
			if err := mgr.Delete(name); err != nil {
				return err
			}
			fmt.Fprintf(stdout, "Profile '%s' deleted from %s.\n", name, mgr.Settings().ProfilesFilename)
			return nil
		},
	}
}

func newListCommand(mgr *tokens.Manager, stdout io.Writer) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List stored profiles",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			entries, err := mgr.List()
			if err != nil {
				return err
			}
			filename := mgr.Settings().ProfilesFilename
			if len(entries) == 0 {
				fmt.Fprintf(stdout, "No profiles found in %s.\n", filename)
				return nil
			}
			fmt.Fprintf(stdout, "Available profiles in %s:\n", filename)
			for _, entry := range entries {
				if entry.Current {
					fmt.Fprintf(stdout, "- %s %s\n", entry.Name, currentMarker("(current)"))
				} else {
					fmt.Fprintf(stdout, "- %s\n", entry.Name)
				}
			}
			return nil
		},
	}
}

func newCurrentCommand(mgr *tokens.Manager, stdout io.Writer) *cobra.Command {
	return &cobra.Command{
		Use:   "current",
		Short: "Show the active profile and a masked token",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			status, err := mgr.Current()
			if err != nil {
				return err
			}
			settings := mgr.Settings()
			switch status.State {
			case tokens.StateNoConfig:
				fmt.Fprintf(stdout, "%s not found. No active token set.\n", settings.CLIConfigFilename)
			case tokens.StateNoToken:
				fmt.Fprintf(stdout, "No active token (key '%s') found in %s.\n", settings.CLITokenKey, settings.CLIConfigFilename)
			case tokens.StateWrongType:
				fmt.Fprintf(stdout, "Active token key '%s' in %s is not a string.\n", settings.CLITokenKey, settings.CLIConfigFilename)
			case tokens.StateUnknownToken:
				fmt.Fprintf(stdout, "Current active token is set, but not found under any profile name in %s.\n", settings.ProfilesFilename)
				fmt.Fprintf(stdout, "Active token: %s\n", status.MaskedToken)
			case tokens.StateMatched:
				fmt.Fprintf(stdout, "Current active profile: %s\n", currentMarker(status.Profile))
				fmt.Fprintf(stdout, "Active token: %s\n", status.MaskedToken)
			}
			return nil
		},
	}
}

func newResetCommand(mgr *tokens.Manager, prompter Prompter, stdout io.Writer) *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "reset",
		Short: "Delete every stored profile",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			filename := mgr.Settings().ProfilesFilename
			if !force {
				confirm, err := prompter.Confirm(fmt.Sprintf("Remove all profiles from %s", filename), false)
				if err != nil {
					return err
				}
				if !confirm {
					fmt.Fprintln(stdout, "Reset cancelled.")
					return nil
				}
			}
			if err := mgr.Reset(); err != nil {
				return err
			}
			fmt.Fprintf(stdout, "%s has been reset.\n", filename)
			return nil
		},
	}

	cmd.Flags().BoolVar(&force, "force", false, "Do not prompt for confirmation")

	return cmd
}

func newSetupCommand(mgr *tokens.Manager, prompter Prompter, stdout io.Writer) *cobra.Command {
	return &cobra.Command{
		Use:   "setup",
		Short: "Edit file names and the token key interactively",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			settings := mgr.Settings()
			fields := []struct {
				label string
				value *string
			}{
				{"Profiles filename", &settings.ProfilesFilename},
				{"SpacetimeDB CLI config directory (from home)", &settings.CLIConfigDirFromHome},
				{"SpacetimeDB CLI config filename", &settings.CLIConfigFilename},
				{"SpacetimeDB CLI token key", &settings.CLITokenKey},
			}

			fmt.Fprintln(stdout, "Current configuration (leave blank to keep current value):")
			for _, field := range fields {
				value, err := prompter.Prompt(field.label, *field.value)
				if err != nil {
					return err
				}
				if value = strings.TrimSpace(value); value != "" {
					*field.value = value
				}
			}

			if err := mgr.UpdateSettings(settings); err != nil {
				return err
			}
			fmt.Fprintf(stdout, "Configuration saved to %s\n", mgr.SettingsPath())
			return nil
		},
	}
}

func newPruneCommand(mgr *tokens.Manager, prompter Prompter, stdout io.Writer) *cobra.Command {
	var olderThanStr string
	var force bool

	cmd := &cobra.Command{
		Use:   "prune-backups",
		Short: "Remove outdated backups of the CLI config",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			var duration time.Duration
			var err error

			if olderThanStr != "" {
				duration, err = parseHumanDuration(olderThanStr)
				if err != nil {
					return err
				}
			} else {
				options := []string{"30d", "90d", "180d", "Cancel"}
				_, choice, err := prompter.Select("Prune backups older than", options, "30d")
				if err != nil {
					return err
				}
				if choice == "Cancel" {
					fmt.Fprintln(stdout, "Prune cancelled.")
					return nil
				}
				duration, err = parseHumanDuration(choice)
				if err != nil {
					return err
				}
			}

			if !force {
				confirm, err := prompter.Confirm(fmt.Sprintf("Delete backups older than %s", duration), false)
				if err != nil {
					return err
				}
				if !confirm {
					fmt.Fprintln(stdout, "Prune cancelled.")
					return nil
				}
			}

			count, err := mgr.PruneBackups(duration)
			if err != nil {
				return err
			}
			fmt.Fprintf(stdout, "Deleted %d backup(s) from %s.\n", count, mgr.BackupDir())
			return nil
		},
	}

	cmd.Flags().StringVar(&olderThanStr, "older-than", "", "Delete backups older than the specified duration (e.g. 30d)")
	cmd.Flags().BoolVar(&force, "force", false, "Do not prompt for confirmation")

	return cmd
}

func parseHumanDuration(value string) (time.Duration, error) {
	value = strings.TrimSpace(strings.ToLower(value))
	if value == "" {
		return 0, errors.New("duration cannot be empty")
	}
	if days, ok := strings.CutSuffix(value, "d"); ok {
		return parseDays(days)
	}
	if strings.HasSuffix(value, "h") || strings.HasSuffix(value, "m") || strings.HasSuffix(value, "s") {
		dur, err := time.ParseDuration(value)
		if err != nil {
			return 0, err
		}
		if dur < 0 {
			return 0, errors.New("duration cannot be negative")
		}
		return dur, nil
	}
	return 0, fmt.Errorf("unsupported duration format: %s", value)
}

func parseDays(value string) (time.Duration, error) {
	d, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("invalid day duration: %w", err)
	}
	if d < 0 {
		return 0, fmt.Errorf("invalid day duration: %d", d)
	}
	return time.Duration(d) * 24 * time.Hour, nil
}

// reorderWithDefault moves defaultValue to the front of items when present.
func reorderWithDefault(items []string, defaultValue string) []string {
	idx := -1
	for i, item := range items {
		if item == defaultValue {
			idx = i
			break
		}
	}
	if defaultValue == "" || idx <= 0 {
		return items
	}

	reordered := make([]string, 0, len(items))
	reordered = append(reordered, defaultValue)
	reordered = append(reordered, items[:idx]...)
	return append(reordered, items[idx+1:]...)
}
