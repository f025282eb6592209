package commands

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/urfave/cli/v3"

	"github.com/florianilch/lodestone/internal/launcher"
	"github.com/florianilch/lodestone/internal/settings"
)

func configCommand() *cli.Command {
	return &cli.Command{
		Name:  "config",
		Usage: "inspect and edit the launcher config documents",
		Commands: []*cli.Command{
			{
				Name:   "show",
				Usage:  "print the config and plugin config",
				Action: withLauncher(configShowAction),
			},
			{
				Name:      "set-launch-command",
				Usage:     "set the launch command of a game (rs3|osrs|runelite|hdos); empty resets it",
				ArgsUsage: "<game> <command>",
				Action:    withLauncher(setLaunchCommandAction),
			},
			{
				Name:      "select-account",
				Usage:     "set the preferred game account of a user",
				ArgsUsage: "<user-id> <account-id>",
				Action:    withLauncher(selectAccountAction),
			},
			{
				Name:      "set-plugin",
				Usage:     "set a plugin config value given as JSON",
				ArgsUsage: "<key> <json-value>",
				Action:    withLauncher(setPluginAction),
			},
			{
				Name:      "unset-plugin",
				Usage:     "remove a plugin config value",
				ArgsUsage: "<key>",
				Action:    withLauncher(unsetPluginAction),
			},
		},
	}
}

// args returns exactly n positional arguments.
func args(cmd *cli.Command, n int) ([]string, error) {
	if cmd.Args().Len() != n {
		return nil, fmt.Errorf("%s: expected %s", cmd.Name, cmd.ArgsUsage)
	}
	return cmd.Args().Slice(), nil
}

func configShowAction(_ context.Context, cmd *cli.Command, svc *launcher.Service) error {
	settingsStore := svc.State().Settings
	out := map[string]any{
		"config":        settingsStore.Config(),
		"plugin_config": settingsStore.PluginConfig(),
	}

	enc := json.NewEncoder(cmd.Root().Writer)
	enc.SetIndent("", "  ")
	return enc.Encode(out)
}

func setLaunchCommandAction(ctx context.Context, cmd *cli.Command, svc *launcher.Service) error {
	a, err := args(cmd, 2)
	if err != nil {
		return err
	}
	if err := svc.State().Settings.SetLaunchCommand(settings.Game(a[0]), a[1]); err != nil {
		return err
	}
	if err := awaitSave(svc.SaveConfig(ctx, false)); err != nil {
		return err
	}

	fmt.Fprintf(cmd.Root().Writer, "launch command of %s updated\n", a[0])
	return nil
}

func selectAccountAction(ctx context.Context, cmd *cli.Command, svc *launcher.Service) error {
	a, err := args(cmd, 2)
	if err != nil {
		return err
	}
	if err := svc.SelectAccount(a[0], a[1]); err != nil {
		return err
	}
	if err := awaitSave(svc.SaveConfig(ctx, false)); err != nil {
		return err
	}

	fmt.Fprintf(cmd.Root().Writer, "account %s selected for %s\n", a[1], a[0])
	return nil
}

func setPluginAction(ctx context.Context, cmd *cli.Command, svc *launcher.Service) error {
	a, err := args(cmd, 2)
	if err != nil {
		return err
	}

	var value any
	if err := json.Unmarshal([]byte(a[1]), &value); err != nil {
		return fmt.Errorf("value of %s is not valid JSON: %w", a[0], err)
	}
	svc.State().Settings.SetPluginValue(a[0], value)
	if err := awaitSave(svc.SavePluginConfig(ctx, false)); err != nil {
		return err
	}

	fmt.Fprintf(cmd.Root().Writer, "plugin value %s set\n", a[0])
	return nil
}

func unsetPluginAction(ctx context.Context, cmd *cli.Command, svc *launcher.Service) error {
	a, err := args(cmd, 1)
	if err != nil {
		return err
	}
	svc.State().Settings.DeletePluginValue(a[0])
	if err := awaitSave(svc.SavePluginConfig(ctx, false)); err != nil {
		return err
	}

	fmt.Fprintf(cmd.Root().Writer, "plugin value %s removed\n", a[0])
	return nil
}
