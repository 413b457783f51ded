package main

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"
	"prodfetch/pkg/auth"
	"prodfetch/pkg/config"
	"prodfetch/pkg/ui"
)

func newAuthCmd(root *rootFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "auth",
		Short: "Manage endpoint passwords in the system keychain",
		Long: `Store product API passwords in the system keychain so they do not
have to live in .env files. A password set in the environment or the
config file always takes precedence over the keychain.`,
	}

	cmd.AddCommand(newAuthSetCmd(root))
	cmd.AddCommand(newAuthDeleteCmd(root))
	return cmd
}

func newAuthSetCmd(root *rootFlags) *cobra.Command {
	var username string

	cmd := &cobra.Command{
		Use:   "set <endpoint>",
		Short: "Store the password for an endpoint (primary or fallback)",
		Example: `  prodfetch auth set primary
  prodfetch auth set fallback --username api-user`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			user, err := endpointUser(root, args[0], username)
			if err != nil {
				return err
			}

			password, err := promptPassword(fmt.Sprintf("Password for %s@%s: ", user, args[0]))
			if err != nil {
				return err
			}

			if err := auth.NewKeyringStore().Store(args[0], user, password); err != nil {
				ui.PrintError(cmd.ErrOrStderr(), "Failed to store password", err)
				return err
			}
			ui.PrintSuccess(cmd.OutOrStdout(), fmt.Sprintf("Password stored for %s@%s", user, args[0]))
			return nil
		},
	}

	cmd.Flags().StringVarP(&username, "username", "u", "", "endpoint username (defaults to the configured one)")
	return cmd
}

func newAuthDeleteCmd(root *rootFlags) *cobra.Command {
	var username string

	cmd := &cobra.Command{
		Use:   "delete <endpoint>",
		Short: "Remove the stored password for an endpoint",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			user, err := endpointUser(root, args[0], username)
			if err != nil {
				return err
			}

			if err := auth.NewKeyringStore().Delete(args[0], user); err != nil {
				ui.PrintError(cmd.ErrOrStderr(), "Failed to delete password", err)
				return err
			}
			ui.PrintSuccess(cmd.OutOrStdout(), fmt.Sprintf("Password removed for %s@%s", user, args[0]))
			return nil
		},
	}

	cmd.Flags().StringVarP(&username, "username", "u", "", "endpoint username (defaults to the configured one)")
	return cmd
}

// endpointUser returns the explicit username or the one configured for the endpoint
func endpointUser(root *rootFlags, endpoint, explicit string) (string, error) {
	if explicit != "" {
		return explicit, nil
	}

	cfg := config.DefaultConfig()
	if err := cfg.LoadFromFile(root.configFile); err != nil {
		return "", err
	}
	if err := cfg.LoadFromEnv(); err != nil {
		return "", err
	}

	var ep config.EndpointConfig
	switch endpoint {
	case cfg.API.Primary.Name:
		ep = cfg.API.Primary
	case cfg.API.Fallback.Name:
		ep = cfg.API.Fallback
	default:
		return "", fmt.Errorf("unknown endpoint %q (expected %q or %q)", endpoint, cfg.API.Primary.Name, cfg.API.Fallback.Name)
	}

	if ep.Username == "" {
		return "", errors.New("no username configured for endpoint; pass --username")
	}
	return ep.Username, nil
}

// promptPassword reads a password without echo when stdin is a terminal
func promptPassword(prompt string) (string, error) {
	fmt.Fprint(os.Stderr, prompt)

	fd := int(os.Stdin.Fd())
	if term.IsTerminal(fd) {
		data, err := term.ReadPassword(fd)
		fmt.Fprintln(os.Stderr)
		if err != nil {
			return "", fmt.Errorf("failed to read password: %w", err)
		}
		return strings.TrimSpace(string(data)), nil
	}

	line, err := bufio.NewReader(os.Stdin).ReadString('\n')
	if err != nil && line == "" {
		return "", fmt.Errorf("failed to read password: %w", err)
	}
	return strings.TrimSpace(line), nil
}
