package main

import (
	"fmt"

	"github.com/samber/lo"
	"github.com/spf13/cobra"

	"github.com/dataops-ch/emrctl/log"
	"github.com/dataops-ch/emrctl/users"
)

var usersCmd = &cobra.Command{
	Use:   "users",
	Short: "Manages SSH login accounts on cluster hosts",
}

var usersSyncCmd = &cobra.Command{
	Use:   "sync --host HOST",
	Short: "Reconciles the accounts on a host against a user file",

	RunE: func(cmd *cobra.Command, args []string) error {
		host := lo.Must(cmd.Flags().GetString("host"))
		if lo.Must(cmd.Flags().GetBool("resolve")) {
			resolved, err := users.ResolveHost(host)
			if err != nil {
				return err
			}
			host = resolved
		}

		list, err := users.ReadFile(lo.Must(cmd.Flags().GetString("user-file")))
		if err != nil {
			return fmt.Errorf("failed to read user file: %w", err)
		}

		client, err := users.Dial(cmd.Context(), users.Config{
			Host:           host,
			Port:           lo.Must(cmd.Flags().GetInt("ssh-port")),
			Username:       lo.Must(cmd.Flags().GetString("ssh-username")),
			PrivateKeyPath: lo.Must(cmd.Flags().GetString("ssh-key")),
		}, log.With("component", "users"))
		if err != nil {
			return err
		}
		defer client.Close()

		changed, err := client.Sync(list)
		if err != nil {
			return err
		}
		return report(Result{Changed: changed})
	},
}

func init() {
	usersCmd.AddCommand(usersSyncCmd)

	usersSyncCmd.Flags().String("host", "", "host to manage accounts on")
	usersSyncCmd.Flags().Bool("resolve", false, "resolve the host through DNS before connecting")
	usersSyncCmd.Flags().String("user-file", "users.yml", "user list to reconcile")
	usersSyncCmd.Flags().String("ssh-username", "hadoop", "login account used to administer the host")
	usersSyncCmd.Flags().Int("ssh-port", 22, "SSH port of the host")
	usersSyncCmd.Flags().String("ssh-key", "", "private key used to connect")
	lo.Must0(usersSyncCmd.MarkFlagRequired("host"))
	lo.Must0(usersSyncCmd.MarkFlagRequired("ssh-key"))
}
