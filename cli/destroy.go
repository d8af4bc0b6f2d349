package main

import (
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/dataops-ch/emrctl/flags"
)

var destroyCmd = &cobra.Command{
	Use:   "destroy [NAME]",
	Short: "Terminates a cluster and waits until it is gone",
	Args:  cobra.MaximumNArgs(1),

	RunE: func(cmd *cobra.Command, args []string) error {
		name, err := clusterName(cmd, args)
		if err != nil {
			return err
		}

		controller, err := newController(cmd)
		if err != nil {
			return err
		}

		return destroyCluster(cmd, controller, name, viper.GetDuration(flags.Timeout))
	},
}

func init() {
	destroyCmd.Flags().StringP("file", "f", "cluster.yml", "cluster file naming the cluster")
	destroyCmd.Flags().StringArrayP("param", "P", nil, "cluster file template parameters (key=value)")
}

// clusterName takes the name from the argument when given, otherwise from
// the cluster file.
func clusterName(cmd *cobra.Command, args []string) (string, error) {
	if len(args) > 0 {
		return args[0], nil
	}
	spec, err := loadSpec(cmd)
	if err != nil {
		return "", err
	}
	return spec.Name, nil
}
