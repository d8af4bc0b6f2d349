package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/dataops-ch/emrctl/cluster"
	"github.com/dataops-ch/emrctl/log"
)

var statusCmd = &cobra.Command{
	Use:   "status [NAME]",
	Short: "Shows the state and addresses of an alive cluster",
	Args:  cobra.MaximumNArgs(1),

	RunE: func(cmd *cobra.Command, args []string) error {
		name, err := clusterName(cmd, args)
		if err != nil {
			return err
		}

		api, err := newAPI(cmd)
		if err != nil {
			return err
		}
		controller := cluster.NewController(api, log.With("component", "cluster"))

		id, err := cluster.FindByName(cmd.Context(), api, name)
		if err != nil {
			return err
		}
		if id == "" {
			return report(Result{Msg: fmt.Sprintf("no alive cluster named '%s'", name)})
		}

		metadata, err := controller.Describe(cmd.Context(), id)
		if err != nil {
			return err
		}
		return report(Result{Cluster: metadata})
	},
}

func init() {
	statusCmd.Flags().StringP("file", "f", "cluster.yml", "cluster file naming the cluster")
	statusCmd.Flags().StringArrayP("param", "P", nil, "cluster file template parameters (key=value)")
}
