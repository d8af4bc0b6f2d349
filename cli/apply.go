package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/samber/lo"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/dataops-ch/emrctl/cli/ui"
	"github.com/dataops-ch/emrctl/cluster"
	"github.com/dataops-ch/emrctl/clusterfile"
	"github.com/dataops-ch/emrctl/emr"
	"github.com/dataops-ch/emrctl/flags"
	"github.com/dataops-ch/emrctl/log"
)

var applyCmd = &cobra.Command{
	Use:   "apply -f CLUSTERFILE",
	Short: "Provisions or terminates a cluster to match its desired state",

	RunE: func(cmd *cobra.Command, args []string) error {
		spec, err := loadSpec(cmd)
		if err != nil {
			return err
		}

		controller, err := newController(cmd)
		if err != nil {
			return err
		}

		timeout := viper.GetDuration(flags.Timeout)

		switch state := lo.Must(cmd.Flags().GetString("state")); state {
		case "present":
			spinner := newSpinner(fmt.Sprintf("Provisioning cluster '%s'", spec.Name))
			result, err := controller.Up(cmd.Context(), spec, timeout)
			if err != nil {
				spinner.Fail()
				return err
			}
			spinner.Success(fmt.Sprintf("Cluster '%s' is ready", spec.Name))
			return report(Result{Changed: result.Changed, Cluster: result.Cluster})

		case "absent":
			return destroyCluster(cmd, controller, spec.Name, timeout)

		default:
			return fmt.Errorf("unknown desired state '%s' (want present or absent)", state)
		}
	},
}

func init() {
	applyCmd.Flags().StringP("file", "f", "cluster.yml", "cluster file to apply")
	applyCmd.Flags().String("state", "present", "desired state of the cluster (present, absent)")
	applyCmd.Flags().StringArrayP("param", "P", nil, "cluster file template parameters (key=value)")
}

func destroyCluster(cmd *cobra.Command, controller *cluster.Controller, name string, timeout time.Duration) error {
	spinner := newSpinner(fmt.Sprintf("Terminating cluster '%s'", name))
	changed, err := controller.Down(cmd.Context(), name, timeout)
	if err != nil {
		spinner.Fail()
		return err
	}
	if changed {
		spinner.Success(fmt.Sprintf("Cluster '%s' is terminated", name))
	} else {
		spinner.Success(fmt.Sprintf("No alive cluster named '%s'", name))
	}
	return report(Result{Changed: changed})
}

func loadSpec(cmd *cobra.Command) (*cluster.Spec, error) {
	file := lo.Must(cmd.Flags().GetString("file"))

	spec, err := clusterfile.Read(file, clusterfile.ReadOptions{
		Params: lo.SliceToMap(lo.Must(cmd.Flags().GetStringArray("param")), func(item string) (key, value string) { key, value, _ = strings.Cut(item, "="); return }),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to read cluster file '%s': %w", file, err)
	}

	// The keypair may come from the environment instead of the file.
	if spec.KeyName == "" {
		spec.KeyName = viper.GetString(flags.KeyName)
	}

	return spec, nil
}

func newAPI(cmd *cobra.Command) (emr.API, error) {
	return emr.NewClient(cmd.Context(), viper.GetString(flags.Region))
}

func newController(cmd *cobra.Command) (*cluster.Controller, error) {
	api, err := newAPI(cmd)
	if err != nil {
		return nil, err
	}
	return cluster.NewController(api, log.With("component", "cluster")), nil
}

// newSpinner returns a spinner in text mode and nil otherwise; a nil
// spinner is safe to use and shows nothing.
func newSpinner(msg string) *ui.Spinner {
	if viper.GetString(flags.Output) != "text" {
		return nil
	}
	return ui.NewSpinner(msg)
}
