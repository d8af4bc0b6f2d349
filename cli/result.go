package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/samber/lo"
	"github.com/spf13/viper"

	"github.com/dataops-ch/emrctl/cluster"
	"github.com/dataops-ch/emrctl/flags"
)

// Result is the structured outcome of an invocation. There is no partial
// success: an operation either fully succeeds with a changed/unchanged
// flag, or fails with a diagnostic message.
type Result struct {
	Changed bool              `json:"changed"`
	Failed  bool              `json:"failed"`
	Msg     string            `json:"msg,omitempty"`
	Trace   string            `json:"trace,omitempty"`
	Cluster *cluster.Metadata `json:"cluster,omitempty"`
}

func report(result Result) error {
	switch format := viper.GetString(flags.Output); format {
	case "json":
		encoder := json.NewEncoder(os.Stdout)
		encoder.SetIndent("", "  ")
		return encoder.Encode(result)

	case "text":
		if result.Failed {
			fmt.Println(color.HiRedString("failed: %s", result.Msg))
			if result.Trace != "" {
				fmt.Println(result.Trace)
			}
			return nil
		}
		fmt.Printf("changed: %t\n", result.Changed)
		if result.Msg != "" {
			fmt.Println(result.Msg)
		}
		if result.Cluster != nil {
			fmt.Printf("cluster_id: %s\n", result.Cluster.ClusterID)
			fmt.Printf("state: %s\n", result.Cluster.State)
			fmt.Printf("master_public_dns: %s\n", result.Cluster.MasterPublicDNS)
			fmt.Printf("master_private_ip: %s\n", result.Cluster.MasterPrivateIP)
		}
		return nil

	default:
		return fmt.Errorf("unknown output format '%s'", format)
	}
}

func reportFailure(err error, trace string) {
	lo.Must0(report(Result{Failed: true, Msg: err.Error(), Trace: trace}))
}
