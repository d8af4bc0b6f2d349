package cluster

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsemr "github.com/aws/aws-sdk-go-v2/service/emr"

	"github.com/dataops-ch/emrctl/emr"
)

// FindByName returns the id of the first non-terminal cluster whose name
// matches exactly, or "" when none does. Duplicate alive clusters with the
// same name are not disambiguated; first match wins.
func FindByName(ctx context.Context, api emr.API, name string) (string, error) {
	var marker *string
	for {
		out, err := api.ListClusters(ctx, &awsemr.ListClustersInput{
			ClusterStates: emr.AliveStates,
			Marker:        marker,
		})
		if err != nil {
			return "", fmt.Errorf("failed to list clusters: %w", err)
		}

		for _, summary := range out.Clusters {
			if aws.ToString(summary.Name) == name {
				return aws.ToString(summary.Id), nil
			}
		}

		if out.Marker == nil {
			return "", nil
		}
		marker = out.Marker
	}
}
