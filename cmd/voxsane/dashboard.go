package main

import (
	"os"

	"github.com/spf13/cobra"

	"voxsane-fleet/internal/config"
	"voxsane-fleet/internal/dashboard"
	"voxsane-fleet/internal/logging"
)

var (
	dashOut     string
	dashCluster string
)

var dashboardCmd = &cobra.Command{
	Use:   "dashboard",
	Short: "Render Grafana dashboards",
	Long:  "dashboard renders the Grafana dashboard JSON for the GreptimeDB tables. GREPTIMEDB_DATASOURCE_UID must be set.",
	RunE: func(cmd *cobra.Command, args []string) error {
		cluster := dashCluster
		if cluster == "" {
			cluster = os.Getenv("CLUSTER_ID")
		}
		if cluster == "" {
			cluster = config.DefaultClusterID
		}
		if err := dashboard.Render(dashOut, cluster); err != nil {
			return err
		}
		logging.FromContext(cmd.Context()).Info("dashboards rendered", "dir", dashOut, "cluster_id", cluster)
		return nil
	},
}

func init() {
	dashboardCmd.Flags().StringVar(&dashOut, "out", "build", "Output directory")
	dashboardCmd.Flags().StringVar(&dashCluster, "cluster", "", "Cluster ID to filter on (default $CLUSTER_ID)")
}
