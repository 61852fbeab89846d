package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/alfredjeanlab/orggraph/internal/client"
)

var healthCmd = &cobra.Command{
	Use:     "health",
	Short:   "Check the health of the orggraph service",
	GroupID: "system",
	Args:    cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		grpcAddr, _ := cmd.Flags().GetString("grpc")

		ctx, cancel := context.WithTimeout(cmd.Context(), 5*time.Second)
		defer cancel()

		var (
			status string
			err    error
			ok     string
		)
		if grpcAddr != "" {
			status, err = client.GRPCHealth(ctx, grpcAddr, authToken, "orggraph")
			ok = "SERVING"
		} else {
			status, err = ogClient.Health(ctx)
			ok = "ok"
		}
		if err != nil {
			return fmt.Errorf("checking health: %w", err)
		}

		if jsonOutput {
			if err := printJSON(cmd.OutOrStdout(), map[string]string{"status": status}); err != nil {
				return err
			}
		} else {
			fmt.Fprintf(cmd.OutOrStdout(), "Health: %s\n", status)
		}

		if status != ok {
			return fmt.Errorf("unhealthy: %s", status)
		}
		return nil
	},
}

func init() {
	healthCmd.Flags().String("grpc", "", "check the gRPC health service at this address instead")
}
