package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/alfredjeanlab/orggraph/internal/client"
	"github.com/alfredjeanlab/orggraph/internal/model"
	"github.com/alfredjeanlab/orggraph/internal/visibility"
)

// parseObject decodes a JSON object given inline or as @file.
func parseObject(flag, raw string, v any) error {
	if raw == "" {
		return nil
	}
	data := []byte(raw)
	if raw[0] == '@' {
		var err error
		if data, err = readInput(raw[1:]); err != nil {
			return err
		}
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("--%s: %w", flag, err)
	}
	return nil
}

var triggerCmd = &cobra.Command{
	Use:     "trigger <event-type>",
	Short:   "Resolve who would be notified of a business event",
	GroupID: "rules",
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		req := &client.TriggerRequest{EventType: args[0]}
		req.TriggerUserID, _ = cmd.Flags().GetString("user")
		req.ProfileID, _ = cmd.Flags().GetString("profile")
		req.Workspace, _ = cmd.Flags().GetString("workspace")
		entity, _ := cmd.Flags().GetString("entity")
		if err := parseObject("entity", entity, &req.Entity); err != nil {
			return err
		}

		resp, err := ogClient.Trigger(cmd.Context(), req)
		if err != nil {
			return fmt.Errorf("triggering %s: %w", args[0], err)
		}
		if jsonOutput {
			return printJSON(cmd.OutOrStdout(), resp)
		}
		return printRecipients(cmd.OutOrStdout(), resp.Recipients)
	},
}

var accessCmd = &cobra.Command{
	Use:     "access <viewer-id> <module>",
	Short:   "Check what a viewer may see of a record",
	GroupID: "rules",
	Args:    cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		req := &client.AccessRequest{ViewerID: args[0], Module: model.Module(args[1])}
		req.EdgeID, _ = cmd.Flags().GetString("edge")
		req.ProfileID, _ = cmd.Flags().GetString("profile")
		req.Workspace, _ = cmd.Flags().GetString("workspace")
		record, _ := cmd.Flags().GetString("record")
		if err := parseObject("record", record, &req.Record); err != nil {
			return err
		}
		if owner, _ := cmd.Flags().GetString("owner"); owner != "" {
			req.Record.OwnerID = owner
		}

		raw, err := ogClient.Access(cmd.Context(), req)
		if err != nil {
			return fmt.Errorf("checking access: %w", err)
		}
		if jsonOutput {
			return printJSON(cmd.OutOrStdout(), raw)
		}

		out := cmd.OutOrStdout()
		if req.EdgeID != "" {
			var d visibility.Decision
			if err := json.Unmarshal(raw, &d); err != nil {
				return fmt.Errorf("decoding decision: %w", err)
			}
			printDecision(out, d.Visible, d.Permission, d.Reason)
			return nil
		}
		var s visibility.Summary
		if err := json.Unmarshal(raw, &s); err != nil {
			return fmt.Errorf("decoding summary: %w", err)
		}
		printDecision(out, s.Visible, s.Permission, fmt.Sprintf("%d edges considered", len(s.Edges)))
		return nil
	},
}

func init() {
	triggerCmd.Flags().String("entity", "", "entity as JSON, or @file")
	triggerCmd.Flags().String("user", "", "user who caused the event")
	triggerCmd.Flags().String("profile", "", "profile to evaluate (default: active)")
	triggerCmd.Flags().StringP("workspace", "w", "", "evaluate the live graph of this workspace")

	accessCmd.Flags().String("record", "", "record as JSON, or @file")
	accessCmd.Flags().String("owner", "", "record owner (overrides record.ownerId)")
	accessCmd.Flags().String("edge", "", "evaluate a single edge")
	accessCmd.Flags().String("profile", "", "profile to evaluate (default: active)")
	accessCmd.Flags().StringP("workspace", "w", "", "evaluate the live graph of this workspace")
}
