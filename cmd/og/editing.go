package main

import (
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/alfredjeanlab/orggraph/internal/client"
	"github.com/alfredjeanlab/orggraph/internal/layout"
	"github.com/alfredjeanlab/orggraph/internal/synth"
	"github.com/alfredjeanlab/orggraph/internal/ui"
)

const defaultWorkspace = "default"

func addWorkspaceFlags(cmd *cobra.Command) {
	cmd.Flags().StringP("workspace", "w", defaultWorkspace, "editing workspace")
	cmd.Flags().String("profile", "", "open this profile in the workspace first")
}

// workspaceFor returns the workspace flag and opens --profile in it when set.
func workspaceFor(cmd *cobra.Command) (string, error) {
	ws, _ := cmd.Flags().GetString("workspace")
	profileID, _ := cmd.Flags().GetString("profile")
	if profileID == "" {
		return ws, nil
	}
	res, err := ogClient.OpenWorkspace(cmd.Context(), ws, profileID)
	if err != nil {
		return "", fmt.Errorf("opening %s: %w", profileID, err)
	}
	if res.RemoteError != "" {
		fmt.Fprintf(cmd.ErrOrStderr(), "warning: %s\n", res.RemoteError)
	}
	if !jsonOutput {
		fmt.Fprintf(cmd.ErrOrStderr(), "%s\n", ui.RenderMuted(fmt.Sprintf("opened %s from %s", res.ProfileID, res.Source)))
	}
	return ws, nil
}

var synthesizeCmd = &cobra.Command{
	Use:     "synthesize [roster.json]",
	Short:   "Generate a director/deputy/head/staff hierarchy into a workspace",
	GroupID: "editing",
	Args:    cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ws, err := workspaceFor(cmd)
		if err != nil {
			return err
		}
		req := &client.SynthesizeRequest{}
		req.UserIDs, _ = cmd.Flags().GetStringSlice("users")
		if len(args) == 1 {
			data, err := readInput(args[0])
			if err != nil {
				return err
			}
			if err := json.Unmarshal(data, &req.Users); err != nil {
				return fmt.Errorf("parsing roster %s: %w", args[0], err)
			}
		}

		resp, err := ogClient.Synthesize(cmd.Context(), ws, req)
		if err != nil {
			return fmt.Errorf("synthesizing: %w", err)
		}
		if jsonOutput {
			return printJSON(cmd.OutOrStdout(), resp)
		}
		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "Added %d nodes, %d edges\n", resp.AddedNodes, resp.AddedEdges)
		for _, tier := range []synth.Tier{synth.TierDirector, synth.TierDeputy, synth.TierDirectorHead, synth.TierHead, synth.TierStaff} {
			fmt.Fprintf(out, "  %-13s %d\n", tier, resp.Tiers[tier])
		}
		if len(resp.Orphans) > 0 {
			fmt.Fprintf(out, "%s %v\n", ui.RenderMuted("unattached:"), resp.Orphans)
		}
		return nil
	},
}

var layoutCmd = &cobra.Command{
	Use:     "layout",
	Short:   "Export a layout request or apply computed positions",
	GroupID: "editing",
}

var layoutRequestCmd = &cobra.Command{
	Use:   "request",
	Short: "Print the layout request for the workspace graph",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ws, err := workspaceFor(cmd)
		if err != nil {
			return err
		}
		req, err := ogClient.LayoutRequest(cmd.Context(), ws)
		if err != nil {
			return fmt.Errorf("building layout request: %w", err)
		}
		return printJSON(cmd.OutOrStdout(), req)
	},
}

var layoutApplyCmd = &cobra.Command{
	Use:   "apply <positions.json>",
	Short: "Apply a map of node id to {x, y} positions",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ws, err := workspaceFor(cmd)
		if err != nil {
			return err
		}
		data, err := readInput(args[0])
		if err != nil {
			return err
		}
		var res layout.Result
		if err := json.Unmarshal(data, &res); err != nil {
			return fmt.Errorf("parsing positions: %w", err)
		}
		moved, err := ogClient.ApplyLayout(cmd.Context(), ws, res)
		if err != nil {
			return fmt.Errorf("applying layout: %w", err)
		}
		if jsonOutput {
			return printJSON(cmd.OutOrStdout(), map[string]int{"moved": moved})
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Moved %d of %d nodes\n", moved, len(res))
		return nil
	},
}

var searchCmd = &cobra.Command{
	Use:     "search <query>",
	Short:   "Find nodes by label",
	GroupID: "editing",
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ws, err := workspaceFor(cmd)
		if err != nil {
			return err
		}
		limit, _ := cmd.Flags().GetInt("limit")
		matches, err := ogClient.Search(cmd.Context(), ws, args[0], limit)
		if err != nil {
			return fmt.Errorf("searching: %w", err)
		}
		if jsonOutput {
			return printJSON(cmd.OutOrStdout(), matches)
		}
		for _, m := range matches {
			fmt.Fprintf(cmd.OutOrStdout(), "%s  %s  %s\n", ui.RenderAccent(m.Node.ID), m.Node.Kind, m.Node.Label())
		}
		return nil
	},
}

var watchCmd = &cobra.Command{
	Use:     "watch",
	Short:   "Stream graph and profile events for a workspace",
	GroupID: "editing",
	Args:    cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ws, _ := cmd.Flags().GetString("workspace")
		topics, _ := cmd.Flags().GetStringSlice("topics")
		since, _ := cmd.Flags().GetString("since")

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		out := cmd.OutOrStdout()
		return ogClient.Watch(ctx, ws, topics, since, func(e client.Event) {
			if jsonOutput {
				_ = printJSON(out, map[string]any{"id": e.ID, "topic": e.Topic, "data": e.Data})
				return
			}
			fmt.Fprintf(out, "%s %s %s\n", ui.RenderMuted(e.ID), ui.RenderAccent(e.Topic), string(e.Data))
		})
	},
}

func init() {
	for _, c := range []*cobra.Command{synthesizeCmd, layoutRequestCmd, layoutApplyCmd, searchCmd} {
		addWorkspaceFlags(c)
	}
	synthesizeCmd.Flags().StringSlice("users", nil, "only these user ids")
	searchCmd.Flags().Int("limit", 20, "maximum number of matches")

	watchCmd.Flags().StringP("workspace", "w", defaultWorkspace, "editing workspace")
	watchCmd.Flags().StringSlice("topics", nil, "topic patterns to include (e.g. orggraph.graph.*)")
	watchCmd.Flags().String("since", "", "resume after this event id")

	layoutCmd.AddCommand(layoutRequestCmd)
	layoutCmd.AddCommand(layoutApplyCmd)
}
