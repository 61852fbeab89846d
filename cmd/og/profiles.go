package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/alfredjeanlab/orggraph/internal/client"
	"github.com/alfredjeanlab/orggraph/internal/schema"
)

var profilesCmd = &cobra.Command{
	Use:     "profiles",
	Short:   "Manage hierarchy profiles",
	GroupID: "profiles",
}

var profilesListCmd = &cobra.Command{
	Use:   "list",
	Short: "List profiles, newest first",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		profiles, err := ogClient.ListProfiles(cmd.Context())
		if err != nil {
			return fmt.Errorf("listing profiles: %w", err)
		}
		if jsonOutput {
			return printJSON(cmd.OutOrStdout(), profiles)
		}
		if len(profiles) == 0 {
			fmt.Fprintln(cmd.OutOrStdout(), "no profiles")
			return nil
		}
		return printProfileTable(cmd.OutOrStdout(), profiles)
	},
}

var profilesCreateCmd = &cobra.Command{
	Use:   "create <name>",
	Short: "Create an empty profile",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		description, _ := cmd.Flags().GetString("description")
		active, _ := cmd.Flags().GetBool("active")

		p, err := ogClient.CreateProfile(cmd.Context(), &client.CreateProfileRequest{
			Name:        args[0],
			Description: description,
			Active:      active,
		})
		if err != nil {
			return fmt.Errorf("creating profile: %w", err)
		}
		if jsonOutput {
			return printJSON(cmd.OutOrStdout(), p)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Created profile %s (%s)\n", p.ID, p.Name)
		return nil
	},
}

var profilesDeleteCmd = &cobra.Command{
	Use:   "delete <id>",
	Short: "Delete a profile",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := ogClient.DeleteProfile(cmd.Context(), args[0]); err != nil {
			return fmt.Errorf("deleting profile: %w", err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Deleted profile %s\n", args[0])
		return nil
	},
}

var profilesActivateCmd = &cobra.Command{
	Use:   "activate <id>",
	Short: "Make a profile the active one",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		off, _ := cmd.Flags().GetBool("off")
		p, err := ogClient.SetActive(cmd.Context(), args[0], !off)
		if err != nil {
			return fmt.Errorf("activating profile: %w", err)
		}
		if jsonOutput {
			return printJSON(cmd.OutOrStdout(), p)
		}
		printProfile(cmd.OutOrStdout(), p)
		return nil
	},
}

var structureCmd = &cobra.Command{
	Use:     "structure",
	Short:   "Read or replace the stored structure of a profile",
	GroupID: "profiles",
}

var structureGetCmd = &cobra.Command{
	Use:   "get <profile-id>",
	Short: "Print the stored structure, migrated to the current schema",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		resp, err := ogClient.GetStructure(cmd.Context(), args[0])
		if err != nil {
			return fmt.Errorf("loading structure: %w", err)
		}
		if jsonOutput {
			return printJSON(cmd.OutOrStdout(), resp)
		}
		return printJSON(cmd.OutOrStdout(), resp.Graph)
	},
}

var structurePutCmd = &cobra.Command{
	Use:   "put <profile-id> <file>",
	Short: "Replace the stored structure with a document (\"-\" reads stdin)",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		data, err := readInput(args[1])
		if err != nil {
			return err
		}
		if !json.Valid(data) {
			return fmt.Errorf("%s: not valid JSON", args[1])
		}
		resp, err := ogClient.PutStructure(cmd.Context(), args[0], data)
		if err != nil {
			return fmt.Errorf("saving structure: %w", err)
		}
		if jsonOutput {
			return printJSON(cmd.OutOrStdout(), resp)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Saved %d nodes, %d edges to %s\n",
			len(resp.Graph.Nodes), len(resp.Graph.Edges), args[0])
		printReport(cmd.OutOrStdout(), resp.Migration)
		return nil
	},
}

var migrateCmd = &cobra.Command{
	Use:     "migrate <file>",
	Short:   "Migrate a structure document to the current schema locally",
	GroupID: "profiles",
	Args:    cobra.ExactArgs(1),
	// Runs offline; no server connection.
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error { return nil },
	RunE: func(cmd *cobra.Command, args []string) error {
		data, err := readInput(args[0])
		if err != nil {
			return err
		}
		g, report, err := schema.Decode(data)
		if err != nil {
			return fmt.Errorf("migrating %s: %w", args[0], err)
		}
		if jsonOutput {
			return printJSON(cmd.OutOrStdout(), map[string]any{"graph": g, "migration": report})
		}
		printReport(cmd.ErrOrStderr(), report)
		return printJSON(cmd.OutOrStdout(), g)
	},
}

func init() {
	profilesCreateCmd.Flags().String("description", "", "profile description")
	profilesCreateCmd.Flags().Bool("active", false, "activate the new profile")
	profilesActivateCmd.Flags().Bool("off", false, "deactivate instead")

	profilesCmd.AddCommand(profilesListCmd)
	profilesCmd.AddCommand(profilesCreateCmd)
	profilesCmd.AddCommand(profilesDeleteCmd)
	profilesCmd.AddCommand(profilesActivateCmd)

	structureCmd.AddCommand(structureGetCmd)
	structureCmd.AddCommand(structurePutCmd)
}
