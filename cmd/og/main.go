package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/alfredjeanlab/orggraph/internal/client"
	"github.com/alfredjeanlab/orggraph/internal/ui"
)

var (
	serverURL  string
	authToken  string
	jsonOutput bool
	noColor    bool

	ogClient *client.HTTPClient
)

func defaultURL() string {
	if s := os.Getenv("ORGGRAPH_URL"); s != "" {
		return s
	}
	if u := activeRemoteURL(); u != "" {
		return u
	}
	return "http://localhost:8080"
}

func defaultToken() string {
	if s := os.Getenv("ORGGRAPH_TOKEN"); s != "" {
		return s
	}
	return activeRemoteToken()
}

var rootCmd = &cobra.Command{
	Use:           "og <command>",
	Short:         "Organizational hierarchy and notification routing",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		ui.Setup(noColor || jsonOutput)
		ogClient = client.NewHTTPClient(serverURL, authToken)
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if ogClient != nil {
			ogClient.Close()
		}
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&serverURL, "url", defaultURL(), "orggraph server URL")
	rootCmd.PersistentFlags().StringVar(&authToken, "token", defaultToken(), "bearer token")
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "output as JSON")
	rootCmd.PersistentFlags().BoolVar(&noColor, "no-color", false, "disable colored output")

	rootCmd.AddGroup(
		&cobra.Group{ID: "profiles", Title: "Profiles:"},
		&cobra.Group{ID: "editing", Title: "Editing:"},
		&cobra.Group{ID: "rules", Title: "Rules:"},
		&cobra.Group{ID: "system", Title: "System:"},
	)
	cobra.EnableCommandSorting = false

	// Profiles
	rootCmd.AddCommand(profilesCmd)
	rootCmd.AddCommand(structureCmd)
	rootCmd.AddCommand(migrateCmd)

	// Editing
	rootCmd.AddCommand(synthesizeCmd)
	rootCmd.AddCommand(layoutCmd)
	rootCmd.AddCommand(searchCmd)
	rootCmd.AddCommand(watchCmd)

	// Rules
	rootCmd.AddCommand(triggerCmd)
	rootCmd.AddCommand(accessCmd)

	// System
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(healthCmd)
	rootCmd.AddCommand(remoteCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
