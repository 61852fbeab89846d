package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/alfredjeanlab/orggraph/internal/model"
	"github.com/alfredjeanlab/orggraph/internal/notify"
	"github.com/alfredjeanlab/orggraph/internal/schema"
	"github.com/alfredjeanlab/orggraph/internal/ui"
)

func printJSON(w io.Writer, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling JSON: %w", err)
	}
	_, err = fmt.Fprintln(w, string(data))
	return err
}

// readInput reads path, or stdin when path is "-".
func readInput(path string) ([]byte, error) {
	if path == "-" {
		return io.ReadAll(os.Stdin)
	}
	return os.ReadFile(path)
}

func printProfileTable(w io.Writer, profiles []*model.Profile) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "  ID\tNAME\tRELATIONSHIPS\tSCHEMA\tUPDATED")
	for _, p := range profiles {
		updated := ""
		if !p.UpdatedAt.IsZero() {
			updated = p.UpdatedAt.Format("2006-01-02 15:04")
		}
		fmt.Fprintf(tw, "%s %s\t%s\t%d\tv%d\t%s\n",
			ui.RenderActive(p.IsActive), p.ID, p.Name, p.RelationshipsCount, p.SchemaVersion, updated)
	}
	return tw.Flush()
}

func printProfile(w io.Writer, p *model.Profile) {
	fmt.Fprintf(w, "ID:            %s\n", p.ID)
	fmt.Fprintf(w, "Name:          %s\n", p.Name)
	if p.Description != "" {
		fmt.Fprintf(w, "Description:   %s\n", p.Description)
	}
	fmt.Fprintf(w, "Active:        %t\n", p.IsActive)
	fmt.Fprintf(w, "Relationships: %d\n", p.RelationshipsCount)
}

func printReport(w io.Writer, r schema.Report) {
	if !r.Changed() {
		fmt.Fprintln(w, ui.RenderMuted("schema: up to date"))
		return
	}
	fmt.Fprintf(w, "schema: migrated (fields rewritten %d, values dropped %d, recipient types added %d)\n",
		r.FieldsRewritten, r.ValuesDropped, r.RecipientTypesAdded)
}

func channelList(c model.DeliveryChannels) string {
	var out []string
	if c.Email {
		out = append(out, "email")
	}
	if c.InApp {
		out = append(out, "in-app")
	}
	if c.SMS {
		out = append(out, "sms")
	}
	if len(out) == 0 {
		return "-"
	}
	return strings.Join(out, ",")
}

func printRecipients(w io.Writer, recipients []notify.Recipient) error {
	if len(recipients) == 0 {
		fmt.Fprintln(w, "no recipients")
		return nil
	}
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "USER\tPRIORITY\tCHANNELS\tEDGES")
	for _, r := range recipients {
		user := r.UserID
		if r.SourceInfo {
			user += ui.RenderMuted(" (source info)")
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n",
			user, ui.RenderPriority(r.Priority), channelList(r.Channels), strings.Join(r.EdgeIDs, ","))
	}
	return tw.Flush()
}

func printDecision(w io.Writer, visible bool, perm model.PermissionLevel, reason string) {
	verdict := ui.RenderMuted("hidden")
	if visible {
		verdict = ui.RenderOK("visible")
	}
	fmt.Fprintf(w, "%s", verdict)
	if perm != "" {
		fmt.Fprintf(w, " %s", perm)
	}
	fmt.Fprintf(w, " (%s)\n", reason)
}
