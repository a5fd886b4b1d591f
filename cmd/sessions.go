package cmd

import (
	"encoding/json"
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/hupe1980/roundtable/core"
)

func newSessionsCmd(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "sessions",
		Aliases: []string{"ls"},
		Short:   "List, show and delete stored discussions",
	}

	cmd.AddCommand(
		newSessionsListCmd(opts),
		newSessionsShowCmd(opts),
		newSessionsDeleteCmd(opts),
	)

	return cmd
}

type sessionSummary struct {
	ID        int64     `json:"id"`
	Topic     string    `json:"topic"`
	Messages  int       `json:"messages"`
	Bots      []string  `json:"bots"`
	Model     string    `json:"model,omitempty"`
	UpdatedAt time.Time `json:"updatedAt"`
}

func summarize(rec core.SessionRecord) sessionSummary {
	out := sessionSummary{ID: rec.ID, Topic: rec.Topic, Model: rec.Model, UpdatedAt: rec.UpdatedAt, Bots: []string{}}
	if msgs, err := core.DecodeTranscript(rec.Transcript); err == nil {
		out.Messages = len(msgs)
	}
	if set, err := core.DecodeParticipants(rec.Participants); err == nil {
		for _, b := range set.Bots {
			out.Bots = append(out.Bots, b.Name)
		}
	}
	return out
}

func newSessionsListCmd(opts *rootOptions) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List stored discussions, most recent first",
		Args:  cobra.NoArgs,
		RunE: withApp(opts, func(cmd *cobra.Command, _ []string, app *app) error {
			recs, err := app.rt.Store.List(cmd.Context())
			if err != nil {
				return err
			}

			rows := make([]sessionSummary, 0, len(recs))
			for _, rec := range recs {
				rows = append(rows, summarize(rec))
			}

			if asJSON {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(rows)
			}

			if len(rows) == 0 {
				_, err := fmt.Fprintln(cmd.OutOrStdout(), "no sessions")
				return err
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tUPDATED\tMESSAGES\tTOPIC")
			for _, r := range rows {
				fmt.Fprintf(w, "%d\t%s\t%d\t%s\n", r.ID, r.UpdatedAt.Local().Format("2006-01-02 15:04"), r.Messages, r.Topic)
			}
			return w.Flush()
		}),
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "Output JSON")

	return cmd
}

func newSessionsShowCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "show <id>",
		Short: "Print the transcript of a stored discussion",
		Args:  cobra.ExactArgs(1),
		RunE: withApp(opts, func(cmd *cobra.Command, args []string, app *app) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			rec, err := app.rt.Store.Get(cmd.Context(), id)
			if err != nil {
				return err
			}
			msgs, err := core.DecodeTranscript(rec.Transcript)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "topic: %s\n", rec.Topic)
			for _, m := range msgs {
				fmt.Fprintf(out, "%s: %s\n", m.Speaker, m.Text)
			}
			return nil
		}),
	}
}

func newSessionsDeleteCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:     "delete <id>",
		Aliases: []string{"rm"},
		Short:   "Delete a stored discussion",
		Args:    cobra.ExactArgs(1),
		RunE: withApp(opts, func(cmd *cobra.Command, args []string, app *app) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			if err := app.rt.Store.Delete(cmd.Context(), id); err != nil {
				return err
			}
			_, err = fmt.Fprintf(cmd.OutOrStdout(), "deleted session %d\n", id)
			return err
		}),
	}
}
