package cmd

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/hupe1980/roundtable/config"
	"github.com/hupe1980/roundtable/core"
)

const defaultLeaveTimeout = 5 * time.Second

func newRunCmd(opts *rootOptions) *cobra.Command {
	var (
		rosterPath   string
		topic        string
		reuse        bool
		leaveTimeout time.Duration
	)

	cmd := &cobra.Command{
		Use:   "run --roster <file> [--topic <topic>]",
		Short: "Start a discussion with the panel described by a roster file",
		Args:  cobra.NoArgs,
		RunE: withApp(opts, func(cmd *cobra.Command, _ []string, app *app) error {
			roster, err := config.LoadRoster(rosterPath)
			if err != nil {
				return err
			}
			if strings.TrimSpace(topic) == "" {
				topic = roster.Topic
			}
			if strings.TrimSpace(topic) == "" {
				return fmt.Errorf("a topic is required, set --topic or topic in the roster")
			}

			var existing int64
			if reuse {
				existing, err = findExisting(cmd, app, topic, roster.ParticipantSet)
				if err != nil {
					return err
				}
			}

			ctrl := app.rt.Controller
			return session(cmd.Context(), ctrl, cmd.OutOrStdout(), leaveTimeout, func(c *console) error {
				if existing != 0 {
					c.printf("continuing session %d\n", existing)
					if err := ctrl.Resume(cmd.Context(), existing); err != nil {
						return err
					}
					printHistory(c, ctrl.Transcript())
				} else if err := ctrl.Start(cmd.Context(), topic, roster.ParticipantSet); err != nil {
					return err
				}
				c.printf("topic: %s\n", topic)
				return c.interact(cmd.Context(), cmd.InOrStdin())
			})
		}),
	}

	cmd.Flags().StringVarP(&rosterPath, "roster", "r", "", "Roster YAML file")
	cmd.Flags().StringVarP(&topic, "topic", "t", "", "Discussion topic (overrides the roster)")
	cmd.Flags().BoolVar(&reuse, "reuse", false, "Continue the latest session with the same topic and roster")
	cmd.Flags().DurationVar(&leaveTimeout, "leave-timeout", defaultLeaveTimeout, "How long to wait for pending saves on exit")
	_ = cmd.MarkFlagRequired("roster")

	return cmd
}

func findExisting(cmd *cobra.Command, app *app, topic string, set core.ParticipantSet) (int64, error) {
	raw, err := core.EncodeParticipants(set)
	if err != nil {
		return 0, err
	}
	rec, err := app.rt.Store.FindExisting(cmd.Context(), topic, raw)
	if err != nil {
		return 0, fmt.Errorf("find existing session: %w", err)
	}
	if rec == nil {
		return 0, nil
	}
	return rec.ID, nil
}

func printHistory(c *console, msgs []core.Message) {
	for _, m := range msgs {
		c.printMessage(m)
	}
}
