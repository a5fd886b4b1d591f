package cmd

import (
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"
)

func newResumeCmd(opts *rootOptions) *cobra.Command {
	var leaveTimeout time.Duration

	cmd := &cobra.Command{
		Use:   "resume <id>",
		Short: "Continue a stored discussion",
		Args:  cobra.ExactArgs(1),
		RunE: withApp(opts, func(cmd *cobra.Command, args []string, app *app) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}

			ctrl := app.rt.Controller
			return session(cmd.Context(), ctrl, cmd.OutOrStdout(), leaveTimeout, func(c *console) error {
				if err := ctrl.Resume(cmd.Context(), id); err != nil {
					return err
				}
				c.printf("topic: %s\n", ctrl.Topic())
				printHistory(c, ctrl.Transcript())
				if ctrl.NeedsContinue() {
					c.printf("%s was about to speak, type /continue to go on\n", c.nextSpeaker())
				}
				return c.interact(cmd.Context(), cmd.InOrStdin())
			})
		}),
	}

	cmd.Flags().DurationVar(&leaveTimeout, "leave-timeout", defaultLeaveTimeout, "How long to wait for pending saves on exit")

	return cmd
}

func parseID(s string) (int64, error) {
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid session id %q", s)
	}
	return id, nil
}
