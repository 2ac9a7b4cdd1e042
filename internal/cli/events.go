package cli

import (
	"encoding/json"
	"errors"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/kenko/clinic-api/internal/model"
	"github.com/kenko/clinic-api/pkg/messaging"
)

func NewEventsCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "events",
		Short: "Inspect appointment events on the broker",
	}

	var channel string
	tail := &cobra.Command{
		Use:   "tail",
		Short: "Print events published on a channel until interrupted",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			a, err := bootstrap(ctx, cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			broker, err := a.Broker(ctx)
			if err != nil {
				return err
			}
			messages, err := broker.Subscribe(ctx, channel)
			if errors.Is(err, messaging.ErrSubscribeUnsupported) {
				return errors.New("events tail needs redis.url to be set")
			}
			if err != nil {
				return err
			}

			for raw := range messages {
				var msg messaging.Message
				if err := json.Unmarshal(raw, &msg); err != nil {
					a.Logger.Warn("skipping malformed message", "channel", channel, "error", err.Error())
					continue
				}
				cmd.Printf("%s %s %s org=%s %s\n",
					msg.OccurredAt.Format("2006-01-02T15:04:05Z07:00"), msg.Type, msg.AggregateID, msg.OrganizationID, msg.Payload)
			}
			return nil
		},
	}
	tail.Flags().StringVar(&channel, "channel", model.EventAppointmentCreated, "channel to subscribe to")

	cmd.AddCommand(tail)
	return cmd
}
