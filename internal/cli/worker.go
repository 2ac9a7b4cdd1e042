package cli

import (
	"os/signal"
	"sync"
	"syscall"

	"github.com/spf13/cobra"
)

func NewWorkerCommand() *cobra.Command {
	var once bool

	cmd := &cobra.Command{
		Use:   "worker",
		Short: "Relay outbox events to the broker and prune processed ones",
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
			processor, cleanup, err := a.Workers(broker)
			if err != nil {
				return err
			}

			if once {
				n, err := processor.ProcessBatch(ctx)
				if err != nil {
					return err
				}
				cmd.Printf("published %d events\n", n)
				return nil
			}

			var wg sync.WaitGroup
			wg.Add(2)
			go func() { defer wg.Done(); processor.Start(ctx) }()
			go func() { defer wg.Done(); cleanup.Start(ctx) }()
			wg.Wait()

			a.Logger.Info("worker stopped")
			return nil
		},
	}

	cmd.Flags().BoolVar(&once, "once", false, "publish a single batch and exit")
	return cmd
}
