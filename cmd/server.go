package cmd

import (
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"travelbook/config"
	"travelbook/mq/mq"
	"travelbook/web"
)

func serverCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the web server",
		Long: `This command starts the JSON API over the configured backend.
A failed initial load is logged and the server starts with an empty collection;
writes are refused until POST /reload succeeds.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			isDev, _ := cmd.Flags().GetBool("dev")
			port, _ := cmd.Flags().GetString("port")
			rateLimit, _ := cmd.Flags().GetInt64("rate-limit")

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			a, err := openStore(ctx, cmd, true, false)
			if err != nil {
				return err
			}
			defer a.Close()

			if port == "" {
				port = a.cfg.Port
			}
			if port == "" {
				port = config.DefaultPort
			}

			var events mq.OrderMessageQueue
			if a.events != nil {
				events = a.events
			}
			router := web.NewRouter(a.store, events, web.Options{RateLimit: rateLimit, Development: isDev})
			return web.Serve(ctx, ":"+port, router)
		},
	}

	cmd.Flags().Bool("dev", false, "Run in development mode")
	cmd.Flags().String("port", "", "Port to run the web server on, PORT when empty")
	cmd.Flags().Int64("rate-limit", web.DefaultOptions().RateLimit, "requests per hour per client")

	return cmd
}
