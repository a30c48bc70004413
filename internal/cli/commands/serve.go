package commands

import (
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/tablescout/tablescout/internal/ui"
)

// NewServeCommand creates the serve command.
func NewServeCommand() *cobra.Command {
	var (
		port    int
		noWatch bool
		dev     bool
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the web UI server",
		Long: `Serve starts the HTTP server exposing the search API and the SSE update
stream. File-based databases are watched for changes; a change invalidates
all cached pages and pings connected clients.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			sess, err := newSession(ctx, true)
			if err != nil {
				return err
			}
			defer sess.Close()

			uiCfg := sess.cfg.GetUIConfig()
			if cmd.Flags().Changed("port") {
				uiCfg.Port = port
			}
			if noWatch {
				uiCfg.Watch = false
			}
			if dev {
				uiCfg.Dev = true
			}

			watchPath := ""
			if uiCfg.Watch {
				bc := sess.cfg.BackendConfig()
				if bc.Path != "" && bc.Path != ":memory:" && bc.Type != "postgres" {
					watchPath = bc.Path
				}
			}

			server := ui.NewServer(ui.Config{
				Searcher:      sess.searcher,
				Cache:         sess.cache,
				Visible:       sess.visible,
				History:       historyStore(sess),
				Port:          uiCfg.Port,
				WatchPath:     watchPath,
				BackendName:   sess.backend.Name(),
				Dev:           uiCfg.Dev,
				SessionSecret: uiCfg.SessionSecret,
				Logger:        sess.logger,
			})
			return server.Serve(ctx)
		},
	}

	cmd.Flags().IntVarP(&port, "port", "p", 8765, "Port to listen on")
	cmd.Flags().BoolVar(&noWatch, "no-watch", false, "Disable database file watching")
	cmd.Flags().BoolVar(&dev, "dev", false, "Enable development mode (hot reload endpoints)")

	return cmd
}
