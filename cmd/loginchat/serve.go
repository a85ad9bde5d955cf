package main

import (
	"context"
	"fmt"
	"net"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/mdp/qrterminal/v3"
	"github.com/spf13/cobra"

	"github.com/vortexlabs/loginchat/pkg/channels"
	"github.com/vortexlabs/loginchat/pkg/providers"
)

func newServeCmd(app *cliApp) *cobra.Command {
	var host string
	var port int
	var qr bool
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the chat widget over HTTP",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := app.cfg.WebChat
			if host != "" {
				cfg.Host = host
			}
			if port != 0 {
				cfg.Port = port
			}

			provider, err := providers.CreateProvider(app.cfg)
			if err != nil {
				return err
			}
			ch, err := channels.NewWebChatChannel(cfg, channels.WebChatOptions{
				Provider:    provider,
				Chat:        chatOptions(app.cfg),
				RevealDelay: app.cfg.RevealDelay(),
				Store:       app.store,
			})
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			if err := ch.Start(ctx); err != nil {
				return err
			}
			url := widgetURL(cfg.Host, cfg.Port)
			fmt.Fprintf(cmd.OutOrStdout(), "Chat widget listening on %s\n", url)
			if qr {
				qrterminal.GenerateHalfBlock(url, qrterminal.L, cmd.OutOrStdout())
			}

			<-ctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			return ch.Stop(shutdownCtx)
		},
	}
	cmd.Flags().StringVar(&host, "host", "", "Listen address (overrides config)")
	cmd.Flags().IntVar(&port, "port", 0, "Listen port (overrides config)")
	cmd.Flags().BoolVar(&qr, "qr", false, "Print a QR code of the widget address for phones on the same network")
	return cmd
}

// widgetURL is the address to open in a browser. A wildcard host is shown as
// localhost.
func widgetURL(host string, port int) string {
	switch host {
	case "", "0.0.0.0", "::":
		host = "localhost"
	}
	return "http://" + net.JoinHostPort(host, strconv.Itoa(port)) + "/"
}
