package cmd

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/zdunecki/matchfund/pkg/dashboard"
	"github.com/zdunecki/matchfund/pkg/server"
)

var (
	serveListen string
	serveOpen   bool
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the wizards and dashboards over HTTP for the browser frontend",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServe(cmd.Context(), serveOpen)
	},
}

func init() {
	serveCmd.Flags().StringVar(&serveListen, "listen", "", "Address to listen on (overrides server.listen)")
	serveCmd.Flags().BoolVar(&serveOpen, "open", false, "Open the system browser")
	rootCmd.AddCommand(serveCmd)
}

func runServe(ctx context.Context, openBrowser bool) error {
	a, err := setup()
	if err != nil {
		return err
	}
	defer a.close()

	if serveListen != "" {
		a.cfg.Server.Listen = serveListen
	}

	loader := dashboard.NewLoader(a.client, a.logger, a.cfg.Dashboard.FallbackEnabled())
	srv, err := server.New(a.deps(), loader, a.cfg.Server, a.logger)
	if err != nil {
		return err
	}

	url := "http://" + a.cfg.Server.Listen
	if strings.HasPrefix(a.cfg.Server.Listen, ":") {
		url = "http://localhost" + a.cfg.Server.Listen
	}
	fmt.Printf("🌐 Serving matchfund at %s\n", url)
	a.logger.Info("serving wizards",
		zap.String("listen", a.cfg.Server.Listen),
		zap.String("api", a.client.BaseURL()))
	if openBrowser {
		server.OpenBrowser(url, a.logger)
	}
	return srv.ListenAndServe(ctx)
}
