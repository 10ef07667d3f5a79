package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/VictoriaMetrics/metrics"
	"github.com/danielgtaylor/huma/v2/humacli"
	"github.com/spf13/cobra"

	"github.com/oaiiae/contacts-api/cli/api"
	"github.com/oaiiae/contacts-api/cli/logger"
	"github.com/oaiiae/contacts-api/identity"
)

// Set at build time with -ldflags "-X main.version=...".
var (
	version  = "dev"
	revision = ""
	created  = ""
)

// Options for the CLI. Pass `--port` or set the `SERVICE_PORT` env var.
type Options struct {
	logger.Options
	api.ServerOptions
	api.RouterOptions
	api.ContactsOptions
	api.AuthOptions
}

func main() {
	cli := humacli.New(func(hooks humacli.Hooks, options *Options) {
		log := logger.New(&options.Options)
		metriks := metrics.NewSet()

		contacts, err := api.NewContactsService(&options.ContactsOptions)
		if err != nil {
			log.Error("invalid contacts options", "err", err)
			os.Exit(1)
		}
		issuer, err := api.NewIssuer(&options.AuthOptions, metriks, log)
		if err != nil {
			log.Error("invalid auth options", "err", err)
			os.Exit(1)
		}

		srv := api.NewServer(&options.ServerOptions,
			api.NewRouter(&options.RouterOptions, &options.AuthOptions,
				api.BuildInfo{Title: "Contacts API", Version: version, Revision: revision, Created: created},
				contacts, issuer, metriks, log),
			log)

		hooks.OnStart(func() {
			log.Info("listening", "addr", srv.Addr)
			err := srv.ListenAndServe()
			if err != http.ErrServerClosed {
				log.Error("failed to listen and serve", "err", err)
			} else {
				log.Info("server closed")
			}
		})
		hooks.OnStop(func() {
			ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
			defer cancel()
			err := srv.Shutdown(ctx)
			if err != nil {
				log.Warn("could not shutdown the server", "err", err)
			}
		})
	})

	cli.Root().AddCommand(&cobra.Command{
		Use:   "token",
		Short: "Print an access token for the configured client",
		Args:  cobra.NoArgs,
		Run: humacli.WithOptions(func(cmd *cobra.Command, _ []string, options *Options) {
			log := logger.New(&options.Options)
			if options.AuthSecret == "" {
				log.Error("--auth-secret is required to mint tokens a server will accept")
				os.Exit(1)
			}
			issuer, err := api.NewIssuer(&options.AuthOptions, nil, log)
			if err != nil {
				log.Error("invalid auth options", "err", err)
				os.Exit(1)
			}
			token, err := issuer.Issue(context.Background(), identity.GrantClientCredentials,
				options.AuthClientID, options.AuthClientSecret, options.AuthScope)
			if err != nil {
				log.Error("could not issue token", "err", err)
				os.Exit(1)
			}
			fmt.Fprintln(cmd.OutOrStdout(), token.AccessToken)
		}),
	})

	cli.Run()
}
