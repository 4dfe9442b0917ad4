package main

import (
	"context"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/alecthomas/kong"
	"github.com/sirupsen/logrus"

	"github.com/matheuscscp/technews-auth/internal/constants"
)

type CLI struct {
	Config string `help:"Path to the configuration file. Defaults to $TECHNEWS_AUTH_CONFIG or /etc/technews-auth/config/config.yaml." type:"path"`

	Serve ServeCmd `cmd:"" default:"1" help:"Serve the token and key set endpoints."`
	JWKS  JWKSCmd  `cmd:"" name:"jwks" help:"Print the published key set."`
	Token TokenCmd `cmd:"" help:"Issue an access token for a configured user."`
}

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	var cli CLI
	cliCtx := kong.Parse(&cli,
		kong.Name(constants.TechNewsAuth),
		kong.Description("Issues signed access tokens and publishes their verification keys."))

	cliCtx.Bind(&cli)
	cliCtx.BindTo(ctx, (*context.Context)(nil))
	cliCtx.BindTo(os.Stdout, (*io.Writer)(nil))

	if err := cliCtx.Run(); err != nil {
		logrus.WithError(err).Fatal("failed to run command")
	}
}
