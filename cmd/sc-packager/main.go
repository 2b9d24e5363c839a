package main

import (
	"context"
	"os"

	"github.com/savaki/sc-packager/cmd/sc-packager/commands"
	"github.com/savaki/sc-packager/internal/di"
	"github.com/urfave/cli/v2"
)

func main() {
	logger := di.ProvideLogger()
	ctx := logger.WithContext(context.Background())

	app := &cli.App{
		Name:  "sc-packager",
		Usage: "Compile serverless functions into Service Catalog provisioned products",
		Description: `Compiles the functions of a serverless service definition into
AWS::ServiceCatalog::CloudFormationProvisionedProduct resources.

Each function's artifact is hashed and compared with the version hash exported
by the deployed stack. Changed artifacts alternate between the
LambdaVersionSHA256 and LambdaVersionSHA256Update provisioning parameters so
that CloudFormation publishes a new lambda version.`,
		Commands: []*cli.Command{
			commands.PackageCommand(&logger),
			commands.ProbeCommand(&logger),
			commands.HistoryCommand(&logger),
		},
	}

	if err := app.RunContext(ctx, os.Args); err != nil {
		logger.Error().Err(err).Msg("Application error")
		os.Exit(1)
	}
}
