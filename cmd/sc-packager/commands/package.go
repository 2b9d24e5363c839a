package commands

import (
	"fmt"
	"os"

	"github.com/rs/zerolog"
	"github.com/savaki/sc-packager/internal/artifact"
	"github.com/savaki/sc-packager/internal/dao/compiledao"
	"github.com/savaki/sc-packager/internal/di"
	"github.com/savaki/sc-packager/internal/packager"
	"github.com/savaki/sc-packager/internal/services"
	"github.com/savaki/sc-packager/internal/stackstate"
	"github.com/savaki/sc-packager/internal/template"
	"github.com/urfave/cli/v2"
)

// PackageCommand returns the package command which compiles a service into a template
func PackageCommand(logger *zerolog.Logger) *cli.Command {
	return &cli.Command{
		Name:    "package",
		Aliases: []string{"p"},
		Usage:   "Compile a service definition into a CloudFormation template",
		Description: `Compile every function of a service into a Service Catalog provisioned product.

Provider settings missing from the service file (deploymentBucket, scProductId,
scProductVersion) are read from SSM Parameter Store under /<stage>/sc-packager/,
or from DEPLOYMENT_BUCKET, SC_PRODUCT_ID and SC_PRODUCT_VERSION when SSM is disabled.

Examples:
  # Compile serverless.yml for dev and print the template
  sc-packager package --stage dev

  # Merge into an existing template and write the result to a file
  sc-packager package -c service/serverless.yml --template base.json --output packaged.json`,
		Flags: []cli.Flag{
			configFlag,
			stageFlag,
			stackNameFlag,
			disableSSMFlag,
			&cli.StringFlag{
				Name:    "template",
				Aliases: []string{"t"},
				Usage:   "Existing template to add the provisioned products to",
				EnvVars: []string{"BASE_TEMPLATE"},
			},
			&cli.StringFlag{
				Name:    "output",
				Aliases: []string{"o"},
				Usage:   "Output file, - for stdout",
				Value:   "-",
			},
			&cli.BoolFlag{
				Name:  "no-history",
				Usage: "Skip recording compile decisions in the history table",
			},
		},
		Action: packageAction,
	}
}

func packageAction(c *cli.Context) error {
	logger := zerolog.Ctx(c.Context)

	service, err := loadService(c)
	if err != nil {
		return err
	}

	container, err := newContainer(c, service.Stage())
	if err != nil {
		return fmt.Errorf("failed to create container: %w", err)
	}

	var (
		probe  = di.MustGet[*stackstate.Probe](container)
		store  = di.MustGet[artifact.Store](container)
		appCfg = di.MustGet[*services.Config](container)
	)

	opts := []packager.Option{
		packager.WithConfig(appCfg),
		packager.WithStackName(c.String(stackNameFlag.Name)),
	}
	if !c.Bool("no-history") {
		if dao := di.MustGet[*compiledao.DAO](container); dao != nil {
			opts = append(opts, packager.WithHistory(dao))
		}
	}

	var base *template.Template
	if filename := c.String("template"); filename != "" {
		data, err := os.ReadFile(filename)
		if err != nil {
			return fmt.Errorf("failed to read template %s: %w", filename, err)
		}
		if base, err = template.Parse(data); err != nil {
			return err
		}
	}

	output, err := packager.New(probe, store, opts...).Package(c.Context, service, base)
	if err != nil {
		return err
	}

	for _, result := range output.Results {
		logger.Info().
			Str("function", result.FunctionKey).
			Str("logical_id", result.LogicalID).
			Str("branch", string(result.Decision.Branch)).
			Str("digest", result.Decision.Digest).
			Msg("Compiled function")
	}

	data, err := output.Template.Encode()
	if err != nil {
		return err
	}
	data = append(data, '\n')

	if filename := c.String("output"); filename != "-" {
		if err := os.WriteFile(filename, data, 0o644); err != nil {
			return fmt.Errorf("failed to write template %s: %w", filename, err)
		}
		logger.Info().Str("file", filename).Msg("Wrote template")
		return nil
	}

	_, err = c.App.Writer.Write(data)
	return err
}
