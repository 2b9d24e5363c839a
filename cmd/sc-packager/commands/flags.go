package commands

import (
	"fmt"

	"github.com/savaki/sc-packager/internal/config"
	"github.com/savaki/sc-packager/internal/di"
	"github.com/urfave/cli/v2"
)

var (
	configFlag = &cli.StringFlag{
		Name:    "config",
		Aliases: []string{"c"},
		Usage:   "Path to the service definition",
		Value:   "serverless.yml",
		EnvVars: []string{"SERVICE_CONFIG"},
	}
	stageFlag = &cli.StringFlag{
		Name:    "stage",
		Aliases: []string{"s"},
		Usage:   "Deployment stage; overrides provider.stage",
		EnvVars: []string{"STAGE"},
	}
	stackNameFlag = &cli.StringFlag{
		Name:    "stack-name",
		Usage:   "Stack inspected for prior versions (default: {service}-{stage})",
		EnvVars: []string{"STACK_NAME"},
	}
	disableSSMFlag = &cli.BoolFlag{
		Name:    "disable-ssm",
		Usage:   "Read provider settings from environment variables instead of SSM Parameter Store",
		EnvVars: []string{"DISABLE_SSM"},
	}
	jsonFlag = &cli.BoolFlag{
		Name:    "json",
		Aliases: []string{"j"},
		Usage:   "Output as JSON",
	}
)

// loadService reads the service definition and applies the stage override
func loadService(c *cli.Context) (*config.Service, error) {
	service, err := config.Load(c.String(configFlag.Name))
	if err != nil {
		return nil, err
	}
	if stage := c.String(stageFlag.Name); stage != "" {
		service.Provider.Stage = stage
	}
	return service, nil
}

// resolveTarget returns the stack and stage a command operates on. An explicit
// --stack-name skips the service definition; the stage then defaults to dev.
func resolveTarget(c *cli.Context) (stackName, stage string, err error) {
	stackName = c.String(stackNameFlag.Name)
	if stackName == "" {
		service, err := loadService(c)
		if err != nil {
			return "", "", fmt.Errorf("either --stack-name or a service definition is required: %w", err)
		}
		return service.StackName(), service.Stage(), nil
	}

	stage = c.String(stageFlag.Name)
	if stage == "" {
		stage = config.DefaultStage
	}
	return stackName, stage, nil
}

func newContainer(c *cli.Context, stage string) (di.Container, error) {
	return di.New(stage,
		di.WithContext(c.Context),
		di.WithDisableSSM(c.Bool(disableSSMFlag.Name)),
	)
}
