package commands

import (
	"encoding/json"
	"fmt"

	"github.com/rs/zerolog"
	"github.com/savaki/sc-packager/internal/di"
	"github.com/savaki/sc-packager/internal/stackstate"
	"github.com/savaki/sc-packager/internal/toggle"
	"github.com/urfave/cli/v2"
)

// ProbeCommand returns the probe command which reports the deployed version state of a stack
func ProbeCommand(logger *zerolog.Logger) *cli.Command {
	return &cli.Command{
		Name:  "probe",
		Usage: "Show the deployed lambda version state of a stack",
		Description: `Read the LambdaVersionHash and LambdaVersionHashUpdate outputs of a stack.

Examples:
  # Probe the stack of the service in serverless.yml
  sc-packager probe --stage dev

  # Probe an explicit stack
  sc-packager probe --stack-name orders-prd --json`,
		Flags: []cli.Flag{
			configFlag,
			stageFlag,
			stackNameFlag,
			jsonFlag,
		},
		Action: probeAction,
	}
}

type probeOutput struct {
	StackName   string `json:"stack_name"`
	FirstDeploy bool   `json:"first_deploy"`
	PriorDigest string `json:"prior_digest,omitempty"`
	Active      string `json:"active"`
}

func probeAction(c *cli.Context) error {
	stackName, stage, err := resolveTarget(c)
	if err != nil {
		return err
	}

	container, err := newContainer(c, stage)
	if err != nil {
		return fmt.Errorf("failed to create container: %w", err)
	}

	state := di.MustGet[*stackstate.Probe](container).Probe(c.Context, stackName)
	return printState(c, stackName, state)
}

func printState(c *cli.Context, stackName string, state toggle.State) error {
	out := probeOutput{
		StackName:   stackName,
		FirstDeploy: state.FirstDeploy,
		PriorDigest: state.PriorDigest,
		Active:      state.Active.String(),
	}

	if c.Bool(jsonFlag.Name) {
		encoder := json.NewEncoder(c.App.Writer)
		encoder.SetIndent("", "  ")
		return encoder.Encode(out)
	}

	w := c.App.Writer
	fmt.Fprintf(w, "Stack:        %s\n", out.StackName)
	fmt.Fprintf(w, "First deploy: %t\n", out.FirstDeploy)
	fmt.Fprintf(w, "Active slot:  %s\n", out.Active)
	if out.PriorDigest != "" {
		fmt.Fprintf(w, "Prior digest: %s\n", out.PriorDigest)
	}
	return nil
}
