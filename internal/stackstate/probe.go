// Package stackstate reconstructs the deployed version state of a stack from
// its outputs.
package stackstate

import (
	"context"

	"github.com/rs/zerolog"
	"github.com/savaki/sc-packager/internal/toggle"
)

// Probe derives toggle.State from stack outputs.
type Probe struct {
	inspector Inspector
}

// NewProbe creates a Probe reading outputs through inspector.
func NewProbe(inspector Inspector) *Probe {
	return &Probe{inspector: inspector}
}

// Probe returns the deployed state of stackName. It never fails: any error
// while inspecting the stack is logged and treated as a first deploy.
func (p *Probe) Probe(ctx context.Context, stackName string) toggle.State {
	logger := zerolog.Ctx(ctx).With().Str("stack_name", stackName).Logger()

	if hash := p.output(ctx, &logger, stackName, toggle.OutputVersionHash); hash != "" {
		logger.Debug().Str("digest", hash).Msg("primary version hash found, not the first deploy")
		return toggle.State{PriorDigest: hash, Active: toggle.SlotPrimary}
	}

	if hash := p.output(ctx, &logger, stackName, toggle.OutputVersionHashUpdate); hash != "" {
		logger.Debug().Msg("update version hash found, not the first deploy")
		return toggle.State{Active: toggle.SlotUpdate}
	}

	logger.Debug().Msg("no version hash outputs, first deploy")
	return toggle.State{FirstDeploy: true}
}

func (p *Probe) output(ctx context.Context, logger *zerolog.Logger, stackName, key string) string {
	value, ok, err := p.inspector.GetOutput(ctx, stackName, key)
	if err != nil {
		logger.Warn().Err(err).Str("output", key).Msg("failed to read stack output, assuming first deploy")
		return ""
	}
	if !ok {
		return ""
	}
	return value
}
