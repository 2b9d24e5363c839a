// Package packager runs a full compile of a service definition: provider
// settings from the parameter store, reconciliation of every function into the
// template and, when configured, a history record per decision.
package packager

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/savaki/sc-packager/internal/artifact"
	"github.com/savaki/sc-packager/internal/config"
	"github.com/savaki/sc-packager/internal/dao/compiledao"
	"github.com/savaki/sc-packager/internal/reconciler"
	"github.com/savaki/sc-packager/internal/services"
	"github.com/savaki/sc-packager/internal/template"
)

// DefaultDescription is used for templates created from scratch
const DefaultDescription = "Service Catalog provisioned products"

// History records compile decisions
type History interface {
	Create(ctx context.Context, input compiledao.CreateInput) (compiledao.Record, error)
}

// Packager compiles service definitions into templates
type Packager struct {
	probe     reconciler.StateProbe
	store     artifact.Store
	config    *services.Config
	history   History
	stackName string
}

type Option func(*Packager)

// WithConfig supplies provider settings missing from the service file
func WithConfig(config *services.Config) Option {
	return func(p *Packager) {
		p.config = config
	}
}

// WithHistory records every successful decision
func WithHistory(history History) Option {
	return func(p *Packager) {
		p.history = history
	}
}

// WithStackName overrides the stack inspected for prior versions
func WithStackName(name string) Option {
	return func(p *Packager) {
		p.stackName = name
	}
}

func New(probe reconciler.StateProbe, store artifact.Store, opts ...Option) *Packager {
	p := &Packager{
		probe: probe,
		store: store,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Output is the result of a compile
type Output struct {
	Template  *template.Template
	StackName string
	Results   []*reconciler.Result
}

// Package compiles service into base, or into a new template when base is nil.
// Functions that fail are reported in the returned error while the others are
// still written; the output is returned in both cases.
func (p *Packager) Package(ctx context.Context, service *config.Service, base *template.Template) (*Output, error) {
	logger := zerolog.Ctx(ctx).With().Str("service", service.Service).Str("stage", service.Stage()).Logger()
	ctx = logger.WithContext(ctx)

	defer func(begin time.Time) {
		logger.Info().Dur("elapsed", time.Since(begin)).Msg("compiled service")
	}(time.Now())

	if p.config != nil {
		p.config.Apply(&service.Provider)
	}

	if base == nil {
		base = template.New(DefaultDescription)
	}

	r := reconciler.New(service, p.probe, p.store, reconciler.WithStackName(p.stackName))
	results, err := r.ReconcileAll(ctx, base)

	if p.history != nil {
		for _, result := range results {
			p.record(ctx, r.StackName(), result)
		}
	}

	output := &Output{
		Template:  base,
		StackName: r.StackName(),
		Results:   results,
	}
	if err != nil {
		return output, fmt.Errorf("failed to compile service %s: %w", service.Service, err)
	}
	return output, nil
}

// record logs history failures rather than failing a compile that already succeeded
func (p *Packager) record(ctx context.Context, stackName string, result *reconciler.Result) {
	logger := zerolog.Ctx(ctx)

	_, err := p.history.Create(ctx, compiledao.CreateInput{
		Stack:         stackName,
		Function:      result.FunctionKey,
		FunctionName:  result.FunctionName,
		Digest:        result.Decision.Digest,
		PriorDigest:   result.State.PriorDigest,
		Branch:        string(result.Decision.Branch),
		Slot:          result.Decision.Target.String(),
		OutputKey:     result.Decision.OutputKey,
		FirstDeploy:   result.State.FirstDeploy,
		DigestChanged: result.Decision.DigestChanged,
	})
	if err != nil {
		logger.Warn().Err(err).Str("function", result.FunctionKey).Msg("failed to record compile history")
	}
}
