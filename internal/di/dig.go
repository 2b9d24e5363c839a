// Package di provides a lightweight wrapper around uber's dig dependency injection framework.
// It wires the AWS clients, stack probe and artifact stores used by the packager.
package di

import (
	"context"

	"go.uber.org/dig"
)

// Container defines a dependency injection container based on uber's dig.
type Container interface {
	// Invoke executes a function, injecting its dependencies from the container.
	Invoke(function any, opts ...dig.InvokeOption) error

	// Provide registers a constructor function in the container.
	Provide(constructor any, opts ...dig.ProvideOption) error

	// Scope creates a scoped sub-container with its own set of values.
	Scope(name string, opts ...dig.ScopeOption) *dig.Scope
}

// Stage is the deployment stage the container was built for
type Stage string

// MustGet returns an instance constructed via dependency injection or panics.
//
// Example:
//
//	probe := MustGet[*stackstate.Probe](container)
func MustGet[T any](container Container) (want T) {
	callback := func(got T) {
		want = got
	}
	if err := container.Invoke(callback); err != nil {
		panic(err)
	}
	return want
}

// Get returns an instance constructed via dependency injection
func Get[T any](container Container) (want T, err error) {
	err = container.Invoke(func(got T) {
		want = got
	})
	return want, err
}

// New creates a new dependency injection container for the given stage.
// The stage is registered as a Stage dependency and the context passed via
// WithContext (or context.Background) as a context.Context dependency.
func New(stage string, opts ...Option) (Container, error) {
	o := options{ctx: context.Background()}
	for _, opt := range opts {
		opt(&o)
	}

	container := dig.New()
	if err := container.Provide(func() Stage { return Stage(stage) }); err != nil {
		return nil, err
	}
	if err := container.Provide(func() context.Context { return o.ctx }); err != nil {
		return nil, err
	}
	if err := container.Provide(func() DisableSSM { return DisableSSM(o.disableSSM) }); err != nil {
		return nil, err
	}

	for _, provider := range core {
		if err := container.Provide(provider); err != nil {
			return nil, err
		}
	}

	for _, provider := range o.providers {
		if err := container.Provide(provider); err != nil {
			return nil, err
		}
	}

	return container, nil
}

var core = []any{
	ProvideAWSConfig,
	ProvideCloudFormation,
	ProvideS3Client,
	ProvideSSMClient,
	ProvideDynamoDB,
	ProvideParameterStore,
	ProvideAppConfig,
	ProvideInspector,
	ProvideProbe,
	ProvideArtifactStore,
	ProvideCompileDAO,
}
