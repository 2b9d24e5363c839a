package di

import "context"

// DisableSSM selects the environment variable parameter store
type DisableSSM bool

// Option is a function that configures the dependency injection container.
type Option func(*options)

// WithContext sets the context handed to providers
func WithContext(ctx context.Context) Option {
	return func(opts *options) {
		opts.ctx = ctx
	}
}

func WithDisableSSM(disable bool) Option {
	return func(opts *options) {
		opts.disableSSM = disable
	}
}

// WithProviders adds constructor functions to the dependency injection container.
// Providers registered here may replace none of the core types; dig rejects
// duplicate providers.
//
// Example:
//
//	WithProviders(
//	    func() stackstate.Inspector { return fake },
//	)
func WithProviders(providers ...any) Option {
	return func(opts *options) {
		opts.providers = append(opts.providers, providers...)
	}
}

type options struct {
	ctx        context.Context
	providers  []any
	disableSSM bool
}
