// Package reconciler compiles serverless functions into Service Catalog
// provisioned products, choosing the version slot that forces CloudFormation to
// publish a new lambda version whenever the artifact changes.
package reconciler

import (
	"context"
	stderrors "errors"
	"fmt"
	"strconv"
	"time"

	"github.com/rs/zerolog"
	"github.com/savaki/sc-packager/internal/artifact"
	"github.com/savaki/sc-packager/internal/config"
	"github.com/savaki/sc-packager/internal/digest"
	"github.com/savaki/sc-packager/internal/errors"
	"github.com/savaki/sc-packager/internal/template"
	"github.com/savaki/sc-packager/internal/toggle"
	"github.com/savaki/sc-packager/internal/utils"
)

// Output keys written for every function
const (
	OutputProvisionedProductID = "ProvisionedProductID"
	OutputProductStackArn      = "ProductCloudformationStackArn"
	OutputServiceEndpoint      = "ServiceEndpoint"

	stackArnAttribute = "CloudformationStackArn"
)

// StateProbe returns the deployed version state of a stack
type StateProbe interface {
	Probe(ctx context.Context, stackName string) toggle.State
}

// Result describes the outcome of reconciling one function
type Result struct {
	FunctionKey  string
	FunctionName string
	LogicalID    string
	ArtifactPath string
	Settings     config.Settings
	State        toggle.State
	Decision     toggle.Decision
}

// Reconciler writes provisioned product resources for the functions of a service
type Reconciler struct {
	service   *config.Service
	probe     StateProbe
	store     artifact.Store
	stackName string
}

// Option configures a Reconciler
type Option func(*Reconciler)

// WithStackName overrides the stack inspected for prior versions.
// Defaults to the service stack name, {service}-{stage}.
func WithStackName(name string) Option {
	return func(r *Reconciler) {
		if name != "" {
			r.stackName = name
		}
	}
}

// New creates a Reconciler for service
func New(service *config.Service, probe StateProbe, store artifact.Store, opts ...Option) *Reconciler {
	r := &Reconciler{
		service:   service,
		probe:     probe,
		store:     store,
		stackName: service.StackName(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// StackName returns the stack inspected for prior versions
func (r *Reconciler) StackName() string {
	return r.stackName
}

// Reconcile compiles fn into sink. Nothing is written to sink unless the whole
// function compiles.
func (r *Reconciler) Reconcile(ctx context.Context, fn config.Function, sink template.Sink) (result *Result, err error) {
	logger := zerolog.Ctx(ctx).With().
		Str("function", fn.Key).
		Str("stack_name", r.stackName).
		Logger()

	defer func(begin time.Time) {
		event := logger.Info()
		if err != nil {
			event = logger.Error().Err(err)
		}
		event.Dur("duration_ms", time.Since(begin)).Msg("reconcile completed")
	}(time.Now())

	artifactPath := r.service.ArtifactPath(fn)

	bucket := r.service.Provider.DeploymentBucket
	if bucket == "" {
		return nil, fmt.Errorf("%w: a deployment bucket is required, SC provisioned products cannot create an S3 bucket", errors.ErrMissingDeploymentBucket)
	}
	if fn.Handler == "" {
		return nil, fmt.Errorf("%w in function %q: point to the lambda handler, for example handler.hello", errors.ErrMissingHandler, fn.Key)
	}

	settings := r.service.Resolve(fn)
	name := r.service.FunctionName(fn)

	params := template.NewProvisioningParameters()
	err = params.SetAll(map[string]string{
		template.ParamBucketName:         bucket,
		template.ParamBucketKey:          r.service.BucketKey(fn),
		template.ParamFunctionName:       name,
		template.ParamFunctionStage:      r.service.Stage(),
		template.ParamFunctionHandler:    fn.Handler,
		template.ParamFunctionRuntime:    settings.Runtime,
		template.ParamFunctionMemorySize: strconv.Itoa(settings.MemorySize),
		template.ParamFunctionTimeout:    strconv.Itoa(settings.Timeout),
	})
	if err != nil {
		return nil, err
	}

	state := r.probe.Probe(ctx, r.stackName)

	sum, err := r.digest(ctx, artifactPath)
	if err != nil {
		return nil, fmt.Errorf("failed to hash artifact %s: %w", artifactPath, err)
	}

	decision := toggle.Select(state, sum)
	logger.Info().
		Str("digest", sum).
		Str("prior_digest", state.PriorDigest).
		Bool("first_deploy", state.FirstDeploy).
		Str("branch", string(decision.Branch)).
		Str("slot", decision.Target.String()).
		Msg("selected version slot")

	err = params.SetAll(map[string]string{
		template.ParamVersionSHA256:       decision.PrimaryValue(),
		template.ParamVersionSHA256Update: decision.UpdateValue(),
	})
	if err != nil {
		return nil, err
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	logicalID := LogicalID(fn.Key)
	sink.SetResource(logicalID, template.ProvisionedProduct{
		Type: template.ProvisionedProductType,
		Properties: template.ProvisionedProductProperties{
			ProvisioningParameters:   params,
			ProvisioningArtifactName: r.service.Provider.SCProductVersion,
			ProductID:                r.service.Provider.SCProductID,
			ProvisionedProductName:   ProvisionedProductName(name),
			Tags:                     utils.MergeTags(r.service.Provider.Tags, fn.Tags),
		},
	})
	sink.SetOutput(OutputProvisionedProductID, template.Output{
		Description: "Provisioned product ID",
		Value:       template.Ref(logicalID),
	})
	sink.SetOutput(OutputProductStackArn, template.Output{
		Description: "The Arn of the created Service Catalog product CloudFormation Stack",
		Value:       template.GetAtt(logicalID, stackArnAttribute),
	})
	if decision.OutputKey != "" {
		sink.SetOutput(decision.OutputKey, template.Output{
			Description: "SHA256 hash of the latest lambda version",
			Value:       decision.Digest,
		})
	}
	if !state.FirstDeploy {
		sink.SetOutput(OutputServiceEndpoint, template.Output{
			Description: "URL of the service endpoint",
			Value:       template.ImportValue(ServiceEndpointImport(name)),
		})
	}

	return &Result{
		FunctionKey:  fn.Key,
		FunctionName: name,
		LogicalID:    logicalID,
		ArtifactPath: artifactPath,
		Settings:     settings,
		State:        state,
		Decision:     decision,
	}, nil
}

// ReconcileAll compiles every function of the service in key order. A failing
// function does not stop the others; failures are joined into the returned error.
func (r *Reconciler) ReconcileAll(ctx context.Context, sink template.Sink) ([]*Result, error) {
	var (
		results []*Result
		errs    []error
	)
	for _, key := range r.service.FunctionKeys() {
		fn, err := r.service.Function(key)
		if err != nil {
			errs = append(errs, err)
			continue
		}

		result, err := r.Reconcile(ctx, fn, sink)
		if err != nil {
			errs = append(errs, fmt.Errorf("function %s: %w", key, err))
			continue
		}
		results = append(results, result)
	}
	return results, stderrors.Join(errs...)
}

func (r *Reconciler) digest(ctx context.Context, location string) (string, error) {
	rc, err := r.store.Open(ctx, location)
	if err != nil {
		return "", err
	}
	defer rc.Close()

	return digest.Sum(rc)
}
