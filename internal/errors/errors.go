package errors

import "errors"

var (
	ErrMissingDeploymentBucket = errors.New("missing provider.deploymentBucket parameter")
	ErrMissingHandler          = errors.New("missing handler property")
	ErrRead                    = errors.New("artifact read failed")
	ErrUnknownParameter        = errors.New("unknown provisioning parameter")
	ErrFunctionNotFound        = errors.New("function not found")
)
