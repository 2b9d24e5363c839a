package template

import (
	"fmt"

	"github.com/savaki/sc-packager/internal/errors"
)

// Provisioning parameter keys understood by the Service Catalog product.
const (
	ParamBucketName          = "BucketName"
	ParamBucketKey           = "BucketKey"
	ParamFunctionName        = "FunctionName"
	ParamFunctionStage       = "FunctionStage"
	ParamFunctionHandler     = "FunctionHandler"
	ParamFunctionRuntime     = "FunctionRuntime"
	ParamFunctionMemorySize  = "FunctionMemorySize"
	ParamFunctionTimeout     = "FunctionTimeout"
	ParamVersionSHA256       = "LambdaVersionSHA256"
	ParamVersionSHA256Update = "LambdaVersionSHA256Update"
)

var parameterKeys = []string{
	ParamBucketName,
	ParamBucketKey,
	ParamFunctionName,
	ParamFunctionStage,
	ParamFunctionHandler,
	ParamFunctionRuntime,
	ParamFunctionMemorySize,
	ParamFunctionTimeout,
	ParamVersionSHA256,
	ParamVersionSHA256Update,
}

// Parameter is a single provisioning parameter
type Parameter struct {
	Key   string `json:"Key"`
	Value string `json:"Value"`
}

// ProvisioningParameters is the fixed, ordered parameter list of a provisioned
// product. Keys are fixed at construction; only values change.
type ProvisioningParameters []Parameter

// NewProvisioningParameters returns the full key set with empty values.
func NewProvisioningParameters() ProvisioningParameters {
	params := make(ProvisioningParameters, 0, len(parameterKeys))
	for _, key := range parameterKeys {
		params = append(params, Parameter{Key: key})
	}
	return params
}

// Set assigns value to key. Unknown keys return errors.ErrUnknownParameter.
func (p ProvisioningParameters) Set(key, value string) error {
	for i := range p {
		if p[i].Key == key {
			p[i].Value = value
			return nil
		}
	}
	return fmt.Errorf("%w: %s", errors.ErrUnknownParameter, key)
}

// Get returns the value of key
func (p ProvisioningParameters) Get(key string) (string, bool) {
	for _, param := range p {
		if param.Key == key {
			return param.Value, true
		}
	}
	return "", false
}

// SetAll assigns every value in values. No value is written when any key is
// unknown.
func (p ProvisioningParameters) SetAll(values map[string]string) error {
	for key := range values {
		if _, ok := p.Get(key); !ok {
			return fmt.Errorf("%w: %s", errors.ErrUnknownParameter, key)
		}
	}
	for key, value := range values {
		if err := p.Set(key, value); err != nil {
			return err
		}
	}
	return nil
}
