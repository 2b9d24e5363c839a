package services

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"

	"github.com/aws/aws-sdk-go-v2/service/ssm"
	"github.com/aws/aws-sdk-go-v2/service/ssm/types"
	"github.com/savaki/sc-packager/internal/config"
)

// Config holds provider settings supplied outside the service file
type Config struct {
	DeploymentBucket string
	SCProductID      string
	SCProductVersion string
	HistoryTable     string
}

// Apply fills provider settings the service file left empty
func (c *Config) Apply(provider *config.Provider) {
	if provider.DeploymentBucket == "" {
		provider.DeploymentBucket = c.DeploymentBucket
	}
	if provider.SCProductID == "" {
		provider.SCProductID = c.SCProductID
	}
	if provider.SCProductVersion == "" {
		provider.SCProductVersion = c.SCProductVersion
	}
}

// Parameter names, stored in SSM under /{stage}/sc-packager/{name}
const (
	ParamDeploymentBucket = "deployment-bucket"
	ParamProductID        = "product-id"
	ParamProductVersion   = "product-version"
	ParamHistoryTable     = "history-table"
)

// envNames maps parameter names to the environment variables used when SSM is disabled
var envNames = map[string]string{
	ParamDeploymentBucket: "DEPLOYMENT_BUCKET",
	ParamProductID:        "SC_PRODUCT_ID",
	ParamProductVersion:   "SC_PRODUCT_VERSION",
	ParamHistoryTable:     "HISTORY_TABLE",
}

// ParameterStore defines the interface for accessing configuration parameters
type ParameterStore interface {
	// GetParameter retrieves a single parameter by name, e.g. ParamHistoryTable.
	// A parameter that is not set returns "".
	GetParameter(ctx context.Context, name string) (string, error)

	// GetConfig loads all packager configuration for the stage
	GetConfig(ctx context.Context) (*Config, error)
}

// SSMAPI is the subset of the SSM client used by SSMParameterStore
type SSMAPI interface {
	GetParameter(ctx context.Context, params *ssm.GetParameterInput, optFns ...func(*ssm.Options)) (*ssm.GetParameterOutput, error)
	GetParametersByPath(ctx context.Context, params *ssm.GetParametersByPathInput, optFns ...func(*ssm.Options)) (*ssm.GetParametersByPathOutput, error)
}

// SSMParameterStore implements ParameterStore using AWS Systems Manager Parameter Store
type SSMParameterStore struct {
	client SSMAPI
	stage  string
	mu     sync.RWMutex
	cache  map[string]string
}

// NewSSMParameterStore creates a new SSM-backed parameter store
func NewSSMParameterStore(client SSMAPI, stage string) *SSMParameterStore {
	return &SSMParameterStore{
		client: client,
		stage:  stage,
		cache:  make(map[string]string),
	}
}

func (s *SSMParameterStore) path() string {
	return fmt.Sprintf("/%s/sc-packager", s.stage)
}

// GetParameter retrieves a single parameter from SSM Parameter Store
func (s *SSMParameterStore) GetParameter(ctx context.Context, name string) (string, error) {
	fullName := s.path() + "/" + name

	// Check cache first
	s.mu.RLock()
	if value, ok := s.cache[fullName]; ok {
		s.mu.RUnlock()
		return value, nil
	}
	s.mu.RUnlock()

	result, err := s.client.GetParameter(ctx, &ssm.GetParameterInput{
		Name:           &fullName,
		WithDecryption: boolPtr(true),
	})
	if err != nil {
		var notFound *types.ParameterNotFound
		if errors.As(err, &notFound) {
			return "", nil
		}
		return "", fmt.Errorf("failed to get parameter %s: %w", fullName, err)
	}

	if result.Parameter == nil || result.Parameter.Value == nil {
		return "", nil
	}

	value := *result.Parameter.Value

	s.mu.Lock()
	s.cache[fullName] = value
	s.mu.Unlock()

	return value, nil
}

// GetConfig loads packager configuration from /{stage}/sc-packager
func (s *SSMParameterStore) GetConfig(ctx context.Context) (*Config, error) {
	path := s.path()

	params := make(map[string]string)
	input := &ssm.GetParametersByPathInput{
		Path:           &path,
		Recursive:      boolPtr(true),
		WithDecryption: boolPtr(true),
	}
	for {
		result, err := s.client.GetParametersByPath(ctx, input)
		if err != nil {
			return nil, fmt.Errorf("failed to get parameters by path %s: %w", path, err)
		}
		for _, param := range result.Parameters {
			if param.Name != nil && param.Value != nil {
				params[*param.Name] = *param.Value
			}
		}
		if result.NextToken == nil {
			break
		}
		input.NextToken = result.NextToken
	}

	s.mu.Lock()
	for k, v := range params {
		s.cache[k] = v
	}
	s.mu.Unlock()

	key := func(name string) string {
		return params[fmt.Sprintf("%s/%s", path, name)]
	}

	return &Config{
		DeploymentBucket: key(ParamDeploymentBucket),
		SCProductID:      key(ParamProductID),
		SCProductVersion: key(ParamProductVersion),
		HistoryTable:     key(ParamHistoryTable),
	}, nil
}

// EnvParameterStore implements ParameterStore using environment variables
// This is a NoOp implementation for local development without AWS connection
type EnvParameterStore struct{}

// NewEnvParameterStore creates a new environment variable-backed parameter store
func NewEnvParameterStore() *EnvParameterStore {
	return &EnvParameterStore{}
}

// GetParameter retrieves a parameter from its environment variable
func (e *EnvParameterStore) GetParameter(_ context.Context, name string) (string, error) {
	envName, ok := envNames[name]
	if !ok {
		return "", fmt.Errorf("unknown parameter %s", name)
	}
	return os.Getenv(envName), nil
}

// GetConfig loads packager configuration from environment variables
func (e *EnvParameterStore) GetConfig(ctx context.Context) (*Config, error) {
	var cfg Config
	for name, dst := range map[string]*string{
		ParamDeploymentBucket: &cfg.DeploymentBucket,
		ParamProductID:        &cfg.SCProductID,
		ParamProductVersion:   &cfg.SCProductVersion,
		ParamHistoryTable:     &cfg.HistoryTable,
	} {
		value, err := e.GetParameter(ctx, name)
		if err != nil {
			return nil, err
		}
		*dst = value
	}
	return &cfg, nil
}

func boolPtr(b bool) *bool {
	return &b
}
