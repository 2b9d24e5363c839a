// Package config loads serverless-style service definitions.
package config

import (
	"fmt"
	"maps"
	"os"
	"path"
	"path/filepath"
	"slices"
	"strings"

	"github.com/savaki/sc-packager/internal/errors"
	"gopkg.in/yaml.v3"
)

const (
	DefaultMemorySize = 1024
	DefaultTimeout    = 6
	DefaultRuntime    = "nodejs4.3"
	DefaultStage      = "dev"

	packageDir = ".serverless"
)

// Service is the service definition file
type Service struct {
	Service   string              `yaml:"service"`
	Provider  Provider            `yaml:"provider"`
	Package   Package             `yaml:"package"`
	Functions map[string]Function `yaml:"functions"`

	// Path is the directory containing the service definition
	Path string `yaml:"-"`
}

// Provider holds provider level settings and function defaults
type Provider struct {
	Name             string            `yaml:"name"`
	Stage            string            `yaml:"stage"`
	Region           string            `yaml:"region"`
	Runtime          string            `yaml:"runtime"`
	MemorySize       int               `yaml:"memorySize"`
	Timeout          int               `yaml:"timeout"`
	DeploymentBucket string            `yaml:"deploymentBucket"`
	SCProductID      string            `yaml:"scProductId"`
	SCProductVersion string            `yaml:"scProductVersion"`
	Tags             map[string]string `yaml:"tags"`
}

type Package struct {
	Artifact              string `yaml:"artifact"`
	Individually          bool   `yaml:"individually"`
	ArtifactDirectoryName string `yaml:"artifactDirectoryName"`
}

// Function is the configuration of a single function. Read-only to the packager.
type Function struct {
	Key        string            `yaml:"-"`
	Name       string            `yaml:"name"`
	Handler    string            `yaml:"handler"`
	Runtime    string            `yaml:"runtime"`
	MemorySize int               `yaml:"memorySize"`
	Timeout    int               `yaml:"timeout"`
	Tags       map[string]string `yaml:"tags"`
	Package    Package           `yaml:"package"`
}

// Settings are the resolved runtime settings of a function
type Settings struct {
	MemorySize int
	Timeout    int
	Runtime    string
}

// Load reads the service definition at filename
func Load(filename string) (*Service, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to read service file %s: %w", filename, err)
	}

	dir, err := filepath.Abs(filepath.Dir(filename))
	if err != nil {
		return nil, fmt.Errorf("failed to resolve service path: %w", err)
	}

	return Parse(data, dir)
}

// Parse decodes a service definition rooted at dir
func Parse(data []byte, dir string) (*Service, error) {
	var svc Service
	if err := yaml.Unmarshal(data, &svc); err != nil {
		return nil, fmt.Errorf("failed to parse service file: %w", err)
	}
	if svc.Service == "" {
		return nil, fmt.Errorf("service name is required")
	}

	svc.Path = dir
	if svc.Provider.Stage == "" {
		svc.Provider.Stage = DefaultStage
	}
	for key, fn := range svc.Functions {
		fn.Key = key
		svc.Functions[key] = fn
	}

	return &svc, nil
}

// Stage returns the deployment stage
func (s *Service) Stage() string {
	return s.Provider.Stage
}

// StackName returns the CloudFormation stack name, {service}-{stage}
func (s *Service) StackName() string {
	return fmt.Sprintf("%s-%s", s.Service, s.Stage())
}

// FunctionKeys returns function keys in sorted order
func (s *Service) FunctionKeys() []string {
	return slices.Sorted(maps.Keys(s.Functions))
}

// Function returns the function registered under key
func (s *Service) Function(key string) (Function, error) {
	fn, ok := s.Functions[key]
	if !ok {
		return Function{}, fmt.Errorf("%w: %s", errors.ErrFunctionNotFound, key)
	}
	return fn, nil
}

// FunctionName returns the deployed name of fn, defaulting to {service}-{stage}-{key}
func (s *Service) FunctionName(fn Function) string {
	if fn.Name != "" {
		return fn.Name
	}
	return fmt.Sprintf("%s-%s-%s", s.Service, s.Stage(), fn.Key)
}

// Resolve returns memory, timeout and runtime with function settings taking
// precedence over provider settings, then the built-in defaults.
func (s *Service) Resolve(fn Function) Settings {
	return Settings{
		MemorySize: firstPositive(fn.MemorySize, s.Provider.MemorySize, DefaultMemorySize),
		Timeout:    firstPositive(fn.Timeout, s.Provider.Timeout, DefaultTimeout),
		Runtime:    firstNonEmpty(fn.Runtime, s.Provider.Runtime, DefaultRuntime),
	}
}

// ArtifactPath returns the location of the artifact deployed for fn.
//
// An explicit function artifact wins, then the service artifact. Otherwise the
// packaged zip under .serverless is used: the per-function zip when packaging
// individually, the service zip otherwise.
func (s *Service) ArtifactPath(fn Function) string {
	if artifact := firstNonEmpty(fn.Package.Artifact, s.Package.Artifact); artifact != "" {
		if IsS3URI(artifact) || filepath.IsAbs(artifact) {
			return artifact
		}
		return s.join(artifact)
	}

	name := s.Service + ".zip"
	if s.Package.Individually || fn.Package.Individually {
		name = fn.Key + ".zip"
	}
	return s.join(packageDir, name)
}

// join resolves elems against the service path, which may itself be an s3:// prefix
func (s *Service) join(elems ...string) string {
	if IsS3URI(s.Path) {
		rest := path.Join(append([]string{strings.TrimPrefix(s.Path, "s3://")}, elems...)...)
		return "s3://" + rest
	}
	return filepath.Join(append([]string{s.Path}, elems...)...)
}

// ArtifactDirectoryName returns the S3 prefix artifacts are uploaded under
func (s *Service) ArtifactDirectoryName() string {
	if s.Package.ArtifactDirectoryName != "" {
		return strings.TrimRight(s.Package.ArtifactDirectoryName, "/")
	}
	return fmt.Sprintf("serverless/%s/%s", s.Service, s.Stage())
}

// BucketKey returns the S3 key of the artifact for fn in the deployment bucket
func (s *Service) BucketKey(fn Function) string {
	return s.ArtifactDirectoryName() + "/" + path.Base(filepath.ToSlash(s.ArtifactPath(fn)))
}

// IsS3URI reports whether location is an s3://bucket/key reference
func IsS3URI(location string) bool {
	return strings.HasPrefix(location, "s3://")
}

func firstPositive(values ...int) int {
	for _, v := range values {
		if v > 0 {
			return v
		}
	}
	return 0
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
