package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/savaki/sc-packager/internal/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const serviceYAML = `
service: orders
provider:
  name: aws
  stage: prod
  runtime: nodejs18.x
  memorySize: 512
  deploymentBucket: deploy-bucket
  scProductId: prod-abc123
  scProductVersion: v3
  tags:
    team: payments
functions:
  create:
    handler: handler.create
    timeout: 30
  list:
    name: orders-list-fn
    handler: handler.list
    memorySize: 256
    runtime: python3.12
    package:
      artifact: dist/list.zip
`

func TestParse(t *testing.T) {
	svc, err := Parse([]byte(serviceYAML), "/srv/orders")
	require.NoError(t, err)

	assert.Equal(t, "orders", svc.Service)
	assert.Equal(t, "prod", svc.Stage())
	assert.Equal(t, "orders-prod", svc.StackName())
	assert.Equal(t, []string{"create", "list"}, svc.FunctionKeys())
	assert.Equal(t, "deploy-bucket", svc.Provider.DeploymentBucket)
	assert.Equal(t, map[string]string{"team": "payments"}, svc.Provider.Tags)

	fn, err := svc.Function("create")
	require.NoError(t, err)
	assert.Equal(t, "create", fn.Key)
	assert.Equal(t, "orders-prod-create", svc.FunctionName(fn))

	fn, err = svc.Function("list")
	require.NoError(t, err)
	assert.Equal(t, "orders-list-fn", svc.FunctionName(fn))

	_, err = svc.Function("missing")
	assert.ErrorIs(t, err, errors.ErrFunctionNotFound)
}

func TestParse_Errors(t *testing.T) {
	_, err := Parse([]byte("provider: {}"), "/tmp")
	assert.Error(t, err)

	_, err = Parse([]byte("service: [unterminated"), "/tmp")
	assert.Error(t, err)
}

func TestParse_DefaultStage(t *testing.T) {
	svc, err := Parse([]byte("service: api"), "/tmp")
	require.NoError(t, err)
	assert.Equal(t, DefaultStage, svc.Stage())
	assert.Equal(t, "api-dev", svc.StackName())
}

func TestResolve(t *testing.T) {
	tests := []struct {
		name     string
		provider Provider
		fn       Function
		want     Settings
	}{
		{
			name: "function overrides provider",
			provider: Provider{
				MemorySize: 512,
				Timeout:    20,
				Runtime:    "nodejs18.x",
			},
			fn:   Function{MemorySize: 256, Timeout: 3, Runtime: "python3.12"},
			want: Settings{MemorySize: 256, Timeout: 3, Runtime: "python3.12"},
		},
		{
			name:     "provider defaults",
			provider: Provider{MemorySize: 512, Timeout: 20, Runtime: "nodejs18.x"},
			fn:       Function{},
			want:     Settings{MemorySize: 512, Timeout: 20, Runtime: "nodejs18.x"},
		},
		{
			name: "hard coded fallback",
			want: Settings{MemorySize: DefaultMemorySize, Timeout: DefaultTimeout, Runtime: DefaultRuntime},
		},
		{
			name:     "zero values fall through",
			provider: Provider{Timeout: 9},
			fn:       Function{MemorySize: 0, Timeout: 0},
			want:     Settings{MemorySize: 1024, Timeout: 9, Runtime: "nodejs4.3"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := &Service{Service: "svc", Provider: tt.provider}
			assert.Equal(t, tt.want, svc.Resolve(tt.fn))
		})
	}
}

func TestArtifactPath(t *testing.T) {
	tests := []struct {
		name    string
		svcPkg  Package
		fn      Function
		want    string
		wantKey string
	}{
		{
			name:    "service zip",
			fn:      Function{Key: "hello"},
			want:    "/srv/orders/.serverless/orders.zip",
			wantKey: "serverless/orders/dev/orders.zip",
		},
		{
			name:    "individually packaged",
			svcPkg:  Package{Individually: true},
			fn:      Function{Key: "hello"},
			want:    "/srv/orders/.serverless/hello.zip",
			wantKey: "serverless/orders/dev/hello.zip",
		},
		{
			name:    "function individually packaged",
			fn:      Function{Key: "hello", Package: Package{Individually: true}},
			want:    "/srv/orders/.serverless/hello.zip",
			wantKey: "serverless/orders/dev/hello.zip",
		},
		{
			name:    "function artifact relative",
			svcPkg:  Package{Artifact: "build/all.zip"},
			fn:      Function{Key: "hello", Package: Package{Artifact: "build/hello.zip"}},
			want:    "/srv/orders/build/hello.zip",
			wantKey: "serverless/orders/dev/hello.zip",
		},
		{
			name:    "service artifact absolute",
			svcPkg:  Package{Artifact: "/tmp/all.zip", ArtifactDirectoryName: "custom/prefix/"},
			fn:      Function{Key: "hello"},
			want:    "/tmp/all.zip",
			wantKey: "custom/prefix/all.zip",
		},
		{
			name:    "s3 artifact",
			fn:      Function{Key: "hello", Package: Package{Artifact: "s3://builds/orders/hello.zip"}},
			want:    "s3://builds/orders/hello.zip",
			wantKey: "serverless/orders/dev/hello.zip",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := &Service{
				Service:  "orders",
				Provider: Provider{Stage: "dev"},
				Package:  tt.svcPkg,
				Path:     "/srv/orders",
			}
			assert.Equal(t, tt.want, svc.ArtifactPath(tt.fn))
			assert.Equal(t, tt.wantKey, svc.BucketKey(tt.fn))
		})
	}
}

func TestArtifactPathS3Base(t *testing.T) {
	svc := &Service{
		Service:  "orders",
		Provider: Provider{Stage: "dev"},
		Path:     "s3://builds/orders",
	}

	assert.Equal(t, "s3://builds/orders/.serverless/orders.zip", svc.ArtifactPath(Function{Key: "hello"}))

	svc.Package.Artifact = "dist/bundle.zip"
	assert.Equal(t, "s3://builds/orders/dist/bundle.zip", svc.ArtifactPath(Function{Key: "hello"}))
	assert.Equal(t, "serverless/orders/dev/bundle.zip", svc.BucketKey(Function{Key: "hello"}))
}

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	filename := filepath.Join(dir, "serverless.yml")
	require.NoError(t, os.WriteFile(filename, []byte(serviceYAML), 0o644))

	svc, err := Load(filename)
	require.NoError(t, err)

	fn, err := svc.Function("create")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(svc.Path, ".serverless", "orders.zip"), svc.ArtifactPath(fn))

	_, err = Load(filepath.Join(dir, "missing.yml"))
	assert.Error(t, err)
}
