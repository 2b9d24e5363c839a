package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path"
	"strings"

	"github.com/aws/aws-lambda-go/lambda"
	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/rs/zerolog"
	"github.com/savaki/sc-packager/internal/artifact"
	"github.com/savaki/sc-packager/internal/config"
	"github.com/savaki/sc-packager/internal/dao/compiledao"
	"github.com/savaki/sc-packager/internal/di"
	"github.com/savaki/sc-packager/internal/packager"
	"github.com/savaki/sc-packager/internal/reconciler"
	"github.com/savaki/sc-packager/internal/services"
	"github.com/savaki/sc-packager/internal/stackstate"
	"github.com/savaki/sc-packager/internal/template"
	"github.com/urfave/cli/v2"
)

// Uploader is the subset of the S3 client used to publish templates
type Uploader interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

type Handler struct {
	uploader Uploader
	probe    reconciler.StateProbe
	store    artifact.Store
	config   *services.Config
	history  packager.History
}

// CompileInput identifies the service definition to compile. Artifacts
// referenced relative to the service definition are read from the same bucket.
type CompileInput struct {
	Bucket          string `json:"bucket"`
	Key             string `json:"key"`
	Stage           string `json:"stage,omitempty"`
	StackName       string `json:"stack_name,omitempty"`
	BaseTemplateKey string `json:"base_template_key,omitempty"`
	TemplateKey     string `json:"template_key,omitempty"`
}

type FunctionResult struct {
	Function  string `json:"function"`
	LogicalID string `json:"logical_id"`
	Branch    string `json:"branch"`
	Digest    string `json:"digest"`
}

type CompileResult struct {
	Bucket      string           `json:"bucket"`
	TemplateKey string           `json:"template_key"`
	StackName   string           `json:"stack_name"`
	Functions   []FunctionResult `json:"functions"`
}

func NewHandler(container di.Container) (*Handler, error) {
	var h *Handler
	err := container.Invoke(func(client *s3.Client, probe *stackstate.Probe, store artifact.Store, cfg *services.Config, dao *compiledao.DAO) {
		h = &Handler{
			uploader: client,
			probe:    probe,
			store:    store,
			config:   cfg,
		}
		if dao != nil {
			h.history = dao
		}
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create handler: %w", err)
	}
	return h, nil
}

// templateKey defaults to packaged-{stage}.json next to the service definition
func templateKey(input *CompileInput, stage string) string {
	if input.TemplateKey != "" {
		return input.TemplateKey
	}
	return path.Join(path.Dir(input.Key), fmt.Sprintf("packaged-%s.json", stage))
}

func (h *Handler) HandleCompile(ctx context.Context, input *CompileInput) (*CompileResult, error) {
	if input.Bucket == "" || input.Key == "" {
		return nil, fmt.Errorf("bucket and key are required")
	}

	logger := zerolog.Ctx(ctx).With().Str("bucket", input.Bucket).Str("key", input.Key).Logger()
	ctx = logger.WithContext(ctx)

	data, err := h.read(ctx, input.Bucket, input.Key)
	if err != nil {
		return nil, err
	}

	service, err := config.Parse(data, "s3://"+path.Join(input.Bucket, path.Dir(input.Key)))
	if err != nil {
		return nil, err
	}
	if input.Stage != "" {
		service.Provider.Stage = input.Stage
	}

	var base *template.Template
	if input.BaseTemplateKey != "" {
		raw, err := h.read(ctx, input.Bucket, input.BaseTemplateKey)
		if err != nil {
			return nil, err
		}
		if base, err = template.Parse(raw); err != nil {
			return nil, err
		}
	}

	opts := []packager.Option{
		packager.WithConfig(h.config),
		packager.WithStackName(input.StackName),
	}
	if h.history != nil {
		opts = append(opts, packager.WithHistory(h.history))
	}

	output, err := packager.New(h.probe, h.store, opts...).Package(ctx, service, base)
	if err != nil {
		return nil, err
	}

	body, err := output.Template.Encode()
	if err != nil {
		return nil, err
	}

	key := templateKey(input, service.Stage())
	_, err = h.uploader.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(input.Bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(body),
		ContentType: aws.String("application/json"),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to upload template to s3://%s/%s: %w", input.Bucket, key, err)
	}

	result := &CompileResult{
		Bucket:      input.Bucket,
		TemplateKey: key,
		StackName:   output.StackName,
	}
	for _, r := range output.Results {
		result.Functions = append(result.Functions, FunctionResult{
			Function:  r.FunctionKey,
			LogicalID: r.LogicalID,
			Branch:    string(r.Decision.Branch),
			Digest:    r.Decision.Digest,
		})
	}

	logger.Info().
		Str("template_key", key).
		Int("functions", len(result.Functions)).
		Msg("Uploaded packaged template")

	return result, nil
}

func (h *Handler) read(ctx context.Context, bucket, key string) ([]byte, error) {
	rc, err := h.store.Open(ctx, "s3://"+bucket+"/"+strings.TrimPrefix(key, "/"))
	if err != nil {
		return nil, err
	}
	defer rc.Close()

	return io.ReadAll(rc)
}

func main() {
	logger := di.ProvideLogger().With().Str("lambda", "compile").Logger()
	ctx := logger.WithContext(context.Background())

	stage := os.Getenv("ENV")
	if stage == "" {
		stage = config.DefaultStage
	}

	container, err := di.New(stage, di.WithContext(ctx))
	if err != nil {
		logger.Error().Err(err).Msg("Failed to create container")
		os.Exit(1)
	}

	handler, err := NewHandler(container)
	if err != nil {
		logger.Error().Err(err).Msg("Failed to create handler")
		os.Exit(1)
	}

	if os.Getenv("AWS_LAMBDA_RUNTIME_API") != "" {
		// Wrap handler to inject logger into context
		wrappedHandler := func(ctx context.Context, input *CompileInput) (*CompileResult, error) {
			ctx = logger.WithContext(ctx)
			return handler.HandleCompile(ctx, input)
		}
		lambda.Start(wrappedHandler)
		return
	}

	app := &cli.App{
		Name:  "compile",
		Usage: "Compile a service definition stored in S3 and upload the template",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:     "bucket",
				Usage:    "Bucket holding the service definition",
				Required: true,
			},
			&cli.StringFlag{
				Name:     "key",
				Usage:    "Key of the service definition",
				Required: true,
			},
			&cli.StringFlag{
				Name:  "stage",
				Usage: "Deployment stage; overrides provider.stage",
			},
			&cli.StringFlag{
				Name:  "stack-name",
				Usage: "Stack inspected for prior versions",
			},
			&cli.StringFlag{
				Name:  "base-template-key",
				Usage: "Key of an existing template to extend",
			},
			&cli.StringFlag{
				Name:  "template-key",
				Usage: "Key the packaged template is written to",
			},
		},
		Action: func(c *cli.Context) error {
			input := &CompileInput{
				Bucket:          c.String("bucket"),
				Key:             c.String("key"),
				Stage:           c.String("stage"),
				StackName:       c.String("stack-name"),
				BaseTemplateKey: c.String("base-template-key"),
				TemplateKey:     c.String("template-key"),
			}

			result, err := handler.HandleCompile(c.Context, input)
			if err != nil {
				return err
			}

			encoder := json.NewEncoder(os.Stdout)
			encoder.SetIndent("", "  ")
			return encoder.Encode(result)
		},
	}

	if err := app.RunContext(ctx, os.Args); err != nil {
		logger.Error().Err(err).Msg("Command failed")
		os.Exit(1)
	}
}
