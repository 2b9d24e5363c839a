package di

import (
	"context"
	"os"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/cloudformation"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/savaki/sc-packager/internal/artifact"
	"github.com/savaki/sc-packager/internal/stackstate"
)

func ProvideAWSConfig(ctx context.Context) (aws.Config, error) {
	return config.LoadDefaultConfig(ctx)
}

func ProvideCloudFormation(config aws.Config) *cloudformation.Client {
	return cloudformation.NewFromConfig(config)
}

func ProvideS3Client(config aws.Config) *s3.Client {
	return s3.NewFromConfig(config)
}

// ProvideDynamoDB honors DYNAMODB_ENDPOINT so DynamoDB Local can stand in for AWS
func ProvideDynamoDB(config aws.Config) *dynamodb.Client {
	return dynamodb.NewFromConfig(config, func(o *dynamodb.Options) {
		if endpoint := os.Getenv("DYNAMODB_ENDPOINT"); endpoint != "" {
			o.BaseEndpoint = aws.String(endpoint)
		}
	})
}

// ProvideInspector reads stack outputs from CloudFormation
func ProvideInspector(client *cloudformation.Client) stackstate.Inspector {
	return stackstate.NewCloudFormationInspector(client)
}

func ProvideProbe(inspector stackstate.Inspector) *stackstate.Probe {
	return stackstate.NewProbe(inspector)
}

// ProvideArtifactStore reads artifacts from disk, or from S3 for s3:// locations
func ProvideArtifactStore(client *s3.Client) artifact.Store {
	return artifact.NewMux(artifact.NewS3Store(client))
}
