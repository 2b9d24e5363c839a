package stackstate

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/cloudformation"
	"github.com/aws/smithy-go"
)

// Inspector reads outputs of a deployed stack.
type Inspector interface {
	// GetOutput returns the value of the named output. ok is false when the
	// stack or the output does not exist.
	GetOutput(ctx context.Context, stackName, key string) (value string, ok bool, err error)
}

// CloudFormationAPI is the subset of the CloudFormation client used here.
type CloudFormationAPI interface {
	DescribeStacks(ctx context.Context, params *cloudformation.DescribeStacksInput, optFns ...func(*cloudformation.Options)) (*cloudformation.DescribeStacksOutput, error)
}

// CloudFormationInspector reads stack outputs using DescribeStacks.
type CloudFormationInspector struct {
	client CloudFormationAPI
}

// NewCloudFormationInspector creates an inspector backed by client.
func NewCloudFormationInspector(client CloudFormationAPI) *CloudFormationInspector {
	return &CloudFormationInspector{client: client}
}

// GetOutput implements Inspector
func (c *CloudFormationInspector) GetOutput(ctx context.Context, stackName, key string) (string, bool, error) {
	result, err := c.client.DescribeStacks(ctx, &cloudformation.DescribeStacksInput{
		StackName: aws.String(stackName),
	})
	if err != nil {
		if isStackNotFound(err) {
			return "", false, nil
		}
		return "", false, fmt.Errorf("failed to describe stack %s: %w", stackName, err)
	}

	if len(result.Stacks) == 0 {
		return "", false, nil
	}

	for _, output := range result.Stacks[0].Outputs {
		if aws.ToString(output.OutputKey) == key {
			return aws.ToString(output.OutputValue), true, nil
		}
	}
	return "", false, nil
}

func isStackNotFound(err error) bool {
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		return apiErr.ErrorCode() == "ValidationError" && strings.Contains(apiErr.ErrorMessage(), "does not exist")
	}
	return false
}
