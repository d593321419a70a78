// Package dynamodb implements the repository ports on a single-table
// DynamoDB layout: PK "PROJECT#<id>", SK "<ENTITY>#<id>".
package dynamodb

import (
	"context"
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/aws/smithy-go"

	"canvas-backend/domain/core/valueobjects"
	pkgerrors "canvas-backend/pkg/errors"
)

// Client wraps the DynamoDB client with the table it operates on.
type Client struct {
	db    *dynamodb.Client
	table string
}

// NewClient creates a client against the given table.
func NewClient(cfg aws.Config, table string) *Client {
	return &Client{
		db:    dynamodb.NewFromConfig(cfg),
		table: table,
	}
}

// NewClientFromEnv resolves AWS configuration from the environment.
func NewClientFromEnv(ctx context.Context, table string) (*Client, error) {
	cfg, err := awsconfig.LoadDefaultConfig(ctx)
	if err != nil {
		return nil, pkgerrors.Wrap(err, "failed to load AWS config")
	}
	return NewClient(cfg, table), nil
}

func projectPK(projectID valueobjects.ProjectID) string {
	return fmt.Sprintf("PROJECT#%s", projectID.String())
}

// mapError translates DynamoDB errors into the application taxonomy.
func mapError(err error, op string) error {
	if err == nil {
		return nil
	}

	var notFound *types.ResourceNotFoundException
	if errors.As(err, &notFound) {
		return pkgerrors.NewNotFound(op)
	}
	var conditionFailed *types.ConditionalCheckFailedException
	if errors.As(err, &conditionFailed) {
		return pkgerrors.NewConflict(op + ": condition failed")
	}
	var throttled *types.ProvisionedThroughputExceededException
	if errors.As(err, &throttled) {
		return pkgerrors.NewPersistence(op+": throughput exceeded", err)
	}

	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		return pkgerrors.NewPersistence(fmt.Sprintf("%s: %s", op, apiErr.ErrorCode()), err)
	}
	return pkgerrors.NewPersistence(op, err)
}
