package awsprovider

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/apigateway"
	"github.com/aws/aws-sdk-go-v2/service/apigateway/types"

	"github.com/kholmgren/faas-gateway-deployer/internal/provider"
)

type APIGatewayAPI interface {
	PutRestApi(ctx context.Context, in *apigateway.PutRestApiInput, optFns ...func(*apigateway.Options)) (*apigateway.PutRestApiOutput, error)
	CreateDeployment(ctx context.Context, in *apigateway.CreateDeploymentInput, optFns ...func(*apigateway.Options)) (*apigateway.CreateDeploymentOutput, error)
}

// Gateway implements provider.GatewayClient for REST APIs.
type Gateway struct {
	API APIGatewayAPI
}

func NewGateway(cfg aws.Config) *Gateway {
	return &Gateway{API: apigateway.NewFromConfig(cfg)}
}

// PublishRoutingDocument replaces the API's definition with document. Any
// route missing from document is removed.
func (g *Gateway) PublishRoutingDocument(ctx context.Context, gatewayID string, document []byte) error {
	out, err := g.API.PutRestApi(ctx, &apigateway.PutRestApiInput{
		RestApiId:      aws.String(gatewayID),
		Mode:           types.PutModeOverwrite,
		FailOnWarnings: true,
		Body:           document,
	})
	if err != nil {
		var bad *types.BadRequestException
		if errors.As(err, &bad) {
			return fmt.Errorf("%w: %w", provider.ErrValidationWarning, err)
		}
		return classifyGateway(err)
	}
	if len(out.Warnings) > 0 {
		return fmt.Errorf("%w: %s", provider.ErrValidationWarning, strings.Join(out.Warnings, "; "))
	}
	return nil
}

func (g *Gateway) CreateDeploymentStage(ctx context.Context, gatewayID, stage string) error {
	_, err := g.API.CreateDeployment(ctx, &apigateway.CreateDeploymentInput{
		RestApiId: aws.String(gatewayID),
		StageName: aws.String(stage),
	})
	return classifyGateway(err)
}

func classifyGateway(err error) error {
	if err == nil {
		return nil
	}

	var conflict *types.ConflictException
	if errors.As(err, &conflict) {
		return fmt.Errorf("%w: %w", provider.ErrConflict, err)
	}
	var notFound *types.NotFoundException
	if errors.As(err, &notFound) {
		return fmt.Errorf("%w: %w", provider.ErrNotFound, err)
	}
	return err
}
