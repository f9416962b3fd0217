package awsprovider

import (
	"context"
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/lambda"
	"github.com/aws/aws-sdk-go-v2/service/lambda/types"

	"github.com/kholmgren/faas-gateway-deployer/internal/provider"
)

type LambdaAPI interface {
	CreateFunction(ctx context.Context, in *lambda.CreateFunctionInput, optFns ...func(*lambda.Options)) (*lambda.CreateFunctionOutput, error)
	UpdateFunctionConfiguration(ctx context.Context, in *lambda.UpdateFunctionConfigurationInput, optFns ...func(*lambda.Options)) (*lambda.UpdateFunctionConfigurationOutput, error)
	UpdateFunctionCode(ctx context.Context, in *lambda.UpdateFunctionCodeInput, optFns ...func(*lambda.Options)) (*lambda.UpdateFunctionCodeOutput, error)
	GetFunctionConfiguration(ctx context.Context, in *lambda.GetFunctionConfigurationInput, optFns ...func(*lambda.Options)) (*lambda.GetFunctionConfigurationOutput, error)
	AddPermission(ctx context.Context, in *lambda.AddPermissionInput, optFns ...func(*lambda.Options)) (*lambda.AddPermissionOutput, error)
	RemovePermission(ctx context.Context, in *lambda.RemovePermissionInput, optFns ...func(*lambda.Options)) (*lambda.RemovePermissionOutput, error)
}

// Lambda implements provider.FunctionClient, provider.PermissionClient and
// provider.StatusReader.
type Lambda struct {
	API LambdaAPI
}

func NewLambda(cfg aws.Config) *Lambda {
	return &Lambda{API: lambda.NewFromConfig(cfg)}
}

func (l *Lambda) CreateFunction(ctx context.Context, fn provider.FunctionSpec) error {
	_, err := l.API.CreateFunction(ctx, &lambda.CreateFunctionInput{
		FunctionName: aws.String(fn.Name),
		Role:         aws.String(fn.Role),
		Handler:      aws.String(fn.Handler),
		Runtime:      types.Runtime(fn.Runtime),
		Code:         &types.FunctionCode{ZipFile: fn.Code},
	})
	return classifyLambda(err)
}

func (l *Lambda) UpdateFunctionConfig(ctx context.Context, fn provider.FunctionSpec) error {
	_, err := l.API.UpdateFunctionConfiguration(ctx, &lambda.UpdateFunctionConfigurationInput{
		FunctionName: aws.String(fn.Name),
		Role:         aws.String(fn.Role),
		Handler:      aws.String(fn.Handler),
		Runtime:      types.Runtime(fn.Runtime),
	})
	return classifyLambda(err)
}

func (l *Lambda) UpdateFunctionCode(ctx context.Context, name string, code []byte) error {
	_, err := l.API.UpdateFunctionCode(ctx, &lambda.UpdateFunctionCodeInput{
		FunctionName: aws.String(name),
		ZipFile:      code,
	})
	return classifyLambda(err)
}

func (l *Lambda) RemovePermission(ctx context.Context, function, statementID string) error {
	_, err := l.API.RemovePermission(ctx, &lambda.RemovePermissionInput{
		FunctionName: aws.String(function),
		StatementId:  aws.String(statementID),
	})
	return classifyLambda(err)
}

func (l *Lambda) AddPermission(ctx context.Context, g provider.Grant) error {
	_, err := l.API.AddPermission(ctx, &lambda.AddPermissionInput{
		FunctionName: aws.String(g.Function),
		StatementId:  aws.String(g.StatementID),
		Action:       aws.String(g.Action),
		Principal:    aws.String(g.Principal),
		SourceArn:    aws.String(g.SourceARN),
	})
	return classifyLambda(err)
}

// FunctionStatus treats a pending function or an in-progress update as not
// yet ready for another mutation.
func (l *Lambda) FunctionStatus(ctx context.Context, name string) (provider.FunctionStatus, string, error) {
	out, err := l.API.GetFunctionConfiguration(ctx, &lambda.GetFunctionConfigurationInput{
		FunctionName: aws.String(name),
	})
	if err != nil {
		return 0, "", classifyLambda(err)
	}

	switch {
	case out.State == types.StateFailed:
		return provider.StatusFailed, aws.ToString(out.StateReason), nil
	case out.LastUpdateStatus == types.LastUpdateStatusFailed:
		return provider.StatusFailed, aws.ToString(out.LastUpdateStatusReason), nil
	case out.State == types.StatePending:
		return provider.StatusPending, aws.ToString(out.StateReason), nil
	case out.LastUpdateStatus == types.LastUpdateStatusInProgress:
		return provider.StatusPending, aws.ToString(out.LastUpdateStatusReason), nil
	}
	return provider.StatusReady, "", nil
}

func classifyLambda(err error) error {
	if err == nil {
		return nil
	}

	var conflict *types.ResourceConflictException
	if errors.As(err, &conflict) {
		return fmt.Errorf("%w: %w", provider.ErrConflict, err)
	}
	var notFound *types.ResourceNotFoundException
	if errors.As(err, &notFound) {
		return fmt.Errorf("%w: %w", provider.ErrNotFound, err)
	}
	return err
}
