package awsprovider

import (
	"context"
	"errors"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/apigateway"
	agtypes "github.com/aws/aws-sdk-go-v2/service/apigateway/types"
	"github.com/aws/aws-sdk-go-v2/service/lambda"
	"github.com/aws/aws-sdk-go-v2/service/lambda/types"
	"github.com/aws/aws-sdk-go-v2/service/sts"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kholmgren/faas-gateway-deployer/internal/provider"
)

type fakeLambda struct {
	err error

	create *lambda.CreateFunctionInput
	config *lambda.UpdateFunctionConfigurationInput
	code   *lambda.UpdateFunctionCodeInput
	add    *lambda.AddPermissionInput
	remove *lambda.RemovePermissionInput
	state  *lambda.GetFunctionConfigurationOutput
}

func (f *fakeLambda) CreateFunction(_ context.Context, in *lambda.CreateFunctionInput, _ ...func(*lambda.Options)) (*lambda.CreateFunctionOutput, error) {
	f.create = in
	return &lambda.CreateFunctionOutput{}, f.err
}

func (f *fakeLambda) UpdateFunctionConfiguration(_ context.Context, in *lambda.UpdateFunctionConfigurationInput, _ ...func(*lambda.Options)) (*lambda.UpdateFunctionConfigurationOutput, error) {
	f.config = in
	return &lambda.UpdateFunctionConfigurationOutput{}, f.err
}

func (f *fakeLambda) UpdateFunctionCode(_ context.Context, in *lambda.UpdateFunctionCodeInput, _ ...func(*lambda.Options)) (*lambda.UpdateFunctionCodeOutput, error) {
	f.code = in
	return &lambda.UpdateFunctionCodeOutput{}, f.err
}

func (f *fakeLambda) GetFunctionConfiguration(_ context.Context, _ *lambda.GetFunctionConfigurationInput, _ ...func(*lambda.Options)) (*lambda.GetFunctionConfigurationOutput, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.state, nil
}

func (f *fakeLambda) AddPermission(_ context.Context, in *lambda.AddPermissionInput, _ ...func(*lambda.Options)) (*lambda.AddPermissionOutput, error) {
	f.add = in
	return &lambda.AddPermissionOutput{}, f.err
}

func (f *fakeLambda) RemovePermission(_ context.Context, in *lambda.RemovePermissionInput, _ ...func(*lambda.Options)) (*lambda.RemovePermissionOutput, error) {
	f.remove = in
	return &lambda.RemovePermissionOutput{}, f.err
}

func TestLambda_CreateFunctionInput(t *testing.T) {
	api := &fakeLambda{}
	l := &Lambda{API: api}

	err := l.CreateFunction(context.Background(), provider.FunctionSpec{
		Name:    "itemsFn",
		Role:    "arn:aws:iam::1:role/r",
		Handler: "items.lambda_handler",
		Runtime: "python3.9",
		Code:    []byte("zip"),
	})
	require.NoError(t, err)
	assert.Equal(t, "itemsFn", aws.ToString(api.create.FunctionName))
	assert.Equal(t, "arn:aws:iam::1:role/r", aws.ToString(api.create.Role))
	assert.Equal(t, "items.lambda_handler", aws.ToString(api.create.Handler))
	assert.Equal(t, types.Runtime("python3.9"), api.create.Runtime)
	assert.Equal(t, []byte("zip"), api.create.Code.ZipFile)
}

func TestLambda_AddPermissionInput(t *testing.T) {
	api := &fakeLambda{}
	l := &Lambda{API: api}

	g := provider.NewGrant("itemsFn", "arn:aws:execute-api:us-west-2:1:api1/*/GET/items")
	require.NoError(t, l.AddPermission(context.Background(), g))
	assert.Equal(t, "itemsFn-policy", aws.ToString(api.add.StatementId))
	assert.Equal(t, "lambda:InvokeFunction", aws.ToString(api.add.Action))
	assert.Equal(t, "apigateway.amazonaws.com", aws.ToString(api.add.Principal))
	assert.Equal(t, g.SourceARN, aws.ToString(api.add.SourceArn))

	require.NoError(t, l.RemovePermission(context.Background(), "itemsFn", "itemsFn-policy"))
	assert.Equal(t, "itemsFn-policy", aws.ToString(api.remove.StatementId))
}

func TestLambda_ClassifiesErrors(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want error
	}{
		{name: "conflict", err: &types.ResourceConflictException{Message: aws.String("Function already exist")}, want: provider.ErrConflict},
		{name: "not found", err: &types.ResourceNotFoundException{Message: aws.String("No policy is found")}, want: provider.ErrNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l := &Lambda{API: &fakeLambda{err: tt.err}}

			err := l.CreateFunction(context.Background(), provider.FunctionSpec{Name: "f"})
			assert.True(t, errors.Is(err, tt.want))
			err = l.RemovePermission(context.Background(), "f", "f-policy")
			assert.True(t, errors.Is(err, tt.want))
		})
	}

	t.Run("other errors pass through", func(t *testing.T) {
		denied := &types.InvalidParameterValueException{Message: aws.String("bad role")}
		err := (&Lambda{API: &fakeLambda{err: denied}}).UpdateFunctionCode(context.Background(), "f", nil)
		require.Error(t, err)
		assert.False(t, errors.Is(err, provider.ErrConflict))
		assert.False(t, errors.Is(err, provider.ErrNotFound))
	})
}

func TestLambda_FunctionStatus(t *testing.T) {
	tests := []struct {
		name  string
		state *lambda.GetFunctionConfigurationOutput
		want  provider.FunctionStatus
	}{
		{name: "active", state: &lambda.GetFunctionConfigurationOutput{State: types.StateActive, LastUpdateStatus: types.LastUpdateStatusSuccessful}, want: provider.StatusReady},
		{name: "pending", state: &lambda.GetFunctionConfigurationOutput{State: types.StatePending}, want: provider.StatusPending},
		{name: "updating", state: &lambda.GetFunctionConfigurationOutput{State: types.StateActive, LastUpdateStatus: types.LastUpdateStatusInProgress}, want: provider.StatusPending},
		{name: "update failed", state: &lambda.GetFunctionConfigurationOutput{State: types.StateActive, LastUpdateStatus: types.LastUpdateStatusFailed, LastUpdateStatusReason: aws.String("bad zip")}, want: provider.StatusFailed},
		{name: "failed", state: &lambda.GetFunctionConfigurationOutput{State: types.StateFailed}, want: provider.StatusFailed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l := &Lambda{API: &fakeLambda{state: tt.state}}
			got, _, err := l.FunctionStatus(context.Background(), "f")
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

type fakeGateway struct {
	putErr   error
	warnings []string

	put    *apigateway.PutRestApiInput
	deploy *apigateway.CreateDeploymentInput
}

func (f *fakeGateway) PutRestApi(_ context.Context, in *apigateway.PutRestApiInput, _ ...func(*apigateway.Options)) (*apigateway.PutRestApiOutput, error) {
	f.put = in
	if f.putErr != nil {
		return nil, f.putErr
	}
	return &apigateway.PutRestApiOutput{Warnings: f.warnings}, nil
}

func (f *fakeGateway) CreateDeployment(_ context.Context, in *apigateway.CreateDeploymentInput, _ ...func(*apigateway.Options)) (*apigateway.CreateDeploymentOutput, error) {
	f.deploy = in
	return &apigateway.CreateDeploymentOutput{}, nil
}

func TestGateway_Publish(t *testing.T) {
	api := &fakeGateway{}
	g := &Gateway{API: api}

	require.NoError(t, g.PublishRoutingDocument(context.Background(), "api1", []byte(`{"swagger":"2.0"}`)))
	assert.Equal(t, "api1", aws.ToString(api.put.RestApiId))
	assert.Equal(t, agtypes.PutModeOverwrite, api.put.Mode)
	assert.True(t, api.put.FailOnWarnings)
	assert.Equal(t, `{"swagger":"2.0"}`, string(api.put.Body))

	require.NoError(t, g.CreateDeploymentStage(context.Background(), "api1", "dev"))
	assert.Equal(t, "dev", aws.ToString(api.deploy.StageName))
}

func TestGateway_PublishWarnings(t *testing.T) {
	t.Run("rejected", func(t *testing.T) {
		g := &Gateway{API: &fakeGateway{putErr: &agtypes.BadRequestException{Message: aws.String("Warnings found during import")}}}
		err := g.PublishRoutingDocument(context.Background(), "api1", nil)
		assert.True(t, errors.Is(err, provider.ErrValidationWarning))
	})

	t.Run("accepted with warnings", func(t *testing.T) {
		g := &Gateway{API: &fakeGateway{warnings: []string{"Unable to parse path"}}}
		err := g.PublishRoutingDocument(context.Background(), "api1", nil)
		assert.True(t, errors.Is(err, provider.ErrValidationWarning))
		assert.Contains(t, err.Error(), "Unable to parse path")
	})

	t.Run("missing api", func(t *testing.T) {
		g := &Gateway{API: &fakeGateway{putErr: &agtypes.NotFoundException{Message: aws.String("Invalid API identifier")}}}
		err := g.PublishRoutingDocument(context.Background(), "api1", nil)
		assert.True(t, errors.Is(err, provider.ErrNotFound))
		assert.False(t, errors.Is(err, provider.ErrValidationWarning))
	})
}

type fakeSTS struct{ calls int }

func (f *fakeSTS) GetCallerIdentity(context.Context, *sts.GetCallerIdentityInput, ...func(*sts.Options)) (*sts.GetCallerIdentityOutput, error) {
	f.calls++
	return &sts.GetCallerIdentityOutput{Account: aws.String("123456789012")}, nil
}

func TestResolveIdentity(t *testing.T) {
	api := &fakeSTS{}

	id, err := ResolveIdentity(context.Background(), api, "us-west-2", "")
	require.NoError(t, err)
	assert.Equal(t, provider.Identity{AccountID: "123456789012", Region: "us-west-2"}, id)
	assert.Equal(t, 1, api.calls)

	id, err = ResolveIdentity(context.Background(), api, "us-west-2", "999")
	require.NoError(t, err)
	assert.Equal(t, "999", id.AccountID)
	assert.Equal(t, 1, api.calls)
}
