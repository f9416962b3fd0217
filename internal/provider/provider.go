// Package provider declares the control-plane operations the deployer
// drives. Implementations classify failures by wrapping the sentinel errors
// below; anything else is treated as fatal.
package provider

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrConflict means the resource already exists or another update to it
	// is in progress.
	ErrConflict = errors.New("resource conflict")
	// ErrNotFound means the resource or statement does not exist.
	ErrNotFound = errors.New("resource not found")
	// ErrValidationWarning means the gateway rejected a document because it
	// produced warnings.
	ErrValidationWarning = errors.New("routing document produced warnings")
)

// FunctionSpec is the desired state of one backend function.
type FunctionSpec struct {
	Name    string
	Role    string
	Handler string
	Runtime string
	Code    []byte
}

// Grant authorizes a principal to invoke a function from SourceARN.
type Grant struct {
	Function    string
	StatementID string
	Action      string
	Principal   string
	SourceARN   string
}

const (
	InvokeAction     = "lambda:InvokeFunction"
	GatewayPrincipal = "apigateway.amazonaws.com"
)

// NewGrant returns the gateway invoke grant for function.
func NewGrant(function, sourceARN string) Grant {
	return Grant{
		Function:    function,
		StatementID: StatementID(function),
		Action:      InvokeAction,
		Principal:   GatewayPrincipal,
		SourceARN:   sourceARN,
	}
}

// StatementID names the policy statement owned by this tool for function.
func StatementID(function string) string {
	return function + "-policy"
}

// SourceARN is the execute-api pattern a single route invokes through.
func SourceARN(region, accountID, gatewayID, method, path string) string {
	return fmt.Sprintf("arn:aws:execute-api:%s:%s:%s/*/%s%s", region, accountID, gatewayID, method, path)
}

// RoleARN expands an IAM role name for accountID. Names that already look
// like ARNs are returned unchanged.
func RoleARN(accountID, role string) string {
	if strings.HasPrefix(role, "arn:") {
		return role
	}
	return fmt.Sprintf("arn:aws:iam::%s:role/%s", accountID, role)
}

type FunctionClient interface {
	CreateFunction(ctx context.Context, fn FunctionSpec) error
	UpdateFunctionConfig(ctx context.Context, fn FunctionSpec) error
	UpdateFunctionCode(ctx context.Context, name string, code []byte) error
}

type PermissionClient interface {
	RemovePermission(ctx context.Context, function, statementID string) error
	AddPermission(ctx context.Context, grant Grant) error
}

type GatewayClient interface {
	PublishRoutingDocument(ctx context.Context, gatewayID string, document []byte) error
	CreateDeploymentStage(ctx context.Context, gatewayID, stage string) error
}

// FunctionStatus is a function's readiness for another mutation.
type FunctionStatus int

const (
	StatusReady FunctionStatus = iota
	StatusPending
	StatusFailed
)

func (s FunctionStatus) String() string {
	switch s {
	case StatusReady:
		return "ready"
	case StatusPending:
		return "pending"
	case StatusFailed:
		return "failed"
	}
	return fmt.Sprintf("FunctionStatus(%d)", int(s))
}

// StatusReader reads back a function's state. reason is set when the
// control plane gives one.
type StatusReader interface {
	FunctionStatus(ctx context.Context, name string) (status FunctionStatus, reason string, err error)
}

// Identity is the caller's account and region.
type Identity struct {
	AccountID string
	Region    string
}
