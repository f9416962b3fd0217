// Package gatewayspec folds route declarations into the Swagger 2.0 document
// that API Gateway imports, one aws_proxy integration per path and method.
package gatewayspec

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/getkin/kin-openapi/openapi2"
	"github.com/getkin/kin-openapi/openapi3"

	"github.com/kholmgren/faas-gateway-deployer/internal"
	"github.com/kholmgren/faas-gateway-deployer/internal/routes"
)

const (
	IntegrationExtension = "x-amazon-apigateway-integration"

	DefaultTitle = "faasdeploy-api"
	DefaultStage = "dev"
)

var ErrRouteCollision = errors.New("route declared more than once")

// Integration is the x-amazon-apigateway-integration object. HTTPMethod is
// how API Gateway calls Lambda, which is always POST whatever the public
// method is.
type Integration struct {
	URI                 string `json:"uri" yaml:"uri"`
	PassthroughBehavior string `json:"passthroughBehavior" yaml:"passthroughBehavior"`
	HTTPMethod          string `json:"httpMethod" yaml:"httpMethod"`
	ContentHandling     string `json:"contentHandling" yaml:"contentHandling"`
	Type                string `json:"type" yaml:"type"`
}

// Builder renders a routes.Set for one region and account.
type Builder struct {
	Region    string
	AccountID string
	Title     string
	Stage     string

	// Strict rejects a path and method declared by more than one source
	// instead of letting the later declaration win.
	Strict bool

	Now func() time.Time
	Log internal.Logger
}

// Build returns the routing document for set. The set must not be empty.
func (b *Builder) Build(set routes.Set) (*openapi2.T, error) {
	if set.GatewayID == "" {
		return nil, errors.New("cannot build a routing document without a gateway id")
	}

	doc := &openapi2.T{
		Swagger: "2.0",
		Info: openapi3.Info{
			Title:   b.title(),
			Version: b.now().UTC().Format(time.RFC3339),
		},
		Host:     fmt.Sprintf("%s.execute-api.%s.amazonaws.com", set.GatewayID, b.Region),
		BasePath: "/" + b.stage(),
		Schemes:  []string{"https"},
		Paths:    make(map[string]*openapi2.PathItem),
	}

	declared := make(map[string]internal.Route)
	for _, r := range set.Routes {
		key := r.InvokeMethod() + " " + r.Path
		if prev, ok := declared[key]; ok {
			if b.Strict {
				return nil, fmt.Errorf("%w: %s in %s and %s", ErrRouteCollision, key, prev.SourceFile, r.SourceFile)
			}
			b.Log.Warnf("%s declared in %s is overridden by %s", key, prev.SourceFile, r.SourceFile)
		}
		declared[key] = r

		doc.AddOperation(r.Path, r.InvokeMethod(), b.operation(r))
	}

	return doc, nil
}

func (b *Builder) operation(r internal.Route) *openapi2.Operation {
	return &openapi2.Operation{
		Produces: []string{"application/json"},
		Extensions: map[string]interface{}{
			IntegrationExtension: Integration{
				URI:                 IntegrationURI(b.Region, b.AccountID, r.Function),
				PassthroughBehavior: "when_no_match",
				HTTPMethod:          "POST",
				ContentHandling:     "CONVERT_TO_TEXT",
				Type:                "aws_proxy",
			},
		},
	}
}

func (b *Builder) title() string {
	if b.Title == "" {
		return DefaultTitle
	}
	return b.Title
}

func (b *Builder) stage() string {
	if b.Stage == "" {
		return DefaultStage
	}
	return b.Stage
}

func (b *Builder) now() time.Time {
	if b.Now == nil {
		return time.Now()
	}
	return b.Now()
}

// IntegrationURI is the API Gateway service path that invokes a function.
func IntegrationURI(region, accountID, function string) string {
	return fmt.Sprintf(
		"arn:aws:apigateway:%s:lambda:path/2015-03-31/functions/arn:aws:lambda:%s:%s:function:%s/invocations",
		region, region, accountID, function)
}

// Marshal encodes doc as the JSON body PutRestApi expects.
func Marshal(doc *openapi2.T) ([]byte, error) {
	body, err := json.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("marshal routing document: %w", err)
	}
	return body, nil
}
