package internal

import (
	"fmt"
	"strings"
)

// Route is one source file's routing directive: the gateway it belongs to,
// the public method and path, and the function that serves it.
type Route struct {
	GatewayID  string `yaml:"api_gateway" json:"api_gateway"`
	Method     string `yaml:"method" json:"method"`
	Path       string `yaml:"path" json:"path"`
	Function   string `yaml:"lambda" json:"lambda"`
	SourceFile string `yaml:"file" json:"file"`
}

// OperationMethod is the method as keyed in the routing document.
func (r Route) OperationMethod() string {
	return strings.ToLower(r.Method)
}

// InvokeMethod is the method as it appears in execute-api source ARNs.
func (r Route) InvokeMethod() string {
	return strings.ToUpper(r.Method)
}

func (r Route) String() string {
	return fmt.Sprintf("%s %s -> %s (%s)", r.InvokeMethod(), r.Path, r.Function, r.SourceFile)
}
