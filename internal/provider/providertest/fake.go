// Package providertest provides an in-memory control plane that records
// every call made against it.
package providertest

import (
	"context"
	"fmt"
	"sync"

	"github.com/kholmgren/faas-gateway-deployer/internal/provider"
)

// Call is one recorded operation.
type Call struct {
	Op     string
	Target string
}

func (c Call) String() string { return c.Op + " " + c.Target }

// Cloud fakes every provider interface. Functions and Statements hold the
// resulting state; the Err maps inject failures keyed by function name
// (or gateway id for gateway calls).
type Cloud struct {
	mu sync.Mutex

	Calls      []Call
	Functions  map[string]provider.FunctionSpec
	Statements map[string]provider.Grant
	Documents  map[string][]byte
	Stages     map[string][]string
	Status     map[string][]provider.FunctionStatus

	CreateErr  map[string]error
	ConfigErr  map[string]error
	CodeErr    map[string]error
	RemoveErr  map[string]error
	AddErr     map[string][]error
	PublishErr map[string]error
	StageErr   map[string]error
}

func New() *Cloud {
	return &Cloud{
		Functions:  make(map[string]provider.FunctionSpec),
		Statements: make(map[string]provider.Grant),
		Documents:  make(map[string][]byte),
		Stages:     make(map[string][]string),
		Status:     make(map[string][]provider.FunctionStatus),
		CreateErr:  make(map[string]error),
		ConfigErr:  make(map[string]error),
		CodeErr:    make(map[string]error),
		RemoveErr:  make(map[string]error),
		AddErr:     make(map[string][]error),
		PublishErr: make(map[string]error),
		StageErr:   make(map[string]error),
	}
}

func (c *Cloud) record(op, target string) {
	c.Calls = append(c.Calls, Call{Op: op, Target: target})
}

// Count returns how many times op was called.
func (c *Cloud) Count(op string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for _, call := range c.Calls {
		if call.Op == op {
			n++
		}
	}
	return n
}

// Ops returns the recorded operations in order.
func (c *Cloud) Ops() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	ops := make([]string, len(c.Calls))
	for i, call := range c.Calls {
		ops[i] = call.String()
	}
	return ops
}

// Seed registers an existing function so creation conflicts.
func (c *Cloud) Seed(fn provider.FunctionSpec) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.Functions[fn.Name] = fn
}

// SeedGrant registers an existing permission statement.
func (c *Cloud) SeedGrant(g provider.Grant) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.Statements[g.Function+"/"+g.StatementID] = g
}

func (c *Cloud) CreateFunction(_ context.Context, fn provider.FunctionSpec) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.record("CreateFunction", fn.Name)
	if err := c.CreateErr[fn.Name]; err != nil {
		return err
	}
	if _, ok := c.Functions[fn.Name]; ok {
		return fmt.Errorf("function %s already exists: %w", fn.Name, provider.ErrConflict)
	}
	c.Functions[fn.Name] = fn
	return nil
}

func (c *Cloud) UpdateFunctionConfig(_ context.Context, fn provider.FunctionSpec) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.record("UpdateFunctionConfig", fn.Name)
	if err := c.ConfigErr[fn.Name]; err != nil {
		return err
	}
	cur, ok := c.Functions[fn.Name]
	if !ok {
		return fmt.Errorf("function %s: %w", fn.Name, provider.ErrNotFound)
	}
	cur.Role, cur.Handler, cur.Runtime = fn.Role, fn.Handler, fn.Runtime
	c.Functions[fn.Name] = cur
	return nil
}

func (c *Cloud) UpdateFunctionCode(_ context.Context, name string, code []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.record("UpdateFunctionCode", name)
	if err := c.CodeErr[name]; err != nil {
		return err
	}
	cur, ok := c.Functions[name]
	if !ok {
		return fmt.Errorf("function %s: %w", name, provider.ErrNotFound)
	}
	cur.Code = code
	c.Functions[name] = cur
	return nil
}

func (c *Cloud) RemovePermission(_ context.Context, function, statementID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.record("RemovePermission", function)
	if err := c.RemoveErr[function]; err != nil {
		return err
	}
	key := function + "/" + statementID
	if _, ok := c.Statements[key]; !ok {
		return fmt.Errorf("statement %s: %w", statementID, provider.ErrNotFound)
	}
	delete(c.Statements, key)
	return nil
}

// AddPermission fails with the queued AddErr values for the function, one
// per call, before succeeding.
func (c *Cloud) AddPermission(_ context.Context, g provider.Grant) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.record("AddPermission", g.Function)
	if errs := c.AddErr[g.Function]; len(errs) > 0 {
		c.AddErr[g.Function] = errs[1:]
		return errs[0]
	}
	key := g.Function + "/" + g.StatementID
	if _, ok := c.Statements[key]; ok {
		return fmt.Errorf("statement %s already exists: %w", g.StatementID, provider.ErrConflict)
	}
	c.Statements[key] = g
	return nil
}

func (c *Cloud) PublishRoutingDocument(_ context.Context, gatewayID string, document []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.record("PublishRoutingDocument", gatewayID)
	if err := c.PublishErr[gatewayID]; err != nil {
		return err
	}
	c.Documents[gatewayID] = document
	return nil
}

func (c *Cloud) CreateDeploymentStage(_ context.Context, gatewayID, stage string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.record("CreateDeploymentStage", gatewayID)
	if err := c.StageErr[gatewayID]; err != nil {
		return err
	}
	c.Stages[gatewayID] = append(c.Stages[gatewayID], stage)
	return nil
}

// FunctionStatus pops the next queued status for name, reporting ready once
// the queue is empty.
func (c *Cloud) FunctionStatus(_ context.Context, name string) (provider.FunctionStatus, string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.record("FunctionStatus", name)
	queue := c.Status[name]
	if len(queue) == 0 {
		return provider.StatusReady, "", nil
	}
	c.Status[name] = queue[1:]
	return queue[0], "queued", nil
}
