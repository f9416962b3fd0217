package envoy

import (
	"fmt"
	"strconv"
	"sync"

	cachev3 "github.com/envoyproxy/go-control-plane/pkg/cache/v3"
	"gopkg.in/yaml.v2"

	"github.com/kholmgren/faas-gateway-deployer/internal"
	"github.com/kholmgren/faas-gateway-deployer/internal/routes"
)

// Publisher pushes successive route sets into a snapshot cache for one node,
// bumping the snapshot version each time.
type Publisher struct {
	Cache   cachev3.SnapshotCache
	NodeID  string
	Options Options
	Metrics *Metrics
	Log     internal.Logger

	mu      sync.Mutex
	version int
}

func (p *Publisher) Publish(set routes.Set) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	version := strconv.Itoa(p.version + 1)
	snapshot, err := Snapshot(version, set, p.Options)
	if err != nil {
		return err
	}
	if err := snapshot.Consistent(); err != nil {
		return fmt.Errorf("snapshot %s inconsistent: %w", version, err)
	}

	if p.Log.Debug {
		if dump, err := yaml.Marshal(set.Routes); err == nil {
			p.Log.Debugf("--- # routes, snapshot %s\n%s", version, dump)
		}
	}

	if err := p.Cache.SetSnapshot(p.NodeID, snapshot); err != nil {
		return fmt.Errorf("set snapshot %s for node %s: %w", version, p.NodeID, err)
	}
	p.version++

	if p.Metrics != nil {
		p.Metrics.Published(len(set.Routes))
	}
	return nil
}

// Version is the last published snapshot version, 0 before the first.
func (p *Publisher) Version() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.version
}
