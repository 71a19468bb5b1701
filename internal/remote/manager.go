package remote

import (
	"context"
	"sort"
	"strconv"
	"sync"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"

	"github.com/cadbridge/cadbridge/internal/logging"
	"github.com/cadbridge/cadbridge/internal/shared/errs"
	"github.com/cadbridge/cadbridge/internal/shared/types"
)

// Manager maintains connections to every CAD instance found on the local
// machine by scanning a configured port range.
type Manager struct {
	client       *resty.Client
	namespace    string
	portStart    int
	portEnd      int
	probeTimeout contextTimeout
	log          *logging.Logger

	mu    sync.RWMutex
	conns map[int]*Connection
}

type contextTimeout = func(ctx context.Context) (context.Context, context.CancelFunc)

// ManagerConfig configures instance discovery.
type ManagerConfig struct {
	PortStart      int
	PortEnd        int
	AddOnNamespace string
	ProbeTimeout   contextTimeout
}

// NewManager creates a connection manager.
func NewManager(client *resty.Client, cfg ManagerConfig, log *logging.Logger) *Manager {
	probe := cfg.ProbeTimeout
	if probe == nil {
		probe = func(ctx context.Context) (context.Context, context.CancelFunc) {
			return context.WithCancel(ctx)
		}
	}
	return &Manager{
		client:       client,
		namespace:    cfg.AddOnNamespace,
		portStart:    cfg.PortStart,
		portEnd:      cfg.PortEnd,
		probeTimeout: probe,
		log:          log,
		conns:        make(map[int]*Connection),
	}
}

// Scan probes every port in the configured range concurrently and refreshes
// the connection map. Ports that stop responding are dropped.
func (m *Manager) Scan(ctx context.Context) {
	var wg sync.WaitGroup
	for port := m.portStart; port <= m.portEnd; port++ {
		wg.Add(1)
		go func(port int) {
			defer wg.Done()
			m.probe(ctx, port)
		}(port)
	}
	wg.Wait()
}

func (m *Manager) probe(ctx context.Context, port int) {
	ctx, cancel := m.probeTimeout(ctx)
	defer cancel()

	probe := NewConnection(port, m.client, m.namespace, Info{})
	result, err := probe.ExecuteBuiltin(ctx, "API.GetProductInfo", map[string]any{})
	if err != nil {
		m.drop(port)
		return
	}

	info := infoFromProduct(result)
	if project, err := probe.ExecuteBuiltin(ctx, "API.GetProjectInfo", map[string]any{}); err == nil {
		applyProjectInfo(&info, project)
	}

	conn := NewConnection(port, m.client, m.namespace, info)
	conn.CheckAddOn(ctx)

	m.mu.Lock()
	_, existed := m.conns[port]
	m.conns[port] = conn
	m.mu.Unlock()

	if !existed && m.log != nil {
		m.log.Info("found CAD instance",
			zap.Int("port", port),
			zap.String("project", info.ProjectName))
	}
}

func (m *Manager) drop(port int) {
	m.mu.Lock()
	delete(m.conns, port)
	m.mu.Unlock()
}

// Get returns the connection for a port, or a connectivity error if no
// instance is known there.
func (m *Manager) Get(port int) (*Connection, error) {
	m.mu.RLock()
	conn, ok := m.conns[port]
	m.mu.RUnlock()
	if !ok {
		return nil, errs.Newf(errs.KindConnectivity, "No CAD instance known on port %d", port).
			WithDetail("port", port).
			WithSuggestion("List instances or trigger a rescan to discover running instances")
	}
	return conn, nil
}

// List returns the known instances sorted by port.
func (m *Manager) List() []types.Instance {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]types.Instance, 0, len(m.conns))
	for _, conn := range m.conns {
		out = append(out, instanceOf(conn))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Port < out[j].Port })
	return out
}

// Count returns the number of known instances.
func (m *Manager) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.conns)
}

func instanceOf(conn *Connection) types.Instance {
	projectType := types.ProjectSolo
	switch {
	case conn.Info.Untitled:
		projectType = types.ProjectUntitled
	case conn.Info.IsTeamwork:
		projectType = types.ProjectTeamwork
	}
	return types.Instance{
		Port:           conn.Port,
		ProjectName:    conn.Info.ProjectName,
		ProjectPath:    conn.Info.ProjectPath,
		ProjectType:    projectType,
		Version:        conn.Info.Version,
		AddOnAvailable: conn.AddOnAvailable(),
	}
}

func infoFromProduct(result map[string]any) Info {
	info := Info{ProjectName: "Untitled", Untitled: true}
	if v, ok := result["version"]; ok {
		info.Version = stringify(v)
	}
	return info
}

func applyProjectInfo(info *Info, result map[string]any) {
	if name, ok := result["projectName"].(string); ok && name != "" {
		info.ProjectName = name
		info.Untitled = false
	}
	if path, ok := result["projectPath"].(string); ok {
		info.ProjectPath = path
	}
	if tw, ok := result["isTeamwork"].(bool); ok {
		info.IsTeamwork = tw
	}
}

func stringify(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case float64:
		// JSON numbers decode as float64; versions are whole numbers.
		return strconv.FormatInt(int64(t), 10)
	default:
		return ""
	}
}
