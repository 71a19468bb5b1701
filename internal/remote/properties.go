package remote

import (
	"context"
	"strings"
	"sync"

	"github.com/cadbridge/cadbridge/internal/shared/types"
)

// PropertyCache caches property definitions per instance. Definitions do not
// change within a session, so each port is fetched once.
type PropertyCache struct {
	mu     sync.Mutex
	byPort map[int][]types.Property
}

// NewPropertyCache creates an empty cache.
func NewPropertyCache() *PropertyCache {
	return &PropertyCache{byPort: make(map[int][]types.Property)}
}

// Get returns all property definitions for the connection, fetching and
// caching them on first use.
func (pc *PropertyCache) Get(ctx context.Context, conn *Connection) ([]types.Property, error) {
	pc.mu.Lock()
	cached, ok := pc.byPort[conn.Port]
	pc.mu.Unlock()
	if ok {
		return cached, nil
	}

	result, err := conn.ExecuteAddOn(ctx, "GetAllProperties", map[string]any{})
	if err != nil {
		return nil, err
	}

	raw, _ := result["properties"].([]any)
	props := make([]types.Property, 0, len(raw))
	for _, item := range raw {
		if m, ok := item.(map[string]any); ok {
			props = append(props, parseProperty(m))
		}
	}

	pc.mu.Lock()
	pc.byPort[conn.Port] = props
	pc.mu.Unlock()
	return props, nil
}

// Clear drops the cache for one port.
func (pc *PropertyCache) Clear(port int) {
	pc.mu.Lock()
	delete(pc.byPort, port)
	pc.mu.Unlock()
}

// ClearAll drops the entire cache.
func (pc *PropertyCache) ClearAll() {
	pc.mu.Lock()
	pc.byPort = make(map[int][]types.Property)
	pc.mu.Unlock()
}

func parseProperty(m map[string]any) types.Property {
	p := types.Property{MeasureType: "Default"}
	p.Name, _ = m["propertyName"].(string)
	p.Group, _ = m["propertyGroupName"].(string)
	p.Type, _ = m["propertyType"].(string)
	p.ValueType, _ = m["propertyValueType"].(string)
	if mt, ok := m["propertyMeasureType"].(string); ok && mt != "" {
		p.MeasureType = mt
	}
	p.Editable, _ = m["propertyIsEditable"].(bool)
	if id, ok := m["propertyId"].(map[string]any); ok {
		p.GUID, _ = id["guid"].(string)
	}
	return p
}

// PropertyFilter narrows a property listing. Group matches are
// case-insensitive substring matches; type and measure are exact.
type PropertyFilter struct {
	Group       string
	Type        string
	MeasureType string
}

// FilterProperties applies a filter to a property listing.
func FilterProperties(props []types.Property, f PropertyFilter) []types.Property {
	out := props
	if f.Group != "" {
		needle := strings.ToLower(strings.TrimSpace(f.Group))
		out = filter(out, func(p types.Property) bool {
			return strings.Contains(strings.ToLower(p.Group), needle)
		})
	}
	if f.Type != "" {
		out = filter(out, func(p types.Property) bool { return p.Type == f.Type })
	}
	if f.MeasureType != "" {
		out = filter(out, func(p types.Property) bool { return p.MeasureType == f.MeasureType })
	}
	return out
}

func filter(props []types.Property, keep func(types.Property) bool) []types.Property {
	out := make([]types.Property, 0, len(props))
	for _, p := range props {
		if keep(p) {
			out = append(out, p)
		}
	}
	return out
}
