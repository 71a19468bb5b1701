package remote

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cadbridge/cadbridge/internal/shared/types"
)

func propertyPayload() map[string]any {
	return map[string]any{
		"properties": []any{
			map[string]any{
				"propertyName":       "Height",
				"propertyGroupName":  "General Parameters",
				"propertyType":       "StaticBuiltIn",
				"propertyValueType":  "number",
				"propertyMeasureType": "Length",
				"propertyIsEditable": true,
				"propertyId":         map[string]any{"guid": "abc-123"},
			},
			map[string]any{
				"propertyName":      "Zone Name",
				"propertyGroupName": "Zone Data",
				"propertyType":      "Custom",
				"propertyValueType": "string",
			},
		},
	}
}

func TestPropertyCacheFetchesOncePerPort(t *testing.T) {
	f := newFakeInstance(t, func(command string, params map[string]any) map[string]any {
		return succeed(map[string]any{"addOnCommandResponse": propertyPayload()})
	})
	conn := f.connection()

	cache := NewPropertyCache()
	props, err := cache.Get(context.Background(), conn)
	require.NoError(t, err)
	require.Len(t, props, 2)

	assert.Equal(t, "Height", props[0].Name)
	assert.Equal(t, "abc-123", props[0].GUID)
	assert.Equal(t, "Length", props[0].MeasureType)
	assert.True(t, props[0].Editable)
	assert.Equal(t, "Default", props[1].MeasureType)

	calls := len(f.calls)
	_, err = cache.Get(context.Background(), conn)
	require.NoError(t, err)
	assert.Equal(t, calls, len(f.calls), "second lookup should hit the cache")

	cache.Clear(conn.Port)
	_, err = cache.Get(context.Background(), conn)
	require.NoError(t, err)
	assert.Equal(t, calls+1, len(f.calls))
}

func TestFilterProperties(t *testing.T) {
	props := []types.Property{
		{Name: "Height", Group: "General Parameters", Type: "StaticBuiltIn", MeasureType: "Length"},
		{Name: "Area", Group: "General Parameters", Type: "StaticBuiltIn", MeasureType: "Area"},
		{Name: "Zone Name", Group: "Zone Data", Type: "Custom", MeasureType: "Default"},
	}

	byGroup := FilterProperties(props, PropertyFilter{Group: "general"})
	assert.Len(t, byGroup, 2)

	byType := FilterProperties(props, PropertyFilter{Type: "Custom"})
	require.Len(t, byType, 1)
	assert.Equal(t, "Zone Name", byType[0].Name)

	byMeasure := FilterProperties(props, PropertyFilter{MeasureType: "Area"})
	require.Len(t, byMeasure, 1)
	assert.Equal(t, "Area", byMeasure[0].Name)

	combined := FilterProperties(props, PropertyFilter{Group: "general", MeasureType: "Length"})
	require.Len(t, combined, 1)
	assert.Equal(t, "Height", combined[0].Name)

	assert.Len(t, FilterProperties(props, PropertyFilter{}), 3)
}
