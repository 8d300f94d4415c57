package compat

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/streamhouse/eventflow/pkg/schema"
)

var (
	v1 = schema.MustParse([]byte(`{
		"type": "record", "name": "UserEvent",
		"fields": [
			{"name": "user_id", "type": "long"},
			{"name": "action", "type": "string"}
		]
	}`))

	// v2 adds a defaulted field: a backward- and forward-compatible change
	v2 = schema.MustParse([]byte(`{
		"type": "record", "name": "UserEvent",
		"fields": [
			{"name": "user_id", "type": "long"},
			{"name": "action", "type": "string"},
			{"name": "page", "type": "string", "default": "unknown"}
		]
	}`))

	// dropped removes the required action field with no default
	dropped = schema.MustParse([]byte(`{
		"type": "record", "name": "UserEvent",
		"fields": [{"name": "user_id", "type": "long"}]
	}`))
)

func TestNoneAlwaysCompatible(t *testing.T) {
	assert.Empty(t, Check(None, dropped, []*schema.Definition{v1, v2}))
}

func TestEmptyHistoryCompatible(t *testing.T) {
	assert.Empty(t, Check(Backward, v1, nil))
}

func TestBackwardAddedFieldWithDefault(t *testing.T) {
	assert.Empty(t, Check(Backward, v2, []*schema.Definition{v1}))
}

func TestBackwardAddedFieldWithoutDefault(t *testing.T) {
	noDefault := schema.MustParse([]byte(`{
		"type": "record", "name": "UserEvent",
		"fields": [
			{"name": "user_id", "type": "long"},
			{"name": "action", "type": "string"},
			{"name": "page", "type": "string"}
		]
	}`))

	violations := Check(Backward, noDefault, []*schema.Definition{v1})
	require.Len(t, violations, 1)
	assert.Equal(t, "page", violations[0].Field)
}

func TestRemovedRequiredFieldIncompatibleBothWays(t *testing.T) {
	for _, mode := range []Mode{Backward, Forward} {
		violations := Check(mode, dropped, []*schema.Definition{v1})
		require.NotEmpty(t, violations, "mode %s", mode)
		assert.Equal(t, "action", violations[0].Field)
	}
}

func TestFullRequiresBothDirections(t *testing.T) {
	assert.Empty(t, Check(Full, v2, []*schema.Definition{v1}))
	assert.NotEmpty(t, Check(Full, dropped, []*schema.Definition{v1}))
}

func TestNumericPromotions(t *testing.T) {
	intField := schema.MustParse([]byte(`{"type":"record","name":"N","fields":[{"name":"n","type":"int"}]}`))
	longField := schema.MustParse([]byte(`{"type":"record","name":"N","fields":[{"name":"n","type":"long"}]}`))
	doubleField := schema.MustParse([]byte(`{"type":"record","name":"N","fields":[{"name":"n","type":"double"}]}`))
	stringField := schema.MustParse([]byte(`{"type":"record","name":"N","fields":[{"name":"n","type":"string"}]}`))

	// widening the type keeps the new reader able to decode old data
	assert.Empty(t, Check(Backward, longField, []*schema.Definition{intField}))
	assert.Empty(t, Check(Backward, doubleField, []*schema.Definition{longField}))

	// but the old reader cannot decode the widened writer
	assert.NotEmpty(t, Check(Forward, longField, []*schema.Definition{intField}))

	violations := Check(Backward, stringField, []*schema.Definition{longField})
	require.Len(t, violations, 1)
	assert.Equal(t, "n", violations[0].Field)
	assert.Contains(t, violations[0].Reason, "type changed")
}

func TestTransitiveChecksFullHistory(t *testing.T) {
	// v3 drops "action", which only v1 and v2 still require
	v3 := schema.MustParse([]byte(`{
		"type": "record", "name": "UserEvent",
		"fields": [
			{"name": "user_id", "type": "long"},
			{"name": "page", "type": "string", "default": "unknown"}
		]
	}`))

	// non-transitive BACKWARD only sees v2
	nonTransitive := Check(Backward, v3, []*schema.Definition{v1, v2})
	require.Len(t, nonTransitive, 1)

	transitive := Check(BackwardTransitive, v3, []*schema.Definition{v1, v2})
	assert.Len(t, transitive, 2)
}

func TestNestedRecordViolationPath(t *testing.T) {
	outerV1 := schema.MustParse([]byte(`{
		"type": "record", "name": "Outer",
		"fields": [{"name": "inner", "type": {
			"type": "record", "name": "Inner",
			"fields": [{"name": "label", "type": "string"}]
		}}]
	}`))
	outerV2 := schema.MustParse([]byte(`{
		"type": "record", "name": "Outer",
		"fields": [{"name": "inner", "type": {
			"type": "record", "name": "Inner",
			"fields": [{"name": "label", "type": "long"}]
		}}]
	}`))

	violations := Check(Backward, outerV2, []*schema.Definition{outerV1})
	require.Len(t, violations, 1)
	assert.Equal(t, "inner.label", violations[0].Field)
}

func TestParseMode(t *testing.T) {
	m, err := ParseMode("backward_transitive")
	require.NoError(t, err)
	assert.Equal(t, BackwardTransitive, m)
	assert.True(t, m.Transitive())
	assert.False(t, Backward.Transitive())

	_, err = ParseMode("SIDEWAYS")
	assert.Error(t, err)
}
