package mapping_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/c360/twinbridge/mapping"
)

func TestRegistry_BuildAddsDefaultWhenAbsent(t *testing.T) {
	reg := mapping.NewRegistry()

	mappers, err := reg.Build(nil)
	require.NoError(t, err)
	_, ok := mappers[mapping.DefaultAlias]
	assert.True(t, ok)
}

func TestRegistry_BuildRejectsDuplicateAlias(t *testing.T) {
	reg := mapping.NewRegistry()

	_, err := reg.Build([]mapping.Definition{
		{Alias: "a", Engine: mapping.EngineTwinProtocol},
		{Alias: "a", Engine: mapping.EngineAddHeader},
	})
	assert.Error(t, err)
}

func TestRegistry_InstantiateUnknownEngineFails(t *testing.T) {
	reg := mapping.NewRegistry()
	_, err := reg.Instantiate("does-not-exist", nil)
	assert.Error(t, err)
}

func TestRegistry_BuiltinEngineCannotBeOverridden(t *testing.T) {
	reg := mapping.NewRegistry()
	err := reg.RegisterEngine(mapping.EngineTwinProtocol, func() mapping.Mapper { return mapping.NewTwinMapper() })
	assert.Error(t, err)
}

func TestRegistry_CustomEngineRegisters(t *testing.T) {
	reg := mapping.NewRegistry()
	require.NoError(t, reg.RegisterEngine("acme-sandbox", func() mapping.Mapper { return mapping.NewAddHeaderMapper() }))

	m, err := reg.Instantiate("acme-sandbox", nil)
	require.NoError(t, err)
	assert.NotNil(t, m)
}
