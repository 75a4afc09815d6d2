package ingest

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExpectationsFallsBackToDefault(t *testing.T) {
	def, err := Expectations("default")
	require.NoError(t, err)
	require.NotEmpty(t, def.Properties)

	unknown, err := Expectations("underwater-basket-weaving")
	require.NoError(t, err)
	assert.Equal(t, def, unknown)
}

func TestSchemaCoverageDefaultVertical(t *testing.T) {
	items, err := HarvestStructured(fixtureHTML)
	require.NoError(t, err)

	coverage, missing, err := SchemaCoverage(items, "")
	require.NoError(t, err)
	assert.Equal(t, 1.0, coverage)
	assert.Empty(t, missing)
}

func TestSchemaCoverageHomeVertical(t *testing.T) {
	items, err := HarvestStructured(fixtureHTML)
	require.NoError(t, err)

	// The fixture organization has name, telephone, and url but no address
	// or areaServed, so the home vertical covers three of five expectations.
	coverage, missing, err := SchemaCoverage(items, "home")
	require.NoError(t, err)
	assert.InDelta(t, 0.6, coverage, 1e-9)
	assert.Equal(t, []string{"address", "areaServed"}, missing)
}

func TestSchemaCoverageNoItems(t *testing.T) {
	coverage, missing, err := SchemaCoverage(nil, "")
	require.NoError(t, err)
	assert.Zero(t, coverage)
	assert.Equal(t, []string{"name", "url", "description"}, missing)
}
