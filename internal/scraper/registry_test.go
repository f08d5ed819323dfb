package scraper

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"priceatlas/cpiworker/config"
)

func TestRegistryLookup(t *testing.T) {
	registry := NewRegistry(config.LoadConfig())

	testCases := []struct {
		name     string
		expected string
	}{
		{name: "Walmart", expected: "Walmart"},
		{name: "WALMART", expected: "Walmart"},
		{name: "Bodega Aurrera", expected: "Bodega Aurrera"},
		{name: "BODEGA_AURRERA", expected: "Bodega Aurrera"},
		{name: "Chedraui", expected: "Chedraui"},
		{name: "La Comer", expected: "La Comer"},
		{name: "LA_COMER", expected: "La Comer"},
		{name: "Soriana", expected: "Soriana"},
		{name: "soriana ", expected: "Soriana"},
	}

	for _, tc := range testCases {
		strat, ok := registry.Lookup(tc.name)
		assert.True(t, ok, tc.name)
		assert.Equal(t, tc.expected, strat.Name(), tc.name)
	}

	_, ok := registry.Lookup("Unknown Retailer")
	assert.False(t, ok)
}

func TestRegistryStrategyKinds(t *testing.T) {
	registry := NewRegistry(config.LoadConfig())

	walmart, _ := registry.Lookup("Walmart")
	assert.IsType(t, &BrowserStrategy{}, walmart)

	bodega, _ := registry.Lookup("Bodega Aurrera")
	assert.IsType(t, &BrowserStrategy{}, bodega)

	chedraui, _ := registry.Lookup("Chedraui")
	assert.IsType(t, &DirectAPIStrategy{}, chedraui)

	lacomer, _ := registry.Lookup("La Comer")
	assert.IsType(t, &DirectAPIStrategy{}, lacomer)

	soriana, _ := registry.Lookup("Soriana")
	assert.IsType(t, &HTMLFallbackStrategy{}, soriana)

	assert.Len(t, registry.Retailers(), 5)
}
