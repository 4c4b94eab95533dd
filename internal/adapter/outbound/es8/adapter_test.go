package es8_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/silbaram/elasticsearch-mcp-server/configs"
	"github.com/silbaram/elasticsearch-mcp-server/internal/adapter/outbound/enginetest"
	"github.com/silbaram/elasticsearch-mcp-server/internal/adapter/outbound/es8"
	"github.com/silbaram/elasticsearch-mcp-server/internal/domain"
)

func TestAdapter(t *testing.T) {
	enginetest.Run(t, "8.18.1", es8.NewEngine)
}

func TestAdapter_AcceptsOtherMinors(t *testing.T) {
	enginetest.Run(t, "8.11.4", es8.NewEngine)
}

func TestNew_Version(t *testing.T) {
	tag, err := domain.ParseEngineVersion("8.18.1")
	require.NoError(t, err)

	a, err := es8.New(configs.ElasticsearchConfig{Hosts: []string{"http://localhost:9200"}}.WithDefaults(), tag, enginetest.Logger())
	require.NoError(t, err)
	defer a.Close()

	assert.Equal(t, tag, a.Version())
}
