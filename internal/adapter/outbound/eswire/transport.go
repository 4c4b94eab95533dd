package eswire

import (
	"crypto/tls"
	"net/http"
	"time"

	"github.com/silbaram/elasticsearch-mcp-server/configs"
)

// Transport builds the connection pool an adapter owns. Adapters close its idle
// connections on shutdown.
func Transport(cfg configs.ElasticsearchConfig) *http.Transport {
	t := http.DefaultTransport.(*http.Transport).Clone()
	t.MaxIdleConnsPerHost = 16
	t.ResponseHeaderTimeout = 0
	t.IdleConnTimeout = 90 * time.Second
	if cfg.InsecureSkipVerify {
		t.TLSClientConfig = &tls.Config{InsecureSkipVerify: true} //nolint:gosec // opt-in for self-signed dev clusters
	}
	return t
}
