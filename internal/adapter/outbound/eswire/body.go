package eswire

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/silbaram/elasticsearch-mcp-server/internal/domain"
)

// SearchBody renders the search request body. With paging set, size and from
// travel in the body instead of the query string.
func SearchBody(q domain.QuerySpec, paging bool) ([]byte, error) {
	body := q.Body()
	if paging {
		body["size"] = q.Size
		body["from"] = q.From
		body["track_total_hits"] = true
	}
	b, err := json.Marshal(body)
	if err != nil {
		return nil, domain.Wrap(domain.KindInvalidArgument, err, "query is not serializable")
	}
	return b, nil
}

type bulkMeta struct {
	Index string `json:"_index"`
	ID    string `json:"_id"`
}

// BulkBody renders ops as newline-delimited JSON: one action line per op,
// followed by the document line for index and create.
func BulkBody(ops []domain.WriteOp) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	for i, op := range ops {
		meta := map[string]bulkMeta{string(op.Action): {Index: string(op.Index), ID: string(op.ID)}}
		if err := enc.Encode(meta); err != nil {
			return nil, domain.Wrap(domain.KindInternal, err, fmt.Sprintf("failed to encode bulk action %d", i))
		}
		if op.Action == domain.WriteActionDelete {
			continue
		}
		// Documents must sit on a single line.
		var compact bytes.Buffer
		if err := json.Compact(&compact, op.Document); err != nil {
			return nil, domain.Errorf(domain.KindInvalidArgument, "operations[%d]: document is not valid JSON", i)
		}
		buf.Write(compact.Bytes())
		buf.WriteByte('\n')
	}
	return buf.Bytes(), nil
}

// RefreshParam renders a refresh flag the way the REST API expects it.
func RefreshParam(refresh bool) string {
	if refresh {
		return "true"
	}
	return "false"
}
