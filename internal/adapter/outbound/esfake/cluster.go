package esfake

import (
	"fmt"
	"net/http"
	"path"
	"strconv"
	"strings"
	"time"
)

func (s *Server) handleHealth(w http.ResponseWriter) {
	s.mu.RLock()
	n := len(s.indices)
	s.mu.RUnlock()

	// One node with one primary per index; replicas can never be assigned.
	status := "green"
	if n > 0 {
		status = "yellow"
	}
	active := 100.0
	if n > 0 {
		active = 50.0
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"cluster_name":                    clusterName,
		"status":                          status,
		"timed_out":                       false,
		"number_of_nodes":                 1,
		"number_of_data_nodes":            1,
		"active_primary_shards":           n,
		"active_shards":                   n,
		"relocating_shards":               0,
		"initializing_shards":             0,
		"unassigned_shards":               n,
		"delayed_unassigned_shards":       0,
		"number_of_pending_tasks":         0,
		"active_shards_percent_as_number": active,
	})
}

func (s *Server) handleStats(w http.ResponseWriter) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	docs, store := 0, 0
	for _, idx := range s.indices {
		docs += len(idx.docs)
		store += idx.storeBytes()
	}
	status := "green"
	if len(s.indices) > 0 {
		status = "yellow"
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"cluster_name": clusterName,
		"cluster_uuid": clusterUUID,
		"status":       status,
		"timestamp":    time.Now().UnixMilli(),
		"indices": map[string]any{
			"count":  len(s.indices),
			"shards": map[string]any{"total": len(s.indices), "primaries": len(s.indices), "replication": 0.0},
			"docs":   map[string]any{"count": docs, "deleted": 0},
			"store":  map[string]any{"size_in_bytes": store},
		},
		"nodes": map[string]any{
			"count": map[string]any{"total": 1, "data": 1, "master": 1, "ingest": 1},
			"os": map[string]any{
				"available_processors": 4,
				"mem":                  map[string]any{"used_percent": 42},
			},
			"jvm": map[string]any{
				"mem": map[string]any{"heap_used_in_bytes": 256 << 20, "heap_max_in_bytes": 1 << 30},
			},
		},
	})
}

func (idx *index) storeBytes() int {
	n := 0
	for _, d := range idx.docs {
		n += len(d.source)
	}
	return n
}

func (s *Server) handleCatIndices(w http.ResponseWriter, pattern string) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	target := pattern
	if target == "" {
		target = "*"
	}
	targets, missing := s.resolveTargetsLocked(target)
	if missing != "" {
		writeError(w, http.StatusNotFound, "index_not_found_exception", "no such index ["+missing+"]")
		return
	}
	rows := make([]map[string]any, 0, len(targets))
	for _, idx := range targets {
		size := fmt.Sprintf("%db", idx.storeBytes())
		rows = append(rows, map[string]any{
			"health":         "yellow",
			"status":         "open",
			"index":          idx.name,
			"uuid":           "uuid-" + idx.name,
			"pri":            "1",
			"rep":            "1",
			"docs.count":     strconv.Itoa(len(idx.docs)),
			"docs.deleted":   "0",
			"store.size":     size,
			"pri.store.size": size,
		})
	}
	writeJSON(w, http.StatusOK, rows)
}

func (s *Server) handleCatAliases(w http.ResponseWriter, pattern string) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows := make([]map[string]any, 0, len(s.aliases))
	for _, a := range s.aliases {
		if pattern != "" && !matchAny(pattern, a.name) {
			continue
		}
		isWrite := "-"
		if a.isWrite {
			isWrite = "true"
		}
		rows = append(rows, map[string]any{
			"alias":          a.name,
			"index":          a.index,
			"filter":         "-",
			"routing.index":  "-",
			"routing.search": "-",
			"is_write_index": isWrite,
		})
	}
	writeJSON(w, http.StatusOK, rows)
}

func (s *Server) handleCatAllocation(w http.ResponseWriter, nodeID string) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows := []map[string]any{}
	if nodeID == "" || matchAny(nodeID, nodeName) || nodeID == "_local" {
		store := 0
		for _, idx := range s.indices {
			store += idx.storeBytes()
		}
		rows = append(rows, map[string]any{
			"shards":       strconv.Itoa(len(s.indices)),
			"disk.indices": fmt.Sprintf("%db", store),
			"disk.used":    "10gb",
			"disk.avail":   "90gb",
			"disk.total":   "100gb",
			"disk.percent": "10",
			"host":         "127.0.0.1",
			"ip":           "127.0.0.1",
			"node":         nodeName,
		})
	}
	if n := len(s.indices); n > 0 {
		// Replica shards that a single node cannot hold.
		rows = append(rows, map[string]any{
			"shards": strconv.Itoa(n),
			"node":   "UNASSIGNED",
		})
	}
	writeJSON(w, http.StatusOK, rows)
}

func (s *Server) handleMapping(w http.ResponseWriter, target string) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	targets, missing := s.resolveTargetsLocked(target)
	if missing != "" {
		writeError(w, http.StatusNotFound, "index_not_found_exception", "no such index ["+missing+"]")
		return
	}
	out := make(map[string]any, len(targets))
	for _, idx := range targets {
		props := map[string]any{}
		for _, d := range idx.docs {
			mergeProperties(props, d.fields)
		}
		mappings := map[string]any{}
		if len(props) > 0 {
			mappings["properties"] = props
		}
		out[idx.name] = map[string]any{"mappings": mappings}
	}
	writeJSON(w, http.StatusOK, out)
}

// mergeProperties infers dynamic mappings the way the engine does for new fields.
func mergeProperties(props map[string]any, fields map[string]any) {
	for name, v := range fields {
		if _, ok := props[name]; ok {
			continue
		}
		switch val := v.(type) {
		case string:
			if _, err := time.Parse(time.RFC3339, val); err == nil {
				props[name] = map[string]any{"type": "date"}
				continue
			}
			props[name] = map[string]any{
				"type":   "text",
				"fields": map[string]any{"keyword": map[string]any{"type": "keyword", "ignore_above": 256}},
			}
		case float64:
			if val == float64(int64(val)) {
				props[name] = map[string]any{"type": "long"}
			} else {
				props[name] = map[string]any{"type": "float"}
			}
		case bool:
			props[name] = map[string]any{"type": "boolean"}
		case map[string]any:
			inner := map[string]any{}
			mergeProperties(inner, val)
			props[name] = map[string]any{"properties": inner}
		}
	}
}

func matchAny(patterns, name string) bool {
	for _, p := range strings.Split(patterns, ",") {
		if ok, _ := path.Match(strings.TrimSpace(p), name); ok {
			return true
		}
	}
	return false
}
