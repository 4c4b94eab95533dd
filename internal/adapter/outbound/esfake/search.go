package esfake

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"path"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/search/query"
)

type searchBody struct {
	Query map[string]any `json:"query"`
	Size  *int           `json:"size"`
	From  *int           `json:"from"`
	Sort  []any          `json:"sort"`
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request, target string) {
	var body searchBody
	raw, err := io.ReadAll(r.Body)
	if err == nil && len(strings.TrimSpace(string(raw))) > 0 {
		err = json.Unmarshal(raw, &body)
	}
	if err != nil {
		writeError(w, http.StatusBadRequest, "parsing_exception", "request body is not valid JSON")
		return
	}

	size, from := 10, 0
	if body.Size != nil {
		size = *body.Size
	}
	if body.From != nil {
		from = *body.From
	}
	for name, dst := range map[string]*int{"size": &size, "from": &from} {
		if v := r.URL.Query().Get(name); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil {
				writeError(w, http.StatusBadRequest, "illegal_argument_exception", "Failed to parse int parameter ["+name+"] with value ["+v+"]")
				return
			}
			*dst = n
		}
	}

	q := query.Query(bleve.NewMatchAllQuery())
	if body.Query != nil {
		if q, err = translate(body.Query); err != nil {
			writeError(w, http.StatusBadRequest, "parsing_exception", err.Error())
			return
		}
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	targets, missing := s.resolveTargetsLocked(target)
	if missing != "" {
		writeError(w, http.StatusNotFound, "index_not_found_exception", "no such index ["+missing+"]")
		return
	}

	start := time.Now()
	hits := []any{}
	var total uint64
	var maxScore any
	if len(targets) > 0 {
		searchers := make([]bleve.Index, 0, len(targets))
		for _, idx := range targets {
			searchers = append(searchers, idx.search)
		}
		req := bleve.NewSearchRequestOptions(q, size, from, false)
		if order := sortOrder(body.Sort); len(order) > 0 {
			req.SortBy(order)
		}
		res, err := bleve.NewIndexAlias(searchers...).Search(req)
		if err != nil {
			writeError(w, http.StatusBadRequest, "search_phase_execution_exception", err.Error())
			return
		}
		total = res.Total
		if res.Total > 0 {
			maxScore = res.MaxScore
		}
		for _, h := range res.Hits {
			idx := s.ownerLocked(targets, h.Index, h.ID)
			if idx == nil {
				continue
			}
			hit := map[string]any{"_index": idx.name, "_id": h.ID, "_score": h.Score, "_source": idx.docs[h.ID].source}
			if len(body.Sort) > 0 {
				hit["sort"] = h.Sort
			}
			hits = append(hits, hit)
		}
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"took":      time.Since(start).Milliseconds(),
		"timed_out": false,
		"_shards":   map[string]any{"total": len(targets), "successful": len(targets), "skipped": 0, "failed": 0},
		"hits": map[string]any{
			"total":     map[string]any{"value": total, "relation": "eq"},
			"max_score": maxScore,
			"hits":      hits,
		},
	})
}

// resolveTargetsLocked expands a comma separated list of names, aliases and
// wildcard patterns. A concrete name that does not exist is reported as missing.
func (s *Server) resolveTargetsLocked(target string) ([]*index, string) {
	seen := map[string]bool{}
	var out []*index
	add := func(idx *index) {
		if idx != nil && !seen[idx.name] {
			seen[idx.name] = true
			out = append(out, idx)
		}
	}
	for _, part := range strings.Split(target, ",") {
		part = strings.TrimSpace(part)
		if part == "" || part == "_all" {
			part = "*"
		}
		if strings.Contains(part, "*") {
			for _, name := range s.sortedIndexNamesLocked() {
				if ok, _ := path.Match(part, name); ok && (!strings.HasPrefix(name, ".") || strings.HasPrefix(part, ".")) {
					add(s.indices[name])
				}
			}
			for _, a := range s.aliases {
				if ok, _ := path.Match(part, a.name); ok {
					add(s.indices[a.index])
				}
			}
			continue
		}
		if idx, ok := s.indices[part]; ok {
			add(idx)
			continue
		}
		found := false
		for _, a := range s.aliases {
			if a.name == part {
				found = true
				add(s.indices[a.index])
			}
		}
		if !found {
			return nil, part
		}
	}
	return out, ""
}

func (s *Server) sortedIndexNamesLocked() []string {
	names := make([]string, 0, len(s.indices))
	for name := range s.indices {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (s *Server) ownerLocked(targets []*index, name, id string) *index {
	for _, idx := range targets {
		if idx.name == name {
			return idx
		}
	}
	for _, idx := range targets {
		if _, ok := idx.docs[id]; ok {
			return idx
		}
	}
	return nil
}

func sortOrder(spec []any) []string {
	var order []string
	add := func(field, dir string) {
		if field == "_score" {
			// bleve sorts score ascending unless prefixed.
			if dir == "asc" {
				order = append(order, "_score")
			} else {
				order = append(order, "-_score")
			}
			return
		}
		if dir == "desc" {
			field = "-" + field
		}
		order = append(order, field)
	}
	for _, item := range spec {
		switch v := item.(type) {
		case string:
			add(v, "asc")
		case map[string]any:
			for field, opt := range v {
				dir := "asc"
				switch o := opt.(type) {
				case string:
					dir = o
				case map[string]any:
					if d, ok := o["order"].(string); ok {
						dir = d
					}
				}
				add(field, dir)
			}
		}
	}
	return order
}

// translate turns a query DSL clause into a bleve query.
func translate(clause map[string]any) (query.Query, error) {
	if len(clause) != 1 {
		return nil, fmt.Errorf("query malformed, expected a single clause")
	}
	for name, raw := range clause {
		body, _ := raw.(map[string]any)
		switch name {
		case "match_all":
			return bleve.NewMatchAllQuery(), nil
		case "match_none":
			return bleve.NewMatchNoneQuery(), nil
		case "match", "match_phrase":
			field, value, err := fieldValue(body, "query")
			if err != nil {
				return nil, fmt.Errorf("[%s] %v", name, err)
			}
			if name == "match_phrase" {
				q := bleve.NewMatchPhraseQuery(fmt.Sprint(value))
				q.SetField(field)
				return q, nil
			}
			q := bleve.NewMatchQuery(fmt.Sprint(value))
			q.SetField(field)
			return q, nil
		case "term":
			field, value, err := fieldValue(body, "value")
			if err != nil {
				return nil, fmt.Errorf("[term] %v", err)
			}
			return termQuery(field, value), nil
		case "terms":
			for field, values := range body {
				list, ok := values.([]any)
				if !ok {
					return nil, fmt.Errorf("[terms] query does not support [%s]", field)
				}
				qs := make([]query.Query, 0, len(list))
				for _, v := range list {
					qs = append(qs, termQuery(field, v))
				}
				return bleve.NewDisjunctionQuery(qs...), nil
			}
			return nil, fmt.Errorf("[terms] query requires a field")
		case "range":
			return rangeQuery(body)
		case "prefix", "wildcard":
			field, value, err := fieldValue(body, "value")
			if err != nil {
				return nil, fmt.Errorf("[%s] %v", name, err)
			}
			if name == "prefix" {
				q := bleve.NewPrefixQuery(strings.ToLower(fmt.Sprint(value)))
				q.SetField(field)
				return q, nil
			}
			q := bleve.NewWildcardQuery(strings.ToLower(fmt.Sprint(value)))
			q.SetField(field)
			return q, nil
		case "query_string", "simple_query_string":
			text, _ := body["query"].(string)
			return bleve.NewQueryStringQuery(text), nil
		case "ids":
			values, _ := body["values"].([]any)
			ids := make([]string, 0, len(values))
			for _, v := range values {
				ids = append(ids, fmt.Sprint(v))
			}
			return bleve.NewDocIDQuery(ids), nil
		case "bool":
			return boolQuery(body)
		case "constant_score":
			inner, _ := body["filter"].(map[string]any)
			return translate(inner)
		}
		return nil, fmt.Errorf("unknown query [%s]", name)
	}
	return nil, fmt.Errorf("query malformed")
}

// fieldValue reads {"field": v} or {"field": {"<key>": v}}.
func fieldValue(body map[string]any, key string) (string, any, error) {
	if len(body) != 1 {
		return "", nil, fmt.Errorf("query malformed, expected exactly one field")
	}
	for field, v := range body {
		if opts, ok := v.(map[string]any); ok {
			inner, ok := opts[key]
			if !ok {
				return "", nil, fmt.Errorf("query does not support [%s] without [%s]", field, key)
			}
			return field, inner, nil
		}
		return field, v, nil
	}
	return "", nil, nil
}

func termQuery(field string, value any) query.Query {
	switch v := value.(type) {
	case float64:
		inclusive := true
		q := bleve.NewNumericRangeInclusiveQuery(&v, &v, &inclusive, &inclusive)
		q.SetField(field)
		return q
	case bool:
		q := bleve.NewBoolFieldQuery(v)
		q.SetField(field)
		return q
	default:
		q := bleve.NewTermQuery(strings.ToLower(fmt.Sprint(v)))
		q.SetField(field)
		return q
	}
}

func rangeQuery(body map[string]any) (query.Query, error) {
	for field, raw := range body {
		bounds, ok := raw.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("[range] query malformed, no start_object after query name")
		}
		var minV, maxV *float64
		var minS, maxS string
		minInc, maxInc := true, true
		for op, v := range bounds {
			switch op {
			case "gte", "gt":
				minInc = op == "gte"
				if n, ok := v.(float64); ok {
					minV = &n
				} else {
					minS = fmt.Sprint(v)
				}
			case "lte", "lt":
				maxInc = op == "lte"
				if n, ok := v.(float64); ok {
					maxV = &n
				} else {
					maxS = fmt.Sprint(v)
				}
			}
		}
		if minS != "" || maxS != "" {
			if start, end, ok := parseDates(minS, maxS); ok {
				q := bleve.NewDateRangeInclusiveQuery(start, end, &minInc, &maxInc)
				q.SetField(field)
				return q, nil
			}
			q := bleve.NewTermRangeInclusiveQuery(minS, maxS, &minInc, &maxInc)
			q.SetField(field)
			return q, nil
		}
		q := bleve.NewNumericRangeInclusiveQuery(minV, maxV, &minInc, &maxInc)
		q.SetField(field)
		return q, nil
	}
	return nil, fmt.Errorf("[range] query requires a field")
}

func parseDates(minS, maxS string) (time.Time, time.Time, bool) {
	var start, end time.Time
	for _, p := range []struct {
		raw string
		dst *time.Time
	}{{minS, &start}, {maxS, &end}} {
		if p.raw == "" {
			continue
		}
		t, err := time.Parse(time.RFC3339, p.raw)
		if err != nil {
			return start, end, false
		}
		*p.dst = t
	}
	return start, end, true
}

func boolQuery(body map[string]any) (query.Query, error) {
	collect := func(key string) ([]query.Query, error) {
		var out []query.Query
		switch v := body[key].(type) {
		case nil:
		case map[string]any:
			q, err := translate(v)
			if err != nil {
				return nil, err
			}
			out = append(out, q)
		case []any:
			for _, item := range v {
				m, _ := item.(map[string]any)
				q, err := translate(m)
				if err != nil {
					return nil, err
				}
				out = append(out, q)
			}
		default:
			return nil, fmt.Errorf("[bool] malformed [%s]", key)
		}
		return out, nil
	}

	must, err := collect("must")
	if err != nil {
		return nil, err
	}
	filter, err := collect("filter")
	if err != nil {
		return nil, err
	}
	should, err := collect("should")
	if err != nil {
		return nil, err
	}
	mustNot, err := collect("must_not")
	if err != nil {
		return nil, err
	}
	must = append(must, filter...)
	if len(must) == 0 && len(should) == 0 && len(mustNot) == 0 {
		return bleve.NewMatchAllQuery(), nil
	}
	q := bleve.NewBooleanQuery()
	if len(must) > 0 {
		q.AddMust(must...)
	}
	if len(should) > 0 {
		q.AddShould(should...)
		if len(must) == 0 {
			q.SetMinShould(1)
		}
	}
	if len(mustNot) > 0 {
		q.AddMustNot(mustNot...)
	}
	return q, nil
}
