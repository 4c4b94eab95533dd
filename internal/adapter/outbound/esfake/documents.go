package esfake

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/blevesearch/bleve/v2"
)

const primaryTerm int64 = 1

type document struct {
	source  json.RawMessage
	fields  map[string]any
	version int64
	seqNo   int64
}

type index struct {
	name   string
	docs   map[string]*document
	seqNo  int64
	search bleve.Index
}

func newIndex(name string) (*index, error) {
	search, err := bleve.NewMemOnly(bleve.NewIndexMapping())
	if err != nil {
		return nil, err
	}
	search.SetName(name)
	return &index{name: name, docs: make(map[string]*document), seqNo: -1, search: search}, nil
}

// indexLocked returns the named index, creating it when create is set.
// Callers hold s.mu.
func (s *Server) indexLocked(name string, create bool) (*index, error) {
	if idx, ok := s.indices[name]; ok {
		return idx, nil
	}
	if target, ok := s.aliasTargetLocked(name); ok {
		if idx, ok := s.indices[target]; ok {
			return idx, nil
		}
		name = target
	}
	if !create {
		return nil, nil
	}
	idx, err := newIndex(name)
	if err != nil {
		return nil, err
	}
	s.indices[name] = idx
	return idx, nil
}

func (s *Server) aliasTargetLocked(name string) (string, bool) {
	target, n := "", 0
	for _, a := range s.aliases {
		if a.name != name {
			continue
		}
		n++
		if target == "" || a.isWrite {
			target = a.index
		}
	}
	return target, n > 0
}

// conditions are the optimistic-concurrency parameters of a write request.
type conditions struct {
	ifSeqNo       *int64
	ifPrimaryTerm *int64
}

func parseConditions(r *http.Request) (conditions, error) {
	var c conditions
	for name, dst := range map[string]**int64{"if_seq_no": &c.ifSeqNo, "if_primary_term": &c.ifPrimaryTerm} {
		raw := r.URL.Query().Get(name)
		if raw == "" {
			continue
		}
		n, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return c, fmt.Errorf("failed to parse [%s] with value [%s]", name, raw)
		}
		*dst = &n
	}
	return c, nil
}

// check reports a version conflict message, or "" when the write may proceed.
func (c conditions) check(id string, doc *document) string {
	if c.ifSeqNo == nil && c.ifPrimaryTerm == nil {
		return ""
	}
	if doc == nil {
		return fmt.Sprintf("[%s]: version conflict, required seqNo [%d], primary term [%d]. but no document was found",
			id, deref(c.ifSeqNo), deref(c.ifPrimaryTerm))
	}
	if deref(c.ifSeqNo) != doc.seqNo || deref(c.ifPrimaryTerm) != primaryTerm {
		return fmt.Sprintf("[%s]: version conflict, required seqNo [%d], primary term [%d]. current document has seqNo [%d] and primary term [%d]",
			id, deref(c.ifSeqNo), deref(c.ifPrimaryTerm), doc.seqNo, primaryTerm)
	}
	return ""
}

func deref(p *int64) int64 {
	if p == nil {
		return -2
	}
	return *p
}

type writeOutcome struct {
	status int
	body   map[string]any
	errTyp string
	errMsg string
}

// putLocked stores a document. Callers hold s.mu.
func (s *Server) putLocked(indexName, id string, source []byte, create bool, cond conditions) writeOutcome {
	if !validIndexName(indexName) {
		return writeOutcome{status: http.StatusBadRequest, errTyp: "invalid_index_name_exception",
			errMsg: "Invalid index name [" + indexName + "], must be lowercase"}
	}
	var fields map[string]any
	if err := json.Unmarshal(source, &fields); err != nil || fields == nil {
		return writeOutcome{status: http.StatusBadRequest, errTyp: "mapper_parsing_exception", errMsg: "failed to parse, document is empty or not an object"}
	}
	idx, err := s.indexLocked(indexName, true)
	if err != nil {
		return writeOutcome{status: http.StatusInternalServerError, errTyp: "exception", errMsg: err.Error()}
	}

	existing := idx.docs[id]
	if create && existing != nil {
		return writeOutcome{status: http.StatusConflict, errTyp: "version_conflict_engine_exception",
			errMsg: fmt.Sprintf("[%s]: version conflict, document already exists (current version [%d])", id, existing.version)}
	}
	if msg := cond.check(id, existing); msg != "" {
		return writeOutcome{status: http.StatusConflict, errTyp: "version_conflict_engine_exception", errMsg: msg}
	}
	if err := idx.search.Index(id, fields); err != nil {
		return writeOutcome{status: http.StatusInternalServerError, errTyp: "exception", errMsg: err.Error()}
	}

	idx.seqNo++
	doc := &document{source: append(json.RawMessage(nil), source...), fields: fields, version: 1, seqNo: idx.seqNo}
	result, status := "created", http.StatusCreated
	if existing != nil {
		doc.version = existing.version + 1
		result, status = "updated", http.StatusOK
	}
	idx.docs[id] = doc
	return writeOutcome{status: status, body: writeBody(idx.name, id, result, doc.version, doc.seqNo)}
}

// deleteLocked removes a document. Callers hold s.mu.
func (s *Server) deleteLocked(indexName, id string, cond conditions) writeOutcome {
	idx, _ := s.indexLocked(indexName, false)
	if idx == nil {
		return writeOutcome{status: http.StatusNotFound, errTyp: "index_not_found_exception", errMsg: "no such index [" + indexName + "]"}
	}
	existing := idx.docs[id]
	if msg := cond.check(id, existing); msg != "" {
		return writeOutcome{status: http.StatusConflict, errTyp: "version_conflict_engine_exception", errMsg: msg}
	}
	idx.seqNo++
	if existing == nil {
		return writeOutcome{status: http.StatusNotFound, body: writeBody(idx.name, id, "not_found", 1, idx.seqNo)}
	}
	if err := idx.search.Delete(id); err != nil {
		return writeOutcome{status: http.StatusInternalServerError, errTyp: "exception", errMsg: err.Error()}
	}
	delete(idx.docs, id)
	return writeOutcome{status: http.StatusOK, body: writeBody(idx.name, id, "deleted", existing.version+1, idx.seqNo)}
}

func writeBody(index, id, result string, version, seqNo int64) map[string]any {
	return map[string]any{
		"_index":        index,
		"_id":           id,
		"_version":      version,
		"result":        result,
		"_seq_no":       seqNo,
		"_primary_term": primaryTerm,
		"_shards":       map[string]any{"total": 1, "successful": 1, "failed": 0},
	}
}

func (o writeOutcome) write(w http.ResponseWriter) {
	if o.errTyp != "" {
		writeError(w, o.status, o.errTyp, o.errMsg)
		return
	}
	writeJSON(w, o.status, o.body)
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request, indexName, id string, create bool) {
	cond, err := parseConditions(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "illegal_argument_exception", err.Error())
		return
	}
	body, err := io.ReadAll(r.Body)
	if err != nil {
		writeError(w, http.StatusBadRequest, "parse_exception", "request body is required")
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.putLocked(indexName, id, body, create, cond).write(w)
}

func (s *Server) handleDelete(w http.ResponseWriter, r *http.Request, indexName, id string) {
	cond, err := parseConditions(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "illegal_argument_exception", err.Error())
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.deleteLocked(indexName, id, cond).write(w)
}

func (s *Server) handleGet(w http.ResponseWriter, indexName, id string) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	idx, _ := s.indexLocked(indexName, false)
	if idx == nil {
		writeError(w, http.StatusNotFound, "index_not_found_exception", "no such index ["+indexName+"]")
		return
	}
	doc, ok := idx.docs[id]
	if !ok {
		writeJSON(w, http.StatusNotFound, map[string]any{"_index": idx.name, "_id": id, "found": false})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"_index":        idx.name,
		"_id":           id,
		"_version":      doc.version,
		"_seq_no":       doc.seqNo,
		"_primary_term": primaryTerm,
		"found":         true,
		"_source":       doc.source,
	})
}

func (s *Server) handleBulk(w http.ResponseWriter, r *http.Request, defaultIndex string) {
	type action struct {
		Index string `json:"_index"`
		ID    string `json:"_id"`
	}

	scanner := bufio.NewScanner(r.Body)
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)

	s.mu.Lock()
	defer s.mu.Unlock()

	items := []any{}
	hasErrors := false
	for scanner.Scan() {
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}
		var meta map[string]action
		if err := json.Unmarshal(line, &meta); err != nil || len(meta) != 1 {
			writeError(w, http.StatusBadRequest, "illegal_argument_exception", "Malformed action/metadata line")
			return
		}
		for name, a := range meta {
			if a.Index == "" {
				a.Index = defaultIndex
			}
			var out writeOutcome
			switch name {
			case "index", "create":
				if !scanner.Scan() {
					writeError(w, http.StatusBadRequest, "illegal_argument_exception", "The bulk request must be terminated by a newline [\\n]")
					return
				}
				source := append([]byte(nil), scanner.Bytes()...)
				out = s.putLocked(a.Index, a.ID, source, name == "create", conditions{})
			case "delete":
				out = s.deleteLocked(a.Index, a.ID, conditions{})
			default:
				writeError(w, http.StatusBadRequest, "illegal_argument_exception", "Malformed action/metadata line, expected one of [create, delete, index, update] but found ["+name+"]")
				return
			}
			item := map[string]any{"_index": a.Index, "_id": a.ID, "status": out.status}
			for k, v := range out.body {
				item[k] = v
			}
			if out.errTyp != "" {
				hasErrors = true
				item["error"] = map[string]any{"type": out.errTyp, "reason": out.errMsg}
			}
			items = append(items, map[string]any{name: item})
		}
	}
	writeJSON(w, http.StatusOK, map[string]any{"took": 1, "errors": hasErrors, "items": items})
}

func validIndexName(name string) bool {
	if name == "" || strings.ToLower(name) != name {
		return false
	}
	if strings.HasPrefix(name, "_") || strings.HasPrefix(name, "-") || strings.HasPrefix(name, "+") {
		return false
	}
	return !strings.ContainsAny(name, `\/*?"<>| ,#:`)
}
