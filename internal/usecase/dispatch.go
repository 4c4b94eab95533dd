package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/silbaram/elasticsearch-mcp-server/internal/domain"
)

// DefaultRequestTimeout bounds a single engine operation when no timeout is configured.
const DefaultRequestTimeout = 30 * time.Second

const tracerName = "github.com/silbaram/elasticsearch-mcp-server/internal/usecase"

// DispatchState is the lifecycle position of one request.
type DispatchState string

const (
	StateReceived  DispatchState = "Received"
	StateValidated DispatchState = "Validated"
	StateExecuting DispatchState = "Executing"
	StateCompleted DispatchState = "Completed"
	StateFailed    DispatchState = "Failed"
	StateRejected  DispatchState = "Rejected"
)

// Terminal reports whether no further transition is possible.
func (s DispatchState) Terminal() bool {
	return s == StateCompleted || s == StateFailed || s == StateRejected
}

// invocation is a validated call bound to its decoded arguments.
type invocation func(ctx context.Context, engine Engine) (any, error)

// Dispatcher validates tool invocations and routes each to exactly one Engine operation.
// It holds no mutable state and is safe for concurrent use.
type Dispatcher struct {
	registry ToolRegistry
	engine   Engine
	timeout  time.Duration
	observer DispatchObserver
	tracer   trace.Tracer
	logger   *slog.Logger
}

// NewDispatcher creates a Dispatcher. A non-positive timeout selects DefaultRequestTimeout;
// observer may be nil.
func NewDispatcher(registry ToolRegistry, engine Engine, timeout time.Duration, observer DispatchObserver, logger *slog.Logger) *Dispatcher {
	if timeout <= 0 {
		timeout = DefaultRequestTimeout
	}
	return &Dispatcher{
		registry: registry,
		engine:   engine,
		timeout:  timeout,
		observer: observer,
		tracer:   otel.Tracer(tracerName),
		logger:   logger.With("usecase", "Dispatch"),
	}
}

// Engine returns the adapter this dispatcher routes to.
func (d *Dispatcher) Engine() Engine {
	return d.engine
}

// Dispatch runs one request through Received -> Validated -> Executing -> Completed/Failed,
// or Received -> Rejected when the tool is unknown or the arguments are invalid.
// Errors are always *domain.Error. The engine is never called for a rejected request
// and is called at most once otherwise.
func (d *Dispatcher) Dispatch(ctx context.Context, req domain.OperationRequest) (*domain.OperationResult, error) {
	start := time.Now()
	if req.CorrelationID == "" {
		req.CorrelationID = uuid.NewString()
	}
	log := d.logger.With(slog.String("tool", req.Tool), slog.String("correlation_id", req.CorrelationID))

	ctx, span := d.tracer.Start(ctx, "dispatch "+req.Tool, trace.WithAttributes(
		attribute.String("esmcp.tool", req.Tool),
		attribute.String("esmcp.correlation_id", req.CorrelationID),
		attribute.String("esmcp.engine_version", d.engine.Version().String()),
	))
	defer span.End()

	obs := DispatchObservation{
		Tool:          req.Tool,
		CorrelationID: req.CorrelationID,
		EngineVersion: d.engine.Version().String(),
		State:         StateReceived,
	}
	finish := func(state DispatchState, err *domain.Error) {
		obs.State = state
		obs.Duration = time.Since(start)
		span.SetAttributes(attribute.String("esmcp.state", string(state)))
		if err != nil {
			obs.ErrorKind = err.Kind
			span.SetAttributes(attribute.String("esmcp.error_kind", string(err.Kind)))
			span.SetStatus(codes.Error, err.Message)
		}
		if d.observer != nil {
			d.observer.ObserveDispatch(ctx, obs)
		}
	}

	log.Debug("Request received")
	desc, err := d.registry.FindToolByName(ctx, req.Tool)
	if err != nil {
		derr := domain.Wrap(domain.KindInvalidArgument, err, fmt.Sprintf("unknown tool %q", req.Tool))
		if !errors.Is(err, ErrToolNotFound) {
			derr = domain.Wrap(domain.KindInternal, err, "failed to look up tool")
		}
		log.Warn("Request rejected", slog.Any("error", err))
		finish(StateRejected, derr)
		return nil, derr
	}
	obs.Operation = desc.Operation

	call, err := d.prepare(desc, req.Arguments)
	if err != nil {
		derr := domain.AsError(err)
		log.Info("Request rejected", slog.String("reason", derr.Message))
		finish(StateRejected, derr)
		return nil, derr
	}
	obs.State = StateValidated

	opCtx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()

	obs.State = StateExecuting
	log.Debug("Executing operation", slog.String("operation", string(desc.Operation)))
	payload, err := call(opCtx, d.engine)
	if err != nil {
		derr := domain.AsError(err)
		if errors.Is(opCtx.Err(), context.DeadlineExceeded) && derr.Kind != domain.KindTimeout {
			derr = domain.Wrap(domain.KindTimeout, err, fmt.Sprintf("operation did not complete within %s", d.timeout))
		}
		log.Warn("Operation failed",
			slog.String("kind", string(derr.Kind)),
			slog.String("message", derr.Message),
			slog.Any("cause", derr.Err),
		)
		finish(StateFailed, derr)
		return nil, derr
	}

	finish(StateCompleted, nil)
	log.Info("Operation completed", slog.Duration("duration", obs.Duration))
	return &domain.OperationResult{
		CorrelationID: req.CorrelationID,
		Tool:          req.Tool,
		Payload:       payload,
	}, nil
}

// prepare validates args against the descriptor and binds them to the operation.
func (d *Dispatcher) prepare(desc *domain.ToolDescriptor, args map[string]any) (invocation, error) {
	if err := domain.ValidateArguments(desc.InputSchema, args); err != nil {
		return nil, err
	}
	a := arguments(args)

	switch desc.Operation {
	case domain.OpSearch:
		q := domain.QuerySpec{
			Index: domain.IndexRef(a.str("index")),
			Query: a.object("query"),
			Size:  a.intOr("size", DefaultSearchSize),
			From:  a.intOr("from", 0),
			Sort:  a.array("sort"),
		}
		if err := q.Index.Validate(); err != nil {
			return nil, err
		}
		if err := domain.ValidateQuery(q.Query); err != nil {
			return nil, err
		}
		return func(ctx context.Context, e Engine) (any, error) { return e.Search(ctx, q) }, nil

	case domain.OpGetDocument:
		index, id, err := a.target()
		if err != nil {
			return nil, err
		}
		return func(ctx context.Context, e Engine) (any, error) { return e.GetDocument(ctx, index, id) }, nil

	case domain.OpIndexDocument:
		index, id, err := a.target()
		if err != nil {
			return nil, err
		}
		payload, err := json.Marshal(a.object("document"))
		if err != nil {
			return nil, domain.Errorf(domain.KindInvalidArgument, "document is not valid JSON: %v", err)
		}
		opts, err := a.indexOptions()
		if err != nil {
			return nil, err
		}
		if opts.OpType == domain.OpTypeCreate && opts.IfSeqNo != nil {
			return nil, domain.Errorf(domain.KindInvalidArgument, "if_seq_no cannot be combined with op_type create")
		}
		return func(ctx context.Context, e Engine) (any, error) {
			return e.IndexDocument(ctx, index, id, payload, opts)
		}, nil

	case domain.OpDeleteDocument:
		index, id, err := a.target()
		if err != nil {
			return nil, err
		}
		opts, err := a.indexOptions()
		if err != nil {
			return nil, err
		}
		return func(ctx context.Context, e Engine) (any, error) {
			return e.DeleteDocument(ctx, index, id, opts)
		}, nil

	case domain.OpBulkWrite:
		ops, err := a.writeOps()
		if err != nil {
			return nil, err
		}
		refresh := a.boolean("refresh")
		return func(ctx context.Context, e Engine) (any, error) { return e.BulkWrite(ctx, ops, refresh) }, nil

	case domain.OpClusterHealth:
		return func(ctx context.Context, e Engine) (any, error) { return e.ClusterHealth(ctx) }, nil

	case domain.OpListIndices:
		pattern := a.str("pattern")
		return func(ctx context.Context, e Engine) (any, error) {
			indices, err := e.ListIndices(ctx, pattern)
			if indices == nil && err == nil {
				indices = []domain.IndexInfo{}
			}
			return indices, err
		}, nil

	case domain.OpListAliases:
		pattern := a.str("pattern")
		return func(ctx context.Context, e Engine) (any, error) {
			aliases, err := e.ListAliases(ctx, pattern)
			if aliases == nil && err == nil {
				aliases = []domain.AliasInfo{}
			}
			return aliases, err
		}, nil

	case domain.OpGetMappings:
		index := domain.IndexRef(a.str("index"))
		if err := index.Validate(); err != nil {
			return nil, err
		}
		return func(ctx context.Context, e Engine) (any, error) { return e.GetMappings(ctx, index) }, nil

	case domain.OpClusterStats:
		return func(ctx context.Context, e Engine) (any, error) { return e.ClusterStats(ctx) }, nil

	case domain.OpShardAllocation:
		nodeID := a.str("node_id")
		return func(ctx context.Context, e Engine) (any, error) {
			rows, err := e.ShardAllocation(ctx, nodeID)
			if rows == nil && err == nil {
				rows = []domain.AllocationInfo{}
			}
			return rows, err
		}, nil
	}
	return nil, domain.Errorf(domain.KindInternal, "tool %q is bound to unknown operation %q", desc.Name, desc.Operation)
}

// arguments gives typed access to schema-validated tool arguments. Numbers may arrive
// as float64 (JSON) or as Go integers (in-process callers).
type arguments map[string]any

func (a arguments) str(key string) string {
	s, _ := a[key].(string)
	return s
}

func (a arguments) boolean(key string) bool {
	b, _ := a[key].(bool)
	return b
}

func (a arguments) object(key string) map[string]any {
	m, _ := a[key].(map[string]any)
	return m
}

func (a arguments) array(key string) []any {
	s, _ := a[key].([]any)
	return s
}

func (a arguments) integer(key string) (int64, bool) {
	switch v := a[key].(type) {
	case float64:
		if v != math.Trunc(v) || v < math.MinInt64 || v >= math.MaxInt64 {
			return 0, false
		}
		return int64(v), true
	case int:
		return int64(v), true
	case int64:
		return v, true
	case json.Number:
		n, err := v.Int64()
		return n, err == nil
	}
	return 0, false
}

func (a arguments) intOr(key string, def int) int {
	if n, ok := a.integer(key); ok {
		return int(n)
	}
	return def
}

func (a arguments) target() (domain.IndexRef, domain.DocumentID, error) {
	index := domain.IndexRef(a.str("index"))
	if err := index.Validate(); err != nil {
		return "", "", err
	}
	id := domain.DocumentID(a.str("id"))
	if err := id.Validate(); err != nil {
		return "", "", err
	}
	return index, id, nil
}

func (a arguments) indexOptions() (domain.IndexOptions, error) {
	opts := domain.IndexOptions{
		OpType:  domain.OpTypeIndex,
		Refresh: a.boolean("refresh"),
	}
	if op := a.str("op_type"); op != "" {
		opts.OpType = domain.OpType(op)
	}
	for _, key := range []string{"if_seq_no", "if_primary_term"} {
		if _, set := a[key]; !set {
			continue
		}
		if _, ok := a.integer(key); !ok {
			return opts, domain.Errorf(domain.KindInvalidArgument, "%s is out of range", key)
		}
	}
	seqNo, hasSeqNo := a.integer("if_seq_no")
	term, hasTerm := a.integer("if_primary_term")
	if hasSeqNo != hasTerm {
		return opts, domain.Errorf(domain.KindInvalidArgument, "if_seq_no and if_primary_term must be provided together")
	}
	if hasSeqNo {
		opts.IfSeqNo = &seqNo
		opts.IfPrimaryTerm = &term
	}
	return opts, nil
}

func (a arguments) writeOps() ([]domain.WriteOp, error) {
	raw := a.array("operations")
	ops := make([]domain.WriteOp, 0, len(raw))
	for i, item := range raw {
		m, _ := item.(map[string]any)
		entry := arguments(m)
		index, id, err := entry.target()
		if err != nil {
			return nil, domain.Errorf(domain.KindInvalidArgument, "operations[%d]: %s", i, domain.AsError(err).Message)
		}
		op := domain.WriteOp{
			Action: domain.WriteAction(entry.str("action")),
			Index:  index,
			ID:     id,
		}
		doc, hasDoc := m["document"]
		switch op.Action {
		case domain.WriteActionIndex, domain.WriteActionCreate:
			if !hasDoc {
				return nil, domain.Errorf(domain.KindInvalidArgument, "operations[%d]: document is required for %s", i, op.Action)
			}
			payload, err := json.Marshal(doc)
			if err != nil {
				return nil, domain.Errorf(domain.KindInvalidArgument, "operations[%d]: document is not valid JSON: %v", i, err)
			}
			op.Document = payload
		case domain.WriteActionDelete:
			if hasDoc {
				return nil, domain.Errorf(domain.KindInvalidArgument, "operations[%d]: document is not allowed for delete", i)
			}
		}
		ops = append(ops, op)
	}
	return ops, nil
}
