// Package service implements the Connect sync relay: a server that keeps the
// last merged copy of every group pushed to it.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"

	"connectrpc.com/connect"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"

	"github.com/carlo-colombo/cashsplitter/internal/calculator"
	"github.com/carlo-colombo/cashsplitter/internal/codec"
	"github.com/carlo-colombo/cashsplitter/internal/merge"
	"github.com/carlo-colombo/cashsplitter/internal/metrics"
	"github.com/carlo-colombo/cashsplitter/internal/models"
	"github.com/carlo-colombo/cashsplitter/internal/storage"
)

// SyncServiceName is the fully-qualified name of the sync service.
const SyncServiceName = "cashsplitter.v1.SyncService"

// Procedure paths of the sync service.
const (
	PushProcedure     = "/" + SyncServiceName + "/Push"
	PullProcedure     = "/" + SyncServiceName + "/Pull"
	ListProcedure     = "/" + SyncServiceName + "/List"
	BalancesProcedure = "/" + SyncServiceName + "/Balances"
	DeleteProcedure   = "/" + SyncServiceName + "/Delete"
)

// SyncService implements the Connect SyncService
type SyncService struct {
	store   storage.Store
	metrics *metrics.Metrics

	// mu serializes the read-merge-write cycle of Push.
	mu sync.Mutex
}

// NewSyncService creates a new SyncService with the given storage backend.
// m may be nil to disable merge metrics.
func NewSyncService(store storage.Store, m *metrics.Metrics) *SyncService {
	return &SyncService{store: store, metrics: m}
}

// NewHandler builds an HTTP handler serving every procedure of svc and
// returns the path prefix to mount it on.
func NewHandler(svc *SyncService, opts ...connect.HandlerOption) (string, http.Handler) {
	mux := http.NewServeMux()
	mux.Handle(PushProcedure, connect.NewUnaryHandler(PushProcedure, svc.Push, opts...))
	mux.Handle(PullProcedure, connect.NewUnaryHandler(PullProcedure, svc.Pull, opts...))
	mux.Handle(ListProcedure, connect.NewUnaryHandler(ListProcedure, svc.List, opts...))
	mux.Handle(BalancesProcedure, connect.NewUnaryHandler(BalancesProcedure, svc.Balances, opts...))
	mux.Handle(DeleteProcedure, connect.NewUnaryHandler(DeleteProcedure, svc.Delete, opts...))
	return "/" + SyncServiceName + "/", mux
}

// Push merges the pushed group into the stored copy and returns the result.
// A group the relay has never seen is stored as is.
func (s *SyncService) Push(ctx context.Context, req *connect.Request[wrapperspb.BytesValue]) (*connect.Response[wrapperspb.BytesValue], error) {
	incoming, err := codec.DecodeBytes(req.Msg.GetValue())
	if err != nil {
		slog.Warn("Push rejected", "error", err)
		return nil, toConnectError(err)
	}
	key := storage.Key(incoming.Identity())
	slog.Info("Push request received",
		"key", key,
		"description", incoming.Description,
		"revision", incoming.Revision,
		"log_len", incoming.LogLen(),
	)

	s.mu.Lock()
	defer s.mu.Unlock()

	stored, err := s.store.Get(ctx, incoming.Identity())
	if errors.Is(err, storage.ErrNotFound) {
		if err := s.store.Put(ctx, incoming); err != nil {
			slog.Error("Push failed", "key", key, "error", err)
			return nil, toConnectError(err)
		}
		s.metrics.ObserveMerge(metrics.OutcomeCreated)
		slog.Info("Group created", "key", key, "revision", incoming.Revision)
		return encodeResponse(incoming)
	}
	if err != nil {
		slog.Error("Push failed", "key", key, "error", err)
		return nil, toConnectError(err)
	}

	if same, err := s.sameContent(ctx, stored, incoming); err != nil {
		return nil, toConnectError(err)
	} else if same {
		s.metrics.ObserveMerge(metrics.OutcomeUnchanged)
		return encodeResponse(stored)
	}

	merged, err := merge.Merge(stored, incoming)
	if err != nil {
		var conflictErr *models.MergeConflictError
		if errors.As(err, &conflictErr) {
			s.metrics.ObserveMerge(metrics.OutcomeConflict)
			s.metrics.ObserveConflicts(conflictErr.Conflicts)
			slog.Warn("Push conflicts", "key", key, "conflicts", len(conflictErr.Conflicts))
		}
		return nil, toConnectError(err)
	}

	if err := s.store.Put(ctx, merged); err != nil {
		slog.Error("Push failed", "key", key, "error", err)
		return nil, toConnectError(err)
	}
	s.metrics.ObserveMerge(metrics.OutcomeMerged)
	slog.Info("Group merged", "key", key, "revision", merged.Revision, "log_len", merged.LogLen())

	return encodeResponse(merged)
}

// Pull returns the stored group with the given key.
func (s *SyncService) Pull(ctx context.Context, req *connect.Request[wrapperspb.StringValue]) (*connect.Response[wrapperspb.BytesValue], error) {
	key := req.Msg.GetValue()
	slog.Info("Pull request received", "key", key)

	g, err := storage.GetByKey(ctx, s.store, key)
	if err != nil {
		slog.Error("Pull failed", "key", key, "error", err)
		return nil, toConnectError(err)
	}
	return encodeResponse(g)
}

// List returns a summary of every stored group.
func (s *SyncService) List(ctx context.Context, req *connect.Request[emptypb.Empty]) (*connect.Response[structpb.ListValue], error) {
	ids, err := s.store.List(ctx)
	if err != nil {
		slog.Error("List failed", "error", err)
		return nil, toConnectError(err)
	}

	items := make([]any, 0, len(ids))
	for _, id := range ids {
		g, err := s.store.Get(ctx, id)
		if err != nil {
			slog.Error("List failed", "key", storage.Key(id), "error", err)
			return nil, toConnectError(err)
		}
		items = append(items, map[string]any{
			"key":         storage.Key(id),
			"description": id.Description,
			"timestamp":   id.Timestamp,
			"revision":    g.Revision,
		})
	}

	list, err := structpb.NewList(items)
	if err != nil {
		return nil, connect.NewError(connect.CodeInternal, err)
	}

	slog.Info("List successful", "count", len(ids))
	return connect.NewResponse(list), nil
}

// Balances returns the per-member balances of the stored group.
func (s *SyncService) Balances(ctx context.Context, req *connect.Request[wrapperspb.StringValue]) (*connect.Response[structpb.ListValue], error) {
	key := req.Msg.GetValue()
	slog.Info("Balances request received", "key", key)

	g, err := storage.GetByKey(ctx, s.store, key)
	if err != nil {
		slog.Error("Balances failed", "key", key, "error", err)
		return nil, toConnectError(err)
	}

	balances := calculator.CalculateBalances(g)
	items := make([]any, 0, len(balances))
	for _, b := range balances {
		items = append(items, map[string]any{
			"member_id": b.MemberID,
			"name":      b.Name,
			"balance":   b.Balance,
		})
	}
	list, err := structpb.NewList(items)
	if err != nil {
		return nil, connect.NewError(connect.CodeInternal, err)
	}

	slog.Info("Balances successful", "key", key, "members_count", len(balances))
	return connect.NewResponse(list), nil
}

// Delete removes the stored group with the given key.
func (s *SyncService) Delete(ctx context.Context, req *connect.Request[wrapperspb.StringValue]) (*connect.Response[emptypb.Empty], error) {
	key := req.Msg.GetValue()
	slog.Info("Delete request received", "key", key)

	s.mu.Lock()
	defer s.mu.Unlock()

	id, err := storage.ResolveKey(ctx, s.store, key)
	if err != nil {
		return nil, toConnectError(err)
	}
	if err := s.store.Delete(ctx, id); err != nil {
		slog.Error("Delete failed", "key", key, "error", err)
		return nil, toConnectError(err)
	}

	slog.Info("Group deleted", "key", key)
	return connect.NewResponse(&emptypb.Empty{}), nil
}

// sameContent compares fingerprints, reading the stored one from the store
// when it keeps them.
func (s *SyncService) sameContent(ctx context.Context, stored, incoming models.Group) (bool, error) {
	var (
		fa  string
		err error
	)
	if fg, ok := s.store.(storage.FingerprintGetter); ok {
		fa, err = fg.Fingerprint(ctx, stored.Identity())
	} else {
		fa, err = codec.Fingerprint(stored)
	}
	if err != nil {
		return false, err
	}
	fb, err := codec.Fingerprint(incoming)
	if err != nil {
		return false, err
	}
	return fa == fb, nil
}

func encodeResponse(g models.Group) (*connect.Response[wrapperspb.BytesValue], error) {
	b, err := codec.EncodeBytes(g)
	if err != nil {
		return nil, connect.NewError(connect.CodeInternal, err)
	}
	return connect.NewResponse(wrapperspb.Bytes(b)), nil
}

// toConnectError maps domain errors to Connect codes. Merge conflicts carry
// one error detail listing every conflict.
func toConnectError(err error) error {
	var (
		validationErr *models.ValidationError
		decodeErr     *models.DecodeError
		conflictErr   *models.MergeConflictError
	)
	switch {
	case errors.As(err, &conflictErr):
		connectErr := connect.NewError(connect.CodeAborted, err)
		descriptions := make([]any, len(conflictErr.Conflicts))
		for i, c := range conflictErr.Conflicts {
			descriptions[i] = c.String()
		}
		if list, listErr := structpb.NewList(descriptions); listErr == nil {
			if detail, detailErr := connect.NewErrorDetail(list); detailErr == nil {
				connectErr.AddDetail(detail)
			}
		}
		return connectErr
	case errors.As(err, &validationErr), errors.As(err, &decodeErr), errors.Is(err, storage.ErrInvalidKey):
		return connect.NewError(connect.CodeInvalidArgument, err)
	case errors.Is(err, storage.ErrNotFound):
		return connect.NewError(connect.CodeNotFound, err)
	default:
		return connect.NewError(connect.CodeInternal, fmt.Errorf("internal error: %w", err))
	}
}

// ConflictsFromError returns the conflict descriptions attached to an
// Aborted error returned by Push, or nil.
func ConflictsFromError(err error) []string {
	var connectErr *connect.Error
	if !errors.As(err, &connectErr) || connectErr.Code() != connect.CodeAborted {
		return nil
	}
	var out []string
	for _, detail := range connectErr.Details() {
		msg, err := detail.Value()
		if err != nil {
			continue
		}
		list, ok := msg.(*structpb.ListValue)
		if !ok {
			continue
		}
		for _, v := range list.GetValues() {
			out = append(out, v.GetStringValue())
		}
	}
	return out
}
