package service

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"orderbridge/internal/gateway"
	"orderbridge/internal/metrics"
	"orderbridge/internal/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// MockMappings implements repository.StatusMappingInterface.
type MockMappings struct {
	Entries []model.StatusMapping
	Err     error
}

func (m *MockMappings) GetAll(ctx context.Context) ([]model.StatusMapping, error) {
	return m.Entries, m.Err
}

func newTestReconciler(source *MockSource, dest *MockDest, mappings *MockMappings) *StatusReconciler {
	return NewStatusReconciler(source, dest, mappings, nil, time.Minute, 50, metrics.NewNopObserver())
}

func destOrder(id, externalCode, status string) gateway.DestinationOrder {
	o := gateway.DestinationOrder{ID: id, ExternalCode: externalCode}
	o.State.Name = status
	return o
}

func TestStatusReconciler_SweepDownstream_MappedStatusUpdatesSource(t *testing.T) {
	source := &MockSource{}
	dest := &MockDest{
		ListFn: func(ctx context.Context, limit int) ([]gateway.DestinationOrder, error) {
			return []gateway.DestinationOrder{destOrder("dst-1", "42", "Shipped")}, nil
		},
	}
	mappings := &MockMappings{Entries: []model.StatusMapping{
		{ID: 1, SourceStatus: "completed", DestinationStatus: "Shipped"},
	}}
	r := newTestReconciler(source, dest, mappings)

	summary, err := r.SweepDownstream(context.Background())
	require.NoError(t, err)

	require.Len(t, source.StatusCalls, 1)
	assert.Equal(t, int64(42), source.StatusCalls[0].OrderID)
	assert.Equal(t, "completed", source.StatusCalls[0].Status)
	assert.Equal(t, 1, summary.Succeeded)
}

func TestStatusReconciler_SweepDownstream_SkipsUnmappedAndUnlinked(t *testing.T) {
	source := &MockSource{}
	dest := &MockDest{
		ListFn: func(ctx context.Context, limit int) ([]gateway.DestinationOrder, error) {
			return []gateway.DestinationOrder{
				destOrder("dst-1", "42", "Packed"),  // no mapping entry
				destOrder("dst-2", "", "Shipped"),   // never linked to a source order
				destOrder("dst-3", "oops", "Shipped"), // external code is not a source id
			}, nil
		},
	}
	mappings := &MockMappings{Entries: []model.StatusMapping{
		{ID: 1, SourceStatus: "completed", DestinationStatus: "Shipped"},
	}}
	r := newTestReconciler(source, dest, mappings)

	summary, err := r.SweepDownstream(context.Background())
	require.NoError(t, err)

	assert.Empty(t, source.StatusCalls)
	assert.Equal(t, 0, summary.Processed)
	assert.Equal(t, 0, summary.Failed)
}

func TestStatusReconciler_SweepDownstream_DeduplicatesOrders(t *testing.T) {
	source := &MockSource{}
	dest := &MockDest{
		ListFn: func(ctx context.Context, limit int) ([]gateway.DestinationOrder, error) {
			return []gateway.DestinationOrder{
				destOrder("dst-1", "42", "Shipped"),
				destOrder("dst-1", "42", "Shipped"),
			}, nil
		},
	}
	mappings := &MockMappings{Entries: []model.StatusMapping{
		{ID: 1, SourceStatus: "completed", DestinationStatus: "Shipped"},
	}}
	r := newTestReconciler(source, dest, mappings)

	_, err := r.SweepDownstream(context.Background())
	require.NoError(t, err)
	assert.Len(t, source.StatusCalls, 1, "one status write per order per sweep")
}

func TestStatusReconciler_SweepDownstream_EmptyMappingSkipsSweep(t *testing.T) {
	dest := &MockDest{
		ListFn: func(ctx context.Context, limit int) ([]gateway.DestinationOrder, error) {
			t.Fatal("must not list destination orders when the mapping table is empty")
			return nil, nil
		},
	}
	r := newTestReconciler(&MockSource{}, dest, &MockMappings{})

	summary, err := r.SweepDownstream(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, summary.Processed)
}

func TestStatusReconciler_SweepDownstream_MappingLoadErrorAborts(t *testing.T) {
	r := newTestReconciler(&MockSource{}, &MockDest{}, &MockMappings{Err: errors.New("db gone")})

	_, err := r.SweepDownstream(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "load status mappings")
}

func TestStatusReconciler_SweepUpstream_PinnedRefSkipsCatalog(t *testing.T) {
	source := &MockSource{
		ListFn: func(ctx context.Context, limit int) ([]gateway.SourceOrder, error) {
			return []gateway.SourceOrder{{
				ID:     42,
				Status: "completed",
				MetaData: []gateway.MetaField{
					{Key: gateway.MetaDestinationID, Value: "dst-1"},
				},
			}}, nil
		},
	}
	dest := &MockDest{}
	mappings := &MockMappings{Entries: []model.StatusMapping{
		{ID: 1, SourceStatus: "completed", DestinationStatus: "Shipped",
			DestinationStatusRef: "https://dest.example/entity/customerorder/metadata/states/abc"},
	}}
	r := newTestReconciler(source, dest, mappings)

	summary, err := r.SweepUpstream(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 0, dest.CatalogCalls, "a pinned reference must not trigger a catalog fetch")
	require.Len(t, dest.StatusCalls, 1)
	assert.Equal(t, "dst-1", dest.StatusCalls[0].OrderID)
	assert.Equal(t, "Shipped", dest.StatusCalls[0].Ref.Name)
	assert.Equal(t, "https://dest.example/entity/customerorder/metadata/states/abc", dest.StatusCalls[0].Ref.Href)
	assert.Equal(t, 1, summary.Succeeded)
}

func TestStatusReconciler_SweepUpstream_CatalogFetchedOncePerSweep(t *testing.T) {
	order := func(id int64) gateway.SourceOrder {
		return gateway.SourceOrder{
			ID:     id,
			Status: "completed",
			MetaData: []gateway.MetaField{
				{Key: gateway.MetaDestinationID, Value: fmt.Sprintf("dst-%d", id)},
			},
		}
	}
	source := &MockSource{
		ListFn: func(ctx context.Context, limit int) ([]gateway.SourceOrder, error) {
			return []gateway.SourceOrder{order(1), order(2)}, nil
		},
	}
	dest := &MockDest{
		CatalogFn: func(ctx context.Context) ([]gateway.StatusRef, error) {
			return []gateway.StatusRef{{Name: "Shipped", Href: "https://dest.example/states/abc"}}, nil
		},
	}
	mappings := &MockMappings{Entries: []model.StatusMapping{
		{ID: 1, SourceStatus: "completed", DestinationStatus: "Shipped"},
	}}
	r := newTestReconciler(source, dest, mappings)

	summary, err := r.SweepUpstream(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, dest.CatalogCalls)
	assert.Len(t, dest.StatusCalls, 2)
	assert.Equal(t, 2, summary.Succeeded)
}

func TestStatusReconciler_SweepUpstream_StatusMissingFromCatalog(t *testing.T) {
	source := &MockSource{
		ListFn: func(ctx context.Context, limit int) ([]gateway.SourceOrder, error) {
			return []gateway.SourceOrder{{
				ID:     42,
				Status: "completed",
				MetaData: []gateway.MetaField{
					{Key: gateway.MetaDestinationID, Value: "dst-1"},
				},
			}}, nil
		},
	}
	dest := &MockDest{
		CatalogFn: func(ctx context.Context) ([]gateway.StatusRef, error) {
			return []gateway.StatusRef{{Name: "Cancelled", Href: "https://dest.example/states/x"}}, nil
		},
	}
	mappings := &MockMappings{Entries: []model.StatusMapping{
		{ID: 1, SourceStatus: "completed", DestinationStatus: "Shipped"},
	}}
	r := newTestReconciler(source, dest, mappings)

	summary, err := r.SweepUpstream(context.Background())
	require.NoError(t, err)

	assert.Empty(t, dest.StatusCalls)
	assert.Equal(t, 1, summary.Failed)
}

func TestStatusReconciler_SweepUpstream_SkipsUnlinkedOrders(t *testing.T) {
	source := &MockSource{
		ListFn: func(ctx context.Context, limit int) ([]gateway.SourceOrder, error) {
			return []gateway.SourceOrder{{ID: 42, Status: "completed"}}, nil
		},
	}
	dest := &MockDest{}
	mappings := &MockMappings{Entries: []model.StatusMapping{
		{ID: 1, SourceStatus: "completed", DestinationStatus: "Shipped"},
	}}
	r := newTestReconciler(source, dest, mappings)

	summary, err := r.SweepUpstream(context.Background())
	require.NoError(t, err)
	assert.Empty(t, dest.StatusCalls)
	assert.Equal(t, 0, summary.Processed)
}
