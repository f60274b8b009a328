package service

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/appliedinnovationcorp/nexus-v3-sub003/internal/dberrors"
	"github.com/appliedinnovationcorp/nexus-v3-sub003/internal/model"
	"github.com/appliedinnovationcorp/nexus-v3-sub003/internal/registry"
)

// MockBackends is a mock implementation of Backends
type MockBackends struct {
	mock.Mock
}

func (m *MockBackends) ExecuteOnPrimary(ctx context.Context, sql string, args ...any) ([]registry.Row, error) {
	mockArgs := m.Called(ctx, sql, args)
	return mockArgs.Get(0).([]registry.Row), mockArgs.Error(1)
}

func (m *MockBackends) ExecuteOnReplica(ctx context.Context, sql string, args ...any) ([]registry.Row, error) {
	mockArgs := m.Called(ctx, sql, args)
	return mockArgs.Get(0).([]registry.Row), mockArgs.Error(1)
}

func (m *MockBackends) ExecuteOnShard(ctx context.Context, id string, sql string, args ...any) ([]registry.Row, error) {
	mockArgs := m.Called(ctx, id, sql, args)
	return mockArgs.Get(0).([]registry.Row), mockArgs.Error(1)
}

func (m *MockBackends) ExecuteOnAllShards(ctx context.Context, sql string, args ...any) ([]registry.Row, error) {
	mockArgs := m.Called(ctx, sql, args)
	return mockArgs.Get(0).([]registry.Row), mockArgs.Error(1)
}

func (m *MockBackends) ExecuteAnalyticsQuery(ctx context.Context, sql string, args ...any) ([]registry.Row, error) {
	mockArgs := m.Called(ctx, sql, args)
	return mockArgs.Get(0).([]registry.Row), mockArgs.Error(1)
}

func (m *MockBackends) ExecOnPrimary(ctx context.Context, sql string, args ...any) (int64, error) {
	mockArgs := m.Called(ctx, sql, args)
	return mockArgs.Get(0).(int64), mockArgs.Error(1)
}

func (m *MockBackends) ExecOnShard(ctx context.Context, id string, sql string, args ...any) (int64, error) {
	mockArgs := m.Called(ctx, id, sql, args)
	return mockArgs.Get(0).(int64), mockArgs.Error(1)
}

func (m *MockBackends) ShardFor(id string) (int, error) {
	mockArgs := m.Called(id)
	return mockArgs.Int(0), mockArgs.Error(1)
}

func (m *MockBackends) CacheGet(ctx context.Context, key string) (string, error) {
	mockArgs := m.Called(ctx, key)
	return mockArgs.String(0), mockArgs.Error(1)
}

func (m *MockBackends) CacheSet(ctx context.Context, key string, value string, ttl time.Duration) error {
	mockArgs := m.Called(ctx, key, value, ttl)
	return mockArgs.Error(0)
}

func (m *MockBackends) CacheDel(ctx context.Context, key string) error {
	mockArgs := m.Called(ctx, key)
	return mockArgs.Error(0)
}

func newService(backends Backends) *EntityService {
	return NewEntityService(backends, 5*time.Minute, zap.NewNop())
}

func TestCreateEntity_DualWritesAndPopulatesCache(t *testing.T) {
	backends := new(MockBackends)
	backends.On("ExecOnPrimary", mock.Anything, insertEntitySQL, mock.Anything).Return(int64(1), nil)
	backends.On("ExecOnShard", mock.Anything, "u1", insertProjectionSQL, mock.Anything).Return(int64(1), nil)
	backends.On("CacheSet", mock.Anything, "entity:u1", mock.Anything, 5*time.Minute).Return(nil)

	svc := newService(backends)
	id, err := svc.CreateEntity(context.Background(), &model.Entity{ID: "u1", Email: "a@b.com"})

	require.NoError(t, err)
	assert.Equal(t, "u1", id)
	backends.AssertExpectations(t)
}

func TestCreateEntity_GeneratesIDWhenAbsent(t *testing.T) {
	backends := new(MockBackends)
	backends.On("ExecOnPrimary", mock.Anything, insertEntitySQL, mock.Anything).Return(int64(1), nil)
	backends.On("ExecOnShard", mock.Anything, mock.Anything, insertProjectionSQL, mock.Anything).Return(int64(1), nil)
	backends.On("CacheSet", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(nil)

	svc := newService(backends)
	id, err := svc.CreateEntity(context.Background(), &model.Entity{Email: "a@b.com"})

	require.NoError(t, err)
	assert.NotEmpty(t, id)
}

func TestCreateEntity_PrimaryFailureAbortsDualWrite(t *testing.T) {
	backends := new(MockBackends)
	backends.On("ExecOnPrimary", mock.Anything, insertEntitySQL, mock.Anything).
		Return(int64(0), errors.New("primary down"))

	svc := newService(backends)
	_, err := svc.CreateEntity(context.Background(), &model.Entity{ID: "u1", Email: "a@b.com"})

	require.Error(t, err)
	backends.AssertNotCalled(t, "ExecOnShard", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	backends.AssertNotCalled(t, "CacheSet", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestCreateEntity_ShardWriteFailureIsSurfacedWithID(t *testing.T) {
	backends := new(MockBackends)
	backends.On("ExecOnPrimary", mock.Anything, insertEntitySQL, mock.Anything).Return(int64(1), nil)
	backends.On("ExecOnShard", mock.Anything, "u1", insertProjectionSQL, mock.Anything).
		Return(int64(0), errors.New("shard down"))
	backends.On("ShardFor", "u1").Return(2, nil)

	svc := newService(backends)
	id, err := svc.CreateEntity(context.Background(), &model.Entity{ID: "u1", Email: "a@b.com"})

	// The primary commit stands: callers get the id and a typed error
	// marking the divergence, never a silent drop.
	require.Error(t, err)
	assert.Equal(t, "u1", id)
	assert.Equal(t, dberrors.ErrCodeShardWriteFailed, dberrors.GetCode(err))
	backends.AssertNotCalled(t, "CacheSet", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func cachedJSON(t *testing.T, entity *model.Entity) string {
	t.Helper()
	data, err := json.Marshal(entity)
	require.NoError(t, err)
	return string(data)
}

func TestGetEntityByID_CacheHitSkipsReplica(t *testing.T) {
	entity := &model.Entity{ID: "u1", Email: "a@b.com"}
	backends := new(MockBackends)
	backends.On("CacheGet", mock.Anything, "entity:u1").Return(cachedJSON(t, entity), nil)

	svc := newService(backends)
	got, err := svc.GetEntityByID(context.Background(), "u1")

	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "a@b.com", got.Email)
	backends.AssertNotCalled(t, "ExecuteOnReplica", mock.Anything, mock.Anything, mock.Anything)
}

func TestGetEntityByID_CacheMissReadsReplicaAndRepopulates(t *testing.T) {
	backends := new(MockBackends)
	backends.On("CacheGet", mock.Anything, "entity:u1").Return("", dberrors.ErrCacheMiss)
	backends.On("ExecuteOnReplica", mock.Anything, selectEntitySQL, []any{"u1"}).
		Return([]registry.Row{{"id": "u1", "email": "a@b.com", "name": "Ada"}}, nil)
	backends.On("CacheSet", mock.Anything, "entity:u1", mock.Anything, 5*time.Minute).Return(nil)

	svc := newService(backends)
	got, err := svc.GetEntityByID(context.Background(), "u1")

	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "Ada", got.Name)
	backends.AssertExpectations(t)
}

func TestGetEntityByID_MissEverywhereReturnsNilNotError(t *testing.T) {
	backends := new(MockBackends)
	backends.On("CacheGet", mock.Anything, "entity:ghost").Return("", dberrors.ErrCacheMiss)
	backends.On("ExecuteOnReplica", mock.Anything, selectEntitySQL, []any{"ghost"}).
		Return([]registry.Row{}, nil)

	svc := newService(backends)
	got, err := svc.GetEntityByID(context.Background(), "ghost")

	require.NoError(t, err)
	assert.Nil(t, got)
	backends.AssertNotCalled(t, "CacheSet", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestGetEntityByID_CacheOutageDegradesToReplica(t *testing.T) {
	backends := new(MockBackends)
	backends.On("CacheGet", mock.Anything, "entity:u1").
		Return("", dberrors.New(dberrors.ErrCodeCacheFailed, "cache get failed", errors.New("redis down")))
	backends.On("ExecuteOnReplica", mock.Anything, selectEntitySQL, []any{"u1"}).
		Return([]registry.Row{{"id": "u1", "email": "a@b.com"}}, nil)
	backends.On("CacheSet", mock.Anything, "entity:u1", mock.Anything, mock.Anything).Return(nil)

	svc := newService(backends)
	got, err := svc.GetEntityByID(context.Background(), "u1")

	require.NoError(t, err)
	require.NotNil(t, got)
}

func TestGetTotalCount_SumsShardPartials(t *testing.T) {
	backends := new(MockBackends)
	backends.On("ExecuteOnAllShards", mock.Anything, countProjectionsSQL, mock.Anything).
		Return([]registry.Row{{"total": int64(3)}, {"total": int64(4)}}, nil)

	svc := newService(backends)
	total, err := svc.GetTotalCount(context.Background())

	require.NoError(t, err)
	assert.Equal(t, int64(7), total)
}

func TestGetTotalCount_PropagatesScatterFailure(t *testing.T) {
	backends := new(MockBackends)
	backends.On("ExecuteOnAllShards", mock.Anything, countProjectionsSQL, mock.Anything).
		Return([]registry.Row(nil), dberrors.ScatterFailed([]int{1}, errors.New("shard down")))

	svc := newService(backends)
	_, err := svc.GetTotalCount(context.Background())

	require.Error(t, err)
	assert.Equal(t, dberrors.ErrCodeScatterFailed, dberrors.GetCode(err))
}

func TestGetAnalytics_ZeroRowsYieldZeroValuedReport(t *testing.T) {
	backends := new(MockBackends)
	backends.On("ExecuteAnalyticsQuery", mock.Anything, analyticsSQL, mock.Anything).
		Return([]registry.Row{}, nil)

	svc := newService(backends)
	from, to := time.Now().Add(-time.Hour), time.Now()
	report, err := svc.GetAnalytics(context.Background(), "u1", from, to)

	require.NoError(t, err)
	require.NotNil(t, report)
	assert.Equal(t, "u1", report.EntityID)
	assert.Zero(t, report.EventCount)
	assert.Zero(t, report.TotalValue)
}

func TestGetAnalytics_PopulatesAggregates(t *testing.T) {
	backends := new(MockBackends)
	backends.On("ExecuteAnalyticsQuery", mock.Anything, analyticsSQL, mock.Anything).
		Return([]registry.Row{{"event_count": int64(12), "total_value": 34.5}}, nil)

	svc := newService(backends)
	report, err := svc.GetAnalytics(context.Background(), "u1", time.Now().Add(-time.Hour), time.Now())

	require.NoError(t, err)
	assert.Equal(t, int64(12), report.EventCount)
	assert.Equal(t, 34.5, report.TotalValue)
}

func TestDeleteEntity_RemovesFromCachePrimaryAndShard(t *testing.T) {
	backends := new(MockBackends)
	backends.On("CacheDel", mock.Anything, "entity:u1").Return(nil)
	backends.On("ExecOnPrimary", mock.Anything, deleteEntitySQL, []any{"u1"}).Return(int64(1), nil)
	backends.On("ExecOnShard", mock.Anything, "u1", deleteProjectionSQL, []any{"u1"}).Return(int64(1), nil)

	svc := newService(backends)
	require.NoError(t, svc.DeleteEntity(context.Background(), "u1"))
	backends.AssertExpectations(t)
}

func TestDeleteEntity_ShardFailureIsTyped(t *testing.T) {
	backends := new(MockBackends)
	backends.On("CacheDel", mock.Anything, "entity:u1").Return(nil)
	backends.On("ExecOnPrimary", mock.Anything, deleteEntitySQL, []any{"u1"}).Return(int64(1), nil)
	backends.On("ExecOnShard", mock.Anything, "u1", deleteProjectionSQL, []any{"u1"}).
		Return(int64(0), errors.New("shard down"))
	backends.On("ShardFor", "u1").Return(0, nil)

	svc := newService(backends)
	err := svc.DeleteEntity(context.Background(), "u1")

	require.Error(t, err)
	assert.Equal(t, dberrors.ErrCodeShardWriteFailed, dberrors.GetCode(err))
}

func TestPurgeExpired_PurgesPrimaryAndShardProjections(t *testing.T) {
	cutoff := time.Now().Add(-90 * 24 * time.Hour)

	backends := new(MockBackends)
	backends.On("ExecuteOnPrimary", mock.Anything, purgeExpiredSQL, []any{cutoff}).
		Return([]registry.Row{{"id": "u1"}, {"id": "u2"}}, nil)
	backends.On("CacheDel", mock.Anything, "entity:u1").Return(nil)
	backends.On("CacheDel", mock.Anything, "entity:u2").Return(nil)
	backends.On("ExecOnShard", mock.Anything, "u1", deleteProjectionSQL, []any{"u1"}).Return(int64(1), nil)
	backends.On("ExecOnShard", mock.Anything, "u2", deleteProjectionSQL, []any{"u2"}).
		Return(int64(0), errors.New("shard down"))

	svc := newService(backends)
	purged, err := svc.PurgeExpired(context.Background(), cutoff)

	// The primary delete already happened for both rows; a shard-side
	// failure is logged but does not fail the purge.
	require.NoError(t, err)
	assert.Equal(t, int64(2), purged)
	backends.AssertExpectations(t)
}

func TestPurgeExpired_PrimaryFailurePropagates(t *testing.T) {
	backends := new(MockBackends)
	backends.On("ExecuteOnPrimary", mock.Anything, purgeExpiredSQL, mock.Anything).
		Return([]registry.Row(nil), errors.New("primary down"))

	svc := newService(backends)
	_, err := svc.PurgeExpired(context.Background(), time.Now())
	require.Error(t, err)
}
