package services

import (
	"context"
	"testing"
	"time"

	"streamcast/internal/core/domain"
	"streamcast/internal/infrastructure/monitoring"
	"streamcast/pkg/logger"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/mock"
	"go.uber.org/zap"
)

func testLogger() *zap.SugaredLogger {
	return logger.NewNop().Sugar()
}

func testCollector() *monitoring.Collector {
	return monitoring.NewCollector(prometheus.NewRegistry())
}

type mockEncoder struct {
	mock.Mock
	events chan domain.EncoderEvent
}

func newMockEncoder(t *testing.T) *mockEncoder {
	t.Helper()
	return &mockEncoder{events: make(chan domain.EncoderEvent, 8)}
}

func (m *mockEncoder) QueryOutputActive(ctx context.Context) (bool, error) {
	args := m.Called(ctx)
	return args.Bool(0), args.Error(1)
}

func (m *mockEncoder) StartOutput(ctx context.Context) error {
	return m.Called(ctx).Error(0)
}

func (m *mockEncoder) StopOutput(ctx context.Context) error {
	return m.Called(ctx).Error(0)
}

func (m *mockEncoder) GetOutputDestination(ctx context.Context) (domain.EndpointSettings, error) {
	args := m.Called(ctx)
	return args.Get(0).(domain.EndpointSettings), args.Error(1)
}

func (m *mockEncoder) SetOutputDestination(ctx context.Context, settings domain.EndpointSettings) error {
	return m.Called(ctx, settings).Error(0)
}

func (m *mockEncoder) SwitchScene(ctx context.Context, sceneName string) error {
	return m.Called(ctx, sceneName).Error(0)
}

func (m *mockEncoder) SetSourceText(ctx context.Context, sourceName, text string) error {
	return m.Called(ctx, sourceName, text).Error(0)
}

func (m *mockEncoder) Events() <-chan domain.EncoderEvent {
	return m.events
}

func (m *mockEncoder) emit(kind domain.EncoderEventKind) {
	m.events <- domain.EncoderEvent{Kind: kind, At: time.Now()}
}

type mockPlatform struct {
	mock.Mock
}

func (m *mockPlatform) CreateBroadcast(ctx context.Context, params domain.BroadcastParams) (domain.BroadcastID, string, error) {
	args := m.Called(ctx, params)
	return args.Get(0).(domain.BroadcastID), args.String(1), args.Error(2)
}

func (m *mockPlatform) CreateTransportEndpoint(ctx context.Context) (domain.EndpointID, domain.EndpointSettings, error) {
	args := m.Called(ctx)
	return args.Get(0).(domain.EndpointID), args.Get(1).(domain.EndpointSettings), args.Error(2)
}

func (m *mockPlatform) BindBroadcastToEndpoint(ctx context.Context, broadcastID domain.BroadcastID, endpointID domain.EndpointID) error {
	return m.Called(ctx, broadcastID, endpointID).Error(0)
}

func (m *mockPlatform) GetBroadcastState(ctx context.Context, broadcastID domain.BroadcastID) (domain.RemoteState, error) {
	args := m.Called(ctx, broadcastID)
	return args.Get(0).(domain.RemoteState), args.Error(1)
}

func (m *mockPlatform) RequestTransition(ctx context.Context, broadcastID domain.BroadcastID, target domain.RemoteState) (domain.TransitionOutcome, domain.RemoteState, error) {
	args := m.Called(ctx, broadcastID, target)
	return args.Get(0).(domain.TransitionOutcome), args.Get(1).(domain.RemoteState), args.Error(2)
}

type mockOperator struct {
	mock.Mock
}

func (m *mockOperator) ConfirmLiveTransition(ctx context.Context, broadcastID domain.BroadcastID) (bool, error) {
	args := m.Called(ctx, broadcastID)
	return args.Bool(0), args.Error(1)
}

type mockMonitor struct {
	mock.Mock
}

func (m *mockMonitor) IsActive(ctx context.Context) (bool, error) {
	args := m.Called(ctx)
	return args.Bool(0), args.Error(1)
}

func (m *mockMonitor) AwaitActive(ctx context.Context, timeout time.Duration) bool {
	return m.Called(ctx, timeout).Bool(0)
}

func (m *mockMonitor) Reset() {
	m.Called()
}

type mockReconciler struct {
	mock.Mock
}

func (m *mockReconciler) Apply(ctx context.Context, desired domain.EndpointSettings) (domain.ApplyOutcome, error) {
	args := m.Called(ctx, desired)
	return args.Get(0).(domain.ApplyOutcome), args.Error(1)
}

type mockStateMachine struct {
	mock.Mock
}

func (m *mockStateMachine) PromoteToLive(ctx context.Context, broadcastID domain.BroadcastID) (*domain.PromotionReport, error) {
	args := m.Called(ctx, broadcastID)
	var report *domain.PromotionReport
	if args.Get(0) != nil {
		report = args.Get(0).(*domain.PromotionReport)
	}
	return report, args.Error(1)
}

func (m *mockStateMachine) Demote(ctx context.Context, broadcastID domain.BroadcastID) error {
	return m.Called(ctx, broadcastID).Error(0)
}
