// Package mocks provides testify mocks for the dispatch interfaces.
package mocks

import (
	"context"
	"time"

	"github.com/stretchr/testify/mock"

	"github.com/mekobeko2222/bubbles-ecommerce-app/pkg/notification"
)

type Dispatcher struct {
	mock.Mock
}

func (m *Dispatcher) Send(ctx context.Context, msg notification.Message) (*notification.DeliveryResult, error) {
	args := m.Called(ctx, msg)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*notification.DeliveryResult), args.Error(1)
}

type AdminTokenStore struct {
	mock.Mock
}

func (m *AdminTokenStore) Register(ctx context.Context, ownerID, token string) error {
	return m.Called(ctx, ownerID, token).Error(0)
}

func (m *AdminTokenStore) Deactivate(ctx context.Context, ownerID string) error {
	return m.Called(ctx, ownerID).Error(0)
}

func (m *AdminTokenStore) Get(ctx context.Context, ownerID string) (*notification.TokenRecord, error) {
	args := m.Called(ctx, ownerID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*notification.TokenRecord), args.Error(1)
}

func (m *AdminTokenStore) ActiveTokens(ctx context.Context) ([]string, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]string), args.Error(1)
}

func (m *AdminTokenStore) CountActive(ctx context.Context) (int, error) {
	args := m.Called(ctx)
	return args.Int(0), args.Error(1)
}

func (m *AdminTokenStore) DeleteUpdatedBefore(ctx context.Context, cutoff time.Time) (int, error) {
	args := m.Called(ctx, cutoff)
	return args.Int(0), args.Error(1)
}

type UserStore struct {
	mock.Mock
}

func (m *UserStore) Get(ctx context.Context, userID string) (*notification.User, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*notification.User), args.Error(1)
}

type Reconciler struct {
	mock.Mock
}

func (m *Reconciler) Reconcile(ctx context.Context, tokens []string) error {
	return m.Called(ctx, tokens).Error(0)
}

type QueueStore struct {
	mock.Mock
}

func (m *QueueStore) Claim(ctx context.Context, id string) (*notification.QueueItem, bool, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Bool(1), args.Error(2)
	}
	return args.Get(0).(*notification.QueueItem), args.Bool(1), args.Error(2)
}

func (m *QueueStore) Complete(ctx context.Context, id string, dispatchErr error) error {
	return m.Called(ctx, id, dispatchErr).Error(0)
}

func (m *QueueStore) CountPending(ctx context.Context) (int, error) {
	args := m.Called(ctx)
	return args.Int(0), args.Error(1)
}

func (m *QueueStore) CountProcessedSince(ctx context.Context, since time.Time) (int, error) {
	args := m.Called(ctx, since)
	return args.Int(0), args.Error(1)
}

func (m *QueueStore) DeleteProcessedBefore(ctx context.Context, cutoff time.Time) (int, error) {
	args := m.Called(ctx, cutoff)
	return args.Int(0), args.Error(1)
}
