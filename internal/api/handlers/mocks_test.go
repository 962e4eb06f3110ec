package handlers

import (
	"context"
	"errors"
	"sync"

	"github.com/isdelr/microservicios/internal/events"
	"github.com/isdelr/microservicios/internal/models"
)

// =============================================================================
// Mock Implementations
// =============================================================================

type mockUserService struct {
	createUserFunc   func(input models.NewUser) (models.User, error)
	authenticateFunc func(username, password string) (models.User, error)
}

func (m *mockUserService) CreateUser(input models.NewUser) (models.User, error) {
	if m.createUserFunc != nil {
		return m.createUserFunc(input)
	}
	return models.User{}, errors.New("not implemented")
}

func (m *mockUserService) GetUserByUsername(username string) (models.User, error) {
	return models.User{}, errors.New("not implemented")
}

func (m *mockUserService) AuthenticateUser(username, password string) (models.User, error) {
	if m.authenticateFunc != nil {
		return m.authenticateFunc(username, password)
	}
	return models.User{}, errors.New("not implemented")
}

func (m *mockUserService) ListUsers() ([]models.User, error) {
	return nil, errors.New("not implemented")
}

type recordingPublisher struct {
	mu      sync.Mutex
	logouts []events.LogoutEvent
	sales   []events.SaleEvent
	err     error
}

func (p *recordingPublisher) PublishLogout(ctx context.Context, event events.LogoutEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.logouts = append(p.logouts, event)
	return p.err
}

func (p *recordingPublisher) PublishSale(ctx context.Context, event events.SaleEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.sales = append(p.sales, event)
	return p.err
}
