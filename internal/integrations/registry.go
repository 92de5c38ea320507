// Package integrations verifies the external services the backend talks to.
package integrations

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"arc-backend/internal/logger"
	"arc-backend/internal/models"

	"github.com/rs/zerolog"
)

const checkTimeout = 10 * time.Second

var ErrUnknownIntegration = errors.New("no integration registered")

// Integration is an external service whose credentials can be verified.
type Integration interface {
	Name() string

	// TestConnection verifies the configured credentials. A rejected credential is reported
	// in the status with a nil error; err is reserved for network or system failures.
	TestConnection(ctx context.Context) (*models.IntegrationStatus, error)
}

// Registry holds the configured integrations in registration order.
type Registry struct {
	mu           sync.RWMutex
	order        []string
	integrations map[string]Integration
	log          zerolog.Logger
}

// NewRegistry creates a new integration registry.
func NewRegistry() *Registry {
	return &Registry{
		integrations: make(map[string]Integration),
		log:          logger.Component("IntegrationRegistry"),
	}
}

// Register adds an integration. Registering a name twice replaces the earlier one.
func (r *Registry) Register(integration Integration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	name := integration.Name()
	if _, exists := r.integrations[name]; exists {
		r.log.Warn().Str("integration", name).Msg("already registered, overwriting")
	} else {
		r.order = append(r.order, name)
	}
	r.integrations[name] = integration
	r.log.Debug().Str("integration", name).Msg("registered integration")
}

// Get retrieves an integration by name.
func (r *Registry) Get(name string) (Integration, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	integration, exists := r.integrations[name]
	if !exists {
		return nil, fmt.Errorf("%w with name: %s", ErrUnknownIntegration, name)
	}
	return integration, nil
}

// Check tests the integration registered under name.
func (r *Registry) Check(ctx context.Context, name string) (models.IntegrationStatus, error) {
	integration, err := r.Get(name)
	if err != nil {
		return models.IntegrationStatus{}, err
	}
	return r.check(ctx, integration), nil
}

// CheckAll tests every integration, each under its own timeout.
func (r *Registry) CheckAll(ctx context.Context) []models.IntegrationStatus {
	r.mu.RLock()
	list := make([]Integration, 0, len(r.order))
	for _, name := range r.order {
		list = append(list, r.integrations[name])
	}
	r.mu.RUnlock()

	out := make([]models.IntegrationStatus, len(list))
	var wg sync.WaitGroup
	for i, integration := range list {
		wg.Add(1)
		go func() {
			defer wg.Done()
			out[i] = r.check(ctx, integration)
		}()
	}
	wg.Wait()
	return out
}

func (r *Registry) check(ctx context.Context, integration Integration) models.IntegrationStatus {
	ctx, cancel := context.WithTimeout(ctx, checkTimeout)
	defer cancel()

	status, err := integration.TestConnection(ctx)
	if err != nil {
		r.log.Error().Err(err).Str("integration", integration.Name()).Msg("connection test failed")
		return models.IntegrationStatus{Name: integration.Name(), Message: err.Error()}
	}
	status.Name = integration.Name()
	if !status.OK {
		r.log.Warn().Str("integration", status.Name).Str("message", status.Message).Msg("integration rejected credentials")
	}
	return *status
}
