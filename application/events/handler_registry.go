package events

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"

	"canvas-backend/domain/events"
)

// EventHandler is the interface that all event handlers must implement
type EventHandler interface {
	// Handle processes a domain event
	Handle(ctx context.Context, event events.DomainEvent) error

	// SupportsEvent checks if this handler supports the given event type
	SupportsEvent(eventType string) bool

	// Priority returns the handler's priority (lower numbers = higher priority)
	Priority() int

	// Name returns the handler's name for logging
	Name() string
}

// handlerTimeout bounds a single handler invocation.
const handlerTimeout = 30 * time.Second

// HandlerRegistry manages event handler registration and dispatching
type HandlerRegistry struct {
	handlers map[string][]EventHandler
	mu       sync.RWMutex
	logger   *zap.Logger
}

// NewHandlerRegistry creates a new event handler registry
func NewHandlerRegistry(logger *zap.Logger) *HandlerRegistry {
	return &HandlerRegistry{
		handlers: make(map[string][]EventHandler),
		logger:   logger,
	}
}

// Register adds a handler for specific event types
func (r *HandlerRegistry) Register(eventTypes []string, handler EventHandler) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if handler == nil {
		return fmt.Errorf("handler cannot be nil")
	}

	for _, eventType := range eventTypes {
		if eventType == "" {
			return fmt.Errorf("event type cannot be empty")
		}
		if !handler.SupportsEvent(eventType) {
			return fmt.Errorf("handler %s does not support event type %s", handler.Name(), eventType)
		}

		r.handlers[eventType] = append(r.handlers[eventType], handler)
		sort.SliceStable(r.handlers[eventType], func(i, j int) bool {
			return r.handlers[eventType][i].Priority() < r.handlers[eventType][j].Priority()
		})

		r.logger.Info("Registered event handler",
			zap.String("handler", handler.Name()),
			zap.String("eventType", eventType),
			zap.Int("priority", handler.Priority()),
		)
	}

	return nil
}

// Dispatch sends an event to all registered handlers
func (r *HandlerRegistry) Dispatch(ctx context.Context, event events.DomainEvent) error {
	if event == nil {
		return fmt.Errorf("event cannot be nil")
	}

	eventType := event.GetEventType()

	r.mu.RLock()
	handlers := r.handlers[eventType]
	// Copy so we don't hold the lock during handler execution
	handlersCopy := make([]EventHandler, len(handlers))
	copy(handlersCopy, handlers)
	r.mu.RUnlock()

	if len(handlersCopy) == 0 {
		r.logger.Debug("No handlers registered for event type",
			zap.String("eventType", eventType),
		)
		return nil
	}

	var lastError error
	successCount := 0
	failureCount := 0

	for _, handler := range handlersCopy {
		start := time.Now()

		handlerCtx, cancel := context.WithTimeout(ctx, handlerTimeout)
		err := handler.Handle(handlerCtx, event)
		cancel()

		duration := time.Since(start)

		if err != nil {
			failureCount++
			lastError = err
			r.logger.Error("Event handler failed",
				zap.String("handler", handler.Name()),
				zap.String("eventType", eventType),
				zap.Error(err),
				zap.Duration("duration", duration),
			)
		} else {
			successCount++
			r.logger.Debug("Event handler succeeded",
				zap.String("handler", handler.Name()),
				zap.String("eventType", eventType),
				zap.Duration("duration", duration),
			)
		}
	}

	if failureCount > 0 && successCount == 0 {
		return fmt.Errorf("all handlers failed for event %s: %w", eventType, lastError)
	}

	return nil
}

// DispatchBatch sends multiple events to handlers
func (r *HandlerRegistry) DispatchBatch(ctx context.Context, batch []events.DomainEvent) error {
	var lastError error
	failureCount := 0

	for _, event := range batch {
		if err := r.Dispatch(ctx, event); err != nil {
			failureCount++
			lastError = err
		}
	}

	if failureCount > 0 {
		r.logger.Warn("Batch dispatch completed with errors",
			zap.Int("total", len(batch)),
			zap.Int("failed", failureCount),
		)
		return fmt.Errorf("batch dispatch had %d failures: %w", failureCount, lastError)
	}

	return nil
}

// GetHandlers returns all handlers for a specific event type
func (r *HandlerRegistry) GetHandlers(eventType string) []EventHandler {
	r.mu.RLock()
	defer r.mu.RUnlock()

	handlers := r.handlers[eventType]
	result := make([]EventHandler, len(handlers))
	copy(result, handlers)
	return result
}

// BaseEventHandler provides a base implementation for event handlers
type BaseEventHandler struct {
	name           string
	priority       int
	supportedTypes []string
}

// NewBaseEventHandler creates a new base event handler
func NewBaseEventHandler(name string, priority int, supportedTypes []string) BaseEventHandler {
	return BaseEventHandler{
		name:           name,
		priority:       priority,
		supportedTypes: supportedTypes,
	}
}

// Name returns the handler's name
func (h BaseEventHandler) Name() string {
	return h.name
}

// Priority returns the handler's priority
func (h BaseEventHandler) Priority() int {
	return h.priority
}

// SupportsEvent checks if this handler supports the given event type
func (h BaseEventHandler) SupportsEvent(eventType string) bool {
	for _, supported := range h.supportedTypes {
		if supported == eventType || supported == "*" {
			return true
		}
	}
	return false
}
