package service

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/spec-kit/repair-tracker/internal/events"
)

// ListenerService reacts to sync events: reloads invalidate cached timelines
// and failures are reported in the log.
type ListenerService struct {
	dispatcher events.Dispatcher
	timelines  *TimelineService
	logger     *zap.Logger
}

// NewListenerService creates the service.
func NewListenerService(dispatcher events.Dispatcher, timelines *TimelineService, logger *zap.Logger) *ListenerService {
	return &ListenerService{
		dispatcher: dispatcher,
		timelines:  timelines,
		logger:     logger,
	}
}

// RegisterHandlers subscribes to events.
func (l *ListenerService) RegisterHandlers() {
	if l.dispatcher == nil {
		return
	}
	l.dispatcher.Subscribe(events.EventEpicReloaded, l.handleEpicReloaded)
	l.dispatcher.Subscribe(events.EventSyncFailed, l.handleSyncFailed)
	l.dispatcher.Subscribe(events.EventEpicsListed, l.handleEpicsListed)
	l.dispatcher.Subscribe(events.EventBoardUpdated, l.handleBoardEvent)
	l.dispatcher.Subscribe(events.EventBoardSkipped, l.handleBoardEvent)
}

func (l *ListenerService) handleEpicReloaded(ctx context.Context, event events.Event) error {
	l.logger.Info("EpicReloaded",
		zap.String("rt_num", event.EpicKey),
		zap.String("actor", event.Actor.Name),
		zap.Any("payload", event.Payload))
	if l.timelines == nil {
		return nil
	}
	if err := l.timelines.Invalidate(ctx, event.EpicKey); err != nil {
		return fmt.Errorf("invalidate %s: %w", event.EpicKey, err)
	}
	return nil
}

func (l *ListenerService) handleSyncFailed(_ context.Context, event events.Event) error {
	l.logger.Warn("SyncFailed", zap.String("rt_num", event.EpicKey), zap.Any("payload", event.Payload))
	return nil
}

func (l *ListenerService) handleEpicsListed(_ context.Context, event events.Event) error {
	l.logger.Debug("EpicsListed", zap.Any("payload", event.Payload))
	return nil
}

func (l *ListenerService) handleBoardEvent(_ context.Context, event events.Event) error {
	l.logger.Debug(string(event.Type), zap.String("actor", event.Actor.Name), zap.Any("payload", event.Payload))
	return nil
}
