package worker

import (
	"github.com/spec-kit/repair-tracker/internal/service"
)

// StartListenerWorker registers the sync event handlers.
func StartListenerWorker(listener *service.ListenerService) {
	if listener == nil {
		return
	}
	listener.RegisterHandlers()
}
