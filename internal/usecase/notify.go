package usecase

import "commerce-backend/internal/logger"

// Notifier is the opaque email collaborator. Implementations must not block
// request handling; callers invoke it best-effort and log failures.
type Notifier interface {
	Notify(recipient, template string, data map[string]any) error
}

// LogNotifier records the notification instead of sending it. Default in
// development and in tests.
type LogNotifier struct{}

func (LogNotifier) Notify(recipient, template string, data map[string]any) error {
	logger.Info("notification", map[string]any{
		"recipient": recipient,
		"template":  template,
		"data":      data,
	})
	return nil
}
