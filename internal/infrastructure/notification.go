package infrastructure

import (
	"fmt"
	"os/exec"
	"strings"

	"github.com/yourusername/yt-sync-go/internal/domain"
	"go.uber.org/zap"
)

// NotificationService sends desktop notifications when downloads finish
type NotificationService struct {
	config *domain.NotificationConfig
	logger *zap.Logger
	run    func(name string, args ...string) error
}

// NewNotificationService creates a new notification service
func NewNotificationService(config *domain.NotificationConfig, logger *zap.Logger) *NotificationService {
	return &NotificationService{
		config: config,
		logger: logger,
		run: func(name string, args ...string) error {
			return exec.Command(name, args...).Run()
		},
	}
}

// OnJobEvent notifies on terminal job events
func (n *NotificationService) OnJobEvent(event domain.JobEvent) {
	title := event.Job.Title
	if title == "" {
		title = event.Job.VideoID
	}

	switch event.Type {
	case domain.EventJobDone:
		_ = n.Send("Download complete", title)
	case domain.EventJobFailed:
		_ = n.Send("Download failed", fmt.Sprintf("%s: %s", title, event.Job.Error))
	}
}

// Send sends a notification
func (n *NotificationService) Send(title, message string) error {
	if !n.config.Enabled {
		n.logger.Debug("Notifications disabled, skipping",
			zap.String("title", title),
			zap.String("message", message))
		return nil
	}

	var err error
	switch n.config.Method {
	case "osascript":
		script := fmt.Sprintf(`display notification "%s" with title "%s"`,
			appleScriptQuote(message), appleScriptQuote(title))
		err = n.run("osascript", "-e", script)
	case "notify-send":
		err = n.run("notify-send", "--app-name=yt-sync", title, message)
	default:
		n.logger.Warn("Unknown notification method", zap.String("method", n.config.Method))
		return nil
	}

	if err != nil {
		n.logger.Error("Failed to send notification",
			zap.String("method", n.config.Method),
			zap.Error(err))
		return err
	}

	n.logger.Debug("Notification sent",
		zap.String("title", title),
		zap.String("message", message))
	return nil
}

func appleScriptQuote(s string) string {
	return strings.NewReplacer(`\`, `\\`, `"`, `\"`).Replace(s)
}
