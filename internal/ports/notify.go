package ports

import "context"

// NoticeLevel grades user-visible notifications.
type NoticeLevel string

const (
	NoticeInfo    NoticeLevel = "info"
	NoticeSuccess NoticeLevel = "success"
	NoticeWarning NoticeLevel = "warning"
	NoticeError   NoticeLevel = "error"
)

// Notice is one user-visible notification (the toast analog).
type Notice struct {
	Level   NoticeLevel `json:"level"`
	Title   string      `json:"title"`
	Message string      `json:"message,omitempty"`
}

// Notifier delivers notices to the user behind one browser client.
// Implementations must be safe for concurrent use.
type Notifier interface {
	Notify(n Notice)
}

// OpsNotifier alerts operators about conditions that need manual remediation,
// such as a half-finished account deletion.
type OpsNotifier interface {
	Alert(ctx context.Context, subject, detail string) error
}
