package event

// PushNotiQueue is the queue the notification service consumes.
const PushNotiQueue = "push_noti_events"

type Notification struct {
	Title string `json:"title"`
	Body  string `json:"body"`
}

// NotificationEventPushModel is the payload contract with the notification
// service.
type NotificationEventPushModel struct {
	Notification Notification   `json:"notification"`
	UserIDs      []string       `json:"user_ids"`
	Context      map[string]any `json:"context,omitempty"`
}
