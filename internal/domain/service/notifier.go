package service

// Notifier delivers live events to the connections of one user. Publish
// must never block and never fails: events for offline users are dropped.
type Notifier interface {
	Publish(userID, event string, payload interface{})
}

type NopNotifier struct{}

func (NopNotifier) Publish(string, string, interface{}) {}
