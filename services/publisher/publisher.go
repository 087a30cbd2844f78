package publisher

// Publisher represents a sink for new-listing notifications
type Publisher interface {
	// Publish delivers one message under a routing key
	Publish(key string, message []byte) error

	// TrimStreams trims retained backlog to the configured maximum length
	TrimStreams() error

	// Close closes the publisher connection
	Close() error
}
