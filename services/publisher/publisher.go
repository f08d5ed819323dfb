package publisher

// Publisher publishes persisted price observations for downstream consumers
type Publisher interface {
	// Publish publishes a message under the given key
	Publish(key string, message []byte) error

	// TrimStreams trims backing streams to their configured maximum length
	TrimStreams() error

	// Close releases the publisher's resources
	Close() error
}
