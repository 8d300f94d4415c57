package consumer

// Failure policies for messages that fail to decode or process.
const (
	// PolicySkip logs the failure, commits the offset and moves on.
	PolicySkip = "skip"
	// PolicyHalt stops the processing loop, leaving the offset
	// uncommitted for redelivery.
	PolicyHalt = "halt"
)

// Config holds the settings for the processing loop.
type Config struct {
	// Schema is the JSON schema document events are decoded against.
	// Writer schemas that differ from it are projected onto it.
	Schema string

	// FailurePolicy selects what happens when a single message fails:
	// PolicySkip (default) or PolicyHalt.
	FailurePolicy string
}
