package errors

// Error codes for the publishing contracts. Keep stable; used across adapters and middleware.
const (
	ErrCodePublishFailed       = "scgevents.publish_failed"
	ErrCodeSerializationFailed = "scgevents.serialization_failed"
	ErrCodeNotConnected        = "scgevents.not_connected"
	ErrCodePublisherClosed     = "scgevents.publisher_closed"
	ErrCodeCircuitOpen         = "scgevents.circuit_open"
	ErrCodeBufferFull          = "scgevents.buffer_full"
)

// Code returns an error value that carries only a code string.
// It implements error by returning the code string in Error().
func Code(code string) error { return codedError(code) }

type codedError string

func (e codedError) Error() string { return string(e) }

var (
	ErrPublishFailed       = Code(ErrCodePublishFailed)
	ErrSerializationFailed = Code(ErrCodeSerializationFailed)
	ErrNotConnected        = Code(ErrCodeNotConnected)
	ErrPublisherClosed     = Code(ErrCodePublisherClosed)
	ErrCircuitOpen         = Code(ErrCodeCircuitOpen)
	ErrBufferFull          = Code(ErrCodeBufferFull)
)
