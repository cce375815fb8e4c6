package realtime

import (
	"errors"
	"fmt"
)

var (
	// ErrChannel matches every ChannelError.
	ErrChannel = errors.New("push channel failed")

	// ErrSlowConsumer is the cause recorded when a subscriber's buffer
	// overflows and the hub drops it.
	ErrSlowConsumer = errors.New("subscriber fell behind")

	// ErrConnectionLost is the cause recorded when the upstream connection
	// was re-established and changes may have been missed.
	ErrConnectionLost = errors.New("upstream connection lost")

	// ErrClosed is returned by Subscribe on a closed channel.
	ErrClosed = errors.New("channel closed")
)

// ChannelError reports a push subscription that failed or dropped.
type ChannelError struct {
	Op  string
	Err error
}

func (e *ChannelError) Error() string {
	return fmt.Sprintf("push channel %s: %v", e.Op, e.Err)
}

func (e *ChannelError) Unwrap() error { return e.Err }

func (e *ChannelError) Is(target error) bool { return target == ErrChannel }

// IsChannelError reports whether err (or any error in its chain) is a
// ChannelError.
func IsChannelError(err error) bool {
	return errors.Is(err, ErrChannel)
}
