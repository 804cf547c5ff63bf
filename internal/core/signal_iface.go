package core

// Frame is an encoded server-to-client message.
type Frame []byte

// SignalConnection abstracts the bidirectional client channel.
// Owned by the adapter; the adapter must Close() it.
type SignalConnection interface {
	TrySend(Frame) error
	Close()
	IsOpen() bool
}
