package chat

// Observer is notified of relay activity, typically to feed metrics.
// Calls happen on the goroutine that drives the Hub.
type Observer interface {
	ConnectionAdmitted()
	ConnectionRejected()
	ConnectionClosed()
	CommandDecoded(kind CommandKind)
	Delivered(n int)
	WriteFailed()
}

type nopObserver struct{}

func (nopObserver) ConnectionAdmitted() {}
func (nopObserver) ConnectionRejected() {}
func (nopObserver) ConnectionClosed() {}
func (nopObserver) CommandDecoded(CommandKind) {}
func (nopObserver) Delivered(int) {}
func (nopObserver) WriteFailed() {}
