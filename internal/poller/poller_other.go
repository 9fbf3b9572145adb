//go:build !linux

package poller

// New returns the platform's readiness backend.
func New(maxEvents int) (Poller, error) {
	return nil, ErrUnsupported
}
