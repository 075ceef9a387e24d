//go:build !unix

package lifecycle

// SignalSource never reports anything on platforms without job control signals.
type SignalSource struct{}

func NewSignalSource() SignalSource {
	return SignalSource{}
}

func (SignalSource) Subscribe() (<-chan Visibility, func()) {
	return make(chan Visibility), func() {}
}
