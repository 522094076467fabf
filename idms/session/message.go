package session

// AuthStatus is the authentication outcome of a decoded message.
type AuthStatus uint8

const (
	AuthPassed AuthStatus = 1
	AuthFailed AuthStatus = 2
)

func (s AuthStatus) String() string {
	switch s {
	case AuthPassed:
		return "PASSED"
	case AuthFailed:
		return "FAILED"
	default:
		return "UNKNOWN"
	}
}

// DecodedMessage is what a guard emits for each Communicate frame.
// Payload and SharedKey are only set when Status is AuthPassed; Err only when it is AuthFailed.
// Consumers must treat a failed message as undelivered.
type DecodedMessage struct {
	Status    AuthStatus
	PeerID    string
	Encrypted bool
	SharedKey [32]byte
	Err       error
	Payload   []byte
}

func (m *DecodedMessage) Passed() bool { return m != nil && m.Status == AuthPassed }

// PeerState is the per-peer state of a guard.
type PeerState uint8

const (
	Idle   PeerState = 0
	Synced PeerState = 1
)

func (s PeerState) String() string {
	if s == Synced {
		return "SYNCED"
	}
	return "IDLE"
}
