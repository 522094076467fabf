package protocol

type MessageType uint8

const (
	MessageTypeNil         MessageType = 1
	MessageTypeSync        MessageType = 2
	MessageTypeCommunicate MessageType = 3
	MessageTypeRedBox      MessageType = 4
	MessageTypeGuardKey    MessageType = 5
)

func (t MessageType) String() string {
	switch t {
	case MessageTypeNil:
		return "NIL"
	case MessageTypeSync:
		return "SYNC"
	case MessageTypeCommunicate:
		return "COMMUNICATE"
	case MessageTypeRedBox:
		return "REDBOX"
	case MessageTypeGuardKey:
		return "GUARD_KEY"
	default:
		return "UNKNOWN"
	}
}

// Flags describe how a Communicate body was produced.
type Flags uint8

const (
	FlagEncrypted  Flags = 1 << 0
	FlagCompressed Flags = 1 << 1

	knownFlags = FlagEncrypted | FlagCompressed
)

func (f Flags) Has(flag Flags) bool { return f&flag == flag }

// Frame is one unit of the session protocol.
// The set of implementations is closed: Nil, Sync, Communicate and RedBox travel
// to a guard; GuardKey travels from a guard to its peer.
type Frame interface {
	Type() MessageType
	frame()
}

// Nil carries nothing. It is valid and ignored.
type Nil struct{}

// Sync registers PublicKey (an Ed25519 public key) for PeerID.
// Password is carried on the wire but not authenticated.
type Sync struct {
	PeerID    string
	Password  string
	PublicKey []byte
}

// Communicate carries one signed message from PeerID.
// Ciphertext holds the sealed body when FlagEncrypted is set and the plain body otherwise.
type Communicate struct {
	PeerID     string
	Flags      Flags
	Ciphertext []byte
	Signature  []byte
}

// RedBox is reserved for opaque delivery.
type RedBox struct {
	PeerID  string
	Payload []byte
}

// GuardKey announces a guard's per-connection X25519 key, signed by the
// guard's Ed25519 identity so peers can tell it came from the expected party.
type GuardKey struct {
	PeerID    string
	PublicKey []byte
	Signature []byte
}

func (Nil) Type() MessageType         { return MessageTypeNil }
func (Sync) Type() MessageType        { return MessageTypeSync }
func (Communicate) Type() MessageType { return MessageTypeCommunicate }
func (RedBox) Type() MessageType      { return MessageTypeRedBox }
func (GuardKey) Type() MessageType    { return MessageTypeGuardKey }

func (Nil) frame()         {}
func (Sync) frame()        {}
func (Communicate) frame() {}
func (RedBox) frame()      {}
func (GuardKey) frame()    {}

// PeerIDOf returns the peer a frame claims to come from, or "" for Nil.
func PeerIDOf(f Frame) string {
	switch v := f.(type) {
	case Sync:
		return v.PeerID
	case Communicate:
		return v.PeerID
	case RedBox:
		return v.PeerID
	case GuardKey:
		return v.PeerID
	}
	return ""
}
