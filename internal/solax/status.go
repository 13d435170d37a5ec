// Package solax implements the Solax X1 Air RS485 protocol: variable-length
// frames with an additive checksum, a discovery/registration handshake, and
// decoders for the live-data, identity, and configuration records.
package solax

// Status is the four-state Solax availability model. A device walks
// Offline -> Unregistered/Registered during the handshake and only reaches
// Online after all three confirmatory queries succeed.
type Status int

const (
	StatusOffline Status = iota
	StatusUnregistered
	StatusRegistered
	StatusOnline
)

func (s Status) String() string {
	switch s {
	case StatusUnregistered:
		return "Unregistered"
	case StatusRegistered:
		return "Registered"
	case StatusOnline:
		return "Online"
	default:
		return "Offline"
	}
}
