package ssh

// Wire-format structs for the two RFC 4254 §7 messages this client
// exchanges with the server. Field order and names must match exactly
// since golang.org/x/crypto/ssh.Marshal/Unmarshal use struct field order.

// tcpipForwardMsg is the payload of the "tcpip-forward" global request
// and its "cancel-tcpip-forward" counterpart.
type tcpipForwardMsg struct {
	Addr string
	Port uint32
}

// forwardedTCPPayload is the channel-open payload for "forwarded-tcpip"
// (RFC 4254 §7.2): the address/port the server bound, followed by the
// address/port of the originating client as seen by the server.
type forwardedTCPPayload struct {
	Addr       string
	Port       uint32
	OriginAddr string
	OriginPort uint32
}
