// Package tunnel relays WebSocket sessions between a client and an
// instance backend.
//
// A tunnel moves through three states. During the handshake the backend is
// dialled first, forwarding the client's headers minus the fields the dialer
// owns, and only then is the client upgraded, echoing the backend's chosen
// subprotocol. A backend failure is reported to the client as 500.
//
// During relay two forwarders copy text, binary, ping and pong frames in
// each direction. A close frame is passed on with its code and reason and
// ends that forwarder. A peer that drops without a close frame is logged as a
// transport error and the other side receives 1001 (going away). The first forwarder to end signals completion; the
// other is given a grace period to finish its close before both connections
// are torn down.
//
//	t := tunnel.New(tunnel.WithMetrics(m))
//	target, _ := url.Parse("ws://127.0.0.1:40000/socket")
//	if err := t.Serve(w, r, target); err != nil {
//	    // already answered with 500
//	}
package tunnel
