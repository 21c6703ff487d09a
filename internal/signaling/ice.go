package signaling

import (
	"github.com/pion/webrtc/v4"

	"github.com/meshrelay/relay/internal/config"
)

// ICEServers materializes the read-only ICE/relay configuration as the
// server list advertised to connecting peers. Built once at startup,
// never mutated.
func ICEServers(cfgs []config.ICEServerConfig) []webrtc.ICEServer {
	out := make([]webrtc.ICEServer, 0, len(cfgs))
	for _, c := range cfgs {
		s := webrtc.ICEServer{URLs: c.URLs}
		if c.Username != "" {
			s.Username = c.Username
			s.Credential = c.Credential
		}
		out = append(out, s)
	}
	return out
}
