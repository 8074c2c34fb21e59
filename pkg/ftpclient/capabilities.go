package ftpclient

import "strings"

// capabilities records which listing extensions the server advertised
// in its FEAT response. Negotiated once per session; a single mutex in
// the factory that creates sessions guards the one-time parse (§5).
type capabilities struct {
	MLSD bool
	MDTM bool
}

// parseFeat scans a FEAT response body for the MLSD and MDTM tokens.
// Each feature is reported on its own indented line per RFC 2389.
func parseFeat(response string) capabilities {
	var caps capabilities
	for _, line := range strings.Split(response, "\n") {
		token := strings.ToUpper(strings.TrimSpace(line))
		switch {
		case strings.HasPrefix(token, "MLSD"):
			caps.MLSD = true
		case strings.HasPrefix(token, "MDTM"):
			caps.MDTM = true
		}
	}
	return caps
}
