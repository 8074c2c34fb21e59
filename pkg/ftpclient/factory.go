package ftpclient

import (
	"fmt"
	"net"
	"strconv"
	"sync"
	"time"
)

// defaultPort is used when the configured connection string carries no
// explicit port (§6 "ftp.connection = host[:port] (default port 21)").
const defaultPort = "21"

// Factory parses the configured ftp.connection string once and hands
// out independent Client sessions from it. §5(b): "Listing-Client
// factory: a single mutex guards the one-time parse of the FTP
// connection string" — every worker shares one Factory, but each
// worker's Dial/Login sequence runs against its own Client, so only the
// parse itself needs to serialize.
type Factory struct {
	once    sync.Once
	mu      sync.Mutex
	addr    string
	parseOK error
	timeout time.Duration
}

// NewFactory creates a Factory for the given raw connection string and
// socket timeout (ftp.timeout; 0 uses the driver default).
func NewFactory(connection string, timeout time.Duration) *Factory {
	return &Factory{addr: connection, timeout: timeout}
}

func (f *Factory) parse() {
	f.once.Do(func() {
		f.mu.Lock()
		defer f.mu.Unlock()

		host, port, err := net.SplitHostPort(f.addr)
		if err != nil {
			// No port supplied; treat the whole string as a bare host.
			host, port = f.addr, defaultPort
		}
		if _, err := strconv.Atoi(port); err != nil {
			f.parseOK = fmt.Errorf("ftpclient: invalid port in connection %q: %w", f.addr, err)
			return
		}
		f.addr = net.JoinHostPort(host, port)
	})
}

// Dial parses the connection string (once, across every caller) and
// opens a fresh Client session against it.
func (f *Factory) Dial() (*Client, error) {
	f.parse()
	if f.parseOK != nil {
		return nil, f.parseOK
	}
	return Dial(f.addr, f.timeout)
}
