package llm

import (
	"net"
	"net/http"
	"os"
	"sync/atomic"
	"syscall"
)

// refusingTransport fails the first `failures` round trips with a refused
// dial and forwards the rest to http.DefaultTransport.
type refusingTransport struct {
	failures int32
	calls    atomic.Int32
}

func (t *refusingTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	n := t.calls.Add(1)
	if n <= t.failures {
		return nil, &net.OpError{
			Op:  "dial",
			Net: "tcp",
			Err: &os.SyscallError{Syscall: "connect", Err: syscall.ECONNREFUSED},
		}
	}
	return http.DefaultTransport.RoundTrip(req)
}

func clientWith(rt http.RoundTripper) *http.Client {
	return &http.Client{Transport: rt}
}
