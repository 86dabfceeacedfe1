package server

import (
	"errors"
	"fmt"
	"syscall"
)

// ConfigurationError reports a serve directory that is missing or unusable.
type ConfigurationError struct {
	Path string
	Err  error
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("serve directory %s: %v", e.Path, e.Err)
}

func (e *ConfigurationError) Unwrap() error {
	return e.Err
}

// BindError reports a failure to open the listening socket.
type BindError struct {
	Addr string
	Err  error
}

func (e *BindError) Error() string {
	if e.PortInUse() {
		return fmt.Sprintf("address %s is already in use", e.Addr)
	}
	return fmt.Sprintf("failed to bind %s: %v", e.Addr, e.Err)
}

func (e *BindError) Unwrap() error {
	return e.Err
}

// PortInUse reports whether another process already holds the address.
func (e *BindError) PortInUse() bool {
	return errors.Is(e.Err, syscall.EADDRINUSE) || isWSAAddrInUse(e.Err)
}

// WSAEADDRINUSE, reported by Windows sockets.
const wsaeAddrInUse = 10048

func isWSAAddrInUse(err error) bool {
	var errno syscall.Errno
	return errors.As(err, &errno) && uintptr(errno) == wsaeAddrInUse
}
