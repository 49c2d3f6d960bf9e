//go:build !linux

package udpctl

import "syscall"

// broadcastControl is a no-op off Linux. Development hosts exercise the
// listener over loopback unicast only.
func broadcastControl(network, address string, c syscall.RawConn) error {
	return nil
}
