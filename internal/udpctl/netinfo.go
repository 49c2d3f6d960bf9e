package udpctl

import (
	"net"
	"strings"
)

// LocalIdentity returns the IPv4 address and uppercase MAC of the first
// interface that is up, not loopback, and holds a unicast IPv4 address.
// Both strings are empty when no such interface exists; the discovery
// document still goes out so controllers can at least see the device.
func LocalIdentity() (ip, mac string) {
	ifaces, err := net.Interfaces()
	if err != nil {
		return "", ""
	}
	for _, ifc := range ifaces {
		if ifc.Flags&net.FlagUp == 0 || ifc.Flags&net.FlagLoopback != 0 {
			continue
		}
		addrs, err := ifc.Addrs()
		if err != nil {
			continue
		}
		for _, a := range addrs {
			ipNet, ok := a.(*net.IPNet)
			if !ok {
				continue
			}
			v4 := ipNet.IP.To4()
			if v4 == nil || !v4.IsGlobalUnicast() {
				continue
			}
			return v4.String(), strings.ToUpper(ifc.HardwareAddr.String())
		}
	}
	return "", ""
}

// LocalIP returns just the address half of LocalIdentity.
func LocalIP() string {
	ip, _ := LocalIdentity()
	return ip
}
