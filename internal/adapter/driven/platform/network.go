package platform

import (
	"context"
	"fmt"
	"net/netip"
	"slices"
	"strings"

	gnet "github.com/shirou/gopsutil/v3/net"

	"github.com/geotrack/geotrack/internal/domain/model"
)

var (
	wifiPrefixes     = []string{"wlan", "wlp", "wlx", "wifi", "ath"}
	cellularPrefixes = []string{"wwan", "rmnet", "ppp", "ccmni", "usb"}
	ethernetPrefixes = []string{"eth", "enp", "eno", "ens", "enx", "end", "en"}
	virtualPrefixes  = []string{"lo", "docker", "veth", "br-", "virbr", "tun", "tap", "wg", "tailscale", "zt"}
)

// Network reports whether the host has a routable interface and which
// transport it uses.
func (p *Probe) Network(ctx context.Context) (model.NetworkStatus, error) {
	ifaces, err := gnet.InterfacesWithContext(ctx)
	if err != nil {
		return model.UnknownNetwork, fmt.Errorf("list interfaces: %w", err)
	}
	return classifyNetwork(ifaces), nil
}

// classifyNetwork picks the best connected interface, preferring WiFi over
// cellular over wired.
func classifyNetwork(ifaces []gnet.InterfaceStat) model.NetworkStatus {
	found := map[model.ConnectionType]bool{}
	for _, iface := range ifaces {
		if !connected(iface) {
			continue
		}
		if t, ok := interfaceType(iface.Name); ok {
			found[t] = true
		}
	}

	for _, t := range []model.ConnectionType{model.ConnectionWiFi, model.ConnectionCellular, model.ConnectionEthernet} {
		if found[t] {
			return model.NetworkStatus{IsConnected: true, ConnectionType: t}
		}
	}
	return model.UnknownNetwork
}

func connected(iface gnet.InterfaceStat) bool {
	if !slices.Contains(iface.Flags, "up") || slices.Contains(iface.Flags, "loopback") {
		return false
	}
	for _, a := range iface.Addrs {
		prefix, err := netip.ParsePrefix(a.Addr)
		if err != nil {
			continue
		}
		addr := prefix.Addr()
		if !addr.IsLoopback() && !addr.IsLinkLocalUnicast() {
			return true
		}
	}
	return false
}

func interfaceType(name string) (model.ConnectionType, bool) {
	name = strings.ToLower(name)
	switch {
	case hasAnyPrefix(name, virtualPrefixes):
		return "", false
	case hasAnyPrefix(name, wifiPrefixes):
		return model.ConnectionWiFi, true
	case hasAnyPrefix(name, cellularPrefixes):
		return model.ConnectionCellular, true
	case hasAnyPrefix(name, ethernetPrefixes):
		return model.ConnectionEthernet, true
	}
	return "", false
}

func hasAnyPrefix(s string, prefixes []string) bool {
	for _, p := range prefixes {
		if strings.HasPrefix(s, p) {
			return true
		}
	}
	return false
}
