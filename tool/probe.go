package tool

import (
	"fmt"
	"time"

	probing "github.com/prometheus-community/pro-bing"
)

// QuickICMPProbe reports whether host answers a single unprivileged ping within timeout.
func QuickICMPProbe(host string, timeout time.Duration) bool {
	stats, err := ProbeHost(host, 1, timeout)
	if err != nil {
		DefaultLogger.Debugf("QuickICMPProbe: %s: %v", host, err)
		return false
	}
	return stats.PacketsRecv > 0
}

// ProbeHost pings host count times. Used to tell a dead radio apart from a dead service.
func ProbeHost(host string, count int, timeout time.Duration) (*probing.Statistics, error) {
	pinger, err := probing.NewPinger(host)
	if err != nil {
		return nil, fmt.Errorf("failed to create pinger for %s: %w", host, err)
	}
	pinger.Count = count
	pinger.Timeout = timeout
	pinger.SetPrivileged(false)
	if err := pinger.Run(); err != nil {
		return nil, fmt.Errorf("ping %s failed: %w", host, err)
	}
	return pinger.Statistics(), nil
}
