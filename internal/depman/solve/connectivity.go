// Package solve runs dependency resolutions against the package cache and the
// registry, and implements the project workflows built on them.
package solve

import (
	"fmt"
	"strings"

	"martianoff/elmdeps/internal/depman/provider"
)

// Mode selects where package metadata comes from.
type Mode int

const (
	ModeOffline Mode = iota
	ModeOnline
	ModeProgressive
)

// Connectivity is a source policy for a resolution.
// Strategy is only meaningful for ModeOnline.
type Connectivity struct {
	Mode     Mode
	Strategy provider.VersionStrategy
}

var (
	// Offline resolves from the local package cache only.
	Offline = Connectivity{Mode: ModeOffline}
	// Progressive resolves offline first and retries the whole resolution online.
	Progressive = Connectivity{Mode: ModeProgressive}
)

// Online resolves from the registry, trying versions in the given order.
func Online(strategy provider.VersionStrategy) Connectivity {
	return Connectivity{Mode: ModeOnline, Strategy: strategy}
}

func (c Connectivity) String() string {
	switch c.Mode {
	case ModeOffline:
		return "offline"
	case ModeOnline:
		return "online-" + c.Strategy.String()
	default:
		return "progressive"
	}
}

// ParseConnectivity parses offline, online, online-newest, online-oldest or progressive.
func ParseConnectivity(s string) (Connectivity, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "offline":
		return Offline, nil
	case "online", "online-newest":
		return Online(provider.Newest), nil
	case "online-oldest":
		return Online(provider.Oldest), nil
	case "progressive":
		return Progressive, nil
	default:
		return Connectivity{}, fmt.Errorf("invalid connectivity %q, expected offline, online, online-newest, online-oldest or progressive", s)
	}
}
