package domain

// Platform identifies a publishing channel.
type Platform string

const (
	PlatformBluesky   Platform = "bluesky"
	PlatformMastodon  Platform = "mastodon"
	PlatformThreads   Platform = "threads"
	PlatformInstagram Platform = "instagram"
	PlatformYouTube   Platform = "youtube"
	PlatformPodcast   Platform = "podcast"
)

// AllPlatforms lists every supported platform.
var AllPlatforms = []Platform{
	PlatformBluesky,
	PlatformMastodon,
	PlatformThreads,
	PlatformInstagram,
	PlatformYouTube,
	PlatformPodcast,
}

// IsValid checks if the platform is a known value.
func (p Platform) IsValid() bool {
	for _, known := range AllPlatforms {
		if p == known {
			return true
		}
	}
	return false
}

// PublishMode describes how posts reach a platform.
type PublishMode string

const (
	// PublishModeAuto means the gateway publishes directly via the platform API.
	PublishModeAuto PublishMode = "auto"
	// PublishModeManual means an operator publishes out of band and confirms with mark-posted.
	PublishModeManual PublishMode = "manual"
)

// Capability describes platform publishing constraints. The quota ledger
// and queue manager consult this table instead of branching per call site.
type Capability struct {
	DailyLimit  int
	WarmupLimit int
	CharLimit   int
	PublishMode PublishMode
}

// Capabilities maps each platform to its constraints. Values can be
// overridden from configuration at startup.
type Capabilities struct {
	byPlatform map[Platform]Capability
	warmupMode bool
}

// DefaultCapability holds the built-in per-platform defaults.
var DefaultCapability = map[Platform]Capability{
	PlatformBluesky:   {DailyLimit: 10, WarmupLimit: 5, CharLimit: 300, PublishMode: PublishModeAuto},
	PlatformMastodon:  {DailyLimit: 10, WarmupLimit: 5, CharLimit: 500, PublishMode: PublishModeAuto},
	PlatformThreads:   {DailyLimit: 8, WarmupLimit: 4, CharLimit: 500, PublishMode: PublishModeAuto},
	PlatformInstagram: {DailyLimit: 4, WarmupLimit: 2, CharLimit: 2200, PublishMode: PublishModeManual},
	PlatformYouTube:   {DailyLimit: 3, WarmupLimit: 1, CharLimit: 5000, PublishMode: PublishModeManual},
	PlatformPodcast:   {DailyLimit: 2, WarmupLimit: 1, CharLimit: 0, PublishMode: PublishModeManual},
}

// NewCapabilities builds a capability table from defaults plus overrides.
func NewCapabilities(overrides map[Platform]Capability, warmupMode bool) *Capabilities {
	byPlatform := make(map[Platform]Capability, len(DefaultCapability))
	for p, c := range DefaultCapability {
		byPlatform[p] = c
	}
	for p, c := range overrides {
		byPlatform[p] = c
	}
	return &Capabilities{byPlatform: byPlatform, warmupMode: warmupMode}
}

// Get returns the capability entry for a platform.
func (c *Capabilities) Get(p Platform) Capability {
	return c.byPlatform[p]
}

// DailyLimit returns the effective daily publish limit, honouring warmup mode.
func (c *Capabilities) DailyLimit(p Platform) int {
	entry := c.byPlatform[p]
	if c.warmupMode {
		return entry.WarmupLimit
	}
	return entry.DailyLimit
}

// WarmupMode reports whether reduced warmup limits are active.
func (c *Capabilities) WarmupMode() bool {
	return c.warmupMode
}
