package orchestrator

// Config holds the Hypervisor's recognized tuning knobs.
type Config struct {
	MaxTicksPerTurn  int
	MaxDemonsPerTick int
	MaxMemorySlots   int
	TickTimeoutMs    int
}

// DefaultConfig is the baseline profile.
func DefaultConfig() Config {
	return Config{MaxTicksPerTurn: 20, MaxDemonsPerTick: 5, MaxMemorySlots: 100, TickTimeoutMs: 500}
}

// TutorConfig is the alternate profile the tutor kernel actually runs with.
func TutorConfig() Config {
	return Config{MaxTicksPerTurn: 15, MaxDemonsPerTick: 4, MaxMemorySlots: 80, TickTimeoutMs: 300}
}
