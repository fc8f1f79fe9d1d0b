package agent

// Config tunes the exploration loop. Zero values are replaced with the
// defaults from DefaultConfig when the agent starts a run, so a zero Config
// behaves like DefaultConfig: recovery and checklist scoring stay enabled
// unless their Disable flags are set.
type Config struct {
	MaxSteps             int
	MaxRetries           int
	UncertaintyThreshold float64
	StuckThreshold       float64
	MinSamples           int
	MaxSamples           int
	SampleConcurrency    int
	RecoveryMaxRetries   int
	DisableRecovery      bool
	DisableChecklist     bool
	Seed                 int64
}

// DefaultConfig returns the standard exploration parameters.
func DefaultConfig() Config {
	return Config{
		MaxSteps:             50,
		MaxRetries:           3,
		UncertaintyThreshold: 0.7,
		StuckThreshold:       0.3,
		MinSamples:           3,
		MaxSamples:           20,
		SampleConcurrency:    1,
		RecoveryMaxRetries:   3,
	}
}

func (c Config) normalized() Config {
	def := DefaultConfig()
	if c.MaxSteps <= 0 {
		c.MaxSteps = def.MaxSteps
	}
	if c.MaxRetries <= 0 {
		c.MaxRetries = def.MaxRetries
	}
	if c.UncertaintyThreshold <= 0 {
		c.UncertaintyThreshold = def.UncertaintyThreshold
	}
	if c.StuckThreshold <= 0 {
		c.StuckThreshold = def.StuckThreshold
	}
	if c.MinSamples <= 0 {
		c.MinSamples = def.MinSamples
	}
	if c.MaxSamples <= 0 {
		c.MaxSamples = def.MaxSamples
	}
	if c.MaxSamples < c.MinSamples {
		c.MaxSamples = c.MinSamples
	}
	if c.SampleConcurrency <= 0 {
		c.SampleConcurrency = def.SampleConcurrency
	}
	if c.RecoveryMaxRetries <= 0 {
		c.RecoveryMaxRetries = def.RecoveryMaxRetries
	}
	return c
}
