package fusion

import (
	"fmt"
	"strings"

	"github.com/golang/geo/r3"
)

// IntegrationMode selects how the gyro rate is folded into the running angle.
type IntegrationMode int

const (
	// Seeded computes (rate + prior) * dt, where prior is the previous fused
	// angle.
	Seeded IntegrationMode = iota
	// Incremental computes prior + rate * dt.
	Incremental
)

func (m IntegrationMode) String() string {
	switch m {
	case Seeded:
		return "seeded"
	case Incremental:
		return "incremental"
	default:
		return fmt.Sprintf("IntegrationMode(%d)", int(m))
	}
}

func ParseIntegrationMode(s string) (IntegrationMode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "seeded":
		return Seeded, nil
	case "incremental":
		return Incremental, nil
	default:
		return 0, fmt.Errorf("fusion: unknown integration mode %q", s)
	}
}

// Integrate applies the mode to a gyro rate (deg/s) over dt seconds, starting
// from the previous tick's fused angle.
func (m IntegrationMode) Integrate(rate r3.Vector, dt float64, prior r3.Vector) r3.Vector {
	if m == Incremental {
		return prior.Add(rate.Mul(dt))
	}
	return rate.Add(prior).Mul(dt)
}
