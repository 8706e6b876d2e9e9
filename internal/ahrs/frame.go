package ahrs

import (
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/golang/geo/r3"
)

// WorldFrame fixes the axis convention of the earth frame. The filter only
// needs to know what a level, resting accelerometer reads in that frame.
type WorldFrame interface {
	Name() string
	// AccelReference is the unit specific-force vector of a stationary
	// accelerometer, expressed in the world frame.
	AccelReference() r3.Vector
}

type gravityFrame struct {
	name string
	ref  r3.Vector
}

func (f gravityFrame) Name() string              { return f.name }
func (f gravityFrame) AccelReference() r3.Vector { return f.ref }

// NewFrame builds a WorldFrame from an arbitrary accelerometer reference.
func NewFrame(name string, ref r3.Vector) (WorldFrame, error) {
	if ref.Norm() == 0 {
		return nil, fmt.Errorf("ahrs: frame %q has a zero reference vector", name)
	}
	return gravityFrame{name: name, ref: ref.Normalize()}, nil
}

var (
	ENU WorldFrame = gravityFrame{name: "enu", ref: r3.Vector{Z: 1}}
	NWU WorldFrame = gravityFrame{name: "nwu", ref: r3.Vector{Z: 1}}
	NED WorldFrame = gravityFrame{name: "ned", ref: r3.Vector{Z: -1}}
)

var (
	framesMu sync.RWMutex
	frames   = map[string]WorldFrame{"enu": ENU, "nwu": NWU, "ned": NED}
)

// RegisterFrame makes f available to LookupFrame under its lower-cased name.
func RegisterFrame(f WorldFrame) {
	framesMu.Lock()
	defer framesMu.Unlock()
	frames[strings.ToLower(f.Name())] = f
}

func LookupFrame(name string) (WorldFrame, error) {
	framesMu.RLock()
	defer framesMu.RUnlock()
	f, ok := frames[strings.ToLower(strings.TrimSpace(name))]
	if !ok {
		return nil, fmt.Errorf("ahrs: unknown world frame %q (known: %s)", name, strings.Join(frameNamesLocked(), ", "))
	}
	return f, nil
}

func frameNamesLocked() []string {
	names := make([]string, 0, len(frames))
	for n := range frames {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}
