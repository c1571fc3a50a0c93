package needs

import "github.com/talgya/critterlife/internal/spatial"

// RobotStatus holds the robot's machine-side state. The robot has no hunger;
// its energy need is a view of the battery.
type RobotStatus struct {
	Battery    float64 `json:"battery"`   // 0.0–1.0
	Integrity  float64 `json:"integrity"` // Hull health, 0 = destroyed
	IsCharging bool    `json:"isCharging"`
	Toolkit    bool    `json:"toolkit"` // Can gather tool-gated resources
}

// Battery rates per second.
const (
	BatteryDrain      = 0.002
	BatteryNightDrain = 0.0035
	BatteryChargeRate = 0.02
)

// NewRobotStatus returns a fully charged, undamaged robot carrying a toolkit.
func NewRobotStatus() RobotStatus {
	return RobotStatus{Battery: 1, Integrity: 1, Toolkit: true}
}

// DecayRobot drains or charges the battery over deltaSeconds.
func DecayRobot(r RobotStatus, deltaSeconds float64, isNight bool) RobotStatus {
	if deltaSeconds <= 0 {
		return r
	}
	switch {
	case r.IsCharging:
		r.Battery += BatteryChargeRate * deltaSeconds
	case isNight:
		r.Battery -= BatteryNightDrain * deltaSeconds
	default:
		r.Battery -= BatteryDrain * deltaSeconds
	}
	r.Battery = spatial.Clamp01(r.Battery)
	r.Integrity = spatial.Clamp01(r.Integrity)
	if r.Battery >= 1 {
		r.IsCharging = false
	}
	return r
}

// Damage reduces hull integrity.
func (r RobotStatus) Damage(amount float64) RobotStatus {
	r.Integrity = spatial.Clamp01(r.Integrity - amount)
	return r
}

// MirrorEnergy copies the battery level into the robot's needs.
func MirrorEnergy(s State, r RobotStatus) State {
	s.Energy = spatial.Clamp01(r.Battery)
	s.Hunger = 1
	return clamp(s)
}
