// Package device runs the two execution contexts that talk to the inverter:
// the fixed-interval polling loop and the out-of-band command worker. Both go
// through the coordination layer; the transport itself is an opaque
// collaborator that owns protocol framing.
package device

import (
	"time"

	"github.com/voltlock/voltlock/pkg/status"
)

// Resource names coordinated through the lock manager. Reads and writes are
// independent resources: a poll cycle never blocks a control command and
// vice versa.
const (
	ResourceInverterRead  = "inverter_read"
	ResourceInverterWrite = "inverter_write"
)

// Reading is one snapshot taken from the inverter. Register values stay
// opaque key-value pairs; their business meaning lives with consumers.
type Reading struct {
	Serial      string         `json:"serial"`
	Timestamp   time.Time      `json:"timestamp"`
	FullRefresh bool           `json:"full_refresh"`
	Values      map[string]any `json:"values"`
}

// CommandType identifies a control command family and direction.
type CommandType string

// Supported control commands.
const (
	CommandForceChargeStart CommandType = "force_charge_start"
	CommandForceChargeStop  CommandType = "force_charge_stop"
	CommandForceExportStart CommandType = "force_export_start"
	CommandForceExportStop  CommandType = "force_export_stop"
)

// Flag returns the in-progress status flag guarding this command family.
func (t CommandType) Flag() (string, bool) {
	switch t {
	case CommandForceChargeStart, CommandForceChargeStop:
		return status.FlagForceChargeRunning, true
	case CommandForceExportStart, CommandForceExportStop:
		return status.FlagForceExportRunning, true
	default:
		return "", false
	}
}

// Command is one control request against the inverter.
type Command struct {
	Type CommandType `json:"type"`
	// TargetSOC is the battery state-of-charge target in percent, for the
	// start commands that take one.
	TargetSOC int `json:"target_soc,omitempty"`
	// Duration bounds how long the mode stays active on the inverter side.
	Duration time.Duration `json:"duration,omitempty"`
}

// Validate checks the command is well formed.
func (c Command) Validate() error {
	if _, ok := c.Type.Flag(); !ok {
		return deviceError(ErrInvalidArgument, "unknown command type "+string(c.Type))
	}
	if c.TargetSOC < 0 || c.TargetSOC > 100 {
		return deviceError(ErrInvalidArgument, "target soc must be within 0-100")
	}
	if c.Duration < 0 {
		return deviceError(ErrInvalidArgument, "duration cannot be negative")
	}
	return nil
}
