package device

import (
	"context"
	"math/rand"
	"sync"
	"time"
)

// SimulatedTransport emulates an inverter for deployments and development
// setups without a real device on the wire. Readings follow a plausible
// random walk and control commands flip the simulated operating mode, so
// the full poll/command path can run end to end.
type SimulatedTransport struct {
	mu          sync.Mutex
	serial      string
	soc         float64
	forceCharge bool
	forceExport bool
	targetSOC   int
	rng         *rand.Rand
}

// NewSimulatedTransport creates a simulator reporting the given serial.
// An empty serial falls back to a recognizably fake one.
func NewSimulatedTransport(serial string) *SimulatedTransport {
	if serial == "" {
		serial = "SIM0000G001"
	}
	return &SimulatedTransport{
		serial: serial,
		soc:    55,
		rng:    rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// Read produces the next simulated reading. Full refreshes add the static
// plate data a real inverter only reports on a complete register sweep.
func (s *SimulatedTransport) Read(ctx context.Context, fullRefresh bool) (*Reading, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	pv := 200 + s.rng.Float64()*3300
	load := 150 + s.rng.Float64()*2500
	var battery float64
	mode := "eco"

	switch {
	case s.forceCharge:
		mode = "force_charge"
		battery = -2600
		s.soc += 0.8
	case s.forceExport:
		mode = "force_export"
		battery = 2600
		s.soc -= 0.8
	default:
		battery = load - pv
		s.soc += (pv - load) / 4000
	}
	if s.soc > 100 {
		s.soc = 100
	}
	if s.soc < 4 {
		s.soc = 4
	}
	if s.forceCharge && s.targetSOC > 0 && s.soc >= float64(s.targetSOC) {
		s.forceCharge = false
	}

	values := map[string]any{
		"soc":           int(s.soc),
		"mode":          mode,
		"pv_power":      int(pv),
		"load_power":    int(load),
		"battery_power": int(battery),
		"grid_power":    int(load - pv - battery),
	}
	if fullRefresh {
		values["model"] = "Gen2 Hybrid (simulated)"
		values["firmware"] = "sim-1.0"
		values["battery_capacity_wh"] = 9500
	}

	return &Reading{
		Serial:      s.serial,
		Timestamp:   time.Now().UTC(),
		FullRefresh: fullRefresh,
		Values:      values,
	}, nil
}

// Write applies a control command to the simulated operating mode.
func (s *SimulatedTransport) Write(ctx context.Context, cmd Command) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := cmd.Validate(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	switch cmd.Type {
	case CommandForceChargeStart:
		s.forceCharge = true
		s.forceExport = false
		s.targetSOC = cmd.TargetSOC
	case CommandForceChargeStop:
		s.forceCharge = false
	case CommandForceExportStart:
		s.forceExport = true
		s.forceCharge = false
	case CommandForceExportStop:
		s.forceExport = false
	}
	return nil
}

// Close releases nothing; the simulator holds no connection.
func (s *SimulatedTransport) Close() error { return nil }
