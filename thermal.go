package dramctrl

import "github.com/sarchlab/dramctrl/internal/signal"

// ThermalCalculator is notified of DRAM activity so a power/thermal model
// can track per-bank heat generation. It is an optional collaborator: a
// Controller built without one gets NoOpThermalCalculator.
type ThermalCalculator interface {
	// UpdateCMDPower records the energy contribution of an issued command.
	UpdateCMDPower(channel int, cmd signal.Command, clk uint64)
	// UpdateBackgroundEnergy records a rank's standby/self-refresh energy
	// draw for the cycle.
	UpdateBackgroundEnergy(channel, rank int, bgEnergy float64)
}

// NoOpThermalCalculator discards every update. It is the default so the
// core compiles and runs without a thermal model wired in.
type NoOpThermalCalculator struct{}

func (NoOpThermalCalculator) UpdateCMDPower(int, signal.Command, uint64)   {}
func (NoOpThermalCalculator) UpdateBackgroundEnergy(int, int, float64) {}
