package iobridge

import "github.com/scstechnologies/lactd/internal/tagstore"

// Points is the canonical I/O point map for the 3" LACT unit, matching
// the original unit's point list: 13 digital inputs, 8 digital outputs,
// 7 analog inputs, 1 pulse input, 2 analog outputs. Raw ranges are the
// 12-bit ADC/DAC counts (0-4095) used by the analog I/O cards.
var Points = []Point{
	// Digital inputs
	{Tag: tagstore.DIInletValveOpen, Type: DigitalIn, Address: 0},
	{Tag: tagstore.DIInletValveClosed, Type: DigitalIn, Address: 1},
	{Tag: tagstore.DIStrainerHiDP, Type: DigitalIn, Address: 2},
	{Tag: tagstore.DIPumpRunning, Type: DigitalIn, Address: 3},
	{Tag: tagstore.DIPumpOverload, Type: DigitalIn, Address: 4},
	{Tag: tagstore.DIDivertSales, Type: DigitalIn, Address: 5},
	{Tag: tagstore.DIDivertDivert, Type: DigitalIn, Address: 6},
	{Tag: tagstore.DISamplePotHi, Type: DigitalIn, Address: 7},
	{Tag: tagstore.DISamplePotLo, Type: DigitalIn, Address: 8},
	{Tag: tagstore.DIProverValveOpen, Type: DigitalIn, Address: 9},
	{Tag: tagstore.DIAirElimFloat, Type: DigitalIn, Address: 10},
	{Tag: tagstore.DIOutletValveOpen, Type: DigitalIn, Address: 11},
	{Tag: tagstore.DIEstop, Type: DigitalIn, Address: 12},

	// Digital outputs
	{Tag: tagstore.DOPumpStart, Type: DigitalOut, Address: 0},
	{Tag: tagstore.DODivertCmd, Type: DigitalOut, Address: 1},
	{Tag: tagstore.DOSampleSol, Type: DigitalOut, Address: 2},
	{Tag: tagstore.DOSampleMixPump, Type: DigitalOut, Address: 3},
	{Tag: tagstore.DOProverValveCmd, Type: DigitalOut, Address: 4},
	{Tag: tagstore.DOAlarmBeacon, Type: DigitalOut, Address: 5},
	{Tag: tagstore.DOAlarmHorn, Type: DigitalOut, Address: 6},
	{Tag: tagstore.DOStatusGreen, Type: DigitalOut, Address: 7},

	// Analog inputs (0-4095 raw, scaled to engineering units)
	{Tag: tagstore.AIInletPress, Type: AnalogIn, Address: 0, RawMin: 0, RawMax: 4095, EngMin: 0, EngMax: 300},
	{Tag: tagstore.AILoopHiPress, Type: AnalogIn, Address: 1, RawMin: 0, RawMax: 4095, EngMin: 0, EngMax: 300},
	{Tag: tagstore.AIStrainerDP, Type: AnalogIn, Address: 2, RawMin: 0, RawMax: 4095, EngMin: 0, EngMax: 50},
	{Tag: tagstore.AIBSWProbe, Type: AnalogIn, Address: 3, RawMin: 0, RawMax: 4095, EngMin: 0, EngMax: 5},
	{Tag: tagstore.AIMeterTemp, Type: AnalogIn, Address: 4, RawMin: 0, RawMax: 4095, EngMin: -20, EngMax: 200},
	{Tag: tagstore.AITestThermo, Type: AnalogIn, Address: 5, RawMin: 0, RawMax: 4095, EngMin: -20, EngMax: 200},
	{Tag: tagstore.AIOutletPress, Type: AnalogIn, Address: 6, RawMin: 0, RawMax: 4095, EngMin: 0, EngMax: 300},

	// Pulse input (meter turbine pulses, raw counter)
	{Tag: tagstore.PIMeterPulse, Type: PulseIn, Address: 0},

	// Analog outputs (backpressure valve setpoints, 0-150 PSI)
	{Tag: tagstore.AOBPSalesSP, Type: AnalogOut, Address: 0, RawMin: 0, RawMax: 4095, EngMin: 0, EngMax: 150},
	{Tag: tagstore.AOBPDivertSP, Type: AnalogOut, Address: 1, RawMin: 0, RawMax: 4095, EngMin: 0, EngMax: 150},
}
