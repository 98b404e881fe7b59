package tagstore

// Canonical tag names, grounded on the original DataStore's pre-registration
// lists. Tags are grouped by I/O class; computed and state tags follow.
const (
	// Digital inputs
	DIInletValveOpen  = "DI_INLET_VLV_OPEN"
	DIInletValveClosed = "DI_INLET_VLV_CLOSED"
	DIStrainerHiDP    = "DI_STRAINER_HI_DP"
	DIPumpRunning     = "DI_PUMP_RUNNING"
	DIPumpOverload    = "DI_PUMP_OVERLOAD"
	DIDivertSales     = "DI_DIVERT_SALES"
	DIDivertDivert    = "DI_DIVERT_DIVERT"
	DISamplePotHi     = "DI_SAMPLE_POT_HI"
	DISamplePotLo     = "DI_SAMPLE_POT_LO"
	DIProverValveOpen = "DI_PROVER_VLV_OPEN"
	DIAirElimFloat    = "DI_AIR_ELIM_FLOAT"
	DIOutletValveOpen = "DI_OUTLET_VLV_OPEN"
	DIEstop           = "DI_ESTOP"

	// Digital outputs
	DOPumpStart     = "DO_PUMP_START"
	DODivertCmd     = "DO_DIVERT_CMD"
	DOSampleSol     = "DO_SAMPLE_SOL"
	DOSampleMixPump = "DO_SAMPLE_MIX_PUMP"
	DOProverValveCmd = "DO_PROVER_VLV_CMD"
	DOAlarmBeacon   = "DO_ALARM_BEACON"
	DOAlarmHorn     = "DO_ALARM_HORN"
	DOStatusGreen   = "DO_STATUS_GREEN"

	// Analog inputs (engineering units)
	AIInletPress   = "AI_INLET_PRESS"
	AILoopHiPress  = "AI_LOOP_HI_PRESS"
	AIStrainerDP   = "AI_STRAINER_DP"
	AIBSWProbe     = "AI_BSW_PROBE"
	AIMeterTemp    = "AI_METER_TEMP"
	AITestThermo   = "AI_TEST_THERMO"
	AIOutletPress  = "AI_OUTLET_PRESS"

	// Pulse inputs
	PIMeterPulse = "PI_METER_PULSE"

	// Analog outputs
	AOBPSalesSP  = "AO_BP_SALES_SP"
	AOBPDivertSP = "AO_BP_DIVERT_SP"

	// Computed / derived values
	FlowRateBPH    = "FLOW_RATE_BPH"
	FlowTotalBBL   = "FLOW_TOTAL_BBL"
	FlowNetBBL     = "FLOW_NET_BBL"
	BSWPct         = "BSW_PCT"
	TempCorrectedF = "TEMP_CORRECTED_F"
	MeterFactor    = "METER_FACTOR"
	CTLFactor      = "CTL_FACTOR"
	NetVolumeBBL   = "NET_VOLUME_BBL"
	SampleTotalGrabs = "SAMPLE_TOTAL_GRABS"
	SampleTotalML  = "SAMPLE_TOTAL_ML"
	BatchStartTime = "BATCH_START_TIME"
	BatchElapsedSec = "BATCH_ELAPSED_SEC"
	BatchGrossBBL  = "BATCH_GROSS_BBL"
	BatchNetBBL    = "BATCH_NET_BBL"
	DivertValvePos = "DIVERT_VALVE_POS"
	DivertReason   = "DIVERT_REASON"

	// State
	LACTState = "LACT_STATE"
	PrevState = "PREV_STATE"

	// Alarm summary
	AlarmActiveCount = "ALARM_ACTIVE_COUNT"
	AlarmUnackCount  = "ALARM_UNACK_COUNT"
	HighestAlarmPri  = "HIGHEST_ALARM_PRI"
)

var defaultTags = map[string]Value{
	DIInletValveOpen:   Bool(false),
	DIInletValveClosed: Bool(false),
	DIStrainerHiDP:     Bool(false),
	DIPumpRunning:      Bool(false),
	DIPumpOverload:     Bool(false),
	DIDivertSales:      Bool(false),
	DIDivertDivert:     Bool(false),
	DISamplePotHi:      Bool(false),
	DISamplePotLo:      Bool(false),
	DIProverValveOpen:  Bool(false),
	DIAirElimFloat:     Bool(false),
	DIOutletValveOpen:  Bool(false),
	DIEstop:            Bool(false),

	DOPumpStart:      Bool(false),
	DODivertCmd:      Bool(false),
	DOSampleSol:      Bool(false),
	DOSampleMixPump:  Bool(false),
	DOProverValveCmd: Bool(false),
	DOAlarmBeacon:    Bool(false),
	DOAlarmHorn:      Bool(false),
	DOStatusGreen:    Bool(false),

	AIInletPress:  Float(0),
	AILoopHiPress: Float(0),
	AIStrainerDP:  Float(0),
	AIBSWProbe:    Float(0),
	AIMeterTemp:   Float(60),
	AITestThermo:  Float(60),
	AIOutletPress: Float(0),

	PIMeterPulse: Int(0),

	AOBPSalesSP:  Float(50),
	AOBPDivertSP: Float(50),

	FlowRateBPH:      Float(0),
	FlowTotalBBL:     Float(0),
	FlowNetBBL:       Float(0),
	BSWPct:           Float(0),
	TempCorrectedF:   Float(60),
	MeterFactor:      Float(1.0),
	CTLFactor:        Float(1.0),
	NetVolumeBBL:     Float(0),
	SampleTotalGrabs: Int(0),
	SampleTotalML:    Float(0),
	BatchStartTime:   Float(0),
	BatchElapsedSec:  Float(0),
	BatchGrossBBL:    Float(0),
	BatchNetBBL:      Float(0),
	DivertValvePos:   Str(""),
	DivertReason:     Str(""),

	LACTState: Str("IDLE"),
	PrevState: Str("IDLE"),

	AlarmActiveCount: Int(0),
	AlarmUnackCount:  Int(0),
	HighestAlarmPri:  Int(0),
}
