package setpoints

import "fmt"

// Update sets a single setpoint by its JSON key name, returning an error if
// the key is unknown. Only float64-valued setpoints are updatable through
// this path; integer setpoints (ScanRateMS, PumpMaxStartsPerHour,
// ProveNumRuns) are ambient/structural and are not exposed to runtime
// operator tuning.
func (sp *Setpoints) Update(key string, value float64) error {
	field, ok := sp.floatField(key)
	if !ok {
		return fmt.Errorf("setpoints: unknown or non-tunable setpoint %q", key)
	}
	*field = value
	return nil
}

func (sp *Setpoints) floatField(key string) (*float64, bool) {
	switch key {
	case "bsw_divert_pct":
		return &sp.BSWDivertPct, true
	case "bsw_alarm_pct":
		return &sp.BSWAlarmPct, true
	case "bsw_sample_delay_sec":
		return &sp.BSWSampleDelaySec, true
	case "bsw_divert_delay_sec":
		return &sp.BSWDivertDelaySec, true
	case "meter_k_factor":
		return &sp.MeterKFactor, true
	case "meter_min_flow_bph":
		return &sp.MeterMinFlowBPH, true
	case "meter_max_flow_bph":
		return &sp.MeterMaxFlowBPH, true
	case "meter_no_flow_timeout_sec":
		return &sp.MeterNoFlowTimeoutSec, true
	case "temp_base_deg_f":
		return &sp.TempBaseDegF, true
	case "temp_lo_alarm_f":
		return &sp.TempLoAlarmF, true
	case "temp_hi_alarm_f":
		return &sp.TempHiAlarmF, true
	case "temp_max_delta_f":
		return &sp.TempMaxDeltaF, true
	case "inlet_press_lo_psi":
		return &sp.InletPressLoPSI, true
	case "inlet_press_hi_psi":
		return &sp.InletPressHiPSI, true
	case "loop_press_hi_psi":
		return &sp.LoopPressHiPSI, true
	case "outlet_press_lo_psi":
		return &sp.OutletPressLoPSI, true
	case "backpressure_sales_psi":
		return &sp.BackpressureSalesPSI, true
	case "backpressure_divert_psi":
		return &sp.BackpressureDivertPSI, true
	case "strainer_dp_hi_psi":
		return &sp.StrainerDPHiPSI, true
	case "pump_start_delay_sec":
		return &sp.PumpStartDelaySec, true
	case "pump_stop_delay_sec":
		return &sp.PumpStopDelaySec, true
	case "pump_restart_lockout_sec":
		return &sp.PumpRestartLockoutSec, true
	case "sample_rate_sec":
		return &sp.SampleRateSec, true
	case "sample_volume_ml":
		return &sp.SampleVolumeML, true
	case "sample_mix_time_sec":
		return &sp.SampleMixTimeSec, true
	case "sample_pot_full_gal":
		return &sp.SamplePotFullGal, true
	case "prove_repeatability_pct":
		return &sp.ProveRepeatabilityPct, true
	case "prove_meter_factor_min":
		return &sp.ProveMeterFactorMin, true
	case "prove_meter_factor_max":
		return &sp.ProveMeterFactorMax, true
	case "prove_reference_volume_bbl":
		return &sp.ProveReferenceVolumeBBL, true
	case "divert_travel_timeout_sec":
		return &sp.DivertTravelTimeoutSec, true
	case "divert_confirm_delay_sec":
		return &sp.DivertConfirmDelaySec, true
	case "alarm_horn_silence_sec":
		return &sp.AlarmHornSilenceSec, true
	case "watchdog_timeout_sec":
		return &sp.WatchdogTimeoutSec, true
	default:
		return nil, false
	}
}
