package alarms

// Registry holds the complete, fixed set of alarm definitions for the LACT
// unit and the live State derived from each at startup.
type Registry struct {
	states map[string]*State
	order  []string
}

// NewRegistry builds the registry from the canonical definition list.
func NewRegistry() *Registry {
	r := &Registry{states: make(map[string]*State, len(Definitions))}
	for _, def := range Definitions {
		r.states[def.Tag] = NewState(def)
		r.order = append(r.order, def.Tag)
	}
	return r
}

// Get returns the live state for an alarm tag, or nil if unknown.
func (r *Registry) Get(tag string) *State {
	return r.states[tag]
}

// All returns every alarm state in definition order.
func (r *Registry) All() []*State {
	out := make([]*State, 0, len(r.order))
	for _, tag := range r.order {
		out = append(out, r.states[tag])
	}
	return out
}

// Active returns every currently active alarm.
func (r *Registry) Active() []*State {
	var out []*State
	for _, tag := range r.order {
		if s := r.states[tag]; s.Active {
			out = append(out, s)
		}
	}
	return out
}

// Unacknowledged returns every alarm that is active but not acknowledged.
func (r *Registry) Unacknowledged() []*State {
	var out []*State
	for _, tag := range r.order {
		if s := r.states[tag]; s.Active && !s.Acknowledged {
			out = append(out, s)
		}
	}
	return out
}

// AcknowledgeAll acknowledges every currently active alarm.
func (r *Registry) AcknowledgeAll() {
	for _, s := range r.states {
		if s.Active {
			s.Acknowledge()
		}
	}
}

// Definitions is the complete, fixed alarm configuration for the LACT unit.
var Definitions = []Definition{
	{Tag: "ALM_ESTOP", Description: "Emergency stop activated", Priority: Critical, Action: EmergencyStop, Latching: true},

	{Tag: "ALM_PUMP_OVERLOAD", Description: "Transfer pump motor overload trip", Priority: Critical, Action: Shutdown, Latching: true},
	{Tag: "ALM_PUMP_FAIL_START", Description: "Pump failed to start (no run feedback)", Priority: High, Action: Shutdown, Latching: true},
	{Tag: "ALM_PUMP_MAX_STARTS", Description: "Pump exceeded maximum starts per hour", Priority: High, Action: Annunciate, Latching: true},

	{Tag: "ALM_BSW_HIGH", Description: "BS&W high alarm (approaching divert)", Priority: Medium, Action: Annunciate, Latching: true},
	{Tag: "ALM_BSW_DIVERT", Description: "BS&W exceeded divert setpoint", Priority: High, Action: Divert, Latching: true},
	{Tag: "ALM_BSW_PROBE_FAIL", Description: "BS&W probe signal out of range (4528-5 detector)", Priority: High, Action: Divert, Latching: true},

	{Tag: "ALM_INLET_PRESS_LO", Description: "Inlet pressure low (loss of feed)", Priority: High, Action: Shutdown, Latching: true},
	{Tag: "ALM_INLET_PRESS_HI", Description: "Inlet pressure high", Priority: High, Action: Shutdown, Latching: true},
	{Tag: "ALM_LOOP_PRESS_HI", Description: "Loop high-point pressure high", Priority: High, Action: Shutdown, Latching: true},
	{Tag: "ALM_OUTLET_PRESS_LO", Description: "Outlet pressure low", Priority: Medium, Action: Annunciate, Latching: true},
	{Tag: "ALM_STRAINER_DP_HI", Description: "Strainer differential pressure high (plugged screen)", Priority: Medium, Action: Annunciate, Latching: true},

	{Tag: "ALM_TEMP_LO", Description: "Process temperature low", Priority: Medium, Action: Annunciate, Latching: true},
	{Tag: "ALM_TEMP_HI", Description: "Process temperature high", Priority: Medium, Action: Annunciate, Latching: true},
	{Tag: "ALM_TEMP_DELTA", Description: "TA probe / test thermowell delta exceeded", Priority: Low, Action: Annunciate, Latching: true},

	{Tag: "ALM_FLOW_LO", Description: "Flow rate below minimum (Smith E3-S1)", Priority: Medium, Action: Annunciate, Latching: true},
	{Tag: "ALM_FLOW_HI", Description: "Flow rate above maximum (Smith E3-S1)", Priority: High, Action: Annunciate, Latching: true},
	{Tag: "ALM_NO_FLOW", Description: "No flow detected with pump running", Priority: High, Action: Shutdown, Latching: true},

	{Tag: "ALM_DIVERT_FAIL", Description: "Divert valve failed to travel within timeout", Priority: Critical, Action: Shutdown, Latching: true},

	{Tag: "ALM_SAMPLE_POT_FULL", Description: "Sample receiver pot full (15/20 gal)", Priority: Low, Action: Annunciate, Latching: true},

	{Tag: "ALM_GAS_DETECTED", Description: "Air eliminator float switch - gas in liquid", Priority: Medium, Action: Annunciate, Latching: true},

	{Tag: "ALM_PROVE_REPEAT_FAIL", Description: "Proving runs failed repeatability check", Priority: Low, Action: Annunciate, Latching: true},
	{Tag: "ALM_PROVE_MF_RANGE", Description: "Meter factor outside acceptable range", Priority: Medium, Action: Annunciate, Latching: true},
}
