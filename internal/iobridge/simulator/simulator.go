// Package simulator provides a self-contained software backend that
// models LACT unit process dynamics, so the scan engine can run end to
// end without physical I/O hardware.
package simulator

import (
	"math"
	"math/rand"
	"sync"
	"time"

	"github.com/scstechnologies/lactd/internal/iobridge"
)

const (
	pumpFlowTargetBPH = 400.0
	flowSmoothing     = 0.05
	kFactorPulses     = 100.0
	divertTravelRate  = 1.0 / 12.0 // full 0->1 stroke in 12s
)

// Simulator is a self-contained hardware model: a transfer pump that
// ramps flow on start and decays on stop/overload, a divert valve that
// travels over time, a turbine meter that emits pulses proportional to
// flow, and slow random-walk drift on pressure/temperature/BS&W.
type Simulator struct {
	mu sync.Mutex
	rnd *rand.Rand

	digitalIn  map[int]bool
	digitalOut map[int]bool
	analogIn   map[int]int
	analogOut  map[int]int
	pulseCount map[int]int64

	lastTick time.Time

	pumpStartedAt time.Time
	pumpRampingUp bool
	flowRate      float64 // BPH

	divertPos    float64 // 0.0 = SALES, 1.0 = DIVERT
	divertTarget float64

	inletPress  float64
	outletPress float64
	bsw         float64
	meterTemp   float64

	samplePotGal float64

	overload bool
	estop    bool
}

// New creates a Simulator seeded with nominal process values matching a
// unit sitting idle at ambient conditions.
func New(seed int64) *Simulator {
	return &Simulator{
		rnd:         rand.New(rand.NewSource(seed)),
		digitalIn:   make(map[int]bool),
		digitalOut:  make(map[int]bool),
		analogIn:    make(map[int]int),
		analogOut:   make(map[int]int),
		pulseCount:  make(map[int]int64),
		lastTick:    time.Now(),
		inletPress:  80,
		outletPress: 80,
		bsw:         0.2,
		meterTemp:   70,
	}
}

// Register installs this simulator under the "simulator" backend name.
func Register() {
	iobridge.RegisterBackend("simulator", func(cfg map[string]string) (iobridge.Backend, error) {
		return New(1), nil
	})
}

func (s *Simulator) ReadDigital(addr int) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.advanceLocked()
	switch addr {
	case 5: // DI_DIVERT_SALES
		return s.divertPos <= 0.01, nil
	case 6: // DI_DIVERT_DIVERT
		return s.divertPos >= 0.99, nil
	case 4: // DI_PUMP_OVERLOAD
		return s.overload, nil
	case 3: // DI_PUMP_RUNNING
		return s.flowRate > 1.0, nil
	case 12: // DI_ESTOP
		return s.estop, nil
	case 7: // DI_SAMPLE_POT_HI
		return s.samplePotGal >= 15.0, nil
	default:
		return s.digitalIn[addr], nil
	}
}

func (s *Simulator) WriteDigital(addr int, v bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.digitalOut[addr] = v
	switch addr {
	case 0: // DO_PUMP_START
		if v && !s.pumpRampingUp && s.flowRate < 1.0 {
			s.pumpRampingUp = true
			s.pumpStartedAt = time.Now()
		}
		if !v {
			s.pumpRampingUp = false
		}
	case 1: // DO_DIVERT_CMD
		if v {
			s.divertTarget = 1.0
		} else {
			s.divertTarget = 0.0
		}
	case 2: // DO_SAMPLE_SOL
		if v {
			s.samplePotGal += 0.02
		}
	}
	return nil
}

func (s *Simulator) ReadAnalog(addr int) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.advanceLocked()
	switch addr {
	case 0:
		return pctToRaw(s.inletPress, 300), nil
	case 1:
		return pctToRaw(s.inletPress*0.9, 300), nil
	case 2:
		return pctToRaw(2.0, 50), nil
	case 3:
		return pctToRaw(s.bsw, 5), nil
	case 4:
		return tempToRaw(s.meterTemp), nil
	case 5:
		return tempToRaw(s.meterTemp - 0.2), nil
	case 6:
		return pctToRaw(s.outletPress, 300), nil
	default:
		return s.analogIn[addr], nil
	}
}

func (s *Simulator) WriteAnalog(addr int, v int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.analogOut[addr] = v
	return nil
}

func (s *Simulator) ReadPulse(addr int) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.advanceLocked()
	return s.pulseCount[addr], nil
}

// advanceLocked integrates the physics model forward to now. Called on
// every read so the model advances in step with the scan cycle calling
// it, without a separate background goroutine.
func (s *Simulator) advanceLocked() {
	now := time.Now()
	dt := now.Sub(s.lastTick).Seconds()
	if dt <= 0 {
		return
	}
	s.lastTick = now

	target := 0.0
	if s.pumpRampingUp && !s.overload && !s.estop {
		if now.Sub(s.pumpStartedAt).Seconds() >= 2.0 {
			target = pumpFlowTargetBPH
		}
	}
	if s.overload || s.estop {
		s.flowRate *= math.Pow(0.9, dt*10)
	} else if target == 0 {
		s.flowRate *= math.Pow(0.8, dt*10)
	} else {
		s.flowRate += (target - s.flowRate) * flowSmoothing
	}
	if s.flowRate < 0 {
		s.flowRate = 0
	}

	pulses := s.flowRate * kFactorPulses * dt / 3600.0
	s.pulseCount[0] += int64(pulses)

	if s.divertPos < s.divertTarget {
		s.divertPos += divertTravelRate * dt
		if s.divertPos > s.divertTarget {
			s.divertPos = s.divertTarget
		}
	} else if s.divertPos > s.divertTarget {
		s.divertPos -= divertTravelRate * dt
		if s.divertPos < s.divertTarget {
			s.divertPos = s.divertTarget
		}
	}

	s.inletPress += s.rnd.NormFloat64() * 0.3
	s.outletPress += s.rnd.NormFloat64() * 0.3
	s.bsw += s.rnd.NormFloat64() * 0.02
	if s.bsw < 0 {
		s.bsw = 0
	}
	s.meterTemp += s.rnd.NormFloat64() * 0.1

	if s.samplePotGal > 0 {
		s.samplePotGal -= 0.001 * dt // slow pot drain/recirculation
		if s.samplePotGal < 0 {
			s.samplePotGal = 0
		}
	}
}

// Fault injection, used by tests to exercise safety and process logic
// deterministically.

func (s *Simulator) SetBSW(pct float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.bsw = pct
}

func (s *Simulator) SetMeterTemp(degF float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.meterTemp = degF
}

func (s *Simulator) SetInletPressure(psi float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.inletPress = psi
}

func (s *Simulator) TriggerPumpOverload() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.overload = true
}

func (s *Simulator) ClearPumpOverload() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.overload = false
}

func (s *Simulator) SetEstop(v bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.estop = v
}

func pctToRaw(eng, engMax float64) int {
	raw := int(eng / engMax * 4095)
	if raw < 0 {
		return 0
	}
	if raw > 4095 {
		return 4095
	}
	return raw
}

func tempToRaw(degF float64) int {
	raw := int((degF + 20) / 220 * 4095)
	if raw < 0 {
		return 0
	}
	if raw > 4095 {
		return 4095
	}
	return raw
}
