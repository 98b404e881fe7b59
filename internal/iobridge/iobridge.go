// Package iobridge translates between the tag store's engineering-unit
// values and a physical (or simulated) backend's raw signal values.
//
// Linear scaling and saturating clamps live here so every backend, present
// or future, gets the same conversion semantics for free; a backend only
// needs to speak raw counts/bits.
package iobridge

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/scstechnologies/lactd/internal/tagstore"
)

// SignalType classifies an I/O point for bridge bookkeeping.
type SignalType int

const (
	DigitalIn SignalType = iota
	DigitalOut
	AnalogIn
	AnalogOut
	PulseIn
)

// Point describes one I/O point's address, scaling, and destination tag.
type Point struct {
	Tag        string
	Type       SignalType
	Address    int
	RawMin     float64
	RawMax     float64
	EngMin     float64
	EngMax     float64
}

// Backend is the minimal capability interface a physical or simulated I/O
// transport must implement. It deliberately knows nothing about tags,
// scaling, or scan cycles — only raw addressed signals.
type Backend interface {
	ReadDigital(addr int) (bool, error)
	WriteDigital(addr int, v bool) error
	ReadAnalog(addr int) (int, error) // raw ADC counts
	WriteAnalog(addr int, v int) error
	ReadPulse(addr int) (int64, error) // accumulated pulse count
}

// Bridge reads a backend's raw inputs into the tag store and writes the
// tag store's output tags back to the backend, applying linear scaling.
type Bridge struct {
	backend Backend
	points  []Point
	log     *zap.Logger
}

// New creates a Bridge over the given backend and I/O point map.
func New(backend Backend, points []Point, log *zap.Logger) *Bridge {
	return &Bridge{backend: backend, points: points, log: log}
}

// scaleInput converts a raw value into engineering units. If raw_hi equals
// raw_lo the scale factor is undefined; eng_lo is returned rather than
// dividing by zero.
func scaleInput(raw, rawMin, rawMax, engMin, engMax float64) float64 {
	if rawMax == rawMin {
		return engMin
	}
	return engMin + (raw-rawMin)*(engMax-engMin)/(rawMax-rawMin)
}

// scaleOutput converts an engineering value into a raw value, clamped to
// [rawMin, rawMax].
func scaleOutput(eng, rawMin, rawMax, engMin, engMax float64) float64 {
	var raw float64
	if engMax == engMin {
		raw = rawMin
	} else {
		raw = rawMin + (eng-engMin)*(rawMax-rawMin)/(engMax-engMin)
	}
	if raw < rawMin {
		return rawMin
	}
	if raw > rawMax {
		return rawMax
	}
	return raw
}

// ReadInputs reads every input point from the backend into the tag store.
// A failing point is written with Bad quality rather than aborting the
// whole scan; one broken transmitter must not blind the rest of the unit.
func (b *Bridge) ReadInputs(ds *tagstore.Store) {
	for _, p := range b.points {
		switch p.Type {
		case DigitalIn:
			v, err := b.backend.ReadDigital(p.Address)
			if err != nil {
				b.degrade(ds, p.Tag, p.Type, err)
				continue
			}
			ds.WriteBool(p.Tag, v)
		case AnalogIn:
			raw, err := b.backend.ReadAnalog(p.Address)
			if err != nil {
				b.degrade(ds, p.Tag, p.Type, err)
				continue
			}
			eng := scaleInput(float64(raw), p.RawMin, p.RawMax, p.EngMin, p.EngMax)
			ds.WriteFloat(p.Tag, eng)
		case PulseIn:
			count, err := b.backend.ReadPulse(p.Address)
			if err != nil {
				b.degrade(ds, p.Tag, p.Type, err)
				continue
			}
			ds.WriteInt(p.Tag, count)
		}
	}
}

// WriteOutputs reads every output tag from the tag store and writes it to
// the backend.
func (b *Bridge) WriteOutputs(ds *tagstore.Store) error {
	var firstErr error
	for _, p := range b.points {
		switch p.Type {
		case DigitalOut:
			v := ds.ReadBool(p.Tag)
			if err := b.backend.WriteDigital(p.Address, v); err != nil {
				firstErr = firstErrOf(firstErr, fmt.Errorf("write %s: %w", p.Tag, err))
			}
		case AnalogOut:
			eng := ds.ReadFloat(p.Tag)
			raw := scaleOutput(eng, p.RawMin, p.RawMax, p.EngMin, p.EngMax)
			if err := b.backend.WriteAnalog(p.Address, int(raw)); err != nil {
				firstErr = firstErrOf(firstErr, fmt.Errorf("write %s: %w", p.Tag, err))
			}
		}
	}
	return firstErr
}

// degrade marks a failed input point BAD quality and resets it to a
// type-appropriate zero, rather than leaving the last-known value in
// place — a stale reading with BAD quality attached is easy to mistake for
// a live one by any reader that doesn't check quality.
func (b *Bridge) degrade(ds *tagstore.Store, tag string, typ SignalType, err error) {
	if b.log != nil {
		b.log.Warn("io point read failed, marking BAD quality", zap.String("tag", tag), zap.Error(err))
	}
	var zero tagstore.Value
	switch typ {
	case DigitalIn, DigitalOut:
		zero = tagstore.Bool(false)
	case PulseIn:
		zero = tagstore.Int(0)
	default:
		zero = tagstore.Float(0)
	}
	ds.WriteQuality(tag, zero, tagstore.Bad)
}

func firstErrOf(existing, next error) error {
	if existing != nil {
		return existing
	}
	return next
}
