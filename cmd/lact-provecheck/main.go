// Package main — cmd/lact-provecheck/main.go
//
// lact-provecheck drives a standalone proving sequence against the
// simulator backend and reports the resulting meter factor, without
// requiring a running lactd daemon or a physical prover.
//
// It wires only the packages a proving sequence touches — tag store,
// simulator backend, flow totalizer, and prover — bypassing the full
// state machine and process module set so the sequence can be exercised
// in isolation, e.g. in CI or during commissioning before the rest of
// the unit is wired up.
//
// Exit status:
//
//	0   proving sequence completed and passed repeatability/range checks
//	1   proving sequence failed or did not complete within the deadline
package main

import (
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/scstechnologies/lactd/internal/alarms"
	"github.com/scstechnologies/lactd/internal/flow"
	"github.com/scstechnologies/lactd/internal/iobridge"
	"github.com/scstechnologies/lactd/internal/iobridge/simulator"
	"github.com/scstechnologies/lactd/internal/prover"
	"github.com/scstechnologies/lactd/internal/setpoints"
	"github.com/scstechnologies/lactd/internal/tagstore"
)

func main() {
	setpointsPath := flag.String("setpoints", "", "Path to a setpoints JSON file (optional; defaults used if omitted)")
	deadline := flag.Duration("deadline", 6*time.Minute, "Maximum wall-clock time to wait for the sequence to finish (each run times out at a fixed 60s, regardless of setpoints.ProveNumRuns)")
	scanInterval := flag.Duration("scan-interval", 100*time.Millisecond, "Simulated scan period")
	flag.Parse()

	var sp setpoints.Setpoints
	if *setpointsPath != "" {
		loaded, err := setpoints.Load(*setpointsPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "setpoints load failed: %v\n", err)
			os.Exit(1)
		}
		sp = loaded
	} else {
		sp = setpoints.Defaults()
	}

	sim := simulator.New(time.Now().UnixNano())
	bridge := iobridge.New(sim, iobridge.Points, nil)
	reg := alarms.NewRegistry()
	ds := tagstore.New()
	tot := flow.New()
	pv := prover.New(reg)

	// Unit must look like it is already running and delivering flow for
	// the prover's run-volume measurement to make sense; the simulator's
	// pump ramps up once DO_PUMP_START is asserted and held.
	bridge.ReadInputs(ds)
	ds.WriteBool(tagstore.DOPumpStart, true)
	if err := bridge.WriteOutputs(ds); err != nil {
		fmt.Fprintf(os.Stderr, "write outputs: %v\n", err)
		os.Exit(1)
	}

	if !pv.Start() {
		fmt.Fprintln(os.Stderr, "prover refused to start from its initial state")
		os.Exit(1)
	}

	deadlineAt := time.Now().Add(*deadline)
	for !pv.Done() {
		if time.Now().After(deadlineAt) {
			fmt.Fprintf(os.Stderr, "FAIL: proving sequence did not finish within %s (phase=%s)\n", *deadline, pv.Phase())
			os.Exit(1)
		}
		bridge.ReadInputs(ds)
		tot.Execute(ds, &sp)
		pv.Execute(ds, &sp)
		if err := bridge.WriteOutputs(ds); err != nil {
			fmt.Fprintf(os.Stderr, "write outputs: %v\n", err)
			os.Exit(1)
		}
		time.Sleep(*scanInterval)
	}

	avg, repeatPct := pv.Repeatability()
	results := pv.RunResults()

	fmt.Printf("Proving sequence: %s\n", pv.Phase())
	fmt.Printf("  runs:                %v\n", results)
	fmt.Printf("  average meter factor: %.4f\n", avg)
	fmt.Printf("  repeatability:        %.3f%% (limit %.3f%%)\n", repeatPct, sp.ProveRepeatabilityPct)

	if pv.Phase().String() != "COMPLETE" {
		fmt.Printf("  fail reason:          %s\n", pv.FailReason())
		os.Exit(1)
	}
	fmt.Printf("  accepted meter factor: %.4f\n", ds.ReadFloat(tagstore.MeterFactor))
}
