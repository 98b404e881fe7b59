package operator

import (
	"path/filepath"
	"testing"

	"github.com/scstechnologies/lactd/internal/scanengine"
	"github.com/scstechnologies/lactd/internal/setpoints"
)

// fakeEngine is a minimal Engine double for exercising dispatch logic
// without a real scan loop.
type fakeEngine struct {
	startOK      bool
	stopOK       bool
	estopOK      bool
	estopResetOK bool
	proveOK      bool

	ackTag    string
	ackAllCnt int
	silenceCnt int
	resetBatchCnt int

	unknownAckTag bool

	sp setpoints.Setpoints

	status scanengine.Status
}

func (f *fakeEngine) RequestStart() bool      { return f.startOK }
func (f *fakeEngine) RequestStop() bool       { return f.stopOK }
func (f *fakeEngine) RequestEStop() bool      { return f.estopOK }
func (f *fakeEngine) RequestEStopReset() bool { return f.estopResetOK }
func (f *fakeEngine) RequestProve() bool      { return f.proveOK }

func (f *fakeEngine) AcknowledgeAlarm(tag string) bool {
	f.ackTag = tag
	return !f.unknownAckTag
}
func (f *fakeEngine) AcknowledgeAllAlarms() { f.ackAllCnt++ }
func (f *fakeEngine) SilenceHorn()          { f.silenceCnt++ }
func (f *fakeEngine) ResetBatch()           { f.resetBatchCnt++ }

func (f *fakeEngine) Setpoints() setpoints.Setpoints        { return f.sp }
func (f *fakeEngine) ReplaceSetpoints(sp setpoints.Setpoints) { f.sp = sp }
func (f *fakeEngine) GetStatus() scanengine.Status           { return f.status }

func newTestServer(eng Engine) *Server {
	return NewServer("/tmp/unused.sock", eng, "/tmp/unused-setpoints.json", nil)
}

func Test_DispatchStart(t *testing.T) {
	eng := &fakeEngine{startOK: true}
	s := newTestServer(eng)
	resp := s.dispatch(Request{Cmd: "start"})
	if !resp.OK {
		t.Fatalf("expected OK, got %+v", resp)
	}
}

func Test_DispatchStartRejected(t *testing.T) {
	eng := &fakeEngine{startOK: false}
	s := newTestServer(eng)
	resp := s.dispatch(Request{Cmd: "start"})
	if resp.OK {
		t.Fatalf("expected rejection, got %+v", resp)
	}
}

func Test_DispatchUnknownCommand(t *testing.T) {
	eng := &fakeEngine{}
	s := newTestServer(eng)
	resp := s.dispatch(Request{Cmd: "bogus"})
	if resp.OK {
		t.Fatalf("unknown command should not succeed")
	}
}

func Test_DispatchAckAlarmSingle(t *testing.T) {
	eng := &fakeEngine{}
	s := newTestServer(eng)
	resp := s.dispatch(Request{Cmd: "ack_alarm", Tag: "ALM_BSW_HIGH"})
	if !resp.OK || eng.ackTag != "ALM_BSW_HIGH" {
		t.Fatalf("expected single-tag ack, got %+v (eng.ackTag=%s)", resp, eng.ackTag)
	}
}

func Test_DispatchAckAlarmAll(t *testing.T) {
	eng := &fakeEngine{}
	s := newTestServer(eng)
	resp := s.dispatch(Request{Cmd: "ack_alarm", Tag: "all"})
	if !resp.OK || eng.ackAllCnt != 1 {
		t.Fatalf("expected all-alarm ack, got %+v (ackAllCnt=%d)", resp, eng.ackAllCnt)
	}
}

func Test_DispatchAckAlarmMissingTag(t *testing.T) {
	eng := &fakeEngine{}
	s := newTestServer(eng)
	resp := s.dispatch(Request{Cmd: "ack_alarm"})
	if resp.OK {
		t.Fatalf("ack_alarm with no tag should fail")
	}
}

func Test_DispatchAckAlarmUnknownTag(t *testing.T) {
	eng := &fakeEngine{unknownAckTag: true}
	s := newTestServer(eng)
	resp := s.dispatch(Request{Cmd: "ack_alarm", Tag: "NOT_A_REAL_TAG"})
	if resp.OK {
		t.Fatalf("unknown alarm tag should fail")
	}
}

func Test_DispatchSilenceHorn(t *testing.T) {
	eng := &fakeEngine{}
	s := newTestServer(eng)
	resp := s.dispatch(Request{Cmd: "silence_horn"})
	if !resp.OK || eng.silenceCnt != 1 {
		t.Fatalf("expected horn silenced, got %+v", resp)
	}
}

func Test_DispatchUpdateSetpoint(t *testing.T) {
	eng := &fakeEngine{sp: setpoints.Defaults()}
	s := newTestServer(eng)
	resp := s.dispatch(Request{Cmd: "update_setpoint", Key: "bsw_divert_pct", Value: 2.5})
	if !resp.OK {
		t.Fatalf("expected OK, got %+v", resp)
	}
	if eng.sp.BSWDivertPct != 2.5 {
		t.Fatalf("setpoint not applied: got %v", eng.sp.BSWDivertPct)
	}
}

func Test_DispatchUpdateSetpointUnknownKey(t *testing.T) {
	eng := &fakeEngine{sp: setpoints.Defaults()}
	s := newTestServer(eng)
	resp := s.dispatch(Request{Cmd: "update_setpoint", Key: "not_a_real_key", Value: 1.0})
	if resp.OK {
		t.Fatalf("unknown setpoint key should fail")
	}
}

func Test_DispatchUpdateSetpointMissingKey(t *testing.T) {
	eng := &fakeEngine{sp: setpoints.Defaults()}
	s := newTestServer(eng)
	resp := s.dispatch(Request{Cmd: "update_setpoint", Value: 1.0})
	if resp.OK {
		t.Fatalf("update_setpoint with no key should fail")
	}
}

func Test_DispatchGetStatus(t *testing.T) {
	eng := &fakeEngine{status: scanengine.Status{State: "RUNNING", ScanCount: 42}}
	s := newTestServer(eng)
	resp := s.dispatch(Request{Cmd: "get_status"})
	if !resp.OK || resp.Status == nil {
		t.Fatalf("expected status payload, got %+v", resp)
	}
	if resp.Status.State != "RUNNING" || resp.Status.ScanCount != 42 {
		t.Fatalf("unexpected status contents: %+v", resp.Status)
	}
}

func Test_DispatchResetBatch(t *testing.T) {
	eng := &fakeEngine{}
	s := newTestServer(eng)
	resp := s.dispatch(Request{Cmd: "reset_batch"})
	if !resp.OK || eng.resetBatchCnt != 1 {
		t.Fatalf("expected batch reset, got %+v", resp)
	}
}

func Test_DispatchEStopAndReset(t *testing.T) {
	eng := &fakeEngine{estopOK: true, estopResetOK: false}
	s := newTestServer(eng)

	resp := s.dispatch(Request{Cmd: "estop"})
	if !resp.OK {
		t.Fatalf("expected estop to succeed, got %+v", resp)
	}

	resp = s.dispatch(Request{Cmd: "estop_reset"})
	if resp.OK {
		t.Fatalf("estop_reset should fail before the clear debounce elapses")
	}
}

func Test_DispatchSaveSetpointsExplicitPath(t *testing.T) {
	eng := &fakeEngine{sp: setpoints.Defaults()}
	s := newTestServer(eng)
	path := filepath.Join(t.TempDir(), "saved.json")
	resp := s.dispatch(Request{Cmd: "save_setpoints", Path: path})
	if !resp.OK {
		t.Fatalf("expected save to succeed, got %+v", resp)
	}
	if _, err := setpoints.Load(path); err != nil {
		t.Fatalf("saved setpoints file did not load back: %v", err)
	}
}

func Test_DispatchSaveSetpointsDefaultPath(t *testing.T) {
	eng := &fakeEngine{sp: setpoints.Defaults()}
	path := filepath.Join(t.TempDir(), "default-saved.json")
	s := NewServer("/tmp/unused.sock", eng, path, nil)
	resp := s.dispatch(Request{Cmd: "save_setpoints"})
	if !resp.OK {
		t.Fatalf("expected save to succeed, got %+v", resp)
	}
	if _, err := setpoints.Load(path); err != nil {
		t.Fatalf("saved setpoints file did not load back: %v", err)
	}
}

func Test_DispatchProve(t *testing.T) {
	eng := &fakeEngine{proveOK: true}
	s := newTestServer(eng)
	resp := s.dispatch(Request{Cmd: "prove"})
	if !resp.OK {
		t.Fatalf("expected prove to succeed, got %+v", resp)
	}
}
