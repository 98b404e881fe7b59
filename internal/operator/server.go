// Package operator — server.go
//
// Unix domain socket command surface for lactd operator consoles.
//
// Protocol: newline-delimited JSON over a Unix domain socket.
// Socket path: /run/lactd/operator.sock (configurable).
// Permissions: 0600; connections are additionally checked against the
// daemon's own UID via SO_PEERCRED so only a local, same-user process
// may issue commands.
//
// Commands (JSON request -> JSON response):
//
//	{"cmd":"start"}                              -> IDLE->STARTUP request
//	{"cmd":"stop"}                                -> ...->SHUTDOWN request
//	{"cmd":"estop"}                                -> manual trip to E_STOP
//	{"cmd":"estop_reset"}                          -> E_STOP->IDLE request
//	{"cmd":"prove"}                                -> RUNNING->PROVING request
//	{"cmd":"ack_alarm","tag":"ALM_BSW_HIGH"}       -> acknowledge one alarm
//	{"cmd":"ack_alarm","tag":"all"}                -> acknowledge every alarm
//	{"cmd":"silence_horn"}                         -> silence until newer alarm
//	{"cmd":"update_setpoint","key":"...","value":0} -> tune one setpoint
//	{"cmd":"save_setpoints","path":"..."}          -> persist setpoints to disk
//	{"cmd":"get_status"}                           -> structured status snapshot
//	{"cmd":"reset_batch"}                          -> zero batch accumulators
//
// Every response carries {"ok":bool,"message":string}; get_status also
// carries a "status" object.
package operator

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"os"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sys/unix"

	"github.com/scstechnologies/lactd/internal/scanengine"
	"github.com/scstechnologies/lactd/internal/setpoints"
)

const (
	maxConcurrentConns = 4
	maxRequestBytes    = 4096
	connTimeout        = 10 * time.Second
)

// Engine is the subset of *scanengine.Engine the operator command surface
// drives. Defined as an interface so server tests can exercise the
// dispatch logic against a fake without spinning up a real scan loop.
type Engine interface {
	RequestStart() bool
	RequestStop() bool
	RequestEStop() bool
	RequestEStopReset() bool
	RequestProve() bool
	AcknowledgeAlarm(tag string) bool
	AcknowledgeAllAlarms()
	SilenceHorn()
	ResetBatch()
	Setpoints() setpoints.Setpoints
	ReplaceSetpoints(setpoints.Setpoints)
	GetStatus() scanengine.Status
}

// Request is the JSON structure for operator commands.
type Request struct {
	Cmd   string  `json:"cmd"`
	Tag   string  `json:"tag,omitempty"`
	Key   string  `json:"key,omitempty"`
	Value float64 `json:"value,omitempty"`
	Path  string  `json:"path,omitempty"`
}

// Response is the JSON structure for operator command responses.
type Response struct {
	OK      bool               `json:"ok"`
	Message string             `json:"message,omitempty"`
	Status  *scanengine.Status `json:"status,omitempty"`
}

// Server is the operator Unix domain socket server.
type Server struct {
	socketPath      string
	engine          Engine
	defaultSavePath string
	log             *zap.Logger
	sem             chan struct{}
}

// NewServer creates an operator Server. defaultSavePath is used for
// save_setpoints requests that omit an explicit path.
func NewServer(socketPath string, engine Engine, defaultSavePath string, log *zap.Logger) *Server {
	return &Server{
		socketPath:      socketPath,
		engine:          engine,
		defaultSavePath: defaultSavePath,
		log:             log,
		sem:             make(chan struct{}, maxConcurrentConns),
	}
}

// ListenAndServe starts the operator socket server. Blocks until ctx is
// cancelled.
func (s *Server) ListenAndServe(ctx context.Context) error {
	if err := os.Remove(s.socketPath); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("operator: remove stale socket %q: %w", s.socketPath, err)
	}
	if err := os.MkdirAll(parentDir(s.socketPath), 0o700); err != nil {
		return fmt.Errorf("operator: mkdir %q: %w", parentDir(s.socketPath), err)
	}

	lis, err := net.Listen("unix", s.socketPath)
	if err != nil {
		return fmt.Errorf("operator: listen %q: %w", s.socketPath, err)
	}
	defer lis.Close()

	if err := os.Chmod(s.socketPath, 0o600); err != nil {
		return fmt.Errorf("operator: chmod %q: %w", s.socketPath, err)
	}

	s.log.Info("operator socket listening", zap.String("path", s.socketPath))

	go func() {
		<-ctx.Done()
		lis.Close()
	}()

	for {
		conn, err := lis.Accept()
		if err != nil {
			select {
			case <-ctx.Done():
				return nil
			default:
				s.log.Error("operator: accept error", zap.Error(err))
				continue
			}
		}

		if !s.sameUID(conn) {
			s.log.Warn("operator: rejected connection from different UID")
			_ = conn.Close()
			continue
		}

		select {
		case s.sem <- struct{}{}:
		default:
			s.log.Warn("operator: max connections reached, rejecting")
			_ = conn.Close()
			continue
		}

		go func(c net.Conn) {
			defer func() { <-s.sem }()
			defer c.Close()
			s.handleConn(c)
		}(conn)
	}
}

// sameUID enforces SO_PEERCRED: only a process running as this daemon's
// own UID may issue operator commands over the socket.
func (s *Server) sameUID(conn net.Conn) bool {
	uc, ok := conn.(*net.UnixConn)
	if !ok {
		return false
	}
	raw, err := uc.SyscallConn()
	if err != nil {
		return false
	}
	var cred *unix.Ucred
	var credErr error
	if err := raw.Control(func(fd uintptr) {
		cred, credErr = unix.GetsockoptUcred(int(fd), unix.SOL_SOCKET, unix.SO_PEERCRED)
	}); err != nil {
		return false
	}
	if credErr != nil || cred == nil {
		return false
	}
	return cred.Uid == uint32(os.Getuid())
}

func (s *Server) handleConn(conn net.Conn) {
	_ = conn.SetDeadline(time.Now().Add(connTimeout))

	buf := make([]byte, maxRequestBytes)
	n, err := conn.Read(buf)
	if err != nil && err != io.EOF {
		s.log.Warn("operator: read error", zap.Error(err))
		return
	}

	var req Request
	if err := json.Unmarshal(buf[:n], &req); err != nil {
		s.writeResponse(conn, Response{OK: false, Message: "invalid JSON: " + err.Error()})
		return
	}

	resp := s.dispatch(req)
	s.writeResponse(conn, resp)
}

func (s *Server) dispatch(req Request) Response {
	switch req.Cmd {
	case "start":
		return s.boolResult(s.engine.RequestStart(), "IDLE->STARTUP requested", "start rejected: illegal from current state")
	case "stop":
		return s.boolResult(s.engine.RequestStop(), "shutdown requested", "stop rejected: illegal from current state")
	case "estop":
		return s.boolResult(s.engine.RequestEStop(), "emergency stop requested", "estop rejected: illegal from current state")
	case "estop_reset":
		return s.boolResult(s.engine.RequestEStopReset(), "E_STOP->IDLE requested", "estop_reset rejected: clear debounce not yet elapsed or not in E_STOP")
	case "prove":
		return s.boolResult(s.engine.RequestProve(), "proving sequence started", "prove rejected: illegal from current state")
	case "ack_alarm":
		return s.cmdAckAlarm(req)
	case "silence_horn":
		s.engine.SilenceHorn()
		return Response{OK: true, Message: "horn silenced"}
	case "update_setpoint":
		return s.cmdUpdateSetpoint(req)
	case "save_setpoints":
		return s.cmdSaveSetpoints(req)
	case "get_status":
		status := s.engine.GetStatus()
		return Response{OK: true, Status: &status}
	case "reset_batch":
		s.engine.ResetBatch()
		return Response{OK: true, Message: "batch totals reset"}
	default:
		return Response{OK: false, Message: fmt.Sprintf("unknown command %q", req.Cmd)}
	}
}

func (s *Server) cmdAckAlarm(req Request) Response {
	if req.Tag == "" {
		return Response{OK: false, Message: "ack_alarm requires a tag (or \"all\")"}
	}
	if req.Tag == "all" {
		s.engine.AcknowledgeAllAlarms()
		return Response{OK: true, Message: "all alarms acknowledged"}
	}
	if !s.engine.AcknowledgeAlarm(req.Tag) {
		return Response{OK: false, Message: fmt.Sprintf("unknown alarm tag %q", req.Tag)}
	}
	return Response{OK: true, Message: fmt.Sprintf("%s acknowledged", req.Tag)}
}

func (s *Server) cmdUpdateSetpoint(req Request) Response {
	if req.Key == "" {
		return Response{OK: false, Message: "update_setpoint requires a key"}
	}
	sp := s.engine.Setpoints()
	if err := sp.Update(req.Key, req.Value); err != nil {
		return Response{OK: false, Message: err.Error()}
	}
	s.engine.ReplaceSetpoints(sp)
	return Response{OK: true, Message: fmt.Sprintf("%s set to %v", req.Key, req.Value)}
}

func (s *Server) cmdSaveSetpoints(req Request) Response {
	path := req.Path
	if path == "" {
		path = s.defaultSavePath
	}
	if err := s.engine.Setpoints().Save(path); err != nil {
		return Response{OK: false, Message: fmt.Sprintf("save failed: %v", err)}
	}
	return Response{OK: true, Message: fmt.Sprintf("setpoints saved to %s", path)}
}

func (s *Server) boolResult(ok bool, successMsg, failMsg string) Response {
	if ok {
		return Response{OK: true, Message: successMsg}
	}
	return Response{OK: false, Message: failMsg}
}

func (s *Server) writeResponse(conn net.Conn, resp Response) {
	data, _ := json.Marshal(resp)
	data = append(data, '\n')
	_, _ = conn.Write(data)
}

func parentDir(path string) string {
	for i := len(path) - 1; i >= 0; i-- {
		if path[i] == '/' {
			return path[:i]
		}
	}
	return "."
}
