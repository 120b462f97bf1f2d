package main

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

//statusInterval is how often the control socket pushes a status snapshot
const statusInterval = time.Second / 25

//ControlMessage is sent by the operator console over the control socket
type ControlMessage struct {
	Button string `json:"button"` //"press" or "release"
}

//Info describes the running robot
type Info struct {
	RunID  string   `json:"runId"`
	Link   string   `json:"link"` //serial port or "sim"
	Tick   string   `json:"tick"`
	Start  string   `json:"start"`
	States []string `json:"states"`
}

//Server serves status, metrics and the operator control socket
type Server struct {
	status   *Status
	button   *RemoteButton
	info     Info
	log      *zap.Logger
	xm       xMutex
	upgrader websocket.Upgrader
}

//NewServer creates a Server; button may be nil when the robot is not started remotely
func NewServer(status *Status, button *RemoteButton, info Info, log *zap.Logger) *Server {
	return &Server{
		status: status,
		button: button,
		info:   info,
		log:    log,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
	}
}

//Handler routes the server endpoints
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/info.json", s.handleInfo)
	mux.HandleFunc("/status.json", s.handleStatus)
	mux.HandleFunc("/control", s.handleControl)
	mux.Handle("/metrics", promhttp.Handler())
	return mux
}

func writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-cache")
	json.NewEncoder(w).Encode(v)
}

func (s *Server) handleInfo(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, s.info)
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, s.status.Snapshot())
}

func (s *Server) handleControl(w http.ResponseWriter, r *http.Request) {
	w.Header().Add("Cache-Control", "no-cache")
	err := s.xm.Lock(r.RemoteAddr)
	if err != nil {
		http.Error(w, err.Error(), http.StatusConflict)
		return
	}
	defer s.xm.Unlock()
	ws, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Warn("upgrading websocket", zap.Error(err))
		return
	}
	defer ws.Close()

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()
	done := make(chan struct{})
	go func() { //push status
		defer close(done)
		tick := time.NewTicker(statusInterval)
		defer tick.Stop()
		for {
			if err := ws.WriteJSON(s.status.Snapshot()); err != nil {
				cancel()
				return
			}
			select {
			case <-ctx.Done():
				return
			case <-tick.C:
			}
		}
	}()
	defer func() {
		cancel()
		<-done
	}()

	for {
		var msg ControlMessage
		if err := ws.ReadJSON(&msg); err != nil {
			var ce *websocket.CloseError
			if !errors.As(err, &ce) {
				s.log.Info("control socket closed", zap.Error(err))
			}
			return
		}
		if s.button == nil {
			s.log.Warn("remote start is disabled", zap.String("button", msg.Button))
			continue
		}
		switch msg.Button {
		case "press":
			s.button.Press()
		case "release":
			s.button.Release()
		default:
			s.log.Warn("unknown control message", zap.String("button", msg.Button))
			continue
		}
		s.log.Info("remote button", zap.String("button", msg.Button), zap.String("operator", s.xm.Holder()))
	}
}

//ListenAndServe serves on addr until ctx is done
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{Addr: addr, Handler: s.Handler()}
	errc := make(chan error, 1)
	go func() { errc <- srv.ListenAndServe() }()
	s.log.Info("http server listening", zap.String("addr", addr))
	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return err
		}
		<-errc
		return nil
	}
}
