package control

import (
	"context"
	"errors"
)

// ErrUnavailable reports that no launcher answered on the control address.
var ErrUnavailable = errors.New("control server unavailable")

// Status is the launcher state served at /state.
type Status struct {
	State         string `json:"state"`
	SessionID     string `json:"session_id,omitempty"`
	Home          string `json:"home"`
	ServicePID    int    `json:"service_pid,omitempty"`
	WorkerPID     int    `json:"worker_pid,omitempty"`
	WorkerRunning bool   `json:"worker_running"`
	ShellRunning  bool   `json:"shell_running"`
	Error         string `json:"error,omitempty"`
}

// Controller is the launcher as seen by the control server.
type Controller interface {
	Activate(ctx context.Context) error
	Status() Status
}

// ActivateResponse is returned by POST /activate.
type ActivateResponse struct {
	Activated bool   `json:"activated"`
	State     string `json:"state"`
}
