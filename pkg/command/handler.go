package command

import (
	"github.com/golang/glog"

	"github.com/robotalks/npg.go/pkg/indicator"
	"github.com/robotalks/npg.go/pkg/stream"
)

// Handler executes control commands against the streaming controller.
type Handler struct {
	Controller *stream.Controller
	Indicator  indicator.Indicator
	Identity   string
	Mode       MatchMode
}

// NewHandler creates a Handler with prefix matching and default identity.
func NewHandler(ctl *stream.Controller, ind indicator.Indicator) *Handler {
	return &Handler{
		Controller: ctl,
		Indicator:  ind,
		Identity:   DefaultIdentity,
		Mode:       MatchPrefix,
	}
}

// Handle executes raw command bytes and returns the response.
func (h *Handler) Handle(raw []byte) []byte {
	cmd := Parse(raw, h.Mode)
	glog.V(2).Infof("command %q: %s", raw, cmd)
	switch cmd {
	case Start:
		return []byte(h.start())
	case Stop:
		if h.Controller.Stop() {
			indicator.Request(h.Indicator, indicator.Status, indicator.Green, indicator.DefaultBrightness)
		}
		return []byte(RespStopped)
	case WhoRU:
		return []byte(h.Identity)
	case Status:
		return h.Read()
	}
	return []byte(RespUnknown)
}

func (h *Handler) start() string {
	switch err := h.Controller.TryStart(); err {
	case nil:
		indicator.Request(h.Indicator, indicator.Status, indicator.Blue, indicator.DefaultBrightness)
		// acquisition may have failed to start and reverted already
		if h.Controller.Current() == stream.Idle {
			indicator.Request(h.Indicator, indicator.Status, indicator.Green, indicator.DefaultBrightness)
		}
		return RespRunning
	case stream.ErrBusy:
		return RespRunning
	default:
		glog.Warningf("start rejected: %v", err)
		return h.Controller.Current().Description()
	}
}

// Read returns the streaming status without changing state.
func (h *Handler) Read() []byte {
	return []byte(h.Controller.Current().Status())
}
