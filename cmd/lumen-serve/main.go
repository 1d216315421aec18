// Command lumen-serve demonstrates driving a suspended lumen Future from a
// host's own async runtime rather than pkg/lumen.Vm.Run's busy-poll
// convenience path (spec.md §2's "resumption is driven by the host"):
// each websocket connection runs one entrypoint as a generator/stream and
// resumes it exactly once per inbound message.
package main

import (
	"encoding/json"
	"flag"
	"net/http"
	"os"

	"github.com/gorilla/websocket"

	"code.hybscloud.com/lumen/internal/lumen/diag"
	"code.hybscloud.com/lumen/internal/lumen/exec"
	"code.hybscloud.com/lumen/internal/lumen/suspend"
	"code.hybscloud.com/lumen/internal/lumen/unit"
	"code.hybscloud.com/lumen/internal/lumen/value"
	"code.hybscloud.com/lumen/pkg/lumen"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// resumeMessage is one inbound frame: the value to resume the generator
// with. The generator is primed with the unit value as soon as the
// connection opens, so every inbound message's value is sent to it.
type resumeMessage struct {
	Sent string `json:"sent"`
}

// stateMessage is one outbound frame: the generator's next yielded value,
// or its completion.
type stateMessage struct {
	Done  bool   `json:"done"`
	Value string `json:"value,omitempty"`
	Error string `json:"error,omitempty"`
}

func main() {
	unitPath := flag.String("unit", "", "path to a compiled .lum unit")
	entry := flag.String("entry", "", "fully-qualified entrypoint name, of generator or stream call kind")
	addr := flag.String("addr", ":8089", "listen address")
	flag.Parse()

	logger := lumen.DefaultConfig().Logger()

	if *unitPath == "" || *entry == "" {
		logger.Error("both -unit and -entry are required")
		os.Exit(1)
	}

	u, err := loadUnit(*unitPath)
	if err != nil {
		logger.Error("loading unit", "error", err)
		os.Exit(1)
	}

	srv := &server{unit: u, entry: *entry, logger: logger}
	http.HandleFunc("/run", srv.handleRun)
	logger.Info("listening", "addr", *addr)
	if err := http.ListenAndServe(*addr, nil); err != nil {
		logger.Error("serve", "error", err)
		os.Exit(1)
	}
}

type server struct {
	unit   *unit.Unit
	entry  string
	logger *diag.Logger
}

// handleRun upgrades one HTTP request to a websocket connection, runs the
// server's configured entrypoint as a generator/stream, and from then on
// resumes it exactly once per inbound message — the connection's own
// read loop is this host's event loop, not pkg/lumen.Vm.Run's.
func (s *server) handleRun(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("upgrade failed", "error", err)
		return
	}
	defer conn.Close()

	ctx := lumen.NewContext()
	rc := ctx.Build()
	vm, err := lumen.New(s.unit, rc)
	if err != nil {
		s.writeError(conn, err)
		return
	}
	if err := vm.SetEntrypoint(s.entry); err != nil {
		s.writeError(conn, err)
		return
	}

	result, err := vm.Run()
	if err != nil {
		s.writeError(conn, err)
		return
	}
	f, err := exec.FutureOf(result)
	if err != nil {
		s.writeError(conn, err)
		return
	}
	gen := suspend.AsGenerator(f)

	// Prime with the unit value per spec.md §4.5's generator-priming rule.
	state, err := gen.Resume(value.Unit)
	for {
		if err != nil {
			s.writeError(conn, err)
			return
		}
		if writeErr := conn.WriteJSON(stateMessage{Done: state.Done, Value: toJSONString(state.Value)}); writeErr != nil {
			s.logger.Warn("write failed", "error", writeErr)
			return
		}
		if state.Done {
			return
		}

		var in resumeMessage
		if readErr := conn.ReadJSON(&in); readErr != nil {
			s.logger.Debug("client disconnected", "error", readErr)
			return
		}
		sent, convErr := lumen.ToScript(vm.Heap(), in.Sent)
		if convErr != nil {
			s.writeError(conn, convErr)
			return
		}
		state, err = gen.Resume(sent)
	}
}

func (s *server) writeError(conn *websocket.Conn, err error) {
	msg := err.Error()
	if p, ok := err.(*diag.Panic); ok {
		msg = p.Error()
	}
	_ = conn.WriteJSON(stateMessage{Error: msg})
}

func loadUnit(path string) (*unit.Unit, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return unit.Decode(f)
}

// toJSONString converts a yielded script value into the wire string,
// falling back to the empty string for a value this host doesn't know
// how to convert rather than failing the whole frame over it.
func toJSONString(v value.Value) string {
	out, err := lumen.FromScript(v)
	if err != nil || out == nil {
		return ""
	}
	b, err := json.Marshal(out)
	if err != nil {
		return ""
	}
	return string(b)
}
