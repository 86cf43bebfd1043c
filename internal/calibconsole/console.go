// Package calibconsole is the narrow boundary the core host talks to
// instead of a full calibration/terminal UI: a colourised status line the
// operator watches while tuning levels by hand. The interactive parts of
// that UI (menus, live level meters, key handling) live outside this
// module's scope; this package only owns the half of the boundary the
// host can call into directly.
package calibconsole

import (
	"io"
	"os"

	"github.com/charmbracelet/log"
)

// Console renders host status transitions and faults to an operator
// terminal. Safe for concurrent use by a single caller on the host's own
// goroutine; it holds no state beyond the underlying logger.
type Console struct {
	logger *log.Logger
}

// New builds a Console writing to w with a style meant to stay readable
// at a glance — timestamps on, caller reporting off. Pass os.Stderr for
// the usual interactive case.
func New(w io.Writer) *Console {
	logger := log.NewWithOptions(w, log.Options{
		ReportTimestamp: true,
		TimeFormat:      "15:04:05",
		Prefix:          "calib",
	})
	return &Console{logger: logger}
}

// NewStderr is a convenience constructor for the common case.
func NewStderr() *Console { return New(os.Stderr) }

// ReportMode logs a host arbitration mode transition.
func (c *Console) ReportMode(mode string) {
	c.logger.Info("mode", "state", mode)
}

// ReportFault logs a component fault (modem lockout/error, network
// failure) at warn level — these are operator-visible conditions, not
// necessarily process-fatal ones.
func (c *Console) ReportFault(component string, err error) {
	c.logger.Warn("fault", "component", component, "error", err)
}

// ReportCC logs a control-channel/beacon start or stop.
func (c *Console) ReportCC(protocol string, running bool) {
	c.logger.Info("control channel", "protocol", protocol, "running", running)
}

// SetLevel adjusts verbosity; calibration sessions typically want debug
// output that a production run would suppress.
func (c *Console) SetLevel(level log.Level) {
	c.logger.SetLevel(level)
}
