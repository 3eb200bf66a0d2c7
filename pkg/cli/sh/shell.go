// Package sh provides the interactive host shell for devices.
package sh

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/abiosoft/ishell"

	"github.com/robotalks/npg.go/pkg/command"
	env "github.com/robotalks/npg.go/pkg/env/connector"
	"github.com/robotalks/npg.go/pkg/transport/mqtt"
)

// Session is a connection to a device.
type Session interface {
	Command(ctx context.Context, cmd string) (string, error)
	Read(ctx context.Context) (string, error)
	Close() error
}

// Shell provides ishell backed interactive shell.
type Shell struct {
	Interactive bool
	OutputJSON  bool
	AutoConnect bool
	Timeout     time.Duration

	Shell   *ishell.Shell
	Config  *env.Config
	Device  string
	Session Session

	// Dial opens a Session, defaults to Config.ConnectTo.
	Dial func(id string) (Session, error)
}

// Result is the output of a device command.
type Result struct {
	Command string `json:"command"`
	Reply   string `json:"reply"`
}

const (
	shellKey          = "$shell"
	unconnectedPrompt = "[none] > "
)

// DefaultTimeout is the command timeout.
const DefaultTimeout = 2 * time.Second

// ErrNotConnected is returned by commands requiring a session.
var ErrNotConnected = errors.New("not connected")

var (
	// flags

	evalOnly   bool
	outputJSON bool

	// commands
	commands = []*ishell.Cmd{
		&DiscoverCmd,
		&ConnectCmd,
		&DisconnectCmd,
		&StartCmd,
		&StopCmd,
		&StatusCmd,
		&WhoRUCmd,
		&ReadCmd,
		&SendCmd,
	}
)

func init() {
	flag.BoolVar(&evalOnly, "e", evalOnly, "Evaluation only, no interactive shell.")
	flag.BoolVar(&outputJSON, "json", outputJSON, "Print output in JSON.")
}

// AddCmds is used by other commands providers during init func.
func AddCmds(cmds ...*ishell.Cmd) {
	commands = append(commands, cmds...)
}

// New creates a new shell.
func New(conf *env.Config) *Shell {
	s := &Shell{
		Interactive: !evalOnly,
		OutputJSON:  outputJSON,
		Timeout:     DefaultTimeout,

		Shell:  ishell.New(),
		Config: conf,
	}
	s.Shell.Set(shellKey, s)
	s.Shell.SetPrompt(unconnectedPrompt)
	for _, cmd := range commands {
		s.Shell.AddCmd(cmd)
	}
	return s
}

// ShellFrom gets Shell from ishell context.
func ShellFrom(c *ishell.Context) *Shell {
	return c.Get(shellKey).(*Shell)
}

// MustBeConnected wraps command func requires a connection.
func MustBeConnected(fn func(c *ishell.Context)) func(c *ishell.Context) {
	return func(c *ishell.Context) {
		if ShellFrom(c).Session == nil {
			c.Err(ErrNotConnected)
			return
		}
		fn(c)
	}
}

// FormatMeta prints device meta into friendly string for display.
func FormatMeta(meta mqtt.Meta) string {
	var w bytes.Buffer
	fmt.Fprintf(&w, "%s", meta.ID)
	if meta.Identity != "" {
		fmt.Fprintf(&w, ": %s", meta.Identity)
	}
	if meta.DataChannels > 0 {
		fmt.Fprintf(&w, " (%d channels, %d samples/packet @%gHz, %s sequence)",
			meta.DataChannels, meta.SamplesPerPacket, meta.SampleRate, meta.Sequence)
	}
	return w.String()
}

// WithAutoConnect sets AutoConnect.
func (s *Shell) WithAutoConnect(en bool) *Shell {
	s.AutoConnect = en
	return s
}

func (s *Shell) timeoutContext() (context.Context, context.CancelFunc) {
	timeout := s.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return context.WithTimeout(context.Background(), timeout)
}

// Exec sends a control command and waits for the reply.
func (s *Shell) Exec(cmd string) (*Result, error) {
	if s.Session == nil {
		return nil, ErrNotConnected
	}
	ctx, cancel := s.timeoutContext()
	defer cancel()
	reply, err := s.Session.Command(ctx, cmd)
	if err != nil {
		return nil, err
	}
	return &Result{Command: cmd, Reply: reply}, nil
}

// ReadValue reads the control value.
func (s *Shell) ReadValue() (*Result, error) {
	if s.Session == nil {
		return nil, ErrNotConnected
	}
	ctx, cancel := s.timeoutContext()
	defer cancel()
	reply, err := s.Session.Read(ctx)
	if err != nil {
		return nil, err
	}
	return &Result{Reply: reply}, nil
}

// Format renders a Result per output mode.
func (s *Shell) Format(r *Result) (string, error) {
	if s.OutputJSON {
		out, err := json.Marshal(r)
		return string(out), err
	}
	return r.Reply, nil
}

// DiscoverDevices discovers devices.
func (s *Shell) DiscoverDevices() ([]mqtt.Meta, error) {
	return s.Config.Discover(context.TODO())
}

// SelectDevice discovers devices and asks for a choice.
func (s *Shell) SelectDevice() (*mqtt.Meta, error) {
	metas, err := s.DiscoverDevices()
	if err != nil {
		return nil, err
	}
	if len(metas) == 0 {
		return nil, nil
	}
	var index int
	if len(metas) > 1 {
		if !s.Interactive {
			return nil, fmt.Errorf("more than 1 devices discovered in non-interactive mode")
		}
		items := make([]string, len(metas))
		for n, meta := range metas {
			items[n] = FormatMeta(meta)
		}
		index = s.Shell.MultiChoice(items, "Which one to connect?")
	}
	return &metas[index], nil
}

// Connect connects device id.
func (s *Shell) Connect(id string) error {
	dial := s.Dial
	if dial == nil {
		dial = func(id string) (Session, error) { return s.Config.ConnectTo(id) }
	}
	session, err := dial(id)
	if err != nil {
		return err
	}
	s.Disconnect()
	s.Session, s.Device = session, id
	if s.Shell != nil {
		s.Shell.SetPrompt(fmt.Sprintf("%s > ", id))
	}
	return nil
}

// Disconnect disconnects current device.
func (s *Shell) Disconnect() {
	if s.Session == nil {
		return
	}
	if err := s.Session.Close(); err != nil {
		log.Printf("disconnect %s: %v", s.Device, err)
	}
	s.Session, s.Device = nil, ""
	if s.Shell != nil {
		s.Shell.SetPrompt(unconnectedPrompt)
	}
}

// Run runs the shell.
func (s *Shell) Run(args ...string) {
	if s.AutoConnect && s.Config.DeviceID != "" {
		if s.Interactive {
			s.Shell.Printf("Connecting %s ...\n", s.Config.DeviceID)
		}
		if err := s.Connect(s.Config.DeviceID); err != nil {
			log.Fatalf("connect %q failed: %v", s.Config.DeviceID, err)
		}
	}
	defer s.Disconnect()

	if len(args) > 0 {
		if err := s.Shell.Process(args...); err != nil {
			log.Fatalln(err)
		}
		return
	}
	if s.Interactive {
		s.Shell.Run()
		return
	}
	log.Fatalln("command expected")
}

func exec(c *ishell.Context, cmd string) {
	s := ShellFrom(c)
	res, err := s.Exec(cmd)
	if err != nil {
		c.Err(err)
		return
	}
	out, err := s.Format(res)
	if err != nil {
		c.Err(err)
		return
	}
	c.Println(out)
}

func commandCmd(cmd command.Command, aliases ...string) ishell.Cmd {
	return ishell.Cmd{
		Name:    strings.ToLower(cmd.String()),
		Aliases: aliases,
		Help:    "send " + cmd.String(),
		Func: MustBeConnected(func(c *ishell.Context) {
			exec(c, cmd.String())
		}),
	}
}

var (
	// DiscoverCmd discovers devices.
	DiscoverCmd = ishell.Cmd{
		Name:    "discover",
		Aliases: []string{"list", "l"},
		Help:    "",
		Func: func(c *ishell.Context) {
			s := ShellFrom(c)
			metas, err := s.DiscoverDevices()
			if err != nil {
				c.Err(err)
				return
			}
			if s.OutputJSON {
				if len(metas) == 0 {
					metas = []mqtt.Meta{}
				}
				out, err := json.Marshal(metas)
				if err != nil {
					c.Err(err)
					return
				}
				c.Println(string(out))
				return
			}
			if len(metas) == 0 {
				c.Println("No devices found")
				return
			}
			for _, meta := range metas {
				c.Println(FormatMeta(meta))
			}
		},
	}

	// ConnectCmd connects a device.
	ConnectCmd = ishell.Cmd{
		Name:    "connect",
		Aliases: []string{"c"},
		Help:    "[ID]",
		Func: func(c *ishell.Context) {
			s := ShellFrom(c)
			var id string
			if len(c.Args) > 0 {
				id = c.Args[0]
			} else {
				meta, err := s.SelectDevice()
				if err != nil {
					c.Err(err)
					return
				}
				if meta == nil {
					c.Err(fmt.Errorf("no device discovered"))
					return
				}
				id = meta.ID
			}
			if err := s.Connect(id); err != nil {
				c.Err(err)
			}
		},
	}

	// DisconnectCmd disconnects current device.
	DisconnectCmd = ishell.Cmd{
		Name:    "disconnect",
		Aliases: []string{"d"},
		Help:    "",
		Func: func(c *ishell.Context) {
			ShellFrom(c).Disconnect()
		},
	}

	// StartCmd starts streaming.
	StartCmd = commandCmd(command.Start)
	// StopCmd stops streaming.
	StopCmd = commandCmd(command.Stop)
	// StatusCmd queries streaming status.
	StatusCmd = commandCmd(command.Status, "st")
	// WhoRUCmd queries device identity.
	WhoRUCmd = commandCmd(command.WhoRU, "who")

	// ReadCmd reads the control value.
	ReadCmd = ishell.Cmd{
		Name:    "read",
		Aliases: []string{"r"},
		Help:    "",
		Func: MustBeConnected(func(c *ishell.Context) {
			s := ShellFrom(c)
			res, err := s.ReadValue()
			if err != nil {
				c.Err(err)
				return
			}
			out, err := s.Format(res)
			if err != nil {
				c.Err(err)
				return
			}
			c.Println(out)
		}),
	}

	// SendCmd sends raw text.
	SendCmd = ishell.Cmd{
		Name:    "send",
		Aliases: []string{"s"},
		Help:    "TEXT...",
		Func: MustBeConnected(func(c *ishell.Context) {
			if len(c.Args) == 0 {
				c.Err(fmt.Errorf("TEXT required"))
				return
			}
			exec(c, strings.Join(c.Args, " "))
		}),
	}
)

// Main is a helper to provide a single call in main.
func Main() {
	flag.Parse()
	New(env.NewConfig()).WithAutoConnect(true).Run(flag.Args()...)
}
