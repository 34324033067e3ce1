package ipc

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"runtime"

	"github.com/isi-macroscope/acquisition-core/internal/logging"
)

// Dispatcher reads Requests line-by-line from an io.Reader and writes
// Envelopes to a shared io.Writer, generalizing the teacher's
// WebSocketServer method-table dispatch to a single stdio transport with
// no per-client connection state.
type Dispatcher struct {
	reader   *bufio.Scanner
	writer   *lineWriter
	handlers map[string]Handler
	logger   *logging.Logger
}

// NewDispatcher creates a Dispatcher reading from r and writing to w. A
// single lineWriter wraps w so an EventBus sharing the same w interleaves
// safely with command responses.
func NewDispatcher(r io.Reader, w io.Writer, logger *logging.Logger) *Dispatcher {
	if logger == nil {
		logger = logging.NewLogger("ipc-dispatcher")
	}
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	return &Dispatcher{
		reader:   scanner,
		writer:   newLineWriter(w),
		handlers: make(map[string]Handler),
		logger:   logger,
	}
}

// sharedWriter exposes the lineWriter so an EventBus constructed against
// the same underlying stream can interleave broadcasts safely.
func (d *Dispatcher) sharedWriter() *lineWriter { return d.writer }

// Register adds a handler for command. Registering the same command twice
// is a startup error, matching the teacher's duplicate-registration rule.
func (d *Dispatcher) Register(command string, h Handler) error {
	if _, exists := d.handlers[command]; exists {
		return fmt.Errorf("ipc: command %q already registered", command)
	}
	d.handlers[command] = h
	return nil
}

// Run reads requests until ctx is cancelled or the reader reaches EOF,
// dispatching each to its registered handler and writing the response.
// Must not block on anything but reading the next line and writing the
// response it produces.
func (d *Dispatcher) Run(ctx context.Context) error {
	lines := make(chan string)
	scanErr := make(chan error, 1)
	go func() {
		defer close(lines)
		for d.reader.Scan() {
			select {
			case lines <- d.reader.Text():
			case <-ctx.Done():
				return
			}
		}
		scanErr <- d.reader.Err()
	}()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case line, ok := <-lines:
			if !ok {
				select {
				case err := <-scanErr:
					return err
				default:
					return nil
				}
			}
			d.handleLine(line)
		}
	}
}

func (d *Dispatcher) handleLine(line string) {
	var req Request
	if err := json.Unmarshal([]byte(line), &req); err != nil {
		d.writer.writeEnvelope(Envelope{Success: false, Type: "error", Error: fmt.Sprintf("invalid request: %v", err)})
		return
	}

	handler, ok := d.handlers[req.Command]
	if !ok {
		d.writer.writeEnvelope(Envelope{Success: false, Type: req.Command, ID: req.ID, Error: fmt.Sprintf("unknown command %q", req.Command)})
		return
	}

	result, err := d.invoke(handler, req)
	if err != nil {
		d.writer.writeEnvelope(Envelope{Success: false, Type: req.Command, ID: req.ID, Error: err.Error()})
		return
	}
	d.writer.writeEnvelope(Envelope{Success: true, Type: req.Command, ID: req.ID, Result: result})
}

// invoke calls handler, recovering a panic and turning it into an error so a
// single misbehaving handler cannot take down the dispatch loop and every
// other in-flight command with it.
func (d *Dispatcher) invoke(handler Handler, req Request) (result interface{}, err error) {
	defer func() {
		if r := recover(); r != nil {
			stack := make([]byte, 4096)
			length := runtime.Stack(stack, false)
			d.logger.WithFields(logging.Fields{
				"command":     req.Command,
				"panic":       r,
				"stack_trace": string(stack[:length]),
			}).Error("Recovered from panic in command handler")
			err = fmt.Errorf("internal error handling %q: %v", req.Command, r)
		}
	}()
	return handler(req.Params)
}
