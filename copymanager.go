package wire

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
)

// CopySource is the single producer side of a CopyManager pump: each call to
// Next returns the next chunk of COPY-out data, or io.EOF once the source is
// exhausted. Abort is called if the manager unwinds the pump abnormally,
// giving the source a chance to stop its underlying transfer.
type CopySource struct {
	Name  string
	Next  func() ([]byte, error)
	Abort func(reason error) error
}

// CopyReceiver is one destination a CopyManager fans COPY-in data out to.
// Push delivers a single chunk. Finish is called exactly once, after the
// source is exhausted, to close the receiver's COPY-in and report the final
// row count. Abort is called instead of Finish when the manager unwinds
// abnormally; it should send CopyFail upstream and return whatever error the
// underlying transfer surfaces.
type CopyReceiver struct {
	Name   string
	Push   func(chunk []byte) error
	Finish func() (int64, error)
	Abort  func(reason error) error
}

// ReceiverFault reports that one receiver failed mid-pump. The receiver is
// dropped from the active set and no further chunks reach it until the
// caller repairs whatever failed and calls CopyManager.Reconcile.
type ReceiverFault struct {
	Receiver string
	Err      error
}

func (f *ReceiverFault) Error() string {
	return fmt.Sprintf("copy: receiver %q faulted: %v", f.Receiver, f.Err)
}

func (f *ReceiverFault) Unwrap() error { return f.Err }

// ProducerFault reports that the single producer failed or the pump's
// context was cancelled. Unlike a receiver fault, there is no degraded mode
// to continue in: the pump unwinds every receiver and returns a CopyFailure.
type ProducerFault struct {
	Err error
}

func (f *ProducerFault) Error() string {
	return fmt.Sprintf("copy: producer faulted: %v", f.Err)
}

func (f *ProducerFault) Unwrap() error { return f.Err }

// CopyFailure aggregates every error observed while unwinding an aborted
// pump: Cause is the producer fault (or the reason Run was asked to abort),
// Receivers holds the abort or finish error each named receiver reported.
type CopyFailure struct {
	Cause     error
	Receivers map[string]error
}

func (f *CopyFailure) Error() string {
	if len(f.Receivers) == 0 {
		return fmt.Sprintf("copy: aborted: %v", f.Cause)
	}
	return fmt.Sprintf("copy: aborted: %v (%d receiver error(s))", f.Cause, len(f.Receivers))
}

func (f *CopyFailure) Unwrap() error { return f.Cause }

var errNoActiveReceivers = errors.New("copy: no active receivers remain")

type copyManagerReceiver struct {
	receiver CopyReceiver
	active   bool
}

// CopyManager is a pump coordinating one CopySource and one or more
// CopyReceivers, fanning every chunk the source produces out to every
// currently-active receiver. It isolates receiver faults from the rest of
// the pump: a failing receiver is dropped rather than aborting the whole
// transfer, and can be readmitted with Reconcile once repaired.
type CopyManager struct {
	mu        sync.Mutex
	source    CopySource
	receivers map[string]*copyManagerReceiver

	// OnReceiverFault, if set, is invoked synchronously from Run each time a
	// receiver faults and is dropped from the active set, before the next
	// chunk is pumped. The caller may use it to repair the receiver and call
	// Reconcile before the pump continues.
	OnReceiverFault func(*ReceiverFault)
}

// NewCopyManager builds a manager pumping source to every given receiver.
// Receiver names must be unique; duplicates overwrite earlier entries.
func NewCopyManager(source CopySource, receivers ...CopyReceiver) *CopyManager {
	m := &CopyManager{
		source:    source,
		receivers: make(map[string]*copyManagerReceiver, len(receivers)),
	}
	for _, r := range receivers {
		m.receivers[r.Name] = &copyManagerReceiver{receiver: r, active: true}
	}
	return m
}

// Reconcile readmits a previously faulted receiver to the active set so it
// resumes receiving chunks starting with the next one Run pumps.
func (m *CopyManager) Reconcile(name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	r, ok := m.receivers[name]
	if !ok {
		return fmt.Errorf("copy: unknown receiver %q", name)
	}
	r.active = true
	return nil
}

// Run drives the pump to completion, returning the final row count per
// receiver name that finished cleanly. A producer fault, a cancelled
// context, or every receiver faulting out unwinds the whole pump and
// returns a *CopyFailure.
func (m *CopyManager) Run(ctx context.Context) (map[string]int64, error) {
	for {
		select {
		case <-ctx.Done():
			return nil, m.abort(&ProducerFault{Err: ctx.Err()})
		default:
		}

		chunk, err := m.source.Next()
		if err != nil {
			if err == io.EOF {
				break
			}
			return nil, m.abort(&ProducerFault{Err: err})
		}

		active := m.activeReceivers()
		if len(active) == 0 {
			return nil, m.abort(&ProducerFault{Err: errNoActiveReceivers})
		}

		for _, r := range active {
			if perr := r.receiver.Push(chunk); perr != nil {
				m.mu.Lock()
				r.active = false
				m.mu.Unlock()

				fault := &ReceiverFault{Receiver: r.receiver.Name, Err: perr}
				if m.OnReceiverFault != nil {
					m.OnReceiverFault(fault)
				}
			}
		}
	}

	return m.finish()
}

func (m *CopyManager) activeReceivers() []*copyManagerReceiver {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]*copyManagerReceiver, 0, len(m.receivers))
	for _, r := range m.receivers {
		if r.active {
			out = append(out, r)
		}
	}
	return out
}

func (m *CopyManager) finish() (map[string]int64, error) {
	rows := make(map[string]int64)
	failures := make(map[string]error)

	for _, r := range m.activeReceivers() {
		n, err := r.receiver.Finish()
		if err != nil {
			failures[r.receiver.Name] = err
			continue
		}
		rows[r.receiver.Name] = n
	}

	if len(failures) > 0 {
		return rows, &CopyFailure{Receivers: failures}
	}
	return rows, nil
}

// abort unwinds an aborted pump: every still-active receiver is sent cause
// via Abort (which is responsible for putting a CopyFail on the wire), and
// every error observed is aggregated into the returned CopyFailure.
func (m *CopyManager) abort(cause error) error {
	failures := make(map[string]error)

	for _, r := range m.activeReceivers() {
		if err := r.receiver.Abort(cause); err != nil {
			failures[r.receiver.Name] = err
		}
		m.mu.Lock()
		r.active = false
		m.mu.Unlock()
	}

	return &CopyFailure{Cause: cause, Receivers: failures}
}

type copyResult struct {
	rows int64
	err  error
}

// NewCopyOutSource wraps a COPY TO STDOUT run on conn as a CopySource,
// letting a CopyManager pump rows this connection unloads into receivers
// that may live on entirely different connections (the connection-to-
// connection transfer this package's copy manager exists to support).
func (c *Conn) NewCopyOutSource(ctx context.Context, name, sql string) CopySource {
	chunks := make(chan []byte)
	result := make(chan copyResult, 1)
	stop := make(chan struct{})
	var stopOnce sync.Once

	go func() {
		rows, err := c.CopyTo(ctx, sql, func(chunk []byte) error {
			select {
			case chunks <- chunk:
				return nil
			case <-stop:
				return errors.New("copy: source aborted")
			case <-ctx.Done():
				return ctx.Err()
			}
		})
		result <- copyResult{rows: rows, err: err}
		close(chunks)
	}()

	var final copyResult
	var resolved bool

	return CopySource{
		Name: name,
		Next: func() ([]byte, error) {
			chunk, ok := <-chunks
			if ok {
				return chunk, nil
			}
			if !resolved {
				final = <-result
				resolved = true
			}
			if final.err != nil {
				return nil, final.err
			}
			return nil, io.EOF
		},
		Abort: func(reason error) error {
			stopOnce.Do(func() { close(stop) })
			if !resolved {
				final = <-result
				resolved = true
			}
			return final.err
		},
	}
}

// NewCopyInReceiver wraps a COPY FROM STDIN run on conn as a CopyReceiver,
// letting a CopyManager feed it chunks pulled from a source on a different
// connection. Push blocks until conn's copy-in loop asks for the next
// chunk; Finish closes the producer side cleanly (io.EOF) and waits for the
// server's final row count; Abort sends reason upstream as the COPY's
// CopyFail message.
func (c *Conn) NewCopyInReceiver(ctx context.Context, name, sql string) CopyReceiver {
	chunks := make(chan []byte)
	abortReason := make(chan error, 1)
	result := make(chan copyResult, 1)

	go func() {
		rows, err := c.CopyFrom(ctx, sql, func() ([]byte, error) {
			select {
			case chunk, ok := <-chunks:
				if !ok {
					return nil, io.EOF
				}
				return chunk, nil
			case reason := <-abortReason:
				return nil, reason
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		})
		result <- copyResult{rows: rows, err: err}
	}()

	var final copyResult
	var resolved bool
	await := func() copyResult {
		if !resolved {
			final = <-result
			resolved = true
		}
		return final
	}

	return CopyReceiver{
		Name: name,
		Push: func(chunk []byte) error {
			select {
			case chunks <- chunk:
				return nil
			case <-ctx.Done():
				return ctx.Err()
			}
		},
		Finish: func() (int64, error) {
			close(chunks)
			res := await()
			return res.rows, res.err
		},
		Abort: func(reason error) error {
			select {
			case abortReason <- reason:
			default:
			}
			res := await()
			return res.err
		},
	}
}
