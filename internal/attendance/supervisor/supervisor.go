// Package supervisor runs one polling worker per terminal, feeding
// normalized punches into the reconciliation engine. Workers reconnect
// forever on transport failure; a dead terminal never stops the rest of
// the fleet.
package supervisor

import (
	"context"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/SanyakornPFP/pfp-timestamp-attendance/internal/attendance/clock"
	"github.com/SanyakornPFP/pfp-timestamp-attendance/internal/attendance/domain"
	"github.com/SanyakornPFP/pfp-timestamp-attendance/internal/attendance/engine"
	"github.com/SanyakornPFP/pfp-timestamp-attendance/internal/attendance/events"
	"github.com/SanyakornPFP/pfp-timestamp-attendance/internal/device"
	"github.com/SanyakornPFP/pfp-timestamp-attendance/internal/device/zkteco"
	apperrors "github.com/SanyakornPFP/pfp-timestamp-attendance/pkg/errors"
	"github.com/SanyakornPFP/pfp-timestamp-attendance/pkg/logger"
)

// reconnectDelay is the fixed pause between reconnect attempts. The
// terminals drop idle sessions routinely, so backoff growth buys nothing.
const reconnectDelay = 3 * time.Second

// Processor consumes normalized punches.
type Processor interface {
	Process(ctx context.Context, p domain.Punch) (engine.Result, error)
}

// Poller is the slice of the terminal client a worker drives.
type Poller interface {
	Connect(ctx context.Context) error
	Close() error
	PollNew(ctx context.Context) ([]zkteco.Record, error)
}

// ClientFactory builds a Poller for a terminal address. Tests swap in
// fakes here.
type ClientFactory func(addr string, timeout time.Duration) Poller

// DeviceStatus is a point-in-time snapshot of one worker, exposed on the
// ops surface.
type DeviceStatus struct {
	IP        string    `json:"ip"`
	Connected bool      `json:"connected"`
	LastPoll  time.Time `json:"last_poll,omitempty"`
	Punches   uint64    `json:"punches"`
	Errors    uint64    `json:"errors"`
}

// Supervisor owns the per-terminal workers.
type Supervisor struct {
	terminals      []device.Terminal
	processor      Processor
	clock          clock.Clock
	publisher      *events.PunchPublisher
	newClient      ClientFactory
	pollInterval   time.Duration
	connectTimeout time.Duration
	logger         *logger.Logger

	mu     sync.Mutex
	status map[string]*DeviceStatus
}

// Options configures a Supervisor.
type Options struct {
	Terminals      []device.Terminal
	Processor      Processor
	Clock          clock.Clock
	Publisher      *events.PunchPublisher
	PollInterval   time.Duration
	ConnectTimeout time.Duration
	// NewClient defaults to the real terminal client.
	NewClient ClientFactory
}

// New creates a supervisor for the terminal fleet.
func New(opts Options, log *logger.Logger) *Supervisor {
	factory := opts.NewClient
	if factory == nil {
		factory = func(addr string, timeout time.Duration) Poller {
			return zkteco.NewClient(addr, timeout)
		}
	}

	status := make(map[string]*DeviceStatus, len(opts.Terminals))
	for _, t := range opts.Terminals {
		status[t.IP] = &DeviceStatus{IP: t.IP}
	}

	return &Supervisor{
		terminals:      opts.Terminals,
		processor:      opts.Processor,
		clock:          opts.Clock,
		publisher:      opts.Publisher,
		newClient:      factory,
		pollInterval:   opts.PollInterval,
		connectTimeout: opts.ConnectTimeout,
		logger:         log.WithComponent("supervisor"),
		status:         status,
	}
}

// Run starts one worker per terminal and blocks until ctx is cancelled
// and every worker has stopped.
func (s *Supervisor) Run(ctx context.Context) {
	var wg sync.WaitGroup
	for _, t := range s.terminals {
		wg.Add(1)
		go func(t device.Terminal) {
			defer wg.Done()
			s.runDevice(ctx, t)
		}(t)
	}
	wg.Wait()
}

// Status returns a snapshot of every worker, ordered by inventory.
func (s *Supervisor) Status() []DeviceStatus {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]DeviceStatus, 0, len(s.terminals))
	for _, t := range s.terminals {
		out = append(out, *s.status[t.IP])
	}
	return out
}

func (s *Supervisor) runDevice(ctx context.Context, t device.Terminal) {
	log := s.logger.WithDevice(t.IP)

	for ctx.Err() == nil {
		client := s.newClient(t.Addr(), s.connectTimeout)

		connect := func() error {
			if err := client.Connect(ctx); err != nil {
				log.Warn().Err(err).Msg("terminal connect failed, retrying")
				return err
			}
			return nil
		}
		policy := backoff.WithContext(backoff.NewConstantBackOff(reconnectDelay), ctx)
		if err := backoff.Retry(connect, policy); err != nil {
			return
		}

		s.setConnected(t.IP, true)
		log.Info().Msg("terminal connected")

		s.pollLoop(ctx, t, client, log)

		s.setConnected(t.IP, false)
		_ = client.Close()
	}
}

// pollLoop polls until the context ends or the transport fails; transport
// failure returns so runDevice reconnects with a fresh session.
func (s *Supervisor) pollLoop(ctx context.Context, t device.Terminal, client Poller, log *logger.Logger) {
	ticker := time.NewTicker(s.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		pollCtx, cancel := context.WithTimeout(ctx, s.connectTimeout)
		records, err := client.PollNew(pollCtx)
		cancel()
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			s.countError(t.IP)
			log.Warn().Err(err).Msg("poll failed, reconnecting")
			return
		}
		s.markPolled(t.IP)

		for _, rec := range records {
			s.handleRecord(ctx, t, rec, log)
		}
	}
}

func (s *Supervisor) handleRecord(ctx context.Context, t device.Terminal, rec zkteco.Record, log *logger.Logger) {
	punch, ok := normalize(rec, t.IP, s.clock)
	if !ok {
		log.Warn().Str("raw_user_id", rec.UserID).Msg("dropping punch with blank user id")
		return
	}

	res, err := s.processor.Process(ctx, punch)
	if err != nil {
		s.countError(t.IP)
		// Transient store failures lose this punch; the terminal keeps it
		// in flash and a later full read can be replayed by hand.
		if apperrors.IsTransientStore(err) {
			log.Warn().Err(err).Str("employee_id", punch.EmployeeID).Msg("transient store failure, punch dropped")
		} else {
			log.Error().Err(err).Str("employee_id", punch.EmployeeID).Msg("failed to process punch")
		}
		return
	}

	s.countPunch(t.IP)
	log.Info().
		Str("employee_id", punch.EmployeeID).
		Time("instant", punch.Instant).
		Str("outcome", res.Outcome.String()).
		Bool("cleaned_up", res.CleanedUp).
		Msg("punch processed")

	if res.Outcome == engine.OutcomeDiscarded {
		s.publisher.PunchDiscarded(ctx, punch.EmployeeID, punch.DeviceIP, punch.Instant)
	} else {
		s.publisher.PunchRecorded(ctx, punch.EmployeeID, punch.DeviceIP, punch.Instant, res.Outcome.String())
	}
}

func (s *Supervisor) setConnected(ip string, connected bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.status[ip].Connected = connected
}

func (s *Supervisor) markPolled(ip string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.status[ip].LastPoll = s.clock.Now()
}

func (s *Supervisor) countPunch(ip string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.status[ip].Punches++
}

func (s *Supervisor) countError(ip string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.status[ip].Errors++
}
