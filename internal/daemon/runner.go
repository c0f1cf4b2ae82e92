// Package daemon wires the peer node together: identity, transport,
// dispatcher, presence loops, and the periodic maintenance tickers.
package daemon

import (
	"context"
	"fmt"
	"time"

	"lsnpeer/internal/ack"
	"lsnpeer/internal/config"
	"lsnpeer/internal/directory"
	"lsnpeer/internal/dispatch"
	"lsnpeer/internal/file"
	"lsnpeer/internal/game"
	"lsnpeer/internal/identity"
	"lsnpeer/internal/logging"
	"lsnpeer/internal/metrics"
	"lsnpeer/internal/notify"
	"lsnpeer/internal/presence"
	"lsnpeer/internal/token"
	"lsnpeer/internal/transport"
)

type Runner struct {
	Cfg        config.Config
	Local      identity.Local
	Auth       *token.Authority
	Acks       *ack.Registry
	Metrics    *metrics.Metrics
	Dispatcher *dispatch.Dispatcher
	Outbox     *file.Outbox
	Presence   *presence.Broadcaster

	udp *transport.UDP
}

type Options struct {
	// Sink receives user-facing notifications; nil falls back to the log sink.
	Sink notify.Sink
	// Send overrides the outbound transport; nil binds the real UDP socket.
	Send transport.Sender
	// LocalIP overrides interface discovery.
	LocalIP string
}

func NewRunner(cfg config.Config, opts Options) (*Runner, error) {
	if cfg.UserName == "" {
		return nil, fmt.Errorf("missing user name")
	}
	ip := opts.LocalIP
	if ip == "" {
		ip = transport.LocalIP()
	}
	local := identity.New(cfg.UserName, ip, cfg.DisplayName, cfg.Status)

	sink := opts.Sink
	if sink == nil {
		sink = &notify.LogSink{AcceptFiles: cfg.AutoAcceptFiles}
	}

	send := opts.Send
	var udp *transport.UDP
	if send == nil {
		var err error
		udp, err = transport.NewUDP(cfg.Port)
		if err != nil {
			return nil, err
		}
		send = udp
	}

	auth := token.NewAuthority()
	acks := ack.NewRegistry(cfg.AckTTL)
	m := metrics.New()

	d := &dispatch.Dispatcher{
		Local:   local,
		Auth:    auth,
		Acks:    acks,
		Peers:   directory.NewPeerDirectory(),
		Posts:   directory.NewPostStore(),
		DMs:     directory.NewDMStore(),
		Likes:   directory.NewLikeStore(),
		Groups:  directory.NewGroupDirectory(),
		Follows: directory.NewFollowStore(),
		Games: &game.Engine{
			Local: local, Table: game.NewTable(), Auth: auth, Acks: acks,
			Send: send, Sink: sink, VerifySenderIP: cfg.VerifySenderIP,
		},
		Files:          file.NewInbox(local, auth, send, sink, cfg.DownloadsDir),
		Send:           send,
		Sink:           sink,
		Metrics:        m,
		VerifySenderIP: cfg.VerifySenderIP,
	}

	return &Runner{
		Cfg:     cfg,
		Local:   local,
		Auth:    auth,
		Acks:    acks,
		Metrics: m,
		Dispatcher: d,
		Outbox: &file.Outbox{
			Local: local, Auth: auth, Acks: acks, Send: send, Sink: sink,
			ChunkDelay: cfg.ChunkDelay,
		},
		Presence: &presence.Broadcaster{
			Local: local, Auth: auth, Send: send, Interval: cfg.BroadcastInterval,
		},
		udp: udp,
	}, nil
}

// HandleRaw feeds one datagram through the dispatcher, bypassing the socket.
func (r *Runner) HandleRaw(raw, srcIP string) {
	r.Dispatcher.Dispatch(raw, srcIP)
}

// Run starts the presence loop, the maintenance ticker, and the blocking
// receive loop. Returns once ctx is cancelled or the socket dies.
func (r *Runner) Run(ctx context.Context) error {
	if r.udp == nil {
		return fmt.Errorf("runner has no socket")
	}
	logging.Logf("lsnp peer %s listening on port %d", r.Local.UserID, r.Cfg.Port)

	go r.Presence.Run(ctx)
	go r.maintain(ctx)

	r.udp.Listen(ctx, r.HandleRaw)
	return ctx.Err()
}

// maintain sweeps expired state on a timer so quiet networks still get
// cleaned up, and writes metrics snapshots when a path is configured.
func (r *Runner) maintain(ctx context.Context) {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.Auth.Cleanup()
			if dropped := r.Acks.Sweep(); dropped > 0 {
				logging.Verbosef("SWEEP", "evicted %d stale continuations", dropped)
			}
			if err := r.Metrics.WriteSnapshot(r.Cfg.MetricsPath); err != nil {
				logging.Logf("metrics snapshot failed: %v", err)
			}
		}
	}
}
