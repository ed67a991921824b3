package server

import (
	"context"
	"encoding/json"
	"time"

	"github.com/npezzotti/roamchat/internal/fanout"
	"github.com/npezzotti/roamchat/internal/stats"
	"github.com/rs/zerolog"
)

const (
	metricActiveClients       = "NumActiveClients"
	metricActiveSubscriptions = "NumActiveSubscriptions"
	metricDroppedEvents       = "NumDroppedEvents"

	eventBufferSize = 1024

	// revocationTTL bounds how long a membership removal is remembered. It
	// outlives the membership check that precedes any subscribe request.
	revocationTTL = 2 * membershipWait
)

// MembershipChecker reports whether a user may follow a room's events.
type MembershipChecker interface {
	IsMember(ctx context.Context, roomId, userId int) (bool, error)
}

type subReq struct {
	msg       *ClientMessage
	topic     string
	subscribe bool
	// checkedAt is when the membership check for a subscribe started.
	checkedAt time.Time
}

type revocation struct {
	topic  string
	userId int
}

type stopReq struct {
	done chan struct{}
}

// ChatServer is the websocket hub. A single goroutine (Run) owns the session
// and subscription tables; everything else talks to it over channels.
type ChatServer struct {
	log            zerolog.Logger
	members        MembershipChecker
	stats          stats.StatsProvider
	clients        map[*Client]struct{}
	subs           subscriptions
	revoked        map[revocation]time.Time
	registerChan   chan *Client
	deRegisterChan chan *Client
	subChan        chan subReq
	eventChan      chan fanout.Event
	stop           chan stopReq
	done           chan struct{}
}

func NewChatServer(logger zerolog.Logger, members MembershipChecker, su stats.StatsProvider) (*ChatServer, error) {
	for _, m := range []string{metricActiveClients, metricActiveSubscriptions, metricDroppedEvents} {
		su.RegisterMetric(m)
	}

	return &ChatServer{
		log:            logger.With().Str("component", "hub").Logger(),
		members:        members,
		stats:          su,
		clients:        make(map[*Client]struct{}),
		subs:           make(subscriptions),
		revoked:        make(map[revocation]time.Time),
		registerChan:   make(chan *Client),
		deRegisterChan: make(chan *Client),
		subChan:        make(chan subReq, 256),
		eventChan:      make(chan fanout.Event, eventBufferSize),
		stop:           make(chan stopReq),
		done:           make(chan struct{}),
	}, nil
}

// Deliver queues ev for the sessions subscribed to its topic. It never
// blocks; events are dropped when the hub falls behind.
func (cs *ChatServer) Deliver(ev fanout.Event) {
	select {
	case cs.eventChan <- ev:
	default:
		cs.stats.Incr(metricDroppedEvents)
		cs.log.Warn().Str("topic", ev.Topic).Str("event", ev.Type).Msg("event channel full, dropping event")
	}
}

func (cs *ChatServer) RegisterClient(c *Client) {
	select {
	case cs.registerChan <- c:
	case <-cs.done:
	}
}

func (cs *ChatServer) deRegisterClient(c *Client) {
	select {
	case cs.deRegisterChan <- c:
	case <-cs.done:
	}
}

func (cs *ChatServer) Run() {
	for {
		select {
		case c := <-cs.registerChan:
			cs.addClient(c)
		case c := <-cs.deRegisterChan:
			cs.removeClient(c)
		case req := <-cs.subChan:
			cs.handleSubscription(req)
		case ev := <-cs.eventChan:
			cs.dispatch(ev)
		case req := <-cs.stop:
			cs.log.Info().Int("clients", len(cs.clients)).Msg("stopping hub")
			for c := range cs.clients {
				c.stopClient()
			}

			close(cs.done)
			close(req.done)
			return
		}
	}
}

func (cs *ChatServer) addClient(c *Client) {
	if _, ok := cs.clients[c]; ok {
		return
	}

	cs.clients[c] = struct{}{}
	cs.stats.Incr(metricActiveClients)
	cs.log.Debug().Str("session_id", c.id).Int("user_id", c.user.Id).Msg("client connected")
}

func (cs *ChatServer) removeClient(c *Client) {
	if _, ok := cs.clients[c]; !ok {
		return
	}

	delete(cs.clients, c)
	cs.stats.Decr(metricActiveClients)
	for range cs.subs.removeClient(c) {
		cs.stats.Decr(metricActiveSubscriptions)
	}
	cs.log.Debug().Str("session_id", c.id).Int("user_id", c.user.Id).Msg("client disconnected")
}

func (cs *ChatServer) handleSubscription(req subReq) {
	c := req.msg.client
	if _, ok := cs.clients[c]; !ok {
		return
	}

	if req.subscribe && cs.revokedSince(req.topic, c.user.Id, req.checkedAt) {
		c.queueMessage(ErrForbidden(req.msg.Id))
		return
	}

	if req.subscribe {
		if cs.subs.add(req.topic, c) {
			cs.stats.Incr(metricActiveSubscriptions)
		}
	} else if cs.subs.remove(req.topic, c) {
		cs.stats.Decr(metricActiveSubscriptions)
	}

	c.queueMessage(NoErrOK(req.msg.Id, map[string]any{"topic": req.topic}))
}

// dispatch hands ev to every session subscribed to its topic. Membership
// removals also end the affected user's subscriptions to that room.
func (cs *ChatServer) dispatch(ev fanout.Event) {
	msg := EventMessage(ev)

	for _, c := range cs.subs.clients(ev.Topic) {
		c.queueMessage(msg)
	}

	if ev.Type == fanout.EventMemberLeft || ev.Type == fanout.EventMemberRemoved {
		var change struct {
			UserId int `json:"user_id"`
		}
		if err := json.Unmarshal(ev.Data, &change); err != nil {
			cs.log.Error().Err(err).Str("event", ev.Type).Msg("decode membership change")
			return
		}

		for range cs.subs.removeUser(ev.Topic, change.UserId) {
			cs.stats.Decr(metricActiveSubscriptions)
		}
		cs.revoke(ev.Topic, change.UserId, time.Now())
	}
}

// revoke records that userId lost access to topic at the given time, so a
// subscribe whose membership check ran earlier is refused.
func (cs *ChatServer) revoke(topic string, userId int, at time.Time) {
	for r, when := range cs.revoked {
		if at.Sub(when) > revocationTTL {
			delete(cs.revoked, r)
		}
	}
	cs.revoked[revocation{topic: topic, userId: userId}] = at
}

func (cs *ChatServer) revokedSince(topic string, userId int, checkedAt time.Time) bool {
	when, ok := cs.revoked[revocation{topic: topic, userId: userId}]
	return ok && !when.Before(checkedAt)
}

// Shutdown stops the hub and every connected session.
func (cs *ChatServer) Shutdown(ctx context.Context) error {
	req := stopReq{done: make(chan struct{})}

	select {
	case cs.stop <- req:
	case <-ctx.Done():
		return ctx.Err()
	}

	select {
	case <-req.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
