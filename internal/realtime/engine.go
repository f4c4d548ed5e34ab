package realtime

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"muhabet/internal/models"
	"muhabet/internal/presence"
	"muhabet/internal/worker"
)

// ErrEngineStopped is returned by Connect once Run has returned.
var ErrEngineStopped = errors.New("realtime engine stopped")

// ErrClientUnavailable is returned by Connect when the client cannot take its hello.
var ErrClientUnavailable = errors.New("realtime client cannot receive")

// Client is one live connection as seen by the hub.
type Client interface {
	ID() string
	// Send enqueues a frame without blocking and reports false when the client cannot take it.
	Send(frame []byte) bool
	Close()
}

type NameAllocator interface {
	Allocate() string
}

type MessageStore interface {
	UpsertUser(ctx context.Context, id, username string) error
	CreateMessage(ctx context.Context, body, senderID, channelID string) (*models.Message, error)
}

type ChannelResolver interface {
	Resolve(ctx context.Context) (string, error)
}

type Options struct {
	Workers          worker.Options
	SubmitTimeout    time.Duration
	SendBuffer       int
	NotifyRejections bool
	// OnMessageCreated runs on the persisting worker after the message is stored and
	// before it is broadcast. It never runs on the hub.
	OnMessageCreated func(*models.Message)
}

type registration struct {
	client Client
	result chan joinResult
}

type joinResult struct {
	identity models.Identity
	err      error
}

type unregistration struct {
	client Client
	done   chan struct{}
}

type privateEvent struct {
	connectionID string
	event        Event
}

// Engine is the connection hub. Run owns the client set; every broadcast happens
// on that goroutine so all clients observe events in the same order.
type Engine struct {
	names    NameAllocator
	presence *presence.Registry
	store    MessageStore
	channels ChannelResolver
	opts     Options
	jobs     *worker.Dispatcher
	handlers map[string]inboundHandler

	clients    map[string]Client
	register   chan registration
	unregister chan unregistration
	created    chan *models.Message
	private    chan privateEvent
	stopped    chan struct{}
}

const defaultSubmitTimeout = 10 * time.Second

func NewEngine(names NameAllocator, registry *presence.Registry, store MessageStore, channels ChannelResolver, opts Options) *Engine {
	if opts.SubmitTimeout <= 0 {
		opts.SubmitTimeout = defaultSubmitTimeout
	}
	if opts.SendBuffer <= 0 {
		opts.SendBuffer = 64
	}
	e := &Engine{
		names:      names,
		presence:   registry,
		store:      store,
		channels:   channels,
		opts:       opts,
		clients:    make(map[string]Client),
		register:   make(chan registration),
		unregister: make(chan unregistration),
		created:    make(chan *models.Message),
		private:    make(chan privateEvent),
		stopped:    make(chan struct{}),
	}
	e.registerHandlers()
	e.jobs = worker.NewDispatcher(opts.Workers, worker.HandlerFunc(e.persist))
	return e
}

// Run drives the hub until ctx is cancelled, then closes every client.
func (e *Engine) Run(ctx context.Context) {
	defer func() {
		for id, c := range e.clients {
			c.Close()
			delete(e.clients, id)
		}
		e.presence.Reset()
		e.jobs.Stop()
		close(e.stopped)
	}()
	for {
		select {
		case req := <-e.register:
			me, err := e.join(req.client)
			req.result <- joinResult{identity: me, err: err}
		case req := <-e.unregister:
			e.leave(req.client)
			close(req.done)
		case msg := <-e.created:
			e.broadcast(MessageCreated{Message: *msg})
		case p := <-e.private:
			if c, ok := e.clients[p.connectionID]; ok {
				e.deliver(c, p.event)
			}
		case <-ctx.Done():
			return
		}
	}
}

// Connect makes the client ACTIVE: it returns once hello and user_joined are queued.
func (e *Engine) Connect(ctx context.Context, client Client) (models.Identity, error) {
	req := registration{client: client, result: make(chan joinResult, 1)}
	select {
	case e.register <- req:
	case <-ctx.Done():
		return models.Identity{}, ctx.Err()
	case <-e.stopped:
		return models.Identity{}, ErrEngineStopped
	}
	res := <-req.result
	return res.identity, res.err
}

// Disconnect moves the client to CLOSED. Repeated calls are no-ops.
func (e *Engine) Disconnect(client Client) {
	req := unregistration{client: client, done: make(chan struct{})}
	select {
	case e.unregister <- req:
		<-req.done
	case <-e.stopped:
	}
}

// ActiveUsers is the current presence snapshot.
func (e *Engine) ActiveUsers() []models.Identity {
	return e.presence.List()
}

// Submit validates a message:send body and queues it for persistence.
func (e *Engine) Submit(connectionID string, raw []byte) {
	body, reason := validateBody(coerceBody(raw))
	if reason != "" {
		debugLog("[realtime] reject message from %s: %s", connectionID, reason)
		e.reject(connectionID, reason)
		return
	}
	err := e.jobs.Submit(worker.Submission{
		ConnectionID: connectionID,
		Body:         body,
		ReceivedAt:   time.Now(),
	})
	if err != nil {
		log.Printf("realtime queue message from %s failed: %v", connectionID, err)
		e.reject(connectionID, ReasonBusy)
	}
}

// persist runs on a worker goroutine.
func (e *Engine) persist(sub worker.Submission) {
	ctx, cancel := context.WithTimeout(context.Background(), e.opts.SubmitTimeout)
	defer cancel()

	sender, ok := e.presence.Get(sub.ConnectionID)
	if !ok {
		sender = models.UnregisteredSender(sub.ConnectionID)
	}
	msg, err := e.save(ctx, sender, sub.Body)
	if err != nil {
		log.Printf("realtime persist message from %s failed: %v", sub.ConnectionID, err)
		e.reject(sub.ConnectionID, ReasonStoreFailure)
		return
	}
	debugLog("[realtime] persisted message %s from %s in %s", msg.ID, sub.ConnectionID, time.Since(sub.ReceivedAt))
	if e.opts.OnMessageCreated != nil {
		e.opts.OnMessageCreated(msg)
	}
	select {
	case e.created <- msg:
	case <-e.stopped:
	}
}

func (e *Engine) save(ctx context.Context, sender models.Identity, body string) (*models.Message, error) {
	if err := e.store.UpsertUser(ctx, sender.ID, sender.Username); err != nil {
		return nil, fmt.Errorf("upsert user: %w", err)
	}
	channelID, err := e.channels.Resolve(ctx)
	if err != nil {
		return nil, fmt.Errorf("resolve global channel: %w", err)
	}
	msg, err := e.store.CreateMessage(ctx, body, sender.ID, channelID)
	if err != nil {
		return nil, fmt.Errorf("create message: %w", err)
	}
	return msg, nil
}

func (e *Engine) reject(connectionID, reason string) {
	if !e.opts.NotifyRejections {
		return
	}
	select {
	case e.private <- privateEvent{connectionID: connectionID, event: MessageRejected{Reason: reason}}:
	case <-e.stopped:
	}
}

// join runs on the hub. A client that cannot take its hello never becomes ACTIVE:
// it is closed and nobody hears about it.
func (e *Engine) join(client Client) (models.Identity, error) {
	me := models.Identity{ID: client.ID(), Username: e.names.Allocate()}
	frame, err := Encode(newHello(me))
	if err != nil {
		client.Close()
		return models.Identity{}, err
	}
	if !client.Send(frame) {
		client.Close()
		return models.Identity{}, ErrClientUnavailable
	}
	e.presence.Register(me.ID, me)
	e.clients[me.ID] = client
	e.broadcast(UserJoined(me))
	return me, nil
}

// leave runs on the hub.
func (e *Engine) leave(client Client) {
	current, ok := e.clients[client.ID()]
	if !ok || current != client {
		return
	}
	e.drop(client)
}

// drop removes a registered client and announces its departure.
func (e *Engine) drop(client Client) {
	delete(e.clients, client.ID())
	client.Close()
	if me, ok := e.presence.Remove(client.ID()); ok {
		e.broadcast(UserLeft(me))
	}
}

func (e *Engine) deliver(client Client, ev Event) {
	frame, err := Encode(ev)
	if err != nil {
		log.Printf("realtime encode event failed: %v", err)
		return
	}
	if !client.Send(frame) {
		debugLog("[realtime] client %s cannot take %s, dropping it", client.ID(), ev.eventType())
		if _, ok := e.clients[client.ID()]; ok {
			e.drop(client)
		}
	}
}

func (e *Engine) broadcast(ev Event) {
	frame, err := Encode(ev)
	if err != nil {
		log.Printf("realtime encode event failed: %v", err)
		return
	}
	var slow []Client
	for _, c := range e.clients {
		if !c.Send(frame) {
			slow = append(slow, c)
		}
	}
	for _, c := range slow {
		if current, ok := e.clients[c.ID()]; ok && current == c {
			debugLog("[realtime] client %s is too slow for %s, dropping it", c.ID(), ev.eventType())
			e.drop(c)
		}
	}
}
