// Copyright (c) Microsoft. All rights reserved.

// Package runner keeps the chats of the sample front ends: one session per
// chat, driven by a dispatcher built for the chat's agent profile.
package runner

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	ak "github.com/agentplayground/agentkit/agentkit"
	"github.com/agentplayground/agentkit/catalog"
	"github.com/agentplayground/agentkit/config"
	"github.com/agentplayground/agentkit/mcptools"
	"github.com/agentplayground/agentkit/providers"
	"github.com/agentplayground/agentkit/tools"
)

// ErrChatNotFound is returned for chat IDs the runner does not know.
var ErrChatNotFound = errors.New("chat not found")

// Reply is the outcome of one [Runner.Chat] call.
type Reply struct {
	ChatID  string
	Profile string
	*ak.RoundResult
}

// ChatInfo summarizes a chat for listings.
type ChatInfo struct {
	ID      string    `json:"id"`
	Profile string    `json:"profile"`
	Turns   int       `json:"turns"`
	Updated time.Time `json:"updated"`
}

type chat struct {
	session *ak.Session
	profile string
	updated time.Time
}

// Runner routes user input to per-chat sessions.
type Runner struct {
	backend  ak.Backend
	lib      *tools.Library
	window   int
	exportTo string
	extra    []*ak.Tool
	dopts    []ak.DispatcherOption
	logger   *slog.Logger

	counter atomic.Uint64

	mu          sync.RWMutex
	chats       map[string]*chat
	dispatchers map[string]*ak.Dispatcher
}

// Option configures a [Runner].
type Option func(*Runner)

// WithWindow sets the active context window of new sessions.
func WithWindow(n int) Option {
	return func(r *Runner) { r.window = n }
}

// WithExportDir sets where [Runner.ExportFile] writes transcripts.
func WithExportDir(dir string) Option {
	return func(r *Runner) { r.exportTo = dir }
}

// WithExtraTools adds tools to every profile, such as MCP bridged ones.
func WithExtraTools(tools ...*ak.Tool) Option {
	return func(r *Runner) { r.extra = append(r.extra, tools...) }
}

// WithDispatcherOptions is applied to every dispatcher the runner builds,
// specialists included.
func WithDispatcherOptions(opts ...ak.DispatcherOption) Option {
	return func(r *Runner) { r.dopts = append(r.dopts, opts...) }
}

// WithLogger sets the logger for rounds and tool calls.
func WithLogger(l *slog.Logger) Option {
	return func(r *Runner) { r.logger = l }
}

// New creates a runner over backend with tools from lib.
func New(backend ak.Backend, lib *tools.Library, opts ...Option) *Runner {
	r := &Runner{
		backend:     backend,
		lib:         lib,
		exportTo:    ".",
		chats:       make(map[string]*chat),
		dispatchers: make(map[string]*ak.Dispatcher),
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.logger == nil {
		r.logger = slog.Default()
	}
	return r
}

// FromConfig wires a runner from cfg: the provider, the tool library and
// any MCP servers. The returned close function releases all of them.
func FromConfig(ctx context.Context, cfg *config.Config) (*Runner, *providers.Provider, func() error, error) {
	p, err := providers.New(ctx, cfg)
	if err != nil {
		return nil, nil, nil, err
	}
	lib, err := tools.New(tools.WithFileRoot(cfg.Tools.FileRoot))
	if err != nil {
		_ = p.Close()
		return nil, nil, nil, err
	}
	servers, err := mcptools.StartAll(ctx, cfg.MCP)
	if err != nil {
		_ = p.Close()
		return nil, nil, nil, err
	}

	r := New(p.Backend, lib,
		WithWindow(cfg.Session.Window),
		WithExportDir(cfg.Export.Dir),
		WithExtraTools(servers.Tools()...),
		WithDispatcherOptions(p.DispatcherOptions(cfg.Session)...),
	)
	closeAll := func() error {
		return errors.Join(servers.Close(), p.Close())
	}
	return r, p, closeAll, nil
}

// Chat sends input to the chat. An empty chatID starts a new chat. Moving
// an existing chat to another profile starts its transcript over.
//
// The reply is returned alongside any error so that callers can show the
// turns a failed round still recorded.
func (r *Runner) Chat(ctx context.Context, chatID, profileID, input string) (*Reply, error) {
	profile, err := catalog.Lookup(profileID)
	if err != nil {
		return nil, err
	}
	d, err := r.dispatcher(profile)
	if err != nil {
		return nil, err
	}

	c, id, err := r.chat(chatID, profile.ID)
	if err != nil {
		return nil, err
	}

	res, err := d.Run(ctx, c.session, input)

	r.mu.Lock()
	c.updated = time.Now()
	r.mu.Unlock()

	return &Reply{ChatID: id, Profile: profile.ID, RoundResult: res}, err
}

func (r *Runner) chat(chatID, profileID string) (*chat, string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	chatID = strings.TrimSpace(chatID)
	if chatID == "" {
		chatID = fmt.Sprintf("chat-%d", r.counter.Add(1))
	}
	c, ok := r.chats[chatID]
	if !ok {
		c = &chat{session: r.newSession(chatID), profile: profileID, updated: time.Now()}
		r.chats[chatID] = c
		return c, chatID, nil
	}
	if c.profile != profileID {
		if err := c.session.Reset(); err != nil {
			return nil, "", err
		}
		r.logger.Info("chat switched profile", "chat", chatID, "from", c.profile, "to", profileID)
		c.profile = profileID
	}
	return c, chatID, nil
}

func (r *Runner) newSession(id string) *ak.Session {
	return ak.NewSession(
		ak.WithSessionID(id),
		ak.WithWindow(r.window),
		ak.WithMetadata(map[string]string{"chat": id}),
	)
}

// dispatcher returns the profile's dispatcher, building it on first use.
func (r *Runner) dispatcher(p *catalog.Profile) (*ak.Dispatcher, error) {
	r.mu.RLock()
	d, ok := r.dispatchers[p.ID]
	r.mu.RUnlock()
	if ok {
		return d, nil
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if d, ok := r.dispatchers[p.ID]; ok {
		return d, nil
	}

	reg, err := p.Registry(r.lib, r.backend, r.extra, r.dopts...)
	if err != nil {
		return nil, err
	}
	opts := append([]ak.DispatcherOption{
		ak.WithName(p.ID),
		ak.WithInstructions(p.Instructions),
		ak.WithLogger(r.logger),
		ak.WithDispatchMiddleware(ak.LoggingMiddleware(r.logger)),
		ak.WithFunctionMiddleware(ak.ToolLoggingMiddleware(r.logger)),
	}, r.dopts...)
	d = ak.NewDispatcher(r.backend, reg, opts...)
	r.dispatchers[p.ID] = d
	return d, nil
}

// Tools lists the tool names a profile's dispatcher offers.
func (r *Runner) Tools(profileID string) ([]string, error) {
	p, err := catalog.Lookup(profileID)
	if err != nil {
		return nil, err
	}
	d, err := r.dispatcher(p)
	if err != nil {
		return nil, err
	}
	return d.Registry().Names(), nil
}

func (r *Runner) lookup(chatID string) (*chat, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.chats[chatID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrChatNotFound, chatID)
	}
	return c, nil
}

// Transcript returns every turn of the chat.
func (r *Runner) Transcript(chatID string) ([]ak.Turn, error) {
	c, err := r.lookup(chatID)
	if err != nil {
		return nil, err
	}
	return c.session.FullTranscript(), nil
}

// Export writes the chat as JSONL to w.
func (r *Runner) Export(chatID string, w io.Writer) error {
	c, err := r.lookup(chatID)
	if err != nil {
		return err
	}
	return c.session.WriteJSONL(w)
}

// ExportFile writes the chat as JSONL into the export directory and
// returns the file path.
func (r *Runner) ExportFile(chatID string) (string, error) {
	c, err := r.lookup(chatID)
	if err != nil {
		return "", err
	}
	name := fmt.Sprintf("%s-%s.jsonl", chatID, time.Now().UTC().Format("20060102T150405Z"))
	path := filepath.Join(r.exportTo, name)
	return path, c.session.ExportFile(path)
}

// Reset clears the chat's transcript.
func (r *Runner) Reset(chatID string) error {
	c, err := r.lookup(chatID)
	if err != nil {
		return err
	}
	return c.session.Reset()
}

// Remove forgets the chat.
func (r *Runner) Remove(chatID string) {
	r.mu.Lock()
	delete(r.chats, chatID)
	r.mu.Unlock()
}

// Sessions lists the chats sorted by ID.
func (r *Runner) Sessions() []ChatInfo {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]ChatInfo, 0, len(r.chats))
	for id, c := range r.chats {
		out = append(out, ChatInfo{ID: id, Profile: c.profile, Turns: c.session.Len(), Updated: c.updated})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}
