// Copyright (c) Microsoft. All rights reserved.

package agentkit_test

import (
	"context"
	"errors"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	ak "github.com/agentplayground/agentkit/agentkit"
)

func TestDispatcher_FinalAnswer(t *testing.T) {
	backend := &scriptedBackend{responses: []*ak.ModelResponse{
		{Content: "Hello!", Usage: ak.UsageDetails{InputTokens: 3, OutputTokens: 2, TotalTokens: 5}},
	}}
	d := ak.NewDispatcher(backend, mustRegistry(t, wordCountTool(t)), ak.WithInstructions("be brief"))
	s := ak.NewSession()

	res, err := d.Run(context.Background(), s, "hi")
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if res.Answer != "Hello!" || res.State != ak.StateRespondedFinal {
		t.Errorf("result = %+v", res)
	}
	if len(res.Turns) != 2 || res.Turns[0].Kind != ak.TurnUser || res.Turns[1].Kind != ak.TurnAgent {
		t.Errorf("turns = %+v", res.Turns)
	}
	if res.Usage.TotalTokens != 5 {
		t.Errorf("usage = %+v", res.Usage)
	}

	req := backend.requests[0]
	if req.Instructions != "be brief" {
		t.Errorf("instructions = %q", req.Instructions)
	}
	if len(req.Tools) != 1 || req.Tools[0].Name != "word_count" {
		t.Errorf("tools = %+v", req.Tools)
	}
	if len(req.Conversation) != 1 || req.Conversation[0].Text != "hi" {
		t.Errorf("conversation = %+v", req.Conversation)
	}
}

func TestDispatcher_ToolRoundTrip(t *testing.T) {
	backend := &scriptedBackend{responses: []*ak.ModelResponse{
		{ToolCalls: []ak.ToolCall{toolCall("c1", "word_count", `{"text":"a b c"}`)}},
		{Content: "There are 3 words."},
	}}
	d := ak.NewDispatcher(backend, mustRegistry(t, wordCountTool(t)))
	s := ak.NewSession()

	res, err := d.Run(context.Background(), s, "count a b c")
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if res.Rounds != 1 || res.ToolCalls != 1 {
		t.Errorf("rounds=%d calls=%d", res.Rounds, res.ToolCalls)
	}

	turns := s.FullTranscript()
	kinds := []ak.TurnKind{ak.TurnUser, ak.TurnToolCall, ak.TurnToolResult, ak.TurnAgent}
	if len(turns) != len(kinds) {
		t.Fatalf("got %d turns", len(turns))
	}
	for i, k := range kinds {
		if turns[i].Kind != k {
			t.Errorf("turn %d kind = %s, want %s", i, turns[i].Kind, k)
		}
	}
	if r := turns[2].Result; !r.Success || string(r.Payload) != "3" || r.CallID != "c1" {
		t.Errorf("result = %+v", r)
	}

	// The second request must carry the call and its result.
	second := backend.requests[1].Conversation
	if len(second) != 3 || second[2].Kind != ak.TurnToolResult {
		t.Errorf("second request conversation = %+v", second)
	}
}

func TestDispatcher_ToolFailuresAreRecoverable(t *testing.T) {
	failing := ak.NewToolBuilder("flaky").
		Func(func(ctx context.Context, args ak.Args) (any, error) {
			return nil, errors.New("service down")
		}).
		MustBuild()
	backend := &scriptedBackend{responses: []*ak.ModelResponse{
		{ToolCalls: []ak.ToolCall{
			toolCall("a", "flaky", `{}`),
			toolCall("b", "nonexistent_tool", `{}`),
			toolCall("c", "word_count", `{}`),
			toolCall("d", "word_count", `{"text":"x y"}`),
		}},
		{Content: "Some tools failed, sorry."},
	}}
	d := ak.NewDispatcher(backend, mustRegistry(t, wordCountTool(t), failing))
	s := ak.NewSession()

	res, err := d.Run(context.Background(), s, "try everything")
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if res.Answer != "Some tools failed, sorry." {
		t.Errorf("answer = %q", res.Answer)
	}

	var kinds []ak.ErrorKind
	for _, turn := range s.FullTranscript() {
		if turn.Kind == ak.TurnToolResult {
			kinds = append(kinds, turn.Result.Error)
		}
	}
	want := []ak.ErrorKind{ak.KindToolExecution, ak.KindUnknownTool, ak.KindInvalidArguments, ""}
	if len(kinds) != len(want) {
		t.Fatalf("result kinds = %v", kinds)
	}
	for i := range want {
		if kinds[i] != want[i] {
			t.Errorf("result %d kind = %q, want %q", i, kinds[i], want[i])
		}
	}
}

func TestDispatcher_ParallelResultsKeepRequestOrder(t *testing.T) {
	var inFlight, peak atomic.Int32
	sleepy := ak.NewToolBuilder("sleepy").
		Param(ak.Param{Name: "ms", Type: ak.TypeInteger, Required: true}).
		Func(func(ctx context.Context, args ak.Args) (any, error) {
			n := inFlight.Add(1)
			defer inFlight.Add(-1)
			for {
				p := peak.Load()
				if n <= p || peak.CompareAndSwap(p, n) {
					break
				}
			}
			time.Sleep(time.Duration(args.Int("ms", 0)) * time.Millisecond)
			return args.Int("ms", 0), nil
		}).
		MustBuild()

	backend := &scriptedBackend{responses: []*ak.ModelResponse{
		{ToolCalls: []ak.ToolCall{
			toolCall("first", "sleepy", `{"ms":60}`),
			toolCall("second", "sleepy", `{"ms":1}`),
			toolCall("third", "sleepy", `{"ms":30}`),
		}},
		{Content: "ok"},
	}}
	d := ak.NewDispatcher(backend, mustRegistry(t, sleepy), ak.WithMaxParallelTools(3))
	s := ak.NewSession()

	if _, err := d.Run(context.Background(), s, "go"); err != nil {
		t.Fatalf("Run: %v", err)
	}

	var ids []string
	for _, turn := range s.FullTranscript() {
		if turn.Kind == ak.TurnToolResult {
			ids = append(ids, turn.Result.CallID)
		}
	}
	if strings.Join(ids, ",") != "first,second,third" {
		t.Errorf("result order = %v", ids)
	}
	if peak.Load() < 2 {
		t.Errorf("tools did not run concurrently (peak %d)", peak.Load())
	}
}

func TestDispatcher_BudgetExceeded(t *testing.T) {
	backend := &scriptedBackend{fn: func(ctx context.Context, req *ak.ModelRequest) (*ak.ModelResponse, error) {
		return &ak.ModelResponse{ToolCalls: []ak.ToolCall{toolCall("", "word_count", `{"text":"again"}`)}}, nil
	}}
	d := ak.NewDispatcher(backend, mustRegistry(t, wordCountTool(t)), ak.WithMaxRounds(5))
	s := ak.NewSession()

	res, err := d.Run(context.Background(), s, "loop forever")
	if !errors.Is(err, ak.ErrToolLoopBudgetExceeded) {
		t.Fatalf("error = %v, want ErrToolLoopBudgetExceeded", err)
	}
	if res.State != ak.StateExhausted || res.Rounds != 5 {
		t.Errorf("result = %+v", res)
	}

	turns := s.FullTranscript()
	if n := countKind(turns, ak.TurnToolCall); n != 5 {
		t.Errorf("tool calls = %d, want 5", n)
	}
	if n := countKind(turns, ak.TurnToolResult); n != 5 {
		t.Errorf("tool results = %d, want 5", n)
	}
	last := turns[len(turns)-1]
	if last.Kind != ak.TurnAgent || !last.Synthetic || !strings.Contains(last.Text, "5 tool round") {
		t.Errorf("last turn = %+v", last)
	}
	if backend.calls() != 6 {
		t.Errorf("backend called %d times, want 6", backend.calls())
	}

	// The session stays usable.
	backend.fn = nil
	if _, err := d.Run(context.Background(), s, "stop"); err != nil {
		t.Errorf("follow-up Run: %v", err)
	}
}

func TestDispatcher_CancelClosesOutstandingCalls(t *testing.T) {
	var started atomic.Int32
	ready := make(chan struct{})
	blocking := ak.NewToolBuilder("wait").
		Func(func(ctx context.Context, args ak.Args) (any, error) {
			if started.Add(1) == 2 {
				close(ready)
			}
			<-ctx.Done()
			return nil, ctx.Err()
		}).
		MustBuild()

	backend := &scriptedBackend{responses: []*ak.ModelResponse{
		{ToolCalls: []ak.ToolCall{toolCall("a", "wait", `{}`), toolCall("b", "wait", `{}`)}},
	}}
	d := ak.NewDispatcher(backend, mustRegistry(t, blocking))
	s := ak.NewSession()

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		<-ready
		cancel()
	}()

	res, err := d.Run(ctx, s, "wait twice")
	if !errors.Is(err, ak.ErrCancelled) {
		t.Fatalf("error = %v, want ErrCancelled", err)
	}
	if res.State != ak.StateCancelled {
		t.Errorf("state = %s", res.State)
	}

	var cancelled int
	for _, turn := range s.FullTranscript() {
		if turn.Kind == ak.TurnToolResult && turn.Result.Error == ak.KindCancelled {
			cancelled++
		}
	}
	if cancelled != 2 {
		t.Errorf("cancelled results = %d, want 2", cancelled)
	}
	if len(s.Pending()) != 0 {
		t.Errorf("pending calls left: %+v", s.Pending())
	}
	if _, err := s.Append(ak.UserTurn("still here?")); err != nil {
		t.Errorf("session not appendable after cancel: %v", err)
	}
}

func TestDispatcher_CallerDeadlineDuringTools(t *testing.T) {
	blocking := ak.NewToolBuilder("wait").
		Func(func(ctx context.Context, args ak.Args) (any, error) {
			<-ctx.Done()
			return nil, ctx.Err()
		}).
		MustBuild()
	backend := &scriptedBackend{responses: []*ak.ModelResponse{
		{ToolCalls: []ak.ToolCall{toolCall("a", "wait", `{}`)}},
	}}
	d := ak.NewDispatcher(backend, mustRegistry(t, blocking))
	s := ak.NewSession()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	res, err := d.Run(ctx, s, "wait")
	if !errors.Is(err, ak.ErrBackendTimeout) || errors.Is(err, ak.ErrCancelled) {
		t.Fatalf("error = %v, want ErrBackendTimeout", err)
	}
	if res.State != ak.StateFailed {
		t.Errorf("state = %s", res.State)
	}
	last := s.FullTranscript()[s.Len()-1]
	if last.Kind != ak.TurnToolResult || last.Result.Error != ak.KindToolExecution {
		t.Errorf("last turn = %+v", last)
	}
	if _, err := s.Append(ak.UserTurn("again")); err != nil {
		t.Errorf("session not appendable: %v", err)
	}
}

func TestDispatcher_BackendUnavailable(t *testing.T) {
	backend := &scriptedBackend{fn: func(ctx context.Context, req *ak.ModelRequest) (*ak.ModelResponse, error) {
		return nil, errors.New("connection refused")
	}}
	d := ak.NewDispatcher(backend, nil)
	s := ak.NewSession()

	res, err := d.Run(context.Background(), s, "hello")
	if !errors.Is(err, ak.ErrBackendUnavailable) {
		t.Fatalf("error = %v, want ErrBackendUnavailable", err)
	}
	if res.State != ak.StateFailed {
		t.Errorf("state = %s", res.State)
	}

	// Retry the same user turn once the backend recovers.
	backend.fn = func(ctx context.Context, req *ak.ModelRequest) (*ak.ModelResponse, error) {
		return &ak.ModelResponse{Content: "back online"}, nil
	}
	res, err = d.Resume(context.Background(), s)
	if err != nil {
		t.Fatalf("Resume: %v", err)
	}
	if res.Answer != "back online" {
		t.Errorf("answer = %q", res.Answer)
	}
	if n := countKind(s.FullTranscript(), ak.TurnUser); n != 1 {
		t.Errorf("user turns = %d, want 1", n)
	}

	if _, err := d.Resume(context.Background(), s); !errors.Is(err, ak.ErrProtocolSequence) {
		t.Errorf("Resume after final answer: error = %v", err)
	}
}

func TestDispatcher_BackendTimeout(t *testing.T) {
	backend := ak.BackendFunc(func(ctx context.Context, req *ak.ModelRequest) (*ak.ModelResponse, error) {
		time.Sleep(time.Second) // ignores ctx
		return &ak.ModelResponse{Content: "late"}, nil
	})
	d := ak.NewDispatcher(backend, nil, ak.WithBackendTimeout(20*time.Millisecond))
	s := ak.NewSession()

	start := time.Now()
	_, err := d.Run(context.Background(), s, "hello")
	if !errors.Is(err, ak.ErrBackendTimeout) {
		t.Fatalf("error = %v, want ErrBackendTimeout", err)
	}
	if elapsed := time.Since(start); elapsed > 500*time.Millisecond {
		t.Errorf("Run blocked for %s", elapsed)
	}
}

func TestDispatcher_ClassifiedBackendErrorsPassThrough(t *testing.T) {
	backend := ak.BackendFunc(func(ctx context.Context, req *ak.ModelRequest) (*ak.ModelResponse, error) {
		return nil, &ak.ServiceError{StatusCode: 401, Message: "bad key", Err: ak.ErrAuth}
	})
	d := ak.NewDispatcher(backend, nil)

	_, err := d.Run(context.Background(), ak.NewSession(), "hello")
	if !errors.Is(err, ak.ErrAuth) || !errors.Is(err, ak.ErrBackendUnavailable) {
		t.Errorf("error = %v", err)
	}
	var svc *ak.ServiceError
	if !errors.As(err, &svc) || svc.StatusCode != 401 {
		t.Errorf("ServiceError not preserved: %v", err)
	}
}

func TestDispatcher_OneRoundPerSession(t *testing.T) {
	release := make(chan struct{})
	entered := make(chan struct{}, 1)
	backend := ak.BackendFunc(func(ctx context.Context, req *ak.ModelRequest) (*ak.ModelResponse, error) {
		entered <- struct{}{}
		<-release
		return &ak.ModelResponse{Content: "done"}, nil
	})
	d := ak.NewDispatcher(backend, nil)
	s := ak.NewSession()

	errc := make(chan error, 1)
	go func() {
		_, err := d.Run(context.Background(), s, "first")
		errc <- err
	}()
	<-entered

	if _, err := d.Run(context.Background(), s, "second"); !errors.Is(err, ak.ErrSessionBusy) {
		t.Errorf("concurrent Run error = %v, want ErrSessionBusy", err)
	}
	if err := s.Reset(); !errors.Is(err, ak.ErrSessionBusy) {
		t.Errorf("Reset during round = %v, want ErrSessionBusy", err)
	}

	close(release)
	if err := <-errc; err != nil {
		t.Fatalf("first Run: %v", err)
	}
	if s.Len() != 2 {
		t.Errorf("Len = %d, want 2", s.Len())
	}
}

func TestDispatcher_DuplicateCallIDsAreReplaced(t *testing.T) {
	backend := &scriptedBackend{responses: []*ak.ModelResponse{
		{ToolCalls: []ak.ToolCall{
			toolCall("same", "word_count", `{"text":"a"}`),
			toolCall("same", "word_count", `{"text":"a b"}`),
		}},
		{Content: "ok"},
	}}
	d := ak.NewDispatcher(backend, mustRegistry(t, wordCountTool(t)))
	s := ak.NewSession()

	if _, err := d.Run(context.Background(), s, "go"); err != nil {
		t.Fatalf("Run: %v", err)
	}
	turns := s.FullTranscript()
	if turns[1].Call.ID != "same" || turns[2].Call.ID == "same" || turns[2].Call.ID == "" {
		t.Errorf("call ids = %q, %q", turns[1].Call.ID, turns[2].Call.ID)
	}
	if turns[4].Result.CallID != turns[2].Call.ID {
		t.Errorf("result %q does not match call %q", turns[4].Result.CallID, turns[2].Call.ID)
	}
}

func TestDispatcher_Middleware(t *testing.T) {
	var order []string
	mw := func(label string) ak.DispatchMiddleware {
		return func(next ak.RoundHandler) ak.RoundHandler {
			return func(ctx context.Context, req *ak.RoundRequest) (*ak.RoundResult, error) {
				order = append(order, label+"-before")
				res, err := next(ctx, req)
				order = append(order, label+"-after")
				return res, err
			}
		}
	}
	upper := func(next ak.Backend) ak.Backend {
		return ak.BackendFunc(func(ctx context.Context, req *ak.ModelRequest) (*ak.ModelResponse, error) {
			resp, err := next.Complete(ctx, req)
			if err == nil {
				resp.Content = strings.ToUpper(resp.Content)
			}
			return resp, err
		})
	}

	backend := &scriptedBackend{responses: []*ak.ModelResponse{{Content: "quiet"}}}
	d := ak.NewDispatcher(backend, nil,
		ak.WithDispatchMiddleware(mw("outer"), mw("inner")),
		ak.WithBackendMiddleware(upper),
		ak.WithDispatchMiddleware(ak.LoggingMiddleware(nil)),
	)

	res, err := d.Run(context.Background(), ak.NewSession(), "hi")
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if res.Answer != "QUIET" {
		t.Errorf("answer = %q", res.Answer)
	}
	want := "outer-before,inner-before,inner-after,outer-after"
	if got := strings.Join(order, ","); got != want {
		t.Errorf("order = %s, want %s", got, want)
	}
}

func TestDispatcher_WindowLimitsRequest(t *testing.T) {
	backend := &scriptedBackend{}
	d := ak.NewDispatcher(backend, nil)
	s := ak.NewSession(ak.WithWindow(3))

	for _, q := range []string{"one", "two", "three"} {
		if _, err := d.Run(context.Background(), s, q); err != nil {
			t.Fatalf("Run(%s): %v", q, err)
		}
	}
	last := backend.requests[len(backend.requests)-1].Conversation
	if len(last) != 3 || last[2].Text != "three" {
		t.Errorf("last request conversation = %+v", last)
	}
}
