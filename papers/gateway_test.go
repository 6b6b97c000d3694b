package papers

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"
)

// fakeTransport counts calls and returns a scripted response.
type fakeTransport struct {
	calls  int
	closed int
	result json.RawMessage
	err    error
}

func (f *fakeTransport) CallTool(ctx context.Context, name string, arguments json.RawMessage) (json.RawMessage, error) {
	f.calls++
	return f.result, f.err
}

func (f *fakeTransport) Close() error {
	f.closed++
	return nil
}

func textResult(text string) json.RawMessage {
	result := map[string]interface{}{
		"content": []map[string]string{{"type": "text", "text": text}},
	}
	raw, _ := json.Marshal(result)
	return raw
}

func newTestGateway(transport Transport) (*Gateway, *int) {
	connects := 0
	connect := func(ctx context.Context) (Transport, error) {
		connects++
		return transport, nil
	}
	b, _ := newTestBreaker(3, 5*time.Minute)
	return NewGateway(connect, b), &connects
}

func TestGatewaySuccessReturnsText(t *testing.T) {
	transport := &fakeTransport{result: textResult("Found 2 papers")}
	g, connects := newTestGateway(transport)

	got := g.CallTool(context.Background(), SearchToolName, json.RawMessage(`{"query":"transformers"}`))
	if got != "Found 2 papers" {
		t.Errorf("expected flattened text content, got %q", got)
	}
	if *connects != 1 {
		t.Errorf("expected one lazy connect, got %d", *connects)
	}
}

func TestGatewayReusesConnection(t *testing.T) {
	transport := &fakeTransport{result: textResult("ok")}
	g, connects := newTestGateway(transport)

	g.CallTool(context.Background(), SearchToolName, nil)
	g.CallTool(context.Background(), SearchToolName, nil)
	if *connects != 1 {
		t.Errorf("expected the connection to be cached, got %d connects", *connects)
	}
}

func TestGatewayFailureReturnsAdvisory(t *testing.T) {
	transport := &fakeTransport{err: errors.New("pipe broke")}
	g, _ := newTestGateway(transport)

	got := g.CallTool(context.Background(), SearchToolName, nil)
	if !strings.Contains(got, "try searching manually") {
		t.Errorf("expected advisory text on failure, got %q", got)
	}
	if transport.closed != 1 {
		t.Errorf("expected failed connection discarded, got %d closes", transport.closed)
	}
}

func TestGatewayFailureDiscardsAndReconnects(t *testing.T) {
	transport := &fakeTransport{err: errors.New("pipe broke")}
	g, connects := newTestGateway(transport)

	g.CallTool(context.Background(), SearchToolName, nil)
	transport.err = nil
	transport.result = textResult("recovered")
	g.CallTool(context.Background(), SearchToolName, nil)

	if *connects != 2 {
		t.Errorf("expected reconnect after discard, got %d connects", *connects)
	}
}

func TestGatewayOpenBreakerSkipsNetwork(t *testing.T) {
	transport := &fakeTransport{err: errors.New("service down")}
	g, _ := newTestGateway(transport)

	for i := 0; i < 3; i++ {
		g.CallTool(context.Background(), SearchToolName, nil)
	}
	if transport.calls != 3 {
		t.Fatalf("expected 3 attempted calls, got %d", transport.calls)
	}
	if g.Breaker().State() != StateOpen {
		t.Fatalf("expected open breaker after 3 failures, got %s", g.Breaker().State())
	}

	got := g.CallTool(context.Background(), SearchToolName, nil)
	if transport.calls != 3 {
		t.Errorf("rejected call must not touch the transport, got %d calls", transport.calls)
	}
	if !strings.Contains(got, "temporarily unavailable") {
		t.Errorf("expected unavailable advisory, got %q", got)
	}
	if !strings.Contains(got, "minute") {
		t.Errorf("expected a retry hint in minutes, got %q", got)
	}
}

func TestGatewayProbeSuccessCloses(t *testing.T) {
	transport := &fakeTransport{err: errors.New("service down")}
	connects := 0
	connect := func(ctx context.Context) (Transport, error) {
		connects++
		return transport, nil
	}
	b, clock := newTestBreaker(3, 5*time.Minute)
	g := NewGateway(connect, b)

	for i := 0; i < 3; i++ {
		g.CallTool(context.Background(), SearchToolName, nil)
	}

	*clock = clock.Add(6 * time.Minute)
	transport.err = nil
	transport.result = textResult("back up")

	got := g.CallTool(context.Background(), SearchToolName, nil)
	if got != "back up" {
		t.Errorf("expected probe call to reach the service, got %q", got)
	}
	if g.Breaker().State() != StateClosed {
		t.Errorf("expected breaker closed after probe success, got %s", g.Breaker().State())
	}
}

func TestGatewayConnectFailureCountsAsFailure(t *testing.T) {
	connect := func(ctx context.Context) (Transport, error) {
		return nil, errors.New("handshake failed")
	}
	b, _ := newTestBreaker(3, 5*time.Minute)
	g := NewGateway(connect, b)

	got := g.CallTool(context.Background(), SearchToolName, nil)
	if !strings.Contains(got, "try searching manually") {
		t.Errorf("expected advisory on connect failure, got %q", got)
	}
	if b.failureCount != 1 {
		t.Errorf("connect failure must count toward the breaker, got %d", b.failureCount)
	}
}

func TestGatewayDefinitions(t *testing.T) {
	g, _ := newTestGateway(&fakeTransport{})
	defs := g.Definitions()
	if len(defs) != 2 {
		t.Fatalf("expected 2 tool definitions, got %d", len(defs))
	}
	if defs[0].Name != SearchToolName || defs[1].Name != DetailsToolName {
		t.Errorf("unexpected tool names: %s, %s", defs[0].Name, defs[1].Name)
	}
}

func TestIsAdvisory(t *testing.T) {
	if !IsAdvisory(searchErrorText) {
		t.Error("search error advisory not recognized")
	}
	if !IsAdvisory(unavailableText(3 * time.Minute)) {
		t.Error("unavailable advisory not recognized")
	}
	if IsAdvisory("1. On Error Propagation in Pipelines (2019)") {
		t.Error("result data mistaken for an advisory")
	}
	if IsAdvisory("Found 2 papers") {
		t.Error("result data mistaken for an advisory")
	}
}

func TestRenderResultFallsBackToRaw(t *testing.T) {
	raw := json.RawMessage(`{"unexpected": "shape"}`)
	if got := renderResult(raw); got != string(raw) {
		t.Errorf("expected raw passthrough, got %q", got)
	}
}
