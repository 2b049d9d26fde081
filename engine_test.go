package mqtt

import (
	"context"
	"testing"

	"github.com/mqttcore/client/packet"
)

// fakeRequest is a scriptable Request used to drive the Engine's admission,
// dispatch, and teardown logic without a real transport or codec.
type fakeRequest struct {
	noopEvents
	inactive bool

	startCalls      int
	processCalls    int
	connectedCalls  int
	disconnectedCalls int
	scheduledCalls  int

	startResult      RequestResult
	processResult    RequestResult
	connectedResult  RequestResult
	disconnectedRes  RequestResult
	scheduledResult  RequestResult
}

func (r *fakeRequest) canPerformInInactiveState() bool { return r.inactive }

func (r *fakeRequest) start(rc *requestContext) RequestResult {
	r.startCalls++
	return r.startResult
}

func (r *fakeRequest) process(rc *requestContext, pkt packet.Packet) RequestResult {
	r.processCalls++
	return r.processResult
}

func (r *fakeRequest) connected(rc *requestContext, sessionPresent bool) RequestResult {
	r.connectedCalls++
	return r.connectedResult
}

func (r *fakeRequest) disconnected(rc *requestContext) RequestResult {
	r.disconnectedCalls++
	return r.disconnectedRes
}

func (r *fakeRequest) scheduled(rc *requestContext) RequestResult {
	r.scheduledCalls++
	return r.scheduledResult
}

func newTestEngine(maxInflight int) *Engine {
	cfg := newConfig(MaxInflight(maxInflight))
	return newEngine(cfg)
}

func TestEngineQueuesRequestWhileInactive(t *testing.T) {
	e := newTestEngine(10)
	req := &fakeRequest{inactive: false, startResult: pendingResult()}
	e.admit(&Entry{req: req})

	if req.startCalls != 0 {
		t.Fatalf("start() called %d times while inactive, want 0", req.startCalls)
	}
	if len(e.queue) != 1 {
		t.Fatalf("queue length = %d, want 1", len(e.queue))
	}
}

func TestEngineStartsInactiveExemptRequestImmediately(t *testing.T) {
	e := newTestEngine(10)
	req := &fakeRequest{inactive: true, startResult: pendingResult()}
	e.admit(&Entry{req: req})

	if req.startCalls != 1 {
		t.Fatalf("start() called %d times, want 1", req.startCalls)
	}
	if len(e.inflight) != 1 {
		t.Fatalf("inflight length = %d, want 1", len(e.inflight))
	}
}

func TestEngineAdmitsQueuedRequestsOnceConnected(t *testing.T) {
	e := newTestEngine(10)
	req := &fakeRequest{inactive: false, startResult: pendingResult()}
	e.admit(&Entry{req: req})

	e.active = true
	e.admitQueued()

	if req.startCalls != 1 {
		t.Fatalf("start() called %d times after connect, want 1", req.startCalls)
	}
	if len(e.queue) != 0 || len(e.inflight) != 1 {
		t.Fatalf("queue=%d inflight=%d, want 0 and 1", len(e.queue), len(e.inflight))
	}
}

func TestEngineEnforcesMaxInflightCap(t *testing.T) {
	e := newTestEngine(1)
	e.active = true

	first := &fakeRequest{startResult: pendingResult()}
	second := &fakeRequest{startResult: pendingResult()}
	e.admit(&Entry{req: first})
	e.admit(&Entry{req: second})

	if first.startCalls != 1 {
		t.Fatalf("first.start() called %d times, want 1", first.startCalls)
	}
	if second.startCalls != 0 {
		t.Fatalf("second.start() called %d times while at MaxInflight, want 0", second.startCalls)
	}
	if len(e.queue) != 1 {
		t.Fatalf("queue length = %d, want 1 (second request waiting)", len(e.queue))
	}
}

func TestEngineMaxInflightCapAppliesToInactiveExemptRequests(t *testing.T) {
	e := newTestEngine(1)
	first := &fakeRequest{inactive: true, startResult: pendingResult()}
	second := &fakeRequest{inactive: true, startResult: pendingResult()}
	e.admit(&Entry{req: first})
	e.admit(&Entry{req: second})

	if first.startCalls != 1 || second.startCalls != 0 {
		t.Fatalf("first.startCalls=%d second.startCalls=%d, want 1 and 0", first.startCalls, second.startCalls)
	}
}

func TestEngineCompletingEntryFreesSlotForQueuedRequest(t *testing.T) {
	e := newTestEngine(1)
	e.active = true

	first := &fakeRequest{startResult: pendingResult()}
	second := &fakeRequest{startResult: pendingResult()}
	e.admit(&Entry{req: first})
	e.admit(&Entry{req: second})

	// first completes on the next inbound packet it's given.
	first.processResult = doneResult(nil)
	e.dispatch(func(rc *requestContext) RequestResult { return rc.entry.req.process(rc, nil) })

	if second.startCalls != 1 {
		t.Fatalf("second.start() called %d times after first completed, want 1", second.startCalls)
	}
	if len(e.inflight) != 1 {
		t.Fatalf("inflight length = %d, want 1 (only second)", len(e.inflight))
	}
}

func TestEngineDispatchRoutesProcessToEveryInflightEntry(t *testing.T) {
	e := newTestEngine(10)
	e.active = true
	a := &fakeRequest{startResult: pendingResult(), processResult: pendingResult()}
	b := &fakeRequest{startResult: pendingResult(), processResult: pendingResult()}
	e.admit(&Entry{req: a})
	e.admit(&Entry{req: b})

	e.dispatch(func(rc *requestContext) RequestResult { return rc.entry.req.process(rc, nil) })

	if a.processCalls != 1 || b.processCalls != 1 {
		t.Fatalf("a.processCalls=%d b.processCalls=%d, want 1 and 1", a.processCalls, b.processCalls)
	}
}

func TestEngineConnectedLifecycleEventMarksActiveAndNotifiesInflight(t *testing.T) {
	e := newTestEngine(10)
	req := &fakeRequest{inactive: true, startResult: pendingResult(), connectedResult: pendingResult()}
	e.admit(&Entry{req: req})

	e.handle(connectedLifecycleEvent{sessionPresent: true})

	if !e.active {
		t.Fatal("Engine.active = false after connectedLifecycleEvent")
	}
	if req.connectedCalls != 1 {
		t.Fatalf("connected() called %d times, want 1", req.connectedCalls)
	}
}

func TestEngineDisconnectedLifecycleEventMarksInactiveAndNotifiesInflight(t *testing.T) {
	e := newTestEngine(10)
	e.active = true
	req := &fakeRequest{inactive: true, startResult: pendingResult(), disconnectedRes: pendingResult()}
	e.admit(&Entry{req: req})

	e.handle(disconnectedLifecycleEvent{})

	if e.active {
		t.Fatal("Engine.active = true after disconnectedLifecycleEvent")
	}
	if req.disconnectedCalls != 1 {
		t.Fatalf("disconnected() called %d times, want 1", req.disconnectedCalls)
	}
}

func TestEngineFireScheduledDropsEntryWhenRequestGivesUp(t *testing.T) {
	e := newTestEngine(10)
	e.active = true
	req := &fakeRequest{startResult: pendingResult()}
	e.admit(&Entry{req: req})
	entry := e.inflight[0]

	req.scheduledResult = doneResult(ErrTimeout)
	e.fireScheduled(entry)

	if req.scheduledCalls != 1 {
		t.Fatalf("scheduled() called %d times, want 1", req.scheduledCalls)
	}
	if len(e.inflight) != 0 {
		t.Fatalf("inflight length = %d after scheduled() gave up, want 0", len(e.inflight))
	}
}

func TestEngineFireScheduledKeepsEntryWhenStillPending(t *testing.T) {
	e := newTestEngine(10)
	e.active = true
	req := &fakeRequest{startResult: pendingResult()}
	e.admit(&Entry{req: req})
	entry := e.inflight[0]

	req.scheduledResult = pendingResult()
	e.fireScheduled(entry)

	if len(e.inflight) != 1 {
		t.Fatalf("inflight length = %d after scheduled() stayed pending, want 1", len(e.inflight))
	}
}

func TestEngineDrainDisconnectsQueuedAndInflightEntries(t *testing.T) {
	e := newTestEngine(1)
	e.active = true
	inflightReq := &fakeRequest{startResult: pendingResult(), disconnectedRes: doneResult(ErrConnectionClosed)}
	queuedReq := &fakeRequest{startResult: pendingResult(), disconnectedRes: doneResult(ErrConnectionClosed)}
	e.admit(&Entry{req: inflightReq})
	e.admit(&Entry{req: queuedReq})

	e.drain()

	if inflightReq.disconnectedCalls != 1 || queuedReq.disconnectedCalls != 1 {
		t.Fatalf("inflightReq.disconnected=%d queuedReq.disconnected=%d, want 1 and 1",
			inflightReq.disconnectedCalls, queuedReq.disconnectedCalls)
	}
	if len(e.queue) != 0 || len(e.inflight) != 0 {
		t.Fatalf("queue=%d inflight=%d after drain, want 0 and 0", len(e.queue), len(e.inflight))
	}
	if e.InflightCount() != 0 {
		t.Fatalf("InflightCount() = %d after drain, want 0", e.InflightCount())
	}
}

func TestEngineInflightCountTracksStartAndCompletion(t *testing.T) {
	e := newTestEngine(10)
	e.active = true
	req := &fakeRequest{startResult: pendingResult()}
	e.admit(&Entry{req: req})

	if e.InflightCount() != 1 {
		t.Fatalf("InflightCount() = %d after admit, want 1", e.InflightCount())
	}

	req.processResult = doneResult(nil)
	e.dispatch(func(rc *requestContext) RequestResult { return rc.entry.req.process(rc, nil) })

	if e.InflightCount() != 0 {
		t.Fatalf("InflightCount() = %d after completion, want 0", e.InflightCount())
	}
}

func TestEngineRunProcessesSubmitAndShutsDownOnEvent(t *testing.T) {
	e := newTestEngine(10)
	e.active = true
	done := make(chan struct{})
	go func() {
		e.run(context.Background())
		close(done)
	}()

	req, tok := newDisconnectRequest()
	e.submit(req)
	if _, err := tok.Wait(context.Background()); err != nil {
		t.Fatalf("disconnect token err = %v, want nil", err)
	}

	e.shutdown()
	<-done
}
