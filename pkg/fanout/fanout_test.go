package fanout

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/cloudflare/circl/sign/ed25519"

	"dirnet/pkg/record"
	"dirnet/pkg/types"
)

// fakeRelay is an in-process websocket relay for fan-out tests. It
// answers REQ frames by streaming its configured records followed by
// EOSE, and EVENT frames with an OK acknowledgment.
type fakeRelay struct {
	srv *httptest.Server

	// mu guards the behavior fields; tests tweak them before issuing
	// calls while handler goroutines read them.
	mu      sync.Mutex
	records []types.Record

	// Publish behavior.
	accept bool
	reason string

	// When silent, the relay reads frames but never answers; callers
	// must hit their deadline.
	silent bool
}

func (f *fakeRelay) setSilent() {
	f.mu.Lock()
	f.silent = true
	f.mu.Unlock()
}

func (f *fakeRelay) setAck(accept bool, reason string) {
	f.mu.Lock()
	f.accept = accept
	f.reason = reason
	f.mu.Unlock()
}

func newFakeRelay(t *testing.T, records []types.Record) *fakeRelay {
	f := &fakeRelay{records: records, accept: true}
	upgrader := websocket.Upgrader{}
	f.srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ws, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer ws.Close()
		f.serve(ws)
	}))
	t.Cleanup(f.srv.Close)
	return f
}

func (f *fakeRelay) url() string {
	return "ws" + strings.TrimPrefix(f.srv.URL, "http")
}

func (f *fakeRelay) serve(ws *websocket.Conn) {
	for {
		_, data, err := ws.ReadMessage()
		if err != nil {
			return
		}
		var parts []json.RawMessage
		if err := json.Unmarshal(data, &parts); err != nil || len(parts) == 0 {
			continue
		}
		var label string
		if err := json.Unmarshal(parts[0], &label); err != nil {
			continue
		}

		f.mu.Lock()
		silent := f.silent
		accept := f.accept
		reason := f.reason
		records := append([]types.Record(nil), f.records...)
		f.mu.Unlock()
		if silent {
			continue
		}

		switch label {
		case "REQ":
			var sub string
			if err := json.Unmarshal(parts[1], &sub); err != nil {
				continue
			}
			for i := range records {
				frame, _ := json.Marshal([]interface{}{"EVENT", sub, records[i]})
				if err := ws.WriteMessage(websocket.TextMessage, frame); err != nil {
					return
				}
			}
			frame, _ := json.Marshal([]interface{}{"EOSE", sub})
			if err := ws.WriteMessage(websocket.TextMessage, frame); err != nil {
				return
			}

		case "EVENT":
			var rec types.Record
			if err := json.Unmarshal(parts[1], &rec); err != nil {
				continue
			}
			frame, _ := json.Marshal([]interface{}{"OK", rec.ID, accept, reason})
			if err := ws.WriteMessage(websocket.TextMessage, frame); err != nil {
				return
			}
		}
	}
}

func testLogger() *zap.Logger {
	return zap.NewNop()
}

func testKey(seed byte) ed25519.PrivateKey {
	var s [ed25519.SeedSize]byte
	s[0] = seed
	return ed25519.NewKeyFromSeed(s[:])
}

// signedListing builds a verified service listing owned by the key seed.
func signedListing(t *testing.T, seed byte, name string, createdAt int64) types.Record {
	t.Helper()
	rec := &types.Record{
		Kind:      types.KindServiceListing,
		CreatedAt: createdAt,
		Tags:      types.Tags{{"d", name}},
		Content:   "test listing " + name,
	}
	if err := record.Sign(rec, testKey(seed)); err != nil {
		t.Fatalf("failed to sign test record: %v", err)
	}
	return *rec
}
