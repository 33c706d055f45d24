package dashboard

import (
	"errors"
	"testing"
	"time"

	"github.com/sirupsen/logrus"

	"cryptobridge/internal/sequence"
	"cryptobridge/models"
	"cryptobridge/reader"
)

type fakeSource struct {
	state reader.State
	diag  sequence.Snapshot
}

func (f fakeSource) State() reader.State              { return f.state }
func (f fakeSource) Diagnostics() sequence.Snapshot { return f.diag }

func TestSourceStoreSnapshot(t *testing.T) {
	store := newSourceStore()
	btc := models.MustParseInstrument("BTC-USD")
	eth := models.MustParseInstrument("ETH-USD")

	store.register("kraken", fakeSource{state: reader.StateConnecting})
	store.register("coinbase", fakeSource{
		state: reader.StateStreaming,
		diag: sequence.Snapshot{
			Missing:   map[models.Instrument][]int64{btc: {3, 4}, eth: {}},
			Anomalies: 2,
		},
	})

	got := store.snapshot()
	if len(got) != 2 {
		t.Fatalf("expected 2 sources, got %d", len(got))
	}
	if got[0].Name != "coinbase" || got[1].Name != "kraken" {
		t.Fatalf("sources not ordered by name: %#v", got)
	}
	cb := got[0]
	if cb.State != "STREAMING" || cb.Anomalies != 2 {
		t.Fatalf("unexpected status: %#v", cb)
	}
	if len(cb.Missing) != 1 || len(cb.Missing["BTC-USD"]) != 2 {
		t.Fatalf("expected only BTC-USD gaps, got %#v", cb.Missing)
	}
	if got[1].Missing != nil {
		t.Fatalf("expected no gaps for idle source, got %#v", got[1].Missing)
	}
}

func TestLogStoreCapturesEntries(t *testing.T) {
	store := newLogStore(3)
	entry := logrus.NewEntry(logrus.New())
	entry.Time = time.Unix(10, 0)
	entry.Level = logrus.WarnLevel
	entry.Message = "sequence gap detected"
	entry.Data = logrus.Fields{"component": "coinbase_supervisor", "instrument": "BTC-USD", "error": errors.New("boom")}

	if err := store.Fire(entry); err != nil {
		t.Fatalf("store.Fire returned error: %v", err)
	}

	snapshot := store.snapshot()
	if len(snapshot) != 1 {
		t.Fatalf("expected 1 log entry, got %d", len(snapshot))
	}
	rec := snapshot[0]
	if rec.Component != "coinbase_supervisor" || rec.Level != "warning" {
		t.Fatalf("unexpected record: %#v", rec)
	}
	if rec.Fields["instrument"] != "BTC-USD" || rec.Fields["error"] != "boom" {
		t.Fatalf("unexpected fields: %#v", rec.Fields)
	}
	if _, ok := rec.Fields["component"]; ok {
		t.Fatal("component should not be repeated in fields")
	}
}

func TestLogStoreRespectsLimitAndClose(t *testing.T) {
	store := newLogStore(2)
	for i := 0; i < 4; i++ {
		entry := logrus.NewEntry(logrus.New())
		entry.Message = "msg"
		entry.Data = logrus.Fields{"index": i}
		if err := store.Fire(entry); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}

	snapshot := store.snapshot()
	if len(snapshot) != 2 || snapshot[0].Fields["index"] != 2 {
		t.Fatalf("expected the 2 newest entries, got %#v", snapshot)
	}

	store.close()
	if err := store.Fire(logrus.NewEntry(logrus.New())); err != nil {
		t.Fatalf("unexpected error after close: %v", err)
	}
	if len(store.snapshot()) != 2 {
		t.Fatal("store accepted entries after close")
	}
}
