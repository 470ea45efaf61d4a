package feed

import (
	"testing"
)

func TestNormalize(t *testing.T) {
	tests := []struct {
		name      string
		raw       string
		wantTicks int
		wantErr   bool
	}{
		{
			name:      "single record with lastPrice",
			raw:       `{"data":[{"timestamp":"t1","symbol":"XBTUSD","lastPrice":100.5}]}`,
			wantTicks: 1,
		},
		{
			name:      "record missing lastPrice is skipped",
			raw:       `{"data":[{"timestamp":"t1","symbol":"XBTUSD"}]}`,
			wantTicks: 0,
		},
		{
			name: "mixed records",
			raw: `{"data":[
				{"timestamp":"t1","symbol":"XBTUSD","lastPrice":100.5},
				{"timestamp":"t2","symbol":"ETHUSD"},
				{"timestamp":"t3","symbol":"XRPUSD","lastPrice":0.5}
			]}`,
			wantTicks: 2,
		},
		{
			name:      "extra top-level fields ignored",
			raw:       `{"table":"instrument","action":"update","data":[{"timestamp":"t1","symbol":"XBTUSD","lastPrice":1}]}`,
			wantTicks: 1,
		},
		{
			name:      "missing data field",
			raw:       `{"table":"instrument"}`,
			wantTicks: 0,
		},
		{
			name:      "non-list data field",
			raw:       `{"data":"nope"}`,
			wantTicks: 0,
		},
		{
			name:      "non-object message",
			raw:       `[1,2,3]`,
			wantTicks: 0,
		},
		{
			name:      "non-object record skipped",
			raw:       `{"data":[42,{"symbol":"XBTUSD","lastPrice":2}]}`,
			wantTicks: 1,
		},
		{
			name:    "invalid json",
			raw:     `{"data":`,
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ticks, err := Normalize([]byte(tt.raw), "acct1")
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected decode error")
				}
				return
			}
			if err != nil {
				t.Fatalf("Normalize failed: %v", err)
			}
			if len(ticks) != tt.wantTicks {
				t.Errorf("got %d ticks, want %d", len(ticks), tt.wantTicks)
			}
			for _, tick := range ticks {
				if tick.Account != "acct1" {
					t.Errorf("tick account = %q, want %q", tick.Account, "acct1")
				}
			}
		})
	}
}

func TestNormalize_FieldMapping(t *testing.T) {
	raw := `{"data":[{"timestamp":"t1","symbol":"XBTUSD","lastPrice":100.5,"askPrice":101}]}`

	ticks, err := Normalize([]byte(raw), "acct1")
	if err != nil {
		t.Fatalf("Normalize failed: %v", err)
	}
	if len(ticks) != 1 {
		t.Fatalf("got %d ticks, want 1", len(ticks))
	}

	tick := ticks[0]
	if tick.Timestamp != "t1" {
		t.Errorf("Timestamp = %v, want t1", tick.Timestamp)
	}
	if tick.Account != "acct1" {
		t.Errorf("Account = %q, want acct1", tick.Account)
	}
	if tick.Symbol != "XBTUSD" {
		t.Errorf("Symbol = %q, want XBTUSD", tick.Symbol)
	}
	if tick.Price != 100.5 {
		t.Errorf("Price = %v, want 100.5", tick.Price)
	}
}
