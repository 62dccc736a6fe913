package exchange

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/gorilla/websocket"
	"github.com/shopspring/decimal"

	"github.com/r-umemoto/mame-bridge/pkg/domain/market"
)

func discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestDecodeBinance(t *testing.T) {
	tests := []struct {
		name string
		msg  string
		ok   bool
		side market.Side
		qty  string
	}{
		{
			name: "buyer taker",
			msg:  `{"e":"aggTrade","E":1700000000001,"s":"BTCUSDT","a":1,"p":"43000.10","q":"12.5","f":1,"l":2,"T":1700000000000,"m":false,"M":true}`,
			ok:   true,
			side: market.SIDE_BUY,
			qty:  "12.5",
		},
		{
			name: "buyer maker is sell",
			msg:  `{"e":"aggTrade","s":"BTCUSDT","p":"43000","q":"0.00009999","T":1700000000000,"m":true}`,
			ok:   true,
			side: market.SIDE_SELL,
			qty:  "0.00009999",
		},
		{
			name: "subscription response",
			msg:  `{"result":null,"id":1}`,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ev, ok, err := DecodeBinance([]byte(tt.msg))
			if err != nil {
				t.Fatalf("DecodeBinance: %v", err)
			}
			if ok != tt.ok {
				t.Fatalf("ok = %t, want %t", ok, tt.ok)
			}
			if !ok {
				return
			}
			if ev.Source != market.SOURCE_BINANCE || ev.Symbol != "btcusdt" || ev.Side != tt.side {
				t.Errorf("event = %+v", ev)
			}
			if !ev.Quantity.Equal(decimal.RequireFromString(tt.qty)) {
				t.Errorf("quantity = %s, want %s", ev.Quantity, tt.qty)
			}
			if !ev.Time.Equal(time.UnixMilli(1700000000000)) {
				t.Errorf("time = %v", ev.Time)
			}
		})
	}

	if _, _, err := DecodeBinance([]byte(`{"e":"aggTrade","q":"abc"}`)); err == nil {
		t.Error("non numeric quantity accepted")
	}
}

func TestDecodeCoinbase(t *testing.T) {
	ev, ok, err := DecodeCoinbase([]byte(`{"type":"match","trade_id":10,"side":"sell","size":"1.25","price":"42000.5","product_id":"BTC-USD","time":"2024-03-01T09:00:00.123456Z"}`))
	if err != nil || !ok {
		t.Fatalf("DecodeCoinbase = %v, %v", ok, err)
	}
	want := market.TradeEvent{
		Source:   market.SOURCE_COINBASE,
		Symbol:   "BTC-USD",
		Side:     market.SIDE_SELL,
		Quantity: decimal.RequireFromString("1.25"),
		Price:    decimal.RequireFromString("42000.5"),
		Time:     time.Date(2024, 3, 1, 9, 0, 0, 123456000, time.UTC),
	}
	if diff := cmp.Diff(want, ev); diff != "" {
		t.Errorf("event (-want +got):\n%s", diff)
	}

	for _, msg := range []string{
		`{"type":"subscriptions","channels":[{"name":"matches"}]}`,
		`{"type":"heartbeat"}`,
	} {
		if _, ok, err := DecodeCoinbase([]byte(msg)); ok || err != nil {
			t.Errorf("%s: ok=%t err=%v, want skipped", msg, ok, err)
		}
	}
	if _, _, err := DecodeCoinbase([]byte(`{"type":"match","side":"hold","size":"1","price":"1"}`)); err == nil {
		t.Error("bad side accepted")
	}
	if _, _, err := DecodeCoinbase([]byte(`not json`)); err == nil {
		t.Error("invalid json accepted")
	}
}

func wsURL(srv *httptest.Server) string {
	return "ws" + strings.TrimPrefix(srv.URL, "http")
}

func TestCoinbase_StreamSubscribesAndReconnects(t *testing.T) {
	upgrader := websocket.Upgrader{}
	subscribed := make(chan string, 4)
	var sessions atomic.Int32

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		_, sub, err := conn.ReadMessage()
		if err != nil {
			return
		}
		subscribed <- string(sub)

		n := sessions.Add(1)
		size := "1"
		if n > 1 {
			size = "2"
		}
		conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"subscriptions"}`))
		conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"match","side":"buy","size":"`+size+`","price":"100","product_id":"BTC-USD"}`))
		if n > 1 {
			// 2回目のセッションは切らずに待つ
			conn.ReadMessage()
		}
		// 1回目はここで切断し、再接続させる
	}))
	defer srv.Close()

	cb, err := NewCoinbase(wsURL(srv), "BTC-USD", 50*time.Millisecond, discard())
	if err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	out := make(chan market.TradeEvent, 4)
	done := make(chan error, 1)
	go func() { done <- cb.Stream(ctx, out) }()

	want := `{"type":"subscribe","product_ids":["BTC-USD"],"channels":["matches"]}`
	for i, wantQty := range []string{"1", "2"} {
		select {
		case ev := <-out:
			if !ev.Quantity.Equal(decimal.RequireFromString(wantQty)) {
				t.Errorf("event %d quantity = %s, want %s", i, ev.Quantity, wantQty)
			}
		case <-time.After(5 * time.Second):
			t.Fatalf("event %d not received", i)
		}
		if got := <-subscribed; got != want {
			t.Errorf("subscribe frame = %s, want %s", got, want)
		}
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Stream returned %v after cancel", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Stream did not stop after cancel")
	}
}

func TestNewBinance_URL(t *testing.T) {
	b := NewBinance("wss://stream.binance.com:9443/ws/", "BTCUSDT", time.Second, discard())
	if want := "wss://stream.binance.com:9443/ws/btcusdt@aggTrade"; b.ws.URL != want {
		t.Errorf("URL = %s, want %s", b.ws.URL, want)
	}
	if b.Source() != market.SOURCE_BINANCE {
		t.Errorf("Source = %s", b.Source())
	}
}
