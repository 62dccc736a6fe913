package exchange

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/gorilla/websocket"
)

const (
	reconnectInitial = 500 * time.Millisecond
	handshakeTimeout = 10 * time.Second
)

// WSClient はWebSocket通信を管理する構造体です。切断されても ctx が終了するまで再接続し続けます。
type WSClient struct {
	URL string
	// Subscribe は接続直後に送るフレームです（不要なら nil）
	Subscribe    []byte
	ReconnectMax time.Duration

	dialer *websocket.Dialer
	log    *slog.Logger
}

// NewWSClient はWebSocketクライアントを生成します
func NewWSClient(url string, reconnectMax time.Duration, log *slog.Logger) *WSClient {
	if log == nil {
		log = slog.Default()
	}
	return &WSClient{
		URL:          url,
		ReconnectMax: reconnectMax,
		dialer: &websocket.Dialer{
			Proxy:            websocket.DefaultDialer.Proxy,
			HandshakeTimeout: handshakeTimeout,
		},
		log: log,
	}
}

// Listen はサーバーに接続し、受信したメッセージを handle に渡し続けます。
// ctx の終了でのみ nil を返して抜けます。
func (w *WSClient) Listen(ctx context.Context, handle func(msg []byte)) error {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = reconnectInitial
	if w.ReconnectMax > 0 {
		b.MaxInterval = w.ReconnectMax
	}

	for {
		connected, err := w.session(ctx, handle)
		if ctx.Err() != nil {
			return nil
		}
		if connected {
			// 一度つながったら待ち時間は最初からやり直す
			b.Reset()
		}

		wait := b.NextBackOff()
		w.log.Warn("🔌 WebSocketが切断されました。再接続します", "url", w.URL, "error", err, "wait", wait)

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil
		case <-timer.C:
		}
	}
}

func (w *WSClient) session(ctx context.Context, handle func([]byte)) (bool, error) {
	w.log.Info("WebSocket接続開始", "url", w.URL)
	conn, _, err := w.dialer.DialContext(ctx, w.URL, nil)
	if err != nil {
		return false, fmt.Errorf("WebSocket接続エラー: %w", err)
	}
	defer conn.Close()

	// ctx が終わったら読み取り待ちを解除する
	stop := context.AfterFunc(ctx, func() { conn.Close() })
	defer stop()

	if len(w.Subscribe) > 0 {
		if err := conn.WriteMessage(websocket.TextMessage, w.Subscribe); err != nil {
			return false, fmt.Errorf("購読リクエスト送信エラー: %w", err)
		}
	}
	w.log.Info("✅ WebSocket接続成功！約定の監視をスタートします", "url", w.URL)

	for {
		_, message, err := conn.ReadMessage()
		if err != nil {
			return true, fmt.Errorf("WebSocket読み取りエラー: %w", err)
		}
		handle(message)
	}
}
