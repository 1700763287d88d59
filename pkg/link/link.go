// Package link is the client end of the relay connection.
package link

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"golang.org/x/xerrors"

	"github.com/astromechza/pizza-relay/pkg/pizza"
	"github.com/astromechza/pizza-relay/pkg/protocol"
)

const DefaultTimeout = 2 * time.Second

// Handler is called for every envelope received. Returning an error ends the sync.
type Handler func(protocol.Envelope) error

// ErrDone can be returned by a Handler to end the sync without it being reported as a failure.
var ErrDone = errors.New("done")

// Dial opens the websocket. A timeout of 0 uses DefaultTimeout.
func Dial(ctx context.Context, url string, timeout time.Duration) (*websocket.Conn, error) {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	dialer := &websocket.Dialer{
		Proxy:            http.ProxyFromEnvironment,
		HandshakeTimeout: timeout,
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	conn, _, err := dialer.DialContext(ctx, url, nil)
	if err != nil {
		return nil, xerrors.Errorf("failed to dial %s: %w", url, err)
	}
	return conn, nil
}

func readAndHandleMessage(conn *websocket.Conn, handler Handler) error {
	mt, p, err := conn.ReadMessage()
	if err != nil {
		if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
			return ErrDone
		}
		return xerrors.Errorf("failed to read message: %w", err)
	}
	if mt != websocket.TextMessage {
		return nil
	}
	env, err := protocol.Decode(p)
	if err != nil {
		return xerrors.Errorf("failed to decode message: %w", err)
	}
	return handler(env)
}

// Sync reads envelopes into handler and writes frames from outbox until ctx is done, the relay goes away, the
// handler fails or outbox is closed.
func Sync(ctx context.Context, log zerolog.Logger, conn *websocket.Conn, handler Handler, outbox <-chan []byte) error {
	log.Debug().Str("remote", conn.RemoteAddr().String()).Msg("syncing")

	stop := make(chan struct{})
	var once sync.Once
	var result error
	finish := func(err error) {
		once.Do(func() {
			result = err
			close(stop)
			_ = conn.Close()
		})
	}

	wg := new(sync.WaitGroup)
	wg.Add(1)
	go func() {
		defer wg.Done()
		for {
			if err := readAndHandleMessage(conn, handler); err != nil {
				finish(err)
				return
			}
		}
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		for {
			select {
			case frame, ok := <-outbox:
				if !ok {
					_ = conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
					finish(nil)
					return
				}
				if err := conn.WriteMessage(websocket.TextMessage, frame); err != nil {
					finish(xerrors.Errorf("failed to write message: %w", err))
					return
				}
			case <-ctx.Done():
				finish(nil)
				return
			case <-stop:
				return
			}
		}
	}()

	wg.Wait()
	if errors.Is(result, ErrDone) {
		return nil
	}
	return result
}

// Upsert encodes a request for the relay. A single slice can't be approximate.
func Upsert(raw pizza.RawRequest) ([]byte, error) {
	if raw.Slices == 1 {
		raw.Approx = false
	}
	raw.Color = ""
	return protocol.Encode(protocol.EventUpsert, raw)
}

func Delete(name string) ([]byte, error) {
	return protocol.Encode(protocol.EventDelete, protocol.Deletion{Name: name})
}
