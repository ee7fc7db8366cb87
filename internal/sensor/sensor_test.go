package sensor

import (
	"errors"
	"net"
	"strings"
	"testing"
	"time"

	"github.com/verte-zerg/kicktrain/internal/model"
)

type fakeMessage struct {
	payload []byte
}

func (m fakeMessage) Duplicate() bool { return false }
func (m fakeMessage) Qos() byte { return 0 }
func (m fakeMessage) Retained() bool { return false }
func (m fakeMessage) Topic() string { return "kicktrain/sensor" }
func (m fakeMessage) MessageID() uint16 { return 1 }
func (m fakeMessage) Payload() []byte { return m.payload }
func (m fakeMessage) Ack() {}

func TestDecode(t *testing.T) {
	cases := []struct {
		payload string
		want    Event
	}{
		{`{"segment":3}`, Event{Kind: KindShot, Segment: 3}},
		{`{"miss":true}`, Event{Kind: KindMiss}},
		{`{"goal":true}`, Event{Kind: KindGoal}},
	}
	for _, tc := range cases {
		got, err := Decode([]byte(tc.payload))
		if err != nil {
			t.Fatalf("%s: %v", tc.payload, err)
		}
		if got != tc.want {
			t.Fatalf("%s: expected %+v, got %+v", tc.payload, tc.want, got)
		}
	}
	if _, err := Decode([]byte(`{"segment":6}`)); err == nil {
		t.Fatalf("expected out-of-range segment to fail")
	}
	if _, err := Decode([]byte(`{}`)); !errors.Is(err, ErrEmptyMessage) {
		t.Fatalf("expected ErrEmptyMessage, got %v", err)
	}
	if _, err := Decode([]byte(`segment`)); err == nil {
		t.Fatalf("expected malformed payload to fail")
	}
}

func TestEncodeMatchesDecode(t *testing.T) {
	payload, err := Encode(Event{Kind: KindShot, Segment: model.Segment(5)})
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	if string(payload) != `{"segment":5}` {
		t.Fatalf("unexpected payload %s", payload)
	}
	if _, err := Encode(Event{Kind: KindShot}); err == nil {
		t.Fatalf("expected invalid segment to fail")
	}
}

func TestHandleQueuesEvents(t *testing.T) {
	b := newBridge("kicktrain/sensor", 0)
	b.handle(nil, fakeMessage{payload: []byte(`{"segment":2}`)})
	b.handle(nil, fakeMessage{payload: []byte(`not json`)})
	b.handle(nil, fakeMessage{payload: []byte(`{"goal":true}`)})

	first := <-b.Events()
	second := <-b.Events()
	if first != (Event{Kind: KindShot, Segment: 2}) || second.Kind != KindGoal {
		t.Fatalf("unexpected events: %+v %+v", first, second)
	}
	select {
	case ev := <-b.Events():
		t.Fatalf("unexpected extra event %+v", ev)
	default:
	}
}

func TestHandleDropsWhenFull(t *testing.T) {
	b := newBridge("kicktrain/sensor", 0)
	for i := 0; i < cap(b.events)+5; i++ {
		b.handle(nil, fakeMessage{payload: []byte(`{"miss":true}`)})
	}
	if len(b.events) != cap(b.events) {
		t.Fatalf("expected full queue, got %d", len(b.events))
	}
}

func TestConnectTimeoutReleasesConnection(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	defer ln.Close()
	accepted := make(chan net.Conn, 1)
	go func() {
		conn, err := ln.Accept()
		if err == nil {
			accepted <- conn
		}
	}()

	_, err = Connect(Options{
		Broker:   "tcp://" + ln.Addr().String(),
		Topic:    "kicktrain/sensor",
		ClientID: "kicktrain-test",
		Timeout:  200 * time.Millisecond,
	})
	if err == nil || !strings.Contains(err.Error(), "failed to connect") {
		t.Fatalf("expected connect error, got %v", err)
	}

	select {
	case conn := <-accepted:
		defer conn.Close()
		_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
		buf := make([]byte, 256)
		for {
			if _, err := conn.Read(buf); err != nil {
				var ne net.Error
				if errors.As(err, &ne) && ne.Timeout() {
					t.Fatalf("client kept the connection open after the timeout")
				}
				return
			}
		}
	case <-time.After(5 * time.Second):
		t.Fatalf("client never dialed the broker")
	}
}
