package events

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	zmq "github.com/pebbe/zmq4"
	"github.com/rs/zerolog"
	"github.com/vmihailenco/msgpack/v5"
)

// ZMQPublisher sends events to the mesh bus over a ZMQ PUB socket.
// Each message carries three frames: subject, big-endian sequence number,
// msgpack payload.
type ZMQPublisher struct {
	mu       sync.Mutex // zmq sockets are not goroutine-safe
	socket   *zmq.Socket
	endpoint string
	seqNum   uint64
	log      zerolog.Logger
}

// NewZMQPublisher connects a PUB socket to endpoint (e.g. "tcp://bus:5557"),
// retrying up to retries additional times a second apart.
func NewZMQPublisher(endpoint string, retries uint, log zerolog.Logger) (*ZMQPublisher, error) {
	socket, err := zmq.NewSocket(zmq.PUB)
	if err != nil {
		return nil, fmt.Errorf("create ZMQ PUB socket: %w", err)
	}

	for i := uint(0); i <= retries; i++ {
		err = socket.Connect(endpoint)
		if err == nil {
			return &ZMQPublisher{socket: socket, endpoint: endpoint, log: log}, nil
		}
		if i < retries {
			time.Sleep(1 * time.Second)
		}
	}

	errClose := socket.Close()
	return nil, errors.Join(
		fmt.Errorf("connect to %s after %d attempts: %w", endpoint, retries+1, err),
		errClose,
	)
}

// Publish is fire-and-forget: failures are logged and swallowed.
func (p *ZMQPublisher) Publish(subject string, ev Event) {
	var payload bytes.Buffer
	enc := msgpack.NewEncoder(&payload)
	if err := enc.Encode(ev); err != nil {
		p.log.Warn().Err(err).Str("subject", subject).Msg("event encode failed")
		return
	}

	seq := atomic.AddUint64(&p.seqNum, 1)
	seqBytes := make([]byte, 8)
	binary.BigEndian.PutUint64(seqBytes, seq)

	p.mu.Lock()
	_, err := p.socket.SendMessage(subject, seqBytes, payload.Bytes())
	p.mu.Unlock()
	if err != nil {
		p.log.Warn().Err(err).Str("subject", subject).Uint64("seq", seq).Msg("event publish failed")
		return
	}
	p.log.Debug().Str("subject", subject).Uint64("seq", seq).
		Str("provider", ev.Provider).Str("model", ev.ModelID).Msg("event published")
}

// Close releases the socket.
func (p *ZMQPublisher) Close() error {
	if p.socket != nil {
		return p.socket.Close()
	}
	return nil
}
