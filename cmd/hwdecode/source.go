package main

import (
	"bufio"
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"syscall"
	"time"

	zmq "github.com/pebbe/zmq4"
	"github.com/spf13/afero"
)

const (
	flagKeyframe = 1 << 0
	flagHeader   = 1 << 1
)

// maxMessageSize bounds one captured message; a larger length prefix means
// the capture is corrupt.
const maxMessageSize = 64 << 20

var errMessageTooLarge = errors.New("source: message too large")

// Packet is one compressed unit as it arrives from a source.
type Packet struct {
	Seq      uint32
	Keyframe bool
	Header   bool
	Data     []byte
}

type PacketSource interface {
	Next(ctx context.Context) (Packet, error)
	Close() error
}

// Wire layout shared by both sources: flags(1) seq(4, big endian) payload.
func parsePacket(msg []byte) (Packet, error) {
	if len(msg) < 5 {
		return Packet{}, fmt.Errorf("source: short message (%d bytes)", len(msg))
	}
	return Packet{
		Keyframe: msg[0]&flagKeyframe != 0,
		Header:   msg[0]&flagHeader != 0,
		Seq:      binary.BigEndian.Uint32(msg[1:5]),
		Data:     msg[5:],
	}, nil
}

func encodePacket(p Packet) []byte {
	msg := make([]byte, 5+len(p.Data))
	if p.Keyframe {
		msg[0] |= flagKeyframe
	}
	if p.Header {
		msg[0] |= flagHeader
	}
	binary.BigEndian.PutUint32(msg[1:5], p.Seq)
	copy(msg[5:], p.Data)
	return msg
}

type zmqSource struct {
	context    *zmq.Context
	subscriber *zmq.Socket
}

func newZMQSource(endpoint string) (s *zmqSource, err error) {
	s = &zmqSource{}
	if s.context, err = zmq.NewContext(); err != nil {
		return nil, fmt.Errorf("source: new zmq context failed: %w", err)
	}
	defer func() {
		if err != nil {
			s.Close()
		}
	}()

	if s.subscriber, err = s.context.NewSocket(zmq.SUB); err != nil {
		return nil, fmt.Errorf("source: new zmq socket failed: %w", err)
	}
	if err = s.subscriber.SetRcvtimeo(250 * time.Millisecond); err != nil {
		return nil, err
	}
	if err = s.subscriber.SetSubscribe(""); err != nil {
		return nil, err
	}
	if err = s.subscriber.Connect(endpoint); err != nil {
		return nil, fmt.Errorf("source: zmq connect to %s failed: %w", endpoint, err)
	}
	return s, nil
}

func (s *zmqSource) Next(ctx context.Context) (Packet, error) {
	for {
		if err := ctx.Err(); err != nil {
			return Packet{}, err
		}
		msg, err := s.subscriber.RecvBytes(0)
		if err != nil {
			if zmq.AsErrno(err) == zmq.Errno(syscall.EAGAIN) {
				continue
			}
			return Packet{}, fmt.Errorf("source: zmq receive failed: %w", err)
		}
		return parsePacket(msg)
	}
}

func (s *zmqSource) Close() error {
	var err error
	if s.subscriber != nil {
		err = s.subscriber.Close()
		s.subscriber = nil
	}
	if s.context != nil {
		if terr := s.context.Term(); err == nil {
			err = terr
		}
		s.context = nil
	}
	return err
}

// fileSource reads a capture of length-prefixed messages.
type fileSource struct {
	f afero.File
	r *bufio.Reader
}

func newFileSource(fs afero.Fs, path string) (*fileSource, error) {
	f, err := fs.Open(path)
	if err != nil {
		return nil, fmt.Errorf("source: %w", err)
	}
	return &fileSource{f: f, r: bufio.NewReader(f)}, nil
}

func (s *fileSource) Next(ctx context.Context) (Packet, error) {
	if err := ctx.Err(); err != nil {
		return Packet{}, err
	}
	var size uint32
	if err := binary.Read(s.r, binary.BigEndian, &size); err != nil {
		return Packet{}, err
	}
	if size > maxMessageSize {
		return Packet{}, fmt.Errorf("%w (%d bytes)", errMessageTooLarge, size)
	}
	msg := make([]byte, size)
	if _, err := io.ReadFull(s.r, msg); err != nil {
		if errors.Is(err, io.EOF) {
			err = io.ErrUnexpectedEOF
		}
		return Packet{}, fmt.Errorf("source: truncated message: %w", err)
	}
	return parsePacket(msg)
}

func (s *fileSource) Close() error {
	return s.f.Close()
}

func writeCapture(w io.Writer, packets []Packet) error {
	for _, p := range packets {
		msg := encodePacket(p)
		if err := binary.Write(w, binary.BigEndian, uint32(len(msg))); err != nil {
			return err
		}
		if _, err := w.Write(msg); err != nil {
			return err
		}
	}
	return nil
}
