package main

import (
	"bytes"
	"context"
	"io"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParsePacket(t *testing.T) {
	p, err := parsePacket([]byte{flagKeyframe | flagHeader, 0, 0, 1, 2, 0xaa, 0xbb})
	require.NoError(t, err)
	assert.True(t, p.Keyframe)
	assert.True(t, p.Header)
	assert.Equal(t, uint32(258), p.Seq)
	assert.Equal(t, []byte{0xaa, 0xbb}, p.Data)

	_, err = parsePacket([]byte{0, 0, 0})
	assert.Error(t, err)
}

func TestFileSourceReadsCapture(t *testing.T) {
	fs := afero.NewMemMapFs()
	packets := []Packet{
		{Seq: 0, Header: true, Data: []byte{1, 2}},
		{Seq: 1, Keyframe: true, Data: []byte{3, 4, 5}},
		{Seq: 2, Data: []byte{6}},
	}
	var buf bytes.Buffer
	require.NoError(t, writeCapture(&buf, packets))
	require.NoError(t, afero.WriteFile(fs, "/cap.pkts", buf.Bytes(), 0o644))

	src, err := newFileSource(fs, "/cap.pkts")
	require.NoError(t, err)
	defer src.Close()

	var got []Packet
	for {
		p, err := src.Next(context.Background())
		if err == io.EOF {
			break
		}
		require.NoError(t, err)
		got = append(got, p)
	}
	assert.Equal(t, packets, got)
}

func TestFileSourceTruncated(t *testing.T) {
	fs := afero.NewMemMapFs()
	var buf bytes.Buffer
	require.NoError(t, writeCapture(&buf, []Packet{{Seq: 7, Data: []byte{1, 2, 3, 4}}}))
	require.NoError(t, afero.WriteFile(fs, "/cap.pkts", buf.Bytes()[:buf.Len()-2], 0o644))

	src, err := newFileSource(fs, "/cap.pkts")
	require.NoError(t, err)
	defer src.Close()

	_, err = src.Next(context.Background())
	assert.ErrorIs(t, err, io.ErrUnexpectedEOF)
}

func TestFileSourceRejectsOversizedMessage(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "/cap.pkts", []byte{0xff, 0xff, 0xff, 0xff, 0, 0, 0, 0, 1}, 0o644))

	src, err := newFileSource(fs, "/cap.pkts")
	require.NoError(t, err)
	defer src.Close()

	_, err = src.Next(context.Background())
	assert.ErrorIs(t, err, errMessageTooLarge)
}

func TestFileSourceCancelled(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "/cap.pkts", nil, 0o644))
	src, err := newFileSource(fs, "/cap.pkts")
	require.NoError(t, err)
	defer src.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = src.Next(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestFileSourceMissing(t *testing.T) {
	_, err := newFileSource(afero.NewMemMapFs(), "/nope.pkts")
	assert.Error(t, err)
}
