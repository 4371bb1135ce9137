package audioio

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"
)

func stationConfig(timeout time.Duration) Config {
	cfg := DefaultConfig()
	cfg.StartTimeout = timeout
	return cfg
}

func TestStationSource_StartWaitsForFirstChunk(t *testing.T) {
	src := NewStationSource(stationConfig(time.Second), nil)
	defer src.Close()

	go func() {
		// Push until Start has flipped the source to running.
		for i := 0; i < 100; i++ {
			src.Push(AudioChunk{Samples: make([]int16, 480), SampleRate: 48000, Channels: 1})
			if src.Stats().ChunksRead > 0 {
				return
			}
			time.Sleep(5 * time.Millisecond)
		}
	}()

	if err := src.Start(context.Background()); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	chunk, err := src.Read(context.Background())
	if err != nil {
		t.Fatalf("Read failed: %v", err)
	}
	if chunk.SampleRate != 48000 || chunk.Channels != 1 {
		t.Errorf("chunk format = %d Hz x %d", chunk.SampleRate, chunk.Channels)
	}
}

func TestStationSource_NoStation(t *testing.T) {
	src := NewStationSource(stationConfig(20*time.Millisecond), nil)
	defer src.Close()

	err := src.Start(context.Background())
	if !errors.Is(err, ErrNoStation) {
		t.Fatalf("Start = %v, want ErrNoStation", err)
	}
	if src.Stats().Running {
		t.Error("source should be stopped after a failed start")
	}

	// A failed start can be retried.
	src.cfg.StartTimeout = time.Second
	go func() {
		time.Sleep(5 * time.Millisecond)
		for src.Stats().ChunksRead == 0 {
			src.Push(AudioChunk{Samples: make([]int16, 10), SampleRate: 48000, Channels: 1})
			time.Sleep(time.Millisecond)
		}
	}()
	if err := src.Start(context.Background()); err != nil {
		t.Fatalf("retry Start failed: %v", err)
	}
}

func TestStationSource_PushResamplesAndDownmixes(t *testing.T) {
	src := NewStationSource(stationConfig(0), nil)
	defer src.Close()

	if err := src.Start(context.Background()); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	// 10ms of stereo at 24 kHz.
	src.Push(AudioChunk{Samples: make([]int16, 480), SampleRate: 24000, Channels: 2})

	chunk, err := src.Read(context.Background())
	if err != nil {
		t.Fatalf("Read failed: %v", err)
	}
	if len(chunk.Samples) != 480 {
		t.Errorf("got %d samples, want 480", len(chunk.Samples))
	}
	if chunk.Duration() != 10*time.Millisecond {
		t.Errorf("duration = %v, want 10ms", chunk.Duration())
	}
}

func TestStationSource_DropsWhileStopped(t *testing.T) {
	src := NewStationSource(stationConfig(0), nil)
	defer src.Close()

	src.Push(AudioChunk{Samples: make([]int16, 10), SampleRate: 48000, Channels: 1})
	if got := src.Stats().ChunksRead; got != 0 {
		t.Errorf("chunks read while stopped = %d, want 0", got)
	}
}

func TestStationSource_StopEndsRead(t *testing.T) {
	src := NewStationSource(stationConfig(0), nil)
	if err := src.Start(context.Background()); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	src.Stop()

	if _, err := src.Read(context.Background()); err != io.EOF {
		t.Errorf("Read after Stop = %v, want io.EOF", err)
	}
	src.Close()
	if err := src.Start(context.Background()); !errors.Is(err, ErrClosed) {
		t.Errorf("Start after Close = %v, want ErrClosed", err)
	}
}
