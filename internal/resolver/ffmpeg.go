/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package resolver provides an FFmpeg-backed media.Resolver for locators
// that are direct URLs or local files. Decoding, seeking and the audio
// filter chain (volume, tempo, normalization, EQ) all run inside one
// ffmpeg process emitting raw S16LE PCM on stdout.
package resolver

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"strconv"
	"strings"

	"github.com/rs/zerolog"

	"github.com/friendsincode/bragi/internal/audio"
	"github.com/friendsincode/bragi/internal/media"
	"github.com/friendsincode/bragi/internal/track"
)

// Named filter presets applied on top of the per-session EQ.
var filterPresets = map[string]string{
	"nightcore":  "asetrate=48000*1.25,aresample=48000",
	"vaporwave":  "asetrate=48000*0.8,aresample=48000",
	"bassboost":  "bass=g=10:f=110:w=0.6",
	"karaoke":    "pan=stereo|c0=c0-c1|c1=c1-c0",
	"tremolo":    "tremolo=f=8:d=0.8",
	"distortion": "acrusher=level_in=4:level_out=4:bits=8:mode=log",
}

// FilterNames lists the accepted named filter presets.
func FilterNames() []string {
	names := make([]string, 0, len(filterPresets))
	for name := range filterPresets {
		names = append(names, name)
	}
	return names
}

// Resolver shells out to ffmpeg. It only understands locators ffmpeg can
// open directly; site-specific extraction sits behind a different
// media.Resolver implementation.
type Resolver struct {
	bin string
	log zerolog.Logger
}

func New(bin string, log zerolog.Logger) *Resolver {
	if bin == "" {
		bin = "ffmpeg"
	}
	return &Resolver{bin: bin, log: log.With().Str("component", "resolver").Logger()}
}

// Resolve validates the locator and returns a Stream around it. The
// locator doubles as the cached ref since no extraction step is involved.
func (r *Resolver) Resolve(ctx context.Context, t track.Track) (media.Stream, error) {
	if strings.TrimSpace(t.Locator) == "" {
		return nil, &media.ResolveError{Locator: t.Locator, Err: errors.New("empty locator")}
	}
	return &ffmpegStream{resolver: r, track: t, input: t.Locator}, nil
}

// Rebuild reopens a stream from a cached ref without re-resolving.
func (r *Resolver) Rebuild(ctx context.Context, t track.Track, cachedRef string) (media.Stream, error) {
	if strings.TrimSpace(cachedRef) == "" {
		return nil, &media.ResolveError{Locator: t.Locator, Err: errors.New("empty cached ref")}
	}
	return &ffmpegStream{resolver: r, track: t, input: cachedRef}, nil
}

type ffmpegStream struct {
	resolver *Resolver
	track    track.Track
	input    string
}

func (s *ffmpegStream) Track() track.Track { return s.track }
func (s *ffmpegStream) CachedRef() string  { return s.input }

// Open starts the decode process. Live sources ignore SeekSeconds.
func (s *ffmpegStream) Open(ctx context.Context, opts media.Options) (audio.Producer, error) {
	args := []string{"-hide_banner", "-loglevel", "error"}
	if opts.SeekSeconds > 0 && !opts.IsLive {
		args = append(args, "-ss", strconv.FormatFloat(opts.SeekSeconds, 'f', 3, 64))
	}
	args = append(args,
		"-i", s.input,
		"-vn",
	)
	if chain := buildFilterChain(opts); chain != "" {
		args = append(args, "-af", chain)
	}
	args = append(args,
		"-f", "s16le",
		"-ar", strconv.Itoa(audio.SampleRate),
		"-ac", strconv.Itoa(audio.Channels),
		"pipe:1",
	)

	// The decoder outlives the open call's ctx; Close terminates it.
	cmdCtx, cancel := context.WithCancel(context.Background())
	cmd := exec.CommandContext(cmdCtx, s.resolver.bin, args...)
	cmd.Stderr = nil

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		cancel()
		return nil, fmt.Errorf("decoder stdout pipe: %w", err)
	}
	if err := cmd.Start(); err != nil {
		cancel()
		return nil, &media.ResolveError{Locator: s.input, Err: fmt.Errorf("start decoder: %w", err)}
	}

	s.resolver.log.Debug().Int("pid", cmd.Process.Pid).Str("input", s.input).Msg("decoder started")

	return &pcmProducer{cmd: cmd, stdout: stdout, cancel: cancel}, nil
}

// buildFilterChain assembles the -af argument from the playback options.
// Order matters: EQ and presets shape the signal before volume and tempo.
func buildFilterChain(opts media.Options) string {
	var filters []string

	for band, gain := range opts.EQGains {
		if gain == 0 {
			continue
		}
		// 10 octave bands starting at 31.25 Hz.
		freq := 31.25 * float64(int(1)<<band)
		filters = append(filters, fmt.Sprintf("equalizer=f=%.2f:t=o:w=1:g=%.1f", freq, gain))
	}
	if preset, ok := filterPresets[opts.FilterName]; ok {
		filters = append(filters, preset)
	}
	if opts.Normalize {
		filters = append(filters, "loudnorm=I=-16:TP=-1.5:LRA=11")
	}
	if opts.Speed > 0 && opts.Speed != 1.0 {
		filters = append(filters, tempoFilters(opts.Speed)...)
	}
	if opts.Volume > 0 && opts.Volume != 1.0 {
		filters = append(filters, fmt.Sprintf("volume=%.3f", opts.Volume))
	}

	return strings.Join(filters, ",")
}

// tempoFilters chains atempo stages, each within ffmpeg's [0.5, 2.0]
// per-stage limit, to reach an arbitrary speed factor.
func tempoFilters(speed float64) []string {
	var stages []string
	for speed > 2.0 {
		stages = append(stages, "atempo=2.0")
		speed /= 2.0
	}
	for speed < 0.5 {
		stages = append(stages, "atempo=0.5")
		speed /= 0.5
	}
	stages = append(stages, fmt.Sprintf("atempo=%.4f", speed))
	return stages
}

// pcmProducer reads fixed 20ms frames from the decoder's stdout.
type pcmProducer struct {
	cmd    *exec.Cmd
	stdout io.ReadCloser
	cancel context.CancelFunc
	done   bool
}

func (p *pcmProducer) ReadFrame() ([]byte, error) {
	if p.done {
		return nil, io.EOF
	}
	buf := make([]byte, audio.FrameBytes)
	n, err := io.ReadFull(p.stdout, buf)
	switch {
	case err == nil:
		return buf, nil
	case errors.Is(err, io.ErrUnexpectedEOF):
		// Short final frame; the next read reports EOF.
		p.done = true
		return buf[:n], nil
	case errors.Is(err, io.EOF):
		p.done = true
		return nil, io.EOF
	default:
		p.done = true
		return nil, fmt.Errorf("read pcm: %w", err)
	}
}

func (p *pcmProducer) Close() error {
	p.done = true
	if p.cancel != nil {
		p.cancel()
	}
	if p.stdout != nil {
		_ = p.stdout.Close()
	}
	if p.cmd != nil && p.cmd.Process != nil {
		_ = p.cmd.Process.Kill()
	}
	if p.cmd != nil {
		_ = p.cmd.Wait()
	}
	return nil
}
