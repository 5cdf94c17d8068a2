package main

import (
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/drgolem/audioengine/pkg/audioformat"
	"github.com/drgolem/audioengine/pkg/coordinator"
	"github.com/drgolem/audioengine/pkg/decoders"
	portaudiosink "github.com/drgolem/audioengine/pkg/sinks/portaudio"

	"github.com/spf13/cobra"
)

var (
	playDeviceIdx int
	playFrames    int
	playVerbose   bool
)

var playCmd = &cobra.Command{
	Use:   "play <audio_file> [more_files...]",
	Short: "Play one or more audio files gaplessly",
	Long: `Enqueues each file in order and plays them back to back. Files whose
format matches the previous track's (sample rate, channel count, format
family, channel layout) play with no buffer reset between them; a format change
reconfigures the ring buffer and may introduce a brief gap.`,
	Args: cobra.MinimumNArgs(1),
	Run:  runPlay,
}

func init() {
	rootCmd.AddCommand(playCmd)

	playCmd.Flags().IntVarP(&playDeviceIdx, "device", "d", 0, "Audio output device index")
	playCmd.Flags().IntVarP(&playFrames, "frames", "f", 1024, "Audio frames per buffer")
	playCmd.Flags().BoolVarP(&playVerbose, "verbose", "v", false, "Verbose output (debug logging)")
}

func runPlay(cmd *cobra.Command, paths []string) {
	logLevel := slog.LevelInfo
	if playVerbose {
		logLevel = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: logLevel})))

	sink := portaudiosink.New(playDeviceIdx, playFrames)
	if err := sink.Open(); err != nil {
		slog.Error("failed to open audio device", "error", err)
		os.Exit(1)
	}

	c := coordinator.New(sink, coordinator.DefaultOptions())

	doneCh := make(chan struct{})
	var lastID string

	c.SetCallbacks(coordinator.Callbacks{
		DecodingStarted:  func(id string) { slog.Debug("decoding started", "id", id) },
		DecodingFinished: func(id string) { slog.Debug("decoding finished", "id", id) },
		RenderingStarted: func(id string, hostTime int64) { fmt.Printf("now playing: %s\n", id) },
		RenderingFinished: func(id string, hostTime int64) {
			slog.Debug("rendering finished", "id", id)
			if id == lastID {
				close(doneCh)
			}
		},
		DecoderError: func(id string, err error) {
			slog.Error("decoder error", "id", id, "error", err)
			if id == lastID {
				select {
				case <-doneCh:
				default:
					close(doneCh)
				}
			}
		},
		FormatMismatch: func(current, next audioformat.Format) {
			slog.Info("format change, reconfiguring ring buffer", "from", current.String(), "to", next.String())
		},
		Error: func(err error) { slog.Error("coordinator error", "error", err) },
	})

	for _, path := range paths {
		dec, err := decoders.New(path)
		if err != nil {
			slog.Error("unsupported file", "path", path, "error", err)
			os.Exit(1)
		}
		id, err := c.Enqueue(dec, false)
		if err != nil {
			slog.Error("failed to enqueue", "path", path, "error", err)
			os.Exit(1)
		}
		lastID = id
		fmt.Printf("queued %s as %s\n", path, id)
	}

	if err := c.Play(); err != nil {
		slog.Error("failed to start playback", "error", err)
		os.Exit(1)
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	ticker := time.NewTicker(2 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-doneCh:
			_ = c.Close()
			return
		case <-sigCh:
			fmt.Println("\ninterrupted")
			_ = c.Close()
			return
		case <-ticker.C:
			if pos, ok := c.PlaybackPosition(); ok {
				stats := c.Stats()
				fmt.Printf("state=%s frame=%d underruns=%d\n", c.State(), pos, stats.Underruns)
			}
		}
	}
}
