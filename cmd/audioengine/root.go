// Command audioengine is a CLI front end for pkg/coordinator: play audio
// files through the real-time engine, or transform them offline with
// pkg/resample. Grounded on the teacher's own cmd/root.go command tree.
package main

import (
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "audioengine",
	Short: "Gapless audio playback engine",
	Long: `audioengine is a real-time audio playback engine built around a
decoder/renderer coordinator: a lock-free ring buffer feeds a PortAudio
callback from a background decoder thread, with gapless handoff between
back-to-back tracks of compatible format.

Commands:
  - play: enqueue and play one or more audio files
  - transform: offline sample-rate conversion to WAV

Supported input formats: FLAC, MP3, WAV, Ogg Vorbis, Ogg Opus, raw G.711.`,
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
