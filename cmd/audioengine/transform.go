package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/drgolem/audioengine/pkg/audiobuffer"
	"github.com/drgolem/audioengine/pkg/audioformat"
	"github.com/drgolem/audioengine/pkg/decoder"
	"github.com/drgolem/audioengine/pkg/decoders"
	"github.com/drgolem/audioengine/pkg/resample"

	wav "github.com/youpy/go-wav"

	"github.com/spf13/cobra"
)

var (
	transformNewRate int
	transformOut     string
	transformMono    bool
)

var transformCmd = &cobra.Command{
	Use:   "transform <input_file>",
	Short: "Transform an audio file's sample rate and write WAV output",
	Long: `Decodes the whole input file, optionally resamples it with SoXR, optionally
downmixes to mono, and writes 16-bit PCM WAV output.

Examples:
  audioengine transform input.mp3 --new-samplerate 48000 --out output.wav
  audioengine transform input.flac --new-samplerate 44100 --mono --out output.wav`,
	Args: cobra.ExactArgs(1),
	Run:  runTransform,
}

func init() {
	rootCmd.AddCommand(transformCmd)

	transformCmd.Flags().IntVar(&transformNewRate, "new-samplerate", 48000, "Target sample rate in Hz")
	transformCmd.Flags().StringVar(&transformOut, "out", "out_transformed.wav", "Output WAV file path")
	transformCmd.Flags().BoolVar(&transformMono, "mono", false, "Convert output to mono (average channels)")
}

func runTransform(cmd *cobra.Command, args []string) {
	inFileName := args[0]

	if _, err := os.Stat(inFileName); os.IsNotExist(err) {
		slog.Error("input file not found", "path", inFileName)
		os.Exit(1)
	}
	if transformNewRate <= 0 || transformNewRate > 384000 {
		slog.Error("invalid sample rate", "rate", transformNewRate)
		os.Exit(1)
	}

	dec, err := decoders.New(inFileName)
	if err != nil {
		slog.Error("unsupported file", "error", err)
		os.Exit(1)
	}
	if err := dec.Open(); err != nil {
		slog.Error("failed to open decoder", "error", err)
		os.Exit(1)
	}
	defer dec.Close()

	format := dec.OutputFormat()
	channels := format.Channels
	bitsPerSample := format.BitsPerChannel

	slog.Info("transform starting",
		"input", inFileName,
		"input_rate", format.SampleRate,
		"channels", channels,
		"bits", bitsPerSample,
		"output_rate", transformNewRate,
		"mono", transformMono,
		"output", transformOut)

	audioData, totalFrames, err := decodeAll(dec, format.Channels, bitsPerSample)
	if err != nil {
		slog.Error("decode failed", "error", err)
		os.Exit(1)
	}
	slog.Info("decode complete", "frames", totalFrames)

	resampled, err := resample.PCM16(audioData, int(format.SampleRate), transformNewRate, channels)
	if err != nil {
		slog.Error("resample failed", "error", err)
		os.Exit(1)
	}

	outChannels := channels
	outData := resampled
	if transformMono && channels > 1 {
		outData = resample.ToMono16(resampled, channels)
		outChannels = 1
	}

	outFrames := len(outData) / (outChannels * 2)
	if err := writeWAV(transformOut, outData, uint32(outFrames), uint16(outChannels), uint32(transformNewRate), 16); err != nil {
		slog.Error("failed to write output", "error", err)
		os.Exit(1)
	}

	slog.Info("transform complete", "output_frames", outFrames, "output", transformOut)
}

// decodeAll reads every frame from dec into one interleaved PCM buffer
// at bitsPerSample bits per sample. Intended for small offline
// conversions, not the real-time path, which never buffers a whole file.
func decodeAll(dec decoder.Decoder, channels, bitsPerSample int) ([]byte, int64, error) {
	const chunkFrames = 8192
	bytesPerSample := bitsPerSample / 8
	frameBytes := channels * bytesPerSample

	format := audioformat.Format{
		FormatID:       audioformat.PCM,
		SampleRate:     dec.OutputFormat().SampleRate,
		Channels:       channels,
		BitsPerChannel: bitsPerSample,
	}
	buf := audiobuffer.New(format, chunkFrames)
	interleaved := make([]byte, chunkFrames*frameBytes)

	var out []byte
	var total int64

	for {
		n, err := dec.ReadAudio(buf, chunkFrames)
		if err != nil {
			return out, total, err
		}
		if n == 0 {
			break
		}
		frames := buf.InterleaveInto(interleaved)
		out = append(out, interleaved[:frames*frameBytes]...)
		total += int64(n)
	}

	return out, total, nil
}

func writeWAV(path string, data []byte, numFrames uint32, channels uint16, sampleRate uint32, bitsPerSample uint16) error {
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0644)
	if err != nil {
		return fmt.Errorf("create output: %w", err)
	}
	defer f.Close()

	w := wav.NewWriter(f, numFrames, channels, sampleRate, bitsPerSample)
	_, err = w.Write(data)
	return err
}
