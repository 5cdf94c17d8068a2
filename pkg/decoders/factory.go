// Package decoders selects a concrete decoder.Decoder by file
// extension, mirroring the teacher's own extension-switch factory but
// returning the new, unopened decoder.Decoder interface.
package decoders

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/drgolem/audioengine/pkg/decoder"
	"github.com/drgolem/audioengine/pkg/decoders/flac"
	"github.com/drgolem/audioengine/pkg/decoders/g711"
	"github.com/drgolem/audioengine/pkg/decoders/mp3"
	"github.com/drgolem/audioengine/pkg/decoders/opus"
	"github.com/drgolem/audioengine/pkg/decoders/vorbis"
	"github.com/drgolem/audioengine/pkg/decoders/wav"
)

// New returns a Decoder appropriate for path's extension. The caller is
// responsible for calling Open.
func New(path string) (decoder.Decoder, error) {
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".flac", ".fla":
		return flac.NewDecoder(path), nil
	case ".mp3":
		return mp3.NewDecoder(path), nil
	case ".wav":
		return wav.NewDecoder(path), nil
	case ".opus":
		return opus.NewDecoder(path), nil
	case ".ogg":
		return vorbis.NewDecoder(path), nil
	case ".alaw":
		return g711.NewDecoder(path, g711.ALaw, 8000), nil
	case ".ulaw":
		return g711.NewDecoder(path, g711.ULaw, 8000), nil
	default:
		return nil, fmt.Errorf("%w: unrecognized extension %q", decoder.ErrUnsupportedFormat, ext)
	}
}
