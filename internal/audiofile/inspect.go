// Package audiofile reads the embedded stream format of local audio files.
// Only header metadata is read; no audio is decoded.
package audiofile

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/go-audio/aiff"
	"github.com/go-audio/wav"
	"github.com/tphakala/flac"

	"github.com/morpheus1988wer/HertzBridge/internal/errors"
)

// Info is the embedded format of a local audio file.
type Info struct {
	SampleRate float64
	BitDepth   int
	Channels   int
}

// Inspector reads a local file's embedded audio format.
type Inspector interface {
	Inspect(path string) (*Info, error)
}

// FileInspector dispatches on file extension to the matching header reader.
type FileInspector struct{}

// NewFileInspector returns an extension-dispatching inspector.
func NewFileInspector() *FileInspector {
	return &FileInspector{}
}

// Inspect returns the file's embedded sample rate and bit depth.
func (fi *FileInspector) Inspect(path string) (*Info, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, errors.New(err).
			Component("audiofile").
			Category(errors.CategoryFileIO).
			Context("path", path).
			Build()
	}
	defer file.Close()

	var info Info
	switch strings.ToLower(filepath.Ext(path)) {
	case ".wav", ".wave":
		info, err = readWAVInfo(file)
	case ".flac":
		info, err = readFLACInfo(file)
	case ".aif", ".aiff":
		info, err = readAIFFInfo(file)
	default:
		return nil, errors.Newf("unsupported audio file type: %s", filepath.Ext(path)).
			Component("audiofile").
			Category(errors.CategoryFileParsing).
			Context("path", path).
			Build()
	}
	if err != nil {
		return nil, errors.New(err).
			Component("audiofile").
			Category(errors.CategoryFileParsing).
			Context("path", path).
			Build()
	}
	return &info, nil
}

func readWAVInfo(file *os.File) (Info, error) {
	decoder := wav.NewDecoder(file)
	decoder.ReadInfo()

	if !decoder.IsValidFile() {
		return Info{}, errors.NewStd("invalid WAV file format")
	}

	return Info{
		SampleRate: float64(decoder.SampleRate),
		BitDepth:   int(decoder.BitDepth),
		Channels:   int(decoder.NumChans),
	}, nil
}

func readFLACInfo(file *os.File) (Info, error) {
	decoder, err := flac.NewDecoder(file)
	if err != nil {
		return Info{}, err
	}

	return Info{
		SampleRate: float64(decoder.SampleRate),
		BitDepth:   decoder.BitsPerSample,
		Channels:   decoder.NChannels,
	}, nil
}

func readAIFFInfo(file *os.File) (Info, error) {
	decoder := aiff.NewDecoder(file)
	decoder.ReadInfo()

	if !decoder.IsValidFile() {
		return Info{}, errors.NewStd("invalid AIFF file format")
	}

	return Info{
		SampleRate: float64(decoder.SampleRate),
		BitDepth:   int(decoder.BitDepth),
		Channels:   int(decoder.NumChans),
	}, nil
}
