package storage

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/go-audio/wav"

	"ttseval/internal/items"
)

// AudioDir stores synthesized audio as <root>/<sheet>/<item>.wav.
type AudioDir struct {
	root string
}

// NewAudioDir creates an AudioDir rooted at dir.
func NewAudioDir(dir string) *AudioDir {
	return &AudioDir{root: dir}
}

// Root returns the audio root directory.
func (a *AudioDir) Root() string {
	return a.root
}

// Path resolves a file name inside a sheet directory.
func (a *AudioDir) Path(sheet, name string) (string, error) {
	if err := validateSegment(sheet); err != nil {
		return "", err
	}
	if err := validateSegment(name); err != nil {
		return "", err
	}
	return filepath.Join(a.root, sheet, name), nil
}

// WriteAudio writes data for sheet/itemID, replacing any previous file.
func (a *AudioDir) WriteAudio(sheet, itemID string, data []byte) (string, error) {
	path, err := a.Path(sheet, itemID+".wav")
	if err != nil {
		return "", err
	}
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create audio dir: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("write audio: %w", err)
	}
	return path, nil
}

// Inspect reads the WAV header of an item's audio. A missing file is not
// an error; Present is false instead.
func (a *AudioDir) Inspect(sheet, itemID string) (items.AudioInfo, error) {
	path, err := a.Path(sheet, itemID+".wav")
	if err != nil {
		return items.AudioInfo{}, err
	}
	file, err := os.Open(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return items.AudioInfo{}, nil
		}
		return items.AudioInfo{}, fmt.Errorf("open audio: %w", err)
	}
	defer file.Close()

	info := items.AudioInfo{Present: true}
	decoder := wav.NewDecoder(file)
	decoder.ReadInfo()
	if !decoder.IsValidFile() {
		return info, fmt.Errorf("%s is not a valid WAV file", path)
	}
	info.SampleRate = int(decoder.SampleRate)
	info.Channels = int(decoder.NumChans)
	if dur, err := decoder.Duration(); err == nil {
		info.Duration = dur.Seconds()
	}
	return info, nil
}
