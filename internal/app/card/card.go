// Package card turns the frame rendered by the live-control process at the
// end of a round into a two-sided souvenir artifact.
package card

import (
	"errors"
	"fmt"
	"image"
	"path/filepath"
	"strings"

	"github.com/dkeye/Hotseat/internal/core"
	"github.com/disintegration/imaging"
)

var ErrBadFile = errors.New("card file must be a .png name")

var (
	sideA = image.Rect(0, 20, 320, 340)
	sideB = image.Rect(320, 20, 640, 340)
)

// Facts are the round details printed into the card metadata.
type Facts struct {
	ShowName     string
	Turn         int
	ADN          string
	DisplayName  string
	CauseOfDeath string
	IntroWords   string
	LastWords    string
	Video        string
}

// Builder reads rendered cards from MediaPath.
type Builder struct {
	MediaPath string
}

func NewBuilder(mediaPath string) *Builder {
	return &Builder{MediaPath: mediaPath}
}

// Build splits file into its A and B sides next to the source and returns
// the artifact describing them.
func (b *Builder) Build(file string, f Facts) (core.Artifact, error) {
	name := filepath.Base(file)
	if name != file || !strings.HasSuffix(name, ".png") {
		return core.Artifact{}, ErrBadFile
	}
	src := filepath.Join(b.MediaPath, name)
	a, bside, err := Split(src)
	if err != nil {
		return core.Artifact{}, err
	}
	return core.Artifact{
		Name:        fmt.Sprintf("%s - Participant #%d Record Card", f.ShowName, f.Turn),
		Description: fmt.Sprintf("%s souvenir card for participant #%d", f.ShowName, f.Turn),
		ImagePath:   a,
		SideBPath:   bside,
		Properties:  f.Properties(),
	}, nil
}

// Properties is the metadata map stored alongside the images.
func (f Facts) Properties() map[string]any {
	return map[string]any{
		"adn":          f.ADN,
		"turn":         f.Turn,
		"causeOfDeath": f.CauseOfDeath,
		"video":        f.Video,
		"name":         f.DisplayName,
		"displayName":  f.DisplayName,
		"lastWords":    f.LastWords,
		"introWords":   f.IntroWords,
	}
}

// Split crops the two card sides out of src and writes them as
// <name>A.png and <name>B.png beside it.
func Split(src string) (string, string, error) {
	img, err := imaging.Open(src)
	if err != nil {
		return "", "", fmt.Errorf("open card: %w", err)
	}
	base := strings.TrimSuffix(src, ".png")
	paths := [2]string{base + "A.png", base + "B.png"}
	for i, rect := range [2]image.Rectangle{sideA, sideB} {
		if err := imaging.Save(imaging.Crop(img, rect), paths[i]); err != nil {
			return "", "", fmt.Errorf("save card side: %w", err)
		}
	}
	return paths[0], paths[1], nil
}
