package main

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/sunshineplan/imgio"
	"github.com/sunshineplan/utils/log"
)

var supported = regexp.MustCompile(`(?i)\.(exr|png|jpe?g|tga|tiff?|hdr)$`)

func loadImages(root string) (imgs []string) {
	filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			log.Error("Failed to scan", "path", path, "error", err)
			return nil
		}
		if !d.IsDir() && supported.MatchString(d.Name()) {
			imgs = append(imgs, path)
		}
		return nil
	})
	return
}

var errSkip = errors.New("skip")

type task struct {
	registry *imgio.Registry
	format   imgio.FileFormat
	pixel    imgio.PixelFormat
	options  []imgio.EncodeOption
	decode   []imgio.DecodeOption
}

// convertExt replaces the extension of filename with the one of the output format.
func (t *task) convertExt(filename string) string {
	return strings.TrimSuffix(filename, filepath.Ext(filename)) + "." + t.format.Ext()
}

func (t *task) load(image string) (*imgio.Pixels, imgio.ColourProfile, error) {
	f, err := os.Open(image)
	if err != nil {
		return nil, imgio.ColourProfile{}, err
	}
	defer f.Close()

	img, _, err := t.registry.Open(f, t.decode...)
	if err != nil {
		return nil, imgio.ColourProfile{}, err
	}
	defer img.Close()

	info := img.Info()
	p := imgio.NewPixels(info.Width, info.Height, info.DecodeFormat)
	if err := img.Decode(p.Data, imgio.InvalidFormat); err != nil {
		return nil, imgio.ColourProfile{}, err
	}
	return p, img.ColourProfile(), nil
}

func (t *task) convert(image, output string, force bool) (err error) {
	if _, err = os.Stat(output); err == nil {
		if !force {
			return errSkip
		}
	} else if !errors.Is(err, fs.ErrNotExist) {
		log.Error("Failed to get FileInfo", "name", output, "error", err)
		return
	}
	path := filepath.Dir(output)
	if err = os.MkdirAll(path, 0755); err != nil {
		log.Error("Failed to create directory", "path", path, "error", err)
		return
	}
	p, profile, err := t.load(image)
	if err != nil {
		log.Error("Failed to open image", "image", image, "error", err)
		return
	}
	f, err := os.CreateTemp(path, "*.tmp")
	if err != nil {
		log.Error("Failed to create temporary file", "path", path, "error", err)
		return
	}
	defer os.Remove(f.Name())
	if err = t.registry.Write(f, t.format, p.Data, p.Width, p.Height, p.Format, t.pixel, &profile, t.options...); err != nil {
		f.Close()
		log.Error("Failed to convert image", "image", image, "code", imgio.CodeOf(err), "error", err)
		return
	}
	if err = f.Close(); err != nil {
		log.Error("Failed to close temporary file", "name", f.Name(), "error", err)
		return
	}
	if err = os.Rename(f.Name(), output); err != nil {
		log.Error("Failed to move file", "from", f.Name(), "to", output, "error", err)
	}
	return
}
