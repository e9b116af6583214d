package main

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"sync/atomic"
	"time"

	"github.com/sunshineplan/imgio"
	"github.com/sunshineplan/progressbar"
	"github.com/sunshineplan/utils/log"
	"github.com/vharitonsky/iniflags"
	"golang.org/x/sync/errgroup"
)

var (
	src            = flag.String("src", "", "")
	dst            = flag.String("dst", "output", "")
	force          = flag.Bool("force", false, "")
	format         imgio.FileFormat
	pixel          = flag.String("pixel", "", "")
	quality        = flag.Int("quality", 95, "")
	compression    = flag.Int("compression", -1, "")
	exrCompression imgio.EXRCompression
	tifCompression imgio.TIFFCompression
	orientation    = flag.Bool("orientation", true, "")
	worker         = flag.Int("worker", 5, "")
	debug          = flag.Bool("debug", false, "")
)

func init() {
	flag.TextVar(&format, "format", imgio.PNG, "")
	flag.TextVar(&exrCompression, "exr-compression", imgio.EXRZIP, "")
	flag.TextVar(&tifCompression, "tiff-compression", imgio.TIFFDeflate, "")
}

func usage() {
	fmt.Fprintf(flag.CommandLine.Output(), "Usage of %s:\n", os.Args[0])
	fmt.Println(`
  --src
		source file or directory
  --dst
		destination directory (default: output)
  --force
		force overwrite (default: false)
  --format
		output format (exr, png, jpg, jpeg, tga, tif, tiff and hdr are supported, default: png)
  --pixel
		requested output pixel format, e.g. rgba8u, rgb16u, rgba32f (default: keep the source format
		when the output format supports it)
  --quality
		set jpeg quality (range 1-100, default: 95)
  --compression
		set png compression level (range 0-9, default: zlib default)
  --exr-compression
		set exr compression type (none, zips, zip, default: zip)
  --tiff-compression
		set tiff compression type (none, deflate, default: deflate)
  --orientation
		apply jpeg exif orientation (default: true)
  --worker
		number of images converted at the same time (default: 5)`)
}

func encodeOptions() []imgio.EncodeOption {
	switch format {
	case imgio.JPEG:
		return []imgio.EncodeOption{imgio.Quality(*quality)}
	case imgio.PNG:
		if *compression >= 0 {
			return []imgio.EncodeOption{imgio.PNGCompressionLevel(*compression)}
		}
	case imgio.TIFF:
		return []imgio.EncodeOption{imgio.TIFFCompressionType(tifCompression)}
	case imgio.EXR:
		return []imgio.EncodeOption{imgio.EXRCompressionType(exrCompression)}
	}
	return nil
}

func main() {
	self, err := os.Executable()
	if err != nil {
		log.Error("Failed to get self path", "error", err)
		os.Exit(1)
	}

	flag.Usage = usage
	iniflags.SetConfigFile(filepath.Join(filepath.Dir(self), "config.ini"))
	iniflags.SetAllowMissingConfigFile(true)
	iniflags.Parse()

	reg := imgio.DefaultRegistry()
	defer reg.Close()

	if _, ok := reg.Codec(format); !ok {
		log.Error("Output format not available", "format", format)
		os.Exit(1)
	}
	var out imgio.PixelFormat
	if *pixel != "" {
		if out, err = imgio.ParsePixelFormat(*pixel); err != nil {
			log.Error("Bad pixel format", "pixel", *pixel, "error", err)
			os.Exit(1)
		}
	}
	t := &task{
		registry: reg,
		format:   format,
		pixel:    out,
		options:  encodeOptions(),
		decode:   []imgio.DecodeOption{imgio.AutoOrientation(*orientation)},
	}

	srcInfo, err := os.Stat(*src)
	if err != nil {
		log.Error("Failed to get FileInfo", "name", *src, "error", err)
		os.Exit(1)
	}
	if err := os.MkdirAll(*dst, 0755); err != nil {
		log.Error("Failed to create directory", "path", *dst, "error", err)
		os.Exit(1)
	}

	switch mode := srcInfo.Mode(); {
	case mode.IsDir():
		images := loadImages(*src)
		total := len(images)
		log.Info("Found images", "total", total)

		start := time.Now()
		pb := progressbar.New(total)
		pb.Start()
		var converted, skipped, failed atomic.Int64
		var g errgroup.Group
		g.SetLimit(*worker)
		for _, image := range images {
			g.Go(func() error {
				defer pb.Add(1)

				rel, err := filepath.Rel(*src, image)
				if err != nil {
					log.Error("Failed to get relative path", "image", image, "error", err)
					failed.Add(1)
					return nil
				}
				output := t.convertExt(filepath.Join(*dst, rel))
				switch err := t.convert(image, output, *force); {
				case errors.Is(err, errSkip):
					skipped.Add(1)
					if *debug {
						log.Info("[Debug]Skip", "image", image)
					}
				case err != nil:
					failed.Add(1)
				default:
					converted.Add(1)
					if *debug {
						log.Info("[Debug]Converted", "image", image, "output", output)
					}
				}
				return nil
			})
		}
		g.Wait()
		log.Info("Done", "converted", converted.Load(), "skipped", skipped.Load(), "failed", failed.Load(),
			"elapsed", time.Since(start))
		if failed.Load() > 0 {
			os.Exit(1)
		}

	case mode.IsRegular():
		output := t.convertExt(filepath.Join(*dst, filepath.Base(*src)))
		if err := t.convert(*src, output, *force); err != nil {
			if errors.Is(err, errSkip) {
				log.Error("Destination already exist", "output", output)
			}
			os.Exit(1)
		}
		log.Info("Done", "output", output)

	default:
		log.Error("Unknown source", "src", *src)
		os.Exit(1)
	}
}
