package main

import (
	"fmt"
	"io"
	"log"
	"os"
	"strings"

	"github.com/urfave/cli/v2"

	"github.com/cfbio/cfb"
)

func main() {
	app := &cli.App{
		Name:  "cfbtool",
		Usage: "inspect and extract from Compound File Binary (CFB/OLE) documents",

		Flags: []cli.Flag{
			&cli.BoolFlag{Name: "strict", Usage: "promote every warning to a fatal error"},
			&cli.StringSliceFlag{Name: "promote", Usage: "promote one diagnostic category to fatal (repeatable)"},
		},

		Commands: []*cli.Command{
			{
				Name:      "info",
				Usage:     "print the container header",
				ArgsUsage: "<file>",
				Action:    actionInfo,
			},
			{
				Name:      "ls",
				Usage:     "list a storage's entries",
				ArgsUsage: "<file> [path]",
				Action:    actionLs,
			},
			{
				Name:      "cat",
				Usage:     "dump a stream's contents to stdout",
				ArgsUsage: "<file> <path>",
				Action:    actionCat,
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

func openFromContext(c *cli.Context, path string) (*cfb.Container, error) {
	var opts []cfb.Option
	if c.Bool("strict") {
		opts = append(opts, cfb.WithStrict())
	}
	for _, name := range c.StringSlice("promote") {
		cat, ok := categoryByName[strings.ToLower(name)]
		if !ok {
			return nil, fmt.Errorf("unknown diagnostic category %q", name)
		}
		opts = append(opts, cfb.WithPromoted(cat))
	}
	opts = append(opts, cfb.WithSink(func(d cfb.Diagnostic) {
		fmt.Fprintln(os.Stderr, "warning:", d.Error())
	}))
	return cfb.Open(path, opts...)
}

var categoryByName = map[string]cfb.Category{
	"headercorrupt":         cfb.HeaderCorrupt,
	"sectorsizewarning":     cfb.SectorSizeWarning,
	"minisectorsizewarning": cfb.MiniSectorSizeWarning,
	"cutoffwarning":         cfb.CutoffWarning,
	"difatwarning":          cfb.DIFATWarning,
	"directorywarning":      cfb.DirectoryWarning,
	"streamsizemismatch":    cfb.StreamSizeMismatch,
}

func actionInfo(c *cli.Context) error {
	if c.Args().Len() < 1 {
		return fmt.Errorf("usage: cfbtool info <file>")
	}
	container, err := openFromContext(c, c.Args().Get(0))
	if err != nil {
		return err
	}
	defer container.Close()

	h := container.Header()
	fmt.Printf("version:          %s\n", h.Version)
	fmt.Printf("sector size:      %d\n", h.SectorSize)
	fmt.Printf("mini sector size: %d\n", h.MiniSectorSize)
	fmt.Printf("mini stream cutoff: %d\n", h.MiniStreamCutoff)
	fmt.Printf("clsid:            %s\n", h.CLSID)
	return nil
}

func actionLs(c *cli.Context) error {
	if c.Args().Len() < 1 {
		return fmt.Errorf("usage: cfbtool ls <file> [path]")
	}
	container, err := openFromContext(c, c.Args().Get(0))
	if err != nil {
		return err
	}
	defer container.Close()

	target, err := container.Lookup(c.Args().Get(1))
	if err != nil {
		return err
	}
	if !target.IsDir() {
		return fmt.Errorf("not a storage: %s", target.Path())
	}
	for _, child := range target.Children() {
		kind := "stream"
		if child.IsDir() {
			kind = "storage"
		}
		fmt.Printf("%-8s %10d  %s\n", kind, child.Size(), child.Name())
	}
	return nil
}

func actionCat(c *cli.Context) error {
	if c.Args().Len() < 2 {
		return fmt.Errorf("usage: cfbtool cat <file> <path>")
	}
	container, err := openFromContext(c, c.Args().Get(0))
	if err != nil {
		return err
	}
	defer container.Close()

	stream, err := container.Open(c.Args().Get(1))
	if err != nil {
		return err
	}
	defer stream.Close()

	_, err = io.Copy(os.Stdout, stream)
	return err
}
