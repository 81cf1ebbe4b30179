// Command aofcli is a thin operator tool around the aof client: create
// an AoF-backed volume, append to it, read a range back, or print its
// current length. It talks to a real conductor endpoint. Volumes are
// opened as an in-process in-memory store, or, with -local, as a local
// file via the io_uring backend (falling back to the in-memory store if
// that fails).
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/pureflash/aofclient"
	"github.com/pureflash/aofclient/internal/conductor"
	"github.com/pureflash/aofclient/internal/volume"
)

func main() {
	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintln(os.Stderr, "aofcli:", err)
		os.Exit(1)
	}
}

func run(args []string) error {
	fs := flag.NewFlagSet("aofcli", flag.ExitOnError)
	var (
		conductorAddr = fs.String("conductor", "http://127.0.0.1:49180", "conductor endpoint")
		configPath    = fs.String("config", "", "path to a TOML config file (optional)")
		local         = fs.String("local", "", "open/create the volume as a local file at this path instead of an in-memory store")
		name          = fs.String("name", "", "AoF volume name")
		sizeBytes     = fs.Int64("size", 0, "size in bytes for create (0 = default)")
		repCnt        = fs.Int("rep-cnt", 3, "replica count for create")
		offset        = fs.Int64("offset", 0, "read offset")
		length        = fs.Int("length", 0, "read length")
	)
	fs.Usage = func() {
		fmt.Fprintln(os.Stderr, "usage: aofcli [flags] <create|append|read|length> [data]")
		fs.PrintDefaults()
	}
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() < 1 {
		fs.Usage()
		return fmt.Errorf("missing command")
	}
	if *name == "" {
		return fmt.Errorf("-name is required")
	}

	cfg, err := aof.LoadConfig(*configPath, *conductorAddr)
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	opener := fileOpener(*local)
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	cmd := fs.Arg(0)
	if cmd == "create" {
		client := conductor.New(cfg.ConductorEndpoint, nil)
		return aof.Create(ctx, client, cfg, opener, *name, *sizeBytes, *repCnt)
	}

	client := conductor.New(cfg.ConductorEndpoint, nil)
	a, err := aof.Open(ctx, client, cfg, opener, *name, "", aof.OpenCreate, aof.LibraryVersion)
	if err != nil {
		return err
	}
	defer a.Close(ctx)

	switch cmd {
	case "append":
		if fs.NArg() < 2 {
			return fmt.Errorf("append requires a data argument")
		}
		n, err := a.Append(ctx, []byte(fs.Arg(1)))
		if err != nil {
			return err
		}
		fmt.Printf("appended %d bytes, length now %d\n", n, a.Length())
		return nil

	case "read":
		if *length <= 0 {
			return fmt.Errorf("-length must be positive")
		}
		buf := make([]byte, *length)
		n, err := a.Read(ctx, buf, *offset)
		if err != nil {
			return err
		}
		os.Stdout.Write(buf[:n])
		return nil

	case "length":
		fmt.Println(a.Length())
		return nil

	default:
		fs.Usage()
		return fmt.Errorf("unknown command %q", cmd)
	}
}

// fileOpener returns a VolumeOpener. When localPath is set it opens (or
// creates) a plain file there via the io_uring backend, standing in for
// a real cluster-placed volume; otherwise it falls back to an
// in-process MemStore, since this tool has no real conductor-driven
// placement to delegate to.
func fileOpener(localPath string) aof.VolumeOpener {
	return func(ctx context.Context, name string, snapName string) (volume.Volume, error) {
		if localPath == "" {
			return volume.NewMemStore(volume.MemStoreConfig{ID: 1, Name: name, Size: conductor.DefaultAofSizeBytes}), nil
		}
		v, err := volume.OpenUringVolume(volume.UringVolumeConfig{
			ID:   1,
			Name: name,
			Path: localPath,
			Size: conductor.DefaultAofSizeBytes,
		})
		if err == nil {
			return v, nil
		}
		// io_uring unavailable on this platform or device; fall back to
		// a local MemStore so the CLI still works for demos.
		return volume.NewMemStore(volume.MemStoreConfig{ID: 1, Name: name, Size: conductor.DefaultAofSizeBytes}), nil
	}
}
