// addrnbd assembles an address map from memory-mapped files and
// exports it as an NBD block device. Unmapped parts of the device
// read as zeros; an optional sparse base layer makes the whole device
// writable, with file mappings overlaid on top.
//
// Usage: addrnbd [flags] <NBD_DEVICE> <ADDR=PATH[,ro]>...
package main

import (
	"flag"
	"log"
	"log/slog"
	"net/http"
	_ "net/http/pprof"
	"os"
	"os/signal"
	"time"

	"github.com/akmistry/go-nbd"

	"github.com/ppete/sawyer/adaptor"
	"github.com/ppete/sawyer/addrmap"
	"github.com/ppete/sawyer/buffer"
	"github.com/ppete/sawyer/internal/app/addrnbd"
	"github.com/ppete/sawyer/internal/util"
	"github.com/ppete/sawyer/interval"
)

var (
	sizeFlag    = flag.String("size", "", "Device size (default: rounded-up mapping extent)")
	baseFlag    = flag.Bool("base", false, "Back the whole device with writable sparse storage")
	verboseFlag = flag.Bool("verbose", false, "Verbose logging")
)

const (
	blockSize = 512

	maxDeviceSize = 16 * (1 << 40)
)

func main() {
	flag.Parse()

	if flag.NArg() < 2 {
		log.Print("Usage: addrnbd <NBD_DEVICE> <ADDR=PATH[,ro]>...")
		os.Exit(1)
	}

	nbdDev := flag.Arg(0)

	if *verboseFlag {
		slog.SetDefault(slog.New(slog.NewTextHandler(
			os.Stderr, &slog.HandlerOptions{Level: slog.LevelDebug})))
	}

	nbdUseNetlink := false
	nbdIndex, err := addrnbd.ParseNbdIndex(nbdDev)
	if err == nil {
		nbdUseNetlink = true
		log.Print("Using Netlink NBD interface")
	} else {
		log.Print("Using /dev/nbd* NBD interface")
	}

	var deviceSize uint64
	if *sizeFlag != "" {
		deviceSize, err = addrnbd.ParseSizeString(*sizeFlag)
		if err != nil {
			log.Printf("Invalid size flag: %s", *sizeFlag)
			os.Exit(1)
		}
		if deviceSize%blockSize != 0 {
			log.Printf("Device size %d must be a multiple of block size %d",
				deviceSize, blockSize)
			os.Exit(1)
		} else if deviceSize > maxDeviceSize {
			log.Printf("Device size %d is too big (max 16T)", deviceSize)
			os.Exit(1)
		}
	}

	go func() {
		log.Println("http.ListenAndServe: ", http.ListenAndServe("localhost:6060", nil))
	}()

	m := addrmap.New()
	var mapped []*buffer.Mapped
	for _, spec := range flag.Args()[1:] {
		mapping, err := addrnbd.ParseMapping(spec)
		if err != nil {
			log.Printf("Invalid mapping %q: %v", spec, err)
			os.Exit(1)
		}
		buf, err := buffer.OpenMapped(mapping.Path, mapping.ReadOnly)
		if err != nil {
			log.Printf("Error mapping %s: %v", mapping.Path, err)
			os.Exit(1)
		}
		mapped = append(mapped, buf)

		access := addrmap.Readable | addrmap.Writable
		if mapping.ReadOnly {
			access = addrmap.Readable
		}
		m.Insert(interval.BaseSize(mapping.Addr, buf.Size()),
			addrmap.NewSegmentOffset(buf, 0, access))
		slog.Info("Mapped file",
			"path", mapping.Path,
			"addr", mapping.Addr,
			"size", util.Bytes(buf.Size()),
			"access", access)
	}
	defer func() {
		for _, buf := range mapped {
			if err := buf.Close(); err != nil {
				slog.Error("Error unmapping file", "path", buf.Path(), "error", err)
			}
		}
	}()

	if deviceSize == 0 {
		ext := m.Extent()
		if ext.Empty() {
			log.Print("No mappings and no -size given")
			os.Exit(1)
		}
		deviceSize, err = addrnbd.RoundSizeToBlocks(ext.Upper(), blockSize, maxDeviceSize)
		if err != nil {
			log.Printf("Mapping extent %s is too big (max 16T)", ext)
			os.Exit(1)
		}
	}

	if *baseFlag {
		// Underlay: later file insertions already occluded nothing, so
		// punch the base in around them by inserting over the full
		// range first, then re-adding the files.
		base := addrmap.New()
		base.Insert(interval.BaseSize(0, deviceSize),
			addrmap.NewSegmentOffset(buffer.NewSparse(deviceSize), 0,
				addrmap.Readable|addrmap.Writable))
		m.Segments(0, func(iv interval.Interval, seg addrmap.Segment) bool {
			base.Insert(iv, seg)
			return true
		})
		m = base
	}

	slog.Info("Device assembled",
		"size", util.DetailedBytes(deviceSize),
		"segments", m.NumSegments())

	blockDev := adaptor.NewReadWriter(m, int64(deviceSize))

	nbdOpts := nbd.BlockDeviceOptions{
		BlockSize: blockSize,
		// The address map performs no locking of its own.
		ConcurrentOps: 1,
	}
	var serv *nbd.NbdServer
	if nbdUseNetlink {
		serv, err = nbd.NewServerWithNetlink(nbdIndex, blockDev, int64(deviceSize), nbdOpts)
	} else {
		serv, err = nbd.NewServer(nbdDev, blockDev, int64(deviceSize), nbdOpts)
	}
	if err != nil {
		log.Println("Error creating NBD", err)
		os.Exit(1)
	}

	ch := make(chan os.Signal, 1)
	signal.Notify(ch, os.Interrupt)
	go func() {
		<-ch
		log.Println("Shutting down after ^C. Will force after 10 seconds.")
		fin := make(chan bool)
		go func() {
			serv.Disconnect()
			close(fin)
		}()
		select {
		case <-fin:
		case <-time.After(10 * time.Second):
			log.Println("Force shutting down.")
			os.Exit(1)
		}
	}()

	err = serv.Run()
	if err != nil {
		log.Println("NBD run error: ", err)
		serv.Disconnect()
	}
}
