// Command-line interface for the dvidproxy cutout server.

package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"runtime/pprof"
	"strings"
	"syscall"

	"github.com/janelia-flyem/dvidproxy/dvid"
	"github.com/janelia-flyem/dvidproxy/server"
	"github.com/janelia-flyem/dvidproxy/storage"

	// Storage engines available to [store] sections.
	_ "github.com/janelia-flyem/dvidproxy/storage/badger"
	_ "github.com/janelia-flyem/dvidproxy/storage/blockcache"
	_ "github.com/janelia-flyem/dvidproxy/storage/boss"
	_ "github.com/janelia-flyem/dvidproxy/storage/bucket"
	_ "github.com/janelia-flyem/dvidproxy/storage/filestore"
)

var (
	// Display usage if true.
	showHelp = flag.Bool("help", false, "")

	// Run in verbose mode if true.
	runVerbose = flag.Bool("verbose", false, "")

	// Address for http communication, overriding the TOML setting.
	httpAddress = flag.String("http", "", "")

	// Profile CPU usage using standard gotest system.
	cpuprofile = flag.String("cpuprofile", "", "")
)

const helpMessage = `
dvidproxy serves 3d cutouts from a layered stack of storage engines

Usage: dvidproxy [options] <command>

      -http       =string   Address for HTTP communication, overriding the config.
      -cpuprofile =string   Write CPU profile to this file.
      -verbose    (flag)    Run in verbose mode.
  -h, -help       (flag)    Show help message

Commands:

	about
	help
	serve   <config.toml>
	blocks  <config.toml> <store> <collection/experiment/channel>
`

var usage = func() {
	fmt.Print(helpMessage)
}

func main() {
	flag.BoolVar(showHelp, "h", false, "Show help message")
	flag.Usage = usage
	flag.Parse()

	if flag.NArg() >= 1 && strings.ToLower(flag.Args()[0]) == "help" {
		*showHelp = true
	}
	if *runVerbose {
		dvid.Verbose = true
	}
	if *showHelp || flag.NArg() == 0 {
		flag.Usage()
		os.Exit(0)
	}

	if *cpuprofile != "" {
		f, err := os.Create(*cpuprofile)
		if err != nil {
			log.Fatal(err)
		}
		pprof.StartCPUProfile(f)
		defer pprof.StopCPUProfile()
	}

	if err := DoCommand(flag.Args()); err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		dvid.Shutdown()
		os.Exit(1)
	}
	dvid.Shutdown()
}

// DoCommand executes the command given on the command line.
func DoCommand(args []string) error {
	switch args[0] {
	case "about":
		fmt.Println("Registered storage engines:")
		for _, e := range storage.EngineTypes() {
			fmt.Printf("  %-12s %-8s %s\n", e.GetName(), e.GetSemVer(), e.GetDescription())
		}
		return nil
	case "serve":
		if len(args) != 2 {
			return fmt.Errorf("serve requires a TOML configuration file: dvidproxy serve <config.toml>")
		}
		return doServe(args[1])
	case "blocks":
		if len(args) != 4 {
			return fmt.Errorf("usage: dvidproxy blocks <config.toml> <store> <collection/experiment/channel>")
		}
		return doBlocks(args[1], args[2], args[3])
	default:
		return fmt.Errorf("unknown command %q; try 'dvidproxy help'", args[0])
	}
}

func doServe(configPath string) error {
	config, err := server.LoadConfig(configPath)
	if err != nil {
		return err
	}
	if err := config.Logging.SetLogger(); err != nil {
		return err
	}
	if *httpAddress != "" {
		config.Server.HTTPAddress = *httpAddress
	}

	// Capture ctrl+c and other interrupts.  Then handle graceful shutdown.
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM, syscall.SIGHUP)
	defer stop()

	dvid.Infof("Serving with configuration %s\n", configPath)
	return server.Serve(ctx, config)
}

// doBlocks lists the blocks a block engine holds for one channel.
func doBlocks(configPath, alias, dataName string) error {
	parts := strings.Split(strings.Trim(dataName, "/"), "/")
	if len(parts) != 3 {
		return fmt.Errorf("expected collection/experiment/channel, got %q", dataName)
	}
	config, err := server.LoadConfig(configPath)
	if err != nil {
		return err
	}
	sc, err := config.StoreConfig(alias)
	if err != nil {
		return err
	}
	engine, err := storage.NewEngine(sc)
	if err != nil {
		return err
	}
	defer storage.Close(engine)

	lister, ok := engine.(storage.BlockLister)
	if !ok {
		return fmt.Errorf("store %q (%s) cannot list its blocks", alias, engine)
	}
	keys, err := lister.ListBlocks(context.Background(), parts[0], parts[1], parts[2])
	if err != nil {
		return err
	}
	for _, k := range keys {
		fmt.Println(k)
	}
	fmt.Printf("%d blocks in %s\n", len(keys), dataName)
	return nil
}
