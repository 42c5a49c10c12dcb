// Command sipid is the IIIF image presentation server entrypoint: it
// loads configuration, recovers the on-disk derivative cache, compiles
// the authorization policy, and serves the dispatcher, following the
// teacher's own cmd/reco pattern of a small main wiring together leaf
// packages rather than a monolithic framework.
package main

import (
	"flag"
	"log"
	"net/http"
	"path/filepath"

	"github.com/fsnotify/fsnotify"

	"github.com/dasch-swiss/sipi-go/internal/authz"
	"github.com/dasch-swiss/sipi-go/internal/cachestore"
	"github.com/dasch-swiss/sipi-go/internal/config"
	"github.com/dasch-swiss/sipi-go/internal/server"
	"github.com/dasch-swiss/sipi-go/pprof"

	_ "github.com/dasch-swiss/sipi-go/internal/imgcodec/gifcodec"
	_ "github.com/dasch-swiss/sipi-go/internal/imgcodec/jp2codec"
	_ "github.com/dasch-swiss/sipi-go/internal/imgcodec/jpegcodec"
	_ "github.com/dasch-swiss/sipi-go/internal/imgcodec/pngcodec"
	_ "github.com/dasch-swiss/sipi-go/internal/imgcodec/tiffcodec"
)

func main() {
	configPath := flag.String("config", "", "path to the JSON configuration file")
	cpuProfile := flag.Bool("profile", false, "capture a CPU profile (cpu.pprof) for the process lifetime")
	flag.Parse()

	if *cpuProfile {
		defer pprof.ProbeCPU().Stop()
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatal("config: ", err)
	}

	pprof.StartServer(cfg.PProfPort)

	policyFiles, err := filepath.Glob(filepath.Join(cfg.PolicyDir, "*.rego"))
	if err != nil {
		log.Fatal("authz: ", err)
	}
	policy, err := authz.Load(policyFiles)
	if err != nil {
		log.Fatal("authz: ", err)
	}

	index, err := cachestore.RecoverOnStartup(cfg.CacheDir, cfg.MaxCacheBytes, cfg.MaxCacheFiles, cfg.CacheHysteresis)
	if err != nil {
		log.Fatal("cachestore: ", err)
	}
	writer := cachestore.NewWriter(cfg.CacheDir, index)
	coalescer := cachestore.NewCoalescer()

	watcher, err := config.NewWatcher(*configPath, cfg.PolicyDir)
	if err != nil {
		log.Printf("WRN config: hot reload disabled: %v", err)
	} else {
		go watcher.Run(func(event fsnotify.Event) {
			log.Printf("INF config: change detected (%s), restart to apply", event)
		})
		defer watcher.Close()
	}

	srv := server.New(cfg, policy, index, writer, coalescer)
	srv.ServeMetrics()

	log.Printf("INF sipid listening on %s (cache=%s masters=%s)", cfg.ListenAddr, cfg.CacheDir, cfg.MasterDir)
	log.Fatal(http.ListenAndServe(cfg.ListenAddr, srv.Routes()))
}
