// cmd/rename2pc-serverd is the control server for a single rename2pc
// coordinator. It drives a fixed roster of stores through the A -> A'
// transaction one HTTP-triggered step at a time.
//
// Example — two stores, in-process:
//
//	./rename2pc-serverd --addr :8080 --wal /tmp/rename2pc/coord.wal \
//	                     --stores 0=localhost:9000,1=localhost:9001 \
//	                     --key-a A --key-a-prime "A'"
package main

import (
	"context"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"rename2pc/internal/api"
	"rename2pc/internal/coordlog"
	"rename2pc/internal/rename2pc"
	"rename2pc/internal/roster"
	"rename2pc/internal/snapshot"
)

func main() {
	addr := flag.String("addr", ":8080", "Listen address (host:port)")
	walPath := flag.String("wal", "/tmp/rename2pc/coord.wal", "Path to the coordinator's durable log")
	snapshotPath := flag.String("snapshot", "/tmp/rename2pc/state.json", "Path for the final diagnostic snapshot on shutdown")
	storesFlag := flag.String("stores", "0=localhost:9000,1=localhost:9001", "Comma-separated list of stores: id=host:port")
	keyA := flag.String("key-a", "A", "Name of the key being renamed")
	keyAPrime := flag.String("key-a-prime", "A'", "Destination name for the rename")
	mode := flag.String("mode", "memory", `Deployment mode: "memory" (default, single process) or "http" (fan out send steps as real HTTP requests to the roster)`)
	flag.Parse()

	if *mode != "memory" && *mode != "http" {
		log.Fatalf("invalid -mode %q: must be \"memory\" or \"http\"", *mode)
	}

	members, storeIds := parseStores(*storesFlag)
	storeRoster := roster.New(members)

	if err := os.MkdirAll(filepath.Dir(*walPath), 0755); err != nil {
		log.Fatalf("create wal directory: %v", err)
	}
	if err := os.MkdirAll(filepath.Dir(*snapshotPath), 0755); err != nil {
		log.Fatalf("create snapshot directory: %v", err)
	}

	coordLog, err := coordlog.Open(*walPath)
	if err != nil {
		log.Fatalf("open coordinator log: %v", err)
	}
	defer coordLog.Close()

	sys := rename2pc.NewSystem(storeIds, *keyA, *keyAPrime)
	for _, s := range sys.Stores {
		if !s.Put(*keyA, 1) {
			log.Fatalf("seed key %q into a fresh store: unexpected failure", *keyA)
		}
	}
	sys.Coordinator = coordLog.Resume()
	if sys.Coordinator.GetPhase() == rename2pc.Crashed {
		log.Printf("resumed from %s with an unfinished transaction (txn %d); call /txn/recover before driving further steps",
			*walPath, sys.Coordinator.GetTxnId())
	}

	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(api.Logger(), api.Recovery())

	var handler *api.Handler
	if *mode == "http" {
		handler = api.NewHTTPHandler(sys, storeRoster)
	} else {
		handler = api.NewHandler(sys)
	}
	handler.Register(router)

	srv := &http.Server{
		Addr:         *addr,
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}

	go func() {
		log.Printf("rename2pc-serverd listening on %s (stores: %s)", *addr, *storesFlag)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server error: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("shutting down")
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if err := snapshot.Save(*snapshotPath, snapshot.Of(sys)); err != nil {
		log.Printf("final snapshot error: %v", err)
	}

	if err := srv.Shutdown(ctx); err != nil {
		log.Printf("server shutdown error: %v", err)
	}
}

func parseStores(flagVal string) ([]roster.Member, []rename2pc.StoreId) {
	var members []roster.Member
	var ids []rename2pc.StoreId
	for _, entry := range strings.Split(flagVal, ",") {
		parts := strings.SplitN(entry, "=", 2)
		if len(parts) != 2 {
			log.Fatalf("invalid store entry %q: expected id=host:port", entry)
		}
		n, err := strconv.ParseUint(parts[0], 10, 32)
		if err != nil {
			log.Fatalf("invalid store id %q: %v", parts[0], err)
		}
		id := rename2pc.StoreId(n)
		members = append(members, roster.Member{Id: id, Address: parts[1]})
		ids = append(ids, id)
	}
	return members, ids
}
