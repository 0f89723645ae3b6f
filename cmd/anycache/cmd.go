// Copyright 2023 The AnyCache Authors.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or
// implied. See the License for the specific language governing
// permissions and limitations under the License.

package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"runtime"
	"strconv"
	"syscall"

	"github.com/cubefs/cubefs/blobstore/common/config"
	"github.com/cubefs/cubefs/blobstore/common/trace"
	"github.com/cubefs/cubefs/blobstore/util/log"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"github.com/anycache/anycache/master"
	"github.com/anycache/anycache/metrics"
	"github.com/anycache/anycache/util"
	"github.com/anycache/anycache/worker"
)

const (
	roleMaster = "master"
	roleWorker = "worker"
)

// Config is the service configuration; one process may carry the master
// role, the worker role, or both.
type Config struct {
	Roles         []string  `json:"roles"`
	LogLevel      log.Level `json:"log_level"`
	MaxProcessors int       `json:"max_processors"`

	MasterHost        string        `json:"master_host"`
	MasterPort        uint32        `json:"master_port"`
	MasterMetricsPort uint32        `json:"master_metrics_port"`
	Master            master.Config `json:"master"`

	WorkerMetricsPort uint32        `json:"worker_metrics_port"`
	Worker            worker.Config `json:"worker"`
}

func main() {
	config.Init("f", "", "anycache.json")

	cfg := &Config{}
	if err := config.Load(cfg); err != nil {
		log.Fatalf("load config failed: %s", err)
	}
	initConfig(cfg)
	log.SetOutputLevel(cfg.LogLevel)

	span, ctx := trace.StartSpanFromContext(context.Background(), "startup")

	var (
		masterNode   *master.Master
		masterServer *master.RPCServer
		workerNode   *worker.Worker
		workerServer *worker.RPCServer
		metricsSrvs  []*http.Server
	)

	for _, role := range cfg.Roles {
		switch role {
		case roleMaster:
			node, err := master.NewMaster(ctx, &cfg.Master)
			if err != nil {
				span.Fatalf("start master failed: %s", err)
			}
			masterNode = node
			masterServer = master.NewRPCServer(node)
			addr := cfg.MasterHost + ":" + strconv.Itoa(int(cfg.MasterPort))
			if err := masterServer.Serve(addr); err != nil {
				span.Fatalf("master rpc listen on %s failed: %s", addr, err)
			}
			span.Infof("master listening on %s", addr)
			if cfg.MasterMetricsPort > 0 {
				metricsSrvs = append(metricsSrvs, serveMetrics(cfg.MasterMetricsPort))
			}
		case roleWorker:
			node, err := worker.NewWorker(ctx, &cfg.Worker)
			if err != nil {
				span.Fatalf("start worker failed: %s", err)
			}
			workerNode = node
			node.Start(ctx)
			workerServer = worker.NewRPCServer(node)
			addr := cfg.Worker.Host + ":" + strconv.Itoa(int(cfg.Worker.Port))
			if err := workerServer.Serve(addr); err != nil {
				span.Fatalf("worker rpc listen on %s failed: %s", addr, err)
			}
			span.Infof("worker listening on %s", addr)
			if cfg.WorkerMetricsPort > 0 {
				metricsSrvs = append(metricsSrvs, serveMetrics(cfg.WorkerMetricsPort))
			}
		default:
			span.Fatalf("unknown role %q", role)
		}
	}

	ch := make(chan os.Signal, 1)
	signal.Notify(ch, syscall.SIGTERM, syscall.SIGINT)
	<-ch

	// shutdown: the master and worker RPC servers stop concurrently and are
	// joined, so their relative order is not fixed; worker close then
	// signals the heartbeat loop and stops the mover queue
	var eg errgroup.Group
	if masterServer != nil {
		eg.Go(func() error { masterServer.Stop(); return nil })
	}
	if workerServer != nil {
		eg.Go(func() error { workerServer.Stop(); return nil })
	}
	eg.Wait()

	for _, srv := range metricsSrvs {
		srv.Close()
	}
	if workerNode != nil {
		workerNode.Close()
	}
	if masterNode != nil {
		masterNode.Close()
	}
}

func serveMetrics(port uint32) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(metrics.Registry, promhttp.HandlerOpts{}))
	srv := &http.Server{Addr: ":" + strconv.Itoa(int(port)), Handler: mux}
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Warnf("metrics server: %s", err)
		}
	}()
	return srv
}

func initConfig(cfg *Config) {
	if len(cfg.Roles) == 0 {
		log.Fatalf("node roles must be set")
	}
	if cfg.MaxProcessors > 0 {
		runtime.GOMAXPROCS(cfg.MaxProcessors)
	}

	if cfg.MasterHost == "" {
		cfg.MasterHost = "0.0.0.0"
	}
	if cfg.MasterPort == 0 {
		cfg.MasterPort = 19999
	}
	if cfg.MasterMetricsPort == 0 {
		cfg.MasterMetricsPort = 9201
	}
	if cfg.Master.StoreConfig.Path == "" {
		cfg.Master.StoreConfig.Path = "./run/master"
	}

	if cfg.Worker.Host == "" {
		cfg.Worker.Host = "0.0.0.0"
		if ip, err := util.GetLocalIP(); err == nil {
			cfg.Worker.Host = ip
		}
	}
	if cfg.Worker.Port == 0 {
		cfg.Worker.Port = 29999
	}
	if cfg.WorkerMetricsPort == 0 {
		cfg.WorkerMetricsPort = 9202
	}
	if cfg.Worker.MasterAddress == "" {
		cfg.Worker.MasterAddress = "localhost:" + strconv.Itoa(int(cfg.MasterPort))
	}
	if cfg.Worker.BlockStore.MetaDBPath == "" {
		cfg.Worker.BlockStore.MetaDBPath = "./run/worker/meta"
	}
}
