// Copyright 2023 The NamespaceDB Authors.
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

package server

import (
	"context"
	"net/http"
	"time"

	"github.com/cubefs/cubefs/blobstore/common/profile"
	"github.com/cubefs/cubefs/blobstore/common/rpc"
	"github.com/cubefs/cubefs/blobstore/util/log"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/masstor/namespacedb/metrics"
)

const (
	defaultShutdownTimeoutS      = 10
	defaultReadRequestTimeoutS   = 30
	defaultWriteResponseTimeoutS = 30
)

type HttpServer struct {
	httpServer *http.Server

	*Server
}

func NewHttpServer(server *Server) *HttpServer {
	return &HttpServer{Server: server}
}

func (h *HttpServer) Serve(addr string) {
	registerMetricsHandler()
	ph := profile.NewProfileHandler(addr)
	middlewares := []rpc.ProgressHandler{}
	if h.audit != nil {
		middlewares = append(middlewares, h.audit)
	}
	middlewares = append(middlewares, ph)
	httpServer := &http.Server{
		Addr:         addr,
		Handler:      rpc.MiddlewareHandlerWith(h.newHandler(), middlewares...),
		ReadTimeout:  defaultReadRequestTimeoutS * time.Second,
		WriteTimeout: defaultWriteResponseTimeoutS * time.Second,
	}
	go func() {
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("http server exits:", err)
		}
	}()
	h.httpServer = httpServer

	log.Info("http server is running at:", addr)
}

func (h *HttpServer) Stop() {
	ctx, cancel := context.WithTimeout(context.Background(), defaultShutdownTimeoutS*time.Second)
	defer cancel()

	h.httpServer.Shutdown(ctx)
}

func (h *HttpServer) newHandler() *rpc.Router {
	rpc.GET("/stats", h.Stats, rpc.OptArgsQuery())
	rpc.GET("/routes", h.RoutingList, rpc.OptArgsQuery())

	return rpc.DefaultRouter
}

// Stats reports filesystem wide usage totals.
func (h *HttpServer) Stats(c *rpc.Context) {
	st, err := h.fs.GetFsStat(c.Request.Context())
	if err != nil {
		c.RespondError(err)
		return
	}
	c.RespondJSON(st)
}

// RoutingList dumps the current cell routing table.
func (h *HttpServer) RoutingList(c *rpc.Context) {
	c.RespondJSON(h.routes.Routes())
}

func registerMetricsHandler() {
	handler := promhttp.HandlerFor(metrics.Registry, promhttp.HandlerOpts{})
	profile.HandleFunc(http.MethodGet, "/metrics", func(c *rpc.Context) {
		handler.ServeHTTP(c.Writer, c.Request)
	})
}
