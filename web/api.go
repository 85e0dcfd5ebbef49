// Copyright (c) 2024, The OTNS Authors.
// All rights reserved.
//
// Redistribution and use in source and binary forms, with or without
// modification, are permitted provided that the following conditions are met:
// 1. Redistributions of source code must retain the above copyright
//    notice, this list of conditions and the following disclaimer.
// 2. Redistributions in binary form must reproduce the above copyright
//    notice, this list of conditions and the following disclaimer in the
//    documentation and/or other materials provided with the distribution.
// 3. Neither the name of the copyright holder nor the
//    names of its contributors may be used to endorse or promote products
//    derived from this software without specific prior written permission.
//
// THIS SOFTWARE IS PROVIDED BY THE COPYRIGHT HOLDERS AND CONTRIBUTORS "AS IS"
// AND ANY EXPRESS OR IMPLIED WARRANTIES, INCLUDING, BUT NOT LIMITED TO, THE
// IMPLIED WARRANTIES OF MERCHANTABILITY AND FITNESS FOR A PARTICULAR PURPOSE
// ARE DISCLAIMED. IN NO EVENT SHALL THE COPYRIGHT HOLDER OR CONTRIBUTORS BE
// LIABLE FOR ANY DIRECT, INDIRECT, INCIDENTAL, SPECIAL, EXEMPLARY, OR
// CONSEQUENTIAL DAMAGES (INCLUDING, BUT NOT LIMITED TO, PROCUREMENT OF
// SUBSTITUTE GOODS OR SERVICES; LOSS OF USE, DATA, OR PROFITS; OR BUSINESS
// INTERRUPTION) HOWEVER CAUSED AND ON ANY THEORY OF LIABILITY, WHETHER IN
// CONTRACT, STRICT LIABILITY, OR TORT (INCLUDING NEGLIGENCE OR OTHERWISE)
// ARISING IN ANY WAY OUT OF THE USE OF THIS SOFTWARE, EVEN IF ADVISED OF THE
// POSSIBILITY OF SUCH DAMAGE.

// Package web serves the HTTP status API of a running simulation.
package web

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi"

	"github.com/openthread/lowpan-ns/logger"
	"github.com/openthread/lowpan-ns/visualize"
)

type API struct {
	Router *chi.Mux
	vis    *webVisualizer
	server *http.Server
}

// Setup creates the API and the visualizer feeding it. The visualizer must be added to the
// simulation's visualizers.
func Setup() *API {
	api := &API{
		Router: chi.NewRouter(),
		vis:    newWebVisualizer(),
	}
	api.Router.Use(CORS)
	api.setupRoutes()
	return api
}

func (api *API) Visualizer() visualize.Visualizer {
	return api.vis
}

// Run serves addr until ctx is done.
func (api *API) Run(ctx context.Context, addr string) error {
	api.server = &http.Server{
		Addr:              addr,
		Handler:           api.Router,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		_ = api.server.Shutdown(shutdownCtx)
	}()

	logger.Infof("web api starting on %s ...", addr)
	err := api.server.ListenAndServe()
	if err == http.ErrServerClosed {
		err = nil
	}
	logger.Debugf("web api exit: %v", err)
	return err
}
