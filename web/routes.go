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

package web

import (
	"encoding/json"
	"io"
	"net/http"
	"strconv"

	"github.com/go-chi/chi"
	"github.com/pkg/errors"

	. "github.com/openthread/lowpan-ns/types"
	"github.com/openthread/lowpan-ns/visualize"
)

func (api *API) setupRoutes() {
	api.Router.Route("/api", func(r chi.Router) {
		r.Route("/v1", func(r chi.Router) {
			r.Options("/*", CORSOptionHandler)
			// GET /api/v1/status
			r.Get("/status", api.GetStatus)
			// POST /api/v1/speed
			r.Post("/speed", api.SetSpeed)
			r.Route("/nodes", func(r chi.Router) {
				// GET /api/v1/nodes
				r.Get("/", api.GetNodes)
				r.Route("/{id:[0-9]+}", func(r chi.Router) {
					// GET /api/v1/nodes/<id>
					r.Get("/", api.GetNode)
					// POST /api/v1/nodes/<id>/move
					r.Post("/move", api.MoveNode)
					// POST /api/v1/nodes/<id>/<fail|recover>
					r.Post("/{action:(fail|recover)}", api.SetNodeFailed)
				})
			})
			// GET /api/v1/signal?node=<id>
			r.Get("/signal", api.GetSignal)
			// GET /api/v1/pings
			r.Get("/pings", api.GetPings)
		})
	})
}

func nodeIdParam(r *http.Request) (NodeId, error) {
	id, err := strconv.Atoi(chi.URLParam(r, "id"))
	if err != nil || id <= 0 {
		return InvalidNodeId, errors.Errorf("invalid node id %q", chi.URLParam(r, "id"))
	}
	return id, nil
}

func decodeBody(r *http.Request, v interface{}) error {
	body, err := io.ReadAll(io.LimitReader(r.Body, 1<<16))
	if err != nil {
		return err
	}
	return json.Unmarshal(body, v)
}

func (api *API) requireController(w http.ResponseWriter) visualize.SimulationController {
	ctrl := api.vis.controller()
	if ctrl == nil {
		ERROR(w, http.StatusServiceUnavailable, errors.New("simulation control not available"))
	}
	return ctrl
}

// GET /api/v1/status
func (api *API) GetStatus(w http.ResponseWriter, r *http.Request) {
	JSON(w, http.StatusOK, api.vis.getStatus())
}

// GET /api/v1/nodes
func (api *API) GetNodes(w http.ResponseWriter, r *http.Request) {
	JSON(w, http.StatusOK, api.vis.getNodes())
}

// GET /api/v1/nodes/<id>
func (api *API) GetNode(w http.ResponseWriter, r *http.Request) {
	id, err := nodeIdParam(r)
	if err != nil {
		ERROR(w, http.StatusBadRequest, err)
		return
	}
	node, ok := api.vis.getNode(id)
	if !ok {
		ERROR(w, http.StatusNotFound, errors.Errorf("node %d not found", id))
		return
	}
	JSON(w, http.StatusOK, node)
}

// GET /api/v1/signal
func (api *API) GetSignal(w http.ResponseWriter, r *http.Request) {
	id := InvalidNodeId
	if s := r.URL.Query().Get("node"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n <= 0 {
			ERROR(w, http.StatusBadRequest, errors.Errorf("invalid node id %q", s))
			return
		}
		id = n
	}
	samples := api.vis.getSignal(id)
	if samples == nil {
		samples = []visualize.SignalSample{}
	}
	JSON(w, http.StatusOK, samples)
}

// GET /api/v1/pings
func (api *API) GetPings(w http.ResponseWriter, r *http.Request) {
	JSON(w, http.StatusOK, api.vis.getPings())
}

// POST /api/v1/speed
func (api *API) SetSpeed(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Speed *float64 `json:"speed"`
	}
	if err := decodeBody(r, &req); err != nil || req.Speed == nil {
		ERROR(w, http.StatusUnprocessableEntity, errors.New("expected {\"speed\": <number>}"))
		return
	}
	ctrl := api.requireController(w)
	if ctrl == nil {
		return
	}
	if err := ctrl.CtrlSetSpeed(*req.Speed); err != nil {
		ERROR(w, http.StatusBadRequest, err)
		return
	}
	JSON(w, http.StatusOK, api.vis.getStatus())
}

// POST /api/v1/nodes/<id>/move
func (api *API) MoveNode(w http.ResponseWriter, r *http.Request) {
	id, err := nodeIdParam(r)
	if err != nil {
		ERROR(w, http.StatusBadRequest, err)
		return
	}
	var req struct {
		Vector
		Duration float64 `json:"duration"`
	}
	if err = decodeBody(r, &req); err != nil {
		ERROR(w, http.StatusUnprocessableEntity, err)
		return
	}
	ctrl := api.requireController(w)
	if ctrl == nil {
		return
	}
	if err = ctrl.CtrlMoveNodeTo(id, req.Vector, req.Duration); err != nil {
		ERROR(w, http.StatusBadRequest, err)
		return
	}
	JSON(w, http.StatusOK, struct {
		Node     NodeId  `json:"node"`
		Target   Vector  `json:"target"`
		Duration float64 `json:"duration"`
	}{id, req.Vector, req.Duration})
}

// POST /api/v1/nodes/<id>/<fail|recover>
func (api *API) SetNodeFailed(w http.ResponseWriter, r *http.Request) {
	id, err := nodeIdParam(r)
	if err != nil {
		ERROR(w, http.StatusBadRequest, err)
		return
	}
	ctrl := api.requireController(w)
	if ctrl == nil {
		return
	}
	if err = ctrl.CtrlSetNodeFailed(id, chi.URLParam(r, "action") == "fail"); err != nil {
		ERROR(w, http.StatusBadRequest, err)
		return
	}
	node, _ := api.vis.getNode(id)
	JSON(w, http.StatusOK, node)
}
