package api

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"log"

	"github.com/gofiber/fiber/v3"

	"github.com/dshills/lantern/pkg/execution"
	"github.com/dshills/lantern/pkg/graph"
)

// nodeExecuteRequest is the body for isolated single-node execution.
type nodeExecuteRequest struct {
	GraphID           string      `json:"graph_id"`
	NodeID            string      `json:"node_id"`
	InputState        graph.State `json:"input_state"`
	MockPreviousState graph.State `json:"mock_previous_state"`
}

// graphExecuteRequest is the body for streaming graph execution.
type graphExecuteRequest struct {
	InitialState graph.State `json:"initial_state"`
}

// New builds the HTTP application exposing node execution, node state
// inspection and streaming graph execution.
func New(engine *execution.Engine) *fiber.App {
	app := fiber.New()

	app.Get("/health", func(c fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok"})
	})

	// ── Graphs ────────────────────────────────────────────────────────
	app.Get("/api/graphs", func(c fiber.Ctx) error {
		ids, err := engine.Store().List(c.Context())
		if err != nil {
			return c.Status(500).JSON(fiber.Map{"error": err.Error()})
		}
		return c.JSON(fiber.Map{"graphs": ids})
	})

	app.Post("/api/graphs/:graphID/execute/stream", func(c fiber.Ctx) error {
		var req graphExecuteRequest
		if len(c.Body()) > 0 {
			if err := c.Bind().JSON(&req); err != nil {
				return c.Status(400).JSON(fiber.Map{"error": "invalid body"})
			}
		}
		if req.InitialState == nil {
			req.InitialState = graph.State{}
		}

		g, err := engine.Store().Get(c.Context(), c.Params("graphID"))
		if err != nil {
			if errors.Is(err, graph.ErrGraphNotFound) {
				return c.Status(404).JSON(fiber.Map{"error": "graph not found"})
			}
			return c.Status(500).JSON(fiber.Map{"error": err.Error()})
		}

		stream := execution.NewStream()
		go func() {
			// The request context ends with the handler, so the run gets
			// its own context; the engine deadline bounds it even when the
			// consumer disconnects. The engine closes the stream after the
			// terminal event. A validation refusal produces no events, so
			// close explicitly.
			if _, err := engine.Execute(context.Background(), g, req.InitialState, stream); err != nil {
				log.Printf("stream execution %s: %v", g.ID, err)
				stream.Close()
			}
		}()

		c.Set("Content-Type", "application/x-ndjson")
		return c.SendStreamWriter(func(w *bufio.Writer) {
			enc := json.NewEncoder(w)
			for event := range stream.Events() {
				if err := enc.Encode(event); err != nil {
					return
				}
				if err := w.Flush(); err != nil {
					return
				}
			}
		})
	})

	// ── Nodes ─────────────────────────────────────────────────────────
	app.Post("/api/nodes/execute", func(c fiber.Ctx) error {
		var req nodeExecuteRequest
		if err := c.Bind().JSON(&req); err != nil {
			return c.Status(400).JSON(fiber.Map{"error": "invalid body"})
		}
		if req.GraphID == "" || req.NodeID == "" {
			return c.Status(400).JSON(fiber.Map{"error": "graph_id and node_id are required"})
		}

		result, err := engine.ExecuteNodeByID(c.Context(), req.GraphID, req.NodeID, req.InputState, req.MockPreviousState)
		if err != nil {
			var notFound *execution.NotFoundError
			if errors.As(err, &notFound) {
				return c.Status(404).JSON(fiber.Map{"error": notFound.Error()})
			}
			return c.Status(500).JSON(fiber.Map{"error": err.Error()})
		}
		return c.JSON(result)
	})

	app.Get("/api/nodes/:graphID/:nodeID/state", func(c fiber.Ctx) error {
		info, err := engine.NodeStateByID(c.Context(), c.Params("graphID"), c.Params("nodeID"))
		if err != nil {
			var notFound *execution.NotFoundError
			if errors.As(err, &notFound) {
				return c.Status(404).JSON(fiber.Map{"error": notFound.Error()})
			}
			return c.Status(500).JSON(fiber.Map{"error": err.Error()})
		}
		return c.JSON(info)
	})

	return app
}
