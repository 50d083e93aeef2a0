// Package mcpserver provides an MCP (Model Context Protocol) server
// that exposes mind-map tools for LLM integration via stdio transport.
package mcpserver

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/starford/mindmap/internal/graph"
	"github.com/starford/mindmap/internal/mapservice"
	"github.com/starford/mindmap/internal/models"
	"github.com/starford/mindmap/internal/wire"
)

const nodeTypesURI = "mindmap://node-types"

// Server wraps the MCP server with mind-map tools.
type Server struct {
	mcp    *server.MCPServer
	svc    *mapservice.Service
	logger *slog.Logger
}

// New creates a new MCP server with all mind-map tools registered.
func New(svc *mapservice.Service, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	s := &Server{svc: svc, logger: logger}

	s.mcp = server.NewMCPServer(
		"Mindmap",
		"1.0.0",
		server.WithToolCapabilities(false),
		server.WithResourceCapabilities(false, false),
	)

	s.mcp.AddTool(mcp.NewTool("list_maps",
		mcp.WithDescription("List mind maps, newest first."),
		mcp.WithString("status", mcp.Description("Optional status filter"), mcp.Enum(models.StatusDraft, models.StatusPublished)),
		mcp.WithString("query", mcp.Description("Optional title filter")),
	), s.listMaps)

	s.mcp.AddTool(mcp.NewTool("get_map",
		mcp.WithDescription("Read a mind map with all its nodes and edges as JSON."),
		mcp.WithString("id", mcp.Required(), mcp.Description("Map id")),
	), s.getMap)

	s.mcp.AddTool(mcp.NewTool("create_map",
		mcp.WithDescription("Create an empty draft mind map."),
		mcp.WithString("title", mcp.Required(), mcp.Description("Map title")),
	), s.createMap)

	s.mcp.AddTool(mcp.NewTool("add_node",
		mcp.WithDescription("Add a node to a map. Read the vocabulary first via "+
			"the get_node_types tool or the "+nodeTypesURI+" resource."),
		mcp.WithString("map_id", mcp.Required(), mcp.Description("Map id")),
		mcp.WithString("type", mcp.Description("Node type (defaults to idea)")),
		mcp.WithString("label", mcp.Required(), mcp.Description("Node label")),
		mcp.WithString("parent_id", mcp.Description("Optional node to connect the new node from")),
	), s.addNode)

	s.mcp.AddTool(mcp.NewTool("connect_nodes",
		mcp.WithDescription("Add a directed edge between two nodes of a map."),
		mcp.WithString("map_id", mcp.Required(), mcp.Description("Map id")),
		mcp.WithString("source_id", mcp.Required(), mcp.Description("Source node id")),
		mcp.WithString("target_id", mcp.Required(), mcp.Description("Target node id")),
		mcp.WithString("label", mcp.Description("Optional edge label")),
	), s.connectNodes)

	s.mcp.AddTool(mcp.NewTool("export_mermaid",
		mcp.WithDescription("Render a map as a Mermaid flowchart."),
		mcp.WithString("id", mcp.Required(), mcp.Description("Map id")),
	), s.exportMermaid)

	s.mcp.AddTool(mcp.NewTool("expand_map",
		mcp.WithDescription("Grow a map with ideas generated from a prompt."),
		mcp.WithString("id", mcp.Required(), mcp.Description("Map id")),
		mcp.WithString("prompt", mcp.Required(), mcp.Description("What to expand on")),
	), s.expandMap)

	s.mcp.AddTool(mcp.NewTool("get_node_types",
		mcp.WithDescription("Returns the node type vocabulary with default labels and attributes."),
	), s.getNodeTypes)

	// Resource: node type vocabulary.
	s.mcp.AddResource(
		mcp.NewResource(nodeTypesURI, "Node Types",
			mcp.WithResourceDescription("Node types, their default labels and attributes."),
			mcp.WithMIMEType("text/markdown"),
		),
		s.readNodeTypesResource,
	)

	return s
}

// ServeStdio starts the MCP server on stdin/stdout.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcp)
}

// MCPServer returns the underlying server for testing.
func (s *Server) MCPServer() *server.MCPServer {
	return s.mcp
}

func jsonResult(v any) *mcp.CallToolResult {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return mcp.NewToolResultError(err.Error())
	}
	return mcp.NewToolResultText(string(out))
}

func (s *Server) listMaps(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	items, err := s.svc.List(ctx, req.GetString("status", ""), req.GetString("query", ""))
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if len(items) == 0 {
		return mcp.NewToolResultText("no maps found"), nil
	}
	lines := make([]string, len(items))
	for i, m := range items {
		lines[i] = fmt.Sprintf("%s\t%s\t%s\t%d nodes", m.ID, m.Status, m.Title, m.NodeCount)
	}
	return mcp.NewToolResultText(strings.Join(lines, "\n")), nil
}

func (s *Server) getMap(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := req.RequireString("id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	m, err := s.svc.Get(ctx, id)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("get %s: %v", id, err)), nil
	}
	return jsonResult(m.Map), nil
}

func (s *Server) createMap(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	title, err := req.RequireString("title")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	m, err := s.svc.Create(ctx, wire.Map{Title: strings.TrimSpace(title), Status: models.StatusDraft})
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("created: %s", m.ID)), nil
}

func (s *Server) addNode(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	mapID, err := req.RequireString("map_id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	label, err := req.RequireString("label")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	t := models.NodeIdea
	if raw := req.GetString("type", ""); raw != "" {
		t = models.ParseNodeType(raw)
	}
	parent := req.GetString("parent_id", "")

	var added models.Node
	err = s.edit(ctx, mapID, func(g *graph.Store) error {
		if parent != "" {
			if _, ok := g.Node(parent); !ok {
				return fmt.Errorf("unknown parent node %q", parent)
			}
		}
		added = g.AddNode(t, nil)
		data := models.CloneData(added.Data)
		data.SetLabel(strings.TrimSpace(label))
		g.ApplyNodeChanges([]graph.NodeChange{graph.UpdateNodeChange(added.ID, data)})
		if parent != "" {
			g.Connect(parent, added.ID)
		}
		return nil
	})
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("added: %s", added.ID)), nil
}

func (s *Server) connectNodes(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	mapID, err := req.RequireString("map_id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	source, err := req.RequireString("source_id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	target, err := req.RequireString("target_id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	label := req.GetString("label", "")

	var edge models.Edge
	err = s.edit(ctx, mapID, func(g *graph.Store) error {
		for _, id := range []string{source, target} {
			if _, ok := g.Node(id); !ok {
				return fmt.Errorf("unknown node %q", id)
			}
		}
		edge = g.Connect(source, target)
		if label != "" {
			g.ApplyEdgeChanges([]graph.EdgeChange{graph.UpdateEdgeChange(edge.ID, label)})
		}
		return nil
	})
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("connected: %s", edge.ID)), nil
}

func (s *Server) exportMermaid(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := req.RequireString("id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	text, err := s.svc.ExportMermaid(ctx, id)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("export %s: %v", id, err)), nil
	}
	return mcp.NewToolResultText(text), nil
}

func (s *Server) expandMap(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := req.RequireString("id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	prompt, err := req.RequireString("prompt")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	m, err := s.svc.Expand(ctx, id, prompt)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("expand %s: %v", id, err)), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("expanded: %s now has %d nodes", id, len(m.Nodes))), nil
}

func (s *Server) getNodeTypes(_ context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return mcp.NewToolResultText(NodeTypesContract), nil
}

func (s *Server) readNodeTypesResource(_ context.Context, _ mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      nodeTypesURI,
			MIMEType: "text/markdown",
			Text:     NodeTypesContract,
		},
	}, nil
}

// edit loads a map into a graph store, applies fn and saves the result with
// the loaded checksum as precondition.
func (s *Server) edit(ctx context.Context, id string, fn func(*graph.Store) error) error {
	cur, err := s.svc.Get(ctx, id)
	if err != nil {
		return fmt.Errorf("get %s: %w", id, err)
	}
	g := graph.New()
	g.Load(wire.ToModel(cur.Map))
	if err := fn(g); err != nil {
		return err
	}
	next := wire.FromModel(g.Map())
	if _, err := s.svc.Update(ctx, id, next, cur.Checksum); err != nil {
		return fmt.Errorf("save %s: %w", id, err)
	}
	s.logger.Debug("mcp: map edited", slog.String("id", id))
	return nil
}
