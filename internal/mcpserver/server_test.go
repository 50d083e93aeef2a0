package mcpserver

import (
	"context"
	"encoding/json"
	"strings"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/starford/mindmap/internal/mapservice"
	"github.com/starford/mindmap/internal/testutil"
	"github.com/starford/mindmap/internal/wire"
)

func testServer(t *testing.T) (*Server, *mapservice.Service) {
	t.Helper()
	_, store := testutil.TestVault(t)
	db := testutil.TestDB(t)
	svc := mapservice.NewService(store, db)
	return New(svc, nil), svc
}

func callTool(t *testing.T, srv *Server, name string, args map[string]interface{}) *mcp.CallToolResult {
	t.Helper()
	ctx := context.Background()
	req := mcp.CallToolRequest{}
	req.Method = "tools/call"
	req.Params.Name = name
	req.Params.Arguments = args

	// mcp-go has no direct "call tool" test helper, so handlers are invoked directly.
	var result *mcp.CallToolResult
	var err error

	switch name {
	case "list_maps":
		result, err = srv.listMaps(ctx, req)
	case "get_map":
		result, err = srv.getMap(ctx, req)
	case "create_map":
		result, err = srv.createMap(ctx, req)
	case "add_node":
		result, err = srv.addNode(ctx, req)
	case "connect_nodes":
		result, err = srv.connectNodes(ctx, req)
	case "export_mermaid":
		result, err = srv.exportMermaid(ctx, req)
	case "expand_map":
		result, err = srv.expandMap(ctx, req)
	case "get_node_types":
		result, err = srv.getNodeTypes(ctx, req)
	default:
		t.Fatalf("unknown tool: %s", name)
	}

	if err != nil {
		t.Fatalf("tool %s error: %v", name, err)
	}
	return result
}

func resultText(r *mcp.CallToolResult) string {
	if len(r.Content) > 0 {
		if tc, ok := r.Content[0].(mcp.TextContent); ok {
			return tc.Text
		}
	}
	return ""
}

func createdID(t *testing.T, r *mcp.CallToolResult, prefix string) string {
	t.Helper()
	text := resultText(r)
	if r.IsError || !strings.HasPrefix(text, prefix) {
		t.Fatalf("result = %q", text)
	}
	return strings.TrimPrefix(text, prefix)
}

func TestCreateAddConnectAndRead(t *testing.T) {
	srv, _ := testServer(t)

	id := createdID(t, callTool(t, srv, "create_map", map[string]interface{}{"title": "Launch"}), "created: ")
	root := createdID(t, callTool(t, srv, "add_node", map[string]interface{}{
		"map_id": id, "type": "topic", "label": "Launch plan",
	}), "added: ")
	child := createdID(t, callTool(t, srv, "add_node", map[string]interface{}{
		"map_id": id, "type": "risk", "label": "Late docs", "parent_id": root,
	}), "added: ")
	createdID(t, callTool(t, srv, "connect_nodes", map[string]interface{}{
		"map_id": id, "source_id": child, "target_id": root, "label": "blocks",
	}), "connected: ")

	r := callTool(t, srv, "get_map", map[string]interface{}{"id": id})
	var m wire.Map
	if err := json.Unmarshal([]byte(resultText(r)), &m); err != nil {
		t.Fatalf("decode map: %v", err)
	}
	if len(m.Nodes) != 2 || len(m.Edges) != 2 {
		t.Fatalf("nodes=%d edges=%d", len(m.Nodes), len(m.Edges))
	}
	if m.Nodes[1].Label != "Late docs" || m.Nodes[1].Data["type"] != "risk" {
		t.Errorf("node = %+v", m.Nodes[1])
	}
	if m.Edges[1].Data["label"] != "blocks" {
		t.Errorf("edge = %+v", m.Edges[1])
	}

	r = callTool(t, srv, "export_mermaid", map[string]interface{}{"id": id})
	if text := resultText(r); !strings.Contains(text, "N2 -- blocks --> N1") {
		t.Errorf("mermaid = %q", text)
	}
}

func TestAddNode_UnknownParent(t *testing.T) {
	srv, _ := testServer(t)
	id := createdID(t, callTool(t, srv, "create_map", map[string]interface{}{"title": "X"}), "created: ")
	r := callTool(t, srv, "add_node", map[string]interface{}{"map_id": id, "label": "A", "parent_id": "ghost"})
	if !r.IsError {
		t.Error("expected error for unknown parent")
	}
}

func TestConnect_UnknownNode(t *testing.T) {
	srv, _ := testServer(t)
	id := createdID(t, callTool(t, srv, "create_map", map[string]interface{}{"title": "X"}), "created: ")
	r := callTool(t, srv, "connect_nodes", map[string]interface{}{"map_id": id, "source_id": "a", "target_id": "b"})
	if !r.IsError {
		t.Error("expected error for unknown nodes")
	}
}

func TestListAndExpand(t *testing.T) {
	srv, _ := testServer(t)
	if r := callTool(t, srv, "list_maps", map[string]interface{}{}); resultText(r) != "no maps found" {
		t.Errorf("empty list = %q", resultText(r))
	}
	id := createdID(t, callTool(t, srv, "create_map", map[string]interface{}{"title": "Growth"}), "created: ")

	r := callTool(t, srv, "expand_map", map[string]interface{}{"id": id, "prompt": "SEO, Ads, Referrals"})
	if text := resultText(r); r.IsError || !strings.Contains(text, "4 nodes") {
		t.Errorf("expand = %q", text)
	}

	r = callTool(t, srv, "list_maps", map[string]interface{}{"status": "draft"})
	if text := resultText(r); !strings.Contains(text, id) || !strings.Contains(text, "Growth") {
		t.Errorf("list = %q", text)
	}
}

func TestGetMapMissing(t *testing.T) {
	srv, _ := testServer(t)
	r := callTool(t, srv, "get_map", map[string]interface{}{"id": "nope"})
	if !r.IsError {
		t.Error("expected error for missing map")
	}
}

func TestNodeTypesContract(t *testing.T) {
	srv, _ := testServer(t)
	text := resultText(callTool(t, srv, "get_node_types", nil))
	for _, typ := range []string{"decision", "milestone", "persona", "kpi"} {
		if !strings.Contains(text, typ) {
			t.Errorf("contract missing %q", typ)
		}
	}

	res, err := srv.readNodeTypesResource(context.Background(), mcp.ReadResourceRequest{})
	if err != nil || len(res) != 1 {
		t.Fatalf("resource = %v, %v", res, err)
	}
	if tc, ok := res[0].(mcp.TextResourceContents); !ok || tc.URI != nodeTypesURI {
		t.Errorf("resource = %+v", res[0])
	}
}
