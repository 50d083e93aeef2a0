// Package commands implements the map subcommands of the CLI on top of the
// HTTP client and the editor session.
package commands

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/starford/mindmap/internal/client"
	"github.com/starford/mindmap/internal/editor"
	"github.com/starford/mindmap/internal/graph"
	"github.com/starford/mindmap/internal/mapsync"
	"github.com/starford/mindmap/internal/models"
	"github.com/starford/mindmap/internal/wire"
)

// Env carries what every command needs.
type Env struct {
	Client    *client.Client
	Out       io.Writer
	SaveDelay time.Duration
	Logger    *slog.Logger
}

func (e *Env) logger() *slog.Logger {
	if e.Logger == nil {
		return slog.New(slog.DiscardHandler)
	}
	return e.Logger
}

// session opens id in a new editor session. Callers must Close it to flush.
func (e *Env) session(ctx context.Context, id string) (*editor.Session, error) {
	var opts []mapsync.Option
	if e.SaveDelay > 0 {
		opts = append(opts, mapsync.WithSaveDelay(e.SaveDelay))
	}
	s := editor.New(e.Client, editor.Config{SyncOptions: opts, Logger: e.logger()})
	if _, err := s.Open(ctx, id); err != nil {
		return nil, err
	}
	return s, nil
}

// edit opens id, applies fn and flushes the pending save. A failed flush is
// returned even when fn succeeded, so callers print results only after edit
// returns nil.
func (e *Env) edit(ctx context.Context, id string, fn func(*editor.Session) error) error {
	s, err := e.session(ctx, id)
	if err != nil {
		return err
	}
	if err := fn(s); err != nil {
		_ = s.Close(ctx)
		return err
	}
	return s.Close(ctx)
}

// List prints maps as a table.
func List(ctx context.Context, env *Env, status, query string) error {
	maps, err := env.Client.List(ctx, status, query)
	if err != nil {
		return err
	}
	tw := tabwriter.NewWriter(env.Out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tSTATUS\tTITLE\tUPDATED")
	for _, m := range maps {
		updated := ""
		if !m.UpdatedAt.IsZero() {
			updated = m.UpdatedAt.Local().Format(time.DateTime)
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", m.ID, m.Status, m.Title, updated)
	}
	return tw.Flush()
}

// Create makes a new draft map and prints its id.
func Create(ctx context.Context, env *Env, title string) error {
	m, err := env.Client.Create(ctx, wire.Map{Title: strings.TrimSpace(title), Status: models.StatusDraft})
	if err != nil {
		return err
	}
	fmt.Fprintln(env.Out, m.ID)
	return nil
}

// Show prints a map header, its nodes and its Mermaid rendering.
func Show(ctx context.Context, env *Env, id string) error {
	var buf bytes.Buffer
	err := env.edit(ctx, id, func(s *editor.Session) error {
		g := s.Store()
		fmt.Fprintf(&buf, "%s (%s)\n\n", g.Title(), g.Status())
		tw := tabwriter.NewWriter(&buf, 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "NODE\tTYPE\tLABEL")
		for _, n := range g.Nodes() {
			fmt.Fprintf(tw, "%s\t%s\t%s\n", n.ID, n.Type, n.Label())
		}
		if err := tw.Flush(); err != nil {
			return err
		}
		fmt.Fprintf(&buf, "\n%s\n", s.Export())
		return nil
	})
	if err != nil {
		return err
	}
	_, err = buf.WriteTo(env.Out)
	return err
}

// Export prints the Mermaid text of a map. With remote set the backend
// renders it; otherwise it is rendered locally from the loaded graph.
func Export(ctx context.Context, env *Env, id string, remote bool) error {
	if remote {
		text, err := env.Client.ExportMermaid(ctx, id)
		if err != nil {
			return err
		}
		fmt.Fprintln(env.Out, text)
		return nil
	}
	var text string
	err := env.edit(ctx, id, func(s *editor.Session) error {
		text = s.Export()
		return nil
	})
	if err != nil {
		return err
	}
	fmt.Fprintln(env.Out, text)
	return nil
}

// AddNode adds a node of type t labelled label, optionally connected from
// parent, and prints the new node id.
func AddNode(ctx context.Context, env *Env, id, t, label, parent string) error {
	var added models.Node
	err := env.edit(ctx, id, func(s *editor.Session) error {
		if parent != "" {
			if _, ok := s.Store().Node(parent); !ok {
				return fmt.Errorf("unknown parent node %q", parent)
			}
		}
		added = s.AddNode(models.ParseNodeType(t), nil)
		if label = strings.TrimSpace(label); label != "" {
			data := models.CloneData(added.Data)
			data.SetLabel(label)
			s.ApplyNodeChanges(graph.UpdateNodeChange(added.ID, data))
		}
		if parent != "" {
			s.Connect(parent, added.ID)
		}
		return nil
	})
	if err != nil {
		return err
	}
	fmt.Fprintln(env.Out, added.ID)
	return nil
}

// Connect adds an edge between two existing nodes and prints its id.
func Connect(ctx context.Context, env *Env, id, source, target, label string) error {
	var edge models.Edge
	err := env.edit(ctx, id, func(s *editor.Session) error {
		for _, nid := range []string{source, target} {
			if _, ok := s.Store().Node(nid); !ok {
				return fmt.Errorf("unknown node %q", nid)
			}
		}
		edge = s.Connect(source, target)
		if label != "" {
			s.ApplyEdgeChanges(graph.UpdateEdgeChange(edge.ID, label))
		}
		return nil
	})
	if err != nil {
		return err
	}
	fmt.Fprintln(env.Out, edge.ID)
	return nil
}

// Rename changes the title of a map.
func Rename(ctx context.Context, env *Env, id, title string) error {
	m, err := env.Client.Rename(ctx, id, title)
	if err != nil {
		return err
	}
	fmt.Fprintf(env.Out, "%s renamed to %q\n", m.ID, m.Title)
	return nil
}

// Duplicate copies a map and prints the id of the copy.
func Duplicate(ctx context.Context, env *Env, id string) error {
	m, err := env.Client.Duplicate(ctx, id)
	if err != nil {
		return err
	}
	fmt.Fprintln(env.Out, m.ID)
	return nil
}

// Delete removes a map.
func Delete(ctx context.Context, env *Env, id string) error {
	if err := env.Client.Delete(ctx, id); err != nil {
		return err
	}
	fmt.Fprintf(env.Out, "%s deleted\n", id)
	return nil
}

// Expand grows a map from prompt and prints the resulting diagram.
func Expand(ctx context.Context, env *Env, id, prompt string) error {
	if strings.TrimSpace(prompt) == "" {
		return errors.New("prompt is required")
	}
	var text string
	err := env.edit(ctx, id, func(s *editor.Session) error {
		if err := s.Expand(ctx, prompt); err != nil {
			return err
		}
		text = s.Export()
		return nil
	})
	if err != nil {
		return err
	}
	fmt.Fprintln(env.Out, text)
	return nil
}

// Publish promotes a map to a project and prints the project id.
func Publish(ctx context.Context, env *Env, id string) error {
	var pid string
	err := env.edit(ctx, id, func(s *editor.Session) error {
		var err error
		pid, err = s.Publish(ctx)
		return err
	})
	if err != nil {
		return err
	}
	fmt.Fprintln(env.Out, pid)
	return nil
}
