// Package mcpserver provides an MCP (Model Context Protocol) server
// that exposes caged sessions and tutorials via stdio transport.
package mcpserver

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/starford/caged/internal/api"
	"github.com/starford/caged/internal/export"
	"github.com/starford/caged/internal/extract"
	"github.com/starford/caged/internal/fretboard"
	"github.com/starford/caged/internal/session"
)

// Server wraps the MCP server with caged tools.
type Server struct {
	mcp       *server.MCPServer
	sessions  api.Sessions
	tutorials api.Tutorials
	extractor extract.TextExtractor
}

// New creates a new MCP server with all tools registered. tutorials may be
// nil, which disables search_tutorials results.
func New(sessions api.Sessions, tutorials api.Tutorials, ex extract.TextExtractor) *Server {
	if ex == nil {
		ex = extract.PDF{}
	}
	s := &Server{sessions: sessions, tutorials: tutorials, extractor: ex}

	s.mcp = server.NewMCPServer(
		"caged",
		"1.0.0",
		server.WithToolCapabilities(false),
		server.WithResourceCapabilities(false, false),
	)

	s.mcp.AddTool(mcp.NewTool("create_session",
		mcp.WithDescription("Create a fretboard session in box mode with shape C. Empty fields use the configured defaults."),
		mcp.WithString("key", mcp.Description("Root pitch class, e.g. C, F#, Bb")),
		mcp.WithString("quality", mcp.Description("Chord quality"), mcp.Enum("Maj7", "Dom7", "Min7", "Min7b5", "Dim7")),
		mcp.WithString("tuning", mcp.Description("Tuning name"), mcp.Enum("Standard", "DADGAD", "Open D", "Drop D")),
	), s.createSession)

	s.mcp.AddTool(mcp.NewTool("get_session",
		mcp.WithDescription("Return a session snapshot: key, shape, mode and every visible note."),
		mcp.WithString("id", mcp.Required(), mcp.Description("Session ID")),
	), s.getSession)

	s.mcp.AddTool(mcp.NewTool("switch_mode",
		mcp.WithDescription("Switch a session between box (shape navigation) and edit (note mutation) mode."),
		mcp.WithString("id", mcp.Required(), mcp.Description("Session ID")),
		mcp.WithString("mode", mcp.Required(), mcp.Enum("box", "edit")),
	), s.switchMode)

	s.mcp.AddTool(mcp.NewTool("advance_shape",
		mcp.WithDescription("Advance to the next CAGED shape: C, A, G, E, D, then C again."),
		mcp.WithString("id", mcp.Required(), mcp.Description("Session ID")),
	), s.advanceShape)

	s.mcp.AddTool(mcp.NewTool("click_note",
		mcp.WithDescription("Press a fretboard position. presses=2 is a double click. "+
			"Single clicks resolve after the double-click window; read the session afterwards."),
		mcp.WithString("id", mcp.Required(), mcp.Description("Session ID")),
		mcp.WithNumber("string", mcp.Required(), mcp.Description("String index, 0 is the lowest string")),
		mcp.WithNumber("fret", mcp.Required(), mcp.Description("Fret, 0 is the open string")),
		mcp.WithNumber("presses", mcp.Description("1 or 2, defaults to 1")),
	), s.clickNote)

	s.mcp.AddTool(mcp.NewTool("set_root",
		mcp.WithDescription("Make the pitch at a position the key and place the box in that position's octave. "+
			"Shape and mode are kept; edits are discarded."),
		mcp.WithString("id", mcp.Required(), mcp.Description("Session ID")),
		mcp.WithNumber("string", mcp.Required(), mcp.Description("String index, 0 is the lowest string")),
		mcp.WithNumber("fret", mcp.Required(), mcp.Description("Fret, 0 is the open string")),
	), s.setRoot)

	s.mcp.AddTool(mcp.NewTool("jump_to_shape",
		mcp.WithDescription("Root the board at a position using the shape whose root sits on that string "+
			"(E on strings 0 and 5, A on 1, D on 2 and 4, G on 3) and return to box mode. Standard tuning only."),
		mcp.WithString("id", mcp.Required(), mcp.Description("Session ID")),
		mcp.WithNumber("string", mcp.Required(), mcp.Description("String index, 0 is the lowest string")),
		mcp.WithNumber("fret", mcp.Required(), mcp.Description("Fret, 0 is the open string")),
	), s.jumpToShape)

	s.mcp.AddTool(mcp.NewTool("import_tab",
		mcp.WithDescription("Load ASCII tablature into a session's edit layer. "+
			"Read the format first via get_tab_format or the caged://tab-format resource."),
		mcp.WithString("id", mcp.Required(), mcp.Description("Session ID")),
		mcp.WithString("tab", mcp.Required(), mcp.Description("Tablature text, optionally with YAML frontmatter")),
	), s.importTab)

	s.mcp.AddTool(mcp.NewTool("get_tab_format",
		mcp.WithDescription("Returns the tab import format accepted by import_tab."),
	), s.getTabFormat)

	s.mcp.AddTool(mcp.NewTool("export_session",
		mcp.WithDescription("Render a session as PDF or MIDI. With dir the file is written there, "+
			"otherwise the content is returned base64-encoded."),
		mcp.WithString("id", mcp.Required(), mcp.Description("Session ID")),
		mcp.WithString("format", mcp.Enum("pdf", "midi"), mcp.Description("Defaults to pdf")),
		mcp.WithString("dir", mcp.Description("Optional output directory")),
	), s.exportSession)

	s.mcp.AddTool(mcp.NewTool("search_tutorials",
		mcp.WithDescription("Full-text search through the indexed PDF tutorials."),
		mcp.WithString("query", mcp.Required(), mcp.Description("Search query string")),
	), s.searchTutorials)

	s.mcp.AddTool(mcp.NewTool("extract_pdfs",
		mcp.WithDescription("Extract the text of every PDF in a directory, in name order. "+
			"Files that fail are reported inline."),
		mcp.WithString("dir", mcp.Required(), mcp.Description("Directory to scan")),
	), s.extractPDFs)

	s.mcp.AddResource(
		mcp.NewResource("caged://tab-format", "Tab Import Format",
			mcp.WithResourceDescription("ASCII tablature format accepted by import_tab."),
			mcp.WithMIMEType("text/markdown"),
		),
		s.readTabFormatResource,
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

func jsonResult(v any) (*mcp.CallToolResult, error) {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(string(out)), nil
}

func snapshotResult(sess *session.Session) (*mcp.CallToolResult, error) {
	return jsonResult(api.NewSnapshotDTO(sess.Snapshot()))
}

func (s *Server) session(req mcp.CallToolRequest) (*session.Session, *mcp.CallToolResult) {
	id, err := req.RequireString("id")
	if err != nil {
		return nil, mcp.NewToolResultError(err.Error())
	}
	sess, err := s.sessions.Get(id)
	if err != nil {
		return nil, mcp.NewToolResultError(err.Error())
	}
	return sess, nil
}

func (s *Server) createSession(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	sess, err := s.sessions.Create(ctx, session.Params{
		Key:     req.GetString("key", ""),
		Quality: req.GetString("quality", ""),
		Tuning:  req.GetString("tuning", ""),
	})
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return snapshotResult(sess)
}

func (s *Server) getSession(_ context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	sess, errRes := s.session(req)
	if errRes != nil {
		return errRes, nil
	}
	return snapshotResult(sess)
}

func (s *Server) switchMode(_ context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	sess, errRes := s.session(req)
	if errRes != nil {
		return errRes, nil
	}
	raw, err := req.RequireString("mode")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	m, err := fretboard.ParseMode(raw)
	if err == nil {
		err = sess.SwitchTo(m)
	}
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return snapshotResult(sess)
}

func (s *Server) advanceShape(_ context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	sess, errRes := s.session(req)
	if errRes != nil {
		return errRes, nil
	}
	if _, err := sess.AdvanceShape(); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return snapshotResult(sess)
}

func (s *Server) clickNote(_ context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	sess, errRes := s.session(req)
	if errRes != nil {
		return errRes, nil
	}
	p, err := position(req)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	presses := req.GetInt("presses", 1)
	if presses != 1 && presses != 2 {
		return mcp.NewToolResultError("presses must be 1 or 2"), nil
	}
	for range presses {
		if err := sess.Click(p); err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
	}
	return jsonResult(map[string]any{
		"pending":  sess.PendingClicks(),
		"position": p,
	})
}

func (s *Server) setRoot(_ context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	sess, errRes := s.session(req)
	if errRes != nil {
		return errRes, nil
	}
	p, err := position(req)
	if err == nil {
		err = sess.SetRootAt(p)
	}
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return snapshotResult(sess)
}

func (s *Server) jumpToShape(_ context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	sess, errRes := s.session(req)
	if errRes != nil {
		return errRes, nil
	}
	p, err := position(req)
	if err == nil {
		_, err = sess.JumpToShape(p)
	}
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return snapshotResult(sess)
}

func position(req mcp.CallToolRequest) (fretboard.Position, error) {
	str, err := req.RequireInt("string")
	if err != nil {
		return fretboard.Position{}, err
	}
	fret, err := req.RequireInt("fret")
	if err != nil {
		return fretboard.Position{}, err
	}
	return fretboard.Position{Str: str, Fret: fret}, nil
}

func (s *Server) importTab(_ context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	sess, errRes := s.session(req)
	if errRes != nil {
		return errRes, nil
	}
	text, err := req.RequireString("tab")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if err := api.ImportTab(sess, []byte(text)); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return snapshotResult(sess)
}

func (s *Server) getTabFormat(_ context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return mcp.NewToolResultText(TabFormatContract), nil
}

func (s *Server) readTabFormatResource(_ context.Context, _ mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      "caged://tab-format",
			MIMEType: "text/markdown",
			Text:     TabFormatContract,
		},
	}, nil
}

type exportResult struct {
	Filename    string `json:"filename"`
	ContentType string `json:"contentType"`
	Size        int    `json:"size"`
	SavedPath   string `json:"savedPath,omitempty"`
	Base64      string `json:"base64,omitempty"`
}

func (s *Server) exportSession(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	sess, errRes := s.session(req)
	if errRes != nil {
		return errRes, nil
	}
	f, err := export.ParseFormat(req.GetString("format", ""))
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	art, err := export.Export(ctx, sess.Snapshot(), f)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	res := exportResult{Filename: art.SuggestedFilename, ContentType: art.ContentType, Size: len(art.Data)}
	if dir := req.GetString("dir", ""); dir != "" {
		res.SavedPath = filepath.Join(dir, art.SuggestedFilename)
		if err := os.WriteFile(res.SavedPath, art.Data, 0o644); err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("write export: %v", err)), nil
		}
	} else {
		res.Base64 = base64.StdEncoding.EncodeToString(art.Data)
	}
	return jsonResult(res)
}

func (s *Server) searchTutorials(_ context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	query, err := req.RequireString("query")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if s.tutorials == nil {
		return mcp.NewToolResultError("tutorial library is not configured"), nil
	}
	results, err := s.tutorials.Search(query, 20)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(results)
}

func (s *Server) extractPDFs(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	dir, err := req.RequireString("dir")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	results, err := extract.Batch(ctx, dir, s.extractor, extract.DefaultLimit)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	var buf bytes.Buffer
	if err := extract.Dump(&buf, dir, results); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(buf.String()), nil
}
