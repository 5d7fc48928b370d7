// Package mcpserver exposes spec §6's UI command set ("Commands consumed
// from the UI") as MCP tools over github.com/modelcontextprotocol/go-sdk,
// so an MCP-speaking client (an IDE agent, a test harness) can drive a
// UniVoice session the same way the websocket transport does.
//
// Grounded structurally on fankserver-discord-voice-mcp's internal/mcp
// server (one tool per bot action, arguments validated before dispatch)
// but built on the real SDK's typed mcp.AddTool instead of hand-rolled
// JSON-RPC framing.
package mcpserver

import (
	"context"
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/univoice/univoice-core/pkg/pipeline"
)

// Server wraps a *pipeline.PipelineOrchestrator with an MCP tool surface.
type Server struct {
	orch *pipeline.PipelineOrchestrator
	mcp  *mcp.Server
}

// New builds the MCP server and registers every §6 command as a tool.
// Call Run to serve it over stdio.
func New(orch *pipeline.PipelineOrchestrator) *Server {
	s := &Server{
		orch: orch,
		mcp: mcp.NewServer(&mcp.Implementation{
			Name:    "univoice-core",
			Version: "0.1.0",
		}, nil),
	}
	s.registerTools()
	return s
}

// Run serves the MCP server over stdio until ctx is cancelled, matching
// how an IDE or CLI agent typically launches an MCP server subprocess.
func (s *Server) Run(ctx context.Context) error {
	return s.mcp.Run(ctx, &mcp.StdioTransport{})
}

type startListeningArgs struct {
	SourceLanguage string `json:"source_language" jsonschema:"ISO-639-1 source language"`
	TargetLanguage string `json:"target_language" jsonschema:"ISO-639-1 target language"`
}

type translateUserInputArgs struct {
	Text string `json:"text" jsonschema:"text to translate"`
	From string `json:"from" jsonschema:"source language"`
	To   string `json:"to" jsonschema:"target language"`
}

type getHistoryArgs struct {
	Limit  int `json:"limit,omitempty"`
	Offset int `json:"offset,omitempty"`
}

// commandResult mirrors the transport's {success, error?} command
// acknowledgement shape so both surfaces read identically to a client.
type commandResult struct {
	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`
}

func ok() (*mcp.CallToolResult, commandResult, error) {
	return nil, commandResult{Success: true}, nil
}

func fail(err error) (*mcp.CallToolResult, commandResult, error) {
	return nil, commandResult{Success: false, Error: err.Error()}, nil
}

func (s *Server) registerTools() {
	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "startListening",
		Description: "Begin a captioning session: opens the ASR stream and transitions idle -> listening.",
	}, func(ctx context.Context, _ *mcp.CallToolRequest, args startListeningArgs) (*mcp.CallToolResult, commandResult, error) {
		if args.SourceLanguage == "" || args.TargetLanguage == "" {
			return fail(fmt.Errorf("%s: source_language and target_language are required", pipeline.ErrCodeCommandValidation))
		}
		if err := s.orch.UpdateLanguages(pipeline.Language(args.SourceLanguage), pipeline.Language(args.TargetLanguage)); err != nil {
			return fail(err)
		}
		if err := s.orch.Start(ctx); err != nil {
			return fail(err)
		}
		return ok()
	})

	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "stopListening",
		Description: "End the current captioning session: flushes pending sentences/paragraphs and returns to idle.",
	}, func(ctx context.Context, _ *mcp.CallToolRequest, _ struct{}) (*mcp.CallToolResult, commandResult, error) {
		if err := s.orch.Stop(ctx); err != nil {
			return fail(err)
		}
		return ok()
	})

	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "pause",
		Description: "Suspend audio intake without tearing down the ASR connection.",
	}, func(_ context.Context, _ *mcp.CallToolRequest, _ struct{}) (*mcp.CallToolResult, commandResult, error) {
		if err := s.orch.Pause(); err != nil {
			return fail(err)
		}
		return ok()
	})

	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "resume",
		Description: "Reverse pause and resume audio intake.",
	}, func(_ context.Context, _ *mcp.CallToolRequest, _ struct{}) (*mcp.CallToolResult, commandResult, error) {
		if err := s.orch.Resume(); err != nil {
			return fail(err)
		}
		return ok()
	})

	type translationResult struct {
		Success     bool   `json:"success"`
		Translation string `json:"translation,omitempty"`
		Error       string `json:"error,omitempty"`
	}
	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "translateUserInput",
		Description: "Ad-hoc translation of arbitrary text, bypassing the sentence/paragraph pipeline.",
	}, func(ctx context.Context, _ *mcp.CallToolRequest, args translateUserInputArgs) (*mcp.CallToolResult, translationResult, error) {
		if args.Text == "" {
			return nil, translationResult{Success: false, Error: fmt.Sprintf("%s: text is required", pipeline.ErrCodeCommandValidation)}, nil
		}
		translated, err := s.orch.TranslateUserText(ctx, args.Text, pipeline.Language(args.From), pipeline.Language(args.To))
		if err != nil {
			return nil, translationResult{Success: false, Error: err.Error()}, nil
		}
		return nil, translationResult{Success: true, Translation: translated}, nil
	})

	type historyResult struct {
		Success bool                    `json:"success"`
		History []pipeline.HistoryBlock `json:"history"`
	}
	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "getHistory",
		Description: "Fetch the ordered history of sentence/paragraph blocks, optionally paged.",
	}, func(_ context.Context, _ *mcp.CallToolRequest, args getHistoryArgs) (*mcp.CallToolResult, historyResult, error) {
		return nil, historyResult{Success: true, History: s.orch.GetHistory(args.Limit, args.Offset)}, nil
	})

	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "clearHistory",
		Description: "Clear the in-memory history blocks.",
	}, func(_ context.Context, _ *mcp.CallToolRequest, _ struct{}) (*mcp.CallToolResult, commandResult, error) {
		s.orch.ClearHistory()
		return ok()
	})

	type vocabularyResult struct {
		Success    bool                    `json:"success"`
		Vocabulary pipeline.VocabularyData `json:"vocabulary"`
	}
	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "generateVocabulary",
		Description: "Generate a vocabulary list from the session's cumulative summary.",
	}, func(ctx context.Context, _ *mcp.CallToolRequest, _ struct{}) (*mcp.CallToolResult, vocabularyResult, error) {
		vocab, err := s.orch.GenerateVocabulary(ctx)
		if err != nil {
			return nil, vocabularyResult{Success: false}, nil
		}
		return nil, vocabularyResult{Success: true, Vocabulary: vocab}, nil
	})

	type reportResult struct {
		Success bool   `json:"success"`
		Report  string `json:"report,omitempty"`
		Error   string `json:"error,omitempty"`
	}
	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "generateFinalReport",
		Description: "Generate the end-of-session structured report from the cumulative summary.",
	}, func(ctx context.Context, _ *mcp.CallToolRequest, _ struct{}) (*mcp.CallToolResult, reportResult, error) {
		report, err := s.orch.GenerateFinalReport(ctx)
		if err != nil {
			return nil, reportResult{Success: false, Error: err.Error()}, nil
		}
		return nil, reportResult{Success: true, Report: report}, nil
	})
}
