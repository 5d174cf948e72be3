// Package server exposes the agent over HTTP for the web frontend.
package server

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/onwardjourney/agent/internal/agent"
	logx "github.com/onwardjourney/agent/pkg/logger"
)

type Config struct {
	Addr string `envconfig:"SERVER_ADDR" default:":8080"`
}

// TranscriptTurn is one turn of a prior conversation handed to or from the
// agent.
type TranscriptTurn struct {
	Role string `json:"role"`
	Text string `json:"text"`
}

// HandoffPackage carries the context a previous agent collected before
// transferring the user here.
type HandoffPackage struct {
	HandoffAgentID           string           `json:"handoff_agent_id"`
	ModelUsed                string           `json:"model_used"`
	SystemInstructionUsed    string           `json:"system_instruction_used"`
	FinalConversationHistory []TranscriptTurn `json:"final_conversation_history"`
	NextAgentPrompt          string           `json:"next_agent_prompt"`
	Status                   string           `json:"status"`
}

// Server wires the agent to the chat and handoff endpoints.
type Server struct {
	agent *agent.Agent

	mu  sync.Mutex
	pkg HandoffPackage
}

func New(a *agent.Agent, pkg HandoffPackage) *Server {
	return &Server{agent: a, pkg: pkg}
}

// RegisterRoutes attaches all endpoints to the engine.
func (s *Server) RegisterRoutes(r *gin.Engine) {
	r.POST("/chat", s.handleChat)
	r.POST("/handoff/process", s.handleHandoffProcess)
	r.POST("/handoff/back", s.handleHandoffBack)
	r.GET("/handoff/package", s.handleHandoffPackage)
}

// Run starts the HTTP server and blocks.
func (s *Server) Run(cfg Config) error {
	r := gin.Default()
	s.RegisterRoutes(r)
	logx.Info().Str("addr", cfg.Addr).Msg("http server listening")
	return r.Run(cfg.Addr)
}

type chatRequest struct {
	Message   string `json:"message" binding:"required"`
	SessionID string `json:"session_id"`
}

type chatResponse struct {
	Response  string `json:"response"`
	SessionID string `json:"session_id"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func (s *Server) handleChat(c *gin.Context) {
	var req chatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errorResponse{Error: err.Error()})
		return
	}
	if req.SessionID == "" {
		req.SessionID = uuid.NewString()
	}

	res, err := s.agent.Send(c.Request.Context(), req.SessionID, req.Message, agent.SendOptions{})
	if err != nil {
		logx.Error().Err(err).Str("sessionID", req.SessionID).Msg("chat failed")
		c.JSON(http.StatusInternalServerError, errorResponse{Error: fmt.Sprintf("Agent Error: %v", err)})
		return
	}

	// A handoff signal, when present, travels inside the response text so the
	// frontend can detect the marker.
	text := res.Text
	if res.Handoff != nil {
		text = text + "\n" + res.Handoff.Render()
	}
	c.JSON(http.StatusOK, chatResponse{Response: text, SessionID: req.SessionID})
}

// handleHandoffProcess replays the stored handoff package as the first turn of
// a fresh session and returns the agent's opening response.
func (s *Server) handleHandoffProcess(c *gin.Context) {
	s.mu.Lock()
	pkg := s.pkg
	s.mu.Unlock()

	prompt, err := handoffContextPrompt(pkg)
	if err != nil {
		c.JSON(http.StatusInternalServerError, errorResponse{Error: err.Error()})
		return
	}

	sessionID := "handoff-" + uuid.NewString()
	res, err := s.agent.Send(c.Request.Context(), sessionID, prompt, agent.SendOptions{})
	if err != nil {
		logx.Error().Err(err).Msg("handoff processing failed")
		c.JSON(http.StatusInternalServerError, errorResponse{Error: fmt.Sprintf("Agent Error: %v", err)})
		return
	}
	c.JSON(http.StatusOK, chatResponse{Response: res.Text, SessionID: sessionID})
}

type handoffBackRequest struct {
	Transcript []TranscriptTurn `json:"transcript" binding:"required"`
}

type handoffBackResponse struct {
	Status  string `json:"status"`
	Summary string `json:"summary"`
}

// handleHandoffBack accepts a transcript coming back from a live agent and
// stores it as the new handoff context.
func (s *Server) handleHandoffBack(c *gin.Context) {
	var req handoffBackRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errorResponse{Error: err.Error()})
		return
	}

	var userTexts []string
	for _, turn := range req.Transcript {
		if turn.Role == "user" && turn.Text != "" {
			userTexts = append(userTexts, turn.Text)
		}
	}
	if len(userTexts) > 3 {
		userTexts = userTexts[len(userTexts)-3:]
	}
	summary := strings.Join(userTexts, " | ")

	s.mu.Lock()
	s.pkg.FinalConversationHistory = req.Transcript
	s.pkg.Status = "RETURNED_FROM_LIVE_CHAT"
	s.mu.Unlock()

	c.JSON(http.StatusOK, handoffBackResponse{Status: "RECEIVED", Summary: summary})
}

func (s *Server) handleHandoffPackage(c *gin.Context) {
	s.mu.Lock()
	pkg := s.pkg
	s.mu.Unlock()
	c.JSON(http.StatusOK, pkg)
}

// handoffContextPrompt renders the package the way the agent expects its
// first turn after a transfer.
func handoffContextPrompt(pkg HandoffPackage) (string, error) {
	history, err := json.Marshal(pkg.FinalConversationHistory)
	if err != nil {
		return "", fmt.Errorf("marshal handoff history: %w", err)
	}
	return fmt.Sprintf(
		"Previous conversation history: %s. The user's final request is: %s. "+
			"Please analyze the history and fulfill the user's request, using your specialized tools if necessary.",
		history, pkg.NextAgentPrompt,
	), nil
}
