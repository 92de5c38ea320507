package services

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"arc-backend/internal/logger"
	"arc-backend/internal/models"
	"arc-backend/internal/providers"
	"arc-backend/internal/store"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

const (
	DefaultCouncilRounds = 2
	maxCouncilRounds     = 3
	councilMemoryLimit   = 12
)

// Council step roles.
const (
	RoleTools    = "TOOLS"
	RoleProposer = "PROPOSER"
	RoleCritic   = "CRITIC"
	RoleReviser  = "REVISER"
	RoleFinal    = "FINAL"
)

var (
	toolTriggers = []string{
		"right now", "current", "latest", "today",
		"news", "headlines",
		"weather", "forecast",
		"search", "look up", "sources", "web", "internet",
	}
	hardTriggers = []string{
		"permit", "permitting", "zoning", "ordinance", "code enforcement", "inspection",
		"structural", "engineering", "foundation", "load bearing", "rebar",
		"fallout shelter", "shelter", "bunker", "storm shelter", "safe room",
		"egress", "ventilation", "drainage", "septic", "setback",
		"onslow", "camp lejeune", "jacksonville nc", "north carolina",
	}
	depthWords       = []string{"step by step", "detailed", "comprehensive", "plan", "design"}
	conjunctionWords = []string{"and", "but", "however", "because", "whereas"}
)

// ShouldUseCouncil reports whether msg is worth a multi-step debate.
func ShouldUseCouncil(msg string) bool {
	text := strings.TrimSpace(msg)
	m := strings.ToLower(text)

	if containsAny(m, toolTriggers) || containsAny(m, hardTriggers) {
		return true
	}

	score := 0
	if len(text) >= 220 {
		score += 2
	}
	if len(text) >= 500 {
		score += 2
	}
	if strings.Count(text, "?") >= 2 {
		score += 2
	}
	if containsAny(m, depthWords) {
		score += 2
	}
	if containsAny(m, conjunctionWords) {
		score++
	}
	return score >= 2
}

func containsAny(s string, words []string) bool {
	for _, w := range words {
		if strings.Contains(s, w) {
			return true
		}
	}
	return false
}

// CouncilRequest is the input of one council run.
type CouncilRequest struct {
	SessionID string
	Message   string
	Recent    []models.Message
	Options   providers.Options
	Rounds    int
}

// CouncilResult is the final answer plus every step taken.
type CouncilResult struct {
	OK     bool
	Text   string
	Events []models.CouncilEvent
}

// CouncilService drafts, critiques and revises an answer through the dispatcher.
type CouncilService struct {
	completer Completer
	tools     *ToolsService
	logs      store.CouncilLogStore
	rec       Recorder
	log       zerolog.Logger
}

// NewCouncilService creates a council. tools and logs may be nil.
func NewCouncilService(completer Completer, tools *ToolsService, logs store.CouncilLogStore, rec Recorder) *CouncilService {
	return &CouncilService{
		completer: completer,
		tools:     tools,
		logs:      logs,
		rec:       recorderOrNop(rec),
		log:       logger.Component("CouncilService"),
	}
}

// Run executes TOOLS, PROPOSER, CRITIC, rounds-1 REVISER steps and FINAL.
// An empty FINAL falls back to the last successful draft.
func (c *CouncilService) Run(ctx context.Context, req CouncilRequest) CouncilResult {
	rounds := req.Rounds
	if rounds <= 0 {
		rounds = DefaultCouncilRounds
	}
	if rounds > maxCouncilRounds {
		rounds = maxCouncilRounds
	}

	var events []models.CouncilEvent
	toolOutputs := c.gatherTools(ctx, req.Message)
	if len(toolOutputs) > 0 {
		events = append(events, models.CouncilEvent{Role: RoleTools, Text: "Tools executed", Tools: toolOutputs})
	}

	base := councilContext(req, toolOutputs)
	step := func(role, task string) providers.Result {
		prompt := fmt.Sprintf("%s\n\nROLE: %s\nTASK: %s\n", base, role, task)
		res := c.completer.Complete(ctx, prompt, req.Options)
		ev := models.CouncilEvent{Role: role, Text: res.Text, Provider: res.Provider, Model: res.Model}
		if res.Fallback {
			ev.Error = "no providers succeeded"
		}
		events = append(events, ev)
		return res
	}

	proposer := step(RoleProposer, "Draft the best answer. If tools are available, incorporate them.")
	step(RoleCritic, "Find mistakes, missing steps, risks, and improvements. Be specific.")

	var revised string
	if !proposer.Fallback {
		revised = proposer.Text
	}
	for i := 0; i < rounds-1; i++ {
		if r := step(RoleReviser, "Revise the answer to address CRITIC feedback. Output the improved answer."); !r.Fallback {
			revised = r.Text
		}
	}

	final := step(RoleFinal, "Return ONLY the final user-facing answer. No role talk. Mention tools used if relevant.")
	text := strings.TrimSpace(final.Text)
	ok := !final.Fallback
	if final.Fallback && strings.TrimSpace(revised) != "" {
		text, ok = strings.TrimSpace(revised), true
	}

	c.log.Info().Int("rounds", rounds).Int("events", len(events)).Bool("ok", ok).Msg("council finished")
	c.saveLog(ctx, req.SessionID, events)
	return CouncilResult{OK: ok, Text: text, Events: events}
}

// saveLog records the run's events. Errors are logged and dropped.
func (c *CouncilService) saveLog(ctx context.Context, sessionID string, events []models.CouncilEvent) {
	if c.logs == nil {
		return
	}
	ctx, cancel := detached(ctx)
	defer cancel()

	if _, err := c.logs.SaveCouncilLog(ctx, sessionID, events); err != nil {
		c.rec.IncPersistError("council")
		c.log.Warn().Err(err).Str("session_id", sessionID).Msg("failed to save council log")
	}
}

// gatherTools runs the tools the message asks for concurrently.
func (c *CouncilService) gatherTools(ctx context.Context, msg string) map[string]any {
	if c.tools == nil {
		return nil
	}
	m := strings.ToLower(msg)
	wantWeather := strings.Contains(m, "weather") || strings.Contains(m, "forecast")
	wantNews := strings.Contains(m, "news") || strings.Contains(m, "headlines")
	if !wantWeather && !wantNews {
		return nil
	}

	var weather models.WeatherResponse
	var news models.NewsResponse
	g, gctx := errgroup.WithContext(ctx)
	if wantWeather {
		g.Go(func() error {
			weather = c.tools.Weather(gctx, WeatherQueryFrom(msg))
			return nil
		})
	}
	if wantNews {
		g.Go(func() error {
			news = c.tools.News(gctx)
			return nil
		})
	}
	_ = g.Wait() // tools never fail; they degrade to canned lines

	out := make(map[string]any, 2)
	if wantWeather {
		out["weather"] = weather
	}
	if wantNews {
		out["news"] = news
	}
	return out
}

func councilContext(req CouncilRequest, toolOutputs map[string]any) string {
	parts := []string{
		"You are ARC-OMEGA Council. Do NOT mention internal roles.",
		"Be accurate, practical, and structured. If tools are available, incorporate them clearly.",
	}

	recent := models.Truncate(req.Recent, councilMemoryLimit)
	if len(recent) > 0 {
		lines := make([]string, 0, len(recent))
		for _, m := range recent {
			lines = append(lines, strings.ToUpper(m.Role)+": "+m.Content)
		}
		parts = append(parts, "SESSION MEMORY (recent):\n"+strings.Join(lines, "\n"))
	}
	if len(toolOutputs) > 0 {
		if raw, err := json.Marshal(toolOutputs); err == nil {
			parts = append(parts, "TOOLS OUTPUTS (JSON):\n"+string(raw))
		}
	}
	parts = append(parts, "USER REQUEST:\n"+req.Message)
	return strings.Join(parts, "\n\n")
}
