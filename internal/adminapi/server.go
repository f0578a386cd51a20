// Package adminapi serves the operator surface over HTTP. Every clock
// operation it exposes runs through the protocol engine as a real message
// exchange over a loopback mailbox, so the admin path and the agent path
// cannot diverge.
package adminapi

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/danmuck/clockctl/internal/auth"
	"github.com/danmuck/clockctl/internal/engine"
	"github.com/danmuck/clockctl/internal/observability"
	"github.com/danmuck/clockctl/internal/policy"
	"github.com/danmuck/clockctl/internal/scmi"
	"github.com/danmuck/clockctl/internal/scmi/wire"
)

const serverVersion = "0.1.0"

// exchangeTimeout bounds how long one admin request waits on a pending
// hardware operation.
const exchangeTimeout = 5 * time.Second

type Options struct {
	Engine      *engine.Engine
	Addr        string
	AuthToken   string
	CorsOrigins []string
	// MaxPayload sizes the loopback mailbox payload area.
	MaxPayload int
	PolicyName string
	Logger     zerolog.Logger
}

type Server struct {
	engine   *engine.Engine
	opts     Options
	router   *gin.Engine
	appeared time.Time
}

func New(opts Options) (*Server, error) {
	if opts.Engine == nil {
		return nil, fmt.Errorf("adminapi: engine is required")
	}
	if opts.MaxPayload == 0 {
		opts.MaxPayload = 128
	}
	observability.RegisterMetrics()
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(observability.RequestLogger(opts.Logger))
	r.Use(observability.RequestMetricsMiddleware())
	r.Use(cors.New(cors.Config{
		AllowOrigins: normalizeOrigins(opts.CorsOrigins),
		AllowMethods: []string{"GET", "POST"},
		AllowHeaders: []string{"Origin", "Content-Type", "Authorization"},
		MaxAge:       12 * time.Hour,
	}))
	_ = r.SetTrustedProxies([]string{"127.0.0.1", "::1"})

	return &Server{
		engine:   opts.Engine,
		opts:     opts,
		router:   r,
		appeared: time.Now(),
	}, nil
}

func (s *Server) HTTPRouter() *gin.Engine {
	return s.router
}

func (s *Server) RegisterRoutes() {
	s.router.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":  "ok",
			"uptime":  time.Since(s.appeared).String(),
			"daemon":  "clockd",
			"version": serverVersion,
		})
	})

	s.router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	v1 := s.router.Group("/v1")
	if s.opts.AuthToken != "" {
		v1.Use(requireToken(auth.StaticToken{Token: s.opts.AuthToken}))
	}
	v1.GET("/status", s.handleStatus)
	v1.GET("/agents", s.handleAgents)
	v1.GET("/agents/:agent/clocks", s.handleClocks)
	v1.GET("/agents/:agent/clocks/:clock/rates", s.handleDescribeRates)
	v1.POST("/agents/:agent/clocks/:clock/rate", s.handleRateSet)
	v1.POST("/agents/:agent/clocks/:clock/config", s.handleConfigSet)
}

func (s *Server) Serve() error {
	s.RegisterRoutes()
	return s.router.Run(s.opts.Addr)
}

func requireToken(v auth.Validator) gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := v.Validate(auth.BearerToken(c.GetHeader("Authorization"))); err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}
		c.Next()
	}
}

// StatusView is the daemon status document.
type StatusView struct {
	Agents      int                      `json:"agents"`
	Devices     int                      `json:"devices"`
	Outstanding int                      `json:"outstanding"`
	Policy      string                   `json:"policy"`
	PolicyState *policy.CountingSnapshot `json:"policy_state,omitempty"`
}

// AgentView is one row of the agent listing.
type AgentView struct {
	ID     uint32 `json:"id"`
	Name   string `json:"name"`
	Clocks int    `json:"clocks"`
}

// ClockView is one clock as an agent sees it.
type ClockView struct {
	Clock   uint32 `json:"clock"`
	Name    string `json:"name,omitempty"`
	Enabled bool   `json:"enabled"`
	Rate    uint64 `json:"rate"`
	Error   string `json:"error,omitempty"`
}

// RatesView is the supported-rate description of one clock.
type RatesView struct {
	Format string   `json:"format"`
	Rates  []uint64 `json:"rates,omitempty"`
	Min    uint64   `json:"min,omitempty"`
	Max    uint64   `json:"max,omitempty"`
	Step   uint64   `json:"step,omitempty"`
}

// OutcomeView reports the protocol status of a mutation, with the rate
// read back after a successful rate change.
type OutcomeView struct {
	Status string `json:"status"`
	Rate   uint64 `json:"rate,omitempty"`
}

func (s *Server) handleStatus(c *gin.Context) {
	view := StatusView{
		Agents:      s.engine.Agents().AgentCount(),
		Devices:     s.engine.Agents().PhysicalCount(),
		Outstanding: s.engine.Tracker().Outstanding(),
		Policy:      s.opts.PolicyName,
	}
	if counting, ok := s.engine.Policy().(*policy.Counting); ok {
		snap := counting.Snapshot()
		view.PolicyState = &snap
	}
	c.JSON(http.StatusOK, view)
}

func (s *Server) handleAgents(c *gin.Context) {
	agents := s.engine.Agents().Agents()
	list := make([]AgentView, 0, len(agents))
	for i, a := range agents {
		list = append(list, AgentView{ID: uint32(i), Name: a.Name, Clocks: a.DeviceCount()})
	}
	c.JSON(http.StatusOK, gin.H{"agents": list})
}

func (s *Server) handleClocks(c *gin.Context) {
	agentID, ok := s.agentParam(c)
	if !ok {
		return
	}
	agent, err := s.engine.Agents().Agent(agentID)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}

	list := make([]ClockView, 0, agent.DeviceCount())
	for idx := uint32(0); idx < uint32(agent.DeviceCount()); idx++ {
		list = append(list, s.describeClock(c, agentID, idx))
	}
	c.JSON(http.StatusOK, gin.H{"clocks": list})
}

// describeClock reads one clock through two protocol exchanges. Failures
// land in the row's error field rather than failing the whole listing.
func (s *Server) describeClock(c *gin.Context, agentID, idx uint32) ClockView {
	view := ClockView{Clock: idx}

	resp, err := s.exchange(c, agentID, scmi.MsgClockAttributes, wire.ClockAttributesRequest{ClockID: idx}.Encode())
	if err != nil {
		view.Error = err.Error()
		return view
	}
	attrs, err := wire.DecodeClockAttributesResponse(resp)
	if err != nil {
		st, serr := wire.DecodeStatus(resp)
		if serr != nil {
			view.Error = err.Error()
			return view
		}
		view.Error = st.String()
		return view
	}
	view.Name = attrs.Name
	view.Enabled = attrs.Attributes&wire.AttributesFlagEnabled != 0

	resp, err = s.exchange(c, agentID, scmi.MsgClockRateGet, wire.RateGetRequest{ClockID: idx}.Encode())
	if err != nil {
		view.Error = err.Error()
		return view
	}
	rate, err := wire.DecodeRateGetResponse(resp)
	if err != nil {
		st, serr := wire.DecodeStatus(resp)
		if serr != nil {
			view.Error = err.Error()
			return view
		}
		view.Error = st.String()
		return view
	}
	view.Rate = rate.Rate()
	return view
}

func (s *Server) handleDescribeRates(c *gin.Context) {
	agentID, ok := s.agentParam(c)
	if !ok {
		return
	}
	idx, ok := clockParam(c)
	if !ok {
		return
	}

	var view RatesView
	index := uint32(0)
	for {
		resp, err := s.exchange(c, agentID, scmi.MsgClockDescribeRates,
			wire.DescribeRatesRequest{ClockID: idx, RateIndex: index}.Encode())
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		header, err := wire.DecodeDescribeRatesHeader(resp)
		if err != nil {
			st, serr := wire.DecodeStatus(resp)
			if serr != nil {
				c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
				return
			}
			c.JSON(statusHTTP(st), gin.H{"error": st.String()})
			return
		}
		count, format, remaining := wire.UnpackNumRates(header.NumRatesFlags)
		entries, err := wire.DecodeRateEntries(resp[wire.DescribeRatesHeaderLen:], entryCount(count, format))
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		if format == wire.RateFormatRange {
			view.Format = "range"
			view.Min = entries[0].Rate()
			view.Max = entries[1].Rate()
			view.Step = entries[2].Rate()
			break
		}
		view.Format = "list"
		for _, e := range entries {
			view.Rates = append(view.Rates, e.Rate())
		}
		if remaining == 0 {
			break
		}
		index += count
	}
	c.JSON(http.StatusOK, view)
}

// entryCount maps the header's logical rate count to payload entries: a
// range answer carries its single rate as a (min, max, step) triplet.
func entryCount(count, format uint32) int {
	if format == wire.RateFormatRange {
		return 3
	}
	return int(count)
}

type rateSetBody struct {
	Rate  uint64 `json:"rate"`
	Round string `json:"round"`
}

func (s *Server) handleRateSet(c *gin.Context) {
	agentID, ok := s.agentParam(c)
	if !ok {
		return
	}
	idx, ok := clockParam(c)
	if !ok {
		return
	}
	var body rateSetBody
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	flags, err := roundFlags(body.Round)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	low, high := wire.SplitRate(body.Rate)
	resp, err := s.exchange(c, agentID, scmi.MsgClockRateSet,
		wire.RateSetRequest{Flags: flags, ClockID: idx, RateLow: low, RateHigh: high}.Encode())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	st, err := wire.DecodeStatus(resp)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	out := OutcomeView{Status: st.String()}
	if st == scmi.StatusSuccess {
		if resp, err := s.exchange(c, agentID, scmi.MsgClockRateGet, wire.RateGetRequest{ClockID: idx}.Encode()); err == nil {
			if r, derr := wire.DecodeRateGetResponse(resp); derr == nil {
				out.Rate = r.Rate()
			}
		}
	}
	c.JSON(statusHTTP(st), out)
}

func roundFlags(round string) (uint32, error) {
	switch round {
	case "", "down":
		return 0, nil
	case "up":
		return wire.RateSetFlagRoundUp, nil
	case "auto":
		return wire.RateSetFlagRoundAuto, nil
	default:
		return 0, fmt.Errorf("unknown rounding mode %q", round)
	}
}

type configSetBody struct {
	Enabled bool `json:"enabled"`
}

func (s *Server) handleConfigSet(c *gin.Context) {
	agentID, ok := s.agentParam(c)
	if !ok {
		return
	}
	idx, ok := clockParam(c)
	if !ok {
		return
	}
	var body configSetBody
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	attrs := uint32(0)
	if body.Enabled {
		attrs = wire.ConfigSetFlagEnable
	}
	resp, err := s.exchange(c, agentID, scmi.MsgClockConfigSet,
		wire.ConfigSetRequest{ClockID: idx, Attributes: attrs}.Encode())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	st, err := wire.DecodeStatus(resp)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(statusHTTP(st), OutcomeView{Status: st.String()})
}

// exchange runs one protocol message for the agent through a loopback
// mailbox and returns the response payload.
func (s *Server) exchange(c *gin.Context, agentID uint32, id scmi.MessageID, payload []byte) ([]byte, error) {
	mb := engine.NewMailbox(agentID, s.opts.MaxPayload)
	if err := s.engine.ProcessMessage(mb, id, payload); err != nil {
		return nil, err
	}
	ctx, cancel := context.WithTimeout(c.Request.Context(), exchangeTimeout)
	defer cancel()
	return mb.Take(ctx)
}

func (s *Server) agentParam(c *gin.Context) (uint32, bool) {
	raw := c.Param("agent")
	agents := s.engine.Agents().Agents()
	if n, err := strconv.ParseUint(raw, 10, 32); err == nil {
		if int(n) < len(agents) {
			return uint32(n), true
		}
	} else {
		for i, a := range agents {
			if a.Name == raw {
				return uint32(i), true
			}
		}
	}
	c.JSON(http.StatusNotFound, gin.H{"error": fmt.Sprintf("unknown agent %q", raw)})
	return 0, false
}

func clockParam(c *gin.Context) (uint32, bool) {
	n, err := strconv.ParseUint(c.Param("clock"), 10, 32)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("bad clock index %q", c.Param("clock"))})
		return 0, false
	}
	return uint32(n), true
}

// statusHTTP maps a protocol status onto the admin surface.
func statusHTTP(st scmi.Status) int {
	switch st {
	case scmi.StatusSuccess:
		return http.StatusOK
	case scmi.StatusInvalidParameters:
		return http.StatusBadRequest
	case scmi.StatusDenied:
		return http.StatusForbidden
	case scmi.StatusNotFound, scmi.StatusOutOfRange:
		return http.StatusNotFound
	case scmi.StatusBusy:
		return http.StatusConflict
	case scmi.StatusNotSupported:
		return http.StatusNotImplemented
	default:
		return http.StatusInternalServerError
	}
}

func normalizeOrigins(origins []string) []string {
	if len(origins) == 0 {
		return []string{"http://localhost:3000"}
	}
	return origins
}
