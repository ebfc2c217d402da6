/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

// Blindboxd ranking tables
//
// A player picks a category and a difficulty, then ranks ten movies one at a
// time without seeing what comes next.
//
// Features:
// - One route per category kind: /{kind}/:value/:difficulty and .../ws
// - Each websocket connection opens a table: a hub that owns one ranking
//   session and fans its state out to every connected client
// - Reconnecting with ?table=<id> rejoins an existing table
// - Rejections are sent only to the offending client
// - Fetches run off the hub loop; stale results are dropped by the session
// - Tables auto-reaped after configurable idle timeout
// - Random 8-char table IDs via crypto/rand, with server-side collision check
// - Finished boards at /results/:id, with JSON and a go-qrcode PNG

package main

import (
	"context"
	"crypto/rand"
	"encoding/json"
	"errors"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/julienschmidt/httprouter"
	"github.com/skip2/go-qrcode"

	"github.com/Seednode/blindboxd/internal/catalog"
	"github.com/Seednode/blindboxd/internal/movie"
	"github.com/Seednode/blindboxd/internal/session"
)

// Messages coming from clients
type ClientMessage struct {
	Type string `json:"type"`           // "rank", "skip", "restart"
	Rank int    `json:"rank,omitempty"` // rank
}

// SessionInfoMessage is sent immediately on connect so the client knows
// which table it joined.
type SessionInfoMessage struct {
	Type       string             `json:"type"` // "session_info"
	Table      string             `json:"table"`
	Category   movie.Category     `json:"category"`
	Label      string             `json:"label"`
	Difficulty session.Difficulty `json:"difficulty"`
	ResultsURL string             `json:"results_url"`
}

// StateMessage carries a full snapshot of the session after every change.
type StateMessage struct {
	Type    string `json:"type"` // "state"
	Message string `json:"message,omitempty"`
	session.Snapshot
}

// RejectedMessage is sent to a single client whose action was refused.
type RejectedMessage struct {
	Type    string `json:"type"`   // "rejected"
	Action  string `json:"action"` // "rank" or "skip"
	Message string `json:"message"`
}

// ResultsMessage is broadcast once every movie has been ranked or dropped.
type ResultsMessage struct {
	Type string `json:"type"` // "results"
	URL  string `json:"url"`
	session.Result
}

type Client struct {
	conn *websocket.Conn
	send chan any
}

type tableAction struct {
	client *Client
	msg    ClientMessage
}

type Table struct {
	id         string
	category   movie.Category
	label      string
	difficulty session.Difficulty
	resultsURL string

	session *session.Session
	source  *catalog.Source

	ctx    context.Context
	cancel context.CancelFunc

	clients map[*Client]bool

	register chan *Client
	unreg    chan *Client
	actions  chan tableAction
	done     chan struct{}
	once     sync.Once

	mu sync.RWMutex

	createdAt  time.Time
	lastActive time.Time
}

func newTable(cfg *Config, id string, cat movie.Category, label string, difficulty session.Difficulty, src *catalog.Source, seed uint64) *Table {
	ctx, cancel := context.WithCancel(context.Background())
	now := time.Now()

	return &Table{
		id:         id,
		category:   cat,
		label:      label,
		difficulty: difficulty,
		resultsURL: cfg.prefix + "/results/" + id,
		session:    session.New(src, movie.NewRand(seed)),
		source:     src,
		ctx:        ctx,
		cancel:     cancel,
		clients:    make(map[*Client]bool),
		register:   make(chan *Client),
		unreg:      make(chan *Client),
		actions:    make(chan tableAction),
		done:       make(chan struct{}),
		createdAt:  now,
		lastActive: now,
	}
}

func (t *Table) run(cfg *Config) {
	for {
		select {
		case c := <-t.register:
			t.mu.Lock()
			t.lastActive = time.Now()
			t.clients[c] = true

			t.sendLocked(c, t.infoMessage())
			t.sendLocked(c, t.stateMessage(""))

			if msg, ok := t.resultsMessage(); ok {
				t.sendLocked(c, msg)
			}
			t.mu.Unlock()

		case c := <-t.unreg:
			t.mu.Lock()
			t.lastActive = time.Now()

			if _, ok := t.clients[c]; ok {
				delete(t.clients, c)
				close(c.send)
			}
			t.mu.Unlock()

		case a := <-t.actions:
			t.handleAction(cfg, a)

		case <-t.done:
			return
		}
	}
}

func (t *Table) infoMessage() SessionInfoMessage {
	return SessionInfoMessage{
		Type:       "session_info",
		Table:      t.id,
		Category:   t.category,
		Label:      t.label,
		Difficulty: t.difficulty,
		ResultsURL: t.resultsURL,
	}
}

func (t *Table) stateMessage(message string) StateMessage {
	snap := t.session.Snapshot()
	snap.Label = t.label

	return StateMessage{
		Type:     "state",
		Message:  message,
		Snapshot: snap,
	}
}

func (t *Table) resultsMessage() (ResultsMessage, bool) {
	res, ok := t.session.Result()
	if !ok {
		return ResultsMessage{}, false
	}
	res.Label = t.label

	return ResultsMessage{
		Type:   "results",
		URL:    t.resultsURL,
		Result: res,
	}, true
}

// sendLocked queues msg for c, dropping the client if it has fallen behind.
func (t *Table) sendLocked(c *Client, msg any) {
	select {
	case c.send <- msg:
	default:
		delete(t.clients, c)
		close(c.send)
	}
}

func (t *Table) broadcast(msg any) {
	t.mu.Lock()
	defer t.mu.Unlock()

	for client := range t.clients {
		t.sendLocked(client, msg)
	}
}

func (t *Table) broadcastState(message string) {
	t.broadcast(t.stateMessage(message))
}

func (t *Table) reject(c *Client, action string, err error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if _, ok := t.clients[c]; !ok {
		return
	}

	t.sendLocked(c, RejectedMessage{
		Type:    "rejected",
		Action:  action,
		Message: rejectionText(err),
	})
}

func rejectionText(err error) string {
	switch {
	case errors.Is(err, session.ErrRankTaken):
		return "That rank is already taken."
	case errors.Is(err, session.ErrRankOutOfRange):
		return "Ranks run from 1 to 10."
	case errors.Is(err, session.ErrNoSkips):
		return "No skips left."
	case errors.Is(err, session.ErrBusy):
		return "Still fetching movies, hang on."
	default:
		return "That move is not available right now."
	}
}

func (t *Table) handleAction(cfg *Config, a tableAction) {
	t.mu.Lock()
	t.lastActive = time.Now()
	t.mu.Unlock()

	switch a.msg.Type {
	case "rank":
		if err := t.session.AssignRank(a.msg.Rank); err != nil {
			t.reject(a.client, "rank", err)

			return
		}

		t.broadcastState("")
		t.finishIfComplete(cfg)

	case "skip":
		go t.skip(cfg, a.client)

	case "restart":
		logf(cfg, "GAMES: Restarting table %s", t.id)

		go t.start(cfg)
	}
}

// start deals a fresh working set. It runs off the hub loop because the
// catalog may go to the network.
func (t *Table) start(cfg *Config) {
	startTime := time.Now()

	err := t.session.Start(t.ctx, t.category, t.difficulty.Budget())
	switch {
	case errors.Is(err, session.ErrStale):
		return
	case errors.Is(err, session.ErrNoCandidates):
		logf(cfg, "GAMES: No movies found for %s on table %s", t.category, t.id)

		t.broadcastState("No movies found for " + t.label + ".")

		return
	case err != nil:
		logf(cfg, "GAMES: Starting table %s failed: %v", t.id, err)

		return
	}

	logf(cfg, "GAMES: Dealt %d movies for %s on table %s in %s",
		len(t.session.Snapshot().Slots),
		t.category,
		t.id,
		time.Since(startTime).Round(time.Microsecond),
	)

	t.broadcastState("")
	t.resolvePosters()
}

func (t *Table) skip(cfg *Config, c *Client) {
	outcome, err := t.session.Skip(t.ctx)
	switch {
	case errors.Is(err, session.ErrStale):
		return
	case err != nil:
		t.reject(c, "skip", err)

		return
	}

	logf(cfg, "GAMES: Skip on table %s: %s", t.id, outcome)

	t.broadcastState("")

	if outcome == session.SkipReplaced {
		t.resolvePosters()
	}

	t.finishIfComplete(cfg)
}

func (t *Table) resolvePosters() {
	if t.session.ResolvePosters(t.ctx, t.source) > 0 {
		t.broadcastState("")
	}
}

func (t *Table) finishIfComplete(cfg *Config) {
	msg, ok := t.resultsMessage()
	if !ok {
		return
	}

	logf(cfg, "GAMES: Table %s complete", t.id)

	t.broadcast(msg)
}

func (t *Table) closeAll() {
	t.once.Do(func() {
		t.cancel()
		close(t.done)
	})

	t.mu.Lock()
	defer t.mu.Unlock()

	for c := range t.clients {
		close(c.send)
		_ = c.conn.Close()
		delete(t.clients, c)
	}
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// TableManager holds a set of tables keyed by table ID, so each session is
// isolated from every other.
type TableManager struct {
	mu          sync.Mutex
	tables      map[string]*Table
	idleTimeout time.Duration
	source      *catalog.Source
	seed        uint64
}

func newTableManager(idleTimeout time.Duration, src *catalog.Source, seed uint64) *TableManager {
	tm := &TableManager{
		tables:      make(map[string]*Table),
		idleTimeout: idleTimeout,
		source:      src,
		seed:        seed,
	}
	if idleTimeout > 0 {
		go tm.reaperLoop()
	}
	return tm
}

func newTableID() string {
	const letters = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789"

	buf := make([]byte, 8)
	if _, err := rand.Read(buf); err != nil {
		panic("crypto/rand failure: " + err.Error())
	}
	out := make([]byte, 8)
	for i := range out {
		out[i] = letters[int(buf[i])%len(letters)]
	}

	return string(out)
}

// create opens a table under a fresh ID and deals its first working set.
func (tm *TableManager) create(cfg *Config, cat movie.Category, label string, difficulty session.Difficulty) *Table {
	tm.mu.Lock()

	id := newTableID()
	for tm.tables[id] != nil {
		id = newTableID()
	}

	t := newTable(cfg, id, cat, label, difficulty, tm.source, tm.seed)
	tm.tables[id] = t
	tm.mu.Unlock()

	go t.run(cfg)
	go t.start(cfg)

	return t
}

func (tm *TableManager) get(id string) (*Table, bool) {
	tm.mu.Lock()
	defer tm.mu.Unlock()

	t, ok := tm.tables[id]

	return t, ok
}

// reaperLoop periodically removes tables that have been idle longer than idleTimeout.
func (tm *TableManager) reaperLoop() {
	ticker := time.NewTicker(tm.idleTimeout / 2)
	for range ticker.C {
		tm.reap(time.Now().Add(-tm.idleTimeout))
	}
}

func (tm *TableManager) reap(cutoff time.Time) int {
	tm.mu.Lock()
	defer tm.mu.Unlock()

	reaped := 0
	for id, t := range tm.tables {
		t.mu.RLock()
		last := t.lastActive
		t.mu.RUnlock()

		if last.Before(cutoff) {
			delete(tm.tables, id)
			go t.closeAll()
			reaped++
		}
	}

	return reaped
}

// categoryLabel names a resolved category for display.
func categoryLabel(src *catalog.Source, cat movie.Category) string {
	if cat.Kind == movie.Podcast {
		for _, p := range src.Podcasts() {
			if p.Slug == cat.Value {
				return p.Name
			}
		}
	}

	return cat.Label()
}

// resolveRoute validates the value and difficulty segments of a game URL.
func resolveRoute(src *catalog.Source, kind movie.Kind, ps httprouter.Params) (movie.Category, session.Difficulty, error) {
	cat, err := src.Resolve(string(kind), ps.ByName("value"))
	if err != nil {
		return movie.Category{}, "", err
	}

	difficulty, err := session.ParseDifficulty(ps.ByName("difficulty"))
	if err != nil {
		return movie.Category{}, "", err
	}

	return cat, difficulty, nil
}

func gamePath(cfg *Config, cat movie.Category, difficulty session.Difficulty) string {
	return cfg.prefix + "/" + string(cat.Kind) + "/" + url.PathEscape(cat.Value) + "/" + string(difficulty)
}

// serveTablePage serves the game client, redirecting loosely spelled
// categories to their canonical URL.
func serveTablePage(cfg *Config, src *catalog.Source, kind movie.Kind, errs chan<- error) httprouter.Handle {
	page, err := loadPage(cfg, "play.html")
	if err != nil {
		panic("missing embedded page play.html")
	}

	return func(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
		cat, difficulty, err := resolveRoute(src, kind, ps)
		if err != nil {
			logf(cfg, "SERVE: Unknown game %s from %s: %v", r.URL.Path, realIP(r), err)

			serveNotFound(cfg, w)

			return
		}

		if canonical := gamePath(cfg, cat, difficulty); canonical != r.URL.EscapedPath() {
			http.Redirect(w, r, canonical, http.StatusFound)

			return
		}

		writePage(cfg, w, page, errs)
	}
}

// WebSocket handler that opens a table, or rejoins the one named by ?table=
func serveTableWS(cfg *Config, tm *TableManager, kind movie.Kind) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
		cat, difficulty, err := resolveRoute(tm.source, kind, ps)
		if err != nil {
			http.Error(w, "unknown category", http.StatusNotFound)

			return
		}

		var table *Table
		if id := r.URL.Query().Get("table"); id != "" {
			if t, ok := tm.get(id); ok && t.category == cat && t.difficulty == difficulty {
				table = t
			}
		}

		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			logf(cfg, "GAMES: Upgrade failed for %s: %v", realIP(r), err)

			return
		}

		if table == nil {
			table = tm.create(cfg, cat, categoryLabel(tm.source, cat), difficulty)

			logf(cfg, "GAMES: Created table %s for %s (%s) from %s", table.id, cat, difficulty, realIP(r))
		}

		client := &Client{
			conn: conn,
			send: make(chan any, 16),
		}

		select {
		case table.register <- client:
		case <-table.done:
			_ = conn.Close()

			return
		}

		go client.writePump()
		client.readPump(table)
	}
}

func (c *Client) readPump(t *Table) {
	defer func() {
		select {
		case t.unreg <- c:
		case <-t.done:
		}
		_ = c.conn.Close()
	}()

	for {
		var msg ClientMessage
		if err := c.conn.ReadJSON(&msg); err != nil {
			return
		}

		switch msg.Type {
		case "rank", "skip", "restart":
			select {
			case t.actions <- tableAction{client: c, msg: msg}:
			case <-t.done:
				return
			}
		default:
			// ignore unknown types
		}
	}
}

func (c *Client) writePump() {
	defer c.conn.Close()

	for msg := range c.send {
		if err := c.conn.WriteJSON(msg); err != nil {
			return
		}
	}
}

// finishedTable returns the table behind :id if its board is complete.
func finishedTable(tm *TableManager, ps httprouter.Params) (*Table, session.Result, bool) {
	t, ok := tm.get(ps.ByName("id"))
	if !ok {
		return nil, session.Result{}, false
	}

	res, ok := t.session.Result()
	if !ok {
		return nil, session.Result{}, false
	}
	res.Label = t.label

	return t, res, true
}

func serveResultsPage(cfg *Config, tm *TableManager, errs chan<- error) httprouter.Handle {
	page, err := loadPage(cfg, "results.html")
	if err != nil {
		panic("missing embedded page results.html")
	}

	return func(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
		if _, _, ok := finishedTable(tm, ps); !ok {
			serveNotFound(cfg, w)

			return
		}

		writePage(cfg, w, page, errs)
	}
}

// ResultsResponse is the JSON form of a finished board.
type ResultsResponse struct {
	Table      string             `json:"table"`
	Difficulty session.Difficulty `json:"difficulty"`
	PlayURL    string             `json:"play_url"`
	session.Result
}

func serveResultsJSON(cfg *Config, tm *TableManager, errs chan<- error) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
		startTime := time.Now()

		t, res, ok := finishedTable(tm, ps)
		if !ok {
			http.Error(w, "results not found", http.StatusNotFound)

			return
		}

		data, err := json.Marshal(ResultsResponse{
			Table:      t.id,
			Difficulty: t.difficulty,
			PlayURL:    gamePath(cfg, t.category, t.difficulty),
			Result:     res,
		})
		if err != nil {
			errs <- err

			http.Error(w, "encoding failed", http.StatusInternalServerError)

			return
		}

		w.Header().Set("Content-Type", "application/json")
		w.Header().Set("Cache-Control", "no-store")
		securityHeaders(cfg, w)

		_, err = w.Write(data)
		if err != nil {
			errs <- err

			return
		}

		logf(cfg, "SERVE: Results for %s (%s) to %s in %s",
			t.id,
			humanReadableSize(int64(len(data))),
			realIP(r),
			time.Since(startTime).Round(time.Microsecond),
		)
	}
}

// QR handler: generates a PNG QR code for a results URL using go-qrcode.
func serveResultsQR(cfg *Config, tm *TableManager) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
		if _, _, ok := finishedTable(tm, ps); !ok {
			http.Error(w, "results not found", http.StatusNotFound)

			return
		}

		scheme := "http"
		if r.TLS != nil {
			scheme = "https"
		}
		if proto := r.Header.Get("X-Forwarded-Proto"); proto != "" {
			scheme = proto
		}

		path := strings.TrimSuffix(r.URL.Path, "/qr")

		const qrSize = 320
		png, err := qrcode.Encode(scheme+"://"+r.Host+path, qrcode.Medium, qrSize)
		if err != nil {
			http.Error(w, "qr generation failed", http.StatusInternalServerError)

			return
		}

		w.Header().Set("Content-Type", "image/png")
		securityHeaders(cfg, w)
		_, _ = w.Write(png)
	}
}

// registerRanking sets up routes so that, for every category kind:
//   - /kind/:value/:difficulty     → HTML client
//   - /kind/:value/:difficulty/ws  → WebSocket for a table
//
// plus the results page, its JSON and its QR code.
func registerRanking(cfg *Config, mux *httprouter.Router, tm *TableManager, errs chan<- error) {
	for _, kind := range movie.Kinds {
		path := cfg.prefix + "/" + string(kind) + "/:value/:difficulty"

		mux.GET(path, serveTablePage(cfg, tm.source, kind, errs))
		mux.GET(path+"/ws", serveTableWS(cfg, tm, kind))
	}

	mux.GET(cfg.prefix+"/results/:id", serveResultsPage(cfg, tm, errs))
	mux.GET(cfg.prefix+"/results/:id/json", serveResultsJSON(cfg, tm, errs))
	mux.GET(cfg.prefix+"/results/:id/qr", serveResultsQR(cfg, tm))
}
