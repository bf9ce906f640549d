package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/canny86/FilaCore/internal/auth"
	"github.com/canny86/FilaCore/internal/certs"
	"github.com/canny86/FilaCore/internal/command"
	"github.com/canny86/FilaCore/internal/filament"
	"github.com/canny86/FilaCore/internal/history"
	"github.com/canny86/FilaCore/internal/infrastructure/config"
	"github.com/canny86/FilaCore/internal/infrastructure/database"
	"github.com/canny86/FilaCore/internal/infrastructure/jsonstore"
	"github.com/canny86/FilaCore/internal/infrastructure/logging"
	"github.com/canny86/FilaCore/internal/infrastructure/mqtt"
	"github.com/canny86/FilaCore/internal/printer"
	"github.com/canny86/FilaCore/migrations"
)

const testSecret = "test-secret-key-at-least-32-characters-long"

// scriptedSession answers every publish with reply and feeds reports to
// the subscriber as soon as it subscribes.
type scriptedSession struct {
	reply   string
	reports []string

	mu        sync.Mutex
	handler   mqtt.MessageHandler
	topic     string
	published []byte
}

func (s *scriptedSession) Subscribe(topic string, handler mqtt.MessageHandler) error {
	s.mu.Lock()
	s.handler = handler
	s.topic = topic
	s.mu.Unlock()

	if len(s.reports) > 0 {
		go func() {
			for _, r := range s.reports {
				handler(topic, []byte(r)) //nolint:errcheck // test reports are valid JSON
			}
		}()
	}
	return nil
}

func (s *scriptedSession) Publish(_ string, payload []byte) error {
	s.mu.Lock()
	s.published = payload
	handler, topic := s.handler, s.topic
	s.mu.Unlock()

	if s.reply != "" {
		go handler(topic, []byte(s.reply)) //nolint:errcheck // test replies are valid JSON
	}
	return nil
}

func (s *scriptedSession) Close() error { return nil }

func (s *scriptedSession) lastPublished() []byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.published
}

// testEnv is a server wired to real registries in a temp dir and a
// scripted printer session.
type testEnv struct {
	srv       *Server
	handler   http.Handler
	printers  *printer.Registry
	filaments *filament.Registry
	store     *certs.Store
	session   *scriptedSession
	dials     *atomic.Int32
	dir       string
}

func newTestEnv(t *testing.T, secret string) *testEnv {
	t.Helper()

	dir := t.TempDir()
	store := certs.NewStore(filepath.Join(dir, "printers"), "blcert.pem")
	prov := certs.NewProvisioner(certs.Config{
		Binary:  filepath.Join(dir, "no-such-probe"),
		Port:    8883,
		Timeout: time.Second,
	}, store)
	t.Cleanup(prov.Wait)

	printers := printer.NewRegistry(jsonstore.New[printer.Printer](filepath.Join(dir, "printers.json")), prov)
	filaments := filament.NewRegistry(
		jsonstore.New[filament.Filament](filepath.Join(dir, "filaments.json")),
		filepath.Join(dir, "profiles.json"),
	)

	db, err := database.Open(config.DatabaseConfig{Path: filepath.Join(dir, "history.db"), BusyTimeout: 5})
	if err != nil {
		t.Fatalf("database.Open() error = %v", err)
	}
	t.Cleanup(func() { db.Close() })
	if err := db.Migrate(context.Background(), migrations.FS); err != nil {
		t.Fatalf("Migrate() error = %v", err)
	}
	repo := history.NewSQLiteRepository(db.DB)

	session := &scriptedSession{}
	var dials atomic.Int32
	dialer := command.DialerFunc(func(context.Context, mqtt.SessionConfig) (command.Session, error) {
		dials.Add(1)
		return session, nil
	})

	bridge := command.NewBridge(command.Config{Port: 8883, Username: "bblp", ConnectTimeout: time.Second}, dialer, store)
	bridge.AddObserver(history.NewRecorder(repo))
	svc := command.NewService(bridge, printers, filaments, command.Timeouts{
		State:    time.Second,
		Filament: time.Second,
		Stream:   300 * time.Millisecond,
	})

	srv, err := New(Deps{
		Config:    config.APIConfig{Host: "127.0.0.1"},
		WS:        config.WebSocketConfig{MaxMessageSize: 8192, PingInterval: 30, PongTimeout: 10},
		Security:  config.SecurityConfig{JWT: config.JWTConfig{Secret: secret}},
		Logger:    logging.Discard(),
		Printers:  printers,
		Filaments: filaments,
		Certs:     prov,
		Commands:  svc,
		History:   repo,
		DB:        db,
		Version:   "test",
	})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	return &testEnv{
		srv:       srv,
		handler:   srv.Handler(),
		printers:  printers,
		filaments: filaments,
		store:     store,
		session:   session,
		dials:     &dials,
		dir:       dir,
	}
}

func (e *testEnv) do(t *testing.T, method, path, body, token string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	e.handler.ServeHTTP(w, req)
	return w
}

// addActivePrinter registers a printer, stores a bundle for it and makes
// it active.
func (e *testEnv) addActivePrinter(t *testing.T, withCert bool) printer.Printer {
	t.Helper()
	ctx := context.Background()
	p, err := e.printers.Add(ctx, printer.Printer{
		Serial:     "01S00C123456789",
		AccessCode: "12345678",
		IP:         "192.168.1.50",
		Name:       "Workshop",
	})
	if err != nil {
		t.Fatalf("Add() error = %v", err)
	}
	if withCert {
		if err := e.store.Write(p.Name, []byte("-----BEGIN CERTIFICATE-----\n")); err != nil {
			t.Fatalf("Write() error = %v", err)
		}
	}
	if _, err := e.printers.SetActive(ctx, p.Serial); err != nil {
		t.Fatalf("SetActive() error = %v", err)
	}
	return p
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var resp map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal %q: %v", w.Body.String(), err)
	}
	return resp
}

func assertError(t *testing.T, w *httptest.ResponseRecorder, status int, code string) {
	t.Helper()
	if w.Code != status {
		t.Fatalf("status = %d, want %d (body %s)", w.Code, status, w.Body.String())
	}
	if got := decode(t, w)["code"]; got != code {
		t.Errorf("code = %v, want %s", got, code)
	}
}

func TestHealth(t *testing.T) {
	e := newTestEnv(t, "")

	w := e.do(t, http.MethodGet, "/api/v1/health", "", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	resp := decode(t, w)
	if resp["status"] != "ok" || resp["version"] != "test" {
		t.Errorf("health = %v", resp)
	}
	if ct := w.Header().Get("Content-Type"); !strings.HasPrefix(ct, "application/json") {
		t.Errorf("Content-Type = %q", ct)
	}
}

func TestIndexBanner(t *testing.T) {
	e := newTestEnv(t, "")

	w := e.do(t, http.MethodGet, "/", "", "")
	if w.Code != http.StatusOK || !strings.Contains(w.Body.String(), "FilaCore running") {
		t.Errorf("GET / = %d %q", w.Code, w.Body.String())
	}
}

func TestRequestID(t *testing.T) {
	e := newTestEnv(t, "")

	w := e.do(t, http.MethodGet, "/api/v1/health", "", "")
	if id := w.Header().Get("X-Request-ID"); !strings.HasPrefix(id, "req-") {
		t.Errorf("X-Request-ID = %q, want req- prefix", id)
	}

	req := httptest.NewRequest(http.MethodGet, "/api/v1/health", nil)
	req.Header.Set("X-Request-ID", "client-id")
	rec := httptest.NewRecorder()
	e.handler.ServeHTTP(rec, req)
	if got := rec.Header().Get("X-Request-ID"); got != "client-id" {
		t.Errorf("X-Request-ID = %q, want client-id", got)
	}
}

func TestPrinters_AddListActivateRemove(t *testing.T) {
	e := newTestEnv(t, "")

	w := e.do(t, http.MethodPost, "/api/v1/printers",
		`{"serial":"01S00C123456789","access_code":"12345678","ip":"192.168.1.50"}`, "")
	if w.Code != http.StatusCreated {
		t.Fatalf("add status = %d, body %s", w.Code, w.Body.String())
	}
	added := decode(t, w)["printer"].(map[string]any)
	if added["name"] != "Printer 01S00C123456789" {
		t.Errorf("default name = %v", added["name"])
	}
	if added["active"] != false {
		t.Errorf("new printer active = %v, want false", added["active"])
	}

	w = e.do(t, http.MethodPost, "/api/v1/printers",
		`{"serial":"01S00C123456789","access_code":"x","ip":"192.168.1.51","name":"Other"}`, "")
	assertError(t, w, http.StatusConflict, ErrCodeDuplicateSerial)

	w = e.do(t, http.MethodPost, "/api/v1/printers", `{"serial":"B","access_code":"x"}`, "")
	assertError(t, w, http.StatusBadRequest, ErrCodeValidation)

	w = e.do(t, http.MethodPost, "/api/v1/printers", `{not json`, "")
	assertError(t, w, http.StatusBadRequest, ErrCodeBadRequest)

	w = e.do(t, http.MethodGet, "/api/v1/printers", "", "")
	if got := decode(t, w)["count"]; got != float64(1) {
		t.Errorf("count = %v, want 1", got)
	}

	w = e.do(t, http.MethodPost, "/api/v1/printers/01S00C123456789/activate", "", "")
	if w.Code != http.StatusOK {
		t.Fatalf("activate status = %d, body %s", w.Code, w.Body.String())
	}
	resp := decode(t, w)
	if resp["certificate_present"] != false {
		t.Errorf("certificate_present = %v, want false", resp["certificate_present"])
	}

	w = e.do(t, http.MethodPost, "/api/v1/printers/unknown/activate", "", "")
	assertError(t, w, http.StatusNotFound, ErrCodeNotFound)

	w = e.do(t, http.MethodDelete, "/api/v1/printers/01S00C123456789", "", "")
	if w.Code != http.StatusNoContent {
		t.Fatalf("remove status = %d", w.Code)
	}
	w = e.do(t, http.MethodDelete, "/api/v1/printers/01S00C123456789", "", "")
	assertError(t, w, http.StatusNotFound, ErrCodeNotFound)
}

func TestActiveState(t *testing.T) {
	t.Run("no active printer", func(t *testing.T) {
		e := newTestEnv(t, "")
		w := e.do(t, http.MethodGet, "/api/v1/printers/active/state", "", "")
		assertError(t, w, http.StatusConflict, ErrCodeNoActivePrinter)
	})

	t.Run("certificate missing", func(t *testing.T) {
		e := newTestEnv(t, "")
		e.addActivePrinter(t, false)

		w := e.do(t, http.MethodGet, "/api/v1/printers/active/state", "", "")
		assertError(t, w, http.StatusPreconditionFailed, ErrCodeCertificateMissing)
		if got := e.dials.Load(); got != 0 {
			t.Errorf("dials = %d, want 0", got)
		}
	})

	t.Run("reply", func(t *testing.T) {
		e := newTestEnv(t, "")
		e.addActivePrinter(t, true)
		e.session.reply = `{"print":{"command":"push_status","nozzle_temper":210}}`

		w := e.do(t, http.MethodGet, "/api/v1/printers/active/state", "", "")
		if w.Code != http.StatusOK {
			t.Fatalf("status = %d, body %s", w.Code, w.Body.String())
		}
		data := decode(t, w)["data"].(map[string]any)
		body := data["print"].(map[string]any)
		if body["nozzle_temper"] != float64(210) {
			t.Errorf("reply = %v", data)
		}
		if !bytes.Contains(e.session.lastPublished(), []byte(`"pushall"`)) {
			t.Errorf("published = %s", e.session.lastPublished())
		}
	})

	t.Run("timeout", func(t *testing.T) {
		e := newTestEnv(t, "")
		e.addActivePrinter(t, true)

		w := e.do(t, http.MethodGet, "/api/v1/printers/active/state", "", "")
		assertError(t, w, http.StatusGatewayTimeout, ErrCodeTimeout)
	})
}

func TestSetFilamentSlot(t *testing.T) {
	e := newTestEnv(t, "")
	e.addActivePrinter(t, true)
	e.session.reply = `{"print":{"command":"ams_filament_setting","result":"success"}}`

	saved, err := e.filaments.Save(context.Background(), filament.Filament{
		FCID:         "a1b2c3d4",
		Material:     "PLA",
		PrintProfile: "GFL99",
		Color:        "ff8800",
		Manufacturer: "Acme",
		Price:        19.99,
		TempMin:      200,
		TempMax:      230,
	})
	if err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	tests := []struct {
		name   string
		body   string
		status int
		code   string
	}{
		{"slot too high", `{"slot":5,"fcid":"a1b2c3d4"}`, http.StatusBadRequest, ErrCodeInvalidSlot},
		{"slot not a number", `{"slot":"abc","fcid":"a1b2c3d4"}`, http.StatusBadRequest, ErrCodeInvalidSlot},
		{"slot missing", `{"fcid":"a1b2c3d4"}`, http.StatusBadRequest, ErrCodeInvalidSlot},
		{"fcid missing", `{"slot":1}`, http.StatusBadRequest, ErrCodeValidation},
		{"unknown fcid", `{"slot":1,"fcid":"nope"}`, http.StatusNotFound, ErrCodeFilamentNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := e.do(t, http.MethodPost, "/api/v1/filaments/slot", tt.body, "")
			assertError(t, w, tt.status, tt.code)
		})
	}
	if got := e.dials.Load(); got != 0 {
		t.Fatalf("rejected requests dialled %d times", got)
	}

	w := e.do(t, http.MethodPost, "/api/v1/filaments/slot", `{"slot":"2","fcid":"`+saved.FCID+`"}`, "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", w.Code, w.Body.String())
	}
	if resp := decode(t, w); resp["ok"] != true {
		t.Errorf("ok = %v", resp["ok"])
	}

	var sent struct {
		Print struct {
			TrayID    int    `json:"tray_id"`
			TrayColor string `json:"tray_color"`
		} `json:"print"`
	}
	if err := json.Unmarshal(e.session.lastPublished(), &sent); err != nil {
		t.Fatalf("published payload: %v", err)
	}
	if sent.Print.TrayID != 1 || sent.Print.TrayColor != "FF8800" {
		t.Errorf("published tray_id=%d tray_color=%s", sent.Print.TrayID, sent.Print.TrayColor)
	}

	w = e.do(t, http.MethodGet, "/api/v1/history?command=set_filament_slot", "", "")
	if w.Code != http.StatusOK {
		t.Fatalf("history status = %d", w.Code)
	}
	hist := decode(t, w)
	if hist["total"] != float64(1) {
		t.Fatalf("history total = %v, want 1", hist["total"])
	}
	entry := hist["entries"].([]any)[0].(map[string]any)
	if entry["outcome"] != "ok" || entry["serial"] != "01S00C123456789" {
		t.Errorf("history entry = %v", entry)
	}
}

func TestFilaments_CRUD(t *testing.T) {
	e := newTestEnv(t, "")

	w := e.do(t, http.MethodPost, "/api/v1/filaments", `{"material":"PETG"}`, "")
	assertError(t, w, http.StatusBadRequest, ErrCodeValidation)

	w = e.do(t, http.MethodPost, "/api/v1/filaments",
		`{"material":"PETG","print_profile":"GFG99","color":"#00ff00","manufacturer":"Acme","price":"24.5","temp_min":"230","temp_max":"250"}`, "")
	if w.Code != http.StatusCreated {
		t.Fatalf("save status = %d, body %s", w.Code, w.Body.String())
	}
	fcid, _ := decode(t, w)["fcid"].(string)
	if fcid == "" {
		t.Fatal("save returned no fcid")
	}

	w = e.do(t, http.MethodGet, "/api/v1/filaments", "", "")
	if got := decode(t, w)["count"]; got != float64(1) {
		t.Errorf("count = %v, want 1", got)
	}

	w = e.do(t, http.MethodGet, "/api/v1/filaments/fcid", "", "")
	if id, _ := decode(t, w)["fcid"].(string); len(id) != 8 {
		t.Errorf("generated fcid = %q, want 8 hex chars", id)
	}

	w = e.do(t, http.MethodDelete, "/api/v1/filaments/"+fcid, "", "")
	if w.Code != http.StatusNoContent {
		t.Fatalf("delete status = %d", w.Code)
	}
	w = e.do(t, http.MethodDelete, "/api/v1/filaments/"+fcid, "", "")
	assertError(t, w, http.StatusNotFound, ErrCodeNotFound)
}

func TestPrintProfiles(t *testing.T) {
	e := newTestEnv(t, "")

	w := e.do(t, http.MethodGet, "/api/v1/print-profiles", "", "")
	assertError(t, w, http.StatusNotFound, ErrCodeNotFound)

	profiles := `{"GFL99":{"name":"Generic PLA"}}`
	if err := os.WriteFile(filepath.Join(e.dir, "profiles.json"), []byte(profiles), 0o600); err != nil {
		t.Fatal(err)
	}
	w = e.do(t, http.MethodGet, "/api/v1/print-profiles", "", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), "Generic PLA") {
		t.Errorf("body = %s", w.Body.String())
	}
}

func TestCertificateStatus(t *testing.T) {
	e := newTestEnv(t, "")

	w := e.do(t, http.MethodGet, "/api/v1/certificates/Workshop", "", "")
	if resp := decode(t, w); resp["present"] != false {
		t.Errorf("present = %v, want false", resp["present"])
	}

	if err := e.store.Write("Workshop", []byte("pem")); err != nil {
		t.Fatal(err)
	}
	w = e.do(t, http.MethodGet, "/api/v1/certificates/Workshop", "", "")
	if resp := decode(t, w); resp["present"] != true {
		t.Errorf("present = %v, want true", resp["present"])
	}

	w = e.do(t, http.MethodPost, "/api/v1/certificates/Unknown", "", "")
	assertError(t, w, http.StatusNotFound, ErrCodeNotFound)
}

func TestHistory_BadQuery(t *testing.T) {
	e := newTestEnv(t, "")

	w := e.do(t, http.MethodGet, "/api/v1/history?limit=ten", "", "")
	assertError(t, w, http.StatusBadRequest, ErrCodeBadRequest)
}

func TestMetrics(t *testing.T) {
	e := newTestEnv(t, "")
	e.addActivePrinter(t, true)

	w := e.do(t, http.MethodGet, "/api/v1/metrics", "", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}

	var m SystemMetrics
	if err := json.Unmarshal(w.Body.Bytes(), &m); err != nil {
		t.Fatal(err)
	}
	if m.Printers.Total != 1 || m.Printers.Active != "01S00C123456789" || m.Printers.WithCertificates != 1 {
		t.Errorf("printers = %+v", m.Printers)
	}
	if m.Database == nil {
		t.Error("database metrics missing")
	}
}

func TestAuth(t *testing.T) {
	e := newTestEnv(t, testSecret)

	token := func(role auth.Role) string {
		tok, err := auth.GenerateAccessToken("tester", role, testSecret, time.Hour)
		if err != nil {
			t.Fatalf("GenerateAccessToken() error = %v", err)
		}
		return tok
	}

	tests := []struct {
		name   string
		method string
		path   string
		body   string
		token  string
		status int
	}{
		{"health is public", http.MethodGet, "/api/v1/health", "", "", http.StatusOK},
		{"no token", http.MethodGet, "/api/v1/printers", "", "", http.StatusUnauthorized},
		{"bad token", http.MethodGet, "/api/v1/printers", "", "garbage", http.StatusUnauthorized},
		{"viewer reads", http.MethodGet, "/api/v1/printers", "", token(auth.RoleViewer), http.StatusOK},
		{"viewer cannot add", http.MethodPost, "/api/v1/printers", `{}`, token(auth.RoleViewer), http.StatusForbidden},
		{"operator cannot add", http.MethodPost, "/api/v1/printers", `{}`, token(auth.RoleOperator), http.StatusForbidden},
		{"admin adds", http.MethodPost, "/api/v1/printers", `{"serial":"S1","access_code":"c","ip":"10.0.0.2"}`, token(auth.RoleAdmin), http.StatusCreated},
		{"viewer cannot query", http.MethodGet, "/api/v1/printers/active/state", "", token(auth.RoleViewer), http.StatusForbidden},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := e.do(t, tt.method, tt.path, tt.body, tt.token)
			if w.Code != tt.status {
				t.Errorf("status = %d, want %d (body %s)", w.Code, tt.status, w.Body.String())
			}
		})
	}
}

func TestTicketStore_SingleUse(t *testing.T) {
	ts := newTicketStore()
	ticket := ts.issue("tester", auth.RoleOperator)

	entry, ok := ts.consume(ticket)
	if !ok || entry.subject != "tester" || entry.role != auth.RoleOperator {
		t.Fatalf("consume() = %+v, %v", entry, ok)
	}
	if _, ok := ts.consume(ticket); ok {
		t.Error("ticket accepted twice")
	}
}

func TestTicketStore_Expiry(t *testing.T) {
	ts := newTicketStore()
	ts.tickets["old"] = ticketEntry{subject: "x", role: auth.RoleViewer, expiresAt: time.Now().Add(-time.Second)}

	if _, ok := ts.consume("old"); ok {
		t.Error("expired ticket accepted")
	}

	ts.tickets["old"] = ticketEntry{expiresAt: time.Now().Add(-time.Second)}
	ts.cleanExpired()
	if len(ts.tickets) != 0 {
		t.Errorf("cleanExpired left %d tickets", len(ts.tickets))
	}
}

func wsURL(base, path string) string {
	return "ws" + strings.TrimPrefix(base, "http") + path
}

func TestStream_RelaysReportsThenEnds(t *testing.T) {
	e := newTestEnv(t, "")
	e.addActivePrinter(t, true)
	e.session.reports = []string{
		`{"print":{"command":"push_status","layer_num":1}}`,
		`{"print":{"command":"push_status","layer_num":2}}`,
	}

	ts := httptest.NewServer(e.handler)
	defer ts.Close()

	conn, _, err := websocket.DefaultDialer.Dial(wsURL(ts.URL, "/api/v1/printers/active/stream"), nil)
	if err != nil {
		t.Fatalf("Dial() error = %v", err)
	}
	defer conn.Close()
	conn.SetReadDeadline(time.Now().Add(5 * time.Second)) //nolint:errcheck // test deadline

	var types []string
	for {
		var msg StreamMessage
		if err := conn.ReadJSON(&msg); err != nil {
			break
		}
		types = append(types, msg.Type)
		if msg.Type == StreamTypeEnd {
			break
		}
	}

	want := []string{StreamTypeReport, StreamTypeReport, StreamTypeEnd}
	if strings.Join(types, ",") != strings.Join(want, ",") {
		t.Errorf("frames = %v, want %v", types, want)
	}
}

func TestStream_CertificateMissingSendsError(t *testing.T) {
	e := newTestEnv(t, "")
	e.addActivePrinter(t, false)

	ts := httptest.NewServer(e.handler)
	defer ts.Close()

	conn, _, err := websocket.DefaultDialer.Dial(wsURL(ts.URL, "/api/v1/printers/active/stream"), nil)
	if err != nil {
		t.Fatalf("Dial() error = %v", err)
	}
	defer conn.Close()
	conn.SetReadDeadline(time.Now().Add(5 * time.Second)) //nolint:errcheck // test deadline

	var msg StreamMessage
	if err := conn.ReadJSON(&msg); err != nil {
		t.Fatalf("ReadJSON() error = %v", err)
	}
	if msg.Type != StreamTypeError || msg.Code != ErrCodeCertificateMissing {
		t.Errorf("frame = %+v", msg)
	}
}

func TestStream_RequiresTicket(t *testing.T) {
	e := newTestEnv(t, testSecret)
	e.addActivePrinter(t, true)

	ts := httptest.NewServer(e.handler)
	defer ts.Close()

	_, resp, err := websocket.DefaultDialer.Dial(wsURL(ts.URL, "/api/v1/printers/active/stream"), nil)
	if err == nil {
		t.Fatal("Dial() succeeded without a ticket")
	}
	if resp == nil || resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("response = %v, want 401", resp)
	}

	tok, err := auth.GenerateAccessToken("tester", auth.RoleOperator, testSecret, time.Hour)
	if err != nil {
		t.Fatal(err)
	}
	w := e.do(t, http.MethodPost, "/api/v1/auth/ws-ticket", "", tok)
	ticket, _ := decode(t, w)["ticket"].(string)
	if ticket == "" {
		t.Fatalf("no ticket issued: %s", w.Body.String())
	}

	conn, _, err := websocket.DefaultDialer.Dial(wsURL(ts.URL, "/api/v1/printers/active/stream?ticket="+ticket), nil)
	if err != nil {
		t.Fatalf("Dial() with ticket error = %v", err)
	}
	conn.Close()
}

func TestStream_NoActivePrinter(t *testing.T) {
	e := newTestEnv(t, "")

	ts := httptest.NewServer(e.handler)
	defer ts.Close()

	_, resp, err := websocket.DefaultDialer.Dial(wsURL(ts.URL, "/api/v1/printers/active/stream"), nil)
	if err == nil {
		t.Fatal("Dial() succeeded without an active printer")
	}
	if resp == nil || resp.StatusCode != http.StatusConflict {
		t.Fatalf("response = %v, want 409", resp)
	}
}

func TestFlexInt(t *testing.T) {
	tests := []struct {
		in   string
		want int
	}{
		{`3`, 3},
		{`"4"`, 4},
		{`" 2 "`, 2},
		{`"x"`, -1},
		{`1.5`, -1},
	}
	for _, tt := range tests {
		var v flexInt
		if err := json.Unmarshal([]byte(tt.in), &v); err != nil {
			t.Fatalf("Unmarshal(%s) error = %v", tt.in, err)
		}
		if int(v) != tt.want {
			t.Errorf("Unmarshal(%s) = %d, want %d", tt.in, v, tt.want)
		}
	}
}
