package support

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"net/http"
	"net/http/httptest"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/MeKo-Tech/codescan/internal/geometry"
	"github.com/MeKo-Tech/codescan/internal/orientation"
	"github.com/MeKo-Tech/codescan/internal/server"
	"github.com/cucumber/godog"
	"github.com/gorilla/websocket"
	"gopkg.in/yaml.v3"
)

const readTimeout = 5 * time.Second

// aScanningServer starts an in-process server with the current scanner
// settings.
func (testCtx *TestContext) aScanningServer() error {
	srv, err := server.NewServer(server.Config{
		CORSOrigin:   "*",
		ReadTimeout:  time.Minute,
		MaxMessageKB: 256,
		Scanner:      testCtx.Scanner,
	})
	if err != nil {
		return fmt.Errorf("failed to create server: %w", err)
	}
	mux := http.NewServeMux()
	srv.SetupRoutes(mux)
	testCtx.ScanServer = srv
	testCtx.HTTPServer = httptest.NewServer(mux)
	return nil
}

// aScanningServerConfiguredWith merges YAML scanner settings into the
// defaults before starting the server.
func (testCtx *TestContext) aScanningServerConfiguredWith(doc *godog.DocString) error {
	if err := yaml.Unmarshal([]byte(doc.Content), &testCtx.Scanner); err != nil {
		return fmt.Errorf("invalid scanner settings: %w", err)
	}
	return testCtx.aScanningServer()
}

func (testCtx *TestContext) aClientConnects() error {
	if testCtx.HTTPServer == nil {
		return errors.New("no server running")
	}
	url := "ws" + strings.TrimPrefix(testCtx.HTTPServer.URL, "http") + "/ws/scan"
	conn, resp, err := websocket.DefaultDialer.Dial(url, nil)
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}
	if err != nil {
		return fmt.Errorf("failed to connect: %w", err)
	}
	testCtx.Conn = conn

	hello, err := testCtx.read()
	if err != nil {
		return err
	}
	if hello.Type != "session" || hello.SessionID == "" {
		return fmt.Errorf("expected session greeting, got %q", hello.Type)
	}
	testCtx.SessionID = hello.SessionID
	return nil
}

func (testCtx *TestContext) read() (server.ServerMessage, error) {
	var msg server.ServerMessage
	if err := testCtx.Conn.SetReadDeadline(time.Now().Add(readTimeout)); err != nil {
		return msg, err
	}
	if err := testCtx.Conn.ReadJSON(&msg); err != nil {
		return msg, fmt.Errorf("failed to read message: %w", err)
	}
	return msg, nil
}

// request sends msg followed by a flush and collects every message up to the
// flush acknowledgement, so session events of msg are included.
func (testCtx *TestContext) request(msg map[string]any) error {
	if testCtx.Conn == nil {
		return errors.New("client is not connected")
	}
	if err := testCtx.Conn.WriteJSON(msg); err != nil {
		return fmt.Errorf("failed to send %v: %w", msg["type"], err)
	}
	flushID := testCtx.requestID()
	if err := testCtx.Conn.WriteJSON(map[string]any{"type": "flush", "id": flushID}); err != nil {
		return fmt.Errorf("failed to send flush: %w", err)
	}

	testCtx.LastMessages = nil
	for {
		m, err := testCtx.read()
		if err != nil {
			return err
		}
		testCtx.LastMessages = append(testCtx.LastMessages, m)
		switch m.Type {
		case "scan", "cleared":
			testCtx.Events = append(testCtx.Events, m)
		case "frame_result":
			testCtx.LastOutcome = m.Outcome
		case "flushed":
			if m.RequestID == flushID {
				return nil
			}
		}
	}
}

func (testCtx *TestContext) theViewLayoutIs(width, height int) error {
	return testCtx.request(map[string]any{
		"type":   "layout",
		"layout": geometry.Size{Width: float64(width), Height: float64(height)},
	})
}

func (testCtx *TestContext) sendFrame(o string, width, height, ms int, detections string) error {
	orient, err := orientation.Parse(o)
	if err != nil {
		return err
	}
	msg := map[string]any{
		"type": "frame",
		"id":   testCtx.requestID(),
		"frame": server.FrameMessage{
			Width:       float64(width),
			Height:      float64(height),
			Orientation: orient,
			TimestampMs: float64(ms),
		},
	}
	if detections != "" {
		if !json.Valid([]byte(detections)) {
			return fmt.Errorf("detections are not valid JSON: %s", detections)
		}
		msg["detections"] = json.RawMessage(detections)
	}
	return testCtx.request(msg)
}

func (testCtx *TestContext) aFrameWithDetections(o string, width, height, ms int, doc *godog.DocString) error {
	return testCtx.sendFrame(o, width, height, ms, doc.Content)
}

func (testCtx *TestContext) aFrameWithoutDetections(o string, width, height, ms int) error {
	return testCtx.sendFrame(o, width, height, ms, "[]")
}

func (testCtx *TestContext) theClientSetsScanning(state string) error {
	return testCtx.request(map[string]any{"type": "scan_enabled", "enabled": state == "enables"})
}

func (testCtx *TestContext) theClientReconfiguresWith(doc *godog.DocString) error {
	var settings map[string]any
	if err := yaml.Unmarshal([]byte(doc.Content), &settings); err != nil {
		return fmt.Errorf("invalid settings: %w", err)
	}
	return testCtx.request(map[string]any{"type": "configure", "id": testCtx.requestID(), "config": settings})
}

func (testCtx *TestContext) lastOfType(typ string) []server.ServerMessage {
	var out []server.ServerMessage
	for _, m := range testCtx.LastMessages {
		if m.Type == typ {
			out = append(out, m)
		}
	}
	return out
}

func (testCtx *TestContext) theFrameOutcomeShouldBe(expected string) error {
	if testCtx.LastOutcome != expected {
		return fmt.Errorf("expected outcome %q, got %q", expected, testCtx.LastOutcome)
	}
	return nil
}

func (testCtx *TestContext) aScanEventShouldBeReceivedWithValues(values string) error {
	scans := testCtx.lastOfType("scan")
	if len(scans) != 1 {
		return fmt.Errorf("expected one scan event, got %d", len(scans))
	}
	got := make([]string, 0, len(scans[0].Detections))
	for _, d := range scans[0].Detections {
		got = append(got, d.Value)
	}
	want := strings.Split(values, ",")
	if !slices.Equal(got, want) {
		return fmt.Errorf("expected scanned values %v, got %v", want, got)
	}
	return nil
}

func (testCtx *TestContext) noScanEventShouldBeReceived() error {
	if n := len(testCtx.lastOfType("scan")); n != 0 {
		return fmt.Errorf("expected no scan event, got %d", n)
	}
	return nil
}

func (testCtx *TestContext) aClearedEventShouldBeReceived() error {
	if n := len(testCtx.lastOfType("cleared")); n != 1 {
		return fmt.Errorf("expected one cleared event, got %d", n)
	}
	return nil
}

func (testCtx *TestContext) theReceivedEventSequenceShouldBe(expected string) error {
	got := make([]string, len(testCtx.Events))
	for i, m := range testCtx.Events {
		got[i] = m.Type
	}
	if strings.Join(got, ",") != expected {
		return fmt.Errorf("expected event sequence %q, got %q", expected, strings.Join(got, ","))
	}
	return nil
}

func (testCtx *TestContext) theHighlightShouldHaveBoundingBox(key string, x, y, w, h float64) error {
	updates := testCtx.lastOfType("highlights")
	if len(updates) == 0 {
		return errors.New("no highlights received")
	}
	last := updates[len(updates)-1]
	for _, hl := range last.Highlights {
		if hl.Key != key {
			continue
		}
		want := geometry.Rect{X: x, Y: y, Width: w, Height: h}
		bb := hl.BoundingBox
		if math.Abs(bb.X-want.X) > 0.5 || math.Abs(bb.Y-want.Y) > 0.5 ||
			math.Abs(bb.Width-want.Width) > 0.5 || math.Abs(bb.Height-want.Height) > 0.5 {
			return fmt.Errorf("highlight %s: expected box %+v, got %+v", key, want, bb)
		}
		return nil
	}
	return fmt.Errorf("highlight %s not found", key)
}

func (testCtx *TestContext) theHighlightsShouldBeCleared() error {
	updates := testCtx.lastOfType("highlights")
	if len(updates) == 0 {
		return errors.New("no highlights update received")
	}
	if n := len(updates[len(updates)-1].Highlights); n != 0 {
		return fmt.Errorf("expected an empty overlay, got %d highlights", n)
	}
	return nil
}

func (testCtx *TestContext) noHighlightsShouldBeReceived() error {
	if n := len(testCtx.lastOfType("highlights")); n != 0 {
		return fmt.Errorf("expected no highlights update, got %d", n)
	}
	return nil
}

func (testCtx *TestContext) anErrorOfTypeShouldBeReceived(errorType string) error {
	for _, m := range testCtx.lastOfType("error") {
		if m.ErrorType == errorType {
			return nil
		}
	}
	return fmt.Errorf("expected an error of type %q in %d messages", errorType, len(testCtx.LastMessages))
}

func (testCtx *TestContext) theSessionShouldBeConfigured() error {
	if n := len(testCtx.lastOfType("configured")); n != 1 {
		return fmt.Errorf("expected a configured reply, got %d", n)
	}
	return nil
}

func (testCtx *TestContext) theSessionsEndpointShouldReport(count int) error {
	resp, err := http.Get(testCtx.HTTPServer.URL + "/sessions") //nolint:noctx // test server
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()

	var body server.SessionsResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return fmt.Errorf("failed to decode sessions response: %w", err)
	}
	if body.Count != count {
		return fmt.Errorf("expected %d active sessions, got %d", count, body.Count)
	}
	return nil
}

// RegisterScanSteps registers the scanning server steps.
func (testCtx *TestContext) RegisterScanSteps(sc *godog.ScenarioContext) {
	atoi := func(s string) int {
		n, _ := strconv.Atoi(s)
		return n
	}
	atof := func(s string) float64 {
		f, _ := strconv.ParseFloat(s, 64)
		return f
	}

	// Server and connection
	sc.Step(`^a scanning server$`, testCtx.aScanningServer)
	sc.Step(`^a scanning server configured with:$`, testCtx.aScanningServerConfiguredWith)
	sc.Step(`^a client connects$`, testCtx.aClientConnects)
	sc.Step(`^the sessions endpoint should report (\d+) active sessions?$`, func(n string) error {
		return testCtx.theSessionsEndpointShouldReport(atoi(n))
	})

	// Client requests
	sc.Step(`^the view layout is (\d+)x(\d+)$`, func(w, h string) error {
		return testCtx.theViewLayoutIs(atoi(w), atoi(h))
	})
	sc.Step(`^a "([^"]*)" frame of (\d+)x(\d+) at (\d+)ms with detections:$`,
		func(o, w, h, ms string, doc *godog.DocString) error {
			return testCtx.aFrameWithDetections(o, atoi(w), atoi(h), atoi(ms), doc)
		})
	sc.Step(`^a "([^"]*)" frame of (\d+)x(\d+) at (\d+)ms without detections$`, func(o, w, h, ms string) error {
		return testCtx.aFrameWithoutDetections(o, atoi(w), atoi(h), atoi(ms))
	})
	sc.Step(`^the client (enables|disables) scanning$`, testCtx.theClientSetsScanning)
	sc.Step(`^the client reconfigures the session with:$`, testCtx.theClientReconfiguresWith)

	// Expectations
	sc.Step(`^the frame outcome should be "([^"]*)"$`, testCtx.theFrameOutcomeShouldBe)
	sc.Step(`^a scan event should be received with values "([^"]*)"$`, testCtx.aScanEventShouldBeReceivedWithValues)
	sc.Step(`^no scan event should be received$`, testCtx.noScanEventShouldBeReceived)
	sc.Step(`^a cleared event should be received$`, testCtx.aClearedEventShouldBeReceived)
	sc.Step(`^the received event sequence should be "([^"]*)"$`, testCtx.theReceivedEventSequenceShouldBe)
	sc.Step(`^the highlight "([^"]*)" should have bounding box (-?[\d.]+),(-?[\d.]+),([\d.]+),([\d.]+)$`,
		func(key, x, y, w, h string) error {
			return testCtx.theHighlightShouldHaveBoundingBox(key, atof(x), atof(y), atof(w), atof(h))
		})
	sc.Step(`^the highlights should be cleared$`, testCtx.theHighlightsShouldBeCleared)
	sc.Step(`^no highlights should be received$`, testCtx.noHighlightsShouldBeReceived)
	sc.Step(`^an error of type "([^"]*)" should be received$`, testCtx.anErrorOfTypeShouldBeReceived)
	sc.Step(`^the session should be configured$`, testCtx.theSessionShouldBeConfigured)
}
