package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gorilla/websocket"
	log "github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dtanony/ADS-Safety-Benchmark-and-Shield/internal/analysis"
	"github.com/dtanony/ADS-Safety-Benchmark-and-Shield/internal/config"
	"github.com/dtanony/ADS-Safety-Benchmark-and-Shield/internal/scenario"
)

const uturnInput = `{
	"maneuver": {"type": "uturn"},
	"dx0": 12, "ve": 2.7777777777777777, "vo": 2.7777777777777777
}`

const sampleTrace = `{
	"groundtruth_kinematic": [
		{"timestamp": 0,
		 "groundtruth_ego": {"pose": {"position": {"x": 0, "y": 0, "z": 0}}, "twist": {"linear": {"x": 10, "y": 0, "z": 0}}},
		 "groundtruth_vehicles": [{"pose": {"position": {"x": 100, "y": 0, "z": 0}, "rotation": {"x": 0, "y": 0, "z": 180}}, "twist": {"linear": {"x": -5, "y": 0, "z": 0}}}]},
		{"timestamp": 0.1,
		 "groundtruth_ego": {"pose": {"position": {"x": 1, "y": 0, "z": 0}}, "twist": {"linear": {"x": 10, "y": 0, "z": 0}}},
		 "groundtruth_vehicles": [{"pose": {"position": {"x": 99.5, "y": 0, "z": 0}, "rotation": {"x": 0, "y": 0, "z": 180}}, "twist": {"linear": {"x": -5, "y": 0, "z": 0}}}]}
	],
	"groundtruth_size": [
		{"name": "ego", "center": {"x": 0, "y": 0, "z": 0}, "size": {"x": 4.9, "y": 2.2, "z": 1.5}},
		{"name": "npc1", "center": {"x": 0, "y": 0, "z": 0}, "size": {"x": 4.0, "y": 1.9, "z": 1.5}}
	],
	"metadata": {"swerve_point": {"x": 50, "y": 0, "z": 0}}
}`

func do(t *testing.T, method, target, body string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	New(config.Builtin()).ServeHTTP(rec, httptest.NewRequest(method, target, strings.NewReader(body)))
	return rec
}

func TestProfiles(t *testing.T) {
	rec := do(t, http.MethodGet, "/profiles", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))

	var profiles config.Profiles
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &profiles))
	assert.Equal(t, config.Builtin(), profiles)
}

func TestSimulate(t *testing.T) {
	rec := do(t, http.MethodPost, "/simulate", uturnInput)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	var got scenario.Log
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))

	var in scenario.Input
	require.NoError(t, json.Unmarshal([]byte(uturnInput), &in))
	want, err := scenario.Execute(in, config.Builtin())
	require.NoError(t, err)
	assert.Equal(t, want.Meta, got.Meta)
	assert.Equal(t, want.Result, got.Result)
}

func TestSimulateBadInput(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"not json", `{"maneuver":`},
		{"no maneuver", `{"ve": 10}`},
		{"negative speed", `{"maneuver": {"type": "swerve"}, "dx0": 10, "ve": -1}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := do(t, http.MethodPost, "/simulate", tt.body)
			assert.Equal(t, http.StatusBadRequest, rec.Code)

			var body errorBody
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
			assert.NotEmpty(t, body.Error)
		})
	}
}

func TestSimulateMethodNotAllowed(t *testing.T) {
	rec := do(t, http.MethodGet, "/simulate", "")
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestAnalyze(t *testing.T) {
	rec := do(t, http.MethodPost, "/analyze?name=swerve_sim7.json", sampleTrace)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var got analysis.Record
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, "swerve_sim7.json", got.File)
	assert.Equal(t, analysis.SwerveKey, got.Maneuver)
	assert.False(t, got.Collision)
	assert.Equal(t, 10.0, got.EgoSpeed)
	assert.Equal(t, 5.0, got.NPCSpeed)
}

func TestAnalyzeErrors(t *testing.T) {
	rec := do(t, http.MethodPost, "/analyze", `{"groundtruth_kinematic": [`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "trace.json")

	noMeta := strings.Replace(sampleTrace, `"swerve_point"`, `"other_point"`, 1)
	rec = do(t, http.MethodPost, "/analyze", noMeta)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func dialStream(t *testing.T) *websocket.Conn {
	t.Helper()
	srv := httptest.NewServer(New(config.Builtin()))
	t.Cleanup(srv.Close)

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/simulate/ws"
	c, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	assert.Equal(t, http.StatusSwitchingProtocols, resp.StatusCode)
	t.Cleanup(func() { c.Close() })
	return c
}

func TestStream(t *testing.T) {
	c := dialStream(t)
	require.NoError(t, c.WriteMessage(websocket.TextMessage, []byte(uturnInput)))

	var (
		frames []scenario.Frame
		last   StreamMessage
	)
	for {
		var msg StreamMessage
		require.NoError(t, c.ReadJSON(&msg))
		if msg.Type != MessageFrame {
			last = msg
			break
		}
		require.NotNil(t, msg.Frame)
		frames = append(frames, *msg.Frame)
	}

	require.Equal(t, MessageResult, last.Type, last.Error)
	require.NotNil(t, last.Result)
	require.NotNil(t, last.Meta)

	var in scenario.Input
	require.NoError(t, json.Unmarshal([]byte(uturnInput), &in))
	in.Record = true
	want, err := scenario.Execute(in, config.Builtin())
	require.NoError(t, err)
	assert.Equal(t, want.Result, *last.Result)
	assert.Equal(t, want.Output, frames)
}

func TestStreamBadInput(t *testing.T) {
	c := dialStream(t)
	require.NoError(t, c.WriteMessage(websocket.TextMessage, []byte(`{"ve": 10}`)))

	var msg StreamMessage
	require.NoError(t, c.ReadJSON(&msg))
	assert.Equal(t, MessageError, msg.Type)
	assert.Contains(t, msg.Error, "missing maneuver")
}

type brokenConn struct{ err error }

func (b brokenConn) WriteJSON(interface{}) error { return b.err }
func (b brokenConn) WriteMessage(int, []byte) error { return b.err }

func TestStreamWriteFailuresAreLogged(t *testing.T) {
	hook := test.NewGlobal()
	defer hook.Reset()
	level := log.GetLevel()
	log.SetLevel(log.DebugLevel)
	defer log.SetLevel(level)

	c := brokenConn{err: errors.New("broken pipe")}
	logger := log.WithField("request", "r1")

	err := send(c, logger, StreamMessage{Type: MessageError, Error: "bad input"})
	assert.ErrorIs(t, err, c.err)
	require.NotNil(t, hook.LastEntry())
	assert.Equal(t, log.DebugLevel, hook.LastEntry().Level)
	assert.Equal(t, MessageError, hook.LastEntry().Data["type"])
	assert.Equal(t, "r1", hook.LastEntry().Data["request"])

	closeStream(c, logger)
	require.NotNil(t, hook.LastEntry())
	assert.Equal(t, "server: stream close", hook.LastEntry().Message)
	assert.Equal(t, c.err, hook.LastEntry().Data[log.ErrorKey])
}
