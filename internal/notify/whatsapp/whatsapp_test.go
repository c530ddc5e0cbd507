package whatsapp

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
	"golang.org/x/time/rate"

	"solar-dashboard/internal/audit"
)

type recordingAudit struct {
	entries []audit.Entry
}

func (a *recordingAudit) Log(_ context.Context, entry audit.Entry) error {
	a.entries = append(a.entries, entry)
	return nil
}

type capturedMessage struct {
	path, user, pass, from, to, body string
}

func twilioServer(t *testing.T, got *capturedMessage) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.NoError(t, r.ParseForm())
		user, pass, _ := r.BasicAuth()
		*got = capturedMessage{
			path: r.URL.Path, user: user, pass: pass,
			from: r.PostForm.Get("From"), to: r.PostForm.Get("To"), body: r.PostForm.Get("Body"),
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"sid":"SM123","status":"queued"}`))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func audioFile(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "resumen_ejecutivo_20260315_093005.mp3")
	require.NoError(t, os.WriteFile(path, []byte("ID3"), 0o644))
	return path
}

func TestClientSend(t *testing.T) {
	var got capturedMessage
	srv := twilioServer(t, &got)
	client := NewClient(ClientConfig{BaseURL: srv.URL, AccountSID: "AC1", AuthToken: "secret", From: "+14155238886"})

	msg, err := client.Send(context.Background(), "+5491112345678", "hola")
	require.NoError(t, err)
	assert.Equal(t, Message{SID: "SM123", Status: "queued"}, msg)
	assert.Equal(t, capturedMessage{
		path: "/Accounts/AC1/Messages.json", user: "AC1", pass: "secret",
		from: "whatsapp:+14155238886", to: "whatsapp:+5491112345678", body: "hola",
	}, got)
}

func TestClientError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"code":21211,"message":"Invalid 'To' Phone Number"}`))
	}))
	defer srv.Close()
	client := NewClient(ClientConfig{BaseURL: srv.URL, AccountSID: "AC1", AuthToken: "secret"})
	_, err := client.Send(context.Background(), "+1", "hola")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "21211")

	assert.False(t, NewClient(ClientConfig{AccountSID: "AC1"}).Enabled())
}

func TestValidation(t *testing.T) {
	svc := NewService(nil)
	_, err := svc.SendText(context.Background(), "5491112345678", "hola")
	assert.True(t, errors.Is(err, ErrInvalidPhone))
	_, err = svc.SendText(context.Background(), "+5491112345678", " ")
	assert.True(t, errors.Is(err, ErrEmptyMessage))
	_, err = svc.SendAudio(context.Background(), "+5491112345678", filepath.Join(t.TempDir(), "missing.mp3"))
	assert.True(t, errors.Is(err, os.ErrNotExist))
	assert.True(t, errors.Is(err, ErrAudioNotFound))
	_, err = svc.SendAudio(context.Background(), "549", audioFile(t))
	assert.True(t, errors.Is(err, ErrInvalidPhone))
}

func TestSimulation(t *testing.T) {
	recorder := &recordingAudit{}
	svc := NewService(NewClient(ClientConfig{}), WithAudit(recorder), WithLogger(zaptest.NewLogger(t)))

	text, err := svc.SendText(context.Background(), "+5491112345678", "hola")
	require.NoError(t, err)
	assert.Equal(t, &Result{
		Success: true, Mode: ModeSimulation, Message: "SIMULACIÓN: Mensaje se enviaría a +5491112345678",
		SID: SimulatedSID, Status: SimulatedStatus,
	}, text)

	audio, err := svc.SendAudio(context.Background(), "+5491112345678", audioFile(t))
	require.NoError(t, err)
	assert.Equal(t, "SIMULACIÓN: Audio se enviaría a +5491112345678", audio.Message)
	require.Len(t, recorder.entries, 2)
	assert.Equal(t, audit.ActionWhatsAppSend, recorder.entries[1].Action)
}

func TestRealSend(t *testing.T) {
	var got capturedMessage
	srv := twilioServer(t, &got)
	client := NewClient(ClientConfig{BaseURL: srv.URL, AccountSID: "AC1", AuthToken: "secret", From: "whatsapp:+14155238886"})
	svc := NewService(client, WithLimiter(rate.NewLimiter(rate.Inf, 1)))

	text, err := svc.SendText(context.Background(), "+5491112345678", "hola")
	require.NoError(t, err)
	assert.Equal(t, ModeReal, text.Mode)
	assert.Equal(t, "SM123", text.SID)
	assert.Equal(t, "queued", text.Status)
	assert.Empty(t, text.Note)
	assert.Equal(t, "whatsapp:+14155238886", got.from)

	audio, err := svc.SendAudio(context.Background(), "+5491112345678", audioFile(t))
	require.NoError(t, err)
	assert.Equal(t, mediaNote, audio.Note)
	assert.True(t, strings.HasPrefix(got.body, "Nuevo reporte ejecutivo disponible."))
	assert.Contains(t, got.body, "resumen_ejecutivo_20260315_093005.mp3")
}

func TestThrottleHonoursContext(t *testing.T) {
	var got capturedMessage
	srv := twilioServer(t, &got)
	client := NewClient(ClientConfig{BaseURL: srv.URL, AccountSID: "AC1", AuthToken: "secret"})
	svc := NewService(client, WithLimiter(rate.NewLimiter(rate.Limit(0.001), 1)))

	_, err := svc.SendText(context.Background(), "+5491112345678", "primero")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = svc.SendText(ctx, "+5491112345678", "segundo")
	require.Error(t, err)
	assert.Equal(t, "primero", got.body)
}
