package service

import (
	"context"
	"testing"
	"time"

	"github.com/pquerna/otp/totp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"chat-service/model"
)

// The global provider delegates only once, so every test in the package shares this recorder.
var spans = tracetest.NewSpanRecorder()

func init() {
	otel.SetTracerProvider(sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(spans)))
}

func endedSpans(name string) []sdktrace.ReadOnlySpan {
	var out []sdktrace.ReadOnlySpan
	for _, span := range spans.Ended() {
		if span.Name() == name {
			out = append(out, span)
		}
	}
	return out
}

func hasException(span sdktrace.ReadOnlySpan) bool {
	for _, event := range span.Events() {
		if event.Name == "exception" {
			return true
		}
	}
	return false
}

func TestAuthOperationsAreTraced(t *testing.T) {
	auth, _, _ := newAuth()
	ctx := context.Background()

	user, err := auth.Register(ctx, "traced@example.com", "traced", "secret")
	require.NoError(t, err)
	_, err = auth.UpdateAvatar(ctx, user.ID, model.Avatar{URL: "http://h/images/t.png", LocalPath: "public/images/t.png"})
	require.NoError(t, err)
	secret, _, err := auth.OtpSecret(ctx, user.ID, "secret")
	require.NoError(t, err)
	code, err := totp.GenerateCode(secret, time.Now())
	require.NoError(t, err)
	require.NoError(t, auth.OtpVerify(ctx, user.ID, code))
	_, err = auth.OtpValidate(ctx, user.ID, code)
	require.NoError(t, err)
	require.NoError(t, auth.OtpDisable(ctx, user.ID, "secret", code))
	require.NoError(t, auth.Logout(ctx, user.ID))

	for _, name := range []string{
		"AuthService.UpdateAvatar",
		"AuthService.OtpSecret",
		"AuthService.OtpVerify",
		"AuthService.OtpValidate",
		"AuthService.OtpDisable",
		"AuthService.Logout",
	} {
		assert.NotEmpty(t, endedSpans(name), name)
	}
}

func TestGroupDetailsSpanRecordsClientErrors(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	_, _, _, chat := newGroup(t, f)

	before := len(endedSpans("ChatService.GroupDetails"))
	_, err := f.chats.GroupDetails(ctx, chat.ID)
	require.NoError(t, err)
	_, err = f.chats.GroupDetails(ctx, "missing")
	require.Error(t, err)

	recorded := endedSpans("ChatService.GroupDetails")
	require.Len(t, recorded, before+2)

	ok, missing := recorded[before], recorded[before+1]
	assert.False(t, hasException(ok))
	assert.True(t, hasException(missing))
	assert.NotEqual(t, codes.Error, missing.Status().Code)
}
