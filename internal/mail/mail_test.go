package mail

import (
	"bytes"
	"context"
	"log/slog"
	"strings"
	"testing"
	"time"

	sgmail "github.com/sendgrid/sendgrid-go/helpers/mail"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildCodeMessage(t *testing.T) {
	from := sgmail.NewEmail("Registry Portal", "no-reply@example.com")
	msg := BuildCodeMessage(from, "ayesha@example.com", "482913", 10*time.Minute)

	assert.Equal(t, codeSubject, msg.Subject)
	require.Len(t, msg.Personalizations, 1)
	require.Len(t, msg.Personalizations[0].To, 1)
	assert.Equal(t, "ayesha@example.com", msg.Personalizations[0].To[0].Address)
	require.Len(t, msg.Content, 2)
	for _, c := range msg.Content {
		assert.Contains(t, c.Value, "482913")
		assert.Contains(t, c.Value, "10 minutes")
	}
}

func TestBuildCodeMessage_ShortTTL(t *testing.T) {
	from := sgmail.NewEmail("", "no-reply@example.com")
	msg := BuildCodeMessage(from, "a@example.com", "1", 10*time.Second)
	assert.Contains(t, msg.Content[0].Value, "1 minutes")
}

func TestLogSender(t *testing.T) {
	var buf bytes.Buffer
	sender := LogSender{Logger: slog.New(slog.NewTextHandler(&buf, nil))}

	require.NoError(t, sender.SendCode(context.Background(), "a@example.com", "123456", time.Minute))
	out := buf.String()
	assert.True(t, strings.Contains(out, "code=123456"), out)
	assert.True(t, strings.Contains(out, "to=a@example.com"), out)
}
