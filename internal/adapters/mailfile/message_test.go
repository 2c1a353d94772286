package mailfile

import (
	"strings"
	"testing"
	"time"

	"github.com/mikey/reply-intel/internal/core"
	"github.com/mikey/reply-intel/internal/utils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestParseReplyPlain(t *testing.T) {
	raw := "From: Jane Doe <Jane@Prospect.io>\r\n" +
		"To: sales@acme.com\r\n" +
		"Subject: =?UTF-8?Q?Re:_caf=C3=A9_meeting?=\r\n" +
		"Date: Mon, 02 Mar 2026 10:15:00 +0000\r\n" +
		"Message-Id: <abc123@prospect.io>\r\n" +
		"\r\n" +
		"Sounds good, can we talk Thursday?\r\n"

	reply, err := ParseReply(strings.NewReader(raw), utils.NewTextProcessor(zap.NewNop()))
	require.NoError(t, err)

	assert.Equal(t, "abc123@prospect.io", reply.ID)
	assert.Equal(t, "Jane@Prospect.io", reply.SenderEmail)
	assert.Equal(t, "jane@prospect.io", reply.IdentityKey())
	assert.Equal(t, "Re: café meeting", reply.Subject)
	assert.Equal(t, core.DirectionInbound, reply.Direction)
	assert.True(t, reply.ReceivedAt.Equal(time.Date(2026, 3, 2, 10, 15, 0, 0, time.UTC)))
	assert.Contains(t, reply.Body, "can we talk Thursday?")
}

func TestParseReplyMultipartPrefersPlain(t *testing.T) {
	raw := "From: bob@prospect.io\r\n" +
		"Subject: Re: intro\r\n" +
		"Content-Type: multipart/alternative; boundary=XYZ\r\n" +
		"\r\n" +
		"--XYZ\r\n" +
		"Content-Type: text/plain; charset=utf-8\r\n" +
		"Content-Transfer-Encoding: quoted-printable\r\n" +
		"\r\n" +
		"Please send pricing for the caf=C3=A9 chain\r\n" +
		"--XYZ\r\n" +
		"Content-Type: text/html\r\n" +
		"\r\n" +
		"<p>Please send pricing</p>\r\n" +
		"--XYZ--\r\n"

	reply, err := ParseReply(strings.NewReader(raw), utils.NewTextProcessor(zap.NewNop()))
	require.NoError(t, err)
	assert.Contains(t, reply.Body, "Please send pricing for the café chain")
	assert.NotContains(t, reply.Body, "<p>")
}

func TestParseReplyHTMLOnly(t *testing.T) {
	raw := "From: carol@prospect.io\r\n" +
		"Subject: Re: intro\r\n" +
		"Content-Type: multipart/alternative; boundary=B\r\n" +
		"\r\n" +
		"--B\r\n" +
		"Content-Type: text/html\r\n" +
		"Content-Transfer-Encoding: base64\r\n" +
		"\r\n" +
		"PHA+TGV0J3MgdGFsazwvcD4=\r\n" +
		"--B--\r\n"

	reply, err := ParseReply(strings.NewReader(raw), utils.NewTextProcessor(zap.NewNop()))
	require.NoError(t, err)
	assert.Equal(t, "Let's talk", strings.TrimSpace(reply.Body))
}

func TestParseReplyRejectsGarbage(t *testing.T) {
	_, err := ParseReply(strings.NewReader("not an email"), utils.NewTextProcessor(zap.NewNop()))
	assert.Error(t, err)
}
