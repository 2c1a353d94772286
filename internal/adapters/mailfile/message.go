package mailfile

import (
	"bufio"
	"bytes"
	"encoding/base64"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"mime/quotedprintable"
	"net/mail"
	"strings"
	"time"

	"github.com/mikey/reply-intel/internal/core"
	"github.com/mikey/reply-intel/internal/utils"
)

const noTextPlaceholder = "[No text content found in multipart message]"

var headerDecoder = &mime.WordDecoder{}

// ParseReply reads an RFC 5322 message into a Reply. The lead defaults to
// the sender; callers override it for forwarded replies.
func ParseReply(r io.Reader, tp *utils.TextProcessor) (core.Reply, error) {
	msg, err := mail.ReadMessage(bufio.NewReader(r))
	if err != nil {
		return core.Reply{}, fmt.Errorf("failed to parse email message: %w", err)
	}

	body, err := extractText(msg.Header.Get("Content-Type"), msg.Header.Get("Content-Transfer-Encoding"), msg.Body, tp)
	if err != nil {
		return core.Reply{}, fmt.Errorf("failed to extract text content: %w", err)
	}

	reply := core.Reply{
		ID:        strings.Trim(msg.Header.Get("Message-Id"), "<> "),
		Subject:   decodeHeader(msg.Header.Get("Subject")),
		Body:      tp.SanitizeUTF8(body),
		ThreadID:  strings.Trim(msg.Header.Get("In-Reply-To"), "<> "),
		Direction: core.DirectionInbound,
	}
	if from, err := mail.ParseAddress(msg.Header.Get("From")); err == nil {
		reply.SenderEmail = from.Address
		reply.LeadEmail = from.Address
	} else {
		reply.SenderEmail = strings.TrimSpace(msg.Header.Get("From"))
		reply.LeadEmail = reply.SenderEmail
	}
	if date, err := msg.Header.Date(); err == nil {
		reply.ReceivedAt = date.UTC()
	} else {
		reply.ReceivedAt = time.Now().UTC()
	}
	if reply.ID == "" {
		reply.ID = "local"
	}
	return reply, nil
}

func decodeHeader(v string) string {
	decoded, err := headerDecoder.DecodeHeader(v)
	if err != nil {
		return v
	}
	return decoded
}

// extractText returns the readable text of a (possibly multipart) body.
// text/plain parts win; an HTML-only message is converted to text.
func extractText(contentType, encoding string, body io.Reader, tp *utils.TextProcessor) (string, error) {
	mediaType, params, err := mime.ParseMediaType(contentType)
	if err != nil || contentType == "" {
		mediaType = "text/plain"
	}

	if !strings.HasPrefix(mediaType, "multipart/") {
		raw, err := io.ReadAll(decodeTransfer(encoding, body))
		if err != nil {
			return "", err
		}
		if mediaType == "text/html" {
			return tp.HTMLToText(string(raw)), nil
		}
		return string(raw), nil
	}

	boundary, ok := params["boundary"]
	if !ok {
		raw, err := io.ReadAll(body)
		if err != nil {
			return "", err
		}
		return string(raw), nil
	}

	var plain, html bytes.Buffer
	mr := multipart.NewReader(body, boundary)
	for {
		part, err := mr.NextPart()
		if err == io.EOF {
			break
		}
		if err != nil {
			// Keep what was read so far
			break
		}

		partType := part.Header.Get("Content-Type")
		partMedia, _, _ := mime.ParseMediaType(partType)
		switch {
		case strings.HasPrefix(partMedia, "multipart/"):
			nested, err := extractText(partType, "", part, tp)
			if err == nil && nested != noTextPlaceholder {
				plain.WriteString(nested)
				plain.WriteString("\n")
			}
		case partMedia == "text/plain" || partMedia == "":
			raw, err := io.ReadAll(decodeTransfer(part.Header.Get("Content-Transfer-Encoding"), part))
			if err != nil {
				continue
			}
			plain.Write(raw)
			plain.WriteString("\n")
		case partMedia == "text/html":
			raw, err := io.ReadAll(decodeTransfer(part.Header.Get("Content-Transfer-Encoding"), part))
			if err != nil {
				continue
			}
			html.Write(raw)
		}
	}

	if plain.Len() > 0 {
		return plain.String(), nil
	}
	if html.Len() > 0 {
		return tp.HTMLToText(html.String()), nil
	}
	return noTextPlaceholder, nil
}

func decodeTransfer(encoding string, r io.Reader) io.Reader {
	switch strings.ToLower(strings.TrimSpace(encoding)) {
	case "base64":
		return base64.NewDecoder(base64.StdEncoding, r)
	case "quoted-printable":
		return quotedprintable.NewReader(r)
	}
	return r
}
