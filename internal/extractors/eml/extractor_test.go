package eml

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/ragline/internal/core/domain"
)

func crlf(s string) []byte {
	return []byte(strings.ReplaceAll(s, "\n", "\r\n"))
}

func TestExtract_PlainMessage(t *testing.T) {
	msg := crlf(`From: Alice <alice@example.com>
To: Bob <bob@example.com>
Subject: =?UTF-8?B?UmVsZWFzZSBwbGFu?=
Date: Mon, 5 Jan 2026 10:00:00 +0000

Ship on Friday.
`)
	result, err := New().Extract(context.Background(), msg, "plan.eml")
	require.NoError(t, err)
	assert.Equal(t, "Release plan", result.Title)
	assert.Contains(t, result.Text, "From: Alice <alice@example.com>")
	assert.Contains(t, result.Text, "Subject: Release plan")
	assert.Contains(t, result.Text, "Ship on Friday.")
}

func TestExtract_MultipartPrefersPlainText(t *testing.T) {
	msg := crlf(`From: a@example.com
Subject: Alt
Content-Type: multipart/alternative; boundary="b1"

--b1
Content-Type: text/html

<p>html <b>version</b></p>
--b1
Content-Type: text/plain

plain version
--b1--
`)
	result, err := New().Extract(context.Background(), msg, "")
	require.NoError(t, err)
	assert.Contains(t, result.Text, "plain version")
	assert.NotContains(t, result.Text, "html")
}

func TestExtract_HTMLOnlyBody(t *testing.T) {
	msg := crlf(`Subject: Html
Content-Type: text/html; charset=utf-8

<html><body><p>Hello <i>there</i></p><script>x()</script></body></html>
`)
	result, err := New().Extract(context.Background(), msg, "")
	require.NoError(t, err)
	assert.Contains(t, result.Text, "Hello there")
	assert.NotContains(t, result.Text, "<p>")
	assert.NotContains(t, result.Text, "x()")
}

func TestExtract_TitleFallback(t *testing.T) {
	result, err := New().Extract(context.Background(), crlf("From: a@example.com\n\nbody\n"), "/mail/weekly-sync.eml")
	require.NoError(t, err)
	assert.Equal(t, "weekly sync", result.Title)
}

func TestExtract_Invalid(t *testing.T) {
	_, err := New().Extract(context.Background(), []byte(""), "")
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}
