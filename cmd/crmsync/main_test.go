package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/mfeltenmark/freelance-crm/internal/bookings/transport"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "booking.json")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestReadPayloadFillsDefaults(t *testing.T) {
	path := writeFile(t, `{
		"bookingId": "bk-1",
		"eventType": "workshop",
		"name": "Anna Svensson",
		"email": "anna@acme.se",
		"scheduledDate": "2026-06-01T09:00:00Z",
		"duration": 120
	}`)

	p, err := readPayload(path)
	require.NoError(t, err)
	assert.Equal(t, transport.SourceBookMe, p.Source)
	assert.NotEmpty(t, p.CreatedAt)
}

func TestReadPayloadRejectsInvalidBooking(t *testing.T) {
	_, err := readPayload(writeFile(t, `{"bookingId":"bk-1"}`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "email")

	_, err = readPayload(writeFile(t, `{`))
	assert.Error(t, err)
}

func TestRootCommandLayout(t *testing.T) {
	root := newRootCmd()
	for _, name := range []string{"send", "cancel", "reschedule"} {
		cmd, _, err := root.Find([]string{name})
		require.NoError(t, err)
		assert.Equal(t, name, cmd.Name())
	}
}
