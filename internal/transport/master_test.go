// SPDX-License-Identifier: MPL-2.0

package transport

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/simforge/simserver/internal/core/lifecycle"
)

func startMaster(t *testing.T) (*Bus, *Master, URI) {
	t.Helper()

	b := newTestBus(t)
	m := NewMaster(b, nil)
	require.NoError(t, m.Start(context.Background()))
	t.Cleanup(func() { _ = m.Stop() })

	uri, err := ParseURI(m.Addr())
	require.NoError(t, err)
	return b, m, uri
}

func TestMasterClientRoundTrip(t *testing.T) {
	t.Parallel()

	b, m, uri := startMaster(t)
	assert.Equal(t, lifecycle.StateRunning, m.State())

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	client, err := Dial(ctx, uri)
	require.NoError(t, err)
	defer client.Close()

	// remote -> local
	var local collector
	b.Subscribe("/sim/server/control", local.handle)
	require.NoError(t, client.Publish("/sim/server/control", map[string]bool{"stop": true}))
	require.Eventually(t, func() bool { return len(local.snapshot()) == 1 }, 2*time.Second, 5*time.Millisecond)
	assert.JSONEq(t, `{"stop":true}`, local.snapshot()[0])

	// local -> remote; the subscribe frame is processed before the publish below
	// only once the server has registered it, so poll.
	ch, err := client.Subscribe("/sim/world/modify")
	require.NoError(t, err)

	deadline := time.After(2 * time.Second)
	for {
		require.NoError(t, b.Publish("/sim/world/modify", map[string]string{"world_name": "arena"}))
		select {
		case data := <-ch:
			assert.JSONEq(t, `{"world_name":"arena"}`, string(data))
			return
		case <-time.After(20 * time.Millisecond):
		case <-deadline:
			t.Fatal("no message received")
		}
	}
}

func TestMasterHealth(t *testing.T) {
	t.Parallel()

	b, _, uri := startMaster(t)
	b.AdvertiseNamespace("/sim/default")

	resp, err := http.Get("http://" + uri.Addr() + healthPath)
	require.NoError(t, err)
	defer resp.Body.Close()

	var status HealthStatus
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&status))
	assert.Equal(t, "running", status.State)
	assert.Equal(t, []string{"/sim/default"}, status.Namespaces)
}

func TestMasterStopClosesClients(t *testing.T) {
	t.Parallel()

	_, m, uri := startMaster(t)

	client, err := Dial(context.Background(), uri)
	require.NoError(t, err)
	_, err = client.Subscribe("/x")
	require.NoError(t, err)

	require.NoError(t, m.Stop())
	require.NoError(t, m.Stop())
	assert.Equal(t, lifecycle.StateStopped, m.State())

	select {
	case <-client.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("client not disconnected")
	}
	assert.ErrorIs(t, client.Publish("/x", 1), ErrClientClosed)
}

func TestMasterListenFailure(t *testing.T) {
	t.Parallel()

	_, _, uri := startMaster(t)

	second := NewMaster(NewBus(uri, nil), nil)
	err := second.Start(context.Background())
	require.Error(t, err)
	assert.Equal(t, lifecycle.StateFailed, second.State())
}
