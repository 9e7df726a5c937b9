package models

import (
	"encoding/json"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustUUID(s string) uuid.UUID {
	return uuid.MustParse(s)
}

func TestGeoPointRoundTrip(t *testing.T) {
	point := NewGeoPoint(77.5946, 12.9716)

	raw, err := json.Marshal(point)
	require.NoError(t, err)

	var decoded GeoPoint
	require.NoError(t, json.Unmarshal(raw, &decoded))

	assert.Equal(t, "Point", decoded.Type)
	assert.Equal(t, 77.5946, decoded.Longitude())
	assert.Equal(t, 12.9716, decoded.Latitude())
}

func TestRequestCoordinateRoundTrip(t *testing.T) {
	request := Request{Longitude: 30.3158, Latitude: 59.9343}
	point := request.Coordinate()

	assert.Equal(t, [2]float64{30.3158, 59.9343}, point.Coordinates)
}

func TestIsTerminalStatus(t *testing.T) {
	assert.False(t, IsTerminalStatus(RequestStatusCreated))
	assert.False(t, IsTerminalStatus(RequestStatusInProgress))
	assert.True(t, IsTerminalStatus(RequestStatusCompleted))
	assert.True(t, IsTerminalStatus(RequestStatusCancelled))
	assert.True(t, IsTerminalStatus(RequestStatusRejected))
}

func TestRequestParticipants(t *testing.T) {
	request := Request{}
	request.UserID = mustUUID("6ba7b810-9dad-11d1-80b4-00c04fd430c8")

	assert.True(t, request.IsParticipant(request.UserID))
	assert.False(t, request.IsParticipant(mustUUID("6ba7b811-9dad-11d1-80b4-00c04fd430c8")))

	resolver := mustUUID("6ba7b812-9dad-11d1-80b4-00c04fd430c8")
	request.ResolverID = &resolver
	assert.True(t, request.IsParticipant(resolver))
}
