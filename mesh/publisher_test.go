package mesh

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testSummary() *Summary {
	return &Summary{
		Reference:    "scanner 0",
		BeaconCount:  79,
		MaxManhattan: 3621,
		Scanners: []ScannerPose{
			{Name: "scanner 0", Rotation: IdentityRotation()},
			{Name: "scanner 1", Rotation: IdentityRotation(), Translation: Point{68, -1246, -43}},
		},
	}
}

func TestNewPublisher_DefaultPrefix(t *testing.T) {
	assert.Equal(t, DefaultPublishPrefix, NewPublisher(nil, "").Prefix())
	assert.Equal(t, "lab", NewPublisher(nil, "lab").Prefix())
}

func TestPublisher_PublishSummary(t *testing.T) {
	client := NewMockClient()
	client.SetConnected(true)
	p := NewPublisher(client, "")

	require.NoError(t, p.PublishSummary(testSummary()))

	msgs := client.GetPublishedMessages()
	require.Len(t, msgs, 3)
	assert.Equal(t, "beaconmesh/summary", msgs[0].Topic)
	assert.Equal(t, byte(1), msgs[0].QoS)
	assert.True(t, msgs[0].Retain)

	var got Summary
	require.NoError(t, json.Unmarshal(msgs[0].Payload, &got))
	assert.Equal(t, 79, got.BeaconCount)
	assert.Equal(t, 3621, got.MaxManhattan)

	msg, ok := client.LastMessage("beaconmesh/scanner 1")
	require.True(t, ok)
	var pose ScannerPose
	require.NoError(t, json.Unmarshal(msg.Payload, &pose))
	assert.Equal(t, Point{68, -1246, -43}, pose.Translation)

	last, ok := p.LastSummary()
	assert.True(t, ok)
	assert.Equal(t, 79, last.BeaconCount)
}

func TestPublisher_NotConnected(t *testing.T) {
	assert.Error(t, NewPublisher(nil, "").PublishSummary(testSummary()))

	client := NewMockClient()
	p := NewPublisher(client, "")
	err := p.PublishSummary(testSummary())
	assert.ErrorContains(t, err, "not connected")
	assert.Empty(t, client.GetPublishedMessages())

	_, ok := p.LastSummary()
	assert.False(t, ok)
}

func TestPublisher_PublishError(t *testing.T) {
	client := NewMockClient()
	client.SetConnected(true)
	boom := errors.New("broker rejected")
	client.SetPublishError(boom)

	err := NewPublisher(client, "").PublishSummary(testSummary())
	assert.ErrorIs(t, err, boom)
	assert.ErrorContains(t, err, "beaconmesh/summary")
}

func TestPublisher_QoSAndRetain(t *testing.T) {
	client := NewMockClient()
	client.SetConnected(true)
	p := NewPublisher(client, "lab")
	p.SetQoS(2)
	p.SetQoS(7)
	p.SetRetain(false)

	require.NoError(t, p.PublishSummary(&Summary{}))
	msg, ok := client.LastMessage("lab/summary")
	require.True(t, ok)
	assert.Equal(t, byte(2), msg.QoS)
	assert.False(t, msg.Retain)
}
