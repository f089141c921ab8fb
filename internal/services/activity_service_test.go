package services

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"rentdesk/pkg/pagination"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingPublisher struct {
	channel  string
	payloads [][]byte
	err      error
}

func (p *recordingPublisher) Publish(_ context.Context, channel string, payload []byte) error {
	p.channel = channel
	p.payloads = append(p.payloads, payload)
	return p.err
}

func TestActivityService_RecordAndPublish(t *testing.T) {
	db := setupTestDB(t)
	pub := &recordingPublisher{}
	svc := NewActivityService(db, pub)

	svc.RecordActivity(context.Background(), 3, "rent.pay", "Lease", 11, map[string]interface{}{"amount": 5000})
	svc.RecordActivity(context.Background(), 3, "lease.create", "Lease", 12, nil)

	require.Len(t, pub.payloads, 2)
	assert.Equal(t, ActivityChannel, pub.channel)

	var event ActivityEvent
	require.NoError(t, json.Unmarshal(pub.payloads[0], &event))
	assert.Equal(t, "rent.pay", event.Key)
	assert.Equal(t, uint(11), event.TrackableID)
	assert.EqualValues(t, 5000, event.Parameters["amount"])

	all, total, err := svc.List("", "", &pagination.PageParams{Page: 1, PageSize: 10})
	require.NoError(t, err)
	assert.Equal(t, int64(2), total)
	assert.Equal(t, "lease.create", all[0].Key)

	pays, total, err := svc.List("rent.pay", "Lease", &pagination.PageParams{Page: 1, PageSize: 10})
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
	assert.Equal(t, uint(3), pays[0].OwnerID)
}

func TestActivityService_PublishFailureIsIgnored(t *testing.T) {
	db := setupTestDB(t)
	svc := NewActivityService(db, &recordingPublisher{err: errors.New("redis down")})

	svc.RecordActivity(context.Background(), 0, "rent.roll_forward", "RollForward", 0, nil)

	_, total, err := svc.List("", "", &pagination.PageParams{Page: 1, PageSize: 10})
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
}

func TestActivityService_ListPages(t *testing.T) {
	db := setupTestDB(t)
	svc := NewActivityService(db, nil)
	for i := uint(1); i <= 3; i++ {
		svc.RecordActivity(context.Background(), 0, "rent.pay", "Lease", i, nil)
	}

	first, total, err := svc.List("", "", &pagination.PageParams{Page: 1, PageSize: 2})
	require.NoError(t, err)
	assert.Equal(t, int64(3), total)
	require.Len(t, first, 2)
	assert.Equal(t, uint(3), first[0].TrackableID)

	second, total, err := svc.List("", "", &pagination.PageParams{Page: 2, PageSize: 2})
	require.NoError(t, err)
	assert.Equal(t, int64(3), total)
	require.Len(t, second, 1)
	assert.Equal(t, uint(1), second[0].TrackableID)
}
