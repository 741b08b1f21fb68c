package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/iliyamo/podcast-live/internal/queue"
	"github.com/iliyamo/podcast-live/internal/repository"
)

type fakePodcasts struct {
	got []repository.LiveArchive
	err error
}

func (f *fakePodcasts) CreateFromLive(_ context.Context, a repository.LiveArchive) (uint64, error) {
	f.got = append(f.got, a)
	return 20, f.err
}

type fakePublisher struct {
	events []queue.LiveEndedEvent
}

func (f *fakePublisher) PublishLiveEnded(_ context.Context, ev queue.LiveEndedEvent) error {
	f.events = append(f.events, ev)
	return nil
}

func TestDirectArchiverWritesPodcast(t *testing.T) {
	cat := uint64(2)
	p := &fakePodcasts{}
	a := NewDirectArchiver(p, zap.NewNop())

	err := a.Archive(context.Background(), ArchiveRequest{
		SessionID: 5, HostID: 7, Title: "Weekly Chat", CategoryID: &cat, AudioURL: "/uploads/a.webm",
	})
	require.NoError(t, err)
	require.Len(t, p.got, 1)
	assert.Equal(t, repository.LiveArchive{
		SessionID: 5, OwnerID: 7, Title: "Weekly Chat", CategoryID: &cat, AudioURL: "/uploads/a.webm",
	}, p.got[0])

	p.err = errors.New("db down")
	assert.Error(t, a.Archive(context.Background(), ArchiveRequest{SessionID: 6, HostID: 7}))
}

func TestQueueArchiverRoundTripsThroughConsumerHandler(t *testing.T) {
	pub := &fakePublisher{}
	ended := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	req := ArchiveRequest{SessionID: 5, HostID: 7, Title: "Weekly Chat", AudioURL: "/p.mp3", EndedAt: ended}

	require.NoError(t, NewQueueArchiver(pub).Archive(context.Background(), req))
	require.Len(t, pub.events, 1)
	assert.Equal(t, uint64(5), pub.events[0].SessionID)
	assert.Equal(t, ended, pub.events[0].EndedAt)

	p := &fakePodcasts{}
	require.NoError(t, NewDirectArchiver(p, zap.NewNop()).HandleLiveEnded(context.Background(), pub.events[0]))
	require.Len(t, p.got, 1)
	assert.Equal(t, uint64(7), p.got[0].OwnerID)
	assert.Equal(t, "/p.mp3", p.got[0].AudioURL)
}
