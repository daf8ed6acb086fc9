package legal

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"cultivar/internal/storage"
)

func TestAcceptRecordsVersionAndTimestamp(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	svc := NewService(storage.NewInMemoryStore(), WithClock(func() time.Time { return now }))

	svc.Accept(DocTermsOfService, 2)

	snap := svc.Snapshot()
	assert.Equal(t, Acceptance{AcceptedVersion: 2, AcceptedAt: now}, snap.Accepted[DocTermsOfService])
}

func TestAcceptAllCoversRequiredTable(t *testing.T) {
	svc := NewService(storage.NewInMemoryStore())
	required := RequiredVersions{DocTermsOfService: 2, DocPrivacyPolicy: 1}

	svc.AcceptAll(required)

	assert.False(t, CheckVersionBumps(svc.Snapshot(), required).NeedsBlocking)
}

func TestSnapshotIsDetachedFromLaterAccepts(t *testing.T) {
	svc := NewService(storage.NewInMemoryStore())
	svc.Accept(DocTermsOfService, 1)

	snap := svc.Snapshot()
	svc.Accept(DocPrivacyPolicy, 1)

	assert.Len(t, snap.Accepted, 1)
	assert.Len(t, svc.Snapshot().Accepted, 2)
}

func TestSnapshotSafeUnderConcurrentAccepts(t *testing.T) {
	svc := NewService(storage.NewInMemoryStore())
	required := RequiredVersions{DocTermsOfService: 2, DocPrivacyPolicy: 2}

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		for i := range 500 {
			svc.Accept(DocPrivacyPolicy, i)
		}
	}()
	go func() {
		defer wg.Done()
		for range 500 {
			_ = CheckVersionBumps(svc.Snapshot(), required)
		}
	}()
	wg.Wait()
}
