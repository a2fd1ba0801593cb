//go:build integration

package notify_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"citeline/internal/notify"
	"citeline/internal/platform/config"
	platformredis "citeline/internal/platform/redis"
	"citeline/internal/submission/models"
	id "citeline/pkg/domain"
	"citeline/pkg/testutil/containers"
)

func newBridgedInstance(t *testing.T, ctx context.Context, url string) (*notify.Broadcaster, *notify.RedisBridge) {
	t.Helper()

	client, err := platformredis.New(config.RedisConfig{
		URL:          url,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })

	broadcaster := notify.NewBroadcaster()
	bridge := notify.NewRedisBridge(client, broadcaster)
	go func() { _ = bridge.Run(ctx) }()
	return broadcaster, bridge
}

func TestBridgeFansOutAcrossInstances(t *testing.T) {
	rc := containers.NewRedisContainer(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	broadcasterA, bridgeA := newBridgedInstance(t, ctx, rc.Addr)
	broadcasterB, _ := newBridgedInstance(t, ctx, rc.Addr)

	localConn := notify.NewConnection(id.NewUserID(), id.RoleAdmin, "KE", "chrome")
	remoteConn := notify.NewConnection(id.NewUserID(), id.RoleAdmin, "KE", "firefox")
	broadcasterA.Register(localConn)
	broadcasterB.Register(remoteConn)

	event := models.Event{
		Action: models.EventSubmissionVerified,
		Submission: models.Submission{
			ID:          id.NewSubmissionID(),
			Country:     "GH",
			SubmitterID: id.NewUserID(),
			Status:      models.StatusApproved,
			Credibility: models.CredibilityCredible,
		},
	}

	// The subscriber loops need a moment to attach before the first publish.
	require.Eventually(t, func() bool {
		bridgeA.Publish(ctx, event)
		select {
		case got := <-remoteConn.Events():
			require.Equal(t, event.Submission.ID, got.Submission.ID)
			return true
		default:
			return false
		}
	}, 10*time.Second, 100*time.Millisecond, "remote instance receives the mirrored event")

	// The publishing instance delivered locally at least once and never
	// replayed its own mirrored message.
	delivered := 0
	for {
		select {
		case <-localConn.Events():
			delivered++
			continue
		default:
		}
		break
	}
	require.GreaterOrEqual(t, delivered, 1)

	// Give any in-flight replay a chance to arrive, then confirm the local
	// count matches the number of publishes, not double.
	publishes := delivered
	time.Sleep(500 * time.Millisecond)
	select {
	case <-localConn.Events():
		t.Fatalf("publishing instance replayed its own event (saw more than %d deliveries)", publishes)
	default:
	}
}
