package kube

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/client-go/kubernetes/fake"

	"artifact-sync-service/internal/config"
)

func TestNewLeaderElector_RequiresIdentity(t *testing.T) {
	_, err := NewLeaderElector(fake.NewSimpleClientset(), &config.LeaderElectionConfig{
		Namespace: "default",
		LeaseName: "artifact-sync",
	})
	assert.Error(t, err)
}

func TestLeaderElector_AcquiresLease(t *testing.T) {
	client := fake.NewSimpleClientset()
	l, err := NewLeaderElector(client, &config.LeaderElectionConfig{
		Namespace: "default",
		LeaseName: "artifact-sync",
		Identity:  "replica-a",
	}, WithLeaseTimings(time.Second, 500*time.Millisecond, 100*time.Millisecond))
	require.NoError(t, err)
	assert.False(t, l.IsLeader())

	ctx, cancel := context.WithCancel(context.Background())
	started := make(chan struct{})
	done := make(chan error, 1)
	go func() {
		done <- l.Run(ctx, func(leaderCtx context.Context) {
			close(started)
			<-leaderCtx.Done()
		})
	}()

	select {
	case <-started:
	case <-time.After(5 * time.Second):
		t.Fatal("lease was not acquired")
	}
	assert.True(t, l.IsLeader())

	lease, err := client.CoordinationV1().Leases("default").Get(context.Background(), "artifact-sync", metav1.GetOptions{})
	require.NoError(t, err)
	require.NotNil(t, lease.Spec.HolderIdentity)
	assert.Equal(t, "replica-a", *lease.Spec.HolderIdentity)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("elector did not stop")
	}
	assert.False(t, l.IsLeader())
}
