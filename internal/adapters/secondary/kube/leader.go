package kube

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync/atomic"
	"time"

	log "github.com/sirupsen/logrus"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/client-go/kubernetes"
	"k8s.io/client-go/rest"
	"k8s.io/client-go/tools/clientcmd"
	"k8s.io/client-go/tools/leaderelection"
	"k8s.io/client-go/tools/leaderelection/resourcelock"

	"artifact-sync-service/internal/config"
)

// Lease timings used when none are given.
const (
	DefaultLeaseDuration = 15 * time.Second
	DefaultRenewDeadline = 10 * time.Second
	DefaultRetryPeriod   = 2 * time.Second
)

// NewRestConfig resolves cluster credentials: in-cluster service account,
// an explicit kubeconfig, or ~/.kube/config.
func NewRestConfig(cfg *config.KubernetesConfig) (*rest.Config, error) {
	var restCfg *rest.Config
	var err error

	if cfg.InCluster {
		restCfg, err = rest.InClusterConfig()
	} else if cfg.KubeConfig != "" {
		restCfg, err = clientcmd.BuildConfigFromFlags("", cfg.KubeConfig)
	} else {
		home, _ := os.UserHomeDir()
		kubeconfig := filepath.Join(home, ".kube", "config")
		restCfg, err = clientcmd.BuildConfigFromFlags("", kubeconfig)
	}
	if err != nil {
		return nil, fmt.Errorf("build k8s config: %w", err)
	}
	return restCfg, nil
}

// LeaderElector holds a coordination.k8s.io Lease so that only one replica
// runs scheduled sync cycles.
type LeaderElector struct {
	client        kubernetes.Interface
	namespace     string
	leaseName     string
	identity      string
	leaseDuration time.Duration
	renewDeadline time.Duration
	retryPeriod   time.Duration

	leading atomic.Bool
}

type LeaderOption func(*LeaderElector)

// WithLeaseTimings overrides the lease duration, renew deadline and retry period.
func WithLeaseTimings(lease, renew, retry time.Duration) LeaderOption {
	return func(l *LeaderElector) {
		l.leaseDuration = lease
		l.renewDeadline = renew
		l.retryPeriod = retry
	}
}

func NewLeaderElector(client kubernetes.Interface, cfg *config.LeaderElectionConfig, opts ...LeaderOption) (*LeaderElector, error) {
	if cfg.Identity == "" {
		return nil, fmt.Errorf("leader election identity is required")
	}
	l := &LeaderElector{
		client:        client,
		namespace:     cfg.Namespace,
		leaseName:     cfg.LeaseName,
		identity:      cfg.Identity,
		leaseDuration: DefaultLeaseDuration,
		renewDeadline: DefaultRenewDeadline,
		retryPeriod:   DefaultRetryPeriod,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l, nil
}

// NewLeaderElectorForConfig builds the clientset from cluster credentials.
func NewLeaderElectorForConfig(kcfg *config.KubernetesConfig, cfg *config.LeaderElectionConfig) (*LeaderElector, error) {
	restCfg, err := NewRestConfig(kcfg)
	if err != nil {
		return nil, err
	}
	client, err := kubernetes.NewForConfig(restCfg)
	if err != nil {
		return nil, fmt.Errorf("create k8s clientset: %w", err)
	}
	return NewLeaderElector(client, cfg)
}

// IsLeader reports whether this replica currently holds the lease.
func (l *LeaderElector) IsLeader() bool {
	return l.leading.Load()
}

// Run campaigns for the lease until ctx is cancelled. onStarted is called
// with a context that is cancelled when leadership is lost; the lease is
// released on shutdown.
func (l *LeaderElector) Run(ctx context.Context, onStarted func(ctx context.Context)) error {
	lock := &resourcelock.LeaseLock{
		LeaseMeta: metav1.ObjectMeta{
			Name:      l.leaseName,
			Namespace: l.namespace,
		},
		Client: l.client.CoordinationV1(),
		LockConfig: resourcelock.ResourceLockConfig{
			Identity: l.identity,
		},
	}

	logger := log.WithFields(log.Fields{
		"lease":     l.leaseName,
		"namespace": l.namespace,
		"identity":  l.identity,
	})

	elector, err := leaderelection.NewLeaderElector(leaderelection.LeaderElectionConfig{
		Lock:            lock,
		LeaseDuration:   l.leaseDuration,
		RenewDeadline:   l.renewDeadline,
		RetryPeriod:     l.retryPeriod,
		ReleaseOnCancel: true,
		Name:            l.leaseName,
		Callbacks: leaderelection.LeaderCallbacks{
			OnStartedLeading: func(leaderCtx context.Context) {
				l.leading.Store(true)
				logger.Info("acquired sync leadership")
				onStarted(leaderCtx)
			},
			OnStoppedLeading: func() {
				l.leading.Store(false)
				logger.Info("released sync leadership")
			},
			OnNewLeader: func(identity string) {
				if identity != l.identity {
					logger.WithField("leader", identity).Info("another replica leads sync")
				}
			},
		},
	})
	if err != nil {
		return fmt.Errorf("create leader elector: %w", err)
	}

	// Run returns when leadership is lost; campaign again until shutdown.
	for ctx.Err() == nil {
		elector.Run(ctx)
	}
	return nil
}
