package cluster

import (
	"context"
	"testing"

	batchv1 "k8s.io/api/batch/v1"
	corev1 "k8s.io/api/core/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/client-go/kubernetes/fake"

	"github.com/kbatch-dev/kbatch-proxy/internal/kerr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEnsureNamespaceCreatedThenExisted(t *testing.T) {
	client := NewFromClientset(fake.NewSimpleClientset())
	ctx := context.Background()

	result, err := client.EnsureNamespace(ctx, "kbatch-alice")
	require.NoError(t, err)
	assert.Equal(t, NamespaceCreated, result)

	result, err = client.EnsureNamespace(ctx, "kbatch-alice")
	require.NoError(t, err)
	assert.Equal(t, NamespaceExisted, result)
}

func TestCreateAndReadJob(t *testing.T) {
	client := NewFromClientset(fake.NewSimpleClientset())
	ctx := context.Background()

	job := &batchv1.Job{ObjectMeta: metav1.ObjectMeta{Name: "t-abc12"}}
	created, err := client.CreateJob(ctx, "kbatch-alice", job)
	require.NoError(t, err)
	assert.Equal(t, "t-abc12", created.Name)

	read, err := client.ReadJob(ctx, "kbatch-alice", "t-abc12")
	require.NoError(t, err)
	assert.Equal(t, "t-abc12", read.Name)
}

func TestReadJobNotFoundIsClassified(t *testing.T) {
	client := NewFromClientset(fake.NewSimpleClientset())
	ctx := context.Background()

	_, err := client.ReadJob(ctx, "kbatch-alice", "missing")
	require.Error(t, err)
	classified, ok := kerr.As(err)
	require.True(t, ok)
	assert.Equal(t, kerr.NotFound, classified.Kind)
}

func TestDeleteSecretIsNotFoundTolerant(t *testing.T) {
	client := NewFromClientset(fake.NewSimpleClientset())
	ctx := context.Background()

	err := client.DeleteSecret(ctx, "kbatch-alice", "does-not-exist")
	assert.NoError(t, err)
}

func TestListPodsFiltersByLabelSelector(t *testing.T) {
	clientset := fake.NewSimpleClientset(
		&corev1.Pod{ObjectMeta: metav1.ObjectMeta{Name: "match", Namespace: "kbatch-alice", Labels: map[string]string{"job-name": "t-abc12"}}},
		&corev1.Pod{ObjectMeta: metav1.ObjectMeta{Name: "other", Namespace: "kbatch-alice", Labels: map[string]string{"job-name": "other-job"}}},
	)
	client := NewFromClientset(clientset)

	pods, err := client.ListPods(context.Background(), "kbatch-alice", ListOptions{LabelSelector: "job-name=t-abc12"})
	require.NoError(t, err)
	require.Len(t, pods, 1)
	assert.Equal(t, "match", pods[0].Name)
}
