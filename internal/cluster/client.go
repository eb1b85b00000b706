// Package cluster abstracts the cluster's Secret/ConfigMap/Namespace/
// Job/CronJob/Pod/Log APIs behind a narrow interface, so the core can be
// exercised against a fake clientset in tests.
package cluster

import (
	"context"
	"io"

	batchv1 "k8s.io/api/batch/v1"
	corev1 "k8s.io/api/core/v1"
)

// NamespaceResult reports whether EnsureNamespace created the namespace or
// found it already present.
type NamespaceResult int

const (
	NamespaceCreated NamespaceResult = iota
	NamespaceExisted
)

// ListOptions narrows a pod listing, e.g. by the job that owns the pods.
type ListOptions struct {
	LabelSelector string
}

// Client is the operations the core consumes from the cluster, per §4.6.
// ClientsetClient implements it: NewRealClient builds one against a live
// apiserver, and tests build one over a fake clientset with
// NewFromClientset.
type Client interface {
	EnsureNamespace(ctx context.Context, name string) (NamespaceResult, error)

	CreateSecret(ctx context.Context, namespace string, secret *corev1.Secret) (*corev1.Secret, error)
	DeleteSecret(ctx context.Context, namespace, name string) error
	PatchSecret(ctx context.Context, namespace, name string, patch []byte) error

	CreateConfigMap(ctx context.Context, namespace string, cm *corev1.ConfigMap) (*corev1.ConfigMap, error)
	DeleteConfigMap(ctx context.Context, namespace, name string) error
	PatchConfigMap(ctx context.Context, namespace, name string, patch []byte) error

	CreateJob(ctx context.Context, namespace string, job *batchv1.Job) (*batchv1.Job, error)
	ReadJob(ctx context.Context, namespace, name string) (*batchv1.Job, error)
	ListJobs(ctx context.Context, namespace string) ([]batchv1.Job, error)
	DeleteJob(ctx context.Context, namespace, name string) error

	CreateCronJob(ctx context.Context, namespace string, cj *batchv1.CronJob) (*batchv1.CronJob, error)
	ReadCronJob(ctx context.Context, namespace, name string) (*batchv1.CronJob, error)
	ListCronJobs(ctx context.Context, namespace string) ([]batchv1.CronJob, error)
	DeleteCronJob(ctx context.Context, namespace, name string) error

	ListPods(ctx context.Context, namespace string, opts ListOptions) ([]corev1.Pod, error)
	ReadPod(ctx context.Context, namespace, name string) (*corev1.Pod, error)
	ReadPodLog(ctx context.Context, namespace, name string) (string, error)
	StreamPodLog(ctx context.Context, namespace, name string) (io.ReadCloser, error)
}
